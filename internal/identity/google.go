// Package identity verifies third-party sign-in credentials.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

// ErrInvalidCredential is returned for tokens that fail verification or
// lack a verified email.
var ErrInvalidCredential = errors.New("invalid google credential")

// ErrNotConfigured is returned when no client id is set.
var ErrNotConfigured = errors.New("google sign-in is not configured")

// GoogleAccount is the verified subset of a Google ID token.
type GoogleAccount struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks a Google ID token credential.
type Verifier interface {
	Verify(ctx context.Context, credential string) (GoogleAccount, error)
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier validates ID tokens issued for ClientID.
type GoogleVerifier struct {
	clientID string
	validate validateFunc
}

// NewGoogleVerifier returns a verifier bound to clientID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: strings.TrimSpace(clientID), validate: idtoken.Validate}
}

func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (GoogleAccount, error) {
	if v.clientID == "" {
		return GoogleAccount{}, ErrNotConfigured
	}
	if strings.TrimSpace(credential) == "" {
		return GoogleAccount{}, ErrInvalidCredential
	}
	payload, err := v.validate(ctx, credential, v.clientID)
	if err != nil {
		return GoogleAccount{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if payload.Subject == "" || email == "" || !verified {
		return GoogleAccount{}, ErrInvalidCredential
	}
	name, _ := payload.Claims["name"].(string)
	return GoogleAccount{Subject: payload.Subject, Email: strings.ToLower(email), Name: name}, nil
}
