package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/identity"
	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/repository"
	"github.com/vinylverse/storefront/internal/utils"
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (model.User, error)
	UpdateEmail(ctx context.Context, id uint64, email string) error
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	LinkGoogle(ctx context.Context, id uint64, sub string) error
	Delete(ctx context.Context, id uint64) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RotateRefresh(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthConfig holds token and hashing settings.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Session is what a successful sign-in hands back to the client.
type Session struct {
	Token          string     `json:"token"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	RefreshToken   string     `json:"refreshToken,omitempty"`
	RefreshExpires *time.Time `json:"refreshExpiresAt,omitempty"`
	User           model.User `json:"user"`
}

// AccountService handles sign-up, sign-in and account settings.
type AccountService struct {
	users  UserStore
	tokens TokenStore
	google identity.Verifier
	cfg    AuthConfig
	log    *zap.Logger
}

// NewAccountService wires an AccountService. google may be nil when Google
// sign-in is not configured.
func NewAccountService(users UserStore, tokens TokenStore, google identity.Verifier, cfg AuthConfig, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{users: users, tokens: tokens, google: google, cfg: cfg, log: log}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Signup creates a password account and signs it in.
func (s *AccountService) Signup(ctx context.Context, email, password string) (Session, error) {
	email = repository.NormalizeEmail(email)
	if !validEmail(email) {
		return Session{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if err := utils.CheckPassword(password); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return Session{}, err
	}
	u, err := s.users.Create(ctx, model.User{Email: email, PasswordHash: hash})
	if errors.Is(err, repository.ErrEmailExists) {
		return Session{}, ErrEmailTaken
	}
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("account created", zap.Uint64("user_id", u.ID))
	return s.issue(ctx, u, true)
}

// Login checks an email/password pair.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !u.HasPassword() || !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(ctx, u, true)
}

// GoogleLogin signs in with a Google ID token. A Google identity already
// linked signs in directly; a new email creates an account. When a
// password account owns the email, ErrAccountExists is returned unless
// useGoogle is set, in which case the identity is linked to it.
func (s *AccountService) GoogleLogin(ctx context.Context, credential string, useGoogle bool) (Session, error) {
	if s.google == nil {
		return Session{}, identity.ErrNotConfigured
	}
	acct, err := s.google.Verify(ctx, credential)
	if err != nil {
		return Session{}, err
	}

	u, err := s.users.GetByGoogleSub(ctx, acct.Subject)
	if err == nil {
		return s.issue(ctx, u, true)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return Session{}, err
	}

	u, err = s.users.GetByEmail(ctx, acct.Email)
	switch {
	case err == nil:
		if u.HasPassword() && !useGoogle {
			return Session{}, ErrAccountExists
		}
		if err := s.users.LinkGoogle(ctx, u.ID, acct.Subject); err != nil {
			return Session{}, fmt.Errorf("link google: %w", err)
		}
		s.log.Info("google identity linked", zap.Uint64("user_id", u.ID))
		return s.issue(ctx, u, true)
	case errors.Is(err, repository.ErrNotFound):
		u, err = s.users.Create(ctx, model.User{Email: acct.Email, GoogleSub: acct.Subject})
		if err != nil {
			return Session{}, fmt.Errorf("create google user: %w", err)
		}
		s.log.Info("account created via google", zap.Uint64("user_id", u.ID))
		return s.issue(ctx, u, true)
	default:
		return Session{}, err
	}
}

// Refresh exchanges a refresh token for a new pair. The old token is
// revoked in the same transaction.
func (s *AccountService) Refresh(ctx context.Context, raw string) (Session, error) {
	oldHash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	userID, err := s.tokens.ValidateRefresh(ctx, oldHash)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	sess, err := s.issue(ctx, u, false)
	if err != nil {
		return Session{}, err
	}
	next, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.RotateRefresh(ctx, userID, oldHash, utils.HashRefreshRaw(next.Raw), next.Exp); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	sess.RefreshToken = next.Raw
	sess.RefreshExpires = &next.Exp
	return sess, nil
}

// Logout revokes every refresh token of the caller.
func (s *AccountService) Logout(ctx context.Context, id model.Identity) error {
	return s.tokens.RevokeAllForUser(ctx, id.UserID)
}

// Me returns the caller's account.
func (s *AccountService) Me(ctx context.Context, id model.Identity) (model.User, error) {
	return s.users.GetByID(ctx, id.UserID)
}

// ChangeEmail updates the caller's email and returns a token carrying it.
func (s *AccountService) ChangeEmail(ctx context.Context, id model.Identity, newEmail string) (Session, error) {
	newEmail = repository.NormalizeEmail(newEmail)
	if !validEmail(newEmail) {
		return Session{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	err := s.users.UpdateEmail(ctx, id.UserID, newEmail)
	if errors.Is(err, repository.ErrEmailExists) {
		return Session{}, ErrEmailTaken
	}
	if err != nil {
		return Session{}, err
	}
	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u, false)
}

// ChangePassword replaces the caller's password after checking the current
// one. Accounts created through Google may set a first password without
// one. Other sessions are signed out.
func (s *AccountService) ChangePassword(ctx context.Context, id model.Identity, current, next string) error {
	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return err
	}
	if u.HasPassword() && !utils.VerifyPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := utils.CheckPassword(next); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hash, err := utils.HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		s.log.Warn("revoking sessions after password change failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	return nil
}

// DeleteAccount removes the caller's account. Password accounts must
// confirm with their password.
func (s *AccountService) DeleteAccount(ctx context.Context, id model.Identity, password string) error {
	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return err
	}
	if u.HasPassword() && !utils.VerifyPassword(u.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	if err := s.users.Delete(ctx, u.ID); err != nil {
		return err
	}
	s.log.Info("account deleted", zap.Uint64("user_id", u.ID))
	return nil
}

// LookupUser finds an account by email or id for the admin tools.
func (s *AccountService) LookupUser(ctx context.Context, email string, id uint64) (model.User, error) {
	if email != "" {
		return s.users.GetByEmail(ctx, email)
	}
	if id != 0 {
		return s.users.GetByID(ctx, id)
	}
	return model.User{}, fmt.Errorf("%w: email or id is required", ErrInvalidInput)
}

func (s *AccountService) issue(ctx context.Context, u model.User, withRefresh bool) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret,
		model.Identity{UserID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	sess := Session{Token: access.Token, ExpiresAt: access.Exp, User: u}
	if !withRefresh {
		return sess, nil
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, fmt.Errorf("store refresh token: %w", err)
	}
	sess.RefreshToken = refresh.Raw
	sess.RefreshExpires = &refresh.Exp
	return sess, nil
}
