// Package service implements the storefront's business rules on top of the
// repositories: cart reconciliation, checkout and order derivation,
// accounts and the contact form.
package service

import "errors"

var (
	// ErrCartEmpty is returned when checkout is attempted with no cart rows.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrListingUnavailable is returned when a listing has already been sold.
	ErrListingUnavailable = errors.New("listing is no longer available")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned for a wrong email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when another account already uses an email.
	ErrEmailTaken = errors.New("email already in use")
	// ErrAccountExists is returned by Google sign-in when a password account
	// with the same email exists and the caller has not agreed to link it.
	ErrAccountExists = errors.New("an account with this email already exists")
	// ErrPaymentsDisabled is returned by webhook handling when no payment
	// provider is configured.
	ErrPaymentsDisabled = errors.New("payments are not configured")
	// ErrPaymentUpstream wraps failures of the payment provider.
	ErrPaymentUpstream = errors.New("payment provider error")
)
