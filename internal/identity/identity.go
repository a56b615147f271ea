// Package identity wraps the administrative side of the external identity
// provider.  Credential storage, sign-in and password hashing all live in the
// provider; the backend only looks accounts up, changes passwords and deletes
// accounts.
//
// The admin client depends on a service-account file that may be missing in
// development.  That condition is detected once at startup: Open returns an
// Unavailable provider whose operations fail with ErrUnavailable, and callers
// decide per operation whether that is fatal for the request.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the admin client was not initialized at startup.
	ErrUnavailable = errors.New("identity admin client unavailable")
	// ErrUserNotFound means the provider has no account for the lookup key.
	ErrUserNotFound = errors.New("identity user not found")
)

// Account is the subset of a provider user record the backend reads.
type Account struct {
	UID           string
	Email         string
	EmailVerified bool
	Disabled      bool
}

// Provider is the administrative capability of the identity provider.
type Provider interface {
	// Available reports whether the admin client initialized.
	Available() bool
	GetUserByEmail(ctx context.Context, email string) (Account, error)
	UpdatePassword(ctx context.Context, uid, password string) error
	DeleteUser(ctx context.Context, uid string) error
}

// Unavailable is the Provider used when the admin client could not start.
type Unavailable struct {
	Reason error
}

func (Unavailable) Available() bool { return false }

func (u Unavailable) GetUserByEmail(context.Context, string) (Account, error) {
	return Account{}, u.err()
}

func (u Unavailable) UpdatePassword(context.Context, string, string) error { return u.err() }

func (u Unavailable) DeleteUser(context.Context, string) error { return u.err() }

func (u Unavailable) err() error {
	if u.Reason == nil {
		return ErrUnavailable
	}
	return errors.Join(ErrUnavailable, u.Reason)
}
