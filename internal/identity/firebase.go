package identity

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Firebase implements Provider with the Firebase Admin SDK.
type Firebase struct {
	client *auth.Client
}

// NewFirebase initializes the Admin SDK from a service-account JSON file.
func NewFirebase(ctx context.Context, credentialsFile string) (*Firebase, error) {
	if _, err := os.Stat(credentialsFile); err != nil {
		return nil, fmt.Errorf("service account %q: %w", credentialsFile, err)
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &Firebase{client: client}, nil
}

// Open returns a Firebase provider, or Unavailable with the reason logged
// when initialization fails.  It never aborts startup.
func Open(ctx context.Context, credentialsFile string, log *zap.Logger) Provider {
	fb, err := NewFirebase(ctx, credentialsFile)
	if err != nil {
		log.Warn("identity admin client unavailable; password reset and account deletion will report a configuration error",
			zap.String("credentials", credentialsFile), zap.Error(err))
		return Unavailable{Reason: err}
	}
	log.Info("identity admin client initialized")
	return fb
}

func (f *Firebase) Available() bool { return true }

func (f *Firebase) GetUserByEmail(ctx context.Context, email string) (Account, error) {
	rec, err := f.client.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return Account{}, ErrUserNotFound
		}
		return Account{}, fmt.Errorf("get user by email: %w", err)
	}
	return Account{
		UID:           rec.UID,
		Email:         rec.Email,
		EmailVerified: rec.EmailVerified,
		Disabled:      rec.Disabled,
	}, nil
}

func (f *Firebase) UpdatePassword(ctx context.Context, uid, password string) error {
	if _, err := f.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Password(password)); err != nil {
		if auth.IsUserNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (f *Firebase) DeleteUser(ctx context.Context, uid string) error {
	if err := f.client.DeleteUser(ctx, uid); err != nil {
		if auth.IsUserNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
