package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/identity"
	"github.com/iliyamo/superta-auth/internal/metrics"
	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/password"
	"github.com/iliyamo/superta-auth/internal/repository"
)

const (
	kindVerification = "verification"
	kindReset        = "reset"
)

// TokenService runs the email-verification and password-reset workflows.
// Both use 256-bit random hex tokens delivered by email and redeemed once.
type TokenService struct {
	profiles ProfileStore
	tokens   VerificationStore
	identity identity.Provider
	mail     *Dispatcher
	audit    *Auditor
	metrics  *metrics.Registry
	log      *zap.Logger

	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
	newToken        func() (string, error)
}

func NewTokenService(d Deps, mail *Dispatcher, audit *Auditor) *TokenService {
	d = withDefaults(d)
	return &TokenService{
		profiles:        d.Profiles,
		tokens:          d.Tokens,
		identity:        d.Identity,
		mail:            mail,
		audit:           audit,
		metrics:         d.Metrics,
		log:             d.Log,
		verificationTTL: d.VerificationTTL,
		resetTTL:        d.ResetTTL,
		now:             d.Now,
		newToken:        d.NewToken,
	}
}

// IssueVerification replaces the user's verification token with a fresh one
// and emails the link.  Any earlier token for uid stops working.
func (s *TokenService) IssueVerification(ctx context.Context, uid, email string) error {
	token, err := s.newToken()
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.tokens.Upsert(ctx, model.VerificationToken{
		UID:       uid,
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(s.verificationTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}
	s.metrics.TokensIssuedTotal.WithLabelValues(kindVerification).Inc()

	return s.mail.SendVerification(ctx, email, token)
}

// RedeemVerification marks the token's user as verified.  Exactly one
// concurrent redemption of the same token succeeds; the others observe
// ErrAlreadyVerified.
func (s *TokenService) RedeemVerification(ctx context.Context, token string) (model.VerificationToken, error) {
	tok, err := s.redeemVerification(ctx, token)
	s.metrics.TokenRedeemTotal.WithLabelValues(kindVerification, outcome(err)).Inc()
	return tok, err
}

func (s *TokenService) redeemVerification(ctx context.Context, token string) (model.VerificationToken, error) {
	tok, err := s.tokens.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return model.VerificationToken{}, ErrTokenNotFound
	}
	if err != nil {
		return model.VerificationToken{}, err
	}
	if tok.Verified {
		return tok, ErrAlreadyVerified
	}
	now := s.now()
	if now.After(tok.ExpiresAt) {
		return tok, ErrTokenExpired
	}
	if err := s.tokens.MarkVerified(ctx, token, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return tok, ErrAlreadyVerified
		}
		return tok, err
	}
	tok.Verified = true
	tok.VerifiedAt = &now
	return tok, nil
}

// VerificationStatus reports whether uid redeemed a verification token and
// the address it was sent to.  A user with no token is simply unverified.
func (s *TokenService) VerificationStatus(ctx context.Context, uid string) (bool, string, error) {
	tok, err := s.tokens.GetByUID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return tok.Verified, tok.Email, nil
}

// IssueReset stores a reset token on the profile registered for email and
// mails the link.  An unknown email is not an error: the caller answers the
// same way in both cases so addresses cannot be enumerated.
func (s *TokenService) IssueReset(ctx context.Context, email, ip string) error {
	p, err := s.profiles.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info("password reset requested for unknown email", zap.String("email", email))
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.newToken()
	if err != nil {
		return err
	}
	if err := s.profiles.SetResetToken(ctx, email, token, s.now().Add(s.resetTTL)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// deleted between the lookup and the write
			return nil
		}
		return fmt.Errorf("store reset token: %w", err)
	}
	s.metrics.TokensIssuedTotal.WithLabelValues(kindReset).Inc()

	if err := s.mail.SendReset(ctx, email, token, s.resetTTL); err != nil {
		return err
	}
	return s.audit.Record(ctx, p.UID, email, ip, model.ActionResetPassword)
}

// RedeemReset sets a new password for the owner of token and clears the
// token.  The password must satisfy the policy in package password; a
// violation is returned unwrapped.
func (s *TokenService) RedeemReset(ctx context.Context, token, newPassword, ip string) error {
	err := s.redeemReset(ctx, token, newPassword, ip)
	s.metrics.TokenRedeemTotal.WithLabelValues(kindReset, outcome(err)).Inc()
	return err
}

func (s *TokenService) redeemReset(ctx context.Context, token, newPassword, ip string) error {
	p, err := s.profiles.GetByResetToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTokenNotFound
	}
	if err != nil {
		return err
	}
	if p.ResetExpires == nil || s.now().After(*p.ResetExpires) {
		return ErrTokenExpired
	}
	if err := password.Check(newPassword); err != nil {
		return err
	}
	if !s.identity.Available() {
		return fmt.Errorf("%w: %w", ErrServerConfig, identity.ErrUnavailable)
	}
	if err := s.identity.UpdatePassword(ctx, p.UID, newPassword); err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			return fmt.Errorf("%w: %w", ErrServerConfig, err)
		}
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.profiles.ClearResetToken(ctx, p.UID); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return s.audit.Record(ctx, p.UID, p.Email, ip, model.ActionChangePassword)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case password.IsPolicyError(err):
		return "weak_password"
	default:
		return "error"
	}
}
