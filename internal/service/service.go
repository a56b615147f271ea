// Package service implements the account, audit, email and token workflows
// on top of the stores, the identity provider and the SMTP relay.  Every
// operation is a short sequential chain of calls made on behalf of a single
// HTTP request; nothing runs in the background.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/identity"
	"github.com/iliyamo/superta-auth/internal/mailer"
	"github.com/iliyamo/superta-auth/internal/metrics"
	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/repository"
)

// ProfileStore is implemented by repository.ProfileRepo.
type ProfileStore interface {
	Upsert(ctx context.Context, in repository.ProfileUpsert) (repository.UpsertResult, error)
	DeleteOthersByEmail(ctx context.Context, email, uid string) ([]string, error)
	GetByUID(ctx context.Context, uid string) (model.Profile, error)
	GetByEmail(ctx context.Context, email string) (model.Profile, error)
	GetByResetToken(ctx context.Context, token string) (model.Profile, error)
	SetResetToken(ctx context.Context, email, token string, expires time.Time) error
	ClearResetToken(ctx context.Context, uid string) error
	DeleteByEmail(ctx context.Context, email string) (repository.DeleteResult, error)
	List(ctx context.Context) ([]model.Profile, error)
}

// VerificationStore is implemented by repository.VerificationRepo.
type VerificationStore interface {
	Upsert(ctx context.Context, tok model.VerificationToken) error
	GetByToken(ctx context.Context, token string) (model.VerificationToken, error)
	GetByUID(ctx context.Context, uid string) (model.VerificationToken, error)
	MarkVerified(ctx context.Context, token string, at time.Time) error
}

// AuditStore is implemented by repository.AuditRepo.
type AuditStore interface {
	Insert(ctx context.Context, rec model.AuditRecord) error
}

// EmailLogStore is implemented by repository.EmailLogRepo.
type EmailLogStore interface {
	Insert(ctx context.Context, rec model.SentEmail) error
}

// Deps lists everything the services need.  Now and NewToken default to
// time.Now and utils.NewToken; tests replace them.
type Deps struct {
	Profiles  ProfileStore
	Tokens    VerificationStore
	Audit     AuditStore
	EmailLog  EmailLogStore
	Identity  identity.Provider
	Sender    mailer.Sender
	Publisher Publisher
	Metrics   *metrics.Registry
	Log       *zap.Logger

	WebsiteURL      string
	SenderName      string
	VerificationTTL time.Duration
	ResetTTL        time.Duration

	Now      func() time.Time
	NewToken func() (string, error)
}

// Services bundles the wired services.
type Services struct {
	Accounts *AccountService
	Tokens   *TokenService
	Mail     *Dispatcher
	Audit    *Auditor
}

// New wires the services from d.
func New(d Deps) *Services {
	d = withDefaults(d)
	mail := NewDispatcher(d)
	audit := NewAuditor(d)
	return &Services{
		Accounts: NewAccountService(d, audit),
		Tokens:   NewTokenService(d, mail, audit),
		Mail:     mail,
		Audit:    audit,
	}
}
