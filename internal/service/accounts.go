package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/identity"
	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/repository"
)

// ProfileInput is the body of a profile save.
type ProfileInput struct {
	UID         string
	Email       string
	Country     string
	Institution string
	IP          string
}

// AccountService owns the profile documents and the audit trail.
type AccountService struct {
	profiles ProfileStore
	identity identity.Provider
	audit    *Auditor
	log      *zap.Logger
	now      func() time.Time
}

func NewAccountService(d Deps, audit *Auditor) *AccountService {
	d = withDefaults(d)
	return &AccountService{profiles: d.Profiles, identity: d.Identity, audit: audit, log: d.Log, now: d.Now}
}

// UpsertProfile saves the profile of in.UID.  Documents left behind by an
// earlier account with the same email are deleted first, so an email maps
// to at most one profile.  Their uids are reported in RemovedUIDs.
func (s *AccountService) UpsertProfile(ctx context.Context, in ProfileInput) (repository.UpsertResult, error) {
	removed, err := s.profiles.DeleteOthersByEmail(ctx, in.Email, in.UID)
	if err != nil {
		return repository.UpsertResult{}, err
	}
	if len(removed) > 0 {
		s.log.Info("removed stale profiles", zap.String("email", in.Email), zap.Strings("uids", removed))
	}
	res, err := s.profiles.Upsert(ctx, repository.ProfileUpsert{
		UID:         in.UID,
		Email:       in.Email,
		Country:     in.Country,
		Institution: in.Institution,
		IP:          in.IP,
		Now:         model.Timestamp(s.now()),
	})
	if err != nil {
		return repository.UpsertResult{}, err
	}
	res.RemovedUIDs = removed
	return res, nil
}

// Profile returns the profile of uid or repository.ErrNotFound.
func (s *AccountService) Profile(ctx context.Context, uid string) (model.Profile, error) {
	return s.profiles.GetByUID(ctx, uid)
}

// ProfileByEmail returns the profile registered for email.
func (s *AccountService) ProfileByEmail(ctx context.Context, email string) (model.Profile, error) {
	return s.profiles.GetByEmail(ctx, email)
}

// DeleteByEmail removes at most one profile.  The identity account is left
// alone; the client deletes it itself.
func (s *AccountService) DeleteByEmail(ctx context.Context, email string) (repository.DeleteResult, error) {
	return s.profiles.DeleteByEmail(ctx, email)
}

// RecordAudit appends a login, logout or password event.
func (s *AccountService) RecordAudit(ctx context.Context, uid, email, ip, action string) error {
	return s.audit.Record(ctx, uid, email, ip, action)
}

// EmailAvailable reports whether email is unused.  The profile store is
// consulted first; the identity provider second, when it is available.
// Identity lookup failures other than not-found are logged and treated as
// available so a provider outage does not block signups.
func (s *AccountService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	_, err := s.profiles.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	if !s.identity.Available() {
		return true, nil
	}
	_, err = s.identity.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, identity.ErrUserNotFound):
		return true, nil
	default:
		s.log.Warn("identity lookup failed during email check", zap.String("email", email), zap.Error(err))
		return true, nil
	}
}

// ListProfiles returns every profile.
func (s *AccountService) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	return s.profiles.List(ctx)
}

// ForceDelete removes email from the identity provider and the profile
// store.  Identity failures are logged and do not stop the profile delete.
func (s *AccountService) ForceDelete(ctx context.Context, email string) (repository.DeleteResult, error) {
	if s.identity.Available() {
		if err := s.deleteIdentity(ctx, email); err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				s.log.Info("no identity account to delete", zap.String("email", email))
			} else {
				s.log.Error("identity delete failed", zap.String("email", email), zap.Error(err))
			}
		}
	}
	return s.profiles.DeleteByEmail(ctx, email)
}

func (s *AccountService) deleteIdentity(ctx context.Context, email string) error {
	acct, err := s.identity.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.identity.DeleteUser(ctx, acct.UID); err != nil {
		return err
	}
	s.log.Info("identity account deleted", zap.String("email", email), zap.String("uid", acct.UID))
	return nil
}
