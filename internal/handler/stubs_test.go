package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/repository"
	"github.com/iliyamo/superta-auth/internal/service"
)

type stubAccounts struct {
	profiles  map[string]model.Profile // uid -> profile
	available bool
	err       error

	upserted []service.ProfileInput
	audits   []string // action
	auditIPs []string
	deleted  []string
	forced   []string
}

func (s *stubAccounts) UpsertProfile(_ context.Context, in service.ProfileInput) (repository.UpsertResult, error) {
	if s.err != nil {
		return repository.UpsertResult{}, s.err
	}
	s.upserted = append(s.upserted, in)
	res := repository.UpsertResult{Acknowledged: true, UpsertedCount: 1}
	for uid, p := range s.profiles {
		if p.Email == in.Email && uid != in.UID {
			delete(s.profiles, uid)
			res.RemovedUIDs = append(res.RemovedUIDs, uid)
		}
	}
	if s.profiles != nil {
		s.profiles[in.UID] = model.Profile{UID: in.UID, Email: in.Email, Country: in.Country, Institution: in.Institution}
	}
	return res, nil
}

func (s *stubAccounts) Profile(_ context.Context, uid string) (model.Profile, error) {
	if s.err != nil {
		return model.Profile{}, s.err
	}
	p, ok := s.profiles[uid]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *stubAccounts) ProfileByEmail(_ context.Context, email string) (model.Profile, error) {
	for _, p := range s.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return model.Profile{}, repository.ErrNotFound
}

func (s *stubAccounts) DeleteByEmail(_ context.Context, email string) (repository.DeleteResult, error) {
	s.deleted = append(s.deleted, email)
	return repository.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

func (s *stubAccounts) RecordAudit(_ context.Context, _, _, ip, action string) error {
	if s.err != nil {
		return s.err
	}
	s.audits = append(s.audits, action)
	s.auditIPs = append(s.auditIPs, ip)
	return nil
}

func (s *stubAccounts) EmailAvailable(context.Context, string) (bool, error) {
	return s.available, s.err
}

func (s *stubAccounts) ListProfiles(context.Context) ([]model.Profile, error) {
	var out []model.Profile
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, s.err
}

func (s *stubAccounts) ForceDelete(_ context.Context, email string) (repository.DeleteResult, error) {
	s.forced = append(s.forced, email)
	for uid, p := range s.profiles {
		if p.Email == email {
			delete(s.profiles, uid)
		}
	}
	return repository.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

type stubTokens struct {
	issueErr  error
	redeem    model.VerificationToken
	redeemErr error
	verified  bool
	email     string
	resetErr  error

	issued      []string // uid
	resetEmails []string
	newPassword string
}

func (s *stubTokens) IssueVerification(_ context.Context, uid, _ string) error {
	s.issued = append(s.issued, uid)
	return s.issueErr
}

func (s *stubTokens) RedeemVerification(context.Context, string) (model.VerificationToken, error) {
	return s.redeem, s.redeemErr
}

func (s *stubTokens) VerificationStatus(context.Context, string) (bool, string, error) {
	return s.verified, s.email, nil
}

func (s *stubTokens) IssueReset(_ context.Context, email, _ string) error {
	s.resetEmails = append(s.resetEmails, email)
	return nil
}

func (s *stubTokens) RedeemReset(_ context.Context, _, newPassword, _ string) error {
	s.newPassword = newPassword
	return s.resetErr
}

type recordingCache struct{ paths []string }

func (r *recordingCache) Invalidate(_ context.Context, paths ...string) {
	r.paths = append(r.paths, paths...)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(e, method, target, body)
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func must200(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
