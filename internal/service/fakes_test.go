package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/superta-auth/internal/identity"
	"github.com/iliyamo/superta-auth/internal/mailer"
	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/queue"
	"github.com/iliyamo/superta-auth/internal/repository"
)

type memProfiles struct {
	mu   sync.Mutex
	docs []model.Profile
	err  error
}

func (m *memProfiles) Upsert(_ context.Context, in repository.ProfileUpsert) (repository.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].UID == in.UID {
			d := &m.docs[i]
			d.Email, d.Country, d.Institution, d.LastIP, d.UpdatedAt = in.Email, in.Country, in.Institution, in.IP, in.Now
			return repository.UpsertResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}
	m.docs = append(m.docs, model.Profile{
		UID: in.UID, Email: in.Email, Country: in.Country, Institution: in.Institution,
		LastIP: in.IP, SignupIP: in.IP, CreatedAt: in.Now, UpdatedAt: in.Now,
	})
	return repository.UpsertResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: in.UID}, nil
}

func (m *memProfiles) DeleteOthersByEmail(_ context.Context, email, uid string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.Profile
	var removed []string
	for _, d := range m.docs {
		if d.Email == email && d.UID != uid {
			removed = append(removed, d.UID)
			continue
		}
		kept = append(kept, d)
	}
	m.docs = kept
	return removed, nil
}

func (m *memProfiles) find(match func(model.Profile) bool) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Profile{}, m.err
	}
	for _, d := range m.docs {
		if match(d) {
			return d, nil
		}
	}
	return model.Profile{}, repository.ErrNotFound
}

func (m *memProfiles) GetByUID(_ context.Context, uid string) (model.Profile, error) {
	return m.find(func(p model.Profile) bool { return p.UID == uid })
}

func (m *memProfiles) GetByEmail(_ context.Context, email string) (model.Profile, error) {
	return m.find(func(p model.Profile) bool { return p.Email == email })
}

func (m *memProfiles) GetByResetToken(_ context.Context, token string) (model.Profile, error) {
	return m.find(func(p model.Profile) bool { return token != "" && p.ResetToken == token })
}

func (m *memProfiles) SetResetToken(_ context.Context, email, token string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].Email == email {
			m.docs[i].ResetToken = token
			m.docs[i].ResetExpires = &expires
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memProfiles) ClearResetToken(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].UID == uid {
			m.docs[i].ResetToken = ""
			m.docs[i].ResetExpires = nil
		}
	}
	return nil
}

func (m *memProfiles) DeleteByEmail(_ context.Context, email string) (repository.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.docs {
		if d.Email == email {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return repository.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
		}
	}
	return repository.DeleteResult{Acknowledged: true}, nil
}

func (m *memProfiles) List(context.Context) ([]model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Profile(nil), m.docs...), nil
}

func (m *memProfiles) byEmail(email string) []model.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Profile
	for _, d := range m.docs {
		if d.Email == email {
			out = append(out, d)
		}
	}
	return out
}

// memTokens mimics the conditional update of VerificationRepo.MarkVerified.
type memTokens struct {
	mu    sync.Mutex
	byUID map[string]model.VerificationToken
}

func newMemTokens() *memTokens { return &memTokens{byUID: map[string]model.VerificationToken{}} }

func (m *memTokens) Upsert(_ context.Context, tok model.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUID[tok.UID] = tok
	return nil
}

func (m *memTokens) GetByToken(_ context.Context, token string) (model.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byUID {
		if t.Token == token {
			return t, nil
		}
	}
	return model.VerificationToken{}, repository.ErrNotFound
}

func (m *memTokens) GetByUID(_ context.Context, uid string) (model.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byUID[uid]
	if !ok {
		return model.VerificationToken{}, repository.ErrNotFound
	}
	return t, nil
}

func (m *memTokens) MarkVerified(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, t := range m.byUID {
		if t.Token == token && !t.Verified {
			t.Verified = true
			t.VerifiedAt = &at
			m.byUID[uid] = t
			return nil
		}
	}
	return repository.ErrConflict
}

type memAudit struct {
	mu   sync.Mutex
	recs []model.AuditRecord
	err  error
}

func (m *memAudit) Insert(_ context.Context, rec model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.recs {
		out = append(out, r.Action)
	}
	return out
}

type memEmailLog struct {
	mu   sync.Mutex
	recs []model.SentEmail
	err  error
}

func (m *memEmailLog) Insert(_ context.Context, rec model.SentEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("<%d@test>", len(f.sent)), nil
}

type fakeIdentity struct {
	users     map[string]string // email -> uid
	lookupErr error
	passwords map[string]string // uid -> password
	deleted   []string
}

func (f *fakeIdentity) Available() bool { return true }

func (f *fakeIdentity) GetUserByEmail(_ context.Context, email string) (identity.Account, error) {
	if f.lookupErr != nil {
		return identity.Account{}, f.lookupErr
	}
	uid, ok := f.users[email]
	if !ok {
		return identity.Account{}, identity.ErrUserNotFound
	}
	return identity.Account{UID: uid, Email: email}, nil
}

func (f *fakeIdentity) UpdatePassword(_ context.Context, uid, password string) error {
	if f.passwords == nil {
		f.passwords = map[string]string{}
	}
	f.passwords[uid] = password
	return nil
}

func (f *fakeIdentity) DeleteUser(_ context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AuditEvent
	err    error
}

func (r *recordingPublisher) PublishAudit(_ context.Context, ev queue.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

var errBoom = errors.New("boom")

type fixture struct {
	profiles *memProfiles
	tokens   *memTokens
	audit    *memAudit
	emails   *memEmailLog
	sender   *fakeSender
	pub      *recordingPublisher
	clock    time.Time
	svc      *Services
}

func newFixture(id identity.Provider) *fixture {
	f := &fixture{
		profiles: &memProfiles{},
		tokens:   newMemTokens(),
		audit:    &memAudit{},
		emails:   &memEmailLog{},
		sender:   &fakeSender{},
		pub:      &recordingPublisher{},
		clock:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	n := 0
	f.svc = New(Deps{
		Profiles:   f.profiles,
		Tokens:     f.tokens,
		Audit:      f.audit,
		EmailLog:   f.emails,
		Identity:   id,
		Sender:     f.sender,
		Publisher:  f.pub,
		WebsiteURL: "https://app.example.com/",
		Now:        func() time.Time { return f.clock },
		NewToken: func() (string, error) {
			n++
			return fmt.Sprintf("tok%02d", n), nil
		},
	})
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }
