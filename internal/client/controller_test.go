package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/password"
)

const goodPassword = "Tr0ub4dor&Zebra"

type fakeBackend struct {
	mu sync.Mutex

	available    bool
	checkErr     error
	saveErr      error
	sendErr      error
	profileErr   error
	statusErr    error
	verifiedAt   int // status polls before verified; -1 never
	polls        int
	calls        []string
	profile      model.Profile
	forgotResult string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) CheckEmail(_ context.Context, _ string) (bool, error) {
	f.record("check-email")
	return f.available, f.checkErr
}

func (f *fakeBackend) SaveProfile(_ context.Context, uid, _, _, _ string) (SaveProfileResult, error) {
	f.record("save-profile:" + uid)
	return SaveProfileResult{Success: f.saveErr == nil}, f.saveErr
}

func (f *fakeBackend) Profile(_ context.Context, _ string) (model.Profile, error) {
	f.record("profile")
	return f.profile, f.profileErr
}

func (f *fakeBackend) RecordLogin(_ context.Context, uid, _ string) error {
	f.record("login:" + uid)
	return nil
}

func (f *fakeBackend) RecordLogout(_ context.Context, uid, _ string) error {
	f.record("logout:" + uid)
	return nil
}

func (f *fakeBackend) SendVerification(_ context.Context, uid, _ string) error {
	f.record("send-verification:" + uid)
	return f.sendErr
}

func (f *fakeBackend) VerificationStatus(_ context.Context, _ string) (VerificationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "status")
	if f.statusErr != nil {
		return VerificationStatus{}, f.statusErr
	}
	f.polls++
	ok := f.verifiedAt >= 0 && f.polls > f.verifiedAt
	return VerificationStatus{Verified: ok}, nil
}

func (f *fakeBackend) ForgotPassword(_ context.Context, _ string) (string, error) {
	f.record("forgot")
	return f.forgotResult, nil
}

type fakeAuth struct {
	mu       sync.Mutex
	err      error
	signOuts int
	block    chan struct{}
}

func (a *fakeAuth) SignUp(ctx context.Context, email, _ string) (Session, error) {
	return a.sign(ctx, email)
}

func (a *fakeAuth) SignIn(ctx context.Context, email, _ string) (Session, error) {
	return a.sign(ctx, email)
}

func (a *fakeAuth) sign(_ context.Context, email string) (Session, error) {
	if a.block != nil {
		<-a.block
	}
	if a.err != nil {
		return Session{}, a.err
	}
	return Session{UID: "uid-1", Email: email, IDToken: "id"}, nil
}

func (a *fakeAuth) SignOut(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signOuts++
	return nil
}

func newController(b *fakeBackend, a *fakeAuth) *Controller {
	c := NewController(b, a, nil)
	c.PollInterval = time.Millisecond
	return c
}

func signupForm() SignupForm {
	return SignupForm{Email: "a@b.com", Password: goodPassword, Confirm: goodPassword, Country: "Hong Kong", Institution: "HKU"}
}

func TestSignup_HappyPath(t *testing.T) {
	b := &fakeBackend{available: true}
	a := &fakeAuth{}
	c := newController(b, a)

	require.NoError(t, c.Signup(context.Background(), signupForm()))
	assert.Equal(t, []string{"check-email", "save-profile:uid-1", "send-verification:uid-1"}, b.Calls())
	assert.Equal(t, 1, a.signOuts)
	assert.Equal(t, Anonymous, c.State())
	assert.Empty(t, c.Session().UID)
}

func TestSignup_ClientSideChecks(t *testing.T) {
	cases := []struct {
		name string
		form func(*SignupForm)
		b    *fakeBackend
		want error
	}{
		{"weak password", func(f *SignupForm) { f.Password, f.Confirm = "short", "short" }, &fakeBackend{available: true}, password.ErrTooShort},
		{"mismatch", func(f *SignupForm) { f.Confirm = goodPassword + "x" }, &fakeBackend{available: true}, ErrPasswordMismatch},
		{"email taken", func(*SignupForm) {}, &fakeBackend{available: false}, ErrEmailInUse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &fakeAuth{}
			c := newController(tc.b, a)
			f := signupForm()
			tc.form(&f)

			err := c.Signup(context.Background(), f)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.want.Error(), Message(err))
			assert.NotContains(t, tc.b.Calls(), "save-profile:uid-1")
			assert.Equal(t, Anonymous, c.State())
		})
	}
}

func TestSignup_AvailabilityLookupFailureDoesNotBlock(t *testing.T) {
	b := &fakeBackend{checkErr: errors.New("offline")}
	c := newController(b, &fakeAuth{})

	require.NoError(t, c.Signup(context.Background(), signupForm()))
}

func TestSignup_MalformedEmailSkipsLookup(t *testing.T) {
	b := &fakeBackend{}
	a := &fakeAuth{err: &AuthError{Code: "auth/invalid-email"}}
	c := newController(b, a)
	f := signupForm()
	f.Email = "not-an-email"

	err := c.Signup(context.Background(), f)
	require.Error(t, err)
	assert.Equal(t, "Please enter a valid email address.", Message(err))
	assert.Empty(t, b.Calls())
}

func TestSignup_ProviderRejects(t *testing.T) {
	b := &fakeBackend{available: true}
	c := newController(b, &fakeAuth{err: &AuthError{Code: "auth/email-already-in-use"}})

	err := c.Signup(context.Background(), signupForm())
	require.Error(t, err)
	assert.Equal(t, "This email is already registered.", Message(err))
	assert.Equal(t, Anonymous, c.State())
}

func TestSignup_VerificationSendFails(t *testing.T) {
	b := &fakeBackend{available: true, sendErr: &APIError{Status: 500, Message: "Failed to send verification email"}}
	a := &fakeAuth{}
	c := newController(b, a)

	err := c.Signup(context.Background(), signupForm())
	require.Error(t, err)
	assert.Equal(t, "Failed to send verification email", Message(err))
	assert.Equal(t, 1, a.signOuts)
	assert.Equal(t, Anonymous, c.State())
}

func TestLogin_Verified(t *testing.T) {
	b := &fakeBackend{verifiedAt: 0, profile: model.Profile{UID: "uid-1", Country: "Hong Kong"}}
	c := newController(b, &fakeAuth{})

	require.NoError(t, c.Login(context.Background(), "a@b.com", goodPassword))
	assert.Equal(t, AuthenticatedVerified, c.State())
	assert.Equal(t, "Hong Kong", c.Profile().Country)
	assert.Equal(t, []string{"status", "login:uid-1", "profile"}, b.Calls())
}

func TestLogin_ProfileMissingFallsBack(t *testing.T) {
	b := &fakeBackend{verifiedAt: 0, profileErr: &APIError{Status: 404}}
	c := newController(b, &fakeAuth{})

	require.NoError(t, c.Login(context.Background(), "a@b.com", goodPassword))
	assert.Equal(t, "Not set", c.Profile().Country)
	assert.Equal(t, "Not set", c.Profile().Institution)
}

func TestLogin_UnverifiedThenWait(t *testing.T) {
	b := &fakeBackend{verifiedAt: 3}
	c := newController(b, &fakeAuth{})

	err := c.Login(context.Background(), "a@b.com", goodPassword)
	require.ErrorIs(t, err, ErrNotVerified)
	assert.Equal(t, "Please verify your email address before logging in.", Message(err))
	assert.Equal(t, AuthenticatedUnverified, c.State())
	assert.NotContains(t, b.Calls(), "login:uid-1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitForVerification(ctx))
	assert.Equal(t, AuthenticatedVerified, c.State())
	assert.Contains(t, b.Calls(), "login:uid-1")
}

func TestWaitForVerification_StopsWithContext(t *testing.T) {
	b := &fakeBackend{verifiedAt: -1}
	c := newController(b, &fakeAuth{})
	require.ErrorIs(t, c.Login(context.Background(), "a@b.com", goodPassword), ErrNotVerified)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := c.WaitForVerification(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, AuthenticatedUnverified, c.State())
}

func TestWaitForVerification_NeedsSession(t *testing.T) {
	c := newController(&fakeBackend{}, &fakeAuth{})
	require.Error(t, c.WaitForVerification(context.Background()))
}

func TestLogin_StatusFailureSignsOut(t *testing.T) {
	b := &fakeBackend{statusErr: errors.New("boom")}
	a := &fakeAuth{}
	c := newController(b, a)

	err := c.Login(context.Background(), "a@b.com", goodPassword)
	require.Error(t, err)
	assert.Equal(t, GenericMessage, Message(err))
	assert.Equal(t, 1, a.signOuts)
	assert.Equal(t, Anonymous, c.State())
}

func TestLogin_EmptyPassword(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b, &fakeAuth{})

	err := c.Login(context.Background(), "a@b.com", "")
	require.Error(t, err)
	assert.Empty(t, b.Calls())
}

func TestLogin_RejectsSecondSubmission(t *testing.T) {
	a := &fakeAuth{block: make(chan struct{})}
	c := newController(&fakeBackend{verifiedAt: 0}, a)

	done := make(chan error, 1)
	go func() { done <- c.Login(context.Background(), "a@b.com", goodPassword) }()

	require.Eventually(t, func() bool { return c.State() == Submitting }, time.Second, time.Millisecond)
	require.ErrorIs(t, c.Login(context.Background(), "a@b.com", goodPassword), ErrBusy)

	close(a.block)
	require.NoError(t, <-done)
	assert.Equal(t, AuthenticatedVerified, c.State())
}

func TestLogout(t *testing.T) {
	b := &fakeBackend{verifiedAt: 0}
	a := &fakeAuth{}
	c := newController(b, a)
	require.NoError(t, c.Login(context.Background(), "a@b.com", goodPassword))

	require.NoError(t, c.Logout(context.Background()))
	assert.Contains(t, b.Calls(), "logout:uid-1")
	assert.Equal(t, 1, a.signOuts)
	assert.Equal(t, Anonymous, c.State())
	assert.Equal(t, Session{}, c.Session())
}

func TestForgotPassword(t *testing.T) {
	b := &fakeBackend{forgotResult: "If that email exists, a reset link has been sent."}
	c := newController(b, &fakeAuth{})

	_, err := c.ForgotPassword(context.Background(), "  ")
	require.ErrorIs(t, err, ErrMissingEmail)

	msg, err := c.ForgotPassword(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "If that email exists, a reset link has been sent.", msg)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "authenticated-unverified", AuthenticatedUnverified.String())
	assert.Equal(t, "State(9)", State(9).String())
}

// providerAuth tracks verification on the identity side.
type providerAuth struct {
	fakeAuth
	verifiedAt int // lookups before verified
	lookups    int
	sent       []string
}

func (p *providerAuth) EmailVerified(_ context.Context, sess Session) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups++
	return p.lookups > p.verifiedAt, nil
}

func (p *providerAuth) SendEmailVerification(_ context.Context, sess Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sess.UID)
	return nil
}

func TestParseVerificationSource(t *testing.T) {
	for in, want := range map[string]VerificationSource{"": VerifyWithBackend, "smtp": VerifyWithBackend, " FIREBASE ": VerifyWithProvider} {
		got, err := ParseVerificationSource(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseVerificationSource("postal")
	assert.Error(t, err)
}

func TestSignup_ProviderSendsVerification(t *testing.T) {
	b := &fakeBackend{available: true}
	a := &providerAuth{}
	c := NewController(b, a, nil)
	c.Verification = VerifyWithProvider

	require.NoError(t, c.Signup(context.Background(), signupForm()))
	assert.Equal(t, []string{"uid-1"}, a.sent)
	assert.Equal(t, []string{"check-email", "save-profile:uid-1"}, b.Calls())
	assert.Equal(t, 1, a.signOuts)
}

func TestLogin_ProviderDecidesVerification(t *testing.T) {
	b := &fakeBackend{verifiedAt: -1}
	a := &providerAuth{verifiedAt: 2}
	c := NewController(b, a, nil)
	c.Verification = VerifyWithProvider
	c.PollInterval = time.Millisecond

	require.ErrorIs(t, c.Login(context.Background(), "a@b.com", goodPassword), ErrNotVerified)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitForVerification(ctx))
	assert.Equal(t, AuthenticatedVerified, c.State())
	assert.NotContains(t, b.Calls(), "status")
	assert.Contains(t, b.Calls(), "login:uid-1")
}

func TestLogin_ProviderModeNeedsVerifier(t *testing.T) {
	a := &fakeAuth{}
	c := newController(&fakeBackend{verifiedAt: 0}, a)
	c.Verification = VerifyWithProvider

	err := c.Login(context.Background(), "a@b.com", goodPassword)
	require.ErrorIs(t, err, errNoProviderVerifier)
	assert.Equal(t, 1, a.signOuts)
	assert.Equal(t, Anonymous, c.State())
}
