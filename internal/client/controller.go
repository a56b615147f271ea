package client

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/password"
)

// State is where the sign-in form currently is.
type State int

const (
	Anonymous State = iota
	Submitting
	AuthenticatedUnverified
	AuthenticatedVerified
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Submitting:
		return "submitting"
	case AuthenticatedUnverified:
		return "authenticated-unverified"
	case AuthenticatedVerified:
		return "authenticated-verified"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// VerificationSource says who mails verification links and decides whether
// an address is verified.
type VerificationSource int

const (
	// VerifyWithBackend uses the backend's SMTP tokens and
	// /api/verification-status.
	VerifyWithBackend VerificationSource = iota
	// VerifyWithProvider trusts the identity provider's emailVerified flag.
	// The Authenticator must implement ProviderVerifier.
	VerifyWithProvider
)

// ParseVerificationSource maps an EMAIL_SERVICE value, "SMTP" or
// "FIREBASE", to its source.  Empty means SMTP.
func ParseVerificationSource(s string) (VerificationSource, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "SMTP":
		return VerifyWithBackend, nil
	case "FIREBASE":
		return VerifyWithProvider, nil
	}
	return VerifyWithBackend, fmt.Errorf("unknown email service %q (want SMTP or FIREBASE)", s)
}

var errNoProviderVerifier = errors.New("identity provider cannot verify email addresses")

// DefaultPollInterval is how often WaitForVerification asks the backend.
const DefaultPollInterval = 3 * time.Second

// notSet fills the profile when it cannot be loaded after login.
const notSet = "Not set"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Backend is the part of API the controller drives.
type Backend interface {
	CheckEmail(ctx context.Context, email string) (bool, error)
	SaveProfile(ctx context.Context, uid, email, country, institution string) (SaveProfileResult, error)
	Profile(ctx context.Context, uid string) (model.Profile, error)
	RecordLogin(ctx context.Context, uid, email string) error
	RecordLogout(ctx context.Context, uid, email string) error
	SendVerification(ctx context.Context, uid, email string) error
	VerificationStatus(ctx context.Context, uid string) (VerificationStatus, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
}

// SignupForm is what the signup form collects.
type SignupForm struct {
	Email       string
	Password    string
	Confirm     string
	Country     string
	Institution string
}

// Controller sequences identity-provider and backend calls for the login
// and signup forms.  It is safe for concurrent use; a second submission
// while one is in flight fails with ErrBusy.
type Controller struct {
	Backend  Backend
	Identity Authenticator
	Log      *zap.Logger
	// PollInterval drives WaitForVerification; DefaultPollInterval when zero.
	PollInterval time.Duration
	Verification VerificationSource

	mu      sync.Mutex
	state   State
	prev    State
	session Session
	profile model.Profile
}

func NewController(b Backend, id Authenticator, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{Backend: b, Identity: id, Log: log}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the signed-in user.  The zero Session means nobody.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) Profile() model.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// begin moves to Submitting.  done restores the previous state unless the
// flow already settled on a new one.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Submitting {
		return ErrBusy
	}
	c.prev = c.state
	c.state = Submitting
	return nil
}

func (c *Controller) settle(s State, sess Session, p model.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	c.session = sess
	c.profile = p
}

func (c *Controller) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Submitting {
		c.state = c.prev
	}
}

// ValidateSignup runs the checks the form makes before submitting: the
// password policy, the confirmation and the availability of the address.
// An availability lookup that fails is not held against the user.
func (c *Controller) ValidateSignup(ctx context.Context, f SignupForm) error {
	if err := password.Check(f.Password); err != nil {
		return err
	}
	if f.Password != f.Confirm {
		return ErrPasswordMismatch
	}
	email := strings.TrimSpace(f.Email)
	if !emailPattern.MatchString(email) {
		return nil
	}
	ok, err := c.Backend.CheckEmail(ctx, email)
	if err != nil {
		c.Log.Warn("email availability check failed", zap.String("email", email), zap.Error(err))
		return nil
	}
	if !ok {
		return ErrEmailInUse
	}
	return nil
}

// Signup creates the provider account, stores the profile, requests the
// verification mail and signs out again.  The user has to verify before
// Login succeeds.
func (c *Controller) Signup(ctx context.Context, f SignupForm) error {
	if err := c.ValidateSignup(ctx, f); err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}

	sess, err := c.Identity.SignUp(ctx, strings.TrimSpace(f.Email), f.Password)
	if err != nil {
		c.abort()
		return err
	}
	log := c.Log.With(zap.String("uid", sess.UID))

	if _, err := c.Backend.SaveProfile(ctx, sess.UID, sess.Email, f.Country, f.Institution); err != nil {
		log.Error("save profile failed", zap.Error(err))
	}
	if err := c.sendVerification(ctx, sess); err != nil {
		_ = c.Identity.SignOut(ctx)
		c.settle(Anonymous, Session{}, model.Profile{})
		return fmt.Errorf("send verification: %w", err)
	}
	if err := c.Identity.SignOut(ctx); err != nil {
		log.Warn("sign out after signup failed", zap.Error(err))
	}
	c.settle(Anonymous, Session{}, model.Profile{})
	log.Info("signup complete, verification sent")
	return nil
}

// Login signs in with the provider and checks verification with the
// backend, or with the provider under VerifyWithProvider.  An unverified user stays signed in as AuthenticatedUnverified
// and gets ErrNotVerified; WaitForVerification can finish the login later.
func (c *Controller) Login(ctx context.Context, email, pw string) error {
	if pw == "" {
		return &AuthError{Code: "auth/invalid-credential", Reason: "MISSING_PASSWORD"}
	}
	if err := c.begin(); err != nil {
		return err
	}

	sess, err := c.Identity.SignIn(ctx, strings.TrimSpace(email), pw)
	if err != nil {
		c.abort()
		return err
	}

	ok, err := c.verified(ctx, sess)
	if err != nil {
		_ = c.Identity.SignOut(ctx)
		c.settle(Anonymous, Session{}, model.Profile{})
		return fmt.Errorf("verification status: %w", err)
	}
	if !ok {
		c.settle(AuthenticatedUnverified, sess, model.Profile{})
		return ErrNotVerified
	}

	c.finishLogin(ctx, sess)
	return nil
}

func (c *Controller) providerVerifier() (ProviderVerifier, error) {
	pv, ok := c.Identity.(ProviderVerifier)
	if !ok {
		return nil, errNoProviderVerifier
	}
	return pv, nil
}

func (c *Controller) sendVerification(ctx context.Context, sess Session) error {
	if c.Verification == VerifyWithProvider {
		pv, err := c.providerVerifier()
		if err != nil {
			return err
		}
		return pv.SendEmailVerification(ctx, sess)
	}
	return c.Backend.SendVerification(ctx, sess.UID, sess.Email)
}

func (c *Controller) verified(ctx context.Context, sess Session) (bool, error) {
	if c.Verification == VerifyWithProvider {
		pv, err := c.providerVerifier()
		if err != nil {
			return false, err
		}
		return pv.EmailVerified(ctx, sess)
	}
	st, err := c.Backend.VerificationStatus(ctx, sess.UID)
	return st.Verified, err
}

// finishLogin records the login and loads the profile.  Neither failure
// keeps the user out.
func (c *Controller) finishLogin(ctx context.Context, sess Session) {
	log := c.Log.With(zap.String("uid", sess.UID))
	if err := c.Backend.RecordLogin(ctx, sess.UID, sess.Email); err != nil {
		log.Warn("record login failed", zap.Error(err))
	}
	p, err := c.Backend.Profile(ctx, sess.UID)
	if err != nil {
		log.Warn("load profile failed", zap.Error(err))
		p = model.Profile{UID: sess.UID, Email: sess.Email, Country: notSet, Institution: notSet}
	}
	c.settle(AuthenticatedVerified, sess, p)
}

// WaitForVerification polls the verification status of the signed-in,
// unverified user until it is reported verified or ctx ends.  On
// success the login is completed.
func (c *Controller) WaitForVerification(ctx context.Context) error {
	c.mu.Lock()
	state, sess := c.state, c.session
	c.mu.Unlock()
	if state == AuthenticatedVerified {
		return nil
	}
	if state != AuthenticatedUnverified {
		return errors.New("no unverified session to wait for")
	}

	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	err := retry.Do(ctx, retry.NewConstant(interval), func(ctx context.Context) error {
		ok, err := c.verified(ctx, sess)
		if err != nil {
			c.Log.Debug("verification poll failed", zap.String("uid", sess.UID), zap.Error(err))
			return retry.RetryableError(err)
		}
		if !ok {
			return retry.RetryableError(ErrNotVerified)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	still := c.state == AuthenticatedUnverified && c.session.UID == sess.UID
	c.mu.Unlock()
	if !still {
		return errors.New("session changed while waiting for verification")
	}
	c.finishLogin(ctx, sess)
	return nil
}

// Logout records the logout for a verified session and signs out.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	state, sess := c.state, c.session
	c.mu.Unlock()

	if state == AuthenticatedVerified {
		if err := c.Backend.RecordLogout(ctx, sess.UID, sess.Email); err != nil {
			c.Log.Warn("record logout failed", zap.String("uid", sess.UID), zap.Error(err))
		}
	}
	err := c.Identity.SignOut(ctx)
	c.settle(Anonymous, Session{}, model.Profile{})
	return err
}

// ForgotPassword asks the backend to mail a reset link and returns the
// message to show.
func (c *Controller) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrMissingEmail
	}
	return c.Backend.ForgotPassword(ctx, email)
}

// Message is the text the form shows for err.  Validation errors and
// backend rejections carry their own copy; provider errors go through
// FriendlyError.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if password.IsPolicyError(err) {
		return err.Error()
	}
	for _, e := range []error{ErrPasswordMismatch, ErrEmailInUse, ErrNotVerified, ErrMissingEmail, ErrBusy} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	var ae *APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return FriendlyError(err)
}
