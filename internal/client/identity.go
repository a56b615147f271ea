package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultIdentityEndpoint = "https://identitytoolkit.googleapis.com"

// Session is a signed-in identity-provider user.
type Session struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
}

// Authenticator creates and signs in identity-provider accounts.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context) error
}

// AuthError is a provider rejection.  Code uses the provider's web SDK
// naming, e.g. "auth/email-already-in-use", so FriendlyError can match it.
type AuthError struct {
	Code   string
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("identity: %s (%s)", e.Code, e.Reason)
}

// providerCodes maps REST error reasons to SDK codes.
var providerCodes = map[string]string{
	"EMAIL_EXISTS":                "auth/email-already-in-use",
	"INVALID_LOGIN_CREDENTIALS":   "auth/invalid-credential",
	"EMAIL_NOT_FOUND":             "auth/user-not-found",
	"INVALID_PASSWORD":            "auth/wrong-password",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "auth/too-many-requests",
	"INVALID_EMAIL":               "auth/invalid-email",
	"INVALID_ID_TOKEN":            "auth/invalid-user-token",
	"USER_NOT_FOUND":              "auth/user-not-found",
	"WEAK_PASSWORD":               "auth/weak-password",
	"USER_DISABLED":               "auth/user-disabled",
}

// ProviderVerifier is implemented by authenticators that track email
// verification themselves.  The controller uses it when verification is
// delegated to the identity provider.
type ProviderVerifier interface {
	EmailVerified(ctx context.Context, sess Session) (bool, error)
	SendEmailVerification(ctx context.Context, sess Session) error
}

// IdentityREST signs users in against the Identity Toolkit REST API with a
// web API key.  It keeps no state; SignOut only drops the local session.
type IdentityREST struct {
	APIKey   string
	Endpoint string
	HTTP     *http.Client
}

func NewIdentityREST(apiKey string) *IdentityREST {
	return &IdentityREST{
		APIKey:   apiKey,
		Endpoint: defaultIdentityEndpoint,
		HTTP:     &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (r *IdentityREST) SignUp(ctx context.Context, email, password string) (Session, error) {
	return r.credentials(ctx, "accounts:signUp", email, password)
}

func (r *IdentityREST) SignIn(ctx context.Context, email, password string) (Session, error) {
	return r.credentials(ctx, "accounts:signInWithPassword", email, password)
}

func (r *IdentityREST) SignOut(context.Context) error { return nil }

// EmailVerified asks the provider for the account behind sess.IDToken.
func (r *IdentityREST) EmailVerified(ctx context.Context, sess Session) (bool, error) {
	var out struct {
		Users []struct {
			LocalID       string `json:"localId"`
			EmailVerified bool   `json:"emailVerified"`
		} `json:"users"`
	}
	if err := r.post(ctx, "accounts:lookup", map[string]string{"idToken": sess.IDToken}, &out); err != nil {
		return false, err
	}
	if len(out.Users) == 0 {
		return false, &AuthError{Code: "auth/user-not-found", Reason: "USER_NOT_FOUND"}
	}
	return out.Users[0].EmailVerified, nil
}

// SendEmailVerification has the provider mail its own verification link.
func (r *IdentityREST) SendEmailVerification(ctx context.Context, sess Session) error {
	return r.post(ctx, "accounts:sendOobCode",
		map[string]string{"requestType": "VERIFY_EMAIL", "idToken": sess.IDToken}, nil)
}

type identityReq struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type identityResp struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

type identityErr struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r *IdentityREST) credentials(ctx context.Context, method, email, password string) (Session, error) {
	var out identityResp
	if err := r.post(ctx, method, identityReq{Email: email, Password: password, ReturnSecureToken: true}, &out); err != nil {
		return Session{}, err
	}
	return Session{UID: out.LocalID, Email: out.Email, IDToken: out.IDToken, RefreshToken: out.RefreshToken}, nil
}

// post sends in to /v1/<method> and decodes a successful answer into out.
// Provider rejections become *AuthError.
func (r *IdentityREST) post(ctx context.Context, method string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = defaultIdentityEndpoint
	}
	u := strings.TrimRight(endpoint, "/") + "/v1/" + method + "?key=" + url.QueryEscape(r.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	hc := r.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("identity %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var e identityErr
	if err := json.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("identity %s: status %d: %w", method, resp.StatusCode, err)
	}
	if e.Error != nil || resp.StatusCode != http.StatusOK {
		reason := ""
		if e.Error != nil {
			reason = e.Error.Message
		}
		return &AuthError{Code: codeFor(reason), Reason: reason}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// codeFor maps a REST reason such as "WEAK_PASSWORD : Password should be at
// least 6 characters" to its SDK code.
func codeFor(reason string) string {
	key := reason
	if i := strings.IndexAny(key, " :"); i >= 0 {
		key = key[:i]
	}
	if code, ok := providerCodes[key]; ok {
		return code
	}
	return "auth/internal-error"
}
