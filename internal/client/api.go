// Package client talks to the auth backend the way the sign-in form does:
// a typed HTTP client for every endpoint, an identity-provider sign-in
// client and the form controller that sequences them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/repository"
)

const defaultHTTPTimeout = 10 * time.Second

// APIError is a non-2xx answer from the backend.  Message is the "error"
// field of the body when there is one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// API is a typed client for the backend's HTTP interface.
type API struct {
	BaseURL string
	HTTP    *http.Client
	// AdminToken is sent as a bearer token on /api/admin and /api/debug calls.
	AdminToken string
}

func NewAPI(baseURL string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// ----- responses -----

type SaveProfileResult struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Result  repository.UpsertResult `json:"result"`
}

type DeleteProfileResult struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Result  repository.DeleteResult `json:"result"`
}

type VerifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Email   string `json:"email"`
}

type VerificationStatus struct {
	Verified bool   `json:"verified"`
	Email    string `json:"email,omitempty"`
}

type PasswordVerdict struct {
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
	Strength string `json:"strength"`
}

type AdminToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type UserList struct {
	Count int             `json:"count"`
	Users []model.Profile `json:"users"`
}

type message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ----- endpoints -----

// CheckEmail: POST /api/check-email
func (a *API) CheckEmail(ctx context.Context, email string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	err := a.do(ctx, http.MethodPost, "/api/check-email", map[string]string{"email": email}, &out)
	return out.Available, err
}

// SaveProfile: POST /api/users
func (a *API) SaveProfile(ctx context.Context, uid, email, country, institution string) (SaveProfileResult, error) {
	var out SaveProfileResult
	err := a.do(ctx, http.MethodPost, "/api/users", map[string]string{
		"uid":         uid,
		"email":       email,
		"country":     country,
		"institution": institution,
	}, &out)
	return out, err
}

// Profile: GET /api/users/:uid.  A missing profile is an *APIError with
// status 404.
func (a *API) Profile(ctx context.Context, uid string) (model.Profile, error) {
	var out struct {
		User model.Profile `json:"user"`
	}
	err := a.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(uid), nil, &out)
	return out.User, err
}

// DeleteProfile: DELETE /api/users/:email
func (a *API) DeleteProfile(ctx context.Context, email string) (DeleteProfileResult, error) {
	var out DeleteProfileResult
	err := a.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(email), nil, &out)
	return out, err
}

// RecordLogin: POST /api/logins
func (a *API) RecordLogin(ctx context.Context, uid, email string) error {
	return a.do(ctx, http.MethodPost, "/api/logins", map[string]string{"uid": uid, "email": email}, nil)
}

// RecordLogout: POST /api/logout
func (a *API) RecordLogout(ctx context.Context, uid, email string) error {
	return a.do(ctx, http.MethodPost, "/api/logout", map[string]string{"uid": uid, "email": email}, nil)
}

// SendVerification: POST /api/send-verification
func (a *API) SendVerification(ctx context.Context, uid, email string) error {
	return a.do(ctx, http.MethodPost, "/api/send-verification", map[string]string{"uid": uid, "email": email}, nil)
}

// VerifyEmail: GET /api/verify-email?token=
func (a *API) VerifyEmail(ctx context.Context, token string) (VerifyResult, error) {
	var out VerifyResult
	err := a.do(ctx, http.MethodGet, "/api/verify-email?token="+url.QueryEscape(token), nil, &out)
	return out, err
}

// VerificationStatus: GET /api/verification-status/:uid
func (a *API) VerificationStatus(ctx context.Context, uid string) (VerificationStatus, error) {
	var out VerificationStatus
	err := a.do(ctx, http.MethodGet, "/api/verification-status/"+url.PathEscape(uid), nil, &out)
	return out, err
}

// ForgotPassword: POST /api/forgot-password.  Returns the server's message.
func (a *API) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out message
	err := a.do(ctx, http.MethodPost, "/api/forgot-password", map[string]string{"email": email}, &out)
	return out.Message, err
}

// ResetPassword: POST /api/reset-password
func (a *API) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	var out message
	err := a.do(ctx, http.MethodPost, "/api/reset-password", map[string]string{"token": token, "newPassword": newPassword}, &out)
	return out.Message, err
}

// CheckPassword: POST /api/check-password
func (a *API) CheckPassword(ctx context.Context, pw string) (PasswordVerdict, error) {
	var out PasswordVerdict
	err := a.do(ctx, http.MethodPost, "/api/check-password", map[string]string{"password": pw}, &out)
	return out, err
}

// AdminLogin: POST /api/admin/login.  On success the token is also kept in
// AdminToken for the admin calls that follow.
func (a *API) AdminLogin(ctx context.Context, email, pw string) (AdminToken, error) {
	var out struct {
		Access AdminToken `json:"access"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/admin/login", map[string]string{"email": email, "password": pw}, &out); err != nil {
		return AdminToken{}, err
	}
	a.AdminToken = out.Access.Token
	return out.Access, nil
}

// ListUsers: GET /api/admin/users
func (a *API) ListUsers(ctx context.Context) (UserList, error) {
	var out UserList
	err := a.do(ctx, http.MethodGet, "/api/admin/users", nil, &out)
	return out, err
}

// DebugDeleteUser: POST /api/debug/delete-user
func (a *API) DebugDeleteUser(ctx context.Context, email string) error {
	return a.do(ctx, http.MethodPost, "/api/debug/delete-user", map[string]string{"email": email}, nil)
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if a.AdminToken != "" && (strings.HasPrefix(path, "/api/admin/") || strings.HasPrefix(path, "/api/debug/")) {
		req.Header.Set("Authorization", "Bearer "+a.AdminToken)
	}

	hc := a.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
