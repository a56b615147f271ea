package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/superta-auth/internal/model"
)

func TestCheckEmail(t *testing.T) {
	a := &stubAccounts{available: true}
	e := newEcho()
	h := NewUserHandler(a, nil, nil, 0)
	e.POST("/api/check-email", h.CheckEmail)

	rec := do(t, e, http.MethodPost, "/api/check-email", `{"email":"a@example.com"}`)
	must200(t, rec)
	assert.JSONEq(t, `{"available":true}`, rec.Body.String())

	rec = do(t, e, http.MethodPost, "/api/check-email", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email is required"}`, rec.Body.String())

	a.err = errors.New("mongo down")
	rec = do(t, e, http.MethodPost, "/api/check-email", `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mongo")
}

func TestSaveProfile(t *testing.T) {
	a := &stubAccounts{}
	cache := &recordingCache{}
	e := newEcho()
	h := NewUserHandler(a, cache, nil, 0)
	e.POST("/api/users", h.SaveProfile)

	rec := do(t, e, http.MethodPost, "/api/users?client_ip=8.8.8.8",
		`{"uid":"u1","email":"a@example.com","country":"HK","institution":"HKU"}`)
	must200(t, rec)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Result  struct {
			UpsertedCount int `json:"upsertedCount"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "User saved/updated", body.Message)
	assert.Equal(t, 1, body.Result.UpsertedCount)

	require.Len(t, a.upserted, 1)
	assert.Equal(t, "8.8.8.8", a.upserted[0].IP)
	assert.Equal(t, "HKU", a.upserted[0].Institution)
	assert.Equal(t, []string{"/api/users/u1"}, cache.paths)

	rec = do(t, e, http.MethodPost, "/api/users", `{"uid":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing required fields"}`, rec.Body.String())
}

func TestGetProfile(t *testing.T) {
	a := &stubAccounts{profiles: map[string]model.Profile{
		"u1": {UID: "u1", Email: "a@example.com", ResetToken: "secret"},
	}}
	e := newEcho()
	h := NewUserHandler(a, nil, nil, 0)
	e.GET("/api/users/:uid", h.GetProfile)

	rec := do(t, e, http.MethodGet, "/api/users/u1", "")
	must200(t, rec)
	assert.Contains(t, rec.Body.String(), `"email":"a@example.com"`)
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = do(t, e, http.MethodGet, "/api/users/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, rec.Body.String())
}

func TestDeleteProfile(t *testing.T) {
	a := &stubAccounts{profiles: map[string]model.Profile{"u1": {UID: "u1", Email: "a@example.com"}}}
	cache := &recordingCache{}
	e := newEcho()
	h := NewUserHandler(a, cache, nil, 0)
	e.DELETE("/api/users/:email", h.DeleteProfile)

	rec := do(t, e, http.MethodDelete, "/api/users/a@example.com", "")
	must200(t, rec)
	assert.Contains(t, rec.Body.String(), "User deleted if existed")
	assert.Equal(t, []string{"a@example.com"}, a.deleted)
	assert.Equal(t, []string{"/api/users/u1"}, cache.paths)
}

func TestRecordLoginAndLogout(t *testing.T) {
	a := &stubAccounts{}
	e := newEcho()
	h := NewUserHandler(a, nil, nil, 0)
	e.POST("/api/logins", h.RecordLogin)
	e.POST("/api/logout", h.RecordLogout)

	req := `{"uid":"u1","email":"a@example.com"}`
	must200(t, do(t, e, http.MethodPost, "/api/logins?client_ip=1.2.3.4", req))
	must200(t, do(t, e, http.MethodPost, "/api/logout", req))
	assert.Equal(t, []string{model.ActionLogin, model.ActionLogout}, a.audits)
	assert.Equal(t, "1.2.3.4", a.auditIPs[0])

	rec := do(t, e, http.MethodPost, "/api/logins", `{"uid":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing uid or email"}`, rec.Body.String())
}
