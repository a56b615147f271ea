package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/superta-auth/internal/config"
	"github.com/iliyamo/superta-auth/internal/middleware"
	"github.com/iliyamo/superta-auth/internal/model"
)

// cachedProfiles mounts the profile routes behind a real redis-backed
// response cache, the way the router does.
func cachedProfiles(t *testing.T, a *stubAccounts) *echo.Echo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := middleware.NewResponseCache(config.CacheConfig{
		Enabled: true,
		Methods: map[string]bool{http.MethodGet: true},
		TTL:     time.Minute,
		Prefix:  "cache:test",
	}, rdb, nil)

	users := NewUserHandler(a, cache, nil, time.Second)
	admin := NewAdminHandler(adminConfig(t), a, cache, nil)
	e := newEcho()
	e.GET("/api/users/:uid", users.GetProfile, cache.Middleware())
	e.POST("/api/users", users.SaveProfile)
	e.POST("/api/debug/delete-user", admin.DebugDeleteUser)
	return e
}

func getProfile(t *testing.T, e *echo.Echo, uid string) (int, string) {
	t.Helper()
	rec := do(t, e, http.MethodGet, "/api/users/"+uid, "")
	return rec.Code, rec.Header().Get("X-Cache")
}

func TestSaveProfile_EvictsCachedProfileOfReplacedUID(t *testing.T) {
	a := &stubAccounts{profiles: map[string]model.Profile{
		"uidB": {UID: "uidB", Email: "a@b.com"},
	}}
	e := cachedProfiles(t, a)

	code, hit := getProfile(t, e, "uidB")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "MISS", hit)
	code, hit = getProfile(t, e, "uidB")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "HIT", hit)

	must200(t, do(t, e, http.MethodPost, "/api/users", `{"uid":"uidA","email":"a@b.com"}`))

	code, _ = getProfile(t, e, "uidB")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = getProfile(t, e, "uidA")
	assert.Equal(t, http.StatusOK, code)
}

func TestDebugDeleteUser_EvictsCachedProfile(t *testing.T) {
	a := &stubAccounts{profiles: map[string]model.Profile{
		"uidC": {UID: "uidC", Email: "c@d.com"},
	}}
	e := cachedProfiles(t, a)

	getProfile(t, e, "uidC")
	_, hit := getProfile(t, e, "uidC")
	assert.Equal(t, "HIT", hit)

	must200(t, do(t, e, http.MethodPost, "/api/debug/delete-user", `{"email":"c@d.com"}`))

	code, hit := getProfile(t, e, "uidC")
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEqual(t, "HIT", hit)
}
