package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

type stubIdentities map[int64]*domain.User

func (s stubIdentities) ResolveIdentity(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, apperrors.NewNotFound("Not found this user")
}

func newAuthApp(tm *TokenManager, users IdentityStore) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm, users)
	app.Get("/me", mw.Handle, RequireUser(), func(c *fiber.Ctx) error {
		u, _ := CurrentUser(c)
		return c.SendString(u.Username)
	})
	app.Get("/admin", mw.Handle, RequireSuperuser(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func bearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)
	hashed, err := h.Hash("p1")
	require.NoError(t, err)

	assert.NotEqual(t, "p1", hashed)
	assert.True(t, h.Verify("p1", hashed))
	assert.False(t, h.Verify("p2", hashed))
	assert.False(t, h.Verify("p1", ""))

	_, err = h.Hash("")
	assert.Error(t, err)
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, 10, NewBcryptHasher(0).cost)
	assert.Equal(t, 10, NewBcryptHasher(99).cost)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	tok, err := tm.GenerateToken(&domain.User{ID: 42, IsSuperuser: true})
	require.NoError(t, err)
	assert.Equal(t, int64(42), tok.UserID)

	claims, err := tm.ParseToken(tok.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.True(t, claims.Superuser)
}

func TestTokenManager_RejectsExpiredAndForeign(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	tok, err := tm.GenerateToken(&domain.User{ID: 1})
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(tok.Token)
	assert.Error(t, err)

	other := NewTokenManager("other", time.Minute)
	_, err = other.ParseToken(tok.Token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	users := stubIdentities{
		1: {ID: 1, Username: "alice"},
		2: {ID: 2, Username: "root", IsSuperuser: true},
	}
	app := newAuthApp(tm, users)

	aliceTok, _ := tm.GenerateToken(users[1])
	rootTok, _ := tm.GenerateToken(users[2])
	ghostTok, _ := tm.GenerateToken(&domain.User{ID: 99})

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"no header", httptest.NewRequest("GET", "/me", nil), http.StatusUnauthorized},
		{"bad scheme", func() *http.Request {
			r := httptest.NewRequest("GET", "/me", nil)
			r.Header.Set("Authorization", "Basic abc")
			return r
		}(), http.StatusUnauthorized},
		{"garbage token", bearer(httptest.NewRequest("GET", "/me", nil), "xyz"), http.StatusUnauthorized},
		{"unknown user", bearer(httptest.NewRequest("GET", "/me", nil), ghostTok.Token), http.StatusUnauthorized},
		{"valid user", bearer(httptest.NewRequest("GET", "/me", nil), aliceTok.Token), http.StatusOK},
		{"admin as user", bearer(httptest.NewRequest("GET", "/admin", nil), aliceTok.Token), http.StatusForbidden},
		{"admin as superuser", bearer(httptest.NewRequest("GET", "/admin", nil), rootTok.Token), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
