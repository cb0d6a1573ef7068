package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type userBody struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	IsSuperuser bool     `json:"is_superuser"`
	Roles       []string `json:"roles"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := persistence.OpenSQLite(ctx, filepath.Join(t.TempDir(), "accounts.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.RunMigrations(ctx, db, "sqlite", logger))

	store := repository.NewSQLiteStore(db)
	accounts := service.NewAccountService(service.AccountDependencies{
		Store:  store,
		Hasher: auth.NewBcryptHasher(4),
		Logger: logger,
	})
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	authService := service.NewAuthService(accounts, tokens, logger)
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("account-service", "test", "sqlite", store, nil),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Users:          handlers.NewUsersHandler(accounts),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, accounts),
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, target, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeUser(t *testing.T, env envelope) userBody {
	t.Helper()
	var u userBody
	require.NoError(t, json.Unmarshal(env.Data, &u))
	return u
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	status, env := do(t, app, http.MethodPost, "/auth/token", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, status)
	var body struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	return body.Auth.Token
}

func TestAccountRoutes(t *testing.T) {
	app := newTestApp(t)

	status, env := do(t, app, http.MethodPost,
		"/users/create_superuser?email=root@x.io&username=root&plain_password=s3cret", "", nil)
	require.Equal(t, http.StatusCreated, status)
	root := decodeUser(t, env)
	assert.Equal(t, int64(1), root.ID)
	assert.True(t, root.IsSuperuser)
	assert.NotContains(t, string(env.Data), "password")

	status, env = do(t, app, http.MethodPost, "/users/create", "", map[string]string{
		"email": "bob@x.io", "username": "bob", "first_name": "Bob", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, status)
	bob := decodeUser(t, env)
	assert.Equal(t, []string{"user"}, bob.Roles)

	status, env = do(t, app, http.MethodPost, "/users/create", "", map[string]string{
		"username": "bob", "password": "other",
	})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, env = do(t, app, http.MethodPost, "/users/create", "", map[string]string{"password": "pw"})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	rootTok := login(t, app, "root", "s3cret")
	bobTok := login(t, app, "bob", "pw")

	t.Run("get_me", func(t *testing.T) {
		status, env := do(t, app, http.MethodGet, "/users/get_me", bobTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "bob", decodeUser(t, env).Username)

		status, _ = do(t, app, http.MethodGet, "/users/get_me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("admin-only", func(t *testing.T) {
		status, env := do(t, app, http.MethodGet, "/users/admin-only/", rootTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"message":"Welcome, superuser!"}`, string(env.Data))

		status, _ = do(t, app, http.MethodGet, "/users/admin-only/", bobTok, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("get by id", func(t *testing.T) {
		status, env := do(t, app, http.MethodGet, "/users/1", bobTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "root", decodeUser(t, env).Username)

		status, env = do(t, app, http.MethodGet, "/users/999", bobTok, nil)
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "Not found this user", env.Error.Message)

		status, _ = do(t, app, http.MethodGet, "/users/abc", bobTok, nil)
		assert.Equal(t, http.StatusBadRequest, status)

		for _, target := range []string{"/users/0", "/users/-3"} {
			status, env = do(t, app, http.MethodGet, target, bobTok, nil)
			assert.Equal(t, http.StatusNotFound, status, target)
			require.NotNil(t, env.Error, target)
			assert.Equal(t, "Not found this user", env.Error.Message)
		}
	})

	t.Run("update_user", func(t *testing.T) {
		status, env := do(t, app, http.MethodPut, "/users/update_user?user_id=2&verify_password=pw", bobTok,
			map[string]string{"last_name": "Builder"})
		require.Equal(t, http.StatusOK, status)
		u := decodeUser(t, env)
		assert.Equal(t, "Bob", u.FirstName)
		assert.Equal(t, "Builder", u.LastName)

		status, _ = do(t, app, http.MethodPut, "/users/update_user?user_id=2&verify_password=bad", bobTok,
			map[string]string{"last_name": "X"})
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = do(t, app, http.MethodPut, "/users/update_user?user_id=2&verify_password=pw", bobTok,
			map[string]string{"username": "root"})
		assert.Equal(t, http.StatusConflict, status)

		status, _ = do(t, app, http.MethodPut, "/users/update_user?user_id=2&verify_password=pw", bobTok,
			map[string]string{"username": " root "})
		assert.Equal(t, http.StatusConflict, status, "padded usernames collide with the trimmed one")
	})

	t.Run("change_password", func(t *testing.T) {
		status, env := do(t, app, http.MethodPut, "/users/change_password?user_id=2", bobTok,
			map[string]string{"current_password": "wrong", "new_password": "pw2"})
		assert.Equal(t, http.StatusUnauthorized, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "Incorrect password", env.Error.Message)

		status, _ = do(t, app, http.MethodPut, "/users/change_password?user_id=2", bobTok,
			map[string]string{"current_password": "pw", "new_password": "pw2"})
		require.Equal(t, http.StatusOK, status)
		login(t, app, "bob", "pw2")

		status, _ = do(t, app, http.MethodPut, "/users/change_password?user_id=999", bobTok,
			map[string]string{"current_password": "pw2", "new_password": "pw3"})
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = do(t, app, http.MethodPut, "/users/change_password?user_id=0", bobTok,
			map[string]string{"current_password": "pw2", "new_password": "pw3"})
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = do(t, app, http.MethodPut, "/users/update_user?user_id=0&verify_password=pw2", bobTok,
			map[string]string{"last_name": "X"})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("health and metrics", func(t *testing.T) {
		status, _ := do(t, app, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusOK, status)

		status, env := do(t, app, http.MethodGet, "/metrics", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), "/users/create|POST|201")
	})
}
