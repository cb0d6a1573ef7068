package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetrics_SnapshotAverages(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/users/:user_id", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/users/:user_id", "GET", 200, 30*time.Millisecond)
	m.RecordError("/users/:user_id", "GET", "NOT_FOUND")

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.Requests["/users/:user_id|GET|200"])
	assert.EqualValues(t, 20, snap.AvgLatencyMsec["/users/:user_id|GET|200"])
	assert.EqualValues(t, 1, snap.Errors["/users/:user_id|GET|NOT_FOUND"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestRequestLogger_AssignsRequestID(t *testing.T) {
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), metrics))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", resp.Header.Get(RequestIDHeader))

	assert.EqualValues(t, 2, metrics.Snapshot().Requests["/ping|GET|200"])
}
