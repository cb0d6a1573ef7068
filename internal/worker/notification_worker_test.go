package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/service"
)

func newObservedWorker(queueSize int) (*NotificationWorker, events.Dispatcher, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	notifications := service.NewNotificationService(logger, config.NotificationConfig{})
	w := NewNotificationWorker(notifications, logger, queueSize)
	d := events.NewInMemoryDispatcher(logger)
	w.Subscribe(d)
	return w, d, logs
}

func TestNotificationWorker_DeliversEveryAccountEvent(t *testing.T) {
	w, d, logs := newObservedWorker(8)
	w.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventUserRegistered, UserID: 1}))
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventSuperuserCreated, UserID: 2}))
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventPasswordChanged, UserID: 1}))
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventProfileUpdated, UserID: 1}))

	w.Stop()

	assert.Equal(t, 2, logs.FilterMessage("AccountCreated").Len())
	assert.Equal(t, 1, logs.FilterMessage("PasswordChanged").Len())
	assert.Equal(t, 1, logs.FilterMessage("ProfileUpdated").Len())
}

func TestNotificationWorker_FullQueueIsLoggedNotBlocking(t *testing.T) {
	w, d, logs := newObservedWorker(1)

	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventUserRegistered, UserID: 1}))
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventUserRegistered, UserID: 2}))

	assert.Equal(t, 1, logs.FilterMessage("event handler failed").Len())

	w.Start(ctx)
	w.Stop()
	assert.Equal(t, 1, logs.FilterMessage("AccountCreated").Len())
}

func TestNotificationWorker_StopWithoutStart(t *testing.T) {
	w, _, _ := newObservedWorker(1)
	w.Stop()
}
