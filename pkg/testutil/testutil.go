// Package testutil provides testing utilities for resbridge connectors
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/connector/registry"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext returns a context with a 30-second timeout, cancelled when the
// test ends.
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NewConnector builds cfg through the global registry with a test logger and
// closes it when the test ends.
func NewConnector(t testing.TB, cfg *config.BaseConfig) *connector.Connector {
	t.Helper()
	c, err := registry.Create(context.Background(), cfg, connector.WithLogger(TestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() {
		if !c.IsClosed() {
			_ = c.Close(context.Background())
		}
	})
	return c
}

// Recorder is a Listener that keeps every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	seen []connector.Notification
}

// HandleNotification implements connector.Listener.
func (r *Recorder) HandleNotification(n connector.Notification) {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

// Notifications returns a copy of what has been received so far.
func (r *Recorder) Notifications() []connector.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]connector.Notification(nil), r.seen...)
}

// Len returns the number of notifications received.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// WaitFor fails the test unless at least n notifications arrive within timeout.
func (r *Recorder) WaitFor(t testing.TB, n int, timeout time.Duration) []connector.Notification {
	t.Helper()
	require.Eventually(t, func() bool { return r.Len() >= n }, timeout, 5*time.Millisecond,
		"expected %d notifications", n)
	return r.Notifications()
}
