package testutil

import (
	"context"
	"testing"
	"time"
)

// ContextWithTimeout returns a context bounded by d, cancelled on test cleanup.
// Tick tests use it as the outer cycle context so a hung pass fails the test instead of
// stalling go test.
func ContextWithTimeout(t testing.TB, d time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

// ContextWithCancel — cancellable context для Start-циклов; cancel также вызывается в cleanup.
func ContextWithCancel(t testing.TB) (context.Context, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx, cancel
}
