package testing

import (
	"context"
	"testing"
	"time"
)

// RoundTimeout is the round timeout used by FastRaceSettings.
const RoundTimeout = 200 * time.Millisecond

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
