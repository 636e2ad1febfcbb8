package context

import (
	"context"
	"testing"
	"time"
)

// WithTest bounds ctx by the deadline of t, pulled in by 1 second so
// that cleanup still has time to run before the test is killed.
func WithTest(ctx context.Context, t *testing.T) (context.Context, func()) {
	if deadline, ok := t.Deadline(); ok {
		dctx, cancel := context.WithDeadline(ctx, deadline.Add(-time.Second))
		return dctx, cancel
	}
	return ctx, func() {}
}
