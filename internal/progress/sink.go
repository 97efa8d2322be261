package progress

import "context"

// Sink consumes rendered progress snapshots. Consume is called from the
// reporter goroutine only, once per rendered frame, and must honor ctx.
type Sink interface {
	Consume(ctx context.Context, snap Snapshot) error
	Close(ctx context.Context) error
}
