package subscriber

import (
	"context"
)

// Repository is the read side of the external subscriber store.
type Repository interface {
	// FindWatchingAny returns active subscribers whose watched centers overlap
	// centerNames. The overlap is evaluated by the store, not by the caller.
	FindWatchingAny(ctx context.Context, centerNames []string) ([]*Subscriber, error)
}
