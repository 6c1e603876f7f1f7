// Package lock provides the cross-worker mutual exclusion used to elect a
// single active poller among identical worker processes.
package lock

import "context"

// Locker is a non-blocking advisory lock over a coordination point shared by
// all workers. TryAcquire returns ok=false immediately when another worker
// holds the lock; release must always be called when ok is true.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}
