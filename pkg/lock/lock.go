// Package lock provides keyed mutual exclusion scopes used to serialize
// read-modify-write sequences on a single aggregate.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/condoledger/pkg/errs"
)

var (
	ErrEmptyKey      = errors.New("lock key is empty")
	ErrNotConfigured = errors.New("lock client not configured")
)

// Unlock releases a held key. Calling it more than once is a no-op.
type Unlock func()

// Locker acquires an exclusive scope for a key, blocking until the key is
// free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// ErrTimeout is returned by Acquire when the key stayed busy past the timeout.
var ErrTimeout = errs.New(errs.KindConflict, "lock_timeout")

// Acquire takes key on locker, waiting at most timeout. The returned wait
// duration covers the time spent blocked.
func Acquire(ctx context.Context, locker Locker, key string, timeout time.Duration) (Unlock, time.Duration, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	unlock, err := locker.Lock(ctx, key)
	waited := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, waited, fmt.Errorf("%w: %s", ErrTimeout, key)
		}
		return nil, waited, err
	}
	return unlock, waited, nil
}
