// Package flock provides cross-platform file locking for cadence state files.
//
// Exclusive and Unlock wrap the platform primitives. Acquire adds the retry
// loop the flow store uses: it polls a non-blocking lock until it succeeds,
// the context is canceled, or the timeout passes.
//
// Usage:
//
//	lock, err := flock.Acquire(ctx, path, 5*time.Second)
//	if err != nil {
//	    // errors.Is(err, errors.ErrLockTimeout) when another process holds it
//	}
//	defer lock.Release()
package flock
