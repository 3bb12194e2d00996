package contract

import (
	"sync"

	"github.com/pkg/errors"
)

// guard is the per-builder lock. Operations never wait for it: a builder
// that is already being mutated reports ErrLockContention instead.
type guard struct {
	mu    sync.Mutex
	errMu sync.Mutex
	err   error
}

func (g *guard) acquire(op string) error {
	if g.mu.TryLock() {
		return nil
	}
	return errors.Wrapf(ErrLockContention, "%s", op)
}

func (g *guard) release() { g.mu.Unlock() }

// record keeps the first error of a chainable operation for Err and the
// next Build.
func (g *guard) record(err error) {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	if g.err == nil {
		g.err = err
	}
}

func (g *guard) firstErr() error {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	return g.err
}

// takeErr returns the recorded error and clears it. Build reports a failure
// once, after which the builder holds the state of its successful calls.
func (g *guard) takeErr() error {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	err := g.err
	g.err = nil
	return err
}

// chain runs a chainable operation under the lock, recording failures.
func (g *guard) chain(op string, fn func() error) {
	if err := g.acquire(op); err != nil {
		g.record(err)
		return
	}
	defer g.release()
	if err := fn(); err != nil {
		g.record(err)
	}
}
