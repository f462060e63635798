package graphground

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
)

var (
	// ErrResultTooLarge is returned when a Ground call collects more
	// groundings than Options.MaxGroundings allows.
	ErrResultTooLarge = errors.New("graphground: groundings exceed MaxGroundings limit")

	// ErrQueryPanic is returned when grounding panicked. The panic is caught
	// at the Ground boundary and the DB stays usable.
	ErrQueryPanic = errors.New("graphground: query panicked")
)

// queryGovernor enforces per-query limits. It is built once in Open and
// never mutated.
type queryGovernor struct {
	maxGroundings  int           // 0 = unlimited
	defaultTimeout time.Duration // 0 = none
}

// wrapContext applies the default timeout when ctx carries no deadline.
// The returned cancel func must always be called.
func (g *queryGovernor) wrapContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.defaultTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, g.defaultTimeout)
	}
	return ctx, func() {}
}

// checkCount reports ErrResultTooLarge once n groundings exceed the cap.
func (g *queryGovernor) checkCount(n int) error {
	if g.maxGroundings > 0 && n > g.maxGroundings {
		return ErrResultTooLarge
	}
	return nil
}

// safeExecuteResult runs fn and turns a panic into an ErrQueryPanic error
// carrying the panic value and stack.
func safeExecuteResult[T any](fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			var zero T
			result = zero
			err = fmt.Errorf("%w: %v\n\nstack trace:\n%s", ErrQueryPanic, r, buf[:n])
		}
	}()
	return fn()
}
