// Package deadline bounds blocking operations with an explicit timeout.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an operation exceeds its time budget.
var ErrTimeout = errors.New("operation timed out")

// Do runs fn with a context limited to d. A non-positive d leaves ctx untouched.
// Deadline expiry is reported as ErrTimeout.
func Do[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	v, err := fn(ctx)
	if err != nil {
		return v, Classify(err)
	}
	return v, nil
}

// Run is Do for operations without a result.
func Run(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Classify wraps context deadline errors with ErrTimeout.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
