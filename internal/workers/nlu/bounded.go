// Package nlu holds what the NLU job workers share.
package nlu

import (
	"context"
	"fmt"
	"time"

	"nlu-engine/internal/common/errors"
)

// Bounded runs fn, which cannot be interrupted, and gives up waiting once
// ctx is done. fn keeps running to completion in the background; its
// result is then discarded. A panic in fn is returned as an internal error.
func Bounded[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o.err = errors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			done <- o
		}()
		o.value, o.err = fn()
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, errors.NewParseTimeoutError(timeout)
	}
}

// ParseReference reads an optional RFC 3339 reference instant.
func ParseReference(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.NewInvalidInputError(fmt.Sprintf("referenceTime %q is not RFC 3339", s))
	}
	return t, nil
}
