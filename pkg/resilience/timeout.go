// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/jllopis/rolegate/pkg/errors"
)

// Call runs fn and returns as soon as either fn finishes or ctx is done.
// When ctx wins, the call is reported as a CodeTimeout failure; fn keeps
// running in the background but its result is discarded. A panic in fn is
// converted into a CodeInternal error.
func Call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, timeoutError(ctx)
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: errors.New(errors.CodeInternal, "panic during call", fmt.Errorf("%v", r))}
			}
		}()
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, timeoutError(ctx)
	case res := <-done:
		return res.value, res.err
	}
}

// CallWithTimeout is Call bounded by d. A zero d applies no extra bound.
func CallWithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return Call(ctx, fn)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return Call(ctx, fn)
}

func timeoutError(ctx context.Context) *errors.Error {
	return errors.New(errors.CodeTimeout, "operation did not complete before the deadline", ctx.Err()).
		WithRecoverable(true)
}
