package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

// Guard bounds every call of the wrapped port with a timeout.
// A call that does not return in time yields ErrTimeout; its goroutine is
// left to finish on its own and its result is discarded.
type Guard struct {
	// port is the wrapped implementation.
	port Port
	// timeout bounds each call.
	timeout time.Duration
}

// NewGuard wraps port. A non-positive timeout disables the bound.
func NewGuard(port Port, timeout time.Duration) *Guard {
	return &Guard{
		port:    port,
		timeout: timeout,
	}
}

// result carries a guarded call's outcome across goroutines.
type result[T any] struct {
	value T
	err   error
}

// guarded runs fn under the guard's timeout.
func guarded[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	if g.timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan result[T], 1)

	go func() {
		value, err := fn(callCtx)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-callCtx.Done():
		var zero T

		return zero, fmt.Errorf("%w: %s after %s: %w", ErrTimeout, op, g.timeout, callCtx.Err())
	}
}

// guardedErr runs an error-only fn under the guard's timeout.
func guardedErr(ctx context.Context, g *Guard, op string, fn func(context.Context) error) error {
	_, err := guarded(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

// RingerMode implements Port.
func (g *Guard) RingerMode(ctx context.Context) (ringer.RingerMode, error) {
	return guarded(ctx, g, "get ringer mode", g.port.RingerMode)
}

// SetRingerMode implements Port.
func (g *Guard) SetRingerMode(ctx context.Context, mode ringer.RingerMode) error {
	return guardedErr(ctx, g, "set ringer mode", func(ctx context.Context) error {
		return g.port.SetRingerMode(ctx, mode)
	})
}

// StreamVolume implements Port.
func (g *Guard) StreamVolume(ctx context.Context, stream ringer.Stream) (int, error) {
	return guarded(ctx, g, "get "+stream.String()+" volume", func(ctx context.Context) (int, error) {
		return g.port.StreamVolume(ctx, stream)
	})
}

// SetStreamVolume implements Port.
func (g *Guard) SetStreamVolume(ctx context.Context, stream ringer.Stream, index int, flags ringer.VolumeFlags) error {
	return guardedErr(ctx, g, "set "+stream.String()+" volume", func(ctx context.Context) error {
		return g.port.SetStreamVolume(ctx, stream, index, flags)
	})
}

// MaxStreamVolume implements Port.
func (g *Guard) MaxStreamVolume(ctx context.Context, stream ringer.Stream) (int, error) {
	return guarded(ctx, g, "get max "+stream.String()+" volume", func(ctx context.Context) (int, error) {
		return g.port.MaxStreamVolume(ctx, stream)
	})
}

// DefaultRingtone implements Port.
func (g *Guard) DefaultRingtone(ctx context.Context) (*string, error) {
	return guarded(ctx, g, "get default ringtone", g.port.DefaultRingtone)
}

// SetDefaultRingtone implements Port.
func (g *Guard) SetDefaultRingtone(ctx context.Context, ringtone *string) error {
	return guardedErr(ctx, g, "set default ringtone", func(ctx context.Context) error {
		return g.port.SetDefaultRingtone(ctx, ringtone)
	})
}

// HasPolicyAccess implements Port. A timed out check is treated as "no access".
func (g *Guard) HasPolicyAccess(ctx context.Context) bool {
	granted, err := guarded(ctx, g, "check policy access", func(ctx context.Context) (bool, error) {
		return g.port.HasPolicyAccess(ctx), nil
	})

	return err == nil && granted
}

// InterruptionFilter implements Port.
func (g *Guard) InterruptionFilter(ctx context.Context) (ringer.InterruptionFilter, error) {
	return guarded(ctx, g, "get interruption filter", g.port.InterruptionFilter)
}

// SetInterruptionFilter implements Port.
func (g *Guard) SetInterruptionFilter(ctx context.Context, filter ringer.InterruptionFilter) error {
	return guardedErr(ctx, g, "set interruption filter", func(ctx context.Context) error {
		return g.port.SetInterruptionFilter(ctx, filter)
	})
}
