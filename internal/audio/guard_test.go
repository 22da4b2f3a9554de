package audio

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

// hangingPort blocks ringer mode reads until released.
type hangingPort struct {
	*Memory

	// release unblocks pending reads.
	release chan struct{}
}

// RingerMode blocks until release is closed, ignoring the context.
func (h *hangingPort) RingerMode(ctx context.Context) (ringer.RingerMode, error) {
	<-h.release

	return h.Memory.RingerMode(ctx)
}

// TestGuard_Timeout returns ErrTimeout when the port hangs.
func TestGuard_Timeout(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		port := &hangingPort{Memory: NewMemory(DefaultDevice()), release: make(chan struct{})}
		g := NewGuard(port, 2*time.Second)

		start := time.Now()
		_, err := g.RingerMode(context.Background())

		require.ErrorIs(t, err, ErrTimeout)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, 2*time.Second, time.Since(start))

		close(port.release)
		synctest.Wait()
	})
}

// TestGuard_PassThrough forwards results and errors of a healthy port.
func TestGuard_PassThrough(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(DefaultDevice())
	g := NewGuard(m, time.Second)

	require.NoError(t, g.SetStreamVolume(ctx, ringer.StreamNotification, 2, 0))

	volume, err := g.StreamVolume(ctx, ringer.StreamNotification)
	require.NoError(t, err)
	require.Equal(t, 2, volume)

	m.SetPolicyAccess(false)
	require.False(t, g.HasPolicyAccess(ctx))
	require.ErrorIs(t, g.SetInterruptionFilter(ctx, ringer.FilterAll), ErrPolicyAccessDenied)
}
