package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_FireOnce(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.Fired())
	assert.True(t, s.Fire())
	assert.False(t, s.Fire())
	assert.True(t, s.Fired())
}

func TestSignal_FireBeforeWait(t *testing.T) {
	s := NewSignal()
	s.Fire()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Wait(ctx))
}

func TestSignal_WaitUnblocksOnFire(t *testing.T) {
	s := NewSignal()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Wait(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	s.Fire()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Fire")
	}
}

func TestSignal_SingleWaiter(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Wait(ctx)
	}()

	require.Eventually(t, func() bool { return s.waiting.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Wait(ctx), ErrSignalAwaited)

	cancel()
	wg.Wait()
}

func TestSignal_WaitContextDone(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}
