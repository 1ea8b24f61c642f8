/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package window

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-docsubmit/log/logtest"
)

func TestNewClock(t *testing.T) {
	_, err := NewClock(0, func() {})
	require.EqualError(t, err, "interval should be positive, got 0s")

	_, err = NewClock(-time.Second, func() {})
	require.Error(t, err)

	_, err = NewClock(time.Second, nil)
	require.EqualError(t, err, "tick handler should be specified")
}

func TestClock_StartAndStop(t *testing.T) {
	t.Run("first tick is fired immediately", func(t *testing.T) {
		ticked := make(chan struct{}, 1)
		clock, err := NewClock(time.Hour, func() {
			select {
			case ticked <- struct{}{}:
			default:
			}
		})
		require.NoError(t, err)
		clock.Start()
		defer clock.Stop()

		select {
		case <-ticked:
		case <-time.After(time.Second):
			require.Fail(t, "first tick should be fired right after start")
		}
	})

	t.Run("ticks are periodic", func(t *testing.T) {
		var ticks int32
		clock, err := NewClock(time.Millisecond*20, func() { atomic.AddInt32(&ticks, 1) })
		require.NoError(t, err)
		clock.Start()

		require.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 4 }, time.Second*2, time.Millisecond*5)
		clock.Stop()
		clock.Wait()

		stoppedAt := atomic.LoadInt32(&ticks)
		time.Sleep(time.Millisecond * 60)
		require.Equal(t, stoppedAt, atomic.LoadInt32(&ticks), "no ticks should be fired after stop")
		require.Equal(t, uint64(stoppedAt), clock.Ticks())
	})

	t.Run("ticks never overlap", func(t *testing.T) {
		var running, overlaps int32
		clock, err := NewClock(time.Millisecond*5, func() {
			if atomic.AddInt32(&running, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(time.Millisecond * 12)
			atomic.AddInt32(&running, -1)
		})
		require.NoError(t, err)
		clock.Start()
		require.Eventually(t, func() bool { return clock.Ticks() >= 3 }, time.Second*2, time.Millisecond*5)
		clock.Stop()
		clock.Wait()
		require.Equal(t, int32(0), atomic.LoadInt32(&overlaps))
	})

	t.Run("stop is idempotent and safe to call concurrently", func(t *testing.T) {
		clock, err := NewClock(time.Millisecond*10, func() {})
		require.NoError(t, err)
		clock.Start()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				clock.Stop()
			}()
		}
		wg.Wait()
		clock.Stop()
		clock.Wait()
	})

	t.Run("stop before start", func(t *testing.T) {
		var ticks int32
		clock, err := NewClock(time.Millisecond, func() { atomic.AddInt32(&ticks, 1) })
		require.NoError(t, err)
		clock.Stop()
		clock.Wait()
		clock.Start()
		time.Sleep(time.Millisecond * 20)
		require.Equal(t, int32(0), atomic.LoadInt32(&ticks), "stopped clock should not be started")
	})

	t.Run("stop from tick handler", func(t *testing.T) {
		var clock *Clock
		var err error
		clock, err = NewClock(time.Millisecond*5, func() { clock.Stop() })
		require.NoError(t, err)
		clock.Start()

		waited := make(chan struct{})
		go func() {
			clock.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(time.Second * 2):
			require.Fail(t, "clock stopped from its own tick handler should exit")
		}
		require.Equal(t, uint64(1), clock.Ticks())
	})

	t.Run("start and stop are logged", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		clock, err := NewClockWithOpts(time.Hour, func() {}, ClockOpts{Logger: logRecorder})
		require.NoError(t, err)
		clock.Start()
		clock.Start()
		require.Eventually(t, func() bool { return clock.Ticks() == 1 }, time.Second, time.Millisecond)
		clock.Stop()
		clock.Wait()

		_, found := logRecorder.FindEntry("starting window clock (interval=1h0m0s)...")
		require.True(t, found)
		entry, found := logRecorder.FindEntry("window clock stopped")
		require.True(t, found)
		ticksField, found := entry.FindField("ticks")
		require.True(t, found)
		require.Equal(t, int64(1), ticksField.Int)
	})
}
