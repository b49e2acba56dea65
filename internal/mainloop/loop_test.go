package mainloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New("test", nil)
	l.Start(context.Background())
	t.Cleanup(l.Stop)
	return l
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.True(t, l.Sync(func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_PostFromInsideLoop(t *testing.T) {
	l := startLoop(t)

	done := make(chan []string, 1)
	var order []string
	l.Post(func() {
		order = append(order, "outer")
		l.Post(func() {
			order = append(order, "inner")
			done <- order
		})
		order = append(order, "outer-end")
	})

	select {
	case got := <-done:
		assert.Equal(t, []string{"outer", "outer-end", "inner"}, got)
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestLoop_SyncFromManyGoroutines(t *testing.T) {
	l := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Sync(func() { counter++ })
		}()
	}
	wg.Wait()

	var got int
	l.Sync(func() { got = counter })
	assert.Equal(t, 50, got)
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	l := New("stopped", nil)
	l.Start(context.Background())
	l.Stop()
	l.Stop()

	assert.False(t, l.Post(func() {}))
	assert.False(t, l.Sync(func() {}))
}

func TestLoop_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New("ctx", nil)
	l.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !l.Post(func() {}) }, time.Second, 5*time.Millisecond)
	assert.False(t, l.Sync(func() {}))
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	l := startLoop(t)

	l.Post(func() { panic("boom") })
	ran := false
	require.True(t, l.Sync(func() { ran = true }))
	assert.True(t, ran)
}

func TestTimer_Fires(t *testing.T) {
	l := startLoop(t)

	fired := make(chan struct{})
	timer := l.AfterFunc(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	assert.True(t, timer.Fired())
	assert.False(t, timer.Cancel(), "cancel after firing reports not pending")
}

func TestTimer_ZeroDelayIsAsync(t *testing.T) {
	l := startLoop(t)

	var order []string
	l.Sync(func() {
		l.AfterFunc(0, func() { order = append(order, "timer") })
		order = append(order, "caller")
	})

	assert.Eventually(t, func() bool {
		var n int
		l.Sync(func() { n = len(order) })
		return n == 2
	}, time.Second, 5*time.Millisecond)

	l.Sync(func() {
		assert.Equal(t, []string{"caller", "timer"}, order)
	})
}

func TestTimer_CancelBeforeExpiry(t *testing.T) {
	l := startLoop(t)

	ran := make(chan struct{}, 1)
	timer := l.AfterFunc(20*time.Millisecond, func() { ran <- struct{}{} })
	assert.True(t, timer.Cancel())
	assert.False(t, timer.Cancel())

	select {
	case <-ran:
		t.Fatal("cancelled timer ran")
	case <-time.After(60 * time.Millisecond):
	}
	assert.False(t, timer.Fired())
}

func TestTimer_CancelAfterExpiryWhileQueued(t *testing.T) {
	l := startLoop(t)

	ran := false
	release := make(chan struct{})
	var timer *Timer

	// Hold the loop busy so the expired timer's task waits in the queue.
	l.Post(func() { <-release })
	timer = l.AfterFunc(0, func() { ran = true })
	time.Sleep(20 * time.Millisecond)

	l.Post(func() {})
	assert.True(t, timer.Cancel())
	close(release)

	l.Sync(func() {})
	l.Sync(func() {
		assert.False(t, ran)
	})
}
