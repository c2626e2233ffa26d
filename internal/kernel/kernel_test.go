package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepAdvancesVirtualClock(t *testing.T) {
	k := New()
	done := make(chan struct{})
	k.Spawn(func() {
		k.Sleep(5 * time.Second)
		done <- struct{}{}
	})
	<-done
	assert.Equal(t, 5*time.Second, k.Now())
}

func TestSleepZeroOrNegativeReturnsImmediately(t *testing.T) {
	k := New()
	done := make(chan struct{})
	k.Spawn(func() {
		k.Sleep(0)
		k.Sleep(-1 * time.Second)
		done <- struct{}{}
	})
	<-done
	assert.Equal(t, time.Duration(0), k.Now())
}

func TestConcurrentSleepsAtSameDeadlineFireTogether(t *testing.T) {
	k := New()
	results := make(chan time.Duration, 2)
	for i := 0; i < 2; i++ {
		k.Spawn(func() {
			k.Sleep(3 * time.Second)
			results <- k.Now()
		})
	}
	for i := 0; i < 2; i++ {
		require.Equal(t, 3*time.Second, <-results)
	}
}

func TestSendReceiveOrdering(t *testing.T) {
	k := New()
	received := make(chan any, 3)
	k.Spawn(func() {
		for i := 0; i < 3; i++ {
			received <- k.Receive("mbox")
		}
	})
	// Receiver isn't guaranteed to be blocked yet; Send still must queue FIFO
	// regardless of whether the receiver was already waiting.
	k.Send("mbox", 1)
	k.Send("mbox", 2)
	k.Send("mbox", 3)
	assert.Equal(t, 1, <-received)
	assert.Equal(t, 2, <-received)
	assert.Equal(t, 3, <-received)
}

func TestReceiveBlocksUntilSend(t *testing.T) {
	k := New()
	done := make(chan any)
	k.Spawn(func() {
		k.Sleep(2 * time.Second)
		k.Send("mbox", "hello")
	})
	k.Spawn(func() {
		done <- k.Receive("mbox")
	})
	v := <-done
	assert.Equal(t, "hello", v)
	assert.Equal(t, 2*time.Second, k.Now())
}

func TestAwaiterCancelBeforeFireReturnsCancelled(t *testing.T) {
	k := New()
	done := make(chan bool)
	k.Spawn(func() {
		a := k.After(10 * time.Second)
		k.Spawn(func() {
			k.Sleep(1 * time.Second)
			a.Cancel()
		})
		done <- a.Wait()
	})
	cancelled := <-done
	assert.True(t, cancelled)
	assert.Equal(t, 1*time.Second, k.Now())
}

func TestAwaiterCancelAfterFireIsNoop(t *testing.T) {
	k := New()
	done := make(chan struct{})
	k.Spawn(func() {
		a := k.After(1 * time.Second)
		cancelled := a.Wait()
		require.False(t, cancelled)
		a.Cancel() // must not panic or hang
		done <- struct{}{}
	})
	<-done
}

func TestParallelTaskWalltimeRace(t *testing.T) {
	k := New()
	model := LinearTimingModel{FlopsPerSecond: 1, BytesPerSecond: 1}

	// Task takes 10s, walltime fires at 3s: the timer should win the race.
	resCh := make(chan bool, 1)
	k.Spawn(func() {
		h := k.ParallelTask(model, []float64{10}, [][]float64{{0}})
		timer := k.After(3 * time.Second)
		go func() {
			if timer.Wait() {
				return
			}
			h.Cancel()
		}()
		cancelled := h.Execute()
		timer.Cancel()
		resCh <- cancelled
	})
	cancelled := <-resCh
	assert.True(t, cancelled)
	assert.Equal(t, 3*time.Second, k.Now())
}

func TestExternalBlockDoesNotPreventOtherTasksAdvancingClock(t *testing.T) {
	k := New()
	unblock := make(chan struct{})
	blockedReturned := make(chan struct{})
	k.Spawn(func() {
		k.EnterExternalBlock()
		<-unblock
		k.ExitExternalBlock()
		close(blockedReturned)
	})

	sleptTo := make(chan time.Duration, 1)
	k.Spawn(func() {
		k.Sleep(4 * time.Second)
		sleptTo <- k.Now()
	})

	assert.Equal(t, 4*time.Second, <-sleptTo)
	close(unblock)
	<-blockedReturned
}

func TestUnsatisfiedReceiveDoesNotWedgeOtherTasks(t *testing.T) {
	k := New()
	done := make(chan struct{})
	k.Spawn(func() {
		k.Receive("nobody-will-ever-send-here")
	})
	k.Spawn(func() {
		k.Sleep(5 * time.Second)
		close(done)
	})
	<-done
	assert.Equal(t, 5*time.Second, k.Now())
}
