// Package waiter implements the waiter task: spawned by the orchestrator in
// response to SCHED_NOP_ME_LATER, it simply sleeps until the requested
// target time and then reports back.
package waiter

import (
	"time"

	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/kernel"
)

// Spawn starts a waiter task that sleeps until targetTimeSeconds (a virtual
// time, not a duration) and then sends WaitingDoneMessage to the server
// mailbox. The caller (the orchestrator) is responsible for precondition
// targetTimeSeconds > k.Now().Seconds().
func Spawn(k *kernel.Kernel, targetTimeSeconds float64) {
	k.Spawn(func() {
		delay := targetTimeSeconds - k.Now().Seconds()
		if delay > 0 {
			k.Sleep(time.Duration(delay * float64(time.Second)))
		}
		k.Send(ipp.Server, ipp.WaitingDoneMessage{})
	})
}
