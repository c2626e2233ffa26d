// Package orchestrator implements the server orchestrator: the single
// central process that consumes every inter-process message, mutates
// job/machine state accordingly, accumulates outbound EDC events into a
// batch, and issues exactly one EDC request/reply cycle whenever the EDC is
// ready and the batch is non-empty. Centralizing all of that behind one
// dispatch loop's single receive("server") suspension point avoids any
// locking between job completions, pstate changes and EDC replies: they all
// become ordinary sequential cases in one select loop instead of concurrent
// mutations of shared state.
package orchestrator

import (
	"fmt"

	"github.com/oar-team/batsim-sub001/internal/clog"
	"github.com/oar-team/batsim-sub001/internal/edc"
	"github.com/oar-team/batsim-sub001/internal/execution"
	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/jobs"
	"github.com/oar-team/batsim-sub001/internal/kernel"
	"github.com/oar-team/batsim-sub001/internal/machinerange"
	"github.com/oar-team/batsim-sub001/internal/machines"
	"github.com/oar-team/batsim-sub001/internal/power"
	"github.com/oar-team/batsim-sub001/internal/waiter"
)

// Orchestrator is the central simulation process.
type Orchestrator struct {
	k            *kernel.Kernel
	machines     *machines.Registry
	jobs         *jobs.Registry
	executor     *execution.Executor
	transitioner *power.Transitioner
	link         *edc.Link
	log          *clog.Logger
	spaceSharing bool

	nbSubmitters         int
	nbSubmittersFinished int
	nbSubmitted          int
	nbScheduled          int
	nbRunning            int
	nbCompleted          int
	nbSwitching          int
	nbWaiters            int
	schedReady           bool

	pendingBatch []edc.OutboundEvent
	switches     *pendingSwitches
}

// New returns an Orchestrator wired to its collaborators.
func New(
	k *kernel.Kernel,
	machineReg *machines.Registry,
	jobReg *jobs.Registry,
	executor *execution.Executor,
	transitioner *power.Transitioner,
	link *edc.Link,
	log *clog.Logger,
	spaceSharing bool,
) *Orchestrator {
	return &Orchestrator{
		k:            k,
		machines:     machineReg,
		jobs:         jobReg,
		executor:     executor,
		transitioner: transitioner,
		link:         link,
		log:          log,
		spaceSharing: spaceSharing,
		switches:     newPendingSwitches(),
		// Starts ready so the very first batch doesn't wait for a
		// bootstrap SCHED_READY that nothing would ever send.
		schedReady: true,
	}
}

// Run executes the dispatch loop until the termination invariant holds or a
// fatal error occurs. The caller (cmd/batsim) maps a non-nil return into a
// process exit code.
func (o *Orchestrator) Run() error {
	for {
		msg := o.k.Receive(ipp.Server)
		if err := o.dispatch(msg.(ipp.Message)); err != nil {
			return err
		}
		o.maybeRequestReply()
		if o.terminated() {
			return nil
		}
	}
}

func (o *Orchestrator) now() float64 { return o.k.Now().Seconds() }

func (o *Orchestrator) appendEvent(ev edc.OutboundEvent) {
	o.pendingBatch = append(o.pendingBatch, ev)
}

func (o *Orchestrator) dispatch(msg ipp.Message) error {
	o.log.Debugf("server received %s at t=%.6f", msg.Kind(), o.now())
	switch m := msg.(type) {
	case ipp.SubmitterHelloMessage:
		o.nbSubmitters++

	case ipp.SubmitterByeMessage:
		o.nbSubmittersFinished++

	case ipp.JobSubmittedMessage:
		if err := o.jobs.MarkSubmitted(m.JobID); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
		o.nbSubmitted++
		o.log.Infof("job %d submitted at t=%.6f", m.JobID, o.now())
		o.appendEvent(edc.EventSubmitted(o.now(), m.JobID))

	case ipp.JobCompletedMessage:
		o.nbRunning--
		if o.nbRunning < 0 {
			return fmt.Errorf("orchestrator: nb_running went negative processing job %d completion", m.JobID)
		}
		o.nbCompleted++
		if err := o.jobs.MarkTerminal(m.JobID, m.Outcome == ipp.OutcomeKilled, o.now()); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
		o.log.Infof("job %d completed (%s) at t=%.6f", m.JobID, m.Outcome, o.now())
		o.appendEvent(edc.EventCompleted(o.now(), m.JobID))

	case ipp.SchedRejectionMessage:
		if err := o.jobs.MarkRejected(m.JobID); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
		o.nbCompleted++
		o.log.Infof("job %d rejected at t=%.6f", m.JobID, o.now())

	case ipp.SchedAllocationMessage:
		for _, alloc := range m.Allocations {
			if err := o.handleAllocation(alloc); err != nil {
				return err
			}
		}

	case ipp.SchedNOPMessage:
		if o.nbRunning == 0 && o.nbScheduled < o.nbSubmitted && o.nbSwitching == 0 && o.nbWaiters == 0 {
			o.log.Errorf("possible deadlock: nothing running, %d/%d jobs scheduled, no switches or waiters pending", o.nbScheduled, o.nbSubmitted)
		}

	case ipp.SchedNOPMeLaterMessage:
		if m.TargetTime <= o.now() {
			return fmt.Errorf("orchestrator: SCHED_NOP_ME_LATER target time %v is not after current time %v", m.TargetTime, o.now())
		}
		waiter.Spawn(o.k, m.TargetTime)
		o.nbWaiters++

	case ipp.WaitingDoneMessage:
		o.nbWaiters--
		o.appendEvent(edc.EventWakeup(o.now()))

	case ipp.PstateModificationMessage:
		if err := o.handlePstateModification(m); err != nil {
			return err
		}

	case ipp.SwitchedOnMessage:
		o.handleSwitchSettled(m.NewPstate, m.MachineID)

	case ipp.SwitchedOffMessage:
		o.handleSwitchSettled(m.NewPstate, m.MachineID)

	case ipp.SchedTellMeEnergyMessage:
		o.appendEvent(edc.EventEnergy(o.now(), o.k.Energy()))

	case ipp.SchedReadyMessage:
		o.schedReady = true

	default:
		return fmt.Errorf("orchestrator: unhandled message kind %v", msg.Kind())
	}
	return nil
}

func (o *Orchestrator) handleAllocation(alloc ipp.Allocation) error {
	job := o.jobs.Lookup(alloc.JobID)
	if job == nil {
		return fmt.Errorf("orchestrator: allocation refers to unknown job %d", alloc.JobID)
	}
	if job.State != jobs.Submitted {
		return fmt.Errorf("orchestrator: allocation refers to job %d not in SUBMITTED state (state=%s)", alloc.JobID, job.State)
	}
	if alloc.MachineIDs.Size() != job.RequestedHosts {
		return fmt.Errorf("orchestrator: allocation for job %d has %d machines, want %d", alloc.JobID, alloc.MachineIDs.Size(), job.RequestedHosts)
	}
	if err := o.machines.OnJobStart(alloc.JobID, alloc.MachineIDs); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := o.jobs.MarkAllocated(alloc.JobID, alloc.MachineIDs, o.now()); err != nil {
		o.machines.OnJobEnd(alloc.JobID, alloc.MachineIDs)
		return fmt.Errorf("orchestrator: %w", err)
	}
	o.nbRunning++
	o.nbScheduled++
	o.log.Infof("job %d allocated %s at t=%.6f", alloc.JobID, alloc.MachineIDs.StringHyphen(), o.now())
	o.executor.Submit(job, alloc.MachineIDs)
	return nil
}

func (o *Orchestrator) handlePstateModification(m ipp.PstateModificationMessage) error {
	var fatal error
	m.MachineIDs.Elements(func(id int) {
		if fatal != nil {
			return
		}
		mach := o.machines.Lookup(id)
		if mach == nil {
			fatal = fmt.Errorf("orchestrator: pstate modification refers to unknown machine %d", id)
			return
		}
		currentKind := mach.PstateKind(mach.Pstate())
		newKind := mach.PstateKind(m.NewPstate)

		switch {
		case currentKind == machines.Computation && newKind == machines.Computation:
			o.machines.SetPstateDirect(id, m.NewPstate)
			o.appendEvent(edc.EventPstateAck(o.now(), machinerange.Of(id), m.NewPstate))

		case currentKind == machines.Computation && newKind == machines.Sleep:
			if !mach.IsFree() {
				fatal = fmt.Errorf("orchestrator: cannot switch off busy machine %d", id)
				return
			}
			if _, ok := mach.SleepTransition(m.NewPstate); !ok {
				fatal = fmt.Errorf("orchestrator: machine %d has no declared transition into sleep pstate %d", id, m.NewPstate)
				return
			}
			o.switches.add(m.NewPstate, id)
			o.nbSwitching++
			o.transitioner.SwitchOff(machinerange.Of(id), m.NewPstate)

		case currentKind == machines.Sleep && newKind == machines.Computation:
			if _, ok := mach.SleepTransition(mach.Pstate()); !ok {
				fatal = fmt.Errorf("orchestrator: machine %d has no declared transition out of sleep pstate %d", id, mach.Pstate())
				return
			}
			o.switches.add(m.NewPstate, id)
			o.nbSwitching++
			o.transitioner.SwitchOn(machinerange.Of(id), m.NewPstate)

		default:
			fatal = fmt.Errorf("orchestrator: machine %d cannot transition from pstate kind %v to pstate kind %v", id, currentKind, newKind)
		}
	})
	return fatal
}

func (o *Orchestrator) handleSwitchSettled(newPstate, machineID int) {
	done, remaining := o.switches.settle(newPstate, machineID)
	if done {
		o.appendEvent(edc.EventPstateAck(o.now(), remaining, newPstate))
	}
	o.nbSwitching--
}

// maybeRequestReply implements the EDC interaction rule: once sched_ready
// and the pending batch is non-empty, spawn exactly one request/reply task
// with the accumulated batch, clear it, and set sched_ready back to false.
func (o *Orchestrator) maybeRequestReply() {
	if !o.schedReady || len(o.pendingBatch) == 0 {
		return
	}
	batch := o.pendingBatch
	o.pendingBatch = nil
	o.schedReady = false
	o.link.RequestReply(batch)
}

// terminated implements the orchestrator's termination invariant.
func (o *Orchestrator) terminated() bool {
	return o.nbSubmitters > 0 &&
		o.nbSubmittersFinished == o.nbSubmitters &&
		o.nbCompleted == o.nbSubmitted &&
		o.schedReady &&
		o.nbSwitching == 0 &&
		o.nbWaiters == 0
}
