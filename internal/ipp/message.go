// Package ipp defines the inter-process message sum type exchanged between
// simulator tasks through the event kernel's named mailboxes. Every message
// addressed to the orchestrator travels to the well-known mailbox "server".
//
// This replaces the original C++ implementation's tagged union of raw
// pointers (ipp.hpp's IPMessageType + void* data) with a closed Go interface:
// each concrete type owns its fields and satisfies Message, so a type switch
// in the orchestrator's dispatch loop is exhaustive and payloads cannot
// outlive their one intended consumer.
package ipp

import "github.com/oar-team/batsim-sub001/internal/machinerange"

// Server is the well-known mailbox name the orchestrator receives on.
const Server = "server"

// Message is implemented by every concrete inter-process message type. Kind
// reports which of the closed set of message types a value is, letting
// dispatch code type-switch without reflection.
type Message interface {
	Kind() Kind
}

// Kind enumerates the closed set of inter-process message types exchanged
// over the kernel's mailboxes.
type Kind int

const (
	SubmitterHello Kind = iota
	SubmitterBye
	JobSubmitted
	JobCompleted
	SchedAllocation
	SchedRejection
	SchedNOP
	SchedNOPMeLater
	SchedTellMeEnergy
	SchedReady
	WaitingDone
	PstateModification
	SwitchedOn
	SwitchedOff
)

func (k Kind) String() string {
	switch k {
	case SubmitterHello:
		return "SUBMITTER_HELLO"
	case SubmitterBye:
		return "SUBMITTER_BYE"
	case JobSubmitted:
		return "JOB_SUBMITTED"
	case JobCompleted:
		return "JOB_COMPLETED"
	case SchedAllocation:
		return "SCHED_ALLOCATION"
	case SchedRejection:
		return "SCHED_REJECTION"
	case SchedNOP:
		return "SCHED_NOP"
	case SchedNOPMeLater:
		return "SCHED_NOP_ME_LATER"
	case SchedTellMeEnergy:
		return "SCHED_TELL_ME_ENERGY"
	case SchedReady:
		return "SCHED_READY"
	case WaitingDone:
		return "WAITING_DONE"
	case PstateModification:
		return "PSTATE_MODIFICATION"
	case SwitchedOn:
		return "SWITCHED_ON"
	case SwitchedOff:
		return "SWITCHED_OFF"
	default:
		return "UNKNOWN"
	}
}

// SubmitterHelloMessage: submitter -> server, submission has started.
type SubmitterHelloMessage struct{}

func (SubmitterHelloMessage) Kind() Kind { return SubmitterHello }

// SubmitterByeMessage: submitter -> server, submission has finished.
type SubmitterByeMessage struct{}

func (SubmitterByeMessage) Kind() Kind { return SubmitterBye }

// JobSubmittedMessage: submitter -> server, a job has just been submitted.
type JobSubmittedMessage struct {
	JobID int
}

func (JobSubmittedMessage) Kind() Kind { return JobSubmitted }

// JobCompletedMessage: executor -> server, a job finished running (whether
// successfully or killed).
type JobCompletedMessage struct {
	JobID   int
	Outcome JobOutcome
}

func (JobCompletedMessage) Kind() Kind { return JobCompleted }

// JobOutcome is the terminal execution result posted with JobCompletedMessage.
type JobOutcome int

const (
	OutcomeFinished JobOutcome = iota
	OutcomeKilled
)

func (o JobOutcome) String() string {
	if o == OutcomeKilled {
		return "KILLED"
	}
	return "FINISHED"
}

// Allocation pairs a job with the machines it has been allocated.
type Allocation struct {
	JobID      int
	MachineIDs machinerange.Range
}

// SchedAllocationMessage: EDC link -> server, one or more static allocations
// decided by the scheduler.
type SchedAllocationMessage struct {
	Allocations []Allocation
}

func (SchedAllocationMessage) Kind() Kind { return SchedAllocation }

// SchedRejectionMessage: EDC link -> server, reject a submitted job outright.
type SchedRejectionMessage struct {
	JobID int
}

func (SchedRejectionMessage) Kind() Kind { return SchedRejection }

// SchedNOPMessage: EDC link -> server, informational no-op.
type SchedNOPMessage struct{}

func (SchedNOPMessage) Kind() Kind { return SchedNOP }

// SchedNOPMeLaterMessage: EDC link -> server, wake me at TargetTime.
type SchedNOPMeLaterMessage struct {
	TargetTime float64 // virtual seconds
}

func (SchedNOPMeLaterMessage) Kind() Kind { return SchedNOPMeLater }

// SchedTellMeEnergyMessage: EDC link -> server, query current aggregated
// energy.
type SchedTellMeEnergyMessage struct{}

func (SchedTellMeEnergyMessage) Kind() Kind { return SchedTellMeEnergy }

// SchedReadyMessage: EDC link -> server, the EDC has finished replying and is
// ready for the next batch.
type SchedReadyMessage struct{}

func (SchedReadyMessage) Kind() Kind { return SchedReady }

// WaitingDoneMessage: waiter -> server, a requested wake-up time has been
// reached.
type WaitingDoneMessage struct{}

func (WaitingDoneMessage) Kind() Kind { return WaitingDone }

// PstateModificationMessage: EDC link -> server, change the pstate of a
// machine set.
type PstateModificationMessage struct {
	MachineIDs machinerange.Range
	NewPstate  int
}

func (PstateModificationMessage) Kind() Kind { return PstateModification }

// SwitchedOnMessage: switch-on transitioner -> server, a single machine
// finished transitioning into a computation pstate.
type SwitchedOnMessage struct {
	MachineID int
	NewPstate int
}

func (SwitchedOnMessage) Kind() Kind { return SwitchedOn }

// SwitchedOffMessage: switch-off transitioner -> server, a single machine
// finished transitioning into a sleep pstate.
type SwitchedOffMessage struct {
	MachineID int
	NewPstate int
}

func (SwitchedOffMessage) Kind() Kind { return SwitchedOff }
