// Package machines implements the ordered machine registry: compute
// machines plus a designated master machine, each tracking its power state
// and the jobs currently computing on it.
//
// The registry guards its id-set bookkeeping with a single sync.RWMutex
// (one Machine per id, not just a presence set) because a Machine's state
// is mutated both by the orchestrator, processing PSTATE_MODIFICATION, and,
// directly and concurrently, by the job-execution and power-state
// transitioner tasks it spawns, so the allocation-validity check and the
// mutation it guards must be atomic (one lock holds for the whole
// check-then-mutate sequence instead of two separate acquisitions).
package machines


// State is a machine's current power/activity state.
type State int

const (
	Sleeping State = iota
	Idle
	Computing
	TransitingSleepToComputing
	TransitingComputingToSleeping
)

func (s State) String() string {
	switch s {
	case Sleeping:
		return "sleeping"
	case Idle:
		return "idle"
	case Computing:
		return "computing"
	case TransitingSleepToComputing:
		return "transiting_sleep_to_computing"
	case TransitingComputingToSleeping:
		return "transiting_computing_to_sleeping"
	default:
		return "unknown"
	}
}

// PstateKind classifies one of a machine's declared pstates.
type PstateKind int

const (
	Computation PstateKind = iota
	Sleep
	TransitionVirtual
)

// SleepTransition records the two virtual pstates a sleep pstate transitions
// through: the one declared while booting up (SwitchOnVirtual) and the one
// declared while shutting down (SwitchOffVirtual).
type SleepTransition struct {
	SwitchOnVirtual  int
	SwitchOffVirtual int
}

// Machine is one compute node tracked by the Registry.
type Machine struct {
	ID         int
	Name       string
	HostHandle string

	state             State
	jobsBeingComputed map[int]struct{}
	currentPstate     int
	pstateKinds       map[int]PstateKind
	sleepTransitions  map[int]SleepTransition // keyed by sleep pstate id
}

// NewMachine returns a machine in Idle state at the given default pstate.
func NewMachine(id int, name, hostHandle string, defaultPstate int, kinds map[int]PstateKind, sleeps map[int]SleepTransition) *Machine {
	return &Machine{
		ID:                id,
		Name:              name,
		HostHandle:        hostHandle,
		state:             Idle,
		jobsBeingComputed: make(map[int]struct{}),
		currentPstate:     defaultPstate,
		pstateKinds:       kinds,
		sleepTransitions:  sleeps,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// Pstate returns the machine's current pstate id.
func (m *Machine) Pstate() int { return m.currentPstate }

// PstateKind returns the kind of the given pstate id.
func (m *Machine) PstateKind(pstate int) PstateKind { return m.pstateKinds[pstate] }

// SleepTransition returns the switch-on/switch-off virtual pstates associated
// with the given sleep pstate id.
func (m *Machine) SleepTransition(sleepPstate int) (SleepTransition, bool) {
	t, ok := m.sleepTransitions[sleepPstate]
	return t, ok
}

// JobsBeingComputed returns a snapshot slice of job ids currently computing
// on this machine.
func (m *Machine) JobsBeingComputed() []int {
	ids := make([]int, 0, len(m.jobsBeingComputed))
	for id := range m.jobsBeingComputed {
		ids = append(ids, id)
	}
	return ids
}

// IsFree reports whether no job is currently computing on this machine.
func (m *Machine) IsFree() bool { return len(m.jobsBeingComputed) == 0 }

// IsAllocatable reports whether a job allocation may include this machine:
// the machine must be usable (Idle or Computing) and currently declared in
// a Computation pstate. A sleeping or mid-transition machine can never be
// allocated, even if nothing is currently running on it.
func (m *Machine) IsAllocatable() bool {
	if m.state != Idle && m.state != Computing {
		return false
	}
	return m.pstateKinds[m.currentPstate] == Computation
}
