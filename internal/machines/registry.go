package machines

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oar-team/batsim-sub001/internal/machinerange"
)

// Registry holds every compute machine plus the designated master machine,
// and serializes every state transition behind a single mutex so the
// allocation-validity check (IsAllocatable over a candidate set) is atomic
// with the mutation it guards, even though OnJobStart/OnJobEnd and the power
// transitioners' FinishSwitchOn/FinishSwitchOff calls are invoked from independently scheduled
// goroutines: the orchestrator and every spawned executor or transitioner
// task can touch machine state concurrently, so the check-then-mutate pair
// has to happen under one lock to avoid racing another allocation of the
// same machines.
type Registry struct {
	mu       sync.RWMutex
	byID     map[int]*Machine
	ordered  []*Machine
	master   *Machine
	hasSpace bool // space-sharing allowed: a machine may run more than one job
}

// NewRegistry builds a Registry over the given compute machines plus an
// optional master machine (nil if the platform declares none).
func NewRegistry(machines []*Machine, master *Machine, spaceSharing bool) *Registry {
	byID := make(map[int]*Machine, len(machines))
	ordered := make([]*Machine, len(machines))
	copy(ordered, machines)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, m := range ordered {
		byID[m.ID] = m
	}
	return &Registry{byID: byID, ordered: ordered, master: master, hasSpace: spaceSharing}
}

// Master returns the registry's master machine, or nil if none is declared.
func (r *Registry) Master() *Machine { return r.master }

// Count returns the number of compute machines (excluding the master).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Lookup returns the machine with the given id, or nil if none exists.
func (r *Registry) Lookup(id int) *Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// All returns a snapshot slice of every compute machine in ascending id
// order.
func (r *Registry) All() []*Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Machine, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// AllIDs returns the machine range spanning every compute machine.
func (r *Registry) AllIDs() machinerange.Range {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rg machinerange.Range
	for _, m := range r.ordered {
		rg.Insert(m.ID)
	}
	return rg
}

// ValidateAllocation reports whether every machine id in ids exists and is
// currently allocatable. It is read-only: the caller must still call
// OnJobStart under the same logical instant to avoid a race against a
// concurrent allocation of the same machines, which OnJobStart re-validates
// atomically.
func (r *Registry) ValidateAllocation(ids machinerange.Range) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validateLocked(ids)
}

func (r *Registry) validateLocked(ids machinerange.Range) error {
	var err error
	ids.Elements(func(id int) {
		if err != nil {
			return
		}
		m, ok := r.byID[id]
		if !ok {
			err = fmt.Errorf("machines: unknown machine id %d", id)
			return
		}
		if !r.hasSpace && !m.IsFree() {
			err = fmt.Errorf("machines: machine %d is not allocatable (state=%s)", id, m.state)
			return
		}
		if !m.IsAllocatable() {
			err = fmt.Errorf("machines: machine %d is not allocatable (state=%s, pstate=%d)", id, m.state, m.currentPstate)
		}
	})
	return err
}

// OnJobStart atomically re-validates ids and, if still valid, marks every
// machine in ids as Computing and records jobID as running there. It returns
// an error (and makes no change) if any machine in ids has become invalid
// since the caller last checked.
func (r *Registry) OnJobStart(jobID int, ids machinerange.Range) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.validateLocked(ids); err != nil {
		return err
	}
	ids.Elements(func(id int) {
		m := r.byID[id]
		m.state = Computing
		m.jobsBeingComputed[jobID] = struct{}{}
	})
	return nil
}

// OnJobEnd marks jobID as finished on every machine in ids, returning any
// machine with no remaining job to Idle.
func (r *Registry) OnJobEnd(jobID int, ids machinerange.Range) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids.Elements(func(id int) {
		m, ok := r.byID[id]
		if !ok {
			return
		}
		delete(m.jobsBeingComputed, jobID)
		if len(m.jobsBeingComputed) == 0 {
			m.state = Idle
		}
	})
}

// BeginSwitchOn marks ids as transitioning from sleep into a computation
// pstate.
func (r *Registry) BeginSwitchOn(ids machinerange.Range, transientPstate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids.Elements(func(id int) {
		if m, ok := r.byID[id]; ok {
			m.state = TransitingSleepToComputing
			m.currentPstate = transientPstate
		}
	})
}

// BeginSwitchOff marks ids as transitioning from a computation pstate into
// sleep.
func (r *Registry) BeginSwitchOff(ids machinerange.Range, transientPstate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids.Elements(func(id int) {
		if m, ok := r.byID[id]; ok {
			m.state = TransitingComputingToSleeping
			m.currentPstate = transientPstate
		}
	})
}

// FinishSwitchOn completes a single machine's transition into a computation
// pstate.
func (r *Registry) FinishSwitchOn(id int, pstate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byID[id]; ok {
		m.state = Idle
		m.currentPstate = pstate
	}
}

// FinishSwitchOff completes a single machine's transition into a sleep
// pstate.
func (r *Registry) FinishSwitchOff(id int, pstate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byID[id]; ok {
		m.state = Sleeping
		m.currentPstate = pstate
	}
}

// SetPstateDirect sets a machine directly to a computation pstate without an
// intervening transition; used only for the initial platform load.
func (r *Registry) SetPstateDirect(id int, pstate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byID[id]; ok {
		m.currentPstate = pstate
	}
}

// PartitionBySleepState splits ids into the subset currently Sleeping and the
// subset currently in a Computation pstate (Idle or Computing); any id in
// neither state (mid-transition, or unknown) is reported via the err return.
func (r *Registry) PartitionBySleepState(ids machinerange.Range) (sleeping, awake machinerange.Range, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids.Elements(func(id int) {
		if err != nil {
			return
		}
		m, ok := r.byID[id]
		if !ok {
			err = fmt.Errorf("machines: unknown machine id %d", id)
			return
		}
		switch m.state {
		case Sleeping:
			sleeping.Insert(id)
		case Idle, Computing:
			awake.Insert(id)
		default:
			err = fmt.Errorf("machines: machine %d is mid-transition (state=%s)", id, m.state)
		}
	})
	return sleeping, awake, err
}
