// Package power implements the power-state transitioners: switching a
// machine set off into a sleep pstate, or on into a computation pstate,
// costs virtual time modeled as a fixed-size parallel task (one flop,
// single host, no communication) run per machine, after which the machine
// registry is updated and the orchestrator is notified.
//
// Each machine's transition runs in its own goroutine that signals
// completion back to the orchestrator, the same per-unit-of-work shape
// internal/execution uses to run a job's profile.
package power

import (
	"github.com/oar-team/batsim-sub001/internal/clog"
	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/kernel"
	"github.com/oar-team/batsim-sub001/internal/machinerange"
	"github.com/oar-team/batsim-sub001/internal/machines"
)

// transitionCost is the fixed virtual-time cost of a single pstate
// transition, expressed as one flop computed at the configured timing
// model's rate.
const transitionCost = 1.0

// Transitioner runs switch-on/switch-off transitions for a machine registry.
type Transitioner struct {
	k        *kernel.Kernel
	machines *machines.Registry
	model    kernel.TimingModel
	log      *clog.Logger
}

// New returns a Transitioner.
func New(k *kernel.Kernel, machineReg *machines.Registry, model kernel.TimingModel, log *clog.Logger) *Transitioner {
	return &Transitioner{k: k, machines: machineReg, model: model, log: log}
}

// SwitchOff transitions every machine in ids into targetSleepPstate,
// spawning one goroutine per machine so transitions run concurrently in
// virtual time; each posts its own SwitchedOffMessage once settled.
func (t *Transitioner) SwitchOff(ids machinerange.Range, targetSleepPstate int) {
	ids.Elements(func(id int) {
		m := t.machines.Lookup(id)
		if m == nil {
			t.log.Errorf("switch-off requested for unknown machine %d", id)
			return
		}
		trans, ok := m.SleepTransition(targetSleepPstate)
		if !ok {
			t.log.Errorf("machine %d has no declared transition for sleep pstate %d", id, targetSleepPstate)
			return
		}
		t.machines.BeginSwitchOff(machinerange.Of(id), trans.SwitchOffVirtual)
		t.k.Spawn(func() {
			t.runTransitionCost()
			t.machines.FinishSwitchOff(id, targetSleepPstate)
			t.log.Infof("machine %d switched off to pstate %d at t=%s", id, targetSleepPstate, t.k.Now())
			t.k.Send(ipp.Server, ipp.SwitchedOffMessage{MachineID: id, NewPstate: targetSleepPstate})
		})
	})
}

// SwitchOn transitions every machine in ids into targetComputationPstate,
// using each machine's current sleep pstate to find the virtual pstate it
// transitions through while waking up.
func (t *Transitioner) SwitchOn(ids machinerange.Range, targetComputationPstate int) {
	ids.Elements(func(id int) {
		m := t.machines.Lookup(id)
		if m == nil {
			t.log.Errorf("switch-on requested for unknown machine %d", id)
			return
		}
		trans, ok := m.SleepTransition(m.Pstate())
		if !ok {
			t.log.Errorf("machine %d has no declared transition out of its current sleep pstate %d", id, m.Pstate())
			return
		}
		t.machines.BeginSwitchOn(machinerange.Of(id), trans.SwitchOnVirtual)
		t.k.Spawn(func() {
			t.runTransitionCost()
			t.machines.FinishSwitchOn(id, targetComputationPstate)
			t.log.Infof("machine %d switched on to pstate %d at t=%s", id, targetComputationPstate, t.k.Now())
			t.k.Send(ipp.Server, ipp.SwitchedOnMessage{MachineID: id, NewPstate: targetComputationPstate})
		})
	})
}

func (t *Transitioner) runTransitionCost() {
	h := t.k.ParallelTask(t.model, []float64{transitionCost}, [][]float64{{0}})
	h.Execute()
}
