// Package execution implements the job-execution subsystem: a profile
// interpreter that walks a job's (possibly composed) profile tree inside
// the virtual-time kernel, racing the whole run against the job's walltime
// using the "first-to-finish-wins, loser cancelled" pattern documented on
// kernel.Awaiter and kernel.ParallelTask.
//
// Each job runs in its own goroutine that signals completion on a channel
// once its profile tree finishes or is killed, the same per-unit-of-work
// lifecycle internal/power uses to run one machine's power transition.
package execution

import (
	"time"

	"github.com/oar-team/batsim-sub001/internal/clog"
	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/jobs"
	"github.com/oar-team/batsim-sub001/internal/kernel"
	"github.com/oar-team/batsim-sub001/internal/machinerange"
	"github.com/oar-team/batsim-sub001/internal/machines"
)

// Executor runs submitted jobs' profile trees against the kernel and posts
// their outcome to the orchestrator's mailbox.
type Executor struct {
	k        *kernel.Kernel
	machines *machines.Registry
	profiles *jobs.ProfileRegistry
	model    kernel.TimingModel
	log      *clog.Logger
}

// New returns an Executor using model to size parallel-task durations.
func New(k *kernel.Kernel, machineReg *machines.Registry, profileReg *jobs.ProfileRegistry, model kernel.TimingModel, log *clog.Logger) *Executor {
	return &Executor{k: k, machines: machineReg, profiles: profileReg, model: model, log: log}
}

// Submit spawns the goroutine that runs job's profile over alloc and, once
// it finishes or is killed, marks alloc free again and posts
// ipp.JobCompletedMessage to the server mailbox.
func (e *Executor) Submit(job *jobs.Job, alloc machinerange.Range) {
	e.k.Spawn(func() {
		killed := e.run(job, alloc)
		e.machines.OnJobEnd(job.ID, alloc)
		outcome := ipp.OutcomeFinished
		if killed {
			outcome = ipp.OutcomeKilled
		}
		e.log.Debugf("job %d finished at t=%s (killed=%v)", job.ID, e.k.Now(), killed)
		e.k.Send(ipp.Server, ipp.JobCompletedMessage{JobID: job.ID, Outcome: outcome})
	})
}

// run executes job's top-level profile to completion or until walltime
// expires, whichever comes first, and reports whether the job was killed by
// walltime.
func (e *Executor) run(job *jobs.Job, alloc machinerange.Range) bool {
	var budget *kernel.Awaiter
	if job.WalltimeSeconds >= 0 {
		budget = e.k.After(secondsToDuration(job.WalltimeSeconds))
	}
	rs := &runState{e: e, alloc: alloc, budget: budget}
	rs.executeByName(job.ProfileName)
	if budget != nil {
		budget.Cancel()
	}
	return rs.killed
}

type runState struct {
	e      *Executor
	alloc  machinerange.Range
	budget *kernel.Awaiter
	killed bool
}

func (rs *runState) executeByName(name string) {
	if rs.killed {
		return
	}
	p := rs.e.profiles.ByName(name)
	if p == nil {
		rs.e.log.Errorf("profile %q referenced but not registered; treating as immediate completion", name)
		return
	}
	rs.execute(p)
}

func (rs *runState) execute(p jobs.Profile) {
	if rs.killed {
		return
	}
	switch v := p.(type) {
	case jobs.DelayProfile:
		rs.runDelay(v.DelaySeconds)
	case jobs.HomogeneousParallelProfile:
		n := rs.alloc.Size()
		cpu := make([]float64, n)
		com := make([][]float64, n)
		for i := range cpu {
			cpu[i] = v.Cpu
			com[i] = make([]float64, n)
			for j := range com[i] {
				if i != j {
					com[i][j] = v.Com
				}
			}
		}
		rs.runParallel(cpu, com)
	case jobs.HeterogeneousParallelProfile:
		rs.runParallel(v.CpuVector, v.ComMatrix)
	case jobs.ComposedSequenceProfile:
		for r := 0; r < v.Repeat && !rs.killed; r++ {
			for _, step := range v.Sequence {
				if rs.killed {
					return
				}
				rs.executeByName(step)
			}
		}
	default:
		rs.e.log.Errorf("profile kind %v has no interpreter; treating as immediate completion", p.Kind())
	}
}

func (rs *runState) runDelay(seconds float64) {
	a := rs.e.k.After(secondsToDuration(seconds))
	rs.raceAgainstBudget(a.Cancel)
	if a.Wait() {
		rs.killed = true
	}
}

func (rs *runState) runParallel(cpu []float64, com [][]float64) {
	h := rs.e.k.ParallelTask(rs.e.model, cpu, com)
	rs.raceAgainstBudget(h.Cancel)
	if h.Execute() {
		rs.killed = true
	}
}

// raceAgainstBudget spawns a watcher that invokes cancel as soon as the
// walltime budget fires (if one is set), so whichever of the leaf's own
// completion or the walltime deadline comes first determines the outcome.
func (rs *runState) raceAgainstBudget(cancel func()) {
	if rs.budget == nil {
		return
	}
	budget := rs.budget
	rs.e.k.Spawn(func() {
		if !budget.Wait() {
			cancel()
		}
	})
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds * float64(time.Second))
}
