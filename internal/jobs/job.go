package jobs

import (
	"fmt"

	"github.com/oar-team/batsim-sub001/internal/machinerange"
)

// State is a job's position in its state machine:
//
//	NotSubmitted -> Submitted -> Running -> {Completed, Killed}
//	NotSubmitted -> Submitted -> Rejected
//
// A job descriptor is created (in NotSubmitted) when the workload is loaded;
// it advances to Submitted only once the submitter's JOB_SUBMITTED event for
// it has reached the orchestrator.
type State int

const (
	NotSubmitted State = iota
	Submitted
	Running
	Completed
	Killed
	Rejected
)

func (s State) String() string {
	switch s {
	case NotSubmitted:
		return "NOT_SUBMITTED"
	case Submitted:
		return "SUBMITTED"
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED_SUCCESS"
	case Killed:
		return "COMPLETED_KILLED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Job is one job tracked from submission through to a terminal state.
type Job struct {
	ID             int
	ProfileName    string
	SubmissionTime float64 // virtual seconds
	WalltimeSeconds float64 // virtual seconds; <0 means unlimited
	RequestedHosts  int

	State             State
	Allocation        machinerange.Range
	StartTime         float64
	FinishTime        float64
}

// NewJob returns a job descriptor in its initial NotSubmitted state, as
// created from the workload file before the simulation starts.
func NewJob(id int, profileName string, submissionTime, walltimeSeconds float64, requestedHosts int) *Job {
	return &Job{
		ID:              id,
		ProfileName:     profileName,
		SubmissionTime:  submissionTime,
		WalltimeSeconds: walltimeSeconds,
		RequestedHosts:  requestedHosts,
		State:           NotSubmitted,
	}
}

// Registry tracks every job submitted during a simulation run, keyed by id.
// It is owned and mutated exclusively by the orchestrator's single dispatch
// loop, so unlike machines.Registry it needs no internal synchronization.
type Registry struct {
	byID map[int]*Job
	next int
}

// NewRegistry returns an empty job Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[int]*Job)}
}

// Add registers a job descriptor loaded from the workload file, in state
// NotSubmitted.
func (r *Registry) Add(j *Job) { r.byID[j.ID] = j }

// Lookup returns the job with the given id, or nil.
func (r *Registry) Lookup(id int) *Job { return r.byID[id] }

// All returns every job ever added, in no particular order.
func (r *Registry) All() []*Job {
	jobs := make([]*Job, 0, len(r.byID))
	for _, j := range r.byID {
		jobs = append(jobs, j)
	}
	return jobs
}

// MarkSubmitted transitions a job from NotSubmitted to Submitted, as
// reported by the submitter's JOB_SUBMITTED event reaching the orchestrator.
func (r *Registry) MarkSubmitted(id int) error {
	j := r.byID[id]
	if j == nil {
		return fmt.Errorf("jobs: unknown job %d", id)
	}
	if j.State != NotSubmitted {
		return fmt.Errorf("jobs: job %d cannot be submitted from state %s", id, j.State)
	}
	j.State = Submitted
	return nil
}

// MarkAllocated transitions a job from Submitted to Running with the given
// allocation and start time.
func (r *Registry) MarkAllocated(id int, alloc machinerange.Range, startTime float64) error {
	j := r.byID[id]
	if j == nil {
		return fmt.Errorf("jobs: unknown job %d", id)
	}
	if j.State != Submitted {
		return fmt.Errorf("jobs: job %d cannot be allocated from state %s", id, j.State)
	}
	j.State = Running
	j.Allocation = alloc
	j.StartTime = startTime
	return nil
}

// MarkRejected transitions a job from Submitted to Rejected.
func (r *Registry) MarkRejected(id int) error {
	j := r.byID[id]
	if j == nil {
		return fmt.Errorf("jobs: unknown job %d", id)
	}
	if j.State != Submitted {
		return fmt.Errorf("jobs: job %d cannot be rejected from state %s", id, j.State)
	}
	j.State = Rejected
	return nil
}

// MarkTerminal transitions a job from Running to Completed or Killed.
func (r *Registry) MarkTerminal(id int, killed bool, finishTime float64) error {
	j := r.byID[id]
	if j == nil {
		return fmt.Errorf("jobs: unknown job %d", id)
	}
	if j.State != Running {
		return fmt.Errorf("jobs: job %d cannot terminate from state %s", id, j.State)
	}
	if killed {
		j.State = Killed
	} else {
		j.State = Completed
	}
	j.FinishTime = finishTime
	return nil
}

// AllTerminal reports whether every job ever added has reached a terminal
// state (Completed, Killed, or Rejected), the condition the orchestrator
// waits on before it considers the run finished.
func (r *Registry) AllTerminal() bool {
	for _, j := range r.byID {
		switch j.State {
		case Completed, Killed, Rejected:
		default:
			return false
		}
	}
	return true
}

// Count returns the number of jobs ever added.
func (r *Registry) Count() int { return len(r.byID) }
