// Package jobs implements the job and profile data model: jobs move through
// a small state machine driven by the orchestrator and the execution
// subsystem, and a job's behavior while running is described by one of a
// closed set of profile variants.
//
// The profile registry is a plain map[string]T populated by Register calls,
// looked up by name, and listed via Names, the same small shape used for
// every other named lookup table in this codebase.
package jobs

import "fmt"

// Profile is implemented by every concrete job-behavior variant. Kind lets
// the execution subsystem type-switch without reflection.
type Profile interface {
	Kind() ProfileKind
}

// ProfileKind enumerates the closed set of profile variants.
type ProfileKind int

const (
	Delay ProfileKind = iota
	HomogeneousParallel
	HeterogeneousParallel
	ComposedSequence
)

func (k ProfileKind) String() string {
	switch k {
	case Delay:
		return "delay"
	case HomogeneousParallel:
		return "parallel_homogeneous"
	case HeterogeneousParallel:
		return "parallel_heterogeneous"
	case ComposedSequence:
		return "composed"
	default:
		return "unknown"
	}
}

// DelayProfile occupies its allocation for a fixed virtual duration without
// consuming simulated compute.
type DelayProfile struct {
	DelaySeconds float64
}

func (DelayProfile) Kind() ProfileKind { return Delay }

// HomogeneousParallelProfile runs a parallel task where every allocated host
// performs the same amount of computation and every ordered pair of hosts
// exchanges the same amount of data.
type HomogeneousParallelProfile struct {
	Cpu float64 // flop, per host
	Com float64 // bytes, per ordered host pair
}

func (HomogeneousParallelProfile) Kind() ProfileKind { return HomogeneousParallel }

// HeterogeneousParallelProfile runs a parallel task with an explicit
// per-host computation vector and an explicit host x host communication
// matrix, both sized to the job's allocation.
type HeterogeneousParallelProfile struct {
	CpuVector []float64   // flop, length == allocation size
	ComMatrix [][]float64 // bytes, allocation size x allocation size
}

func (HeterogeneousParallelProfile) Kind() ProfileKind { return HeterogeneousParallel }

// ComposedSequenceProfile runs a named sequence of other profiles back to
// back, Repeat times (a Repeat of 0 or less runs no step and completes
// immediately).
type ComposedSequenceProfile struct {
	Sequence []string
	Repeat   int
}

func (ComposedSequenceProfile) Kind() ProfileKind { return ComposedSequence }

// ValidateHeterogeneous checks that a heterogeneous profile's matrices are
// square and consistently sized with its cpu vector.
func ValidateHeterogeneous(p HeterogeneousParallelProfile) error {
	n := len(p.CpuVector)
	if len(p.ComMatrix) != n {
		return fmt.Errorf("jobs: heterogeneous profile com matrix has %d rows, want %d", len(p.ComMatrix), n)
	}
	for i, row := range p.ComMatrix {
		if len(row) != n {
			return fmt.Errorf("jobs: heterogeneous profile com matrix row %d has %d cols, want %d", i, len(row), n)
		}
	}
	return nil
}
