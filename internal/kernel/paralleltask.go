package kernel

import "time"

// TimingModel turns a parallel computation's resource shape into a virtual
// duration. A physically accurate flow-level network/CPU model (in the style
// of SimGrid) is out of scope here, so the kernel only requires a pluggable,
// deterministic stand-in.
type TimingModel interface {
	// Duration returns how long a parallel task runs given, for each of the
	// len(cpu) allocated hosts, a flop count in cpu[i], and the byte count to
	// send from host i to host j in com[i][j] (i==j is always 0).
	Duration(cpu []float64, com [][]float64) time.Duration
}

// LinearTimingModel is the default TimingModel: every host computes its flops
// at FlopsPerSecond and every communication edge transfers at BytesPerSecond,
// all running concurrently, so the task's duration is the slowest of any
// host's compute time or any pair's communication time.
type LinearTimingModel struct {
	FlopsPerSecond float64
	BytesPerSecond float64
}

// Duration implements TimingModel.
func (m LinearTimingModel) Duration(cpu []float64, com [][]float64) time.Duration {
	var seconds float64
	for _, f := range cpu {
		if f <= 0 {
			continue
		}
		if s := f / m.FlopsPerSecond; s > seconds {
			seconds = s
		}
	}
	for _, row := range com {
		for _, b := range row {
			if b <= 0 {
				continue
			}
			if s := b / m.BytesPerSecond; s > seconds {
				seconds = s
			}
		}
	}
	return time.Duration(seconds * float64(time.Second))
}

// ParallelTaskHandle represents an in-flight parallel computation started by
// ParallelTask. Execute blocks until completion or cancellation; Cancel may be
// called from any other task and is idempotent, including after completion.
type ParallelTaskHandle struct {
	awaiter *Awaiter
}

// ParallelTask starts a parallel computation across hosts, with per-host flop
// counts in cpu and a per-pair byte matrix in com, timed by model. It returns
// immediately; call Execute to block until it finishes.
func (k *Kernel) ParallelTask(model TimingModel, cpu []float64, com [][]float64) *ParallelTaskHandle {
	d := model.Duration(cpu, com)
	return &ParallelTaskHandle{awaiter: k.After(d)}
}

// Execute blocks until the parallel task finishes or is cancelled, returning
// true if it was cancelled rather than having run to completion, so a caller
// racing it against a walltime budget can tell which one won.
func (h *ParallelTaskHandle) Execute() (cancelled bool) {
	return h.awaiter.Wait()
}

// Cancel stops the parallel task if it hasn't finished yet. Safe to call
// after completion.
func (h *ParallelTaskHandle) Cancel() {
	h.awaiter.Cancel()
}
