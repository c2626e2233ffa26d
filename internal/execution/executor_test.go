package execution

import (
	"testing"
	"time"

	"github.com/oar-team/batsim-sub001/internal/clog"
	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/jobs"
	"github.com/oar-team/batsim-sub001/internal/kernel"
	"github.com/oar-team/batsim-sub001/internal/machinerange"
	"github.com/oar-team/batsim-sub001/internal/machines"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(k *kernel.Kernel, profiles *jobs.ProfileRegistry) (*Executor, *machines.Registry) {
	ms := make([]*machines.Machine, 4)
	for i := range ms {
		ms[i] = machines.NewMachine(i, "n", "h", 0, map[int]machines.PstateKind{0: machines.Computation}, nil)
	}
	reg := machines.NewRegistry(ms, nil, false)
	model := kernel.LinearTimingModel{FlopsPerSecond: 1, BytesPerSecond: 1}
	return New(k, reg, profiles, model, clog.New("test")), reg
}

func TestExecutorRunsDelayProfileToCompletion(t *testing.T) {
	k := kernel.New()
	profiles := jobs.NewProfileRegistry()
	profiles.Register("d5", jobs.DelayProfile{DelaySeconds: 5})
	exec, reg := newTestExecutor(k, profiles)

	job := jobs.NewJob(1, "d5", 0, -1, 2)
	alloc := machinerange.Of(0, 1)
	require.NoError(t, reg.OnJobStart(job.ID, alloc))

	got := make(chan ipp.JobCompletedMessage, 1)
	k.Spawn(func() {
		got <- k.Receive(ipp.Server).(ipp.JobCompletedMessage)
	})
	exec.Submit(job, alloc)

	msg := <-got
	assert.Equal(t, ipp.OutcomeFinished, msg.Outcome)
	assert.Equal(t, 5*time.Second, k.Now())
	assert.True(t, reg.Lookup(0).IsFree())
}

func TestExecutorKillsJobExceedingWalltime(t *testing.T) {
	k := kernel.New()
	profiles := jobs.NewProfileRegistry()
	profiles.Register("d10", jobs.DelayProfile{DelaySeconds: 10})
	exec, reg := newTestExecutor(k, profiles)

	job := jobs.NewJob(1, "d10", 0, 3, 1)
	alloc := machinerange.Of(0)
	require.NoError(t, reg.OnJobStart(job.ID, alloc))

	got := make(chan ipp.JobCompletedMessage, 1)
	k.Spawn(func() {
		got <- k.Receive(ipp.Server).(ipp.JobCompletedMessage)
	})
	exec.Submit(job, alloc)

	msg := <-got
	assert.Equal(t, ipp.OutcomeKilled, msg.Outcome)
	assert.Equal(t, 3*time.Second, k.Now())
}

func TestExecutorWalltimeZeroKillsImmediately(t *testing.T) {
	k := kernel.New()
	profiles := jobs.NewProfileRegistry()
	profiles.Register("d1", jobs.DelayProfile{DelaySeconds: 1})
	exec, reg := newTestExecutor(k, profiles)

	job := jobs.NewJob(1, "d1", 0, 0, 1)
	alloc := machinerange.Of(0)
	require.NoError(t, reg.OnJobStart(job.ID, alloc))

	got := make(chan ipp.JobCompletedMessage, 1)
	k.Spawn(func() {
		got <- k.Receive(ipp.Server).(ipp.JobCompletedMessage)
	})
	exec.Submit(job, alloc)

	msg := <-got
	assert.Equal(t, ipp.OutcomeKilled, msg.Outcome)
	assert.Equal(t, time.Duration(0), k.Now())
}

func TestExecutorRunsComposedSequenceWithRepeat(t *testing.T) {
	k := kernel.New()
	profiles := jobs.NewProfileRegistry()
	profiles.Register("leaf", jobs.DelayProfile{DelaySeconds: 2})
	profiles.Register("top", jobs.ComposedSequenceProfile{Sequence: []string{"leaf", "leaf"}, Repeat: 3})
	exec, reg := newTestExecutor(k, profiles)

	job := jobs.NewJob(1, "top", 0, -1, 1)
	alloc := machinerange.Of(0)
	require.NoError(t, reg.OnJobStart(job.ID, alloc))

	got := make(chan ipp.JobCompletedMessage, 1)
	k.Spawn(func() {
		got <- k.Receive(ipp.Server).(ipp.JobCompletedMessage)
	})
	exec.Submit(job, alloc)

	msg := <-got
	assert.Equal(t, ipp.OutcomeFinished, msg.Outcome)
	assert.Equal(t, 12*time.Second, k.Now()) // 2 steps * 2s * 3 repeats
}

func TestExecutorRunsHomogeneousParallelProfile(t *testing.T) {
	k := kernel.New()
	profiles := jobs.NewProfileRegistry()
	profiles.Register("hp", jobs.HomogeneousParallelProfile{Cpu: 4, Com: 0})
	exec, reg := newTestExecutor(k, profiles)

	job := jobs.NewJob(1, "hp", 0, -1, 2)
	alloc := machinerange.Of(0, 1)
	require.NoError(t, reg.OnJobStart(job.ID, alloc))

	got := make(chan ipp.JobCompletedMessage, 1)
	k.Spawn(func() {
		got <- k.Receive(ipp.Server).(ipp.JobCompletedMessage)
	})
	exec.Submit(job, alloc)

	msg := <-got
	assert.Equal(t, ipp.OutcomeFinished, msg.Outcome)
	assert.Equal(t, 4*time.Second, k.Now())
}
