package machines

import (
	"testing"

	"github.com/oar-team/batsim-sub001/internal/machinerange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func computationKinds() map[int]PstateKind {
	return map[int]PstateKind{0: Computation, 1: Computation}
}

func newTestRegistry(n int) *Registry {
	ms := make([]*Machine, n)
	for i := 0; i < n; i++ {
		ms[i] = NewMachine(i, "node", "host", 0, computationKinds(), nil)
	}
	return NewRegistry(ms, nil, false)
}

func TestOnJobStartMarksMachinesComputing(t *testing.T) {
	r := newTestRegistry(4)
	ids := machinerange.Of(0, 1)
	require.NoError(t, r.OnJobStart(42, ids))
	assert.Equal(t, Computing, r.Lookup(0).State())
	assert.Equal(t, Computing, r.Lookup(1).State())
	assert.Equal(t, Idle, r.Lookup(2).State())
}

func TestOnJobStartRejectsAlreadyAllocatedMachineWithoutSpaceSharing(t *testing.T) {
	r := newTestRegistry(2)
	require.NoError(t, r.OnJobStart(1, machinerange.Of(0)))
	err := r.OnJobStart(2, machinerange.Of(0, 1))
	assert.Error(t, err)
	assert.Equal(t, Idle, r.Lookup(1).State(), "rejected allocation must not partially mutate state")
}

func TestOnJobEndReturnsMachineToIdleOnlyWhenNoJobsRemain(t *testing.T) {
	r := newTestRegistry(2)
	require.NoError(t, r.OnJobStart(1, machinerange.Of(0)))
	r.OnJobEnd(1, machinerange.Of(0))
	assert.Equal(t, Idle, r.Lookup(0).State())
}

func TestValidateAllocationRejectsUnknownMachine(t *testing.T) {
	r := newTestRegistry(2)
	err := r.ValidateAllocation(machinerange.Of(0, 99))
	assert.Error(t, err)
}

func TestValidateAllocationRejectsNonComputationPstate(t *testing.T) {
	r := newTestRegistry(1)
	r.Lookup(0).pstateKinds[0] = Sleep
	err := r.ValidateAllocation(machinerange.Of(0))
	assert.Error(t, err)
}

func TestSwitchOffThenOnRoundTrip(t *testing.T) {
	r := newTestRegistry(1)
	r.BeginSwitchOff(machinerange.Of(0), 2)
	assert.Equal(t, TransitingComputingToSleeping, r.Lookup(0).State())
	r.FinishSwitchOff(0, 3)
	assert.Equal(t, Sleeping, r.Lookup(0).State())

	r.BeginSwitchOn(machinerange.Of(0), 4)
	assert.Equal(t, TransitingSleepToComputing, r.Lookup(0).State())
	r.FinishSwitchOn(0, 0)
	assert.Equal(t, Idle, r.Lookup(0).State())
	assert.Equal(t, 0, r.Lookup(0).Pstate())
}

func TestPartitionBySleepState(t *testing.T) {
	r := newTestRegistry(3)
	r.BeginSwitchOff(machinerange.Of(0), 2)
	r.FinishSwitchOff(0, 3)

	sleeping, awake, err := r.PartitionBySleepState(machinerange.Of(0, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, "0", sleeping.StringHyphen())
	assert.Equal(t, "1-2", awake.StringHyphen())
}

func TestPartitionBySleepStateRejectsMidTransition(t *testing.T) {
	r := newTestRegistry(1)
	r.BeginSwitchOff(machinerange.Of(0), 2)
	_, _, err := r.PartitionBySleepState(machinerange.Of(0))
	assert.Error(t, err)
}
