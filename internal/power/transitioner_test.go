package power

import (
	"testing"
	"time"

	"github.com/oar-team/batsim-sub001/internal/clog"
	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/kernel"
	"github.com/oar-team/batsim-sub001/internal/machinerange"
	"github.com/oar-team/batsim-sub001/internal/machines"
	"github.com/stretchr/testify/assert"
)

func newTestMachine(id int) *machines.Machine {
	kinds := map[int]machines.PstateKind{
		0: machines.Computation,
		1: machines.TransitionVirtual,
		2: machines.TransitionVirtual,
		3: machines.Sleep,
	}
	sleeps := map[int]machines.SleepTransition{
		3: {SwitchOnVirtual: 1, SwitchOffVirtual: 2},
	}
	return machines.NewMachine(id, "n", "h", 0, kinds, sleeps)
}

func TestSwitchOffThenSwitchOnRoundTrip(t *testing.T) {
	k := kernel.New()
	m := newTestMachine(0)
	reg := machines.NewRegistry([]*machines.Machine{m}, nil, false)
	model := kernel.LinearTimingModel{FlopsPerSecond: 1, BytesPerSecond: 1}
	tr := New(k, reg, model, clog.New("test"))

	offMsgs := make(chan ipp.SwitchedOffMessage, 1)
	k.Spawn(func() {
		offMsgs <- k.Receive(ipp.Server).(ipp.SwitchedOffMessage)
	})
	tr.SwitchOff(machinerange.Of(0), 3)
	off := <-offMsgs
	assert.Equal(t, 0, off.MachineID)
	assert.Equal(t, 3, off.NewPstate)
	assert.Equal(t, machines.Sleeping, reg.Lookup(0).State())
	assert.Equal(t, 1*time.Second, k.Now())

	onMsgs := make(chan ipp.SwitchedOnMessage, 1)
	k.Spawn(func() {
		onMsgs <- k.Receive(ipp.Server).(ipp.SwitchedOnMessage)
	})
	tr.SwitchOn(machinerange.Of(0), 0)
	on := <-onMsgs
	assert.Equal(t, 0, on.MachineID)
	assert.Equal(t, 0, on.NewPstate)
	assert.Equal(t, machines.Idle, reg.Lookup(0).State())
	assert.Equal(t, 2*time.Second, k.Now())
}
