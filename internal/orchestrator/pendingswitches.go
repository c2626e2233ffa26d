package orchestrator

import "github.com/oar-team/batsim-sub001/internal/machinerange"

// pendingSwitches tracks, per target pstate, the set of machine ids still
// transitioning there, so that many individual SWITCHED_ON/SWITCHED_OFF
// acknowledgments coalesce into a single outbound event once the whole
// group has settled: a mapping from target pstate to the remaining set of
// machines not yet arrived, with the entry dropped once that set drains.
type pendingSwitches struct {
	remaining map[int]machinerange.Range // target pstate -> ids still in flight
	original  map[int]machinerange.Range // target pstate -> full coalesced group
}

func newPendingSwitches() *pendingSwitches {
	return &pendingSwitches{
		remaining: make(map[int]machinerange.Range),
		original:  make(map[int]machinerange.Range),
	}
}

// add records that machineID has begun transitioning to targetPstate. If
// another group already targets the same pstate and hasn't finished yet,
// machineID joins it.
func (p *pendingSwitches) add(targetPstate, machineID int) {
	p.remaining[targetPstate] = p.remaining[targetPstate].Union(machinerange.Of(machineID))
	p.original[targetPstate] = p.original[targetPstate].Union(machinerange.Of(machineID))
}

// settle marks machineID as having finished transitioning to targetPstate.
// done reports whether this was the last outstanding machine in the group;
// group is the full coalesced set that just finished (valid only when done).
func (p *pendingSwitches) settle(targetPstate, machineID int) (done bool, group machinerange.Range) {
	remaining := p.remaining[targetPstate].Subtract(machinerange.Of(machineID))
	if remaining.IsEmpty() {
		group = p.original[targetPstate]
		delete(p.remaining, targetPstate)
		delete(p.original, targetPstate)
		return true, group
	}
	p.remaining[targetPstate] = remaining
	return false, machinerange.Empty()
}
