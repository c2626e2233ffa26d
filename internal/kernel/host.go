package kernel

import "sync"

// hostPState tracks the low-level numeric power state the event kernel
// believes each host is declared to be in. This is the primitive §4.1 calls
// host_set_pstate/host_get_pstate: an immediate change with no intrinsic time
// cost of its own (the time/energy cost of a transition is charged
// explicitly by the power-state subsystem via a 1-flop ParallelTask, not by
// this primitive).
type hostPState struct {
	mu     sync.Mutex
	states map[string]int
}

func newHostPState() *hostPState {
	return &hostPState{states: make(map[string]int)}
}

// SetHostPState immediately declares host to be in pstate id.
func (k *Kernel) SetHostPState(host string, pstate int) {
	k.hostStates().mu.Lock()
	defer k.hostStates().mu.Unlock()
	k.hostStates().states[host] = pstate
}

// HostPState returns the pstate id last declared for host, or -1 if none has
// been set.
func (k *Kernel) HostPState(host string) int {
	k.hostStates().mu.Lock()
	defer k.hostStates().mu.Unlock()
	if p, ok := k.hostStates().states[host]; ok {
		return p
	}
	return -1
}

func (k *Kernel) hostStates() *hostPState {
	k.mu.Lock()
	if k.hosts == nil {
		k.hosts = newHostPState()
	}
	h := k.hosts
	k.mu.Unlock()
	return h
}
