package jobs

import (
	"fmt"
	"slices"
)

// ProfileRegistry holds every profile declared by a loaded workload, keyed
// by name.
type ProfileRegistry struct {
	profiles map[string]Profile
}

// NewProfileRegistry returns an empty ProfileRegistry.
func NewProfileRegistry() *ProfileRegistry {
	return &ProfileRegistry{profiles: make(map[string]Profile)}
}

// Register adds or replaces the named profile.
func (r *ProfileRegistry) Register(name string, p Profile) {
	r.profiles[name] = p
}

// ByName returns the named profile, or nil if it was never registered.
func (r *ProfileRegistry) ByName(name string) Profile {
	return r.profiles[name]
}

// Names returns every registered profile name in ascending order.
func (r *ProfileRegistry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateComposedSequences checks, for every ComposedSequenceProfile in the
// registry, that every named step exists and that following steps can never
// cycle back to a profile already on the current path. A composed profile
// that references itself, directly or transitively, is rejected here at
// load time rather than left to recurse forever once a job actually runs it.
func (r *ProfileRegistry) ValidateComposedSequences() error {
	for _, name := range r.Names() {
		if err := r.checkAcyclic(name, make(map[string]bool)); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProfileRegistry) checkAcyclic(name string, onPath map[string]bool) error {
	if onPath[name] {
		return fmt.Errorf("jobs: profile %q participates in a composed-sequence cycle", name)
	}
	p := r.ByName(name)
	if p == nil {
		return fmt.Errorf("jobs: profile %q is referenced but not declared", name)
	}
	seq, ok := p.(ComposedSequenceProfile)
	if !ok {
		return nil
	}
	onPath[name] = true
	for _, step := range seq.Sequence {
		if err := r.checkAcyclic(step, onPath); err != nil {
			return err
		}
	}
	onPath[name] = false
	return nil
}
