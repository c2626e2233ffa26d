// Package platform loads the platform file: a YAML description of the
// cluster's hosts, which one is the master, and the pstate tables consumed
// by internal/machines. Link topology is read but left opaque, since the
// simulator never routes traffic over the declared network graph.
package platform

import (
	"fmt"
	"os"

	"github.com/oar-team/batsim-sub001/internal/machines"
	"gopkg.in/yaml.v3"
)

// Pstate is one row of a host's pstate table.
type Pstate struct {
	ID   int    `yaml:"id"`
	Kind string `yaml:"kind"` // "computation", "sleep", "transition"

	// SwitchOnVirtual/SwitchOffVirtual are only meaningful for Kind=="sleep":
	// the transition pstates entered while leaving/entering this sleep state.
	SwitchOnVirtual  int `yaml:"switch_on_pstate,omitempty"`
	SwitchOffVirtual int `yaml:"switch_off_pstate,omitempty"`
}

// Host is one entry in the platform file's host list.
type Host struct {
	Name          string   `yaml:"name"`
	DefaultPstate int      `yaml:"default_pstate"`
	Pstates       []Pstate `yaml:"pstates"`
}

// File is the top-level shape of a platform YAML document.
type File struct {
	Hosts []Host `yaml:"hosts"`
	Links []Link `yaml:"links,omitempty"`
}

// Link is read but never interpreted by the core. Kept so parsing a
// platform file that carries one doesn't fail.
type Link struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Load reads and parses a platform file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("platform: reading %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("platform: parsing %q: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("platform: %q: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Hosts) == 0 {
		return fmt.Errorf("no hosts defined")
	}
	seen := make(map[string]bool, len(f.Hosts))
	for _, h := range f.Hosts {
		if h.Name == "" {
			return fmt.Errorf("host with empty name")
		}
		if seen[h.Name] {
			return fmt.Errorf("duplicate host name %q", h.Name)
		}
		seen[h.Name] = true
	}
	return nil
}

// MasterIndex returns the index into Hosts of the host named masterName.
func (f *File) MasterIndex(masterName string) (int, error) {
	for i, h := range f.Hosts {
		if h.Name == masterName {
			return i, nil
		}
	}
	return -1, fmt.Errorf("platform: no host named %q (required by --master-host)", masterName)
}

// BuildRegistry constructs a machines.Registry from the parsed file,
// designating the host named masterName as the master machine, which is
// excluded from every job allocation the scheduler can produce.
func BuildRegistry(f *File, masterName string, spaceSharing bool) (*machines.Registry, error) {
	masterIdx, err := f.MasterIndex(masterName)
	if err != nil {
		return nil, err
	}

	built := make([]*machines.Machine, 0, len(f.Hosts))
	var master *machines.Machine
	for i, h := range f.Hosts {
		kinds, sleeps, err := pstateTables(h)
		if err != nil {
			return nil, fmt.Errorf("platform: host %q: %w", h.Name, err)
		}
		m := machines.NewMachine(i, h.Name, h.Name, h.DefaultPstate, kinds, sleeps)
		if i == masterIdx {
			master = m
			continue
		}
		built = append(built, m)
	}
	return machines.NewRegistry(built, master, spaceSharing), nil
}

func pstateTables(h Host) (map[int]machines.PstateKind, map[int]machines.SleepTransition, error) {
	kinds := make(map[int]machines.PstateKind, len(h.Pstates))
	sleeps := make(map[int]machines.SleepTransition)
	for _, p := range h.Pstates {
		kind, err := parseKind(p.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("pstate %d: %w", p.ID, err)
		}
		kinds[p.ID] = kind
		if kind == machines.Sleep {
			sleeps[p.ID] = machines.SleepTransition{
				SwitchOnVirtual:  p.SwitchOnVirtual,
				SwitchOffVirtual: p.SwitchOffVirtual,
			}
		}
	}
	if len(kinds) == 0 {
		kinds[h.DefaultPstate] = machines.Computation
	}
	return kinds, sleeps, nil
}

func parseKind(s string) (machines.PstateKind, error) {
	switch s {
	case "", "computation":
		return machines.Computation, nil
	case "sleep":
		return machines.Sleep, nil
	case "transition":
		return machines.TransitionVirtual, nil
	default:
		return 0, fmt.Errorf("unknown pstate kind %q", s)
	}
}
