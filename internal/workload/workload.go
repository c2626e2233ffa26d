// Package workload loads the workload file: a JSON job/profile description,
// validated against the "workload invalid" taxonomy (missing profile
// references, nb_res disagreements, composed-profile cycles) before any job
// is handed to the rest of the simulator.
package workload

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oar-team/batsim-sub001/internal/jobs"
	"github.com/oar-team/batsim-sub001/internal/submitter"
)

// rawFile mirrors the on-disk JSON shape of a workload file.
type rawFile struct {
	Description string             `json:"description"`
	Jobs        []rawJob           `json:"jobs"`
	Profiles    map[string]rawProf `json:"profiles"`
}

type rawJob struct {
	ID       int     `json:"id"`
	Subtime  float64 `json:"subtime"`
	Walltime float64 `json:"walltime"`
	Res      int     `json:"res"`
	Profile  string  `json:"profile"`
}

type rawProf struct {
	Type string `json:"type"`

	Delay float64 `json:"delay"`

	Cpu []float64   `json:"cpu"`
	Com []float64   `json:"com"`
	CpuScalar *float64 `json:"-"`
	ComScalar *float64 `json:"-"`

	Nb  int      `json:"nb"`
	Seq []string `json:"seq"`
}

// UnmarshalJSON distinguishes msg_par's array-valued cpu/com from
// msg_par_hg's scalar-valued cpu/com, since both fields share JSON keys but
// different shapes depending on Type.
func (p *rawProf) UnmarshalJSON(data []byte) error {
	type alias rawProf
	var probe struct {
		alias
		Cpu json.RawMessage `json:"cpu"`
		Com json.RawMessage `json:"com"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*p = rawProf(probe.alias)

	if len(probe.Cpu) > 0 && probe.Cpu[0] != '[' {
		var v float64
		if err := json.Unmarshal(probe.Cpu, &v); err != nil {
			return fmt.Errorf("profile cpu: %w", err)
		}
		p.CpuScalar = &v
		p.Cpu = nil
	} else if len(probe.Cpu) > 0 {
		if err := json.Unmarshal(probe.Cpu, &p.Cpu); err != nil {
			return fmt.Errorf("profile cpu: %w", err)
		}
	}
	if len(probe.Com) > 0 && probe.Com[0] != '[' {
		var v float64
		if err := json.Unmarshal(probe.Com, &v); err != nil {
			return fmt.Errorf("profile com: %w", err)
		}
		p.ComScalar = &v
		p.Com = nil
	} else if len(probe.Com) > 0 {
		if err := json.Unmarshal(probe.Com, &p.Com); err != nil {
			return fmt.Errorf("profile com: %w", err)
		}
	}
	return nil
}

// Result is a fully loaded and validated workload: ready-to-submit arrivals,
// job descriptors keyed by id, and a validated profile registry.
type Result struct {
	Arrivals []submitter.Arrival
	Jobs     []*jobs.Job
	Profiles *jobs.ProfileRegistry
}

// Load reads pattern, which is either a single JSON file path or a
// doublestar glob (e.g. "workloads/**/*.json") matching one or more JSON
// workload files, merges their jobs/profiles, and validates the result.
func Load(pattern string) (*Result, error) {
	paths, err := resolvePaths(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("workload: pattern %q matched no files", pattern)
	}

	profiles := jobs.NewProfileRegistry()
	var allJobs []*jobs.Job
	var arrivals []submitter.Arrival
	seenJobIDs := make(map[int]bool)

	for _, path := range paths {
		raw, err := loadOne(path)
		if err != nil {
			return nil, err
		}
		for name, rp := range raw.Profiles {
			p, err := toProfile(rp)
			if err != nil {
				return nil, fmt.Errorf("workload: %s: profile %q: %w", path, name, err)
			}
			profiles.Register(name, p)
		}
		for _, rj := range raw.Jobs {
			if seenJobIDs[rj.ID] {
				return nil, fmt.Errorf("workload: %s: duplicate job id %d", path, rj.ID)
			}
			seenJobIDs[rj.ID] = true
			allJobs = append(allJobs, jobs.NewJob(rj.ID, rj.Profile, rj.Subtime, rj.Walltime, rj.Res))
			arrivals = append(arrivals, submitter.Arrival{JobID: rj.ID, SubmissionTime: rj.Subtime})
		}
	}

	if err := validate(allJobs, profiles); err != nil {
		return nil, err
	}

	return &Result{Arrivals: arrivals, Jobs: allJobs, Profiles: profiles}, nil
}

func resolvePaths(pattern string) ([]string, error) {
	if !containsGlobMeta(pattern) {
		return []string{pattern}, nil
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("workload: invalid glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func containsGlobMeta(s string) bool {
	for _, c := range s {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func loadOne(path string) (*rawFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workload: reading %q: %w", path, err)
	}
	var f rawFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("workload: parsing %q: %w", path, err)
	}
	return &f, nil
}

func toProfile(rp rawProf) (jobs.Profile, error) {
	switch rp.Type {
	case "delay":
		return jobs.DelayProfile{DelaySeconds: rp.Delay}, nil

	case "msg_par":
		h := jobs.HeterogeneousParallelProfile{CpuVector: rp.Cpu, ComMatrix: chunk(rp.Com, len(rp.Cpu))}
		if err := jobs.ValidateHeterogeneous(h); err != nil {
			return nil, err
		}
		return h, nil

	case "msg_par_hg":
		if rp.CpuScalar == nil || rp.ComScalar == nil {
			return nil, fmt.Errorf("msg_par_hg profile requires scalar cpu and com")
		}
		return jobs.HomogeneousParallelProfile{Cpu: *rp.CpuScalar, Com: *rp.ComScalar}, nil

	case "composed":
		return jobs.ComposedSequenceProfile{Sequence: rp.Seq, Repeat: rp.Nb}, nil

	case "smpi":
		return nil, fmt.Errorf("smpi profiles are not supported by this simulator")

	default:
		return nil, fmt.Errorf("unknown profile type %q", rp.Type)
	}
}

// chunk splits a flat length*length row-major matrix into rows. Mismatched
// lengths are caught by ValidateHeterogeneous rather than here.
func chunk(flat []float64, n int) [][]float64 {
	if n == 0 {
		return nil
	}
	rows := make([][]float64, 0, n)
	for i := 0; i+n <= len(flat); i += n {
		rows = append(rows, flat[i:i+n])
	}
	return rows
}

// validate implements the "workload invalid" taxonomy: every job's profile
// must exist, every msg_par profile actually used must agree in size with
// the requesting job's resource count (msg_par_hg profiles are sized to the
// allocation at run time and are not checked), every composed profile's
// steps must reference existing profiles, and no composed profile may be
// part of a cycle.
func validate(jobList []*jobs.Job, profiles *jobs.ProfileRegistry) error {
	for _, j := range jobList {
		p := profiles.ByName(j.ProfileName)
		if p == nil {
			return fmt.Errorf("workload: job %d references unknown profile %q", j.ID, j.ProfileName)
		}
		if het, ok := p.(jobs.HeterogeneousParallelProfile); ok {
			if len(het.CpuVector) != j.RequestedHosts {
				return fmt.Errorf("workload: job %d requests %d hosts but profile %q sizes for %d", j.ID, j.RequestedHosts, j.ProfileName, len(het.CpuVector))
			}
		}
	}
	for _, name := range profiles.Names() {
		p := profiles.ByName(name)
		seq, ok := p.(jobs.ComposedSequenceProfile)
		if !ok {
			continue
		}
		for _, step := range seq.Sequence {
			if profiles.ByName(step) == nil {
				return fmt.Errorf("workload: composed profile %q references unknown profile %q", name, step)
			}
		}
	}
	if err := profiles.ValidateComposedSequences(); err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	return nil
}
