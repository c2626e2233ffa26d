package workload

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/oar-team/batsim-sub001/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadSingleFileDelayJob(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "w.json", map[string]any{
		"description": "test",
		"jobs": []map[string]any{
			{"id": 1, "subtime": 0, "walltime": -1, "res": 2, "profile": "d"},
		},
		"profiles": map[string]any{
			"d": map[string]any{"type": "delay", "delay": 5},
		},
	})

	result, err := Load(path)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, "d", result.Jobs[0].ProfileName)
	assert.Equal(t, jobs.DelayProfile{DelaySeconds: 5}, result.Profiles.ByName("d"))
}

func TestLoadRejectsMissingProfileReference(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "w.json", map[string]any{
		"jobs":     []map[string]any{{"id": 1, "subtime": 0, "walltime": -1, "res": 1, "profile": "missing"}},
		"profiles": map[string]any{},
	})
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsResMismatchForHeterogeneousProfile(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "w.json", map[string]any{
		"jobs": []map[string]any{{"id": 1, "subtime": 0, "walltime": -1, "res": 3, "profile": "p"}},
		"profiles": map[string]any{
			"p": map[string]any{"type": "msg_par", "cpu": []float64{1, 2}, "com": []float64{0, 0, 0, 0}},
		},
	})
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadParsesHomogeneousParallelProfile(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "w.json", map[string]any{
		"jobs": []map[string]any{{"id": 1, "subtime": 0, "walltime": -1, "res": 4, "profile": "p"}},
		"profiles": map[string]any{
			"p": map[string]any{"type": "msg_par_hg", "cpu": 1e9, "com": 0},
		},
	})
	result, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, jobs.HomogeneousParallelProfile{Cpu: 1e9, Com: 0}, result.Profiles.ByName("p"))
}

func TestLoadRejectsComposedCycle(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "w.json", map[string]any{
		"jobs": []map[string]any{{"id": 1, "subtime": 0, "walltime": -1, "res": 1, "profile": "a"}},
		"profiles": map[string]any{
			"a": map[string]any{"type": "composed", "nb": 1, "seq": []string{"b"}},
			"b": map[string]any{"type": "composed", "nb": 1, "seq": []string{"a"}},
		},
	})
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadGlobMergesMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "a.json", map[string]any{
		"jobs":     []map[string]any{{"id": 1, "subtime": 0, "walltime": -1, "res": 1, "profile": "d"}},
		"profiles": map[string]any{"d": map[string]any{"type": "delay", "delay": 1}},
	})
	writeJSON(t, dir, "b.json", map[string]any{
		"jobs":     []map[string]any{{"id": 2, "subtime": 1, "walltime": -1, "res": 1, "profile": "d"}},
		"profiles": map[string]any{"d": map[string]any{"type": "delay", "delay": 2}},
	})

	result, err := Load(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, result.Jobs, 2)
}

func TestLoadRejectsDuplicateJobID(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "a.json", map[string]any{
		"jobs":     []map[string]any{{"id": 1, "subtime": 0, "walltime": -1, "res": 1, "profile": "d"}},
		"profiles": map[string]any{"d": map[string]any{"type": "delay", "delay": 1}},
	})
	writeJSON(t, dir, "b.json", map[string]any{
		"jobs":     []map[string]any{{"id": 1, "subtime": 1, "walltime": -1, "res": 1, "profile": "d"}},
		"profiles": map[string]any{"d": map[string]any{"type": "delay", "delay": 2}},
	})

	_, err := Load(filepath.Join(dir, "*.json"))
	assert.Error(t, err)
}
