package trace

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/oar-team/batsim-sub001/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushWritesJobsCSV(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")
	w := New(prefix)

	j := jobs.NewJob(1, "delay5", 0, -1, 2)
	j.State = jobs.Completed
	j.StartTime = 0
	j.FinishTime = 5
	w.RecordJob(j, "0-1")

	summary, err := w.Flush(12345)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NbJobsSubmitted)
	assert.Equal(t, 1, summary.NbJobsSuccessful)
	assert.Equal(t, float64(5), summary.Makespan)

	f, err := os.Open(prefix + "_jobs.csv")
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "0-1", rows[1][4])
	assert.Equal(t, "COMPLETED_SUCCESS", rows[1][5])
}

func TestComputeSummaryCountsKilledSeparately(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "out"))
	killed := jobs.NewJob(2, "delay10", 0, 3, 1)
	killed.State = jobs.Killed
	killed.StartTime = 0
	killed.FinishTime = 3
	w.RecordJob(killed, "0")

	summary, err := w.Flush(0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NbJobsKilled)
	assert.Equal(t, 0, summary.NbJobsSuccessful)
}

func TestPrintSummaryAlignsLabels(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Summary{NbJobsSubmitted: 3})
	assert.Contains(t, buf.String(), "jobs submitted")
}
