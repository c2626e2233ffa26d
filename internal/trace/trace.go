// Package trace writes the three per-run output artifacts
// (`_schedule.trace`, `_schedule.csv`, `_jobs.csv`) plus a column-aligned
// textual summary of the run's statistics printed to stdout at shutdown,
// with labels aligned by their display width.
package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/oar-team/batsim-sub001/internal/jobs"
	"github.com/rivo/uniseg"
)

// JobRecord is one row of `<prefix>_jobs.csv`, carrying the fields a
// scheduling trace needs to reconstruct a job's lifecycle after the fact.
type JobRecord struct {
	JobID          int
	SubmissionTime float64
	StartTime      float64
	Runtime        float64
	Allocation     string
	FinalState     string
}

// Summary holds the run-level statistics printed and exported at shutdown.
type Summary struct {
	NbJobsSubmitted      int
	NbJobsCompleted      int
	NbJobsSuccessful     int
	NbJobsKilled         int
	Makespan             float64
	MaxTurnaround        float64
	SchedulerMicroseconds int64
	MinJobRuntimeRatio   float64
	MaxJobRuntimeRatio   float64
}

// Writer accumulates job records as the simulation runs and flushes the
// three output artifacts plus the stdout summary at shutdown.
type Writer struct {
	prefix  string
	records []JobRecord
}

// New returns a Writer that will emit files named "<prefix>_*".
func New(prefix string) *Writer {
	return &Writer{prefix: prefix}
}

// RecordJob appends one terminal job's trace record.
func (w *Writer) RecordJob(j *jobs.Job, allocation string) {
	w.records = append(w.records, JobRecord{
		JobID:          j.ID,
		SubmissionTime: j.SubmissionTime,
		StartTime:      j.StartTime,
		Runtime:        j.FinishTime - j.StartTime,
		Allocation:     allocation,
		FinalState:     j.State.String(),
	})
}

// Flush writes `_jobs.csv` and `_schedule.csv`/`_schedule.trace`, and
// returns the computed Summary for the caller to also print.
func (w *Writer) Flush(schedulerMicroseconds int64) (Summary, error) {
	summary := w.computeSummary(schedulerMicroseconds)

	if err := w.writeJobsCSV(); err != nil {
		return summary, err
	}
	if err := w.writeScheduleCSV(summary); err != nil {
		return summary, err
	}
	if err := w.writeScheduleTrace(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (w *Writer) writeJobsCSV() error {
	f, err := os.Create(w.prefix + "_jobs.csv")
	if err != nil {
		return fmt.Errorf("trace: creating jobs csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if err := cw.Write([]string{"job_id", "submission_time", "starting_time", "runtime", "allocation", "final_state"}); err != nil {
		return err
	}
	for _, r := range w.records {
		row := []string{
			strconv.Itoa(r.JobID),
			formatFloat(r.SubmissionTime),
			formatFloat(r.StartTime),
			formatFloat(r.Runtime),
			r.Allocation,
			r.FinalState,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}

func (w *Writer) writeScheduleCSV(s Summary) error {
	f, err := os.Create(w.prefix + "_schedule.csv")
	if err != nil {
		return fmt.Errorf("trace: creating schedule csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	header := []string{
		"nb_jobs_submitted", "nb_jobs_completed", "nb_jobs_successful", "nb_jobs_killed",
		"makespan", "max_turnaround", "scheduler_microseconds",
		"min_job_runtime_ratio", "max_job_runtime_ratio",
	}
	row := []string{
		strconv.Itoa(s.NbJobsSubmitted),
		strconv.Itoa(s.NbJobsCompleted),
		strconv.Itoa(s.NbJobsSuccessful),
		strconv.Itoa(s.NbJobsKilled),
		formatFloat(s.Makespan),
		formatFloat(s.MaxTurnaround),
		strconv.FormatInt(s.SchedulerMicroseconds, 10),
		formatFloat(s.MinJobRuntimeRatio),
		formatFloat(s.MaxJobRuntimeRatio),
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	return cw.WriteAll([][]string{row})
}

func (w *Writer) writeScheduleTrace() error {
	f, err := os.Create(w.prefix + "_schedule.trace")
	if err != nil {
		return fmt.Errorf("trace: creating schedule trace: %w", err)
	}
	defer f.Close()

	for _, r := range w.records {
		if _, err := fmt.Fprintf(f, "%d %s %s %s %s %s\n",
			r.JobID, formatFloat(r.SubmissionTime), formatFloat(r.StartTime), formatFloat(r.Runtime), r.Allocation, r.FinalState); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) computeSummary(schedulerMicroseconds int64) Summary {
	s := Summary{SchedulerMicroseconds: schedulerMicroseconds, MinJobRuntimeRatio: math.Inf(1)}
	for _, r := range w.records {
		s.NbJobsSubmitted++
		switch r.FinalState {
		case "COMPLETED_SUCCESS":
			s.NbJobsCompleted++
			s.NbJobsSuccessful++
		case "COMPLETED_KILLED":
			s.NbJobsCompleted++
			s.NbJobsKilled++
		case "REJECTED":
			s.NbJobsCompleted++
		}
		finish := r.StartTime + r.Runtime
		if finish > s.Makespan {
			s.Makespan = finish
		}
		turnaround := finish - r.SubmissionTime
		if turnaround > s.MaxTurnaround {
			s.MaxTurnaround = turnaround
		}
		if r.Runtime > 0 {
			ratio := turnaround / r.Runtime
			if ratio < s.MinJobRuntimeRatio {
				s.MinJobRuntimeRatio = ratio
			}
			if ratio > s.MaxJobRuntimeRatio {
				s.MaxJobRuntimeRatio = ratio
			}
		}
	}
	if math.IsInf(s.MinJobRuntimeRatio, 1) {
		s.MinJobRuntimeRatio = 0
	}
	return s
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// PrintSummary writes a column-aligned key/value report to w, with each
// label padded to the width of the longest label measured as monospace
// display width of its grapheme clusters (uniseg.StringWidth) rather than
// bytes, so the columns still line up when a label contains multi-byte runes.
func PrintSummary(w io.Writer, s Summary) {
	rows := []struct {
		label string
		value string
	}{
		{"jobs submitted", strconv.Itoa(s.NbJobsSubmitted)},
		{"jobs completed", strconv.Itoa(s.NbJobsCompleted)},
		{"jobs successful", strconv.Itoa(s.NbJobsSuccessful)},
		{"jobs killed", strconv.Itoa(s.NbJobsKilled)},
		{"makespan", formatFloat(s.Makespan)},
		{"max turnaround", formatFloat(s.MaxTurnaround)},
		{"scheduler microseconds", strconv.FormatInt(s.SchedulerMicroseconds, 10)},
		{"min job runtime ratio", formatFloat(s.MinJobRuntimeRatio)},
		{"max job runtime ratio", formatFloat(s.MaxJobRuntimeRatio)},
	}

	maxWidth := 0
	for _, r := range rows {
		if width := uniseg.StringWidth(r.label); width > maxWidth {
			maxWidth = width
		}
	}
	for _, r := range rows {
		padding := maxWidth - uniseg.StringWidth(r.label)
		fmt.Fprintf(w, "  %s%*s: %s\n", r.label, padding, "", r.value)
	}
}
