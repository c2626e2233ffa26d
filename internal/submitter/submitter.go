// Package submitter implements the job submitter process: emit
// JOB_SUBMITTED events in submission-time order by sleeping in virtual time
// between successive arrivals, bracketed by a hello/bye pair so the
// orchestrator's termination invariant can tell submission is complete.
package submitter

import (
	"sort"
	"time"

	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/kernel"
)

// Arrival is the minimal information the submitter needs about one job: its
// id and its declared submission time. The job's full descriptor is owned by
// the jobs registry, which holds it from workload load time on; the
// orchestrator moves it to Submitted when it processes JOB_SUBMITTED.
type Arrival struct {
	JobID          int
	SubmissionTime float64 // virtual seconds
}

// Run sorts arrivals by ascending submission time and spawns the submitter
// task on k, sending the hello/submitted*/bye sequence to the server
// mailbox. Sorting happens here rather than trusting workload file order,
// since a workload file is free to list jobs out of submission-time order.
func Run(k *kernel.Kernel, arrivals []Arrival) {
	sorted := make([]Arrival, len(arrivals))
	copy(sorted, arrivals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SubmissionTime < sorted[j].SubmissionTime })

	k.Spawn(func() {
		k.Send(ipp.Server, ipp.SubmitterHelloMessage{})
		for _, a := range sorted {
			nowSeconds := k.Now().Seconds()
			delay := a.SubmissionTime - nowSeconds
			if delay > 0 {
				k.Sleep(time.Duration(delay * float64(time.Second)))
			}
			k.Send(ipp.Server, ipp.JobSubmittedMessage{JobID: a.JobID})
		}
		k.Send(ipp.Server, ipp.SubmitterByeMessage{})
	})
}
