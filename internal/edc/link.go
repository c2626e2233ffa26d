package edc

import (
	"time"

	"github.com/google/uuid"
	"github.com/oar-team/batsim-sub001/internal/clog"
	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/kernel"
)

// Link owns the accepted EDC connection and runs at most one request/reply
// task at a time, gated by the orchestrator's scheduler-ready state so a
// second batch never gets sent while the EDC is still deciding on the first.
type Link struct {
	k         *kernel.Kernel
	transport *Transport
	log       *clog.Logger

	// MicrosecondsUsed accumulates real wall-clock time spent blocked on the
	// EDC's reply, exposed for the run summary.
	MicrosecondsUsed int64
}

// New returns a Link bound to an already-accepted transport.
func New(k *kernel.Kernel, transport *Transport, log *clog.Logger) *Link {
	return &Link{k: k, transport: transport, log: log}
}

// RequestReply spawns the single request/reply task for one batch: sends
// the framed request, blocks (outside virtual time) for the reply, then
// replays the reply's events back into the server mailbox in declared time
// order, finally posting SCHED_READY.
func (l *Link) RequestReply(events []OutboundEvent) {
	now := l.k.Now().Seconds()
	request := EncodeBatch(now, events)

	corr := uuid.NewString()

	l.k.Spawn(func() {
		l.log.Networkf("[%s] -> %s", corr, request)
		if err := l.transport.Send(request); err != nil {
			l.log.Errorf("edc: [%s] fatal transport error sending request: %v", corr, err)
			return
		}

		l.k.EnterExternalBlock()
		start := time.Now()
		raw, err := l.transport.Receive()
		elapsed := time.Since(start)
		l.k.ExitExternalBlock()
		l.MicrosecondsUsed += elapsed.Microseconds()

		if err != nil {
			l.log.Errorf("edc: [%s] fatal transport error receiving reply: %v", corr, err)
			return
		}
		l.log.Networkf("[%s] <- %s", corr, raw)

		replyNow, replyEvents, err := ParseReply(raw)
		if err != nil {
			l.log.Errorf("edc: fatal protocol violation: %v", err)
			return
		}

		previous := replyNow
		for _, ev := range replyEvents {
			delay := ev.Timestamp - previous
			if delay > 0 {
				l.k.Sleep(time.Duration(delay * float64(time.Second)))
			}
			previous = ev.Timestamp

			msg, err := DecodeReplyEvent(ev)
			if err != nil {
				l.log.Errorf("edc: fatal protocol violation: %v", err)
				return
			}
			l.k.Send(ipp.Server, msg)
		}

		l.k.Send(ipp.Server, ipp.SchedReadyMessage{})
	})
}
