package edc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oar-team/batsim-sub001/internal/ipp"
	"github.com/oar-team/batsim-sub001/internal/machinerange"
)

// ProtocolVersion is the small integer agreed between the core and the EDC,
// carried as the first field of every framed message.
const ProtocolVersion = 0

// OutboundEvent is one core->EDC event appended to the pending batch.
type OutboundEvent struct {
	Timestamp float64
	Stamp     byte
	Content   string // empty if the stamp carries no content
}

const (
	StampSubmitted   byte = 'S'
	StampCompleted   byte = 'C'
	StampWakeup      byte = 'N'
	StampPstateAck   byte = 'p'
	StampEnergy      byte = 'e'
)

// EventSubmitted builds the "job submitted" outbound event.
func EventSubmitted(t float64, jobID int) OutboundEvent {
	return OutboundEvent{Timestamp: t, Stamp: StampSubmitted, Content: strconv.Itoa(jobID)}
}

// EventCompleted builds the "job completed" outbound event.
func EventCompleted(t float64, jobID int) OutboundEvent {
	return OutboundEvent{Timestamp: t, Stamp: StampCompleted, Content: strconv.Itoa(jobID)}
}

// EventWakeup builds the "wake-up notification" outbound event, reported in
// response to WAITING_DONE.
func EventWakeup(t float64) OutboundEvent {
	return OutboundEvent{Timestamp: t, Stamp: StampWakeup}
}

// EventPstateAck builds the coalesced pstate-change-acknowledged event.
func EventPstateAck(t float64, ids machinerange.Range, newPstate int) OutboundEvent {
	return OutboundEvent{Timestamp: t, Stamp: StampPstateAck, Content: fmt.Sprintf("%s=%d", ids.StringHyphen(), newPstate)}
}

// EventEnergy builds the energy-reading event.
func EventEnergy(t float64, joules float64) OutboundEvent {
	return OutboundEvent{Timestamp: t, Stamp: StampEnergy, Content: strconv.FormatFloat(joules, 'f', -1, 64)}
}

// EncodeBatch renders a batch of outbound events as one framed message body:
// "<ProtocolVersion>:<now>" followed by one "|<timestamp>:<stamp>[:<content>]"
// per event, in order. The caller passes an unbounded []OutboundEvent, so
// this builds the full string with strings.Builder rather than a
// fixed-size buffer that a busy run could overflow or truncate.
func EncodeBatch(now float64, events []OutboundEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%s", ProtocolVersion, formatFloat(now))
	for _, ev := range events {
		fmt.Fprintf(&b, "|%s:%c", formatFloat(ev.Timestamp), ev.Stamp)
		if ev.Content != "" {
			b.WriteByte(':')
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// ReplyEvent is one EDC->core event parsed out of a reply.
type ReplyEvent struct {
	Timestamp float64
	Stamp     byte
	Content   string
}

const (
	StampAllocation byte = 'J'
	StampNOP        byte = 'N'
	StampNOPLater   byte = 'n'
	StampReject     byte = 'R'
	StampPstateReq  byte = 'P'
)

// ParseReply splits a raw reply message into its header "now" and its
// ordered list of events, validating the ordering contract: event
// timestamps are non-decreasing and each is >= the header's now.
func ParseReply(raw string) (now float64, events []ReplyEvent, err error) {
	parts := strings.Split(raw, "|")
	if len(parts) < 1 {
		return 0, nil, fmt.Errorf("edc: empty reply")
	}
	header := strings.SplitN(parts[0], ":", 2)
	if len(header) != 2 {
		return 0, nil, fmt.Errorf("edc: malformed reply header %q", parts[0])
	}
	now, err = strconv.ParseFloat(header[1], 64)
	if err != nil {
		return 0, nil, fmt.Errorf("edc: malformed reply header time %q: %w", header[1], err)
	}

	previous := now
	for _, raw := range parts[1:] {
		fields := strings.SplitN(raw, ":", 3)
		if len(fields) < 2 {
			return 0, nil, fmt.Errorf("edc: malformed event %q: need at least timestamp:stamp", raw)
		}
		ts, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, nil, fmt.Errorf("edc: malformed event timestamp %q: %w", fields[0], err)
		}
		if len(fields[1]) != 1 {
			return 0, nil, fmt.Errorf("edc: malformed event stamp %q: must be one character", fields[1])
		}
		if ts < previous {
			return 0, nil, fmt.Errorf("edc: non-monotonic event timestamp %v after %v", ts, previous)
		}
		ev := ReplyEvent{Timestamp: ts, Stamp: fields[1][0]}
		if len(fields) == 3 {
			ev.Content = fields[2]
		}
		events = append(events, ev)
		previous = ts
	}
	return now, events, nil
}

// DecodeReplyEvent translates one parsed ReplyEvent into the inter-process
// message it represents.
func DecodeReplyEvent(ev ReplyEvent) (ipp.Message, error) {
	switch ev.Stamp {
	case StampNOP:
		return ipp.SchedNOPMessage{}, nil
	case StampNOPLater:
		t, err := strconv.ParseFloat(ev.Content, 64)
		if err != nil {
			return nil, fmt.Errorf("edc: malformed wake-me-later target time %q: %w", ev.Content, err)
		}
		return ipp.SchedNOPMeLaterMessage{TargetTime: t}, nil
	case StampReject:
		jobID, err := strconv.Atoi(ev.Content)
		if err != nil {
			return nil, fmt.Errorf("edc: malformed rejection job id %q: %w", ev.Content, err)
		}
		return ipp.SchedRejectionMessage{JobID: jobID}, nil
	case StampPstateReq:
		rangeStr, pstateStr, err := splitOnEquals(ev.Content)
		if err != nil {
			return nil, fmt.Errorf("edc: malformed pstate request %q: %w", ev.Content, err)
		}
		ids, err := machinerange.ParseHyphen(rangeStr)
		if err != nil {
			return nil, fmt.Errorf("edc: malformed pstate request machine range %q: %w", rangeStr, err)
		}
		pstate, err := strconv.Atoi(pstateStr)
		if err != nil {
			return nil, fmt.Errorf("edc: malformed pstate request target pstate %q: %w", pstateStr, err)
		}
		return ipp.PstateModificationMessage{MachineIDs: ids, NewPstate: pstate}, nil
	case StampAllocation:
		allocs, err := decodeAllocations(ev.Content)
		if err != nil {
			return nil, err
		}
		return ipp.SchedAllocationMessage{Allocations: allocs}, nil
	default:
		return nil, fmt.Errorf("edc: unknown reply stamp %q", string(ev.Stamp))
	}
}

func decodeAllocations(content string) ([]ipp.Allocation, error) {
	groups := strings.Split(content, ";")
	allocs := make([]ipp.Allocation, 0, len(groups))
	for _, g := range groups {
		jobStr, machinesStr, err := splitOnEquals(g)
		if err != nil {
			return nil, fmt.Errorf("edc: malformed allocation %q: %w", g, err)
		}
		jobID, err := strconv.Atoi(jobStr)
		if err != nil {
			return nil, fmt.Errorf("edc: malformed allocation job id %q: %w", jobStr, err)
		}
		var ids machinerange.Range
		for _, part := range strings.Split(machinesStr, ",") {
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("edc: malformed allocation machine id %q: %w", part, err)
			}
			if ids.Contains(id) {
				return nil, fmt.Errorf("edc: allocation for job %d repeats machine %d", jobID, id)
			}
			ids.Insert(id)
		}
		allocs = append(allocs, ipp.Allocation{JobID: jobID, MachineIDs: ids})
	}
	return allocs, nil
}

func splitOnEquals(s string) (left, right string, err error) {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return "", "", fmt.Errorf("missing '='")
	}
	return s[:i], s[i+1:], nil
}
