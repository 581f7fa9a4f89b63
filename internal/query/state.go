// Package query answers a question by generating, validating and executing one SELECT
// statement, retrying a bounded number of times.
package query

import "github.com/frahmantamala/iam-copilot/internal/conversation"

type Phase uint8

const (
	PhaseGenerate Phase = iota + 1
	PhaseValidate
	PhaseExecute
	PhaseErrorHandle
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseGenerate:
		return "generate"
	case PhaseValidate:
		return "validate"
	case PhaseExecute:
		return "execute"
	case PhaseErrorHandle:
		return "error_handle"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

type Event uint8

const (
	EventSucceeded Event = iota + 1
	EventFailed
	EventRetry
	EventExhausted
)

func (e Event) String() string {
	switch e {
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventRetry:
		return "retry"
	case EventExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

type transition struct {
	from Phase
	on   Event
}

var transitions = map[transition]Phase{
	{PhaseGenerate, EventSucceeded}:    PhaseValidate,
	{PhaseGenerate, EventFailed}:       PhaseErrorHandle,
	{PhaseValidate, EventSucceeded}:    PhaseExecute,
	{PhaseValidate, EventFailed}:       PhaseErrorHandle,
	{PhaseExecute, EventSucceeded}:     PhaseDone,
	{PhaseExecute, EventFailed}:        PhaseErrorHandle,
	{PhaseErrorHandle, EventRetry}:     PhaseGenerate,
	{PhaseErrorHandle, EventExhausted}: PhaseDone,
}

// Next returns the phase that follows p on e. Pairs outside the table end the run.
func Next(p Phase, e Event) Phase {
	if to, ok := transitions[transition{p, e}]; ok {
		return to
	}
	return PhaseDone
}

// State belongs to a single Run and is never shared.
type State struct {
	Question       string
	SchemaMetadata string
	History        []conversation.Message

	Phase      Phase
	CurrentSQL string
	Err        error
	RetryCount int
	Attempts   int
	Result     string
	Succeeded  bool
	Done       bool
}
