package pipeline

// State is the orchestrator's position in the request pipeline.
type State int

const (
	StateInit State = iota
	StateInterpreting
	StateRetrieving
	StateTranslating
	StateValidating
	StateRetrying
	StateSubmitting
	StateHeld      // terminal: well-formed request, nothing in the catalog satisfies it
	StateFailed    // terminal
	StateSubmitted // terminal
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateInterpreting:
		return "interpreting"
	case StateRetrieving:
		return "retrieving"
	case StateTranslating:
		return "translating"
	case StateValidating:
		return "validating"
	case StateRetrying:
		return "retrying"
	case StateSubmitting:
		return "submitting"
	case StateHeld:
		return "held"
	case StateFailed:
		return "failed"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the pipeline stops in this state.
func (s State) Terminal() bool {
	return s == StateHeld || s == StateFailed || s == StateSubmitted
}
