package pipeline

import "fmt"

// ErrorKind classifies a pipeline failure. Every failed run surfaces exactly
// one kind; stages never abort with an untyped error.
type ErrorKind string

const (
	KindMalformedIntent      ErrorKind = "malformed_intent"
	KindInterpretationFailed ErrorKind = "interpretation_failed"
	KindRetrievalUnavailable ErrorKind = "retrieval_unavailable"
	KindUntranslatable       ErrorKind = "untranslatable"
	KindInvalidOrder         ErrorKind = "invalid_order"
	KindGatewayRejected      ErrorKind = "gateway_rejected"
	KindGatewayUnreachable   ErrorKind = "gateway_unreachable"
	KindCancelled            ErrorKind = "cancelled"
)

// Error is a stage failure tagged with its kind and the state it occurred in.
type Error struct {
	Kind  ErrorKind
	State State
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s in %s", e.Kind, e.State)
	}
	return fmt.Sprintf("%s in %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageError(kind ErrorKind, state State, err error) *Error {
	return &Error{Kind: kind, State: state, Err: err}
}
