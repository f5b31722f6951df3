package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ibn-labs/fulcrum/internal/backend"
	"github.com/ibn-labs/fulcrum/internal/interpret"
	"github.com/ibn-labs/fulcrum/internal/provisioner"
	"github.com/ibn-labs/fulcrum/internal/telemetry"
	"github.com/ibn-labs/fulcrum/internal/types"
	"github.com/ibn-labs/fulcrum/internal/validate"
)

// Ranker matches an intent against the catalog.
type Ranker interface {
	Rank(ctx context.Context, intent *types.Intent, topK int, minScore float64) ([]types.Candidate, error)
}

// Translator maps an intent and its candidates onto a service order.
type Translator interface {
	Translate(intent *types.Intent, candidates []types.Candidate, hints []string) (*types.ServiceOrder, error)
}

// Validator decides whether an order may be submitted.
type Validator interface {
	Validate(ctx context.Context, order *types.ServiceOrder) validate.Report
}

// Submitter hands an order to the provisioning platform.
type Submitter interface {
	SubmitOrder(ctx context.Context, order *types.ServiceOrder) (*provisioner.Receipt, error)
}

// Outcome statuses. Every run terminates in exactly one of these; callers
// never see an unstructured crash.
const (
	StatusSubmitted = "submitted"
	StatusHeld      = "held"
	StatusFailed    = "failed"
)

// Outcome is the caller-visible result of a pipeline run.
type Outcome struct {
	Status     string    `json:"status"`
	OrderID    string    `json:"order_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Details    string    `json:"details,omitempty"`
	RetryCount int       `json:"retry_count"`
}

// Run is the request-scoped mutable state of one pipeline execution. It is
// owned by exactly one request and never shared; the intent inside it is
// immutable once interpreted.
type Run struct {
	ID               string
	State            State
	Text             string
	Intent           *types.Intent
	Candidates       []types.Candidate
	Order            *types.ServiceOrder
	ValidationErrors []string
	RetryCount       int
	Outcome          Outcome
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Options are the tunables read per run, so config reloads apply to the
// next request without a restart.
type Options struct {
	TopK       int
	MinScore   float64
	MaxRetries int
}

// Orchestrator sequences interpret → retrieve → translate → validate →
// submit, with a bounded translate/validate correction loop. The loop is
// the only cycle; RetryCount is the sole loop-termination variable and
// never decreases.
type Orchestrator struct {
	interpreter interpret.Interpreter
	ranker      Ranker
	translator  Translator
	validator   Validator
	submitter   Submitter
	opts        func() Options
	health      *backend.HealthTracker
	metrics     *telemetry.Metrics
}

func NewOrchestrator(
	interpreter interpret.Interpreter,
	ranker Ranker,
	translator Translator,
	validator Validator,
	submitter Submitter,
	opts func() Options,
	health *backend.HealthTracker,
	metrics *telemetry.Metrics,
) *Orchestrator {
	return &Orchestrator{
		interpreter: interpreter,
		ranker:      ranker,
		translator:  translator,
		validator:   validator,
		submitter:   submitter,
		opts:        opts,
		health:      health,
		metrics:     metrics,
	}
}

// Execute runs the whole pipeline for one request. It always returns a Run
// in a terminal state.
func (o *Orchestrator) Execute(ctx context.Context, text string) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		State:     StateInit,
		Text:      text,
		StartedAt: time.Now().UTC(),
	}
	opts := o.opts()

	// Interpret
	if !o.advance(ctx, run, StateInterpreting) {
		return run
	}
	if !o.guard(run, backend.Interpreter, KindInterpretationFailed) {
		return run
	}
	intent, err := timed(o.metrics, StateInterpreting, func() (*types.Intent, error) {
		return o.interpreter.Interpret(ctx, text)
	})
	// A malformed reply means the backend responded; only transport-level
	// failures count against its circuit.
	o.observe(backend.Interpreter, err == nil || errors.Is(err, interpret.ErrMalformed))
	if err != nil {
		kind := KindInterpretationFailed
		if errors.Is(err, interpret.ErrMalformed) {
			kind = KindMalformedIntent
		}
		return o.fail(run, kind, err)
	}
	if err := intent.Validate(); err != nil {
		return o.fail(run, KindMalformedIntent, err)
	}
	run.Intent = intent

	// Retrieve
	if !o.advance(ctx, run, StateRetrieving) {
		return run
	}
	if !o.guard(run, backend.Embedding, KindRetrievalUnavailable) {
		return run
	}
	candidates, err := timed(o.metrics, StateRetrieving, func() ([]types.Candidate, error) {
		return o.ranker.Rank(ctx, intent, opts.TopK, opts.MinScore)
	})
	o.observe(backend.Embedding, err == nil)
	if err != nil {
		return o.fail(run, KindRetrievalUnavailable, err)
	}
	run.Candidates = candidates
	if o.metrics != nil {
		scores := make([]float64, len(candidates))
		for i, c := range candidates {
			scores[i] = c.Score
		}
		o.metrics.RecordCandidates(len(candidates), scores)
	}
	if len(candidates) == 0 {
		return o.hold(run, "no catalog entry matched the request")
	}

	// Translate / validate correction loop, bounded by the retry budget.
	for {
		if !o.advance(ctx, run, StateTranslating) {
			return run
		}
		order, err := timed(o.metrics, StateTranslating, func() (*types.ServiceOrder, error) {
			return o.translator.Translate(intent, candidates, run.ValidationErrors)
		})
		if err != nil {
			return o.fail(run, KindUntranslatable, err)
		}
		run.Order = order

		if !o.advance(ctx, run, StateValidating) {
			return run
		}
		report, _ := timed(o.metrics, StateValidating, func() (validate.Report, error) {
			return o.validator.Validate(ctx, order), nil
		})
		if report.Valid {
			break
		}

		run.ValidationErrors = append(run.ValidationErrors, report.Errors...)
		run.RetryCount++
		if run.RetryCount >= opts.MaxRetries {
			return o.fail(run, KindInvalidOrder, errors.New(strings.Join(run.ValidationErrors, "; ")))
		}
		o.transition(run, StateRetrying)
		slog.Info("order validation failed, retrying translation",
			"run_id", run.ID,
			"retry_count", run.RetryCount,
			"errors", report.Errors,
		)
	}

	// Submit
	if !o.advance(ctx, run, StateSubmitting) {
		return run
	}
	if !o.guard(run, backend.Provisioner, KindGatewayUnreachable) {
		return run
	}
	receipt, err := timed(o.metrics, StateSubmitting, func() (*provisioner.Receipt, error) {
		return o.submitter.SubmitOrder(ctx, run.Order)
	})
	if err != nil {
		kind := KindGatewayUnreachable
		var rejection *provisioner.RejectionError
		if errors.As(err, &rejection) {
			kind = KindGatewayRejected
		}
		// A rejection is a definitive answer from a healthy platform.
		o.observe(backend.Provisioner, kind == KindGatewayRejected)
		if o.metrics != nil {
			o.metrics.RecordSubmission("rejected")
		}
		return o.fail(run, kind, err)
	}
	o.observe(backend.Provisioner, true)
	if o.metrics != nil {
		o.metrics.RecordSubmission("accepted")
	}

	o.transition(run, StateSubmitted)
	run.FinishedAt = time.Now().UTC()
	run.Outcome = Outcome{
		Status:     StatusSubmitted,
		OrderID:    receipt.OrderID,
		RetryCount: run.RetryCount,
	}
	o.recordRun(run)
	return run
}

// guard fails the run fast when a backend's circuit is open, so a dead
// collaborator does not cost every request a timeout.
func (o *Orchestrator) guard(run *Run, name string, kind ErrorKind) bool {
	if o.health == nil || o.health.IsAvailable(name) {
		return true
	}
	o.fail(run, kind, fmt.Errorf("%s backend unavailable (circuit open)", name))
	return false
}

func (o *Orchestrator) observe(name string, ok bool) {
	if o.health == nil {
		return
	}
	if ok {
		o.health.RecordSuccess(name)
	} else {
		o.health.RecordFailure(name)
	}
}

// advance moves to the next state unless the caller has cancelled, in which
// case the run fails immediately and no further stage starts.
func (o *Orchestrator) advance(ctx context.Context, run *Run, next State) bool {
	if err := ctx.Err(); err != nil {
		o.fail(run, KindCancelled, err)
		return false
	}
	o.transition(run, next)
	return true
}

func (o *Orchestrator) transition(run *Run, next State) {
	slog.Debug("pipeline transition", "run_id", run.ID, "from", run.State, "to", next)
	run.State = next
}

func (o *Orchestrator) fail(run *Run, kind ErrorKind, err error) *Run {
	at := run.State
	o.transition(run, StateFailed)
	run.FinishedAt = time.Now().UTC()
	run.Outcome = Outcome{
		Status:     StatusFailed,
		ErrorKind:  kind,
		Details:    stageError(kind, at, err).Error(),
		RetryCount: run.RetryCount,
	}
	slog.Warn("pipeline run failed",
		"run_id", run.ID,
		"error_kind", kind,
		"retry_count", run.RetryCount,
		"error", err,
	)
	o.recordRun(run)
	return run
}

// hold terminates a well-formed request that nothing in the catalog can
// satisfy. This is a non-error empty result, not a crash.
func (o *Orchestrator) hold(run *Run, reason string) *Run {
	o.transition(run, StateHeld)
	run.FinishedAt = time.Now().UTC()
	run.Outcome = Outcome{
		Status:     StatusHeld,
		Reason:     reason,
		RetryCount: run.RetryCount,
	}
	slog.Info("pipeline run held", "run_id", run.ID, "reason", reason)
	o.recordRun(run)
	return run
}

func (o *Orchestrator) recordRun(run *Run) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordRun(run.Outcome.Status, string(run.Outcome.ErrorKind), run.RetryCount)
}

// timed measures one stage call.
func timed[T any](m *telemetry.Metrics, stage State, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	if m != nil {
		m.RecordStage(stage.String(), float64(time.Since(start).Milliseconds()))
	}
	return out, err
}
