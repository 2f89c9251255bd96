package interrupt

import (
	"context"

	"github.com/agentdeck/agentdeck/pkg/errors"
	"github.com/agentdeck/agentdeck/pkg/logging"
	"github.com/agentdeck/agentdeck/pkg/notify"
	"github.com/agentdeck/agentdeck/pkg/session"
	"github.com/agentdeck/agentdeck/pkg/telemetry"
)

// Dispatcher converts the operator's terminal decision into the
// wire-level resume call and manages the loading/streaming lifecycle
// around it. Outcomes are computed as typed results and only then
// handed to the notifier, so the state machine tests without a UI.
//
// There is deliberately no re-entrancy guard: callers disable the
// submit control while Loading/Streaming is set, matching the UI this
// component serves. See the dispatcher tests for the documented race
// window.
type Dispatcher struct {
	store    *Store
	session  session.Session
	notifier notify.Notifier
	logger   *logging.Logger
}

// NewDispatcher wires a dispatcher to its collaborators.
func NewDispatcher(store *Store, sess session.Session, notifier notify.Notifier, logger *logging.Logger) *Dispatcher {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Dispatcher{
		store:    store,
		session:  sess,
		notifier: notifier,
		logger:   logger,
	}
}

// OutcomeStatus classifies a terminal dispatch result.
type OutcomeStatus string

const (
	// OutcomeSubmitted means the decision reached the backend.
	OutcomeSubmitted OutcomeStatus = "submitted"

	// OutcomeRejected means validation failed before any network call.
	OutcomeRejected OutcomeStatus = "rejected"

	// OutcomeFailed means the resume primitive errored.
	OutcomeFailed OutcomeStatus = "failed"

	// OutcomeHandled means the primitive returned false: it already
	// surfaced its own message and nothing more may be shown.
	OutcomeHandled OutcomeStatus = "handled"
)

// Outcome is the typed result of one dispatch.
type Outcome struct {
	Status OutcomeStatus
	Err    error
}

// Submit sends the response matching the selected submit type to the
// paused run.
func (d *Dispatcher) Submit(ctx context.Context, responses []HumanResponse, selected ResponseType) Outcome {
	if len(responses) == 0 {
		err := errors.New(errors.ErrCodeResponseEmpty, "no responses to submit").
			WithUserMessage("Please provide a response")
		d.notifier.Error("Please provide a response", "")
		telemetry.RecordSubmit(string(selected), telemetry.OutcomeRejected)
		return Outcome{Status: OutcomeRejected, Err: err}
	}

	// Loading is cleared last no matter which branch runs.
	defer d.store.setLoading(false)

	// Anything with substantive content streams; ignore is treated as
	// instantaneous and skips the in-flight flags entirely.
	streamed := selected != TypeIgnore
	if streamed {
		d.store.setSubmitting()
	}

	entry, found := wireEntry(responses, selected)
	if !found {
		err := errors.New(errors.ErrCodeResponseNotFound, "no response matching selected submit type").
			WithContext("selected", string(selected)).
			WithUserMessage("No response found")
		d.logger.Error(logging.CategoryInterrupt, "submit_no_response", err, map[string]any{
			"operation": "submit",
			"component": "dispatcher",
		})
		d.notifier.Error("No response found", "")
		if streamed {
			d.store.rollbackSubmitting()
		}
		telemetry.RecordSubmit(string(selected), telemetry.OutcomeRejected)
		return Outcome{Status: OutcomeRejected, Err: err}
	}

	ok, err := d.session.Submit(ctx, nil, session.Command{Resume: entry})
	if err != nil {
		d.logger.Error(logging.CategoryInterrupt, "submit_failed", err, map[string]any{
			"operation": "submit",
			"component": "dispatcher",
		})
		d.notifier.Error("Failed to submit", "Please try again")
		if streamed {
			d.store.rollbackSubmitting()
		}
		telemetry.RecordSubmit(string(selected), telemetry.OutcomeError)
		return Outcome{Status: OutcomeFailed, Err: err}
	}
	if !ok {
		// The session already surfaced this; roll back silently.
		if streamed {
			d.store.rollbackSubmitting()
		}
		telemetry.RecordSubmit(string(selected), telemetry.OutcomeHandled)
		return Outcome{Status: OutcomeHandled}
	}

	if streamed {
		d.store.markStreamFinished()
	}
	telemetry.RecordSubmit(string(selected), telemetry.OutcomeOK)
	return Outcome{Status: OutcomeSubmitted}
}

// Ignore dismisses the interrupt without answering it. Synchronous
// from the caller's perspective: no loading/streaming transition.
func (d *Dispatcher) Ignore(ctx context.Context, responses []HumanResponse) Outcome {
	entry, found := wireEntry(responses, TypeIgnore)
	if !found {
		err := errors.New(errors.ErrCodeResponseNotFound, "no ignore response present").
			WithUserMessage("Unable to ignore this thread")
		d.logger.Error(logging.CategoryInterrupt, "ignore_no_response", err, map[string]any{
			"operation": "ignore",
			"component": "dispatcher",
		})
		d.notifier.Error("Unable to ignore this thread", "")
		telemetry.RecordSubmit(string(TypeIgnore), telemetry.OutcomeRejected)
		return Outcome{Status: OutcomeRejected, Err: err}
	}

	// Original values cannot be restored once the thread is dismissed.
	d.store.ClearInitialEditValues()

	ok, err := d.session.Submit(ctx, nil, session.Command{Resume: entry})
	if err != nil {
		d.logger.Error(logging.CategoryInterrupt, "ignore_failed", err, map[string]any{
			"operation": "ignore",
			"component": "dispatcher",
		})
		d.notifier.Error("Failed to ignore thread", "Please try again")
		telemetry.RecordSubmit(string(TypeIgnore), telemetry.OutcomeError)
		return Outcome{Status: OutcomeFailed, Err: err}
	}
	if !ok {
		telemetry.RecordSubmit(string(TypeIgnore), telemetry.OutcomeHandled)
		return Outcome{Status: OutcomeHandled}
	}

	d.notifier.Success("Thread ignored")
	telemetry.RecordSubmit(string(TypeIgnore), telemetry.OutcomeOK)
	return Outcome{Status: OutcomeSubmitted}
}

// Resolve marks the thread finished without answering the interrupt,
// bypassing the resume machinery with a direct jump to the end node.
func (d *Dispatcher) Resolve(ctx context.Context) Outcome {
	d.store.setLoading(true)
	defer d.store.setLoading(false)

	ok, err := d.session.Submit(ctx, nil, session.Command{Goto: session.EndNode})
	if err != nil {
		d.logger.Error(logging.CategoryInterrupt, "resolve_failed", err, map[string]any{
			"operation": "resolve",
			"component": "dispatcher",
		})
		d.notifier.Error("Failed to mark thread as resolved", "Please try again")
		return Outcome{Status: OutcomeFailed, Err: err}
	}
	if !ok {
		return Outcome{Status: OutcomeHandled}
	}

	d.notifier.Success("Thread marked as resolved")
	return Outcome{Status: OutcomeSubmitted}
}

// wireEntry picks the entry matching the wanted type and converts it
// to its wire shape. Bookkeeping fields never cross the wire.
func wireEntry(responses []HumanResponse, want ResponseType) (WireResponse, bool) {
	r, ok := FindByType(responses, want)
	if !ok {
		return WireResponse{}, false
	}
	return r.Wire(), true
}
