package interrupt

import (
	"sync"

	"github.com/agentdeck/agentdeck/pkg/errors"
	"github.com/agentdeck/agentdeck/pkg/logging"
)

// Store owns the canonical response list and transient flags for the
// active interrupt. All state is created fresh per interrupt and
// discarded when the interrupt is resolved, ignored, or superseded.
//
// Methods are safe for concurrent use; the local API server reads the
// store while the review loop mutates it.
type Store struct {
	mu sync.RWMutex

	active    *Interrupt
	responses []HumanResponse

	selectedSubmitType ResponseType
	hasSubmitType      bool

	hasAccept        bool
	hasEdited        bool
	hasAddedResponse bool

	loading        bool
	streaming      bool
	streamFinished bool

	// initialEditValues is the immutable snapshot of the edit variant's
	// original field values, used for reset-to-original and change
	// detection. Captured once per Initialize.
	initialEditValues map[string]string

	logger *logging.Logger
}

// NewStore creates an empty store.
func NewStore(logger *logging.Logger) *Store {
	return &Store{logger: logger}
}

// Initialize derives the response list and default submit type from a
// raw interrupt, fully resetting all transient state. Stale edits from
// a prior interrupt never survive into a new one.
//
// A malformed interrupt does not crash the client: the failure is
// logged and the response list left empty, which the view layer treats
// as "no actionable response available".
func (s *Store) Initialize(intr *Interrupt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.active = intr

	responses, initial, err := buildResponses(intr)
	if err != nil {
		s.logger.Error(logging.CategoryInterrupt, "initialize_failed", err, map[string]any{
			"operation": "initialize",
			"component": "store",
		})
		return
	}

	s.responses = responses
	s.initialEditValues = initial
	s.hasAccept = intr.Config.AllowAccept
	s.selectedSubmitType, s.hasSubmitType = defaultSubmitType(intr.Config)

	s.logger.Info(logging.CategoryInterrupt, "initialized", "", map[string]any{
		"action":    intr.ActionRequest.Action,
		"responses": len(responses),
	})
}

// Clear empties the store when no interrupt is pending. Unlike
// Initialize it runs no validation and logs no failure; an emptied
// inbox is an expected transition, not an error.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// reset clears every piece of per-interrupt state. Caller holds mu.
func (s *Store) reset() {
	s.active = nil
	s.responses = nil
	s.selectedSubmitType = ""
	s.hasSubmitType = false
	s.hasAccept = false
	s.hasEdited = false
	s.hasAddedResponse = false
	s.loading = false
	s.streaming = false
	s.streamFinished = false
	s.initialEditValues = nil
}

// buildResponses constructs one HumanResponse per enabled capability.
func buildResponses(intr *Interrupt) ([]HumanResponse, map[string]string, error) {
	if intr == nil {
		return nil, nil, errors.New(errors.ErrCodeInterruptInvalid, "interrupt is nil")
	}
	cfg := intr.Config
	if (cfg.AllowAccept || cfg.AllowEdit) && intr.ActionRequest.Action == "" {
		return nil, nil, errors.New(errors.ErrCodeInterruptInvalid, "interrupt has no action but allows accept/edit")
	}

	var responses []HumanResponse
	initial := make(map[string]string)

	// The first of edit, respond doubles as an accept when submitted
	// unchanged; that record carries the AcceptAllowed flag.
	acceptCarrier := ResponseType("")
	if cfg.AllowAccept {
		if cfg.AllowEdit {
			acceptCarrier = TypeEdit
		} else if cfg.AllowRespond {
			acceptCarrier = TypeRespond
		}
	}

	if cfg.AllowAccept {
		args := make(map[string]any, len(intr.ActionRequest.Args))
		for k, v := range intr.ActionRequest.Args {
			args[k] = v
		}
		responses = append(responses, HumanResponse{
			Type:       TypeAccept,
			AcceptArgs: args,
		})
	}

	if cfg.AllowEdit {
		editArgs := make(map[string]string, len(intr.ActionRequest.Args))
		for k, v := range intr.ActionRequest.Args {
			sv := Stringify(v)
			editArgs[k] = sv
			initial[k] = sv
		}
		responses = append(responses, HumanResponse{
			Type: TypeEdit,
			Edit: &EditPayload{
				Action: intr.ActionRequest.Action,
				Args:   editArgs,
			},
			AcceptAllowed: acceptCarrier == TypeEdit,
		})
	}

	if cfg.AllowRespond {
		responses = append(responses, HumanResponse{
			Type:          TypeRespond,
			Respond:       "",
			AcceptAllowed: acceptCarrier == TypeRespond,
		})
	}

	if cfg.AllowIgnore {
		responses = append(responses, HumanResponse{Type: TypeIgnore})
	}

	return responses, initial, nil
}

// defaultSubmitType picks the initial submit target: accept when
// allowed, else the first of edit, respond. Ignore is never a default.
func defaultSubmitType(cfg Capabilities) (ResponseType, bool) {
	switch {
	case cfg.AllowAccept:
		return TypeAccept, true
	case cfg.AllowEdit:
		return TypeEdit, true
	case cfg.AllowRespond:
		return TypeRespond, true
	default:
		return "", false
	}
}

// Responses returns a deep copy of the current response list.
func (s *Store) Responses() []HumanResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HumanResponse, len(s.responses))
	for i, r := range s.responses {
		out[i] = r.Clone()
	}
	return out
}

// Empty reports whether the store holds no actionable responses.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.responses) == 0
}

// Active returns the interrupt this store was initialized from.
func (s *Store) Active() *Interrupt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// InitialEditValues returns a copy of the original-field snapshot.
func (s *Store) InitialEditValues() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.initialEditValues))
	for k, v := range s.initialEditValues {
		out[k] = v
	}
	return out
}

// ClearInitialEditValues drops the snapshot; used when the thread is
// ignored and the original values can no longer be restored.
func (s *Store) ClearInitialEditValues() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialEditValues = map[string]string{}
}

// SelectedSubmitType returns the current default submit target. The
// second return is false when no type is a valid target (for example,
// free text cleared with nothing else legal).
func (s *Store) SelectedSubmitType() (ResponseType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedSubmitType, s.hasSubmitType
}

// Flags is a snapshot of the transient UI flags.
type Flags struct {
	HasAccept        bool
	HasEdited        bool
	HasAddedResponse bool
	Loading          bool
	Streaming        bool
	StreamFinished   bool
}

// Flags returns the current transient flag values.
func (s *Store) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Flags{
		HasAccept:        s.hasAccept,
		HasEdited:        s.hasEdited,
		HasAddedResponse: s.hasAddedResponse,
		Loading:          s.loading,
		Streaming:        s.streaming,
		StreamFinished:   s.streamFinished,
	}
}

// UpdateEdit applies one field edit (or batch, for resets) through the
// reconciler, then recomputes the selected submit type. Called once
// per keystroke/change event on an edit field.
func (s *Store) UpdateEdit(target HumanResponse, key, change any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, valuesChanged, err := ApplyEdit(s.responses, target, key, change, s.initialEditValues)
	if err != nil {
		return err
	}

	s.responses = next
	s.hasEdited = valuesChanged
	s.selectedSubmitType = ResolveSubmitType(valuesChanged, s.hasAccept, s.hasAddedResponse)
	s.hasSubmitType = true
	return nil
}

// UpdateResponse applies a free-text change through the reconciler,
// then recomputes the selected submit type. Called once per keystroke
// on the respond field.
func (s *Store) UpdateResponse(change string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, hasContent, err := ApplyResponse(s.responses, change)
	if err != nil {
		return err
	}

	s.responses = next
	s.hasAddedResponse = hasContent
	s.selectedSubmitType, s.hasSubmitType = ResolveSubmitTypeForResponse(hasContent, s.hasEdited, s.hasAccept)
	return nil
}

// ResetEdits restores every edited field to its initial snapshot in a
// single state transition. A second reset in a row is a no-op.
func (s *Store) ResetEdits(target HumanResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := ResetEdit(s.responses, target, s.initialEditValues)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.responses = next
	s.hasEdited = false
	s.selectedSubmitType = ResolveSubmitType(false, s.hasAccept, s.hasAddedResponse)
	s.hasSubmitType = true
	return nil
}

// setSubmitting flips the in-flight flags before a streamed submit.
func (s *Store) setSubmitting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.streaming = true
	s.streamFinished = false
}

// rollbackSubmitting clears the in-flight flags after a failed or
// rejected submit. StreamFinished is left untouched so callers can
// distinguish "never finished" from "finished".
func (s *Store) rollbackSubmitting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = false
}

// markStreamFinished records that the submission reached the backend;
// streaming stays true until the session's own completion signal.
func (s *Store) markStreamFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamFinished = true
}

// SetStreaming is the external stream-completion signal from the
// session layer.
func (s *Store) SetStreaming(streaming bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = streaming
}

// setLoading flips the loading flag.
func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}
