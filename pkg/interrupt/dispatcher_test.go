package interrupt

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/agentdeck/pkg/notify"
	"github.com/agentdeck/agentdeck/pkg/session"
)

// fakeSession records resume calls and plays back a scripted result.
type fakeSession struct {
	calls []session.Command
	ok    bool
	err   error
}

func (f *fakeSession) Submit(_ context.Context, _ map[string]any, cmd session.Command) (bool, error) {
	f.calls = append(f.calls, cmd)
	return f.ok, f.err
}

func newDispatcherHarness(t *testing.T, sess *fakeSession) (*Dispatcher, *Store, *notify.Recorder) {
	t.Helper()
	store := NewStore(nil)
	store.Initialize(emailInterrupt())
	recorder := &notify.Recorder{}
	return NewDispatcher(store, sess, recorder, nil), store, recorder
}

func TestSubmitEmptyResponses(t *testing.T) {
	sess := &fakeSession{ok: true}
	d, store, recorder := newDispatcherHarness(t, sess)

	outcome := d.Submit(context.Background(), nil, TypeAccept)

	assert.Equal(t, OutcomeRejected, outcome.Status)
	assert.Empty(t, sess.calls, "validation failure must not reach the session")
	require.NotNil(t, recorder.Last())
	assert.Equal(t, "Please provide a response", recorder.Last().Message)

	flags := store.Flags()
	assert.False(t, flags.Loading)
	assert.False(t, flags.Streaming)
}

func TestSubmitMissingSelectedType(t *testing.T) {
	sess := &fakeSession{ok: true}
	d, store, recorder := newDispatcherHarness(t, sess)

	// The selected type was initialized for a richer interrupt than the
	// list we were handed; nothing in the list matches it.
	responses := []HumanResponse{{Type: TypeIgnore}}
	outcome := d.Submit(context.Background(), responses, TypeEdit)

	assert.Equal(t, OutcomeRejected, outcome.Status)
	assert.Empty(t, sess.calls, "missing response must not reach the session")
	require.NotNil(t, recorder.Last())
	assert.Equal(t, "No response found", recorder.Last().Message)

	flags := store.Flags()
	assert.False(t, flags.Loading, "loading must clear even on the rejection path")
	assert.False(t, flags.Streaming)
	assert.False(t, flags.StreamFinished)
}

func TestSubmitSuccessfulEdit(t *testing.T) {
	sess := &fakeSession{ok: true}
	d, store, _ := newDispatcherHarness(t, sess)

	edit := findResponse(t, store.Responses(), TypeEdit)
	require.NoError(t, store.UpdateEdit(edit, "subject", "Hello"))

	selected, ok := store.SelectedSubmitType()
	require.True(t, ok)
	require.Equal(t, TypeEdit, selected)

	outcome := d.Submit(context.Background(), store.Responses(), selected)

	assert.Equal(t, OutcomeSubmitted, outcome.Status)
	require.Len(t, sess.calls, 1, "exactly one resume call")

	// The payload on the wire carries only type and args, nothing of the
	// client-side bookkeeping.
	wire, err := json.Marshal(sess.calls[0].Resume)
	require.NoError(t, err)
	var payload struct {
		Type string `json:"type"`
		Args struct {
			Action string            `json:"action"`
			Args   map[string]string `json:"args"`
		} `json:"args"`
	}
	require.NoError(t, json.Unmarshal(wire, &payload))
	assert.Equal(t, "edit", payload.Type)
	assert.Equal(t, "send_email", payload.Args.Action)
	assert.Equal(t, "Hello", payload.Args.Args["subject"])
	assert.NotContains(t, string(wire), "AcceptAllowed")
	assert.NotContains(t, string(wire), "EditsMade")

	flags := store.Flags()
	assert.False(t, flags.Loading, "loading is cleared last")
	assert.True(t, flags.Streaming, "streaming stays on until the session signals completion")
	assert.True(t, flags.StreamFinished)
}

func TestSubmitSessionError(t *testing.T) {
	sess := &fakeSession{err: stderrors.New("connection reset")}
	d, store, recorder := newDispatcherHarness(t, sess)

	outcome := d.Submit(context.Background(), store.Responses(), TypeAccept)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	require.NotNil(t, recorder.Last())
	assert.Equal(t, "Failed to submit", recorder.Last().Message)
	assert.Equal(t, "Please try again", recorder.Last().Description)

	flags := store.Flags()
	assert.False(t, flags.Loading)
	assert.False(t, flags.Streaming, "failed submit rolls streaming back")
	assert.False(t, flags.StreamFinished, "a failed submit never reads as finished")
}

func TestSubmitHandledByPrimitive(t *testing.T) {
	// ok=false means the session already told the operator what went
	// wrong (for example, the run no longer exists). The dispatcher must
	// stay silent and just unwind its flags.
	sess := &fakeSession{ok: false}
	d, store, recorder := newDispatcherHarness(t, sess)

	outcome := d.Submit(context.Background(), store.Responses(), TypeAccept)

	assert.Equal(t, OutcomeHandled, outcome.Status)
	assert.Zero(t, recorder.Count(), "no second toast on the handled path")

	flags := store.Flags()
	assert.False(t, flags.Loading)
	assert.False(t, flags.Streaming)
	assert.False(t, flags.StreamFinished)
}

func TestSubmitIgnoreSkipsStreamingFlags(t *testing.T) {
	sess := &fakeSession{ok: true}
	d, store, _ := newDispatcherHarness(t, sess)

	outcome := d.Submit(context.Background(), store.Responses(), TypeIgnore)

	assert.Equal(t, OutcomeSubmitted, outcome.Status)
	require.Len(t, sess.calls, 1)

	flags := store.Flags()
	assert.False(t, flags.Streaming, "ignore is instantaneous, no stream lifecycle")
	assert.False(t, flags.StreamFinished)
}

func TestIgnoreSuccess(t *testing.T) {
	sess := &fakeSession{ok: true}
	d, store, recorder := newDispatcherHarness(t, sess)

	outcome := d.Ignore(context.Background(), store.Responses())

	assert.Equal(t, OutcomeSubmitted, outcome.Status)
	require.Len(t, sess.calls, 1)

	wire, err := json.Marshal(sess.calls[0].Resume)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ignore","args":null}`, string(wire))

	require.NotNil(t, recorder.Last())
	assert.Equal(t, notify.KindSuccess, recorder.Last().Kind)
	assert.Equal(t, "Thread ignored", recorder.Last().Message)

	assert.Empty(t, store.InitialEditValues(), "snapshot is dropped once the thread is dismissed")

	flags := store.Flags()
	assert.False(t, flags.Loading)
	assert.False(t, flags.Streaming)
}

func TestIgnoreMissingRecord(t *testing.T) {
	sess := &fakeSession{ok: true}
	d, store, recorder := newDispatcherHarness(t, sess)

	responses := []HumanResponse{{Type: TypeAccept}}
	outcome := d.Ignore(context.Background(), responses)

	assert.Equal(t, OutcomeRejected, outcome.Status)
	assert.Empty(t, sess.calls, "missing ignore record must not reach the session")
	require.NotNil(t, recorder.Last())
	assert.Equal(t, notify.KindError, recorder.Last().Kind)
	assert.NotEmpty(t, store.InitialEditValues(), "rejection must not drop the snapshot")
}

func TestIgnoreHandledByPrimitive(t *testing.T) {
	sess := &fakeSession{ok: false}
	d, store, recorder := newDispatcherHarness(t, sess)

	outcome := d.Ignore(context.Background(), store.Responses())

	assert.Equal(t, OutcomeHandled, outcome.Status)
	assert.Zero(t, recorder.Count(), "handled path stays silent")
}

func TestResolveJumpsToEndNode(t *testing.T) {
	sess := &fakeSession{ok: true}
	d, _, recorder := newDispatcherHarness(t, sess)

	outcome := d.Resolve(context.Background())

	assert.Equal(t, OutcomeSubmitted, outcome.Status)
	require.Len(t, sess.calls, 1)
	assert.Nil(t, sess.calls[0].Resume, "resolve bypasses the resume machinery")
	assert.Equal(t, session.EndNode, sess.calls[0].Goto)

	require.NotNil(t, recorder.Last())
	assert.Equal(t, "Thread marked as resolved", recorder.Last().Message)
}

func TestResolveFailure(t *testing.T) {
	sess := &fakeSession{err: stderrors.New("timeout")}
	d, store, recorder := newDispatcherHarness(t, sess)

	outcome := d.Resolve(context.Background())

	assert.Equal(t, OutcomeFailed, outcome.Status)
	require.NotNil(t, recorder.Last())
	assert.Equal(t, "Failed to mark thread as resolved", recorder.Last().Message)
	assert.False(t, store.Flags().Loading, "loading clears on the failure path too")
}

// There is intentionally no re-entrancy guard in the dispatcher; the
// caller disables its submit control while Loading is set. Two Submit
// calls racing each other will both reach the session. This test pins
// the contract so the omission stays deliberate.
func TestSubmitHasNoReentrancyGuard(t *testing.T) {
	sess := &fakeSession{ok: true}
	d, store, _ := newDispatcherHarness(t, sess)

	responses := store.Responses()
	first := d.Submit(context.Background(), responses, TypeAccept)
	second := d.Submit(context.Background(), responses, TypeAccept)

	assert.Equal(t, OutcomeSubmitted, first.Status)
	assert.Equal(t, OutcomeSubmitted, second.Status)
	assert.Len(t, sess.calls, 2)
}
