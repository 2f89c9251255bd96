package interrupt

import (
	"testing"

	"github.com/agentdeck/agentdeck/pkg/errors"
)

func editResponses() []HumanResponse {
	return []HumanResponse{
		{
			Type: TypeEdit,
			Edit: &EditPayload{
				Action: "send_email",
				Args:   map[string]string{"subject": "Hi", "body": "Hello there"},
			},
			AcceptAllowed: true,
		},
		{Type: TypeRespond},
		{Type: TypeIgnore},
	}
}

func initialValues() map[string]string {
	return map[string]string{"subject": "Hi", "body": "Hello there"}
}

func TestApplyEditOverwritesSingleField(t *testing.T) {
	responses := editResponses()
	next, changed, err := ApplyEdit(responses, responses[0], "subject", "Hello", initialValues())
	if err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}
	if !changed {
		t.Error("changed = false, want true after divergence")
	}
	if next[0].Edit.Args["subject"] != "Hello" {
		t.Errorf("subject = %q, want Hello", next[0].Edit.Args["subject"])
	}
	if next[0].Edit.Args["body"] != "Hello there" {
		t.Error("untouched field should survive the edit")
	}
	if responses[0].Edit.Args["subject"] != "Hi" {
		t.Error("input list must not be mutated")
	}
}

func TestApplyEditRoundTripReadsAsUnchanged(t *testing.T) {
	responses := editResponses()
	next, _, err := ApplyEdit(responses, responses[0], "subject", "Hello", initialValues())
	if err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}
	next, changed, err := ApplyEdit(next, next[0], "subject", "Hi", initialValues())
	if err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}
	if changed {
		t.Error("restoring the original value should read as unchanged")
	}
	if next[0].EditsMade {
		t.Error("EditsMade should clear on full restore")
	}
}

func TestApplyEditBatch(t *testing.T) {
	responses := editResponses()
	next, changed, err := ApplyEdit(responses, responses[0],
		[]string{"subject", "body"}, []string{"A", "B"}, initialValues())
	if err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}
	if !changed {
		t.Error("changed = false, want true")
	}
	if next[0].Edit.Args["subject"] != "A" || next[0].Edit.Args["body"] != "B" {
		t.Errorf("args = %v", next[0].Edit.Args)
	}
}

func TestApplyEditArityMismatch(t *testing.T) {
	tests := []struct {
		name   string
		key    any
		change any
	}{
		{"scalar key, list change", "subject", []string{"x"}},
		{"list key, scalar change", []string{"subject"}, "x"},
		{"unequal lengths", []string{"subject", "body"}, []string{"only one"}},
		{"unsupported key type", 42, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses := editResponses()
			_, _, err := ApplyEdit(responses, responses[0], tt.key, tt.change, initialValues())
			if !errors.IsCode(err, errors.ErrCodeArityMismatch) {
				t.Fatalf("err = %v, want ARITY_MISMATCH", err)
			}
			if responses[0].Edit.Args["subject"] != "Hi" {
				t.Error("failed edit must leave the input unchanged")
			}
		})
	}
}

func TestApplyEditMissingRecordNeverInserts(t *testing.T) {
	target := HumanResponse{
		Type: TypeEdit,
		Edit: &EditPayload{Action: "delete_file", Args: map[string]string{"path": "/tmp/x"}},
	}
	responses := editResponses()
	_, _, err := ApplyEdit(responses, target, "path", "/tmp/y", initialValues())
	if !errors.IsCode(err, errors.ErrCodeResponseNotFound) {
		t.Fatalf("err = %v, want RESPONSE_NOT_FOUND", err)
	}
	if len(responses) != 3 {
		t.Error("a missing record must never be inserted")
	}
}

func TestApplyEditTargetMustBeEdit(t *testing.T) {
	responses := editResponses()
	_, _, err := ApplyEdit(responses, responses[1], "subject", "x", initialValues())
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
}

func TestApplyEditWithoutAcceptDropsBookkeeping(t *testing.T) {
	responses := editResponses()
	responses[0].AcceptAllowed = false

	next, _, err := ApplyEdit(responses, responses[0], "subject", "Hello", initialValues())
	if err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}
	if next[0].AcceptAllowed || next[0].EditsMade {
		t.Errorf("record = %+v, bookkeeping should stay false without accept", next[0])
	}
}

func TestApplyResponse(t *testing.T) {
	responses := editResponses()

	next, hasContent, err := ApplyResponse(responses, "my answer")
	if err != nil {
		t.Fatalf("ApplyResponse: %v", err)
	}
	if !hasContent {
		t.Error("hasContent = false for non-empty text")
	}
	if next[1].Respond != "my answer" {
		t.Errorf("respond = %q", next[1].Respond)
	}
	if responses[1].Respond != "" {
		t.Error("input list must not be mutated")
	}

	next, hasContent, err = ApplyResponse(next, "")
	if err != nil {
		t.Fatalf("ApplyResponse: %v", err)
	}
	if hasContent {
		t.Error("hasContent = true for empty text")
	}
}

func TestApplyResponseWhitespaceCounts(t *testing.T) {
	next, hasContent, err := ApplyResponse(editResponses(), "   ")
	if err != nil {
		t.Fatalf("ApplyResponse: %v", err)
	}
	if !hasContent {
		t.Error("whitespace-only text is still content; no trimming")
	}
	if next[1].Respond != "   " {
		t.Errorf("respond = %q, want raw text preserved", next[1].Respond)
	}
}

func TestApplyResponseSingleton(t *testing.T) {
	responses := editResponses()
	next, _, err := ApplyResponse(responses, "first")
	if err != nil {
		t.Fatalf("ApplyResponse: %v", err)
	}
	next, _, err = ApplyResponse(next, "second")
	if err != nil {
		t.Fatalf("ApplyResponse: %v", err)
	}

	count := 0
	for _, r := range next {
		if r.Type == TypeRespond {
			count++
			if r.Respond != "second" {
				t.Errorf("respond = %q, want second", r.Respond)
			}
		}
	}
	if count != 1 {
		t.Errorf("respond records = %d, want exactly one", count)
	}
}

func TestApplyResponseMissingRecord(t *testing.T) {
	responses := []HumanResponse{{Type: TypeIgnore}}
	_, _, err := ApplyResponse(responses, "text")
	if !errors.IsCode(err, errors.ErrCodeResponseNotFound) {
		t.Fatalf("err = %v, want RESPONSE_NOT_FOUND", err)
	}
}

func TestResetEditRestoresAllDivergedFields(t *testing.T) {
	responses := editResponses()
	next, _, err := ApplyEdit(responses, responses[0],
		[]string{"subject", "body"}, []string{"A", "B"}, initialValues())
	if err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}

	next, changed, err := ResetEdit(next, next[0], initialValues())
	if err != nil {
		t.Fatalf("ResetEdit: %v", err)
	}
	if !changed {
		t.Error("changed = false, want true for a reset with diverged fields")
	}
	if next[0].Edit.Args["subject"] != "Hi" || next[0].Edit.Args["body"] != "Hello there" {
		t.Errorf("args = %v, want originals", next[0].Edit.Args)
	}
	if next[0].EditsMade {
		t.Error("EditsMade should be false after reset")
	}
}

func TestResetEditNoopWhenPristine(t *testing.T) {
	responses := editResponses()
	next, changed, err := ResetEdit(responses, responses[0], initialValues())
	if err != nil {
		t.Fatalf("ResetEdit: %v", err)
	}
	if changed {
		t.Error("reset of pristine args should be a no-op")
	}
	if &next[0] != &responses[0] {
		t.Error("no-op reset should return the input list unchanged")
	}
}

func TestResetEditIgnoresFieldsOutsideSnapshot(t *testing.T) {
	responses := editResponses()
	// A field present in args but absent from the snapshot is left alone.
	responses[0].Edit.Args["extra"] = "kept"

	next, changed, err := ResetEdit(responses, responses[0], initialValues())
	if err != nil {
		t.Fatalf("ResetEdit: %v", err)
	}
	if changed {
		t.Error("nothing in the snapshot diverged; want no-op")
	}
	if next[0].Edit.Args["extra"] != "kept" {
		t.Error("fields outside the snapshot must survive reset")
	}
}
