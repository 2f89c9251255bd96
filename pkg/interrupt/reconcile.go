package interrupt

import (
	"sort"

	"github.com/agentdeck/agentdeck/pkg/errors"
)

// The reconciler produces the next response-list state for one field
// edit or free-text change. Every function returns a new slice; the
// input list is never mutated, so concurrent readers never observe a
// half-updated state.

// normalizeChange validates the key/change pairing of an edit. Both
// must be scalars (one field) or string slices of equal length (a
// batch, used by reset). Mismatched arity is a contract violation, not
// a recoverable condition.
func normalizeChange(key, change any) ([]string, []string, error) {
	switch k := key.(type) {
	case string:
		v, ok := change.(string)
		if !ok {
			return nil, nil, errors.New(errors.ErrCodeArityMismatch, "scalar key paired with non-scalar change").
				WithUserMessage("Something went wrong applying your edit")
		}
		return []string{k}, []string{v}, nil
	case []string:
		v, ok := change.([]string)
		if !ok {
			return nil, nil, errors.New(errors.ErrCodeArityMismatch, "key list paired with non-list change").
				WithUserMessage("Something went wrong applying your edit")
		}
		if len(k) != len(v) {
			return nil, nil, errors.New(errors.ErrCodeArityMismatch, "key and change lists differ in length").
				WithContext("keys", len(k)).
				WithContext("changes", len(v)).
				WithUserMessage("Something went wrong applying your edit")
		}
		return k, v, nil
	default:
		return nil, nil, errors.New(errors.ErrCodeArityMismatch, "key must be a string or string list").
			WithUserMessage("Something went wrong applying your edit")
	}
}

// ApplyEdit overwrites the given key(s) of the edit response matching
// target's action and returns the new list plus whether the updated
// args still diverge from their initial snapshot.
//
// The action is carried through from the response being edited, never
// from the original interrupt, to tolerate concurrent edits. An edit
// arriving for a response that was never initialized is a programming
// error and fails; nothing is ever silently inserted.
func ApplyEdit(responses []HumanResponse, target HumanResponse, key, change any, initial map[string]string) ([]HumanResponse, bool, error) {
	if target.Type != TypeEdit || target.Edit == nil {
		return nil, false, errors.New(errors.ErrCodeInvalidInput, "edit target is not an edit response")
	}

	keys, values, err := normalizeChange(key, change)
	if err != nil {
		return nil, false, err
	}

	updated := target.Edit.Clone()
	for i, k := range keys {
		updated.Args[k] = values[i]
	}

	valuesChanged := argsDiverge(updated.Args, initial)

	idx := -1
	for i, r := range responses {
		if r.Type == TypeEdit && r.Edit != nil && r.Edit.Action == target.Edit.Action {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false, errors.New(errors.ErrCodeResponseNotFound, "no matching edit response to update").
			WithContext("action", target.Edit.Action).
			WithUserMessage("No response found")
	}

	replacement := HumanResponse{
		Type: TypeEdit,
		Edit: updated,
	}
	if responses[idx].AcceptAllowed {
		replacement.AcceptAllowed = true
		replacement.EditsMade = valuesChanged
	}

	next := make([]HumanResponse, len(responses))
	copy(next, responses)
	next[idx] = replacement
	return next, valuesChanged, nil
}

// argsDiverge reports whether any field's string form differs from its
// initial snapshot. Restoring every field to its original value reads
// as a full reset.
func argsDiverge(args map[string]string, initial map[string]string) bool {
	for k, v := range args {
		if initial[k] != v {
			return true
		}
	}
	return false
}

// ApplyResponse sets the free-text reply and returns the new list plus
// whether the reply has content. Truthiness of the raw string is the
// source of truth; whitespace is not stripped.
//
// The respond record is a singleton located by type alone. It must
// already exist.
func ApplyResponse(responses []HumanResponse, change string) ([]HumanResponse, bool, error) {
	idx := -1
	for i, r := range responses {
		if r.Type == TypeRespond {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false, errors.New(errors.ErrCodeResponseNotFound, "no respond response to update").
			WithUserMessage("No response found")
	}

	hasContent := change != ""

	replacement := HumanResponse{
		Type:    TypeRespond,
		Respond: change,
	}
	if responses[idx].AcceptAllowed {
		replacement.AcceptAllowed = true
		replacement.EditsMade = hasContent
	}

	next := make([]HumanResponse, len(responses))
	copy(next, responses)
	next[idx] = replacement
	return next, hasContent, nil
}

// ResetEdit restores every field present in both the initial snapshot
// and the edit response back to its original value, as one state
// transition rather than one per field. Returns the (possibly
// unchanged) list and whether anything was reset; an empty batch is a
// no-op.
func ResetEdit(responses []HumanResponse, target HumanResponse, initial map[string]string) ([]HumanResponse, bool, error) {
	if target.Type != TypeEdit || target.Edit == nil {
		return nil, false, errors.New(errors.ErrCodeInvalidInput, "reset target is not an edit response")
	}

	var keys, values []string
	for k, v := range initial {
		current, ok := target.Edit.Args[k]
		if !ok {
			continue
		}
		if current == v {
			continue
		}
		keys = append(keys, k)
		values = append(values, v)
	}

	if len(keys) == 0 {
		return responses, false, nil
	}

	// Deterministic batch order keeps replay logs stable.
	sort.Sort(&pairSorter{keys: keys, values: values})

	next, _, err := ApplyEdit(responses, target, keys, values, initial)
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}

type pairSorter struct {
	keys   []string
	values []string
}

func (p *pairSorter) Len() int           { return len(p.keys) }
func (p *pairSorter) Less(i, j int) bool { return p.keys[i] < p.keys[j] }
func (p *pairSorter) Swap(i, j int) {
	p.keys[i], p.keys[j] = p.keys[j], p.keys[i]
	p.values[i], p.values[j] = p.values[j], p.values[i]
}
