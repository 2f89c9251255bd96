// Package interrupt implements the human-in-the-loop review core: the
// state held while an agent run is paused waiting for an operator to
// accept, edit, respond to, or ignore a proposed action, and the
// dispatch of that decision back to the run.
package interrupt

import (
	"fmt"
)

// ActionRequest is the action an agent proposes to take.
type ActionRequest struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

// Capabilities are the response types the backend allows for one
// interrupt.
type Capabilities struct {
	AllowAccept  bool `json:"allow_accept"`
	AllowEdit    bool `json:"allow_edit"`
	AllowRespond bool `json:"allow_respond"`
	AllowIgnore  bool `json:"allow_ignore"`
}

// Interrupt is one pending human-in-the-loop decision, as received
// from the backend. Read-only from the client's perspective.
type Interrupt struct {
	ActionRequest ActionRequest `json:"action_request"`
	Config        Capabilities  `json:"config"`
	Description   string        `json:"description,omitempty"`
}

// ResponseType discriminates the legal human answers to an interrupt.
type ResponseType string

const (
	TypeAccept  ResponseType = "accept"
	TypeEdit    ResponseType = "edit"
	TypeRespond ResponseType = "respond"
	TypeIgnore  ResponseType = "ignore"
)

// ParseResponseType converts a string to a ResponseType.
func ParseResponseType(s string) (ResponseType, error) {
	switch ResponseType(s) {
	case TypeAccept, TypeEdit, TypeRespond, TypeIgnore:
		return ResponseType(s), nil
	// "response" shows up in older backend payloads as an alias.
	case "response":
		return TypeRespond, nil
	default:
		return "", fmt.Errorf("unknown response type: %s (valid: accept, edit, respond, ignore)", s)
	}
}

// EditPayload is the mutable argument set carried by an edit response.
// Field values are kept in string form; the resume wire contract only
// admits strings for edited arguments.
type EditPayload struct {
	Action string            `json:"action"`
	Args   map[string]string `json:"args"`
}

// Clone returns a deep copy of the payload.
func (p *EditPayload) Clone() *EditPayload {
	if p == nil {
		return nil
	}
	args := make(map[string]string, len(p.Args))
	for k, v := range p.Args {
		args[k] = v
	}
	return &EditPayload{Action: p.Action, Args: args}
}

// HumanResponse is one variant of the operator's possible answer.
// Exactly one record per legal type exists in a Store's response list;
// the payload field that is meaningful depends on Type:
//
//	accept:  AcceptArgs, a snapshot of the proposed action args
//	edit:    Edit, a mutable copy the operator overwrites field by field
//	respond: Respond, free text, initially empty
//	ignore:  no payload
type HumanResponse struct {
	Type       ResponseType
	AcceptArgs map[string]any
	Edit       *EditPayload
	Respond    string

	// AcceptAllowed marks the single record that doubles as an accept
	// when submitted unchanged; it drives Accept vs Submit labeling.
	AcceptAllowed bool

	// EditsMade is true once the record diverges from its initial
	// snapshot. Only meaningful on the AcceptAllowed record.
	EditsMade bool
}

// WireResponse is the bit-exact resume payload shape the backend
// expects: internal bookkeeping fields are stripped.
type WireResponse struct {
	Type ResponseType `json:"type"`
	Args any          `json:"args"`
}

// Wire converts a response to its resume payload form.
func (r HumanResponse) Wire() WireResponse {
	switch r.Type {
	case TypeAccept:
		return WireResponse{Type: TypeAccept, Args: r.AcceptArgs}
	case TypeEdit:
		return WireResponse{Type: TypeEdit, Args: r.Edit}
	case TypeRespond:
		return WireResponse{Type: TypeRespond, Args: r.Respond}
	default:
		return WireResponse{Type: TypeIgnore, Args: nil}
	}
}

// Clone returns a deep copy of the response.
func (r HumanResponse) Clone() HumanResponse {
	out := r
	if r.AcceptArgs != nil {
		args := make(map[string]any, len(r.AcceptArgs))
		for k, v := range r.AcceptArgs {
			args[k] = v
		}
		out.AcceptArgs = args
	}
	out.Edit = r.Edit.Clone()
	return out
}

// FindByType returns the response record of the given type, if one is
// present. The response list holds at most one record per type.
func FindByType(responses []HumanResponse, typ ResponseType) (HumanResponse, bool) {
	for _, r := range responses {
		if r.Type == typ {
			return r, true
		}
	}
	return HumanResponse{}, false
}

// Stringify renders an arbitrary action argument in the canonical
// string form used for edit fields, snapshots, and change detection.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
