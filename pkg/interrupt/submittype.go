package interrupt

// Submit-type resolution: pure functions mapping current edit/response
// state to the response type a plain submit targets. Recomputed on
// every change event; whichever field the operator touched last wins
// because its handler ran last, not because of any timestamp.

// ResolveSubmitType picks the submit target after an edit-field change.
//
//	values unchanged + accept allowed        → accept
//	values unchanged + free text present     → respond
//	anything else                            → edit
func ResolveSubmitType(valuesChanged, acceptAllowed, hasAddedResponse bool) ResponseType {
	if !valuesChanged {
		if acceptAllowed {
			return TypeAccept
		}
		if hasAddedResponse {
			return TypeRespond
		}
	}
	return TypeEdit
}

// ResolveSubmitTypeForResponse picks the submit target after a
// free-text change. Non-empty text always wins. When the text is
// cleared the fallback is edits elsewhere, then accept; with neither,
// there is no valid submit target and the second return is false.
// Callers must disable submission in that state.
func ResolveSubmitTypeForResponse(hasContent, hasEdited, acceptAllowed bool) (ResponseType, bool) {
	if !hasContent {
		if hasEdited {
			return TypeEdit, true
		}
		if acceptAllowed {
			return TypeAccept, true
		}
		return "", false
	}
	return TypeRespond, true
}
