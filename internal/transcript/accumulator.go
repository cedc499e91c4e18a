// Package transcript reconciles streamed transcript fragments into display
// text. Upstream delivery style is not guaranteed: a fragment may be an
// incremental delta or a cumulative snapshot of the whole utterance, and the
// style can switch per fragment, so it is inferred on every fragment.
package transcript

import "strings"

// Roles as reported on upstream transcript fragments.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Result reports what a fragment should surface to the client.
type Result struct {
	// Display is the text to forward: the fragment itself for user
	// fragments, the running utterance for assistant fragments.
	Display string
	// Finalized is set when an assistant utterance completed; Display then
	// holds the full utterance that was just reset.
	Finalized bool
}

// Accumulator is the per-connection transcript state machine. It is used by
// a single goroutine and needs no locking.
type Accumulator struct {
	accumulated string
	open        bool
}

// Observe applies one transcript fragment.
//
// User fragments pass through as-is and never touch assistant state, even
// when final. Assistant fragments extend the running utterance: a fragment
// that starts with the accumulated text is a cumulative snapshot and
// replaces it, anything else is an incremental delta and is appended. An
// assistant final marker emits the utterance and resets the state.
func (a *Accumulator) Observe(role, text string, final bool) Result {
	if role != RoleAssistant {
		return Result{Display: text}
	}

	if text != "" {
		if a.accumulated != "" && strings.HasPrefix(text, a.accumulated) {
			a.accumulated = text
		} else {
			a.accumulated += text
		}
		a.open = true
	}

	display := a.accumulated
	if final {
		a.accumulated = ""
		a.open = false
		return Result{Display: display, Finalized: true}
	}
	return Result{Display: display}
}

// Text returns the currently accumulated assistant text.
func (a *Accumulator) Text() string { return a.accumulated }

// Open reports whether an assistant utterance is mid-stream.
func (a *Accumulator) Open() bool { return a.open }
