// Package faults defines the two-kind error classification used across the
// normalization pipeline. Every rejected message carries exactly one kind:
// UserActionable means the alert author must fix their configuration and a
// retry can never succeed; SystemCorruption means an upstream platform or the
// transport produced structurally unexpected data and a bounded retry is
// allowed before dead-lettering.
package faults

import (
	"errors"
	"fmt"
)

// Kind identifies which failure class a Classified error belongs to.
type Kind string

const (
	// KindUserActionable marks errors the alert owner can fix by changing
	// alert configuration. Messages in this class are phrased as an
	// instruction to a human operator and end with the phrase
	// "to make the alert work", which downstream runbooks match on
	// ("Please add this ..." for missing fields, "Please fix this ..."
	// for invalid values).
	KindUserActionable Kind = "USER_ACTIONABLE"

	// KindSystemCorruption marks errors caused by corrupted or unexpected
	// data from an upstream platform. Messages in this class state that the
	// data indicates corruption, not a user misconfiguration.
	KindSystemCorruption Kind = "SYSTEM_CORRUPTION"
)

// Classified is an error carrying its failure class. The message text is part
// of the contract with downstream consumers: it is surfaced verbatim in
// tickets and dead-letter payloads.
type Classified struct {
	Kind    Kind
	Message string
}

// Error returns the human-readable, classification-tagged message.
func (e *Classified) Error() string {
	return e.Message
}

// UserActionable creates a Classified error of kind USER_ACTIONABLE.
// Callers phrase the message as an instruction to the alert owner.
func UserActionable(format string, args ...any) *Classified {
	return &Classified{
		Kind:    KindUserActionable,
		Message: fmt.Sprintf(format, args...),
	}
}

// SystemCorruption creates a Classified error of kind SYSTEM_CORRUPTION.
// Callers phrase the message to state that upstream data is corrupted.
func SystemCorruption(format string, args ...any) *Classified {
	return &Classified{
		Kind:    KindSystemCorruption,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the classification from an error chain.
// Returns the kind and true if the error is (or wraps) a Classified error.
func KindOf(err error) (Kind, bool) {
	var classified *Classified
	if errors.As(err, &classified) {
		return classified.Kind, true
	}
	return "", false
}

// IsUserActionable reports whether err is classified as USER_ACTIONABLE.
func IsUserActionable(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindUserActionable
}

// IsSystemCorruption reports whether err is classified as SYSTEM_CORRUPTION.
func IsSystemCorruption(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindSystemCorruption
}

// Ensure returns err unchanged when it already carries a classification.
// Any other error is wrapped as SystemCorruption so that no failure crosses
// the processing boundary unclassified.
func Ensure(err error) *Classified {
	if err == nil {
		return nil
	}
	var classified *Classified
	if errors.As(err, &classified) {
		return classified
	}
	return SystemCorruption("unexpected processing failure: %v. This indicates corrupted or unexpected upstream data", err)
}
