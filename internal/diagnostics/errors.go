// Package diagnostics defines the failure taxonomy of the binder.
//
// Every failure carries a short code and wraps one of the sentinel errors
// below, so callers can branch with errors.Is and still print a message
// that names the receiver, candidate or rule involved.
package diagnostics

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a class of failure.
type Code string

const (
	ErrB001 Code = "B001" // no candidate satisfies the receiver
	ErrB002 Code = "B002" // candidates tie under every ambiguity rule
	ErrB003 Code = "B003" // binder configuration (unclaimed or malformed tag)
	ErrA001 Code = "A001" // illegal argument to a planner
	ErrS001 Code = "S001" // illegal state (closed context, bad transition)
)

var (
	ErrNoCandidate        = errors.New("no delegate candidate")
	ErrAmbiguousCandidate = errors.New("ambiguous delegate candidates")
	ErrConfiguration      = errors.New("binder configuration error")
	ErrIllegalArgument    = errors.New("illegal argument")
	ErrIllegalState       = errors.New("illegal state")
)

// Error is a coded failure wrapping a sentinel.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, sentinel error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

// IllegalArgument reports an invalid, absent, inaccessible or immutable
// planning target.
func IllegalArgument(format string, args ...any) error {
	return newError(ErrA001, ErrIllegalArgument, format, args...)
}

// IllegalState reports a contract violation by the caller.
func IllegalState(format string, args ...any) error {
	return newError(ErrS001, ErrIllegalState, format, args...)
}

// Configuration reports a binder registry that cannot serve a tag.
func Configuration(format string, args ...any) error {
	return newError(ErrB003, ErrConfiguration, format, args...)
}

// Rejection records why one candidate produced no valid binding.
type Rejection struct {
	Candidate string
	Reason    string
}

// NoCandidateError is returned when no candidate binds the receiver.
type NoCandidateError struct {
	Receiver   string
	Considered int
	Rejections []Rejection
}

func (e *NoCandidateError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: none of %d candidates allows delegation from %s", ErrB001, e.Considered, e.Receiver)
	for _, r := range e.Rejections {
		fmt.Fprintf(&sb, "\n  %s: %s", r.Candidate, r.Reason)
	}
	return sb.String()
}

func (e *NoCandidateError) Unwrap() error { return ErrNoCandidate }

// AmbiguousCandidateError is returned when the ambiguity rules cannot
// separate two or more valid bindings.
type AmbiguousCandidateError struct {
	Receiver   string
	Candidates []string
	// Rule is the last rule consulted before giving up.
	Rule string
}

func (e *AmbiguousCandidateError) Error() string {
	return fmt.Sprintf("%s: cannot resolve ambiguous delegation of %s to %s (last rule: %s)",
		ErrB002, e.Receiver, strings.Join(e.Candidates, " or "), e.Rule)
}

func (e *AmbiguousCandidateError) Unwrap() error { return ErrAmbiguousCandidate }

// CodeOf extracts the code of err, or "" for foreign errors.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	var none *NoCandidateError
	if errors.As(err, &none) {
		return ErrB001
	}
	var amb *AmbiguousCandidateError
	if errors.As(err, &amb) {
		return ErrB002
	}
	return ""
}
