package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// FailureKind classifies why an invocation did not succeed.
type FailureKind string

const (
	KindInvalidArgument     FailureKind = "InvalidArgument"
	KindNotFound            FailureKind = "NotFound"
	KindPermissionDenied    FailureKind = "PermissionDenied"
	KindExternalUnavailable FailureKind = "ExternalUnavailable"
	KindTimeout             FailureKind = "Timeout"
	KindUnknown             FailureKind = "Unknown"
)

// Retryable reports whether a failure of this kind may go away on its own.
func (k FailureKind) Retryable() bool {
	return k == KindExternalUnavailable || k == KindTimeout
}

const (
	RemediationAccessibility = "Open System Settings > Privacy & Security > Accessibility and enable access for this application (and your terminal), then try again."
	RemediationAutomation    = "Open System Settings > Privacy & Security > Automation and allow this application to control the target app, then try again."
)

// Error is returned by handlers that know how their failure should be
// classified.
type Error struct {
	Kind        FailureKind
	Message     string
	Remediation string
	// Permanent marks an ExternalUnavailable or Timeout failure as not worth
	// retrying against the same provider (for example a rejected API key).
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error.
func Errorf(kind FailureKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind FailureKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithRemediation attaches a user-facing fix to the error.
func (e *Error) WithRemediation(text string) *Error {
	e.Remediation = text
	return e
}

// AsPermanent marks the error as not retryable.
func (e *Error) AsPermanent() *Error {
	e.Permanent = true
	return e
}

// Failure is the failure half of an Outcome.
type Failure struct {
	Kind        FailureKind `json:"kind"`
	Message     string      `json:"message"`
	Retryable   bool        `json:"retryable"`
	Remediation string      `json:"remediation,omitempty"`
}

// Classify maps any handler error onto the failure taxonomy.
func Classify(err error) Failure {
	var ae *Error
	if errors.As(err, &ae) {
		f := Failure{
			Kind:        ae.Kind,
			Message:     ae.Error(),
			Retryable:   ae.Kind.Retryable() && !ae.Permanent,
			Remediation: ae.Remediation,
		}
		if f.Kind == KindPermissionDenied && f.Remediation == "" {
			f.Remediation = RemediationAccessibility
		}
		return f
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Failure{Kind: KindTimeout, Message: "operation timed out", Retryable: true}
	case errors.Is(err, exec.ErrNotFound):
		return Failure{
			Kind:        KindExternalUnavailable,
			Message:     err.Error(),
			Remediation: "Install the missing command line tool and make sure it is on PATH.",
		}
	case errors.Is(err, fs.ErrNotExist):
		return Failure{Kind: KindNotFound, Message: err.Error()}
	case errors.Is(err, fs.ErrPermission):
		return Failure{
			Kind:        KindPermissionDenied,
			Message:     err.Error(),
			Remediation: "Check the file permissions, or grant Full Disk Access in System Settings > Privacy & Security.",
		}
	case errors.Is(err, context.Canceled):
		return Failure{Kind: KindUnknown, Message: "operation cancelled"}
	}
	return Failure{Kind: KindUnknown, Message: err.Error()}
}

// Outcome is the result of exactly one invocation: either a success with
// text, or a failure with a kind.
type Outcome struct {
	Capability  string        `json:"capability"`
	OK          bool          `json:"ok"`
	Text        string        `json:"text,omitempty"`
	SideEffects []string      `json:"side_effects,omitempty"`
	Failure     *Failure      `json:"failure,omitempty"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
}

// Succeed builds a successful Outcome.
func Succeed(name string, r Result) Outcome {
	return Outcome{Capability: name, OK: true, Text: r.Text, SideEffects: r.SideEffects, Attempts: 1}
}

// Fail builds a failed Outcome of the given kind.
func Fail(name string, kind FailureKind, format string, args ...any) Outcome {
	return Outcome{
		Capability: name,
		Failure:    &Failure{Kind: kind, Message: fmt.Sprintf(format, args...), Retryable: kind.Retryable()},
		Attempts:   1,
	}
}

// FailWith builds a failed Outcome from a classified failure.
func FailWith(name string, f Failure) Outcome {
	return Outcome{Capability: name, Failure: &f, Attempts: 1}
}

// Kind returns the failure kind, or "" on success.
func (o Outcome) Kind() FailureKind {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Kind
}

// Render turns the outcome into the text handed back to the conversational
// runtime.
func (o Outcome) Render() string {
	if o.OK {
		text := o.Text
		if strings.TrimSpace(text) == "" {
			text = "Done."
		}
		return text
	}
	if o.Failure == nil {
		return "Error: no result"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error (%s): %s", o.Failure.Kind, o.Failure.Message)
	if o.Failure.Remediation != "" {
		fmt.Fprintf(&sb, "\nHow to fix: %s", o.Failure.Remediation)
	}
	return sb.String()
}
