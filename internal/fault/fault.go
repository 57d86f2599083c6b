// Package fault classifies the errors a duel run can end with.
//
// Configuration and adapter-execution faults are fatal for the run, case
// validation faults reject a whole dataset at load time, and per-case faults
// are contained inside a single evaluation and only ever reported.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the class of a fault.
type Kind int

const (
	// KindConfiguration covers invalid options, degenerate splits and missing files.
	KindConfiguration Kind = iota

	// KindAdapterExecution covers an evaluation call that exited non-zero,
	// timed out, or produced an unreadable report.
	KindAdapterExecution

	// KindCaseValidation covers a dataset row that cannot be used.
	KindCaseValidation

	// KindPerCase covers a single case whose rendering or comparison failed.
	KindPerCase
)

// Prefix returns the display prefix for this kind.
func (k Kind) Prefix() string {
	prefixes := []string{
		"[CONFIG]",
		"[ADAPTER]",
		"[DATASET]",
		"[CASE]",
	}
	if int(k) >= 0 && int(k) < len(prefixes) {
		return prefixes[k]
	}
	return "[ERROR]"
}

// String returns the kind name.
func (k Kind) String() string {
	names := []string{
		"configuration",
		"adapter_execution",
		"case_validation",
		"per_case",
	}
	if int(k) >= 0 && int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Fatal reports whether a fault of this kind terminates the run.
func (k Kind) Fatal() bool {
	return k != KindPerCase
}

// Error wraps an underlying error with its kind and remediation hints.
type Error struct {
	Kind        Kind
	Summary     string
	Err         error
	Remediation []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Summary
	}
	if e.Summary == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Summary, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Err
}

// Format returns a user-facing message with remediation lines.
func (e *Error) Format() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s\n", e.Kind.Prefix(), e.Summary))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf("Details: %s\n", e.Err.Error()))
	}

	remediation := e.Remediation
	if len(remediation) == 0 {
		remediation = defaultRemediation[e.Kind]
	}
	if len(remediation) > 0 {
		sb.WriteString("\nSuggested fixes:\n")
		for _, r := range remediation {
			sb.WriteString(fmt.Sprintf("  - %s\n", r))
		}
	}

	return sb.String()
}

var defaultRemediation = map[Kind][]string{
	KindConfiguration: {
		"Check the paths passed on the command line or in the config file",
		"Adjust holdout_mod / holdout_remainder so both splits are non-empty",
	},
	KindAdapterExecution: {
		"Run the evaluation adapter by hand with the same arguments",
		"Raise evaluation.call_timeout if the harness is slow",
		"Inspect the text report next to the JSON report for the failing call",
	},
	KindCaseValidation: {
		"Every dataset row needs a non-empty \"input\" and an \"expected\" field",
		"\"match\" must be one of exact, contains, regex",
	},
}

// Configuration builds a configuration fault.
func Configuration(summary string, err error) *Error {
	return &Error{Kind: KindConfiguration, Summary: summary, Err: err}
}

// Configurationf builds a configuration fault from a format string.
func Configurationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Summary: fmt.Sprintf(format, args...)}
}

// Adapter builds an adapter-execution fault.
func Adapter(summary string, err error) *Error {
	return &Error{Kind: KindAdapterExecution, Summary: summary, Err: err}
}

// CaseValidation builds a dataset validation fault.
func CaseValidation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindCaseValidation, Summary: fmt.Sprintf(format, args...)}
}

// PerCase builds a contained per-case fault.
func PerCase(caseID string, err error) *Error {
	return &Error{Kind: KindPerCase, Summary: fmt.Sprintf("case %s", caseID), Err: err}
}

// KindOf returns the kind of the first fault in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// Is reports whether err carries a fault of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
