// Package failure defines the fatal error kinds an install can end with.
// Every kind aborts the pipeline; none is retried.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an install failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindIntegrity
	KindEnvironment
	KindDependencyResolution
	KindPostInstall
	KindVerification
)

func (k Kind) String() string {
	switch k {
	case KindIntegrity:
		return "IntegrityError"
	case KindEnvironment:
		return "EnvironmentError"
	case KindDependencyResolution:
		return "DependencyResolutionError"
	case KindPostInstall:
		return "PostInstallError"
	case KindVerification:
		return "VerificationError"
	default:
		return "Error"
	}
}

// ExitCode maps a kind to the process exit status.
func (k Kind) ExitCode() int {
	switch k {
	case KindIntegrity:
		return 2
	case KindEnvironment:
		return 3
	case KindDependencyResolution:
		return 4
	case KindPostInstall:
		return 5
	case KindVerification:
		return 6
	default:
		return 1
	}
}

// Error is a failure in one named install step.
type Error struct {
	Kind Kind
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrIntegrity)
// works regardless of step or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Step == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrIntegrity            = &Error{Kind: KindIntegrity}
	ErrEnvironment          = &Error{Kind: KindEnvironment}
	ErrDependencyResolution = &Error{Kind: KindDependencyResolution}
	ErrPostInstall          = &Error{Kind: KindPostInstall}
	ErrVerification         = &Error{Kind: KindVerification}
)

func newf(kind Kind, step, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Step: step, Err: fmt.Errorf(format, args...)}
}

// Integrity reports an archive that could not be fetched or does not match
// its digest or signature.
func Integrity(step, format string, args ...interface{}) *Error {
	return newf(KindIntegrity, step, format, args...)
}

// Environment reports a host that cannot provide the runtime or layout.
func Environment(step, format string, args ...interface{}) *Error {
	return newf(KindEnvironment, step, format, args...)
}

// DependencyResolution reports dependencies pip could not install.
func DependencyResolution(step, format string, args ...interface{}) *Error {
	return newf(KindDependencyResolution, step, format, args...)
}

// PostInstall reports a failed post-install action.
func PostInstall(step, format string, args ...interface{}) *Error {
	return newf(KindPostInstall, step, format, args...)
}

// Verification reports a smoke test whose output did not match.
func Verification(step, format string, args ...interface{}) *Error {
	return newf(KindVerification, step, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// ExitCode returns the exit status for err; 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
