package engine

import (
	"errors"
	"fmt"
	"strings"
)

// NavError is the error returned by engine operations.
//
// Every NavError rejects exactly one request. The engine state is left as it
// was before the request and the engine stays usable.
type NavError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed.
	Op Op

	// Message is a human-readable description.
	Message string

	// Details contains additional context (e.g. the redirect chain).
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes navigation errors.
type ErrorCode string

const (
	// ErrCodeInvalidStackOperation covers popping the last root entry,
	// replacing with an empty sequence, and out-of-range child switches.
	ErrCodeInvalidStackOperation ErrorCode = "INVALID_STACK_OPERATION"

	// ErrCodeRedirectCycle indicates a request exceeded the redirect bound.
	ErrCodeRedirectCycle ErrorCode = "REDIRECT_CYCLE"

	// ErrCodeDeepLinkEmpty indicates the resolver returned no locations
	// without deferring.
	ErrCodeDeepLinkEmpty ErrorCode = "DEEP_LINK_EMPTY"

	// ErrCodeDeepLinkInvalid indicates the URI could not be parsed.
	ErrCodeDeepLinkInvalid ErrorCode = "DEEP_LINK_INVALID"

	// ErrCodeNoResolver indicates a deep link arrived but no resolver is configured.
	ErrCodeNoResolver ErrorCode = "NO_RESOLVER"

	// ErrCodeResolverFailed indicates the resolver itself returned an error.
	ErrCodeResolverFailed ErrorCode = "RESOLVER_FAILED"

	// ErrCodeInterceptorFailed indicates an interceptor returned an error
	// or a malformed decision.
	ErrCodeInterceptorFailed ErrorCode = "INTERCEPTOR_FAILED"

	// ErrCodeEngineClosed indicates the engine no longer accepts requests.
	ErrCodeEngineClosed ErrorCode = "ENGINE_CLOSED"
)

// Sentinel values for errors.Is. A NavError matches a sentinel when the
// codes are equal.
var (
	ErrInvalidStackOperation = &NavError{Code: ErrCodeInvalidStackOperation}
	ErrRedirectCycle         = &NavError{Code: ErrCodeRedirectCycle}
	ErrDeepLinkEmpty         = &NavError{Code: ErrCodeDeepLinkEmpty}
	ErrDeepLinkInvalid       = &NavError{Code: ErrCodeDeepLinkInvalid}
	ErrNoResolver            = &NavError{Code: ErrCodeNoResolver}
	ErrResolverFailed        = &NavError{Code: ErrCodeResolverFailed}
	ErrInterceptorFailed     = &NavError{Code: ErrCodeInterceptorFailed}
	ErrEngineClosed          = &NavError{Code: ErrCodeEngineClosed}
)

// Error implements the error interface.
func (e *NavError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(string(e.Op))
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *NavError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a NavError with the same code.
func (e *NavError) Is(target error) bool {
	t, ok := target.(*NavError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first NavError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ne *NavError
	if errors.As(err, &ne) {
		return ne.Code
	}
	return ""
}

// IsInvalidStackOperation returns true if err is an invalid stack operation.
func IsInvalidStackOperation(err error) bool {
	return CodeOf(err) == ErrCodeInvalidStackOperation
}

// IsRedirectCycle returns true if err is a redirect cycle error.
func IsRedirectCycle(err error) bool {
	return CodeOf(err) == ErrCodeRedirectCycle
}

// IsDeepLinkEmpty returns true if err reports an empty deep link resolution.
func IsDeepLinkEmpty(err error) bool {
	return CodeOf(err) == ErrCodeDeepLinkEmpty
}

// IsEngineClosed returns true if err reports a closed engine.
func IsEngineClosed(err error) bool {
	return CodeOf(err) == ErrCodeEngineClosed
}

func newInvalidStackError(op Op, format string, args ...any) *NavError {
	return &NavError{
		Code:    ErrCodeInvalidStackOperation,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

func newRedirectCycleError(op Op, chain []string, limit int) *NavError {
	return &NavError{
		Code:    ErrCodeRedirectCycle,
		Op:      op,
		Message: fmt.Sprintf("more than %d redirects", limit),
		Details: map[string]string{
			"chain": strings.Join(chain, " -> "),
			"limit": fmt.Sprintf("%d", limit),
		},
	}
}

func newInterceptorError(op Op, name string, err error) *NavError {
	return &NavError{
		Code:    ErrCodeInterceptorFailed,
		Op:      op,
		Message: fmt.Sprintf("interceptor %s", name),
		Details: map[string]string{"interceptor": name},
		Err:     err,
	}
}

func newClosedError(op Op) *NavError {
	return &NavError{
		Code:    ErrCodeEngineClosed,
		Op:      op,
		Message: "engine is closed",
	}
}
