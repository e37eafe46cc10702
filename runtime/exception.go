package runtime

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-callgate/platform"
)

// Cause identifies why a guest call was abandoned.
type Cause uint8

const (
	CauseInvokeSignatureMismatch Cause = iota + 1
	CauseUndefinedTableElement
	CauseAccessViolation
	CauseStackOverflow
	CauseIntegerDivideByZeroOrOverflow

	// Raised by guest code rather than by a fault.
	CauseReachedUnreachable
	CauseIndirectCallSignatureMismatch
	CauseInvalidFloatOperation
	CauseCalledAbort
)

var causeNames = [...]string{
	CauseInvokeSignatureMismatch:       "invoke-signature-mismatch",
	CauseUndefinedTableElement:         "undefined-table-element",
	CauseAccessViolation:               "access-violation",
	CauseStackOverflow:                 "stack-overflow",
	CauseIntegerDivideByZeroOrOverflow: "integer-divide-by-zero-or-overflow",
	CauseReachedUnreachable:            "reached-unreachable",
	CauseIndirectCallSignatureMismatch: "indirect-call-signature-mismatch",
	CauseInvalidFloatOperation:         "invalid-float-operation",
	CauseCalledAbort:                   "called-abort",
}

func (c Cause) String() string {
	if int(c) < len(causeNames) && causeNames[c] != "" {
		return causeNames[c]
	}
	return fmt.Sprintf("cause(%d)", uint8(c))
}

// Exception is the error returned when a guest call fails. CallStack
// holds one description per frame, innermost first.
type Exception struct {
	CallStack []string
	Cause     Cause
}

func (e *Exception) Error() string {
	return "wasm exception: " + e.Cause.String()
}

// Is matches any exception with the same cause, so the Err* sentinels
// work with errors.Is.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	return ok && t.Cause == e.Cause
}

// StackTrace renders the call stack one frame per line.
func (e *Exception) StackTrace() string {
	var b strings.Builder
	for i, frame := range e.CallStack {
		fmt.Fprintf(&b, "#%d %s\n", i, frame)
	}
	return b.String()
}

var (
	ErrInvokeSignatureMismatch       = &Exception{Cause: CauseInvokeSignatureMismatch}
	ErrUndefinedTableElement         = &Exception{Cause: CauseUndefinedTableElement}
	ErrAccessViolation               = &Exception{Cause: CauseAccessViolation}
	ErrStackOverflow                 = &Exception{Cause: CauseStackOverflow}
	ErrIntegerDivideByZeroOrOverflow = &Exception{Cause: CauseIntegerDivideByZeroOrOverflow}
	ErrReachedUnreachable            = &Exception{Cause: CauseReachedUnreachable}
	ErrIndirectCallSignatureMismatch = &Exception{Cause: CauseIndirectCallSignatureMismatch}
	ErrInvalidFloatOperation         = &Exception{Cause: CauseInvalidFloatOperation}
	ErrCalledAbort                   = &Exception{Cause: CauseCalledAbort}
)

const unknownFrame = "<unknown frame>"

// DescribeCallStack returns one description per frame, in order. Code
// generator metadata is preferred over platform symbols.
func (r *Runtime) DescribeCallStack(stack platform.CallStack) []string {
	out := make([]string, len(stack.Frames))
	for i, f := range stack.Frames {
		if desc, ok := r.codegen.DescribeAddress(f.IP); ok {
			out[i] = desc
		} else if desc, ok := r.platform.DescribeAddress(f.IP); ok {
			out[i] = desc
		} else {
			out[i] = unknownFrame
		}
	}
	return out
}

// CauseException builds an exception for cause with the call stack of its
// caller. The operation that detected the violation must return it
// without doing anything else.
//
//go:noinline
func (r *Runtime) CauseException(cause Cause) *Exception {
	return r.exception(cause, dropFrame(r.platform.CaptureCallStack()))
}

// Throw abandons the current guest call with cause. It may only be used
// below InvokeFunction, which returns the exception as the call's error.
// Host frames outside the call are not part of its stack.
//
//go:noinline
func (r *Runtime) Throw(cause Cause) {
	if r == nil {
		panic(fmt.Sprintf("runtime: %s thrown outside InvokeFunction", cause))
	}
	panic(&guestThrow{cause: cause, stack: dropFrame(r.platform.CaptureCallStack())})
}

func dropFrame(s platform.CallStack) platform.CallStack {
	if len(s.Frames) > 0 {
		s.Frames = s.Frames[1:]
	}
	return s
}

func (r *Runtime) exception(cause Cause, stack platform.CallStack) *Exception {
	e := &Exception{Cause: cause, CallStack: r.DescribeCallStack(stack)}
	r.metrics.exceptions.WithLabelValues(cause.String()).Inc()
	r.logger.Debug("exception",
		zap.Stringer("cause", cause),
		zap.Strings("stack", e.CallStack))
	return e
}
