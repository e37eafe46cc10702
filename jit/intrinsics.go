package jit

import (
	"context"
	"math"

	"github.com/wippyai/wasm-callgate/platform"
	"github.com/wippyai/wasm-callgate/runtime"
)

// DivS32 is i32.div_s. Go does not trap on MinInt32 / -1, so the
// overflow is raised as an integer divide fault; division by zero faults
// natively.
func DivS32(a, b int32) int32 {
	if b == -1 && a == math.MinInt32 {
		platform.Raise(platform.FaultIntegerDivide, 0)
	}
	return a / b
}

// DivS64 is i64.div_s.
func DivS64(a, b int64) int64 {
	if b == -1 && a == math.MinInt64 {
		platform.Raise(platform.FaultIntegerDivide, 0)
	}
	return a / b
}

// Unreachable abandons the current call with reached-unreachable.
func Unreachable(ctx context.Context) {
	runtime.FromContext(ctx).Throw(runtime.CauseReachedUnreachable)
}

// Abort abandons the current call with called-abort.
func Abort(ctx context.Context) {
	runtime.FromContext(ctx).Throw(runtime.CauseCalledAbort)
}
