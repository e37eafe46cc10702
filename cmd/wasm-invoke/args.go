package main

import (
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/wippyai/wasm-callgate/errors"
	"github.com/wippyai/wasm-callgate/wasm"
)

// parseArgs converts command line arguments to values of sig's parameter
// types. Integers accept any base strconv understands; floats accept the
// usual decimal, hex and inf/nan spellings.
func parseArgs(sig *wasm.FuncType, args []string) ([]wasm.Value, error) {
	if len(args) != len(sig.Params) {
		return nil, errors.InvalidInput(errors.PhaseInvoke,
			fmt.Sprintf("%s takes %d arguments, got %d", sig, len(sig.Params), len(args)))
	}
	values := make([]wasm.Value, len(args))
	for i, arg := range args {
		v, err := parseValue(sig.Params[i], arg)
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			return nil, err
		}
		if err != nil {
			return nil, errors.TypeMismatch(errors.PhaseInvoke, fmt.Sprintf("argument %d", i),
				sig.Params[i].String(), strconv.Quote(arg))
		}
		values[i] = v
	}
	return values, nil
}

func parseValue(t wasm.ValType, s string) (wasm.Value, error) {
	switch t {
	case wasm.ValI32:
		n, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			// Allow unsigned spellings such as 0xffffffff.
			u, uerr := strconv.ParseUint(s, 0, 32)
			if uerr != nil {
				return wasm.Value{}, err
			}
			n = int64(int32(uint32(u)))
		}
		return wasm.I32(int32(n)), nil
	case wasm.ValI64:
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(s, 0, 64)
			if uerr != nil {
				return wasm.Value{}, err
			}
			n = int64(u)
		}
		return wasm.I64(n), nil
	case wasm.ValF32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return wasm.Value{}, err
		}
		return wasm.F32(float32(f)), nil
	case wasm.ValF64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return wasm.Value{}, err
		}
		return wasm.F64(f), nil
	case wasm.ValFuncRef, wasm.ValExtern:
		u, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return wasm.Value{}, err
		}
		return wasm.FromBits(t, u), nil
	}
	return wasm.Value{}, errors.Unsupported(errors.PhaseInvoke, "parameter type "+t.String())
}
