// Command wasm-invoke loads a WebAssembly module and calls one of its
// exports through the call boundary, printing the result or the
// exception with its call stack.
//
//	wasm-invoke list module.wasm
//	wasm-invoke invoke module.wasm add 2 3
//
// Settings come from flags, WASM_INVOKE_* environment variables and an
// optional YAML config file, in that order of precedence.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
