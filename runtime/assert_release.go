//go:build callgate_release

package runtime

const assertions = false
