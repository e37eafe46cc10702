//go:build !callgate_release

package runtime

// assertions enables precondition checks on global cells. Build with the
// callgate_release tag to compile them out.
const assertions = true
