package runtime

// SetAbort replaces the process exit performed after a fatal fault.
func SetAbort(r *Runtime, abort func()) {
	r.abort = abort
}

var Truncate = truncate

// Reserved reports the owner registered for addr, "" if none.
func Reserved(r *Runtime, addr uintptr) string {
	owner, ok := r.regions.Lookup(addr)
	if !ok {
		return ""
	}
	return owner.String()
}
