package platform

// Frame is one captured instruction address.
type Frame struct {
	IP uintptr
}

// CallStack is an innermost-first sequence of frames.
type CallStack struct {
	Frames []Frame
}

// Len returns the number of frames.
func (s CallStack) Len() int {
	return len(s.Frames)
}

// IPs returns the raw instruction addresses.
func (s CallStack) IPs() []uintptr {
	ips := make([]uintptr, len(s.Frames))
	for i, f := range s.Frames {
		ips[i] = f.IP
	}
	return ips
}

// StackOf builds a CallStack from raw instruction addresses.
func StackOf(ips ...uintptr) CallStack {
	frames := make([]Frame, len(ips))
	for i, ip := range ips {
		frames[i] = Frame{IP: ip}
	}
	return CallStack{Frames: frames}
}
