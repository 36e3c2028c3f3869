package media

// Frame is one encoded picture delivered by the capture pipeline. The
// payload is opaque; nothing in this module inspects it.
type Frame struct {
	Sequence   uint64
	Data       []byte
	IsKeyframe bool
}

// Size returns the payload size in bytes.
func (f *Frame) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}
