// Package trace decodes the memory-side request log written by the processor
// simulator into memory access events.
package trace

// Op is the kind of a memory access.
type Op int

// Memory operations.
const (
	Read Op = iota
	Write
)

func (o Op) String() string {
	if o == Read {
		return "Read"
	}

	return "Write"
}

// An Event is one memory access, as seen on the memory side.
type Event struct {
	Timestamp    uint64
	StartAddress uint64
	EndAddress   uint64
	Op           Op
}

// ByteSize returns the number of bytes the access covers.
func (e Event) ByteSize() uint64 {
	if e.EndAddress < e.StartAddress {
		return 0
	}

	return e.EndAddress - e.StartAddress
}
