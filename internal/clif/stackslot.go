package clif

// StackSlotID identifies a declared stack slot within a Function (§4.1, §4.5).
type StackSlotID uint32

// StackSlot is a sized, aligned local storage location declared by the front end
// (locals) or by a pre-lowering pass (bulk-copy buffers for oversized call
// arguments/returns, §4.3.2). Concrete frame offsets are assigned later by the stack
// allocator (§4.5); this struct only carries the request.
type StackSlot struct {
	ID         StackSlotID
	Size       int64
	AlignShift uint8 // alignment = 1 << AlignShift
	// Offset is filled in by the stack allocator; it is meaningless before that pass runs.
	Offset int64
}

// Align returns the slot's required alignment in bytes.
func (s StackSlot) Align() int64 { return int64(1) << s.AlignShift }
