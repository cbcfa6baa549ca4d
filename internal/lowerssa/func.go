package lowerssa

// TypeID indexes into a TypeRegistry, which the front end owns and the core only
// queries (§6.1: "A type registry with size/alignment queries").
type TypeID int32

// TypeRegistry answers size/alignment/kind queries about front-end types. It is
// read-only from the core's perspective.
type TypeRegistry interface {
	Size(TypeID) int64
	Align(TypeID) int64
	IsString(TypeID) bool
	// PrimitiveHalves returns, for a decomposed aggregate type, the TypeID to use for
	// its pointer half and its length/tag half. Only meaningful after decomposition
	// has rewritten a value to string_make; strings always decompose to (ptr:I64, len:I64).
	PrimitiveHalves(TypeID) (ptr, len TypeID)
}

// BasicTypeRegistry is a minimal TypeRegistry sufficient for the core's own tests and
// for runtime-generator CLIF, where all "front end" types are the machine primitives
// plus one 16-byte string type.
type BasicTypeRegistry struct {
	StringType TypeID
	I64Type    TypeID
}

func (r BasicTypeRegistry) Size(t TypeID) int64 {
	if t == r.StringType {
		return 16
	}
	return 8
}

func (r BasicTypeRegistry) Align(t TypeID) int64 { return 8 }

func (r BasicTypeRegistry) IsString(t TypeID) bool { return t == r.StringType }

func (r BasicTypeRegistry) PrimitiveHalves(t TypeID) (TypeID, TypeID) {
	return r.I64Type, r.I64Type
}

// ValueHome records where the register allocator (§4.4) and stack allocator (§4.5)
// decided a Value lives: either a physical register number, or a stack-frame offset.
type ValueHome struct {
	InReg    bool
	Reg      uint8
	StackOff int64
	Assigned bool
}

// GroupID marks the pre-lowering-pass "barrier" a Value was created behind (§4.3.1,
// §4.3.2's fixed-point loops). Values the front end hands in start at GroupID 0;
// each fixed-point round of a pass that emits new values allocates a fresh group via
// Func.NewGroup and stamps every value it creates with it.
//
// Grounded on wazero's ssa.InstructionGroupID (ssa/instructions.go), which tags
// instructions with the side-effecting-instruction "barrier" they follow so a
// scheduler may reorder freely within a group. Adapted here to a different purpose:
// the tag separates one round's output from the next. Decompose's fixed-point loop
// (§4.3.1) picks the blocks to revisit from its own set of blocks the previous round
// rewrote, not from these tags; no pass in this package reads Group back.
type GroupID int32

// Value is one low-SSA instruction/definition (§3.2). Aux/AuxTag carry
// opcode-specific extra data (e.g. OpMove's byte count in Aux, OpStaticCall's callee
// name in AuxTag).
type Value struct {
	id       int
	Op       Opcode
	Type     TypeID
	Args     []*Value
	Aux      int64
	AuxTag   interface{}
	UseCount int
	SrcPos   int32
	Home     ValueHome
	Uses     *UseRecord // set by the liveness pass (§4.3.3)
	Group    GroupID    // barrier this value was created behind; 0 for front-end input

	blk *Block
}

// ID returns a stable, per-function identifier for this value (assigned at creation).
func (v *Value) ID() int { return v.id }

// Block returns the block this value is defined in.
func (v *Value) Block() *Block { return v.blk }

// UseRecord is one entry in a value's per-use distance list, used by the register
// allocator's Belady furthest-use spill heuristic (§3.3, §4.4).
type UseRecord struct {
	Distance int
	SrcPos   int32
	Next     *UseRecord
}

const (
	// DistanceLikely is the penalty added for stepping across a likely-branch edge.
	DistanceLikely = 1
	// DistanceNormal is the penalty for an ordinary successor edge.
	DistanceNormal = 10
	// DistanceUnlikelyOrCall is the penalty for an unlikely-branch edge, or for a use
	// that lies beyond an intervening call.
	DistanceUnlikelyOrCall = 100
	// DistanceUnknown seeds the initial, not-yet-computed state.
	DistanceUnknown = 1 << 30
)

// Block is a low-SSA basic block: an ordered value sequence plus predecessor/successor
// edges. Terminators are the last Value in the sequence.
type Block struct {
	ID      int
	Values  []*Value
	Preds   []*Block
	Succs   []*Block
	// LikelySucc, if non-nil, is the successor the block-layout heuristic treats as
	// the common case (e.g. the fallthrough of an if without an unlikely annotation).
	LikelySucc *Block

	// LiveOut is computed by the liveness pass: the set of values live at the block's
	// end, i.e. used by some successor or itself live-out of a successor (§4.3.3).
	LiveOut map[*Value]int

	// SpillLive is not filled in by any pass in this module: the register allocator
	// keeps its per-block spill-liveness records in regalloc.Allocator.SpillLive, and
	// that map is what the stack allocator's interference graph consumes (§4.5 step 1).
	SpillLive map[*Value]bool
}

func (b *Block) Terminator() *Value {
	if len(b.Values) == 0 {
		return nil
	}
	return b.Values[len(b.Values)-1]
}

// Func is a low-SSA function: blocks plus the type registry used to interpret them.
type Func struct {
	Name   string
	Blocks []*Block
	Types  TypeRegistry

	nextValueID int
	nextGroup   GroupID
}

// NewGroup allocates a fresh GroupID, for a pass (Decompose, ExpandCalls) to stamp
// onto every value it creates in one fixed-point round or rewrite pass (§4.3.1,
// §4.3.2). GroupID 0 is reserved for the front end's original input, so the first
// call returns 1.
func (f *Func) NewGroup() GroupID {
	f.nextGroup++
	return f.nextGroup
}

// NewFunc returns an empty Func over the given type registry.
func NewFunc(name string, types TypeRegistry) *Func {
	return &Func{Name: name, Types: types}
}

// NewBlock appends and returns a new, empty block.
func (f *Func) NewBlock() *Block {
	b := &Block{ID: len(f.Blocks)}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewValue appends a new Value of the given opcode/type/args to blk and returns it,
// bumping each argument's UseCount (§3.2 invariant: uses tracked by counter and
// explicit back-pointers).
func (f *Func) NewValue(blk *Block, op Opcode, typ TypeID, args ...*Value) *Value {
	v := &Value{id: f.nextValueID, Op: op, Type: typ, Args: args, blk: blk}
	f.nextValueID++
	for _, a := range args {
		a.UseCount++
	}
	blk.Values = append(blk.Values, v)
	return v
}

// InsertNewValueBefore creates a Value the same way NewValue does (fresh id, bumped
// argument use counts) but splices it into blk immediately before `before` instead of
// appending it — used by the register allocator to insert reload/shuffle code ahead
// of the instruction that needs it, without disturbing the block's terminator
// position (§4.4 "insert a load before the use").
func (f *Func) InsertNewValueBefore(blk *Block, before *Value, op Opcode, typ TypeID, args ...*Value) *Value {
	v := &Value{id: f.nextValueID, Op: op, Type: typ, Args: args}
	f.nextValueID++
	for _, a := range args {
		a.UseCount++
	}
	InsertValueBefore(blk, before, v)
	return v
}

// InsertValueBefore inserts v into blk immediately before at (or at the end if at is nil).
func InsertValueBefore(blk *Block, at *Value, v *Value) {
	v.blk = blk
	if at == nil {
		blk.Values = append(blk.Values, v)
		return
	}
	for i, existing := range blk.Values {
		if existing == at {
			blk.Values = append(blk.Values, nil)
			copy(blk.Values[i+1:], blk.Values[i:])
			blk.Values[i] = v
			return
		}
	}
	panic("BUG: at is not in blk")
}

// ReplaceArg rewrites every occurrence of old in v's argument list with replacement,
// maintaining use counts.
func ReplaceArg(v *Value, old, replacement *Value) {
	for i, a := range v.Args {
		if a == old {
			v.Args[i] = replacement
			old.UseCount--
			replacement.UseCount++
		}
	}
}

// PostOrder returns this function's blocks in postorder from the entry block,
// required by the liveness pass's backward dataflow (§4.3.3).
func (f *Func) PostOrder() []*Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	visited := make(map[*Block]bool, len(f.Blocks))
	var order []*Block
	var visit func(b *Block)
	visit = func(b *Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		order = append(order, b)
	}
	visit(f.Blocks[0])
	// Any block unreachable from the entry (shouldn't happen in valid input) is
	// still visited so passes never skip a declared block.
	for _, b := range f.Blocks {
		visit(b)
	}
	return order
}
