package wasmfrontend

import (
	"fmt"

	"github.com/cot-lang/cotc/internal/clif"
)

// frameKind distinguishes the four control-stack frame shapes §4.2 names: the
// implicit function-body frame, and the three structured constructs.
type frameKind int

const (
	frameFunction frameKind = iota
	frameBlock
	frameLoop
	frameIf
)

// controlFrame is one entry of the translator's control stack (§4.2 "the control
// stack entries record the kind ... the associated CLIF blocks").
type controlFrame struct {
	kind      frameKind
	blockType BlockType

	// dead is true when this frame was entered while already skipping unreachable
	// code: its entire body, and everything nested in it, never emits CLIF.
	dead bool

	// continuation is the block execution resumes at once this frame's matching
	// `end` is reached (for loop frames this is the block after the loop, not the
	// loop header).
	continuation clif.BlockID

	// loopHeader is the br/br_if target for a loop frame (§4.2 "loops target the
	// loop header").
	loopHeader clif.BlockID

	// elseBlock is the deferred else-target of an if-frame until `else` is seen.
	elseBlock   clif.BlockID
	elseEntered bool

	// savedParamVals are the if-frame's BlockType.Params, held so they can be
	// re-pushed at the start of both the then- and the else-branch body (both
	// branches share the single predecessor that is the Brif, so no new CLIF
	// values are needed to carry them across).
	savedParamVals []clif.ValueID

	// entryLocals snapshots the locals vector at frame entry, used to supply the
	// implicit else-branch of an if-without-else with the right values.
	entryLocals []clif.ValueID

	originalStackLen int
}

// Translator holds the state described in §4.2: a value stack, a control stack, and
// the per-function locals table, and emits CLIF into b as Wasm operators are fed in.
// Because the clif package exposes only block parameters (no Variable/incomplete-phi
// layer as wazevo's ssa.Builder has), locals are threaded as extra block-call
// arguments at every merge point (loop headers and block/if continuations) rather
// than resolved through a separate SSA-construction pass.
type Translator struct {
	b *clif.Builder

	locals     []clif.ValueID
	localTypes []ValType

	stack  []clif.ValueID
	frames []controlFrame

	// unreachableDepth counts nested dead frames; zero means the current
	// instruction stream is reachable (§4.2 "bookkeeping counter").
	unreachableDepth int

	// binaryOps binds each binary opcode to b's corresponding builder method;
	// built once per Translator since it closes over b.
	binaryOps map[Opcode]binaryOp
}

// NewTranslator starts translating a function with the given parameter types,
// additional declared local types (zero-initialized, per §4.2 "the first N locals
// are the function parameters"), and result types. Apart from the entry block and
// the zero constants for the declared locals it creates nothing yet, and it seals
// nothing; the caller drives Block/Loop/If/.../End by feeding it decoded operators.
func NewTranslator(b *clif.Builder, paramTypes, declaredLocalTypes, results []ValType) *Translator {
	entry := b.CreateEntryBlock()
	b.SetCurrentBlock(entry)
	entryParams := b.Func().Block(entry).Params()

	allTypes := make([]ValType, 0, len(paramTypes)+len(declaredLocalTypes))
	allTypes = append(allTypes, paramTypes...)
	allTypes = append(allTypes, declaredLocalTypes...)

	locals := make([]clif.ValueID, len(allTypes))
	copy(locals, entryParams)
	for i := len(paramTypes); i < len(allTypes); i++ {
		locals[i] = b.Iconst(allTypes[i].ToCLIF(), 0)
	}

	t := &Translator{b: b, locals: locals, localTypes: allTypes, binaryOps: registerBinary(b)}
	t.frames = append(t.frames, controlFrame{kind: frameFunction, blockType: BlockType{Results: results}})
	return t
}

func (t *Translator) unreachable() bool { return t.unreachableDepth > 0 }

func (t *Translator) push(v clif.ValueID) { t.stack = append(t.stack, v) }

func (t *Translator) pop() (clif.ValueID, error) {
	if len(t.stack) == 0 {
		if t.unreachable() {
			return clif.ValueInvalid, nil
		}
		return clif.ValueInvalid, fmt.Errorf("wasmfrontend: stack underflow")
	}
	v := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return v, nil
}

func (t *Translator) popN(n int) ([]clif.ValueID, error) {
	out := make([]clif.ValueID, n)
	for i := n - 1; i >= 0; i-- {
		v, err := t.pop()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t *Translator) peek() (clif.ValueID, error) {
	if len(t.stack) == 0 {
		if t.unreachable() {
			return clif.ValueInvalid, nil
		}
		return clif.ValueInvalid, fmt.Errorf("wasmfrontend: stack underflow")
	}
	return t.stack[len(t.stack)-1], nil
}

func (t *Translator) topFrame() *controlFrame { return &t.frames[len(t.frames)-1] }

func (t *Translator) frameAt(depth uint32) (*controlFrame, error) {
	idx := len(t.frames) - 1 - int(depth)
	if idx < 0 {
		return nil, fmt.Errorf("wasmfrontend: branch depth %d exceeds control stack", depth)
	}
	return &t.frames[idx], nil
}

// currentLocals returns a copy of the current locals vector, suitable as the
// trailing arguments of a Jump/Brif into a merge block (§4.2's locals-as-block-args
// scheme).
func (t *Translator) currentLocals() []clif.ValueID {
	out := make([]clif.ValueID, len(t.locals))
	copy(out, t.locals)
	return out
}

func (t *Translator) appendLocalParams(blk clif.BlockID) []clif.ValueID {
	ids := make([]clif.ValueID, len(t.localTypes))
	for i, vt := range t.localTypes {
		ids[i] = t.b.AppendBlockParam(blk, vt.ToCLIF())
	}
	return ids
}

func clifTypes(vts []ValType) []clif.Type {
	out := make([]clif.Type, len(vts))
	for i, vt := range vts {
		out[i] = vt.ToCLIF()
	}
	return out
}

// --- Locals ---

// LocalGet implements local.get (§4.2).
func (t *Translator) LocalGet(idx uint32) error {
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	if int(idx) >= len(t.locals) {
		return fmt.Errorf("wasmfrontend: local index %d out of range", idx)
	}
	t.push(t.locals[idx])
	return nil
}

// LocalSet implements local.set (§4.2).
func (t *Translator) LocalSet(idx uint32) error {
	v, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		return nil
	}
	if int(idx) >= len(t.locals) {
		return fmt.Errorf("wasmfrontend: local index %d out of range", idx)
	}
	t.locals[idx] = v
	return nil
}

// LocalTee implements local.tee (§4.2): like local.set, but leaves the value on
// the stack.
func (t *Translator) LocalTee(idx uint32) error {
	v, err := t.peek()
	if err != nil {
		return err
	}
	if t.unreachable() {
		return nil
	}
	if int(idx) >= len(t.locals) {
		return fmt.Errorf("wasmfrontend: local index %d out of range", idx)
	}
	t.locals[idx] = v
	return nil
}

// --- Constants ---

// I32Const implements i32.const (§4.2).
func (t *Translator) I32Const(v int32) {
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return
	}
	t.push(t.b.Iconst(clif.TypeI32, int64(v)))
}

// I64Const implements i64.const (§4.2).
func (t *Translator) I64Const(v int64) {
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return
	}
	t.push(t.b.Iconst(clif.TypeI64, v))
}

// --- Arithmetic, comparisons, conversions ---

type binaryOp func(x, y clif.ValueID) clif.ValueID

// registerBinary builds the opcode-to-builder-method table for one Translator's
// underlying *clif.Builder.
func registerBinary(b *clif.Builder) map[Opcode]binaryOp {
	return map[Opcode]binaryOp{
		OpI32Add: b.Iadd, OpI64Add: b.Iadd,
		OpI32Sub: b.Isub, OpI64Sub: b.Isub,
		OpI32Mul: b.Imul, OpI64Mul: b.Imul,
		OpI32DivS: b.Sdiv, OpI64DivS: b.Sdiv,
		OpI32DivU: b.Udiv, OpI64DivU: b.Udiv,
		OpI32RemS: b.Srem, OpI64RemS: b.Srem,
		OpI32RemU: b.Urem, OpI64RemU: b.Urem,
		OpI32And: b.Band, OpI64And: b.Band,
		OpI32Or: b.Bor, OpI64Or: b.Bor,
		OpI32Xor: b.Bxor, OpI64Xor: b.Bxor,
		OpI32Shl: b.Ishl, OpI64Shl: b.Ishl,
		OpI32ShrS: b.Sshr, OpI64ShrS: b.Sshr,
		OpI32ShrU: b.Ushr, OpI64ShrU: b.Ushr,
		OpI32Rotl: b.Rotl, OpI64Rotl: b.Rotl,
		OpI32Rotr: b.Rotr, OpI64Rotr: b.Rotr,
	}
}

var intCCs = map[Opcode]clif.IntCC{
	OpI32Eq: clif.IntCCEqual, OpI64Eq: clif.IntCCEqual,
	OpI32Ne: clif.IntCCNotEqual, OpI64Ne: clif.IntCCNotEqual,
	OpI32LtS: clif.IntCCSignedLessThan, OpI64LtS: clif.IntCCSignedLessThan,
	OpI32LtU: clif.IntCCUnsignedLessThan, OpI64LtU: clif.IntCCUnsignedLessThan,
	OpI32GtS: clif.IntCCSignedGreaterThan, OpI64GtS: clif.IntCCSignedGreaterThan,
	OpI32GtU: clif.IntCCUnsignedGreaterThan, OpI64GtU: clif.IntCCUnsignedGreaterThan,
	OpI32LeS: clif.IntCCSignedLessThanOrEqual, OpI64LeS: clif.IntCCSignedLessThanOrEqual,
	OpI32LeU: clif.IntCCUnsignedLessThanOrEqual, OpI64LeU: clif.IntCCUnsignedLessThanOrEqual,
	OpI32GeS: clif.IntCCSignedGreaterThanOrEqual, OpI64GeS: clif.IntCCSignedGreaterThanOrEqual,
	OpI32GeU: clif.IntCCUnsignedGreaterThanOrEqual, OpI64GeU: clif.IntCCUnsignedGreaterThanOrEqual,
}

// Binary implements every two-operand arithmetic/bitwise opcode listed in §4.2
// ("Arithmetic and comparisons translate one-to-one to CLIF forms").
func (t *Translator) Binary(op Opcode) error {
	y, err := t.pop()
	if err != nil {
		return err
	}
	x, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	fn, ok := t.binaryOps[op]
	if !ok {
		return fmt.Errorf("wasmfrontend: opcode %#x is not a binary operator", op)
	}
	t.push(fn(x, y))
	return nil
}

// Compare implements the integer comparison family, extending CLIF's i8 icmp
// result to i32 per the Wasm convention (§4.2 "Comparison produces i32 0/1").
func (t *Translator) Compare(op Opcode) error {
	y, err := t.pop()
	if err != nil {
		return err
	}
	x, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	cc, ok := intCCs[op]
	if !ok {
		return fmt.Errorf("wasmfrontend: opcode %#x is not a comparison", op)
	}
	cmp := t.b.Icmp(cc, x, y)
	t.push(t.b.Uextend(cmp, clif.TypeI32))
	return nil
}

// Eqz implements i32.eqz/i64.eqz: compare against zero of the operand's own type.
func (t *Translator) Eqz(op Opcode) error {
	x, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	typ := clif.TypeI32
	if op == OpI64Eqz {
		typ = clif.TypeI64
	}
	zero := t.b.Iconst(typ, 0)
	cmp := t.b.Icmp(clif.IntCCEqual, x, zero)
	t.push(t.b.Uextend(cmp, clif.TypeI32))
	return nil
}

// I32WrapI64 implements i32.wrap_i64 as ireduce (§4.2).
func (t *Translator) I32WrapI64() error {
	x, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	t.push(t.b.Ireduce(x, clif.TypeI32))
	return nil
}

// I64ExtendI32S implements i64.extend_i32_s as sextend (§4.2).
func (t *Translator) I64ExtendI32S() error {
	x, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	t.push(t.b.Sextend(x, clif.TypeI64))
	return nil
}

// I64ExtendI32U implements i64.extend_i32_u as uextend (§4.2).
func (t *Translator) I64ExtendI32U() error {
	x, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	t.push(t.b.Uextend(x, clif.TypeI64))
	return nil
}

// --- Memory ---

// Load implements i32.load/i64.load (§4.2's memory operators are the ones the
// translator needs for the value-stack state machine; addressing mode and bounds
// behavior belong to the embedder's memory subsystem, out of this package's scope).
func (t *Translator) Load(typ ValType, offset int32) error {
	addr, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	t.push(t.b.Load(typ.ToCLIF(), addr, offset, 0))
	return nil
}

// Store implements i32.store/i64.store.
func (t *Translator) Store(offset int32) error {
	val, err := t.pop()
	if err != nil {
		return err
	}
	addr, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		return nil
	}
	t.b.Store(val, addr, offset, 0)
	return nil
}

// --- Stack manipulation ---

// Drop implements drop (§4.2).
func (t *Translator) Drop() error {
	_, err := t.pop()
	return err
}

// Select implements select (§4.2): stack order bottom-to-top is val1, val2, cond.
func (t *Translator) Select() error {
	cond, err := t.pop()
	if err != nil {
		return err
	}
	val2, err := t.pop()
	if err != nil {
		return err
	}
	val1, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.push(clif.ValueInvalid)
		return nil
	}
	t.push(t.b.Select(cond, val1, val2))
	return nil
}

// --- Control flow ---

// Unreachable implements the `unreachable` operator (§4.2).
func (t *Translator) Unreachable() {
	if t.unreachable() {
		return
	}
	t.b.Trap()
	t.unreachableDepth = 1
}

// Block implements `block` (§4.2).
func (t *Translator) Block(bt BlockType) error {
	params, err := t.popN(len(bt.Params))
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.unreachableDepth++
		t.frames = append(t.frames, controlFrame{kind: frameBlock, blockType: bt, dead: true})
		return nil
	}
	cont := t.b.CreateBlock()
	for _, rt := range bt.Results {
		t.b.AppendBlockParam(cont, rt.ToCLIF())
	}
	t.appendLocalParams(cont)

	// The block's body executes directly in the current block (no separate entry
	// block is needed: control simply falls through), so params go right back on
	// the stack.
	for _, p := range params {
		t.push(p)
	}
	t.frames = append(t.frames, controlFrame{
		kind: frameBlock, blockType: bt, continuation: cont, originalStackLen: len(t.stack) - len(params),
	})
	return nil
}

// Loop implements `loop` (§4.2): the loop's own continuation (for br) is its
// header block, which therefore needs real block parameters for both its Wasm
// params and the locals vector, since it may be reached from multiple back-edges.
func (t *Translator) Loop(bt BlockType) error {
	params, err := t.popN(len(bt.Params))
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.unreachableDepth++
		t.frames = append(t.frames, controlFrame{kind: frameLoop, blockType: bt, dead: true})
		return nil
	}
	header := t.b.CreateBlock()
	for _, pt := range bt.Params {
		t.b.AppendBlockParam(header, pt.ToCLIF())
	}
	t.appendLocalParams(header)

	args := append(append([]clif.ValueID{}, params...), t.currentLocals()...)
	t.b.Jump(header, args)
	t.b.SetCurrentBlock(header)

	headerParams := t.b.Func().Block(header).Params()
	for i := range bt.Params {
		t.push(headerParams[i])
	}
	copy(t.locals, headerParams[len(bt.Params):])

	// after is the loop's continuation, reached when the loop body falls through
	// its `end`; created here the same way Block creates its continuation, while
	// br/br_if to this frame target loopHeader instead.
	after := t.b.CreateBlock()
	for _, rt := range bt.Results {
		t.b.AppendBlockParam(after, rt.ToCLIF())
	}
	t.appendLocalParams(after)

	t.frames = append(t.frames, controlFrame{
		kind: frameLoop, blockType: bt, loopHeader: header, continuation: after,
		originalStackLen: len(t.stack) - len(bt.Params),
	})
	return nil
}

// If implements `if` (§4.2).
func (t *Translator) If(bt BlockType) error {
	cond, err := t.pop()
	if err != nil {
		return err
	}
	params, err := t.popN(len(bt.Params))
	if err != nil {
		return err
	}
	if t.unreachable() {
		t.unreachableDepth++
		t.frames = append(t.frames, controlFrame{kind: frameIf, blockType: bt, dead: true})
		return nil
	}

	thenBlk := t.b.CreateBlock()
	elseBlk := t.b.CreateBlock()
	cont := t.b.CreateBlock()
	for _, rt := range bt.Results {
		t.b.AppendBlockParam(cont, rt.ToCLIF())
	}
	t.appendLocalParams(cont)

	t.b.Brif(cond, thenBlk, nil, elseBlk, nil)
	t.b.SetCurrentBlock(thenBlk)
	t.b.Seal(thenBlk)
	for _, p := range params {
		t.push(p)
	}

	t.frames = append(t.frames, controlFrame{
		kind: frameIf, blockType: bt, continuation: cont, elseBlock: elseBlk,
		savedParamVals: params, entryLocals: t.currentLocals(),
		originalStackLen: len(t.stack) - len(params),
	})
	return nil
}

// Else implements `else` (§4.2): terminates the then-branch and switches
// insertion to the else-block.
func (t *Translator) Else() error {
	frame := t.topFrame()
	if frame.kind != frameIf {
		return fmt.Errorf("wasmfrontend: else outside an if frame")
	}
	if frame.dead {
		return nil
	}
	resultVals, err := t.popN(len(frame.blockType.Results))
	if err != nil {
		return err
	}
	if !t.unreachable() {
		args := append(append([]clif.ValueID{}, resultVals...), t.currentLocals()...)
		t.b.Jump(frame.continuation, args)
	}
	t.b.SetCurrentBlock(frame.elseBlock)
	t.b.Seal(frame.elseBlock)
	copy(t.locals, frame.entryLocals)
	for _, p := range frame.savedParamVals {
		t.push(p)
	}
	frame.elseEntered = true
	t.unreachableDepth = 0
	return nil
}

// End implements `end` (§4.2): closes the current frame, switching insertion to
// its continuation and re-pushing the continuation's block parameters.
func (t *Translator) End() error {
	if len(t.frames) == 0 {
		return fmt.Errorf("wasmfrontend: end with no matching frame")
	}
	frame := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]

	if frame.kind == frameFunction {
		return t.endFunction(frame)
	}

	if frame.dead {
		t.unreachableDepth--
		return nil
	}

	resultVals, err := t.popN(len(frame.blockType.Results))
	if err != nil {
		return err
	}

	if frame.kind == frameIf && !frame.elseEntered {
		// No else was seen: the implicit else-branch forwards the if's params
		// straight through as results (valid only when Params == Results, which
		// Wasm validation guarantees for an else-less if).
		if !t.unreachable() {
			args := append(append([]clif.ValueID{}, resultVals...), t.currentLocals()...)
			t.b.Jump(frame.continuation, args)
		}
		t.b.SetCurrentBlock(frame.elseBlock)
		t.b.Seal(frame.elseBlock)
		elseArgs := append(append([]clif.ValueID{}, frame.savedParamVals...), frame.entryLocals...)
		t.b.Jump(frame.continuation, elseArgs)
	} else if !t.unreachable() {
		args := append(append([]clif.ValueID{}, resultVals...), t.currentLocals()...)
		t.b.Jump(frame.continuation, args)
	}

	t.b.SetCurrentBlock(frame.continuation)
	t.b.Seal(frame.continuation)
	contParams := t.b.Func().Block(frame.continuation).Params()
	nres := len(frame.blockType.Results)
	for i := 0; i < nres; i++ {
		t.push(contParams[i])
	}
	copy(t.locals, contParams[nres:])
	t.unreachableDepth = 0
	return nil
}

func (t *Translator) endFunction(frame controlFrame) error {
	if t.unreachable() {
		return nil
	}
	resultVals, err := t.popN(len(frame.blockType.Results))
	if err != nil {
		return err
	}
	t.b.Return(resultVals)
	t.unreachableDepth = 1
	return nil
}

// Br implements `br N` (§4.2): loop frames target the header, every other kind
// targets its continuation.
func (t *Translator) Br(depth uint32) error {
	frame, err := t.frameAt(depth)
	if err != nil {
		return err
	}
	target, arity := frame.continuation, len(frame.blockType.Results)
	if frame.kind == frameLoop {
		target, arity = frame.loopHeader, len(frame.blockType.Params)
	}
	vals, err := t.popN(arity)
	if err != nil {
		return err
	}
	if t.unreachable() {
		return nil
	}
	args := append(append([]clif.ValueID{}, vals...), t.currentLocals()...)
	t.b.Jump(target, args)
	t.unreachableDepth = 1
	return nil
}

// BrIf implements `br_if N` (§4.2): conditional branch with a synthetic
// fall-through block for the not-taken path. The branch-arity values are peeked,
// not popped, since the Wasm operand stack keeps them on the not-taken path.
func (t *Translator) BrIf(depth uint32) error {
	cond, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		return nil
	}
	frame, err := t.frameAt(depth)
	if err != nil {
		return err
	}
	target, arity := frame.continuation, len(frame.blockType.Results)
	if frame.kind == frameLoop {
		target, arity = frame.loopHeader, len(frame.blockType.Params)
	}
	if arity > len(t.stack) {
		return fmt.Errorf("wasmfrontend: stack underflow")
	}
	vals := append([]clif.ValueID{}, t.stack[len(t.stack)-arity:]...)
	args := append(append([]clif.ValueID{}, vals...), t.currentLocals()...)

	fallthroughBlk := t.b.CreateBlock()
	t.b.Brif(cond, target, args, fallthroughBlk, nil)
	t.b.SetCurrentBlock(fallthroughBlk)
	t.b.Seal(fallthroughBlk)
	return nil
}

// BrTable implements `br_table` (§4.2): an indirect branch through a jump-table
// structure. Every target in the table must accept the same arity, the deepest
// common arity among the targets (Wasm validation guarantees this).
func (t *Translator) BrTable(targets []uint32, defaultTarget uint32) error {
	index, err := t.pop()
	if err != nil {
		return err
	}
	if t.unreachable() {
		return nil
	}
	def, err := t.frameAt(defaultTarget)
	if err != nil {
		return err
	}
	arity := len(def.blockType.Results)
	if def.kind == frameLoop {
		arity = len(def.blockType.Params)
	}
	vals, err := t.popN(arity)
	if err != nil {
		return err
	}
	locals := t.currentLocals()
	args := append(append([]clif.ValueID{}, vals...), locals...)

	all := append(append([]uint32{}, targets...), defaultTarget)
	blkTargets := make([]clif.BlockID, len(all))
	for i, depth := range all {
		f, err := t.frameAt(depth)
		if err != nil {
			return err
		}
		tgt := f.continuation
		if f.kind == frameLoop {
			tgt = f.loopHeader
		}
		blkTargets[i] = tgt
	}
	// Every target receives the same args vector: a target whose own arity
	// differs from the default's would be a Wasm-validation failure, not
	// something this translator is asked to detect (§4.2).
	t.b.BrTable(index, blkTargets, args)
	t.unreachableDepth = 1
	return nil
}

// Return implements `return` (§4.2).
func (t *Translator) Return() error {
	fn, err := t.frameAt(uint32(len(t.frames) - 1))
	if err != nil {
		return err
	}
	vals, err := t.popN(len(fn.blockType.Results))
	if err != nil {
		return err
	}
	if t.unreachable() {
		return nil
	}
	t.b.Return(vals)
	t.unreachableDepth = 1
	return nil
}

// Call implements `call` (§4.2).
func (t *Translator) Call(ref clif.FuncRefID, sigID clif.SignatureID, numParams int, resultTypes []ValType) error {
	args, err := t.popN(numParams)
	if err != nil {
		return err
	}
	if t.unreachable() {
		for range resultTypes {
			t.push(clif.ValueInvalid)
		}
		return nil
	}
	v0, v1 := t.b.Call(ref, sigID, args, clifTypes(resultTypes))
	if len(resultTypes) > 0 {
		t.push(v0)
	}
	if len(resultTypes) > 1 {
		t.push(v1)
	}
	return nil
}

// CallIndirect implements `call_indirect` (§4.2).
func (t *Translator) CallIndirect(sigID clif.SignatureID, numParams int, resultTypes []ValType) error {
	callee, err := t.pop()
	if err != nil {
		return err
	}
	args, err := t.popN(numParams)
	if err != nil {
		return err
	}
	if t.unreachable() {
		for range resultTypes {
			t.push(clif.ValueInvalid)
		}
		return nil
	}
	v0, v1 := t.b.CallIndirect(callee, sigID, args, clifTypes(resultTypes))
	if len(resultTypes) > 0 {
		t.push(v0)
	}
	if len(resultTypes) > 1 {
		t.push(v1)
	}
	return nil
}

// Finish runs Builder.Finalize and returns its error, if any; it seals no blocks
// itself.
func (t *Translator) Finish() error {
	return t.b.Finalize()
}
