package lowerssa

// MaxSSAValueBytes is the ceiling placed on every SSA value's type after call
// expansion (§3.2 invariant, §4.3.2): larger aggregates are passed and returned by
// address instead of by value.
const MaxSSAValueBytes = 32

// CallSite describes a static_call/closure_call Value's ABI-relevant shape, supplied
// by the front end's call-lowering step so ExpandCalls knows which arguments/returns
// are oversized without re-deriving full type information.
type CallSite struct {
	Call         *Value
	ArgTypes     []TypeID
	ResultTypes  []TypeID
	HiddenReturn bool // set by this pass if it allocates a hidden return-pointer slot
}

// ExpandCalls ensures no SSA value exceeds MaxSSAValueBytes, per §4.3.2's five-step
// algorithm. It mutates f in place and returns nothing; a call site given a hidden
// return-pointer slot is reported through its entry in sites (HiddenReturn).
//
// Unlike Decompose, this pass runs once per call site rather than to a fixed point:
// §4.3.2's steps are ordered so that each one only ever consumes values the prior
// steps (or the front end) already produced, never a value expandCallArguments or
// expandCallResult itself creates. Every value it does create is still stamped with
// one fresh GroupID (Func.NewGroup) shared by the whole pass, so a later consumer can
// tell call-expansion's own stack-buffer/bulk-move/hidden-return-pointer output apart
// from decomposition's or the front end's, the same barrier-tagging idea §4.3.1 uses
// across its fixed-point rounds (§9's supplemented "InstructionGroupID-style barrier
// tracking").
func ExpandCalls(f *Func, sites []CallSite) {
	group := f.NewGroup()
	rewriteOversizedArgs(f)
	rewriteWideSelectStores(f)
	for i := range sites {
		expandCallArguments(f, &sites[i], group)
		expandCallResult(f, &sites[i], group)
	}
}

// rewriteOversizedArgs implements step 2: every Arg whose type is >8 bytes is
// reinterpreted as a u64 address into caller-supplied memory, since by this point
// decomposition has already reduced 16-byte strings to two 8-byte halves — only
// larger, front-end-level aggregates (structs/arrays) remain oversized.
func rewriteOversizedArgs(f *Func) {
	for _, blk := range f.Blocks {
		for _, v := range blk.Values {
			if v.Op != OpArg {
				continue
			}
			if f.Types.Size(v.Type) > 8 {
				v.AuxTag = "byref"
			}
		}
	}
}

// rewriteWideSelectStores implements step 3: a Store of a wide aggregate value
// (identified by AuxTag=="wide", set by the front end's SelectN lowering) becomes a
// bulk Move carrying the byte count in Aux instead of a scalar Store.
func rewriteWideSelectStores(f *Func) {
	for _, blk := range f.Blocks {
		for _, v := range blk.Values {
			if v.Op != OpStore {
				continue
			}
			val := v.Args[0]
			if tag, ok := val.AuxTag.(string); !ok || tag != "wide" {
				continue
			}
			v.Op = OpMove
			v.Aux = f.Types.Size(val.Type)
		}
	}
}

// expandCallArguments implements step 4: for each oversized argument, allocate a
// stack buffer in the caller frame, bulk-copy the argument value into it, and pass
// the buffer's address instead of the value.
func expandCallArguments(f *Func, site *CallSite, group GroupID) {
	call := site.Call
	blk := call.Block()
	for i, argTy := range site.ArgTypes {
		if i >= len(call.Args) {
			break
		}
		size := f.Types.Size(argTy)
		if size <= MaxSSAValueBytes {
			continue
		}
		arg := call.Args[i]
		addrTy := arg.Type
		buf := f.NewValue(blk, OpStackAddr, addrTy)
		buf.Aux = size
		buf.Group = group
		InsertValueBefore(blk, call, buf)
		mv := f.NewValue(blk, OpMove, TypeID(0), arg, buf)
		mv.Aux = size
		mv.Group = group
		InsertValueBefore(blk, call, mv)
		call.Args[i] = buf
		arg.UseCount--
		buf.UseCount++
	}
}

// expandCallResult implements step 5: if the call returns an oversized value, a
// hidden return-pointer stack slot is allocated in the caller and the exit site is
// expected (by the front end's lowering of the callee) to write through it instead of
// returning by value.
func expandCallResult(f *Func, site *CallSite, group GroupID) {
	if len(site.ResultTypes) == 0 {
		return
	}
	resTy := site.ResultTypes[0]
	if f.Types.Size(resTy) <= MaxSSAValueBytes {
		return
	}
	call := site.Call
	blk := call.Block()
	hiddenRet := f.NewValue(blk, OpStackAddr, resTy)
	hiddenRet.Aux = f.Types.Size(resTy)
	hiddenRet.Group = group
	InsertValueBefore(blk, call, hiddenRet)
	call.Args = append([]*Value{hiddenRet}, call.Args...)
	hiddenRet.UseCount++
	site.HiddenReturn = true
}
