package lowerssa

// Decompose rewrites every string-typed Value into a string_make(ptr, len)
// composition and its consumers into string_ptr/string_len extractors (§4.3.1).
// It iterates to a fixed point (capped, per spec, at ten rounds) because rewriting a
// store can expose new string-typed loads fed by that store's address.
//
// Rewrites applied per pass:
//   - Load<string> ptr            -> StringMake(Load<i64> ptr, Load<i64> ptr+8)
//   - Store dst StringMake(p,l)   -> Store dst p; Store dst+8 l
//   - ConstString s               -> StringMake(ConstAddr @s, ConstInt len(s))
//   - Arg<string> at index i      -> StringMake(Arg<u64> i, Arg<i64> i+1)
//
// Each round allocates a fresh GroupID (Func.NewGroup) and stamps every value it
// creates with it, and tracks which blocks a rewrite actually touched. The next
// round only revisits those blocks instead of rescanning the whole function, per
// §9's supplemented "InstructionGroupID-style barrier tracking" — a round that
// touches nothing is then cheap to detect (its dirty set is empty) without a second
// full-function diff.
func Decompose(f *Func) {
	const maxIterations = 10
	dirty := make(map[*Block]bool, len(f.Blocks))
	for _, blk := range f.Blocks {
		dirty[blk] = true
	}
	for iter := 0; iter < maxIterations && len(dirty) > 0; iter++ {
		group := f.NewGroup()
		next := make(map[*Block]bool)
		for _, blk := range f.Blocks {
			if dirty[blk] {
				decomposeBlock(f, blk, group, next)
			}
		}
		dirty = next
	}
}

func decomposeBlock(f *Func, blk *Block, group GroupID, dirty map[*Block]bool) {
	// Snapshot since we mutate blk.Values while iterating.
	values := append([]*Value(nil), blk.Values...)
	for _, v := range values {
		switch v.Op {
		case OpLoad:
			if !f.Types.IsString(v.Type) {
				continue
			}
			ptrTy, lenTy := f.Types.PrimitiveHalves(v.Type)
			ptr := v.Args[0]
			ptrLoad := f.NewValue(blk, OpLoad, ptrTy, ptr)
			ptrLoad.Aux = v.Aux
			ptrLoad.Group = group
			lenOffsetArg := f.NewValue(blk, OpConstInt, lenTy)
			lenOffsetArg.Aux = 8
			lenOffsetArg.Group = group
			lenPtr := f.NewValue(blk, OpAdd, ptrTy, ptr, lenOffsetArg)
			lenPtr.Group = group
			lenLoad := f.NewValue(blk, OpLoad, lenTy, lenPtr)
			lenLoad.Aux = v.Aux + 8
			lenLoad.Group = group
			mk := f.NewValue(blk, OpStringMake, v.Type, ptrLoad, lenLoad)
			mk.Group = group
			replaceAllUses(f, blk, v, mk, dirty)
			dirty[blk] = true

		case OpStore:
			val := v.Args[0]
			if val.Op != OpStringMake {
				continue
			}
			dst := v.Args[1]
			p, l := val.Args[0], val.Args[1]
			storeP := f.NewValue(blk, OpStore, TypeID(0), p, dst)
			storeP.Aux = v.Aux
			storeP.Group = group
			lenOffsetArg := f.NewValue(blk, OpConstInt, p.Type)
			lenOffsetArg.Aux = 8
			lenOffsetArg.Group = group
			lenDst := f.NewValue(blk, OpAdd, dst.Type, dst, lenOffsetArg)
			lenDst.Group = group
			storeL := f.NewValue(blk, OpStore, TypeID(0), l, lenDst)
			storeL.Aux = v.Aux + 8
			storeL.Group = group
			removeValue(blk, v)
			dirty[blk] = true

		case OpConstString:
			ptrTy, lenTy := f.Types.PrimitiveHalves(v.Type)
			addr := f.NewValue(blk, OpConstAddr, ptrTy)
			addr.AuxTag = v.AuxTag
			addr.Group = group
			ln := f.NewValue(blk, OpConstInt, lenTy)
			ln.Group = group
			if s, ok := v.AuxTag.(string); ok {
				ln.Aux = int64(len(s))
			}
			mk := f.NewValue(blk, OpStringMake, v.Type, addr, ln)
			mk.Group = group
			replaceAllUses(f, blk, v, mk, dirty)
			dirty[blk] = true

		case OpArg:
			if !f.Types.IsString(v.Type) {
				continue
			}
			ptrTy, lenTy := f.Types.PrimitiveHalves(v.Type)
			ptrArg := f.NewValue(blk, OpArg, ptrTy)
			ptrArg.Aux = v.Aux
			ptrArg.Group = group
			lenArg := f.NewValue(blk, OpArg, lenTy)
			lenArg.Aux = v.Aux + 1
			lenArg.Group = group
			mk := f.NewValue(blk, OpStringMake, v.Type, ptrArg, lenArg)
			mk.Group = group
			replaceAllUses(f, blk, v, mk, dirty)
			dirty[blk] = true
		}
	}
}

// replaceAllUses rewrites every use of old (across the whole function) to use
// replacement instead, then removes old from its block. string_ptr/string_len
// extractors applied to `replacement` (itself a string_make) are folded away
// immediately, since that peephole is trivial and keeps the fixed point small. Every
// block whose value args actually changed is marked in `dirty`, so the next
// Decompose round knows to revisit it (§4.3.1's barrier-tracked fixed point).
func replaceAllUses(f *Func, blk *Block, old, replacement *Value, dirty map[*Block]bool) {
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			for i, a := range v.Args {
				if a == old {
					v.Args[i] = replacement
					old.UseCount--
					replacement.UseCount++
					dirty[b] = true
				}
			}
		}
	}
	foldStringExtractors(f, replacement, dirty)
	removeValue(blk, old)
}

// foldStringExtractors replaces string_ptr(string_make(p,l)) with p and
// string_len(string_make(p,l)) with l wherever mk is used as such, per §4.3.1's
// closing invariant ("no string value remains outside a string_make composition or
// its immediate extractors" once such peepholes run).
func foldStringExtractors(f *Func, mk *Value, dirty map[*Block]bool) {
	if mk.Op != OpStringMake {
		return
	}
	for _, b := range f.Blocks {
		for _, v := range append([]*Value(nil), b.Values...) {
			if len(v.Args) == 0 || v.Args[0] != mk {
				continue
			}
			switch v.Op {
			case OpStringPtr:
				replaceAllUses(f, b, v, mk.Args[0], dirty)
			case OpStringLen:
				replaceAllUses(f, b, v, mk.Args[1], dirty)
			}
		}
	}
}

func removeValue(blk *Block, v *Value) {
	for i, x := range blk.Values {
		if x == v {
			blk.Values = append(blk.Values[:i], blk.Values[i+1:]...)
			return
		}
	}
}
