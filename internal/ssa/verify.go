package ssa

import (
	"fmt"
	"strings"
)

// Verify checks the structural integrity of an SSA function.
// It returns an error describing all violations found, or nil if valid.
func Verify(f *Func) error {
	var errs []string

	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if f.Entry == nil {
		add("func %s: entry block is nil", f.Name)
		return combineErrors(errs)
	}

	if len(f.Blocks) == 0 {
		add("func %s: no blocks", f.Name)
		return combineErrors(errs)
	}

	if f.Blocks[0] != f.Entry {
		add("func %s: Blocks[0] is not the entry block", f.Name)
	}

	// 1. Entry block has no predecessors
	if len(f.Entry.Preds) != 0 {
		add("func %s: entry block %s has %d predecessors, want 0",
			f.Name, f.Entry, len(f.Entry.Preds))
	}

	// Build a set of all blocks for membership checks.
	blockSet := make(map[*Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		blockSet[b] = true
	}

	// Build a set of all values for reference checks.
	valueSet := make(map[*Value]bool)

	for _, b := range f.Blocks {
		// 2. Every block has a valid Kind
		if b.Kind == BlockInvalid {
			add("func %s, %s: block has invalid kind", f.Name, b)
		}

		// 3. Block's Func pointer matches
		if b.Func != f {
			add("func %s, %s: block Func pointer mismatch", f.Name, b)
		}

		for _, v := range b.Values {
			valueSet[v] = true

			// 4. Every Value's Block pointer matches its containing block
			if v.Block != b {
				add("func %s, %s, %s: value Block pointer is %s, want %s",
					f.Name, b, v, v.Block, b)
			}

			// 5. Args are non-nil
			nilArg := false
			for i, arg := range v.Args {
				if arg == nil {
					add("func %s, %s, %s: arg[%d] is nil", f.Name, b, v, i)
					nilArg = true
				}
			}
			if nilArg {
				continue
			}

			// 6. Per-op shape
			verifyValue(f, v, add)

			// 7. Phi args count == Preds count
			if v.Op == OpPhi {
				if len(v.Args) != len(b.Preds) {
					add("func %s, %s, %s: phi has %d args but block has %d preds",
						f.Name, b, v, len(v.Args), len(b.Preds))
				}
			}

			// 8. Compares only feed the branch of their own block
			for i, arg := range v.Args {
				if arg.Op == OpCmp {
					add("func %s, %s, %s: arg[%d] %s is a compare; compares may only control a branch",
						f.Name, b, v, i, arg)
				}
			}
		}

		// 9. Terminator checks based on Kind
		switch b.Kind {
		case BlockPlain:
			if len(b.Succs) != 1 {
				add("func %s, %s: plain block has %d succs, want 1",
					f.Name, b, len(b.Succs))
			}
		case BlockIf:
			if len(b.Controls) != 1 || b.Controls[0] == nil {
				add("func %s, %s: if block has %d controls, want 1",
					f.Name, b, len(b.Controls))
			} else if c := b.Controls[0]; c.Op == OpCmp && c.Block != b {
				add("func %s, %s: compare %s controls a branch outside its block %s",
					f.Name, b, c, c.Block)
			} else if c.Op != OpCmp && c.Mode != ModeBool {
				add("func %s, %s: branch condition %s has mode %s, want bool",
					f.Name, b, c, c.Mode)
			}
			if len(b.Succs) != 2 {
				add("func %s, %s: if block has %d succs, want 2",
					f.Name, b, len(b.Succs))
			} else if b.Succ(ProjTrue) == nil || b.Succ(ProjFalse) == nil {
				add("func %s, %s: if block needs one true and one false successor, got projs %v",
					f.Name, b, b.Projs)
			}
		case BlockReturn:
			if len(b.Succs) != 0 {
				add("func %s, %s: return block has %d succs, want 0",
					f.Name, b, len(b.Succs))
			}
			ctl := b.Control()
			if f.Result == ModeVoid && ctl != nil {
				add("func %s, %s: void function returns %s", f.Name, b, ctl)
			}
			if f.Result != ModeVoid && ctl == nil {
				add("func %s, %s: function with result %s returns nothing", f.Name, b, f.Result)
			}
			if ctl != nil && ctl.Op == OpCmp {
				add("func %s, %s: returns compare %s", f.Name, b, ctl)
			}
		}

		if len(b.Projs) != len(b.Succs) {
			add("func %s, %s: %d projs for %d succs", f.Name, b, len(b.Projs), len(b.Succs))
		}

		// 10. Succs/Preds edge consistency. An edge taken n times must
		// be listed n times as a predecessor: phi arguments go by index.
		for i, succ := range b.Succs {
			if !blockSet[succ] {
				add("func %s, %s: successor %s not in function", f.Name, b, succ)
				continue
			}
			if indexOfBlock(b.Succs, succ) != i {
				continue
			}
			n, listed := countBlock(b.Succs, succ), countBlock(succ.Preds, b)
			switch {
			case listed == 0:
				add("func %s, %s: successor %s does not have %s as predecessor",
					f.Name, b, succ, b)
			case listed != n:
				add("func %s, %s: jumps to %s %d times but is listed %d times as its predecessor",
					f.Name, b, succ, n, listed)
			}
		}
		for _, pred := range b.Preds {
			if !blockSet[pred] {
				add("func %s, %s: predecessor %s not in function", f.Name, b, pred)
				continue
			}
			if !containsBlock(pred.Succs, b) {
				add("func %s, %s: predecessor %s does not have %s as successor",
					f.Name, b, pred, b)
			}
		}
	}

	// 11. Verify all value args are in the function
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			for i, arg := range v.Args {
				if arg != nil && !valueSet[arg] {
					add("func %s, %s, %s: arg[%d] (%s) not found in function",
						f.Name, b, v, i, arg)
				}
			}
		}
		for i, c := range b.Controls {
			if c != nil && !valueSet[c] {
				add("func %s, %s: control[%d] (%s) not found in function",
					f.Name, b, i, c)
			}
		}
	}

	return combineErrors(errs)
}

// verifyValue checks the operand shape of a single value.
func verifyValue(f *Func, v *Value, add func(format string, args ...interface{})) {
	want := -1
	switch v.Op {
	case OpConst, OpConstBool, OpParam, OpThis, OpInitMem, OpAddress:
		want = 0
	case OpMinus, OpNot:
		want = 1
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpCmp:
		want = 2
	case OpLoad:
		want = 1 + v.Addressing().Kind.NumOperands()
	case OpStore:
		want = 2 + v.Addressing().Kind.NumOperands()
	case OpCall:
		if len(v.Args) < 2 || v.Args[1].Op != OpAddress {
			add("func %s, %s, %s: call needs mem and callee address operands", f.Name, v.Block, v)
		}
		if v.AuxInt != 0 && v.AuxInt != 1 {
			add("func %s, %s, %s: call has %d results, want 0 or 1", f.Name, v.Block, v, v.AuxInt)
		}
	case OpPhi:
	default:
		add("func %s, %s, %s: unknown op %s", f.Name, v.Block, v, v.Op)
		return
	}
	if want >= 0 && len(v.Args) != want {
		add("func %s, %s, %s (%s): has %d args, want %d",
			f.Name, v.Block, v, v.Op, len(v.Args), want)
		return
	}

	if v.Op.Info().IsMem && len(v.Args) > 0 && !IsMemory(v.Args[0]) {
		add("func %s, %s, %s (%s): arg[0] %s is not a memory value",
			f.Name, v.Block, v, v.Op, v.Args[0])
	}

	// Non-void values must have a mode.
	if v.NumResults() > 0 && v.Mode == ModeVoid {
		add("func %s, %s, %s (%s): value with a result has void mode",
			f.Name, v.Block, v, v.Op)
	}

	switch v.Op {
	case OpCmp:
		if v.Relation() == RelInvalid {
			add("func %s, %s, %s: compare has no relation", f.Name, v.Block, v)
		}
	case OpParam:
		if v.AuxInt < 0 || v.AuxInt >= int64(f.NumArgs) {
			add("func %s, %s, %s: param position %d out of range [0, %d)",
				f.Name, v.Block, v, v.AuxInt, f.NumArgs)
		}
	case OpThis:
		if f.NumArgs < 1 {
			add("func %s, %s, %s: this in a function without arguments", f.Name, v.Block, v)
		}
	case OpAddress:
		if v.Symbol() == "" {
			add("func %s, %s, %s: address without symbol", f.Name, v.Block, v)
		}
	}
}

// IsMemory reports whether v yields a memory state.
func IsMemory(v *Value) bool {
	switch v.Op {
	case OpInitMem, OpStore, OpLoad, OpCall:
		return true
	case OpPhi:
		return v.Mode == ModeVoid
	}
	return false
}

// countBlock returns how often b occurs in bs.
func countBlock(bs []*Block, b *Block) int {
	n := 0
	for _, x := range bs {
		if x == b {
			n++
		}
	}
	return n
}

func indexOfBlock(bs []*Block, b *Block) int {
	for i, x := range bs {
		if x == b {
			return i
		}
	}
	return -1
}

// containsBlock checks whether bs contains b.
func containsBlock(bs []*Block, b *Block) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}

// VerifyDom checks dominance properties of an SSA function.
// ComputeDom must have been called before this.
// It calls Verify first, then checks dominance invariants.
func VerifyDom(f *Func) error {
	if err := Verify(f); err != nil {
		return err
	}

	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	// Build reachability set.
	reachable := make(map[*Block]bool)
	var walk func(b *Block)
	walk = func(b *Block) {
		if reachable[b] {
			return
		}
		reachable[b] = true
		for _, s := range b.Succs {
			walk(s)
		}
	}
	walk(f.Entry)

	// 1. Entry Idom must be nil.
	if f.Entry.Idom != nil {
		add("func %s: entry %s has non-nil Idom %s", f.Name, f.Entry, f.Entry.Idom)
	}

	// 2. All reachable non-entry blocks must have non-nil Idom != self.
	for _, b := range f.Blocks {
		if !reachable[b] || b == f.Entry {
			continue
		}
		if b.Idom == nil {
			add("func %s, %s: reachable block has nil Idom", f.Name, b)
		} else if b.Idom == b {
			add("func %s, %s: block is its own Idom", f.Name, b)
		}
	}

	// Build value-to-index maps for same-block ordering checks.
	valIdx := make(map[*Value]int)
	for _, b := range f.Blocks {
		for i, v := range b.Values {
			valIdx[v] = i
		}
	}

	// 3. For non-phi values: each arg's block must dominate the use block
	// (or if same block, arg must appear before use).
	for _, b := range f.Blocks {
		if !reachable[b] {
			continue
		}
		for _, v := range b.Values {
			if v.Op == OpPhi {
				continue
			}
			for i, arg := range v.Args {
				defBlock := arg.Block
				if defBlock == b {
					if valIdx[arg] >= valIdx[v] {
						add("func %s, %s, %s: arg[%d] %s defined at index %d, used at index %d (same block)",
							f.Name, b, v, i, arg, valIdx[arg], valIdx[v])
					}
				} else if !defBlock.Dominates(b) {
					add("func %s, %s, %s: arg[%d] %s defined in %s which does not dominate %s",
						f.Name, b, v, i, arg, defBlock, b)
				}
			}
		}
	}

	// 4. For phi values: each arg[i]'s block must dominate Preds[i].
	for _, b := range f.Blocks {
		if !reachable[b] {
			continue
		}
		for _, v := range b.Values {
			if v.Op != OpPhi {
				continue
			}
			for i, arg := range v.Args {
				if i >= len(b.Preds) {
					continue
				}
				pred := b.Preds[i]
				if !arg.Block.Dominates(pred) {
					add("func %s, %s, %s: phi arg[%d] %s defined in %s which does not dominate pred %s",
						f.Name, b, v, i, arg, arg.Block, pred)
				}
			}
		}
	}

	// 5. Control values must dominate their block.
	for _, b := range f.Blocks {
		if !reachable[b] {
			continue
		}
		for i, c := range b.Controls {
			if c == nil {
				continue
			}
			if c.Block != b && !c.Block.Dominates(b) {
				add("func %s, %s: control[%d] %s defined in %s which does not dominate %s",
					f.Name, b, i, c, c.Block, b)
			}
		}
	}

	return combineErrors(errs)
}

// combineErrors creates an error from a list of error strings, or returns nil.
func combineErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("SSA verification failed:\n  %s", strings.Join(errs, "\n  "))
}
