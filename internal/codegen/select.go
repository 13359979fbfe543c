package codegen

import (
	"context"

	"github.com/containerd/log"

	"github.com/you-not-fish/mjc/internal/molki"
	"github.com/you-not-fish/mjc/internal/rtabi"
	"github.com/you-not-fish/mjc/internal/ssa"
)

// selector lowers one SSA function into a molki function.
type selector struct {
	ctx  context.Context
	f    *ssa.Func
	out  *molki.Func
	regs *Registers
	rt   rtabi.Table

	blocks map[ssa.ID]*molki.Block
	exit   *molki.Block

	// dead lists the edges of constant branches that are never taken.
	dead []deadEdge
}

type deadEdge struct {
	from *ssa.Block
	succ int // index into from.Succs
}

// Select emits the instructions for every value and terminator of f into
// a new molki function. Phis become molki phis; their moves are placed by
// ResolvePhis. Every return block jumps to an empty exit block labelled
// after the last SSA block.
func Select(ctx context.Context, f *ssa.Func, regs *Registers, rt rtabi.Table) (*molki.Func, error) {
	numResults := 0
	if f.Result != ssa.ModeVoid {
		numResults = 1
	}
	s := &selector{
		ctx:    ctx,
		f:      f,
		out:    molki.NewFunc(f.Name, f.NumArgs, numResults),
		regs:   regs,
		rt:     rt,
		blocks: make(map[ssa.ID]*molki.Block, len(f.Blocks)),
	}

	for _, b := range f.Blocks {
		s.blocks[b.ID] = s.out.NewBlock(int(b.ID))
	}
	s.exit = s.out.NewBlock(int(f.MaxBlockID()) + 1)
	s.out.Exit = s.exit.ID

	for _, b := range f.Blocks {
		mb := s.blocks[b.ID]
		for _, p := range b.Preds {
			mb.AddPred(s.blocks[p.ID].ID)
		}
	}

	for _, b := range f.Blocks {
		if err := s.block(b); err != nil {
			return nil, err
		}
	}
	s.pruneDeadEdges()
	return s.out, nil
}

func (s *selector) block(b *ssa.Block) error {
	mb := s.blocks[b.ID]
	for _, v := range b.Values {
		if err := s.value(mb, v); err != nil {
			return err
		}
	}

	switch b.Kind {
	case ssa.BlockPlain:
		if len(b.Succs) != 1 {
			return invariant(s.f.Name, "%s: plain block has %d successors", b, len(b.Succs))
		}
		mb.SetJump(s.blocks[b.Succs[0].ID].ID)
	case ssa.BlockIf:
		return s.branch(b, mb)
	case ssa.BlockReturn:
		if ctl := b.Control(); ctl != nil && s.f.Result != ssa.ModeVoid {
			src, err := s.reg(ctl)
			if err != nil {
				return err
			}
			mb.Append(molki.Mov(src.Width, src, molki.RetReg{Width: src.Width}))
		}
		mb.SetJump(s.exit.ID)
		s.exit.AddPred(mb.ID)
	default:
		return unhandledOp(s.f.Name, "%s: block kind %s", b, b.Kind)
	}
	return nil
}

func (s *selector) value(mb *molki.Block, v *ssa.Value) error {
	switch v.Op {
	case ssa.OpConst, ssa.OpConstBool:
		dst, err := s.reg(v)
		if err != nil {
			return err
		}
		mb.Append(molki.Mov(dst.Width, molki.Imm(v.AuxInt), dst))

	case ssa.OpAdd:
		return s.binary(mb, "add", v, v.Args[0], v.Args[1])
	case ssa.OpMul:
		return s.binary(mb, "imul", v, v.Args[0], v.Args[1])
	case ssa.OpSub:
		// The target computes right OP left.
		return s.binary(mb, "sub", v, v.Args[1], v.Args[0])

	case ssa.OpDiv, ssa.OpMod:
		return s.divMod(mb, v)

	case ssa.OpMinus:
		ops, err := s.regs2(v, v.Args[0])
		if err != nil {
			return err
		}
		mb.Append(molki.Op3("neg", ops[0].Width, []molki.Operand{ops[1]}, ops[0]))

	case ssa.OpNot:
		ops, err := s.regs2(v, v.Args[0])
		if err != nil {
			return err
		}
		mb.Append(molki.Op3("xor", molki.W8, []molki.Operand{molki.Imm(1), ops[1]}, ops[0]))

	case ssa.OpLoad:
		dst, err := s.reg(v)
		if err != nil {
			return err
		}
		mem, err := s.mem(v)
		if err != nil {
			return err
		}
		mb.Append(molki.Mov(dst.Width, mem, dst))

	case ssa.OpStore:
		src, err := s.reg(v.Args[1])
		if err != nil {
			return err
		}
		mem, err := s.mem(v)
		if err != nil {
			return err
		}
		mb.Append(molki.Mov(src.Width, src, mem))

	case ssa.OpCall:
		return s.call(mb, v)

	case ssa.OpPhi:
		if v.Mode == ssa.ModeVoid {
			return nil
		}
		return s.phi(mb, v)

	case ssa.OpCmp:
		// Emitted with the branch it controls.
	case ssa.OpParam, ssa.OpThis, ssa.OpInitMem, ssa.OpAddress:
		// No code: arguments are preassigned and memory is implicit.
	default:
		return unhandledOp(s.f.Name, "instruction selection: %s (%s)", v, v.Op)
	}
	return nil
}

// binary emits "op [ a | b ] -> v".
func (s *selector) binary(mb *molki.Block, op string, v, a, b *ssa.Value) error {
	ops, err := s.regs2(v, a, b)
	if err != nil {
		return err
	}
	mb.Append(molki.Op3(op, ops[0].Width, []molki.Operand{ops[1], ops[2]}, ops[0]))
	return nil
}

// divMod emits one idiv producing quotient and remainder. The value's
// register N holds its own result and N+1 the other one.
//
// TODO: emit the sign extension of the dividend into the high half
// (cltd) once molki has a form for it; idivl reads edx:eax.
func (s *selector) divMod(mb *molki.Block, v *ssa.Value) error {
	ops, err := s.regs2(v, v.Args[0], v.Args[1])
	if err != nil {
		return err
	}
	primary := ops[0]
	companion := molki.RegOp{Reg: primary.Reg + 1, Width: primary.Width}
	quot, rem := primary, companion
	if v.Op == ssa.OpMod {
		quot, rem = companion, primary
	}
	mb.Append(molki.Op3("idiv", primary.Width, []molki.Operand{ops[1], ops[2]}, quot, rem))
	return nil
}

func (s *selector) call(mb *molki.Block, v *ssa.Value) error {
	callee, args := v.Callee()
	if callee == nil || callee.Op != ssa.OpAddress {
		return invariant(s.f.Name, "%s: call without a callee address", v)
	}
	name := callee.Symbol()
	if sig, ok := s.rt.Lookup(name); ok {
		if len(args) != sig.NumParams {
			return invariant(s.f.Name, "%s: runtime function %s takes %d arguments, got %d",
				v, name, sig.NumParams, len(args))
		}
		name = sig.Symbol
	}

	ops := make([]molki.Operand, len(args))
	for i, a := range args {
		op, err := s.reg(a)
		if err != nil {
			return err
		}
		ops[i] = op
	}

	var result molki.Operand
	if w, ok := callResult(v, s.rt); ok {
		r, ok := s.regs.Reg(v)
		if !ok {
			return invariant(s.f.Name, "%s: call result has no register", v)
		}
		result = molki.RegOp{Reg: r, Width: w}
	}
	mb.Append(molki.Call(name, ops, result))
	return nil
}

func (s *selector) phi(mb *molki.Block, v *ssa.Value) error {
	dst, err := s.reg(v)
	if err != nil {
		return err
	}
	preds := v.Block.Preds
	if len(v.Args) != len(preds) {
		return invariant(s.f.Name, "%s: phi has %d arguments for %d predecessors", v, len(v.Args), len(preds))
	}
	phi := &molki.Phi{Target: dst, Mappings: make([]molki.Mapping, len(v.Args))}
	for i, a := range v.Args {
		src, err := s.reg(a)
		if err != nil {
			return err
		}
		phi.Mappings[i] = molki.Mapping{Pred: s.blocks[preds[i].ID].ID, Src: src.Reg, Width: dst.Width}
	}
	mb.AddPhi(phi)
	return nil
}

// branch lowers a BlockIf. The conditional jump goes to the successor
// with the smaller label (the first edge on a tie) and the relation is
// negated when that successor is the false one.
func (s *selector) branch(b *ssa.Block, mb *molki.Block) error {
	if len(b.Succs) != 2 || len(b.Projs) != 2 {
		return invariant(s.f.Name, "%s: branch has %d successors", b, len(b.Succs))
	}
	ctl := b.Control()
	if ctl == nil {
		return invariant(s.f.Name, "%s: branch without condition", b)
	}

	var cond molki.Cond
	switch ctl.Op {
	case ssa.OpConstBool:
		taken := ssa.ProjFalse
		if ctl.AuxInt != 0 {
			taken = ssa.ProjTrue
		}
		for i, p := range b.Projs {
			if p == taken {
				mb.SetJump(s.blocks[b.Succs[i].ID].ID)
			} else {
				s.dead = append(s.dead, deadEdge{from: b, succ: i})
			}
		}
		return nil
	case ssa.OpCmp:
		left, err := s.reg(ctl.Args[0])
		if err != nil {
			return err
		}
		right, err := s.reg(ctl.Args[1])
		if err != nil {
			return err
		}
		c, ok := condOf(ctl.Relation())
		if !ok {
			return unhandledOp(s.f.Name, "%s: relation %s", ctl, ctl.Relation())
		}
		mb.AppendEnding(molki.Cmp(left.Width, right, left))
		cond = c
	default:
		x, err := s.reg(ctl)
		if err != nil {
			return err
		}
		mb.AppendEnding(molki.Cmp(x.Width, molki.Imm(0), x))
		cond = molki.CondNotEqual
	}

	first, second := 0, 1
	if b.Succs[1].ID < b.Succs[0].ID {
		first, second = 1, 0
	}
	if b.Projs[first] == ssa.ProjFalse {
		cond = cond.Negate()
	}
	mb.SetCondJump(cond, s.blocks[b.Succs[first].ID].ID)
	mb.SetJump(s.blocks[b.Succs[second].ID].ID)
	return nil
}

// pruneDeadEdges drops the never-taken edges of constant branches from
// their targets' predecessor lists, together with the phi mappings that
// belong to them.
func (s *selector) pruneDeadEdges() {
	for _, e := range s.dead {
		to := e.from.Succs[e.succ]
		// The k-th edge from e.from to the target is its k-th predecessor
		// entry for e.from.
		k := 0
		for i := 0; i < e.succ; i++ {
			if e.from.Succs[i] == to {
				k++
			}
		}
		mb := s.blocks[to.ID]
		from := s.blocks[e.from.ID].ID
		for i, p := range mb.Preds {
			if p != from {
				continue
			}
			if k > 0 {
				k--
				continue
			}
			mb.RemovePred(i)
			log.G(s.ctx).WithField("func", s.f.Name).Debugf("pruned dead edge %s -> %s", e.from, to)
			break
		}
	}
}

func (s *selector) reg(v *ssa.Value) (molki.RegOp, error) {
	r, ok := s.regs.Reg(v)
	if !ok {
		return molki.RegOp{}, invariant(s.f.Name, "%s (%s) used as an operand but has no register", v, v.Op)
	}
	return molki.RegOp{Reg: r, Width: widthOf(v.Mode)}, nil
}

// regs2 returns the registers of v followed by those of args.
func (s *selector) regs2(v *ssa.Value, args ...*ssa.Value) ([]molki.RegOp, error) {
	ops := make([]molki.RegOp, 0, 1+len(args))
	for _, x := range append([]*ssa.Value{v}, args...) {
		r, err := s.reg(x)
		if err != nil {
			return nil, err
		}
		ops = append(ops, r)
	}
	return ops, nil
}

// mem builds the memory operand of a Load or Store.
func (s *selector) mem(v *ssa.Value) (molki.Mem, error) {
	a := v.Addressing()
	args := v.AddrArgs()
	if len(args) != a.Kind.NumOperands() {
		return molki.Mem{}, invariant(s.f.Name, "%s: %s addressing with %d operands", v, a, len(args))
	}
	base, err := s.reg(args[0])
	if err != nil {
		return molki.Mem{}, err
	}
	switch a.Kind {
	case ssa.AddrDirect:
		return molki.Mem{Kind: molki.MemDirect, Base: base.Reg}, nil
	case ssa.AddrField:
		return molki.Mem{Kind: molki.MemOffset, Base: base.Reg, Offset: a.Offset}, nil
	case ssa.AddrIndexed:
		index, err := s.reg(args[1])
		if err != nil {
			return molki.Mem{}, err
		}
		return molki.Mem{Kind: molki.MemIndexed, Base: base.Reg, Index: index.Reg, Scale: a.Scale}, nil
	}
	return molki.Mem{}, unhandledOp(s.f.Name, "%s: addressing kind %s", v, a.Kind)
}

// condOf maps a relation to the jump taken when it holds.
func condOf(r ssa.Relation) (molki.Cond, bool) {
	switch r {
	case ssa.RelLess:
		return molki.CondLess, true
	case ssa.RelLessEqual:
		return molki.CondLessEqual, true
	case ssa.RelGreater:
		return molki.CondGreater, true
	case ssa.RelGreaterEqual:
		return molki.CondGreaterEqual, true
	case ssa.RelEqual:
		return molki.CondEqual, true
	case ssa.RelNotEqual:
		return molki.CondNotEqual, true
	}
	return 0, false
}
