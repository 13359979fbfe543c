package codegen

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/containerd/errdefs"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/you-not-fish/mjc/internal/molki"
	"github.com/you-not-fish/mjc/internal/rtabi"
	"github.com/you-not-fish/mjc/internal/ssa"
)

func param(f *ssa.Func, b *ssa.Block, pos int64, m ssa.Mode) *ssa.Value {
	v := f.NewValue(b, ssa.OpParam, m)
	v.AuxInt = pos
	return v
}

func konst(f *ssa.Func, b *ssa.Block, c int64) *ssa.Value {
	v := f.NewValue(b, ssa.OpConst, ssa.ModeInt)
	v.AuxInt = c
	return v
}

func addr(f *ssa.Func, b *ssa.Block, sym string) *ssa.Value {
	v := f.NewValue(b, ssa.OpAddress, ssa.ModeVoid)
	v.Aux = sym
	return v
}

func compile(t *testing.T, f *ssa.Func, cfg Config) string {
	t.Helper()
	cfg.Verify = true
	out, err := CompileFunc(context.Background(), f, cfg)
	assert.NilError(t, err)
	var buf bytes.Buffer
	assert.NilError(t, molki.Fprint(&buf, out))
	return buf.String()
}

func TestRegisterAllocator(t *testing.T) {
	ra := NewRegisterAllocator(3)
	assert.Equal(t, ra.NextValueRegister(), molki.Reg(3))
	assert.Equal(t, ra.NextValueRegister(), molki.Reg(4))
	assert.Equal(t, ra.NextPhiTemporary(), molki.Reg(-1))
	assert.Equal(t, ra.NextPhiTemporary(), molki.Reg(-2))
	assert.Equal(t, ra.Count(), 5)
	assert.Equal(t, ra.NumTemps(), 2)

	ra.Reset(1)
	assert.Equal(t, ra.NextValueRegister(), molki.Reg(1))
	assert.Equal(t, ra.NextPhiTemporary(), molki.Reg(-1))
	assert.Equal(t, ra.Count(), 2)
}

func TestAssignRegistersDivModPairing(t *testing.T) {
	f := ssa.NewFunc("Main.divmod", 3, ssa.ModeInt)
	b := f.Entry
	b.Kind = ssa.BlockReturn
	x := param(f, b, 1, ssa.ModeInt)
	y := param(f, b, 2, ssa.ModeInt)
	div := f.NewValue(b, ssa.OpDiv, ssa.ModeInt, x, y)
	mod := f.NewValue(b, ssa.OpMod, ssa.ModeInt, div, y)
	sum := f.NewValue(b, ssa.OpAdd, ssa.ModeInt, div, mod)
	b.SetControl(sum)

	regs, err := AssignRegisters(f, NewRegisterAllocator(f.NumArgs), nil)
	assert.NilError(t, err)

	get := func(v *ssa.Value) molki.Reg {
		r, ok := regs.Reg(v)
		assert.Assert(t, ok, "%s has no register", v)
		return r
	}
	assert.Equal(t, get(x), molki.Reg(1))
	assert.Equal(t, get(y), molki.Reg(2))
	assert.Equal(t, get(div), molki.Reg(3))
	assert.Equal(t, get(mod), molki.Reg(5))
	assert.Equal(t, get(sum), molki.Reg(7))

	out := compile(t, f, Config{})
	assert.Assert(t, is.Contains(out, "idivl [ %@1l | %@2l ] -> [ %@3l | %@4l ]"))
	assert.Assert(t, is.Contains(out, "idivl [ %@3l | %@2l ] -> [ %@6l | %@5l ]"))
	assert.Assert(t, is.Contains(out, "addl [ %@3l | %@5l ] -> %@7l"))
}

func TestAssignRegistersUnhandledOp(t *testing.T) {
	f := ssa.NewFunc("Main.bad", 1, ssa.ModeVoid)
	f.Entry.Kind = ssa.BlockReturn
	v := f.NewValue(f.Entry, ssa.OpInvalid, ssa.ModeInt)

	_, err := AssignRegisters(f, NewRegisterAllocator(1), nil)
	assert.Assert(t, errdefs.IsInternal(err))

	var cerr *Error
	assert.Assert(t, errors.As(err, &cerr))
	assert.Equal(t, cerr.Kind, KindUnhandledOp)
	assert.Equal(t, cerr.Func, "Main.bad")
	assert.Assert(t, is.Contains(cerr.Msg, v.String()))
}

func TestSelectArithmetic(t *testing.T) {
	f := ssa.NewFunc("Main.arith", 3, ssa.ModeInt)
	b := f.Entry
	b.Kind = ssa.BlockReturn
	x := param(f, b, 1, ssa.ModeInt)
	y := param(f, b, 2, ssa.ModeInt)
	sub := f.NewValue(b, ssa.OpSub, ssa.ModeInt, x, y)
	mul := f.NewValue(b, ssa.OpMul, ssa.ModeInt, sub, x)
	neg := f.NewValue(b, ssa.OpMinus, ssa.ModeInt, mul)
	b.SetControl(neg)

	out := compile(t, f, Config{})
	assert.Assert(t, is.Contains(out, "subl [ %@2l | %@1l ] -> %@3l"))
	assert.Assert(t, is.Contains(out, "imull [ %@3l | %@1l ] -> %@4l"))
	assert.Assert(t, is.Contains(out, "negl [ %@4l ] -> %@5l"))
	assert.Assert(t, is.Contains(out, "movl %@5l, %@r0l"))
}

func TestSelectMemory(t *testing.T) {
	f := ssa.NewFunc("Main.mem", 2, ssa.ModeVoid)
	b := f.Entry
	b.Kind = ssa.BlockReturn
	mem := f.NewValue(b, ssa.OpInitMem, ssa.ModeVoid)
	this := f.NewValue(b, ssa.OpThis, ssa.ModeRef)
	i := param(f, b, 1, ssa.ModeInt)

	arr := f.NewValue(b, ssa.OpLoad, ssa.ModeRef, mem, this)
	arr.Aux = ssa.Addressing{Kind: ssa.AddrField, Offset: 8}
	elem := f.NewValue(b, ssa.OpLoad, ssa.ModeInt, arr, arr, i)
	elem.Aux = ssa.Addressing{Kind: ssa.AddrIndexed, Scale: 4}
	flag := f.NewValue(b, ssa.OpLoad, ssa.ModeBool, elem, this)
	flag.Aux = ssa.Addressing{Kind: ssa.AddrDirect}
	st := f.NewValue(b, ssa.OpStore, ssa.ModeVoid, flag, elem, this)
	st.Aux = ssa.Addressing{Kind: ssa.AddrField, Offset: 16}

	out := compile(t, f, Config{})
	assert.Assert(t, is.Contains(out, "movq 8(%@0), %@2\n"))
	assert.Assert(t, is.Contains(out, "movl (%@2, %@1, 4), %@3l"))
	assert.Assert(t, is.Contains(out, "movb (%@0), %@4b"))
	assert.Assert(t, is.Contains(out, "movl %@3l, 16(%@0)"))
}

func TestSelectCalls(t *testing.T) {
	f := ssa.NewFunc("Main.main", 1, ssa.ModeVoid)
	b := f.Entry
	b.Kind = ssa.BlockReturn
	mem := f.NewValue(b, ssa.OpInitMem, ssa.ModeVoid)
	this := f.NewValue(b, ssa.OpThis, ssa.ModeRef)

	read := f.NewValue(b, ssa.OpCall, ssa.ModeInt, mem, addr(f, b, rtabi.CalleeRead))
	read.AuxInt = 1
	four := konst(f, b, 4)
	// The front end dropped the allocation's result; it still gets one.
	alloc := f.NewValue(b, ssa.OpCall, ssa.ModeVoid, read, addr(f, b, rtabi.CalleeAlloc), read, four)
	user := f.NewValue(b, ssa.OpCall, ssa.ModeInt, alloc, addr(f, b, "Main.twice"), this, read)
	user.AuxInt = 1
	f.NewValue(b, ssa.OpCall, ssa.ModeVoid, user, addr(f, b, rtabi.CalleePrintln), user)
	f.NewValue(b, ssa.OpCall, ssa.ModeVoid, user, addr(f, b, rtabi.CalleeFlush))

	out := compile(t, f, Config{})
	for _, want := range []string{
		"call __stdlib_read [ ] -> %@1l",
		"movl $4, %@2l",
		"call __stdlib_calloc [ %@1l | %@2l ] -> %@3",
		"call Main.twice [ %@0 | %@1l ] -> %@4l",
		"call __stdlib_println [ %@4l ]",
		"call __stdlib_flush [ ]",
	} {
		assert.Assert(t, is.Contains(out, want))
	}

	rt, unknown := rtabi.NewTable(map[string]string{rtabi.CalleePrintln: "print_int"})
	assert.Assert(t, is.Len(unknown, 0))
	out = compile(t, f, Config{Runtime: rt})
	assert.Assert(t, is.Contains(out, "call print_int [ %@4l ]"))
}

func TestSelectRuntimeArity(t *testing.T) {
	f := ssa.NewFunc("Main.main", 1, ssa.ModeVoid)
	b := f.Entry
	b.Kind = ssa.BlockReturn
	mem := f.NewValue(b, ssa.OpInitMem, ssa.ModeVoid)
	f.NewValue(b, ssa.OpCall, ssa.ModeVoid, mem, addr(f, b, rtabi.CalleePrintln))

	_, err := CompileFunc(context.Background(), f, Config{})
	assert.Assert(t, errdefs.IsInternal(err))
	assert.ErrorContains(t, err, "takes 1 arguments, got 0")
}

// makeBranch builds a block b0 that branches on x < y to two return
// blocks, listing the successors in the given order.
func makeBranch(rel ssa.Relation, projs [2]ssa.Proj, order [2]int) *ssa.Func {
	f := ssa.NewFunc("Main.br", 3, ssa.ModeVoid)
	b0 := f.Entry
	b1 := f.NewBlock(ssa.BlockReturn)
	b2 := f.NewBlock(ssa.BlockReturn)
	x := param(f, b0, 1, ssa.ModeInt)
	y := param(f, b0, 2, ssa.ModeInt)
	cmp := f.NewValue(b0, ssa.OpCmp, ssa.ModeBool, x, y)
	cmp.Aux = rel
	b0.Kind = ssa.BlockIf
	b0.SetControl(cmp)
	targets := []*ssa.Block{b1, b2}
	for i, t := range order {
		b0.AddBranch(targets[t], projs[i])
	}
	return f
}

func TestBranchOrientation(t *testing.T) {
	tests := []struct {
		name  string
		rel   ssa.Relation
		projs [2]ssa.Proj
		order [2]int
		cond  string
		other string
	}{
		{"true first", ssa.RelLess, [2]ssa.Proj{ssa.ProjTrue, ssa.ProjFalse}, [2]int{0, 1}, "jl L1", "jmp L2"},
		{"false first", ssa.RelLess, [2]ssa.Proj{ssa.ProjFalse, ssa.ProjTrue}, [2]int{0, 1}, "jge L1", "jmp L2"},
		{"reversed succs", ssa.RelLess, [2]ssa.Proj{ssa.ProjTrue, ssa.ProjFalse}, [2]int{1, 0}, "jge L1", "jmp L2"},
		{"reversed false first", ssa.RelEqual, [2]ssa.Proj{ssa.ProjFalse, ssa.ProjTrue}, [2]int{1, 0}, "je L1", "jmp L2"},
		{"greater equal", ssa.RelGreaterEqual, [2]ssa.Proj{ssa.ProjFalse, ssa.ProjTrue}, [2]int{0, 1}, "jl L1", "jmp L2"},
		{"not equal", ssa.RelNotEqual, [2]ssa.Proj{ssa.ProjTrue, ssa.ProjFalse}, [2]int{0, 1}, "jne L1", "jmp L2"},
		{"less equal", ssa.RelLessEqual, [2]ssa.Proj{ssa.ProjFalse, ssa.ProjTrue}, [2]int{0, 1}, "jg L1", "jmp L2"},
		{"greater", ssa.RelGreater, [2]ssa.Proj{ssa.ProjTrue, ssa.ProjFalse}, [2]int{1, 0}, "jle L1", "jmp L2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := compile(t, makeBranch(tt.rel, tt.projs, tt.order), Config{})
			want := "L0:\n  cmpl %@2l, %@1l\n  " + tt.cond + "\n  " + tt.other + "\n"
			assert.Assert(t, is.Contains(out, want))
		})
	}
}

func TestBranchOnBoolValue(t *testing.T) {
	f := ssa.NewFunc("Main.flag", 2, ssa.ModeVoid)
	b0 := f.Entry
	b1 := f.NewBlock(ssa.BlockReturn)
	b2 := f.NewBlock(ssa.BlockReturn)
	p := param(f, b0, 1, ssa.ModeBool)
	not := f.NewValue(b0, ssa.OpNot, ssa.ModeBool, p)
	b0.Kind = ssa.BlockIf
	b0.SetControl(not)
	b0.AddBranch(b2, ssa.ProjTrue)
	b0.AddBranch(b1, ssa.ProjFalse)

	out := compile(t, f, Config{})
	want := "L0:\n  xorb [ $1 | %@1b ] -> %@2b\n  cmpb $0, %@2b\n  je L1\n  jmp L2\n"
	assert.Assert(t, is.Contains(out, want))
}

func TestConstantBranchPrunesDeadEdge(t *testing.T) {
	f := ssa.NewFunc("Main.const", 1, ssa.ModeInt)
	b0 := f.Entry
	b1 := f.NewBlock(ssa.BlockPlain)
	b2 := f.NewBlock(ssa.BlockReturn)

	c := f.NewValue(b0, ssa.OpConstBool, ssa.ModeBool)
	c.AuxInt = 1
	five := konst(f, b0, 5)
	b0.Kind = ssa.BlockIf
	b0.SetControl(c)
	b0.AddBranch(b1, ssa.ProjTrue)
	b0.AddBranch(b2, ssa.ProjFalse)
	seven := konst(f, b1, 7)
	b1.AddSucc(b2)
	phi := f.NewValue(b2, ssa.OpPhi, ssa.ModeInt, five, seven)
	b2.SetControl(phi)

	want := `.function Main.const 1 1
L0:
  movb $1, %@1b
  movl $5, %@2l
  jmp L1
L1:
  movl $7, %@3l
  movl %@3l, %@4l
  jmp L2
L2:
  movl %@4l, %@r0l
  jmp L3
L3:
.endfunction
`
	assert.Equal(t, compile(t, f, Config{}), want)
}

func TestBothEdgesToOneBlock(t *testing.T) {
	f := ssa.NewFunc("Main.same", 3, ssa.ModeInt)
	b0 := f.Entry
	b1 := f.NewBlock(ssa.BlockReturn)
	x := param(f, b0, 1, ssa.ModeInt)
	y := param(f, b0, 2, ssa.ModeInt)
	cmp := f.NewValue(b0, ssa.OpCmp, ssa.ModeBool, x, y)
	cmp.Aux = ssa.RelLess
	b0.Kind = ssa.BlockIf
	b0.SetControl(cmp)
	b0.AddBranch(b1, ssa.ProjFalse)
	b0.AddBranch(b1, ssa.ProjTrue)
	// Edge 0 is the false edge, so the phi yields y when x < y.
	phi := f.NewValue(b1, ssa.OpPhi, ssa.ModeInt, x, y)
	b1.SetControl(phi)

	want := `.function Main.same 3 1
L0:
  cmpl %@2l, %@1l
  jge L3
  jmp L4
L4:
  movl %@2l, %@3l
  jmp L1
L3:
  movl %@1l, %@3l
  jmp L1
L1:
  movl %@3l, %@r0l
  jmp L2
L2:
.endfunction
`
	assert.Equal(t, compile(t, f, Config{}), want)
}

func TestCompileRejectsMalformedInput(t *testing.T) {
	f := ssa.NewFunc("Main.broken", 1, ssa.ModeInt)
	f.Entry.Kind = ssa.BlockReturn

	_, err := CompileFunc(context.Background(), f, Config{})
	assert.ErrorContains(t, err, "returns nothing")
	assert.Assert(t, !errdefs.IsInternal(err))
}

func TestCompileRejectsExtraPredecessor(t *testing.T) {
	f := makeBranch(ssa.RelLess, [2]ssa.Proj{ssa.ProjTrue, ssa.ProjFalse}, [2]int{0, 1})
	f.Result = ssa.ModeInt
	b1, b2 := f.Blocks[1], f.Blocks[2]
	b3 := f.NewBlock(ssa.BlockReturn)
	b1.Kind, b2.Kind = ssa.BlockPlain, ssa.BlockPlain
	b1.AddSucc(b3)
	b2.AddSucc(b3)
	// b1 jumps to b3 once but is listed twice.
	b3.Preds = append(b3.Preds, b1)
	x, y := f.Entry.Values[0], f.Entry.Values[1]
	phi := f.NewValue(b3, ssa.OpPhi, ssa.ModeInt, x, y, x)
	b3.SetControl(phi)

	for _, verify := range []bool{false, true} {
		_, err := CompileFunc(context.Background(), f, Config{Verify: verify})
		assert.ErrorContains(t, err, "jumps to b3 1 times but is listed 2 times")
		assert.Assert(t, !errdefs.IsInternal(err))
	}
}

func TestDumps(t *testing.T) {
	var dumps bytes.Buffer
	cfg := Config{DumpBefore: "select", DumpAfter: "*", DumpFunc: "Main.max", DumpTo: &dumps}
	prog := &ssa.Program{Funcs: []*ssa.Func{makeBranch(ssa.RelLess, [2]ssa.Proj{ssa.ProjTrue, ssa.ProjFalse}, [2]int{0, 1})}}
	prog.Funcs[0].Name = "Main.max"

	var out bytes.Buffer
	assert.NilError(t, Generate(context.Background(), &out, prog, cfg))

	got := dumps.String()
	assert.Assert(t, is.Contains(got, "--- before select (Main.max) ---\nfunc Main.max(3):"))
	for _, p := range PassNames() {
		assert.Assert(t, is.Contains(got, "--- after "+p+" (Main.max) ---"))
	}
	assert.Assert(t, is.Contains(got, "--- after select (Main.max) ---\n.function Main.max 3 0"))
	assert.Assert(t, !strings.Contains(got, "--- before assign"))
}

func TestGenerateKeepsInputOrder(t *testing.T) {
	var funcs []*ssa.Func
	for _, name := range []string{"A.a", "B.b", "C.c", "D.d", "E.e"} {
		f := ssa.NewFunc(name, 1, ssa.ModeVoid)
		f.Entry.Kind = ssa.BlockReturn
		funcs = append(funcs, f)
	}

	var out bytes.Buffer
	err := Generate(context.Background(), &out, &ssa.Program{Funcs: funcs}, Config{Jobs: 2})
	assert.NilError(t, err)

	var names []string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, ".function ") {
			names = append(names, strings.Fields(line)[1])
		}
	}
	assert.DeepEqual(t, names, []string{"A.a", "B.b", "C.c", "D.d", "E.e"})
}

func TestGenerateWritesNothingOnError(t *testing.T) {
	good := ssa.NewFunc("A.a", 1, ssa.ModeVoid)
	good.Entry.Kind = ssa.BlockReturn
	bad := ssa.NewFunc("B.b", 1, ssa.ModeVoid)
	bad.Entry.Kind = ssa.BlockReturn
	bad.NewValue(bad.Entry, ssa.OpInvalid, ssa.ModeInt)

	var out bytes.Buffer
	err := Generate(context.Background(), &out, &ssa.Program{Funcs: []*ssa.Func{good, bad}}, Config{})
	assert.ErrorContains(t, err, "function B.b")
	assert.Equal(t, out.Len(), 0)
}
