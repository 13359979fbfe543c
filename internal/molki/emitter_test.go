package molki

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

// makeLoop builds a counting loop by hand:
//
//	L0: entry, falls into L1
//	L1: i = phi(L0: 0, L2: i+1); if i < n goto L2 else L3
//	L2: body
//	L3: exit
func makeLoop() *Func {
	f := NewFunc("Main.count", 2, 1)
	l0, l1, l2, l3 := f.NewBlock(0), f.NewBlock(1), f.NewBlock(2), f.NewBlock(3)
	f.Exit = l3.ID
	f.NumRegs = 5

	l0.Append(Mov(W32, Imm(0), RegOp{2, W32}))
	l0.SetJump(l1.ID)

	l1.AddPred(l0.ID)
	l1.AddPred(l2.ID)
	l1.AddPhi(&Phi{Target: RegOp{3, W32}, Mappings: []Mapping{
		{Pred: l0.ID, Src: 2, Width: W32},
		{Pred: l2.ID, Src: 4, Width: W32},
	}})
	l1.AppendEnding(Cmp(W32, RegOp{1, W32}, RegOp{3, W32}))
	l1.SetCondJump(CondLess, l2.ID)
	l1.SetJump(l3.ID)

	l2.AddPred(l1.ID)
	l2.Append(Op3("add", W32, []Operand{RegOp{3, W32}, Imm(1)}, RegOp{4, W32}))
	l2.SetJump(l1.ID)

	l3.AddPred(l1.ID)
	return f
}

func TestFprintFormat(t *testing.T) {
	f := makeLoop()
	f.Block(2).AppendEnding(Mov(W32, RegOp{-1, W32}, RegOp{3, W32}))

	var buf bytes.Buffer
	assert.NilError(t, Fprint(&buf, f))

	want := `.function Main.count 2 1
L0:
  movl $0, %@2l
  jmp L1
L1:
  cmpl %@1l, %@3l
  jl L2
  jmp L3
L2:
  addl [ %@3l | $1 ] -> %@4l
  movl %@5l, %@3l
  jmp L1
L3:
.endfunction
`
	assert.Equal(t, buf.String(), want)
}

func TestDumpShowsTempsAndPhis(t *testing.T) {
	f := makeLoop()
	f.Block(2).AppendEnding(Mov(W32, RegOp{-2, W32}, RegOp{3, W32}))

	out := Sprint(f)
	assert.Assert(t, is.Contains(out, "/* phi %@3l <- [ L0: %@2l, L2: %@4l ] */"))
	assert.Assert(t, is.Contains(out, "movl %@t1l, %@3l"))
}

func TestOperandForms(t *testing.T) {
	e := &emitter{f: NewFunc("f", 0, 0)}
	tests := []struct {
		op   Operand
		want string
	}{
		{RegOp{7, W8}, "%@7b"},
		{RegOp{7, W32}, "%@7l"},
		{RegOp{7, W64}, "%@7"},
		{Imm(-3), "$-3"},
		{RetReg{W32}, "%@r0l"},
		{RetReg{W64}, "%@r0"},
		{Mem{Kind: MemDirect, Base: 4}, "(%@4)"},
		{Mem{Kind: MemOffset, Base: 4, Offset: 16}, "16(%@4)"},
		{Mem{Kind: MemIndexed, Base: 4, Index: 5, Scale: 8}, "(%@4, %@5, 8)"},
	}
	for _, tt := range tests {
		assert.Equal(t, e.operand(tt.op), tt.want)
	}
}

func TestInstrForms(t *testing.T) {
	e := &emitter{f: NewFunc("f", 0, 0)}
	tests := []struct {
		in   *Instr
		want string
	}{
		{
			Op3("sub", W32, []Operand{RegOp{2, W32}, RegOp{1, W32}}, RegOp{3, W32}),
			"subl [ %@2l | %@1l ] -> %@3l",
		},
		{
			Op3("idiv", W32, []Operand{RegOp{1, W32}, RegOp{2, W32}}, RegOp{3, W32}, RegOp{4, W32}),
			"idivl [ %@1l | %@2l ] -> [ %@3l | %@4l ]",
		},
		{
			Call("__stdlib_println", []Operand{RegOp{1, W32}}, nil),
			"call __stdlib_println [ %@1l ]",
		},
		{
			Call("Main.f", []Operand{RegOp{0, W64}, RegOp{1, W32}}, RegOp{2, W32}),
			"call Main.f [ %@0 | %@1l ] -> %@2l",
		},
		{
			Call("__stdlib_read", nil, RegOp{2, W32}),
			"call __stdlib_read [ ] -> %@2l",
		},
		{
			Mov(W32, Mem{Kind: MemOffset, Base: 0, Offset: 4}, RegOp{2, W32}),
			"movl 4(%@0), %@2l",
		},
		{
			Cmp(W8, Imm(0), RegOp{1, W8}),
			"cmpb $0, %@1b",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, e.instr(tt.in), tt.want)
	}
}

func TestFprintProgram(t *testing.T) {
	a := NewFunc("A.a", 1, 0)
	a.Exit = a.NewBlock(0).ID
	b := NewFunc("B.b", 1, 0)
	b.Exit = b.NewBlock(0).ID

	var buf bytes.Buffer
	assert.NilError(t, FprintProgram(&buf, []*Func{a, b}))
	assert.Equal(t, buf.String(),
		".function A.a 1 0\nL0:\n.endfunction\n\n.function B.b 1 0\nL0:\n.endfunction\n")
}

type failWriter struct{ n int }

func (w *failWriter) Write(p []byte) (int, error) {
	if w.n == 0 {
		return 0, errors.New("disk full")
	}
	w.n--
	return len(p), nil
}

func TestFprintReportsWriteError(t *testing.T) {
	err := Fprint(&failWriter{n: 2}, makeLoop())
	assert.ErrorContains(t, err, "disk full")
}

func TestVerify(t *testing.T) {
	assert.NilError(t, Verify(makeLoop()))

	f := makeLoop()
	f.Block(1).Phis[0].Mappings = f.Block(1).Phis[0].Mappings[:1]
	assert.ErrorContains(t, Verify(f), "phi 0 has 1 mappings but block has 2 preds")

	f = makeLoop()
	f.Block(1).Preds[0], f.Block(1).Preds[1] = f.Block(1).Preds[1], f.Block(1).Preds[0]
	assert.ErrorContains(t, Verify(f), "mapping 0 names block 0, want pred 2")

	f = makeLoop()
	f.Block(2).Redirect(1, 3)
	err := Verify(f)
	assert.ErrorContains(t, err, "predecessor L2 does not jump here")
	assert.Assert(t, strings.Contains(err.Error(), "L3: L2 jumps here 1 times"))

	f = makeLoop()
	f.Block(0).Jump = nil
	assert.ErrorContains(t, Verify(f), "L0: block does not end in a jump")
}

func TestVerifyAssignsOnce(t *testing.T) {
	f := makeLoop()
	f.Block(2).Append(Mov(W32, Imm(7), RegOp{2, W32}))
	assert.ErrorContains(t, Verify(f), "L2: movl assigns %@2, already assigned in L0")

	f = makeLoop()
	f.Block(2).Append(Mov(W32, Imm(7), RegOp{3, W32}))
	assert.ErrorContains(t, Verify(f), "L2: movl assigns phi target %@3")

	// Phi moves sit in the ending list and may assign a target once per
	// predecessor.
	f = makeLoop()
	l1 := f.Block(1)
	f.Block(0).AppendEnding(Mov(W32, RegOp{2, W32}, RegOp{3, W32}))
	f.Block(2).AppendEnding(Mov(W32, RegOp{4, W32}, RegOp{3, W32}))
	l1.Phis = nil
	assert.NilError(t, Verify(f))
}
