package molki

import (
	"fmt"
	"io"
	"strings"
)

// emitter wraps an io.Writer with helpers for emitting molki text.
type emitter struct {
	w   io.Writer
	err error // first write error
	f   *Func

	// debug prints phi temporaries as %@tN and pending phis as comments.
	debug bool
}

// emit writes a formatted line to the output (no indentation).
func (e *emitter) emit(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format+"\n", args...)
}

// emitInst writes an indented instruction line.
func (e *emitter) emitInst(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, "  "+format+"\n", args...)
}

// emitLabel writes a basic block label.
func (e *emitter) emitLabel(b *Block) {
	e.emit("%s:", b)
}

// Fprint writes f in its final form. Phi temporaries are renumbered to
// the registers following f.NumRegs.
//
// Format:
//
//	.function Main.add 3 1
//	L0:
//	  addl [ %@1l | %@2l ] -> %@3l
//	  movl %@3l, %@r0l
//	  jmp L1
//	L1:
//	.endfunction
func Fprint(w io.Writer, f *Func) error {
	e := &emitter{w: w, f: f}
	e.function()
	return e.err
}

// Dump writes f for debugging: phi temporaries keep their own names and
// unresolved phis are listed under their block label.
func Dump(w io.Writer, f *Func) error {
	e := &emitter{w: w, f: f, debug: true}
	e.function()
	return e.err
}

// FprintProgram writes the functions one after another, separated by
// blank lines.
func FprintProgram(w io.Writer, funcs []*Func) error {
	for i, f := range funcs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := Fprint(w, f); err != nil {
			return err
		}
	}
	return nil
}

// Sprint returns the debug form of f.
func Sprint(f *Func) string {
	var sb strings.Builder
	_ = Dump(&sb, f)
	return sb.String()
}

func (e *emitter) function() {
	e.emit(".function %s %d %d", e.f.Name, e.f.NumArgs, e.f.NumResults)
	for _, b := range e.f.Blocks() {
		e.block(b)
	}
	e.emit(".endfunction")
}

func (e *emitter) block(b *Block) {
	e.emitLabel(b)
	if e.debug {
		for _, phi := range b.Phis {
			e.emitInst("/* phi %s */", e.phi(phi))
		}
	}
	for _, in := range b.Instrs() {
		e.emitInst("%s", e.instr(in))
	}
	if j := b.CondJump; j != nil {
		e.emitInst("%s %s", j.Cond.Mnemonic(), e.f.Block(j.Target))
	}
	if j := b.Jump; j != nil {
		e.emitInst("jmp %s", e.f.Block(j.Target))
	}
}

func (e *emitter) instr(in *Instr) string {
	switch in.Kind {
	case InstrBracket:
		return in.Op + " " + e.bracket(in.Args) + e.results(in.Results)
	case InstrCall:
		return "call " + in.Callee + " " + e.bracket(in.Args) + e.results(in.Results)
	}
	ops := make([]string, 0, len(in.Args)+len(in.Results))
	for _, a := range in.Args {
		ops = append(ops, e.operand(a))
	}
	for _, r := range in.Results {
		ops = append(ops, e.operand(r))
	}
	return in.Op + " " + strings.Join(ops, ", ")
}

func (e *emitter) bracket(ops []Operand) string {
	if len(ops) == 0 {
		return "[ ]"
	}
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = e.operand(o)
	}
	return "[ " + strings.Join(parts, " | ") + " ]"
}

func (e *emitter) results(ops []Operand) string {
	switch len(ops) {
	case 0:
		return ""
	case 1:
		return " -> " + e.operand(ops[0])
	}
	return " -> " + e.bracket(ops)
}

func (e *emitter) operand(o Operand) string {
	switch o := o.(type) {
	case RegOp:
		return e.reg(o.Reg) + o.Width.RegSuffix()
	case Imm:
		return fmt.Sprintf("$%d", int64(o))
	case RetReg:
		return "%@r0" + o.Width.RegSuffix()
	case Mem:
		switch o.Kind {
		case MemOffset:
			return fmt.Sprintf("%d(%s)", o.Offset, e.reg(o.Base))
		case MemIndexed:
			return fmt.Sprintf("(%s, %s, %d)", e.reg(o.Base), e.reg(o.Index), o.Scale)
		}
		return fmt.Sprintf("(%s)", e.reg(o.Base))
	}
	return fmt.Sprintf("<bad operand %T>", o)
}

// reg names a register without its width suffix.
func (e *emitter) reg(r Reg) string {
	if !r.IsTemp() {
		return fmt.Sprintf("%%@%d", r)
	}
	if e.debug {
		return fmt.Sprintf("%%@t%d", -r-1)
	}
	return fmt.Sprintf("%%@%d", e.f.NumRegs+int(-r)-1)
}

func (e *emitter) phi(phi *Phi) string {
	parts := make([]string, len(phi.Mappings))
	for i, m := range phi.Mappings {
		parts[i] = fmt.Sprintf("%s: %s%s", e.f.Block(m.Pred), e.reg(m.Src), m.Width.RegSuffix())
	}
	return e.operand(phi.Target) + " <- [ " + strings.Join(parts, ", ") + " ]"
}
