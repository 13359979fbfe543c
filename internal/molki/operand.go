// Package molki models the pseudo-assembly that the backend emits: an
// infinite-register, x86-flavoured text format consumed by an external
// assembler. A Func is an arena of Blocks addressed by stable BlockID
// handles, so inserting blocks never invalidates references held by
// jumps, predecessor lists or phi mappings.
package molki

import "fmt"

// Reg is a virtual register. Value registers are non-negative; phi
// temporaries used to break copy cycles are negative.
type Reg int32

// IsTemp reports whether r is a phi temporary.
func (r Reg) IsTemp() bool { return r < 0 }

// Width is the operand size of a register access or a move.
type Width int

const (
	W64 Width = iota // references
	W32              // ints
	W8               // booleans
)

// RegSuffix returns the suffix appended to a register name.
func (w Width) RegSuffix() string {
	switch w {
	case W32:
		return "l"
	case W8:
		return "b"
	}
	return ""
}

// MoveSuffix returns the suffix appended to a mnemonic.
func (w Width) MoveSuffix() string {
	switch w {
	case W32:
		return "l"
	case W8:
		return "b"
	}
	return "q"
}

func (w Width) String() string {
	switch w {
	case W32:
		return "32"
	case W8:
		return "8"
	}
	return "64"
}

// Operand is one of RegOp, Imm, RetReg or Mem.
type Operand interface {
	operand()
}

// RegOp is a register read or written at a given width.
type RegOp struct {
	Reg   Reg
	Width Width
}

// Imm is an immediate integer.
type Imm int64

// RetReg is the architecturally reserved result register.
type RetReg struct {
	Width Width
}

// MemKind selects the shape of a memory operand.
type MemKind int

const (
	MemDirect  MemKind = iota // (%@base)
	MemOffset                 // offset(%@base)
	MemIndexed                // (%@base, %@index, scale)
)

// Mem is a memory operand. Base and Index hold addresses and are always
// accessed at full width.
type Mem struct {
	Kind   MemKind
	Base   Reg
	Index  Reg
	Offset int64
	Scale  int64
}

func (RegOp) operand()  {}
func (Imm) operand()    {}
func (RetReg) operand() {}
func (Mem) operand()    {}

// Cond is the condition of a conditional jump, evaluated on the flags
// set by the preceding cmp.
type Cond int

const (
	CondLess Cond = iota
	CondLessEqual
	CondGreater
	CondGreaterEqual
	CondEqual
	CondNotEqual
)

var condMnemonics = [...]string{
	CondLess:         "jl",
	CondLessEqual:    "jle",
	CondGreater:      "jg",
	CondGreaterEqual: "jge",
	CondEqual:        "je",
	CondNotEqual:     "jne",
}

// Mnemonic returns the jump instruction for c.
func (c Cond) Mnemonic() string {
	if c >= 0 && int(c) < len(condMnemonics) {
		return condMnemonics[c]
	}
	return fmt.Sprintf("j?%d", int(c))
}

func (c Cond) String() string { return c.Mnemonic() }

// Negate returns the condition that holds exactly when c does not.
func (c Cond) Negate() Cond {
	switch c {
	case CondLess:
		return CondGreaterEqual
	case CondLessEqual:
		return CondGreater
	case CondGreater:
		return CondLessEqual
	case CondGreaterEqual:
		return CondLess
	case CondEqual:
		return CondNotEqual
	}
	return CondEqual
}
