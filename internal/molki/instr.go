package molki

// InstrKind selects the textual form of an instruction.
type InstrKind int

const (
	// InstrPlain prints as "op a, b": moves and compares.
	InstrPlain InstrKind = iota
	// InstrBracket prints as "op [ a | b ] -> t".
	InstrBracket
	// InstrCall prints as "call name [ a | b ] -> t".
	InstrCall
)

// Instr is a single pseudo-instruction. Jumps are not instructions;
// they live in Block.Jump and Block.CondJump.
type Instr struct {
	Kind    InstrKind
	Op      string // mnemonic including its width suffix
	Callee  string // InstrCall only
	Args    []Operand
	Results []Operand
}

// Mov returns "mov<s> src, dst".
func Mov(w Width, src, dst Operand) *Instr {
	return &Instr{Kind: InstrPlain, Op: "mov" + w.MoveSuffix(), Args: []Operand{src}, Results: []Operand{dst}}
}

// Cmp returns "cmp<s> a, b", which sets the flags for b compared to a.
func Cmp(w Width, a, b Operand) *Instr {
	return &Instr{Kind: InstrPlain, Op: "cmp" + w.MoveSuffix(), Args: []Operand{a, b}}
}

// Op3 returns a three-address instruction "op<s> [ args ] -> results".
func Op3(op string, w Width, args []Operand, results ...Operand) *Instr {
	return &Instr{Kind: InstrBracket, Op: op + w.MoveSuffix(), Args: args, Results: results}
}

// Call returns a call of name; result may be nil for void calls.
func Call(name string, args []Operand, result Operand) *Instr {
	in := &Instr{Kind: InstrCall, Op: "call", Callee: name, Args: args}
	if result != nil {
		in.Results = []Operand{result}
	}
	return in
}

// Defs returns the registers the instruction writes.
func (in *Instr) Defs() []Reg {
	var regs []Reg
	for _, r := range in.Results {
		if r, ok := r.(RegOp); ok {
			regs = append(regs, r.Reg)
		}
	}
	return regs
}

// Jump is an unconditional transfer to Target.
type Jump struct {
	Target BlockID
}

// CondJump transfers to Target when Cond holds and falls through to the
// block's Jump otherwise.
type CondJump struct {
	Cond   Cond
	Target BlockID
}
