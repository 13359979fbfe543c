// Package ssa implements the SSA (Static Single Assignment) graph that the
// MiniJava front end hands to the backend. One Func is produced per method;
// its blocks are topologically ordered so that every operand is defined
// before it is used.
package ssa

// Op represents an SSA operation code.
type Op int

const (
	OpInvalid Op = iota

	// Constants
	OpConst     // integer constant; AuxInt = value
	OpConstBool // bool constant; AuxInt = 0 or 1

	// Integer arithmetic
	OpAdd   // int + int
	OpSub   // int - int
	OpMul   // int * int
	OpDiv   // int / int; two results (quotient, remainder)
	OpMod   // int % int; two results (remainder, quotient)
	OpMinus // -int (unary)

	// Boolean
	OpNot // !bool

	// Comparison; Aux = Relation; Args[0] = left, Args[1] = right.
	// Only valid as the control value of the BlockIf that contains it.
	OpCmp

	// Memory
	OpLoad  // Aux = Addressing; Args[0] = mem, Args[1:] = address operands
	OpStore // Aux = Addressing; Args[0] = mem, Args[1] = value, Args[2:] = address operands; void

	// Calls; Args[0] = mem, Args[1] = callee (OpAddress), Args[2:] = arguments.
	// AuxInt = number of results (0 or 1).
	OpCall

	// SSA-specific
	OpPhi   // φ function; Args = one per predecessor
	OpParam // method argument; AuxInt = argument position (this is 0)
	OpThis  // implicit receiver, argument 0

	// Effect tokens
	OpInitMem // initial memory state; void
	OpAddress // symbolic address; Aux = symbol name; void

	opCount // sentinel; must be last
)

// OpInfo holds metadata about an SSA operation.
type OpInfo struct {
	Name    string // human-readable name
	Results int    // number of registers the op produces; -1 if it depends on AuxInt
	IsMem   bool   // true if Args[0] is a memory operand
}

// opInfoTable maps each Op to its OpInfo.
// Index by Op value.
var opInfoTable = [opCount]OpInfo{
	OpInvalid: {Name: "Invalid"},

	OpConst:     {Name: "Const", Results: 1},
	OpConstBool: {Name: "ConstBool", Results: 1},

	OpAdd:   {Name: "Add", Results: 1},
	OpSub:   {Name: "Sub", Results: 1},
	OpMul:   {Name: "Mul", Results: 1},
	OpDiv:   {Name: "Div", Results: 2},
	OpMod:   {Name: "Mod", Results: 2},
	OpMinus: {Name: "Minus", Results: 1},

	OpNot: {Name: "Not", Results: 1},

	// Compare sets flags only.
	OpCmp: {Name: "Cmp"},

	OpLoad:  {Name: "Load", Results: 1, IsMem: true},
	OpStore: {Name: "Store", IsMem: true},

	OpCall: {Name: "Call", Results: -1, IsMem: true},

	OpPhi:   {Name: "Phi", Results: 1},
	OpParam: {Name: "Param", Results: 1},
	OpThis:  {Name: "This", Results: 1},

	OpInitMem: {Name: "InitMem"},
	OpAddress: {Name: "Address"},
}

// opByName is the reverse of opInfoTable, used by the JSON decoder.
var opByName = func() map[string]Op {
	m := make(map[string]Op, opCount)
	for op := OpInvalid + 1; op < opCount; op++ {
		m[opInfoTable[op].Name] = op
	}
	return m
}()

// String returns the human-readable name of the op.
func (o Op) String() string {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o].Name
	}
	return "unknown"
}

// Info returns the OpInfo for this op.
func (o Op) Info() OpInfo {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o]
	}
	return OpInfo{Name: "unknown"}
}

// IsVoid returns true if this op never produces a register.
func (o Op) IsVoid() bool {
	return o.Info().Results == 0
}

// LookupOp returns the op with the given name.
func LookupOp(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}
