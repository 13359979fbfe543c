package ssa

import "fmt"

// ID is a unique identifier for Values and Blocks within a Func.
type ID int32

// Value represents a single SSA computation.
// Each Value has exactly one definition and may be used by other Values.
type Value struct {
	// ID is a unique identifier within the containing Func.
	ID ID

	// Op is the operation this value computes.
	Op Op

	// Mode is the machine mode of the result.
	// ModeVoid for ops that produce no register.
	Mode Mode

	// Args are the input values to this operation.
	Args []*Value

	// Block is the basic block that contains this value.
	Block *Block

	// AuxInt holds an auxiliary integer (constant value, argument position,
	// result arity).
	AuxInt int64

	// Aux holds arbitrary auxiliary data (Relation, Addressing, symbol name).
	Aux interface{}

	// Uses tracks the number of references to this value.
	Uses int32
}

// String returns a short string representation of the value (e.g., "v5").
func (v *Value) String() string {
	return fmt.Sprintf("v%d", v.ID)
}

// AddArg appends a value to the argument list and increments the arg's use count.
func (v *Value) AddArg(arg *Value) {
	v.Args = append(v.Args, arg)
	arg.Uses++
}

// ReplaceArg replaces the argument at index i, adjusting use counts.
func (v *Value) ReplaceArg(i int, new *Value) {
	old := v.Args[i]
	old.Uses--
	v.Args[i] = new
	new.Uses++
}

// NumResults returns how many registers the value occupies.
// Memory phis occupy none.
func (v *Value) NumResults() int {
	if v.Op == OpPhi && v.Mode == ModeVoid {
		return 0
	}
	n := v.Op.Info().Results
	if n < 0 {
		return int(v.AuxInt)
	}
	return n
}

// Relation returns the predicate of an OpCmp.
func (v *Value) Relation() Relation {
	r, _ := v.Aux.(Relation)
	return r
}

// Addressing returns the addressing mode of an OpLoad or OpStore.
func (v *Value) Addressing() Addressing {
	a, _ := v.Aux.(Addressing)
	return a
}

// Symbol returns the symbol name of an OpAddress.
func (v *Value) Symbol() string {
	s, _ := v.Aux.(string)
	return s
}

// AddrArgs returns the address operands of an OpLoad or OpStore.
func (v *Value) AddrArgs() []*Value {
	switch v.Op {
	case OpLoad:
		return v.Args[1:]
	case OpStore:
		return v.Args[2:]
	}
	return nil
}

// Callee returns the callee address and the argument list of an OpCall,
// skipping the memory operand.
func (v *Value) Callee() (*Value, []*Value) {
	if v.Op != OpCall || len(v.Args) < 2 {
		return nil, nil
	}
	return v.Args[1], v.Args[2:]
}
