package ssa

import "fmt"

// Mode is the machine representation of a value.
type Mode int

const (
	ModeVoid Mode = iota
	ModeInt       // 32-bit signed integer
	ModeBool      // 8-bit boolean
	ModeRef       // 64-bit reference
)

var modeNames = [...]string{
	ModeVoid: "void",
	ModeInt:  "int",
	ModeBool: "bool",
	ModeRef:  "ref",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Size returns the size of the mode in bytes.
func (m Mode) Size() int {
	switch m {
	case ModeInt:
		return 4
	case ModeBool:
		return 1
	case ModeRef:
		return 8
	}
	return 0
}

func lookupMode(name string) (Mode, bool) {
	for m, n := range modeNames {
		if n == name {
			return Mode(m), true
		}
	}
	return ModeVoid, false
}

// Relation is the predicate of an OpCmp.
type Relation int

const (
	RelInvalid Relation = iota
	RelLess
	RelLessEqual
	RelGreater
	RelGreaterEqual
	RelEqual
	RelNotEqual
)

var relationNames = [...]string{
	RelInvalid:      "invalid",
	RelLess:         "<",
	RelLessEqual:    "<=",
	RelGreater:      ">",
	RelGreaterEqual: ">=",
	RelEqual:        "==",
	RelNotEqual:     "!=",
}

func (r Relation) String() string {
	if r >= 0 && int(r) < len(relationNames) {
		return relationNames[r]
	}
	return "unknown"
}

// Negate returns the relation that holds exactly when r does not.
func (r Relation) Negate() Relation {
	switch r {
	case RelLess:
		return RelGreaterEqual
	case RelLessEqual:
		return RelGreater
	case RelGreater:
		return RelLessEqual
	case RelGreaterEqual:
		return RelLess
	case RelEqual:
		return RelNotEqual
	case RelNotEqual:
		return RelEqual
	}
	return RelInvalid
}

func lookupRelation(name string) (Relation, bool) {
	for r, n := range relationNames {
		if Relation(r) != RelInvalid && n == name {
			return Relation(r), true
		}
	}
	return RelInvalid, false
}

// AddrKind selects how a Load or Store computes its address.
type AddrKind int

const (
	AddrDirect  AddrKind = iota // (ptr)
	AddrField                   // offset(base)
	AddrIndexed                 // (base, index, scale)
)

var addrKindNames = [...]string{
	AddrDirect:  "direct",
	AddrField:   "field",
	AddrIndexed: "indexed",
}

func (k AddrKind) String() string {
	if k >= 0 && int(k) < len(addrKindNames) {
		return addrKindNames[k]
	}
	return "unknown"
}

// NumOperands returns how many address operands the kind consumes.
func (k AddrKind) NumOperands() int {
	if k == AddrIndexed {
		return 2
	}
	return 1
}

// Addressing describes the memory operand of a Load or Store.
// The operands themselves (pointer, base, index) are value arguments.
type Addressing struct {
	Kind   AddrKind
	Offset int64 // AddrField only
	Scale  int64 // AddrIndexed only; element size in bytes
}

func (a Addressing) String() string {
	switch a.Kind {
	case AddrField:
		return fmt.Sprintf("field+%d", a.Offset)
	case AddrIndexed:
		return fmt.Sprintf("indexed*%d", a.Scale)
	}
	return a.Kind.String()
}

// Proj labels the outgoing edges of a BlockIf.
type Proj int

const (
	ProjNone Proj = iota
	ProjTrue
	ProjFalse
)

func (p Proj) String() string {
	switch p {
	case ProjTrue:
		return "true"
	case ProjFalse:
		return "false"
	}
	return ""
}
