package codegen

import (
	"github.com/you-not-fish/mjc/internal/molki"
	"github.com/you-not-fish/mjc/internal/rtabi"
	"github.com/you-not-fish/mjc/internal/ssa"
)

// widthOf maps a value mode to its register width.
func widthOf(m ssa.Mode) molki.Width {
	switch m {
	case ssa.ModeInt:
		return molki.W32
	case ssa.ModeBool:
		return molki.W8
	}
	return molki.W64
}

// resultWidth maps a runtime result kind to its register width.
func resultWidth(r rtabi.Result) molki.Width {
	if r == rtabi.ResultInt {
		return molki.W32
	}
	return molki.W64
}

// callResult reports whether call v leaves a value in a register and at
// which width. Runtime functions with a result always do, whether or not
// the front end uses it.
func callResult(v *ssa.Value, rt rtabi.Table) (molki.Width, bool) {
	callee, _ := v.Callee()
	if callee != nil {
		if sig, ok := rt.Lookup(callee.Symbol()); ok && sig.Result != rtabi.ResultVoid {
			if v.Mode != ssa.ModeVoid {
				return widthOf(v.Mode), true
			}
			return resultWidth(sig.Result), true
		}
	}
	if v.AuxInt == 1 {
		return widthOf(v.Mode), true
	}
	return 0, false
}
