package codegen

import (
	"github.com/you-not-fish/mjc/internal/molki"
	"github.com/you-not-fish/mjc/internal/rtabi"
	"github.com/you-not-fish/mjc/internal/ssa"
)

// Registers records the register assigned to each SSA value. A Div or
// Mod value owns its register and the one after it.
type Registers struct {
	regs map[ssa.ID]molki.Reg
}

// Reg returns the register of v.
func (r *Registers) Reg(v *ssa.Value) (molki.Reg, bool) {
	reg, ok := r.regs[v.ID]
	return reg, ok
}

// Len returns the number of values with a register.
func (r *Registers) Len() int { return len(r.regs) }

// AssignRegisters gives every value-producing operation of f a virtual
// register, walking blocks and values in the order the front end
// delivered them.
func AssignRegisters(f *ssa.Func, ra *RegisterAllocator, rt rtabi.Table) (*Registers, error) {
	r := &Registers{regs: make(map[ssa.ID]molki.Reg, f.NumValues())}
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			switch v.Op {
			case ssa.OpConst, ssa.OpConstBool,
				ssa.OpAdd, ssa.OpSub, ssa.OpMul,
				ssa.OpMinus, ssa.OpNot, ssa.OpLoad:
				r.regs[v.ID] = ra.NextValueRegister()
			case ssa.OpDiv, ssa.OpMod:
				first := ra.NextValueRegister()
				if second := ra.NextValueRegister(); second != first+1 {
					return nil, invariant(f.Name, "%s: paired registers %d and %d are not adjacent", v, first, second)
				}
				r.regs[v.ID] = first
			case ssa.OpPhi:
				if v.Mode != ssa.ModeVoid {
					r.regs[v.ID] = ra.NextValueRegister()
				}
			case ssa.OpCall:
				if _, ok := callResult(v, rt); ok {
					r.regs[v.ID] = ra.NextValueRegister()
				}
			case ssa.OpParam:
				r.regs[v.ID] = ra.ArgRegister(int(v.AuxInt))
			case ssa.OpThis:
				r.regs[v.ID] = ra.ArgRegister(0)
			case ssa.OpCmp, ssa.OpStore, ssa.OpInitMem, ssa.OpAddress:
				// Flags, memory and symbols live outside registers.
			default:
				return nil, unhandledOp(f.Name, "register assignment: %s (%s)", v, v.Op)
			}
		}
	}
	return r, nil
}
