package codegen

import "github.com/you-not-fish/mjc/internal/molki"

// RegisterAllocator hands out virtual registers for one function.
// Registers 0 to numArgs-1 hold the arguments, value registers count up
// from numArgs and phi temporaries count down from -1.
type RegisterAllocator struct {
	numArgs  int
	next     molki.Reg
	nextTemp molki.Reg
}

// NewRegisterAllocator returns an allocator for a function with numArgs
// arguments, including the receiver.
func NewRegisterAllocator(numArgs int) *RegisterAllocator {
	ra := &RegisterAllocator{}
	ra.Reset(numArgs)
	return ra
}

// Reset starts numbering afresh for another function.
func (ra *RegisterAllocator) Reset(numArgs int) {
	ra.numArgs = numArgs
	ra.next = molki.Reg(numArgs)
	ra.nextTemp = -1
}

// NextValueRegister returns a register not returned before.
func (ra *RegisterAllocator) NextValueRegister() molki.Reg {
	r := ra.next
	ra.next++
	return r
}

// NextPhiTemporary returns a cycle-breaking temporary not returned before.
func (ra *RegisterAllocator) NextPhiTemporary() molki.Reg {
	r := ra.nextTemp
	ra.nextTemp--
	return r
}

// Count returns the number of non-temporary registers in use, argument
// registers included.
func (ra *RegisterAllocator) Count() int { return int(ra.next) }

// NumTemps returns the number of phi temporaries handed out.
func (ra *RegisterAllocator) NumTemps() int { return int(-ra.nextTemp) - 1 }

// ArgRegister returns the register holding argument i.
func (ra *RegisterAllocator) ArgRegister(i int) molki.Reg { return molki.Reg(i) }
