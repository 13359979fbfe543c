package molki

import "fmt"

// BlockID is a stable handle to a Block within its Func.
type BlockID int

// NoBlock marks a missing block handle.
const NoBlock BlockID = -1

// Block is a basic block. Ordinary instructions come first, then ending
// instructions, then the conditional jump and finally the jump. Ending
// instructions hold what must stay glued to the block's control
// transfer, such as a compare and, later, phi moves.
type Block struct {
	ID    BlockID
	Label int

	// Preds lists incoming edges. Mapping i of every phi flows in from
	// Preds[i]. A block reached by both jumps of one predecessor lists
	// that predecessor twice.
	Preds []BlockID
	Phis  []*Phi

	Jump     *Jump
	CondJump *CondJump

	instrs []*Instr
	ending []*Instr
}

// Phi is a pending simultaneous assignment at the head of a block.
type Phi struct {
	Target   RegOp
	Mappings []Mapping
}

// Mapping says which register flows into a phi from one predecessor.
type Mapping struct {
	Pred  BlockID
	Src   Reg
	Width Width
}

func (b *Block) String() string { return fmt.Sprintf("L%d", b.Label) }

// Append adds an ordinary instruction.
func (b *Block) Append(in *Instr) { b.instrs = append(b.instrs, in) }

// AppendEnding adds an instruction that is emitted after all ordinary
// instructions, whenever it is added.
func (b *Block) AppendEnding(in *Instr) { b.ending = append(b.ending, in) }

// Instrs returns the ordinary instructions followed by the ending ones.
func (b *Block) Instrs() []*Instr {
	all := make([]*Instr, 0, len(b.instrs)+len(b.ending))
	all = append(all, b.instrs...)
	return append(all, b.ending...)
}

// IsBranching reports whether control leaves b along two edges.
func (b *Block) IsBranching() bool {
	return b.Jump != nil && b.CondJump != nil
}

// Succs returns the jump targets, conditional one first.
func (b *Block) Succs() []BlockID {
	var succs []BlockID
	if b.CondJump != nil {
		succs = append(succs, b.CondJump.Target)
	}
	if b.Jump != nil {
		succs = append(succs, b.Jump.Target)
	}
	return succs
}

// SetJump sets the unconditional jump. A block has at most one.
func (b *Block) SetJump(target BlockID) {
	if b.Jump != nil {
		panic(fmt.Sprintf("BUG: %s already jumps to block %d", b, b.Jump.Target))
	}
	b.Jump = &Jump{Target: target}
}

// SetCondJump sets the conditional jump. A block has at most one.
func (b *Block) SetCondJump(cond Cond, target BlockID) {
	if b.CondJump != nil {
		panic(fmt.Sprintf("BUG: %s already has a conditional jump to block %d", b, b.CondJump.Target))
	}
	b.CondJump = &CondJump{Cond: cond, Target: target}
}

// Redirect retargets one jump from old to new, trying the conditional
// jump first. It reports whether a jump was changed.
func (b *Block) Redirect(old, new BlockID) bool {
	if b.CondJump != nil && b.CondJump.Target == old {
		b.CondJump.Target = new
		return true
	}
	if b.Jump != nil && b.Jump.Target == old {
		b.Jump.Target = new
		return true
	}
	return false
}

// AddPred appends an incoming edge and returns its index.
func (b *Block) AddPred(p BlockID) int {
	b.Preds = append(b.Preds, p)
	return len(b.Preds) - 1
}

// RemovePred drops incoming edge i together with mapping i of every phi.
func (b *Block) RemovePred(i int) {
	b.Preds = append(b.Preds[:i:i], b.Preds[i+1:]...)
	for _, phi := range b.Phis {
		if i < len(phi.Mappings) {
			phi.Mappings = append(phi.Mappings[:i:i], phi.Mappings[i+1:]...)
		}
	}
}

// AddPhi attaches a phi to the block.
func (b *Block) AddPhi(phi *Phi) { b.Phis = append(b.Phis, phi) }

// Func is the pseudo-assembly of one method.
type Func struct {
	Name       string
	NumArgs    int
	NumResults int

	// NumRegs is the number of value registers in use. Phi temporaries
	// are printed as the registers following them.
	NumRegs int

	// Exit is the block that falls through to the end of the function,
	// or NoBlock.
	Exit BlockID

	blocks []*Block  // arena, indexed by BlockID
	layout []BlockID // emission order
}

// NewFunc returns an empty function.
func NewFunc(name string, numArgs, numResults int) *Func {
	return &Func{Name: name, NumArgs: numArgs, NumResults: numResults, Exit: NoBlock}
}

// NewBlock creates a block and places it last in layout order.
func (f *Func) NewBlock(label int) *Block {
	b := f.alloc(label)
	f.layout = append(f.layout, b.ID)
	return b
}

// InsertBlockAfter creates a block and places it right after the given
// block in layout order.
func (f *Func) InsertBlockAfter(after BlockID, label int) *Block {
	b := f.alloc(label)
	for i, id := range f.layout {
		if id == after {
			f.layout = append(f.layout[:i+1], append([]BlockID{b.ID}, f.layout[i+1:]...)...)
			return b
		}
	}
	f.layout = append(f.layout, b.ID)
	return b
}

func (f *Func) alloc(label int) *Block {
	b := &Block{ID: BlockID(len(f.blocks)), Label: label}
	f.blocks = append(f.blocks, b)
	return b
}

// Block returns the block with the given handle.
func (f *Func) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(f.blocks) {
		panic(fmt.Sprintf("BUG: %s has no block %d", f.Name, id))
	}
	return f.blocks[id]
}

// Blocks returns the blocks in layout order.
func (f *Func) Blocks() []*Block {
	bs := make([]*Block, len(f.layout))
	for i, id := range f.layout {
		bs[i] = f.blocks[id]
	}
	return bs
}

// NumBlocks returns the number of blocks.
func (f *Func) NumBlocks() int { return len(f.blocks) }

// MaxLabel returns the largest label in use, or -1.
func (f *Func) MaxLabel() int {
	max := -1
	for _, b := range f.blocks {
		if b.Label > max {
			max = b.Label
		}
	}
	return max
}
