package ssa

import "fmt"

// BlockKind describes how a basic block terminates.
type BlockKind int

const (
	BlockInvalid BlockKind = iota
	BlockPlain                    // unconditional jump to Succs[0]
	BlockIf                       // conditional branch on Controls[0]; Projs tell true from false
	BlockReturn                   // method return; Controls[0] = return value (may be nil)
)

// blockKindNames maps BlockKind to its string representation.
var blockKindNames = [...]string{
	BlockInvalid: "invalid",
	BlockPlain:   "plain",
	BlockIf:      "if",
	BlockReturn:  "ret",
}

// String returns the string representation of the block kind.
func (k BlockKind) String() string {
	if int(k) < len(blockKindNames) {
		return blockKindNames[k]
	}
	return "unknown"
}

func lookupBlockKind(name string) (BlockKind, bool) {
	for k, n := range blockKindNames {
		if BlockKind(k) != BlockInvalid && n == name {
			return BlockKind(k), true
		}
	}
	return BlockInvalid, false
}

// Block represents a basic block in the control flow graph.
// A block contains a sequence of non-branching Values, followed by
// a terminator indicated by its Kind.
type Block struct {
	// ID is a unique identifier within the containing Func.
	ID ID

	// Kind describes how this block terminates.
	Kind BlockKind

	// Controls holds the terminator's operand values.
	// For BlockIf: Controls[0] = branch condition.
	// For BlockReturn: Controls[0] = return value (nil for void return).
	// For BlockPlain: empty.
	Controls []*Value

	// Succs lists the successor blocks in the CFG.
	// The front end does not guarantee any true/false order for BlockIf;
	// Projs[i] says which outcome leads to Succs[i].
	Succs []*Block
	Projs []Proj

	// Preds lists the predecessor blocks in the CFG.
	// Phi argument i flows in from Preds[i].
	Preds []*Block

	// Values is the ordered list of values computed in this block.
	Values []*Value

	// Func is the function containing this block.
	Func *Func

	// Dominance tree fields (populated by ComputeDom).
	Idom     *Block   // immediate dominator
	Dominees []*Block // blocks dominated by this block
}

// String returns a short string representation (e.g., "b3").
func (b *Block) String() string {
	return fmt.Sprintf("b%d", b.ID)
}

// AddSucc adds a successor block, updating both Succs and the successor's Preds.
func (b *Block) AddSucc(succ *Block) {
	b.AddBranch(succ, ProjNone)
}

// AddBranch adds a successor reached when the branch outcome matches proj.
func (b *Block) AddBranch(succ *Block, proj Proj) {
	b.Succs = append(b.Succs, succ)
	b.Projs = append(b.Projs, proj)
	succ.Preds = append(succ.Preds, b)
}

// SetControl sets the branch/return control value.
func (b *Block) SetControl(v *Value) {
	b.Controls = []*Value{v}
	if v != nil {
		v.Uses++
	}
}

// Control returns Controls[0], or nil if the block has none.
func (b *Block) Control() *Value {
	if len(b.Controls) == 0 {
		return nil
	}
	return b.Controls[0]
}

// Succ returns the successor reached on the given branch outcome, or nil.
func (b *Block) Succ(proj Proj) *Block {
	for i, p := range b.Projs {
		if p == proj {
			return b.Succs[i]
		}
	}
	return nil
}

// NumSuccs returns the number of successor blocks.
func (b *Block) NumSuccs() int { return len(b.Succs) }

// NumPreds returns the number of predecessor blocks.
func (b *Block) NumPreds() int { return len(b.Preds) }

// Phis returns the phi values of the block in order.
func (b *Block) Phis() []*Value {
	var phis []*Value
	for _, v := range b.Values {
		if v.Op == OpPhi {
			phis = append(phis, v)
		}
	}
	return phis
}
