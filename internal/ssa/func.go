package ssa

// Func represents an SSA function.
// It contains a control flow graph of Blocks, each containing Values.
type Func struct {
	// Name is the mangled method name used as the assembly symbol.
	Name string

	// NumArgs is the number of arguments, including the receiver.
	NumArgs int

	// Result is the mode of the return value; ModeVoid if there is none.
	Result Mode

	// Blocks is the list of basic blocks. Blocks[0] is always the entry block.
	Blocks []*Block

	// Entry is the entry block (same as Blocks[0]).
	Entry *Block

	// nextValueID is the next available value ID.
	nextValueID ID

	// nextBlockID is the next available block ID.
	nextBlockID ID
}

// NewFunc creates a new SSA function with the given name and signature.
// An entry block is automatically created.
func NewFunc(name string, numArgs int, result Mode) *Func {
	f := &Func{
		Name:    name,
		NumArgs: numArgs,
		Result:  result,
	}
	// Create entry block.
	entry := f.NewBlock(BlockPlain)
	f.Entry = entry
	return f
}

// NewBlock creates a new basic block with the given kind and appends it to the function.
func (f *Func) NewBlock(kind BlockKind) *Block {
	b := &Block{
		ID:   f.nextBlockID,
		Kind: kind,
		Func: f,
	}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewValue creates a new Value in the given block.
func (f *Func) NewValue(b *Block, op Op, mode Mode, args ...*Value) *Value {
	v := &Value{
		ID:    f.nextValueID,
		Op:    op,
		Mode:  mode,
		Block: b,
	}
	f.nextValueID++
	for _, arg := range args {
		v.AddArg(arg)
	}
	b.Values = append(b.Values, v)
	return v
}

// NumBlocks returns the number of blocks in the function.
func (f *Func) NumBlocks() int { return len(f.Blocks) }

// NumValues returns the total number of values across all blocks.
func (f *Func) NumValues() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Values)
	}
	return n
}

// MaxBlockID returns the largest block ID in use, or -1 for an empty function.
func (f *Func) MaxBlockID() ID {
	max := ID(-1)
	for _, b := range f.Blocks {
		if b.ID > max {
			max = b.ID
		}
	}
	return max
}

// Program is the unit handed over by the front end: every method of the
// input in a stable order.
type Program struct {
	// Version is the dump format version (semver).
	Version string

	Funcs []*Func
}

// Lookup returns the function with the given name, or nil.
func (p *Program) Lookup(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
