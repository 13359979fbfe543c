package molki

import (
	"fmt"
	"strings"
)

// Verify checks that jumps and predecessor lists describe the same edges,
// that every phi has one mapping per predecessor, in order, and that no
// register is assigned twice by ordinary instructions.
func Verify(f *Func) error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	seen := make(map[BlockID]bool, len(f.blocks))
	for _, id := range f.layout {
		if id < 0 || int(id) >= len(f.blocks) {
			add("func %s: layout names unknown block %d", f.Name, id)
			continue
		}
		if seen[id] {
			add("func %s: block %s laid out twice", f.Name, f.blocks[id])
		}
		seen[id] = true
	}
	for _, b := range f.blocks {
		if !seen[b.ID] {
			add("func %s: block %s missing from layout", f.Name, b)
		}
	}
	if len(errs) > 0 {
		return combineErrors(errs)
	}

	// Count jump edges into each block.
	incoming := make(map[BlockID]map[BlockID]int)
	for _, b := range f.blocks {
		if b.CondJump != nil && b.Jump == nil {
			add("func %s, %s: conditional jump without a fall-back jump", f.Name, b)
		}
		if b.Jump == nil && b.ID != f.Exit {
			add("func %s, %s: block does not end in a jump", f.Name, b)
		}
		if b.ID == f.Exit && (b.Jump != nil || b.CondJump != nil) {
			add("func %s, %s: exit block jumps", f.Name, b)
		}
		for _, s := range b.Succs() {
			if s < 0 || int(s) >= len(f.blocks) {
				add("func %s, %s: jump to unknown block %d", f.Name, b, s)
				continue
			}
			if incoming[s] == nil {
				incoming[s] = make(map[BlockID]int)
			}
			incoming[s][b.ID]++
		}
	}

	for _, b := range f.blocks {
		listed := make(map[BlockID]int)
		for _, p := range b.Preds {
			listed[p]++
		}
		for p, n := range incoming[b.ID] {
			if listed[p] != n {
				add("func %s, %s: %s jumps here %d times but is listed %d times as a predecessor",
					f.Name, b, f.blocks[p], n, listed[p])
			}
		}
		for p, n := range listed {
			if p < 0 || int(p) >= len(f.blocks) {
				add("func %s, %s: unknown predecessor %d", f.Name, b, p)
				continue
			}
			if incoming[b.ID][p] == 0 {
				add("func %s, %s: predecessor %s does not jump here (listed %d times)",
					f.Name, b, f.blocks[p], n)
			}
		}

		for i, phi := range b.Phis {
			if len(phi.Mappings) != len(b.Preds) {
				add("func %s, %s: phi %d has %d mappings but block has %d preds",
					f.Name, b, i, len(phi.Mappings), len(b.Preds))
				continue
			}
			for j, m := range phi.Mappings {
				if m.Pred != b.Preds[j] {
					add("func %s, %s: phi %d mapping %d names block %d, want pred %d",
						f.Name, b, i, j, m.Pred, b.Preds[j])
				}
				if m.Width != phi.Target.Width {
					add("func %s, %s: phi %d mapping %d has width %s, target has %s",
						f.Name, b, i, j, m.Width, phi.Target.Width)
				}
			}
		}
	}

	// Ordinary instructions assign each register once. Phi targets are
	// assigned only by the moves that replace the phi.
	defined := make(map[Reg]*Block)
	for _, id := range f.layout {
		b := f.blocks[id]
		for _, phi := range b.Phis {
			defined[phi.Target.Reg] = nil
		}
	}
	for _, id := range f.layout {
		b := f.blocks[id]
		for _, in := range b.instrs {
			for _, r := range in.Defs() {
				if by, ok := defined[r]; ok {
					if by == nil {
						add("func %s, %s: %s assigns phi target %%@%d", f.Name, b, in.Op, r)
					} else {
						add("func %s, %s: %s assigns %%@%d, already assigned in %s", f.Name, b, in.Op, r, by)
					}
					continue
				}
				defined[r] = b
			}
		}
	}

	return combineErrors(errs)
}

func combineErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("molki verification failed:\n  %s", strings.Join(errs, "\n  "))
}
