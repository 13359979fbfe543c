package codegen

import (
	"context"

	"github.com/containerd/log"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/you-not-fish/mjc/internal/molki"
)

// Copy is one move of a parallel copy: Dst receives the value Src held
// before any move of the set ran.
type Copy struct {
	Dst, Src molki.Reg
	Width    molki.Width
}

// Sequentialize orders a parallel copy into moves that can run one after
// another. Copies whose target no other copy still reads go first; the
// cycles that remain are broken with a temporary from newTemp, one per
// cycle. Self-copies are dropped. Targets must be distinct.
func Sequentialize(copies []Copy, newTemp func() molki.Reg) []Copy {
	pending := make([]Copy, 0, len(copies))
	for _, c := range copies {
		if c.Dst != c.Src {
			pending = append(pending, c)
		}
	}

	seq := make([]Copy, 0, len(pending)+1)
	for len(pending) > 0 {
		for progress := true; progress; {
			progress = false
			srcs := mapset.NewThreadUnsafeSet[molki.Reg]()
			for _, c := range pending {
				srcs.Add(c.Src)
			}
			rest := pending[:0]
			for _, c := range pending {
				if srcs.Contains(c.Dst) {
					rest = append(rest, c)
					continue
				}
				seq = append(seq, c)
				progress = true
			}
			pending = rest
		}
		if len(pending) == 0 {
			break
		}

		// Every remaining target is read by another copy, so the rest is
		// a union of cycles. Save the first target, shift the cycle along
		// and close it from the temporary.
		c0 := pending[0]
		pending = pending[1:]
		t := newTemp()
		seq = append(seq, Copy{Dst: t, Src: c0.Dst, Width: c0.Width}, c0)
		for next := c0.Src; ; {
			i := indexOfDst(pending, next)
			if i < 0 {
				break
			}
			c := pending[i]
			pending = append(pending[:i], pending[i+1:]...)
			if c.Src == c0.Dst {
				seq = append(seq, Copy{Dst: c.Dst, Src: t, Width: c.Width})
				break
			}
			seq = append(seq, c)
			next = c.Src
		}
	}
	return seq
}

func indexOfDst(copies []Copy, dst molki.Reg) int {
	for i, c := range copies {
		if c.Dst == dst {
			return i
		}
	}
	return -1
}

// ResolvePhis replaces the phis of every block with moves at the end of
// its predecessors. Mapping i of all phis of a block forms one parallel
// copy, placed in predecessor i. No predecessor of a phi-bearing block
// may branch; RemoveCriticalEdges guarantees that.
func ResolvePhis(ctx context.Context, f *molki.Func, ra *RegisterAllocator) error {
	logger := log.G(ctx).WithField("func", f.Name)
	for _, b := range f.Blocks() {
		if len(b.Phis) == 0 {
			continue
		}
		for k, phi := range b.Phis {
			if len(phi.Mappings) != len(b.Preds) {
				return invariant(f.Name, "%s: phi %d has %d mappings but the block has %d predecessors",
					b, k, len(phi.Mappings), len(b.Preds))
			}
		}

		for i, pid := range b.Preds {
			p := f.Block(pid)
			if p.IsBranching() {
				return invariant(f.Name, "critical edge %s -> %s survived edge splitting", p, b)
			}
			copies := make([]Copy, len(b.Phis))
			for k, phi := range b.Phis {
				m := phi.Mappings[i]
				if m.Pred != pid {
					return invariant(f.Name, "%s: phi %d mapping %d names block %d, predecessor is %s",
						b, k, i, m.Pred, p)
				}
				copies[k] = Copy{Dst: phi.Target.Reg, Src: m.Src, Width: m.Width}
			}

			temps := ra.NumTemps()
			for _, c := range Sequentialize(copies, ra.NextPhiTemporary) {
				p.AppendEnding(molki.Mov(c.Width,
					molki.RegOp{Reg: c.Src, Width: c.Width},
					molki.RegOp{Reg: c.Dst, Width: c.Width}))
			}
			if used := ra.NumTemps() - temps; used > 0 {
				logger.Debugf("edge %s -> %s: broke %d copy cycles", p, b, used)
			}
		}
		b.Phis = nil
	}
	return nil
}
