package codegen

import (
	"context"

	"github.com/containerd/log"

	"github.com/you-not-fish/mjc/internal/molki"
)

// RemoveCriticalEdges splits every edge into a phi-bearing block whose
// source has two successors. The connector block is laid out right after
// the source, takes over the jump that targeted the phi block, and
// replaces the source in its predecessor list and phi mappings. It
// returns the number of connectors inserted.
func RemoveCriticalEdges(ctx context.Context, f *molki.Func) (int, error) {
	logger := log.G(ctx).WithField("func", f.Name)
	n := 0
	label := f.MaxLabel() + 1
	for _, b := range f.Blocks() {
		if len(b.Phis) == 0 {
			continue
		}
		for i, pid := range b.Preds {
			p := f.Block(pid)
			if !p.IsBranching() {
				continue
			}
			c := f.InsertBlockAfter(p.ID, label)
			label++
			if !p.Redirect(b.ID, c.ID) {
				return n, invariant(f.Name, "%s is listed as a predecessor of %s but does not jump there", p, b)
			}
			c.SetJump(b.ID)
			c.AddPred(p.ID)
			b.Preds[i] = c.ID
			for _, phi := range b.Phis {
				if i < len(phi.Mappings) {
					phi.Mappings[i].Pred = c.ID
				}
			}
			n++
			logger.Debugf("split critical edge %s -> %s with %s", p, b, c)
		}
	}
	return n, nil
}
