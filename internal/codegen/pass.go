package codegen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/containerd/log"
	"github.com/pkg/errors"

	"github.com/you-not-fish/mjc/internal/molki"
	"github.com/you-not-fish/mjc/internal/rtabi"
	"github.com/you-not-fish/mjc/internal/ssa"
)

// compilation is the state one function carries through the passes.
type compilation struct {
	ctx  context.Context
	f    *ssa.Func
	rt   rtabi.Table
	ra   *RegisterAllocator
	regs *Registers
	out  *molki.Func
}

// Pass describes a single backend pass.
type Pass struct {
	Name string
	Fn   func(c *compilation) error
}

// passes is the backend pipeline in execution order.
var passes = []Pass{
	{Name: "assign", Fn: func(c *compilation) (err error) {
		c.regs, err = AssignRegisters(c.f, c.ra, c.rt)
		return err
	}},
	{Name: "select", Fn: func(c *compilation) (err error) {
		c.out, err = Select(c.ctx, c.f, c.regs, c.rt)
		return err
	}},
	{Name: "critedge", Fn: func(c *compilation) error {
		_, err := RemoveCriticalEdges(c.ctx, c.out)
		return err
	}},
	{Name: "phi", Fn: func(c *compilation) error {
		return ResolvePhis(c.ctx, c.out, c.ra)
	}},
}

// PassNames returns the names of the backend passes in order.
func PassNames() []string {
	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = p.Name
	}
	return names
}

// dumpMu keeps dumps of functions compiled in parallel apart.
var dumpMu sync.Mutex

// run executes the passes on c in order.
func run(c *compilation, cfg *Config) error {
	for _, p := range passes {
		logger := log.G(c.ctx).WithField("func", c.f.Name).WithField("pass", p.Name)
		if shouldDump(cfg.DumpBefore, p.Name) && matchFunc(cfg.DumpFunc, c.f.Name) {
			dump(cfg.dumpWriter(), "before", p.Name, c)
		}

		logger.Debug("running pass")
		if err := p.Fn(c); err != nil {
			return errors.Wrapf(err, "pass %s", p.Name)
		}

		if cfg.Verify && c.out != nil {
			if err := molki.Verify(c.out); err != nil {
				return invariant(c.f.Name, "after pass %s: %v", p.Name, err)
			}
		}

		if shouldDump(cfg.DumpAfter, p.Name) && matchFunc(cfg.DumpFunc, c.f.Name) {
			dump(cfg.dumpWriter(), "after", p.Name, c)
		}
	}
	return nil
}

// dump writes the current form of the function: SSA until selection has
// run, molki afterwards.
func dump(w io.Writer, when, pass string, c *compilation) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %s %s (%s) ---\n", when, pass, c.f.Name)
	if c.out != nil {
		_ = molki.Dump(&buf, c.out)
	} else {
		ssa.Fprint(&buf, c.f)
	}
	fmt.Fprintln(&buf)

	dumpMu.Lock()
	defer dumpMu.Unlock()
	_, _ = w.Write(buf.Bytes())
}

func shouldDump(pattern, name string) bool {
	return pattern == "*" || pattern == name
}

func matchFunc(filter, name string) bool {
	return filter == "" || filter == name
}
