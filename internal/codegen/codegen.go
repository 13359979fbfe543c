// Package codegen lowers SSA functions into molki pseudo-assembly.
//
// Each function runs through four passes: register assignment,
// instruction selection, critical-edge removal and phi resolution.
// Functions are independent; each gets its own RegisterAllocator, so a
// program is compiled in parallel and printed in input order.
package codegen

import (
	"context"
	"io"
	"os"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/you-not-fish/mjc/internal/molki"
	"github.com/you-not-fish/mjc/internal/rtabi"
	"github.com/you-not-fish/mjc/internal/ssa"
)

// Config controls code generation.
type Config struct {
	// Jobs limits how many functions are compiled at once; <= 0 means
	// no limit.
	Jobs int

	// Verify checks dominance of the input and runs molki.Verify after
	// every pass.
	Verify bool

	DumpBefore string    // dump before this pass ("*" for all)
	DumpAfter  string    // dump after this pass ("*" for all)
	DumpFunc   string    // restrict dumps to this function name
	DumpTo     io.Writer // defaults to os.Stderr

	// Runtime maps callee names to runtime symbols; nil means the
	// default table.
	Runtime rtabi.Table
}

func (cfg *Config) dumpWriter() io.Writer {
	if cfg.DumpTo != nil {
		return cfg.DumpTo
	}
	return os.Stderr
}

func (cfg *Config) runtime() rtabi.Table {
	if cfg.Runtime != nil {
		return cfg.Runtime
	}
	t, _ := rtabi.NewTable(nil)
	return t
}

// CompileFunc compiles one function. Malformed input is reported as a
// plain error; failures of the backend itself as *Error.
func CompileFunc(ctx context.Context, f *ssa.Func, cfg Config) (*molki.Func, error) {
	logger := log.G(ctx).WithField("func", f.Name)
	logger.Debug("compiling")

	if err := ssa.Verify(f); err != nil {
		return nil, err
	}
	if cfg.Verify {
		ssa.ComputeDom(f)
		if err := ssa.VerifyDom(f); err != nil {
			return nil, err
		}
	}

	c := &compilation{
		ctx: ctx,
		f:   f,
		rt:  cfg.runtime(),
		ra:  NewRegisterAllocator(f.NumArgs),
	}
	if err := run(c, &cfg); err != nil {
		return nil, err
	}
	c.out.NumRegs = c.ra.Count()

	logger.WithField("registers", c.ra.Count()).
		WithField("temporaries", c.ra.NumTemps()).
		Debug("compiled")
	return c.out, nil
}

// Generate compiles every function of prog and writes the program to w.
// Nothing is written unless all functions compile.
func Generate(ctx context.Context, w io.Writer, prog *ssa.Program, cfg Config) error {
	if cfg.Runtime == nil {
		cfg.Runtime = cfg.runtime()
	}
	funcs := make([]*molki.Func, len(prog.Funcs))

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Jobs > 0 {
		g.SetLimit(cfg.Jobs)
	}
	for i, f := range prog.Funcs {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := CompileFunc(ctx, f, cfg)
			if err != nil {
				return errors.Wrapf(err, "function %s", f.Name)
			}
			funcs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return molki.FprintProgram(w, funcs)
}
