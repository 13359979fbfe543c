// Package main implements the mjc backend entry point: it reads an SSA
// dump and writes molki pseudo-assembly.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/you-not-fish/mjc/internal/codegen"
	"github.com/you-not-fish/mjc/internal/config"
	"github.com/you-not-fish/mjc/internal/ssa"
)

// Version information
const Version = "0.1.0-dev"

// Exit codes.
const (
	exitOK       = 0
	exitInput    = 1 // bad input, flags or configuration
	exitInternal = 2 // internal compiler error
)

type options struct {
	configFile string
	logLevel   string

	output     string
	jobs       int
	verify     bool
	dumpBefore string
	dumpAfter  string
	dumpFunc   string

	ssaFunc string

	cfg *config.Config
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdin)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	ctx := log.WithLogger(context.Background(), log.L)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errdefs.IsInternal(err):
		fmt.Fprintf(stderr, "internal compiler error: %v\n", err)
		return exitInternal
	default:
		fmt.Fprintf(stderr, "mjc: %v\n", err)
		return exitInput
	}
}

func newRootCommand(stdin io.Reader) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "mjc",
		Short:         "MiniJava backend: SSA in, molki pseudo-assembly out",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd, opts)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "TOML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newCompileCommand(opts, stdin),
		newSSACommand(opts, stdin),
		newVersionCommand(),
	)
	return cmd
}

func newCompileCommand(opts *options, stdin io.Reader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [OPTIONS] <input.json>",
		Short: "Compile an SSA dump to molki",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, stdin, args[0])
		},
	}
	installCompileFlags(cmd.Flags(), opts)
	return cmd
}

func installCompileFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVarP(&opts.output, "output", "o", "", "Output file (default stdout)")
	flags.IntVar(&opts.jobs, "jobs", 0, "Functions compiled in parallel (0 for no limit)")
	flags.BoolVar(&opts.verify, "verify", false, "Verify the input and the result of every pass")
	flags.StringVar(&opts.dumpBefore, "dump-before", "", "Dump before pass (name or \"*\")")
	flags.StringVar(&opts.dumpAfter, "dump-after", "", "Dump after pass (name or \"*\")")
	flags.StringVar(&opts.dumpFunc, "dump-func", "", "Only dump specific function")
}

func newSSACommand(opts *options, stdin io.Reader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssa <input.json>",
		Short: "Check an SSA dump and print it as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSSA(cmd, opts, stdin, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.ssaFunc, "func", "", "Only print specific function")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mjc version %s\n", Version)
			fmt.Fprintf(out, "go version %s\n", runtime.Version())
			fmt.Fprintf(out, "SSA format %s\n", ssa.FormatVersion)
			return nil
		},
	}
}

// setup loads the configuration, lets explicitly set flags override it
// and configures logging.
func setup(cmd *cobra.Command, opts *options) error {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(opts.configFile); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("jobs") {
		cfg.Jobs = opts.jobs
	}
	if flags.Changed("verify") {
		cfg.Verify = opts.verify
	}
	if flags.Changed("dump-before") {
		cfg.Dump.Before = opts.dumpBefore
	}
	if flags.Changed("dump-after") {
		cfg.Dump.After = opts.dumpAfter
	}
	if flags.Changed("dump-func") {
		cfg.Dump.Func = opts.dumpFunc
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logrus.SetOutput(cmd.ErrOrStderr())
	if err := log.SetFormat(log.TextFormat); err != nil {
		return err
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	if names := cfg.RuntimeOverrides(); len(names) > 0 {
		log.G(cmd.Context()).Debugf("runtime symbols overridden for %v", names)
	}
	opts.cfg = cfg
	return nil
}

func readProgram(path string, stdin io.Reader) (*ssa.Program, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	prog, err := ssa.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return prog, nil
}

func runCompile(cmd *cobra.Command, opts *options, stdin io.Reader, path string) error {
	ctx := cmd.Context()
	prog, err := readProgram(path, stdin)
	if err != nil {
		return err
	}
	log.G(ctx).WithField("input", path).
		WithField("functions", len(prog.Funcs)).
		Debug("decoded program")

	cg := opts.cfg.Codegen()
	cg.DumpTo = cmd.ErrOrStderr()

	var buf bytes.Buffer
	if err := codegen.Generate(ctx, &buf, prog, cg); err != nil {
		return errors.Wrap(err, path)
	}

	if opts.output == "" {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	return os.WriteFile(opts.output, buf.Bytes(), 0o644)
}

func runSSA(cmd *cobra.Command, opts *options, stdin io.Reader, path string) error {
	prog, err := readProgram(path, stdin)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	first := true
	for _, f := range prog.Funcs {
		if opts.ssaFunc != "" && f.Name != opts.ssaFunc {
			continue
		}
		if err := ssa.Verify(f); err != nil {
			return errors.Wrap(err, path)
		}
		if !first {
			fmt.Fprintln(out)
		}
		first = false
		ssa.Fprint(out, f)
	}
	return nil
}
