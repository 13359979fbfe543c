// Package config loads the mjc configuration file.
//
// The file is TOML:
//
//	jobs = 4
//	verify = true
//	log-level = "debug"
//
//	[dump]
//	before = "phi"
//	after = "*"
//	func = "Main.main"
//
//	[runtime]
//	println = "print_int"
//
// Keys that are absent keep their defaults.
package config

import (
	"os"
	"runtime"
	"sort"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/you-not-fish/mjc/internal/codegen"
	"github.com/you-not-fish/mjc/internal/rtabi"
)

// Config is the resolved configuration.
type Config struct {
	Jobs     int    `toml:"jobs"`
	Verify   bool   `toml:"verify"`
	LogLevel string `toml:"log-level"`
	Dump     Dump   `toml:"dump"`

	// Runtime overrides the symbols of runtime functions, keyed by
	// callee name.
	Runtime map[string]string `toml:"runtime"`
}

// Dump selects the pass dumps written to stderr.
type Dump struct {
	Before string `toml:"before"`
	After  string `toml:"after"`
	Func   string `toml:"func"`
}

var knownKeys = map[string][]string{
	"jobs":      nil,
	"verify":    nil,
	"log-level": nil,
	"dump":      {"before", "after", "func"},
	"runtime":   nil,
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Jobs:     runtime.GOMAXPROCS(0),
		LogLevel: "info",
	}
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse parses a TOML document over the defaults.
func Parse(data []byte) (*Config, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	if err := checkKeys(tree); err != nil {
		return nil, err
	}

	var file Config
	if err := tree.Unmarshal(&file); err != nil {
		return nil, err
	}

	cfg := Default()
	if tree.Has("jobs") {
		cfg.Jobs = file.Jobs
	}
	if tree.Has("verify") {
		cfg.Verify = file.Verify
	}
	if tree.Has("log-level") {
		cfg.LogLevel = file.LogLevel
	}
	if tree.Has("dump") {
		cfg.Dump = file.Dump
	}
	cfg.Runtime = file.Runtime

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkKeys(tree *toml.Tree) error {
	for _, k := range tree.Keys() {
		sub, ok := knownKeys[k]
		if !ok {
			return errors.Errorf("unknown key %q", k)
		}
		if sub == nil {
			continue
		}
		t, ok := tree.Get(k).(*toml.Tree)
		if !ok {
			return errors.Errorf("%s must be a table", k)
		}
		for _, sk := range t.Keys() {
			if !contains(sub, sk) {
				return errors.Errorf("unknown key %q in [%s]", sk, k)
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// Validate checks values that the TOML types alone do not restrict.
func (c *Config) Validate() error {
	if c.Jobs < 0 {
		return errors.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log-level")
	}
	for _, p := range []string{c.Dump.Before, c.Dump.After} {
		if p != "" && p != "*" && !contains(codegen.PassNames(), p) {
			return errors.Errorf("unknown pass %q (passes: %v)", p, codegen.PassNames())
		}
	}
	if _, unknown := rtabi.NewTable(c.Runtime); len(unknown) > 0 {
		return errors.Errorf("[runtime]: unknown runtime functions %v", unknown)
	}
	return nil
}

// Codegen returns the code generator settings.
func (c *Config) Codegen() codegen.Config {
	rt, _ := rtabi.NewTable(c.Runtime)
	return codegen.Config{
		Jobs:       c.Jobs,
		Verify:     c.Verify,
		DumpBefore: c.Dump.Before,
		DumpAfter:  c.Dump.After,
		DumpFunc:   c.Dump.Func,
		Runtime:    rt,
	}
}

// RuntimeOverrides returns the overridden callee names in sorted order.
func (c *Config) RuntimeOverrides() []string {
	names := make([]string, 0, len(c.Runtime))
	for k := range c.Runtime {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
