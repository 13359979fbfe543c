package codegen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/golden"

	"github.com/you-not-fish/mjc/internal/ssa"
)

// TestGolden compiles every testdata/*.json dump and compares the output
// with the matching .golden file. Run with -update to rewrite them.
func TestGolden(t *testing.T) {
	inputs, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	assert.NilError(t, err)
	assert.Assert(t, len(inputs) > 0, "no golden inputs")

	for _, in := range inputs {
		name := strings.TrimSuffix(filepath.Base(in), ".json")
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(in)
			assert.NilError(t, err)
			prog, err := ssa.Decode(bytes.NewReader(data))
			assert.NilError(t, err)

			var buf bytes.Buffer
			err = Generate(context.Background(), &buf, prog, Config{Verify: true})
			assert.NilError(t, err)
			golden.Assert(t, buf.String(), name+".golden")
		})
	}
}
