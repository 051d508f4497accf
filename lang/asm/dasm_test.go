package asm_test

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/mna/capucine/internal/filetest"
	"github.com/mna/capucine/lang/asm"
	"github.com/stretchr/testify/require"
)

var testUpdateDasmTests = flag.Bool("test.update-dasm-tests", false, "If set, replace expected listing outputs with actual listing outputs.")

func TestListing(t *testing.T) {
	dir := "testdata"
	resultDir := filepath.Join(dir, "want")

	for _, name := range filetest.SourceFiles(t, dir, ".zam") {
		t.Run(name, func(t *testing.T) {
			p, err := asm.LoadFile(filepath.Join(dir, name), 0)
			require.NoError(t, err)
			b, err := asm.Listing(p)
			require.NoError(t, err)
			filetest.DiffOutput(t, name, string(b), resultDir, testUpdateDasmTests)

			pf, err := asm.LoadFile(filepath.Join(dir, name), asm.Fuse)
			require.NoError(t, err)
			bf, err := asm.Listing(pf)
			require.NoError(t, err)
			filetest.DiffCustom(t, name, "fused listing", ".fused.want", string(bf), resultDir, testUpdateDasmTests)
		})
	}
}
