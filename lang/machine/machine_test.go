package machine_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/mna/capucine/lang/asm"
	"github.com/mna/capucine/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rxAssert = regexp.MustCompile(`(?m)^###\s*(result|fail|output|stack):\s*(.+)$`)

// TestExecZam loads the bytecode files in testdata/*.zam and runs the
// resulting programs. Expected results are provided as comments in the
// file in the form of:
//   - ### result: <string form of the terminal accumulator>
//   - ### fail: <error message substring>
//   - ### output: <expected stdout, quoted>
//   - ### stack: <expected stack size after STOP>
//
// Assertion lines do not match the instruction format and are skipped by
// the loader, so they can live in the program file itself.
func TestExecZam(t *testing.T) {
	for _, name := range zamFiles(t) {
		t.Run(name, func(t *testing.T) {
			execZamFile(t, name, 0)
		})
	}
}

// TestExecZamFused runs the same programs with the tail-call fusion
// enabled: the rewrite must preserve the terminal accumulator, the
// output and the terminal stack size.
func TestExecZamFused(t *testing.T) {
	for _, name := range zamFiles(t) {
		t.Run(name, func(t *testing.T) {
			execZamFile(t, name, asm.Fuse)
		})
	}
}

func zamFiles(t *testing.T) []string {
	t.Helper()

	des, err := os.ReadDir("testdata")
	require.NoError(t, err)

	var names []string
	for _, de := range des {
		if de.IsDir() || !de.Type().IsRegular() || filepath.Ext(de.Name()) != ".zam" {
			continue
		}
		names = append(names, de.Name())
	}
	return names
}

func execZamFile(t *testing.T, name string, mode asm.Mode) {
	t.Helper()

	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	ms := rxAssert.FindAllStringSubmatch(string(b), -1)
	require.NotNil(t, ms, "no assertion provided")

	p, err := asm.Load(bytes.NewReader(b), mode)
	require.NoError(t, err)

	var stdout bytes.Buffer
	m := machine.New(p)
	m.Stdout = &stdout
	m.MaxSteps = 10_000

	res, err := m.Run(context.Background())

	var errAsserted bool
	for _, as := range ms {
		want := strings.TrimSpace(as[2])
		switch as[1] {
		case "fail":
			errAsserted = true
			assert.ErrorContains(t, err, want, "result: %v", res)
		case "result":
			if assert.NoError(t, err) {
				assert.Equal(t, want, res.String())
			}
		case "output":
			if qs, uerr := strconv.Unquote(want); uerr == nil {
				want = qs
			}
			assert.Equal(t, want, stdout.String())
		case "stack":
			n, aerr := strconv.Atoi(want)
			require.NoError(t, aerr)
			assert.Equal(t, n, m.StackLen())
		}
	}
	if !errAsserted {
		// default to no error expected
		require.NoError(t, err)
	}
}

func loadProg(t *testing.T, src string) *asm.Program {
	t.Helper()
	p, err := asm.Load(strings.NewReader(src), 0)
	require.NoError(t, err)
	return p
}

func TestPushPopPreservesAcc(t *testing.T) {
	p := loadProg(t, "\tCONST 11\n\tPUSH\n\tPOP\n\tSTOP\n")
	m := machine.New(p)
	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, machine.Int(11), res)
	assert.Equal(t, 0, m.StackLen())
}

func TestPartialApplicationValue(t *testing.T) {
	// applying a single argument to a binary function must return an
	// observable closure value
	p := loadProg(t, `	BRANCH main
	RESTART
add:	GRAB 1
	ACC 1
	PUSH
	ACC 1
	PRIM +
	RETURN 2
main:	CLOSURE add, 0
	PUSH
	CONST 1
	PUSH
	ACC 1
	APPLY 1
	STOP
`)
	m := machine.New(p)
	res, err := m.Run(context.Background())
	require.NoError(t, err)
	require.IsType(t, (*machine.Closure)(nil), res)
}

func TestRunStepLimit(t *testing.T) {
	p := loadProg(t, "L:\tBRANCH L\n")
	m := machine.New(p)
	m.MaxSteps = 100
	_, err := m.Run(context.Background())
	require.ErrorContains(t, err, "step limit")
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := loadProg(t, "L:\tBRANCH L\n")
	m := machine.New(p)
	_, err := m.Run(ctx)
	require.ErrorContains(t, err, "cancelled")
}

func TestRunTwice(t *testing.T) {
	p := loadProg(t, "\tSTOP\n")
	m := machine.New(p)
	_, err := m.Run(context.Background())
	require.NoError(t, err)
	_, err = m.Run(context.Background())
	require.ErrorContains(t, err, "already executing")
}

func TestStackOutOfRange(t *testing.T) {
	p := loadProg(t, "\tACC 3\n\tSTOP\n")
	m := machine.New(p)
	_, err := m.Run(context.Background())
	require.ErrorIs(t, err, machine.ErrOutOfRange)
}

func TestEnvOutOfRange(t *testing.T) {
	p := loadProg(t, "\tENVACC 0\n\tSTOP\n")
	m := machine.New(p)
	_, err := m.Run(context.Background())
	require.ErrorIs(t, err, machine.ErrOutOfRange)
}

func TestBlockFieldOutOfRange(t *testing.T) {
	p := loadProg(t, "\tCONST 1\n\tMAKEBLOCK 1\n\tGETFIELD 4\n\tSTOP\n")
	m := machine.New(p)
	_, err := m.Run(context.Background())
	require.ErrorIs(t, err, machine.ErrOutOfRange)
}

func TestGetFieldOfNonBlock(t *testing.T) {
	p := loadProg(t, "\tCONST 1\n\tGETFIELD 0\n\tSTOP\n")
	m := machine.New(p)
	_, err := m.Run(context.Background())
	require.ErrorIs(t, err, machine.ErrTypeMismatch)
}

func TestApplyNonClosure(t *testing.T) {
	p := loadProg(t, "\tCONST 1\n\tPUSH\n\tCONST 2\n\tAPPLY 1\n\tSTOP\n")
	m := machine.New(p)
	_, err := m.Run(context.Background())
	require.ErrorIs(t, err, machine.ErrTypeMismatch)
}

func TestDivisionByZero(t *testing.T) {
	p := loadProg(t, "\tCONST 0\n\tPUSH\n\tCONST 4\n\tPRIM /\n\tSTOP\n")
	m := machine.New(p)
	_, err := m.Run(context.Background())
	require.ErrorContains(t, err, "division by zero")
}

func TestUncaughtExceptionValue(t *testing.T) {
	p := loadProg(t, "\tCONST 7\n\tRAISE\n")
	m := machine.New(p)
	_, err := m.Run(context.Background())
	require.ErrorIs(t, err, machine.ErrUncaughtException)
	require.ErrorContains(t, err, "7")
}
