// Package asm implements the textual bytecode dialect executed by the
// machine: the line-oriented loader, the decoded program store with its
// label resolution, the optional tail-call fusion rewrite, and a listing
// writer for the decoded form.
//
// A bytecode file is a sequence of lines of the form:
//
//	LABEL:	OPCODE	arg1, arg2
//
// where the label prefix is optional, a tab separates the label column
// from the mnemonic, and operands are comma-separated. Lines that do not
// match this shape (blank lines, commentary) are skipped.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Mode is a set of bit flags that configure the loader behavior.
type Mode uint

const (
	// Fuse rewrites APPLY n immediately followed by RETURN r into
	// APPTERM n, n+r before label resolution.
	Fuse Mode = 1 << iota
)

var rxLine = regexp.MustCompile(`^(?:(\w+):)?\t(\w+)(.*)$`)

// primOps is the operator set of the PRIM instruction. The loader rejects
// anything else so that an operator typo fails the load, not the run.
var primOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true,
	"and": true, "or": true, "not": true, "print": true,
	"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true,
}

// Load reads a textual bytecode program. The returned program has every
// operand decoded to its final type and every label operand resolved to a
// program index.
func Load(r io.Reader, mode Mode) (*Program, error) {
	var instrs []Instr

	s := bufio.NewScanner(r)
	for line := 1; s.Scan(); line++ {
		m := rxLine.FindStringSubmatch(s.Text())
		if m == nil {
			continue
		}
		in, err := decode(m[1], m[2], m[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		instrs = append(instrs, in)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if mode&Fuse != 0 {
		instrs = fuse(instrs)
	}
	return newProgram(instrs)
}

// LoadFile reads the textual bytecode program stored in path.
func LoadFile(path string, mode Mode) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Load(f, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// decode parses a matched line into an instruction, typing the operands
// according to the opcode.
func decode(label, mnemonic, rest string) (Instr, error) {
	op, ok := reverseLookupOpcode[mnemonic]
	if !ok {
		return Instr{}, fmt.Errorf("%w: invalid opcode: %s", ErrMalformedInstruction, mnemonic)
	}

	var args []string
	if rest = strings.TrimSpace(rest); rest != "" {
		args = strings.Split(rest, ",")
		for i, arg := range args {
			args[i] = strings.TrimSpace(arg)
		}
	}

	in := Instr{Label: label, Op: op}
	switch kind := opcodeArgs[op]; kind {
	case argNone:
		if len(args) != 0 {
			return Instr{}, argCountErr(op, 0, len(args))
		}

	case argInt:
		if len(args) != 1 {
			return Instr{}, argCountErr(op, 1, len(args))
		}
		n, err := parseInt(op, args[0])
		if err != nil {
			return Instr{}, err
		}
		in.Num = n

	case argPrim:
		if len(args) != 1 {
			return Instr{}, argCountErr(op, 1, len(args))
		}
		if !primOps[args[0]] {
			return Instr{}, fmt.Errorf("%w: %s: unknown primitive: %s", ErrMalformedInstruction, op, args[0])
		}
		in.Sym = args[0]

	case argLabel:
		if len(args) != 1 {
			return Instr{}, argCountErr(op, 1, len(args))
		}
		in.Target = args[0]

	case argLabelInt:
		if len(args) != 2 {
			return Instr{}, argCountErr(op, 2, len(args))
		}
		n, err := parseInt(op, args[1])
		if err != nil {
			return Instr{}, err
		}
		in.Target, in.Num = args[0], n

	case argIntInt:
		if len(args) != 2 {
			return Instr{}, argCountErr(op, 2, len(args))
		}
		n, err := parseInt(op, args[0])
		if err != nil {
			return Instr{}, err
		}
		n2, err := parseInt(op, args[1])
		if err != nil {
			return Instr{}, err
		}
		in.Num, in.Num2 = n, n2

	default:
		panic(fmt.Sprintf("unknown operand kind %d for opcode %s", kind, op))
	}
	return in, nil
}

func argCountErr(op Opcode, want, got int) error {
	return fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrMalformedInstruction, op, want, got)
}

func parseInt(op Opcode, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: invalid integer: %s", ErrMalformedInstruction, op, s)
	}
	return n, nil
}
