package asm

import (
	"errors"
	"fmt"

	"github.com/dolthub/swiss"
)

// Errors reported by the loader and the program store. They are wrapped
// with positional context; test with errors.Is.
var (
	ErrMalformedInstruction = errors.New("malformed instruction")
	ErrUnknownLabel         = errors.New("unknown label")
)

// An Instr is a single decoded bytecode line: an optional label, the
// opcode, and its operands parsed to their final types. Label operands are
// resolved once at load time; TargetPC holds the resolved program index.
type Instr struct {
	Label  string // label defined on this line, empty if none
	Op     Opcode
	Num    int    // first integer operand
	Num2   int    // second integer operand (APPTERM)
	Sym    string // primitive operator name (PRIM)
	Target string // label operand, empty if none

	TargetPC int // program index of Target, set at load
}

func (in Instr) String() string {
	var lbl string
	if in.Label != "" {
		lbl = in.Label + ":"
	}
	return lbl + "\t" + in.Op.String() + in.operands()
}

func (in Instr) operands() string {
	switch opcodeArgs[in.Op] {
	case argInt:
		return fmt.Sprintf(" %d", in.Num)
	case argPrim:
		return " " + in.Sym
	case argLabel:
		return " " + in.Target
	case argLabelInt:
		return fmt.Sprintf(" %s, %d", in.Target, in.Num)
	case argIntInt:
		return fmt.Sprintf(" %d, %d", in.Num, in.Num2)
	}
	return ""
}

// A Program is an immutable sequence of decoded instructions plus the
// label→index mapping built once at load time.
type Program struct {
	Instrs []Instr

	labels *swiss.Map[string, int]
}

// Position returns the program index of the instruction carrying label.
func (p *Program) Position(label string) (int, error) {
	i, ok := p.labels.Get(label)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	return i, nil
}

// newProgram indexes the labels of instrs and resolves every label operand
// to its program index.
func newProgram(instrs []Instr) (*Program, error) {
	labels := swiss.NewMap[string, int](uint32(len(instrs)))
	for i, in := range instrs {
		if in.Label != "" {
			labels.Put(in.Label, i)
		}
	}

	p := &Program{Instrs: instrs, labels: labels}
	for i, in := range instrs {
		if in.Target == "" {
			continue
		}
		pos, err := p.Position(in.Target)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, in.Op, err)
		}
		p.Instrs[i].TargetPC = pos
	}
	return p, nil
}
