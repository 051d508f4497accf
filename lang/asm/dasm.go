package asm

import (
	"bytes"
	"fmt"
)

// Listing renders a loaded program back to its textual form, one line per
// instruction with the program index in a trailing comment. Label operands
// are printed with their resolved index so the listing documents what the
// machine will actually execute.
func Listing(p *Program) ([]byte, error) {
	d := lister{buf: new(bytes.Buffer)}
	for i, in := range p.Instrs {
		if in.Label != "" {
			d.writef("%s:", in.Label)
		}
		d.writef("\t%s", in.Op)
		switch opcodeArgs[in.Op] {
		case argInt:
			d.writef(" %d", in.Num)
		case argPrim:
			d.writef(" %s", in.Sym)
		case argLabel:
			d.writef(" %s (%d)", in.Target, in.TargetPC)
		case argLabelInt:
			d.writef(" %s (%d), %d", in.Target, in.TargetPC, in.Num)
		case argIntInt:
			d.writef(" %d, %d", in.Num, in.Num2)
		}
		d.writef("\t# %03d\n", i)
	}
	return d.buf.Bytes(), d.err
}

type lister struct {
	buf *bytes.Buffer
	err error
}

func (d *lister) writef(s string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.buf, s, args...)
}
