package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mna/mainer"

	"github.com/mna/capucine/lang/asm"
	"github.com/mna/capucine/lang/machine"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	opts, err := c.machineOptions()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	var mode asm.Mode
	if c.Optimize {
		mode |= asm.Fuse
	}

	color := !opts.NoColor && isTerminal(stdio.Stdout)

	for _, file := range args {
		p, err := asm.LoadFile(file, mode)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}

		m := machine.New(p)
		m.Name = file
		m.Stdout = stdio.Stdout
		m.MaxSteps = opts.MaxSteps
		if opts.Trace {
			m.Trace = stdio.Stderr
		}

		res, err := m.Run(ctx)
		if err != nil {
			if errors.Is(err, machine.ErrUncaughtException) {
				fmt.Fprintf(stdio.Stderr, "%s: %s\n", file, err)
			} else {
				fmt.Fprintln(stdio.Stderr, err)
			}
			return err
		}

		if color {
			fmt.Fprintf(stdio.Stdout, "\x1b[32m= %s\x1b[0m\n", res)
		} else {
			fmt.Fprintf(stdio.Stdout, "= %s\n", res)
		}
	}
	return nil
}

func isTerminal(w interface{}) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
