package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/mna/capucine/lang/asm"
)

func (c *Cmd) Dasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var mode asm.Mode
	if c.Optimize {
		mode |= asm.Fuse
	}

	for _, file := range args {
		p, err := asm.LoadFile(file, mode)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
		b, err := asm.Listing(p)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
		if _, err := stdio.Stdout.Write(b); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
	}
	return nil
}
