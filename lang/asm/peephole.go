package asm

// fuse rewrites APPLY n immediately followed by RETURN r into the
// equivalent tail call APPTERM n, n+r. The rewrite runs on the decoded
// records before label resolution so that branch targets follow the
// surviving instructions. A RETURN that carries a label is a branch target
// and is left alone.
func fuse(instrs []Instr) []Instr {
	out := instrs[:0]
	for i := 0; i < len(instrs); i++ {
		in := instrs[i]
		if in.Op == APPLY && i+1 < len(instrs) &&
			instrs[i+1].Op == RETURN && instrs[i+1].Label == "" {

			n, r := in.Num, instrs[i+1].Num
			out = append(out, Instr{
				Label: in.Label,
				Op:    APPTERM,
				Num:   n,
				Num2:  n + r,
			})
			i++
			continue
		}
		out = append(out, in)
	}
	return out
}
