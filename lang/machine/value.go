package machine

import (
	"fmt"
	"strconv"
)

// Value is the interface implemented by any value manipulated by the
// machine: program values (integers, booleans, unit, heap blocks,
// closures) as well as the frame-internal values the calling convention
// and the trap chain push on the stack.
type Value interface {
	// String returns the string representation of the value.
	String() string

	// Type returns a short string describing the value's type.
	Type() string
}

// Int is the type of an integer value.
type Int int64

var _ Value = Int(0)

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (i Int) Type() string   { return "int" }

// Cmp implements comparison of two Int values.
func (i Int) Cmp(j Int) int {
	if i > j {
		return +1
	} else if i < j {
		return -1
	}
	return 0
}

// Bool is the type of boolean values.
type Bool bool

const (
	False Bool = false
	True  Bool = true
)

// Bool is a Value.
var _ Value = True

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (b Bool) Type() string { return "bool" }

// UnitType is the type of unit. Its only legal value is Unit. (We
// represent it as a number, not struct{}, so that Unit may be constant.)
type UnitType byte

const Unit = UnitType(0)

// Unit is a Value.
var _ Value = Unit

func (UnitType) String() string { return "()" }
func (UnitType) Type() string   { return "unit" }

// A Block is a mutable vector of values, the runtime representation of
// tuples, records, arrays and constructor payloads. Blocks are shared by
// reference: a block reachable from several stack, environment or
// accumulator slots aliases the same cells, and an in-place write is
// visible through every alias.
type Block struct {
	cells []Value
}

var _ Value = (*Block)(nil)

// NewBlock returns a block owning the specified cells. Callers should not
// subsequently modify cells.
func NewBlock(cells []Value) *Block { return &Block{cells: cells} }

func (b *Block) String() string { return fmt.Sprintf("block(%p n=%d)", b, len(b.cells)) }
func (b *Block) Type() string   { return "block" }
func (b *Block) Len() int       { return len(b.cells) }

// Field returns the i-th cell of the block.
func (b *Block) Field(i int) (Value, error) {
	if i < 0 || i >= len(b.cells) {
		return nil, fmt.Errorf("%w: block field %d of %d", ErrOutOfRange, i, len(b.cells))
	}
	return b.cells[i], nil
}

// SetField overwrites the i-th cell of the block in place.
func (b *Block) SetField(i int, v Value) error {
	if i < 0 || i >= len(b.cells) {
		return fmt.Errorf("%w: block field %d of %d", ErrOutOfRange, i, len(b.cells))
	}
	b.cells[i] = v
	return nil
}

// A Closure pairs a code pointer (a program index, never a host pointer)
// with the captured environment. The environment slice is owned by the
// closure; blocks inside it remain shared by reference.
type Closure struct {
	PC  int
	Env []Value
}

var _ Value = (*Closure)(nil)

func (c *Closure) String() string { return fmt.Sprintf("closure(%p pc=%d)", c, c.PC) }
func (c *Closure) Type() string   { return "closure" }

// Frame-internal values. The calling convention saves the caller's code
// pointer, environment and pending-argument count as stack cells, and the
// trap chain saves the previous trap marker; each is a Value so that
// every stack cell is a Value. A program that reaches them through ACC
// sees opaque values that no primitive accepts.

// address is a saved code pointer.
type address int

func (a address) String() string { return fmt.Sprintf("addr(%d)", int(a)) }
func (a address) Type() string   { return "address" }

// environment is a saved captured-value sequence.
type environment []Value

func (e environment) String() string { return fmt.Sprintf("env(n=%d)", len(e)) }
func (e environment) Type() string   { return "environment" }

// counter is a saved extra-args count or trap marker offset.
type counter int

func (c counter) String() string { return strconv.Itoa(int(c)) }
func (c counter) Type() string   { return "counter" }

// isFalse reports whether v is false for the purpose of BRANCHIFNOT: the
// canonical False, or the integer 0 (the unboxed representation of false
// in the machine's source dialect).
func isFalse(v Value) bool {
	switch v := v.(type) {
	case Bool:
		return v == False
	case Int:
		return v == 0
	}
	return false
}

// equal implements the machine's polymorphic equality: structural for
// Int, Bool and Unit, identity for blocks and closures, and false across
// variants.
func equal(x, y Value) bool {
	switch x := x.(type) {
	case Int:
		y, ok := y.(Int)
		return ok && x == y
	case Bool:
		y, ok := y.(Bool)
		return ok && x == y
	case UnitType:
		_, ok := y.(UnitType)
		return ok
	case *Block:
		y, ok := y.(*Block)
		return ok && x == y
	case *Closure:
		y, ok := y.(*Closure)
		return ok && x == y
	}
	return false
}
