package machine

import (
	"fmt"
)

// prim executes the PRIM operator op. Unary operators act on the
// accumulator; binary operators take the accumulator as left operand and
// pop the right operand off the stack. The result is left in the
// accumulator.
func (m *Machine) prim(op string) error {
	switch op {
	case "not":
		b, ok := m.acc.(Bool)
		if !ok {
			return fmt.Errorf("%w: not requires a bool, got %s", ErrTypeMismatch, m.acc.Type())
		}
		m.acc = !b
		return nil

	case "print":
		i, ok := m.acc.(Int)
		if !ok {
			return fmt.Errorf("%w: print requires an int, got %s", ErrTypeMismatch, m.acc.Type())
		}
		if _, err := fmt.Fprintf(m.stdout, "%c\n", rune(i)); err != nil {
			return err
		}
		m.acc = Unit
		return nil
	}

	y, err := m.stack.Pop()
	if err != nil {
		return err
	}
	z, err := binary(op, m.acc, y)
	if err != nil {
		return err
	}
	m.acc = z
	return nil
}

// binary applies the binary operator op to x and y. Arithmetic and
// ordering require Int operands, and/or require Bool operands, equality
// is polymorphic.
func binary(op string, x, y Value) (Value, error) {
	switch op {
	case "+", "-", "*", "/":
		xi, yi, err := intOperands(op, x, y)
		if err != nil {
			return nil, err
		}
		switch op {
		case "+":
			return xi + yi, nil
		case "-":
			return xi - yi, nil
		case "*":
			return xi * yi, nil
		default:
			if yi == 0 {
				return nil, fmt.Errorf("integer division by zero")
			}
			// Go integer division truncates toward zero
			return xi / yi, nil
		}

	case "and", "or":
		xb, ok := x.(Bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires bools, got %s", ErrTypeMismatch, op, x.Type())
		}
		yb, ok := y.(Bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires bools, got %s", ErrTypeMismatch, op, y.Type())
		}
		if op == "and" {
			return xb && yb, nil
		}
		return xb || yb, nil

	case "=":
		return Bool(equal(x, y)), nil
	case "<>":
		return Bool(!equal(x, y)), nil

	case "<", "<=", ">", ">=":
		xi, yi, err := intOperands(op, x, y)
		if err != nil {
			return nil, err
		}
		c := xi.Cmp(yi)
		switch op {
		case "<":
			return Bool(c < 0), nil
		case "<=":
			return Bool(c <= 0), nil
		case ">":
			return Bool(c > 0), nil
		default:
			return Bool(c >= 0), nil
		}
	}
	return nil, fmt.Errorf("internal error: unknown primitive %s", op)
}

func intOperands(op string, x, y Value) (Int, Int, error) {
	xi, ok := x.(Int)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s requires ints, got %s", ErrTypeMismatch, op, x.Type())
	}
	yi, ok := y.(Int)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s requires ints, got %s", ErrTypeMismatch, op, y.Type())
	}
	return xi, yi, nil
}
