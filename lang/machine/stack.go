package machine

import "fmt"

// Stack is the machine's argument stack. Its API indexes from the top:
// index 0 is the most recently pushed value. Every frame layout of the
// calling convention relies on that convention. Internally the slice
// grows at the end, so pushes and single pops are O(1) amortised.
type Stack struct {
	elems []Value
}

// Len returns the number of values on the stack.
func (s *Stack) Len() int { return len(s.elems) }

// Push makes v the new top of the stack.
func (s *Stack) Push(v Value) { s.elems = append(s.elems, v) }

// PushAll pushes vs in the given order: vs[0] becomes the new top.
func (s *Stack) PushAll(vs []Value) {
	for i := len(vs) - 1; i >= 0; i-- {
		s.elems = append(s.elems, vs[i])
	}
}

// Peek returns the i-th value from the top without removing it.
func (s *Stack) Peek(i int) (Value, error) {
	if i < 0 || i >= len(s.elems) {
		return nil, fmt.Errorf("%w: stack index %d of %d", ErrOutOfRange, i, len(s.elems))
	}
	return s.elems[len(s.elems)-1-i], nil
}

// Pop removes and returns the top value.
func (s *Stack) Pop() (Value, error) {
	if len(s.elems) == 0 {
		return nil, fmt.Errorf("%w: pop on empty stack", ErrOutOfRange)
	}
	v := s.elems[len(s.elems)-1]
	s.elems[len(s.elems)-1] = nil
	s.elems = s.elems[:len(s.elems)-1]
	return v, nil
}

// PopN removes and returns the top n values, top first. When n exceeds
// the stack size it drains what is available.
func (s *Stack) PopN(n int) []Value {
	if n < 0 {
		n = 0
	}
	if n > len(s.elems) {
		n = len(s.elems)
	}
	vs := make([]Value, n)
	for i := 0; i < n; i++ {
		vs[i], _ = s.Pop()
	}
	return vs
}

// SetAt replaces the value Peek(i) returns without changing the size.
func (s *Stack) SetAt(i int, v Value) error {
	if i < 0 || i >= len(s.elems) {
		return fmt.Errorf("%w: stack index %d of %d", ErrOutOfRange, i, len(s.elems))
	}
	s.elems[len(s.elems)-1-i] = v
	return nil
}

// TruncateTo drops values until only size remain, counted from the
// bottom. It is the unwinding primitive of the trap chain.
func (s *Stack) TruncateTo(size int) {
	if size < 0 || size >= len(s.elems) {
		return
	}
	for i := size; i < len(s.elems); i++ {
		s.elems[i] = nil
	}
	s.elems = s.elems[:size]
}
