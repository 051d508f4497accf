// Package machine implements the virtual machine that executes the
// textual bytecode dialect loaded by the asm package: a ZINC-style
// abstract machine with an accumulator, an argument stack, an environment
// register and an extra-args counter driving the curried calling
// convention, plus a trap chain for the exception mechanism.
package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/mna/capucine/lang/asm"
)

// Errors reported by the machine at run time. They are wrapped with
// opcode and operand context; test with errors.Is.
var (
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrOutOfRange        = errors.New("out of range")
	ErrUncaughtException = errors.New("uncaught exception")
)

// A Machine executes one loaded program. The zero value is not usable,
// call New. A machine is strictly single-threaded: one Run call, one
// interpreter loop, no sharing between machines.
type Machine struct {
	// Name is an optional name that describes the machine, mostly for
	// debugging.
	Name string

	// Stdout is the standard output abstraction for the machine, written
	// to by the print primitive. If nil, os.Stdout is used.
	Stdout io.Writer

	// Trace, when non-nil, receives one line of machine state per executed
	// instruction.
	Trace io.Writer

	// MaxSteps is the maximum number of executed instructions before the
	// machine is cancelled. A value <= 0 means no limit.
	MaxSteps int

	prog  *asm.Program
	stack Stack
	acc   Value
	env   []Value
	pc    int
	extra int
	trap  int // stack size down to the live trap frame, -1 if absent

	ctx       context.Context
	ctxCancel func()
	cancelled atomic.Bool

	steps, maxSteps uint64
	stdout          io.Writer
}

// New returns a machine ready to execute p from program index 0.
func New(p *asm.Program) *Machine {
	return &Machine{prog: p, acc: Unit, trap: -1}
}

// Acc returns the current accumulator value.
func (m *Machine) Acc() Value { return m.acc }

// StackLen returns the current argument stack size.
func (m *Machine) StackLen() int { return m.stack.Len() }

func (m *Machine) init(ctx context.Context) {
	if m.MaxSteps <= 0 {
		m.maxSteps-- // (MaxUint64)
	} else {
		m.maxSteps = uint64(m.MaxSteps)
	}
	if m.Stdout != nil {
		m.stdout = m.Stdout
	} else {
		m.stdout = os.Stdout
	}

	ctx, cancel := context.WithCancel(ctx)
	m.ctx = ctx
	m.ctxCancel = cancel
	go func() {
		<-ctx.Done()
		m.cancelled.Store(true)
	}()
}

// Run executes the program until STOP or a fault. On STOP it returns the
// accumulator, the program's result. A RAISE with no live trap returns an
// ErrUncaughtException wrapping error; an opcode precondition violation
// returns an ErrTypeMismatch or ErrOutOfRange wrapping error, except an
// integer division by zero, whose error wraps neither.
func (m *Machine) Run(ctx context.Context) (Value, error) {
	if m.ctx != nil {
		return nil, fmt.Errorf("machine %s is already executing a program", m.Name)
	}
	m.init(ctx)
	defer m.ctxCancel()

	for {
		m.steps++
		if m.steps > m.maxSteps {
			return nil, fmt.Errorf("machine cancelled: step limit reached")
		}
		if m.cancelled.Load() {
			return nil, fmt.Errorf("machine cancelled: %s", context.Cause(m.ctx))
		}

		if m.pc < 0 || m.pc >= len(m.prog.Instrs) {
			return nil, fmt.Errorf("%w: pc %d of %d instructions", ErrOutOfRange, m.pc, len(m.prog.Instrs))
		}
		fpc := m.pc
		in := m.prog.Instrs[fpc]
		m.pc++

		done, err := m.step(fpc, in)
		if err != nil {
			return nil, fmt.Errorf("pc %d (%s): %w", fpc, in.Op, err)
		}
		if m.Trace != nil {
			fmt.Fprintf(m.Trace, "%04d %-24s acc=%s sp=%d env=%d extra=%d\n",
				fpc, in, m.acc, m.stack.Len(), len(m.env), m.extra)
		}
		if done {
			return m.acc, nil
		}
	}
}

// step executes a single instruction. It reports done=true on STOP.
func (m *Machine) step(fpc int, in asm.Instr) (done bool, err error) {
	switch in.Op {
	case asm.CONST:
		m.acc = Int(in.Num)

	case asm.PRIM:
		return false, m.prim(in.Sym)

	case asm.BRANCH:
		m.pc = in.TargetPC

	case asm.BRANCHIFNOT:
		if isFalse(m.acc) {
			m.pc = in.TargetPC
		}

	case asm.PUSH:
		m.stack.Push(m.acc)

	case asm.POP:
		_, err = m.stack.Pop()
		return false, err

	case asm.ACC:
		v, err := m.stack.Peek(in.Num)
		if err != nil {
			return false, err
		}
		m.acc = v

	case asm.ENVACC:
		v, err := m.envAt(in.Num)
		if err != nil {
			return false, err
		}
		m.acc = v

	case asm.ASSIGN:
		if err := m.stack.SetAt(in.Num, m.acc); err != nil {
			return false, err
		}
		m.acc = Unit

	case asm.CLOSURE:
		var captured []Value
		if in.Num > 0 {
			m.stack.Push(m.acc)
			captured = m.stack.PopN(in.Num)
		}
		m.acc = &Closure{PC: in.TargetPC, Env: captured}

	case asm.CLOSUREREC:
		// the recursive closure stores its own code pointer as env[0] so
		// that OFFSETCLOSURE can rebuild a self-reference, and it is pushed
		// as its own first local
		var captured []Value
		if in.Num > 0 {
			m.stack.Push(m.acc)
			captured = m.stack.PopN(in.Num)
		}
		env := make([]Value, 0, len(captured)+1)
		env = append(env, address(in.TargetPC))
		env = append(env, captured...)
		m.acc = &Closure{PC: in.TargetPC, Env: env}
		m.stack.Push(m.acc)

	case asm.OFFSETCLOSURE:
		self, err := m.envAt(0)
		if err != nil {
			return false, err
		}
		a, ok := self.(address)
		if !ok {
			return false, fmt.Errorf("%w: env[0] is not a code pointer, got %s", ErrTypeMismatch, self.Type())
		}
		m.acc = &Closure{PC: int(a), Env: m.env}

	case asm.APPLY:
		c, ok := m.acc.(*Closure)
		if !ok {
			return false, fmt.Errorf("%w: apply of non-closure %s", ErrTypeMismatch, m.acc.Type())
		}
		args := m.stack.PopN(in.Num)
		m.stack.Push(counter(m.extra))
		m.stack.Push(environment(m.env))
		m.stack.Push(address(m.pc))
		m.stack.PushAll(args)
		m.pc, m.env, m.extra = c.PC, c.Env, in.Num-1

	case asm.APPTERM:
		c, ok := m.acc.(*Closure)
		if !ok {
			return false, fmt.Errorf("%w: apply of non-closure %s", ErrTypeMismatch, m.acc.Type())
		}
		args := m.stack.PopN(in.Num)
		if drop := in.Num2 - in.Num; drop > 0 {
			m.stack.PopN(drop) // dead locals of the caller
		}
		m.stack.PushAll(args)
		m.pc, m.env = c.PC, c.Env
		m.extra += in.Num - 1

	case asm.RETURN:
		m.stack.PopN(in.Num)
		if m.extra == 0 {
			return false, m.restoreFrame()
		}
		// over-application: the callee returned a new function and there
		// are arguments waiting on the stack
		c, ok := m.acc.(*Closure)
		if !ok {
			return false, fmt.Errorf("%w: over-application of non-closure %s", ErrTypeMismatch, m.acc.Type())
		}
		m.extra--
		m.pc, m.env = c.PC, c.Env

	case asm.RESTART:
		if len(m.env) == 0 {
			return false, fmt.Errorf("%w: restart with an empty environment", ErrOutOfRange)
		}
		saved, ok := m.env[0].(environment)
		if !ok {
			return false, fmt.Errorf("%w: env[0] is not an environment, got %s", ErrTypeMismatch, m.env[0].Type())
		}
		m.stack.PushAll(m.env[1:])
		m.extra += len(m.env) - 1
		m.env = saved

	case asm.GRAB:
		if m.extra >= in.Num {
			m.extra -= in.Num
			break
		}
		// partial application: capture the arguments received so far in a
		// closure and return it to the caller. The closure's code pointer
		// is the RESTART preceding this GRAB, so that applying it pushes
		// the captured arguments back before the GRAB runs again.
		popped := m.stack.PopN(m.extra + 1)
		env := make([]Value, 0, len(popped)+1)
		env = append(env, environment(m.env))
		env = append(env, popped...)
		m.acc = &Closure{PC: fpc - 1, Env: env}
		return false, m.restoreFrame()

	case asm.MAKEBLOCK:
		if in.Num > 0 {
			cells := make([]Value, 0, in.Num)
			cells = append(cells, m.acc)
			cells = append(cells, m.stack.PopN(in.Num-1)...)
			m.acc = NewBlock(cells)
		}

	case asm.GETFIELD:
		b, err := m.accBlock()
		if err != nil {
			return false, err
		}
		v, err := b.Field(in.Num)
		if err != nil {
			return false, err
		}
		m.acc = v

	case asm.SETFIELD:
		v, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		b, err := m.accBlock()
		if err != nil {
			return false, err
		}
		if err := b.SetField(in.Num, v); err != nil {
			return false, err
		}

	case asm.VECTLENGTH:
		b, err := m.accBlock()
		if err != nil {
			return false, err
		}
		m.acc = Int(b.Len())

	case asm.GETVECTITEM:
		n, err := m.popIndex()
		if err != nil {
			return false, err
		}
		b, err := m.accBlock()
		if err != nil {
			return false, err
		}
		v, err := b.Field(n)
		if err != nil {
			return false, err
		}
		m.acc = v

	case asm.SETVECTITEM:
		n, err := m.popIndex()
		if err != nil {
			return false, err
		}
		v, err := m.stack.Pop()
		if err != nil {
			return false, err
		}
		b, err := m.accBlock()
		if err != nil {
			return false, err
		}
		if err := b.SetField(n, v); err != nil {
			return false, err
		}
		m.acc = Unit

	case asm.PUSHTRAP:
		m.stack.PushAll([]Value{
			address(in.TargetPC),
			counter(m.trap),
			environment(m.env),
			counter(m.extra),
		})
		m.trap = m.stack.Len()

	case asm.POPTRAP:
		if _, err := m.stack.Pop(); err != nil {
			return false, err
		}
		prev, err := m.popCounter()
		if err != nil {
			return false, err
		}
		m.trap = prev
		m.stack.PopN(2)

	case asm.RAISE:
		if m.trap < 0 {
			return false, fmt.Errorf("%w: %s", ErrUncaughtException, m.acc)
		}
		m.stack.TruncateTo(m.trap)
		handler, err := m.popAddress()
		if err != nil {
			return false, err
		}
		prev, err := m.popCounter()
		if err != nil {
			return false, err
		}
		env, err := m.popEnvironment()
		if err != nil {
			return false, err
		}
		extra, err := m.popCounter()
		if err != nil {
			return false, err
		}
		// control resumes at the handler with the raised value in acc
		m.pc, m.trap, m.env, m.extra = handler, prev, env, extra

	case asm.STOP:
		return true, nil

	default:
		panic(fmt.Sprintf("unimplemented: %s", in.Op))
	}
	return false, nil
}

// restoreFrame pops a three-cell return frame and restores the caller's
// code pointer, environment and pending-argument count.
func (m *Machine) restoreFrame() error {
	pc, err := m.popAddress()
	if err != nil {
		return err
	}
	env, err := m.popEnvironment()
	if err != nil {
		return err
	}
	extra, err := m.popCounter()
	if err != nil {
		return err
	}
	m.pc, m.env, m.extra = pc, env, extra
	return nil
}

func (m *Machine) envAt(i int) (Value, error) {
	if i < 0 || i >= len(m.env) {
		return nil, fmt.Errorf("%w: env index %d of %d", ErrOutOfRange, i, len(m.env))
	}
	return m.env[i], nil
}

func (m *Machine) accBlock() (*Block, error) {
	b, ok := m.acc.(*Block)
	if !ok {
		return nil, fmt.Errorf("%w: expected a block, got %s", ErrTypeMismatch, m.acc.Type())
	}
	return b, nil
}

func (m *Machine) popIndex() (int, error) {
	v, err := m.stack.Pop()
	if err != nil {
		return 0, err
	}
	i, ok := v.(Int)
	if !ok {
		return 0, fmt.Errorf("%w: expected an int index, got %s", ErrTypeMismatch, v.Type())
	}
	return int(i), nil
}

func (m *Machine) popAddress() (int, error) {
	v, err := m.stack.Pop()
	if err != nil {
		return 0, err
	}
	a, ok := v.(address)
	if !ok {
		return 0, fmt.Errorf("%w: corrupted frame: expected an address, got %s", ErrTypeMismatch, v.Type())
	}
	return int(a), nil
}

func (m *Machine) popEnvironment() ([]Value, error) {
	v, err := m.stack.Pop()
	if err != nil {
		return nil, err
	}
	e, ok := v.(environment)
	if !ok {
		return nil, fmt.Errorf("%w: corrupted frame: expected an environment, got %s", ErrTypeMismatch, v.Type())
	}
	return e, nil
}

func (m *Machine) popCounter() (int, error) {
	v, err := m.stack.Pop()
	if err != nil {
		return 0, err
	}
	c, ok := v.(counter)
	if !ok {
		return 0, fmt.Errorf("%w: corrupted frame: expected a counter, got %s", ErrTypeMismatch, v.Type())
	}
	return int(c), nil
}
