package executor

import (
	"fmt"

	"github.com/skeinlang/skein/pkg/activation"
	"github.com/skeinlang/skein/pkg/stack"
	"github.com/skeinlang/skein/pkg/token"
)

// dispatch executes one non-literal, non-BEGIN operator. It returns
// suspended=true if the slice must end here (JOIN/SYNC leaving the
// context re-enqueued), with the CODE/CURRENT stacks already mutated
// as required. CALL does not suspend: the caller continues in the
// same slice.
func (m *Machine) dispatch(ctx *activation.Context, current, code *stack.Stack, v *token.Value, id uint64) (bool, error) {
	switch v.Type.Opcode() {
	case token.OpPush:
		return false, m.opPush(ctx, current)
	case token.OpPop:
		return false, m.opPop(ctx, current)
	case token.OpDef:
		return false, m.opDef(ctx, current)
	case token.OpMerge:
		return false, m.opMerge(ctx, current)
	case token.OpCall:
		return false, m.opCall(ctx, current)
	case token.OpJoin:
		// Nothing pending on CURRENT: continue without re-enqueueing.
		if current.IsJoined() {
			return false, nil
		}
		ctx.SetState(activation.Joining)
		m.disp.Enqueue(id)
		return true, nil
	case token.OpSync:
		ctx.SetState(activation.Syncing)
		m.disp.Enqueue(id)
		return true, nil
	case token.OpAdd:
		return false, binaryOp(current, "add", func(a, b int64) (int64, error) { return a + b, nil })
	case token.OpMul:
		return false, binaryOp(current, "mul", func(a, b int64) (int64, error) { return a * b, nil })
	case token.OpSub:
		return false, binaryOp(current, "sub", func(a, b int64) (int64, error) { return a - b, nil })
	case token.OpDiv:
		return false, binaryOp(current, "div", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, fmt.Errorf("DIV: division by zero")
			}
			return a / b, nil
		})
	case token.OpMod:
		return false, binaryOp(current, "mod", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, fmt.Errorf("MOD: division by zero")
			}
			return a % b, nil
		})
	case token.OpPrint:
		val, ok := current.Pop()
		if !ok {
			return false, fmt.Errorf("%w: not enough values to perform 'print'", ErrUnderflow)
		}
		m.sink.Print(*val)
		return false, nil
	case token.OpDup:
		return false, m.opDup(current)
	case token.OpWhile:
		return false, m.opWhile(ctx, current, code)
	case token.OpIf:
		return false, m.opIf(ctx, current, code)
	case token.OpLength:
		return false, m.opLength(ctx, current)
	case token.OpMacro:
		return false, m.opMacro(ctx, current, code)
	case token.OpSwap:
		return false, m.opSwap(ctx, current)
	case token.OpRotr, token.OpRotl:
		// Reserved no-ops; see DESIGN.md Open Questions.
		return false, nil
	case token.OpEnd:
		// A stray END outside block capture is a no-op, matching the
		// original VM's unhandled-opcode fallthrough.
		return false, nil
	default:
		return false, fmt.Errorf("%w: unrecognized opcode %d", ErrInvariant, v.Type.Opcode())
	}
}

func (m *Machine) opPush(ctx *activation.Context, current *stack.Stack) error {
	name, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'push'", ErrUnderflow)
	}
	value, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'push'", ErrUnderflow)
	}
	target := ctx.GetStack(name.Raw)
	if target == nil {
		return fmt.Errorf("%w: PUSH: stack not found: %q", ErrMissingStack, name.Raw)
	}
	target.Push(value)
	return nil
}

func (m *Machine) opPop(ctx *activation.Context, current *stack.Stack) error {
	name, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'pop'", ErrUnderflow)
	}
	target := ctx.GetStack(name.Raw)
	if target == nil {
		return fmt.Errorf("%w: POP: stack not found: %q", ErrMissingStack, name.Raw)
	}
	value, ok := target.Pop()
	if !ok {
		return fmt.Errorf("%w: POP: Target stack empty!", ErrTargetEmpty)
	}
	current.Push(value)
	return nil
}

func (m *Machine) opDef(ctx *activation.Context, current *stack.Stack) error {
	name, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'def'", ErrUnderflow)
	}
	value, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'def'", ErrUnderflow)
	}
	target := ctx.SpawnNewStack(name.Raw)
	if value.Type != token.TypeSymbol {
		target.Push(value)
		return nil
	}
	source := ctx.GetStack(value.Raw)
	if source == nil {
		return fmt.Errorf("%w: DEF: source stack not found: %q", ErrMissingStack, value.Raw)
	}
	for {
		v, ok := source.Pop()
		if !ok {
			break
		}
		target.Push(v)
	}
	return nil
}

func (m *Machine) opMerge(ctx *activation.Context, current *stack.Stack) error {
	name, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'merge'", ErrUnderflow)
	}
	target := ctx.GetStack(name.Raw)
	if target == nil {
		return fmt.Errorf("%w: MERGE: stack not found: %q", ErrMissingStack, name.Raw)
	}
	current.Merge(target, false)
	return nil
}

func (m *Machine) opSwap(ctx *activation.Context, current *stack.Stack) error {
	name, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'swap'", ErrUnderflow)
	}
	target := ctx.GetStack(name.Raw)
	if target == nil {
		return fmt.Errorf("%w: SWAP: stack not found: %q", ErrMissingStack, name.Raw)
	}
	top, ok := target.Pop()
	if !ok {
		return fmt.Errorf("%w: SWAP: not enough values on target stack", ErrUnderflow)
	}
	next, ok := target.Pop()
	if !ok {
		target.Push(top)
		return fmt.Errorf("%w: SWAP: not enough values on target stack", ErrUnderflow)
	}
	target.Push(top)
	target.Push(next)
	return nil
}

func (m *Machine) opLength(ctx *activation.Context, current *stack.Stack) error {
	name, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'length'", ErrUnderflow)
	}
	target := ctx.GetStack(name.Raw)
	if target == nil {
		return fmt.Errorf("%w: LENGTH: stack not found: %q", ErrMissingStack, name.Raw)
	}
	result := token.IntOf(int64(target.Size()))
	current.Push(&result)
	return nil
}

// opDup duplicates the top of CURRENT. A Sentinel is duplicated by
// handle — both copies are the same *token.Value, so a later flip to
// Ok is visible through either one (see DESIGN.md). Anything else is
// a shallow value copy.
func (m *Machine) opDup(current *stack.Stack) error {
	v, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'dup'", ErrUnderflow)
	}
	if v.Type == token.TypeSentinel {
		current.Push(v)
		current.Push(v)
		return nil
	}
	dup := *v
	current.Push(v)
	current.Push(&dup)
	return nil
}

// binaryOp implements ADD/MUL/SUB/DIV/MOD. b is popped first (top of
// CURRENT), a second; the result pushed is op(a, b). For ADD/MUL the
// two pops are order-insensitive since the callback is commutative.
func binaryOp(current *stack.Stack, name string, op func(a, b int64) (int64, error)) error {
	bv, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform '%s'", ErrUnderflow, name)
	}
	av, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform '%s'", ErrUnderflow, name)
	}
	a, err := av.Int64()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	b, err := bv.Int64()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	result, err := op(a, b)
	if err != nil {
		return err
	}
	value := token.IntOf(result)
	current.Push(&value)
	return nil
}
