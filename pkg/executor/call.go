package executor

import (
	"fmt"

	"github.com/skeinlang/skein/pkg/activation"
	"github.com/skeinlang/skein/pkg/stack"
	"github.com/skeinlang/skein/pkg/token"
)

// opCall implements the CALL protocol (governing specification §4.3):
// spawn a child context, attach a Sentinel as its return value, splice
// the named function body into its CODE, snapshot Symbol-typed
// parameters, extend its scope chain, and enqueue it at the head of
// the dispatcher queue while the caller continues in the same slice.
func (m *Machine) opCall(ctx *activation.Context, current *stack.Stack) error {
	nparamsVal, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'call'", ErrUnderflow)
	}
	funcNameVal, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'call'", ErrUnderflow)
	}
	nparams, err := nparamsVal.Int64()
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}

	funcStack := ctx.GetStack(funcNameVal.Raw)
	if funcStack == nil {
		return fmt.Errorf("%w: CALL: function stack not found: %q", ErrMissingStack, funcNameVal.Raw)
	}

	child := activation.New(m.ns)
	m.register(child)
	child.Lock()

	deliveryName := ctx.SpawnNewAnonymousStack()
	sentinel := token.PendingSentinel(deliveryName)
	child.SetReturnValue(&sentinel)

	// A named function stack was itself populated by DEF draining a
	// captured block (one order inversion); merging it in here with
	// reverse=true inverts it back so the body's first instruction
	// ends up on top of the child's CODE. See DESIGN.md.
	child.Code().NondestructiveMerge(funcStack, true)

	for i := int64(0); i < nparams; i++ {
		p, ok := current.Pop()
		if !ok {
			child.Unlock()
			return fmt.Errorf("%w: CALL: not enough parameters on CURRENT", ErrUnderflow)
		}
		if p.Type == token.TypeSymbol {
			source := ctx.GetStack(p.Raw)
			if source == nil {
				child.Unlock()
				return fmt.Errorf("%w: CALL: parameter stack not found: %q", ErrMissingStack, p.Raw)
			}
			snapName := ctx.SpawnNewAnonymousStack()
			snapStack := ctx.GetStack(snapName)
			snapStack.NondestructiveMerge(source, false)
			sym := token.Sym(snapName)
			child.Params().Push(&sym)
			continue
		}
		child.Params().Push(p)
	}

	child.MergeScope(ctx.Scope())
	child.Unlock()

	m.disp.EnqueueFront(child.ID())
	m.disp.AddLive(1)

	current.Push(&sentinel)
	return nil
}

// opWhile rewrites CODE so that execution continues as if by
// `test; if nonzero { body; body-sym; test-sym; while } {}`,
// per the governing specification's WHILE rewrite. The test and body
// blocks replay in forward (stable) order since they are raw captured
// blocks (top = first instruction); the freshly emitted BEGIN/END
// span is left for the executor's own live block capture to requote
// as the step loop reaches it.
func (m *Machine) opWhile(ctx *activation.Context, current, code *stack.Stack) error {
	testVal, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'while'", ErrUnderflow)
	}
	bodyVal, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'while'", ErrUnderflow)
	}

	testStack := ctx.GetStack(testVal.Raw)
	if testStack == nil {
		return fmt.Errorf("%w: WHILE: invalid test stack: %q", ErrMissingStack, testVal.Raw)
	}
	bodyStack := ctx.GetStack(bodyVal.Raw)
	if bodyStack == nil {
		return fmt.Errorf("%w: WHILE: invalid body stack: %q", ErrMissingStack, bodyVal.Raw)
	}

	tmp := stack.New()
	pushOp(tmp, token.OpIf)
	pushOp(tmp, token.OpEnd)
	pushOp(tmp, token.OpBegin)
	pushOp(tmp, token.OpEnd)
	pushOp(tmp, token.OpWhile)
	pushSym(tmp, testVal.Raw)
	pushSym(tmp, bodyVal.Raw)
	tmp.NondestructiveMerge(bodyStack, false)
	pushOp(tmp, token.OpBegin)
	tmp.NondestructiveMerge(testStack, false)

	code.Merge(tmp, false)
	return nil
}

// opIf pops false_name, true_name, test (top to bottom) and splices
// the selected branch's block into CODE in forward order.
func (m *Machine) opIf(ctx *activation.Context, current, code *stack.Stack) error {
	falseVal, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'if'", ErrUnderflow)
	}
	trueVal, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'if'", ErrUnderflow)
	}
	testVal, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'if'", ErrUnderflow)
	}

	trueStack := ctx.GetStack(trueVal.Raw)
	if trueStack == nil {
		return fmt.Errorf("%w: IF: stack (true) not found: %q", ErrMissingStack, trueVal.Raw)
	}
	falseStack := ctx.GetStack(falseVal.Raw)
	if falseStack == nil {
		return fmt.Errorf("%w: IF: stack (false) not found: %q", ErrMissingStack, falseVal.Raw)
	}

	test, err := testVal.Int64()
	if err != nil {
		return fmt.Errorf("if: %w", err)
	}
	if test != 0 {
		code.NondestructiveMerge(trueStack, false)
	} else {
		code.NondestructiveMerge(falseStack, false)
	}
	return nil
}

// opMacro splices the named stack into CODE in forward order so its
// entries execute starting with its first instruction.
func (m *Machine) opMacro(ctx *activation.Context, current, code *stack.Stack) error {
	nameVal, ok := current.Pop()
	if !ok {
		return fmt.Errorf("%w: not enough values to perform 'macro'", ErrUnderflow)
	}
	source := ctx.GetStack(nameVal.Raw)
	if source == nil {
		return fmt.Errorf("%w: MACRO: invalid source stack: %q", ErrMissingStack, nameVal.Raw)
	}
	code.NondestructiveMerge(source, false)
	return nil
}

func pushOp(s *stack.Stack, op token.Opcode) {
	v := token.Operator(op)
	s.Push(&v)
}

func pushSym(s *stack.Stack, name string) {
	v := token.Sym(name)
	s.Push(&v)
}
