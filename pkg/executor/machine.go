// Package executor implements the interpreter: the per-slice state
// machine described in the governing specification (Joining/Syncing/
// Ok), BEGIN/END block capture, the full operator table, the CALL
// protocol, and the WHILE code-rewrite. This is the hard part the
// specification calls out — everything else in the repository exists
// to support this package.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/skeinlang/skein/pkg/activation"
	"github.com/skeinlang/skein/pkg/diag"
	"github.com/skeinlang/skein/pkg/dispatcher"
	"github.com/skeinlang/skein/pkg/namespace"
	"github.com/skeinlang/skein/pkg/token"
)

// Machine owns the namespace, the dispatcher, and the registry of
// live contexts by id. It is the runtime the CLI driver (§6, out of
// scope as a collaborator) constructs and drives.
type Machine struct {
	ns   *namespace.Namespace
	disp *dispatcher.Dispatcher
	sink diag.Sink

	mu       sync.RWMutex
	contexts map[uint64]*activation.Context
}

// NewMachine creates an empty Machine. sink receives every PRINT line
// and, if a slice fails, becomes the destination for the final ERROR
// line (the CLI, not this package, writes that line — Run only
// returns the error).
func NewMachine(sink diag.Sink) *Machine {
	return &Machine{
		ns:       namespace.New(),
		disp:     dispatcher.New(),
		sink:     sink,
		contexts: make(map[uint64]*activation.Context),
	}
}

// Load creates the root context, seeds its CODE stack with tokens in
// source order (so the first token is the first one popped), and
// readies it to run. It returns the root context so a caller (the
// CLI, or a test) can later read its OUT stack if desired.
func (m *Machine) Load(tokens []token.Value) *activation.Context {
	root := activation.New(m.ns)
	m.register(root)

	code := root.Code()
	// Pushing in reverse index order puts tokens[0] on top last, so
	// it is the first one Pop returns — equivalent to the original
	// VM's own two-step "push on a temp stack, then reverse-merge
	// into CODE" but without the intermediate stack.
	for i := len(tokens) - 1; i >= 0; i-- {
		v := tokens[i]
		code.Push(&v)
	}

	m.disp.EnqueueFront(root.ID())
	m.disp.AddLive(1)
	return root
}

func (m *Machine) register(c *activation.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[c.ID()] = c
}

func (m *Machine) lookup(id uint64) *activation.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contexts[id]
}

// Run starts the fixed-size worker pool (dispatcher.DefaultWorkers if
// workers<=0) and blocks until the live-context counter reaches zero
// or a slice returns a fatal error.
func (m *Machine) Run(ctx context.Context, workers int) error {
	return m.disp.RunWorkers(ctx, workers, m.slice)
}

// slice performs one executor slice on the context named by id,
// following the governing specification's five-step procedure:
// dequeue (done by the dispatcher before calling this), lock, inspect
// state, step the CODE stack until completion or suspension, unlock
// (via defer).
func (m *Machine) slice(id uint64) error {
	ctx := m.lookup(id)
	if ctx == nil {
		return fmt.Errorf("%w: dequeued context %d has no backing activation", ErrInvariant, id)
	}

	ctx.Lock()
	defer ctx.Unlock()

	current := ctx.Current()
	code := ctx.Code()

	switch ctx.State() {
	case activation.Joining:
		if !current.IsJoined() {
			ctx.Mark()
			m.disp.Enqueue(id)
			return nil
		}
		ctx.SetState(activation.Ok)
	case activation.Syncing:
		top, ok := current.Peek()
		if !ok {
			return fmt.Errorf("%w: not enough values to perform 'sync'", ErrUnderflow)
		}
		if top.State == token.NotYet {
			ctx.Mark()
			m.disp.Enqueue(id)
			return nil
		}
		ctx.SetState(activation.Ok)
	case activation.Ok:
		// fall through to the step loop
	}

	var (
		capturing  bool
		beginDepth int
		anonName   string
		captured   []*token.Value
	)

	for {
		ctx.Mark()
		v, ok := code.Pop()
		if !ok {
			if capturing {
				return fmt.Errorf("%w: CODE drained mid-block (unbalanced BEGIN/END)", ErrCapture)
			}
			return m.retire(ctx)
		}

		diag.Logger().Debug("step", "context", id, "mark", ctx.Marks(), "value", v.String())

		if capturing {
			if v.Type.IsOperator() {
				switch v.Type.Opcode() {
				case token.OpBegin:
					beginDepth++
				case token.OpEnd:
					beginDepth--
				}
			}
			if beginDepth == 0 {
				// v is the matching END: it closes the block and is not
				// itself part of its contents.
				capturing = false
				block := ctx.GetStack(anonName)
				// Tokens were captured in pop order (source order); the
				// block stack's top must hold the first instruction (see
				// DESIGN.md on capture orientation), so push them back in
				// reverse.
				for i := len(captured) - 1; i >= 0; i-- {
					block.Push(captured[i])
				}
				captured = nil
				sym := token.Sym(anonName)
				current.Push(&sym)
				continue
			}
			captured = append(captured, v)
			continue
		}

		if !v.Type.IsOperator() {
			current.Push(v)
			continue
		}

		if v.Type.Opcode() == token.OpBegin {
			anonName = ctx.SpawnNewAnonymousStack()
			beginDepth = 1
			capturing = true
			captured = nil
			continue
		}

		suspended, err := m.dispatch(ctx, current, code, v, id)
		if err != nil {
			return err
		}
		if suspended {
			return nil
		}
	}
}

// retire runs the governing specification's completion procedure: if
// the context has a caller waiting on a Sentinel, merge OUT into the
// delivery stack (non-reversing) and flip the Sentinel to Ok; either
// way, decrement the live-context counter.
func (m *Machine) retire(ctx *activation.Context) error {
	if rv := ctx.ReturnValue(); rv != nil {
		delivery := ctx.GetStack(rv.Raw)
		if delivery == nil {
			return fmt.Errorf("%w: return delivery stack %q not found", ErrMissingStack, rv.Raw)
		}
		delivery.Merge(ctx.Out(), false)
		rv.State = token.Ok
		rv.Type = token.TypeSymbol
	}
	m.disp.AddLive(-1)
	return nil
}
