// Package activation implements Context, the VM's activation record:
// the four well-known stacks every running computation owns, its
// scope chain for name resolution, its suspension state, an optional
// return-value Sentinel handle, and a diagnostic step counter.
package activation

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/skeinlang/skein/pkg/namespace"
	"github.com/skeinlang/skein/pkg/stack"
	"github.com/skeinlang/skein/pkg/token"
)

// State is a Context's suspension state.
type State uint8

const (
	Ok State = iota
	Joining
	Syncing
)

func (s State) String() string {
	switch s {
	case Ok:
		return "Ok"
	case Joining:
		return "Joining"
	case Syncing:
		return "Syncing"
	default:
		return "unknown"
	}
}

const (
	stackCurrent = "CURRENT"
	stackParams  = "PARAMS"
	stackCode    = "CODE"
	stackOut     = "OUT"
)

var nextContextID atomic.Uint64
var nextAnonID atomic.Uint64

// Context is one activation record: a context id, its well-known
// stacks, its scope chain (searched in order by getStack), its
// suspension state, and the Sentinel (if any) a caller is waiting on
// for this context's result.
type Context struct {
	mu sync.Mutex

	id    uint64
	prefix string
	ns    *namespace.Namespace

	scope []string
	state State

	returnValue *token.Value // points at the Sentinel held by the caller, if any
	mark        uint64
}

// New creates a Context with freshly minted CURRENT/PARAMS/CODE/OUT
// stacks registered in ns under its own prefix, and a one-entry scope
// chain containing only that prefix.
func New(ns *namespace.Namespace) *Context {
	id := nextContextID.Add(1) - 1
	prefix := fmt.Sprintf("%d::", id)

	c := &Context{id: id, prefix: prefix, ns: ns, scope: []string{prefix}, state: Ok}

	ns.Define(prefix+stackCurrent, stack.New())
	ns.Define(prefix+stackParams, stack.New())
	ns.Define(prefix+stackCode, stack.New())
	ns.Define(prefix+stackOut, stack.New())

	return c
}

// ID returns the context's process-unique id.
func (c *Context) ID() uint64 { return c.id }

// Prefix returns the context's namespace prefix ("<id>::").
func (c *Context) Prefix() string { return c.prefix }

// Lock/Unlock serialize all executor work on this context; an
// executor slice holds this lock from dequeue to yield/completion.
func (c *Context) Lock()   { c.mu.Lock() }
func (c *Context) Unlock() { c.mu.Unlock() }

// State returns the context's current suspension state.
func (c *Context) State() State { return c.state }

// SetState sets the context's suspension state.
func (c *Context) SetState(s State) { c.state = s }

// Mark increments the diagnostic step counter.
func (c *Context) Mark() { c.mark++ }

// Marks returns the number of steps this context has executed.
func (c *Context) Marks() uint64 { return c.mark }

// Current, Params, Code, and Out return the context's four well-known
// stacks. They are always present — New() registers them eagerly —
// so these never return nil.
func (c *Context) Current() *stack.Stack { return c.ns.Lookup(c.prefix + stackCurrent) }
func (c *Context) Params() *stack.Stack  { return c.ns.Lookup(c.prefix + stackParams) }
func (c *Context) Code() *stack.Stack    { return c.ns.Lookup(c.prefix + stackCode) }
func (c *Context) Out() *stack.Stack     { return c.ns.Lookup(c.prefix + stackOut) }

// OutName returns the qualified name of this context's OUT stack.
func (c *Context) OutName() string { return c.prefix + stackOut }

// GetStack walks the scope chain in order and returns the first stack
// bound to localName, or nil if none of the prefixes bind it.
func (c *Context) GetStack(localName string) *stack.Stack {
	return c.ns.Resolve(c.scope, localName)
}

// SpawnNewStack creates (or replaces) a stack named localName under
// this context's own prefix. DEF relies on the replace behavior.
func (c *Context) SpawnNewStack(localName string) *stack.Stack {
	s := stack.New()
	c.ns.Define(c.prefix+localName, s)
	return s
}

// SpawnNewAnonymousStack mints a fresh "_anon_<n>" name under this
// context's prefix, registers an empty stack there, and returns the
// local name.
func (c *Context) SpawnNewAnonymousStack() string {
	name := fmt.Sprintf("_anon_%d", nextAnonID.Add(1)-1)
	c.ns.Define(c.prefix+name, stack.New())
	return name
}

// Scope returns the context's current scope chain (ordered prefixes).
func (c *Context) Scope() []string {
	out := make([]string, len(c.scope))
	copy(out, c.scope)
	return out
}

// PushScope appends one prefix to the end of the scope chain.
func (c *Context) PushScope(prefix string) {
	c.scope = append(c.scope, prefix)
}

// MergeScope appends levels to the scope chain in their given order,
// so that the first entry of levels (typically a caller's own,
// most-local prefix) is searched right after this context's own
// prefix, and the caller's outer prefixes follow it.
func (c *Context) MergeScope(levels []string) {
	c.scope = append(c.scope, levels...)
}

// SetReturnValue attaches the Sentinel a caller is waiting on for this
// context's eventual OUT contents.
func (c *Context) SetReturnValue(v *token.Value) { c.returnValue = v }

// ReturnValue returns the attached Sentinel, or nil if this context
// has no caller waiting on it (e.g. the root context).
func (c *Context) ReturnValue() *token.Value { return c.returnValue }
