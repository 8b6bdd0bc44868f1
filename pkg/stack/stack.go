// Package stack implements the thread-safe, mutex-serialized value
// stack that is the VM's only mutable data structure: every named
// stack in the namespace, and every context's four owned stacks, is
// one of these.
package stack

import (
	"sync"
	"sync/atomic"

	"github.com/skeinlang/skein/pkg/token"
)

// nextID hands out process-unique Stack ids, mirroring the original
// VM's static next_stack_id counter.
var nextID atomic.Uint64

// Stack is an ordered, thread-safe sequence of Value handles. The top
// of the stack is the end of entries; push appends, pop/peek act on
// the last element.
//
// Entries are stored as *token.Value, not token.Value, even though
// every operator except DUP treats a Value as immutable once built:
// a Sentinel is the one Value that mutates in place (NotYet -> Ok),
// and that flip must be visible through every reference to it —
// the copy sitting on the spawning context's CURRENT stack and the
// copy held as a child context's return-value handle are the *same*
// Sentinel. Storing values by pointer is what makes that single
// flip observable everywhere at once, matching the original VM's own
// pervasive use of IrrealValue* rather than IrrealValue.
type Stack struct {
	id      uint64
	mu      sync.Mutex
	entries []*token.Value
}

// New creates an empty Stack with a fresh, process-unique id.
func New() *Stack {
	return &Stack{id: nextID.Add(1) - 1, entries: make([]*token.Value, 0, 16)}
}

// ID returns the stack's process-unique id.
func (s *Stack) ID() uint64 { return s.id }

// Push appends v to the top of the stack.
func (s *Stack) Push(v *token.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, v)
}

// Pop removes and returns the top entry. ok is false if the stack was
// empty.
func (s *Stack) Pop() (*token.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil, false
	}
	top := len(s.entries) - 1
	v := s.entries[top]
	s.entries = s.entries[:top]
	return v, true
}

// Peek returns the top entry without removing it. ok is false if the
// stack is empty.
func (s *Stack) Peek() (*token.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil, false
	}
	return s.entries[len(s.entries)-1], true
}

// Size returns the number of entries currently on the stack.
func (s *Stack) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// IsJoined reports whether every entry on the stack is State==Ok —
// i.e. nothing on it is a still-pending Sentinel.
func (s *Stack) IsJoined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.entries {
		if v.State == token.NotYet {
			return false
		}
	}
	return true
}

// drainAll empties the stack and returns its former entries, in
// bottom-to-top order. Used by Merge to atomically take ownership of
// the source stack's contents.
func (s *Stack) drainAll() []*token.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.entries
	s.entries = nil
	return out
}

func (s *Stack) readAll() []*token.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*token.Value, len(s.entries))
	copy(out, s.entries)
	return out
}

// Merge destructively transfers every entry of other into s, emptying
// other in the process.
//
// reverse=true appends entries in the order they would be popped from
// other (LIFO), which inverts their relative order. reverse=false
// buffers them first and then appends in their original relative
// order — a stable concatenation. (The governing specification fixes
// this as the contract; the original VM's equivalent C++ routine has
// a bug where its "stable" branch accidentally matches its "inverted"
// branch — see DESIGN.md. This implementation follows the
// specification, not that bug.)
func (s *Stack) Merge(other *Stack, reverse bool) {
	drained := other.drainAll()
	if reverse {
		// drained is bottom-to-top; popping other one at a time would
		// yield it top-to-bottom, i.e. reversed relative to drained.
		for i := len(drained) - 1; i >= 0; i-- {
			s.Push(drained[i])
		}
		return
	}
	for _, v := range drained {
		s.Push(v)
	}
}

// NondestructiveMerge has Merge's two orderings but reads other's
// entries without removing them, so the same source stack (e.g. a
// captured block) can be executed more than once.
func (s *Stack) NondestructiveMerge(other *Stack, reverse bool) {
	snapshot := other.readAll()
	if reverse {
		for i := len(snapshot) - 1; i >= 0; i-- {
			s.Push(snapshot[i])
		}
		return
	}
	for _, v := range snapshot {
		s.Push(v)
	}
}

// RotateStack is declared but unimplemented, mirroring the original
// VM's empty, commented-out rotate_stack body. ROTR/ROTL never call
// it; it exists only because the governing specification names it as
// a documented open question, not a behavior to provide.
func (s *Stack) RotateStack(dir bool) {
	panic("stack: RotateStack is unimplemented (ROTR/ROTL are no-ops; see DESIGN.md)")
}
