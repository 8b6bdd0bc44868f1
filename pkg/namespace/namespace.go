// Package namespace implements the process-wide qualified-name ->
// Stack mapping every context's scope chain resolves against.
//
// A qualified name is "<context-prefix><local-name>", where a context
// prefix is "<context-id>::". Stacks are never removed once created —
// the namespace only grows for the lifetime of a run, matching the
// original VM's global_stacks map.
package namespace

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/skeinlang/skein/pkg/stack"
)

// resolveCacheSize bounds the front-cache of recently resolved
// (scope-chain, local-name) lookups. It is a pure performance cache:
// a miss always falls through to the authoritative map below, so its
// size only trades memory for hit rate, never correctness.
const resolveCacheSize = 4096

// Namespace is the shared name -> Stack map. It is safe for
// concurrent use by many contexts.
type Namespace struct {
	mu    sync.RWMutex
	stacks map[string]*stack.Stack

	// resolveCache memoizes successful qualified-name lookups (the
	// string already has a prefix concatenated on), shared by all
	// contexts, so repeated PUSH/POP calls in a tight WHILE loop hit
	// the cache instead of the locked map. Resolve still tries each
	// prefix of the scope chain in turn, and names that are not bound
	// are not cached. Grounded on Fantom-foundation-Tosca's
	// interpreter/lfvm/converter.go and lfvm/ct/ct.go, which front an
	// analogous hot, small working set with this same library.
	resolveCache *lru.Cache[string, *stack.Stack]
}

// New creates an empty Namespace.
func New() *Namespace {
	cache, err := lru.New[string, *stack.Stack](resolveCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size; resolveCacheSize is a compile-time constant.
		panic(fmt.Sprintf("namespace: building resolve cache: %v", err))
	}
	return &Namespace{stacks: make(map[string]*stack.Stack), resolveCache: cache}
}

// Define creates (or replaces) the Stack bound to qualifiedName.
// Replacing a binding invalidates any cached resolution of that exact
// qualified name — correct by construction, since the cache key is
// the qualified name itself.
func (n *Namespace) Define(qualifiedName string, s *stack.Stack) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stacks[qualifiedName] = s
	n.resolveCache.Remove(qualifiedName)
}

// Lookup returns the Stack bound to qualifiedName, or nil if none
// exists.
func (n *Namespace) Lookup(qualifiedName string) *stack.Stack {
	if s, ok := n.resolveCache.Get(qualifiedName); ok {
		return s
	}
	// The cache is filled while the read lock is held, so a concurrent
	// Define cannot replace the binding between the map read and Add.
	n.mu.RLock()
	defer n.mu.RUnlock()
	s := n.stacks[qualifiedName]
	if s != nil {
		n.resolveCache.Add(qualifiedName, s)
	}
	return s
}

// Resolve walks scope (in order) looking for scope[i]+localName,
// returning the first hit, or nil if none of the prefixes bind it.
// This is the scope-chain lookup described in the data model: a
// context's getStack(name).
func (n *Namespace) Resolve(scope []string, localName string) *stack.Stack {
	for _, prefix := range scope {
		if s := n.Lookup(prefix + localName); s != nil {
			return s
		}
	}
	return nil
}
