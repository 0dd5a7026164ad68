// Package cache implements the import cache from spec §4.6: one entry per
// distinct logical import string, memoized so a file imported from several
// places is read and parsed at most once, with concurrent requests for the
// same key coalesced onto a single in-flight computation.
//
// The shape -- a registry of futures guarded by one mutex, with concurrent
// producers racing to register and losers waiting on the winner -- is an
// original component with no teacher counterpart. It resembles
// golang.org/x/sync/singleflight, but singleflight only coalesces concurrent
// calls for the lifetime of one Do, forgetting the result once every caller
// has returned. Spec §4.6 requires permanent memoization for the whole
// compile (a later, non-overlapping request must not recompute), so this
// package implements the same "register once, others wait" idea directly
// with persistent futures instead of a plain singleflight.Group. See
// DESIGN.md.
package cache

import (
	"sync"

	"github.com/google/uuid"

	"wirestate/internal/ast"
)

// Future is one cache entry. It exposes two wait points, matching the two
// stages the analyzer needs (§4.6's note on cycle safety):
//
//   - Scope() blocks only until the target file has been read and parsed --
//     Machine/State IDs are populated, nothing has been semantically
//     validated yet. `@use` resolution awaits only this stage, which is why
//     an import cycle A -> B -> A does not deadlock: by the time B's
//     analysis loops back to look up A, A's Future has long since published
//     its parsed Scope, even though A's own deep validation is still
//     running higher up the call stack.
//   - Result() blocks until that scope's own per-node validation has
//     finished, for callers (the compile driver) that need a terminal
//     success/failure per file.
type Future struct {
	traceID  string
	ready    chan struct{}
	scope    *ast.Scope
	parseErr error

	done      chan struct{}
	analyzeErr error
}

func newFuture() *Future {
	return &Future{traceID: uuid.NewString(), ready: make(chan struct{}), done: make(chan struct{})}
}

// TraceID is a short-lived, per-entry identifier stamped at registration
// time. The xstate generator prints the root entry's TraceID in its comment
// header; the error types in package errs do not carry it.
func (f *Future) TraceID() string { return f.traceID }

// publishScope makes the parsed scope visible to anyone awaiting Scope(). It
// must be called at most once, before PublishResult.
func (f *Future) publishScope(scope *ast.Scope, err error) {
	f.scope, f.parseErr = scope, err
	close(f.ready)
}

// publishResult marks this entry's own validation complete. It must be
// called at most once, after publishScope.
func (f *Future) publishResult(err error) {
	f.analyzeErr = err
	close(f.done)
}

// Scope blocks until the parse stage completes and returns the parsed Scope
// (fully parsed, but possibly not yet validated) or the read/parse error.
func (f *Future) Scope() (*ast.Scope, error) {
	<-f.ready
	return f.scope, f.parseErr
}

// Result blocks until this entry's own semantic validation completes and
// returns the scope plus the first error encountered reading, parsing, or
// validating it.
func (f *Future) Result() (*ast.Scope, error) {
	<-f.done
	if f.parseErr != nil {
		return f.scope, f.parseErr
	}
	return f.scope, f.analyzeErr
}

// Cache maps a logical import string (exactly as written in an `@include`,
// never a resolved absolute path -- §4.6: two different logical strings that
// happen to resolve to the same file get two independent entries) to its
// Future. Registration is serialized by one mutex; the actual read/parse/
// analyze work happens outside the lock.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Future
	order   []string
}

func New() *Cache {
	return &Cache{entries: map[string]*Future{}}
}

// GetOrCreate returns the Future for key, creating and registering a new one
// if this is the first request for it. created is true exactly when the
// caller is responsible for driving that Future to completion (publishScope
// then publishResult); every other caller only ever observes it.
func (c *Cache) GetOrCreate(key string) (fut *Future, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.entries[key]; ok {
		return f, false
	}
	f := newFuture()
	c.entries[key] = f
	c.order = append(c.order, key)
	return f, true
}

// PublishScope and PublishResult are the only mutating operations a driver
// performs on a Future it created; exported here so package analyzer (which
// owns the read/tokenize/parse/validate sequence) can drive them without
// reaching into unexported fields.
func (c *Cache) PublishScope(f *Future, scope *ast.Scope, err error) { f.publishScope(scope, err) }
func (c *Cache) PublishResult(f *Future, err error)                  { f.publishResult(err) }

// Keys returns every registered logical import string in first-registration
// order, for deterministic traversal (error reporting, JSON generation).
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Lookup returns the Future already registered for key, if any, without
// creating one.
func (c *Cache) Lookup(key string) (*Future, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.entries[key]
	return f, ok
}
