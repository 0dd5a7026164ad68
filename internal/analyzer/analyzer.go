// Package analyzer implements §4.4's cross-file semantic analysis: machine
// uniqueness, concurrent import registration against the Import Cache,
// per-node structural validation, and `@use`/transition-target resolution.
//
// The "analyze a scope's imports concurrently, validate this scope's own
// nodes without waiting for them" shape is built on
// golang.org/x/sync/errgroup (not taken from the teacher, whose pipeline
// runs its stages sequentially; see DESIGN.md): errgroup.Group fans out each
// newly-registered import onto its own goroutine and the top-level Compile
// call waits for the whole fan-out to settle before walking the cache for
// the first error.
package analyzer

import (
	"golang.org/x/sync/errgroup"

	"wirestate/internal/ast"
	"wirestate/internal/cache"
	"wirestate/internal/errs"
	"wirestate/internal/lexer"
	"wirestate/internal/parser"
	"wirestate/internal/resolver"
	"wirestate/internal/source"
)

// Deps bundles analyzer's collaborators so Compile stays a thin entry point.
type Deps struct {
	Reader     *source.Reader
	SearchDirs []string
	Cache      *cache.Cache
}

// Result is the outcome of a successful compile: every scope reachable from
// the root, keyed the way §4.7's json generator expects (logical path, in
// first-registration order).
type Result struct {
	RootKey       string
	Cache         *cache.Cache
	ResolverStats []resolver.StageStat
}

// Compile reads, parses, and analyzes rootAbsPath (already resolved by the
// CLI, since the positional input-file argument is not subject to §4.1's
// search-directory rules) under rootLogicalKey, the key it is registered
// under in the cache and the key json output uses for its first entry.
func Compile(rootAbsPath, rootLogicalKey string, deps Deps) (*Result, error) {
	d := &driver{deps: deps, resolver: resolver.NewDefaultChain()}

	rootPos := errs.Pos{File: rootAbsPath}
	b, err := deps.Reader.Read(rootAbsPath, rootPos)
	if err != nil {
		return nil, err
	}
	toks, err := lexer.Tokenize(rootAbsPath, b)
	if err != nil {
		return nil, err
	}
	scope, err := parser.Parse(rootAbsPath, toks)
	if err != nil {
		return nil, err
	}

	fut, _ := deps.Cache.GetOrCreate(rootLogicalKey)
	deps.Cache.PublishScope(fut, scope, nil)
	rootErr := d.analyzeScope(scope)
	deps.Cache.PublishResult(fut, rootErr)

	_ = d.g.Wait() // per-import errors live on cache futures, not the group's own error

	if first := d.firstError(rootLogicalKey, map[string]bool{}); first != nil {
		return nil, first
	}
	return &Result{RootKey: rootLogicalKey, Cache: deps.Cache, ResolverStats: d.resolver.StageStats()}, nil
}

type driver struct {
	deps     Deps
	resolver *resolver.Chain
	g        errgroup.Group
}

// analyzeScope performs §4.4's three steps for one already-parsed scope.
func (d *driver) analyzeScope(scope *ast.Scope) error {
	if err := checkMachineUniqueness(scope); err != nil {
		return err
	}

	for _, imp := range scope.Imports {
		fut, created := d.deps.Cache.GetOrCreate(imp.File)
		if !created {
			continue
		}
		imp, fut := imp, fut
		d.g.Go(func() error {
			d.analyzeImport(imp, scope, fut)
			return nil
		})
	}

	for _, m := range scope.Machines {
		if err := d.validateContainer(m, m, scope); err != nil {
			return err
		}
	}
	return nil
}

// analyzeImport resolves, reads, tokenizes, parses, and recursively analyzes
// one import, publishing both of its Future's stages. It owns fut: no other
// goroutine may publish to it.
func (d *driver) analyzeImport(imp *ast.Import, parent *ast.Scope, fut *cache.Future) {
	absPath, tried, err := d.deps.Reader.Resolve(imp.File, parent.File, d.deps.SearchDirs)
	if err != nil {
		d.deps.Cache.PublishScope(fut, nil, err)
		d.deps.Cache.PublishResult(fut, err)
		return
	}
	if absPath == "" {
		nf := &errs.NotFoundError{Pos: imp.Pos, Logical: imp.File, Dirs: tried}
		d.deps.Cache.PublishScope(fut, nil, nf)
		d.deps.Cache.PublishResult(fut, nf)
		return
	}
	imp.ResolvedFile = absPath

	b, err := d.deps.Reader.Read(absPath, imp.Pos)
	if err != nil {
		d.deps.Cache.PublishScope(fut, nil, err)
		d.deps.Cache.PublishResult(fut, err)
		return
	}
	toks, err := lexer.Tokenize(absPath, b)
	if err != nil {
		d.deps.Cache.PublishScope(fut, nil, err)
		d.deps.Cache.PublishResult(fut, err)
		return
	}
	scope, err := parser.Parse(absPath, toks)
	if err != nil {
		d.deps.Cache.PublishScope(fut, nil, err)
		d.deps.Cache.PublishResult(fut, err)
		return
	}

	d.deps.Cache.PublishScope(fut, scope, nil)
	analyzeErr := d.analyzeScope(scope)
	d.deps.Cache.PublishResult(fut, analyzeErr)
}

// firstError walks the cache depth-first in import-declaration order,
// starting at key, and returns the first non-nil terminal error it finds.
// This is what makes "the driver surfaces the first error reaching the top"
// (§7) deterministic rather than a function of goroutine scheduling.
func (d *driver) firstError(key string, visited map[string]bool) error {
	if visited[key] {
		return nil
	}
	visited[key] = true

	fut, ok := d.deps.Cache.Lookup(key)
	if !ok {
		return nil
	}
	scope, err := fut.Result()
	if err != nil {
		return err
	}
	for _, imp := range scope.Imports {
		if e := d.firstError(imp.File, visited); e != nil {
			return e
		}
	}
	return nil
}

func checkMachineUniqueness(scope *ast.Scope) error {
	seen := map[string]bool{}
	for _, m := range scope.Machines {
		if seen[m.ID] {
			return &errs.SemanticError{Pos: m.Pos, Message: "duplicate machine id " + m.ID}
		}
		seen[m.ID] = true
	}
	return nil
}

// validateContainer applies the per-node checks from §4.4 to c (a Machine
// or a State) and recurses into its children. It returns the first
// violation found; the analyzer collects at most one error per scope.
func (d *driver) validateContainer(c ast.Container, machine *ast.Machine, scope *ast.Scope) error {
	states := c.ChildStates()

	seenIDs := map[string]bool{}
	for _, s := range states {
		if seenIDs[s.ID] {
			return &errs.SemanticError{Pos: s.Pos, Message: "duplicate state id " + s.ID + " in " + c.Describe()}
		}
		seenIDs[s.ID] = true
	}

	seenEvents := map[string]bool{}
	for _, t := range c.ChildTransitions() {
		ne := t.NormalizedEvent()
		if seenEvents[ne] {
			return &errs.SemanticError{Pos: t.Pos, Message: "duplicate transition for event " + ne}
		}
		seenEvents[ne] = true
	}

	seenProtocols := map[string]bool{}
	for _, p := range c.ChildEventProtocols() {
		ne := p.NormalizedEvent()
		if seenProtocols[ne] {
			return &errs.SemanticError{Pos: p.Pos, Message: "duplicate event protocol for event " + ne}
		}
		seenProtocols[ne] = true
	}

	initialCount := 0
	for _, s := range states {
		if !s.Initial {
			continue
		}
		initialCount++
		if initialCount == 2 {
			return &errs.SemanticError{Pos: s.Pos, Message: "multiple initial children in " + c.Describe()}
		}
	}
	if len(states) > 0 && initialCount == 0 {
		states[0].Initial = true
	}

	for _, s := range states {
		if len(s.States) > 0 {
			if s.Kind == ast.KindTransient {
				return &errs.SemanticError{Pos: s.Pos, Message: "transient state " + s.ID + " cannot have children"}
			}
			if s.Kind == ast.KindAtomic {
				s.Kind = ast.KindCompound
			}
		}
		if s.Use != nil {
			m := d.resolveUse(scope, s.Use.MachineID, map[*ast.Scope]bool{scope: true})
			if m == nil {
				return &errs.SemanticError{Pos: s.Use.Pos, Message: "unresolved @use " + s.Use.MachineID}
			}
			s.Use.Resolved = m
		}
		if err := d.validateContainer(s, machine, scope); err != nil {
			return err
		}
	}

	for _, t := range c.ChildTransitions() {
		target := d.resolver.Resolve(t)
		if target == nil {
			return &errs.SemanticError{Pos: t.Pos, Message: "unresolved transition target " + t.Target}
		}
		t.ResolvedTarget = target
	}

	return nil
}

// resolveUse searches scope and every transitively imported scope for a
// machine named machineID, per §4.4's `@use` rule. It awaits only each
// import's parse-stage Scope() (never its Result()), which is what keeps an
// import cycle from deadlocking (§4.6, §9 "cycle semantics"): by
// construction a Future's Scope is published before its owning goroutine
// recurses into analyzeScope, so a cyclic lookup always finds a scope whose
// machine list is already populated, even if that scope's own validation is
// still in flight higher up the call stack.
func (d *driver) resolveUse(scope *ast.Scope, machineID string, visited map[*ast.Scope]bool) *ast.Machine {
	for _, m := range scope.Machines {
		if m.ID == machineID {
			return m
		}
	}
	for _, imp := range scope.Imports {
		fut, ok := d.deps.Cache.Lookup(imp.File)
		if !ok {
			continue
		}
		childScope, err := fut.Scope()
		if err != nil || childScope == nil {
			continue
		}
		if visited[childScope] {
			continue
		}
		visited[childScope] = true
		if m := d.resolveUse(childScope, machineID, visited); m != nil {
			return m
		}
	}
	return nil
}
