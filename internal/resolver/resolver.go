// Package resolver implements the transition-target resolver cascade from
// spec §4.5: a chain of independent strategies tried in order, the first
// match winning. The chain shape -- named stages, each reporting how many
// targets it attempted/resolved/skipped -- is grounded on the teacher
// repository's internal/resolver/chain.go GraphResolver chain, generalized
// from "resolve a graph's unresolved relations" to "resolve one transition's
// target path" (see DESIGN.md).
package resolver

import (
	"strings"
	"sync"

	"wirestate/internal/ast"
)

// Stats mirrors the teacher's ResolveStats: how many targets a stage was
// asked to resolve, how many it matched, and how many it left for the next
// stage.
type Stats struct {
	Attempted int
	Resolved  int
	Skipped   int
}

// Stage is one named resolution strategy in the cascade.
type Stage interface {
	Name() string
	Resolve(t *ast.Transition) *ast.State
}

// Chain runs its stages in order against a single transition, stopping at
// the first match. It accumulates Stats across every Resolve call, which the
// CLI's --verbose report surfaces. A single Chain is shared by every
// goroutine in a compile's import fan-out (§4.4 step 2 analyzes a scope's
// imports concurrently), so its stats map is guarded by mu.
type Chain struct {
	mu     sync.Mutex
	stages []Stage
	stats  map[string]*Stats
}

// NewDefaultChain builds the four-stage cascade from §4.5: absolute-from-
// machine and sibling and ancestor walk try exact segment matches only;
// wildcard is tried last and repeats the same three levels allowing a "*"
// segment to match the first child in document order. Keeping wildcard as
// its own stage (rather than folding it into the first three) matches the
// order spec.md lists the four rules in and gives the --verbose resolver
// report one counter per named rule.
func NewDefaultChain() *Chain {
	return &Chain{
		stages: []Stage{
			&absoluteStage{},
			&siblingStage{},
			&ancestorStage{},
			&wildcardStage{},
		},
		stats: map[string]*Stats{},
	}
}

// Resolve tries every stage in order and returns the first match, or nil if
// the transition's target is unresolved.
func (c *Chain) Resolve(t *ast.Transition) *ast.State {
	for _, s := range c.stages {
		match := s.Resolve(t)
		c.record(s.Name(), match != nil)
		if match != nil {
			return match
		}
	}
	return nil
}

func (c *Chain) record(name string, resolved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.statsFor(name)
	st.Attempted++
	if resolved {
		st.Resolved++
	} else {
		st.Skipped++
	}
}

// statsFor must be called with mu held.
func (c *Chain) statsFor(name string) *Stats {
	st, ok := c.stats[name]
	if !ok {
		st = &Stats{}
		c.stats[name] = st
	}
	return st
}

// StageStat is one named stage's accumulated counters.
type StageStat struct {
	Name  string
	Stats Stats
}

// StageStats returns a snapshot of accumulated stats per stage name, in
// chain order, for diagnostic reporting.
func (c *Chain) StageStats() []StageStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StageStat, 0, len(c.stages))
	for _, s := range c.stages {
		out = append(out, StageStat{Name: s.Name(), Stats: *c.statsFor(s.Name())})
	}
	return out
}

func segments(target string) []string {
	return strings.Split(target, ".")
}

// descendantChain walks segs through nested State children, matching by
// exact ID, or additionally by a "*" wildcard (matching the first child in
// document order) when allowWildcard is set.
func descendantChain(children []*ast.State, segs []string, allowWildcard bool) *ast.State {
	if len(segs) == 0 || len(children) == 0 {
		return nil
	}
	seg := segs[0]
	var match *ast.State
	for _, c := range children {
		if c.ID == seg || (allowWildcard && seg == "*") {
			match = c
			break
		}
	}
	if match == nil {
		return nil
	}
	if len(segs) == 1 {
		return match
	}
	return descendantChain(match.States, segs[1:], allowWildcard)
}

// levels returns, from innermost to outermost, every candidate children list
// a path could resolve against starting at the transition's owner: the
// sibling level first, then each ancestor level up to the machine root.
func levels(t *ast.Transition) [][]*ast.State {
	var out [][]*ast.State
	cur := t.OwnerState
	for {
		if cur == nil {
			out = append(out, t.OwnerMachine.States)
			return out
		}
		if cur.Parent == nil {
			out = append(out, t.OwnerMachine.States)
			return out
		}
		out = append(out, cur.Parent.States)
		cur = cur.Parent
	}
}

type absoluteStage struct{}

func (absoluteStage) Name() string { return "absolute" }

func (absoluteStage) Resolve(t *ast.Transition) *ast.State {
	segs := segments(t.Target)
	if len(segs) == 0 || segs[0] != t.OwnerMachine.ID {
		return nil
	}
	return descendantChain(t.OwnerMachine.States, segs[1:], false)
}

type siblingStage struct{}

func (siblingStage) Name() string { return "sibling" }

func (siblingStage) Resolve(t *ast.Transition) *ast.State {
	lv := levels(t)
	return descendantChain(lv[0], segments(t.Target), false)
}

type ancestorStage struct{}

func (ancestorStage) Name() string { return "ancestor" }

func (ancestorStage) Resolve(t *ast.Transition) *ast.State {
	lv := levels(t)
	segs := segments(t.Target)
	for _, level := range lv[1:] {
		if match := descendantChain(level, segs, false); match != nil {
			return match
		}
	}
	return nil
}

type wildcardStage struct{}

func (wildcardStage) Name() string { return "wildcard" }

func (wildcardStage) Resolve(t *ast.Transition) *ast.State {
	segs := segments(t.Target)
	if segs[0] == t.OwnerMachine.ID {
		if match := descendantChain(t.OwnerMachine.States, segs[1:], true); match != nil {
			return match
		}
	}
	for _, level := range levels(t) {
		if match := descendantChain(level, segs, true); match != nil {
			return match
		}
	}
	return nil
}
