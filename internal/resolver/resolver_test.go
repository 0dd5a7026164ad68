package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wirestate/internal/ast"
)

// buildMachine builds:
//
//	machine root
//	  a
//	    inner1
//	    inner2
//	  b
func buildMachine() *ast.Machine {
	m := &ast.Machine{ID: "root"}
	a := &ast.State{ID: "a", Machine: m}
	inner1 := &ast.State{ID: "inner1", Machine: m, Parent: a}
	inner2 := &ast.State{ID: "inner2", Machine: m, Parent: a}
	a.States = []*ast.State{inner1, inner2}
	b := &ast.State{ID: "b", Machine: m}
	m.States = []*ast.State{a, b}
	return m
}

func transitionFrom(m *ast.Machine, owner *ast.State, target string) *ast.Transition {
	return &ast.Transition{Target: target, OwnerMachine: m, OwnerState: owner}
}

func TestChain_AbsoluteStage(t *testing.T) {
	m := buildMachine()
	inner1 := m.States[0].States[0]
	b := m.States[1]

	tr := transitionFrom(m, b, "root.a.inner1")
	c := NewDefaultChain()
	got := c.Resolve(tr)
	require.NotNil(t, got)
	assert.Same(t, inner1, got)

	stats := c.StageStats()
	assert.Equal(t, "absolute", stats[0].Name)
	assert.Equal(t, 1, stats[0].Stats.Resolved)
}

func TestChain_SiblingStage(t *testing.T) {
	m := buildMachine()
	a := m.States[0]
	inner1, inner2 := a.States[0], a.States[1]

	tr := transitionFrom(m, inner1, "inner2")
	c := NewDefaultChain()
	got := c.Resolve(tr)
	require.NotNil(t, got)
	assert.Same(t, inner2, got)
}

func TestChain_AncestorStage(t *testing.T) {
	m := buildMachine()
	a := m.States[0]
	inner1 := a.States[0]
	b := m.States[1]

	// "b" is not a sibling of inner1 (siblings are inner1/inner2), only
	// reachable by walking up to the machine root.
	tr := transitionFrom(m, inner1, "b")
	c := NewDefaultChain()
	got := c.Resolve(tr)
	require.NotNil(t, got)
	assert.Same(t, b, got)
}

func TestChain_WildcardStage(t *testing.T) {
	m := buildMachine()
	a := m.States[0]
	inner1 := a.States[0]
	b := m.States[1]

	tr := transitionFrom(m, b, "root.*.inner1")
	c := NewDefaultChain()
	got := c.Resolve(tr)
	require.NotNil(t, got)
	assert.Same(t, inner1, got)
}

func TestChain_Unresolved(t *testing.T) {
	m := buildMachine()
	b := m.States[1]

	tr := transitionFrom(m, b, "nope")
	c := NewDefaultChain()
	got := c.Resolve(tr)
	assert.Nil(t, got)

	stats := c.StageStats()
	for _, s := range stats {
		assert.Equal(t, 1, s.Stats.Skipped, "stage %s should have been tried and skipped", s.Name)
	}
}

func TestChain_StatsAccumulateAcrossCalls(t *testing.T) {
	m := buildMachine()
	b := m.States[1]
	a := m.States[0]

	c := NewDefaultChain()
	c.Resolve(transitionFrom(m, b, "root.a"))
	c.Resolve(transitionFrom(m, b, "root.a"))

	var absoluteStats StageStat
	for _, s := range c.StageStats() {
		if s.Name == "absolute" {
			absoluteStats = s
		}
	}
	assert.Equal(t, 2, absoluteStats.Stats.Attempted)
	assert.Equal(t, 2, absoluteStats.Stats.Resolved)
	_ = a
}
