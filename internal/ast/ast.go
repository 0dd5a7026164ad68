// Package ast defines the WireState AST: one Scope per source file, holding
// Import and Machine nodes, with States nested recursively under Machines.
//
// Every node is reachable from its enclosing Scope by plain Go pointers.
// Unlike an arena/index design for an ownership-tracking language, Go's
// garbage collector makes back-reference cycles (child -> parent -> child)
// unremarkable, so nodes carry a direct *Scope / owner pointer rather than a
// handle. See DESIGN.md for why this departs from §9's arena suggestion.
package ast

import "wirestate/internal/errs"

// Pos is a source location (file, line, column), shared with the errs
// package so a location travels unchanged from lexer to diagnostic.
type Pos = errs.Pos

// StateKind enumerates the closed set of state variants from §3.
type StateKind int

const (
	KindAtomic StateKind = iota
	KindCompound
	KindParallel
	KindTransient
	KindFinal
)

func (k StateKind) String() string {
	switch k {
	case KindAtomic:
		return "atomic"
	case KindCompound:
		return "compound"
	case KindParallel:
		return "parallel"
	case KindTransient:
		return "transient"
	case KindFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Scope is the AST root for one source file.
type Scope struct {
	File     string // absolute path
	Pos      Pos
	Imports  []*Import
	Machines []*Machine
}

// Import is an `@include` directive.
type Import struct {
	Pos          Pos
	File         string // raw, as written
	ResolvedFile string // set by the analyzer once the target is located
	Owner        *Scope
}

// Machine is a named statechart within a Scope.
type Machine struct {
	Pos            Pos
	ID             string
	Owner          *Scope
	States         []*State
	Transitions    []*Transition
	EventProtocols []*EventProtocol
}

// State is a node in a Machine's (or another State's) state tree.
type State struct {
	Pos            Pos
	ID             string
	Kind           StateKind
	Initial        bool
	States         []*State
	Transitions    []*Transition
	EventProtocols []*EventProtocol
	Use            *UseDirective

	// Parent/Machine back-references, set by the parser.
	Machine *Machine
	Parent  *State // nil if this State is a direct child of the Machine
}

// Transition fires on a (possibly comma-separated) event and targets another
// state by path.
type Transition struct {
	Pos       Pos
	Event     string // raw, as written
	Target    string // dot-separated path, as written
	Guard     string // opaque annotation text, optional
	Action    string // opaque annotation text, optional
	ResolvedTarget *State // set by the analyzer

	// OwnerMachine/OwnerState place this transition in the tree for the
	// resolver cascade (§4.5): OwnerState is nil when the transition is
	// declared directly under the machine rather than under a state.
	OwnerMachine *Machine
	OwnerState   *State
}

// NormalizedEvent splits Event on ',', trims, sorts, and rejoins -- the one
// equality rule for transitions and event protocols (§9).
func (t *Transition) NormalizedEvent() string {
	return NormalizeEvent(t.Event)
}

// EventProtocol declares an event name (or comma-list) with optional payload
// metadata, independent of any transition that fires on it.
type EventProtocol struct {
	Pos       Pos
	EventName string
	Payload   string // opaque annotation text, optional
}

func (p *EventProtocol) NormalizedEvent() string {
	return NormalizeEvent(p.EventName)
}

// UseDirective is a state-level `@use` reference to another machine by ID,
// resolved across imports by the analyzer.
type UseDirective struct {
	Pos         Pos
	MachineID   string
	Resolved    *Machine
}

// Container exposes a node's nested states, transitions, and event
// protocols, plus its location and a description, uniformly for the
// machine level and the state level. Machine and State both implement it so
// the analyzer can apply identical per-node checks to both.
type Container interface {
	ChildStates() []*State
	ChildTransitions() []*Transition
	ChildEventProtocols() []*EventProtocol
	Location() Pos
	Describe() string
}

func (m *Machine) ChildStates() []*State                     { return m.States }
func (m *Machine) ChildTransitions() []*Transition            { return m.Transitions }
func (m *Machine) ChildEventProtocols() []*EventProtocol      { return m.EventProtocols }
func (m *Machine) Location() Pos                              { return m.Pos }
func (m *Machine) Describe() string                           { return "machine " + m.ID }

func (s *State) ChildStates() []*State                        { return s.States }
func (s *State) ChildTransitions() []*Transition               { return s.Transitions }
func (s *State) ChildEventProtocols() []*EventProtocol         { return s.EventProtocols }
func (s *State) Location() Pos                                 { return s.Pos }
func (s *State) Describe() string                              { return "state " + s.ID }

var (
	_ Container = (*Machine)(nil)
	_ Container = (*State)(nil)
)
