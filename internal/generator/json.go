package generator

import (
	"bytes"
	"encoding/json"
	"io"

	"wirestate/internal/analyzer"
	"wirestate/internal/ast"
)

// jsonGenerator implements §4.7's canonical "json" backend: a structural,
// byte-stable tree serialization keyed by logical file path in insertion
// order. It is the Go-native reshaping of the teacher's
// index.(*Indexer).SaveGraph, which walks a graph.Graph into
// encoding/json.Encoder; here the top-level object needs an ordering
// encoding/json's map handling cannot give (Go always sorts map[string]V
// keys alphabetically when marshaling), so the top level is a small
// json.Marshaler that writes its entries in the order the Import Cache
// first registered them instead of a plain map.
type jsonGenerator struct{}

func (jsonGenerator) Name() string { return "json" }

func (jsonGenerator) Generate(w io.Writer, result *analyzer.Result, _ Options) error {
	var entries orderedScopes
	for _, key := range result.Cache.Keys() {
		fut, ok := result.Cache.Lookup(key)
		if !ok {
			continue
		}
		scope, err := fut.Result()
		if err != nil {
			return err
		}
		entries = append(entries, scopeEntry{key: key, value: toScopeJSON(scope)})
	}

	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

type scopeEntry struct {
	key   string
	value *scopeJSON
}

// orderedScopes marshals as a JSON object whose key order is the slice
// order, not alphabetical.
type orderedScopes []scopeEntry

func (o orderedScopes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type scopeJSON struct {
	File     string         `json:"file"`
	Machines []*machineJSON `json:"machines"`
}

type machineJSON struct {
	ID             string               `json:"id"`
	States         []*stateJSON         `json:"states,omitempty"`
	Transitions    []*transitionJSON    `json:"transitions,omitempty"`
	EventProtocols []*eventProtocolJSON `json:"eventProtocols,omitempty"`
}

type stateJSON struct {
	ID             string               `json:"id"`
	Kind           string               `json:"kind"`
	Initial        bool                 `json:"initial"`
	States         []*stateJSON         `json:"states,omitempty"`
	Transitions    []*transitionJSON    `json:"transitions,omitempty"`
	EventProtocols []*eventProtocolJSON `json:"eventProtocols,omitempty"`
	Use            *useJSON             `json:"use,omitempty"`
}

type transitionJSON struct {
	Event  string `json:"event"`
	Target string `json:"target"`
	Guard  string `json:"guard,omitempty"`
}

type eventProtocolJSON struct {
	EventName string `json:"eventName"`
	Payload   string `json:"payload,omitempty"`
}

type useJSON struct {
	MachineID string `json:"machineId"`
}

func toScopeJSON(s *ast.Scope) *scopeJSON {
	out := &scopeJSON{File: s.File}
	for _, m := range s.Machines {
		out.Machines = append(out.Machines, toMachineJSON(m))
	}
	return out
}

func toMachineJSON(m *ast.Machine) *machineJSON {
	out := &machineJSON{ID: m.ID}
	for _, s := range m.States {
		out.States = append(out.States, toStateJSON(s))
	}
	for _, t := range m.Transitions {
		out.Transitions = append(out.Transitions, toTransitionJSON(t))
	}
	for _, p := range m.EventProtocols {
		out.EventProtocols = append(out.EventProtocols, toEventProtocolJSON(p))
	}
	return out
}

func toStateJSON(s *ast.State) *stateJSON {
	out := &stateJSON{ID: s.ID, Kind: s.Kind.String(), Initial: s.Initial}
	for _, c := range s.States {
		out.States = append(out.States, toStateJSON(c))
	}
	for _, t := range s.Transitions {
		out.Transitions = append(out.Transitions, toTransitionJSON(t))
	}
	for _, p := range s.EventProtocols {
		out.EventProtocols = append(out.EventProtocols, toEventProtocolJSON(p))
	}
	if s.Use != nil {
		out.Use = &useJSON{MachineID: s.Use.MachineID}
	}
	return out
}

func toTransitionJSON(t *ast.Transition) *transitionJSON {
	return &transitionJSON{Event: t.NormalizedEvent(), Target: t.Target, Guard: t.Guard}
}

func toEventProtocolJSON(p *ast.EventProtocol) *eventProtocolJSON {
	return &eventProtocolJSON{EventName: p.NormalizedEvent(), Payload: p.Payload}
}
