package generator

import (
	"fmt"
	"io"
	"strings"

	"wirestate/internal/analyzer"
	"wirestate/internal/ast"
)

// xstateGenerator implements §4.7's "xstate" backend: source text for an
// external statechart interpreter. It walks the validated graph and emits
// templated text the way the teacher's MermaidGenerator walks knowledge
// chunks into diagram text with a strings.Builder and fmt.Sprintf, rather
// than a text/template file -- the output shape here (a small nested object
// literal per machine) is simple enough that a template adds indirection
// without earning it.
type xstateGenerator struct{}

func (xstateGenerator) Name() string { return "xstate" }

func (g xstateGenerator) Generate(w io.Writer, result *analyzer.Result, opts Options) error {
	var sb strings.Builder

	rootFut, _ := result.Cache.Lookup(result.RootKey)
	if rootFut != nil {
		fmt.Fprintf(&sb, "// generated by wirestate -- trace %s\n", rootFut.TraceID())
	}
	if opts.DisableCallbacks {
		sb.WriteString("// callbacks disabled: actions/guards omitted\n")
	}

	for _, key := range result.Cache.Keys() {
		fut, ok := result.Cache.Lookup(key)
		if !ok {
			continue
		}
		scope, err := fut.Result()
		if err != nil {
			return err
		}
		for _, m := range scope.Machines {
			g.writeMachine(&sb, m, opts)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func (g xstateGenerator) writeMachine(sb *strings.Builder, m *ast.Machine, opts Options) {
	fmt.Fprintf(sb, "export const %s = createMachine({\n", jsIdent(m.ID))
	fmt.Fprintf(sb, "  id: %q,\n", m.ID)
	if initial := firstInitial(m.States); initial != "" {
		fmt.Fprintf(sb, "  initial: %q,\n", initial)
	}
	sb.WriteString("  states: {\n")
	for _, s := range m.States {
		g.writeState(sb, s, 2, opts)
	}
	sb.WriteString("  },\n")
	sb.WriteString("});\n\n")
}

func (g xstateGenerator) writeState(sb *strings.Builder, s *ast.State, depth int, opts Options) {
	ind := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s%q: {\n", ind, s.ID)
	fmt.Fprintf(sb, "%s  type: %q,\n", ind, xstateType(s.Kind))
	if len(s.States) > 0 {
		if initial := firstInitial(s.States); initial != "" {
			fmt.Fprintf(sb, "%s  initial: %q,\n", ind, initial)
		}
		fmt.Fprintf(sb, "%s  states: {\n", ind)
		for _, c := range s.States {
			g.writeState(sb, c, depth+2, opts)
		}
		fmt.Fprintf(sb, "%s  },\n", ind)
	}
	if len(s.Transitions) > 0 {
		fmt.Fprintf(sb, "%s  on: {\n", ind)
		for _, t := range s.Transitions {
			g.writeTransition(sb, t, depth+2, opts)
		}
		fmt.Fprintf(sb, "%s  },\n", ind)
	}
	fmt.Fprintf(sb, "%s},\n", ind)
}

func (g xstateGenerator) writeTransition(sb *strings.Builder, t *ast.Transition, depth int, opts Options) {
	ind := strings.Repeat("  ", depth)
	target := t.Target
	if t.ResolvedTarget != nil {
		target = t.ResolvedTarget.ID
	}
	if opts.DisableCallbacks || t.Guard == "" {
		fmt.Fprintf(sb, "%s%q: { target: %q },\n", ind, t.NormalizedEvent(), target)
		return
	}
	fmt.Fprintf(sb, "%s%q: { target: %q, cond: %q },\n", ind, t.NormalizedEvent(), target, t.Guard)
}

func xstateType(k ast.StateKind) string {
	switch k {
	case ast.KindCompound:
		return "compound"
	case ast.KindParallel:
		return "parallel"
	case ast.KindFinal:
		return "final"
	case ast.KindTransient:
		return "atomic" // xstate has no "transient" node type; transient states have no children by §4.4
	default:
		return "atomic"
	}
}

func firstInitial(states []*ast.State) string {
	for _, s := range states {
		if s.Initial {
			return s.ID
		}
	}
	return ""
}

// jsIdent turns a machine ID into a safe JS identifier for the exported
// const name; machine IDs may contain spaces (§4.2's Identifier token).
func jsIdent(id string) string {
	var sb strings.Builder
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	if out == "" {
		return "machine"
	}
	return out
}
