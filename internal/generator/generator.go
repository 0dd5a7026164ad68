// Package generator implements §4.7's dispatch-by-name generator registry.
// The "map a name to a constructor, fall through to an UnknownX error"
// shape is grounded on the teacher's knowledge.NewEmbedder/NewSummarizer
// provider-switch factories; here the switch is a registry instead (new
// backends register themselves rather than being added as switch cases),
// since §4.7 explicitly requires "the dispatcher holds no knowledge of
// their output format."
package generator

import (
	"io"

	"wirestate/internal/analyzer"
	"wirestate/internal/errs"
)

// Options carries generator-wide flags from the CLI (§6).
type Options struct {
	DisableCallbacks bool
	Verbose          bool
}

// Generator renders a compiled Result to w.
type Generator interface {
	Name() string
	Generate(w io.Writer, result *analyzer.Result, opts Options) error
}

var registry = map[string]func() Generator{
	"json":   func() Generator { return &jsonGenerator{} },
	"xstate": func() Generator { return &xstateGenerator{} },
}

// Register adds a new backend under name, overwriting any existing
// registration. Intended for callers embedding the compiler with their own
// output formats; the two built-ins above register themselves the same way.
func Register(name string, newGen func() Generator) {
	registry[name] = newGen
}

// New looks up a generator by name (§6's --generator flag), defaulting to
// "json" for an empty name.
func New(name string) (Generator, error) {
	if name == "" {
		name = "json"
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, &errs.UnknownGeneratorError{Name: name}
	}
	return ctor(), nil
}
