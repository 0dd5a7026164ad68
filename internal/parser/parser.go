// Package parser implements the recursive-descent parser from spec §4.3: a
// token cursor walks the lexer's output and reconstructs one *ast.Scope per
// file.
//
// The spec's grammar block does not give an explicit EventProtocol
// production. This implementation resolves that gap (documented in
// DESIGN.md) by giving protocols their own directive, symmetric with
// `@include`/`@machine`/`@use`:
//
//	EventProtocol := '@on' Event [ Colon Payload ] Newline
//
// which cleanly disambiguates a protocol declaration from a bare leaf State
// line without requiring unbounded lookahead.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"wirestate/internal/ast"
	"wirestate/internal/errs"
	"wirestate/internal/lexer"
)

// Parse consumes a token stream produced by lexer.Tokenize for one file and
// builds its Scope. A SyntaxError aborts parsing of that file; it does not
// affect sibling files (§4.3).
func Parse(file string, toks []lexer.Token) (*ast.Scope, error) {
	p := &parser{file: file, toks: toks}
	return p.parseScope()
}

type parser struct {
	file string
	toks []lexer.Token
	pos  int
}

func (p *parser) peek() lexer.Token { return p.toks[p.pos] }

func (p *parser) peekAt(offset int) lexer.Token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[i]
}

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, &errs.SyntaxError{
			Pos:     tok.Pos,
			Message: fmt.Sprintf("expected %s, got %s %q", tt, tok.Type, tok.Lexeme),
		}
	}
	return p.advance(), nil
}

func (p *parser) parseScope() (*ast.Scope, error) {
	scope := &ast.Scope{File: p.file, Pos: p.peek().Pos}
	var implicit *ast.Machine

	for p.peek().Type != lexer.EOF {
		tok := p.peek()
		switch {
		case tok.Type == lexer.AtDirective && tok.Lexeme == "include":
			imp, err := p.parseImport(scope)
			if err != nil {
				return nil, err
			}
			scope.Imports = append(scope.Imports, imp)

		case tok.Type == lexer.AtDirective && tok.Lexeme == "machine":
			m, err := p.parseMachineHeader(scope)
			if err != nil {
				return nil, err
			}
			scope.Machines = append(scope.Machines, m)

		default:
			if implicit == nil {
				implicit = &ast.Machine{
					Pos:   tok.Pos,
					ID:    implicitMachineID(p.file),
					Owner: scope,
				}
				scope.Machines = append(scope.Machines, implicit)
			}
			if err := p.parseIntoMachine(implicit); err != nil {
				return nil, err
			}
		}
	}
	return scope, nil
}

func implicitMachineID(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *parser) parseImport(scope *ast.Scope) (*ast.Import, error) {
	at := p.advance() // '@include'
	strTok, err := p.expect(lexer.StringLiteral)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Newline); err != nil {
		return nil, err
	}
	return &ast.Import{Pos: at.Pos, File: strTok.Lexeme, Owner: scope}, nil
}

func (p *parser) parseMachineHeader(scope *ast.Scope) (*ast.Machine, error) {
	at := p.advance() // '@machine'
	idTok, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Newline); err != nil {
		return nil, err
	}
	m := &ast.Machine{Pos: at.Pos, ID: idTok.Lexeme, Owner: scope}
	if p.peek().Type == lexer.Indent {
		p.advance()
		for p.peek().Type != lexer.Dedent {
			if p.peek().Type == lexer.EOF {
				return nil, &errs.SyntaxError{Pos: p.peek().Pos, Message: "unexpected end of file inside machine body"}
			}
			if err := p.parseIntoMachine(m); err != nil {
				return nil, err
			}
		}
		p.advance() // Dedent
	}
	return m, nil
}

// parseIntoMachine parses exactly one StateBody item and appends it to m.
func (p *parser) parseIntoMachine(m *ast.Machine) error {
	item, err := p.parseBodyItem(m, nil)
	if err != nil {
		return err
	}
	switch {
	case item.state != nil:
		m.States = append(m.States, item.state)
	case item.transition != nil:
		m.Transitions = append(m.Transitions, item.transition)
	case item.protocol != nil:
		m.EventProtocols = append(m.EventProtocols, item.protocol)
	case item.use != nil:
		return &errs.SyntaxError{Pos: item.use.Pos, Message: "'@use' is only allowed inside a state, not at machine top level"}
	}
	return nil
}

// parseIntoState parses exactly one StateBody item nested under a state.
func (p *parser) parseIntoState(machine *ast.Machine, parent *ast.State) error {
	item, err := p.parseBodyItem(machine, parent)
	if err != nil {
		return err
	}
	switch {
	case item.state != nil:
		parent.States = append(parent.States, item.state)
	case item.transition != nil:
		parent.Transitions = append(parent.Transitions, item.transition)
	case item.protocol != nil:
		parent.EventProtocols = append(parent.EventProtocols, item.protocol)
	case item.use != nil:
		if parent.Use != nil {
			return &errs.SyntaxError{Pos: item.use.Pos, Message: "duplicate '@use' directive in state " + parent.ID}
		}
		parent.Use = item.use
	}
	return nil
}

type bodyItem struct {
	state      *ast.State
	transition *ast.Transition
	protocol   *ast.EventProtocol
	use        *ast.UseDirective
}

func (p *parser) parseBodyItem(machine *ast.Machine, parent *ast.State) (bodyItem, error) {
	tok := p.peek()
	switch {
	case tok.Type == lexer.AtDirective && tok.Lexeme == "use":
		at := p.advance()
		idTok, err := p.expect(lexer.Identifier)
		if err != nil {
			return bodyItem{}, err
		}
		if _, err := p.expect(lexer.Newline); err != nil {
			return bodyItem{}, err
		}
		return bodyItem{use: &ast.UseDirective{Pos: at.Pos, MachineID: idTok.Lexeme}}, nil

	case tok.Type == lexer.AtDirective && tok.Lexeme == "on":
		at := p.advance()
		event, err := p.parseEventList()
		if err != nil {
			return bodyItem{}, err
		}
		payload := ""
		if p.peek().Type == lexer.Colon {
			p.advance()
			payload = p.parseRestOfLineAsText()
		}
		if _, err := p.expect(lexer.Newline); err != nil {
			return bodyItem{}, err
		}
		return bodyItem{protocol: &ast.EventProtocol{Pos: at.Pos, EventName: event, Payload: payload}}, nil

	case tok.Type == lexer.AtDirective:
		return bodyItem{}, &errs.SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected directive '@%s' here", tok.Lexeme)}

	case tok.Type == lexer.Identifier:
		if p.lineHasArrowAhead() {
			t, err := p.parseTransition()
			if t != nil {
				t.OwnerMachine = machine
				t.OwnerState = parent
			}
			return bodyItem{transition: t}, err
		}
		s, err := p.parseState(machine, parent)
		return bodyItem{state: s}, err

	default:
		return bodyItem{}, &errs.SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected token %s %q", tok.Type, tok.Lexeme)}
	}
}

// lineHasArrowAhead reports whether an Arrow token appears before the next
// Newline/EOF, used to disambiguate a Transition line from a State line
// without backtracking.
func (p *parser) lineHasArrowAhead() bool {
	for i := p.pos; i < len(p.toks); i++ {
		switch p.toks[i].Type {
		case lexer.Arrow:
			return true
		case lexer.Newline, lexer.EOF:
			return false
		}
	}
	return false
}

func (p *parser) parseEventList() (string, error) {
	first, err := p.expect(lexer.Identifier)
	if err != nil {
		return "", err
	}
	parts := []string{first.Lexeme}
	for p.peek().Type == lexer.Comma {
		p.advance()
		idTok, err := p.expect(lexer.Identifier)
		if err != nil {
			return "", err
		}
		parts = append(parts, idTok.Lexeme)
	}
	return strings.Join(parts, ","), nil
}

func (p *parser) parseTransition() (*ast.Transition, error) {
	startPos := p.peek().Pos
	event, err := p.parseEventList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Arrow); err != nil {
		return nil, err
	}
	targetTok, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}
	guard := ""
	if p.peek().Type == lexer.Colon {
		p.advance()
		guard = p.parseRestOfLineAsText()
	}
	if _, err := p.expect(lexer.Newline); err != nil {
		return nil, err
	}
	return &ast.Transition{Pos: startPos, Event: event, Target: targetTok.Lexeme, Guard: guard}, nil
}

// parseRestOfLineAsText consumes tokens up to (not including) the next
// Newline, joining their lexemes with single spaces. Guard/action text is an
// opaque annotation (Non-goal: no expression analysis), so this is a
// best-effort reconstruction, not a re-tokenization.
func (p *parser) parseRestOfLineAsText() string {
	var parts []string
	for p.peek().Type != lexer.Newline && p.peek().Type != lexer.EOF {
		parts = append(parts, p.advance().Lexeme)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (p *parser) parseState(machine *ast.Machine, parent *ast.State) (*ast.State, error) {
	idTok := p.advance() // Identifier, already confirmed by caller
	if idTok.Lexeme == "" {
		return nil, &errs.SyntaxError{Pos: idTok.Pos, Message: "expected a state identifier"}
	}

	kind := ast.KindAtomic
	initial := false
	if p.peek().Type == lexer.StateMarker {
		marker := p.advance()
		switch marker.Lexeme {
		case "*":
			initial = true
		case "?":
			kind = ast.KindTransient
		case "!":
			kind = ast.KindFinal
		case "&":
			kind = ast.KindParallel
		}
	}
	if _, err := p.expect(lexer.Newline); err != nil {
		return nil, err
	}

	state := &ast.State{Pos: idTok.Pos, ID: idTok.Lexeme, Kind: kind, Initial: initial, Machine: machine, Parent: parent}
	if p.peek().Type == lexer.Indent {
		p.advance()
		for p.peek().Type != lexer.Dedent {
			if p.peek().Type == lexer.EOF {
				return nil, &errs.SyntaxError{Pos: p.peek().Pos, Message: "unexpected end of file inside state " + state.ID}
			}
			if err := p.parseIntoState(machine, state); err != nil {
				return nil, err
			}
		}
		p.advance() // Dedent
	}
	return state, nil
}
