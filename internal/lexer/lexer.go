package lexer

import (
	"strings"

	"wirestate/internal/ast"
	"wirestate/internal/errs"
)

const tabWidth = 2

// markerChars is the closed set of trailing state markers (§4.2): "*"
// initial, "?" transient, "!" final, "&" parallel.
const markerChars = "*?!&"

// Tokenize converts UTF-8 source text for one file into a token stream.
// file is used only to stamp positions; it is not read from disk here.
func Tokenize(file string, src []byte) ([]Token, error) {
	lx := &lexer{file: file, lines: splitLines(string(src)), indents: []int{0}}
	return lx.run()
}

type lexer struct {
	file    string
	lines   []string
	indents []int // indent width stack, always starts with a 0 sentinel
	out     []Token
}

func splitLines(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	if src == "" {
		return nil
	}
	lines := strings.Split(src, "\n")
	// A trailing newline produces one trailing empty string from Split;
	// drop it so it isn't mistaken for a final blank physical line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (lx *lexer) run() ([]Token, error) {
	for lineNo, raw := range lx.lines {
		lineNo := lineNo + 1 // 1-based

		width, contentStart, ok := measureIndent(raw)
		if !ok {
			// blank line: no tokens, indentation unaffected.
			continue
		}
		content := raw[contentStart:]
		if strings.HasPrefix(strings.TrimRight(content, " \t"), "#") {
			// comment-only line: skipped for indent calculation too.
			continue
		}

		if err := lx.adjustIndent(lineNo, width); err != nil {
			return nil, err
		}

		toks, err := tokenizeLineContent(lx.file, lineNo, content, contentStart+1)
		if err != nil {
			return nil, err
		}
		lx.out = append(lx.out, toks...)
		lastCol := contentStart + 1 + len(content)
		lx.out = append(lx.out, Token{Type: Newline, Lexeme: "\n", Pos: ast.Pos{File: lx.file, Line: lineNo, Column: lastCol}})
	}

	finalLine := len(lx.lines) + 1
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.out = append(lx.out, Token{Type: Dedent, Pos: ast.Pos{File: lx.file, Line: finalLine, Column: 1}})
	}
	lx.out = append(lx.out, Token{Type: EOF, Pos: ast.Pos{File: lx.file, Line: finalLine, Column: 1}})
	return lx.out, nil
}

// measureIndent returns the indentation width (tabs count as tabWidth,
// spaces as 1) and the rune offset where content begins. ok is false for a
// blank (all-whitespace) line.
func measureIndent(line string) (width, contentStart int, ok bool) {
	for i, r := range line {
		switch r {
		case ' ':
			width++
			contentStart = i + 1
		case '\t':
			width += tabWidth
			contentStart = i + 1
		default:
			return width, i, true
		}
	}
	return 0, 0, false
}

func (lx *lexer) adjustIndent(lineNo, width int) error {
	top := lx.indents[len(lx.indents)-1]
	switch {
	case width > top:
		lx.indents = append(lx.indents, width)
		lx.out = append(lx.out, Token{Type: Indent, Pos: ast.Pos{File: lx.file, Line: lineNo, Column: 1}})
	case width < top:
		for len(lx.indents) > 1 && width < lx.indents[len(lx.indents)-1] {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.out = append(lx.out, Token{Type: Dedent, Pos: ast.Pos{File: lx.file, Line: lineNo, Column: 1}})
		}
		if lx.indents[len(lx.indents)-1] != width {
			return &errs.LexicalError{
				Pos:     ast.Pos{File: lx.file, Line: lineNo, Column: 1},
				Message: "inconsistent indentation",
			}
		}
	}
	return nil
}

// tokenizeLineContent tokenizes the non-indentation portion of a single
// line. startCol is the 1-based column of content's first rune.
func tokenizeLineContent(file string, lineNo int, content string, startCol int) ([]Token, error) {
	runes := []rune(content)
	n := len(runes)
	var toks []Token
	var pending strings.Builder
	pendingStartCol := -1

	flush := func() {
		text := strings.TrimSpace(collapseSpaces(pending.String()))
		if text != "" {
			toks = append(toks, Token{Type: Identifier, Lexeme: text, Pos: ast.Pos{File: file, Line: lineNo, Column: pendingStartCol}})
		}
		pending.Reset()
		pendingStartCol = -1
	}

	i := 0
	for i < n {
		c := runes[i]
		switch {
		case c == '"':
			flush()
			lit, consumed, err := scanStringLiteral(runes[i:], file, lineNo, startCol+i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Type: StringLiteral, Lexeme: lit, Pos: ast.Pos{File: file, Line: lineNo, Column: startCol + i}})
			i += consumed
		case c == ',':
			flush()
			toks = append(toks, Token{Type: Comma, Lexeme: ",", Pos: ast.Pos{File: file, Line: lineNo, Column: startCol + i}})
			i++
		case c == ':':
			flush()
			toks = append(toks, Token{Type: Colon, Lexeme: ":", Pos: ast.Pos{File: file, Line: lineNo, Column: startCol + i}})
			i++
		case c == '-' && i+1 < n && runes[i+1] == '>':
			flush()
			toks = append(toks, Token{Type: Arrow, Lexeme: "->", Pos: ast.Pos{File: file, Line: lineNo, Column: startCol + i}})
			i += 2
		case c == '@' && pending.Len() == 0 && len(toks) == 0:
			j := i + 1
			for j < n && isWordChar(runes[j]) {
				j++
			}
			if j == i+1 {
				return nil, &errs.LexicalError{
					Pos:     ast.Pos{File: file, Line: lineNo, Column: startCol + i},
					Message: "expected a directive name after '@'",
				}
			}
			toks = append(toks, Token{Type: AtDirective, Lexeme: string(runes[i+1 : j]), Pos: ast.Pos{File: file, Line: lineNo, Column: startCol + i}})
			i = j
		default:
			if pending.Len() == 0 {
				pendingStartCol = startCol + i
			}
			pending.WriteRune(c)
			i++
		}
	}
	flush()

	applyStateMarker(&toks, content, startCol, file, lineNo)
	return toks, nil
}

// applyStateMarker detects a trailing state marker on a line whose tokens
// reduce to a single bare Identifier -- i.e. a plain state-declaration line,
// not a transition, protocol, or directive line (§4.2).
func applyStateMarker(toks *[]Token, content string, startCol int, file string, lineNo int) {
	if len(*toks) != 1 || (*toks)[0].Type != Identifier {
		return
	}
	trimmed := strings.TrimRight(content, " \t")
	if trimmed == "" {
		return
	}
	last := rune(trimmed[len(trimmed)-1])
	if !strings.ContainsRune(markerChars, last) {
		return
	}
	markerCol := startCol + len([]rune(trimmed)) - 1

	id := (*toks)[0]
	newLexeme := strings.TrimSpace(strings.TrimSuffix(id.Lexeme, string(last)))
	marker := Token{Type: StateMarker, Lexeme: string(last), Pos: ast.Pos{File: file, Line: lineNo, Column: markerCol}}
	if newLexeme == "" {
		*toks = []Token{marker}
		return
	}
	id.Lexeme = newLexeme
	*toks = []Token{id, marker}
}

func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func scanStringLiteral(runes []rune, file string, lineNo, startCol int) (string, int, error) {
	n := len(runes)
	if n == 0 || runes[0] != '"' {
		return "", 0, &errs.LexicalError{Pos: ast.Pos{File: file, Line: lineNo, Column: startCol}, Message: "expected string literal"}
	}
	var sb strings.Builder
	i := 1
	for i < n {
		c := runes[i]
		if c == '"' {
			return sb.String(), i + 1, nil
		}
		if c == '\\' && i+1 < n {
			switch runes[i+1] {
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				return "", 0, &errs.LexicalError{
					Pos:     ast.Pos{File: file, Line: lineNo, Column: startCol + i},
					Message: "unsupported escape sequence",
				}
			}
			i += 2
			continue
		}
		sb.WriteRune(c)
		i++
	}
	return "", 0, &errs.LexicalError{Pos: ast.Pos{File: file, Line: lineNo, Column: startCol}, Message: "unterminated string literal"}
}
