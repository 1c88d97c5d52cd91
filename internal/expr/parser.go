// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Interpolation and binding markers. "@{expr}" is replaced by the rendered
// value of expr, "#{expr}" becomes a named query parameter.
const (
	InterpolationMarker = '@'
	BindMarker          = '#'
)

// Part is a chunk of parsed template text.
type Part interface {
	String() string
	part()
}

// Literal is text found between embedded expressions.
type Literal struct {
	Text string
}

func (l *Literal) String() string {
	return "Literal[" + l.Text + "]"
}

func (*Literal) part() {}

// Embedded is an expression embedded in template text, e.g. "user.name" in
// "@{user.name}".
type Embedded struct {
	// Source is the trimmed expression text between the braces.
	Source string
	// Raw is the full marker text, braces included.
	Raw string
}

func (e *Embedded) String() string {
	return "Embedded[" + e.Source + "]"
}

func (*Embedded) part() {}

// NewParser returns a Parser for expressions introduced by marker.
func NewParser(marker rune) *Parser {
	return &Parser{marker: marker}
}

// Parser splits template text into literal text and embedded expressions
// introduced by its marker rune.
type Parser struct {
	marker rune
	input  string
	pos    int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
	// prevExprEnd is the value of pos when we last finished parsing an
	// expression.
	prevExprEnd int
	// currentExprStart is the value of pos just before we started parsing the
	// expression under pos. We maintain currentExprStart >= prevExprEnd.
	currentExprStart int
	// parts are the output of the parser.
	parts []Part
	// lineNum is the number of the current line of the input.
	lineNum int
	// lineStart is the position of the first char of the current line in the
	// input.
	lineStart int
}

// Parse takes template text and returns its parts in order. Adjacent
// literal text is always merged into a single Literal.
func (p *Parser) Parse(input string) (parts []Part, err error) {
	defer func() {
		if err != nil {
			err = &Error{Source: input, Err: fmt.Errorf("cannot parse template: %w", err)}
		}
	}()

	p.init(input)

	for p.pos < len(p.input) {
		if p.char == p.marker && p.peekNext('{') {
			p.currentExprStart = p.pos
			e, err := p.parseEmbedded()
			if err != nil {
				return nil, err
			}
			p.add(e)
			continue
		}
		p.advanceChar()
	}

	// Add any remaining unparsed string input to the parser.
	p.currentExprStart = p.pos
	p.add(nil)
	return p.parts, nil
}

// init resets the state of the parser and sets the input string.
func (p *Parser) init(input string) {
	p.input = input
	p.pos = 0
	p.nextPos = 0
	p.char = 0
	p.prevExprEnd = 0
	p.currentExprStart = 0
	p.parts = []Part{}
	p.lineNum = 1
	p.lineStart = 0
	p.advanceChar()
}

// colNum calculates the current column number taking into account line breaks.
func (p *Parser) colNum() int {
	return p.pos - p.lineStart + 1
}

// advanceChar moves the parser to the next character in the input. It also
// takes care of updating the line and column numbers if it encounters line
// breaks.
func (p *Parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = p.nextPos
		return false
	}
	if p.char == '\n' {
		p.lineStart = p.nextPos
		p.lineNum++
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

// peekNext reports whether the char after the current one is c.
func (p *Parser) peekNext(c byte) bool {
	return p.nextPos < len(p.input) && p.input[p.nextPos] == c
}

// errorAt wraps an error with line and column information.
func errorAt(err error, line int, column int, input string) error {
	if strings.ContainsRune(input, '\n') {
		return fmt.Errorf("line %d, column %d: %w", line, column, err)
	}
	return fmt.Errorf("column %d: %w", column, err)
}

// A checkpoint struct for saving parser state to restore later.
type checkpoint struct {
	parser    *Parser
	pos       int
	nextPos   int
	char      rune
	lineNum   int
	lineStart int
}

// save takes a snapshot of the state of the parser and returns a pointer to a
// checkpoint that represents it.
func (p *Parser) save() *checkpoint {
	return &checkpoint{
		parser:    p,
		pos:       p.pos,
		nextPos:   p.nextPos,
		char:      p.char,
		lineNum:   p.lineNum,
		lineStart: p.lineStart,
	}
}

// restore sets the internal state of the parser to the values stored in the
// checkpoint.
func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
	cp.parser.lineNum = cp.lineNum
	cp.parser.lineStart = cp.lineStart
}

// colNum calculates the column number of the checkpoint.
func (cp *checkpoint) colNum() int {
	return cp.pos - cp.lineStart + 1
}

// add pushes the parsed expression to the list of parts along with the
// literal chunk that stretches from the end of the previous expression to the
// beginning of this expression.
func (p *Parser) add(e *Embedded) {
	if p.prevExprEnd != p.currentExprStart {
		p.parts = append(p.parts, &Literal{p.input[p.prevExprEnd:p.currentExprStart]})
	}

	if e != nil {
		p.parts = append(p.parts, e)
	}

	// Save this position at the end of the expression.
	p.prevExprEnd = p.pos
	p.currentExprStart = p.pos
}

// parseEmbedded parses "<marker>{expr}". The closing brace is the one that
// balances the opening brace, braces inside string literals are ignored.
func (p *Parser) parseEmbedded() (*Embedded, error) {
	cp := p.save()
	// Skip the marker and the opening brace.
	p.advanceChar()
	p.advanceChar()
	start := p.pos

	depth := 1
	for p.pos < len(p.input) {
		if ok, err := p.skipStringLiteral(); err != nil {
			return nil, err
		} else if ok {
			continue
		}
		switch p.char {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 {
			source := strings.TrimSpace(p.input[start:p.pos])
			p.advanceChar()
			if source == "" {
				return nil, errorAt(fmt.Errorf("empty expression"), cp.lineNum, cp.colNum(), p.input)
			}
			return &Embedded{Source: source, Raw: p.input[cp.pos:p.pos]}, nil
		}
		p.advanceChar()
	}

	line, col := cp.lineNum, cp.colNum()
	cp.restore()
	return nil, errorAt(fmt.Errorf("missing closing brace"), line, col, p.input)
}

// skipStringLiteral jumps over single and double quoted string literals in
// expression text. A backslash escapes the following char.
func (p *Parser) skipStringLiteral() (bool, error) {
	c := p.char
	if c != '"' && c != '\'' {
		return false, nil
	}
	cp := p.save()
	p.advanceChar()
	for p.pos < len(p.input) {
		switch p.char {
		case '\\':
			p.advanceChar()
		case c:
			p.advanceChar()
			return true, nil
		}
		p.advanceChar()
	}

	line, col := cp.lineNum, cp.colNum()
	cp.restore()
	return false, errorAt(fmt.Errorf("missing closing quote in string literal"), line, col, p.input)
}
