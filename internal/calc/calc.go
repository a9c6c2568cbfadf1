// Package calc evaluates the small arithmetic expressions typed into amount
// fields, such as "1200/3" or "(450 + 80) * 2".
package calc

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty          = errors.New("empty expression")
	ErrSyntax         = errors.New("syntax error")
	ErrDivisionByZero = errors.New("division by zero")
)

// divisionPrecision is the number of decimal places kept by intermediate
// divisions before the final rounding.
const divisionPrecision = 16

// Eval parses and evaluates expr with the usual precedence rules. The
// result is rounded to two decimals.
func Eval(expr string) (decimal.Decimal, error) {
	if strings.TrimSpace(expr) == "" {
		return decimal.Zero, ErrEmpty
	}
	p := &parser{src: expr}
	p.next()
	v, err := p.expr()
	if err != nil {
		return decimal.Zero, err
	}
	if p.tok.kind != tokEOF {
		return decimal.Zero, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.tok.text, p.tok.pos)
	}
	return v.Round(2), nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokInvalid
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type parser struct {
	src string
	pos int
	tok token
}

func (p *parser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: p.pos}
		return
	}
	start := p.pos
	c := p.src[p.pos]
	switch {
	case c == '+' || c == '-' || c == '*' || c == '/':
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case c == '.' || (c >= '0' && c <= '9'):
		for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
			p.pos++
		}
		p.tok = token{kind: tokNumber, text: p.src[start:p.pos], pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokInvalid, text: string(c), pos: start}
	}
}

// expr := term { ("+" | "-") term }
func (p *parser) expr() (decimal.Decimal, error) {
	left, err := p.term()
	if err != nil {
		return decimal.Zero, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.term()
		if err != nil {
			return decimal.Zero, err
		}
		if op == "+" {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
	return left, nil
}

// term := unary { ("*" | "/") unary }
func (p *parser) term() (decimal.Decimal, error) {
	left, err := p.unary()
	if err != nil {
		return decimal.Zero, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		p.next()
		right, err := p.unary()
		if err != nil {
			return decimal.Zero, err
		}
		if op == "*" {
			left = left.Mul(right)
			continue
		}
		if right.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		left = left.DivRound(right, divisionPrecision)
	}
	return left, nil
}

// unary := ("-" | "+") unary | primary
func (p *parser) unary() (decimal.Decimal, error) {
	if p.tok.kind == tokOp && (p.tok.text == "-" || p.tok.text == "+") {
		neg := p.tok.text == "-"
		p.next()
		v, err := p.unary()
		if err != nil {
			return decimal.Zero, err
		}
		if neg {
			return v.Neg(), nil
		}
		return v, nil
	}
	return p.primary()
}

// primary := number | "(" expr ")"
func (p *parser) primary() (decimal.Decimal, error) {
	switch p.tok.kind {
	case tokNumber:
		v, err := decimal.NewFromString(p.tok.text)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: bad number %q", ErrSyntax, p.tok.text)
		}
		p.next()
		return v, nil
	case tokLParen:
		p.next()
		v, err := p.expr()
		if err != nil {
			return decimal.Zero, err
		}
		if p.tok.kind != tokRParen {
			return decimal.Zero, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.next()
		return v, nil
	case tokEOF:
		return decimal.Zero, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return decimal.Zero, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.tok.text, p.tok.pos)
	}
}
