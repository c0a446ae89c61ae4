package parser

import (
	"fmt"
	"strconv"

	"github.com/gofhir/fhirpath/lexer"
	"github.com/gofhir/fhirpath/types"
)

// Error is a grammar violation with the byte offset where it occurred and
// an expected-vs-found description. It is always recoverable by the caller.
type Error struct {
	Offset   int
	Expected string
	Found    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at offset %d: expected %s, found %s", e.Offset, e.Expected, e.Found)
}

// Parse lexes and parses an expression into an AST. It returns a
// *lexer.Error or *Error on malformed input; parsing the same text twice
// yields structurally equal trees.
func Parse(input string) (Node, error) {
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != lexer.EOF {
		return nil, p.errExpected("end of expression", tok)
	}
	return node, nil
}

type parser struct {
	tokens []lexer.Token
	pos    int
}

func (p *parser) peek() lexer.Token { return p.tokens[p.pos] }

func (p *parser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != lexer.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind lexer.Kind) (lexer.Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errExpected(kind.String(), tok)
	}
	return p.next(), nil
}

func (p *parser) errExpected(expected string, found lexer.Token) error {
	f := found.Kind.String()
	if found.Kind == lexer.Ident {
		f = "'" + found.Text + "'"
	}
	return &Error{Offset: found.Start, Expected: expected, Found: f}
}

// Binding powers, loosest first. All binary operators are left-associative;
// postfix .member, .method(args) and [index] bind tighter than any of them.
const (
	bpImplies = iota + 1
	bpOrXor
	bpAnd
	bpMembership
	bpEquality
	bpRelational
	bpUnion
	bpType
	bpAdditive
	bpMultiplicative
)

func binaryBinding(tok lexer.Token) (Op, int, bool) {
	switch tok.Kind {
	case lexer.Pipe:
		return OpUnion, bpUnion, true
	case lexer.Lt:
		return OpLt, bpRelational, true
	case lexer.Le:
		return OpLe, bpRelational, true
	case lexer.Gt:
		return OpGt, bpRelational, true
	case lexer.Ge:
		return OpGe, bpRelational, true
	case lexer.Eq:
		return OpEq, bpEquality, true
	case lexer.Ne:
		return OpNe, bpEquality, true
	case lexer.Equiv:
		return OpEquiv, bpEquality, true
	case lexer.NotEquiv:
		return OpNotEquiv, bpEquality, true
	case lexer.Plus:
		return OpAdd, bpAdditive, true
	case lexer.Minus:
		return OpSub, bpAdditive, true
	case lexer.Amp:
		return OpConcat, bpAdditive, true
	case lexer.Star:
		return OpMul, bpMultiplicative, true
	case lexer.Slash:
		return OpDiv, bpMultiplicative, true
	case lexer.Ident:
		switch tok.Text {
		case "div":
			return OpIntDiv, bpMultiplicative, true
		case "mod":
			return OpMod, bpMultiplicative, true
		case "is":
			return OpIs, bpType, true
		case "as":
			return OpAs, bpType, true
		case "in":
			return OpIn, bpMembership, true
		case "contains":
			return OpContains, bpMembership, true
		case "and":
			return OpAnd, bpAnd, true
		case "or":
			return OpOr, bpOrXor, true
		case "xor":
			return OpXor, bpOrXor, true
		case "implies":
			return OpImplies, bpImplies, true
		}
	}
	return "", 0, false
}

// parseExpression implements precedence climbing over the binary operator
// table, starting from unary expressions.
func (p *parser) parseExpression(minBP int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, bp, ok := binaryBinding(p.peek())
		if !ok || bp < minBP {
			return left, nil
		}
		p.next()
		if op == OpIs || op == OpAs {
			ns, name, err := p.parseTypeSpecifier()
			if err != nil {
				return nil, err
			}
			left = &TypeOp{Op: op, Expr: left, Namespace: ns, Type: name}
			continue
		}
		right, err := p.parseExpression(bp + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

// parseTypeSpecifier reads a type name with an optional namespace
// qualifier, e.g. Patient, FHIR.Patient or System.String.
func (p *parser) parseTypeSpecifier() (namespace, name string, err error) {
	tok, err := p.expect(lexer.Ident)
	if err != nil {
		return "", "", err
	}
	name = tok.Value
	if p.peek().Kind == lexer.Dot {
		p.next()
		second, err := p.expect(lexer.Ident)
		if err != nil {
			return "", "", err
		}
		return name, second.Value, nil
	}
	return "", name, nil
}

func (p *parser) parseUnary() (Node, error) {
	switch p.peek().Kind {
	case lexer.Plus, lexer.Minus:
		tok := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := OpAdd
		if tok.Kind == lexer.Minus {
			op = OpSub
		}
		return &UnaryOp{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any chain of
// .member, .method(args) and [index] suffixes, left-associatively.
func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case lexer.Dot:
			p.next()
			name, err := p.expect(lexer.Ident)
			if err != nil {
				return nil, err
			}
			if p.peek().Kind == lexer.LParen {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				node = &MethodCall{Target: node, Name: name.Value, Args: args}
			} else {
				node = &MemberAccess{Target: node, Name: name.Value}
			}
		case lexer.LBracket:
			p.next()
			index, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBracket); err != nil {
				return nil, err
			}
			node = &Indexer{Target: node, Index: index}
		default:
			return node, nil
		}
	}
}

// parseArgs parses a parenthesized, comma-separated argument list. Each
// argument is a full expression at the top precedence level.
func (p *parser) parseArgs() ([]Node, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	var args []Node
	if p.peek().Kind != lexer.RParen {
		for {
			arg, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Kind != lexer.Comma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return args, nil
}

// calendarUnits maps calendar duration keywords (and their plurals) to the
// canonical quantity unit.
var calendarUnits = map[string]string{
	"year": "year", "years": "year",
	"month": "month", "months": "month",
	"week": "week", "weeks": "week",
	"day": "day", "days": "day",
	"hour": "hour", "hours": "hour",
	"minute": "minute", "minutes": "minute",
	"second": "second", "seconds": "second",
	"millisecond": "millisecond", "milliseconds": "millisecond",
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.peek()
	switch tok.Kind {
	case lexer.Number:
		p.next()
		return p.parseNumberLiteral(tok)
	case lexer.String:
		p.next()
		return &Literal{Value: types.String(tok.Value)}, nil
	case lexer.Date:
		p.next()
		return &Literal{Value: types.Date{Text: tok.Value}}, nil
	case lexer.DateTime:
		p.next()
		return &Literal{Value: types.DateTime{Text: tok.Value}}, nil
	case lexer.Time:
		p.next()
		return &Literal{Value: types.Time{Text: tok.Value}}, nil
	case lexer.This:
		p.next()
		return &This{}, nil
	case lexer.IndexVar:
		p.next()
		return &IndexVar{}, nil
	case lexer.TotalVar:
		p.next()
		return &TotalVar{}, nil
	case lexer.EnvVar:
		p.next()
		return &EnvVar{Name: tok.Value}, nil
	case lexer.LParen:
		p.next()
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return &Paren{Expr: expr}, nil
	case lexer.LBrace:
		p.next()
		if _, err := p.expect(lexer.RBrace); err != nil {
			return nil, err
		}
		return &EmptySet{}, nil
	case lexer.Ident:
		p.next()
		switch tok.Value {
		case "true":
			return &Literal{Value: types.Boolean(true)}, nil
		case "false":
			return &Literal{Value: types.Boolean(false)}, nil
		}
		if p.peek().Kind == lexer.LParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &FunctionCall{Name: tok.Value, Args: args}, nil
		}
		return &Identifier{Name: tok.Value}, nil
	default:
		return nil, p.errExpected("expression", tok)
	}
}

// parseNumberLiteral builds an Integer or Decimal literal, folding a
// trailing unit (quoted UCUM unit or calendar keyword) into a Quantity.
func (p *parser) parseNumberLiteral(tok lexer.Token) (Node, error) {
	var value types.Element
	isDecimal := false
	for i := 0; i < len(tok.Text); i++ {
		if tok.Text[i] == '.' {
			isDecimal = true
			break
		}
	}
	if isDecimal {
		d, err := types.ParseDecimal(tok.Text)
		if err != nil {
			return nil, &Error{Offset: tok.Start, Expected: "decimal literal", Found: tok.Text}
		}
		value = d
	} else {
		i, err := strconv.ParseInt(tok.Text, 10, 32)
		if err != nil {
			return nil, &Error{Offset: tok.Start, Expected: "integer literal in range", Found: tok.Text}
		}
		value = types.Integer(i)
	}

	// quantity literal: <number> '<unit>' or <number> <calendar unit>
	next := p.peek()
	var unit string
	switch {
	case next.Kind == lexer.String:
		unit = next.Value
	case next.Kind == lexer.Ident:
		canonical, ok := calendarUnits[next.Text]
		if !ok {
			break
		}
		unit = canonical
	}
	if unit != "" {
		p.next()
		d, _ := types.ParseDecimal(tok.Text)
		return &Literal{Value: types.Quantity{Value: d.Value, Unit: unit}}, nil
	}
	return &Literal{Value: value}, nil
}
