package interp

import (
	"strings"

	"github.com/gofhir/fhirpath/parser"
	"github.com/gofhir/fhirpath/types"
)

// Evaluate walks the AST against the context's root and returns the result
// collection. It is deterministic, performs no I/O, and holds no state
// beyond the context, so a single parsed AST may be evaluated concurrently.
func Evaluate(node parser.Node, ctx *Context) (types.Collection, error) {
	return eval(node, ctx.this, ctx)
}

// eval evaluates one node against the current focus collection. The focus
// is what bare identifiers and receiver-less function calls apply to; it is
// the root at the top level and the iteration element inside iterating
// functions.
func eval(node parser.Node, focus types.Collection, ctx *Context) (types.Collection, error) {
	switch n := node.(type) {
	case *parser.Literal:
		return types.Collection{n.Value}, nil

	case *parser.EmptySet:
		return nil, nil

	case *parser.Paren:
		return eval(n.Expr, focus, ctx)

	case *parser.This:
		return ctx.this, nil

	case *parser.IndexVar:
		if !ctx.hasIter {
			return nil, nil
		}
		return types.Collection{types.Integer(ctx.index)}, nil

	case *parser.TotalVar:
		if !ctx.hasTotal {
			return nil, nil
		}
		return ctx.total, nil

	case *parser.EnvVar:
		return ctx.envValue(n.Name), nil

	case *parser.Identifier:
		return Navigate(focus, n.Name), nil

	case *parser.MemberAccess:
		target, err := eval(n.Target, focus, ctx)
		if err != nil {
			return nil, err
		}
		return Navigate(target, n.Name), nil

	case *parser.Indexer:
		target, err := eval(n.Target, focus, ctx)
		if err != nil {
			return nil, err
		}
		index, err := eval(n.Index, focus, ctx)
		if err != nil {
			return nil, err
		}
		i, ok := index.SingletonInteger()
		if !ok || int(i) < 0 || int(i) >= len(target) {
			return nil, nil
		}
		return types.Collection{target[i]}, nil

	case *parser.FunctionCall:
		return callFunction(node, n.Name, ctx.this, n.Args, ctx)

	case *parser.MethodCall:
		target, err := eval(n.Target, focus, ctx)
		if err != nil {
			return nil, err
		}
		return callFunction(node, n.Name, target, n.Args, ctx)

	case *parser.UnaryOp:
		return evalUnary(n, focus, ctx)

	case *parser.BinaryOp:
		return evalBinary(n, focus, ctx)

	case *parser.TypeOp:
		return evalTypeOp(n, focus, ctx)

	default:
		return nil, &EvalError{Node: node, Message: "unsupported AST node"}
	}
}

// Navigate maps the named field over every structured item in the input,
// splicing multi-valued fields into the result. A bare name that matches an
// item's own type (e.g. Patient in Patient.name) yields the item itself.
// Absent fields contribute nothing. Shared with the compiled fast path.
func Navigate(input types.Collection, name string) types.Collection {
	var out types.Collection
	for _, item := range input {
		obj, ok := item.(*types.Object)
		if !ok {
			if item.TypeName() == name {
				out = append(out, item)
			}
			continue
		}
		if c, ok := obj.Field(name); ok {
			out = append(out, c...)
			continue
		}
		if obj.TypeName() == name {
			out = append(out, item)
		}
	}
	return out
}

func evalUnary(n *parser.UnaryOp, focus types.Collection, ctx *Context) (types.Collection, error) {
	operand, err := eval(n.Operand, focus, ctx)
	if err != nil {
		return nil, err
	}
	return ApplyUnary(n.Op, operand)
}

// ApplyUnary applies unary + or - to an evaluated operand. Shared with the
// compiled fast path.
func ApplyUnary(op parser.Op, operand types.Collection) (types.Collection, error) {
	e, ok := operand.Singleton()
	if !ok {
		return nil, nil
	}
	if op == parser.OpAdd {
		switch e.(type) {
		case types.Integer, types.Decimal, types.Quantity:
			return types.Collection{e}, nil
		}
		return nil, nil
	}
	neg, ok := types.Negate(e)
	if !ok {
		return nil, nil
	}
	return types.Collection{neg}, nil
}

func evalBinary(n *parser.BinaryOp, focus types.Collection, ctx *Context) (types.Collection, error) {
	// three-valued boolean operators evaluate both sides and combine with
	// Kleene logic; everything else is singleton arithmetic/comparison
	left, err := eval(n.Left, focus, ctx)
	if err != nil {
		return nil, err
	}
	right, err := eval(n.Right, focus, ctx)
	if err != nil {
		return nil, err
	}
	return ApplyBinary(n.Op, left, right)
}

// ApplyBinary applies a binary operator to two already-evaluated operand
// collections. It is shared with the compiled fast path so the two
// execution strategies cannot drift apart.
func ApplyBinary(op parser.Op, left, right types.Collection) (types.Collection, error) {
	switch op {
	case parser.OpAnd, parser.OpOr, parser.OpXor, parser.OpImplies:
		return applyLogic(op, left, right), nil

	case parser.OpUnion:
		return left.Union(right), nil

	case parser.OpEq:
		eq, ok := left.Equal(right)
		if !ok {
			return nil, nil
		}
		return types.Collection{types.Boolean(eq)}, nil

	case parser.OpNe:
		eq, ok := left.Equal(right)
		if !ok {
			return nil, nil
		}
		return types.Collection{types.Boolean(!eq)}, nil

	case parser.OpEquiv:
		return types.Collection{types.Boolean(left.Equivalent(right))}, nil

	case parser.OpNotEquiv:
		return types.Collection{types.Boolean(!left.Equivalent(right))}, nil

	case parser.OpIn:
		if len(left) == 0 {
			return nil, nil
		}
		e, ok := left.Singleton()
		if !ok {
			return nil, nil
		}
		return types.Collection{types.Boolean(right.Contains(e))}, nil

	case parser.OpContains:
		if len(right) == 0 {
			return nil, nil
		}
		e, ok := right.Singleton()
		if !ok {
			return nil, nil
		}
		return types.Collection{types.Boolean(left.Contains(e))}, nil

	case parser.OpLt, parser.OpLe, parser.OpGt, parser.OpGe:
		le, lok := left.Singleton()
		re, rok := right.Singleton()
		if !lok || !rok {
			return nil, nil
		}
		cmp, ok := types.Compare(le, re)
		if !ok {
			return nil, nil
		}
		var result bool
		switch op {
		case parser.OpLt:
			result = cmp < 0
		case parser.OpLe:
			result = cmp <= 0
		case parser.OpGt:
			result = cmp > 0
		case parser.OpGe:
			result = cmp >= 0
		}
		return types.Collection{types.Boolean(result)}, nil

	case parser.OpConcat:
		// & treats an empty operand as the empty string
		ls, lok := concatOperand(left)
		rs, rok := concatOperand(right)
		if !lok || !rok {
			return nil, nil
		}
		return types.Collection{types.String(ls + rs)}, nil

	case parser.OpAdd, parser.OpSub, parser.OpMul, parser.OpDiv, parser.OpIntDiv, parser.OpMod:
		le, lok := left.Singleton()
		re, rok := right.Singleton()
		if !lok || !rok {
			return nil, nil
		}
		var out types.Element
		var ok bool
		switch op {
		case parser.OpAdd:
			out, ok = types.Add(le, re)
		case parser.OpSub:
			out, ok = types.Subtract(le, re)
		case parser.OpMul:
			out, ok = types.Multiply(le, re)
		case parser.OpDiv:
			out, ok = types.Divide(le, re)
		case parser.OpIntDiv:
			out, ok = types.Div(le, re)
		case parser.OpMod:
			out, ok = types.Mod(le, re)
		}
		if !ok {
			return nil, nil
		}
		return types.Collection{out}, nil
	}
	return nil, &EvalError{Node: &parser.BinaryOp{Op: op}, Message: "unknown operator " + string(op)}
}

func concatOperand(c types.Collection) (string, bool) {
	if len(c) == 0 {
		return "", true
	}
	s, ok := c.SingletonString()
	return string(s), ok
}

// applyLogic implements Kleene three-valued logic over {true, false, empty}.
// A non-boolean singleton operand converts to true per singleton boolean
// coercion.
func applyLogic(op parser.Op, left, right types.Collection) types.Collection {
	lv, lok := left.SingletonBoolean()
	rv, rok := right.SingletonBoolean()

	boolean := func(b bool) types.Collection { return types.Collection{types.Boolean(b)} }
	switch op {
	case parser.OpAnd:
		switch {
		case lok && !bool(lv), rok && !bool(rv):
			return boolean(false)
		case lok && rok:
			return boolean(true)
		default:
			return nil
		}
	case parser.OpOr:
		switch {
		case lok && bool(lv), rok && bool(rv):
			return boolean(true)
		case lok && rok:
			return boolean(false)
		default:
			return nil
		}
	case parser.OpXor:
		if lok && rok {
			return boolean(bool(lv) != bool(rv))
		}
		return nil
	case parser.OpImplies:
		switch {
		case lok && !bool(lv), rok && bool(rv):
			return boolean(true)
		case lok && rok:
			return boolean(bool(rv))
		default:
			return nil
		}
	}
	return nil
}

func evalTypeOp(n *parser.TypeOp, focus types.Collection, ctx *Context) (types.Collection, error) {
	operand, err := eval(n.Expr, focus, ctx)
	if err != nil {
		return nil, err
	}
	return ApplyTypeOp(n.Op, operand, n.Namespace, n.Type)
}

// ApplyTypeOp applies is/as to an evaluated operand. Shared with the
// compiled fast path.
func ApplyTypeOp(op parser.Op, operand types.Collection, namespace, name string) (types.Collection, error) {
	e, ok := operand.Singleton()
	if !ok {
		return nil, nil
	}
	match := MatchesType(e, namespace, name)
	if op == parser.OpIs {
		return types.Collection{types.Boolean(match)}, nil
	}
	if match {
		return types.Collection{e}, nil
	}
	return nil, nil
}

// MatchesType reports whether an element's type matches a type specifier.
// Primitive names compare case-insensitively (FHIR spells them lowercase,
// System spells them capitalized); structured types compare exactly.
func MatchesType(e types.Element, namespace, name string) bool {
	tn := e.TypeName()
	if _, isObj := e.(*types.Object); isObj {
		if namespace == "System" {
			return false
		}
		return tn == name
	}
	if namespace == "FHIR" || namespace == "System" || namespace == "" {
		return strings.EqualFold(tn, name)
	}
	return false
}
