// Package compile turns a parsed expression into a tree of composed
// closures that evaluates without walking the AST. It covers a curated
// subset of the language; Compile fails fast with ErrUnsupported on
// anything outside it, and callers fall back to the interpreter. The
// support decision is purely static (AST shape), so it is stable for the
// lifetime of a cached expression.
//
// All operator and function semantics are delegated to exported appliers
// in package interp, so the two execution strategies cannot drift apart.
package compile

import (
	"errors"
	"fmt"

	"github.com/gofhir/fhirpath/interp"
	"github.com/gofhir/fhirpath/parser"
	"github.com/gofhir/fhirpath/types"
)

// ErrUnsupported marks expressions outside the compiled subset. It is a
// fallback signal, not a user-facing failure: callers must evaluate via
// the interpreter instead of reporting it.
var ErrUnsupported = errors.New("unsupported by compiled evaluation")

// Error identifies the construct that blocked compilation.
type Error struct {
	Construct string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Construct, ErrUnsupported)
}

func (e *Error) Unwrap() error { return ErrUnsupported }

// step is a compiled node: it maps the incoming focus collection to a
// result. Composition of steps replaces AST dispatch.
type step func(input types.Collection, ctx *interp.Context) (types.Collection, error)

// Closure is a fully compiled expression, applied to the evaluation root.
type Closure func(root types.Collection, ctx *interp.Context) (types.Collection, error)

// Compile builds a closure for the expression, or returns an error
// wrapping ErrUnsupported when any node falls outside the compiled
// subset.
func Compile(node parser.Node) (Closure, error) {
	s, err := compileNode(node)
	if err != nil {
		return nil, err
	}
	return Closure(s), nil
}

func compileNode(node parser.Node) (step, error) {
	switch n := node.(type) {
	case *parser.Literal:
		value := n.Value
		return func(types.Collection, *interp.Context) (types.Collection, error) {
			return types.Collection{value}, nil
		}, nil

	case *parser.EmptySet:
		return func(types.Collection, *interp.Context) (types.Collection, error) {
			return nil, nil
		}, nil

	case *parser.Paren:
		return compileNode(n.Expr)

	case *parser.This:
		return func(_ types.Collection, ctx *interp.Context) (types.Collection, error) {
			return ctx.Focus(), nil
		}, nil

	case *parser.IndexVar:
		return func(_ types.Collection, ctx *interp.Context) (types.Collection, error) {
			i, ok := ctx.IterationIndex()
			if !ok {
				return nil, nil
			}
			return types.Collection{types.Integer(i)}, nil
		}, nil

	case *parser.EnvVar:
		name := n.Name
		return func(_ types.Collection, ctx *interp.Context) (types.Collection, error) {
			return ctx.EnvValue(name), nil
		}, nil

	case *parser.Identifier:
		name := n.Name
		return func(input types.Collection, _ *interp.Context) (types.Collection, error) {
			return interp.Navigate(input, name), nil
		}, nil

	case *parser.MemberAccess:
		target, err := compileNode(n.Target)
		if err != nil {
			return nil, err
		}
		name := n.Name
		return func(input types.Collection, ctx *interp.Context) (types.Collection, error) {
			out, err := target(input, ctx)
			if err != nil {
				return nil, err
			}
			return interp.Navigate(out, name), nil
		}, nil

	case *parser.Indexer:
		return compileIndexer(n)

	case *parser.UnaryOp:
		operand, err := compileNode(n.Operand)
		if err != nil {
			return nil, err
		}
		op := n.Op
		return func(input types.Collection, ctx *interp.Context) (types.Collection, error) {
			out, err := operand(input, ctx)
			if err != nil {
				return nil, err
			}
			return interp.ApplyUnary(op, out)
		}, nil

	case *parser.BinaryOp:
		return compileBinary(n)

	case *parser.TypeOp:
		operand, err := compileNode(n.Expr)
		if err != nil {
			return nil, err
		}
		op, ns, name := n.Op, n.Namespace, n.Type
		return func(input types.Collection, ctx *interp.Context) (types.Collection, error) {
			out, err := operand(input, ctx)
			if err != nil {
				return nil, err
			}
			return interp.ApplyTypeOp(op, out, ns, name)
		}, nil

	case *parser.FunctionCall:
		return compileCall(n.Name, nil, n.Args)

	case *parser.MethodCall:
		target, err := compileNode(n.Target)
		if err != nil {
			return nil, err
		}
		return compileCall(n.Name, target, n.Args)

	default:
		return nil, &Error{Construct: fmt.Sprintf("%T", node)}
	}
}

func compileIndexer(n *parser.Indexer) (step, error) {
	target, err := compileNode(n.Target)
	if err != nil {
		return nil, err
	}
	index, err := compileNode(n.Index)
	if err != nil {
		return nil, err
	}
	return func(input types.Collection, ctx *interp.Context) (types.Collection, error) {
		out, err := target(input, ctx)
		if err != nil {
			return nil, err
		}
		idx, err := index(input, ctx)
		if err != nil {
			return nil, err
		}
		i, ok := idx.SingletonInteger()
		if !ok || int(i) < 0 || int(i) >= len(out) {
			return nil, nil
		}
		return types.Collection{out[i]}, nil
	}, nil
}

func compileBinary(n *parser.BinaryOp) (step, error) {
	// membership operators stay interpreter-only
	if n.Op == parser.OpIn || n.Op == parser.OpContains {
		return nil, &Error{Construct: "operator " + string(n.Op)}
	}
	left, err := compileNode(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := compileNode(n.Right)
	if err != nil {
		return nil, err
	}
	op := n.Op
	return func(input types.Collection, ctx *interp.Context) (types.Collection, error) {
		lv, err := left(input, ctx)
		if err != nil {
			return nil, err
		}
		rv, err := right(input, ctx)
		if err != nil {
			return nil, err
		}
		return interp.ApplyBinary(op, lv, rv)
	}, nil
}

// strictArity lists the compiled functions whose arguments are plain
// expressions; application goes through interp.ApplyStrictFunction.
var strictArity = map[string][2]int{
	"empty":      {0, 0},
	"count":      {0, 0},
	"distinct":   {0, 0},
	"first":      {0, 0},
	"last":       {0, 0},
	"skip":       {1, 1},
	"take":       {1, 1},
	"combine":    {1, 1},
	"not":        {0, 0},
	"toString":   {0, 0},
	"upper":      {0, 0},
	"lower":      {0, 0},
	"length":     {0, 0},
	"startsWith": {1, 1},
	"endsWith":   {1, 1},
	"contains":   {1, 1},
	"substring":  {1, 2},
}

func compileCall(name string, target step, args []parser.Node) (step, error) {
	if bounds, ok := strictArity[name]; ok {
		if len(args) < bounds[0] || len(args) > bounds[1] {
			return nil, &Error{Construct: fmt.Sprintf("%s() with %d arguments", name, len(args))}
		}
		return compileStrict(name, target, args)
	}
	switch name {
	case "exists":
		if len(args) == 0 {
			return compileStrict0(target, func(in types.Collection) types.Collection {
				return types.Collection{types.Boolean(len(in) > 0)}
			}), nil
		}
		if len(args) != 1 {
			return nil, &Error{Construct: "exists() with criteria arity"}
		}
		return compileIterating(name, target, args[0])
	case "where", "select", "all":
		if len(args) != 1 {
			return nil, &Error{Construct: name + "() arity"}
		}
		return compileIterating(name, target, args[0])
	case "iif":
		if len(args) < 2 || len(args) > 3 {
			return nil, &Error{Construct: "iif() arity"}
		}
		return compileIif(args)
	}
	return nil, &Error{Construct: "function " + name + "()"}
}

// receiver resolves the call target: the compiled receiver chain for a
// method call, the current focus for a bare call.
func receiver(target step, input types.Collection, ctx *interp.Context) (types.Collection, error) {
	if target == nil {
		return ctx.Focus(), nil
	}
	return target(input, ctx)
}

func compileStrict(name string, target step, args []parser.Node) (step, error) {
	argSteps := make([]step, len(args))
	for i, a := range args {
		s, err := compileNode(a)
		if err != nil {
			return nil, err
		}
		argSteps[i] = s
	}
	return func(input types.Collection, ctx *interp.Context) (types.Collection, error) {
		in, err := receiver(target, input, ctx)
		if err != nil {
			return nil, err
		}
		evaluated := make([]types.Collection, len(argSteps))
		for i, s := range argSteps {
			// plain arguments evaluate against the caller's focus
			v, err := s(ctx.Focus(), ctx)
			if err != nil {
				return nil, err
			}
			evaluated[i] = v
		}
		out, ok := interp.ApplyStrictFunction(name, in, evaluated)
		if !ok {
			return nil, &Error{Construct: "function " + name + "()"}
		}
		return out, nil
	}, nil
}

func compileStrict0(target step, apply func(types.Collection) types.Collection) step {
	return func(input types.Collection, ctx *interp.Context) (types.Collection, error) {
		in, err := receiver(target, input, ctx)
		if err != nil {
			return nil, err
		}
		return apply(in), nil
	}
}

// compileIterating handles where/select/exists(criteria)/all: the argument
// is evaluated once per input element with $this and $index bound.
func compileIterating(name string, target step, arg parser.Node) (step, error) {
	body, err := compileNode(arg)
	if err != nil {
		return nil, err
	}
	return func(input types.Collection, ctx *interp.Context) (types.Collection, error) {
		in, err := receiver(target, input, ctx)
		if err != nil {
			return nil, err
		}
		var out types.Collection
		for i, e := range in {
			derived := ctx.WithIteration(e, i)
			item, err := body(derived.Focus(), derived)
			if err != nil {
				return nil, err
			}
			switch name {
			case "select":
				out = append(out, item...)
			case "where":
				if b, ok := item.SingletonBoolean(); ok && bool(b) {
					out = append(out, e)
				}
			case "exists":
				if b, ok := item.SingletonBoolean(); ok && bool(b) {
					return types.Collection{types.Boolean(true)}, nil
				}
			case "all":
				if b, ok := item.SingletonBoolean(); !ok || !bool(b) {
					return types.Collection{types.Boolean(false)}, nil
				}
			}
		}
		switch name {
		case "exists":
			return types.Collection{types.Boolean(false)}, nil
		case "all":
			return types.Collection{types.Boolean(true)}, nil
		}
		return out, nil
	}, nil
}

func compileIif(args []parser.Node) (step, error) {
	cond, err := compileNode(args[0])
	if err != nil {
		return nil, err
	}
	then, err := compileNode(args[1])
	if err != nil {
		return nil, err
	}
	var otherwise step
	if len(args) == 3 {
		otherwise, err = compileNode(args[2])
		if err != nil {
			return nil, err
		}
	}
	return func(_ types.Collection, ctx *interp.Context) (types.Collection, error) {
		criterion, err := cond(ctx.Focus(), ctx)
		if err != nil {
			return nil, err
		}
		if b, ok := criterion.SingletonBoolean(); ok && bool(b) {
			return then(ctx.Focus(), ctx)
		}
		if otherwise != nil {
			return otherwise(ctx.Focus(), ctx)
		}
		return nil, nil
	}, nil
}
