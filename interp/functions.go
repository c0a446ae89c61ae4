package interp

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gofhir/fhirpath/parser"
	"github.com/gofhir/fhirpath/types"
)

// function is one entry in the dispatch table. The arity bounds are checked
// statically before apply runs; maxArgs of -1 means unbounded.
type function struct {
	minArgs int
	maxArgs int
	apply   func(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error)
}

// callFunction dispatches a function or method call by name. Unknown names
// and wrong argument counts are EvalErrors; runtime shape mismatches inside
// the implementations resolve to the empty collection.
func callFunction(node parser.Node, name string, target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	fn, ok := functions[name]
	if !ok {
		return nil, &EvalError{Node: node, Message: "unknown function " + name + "()"}
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, &EvalError{Node: node, Message: fmt.Sprintf("%s() takes %s, got %d", name, arityText(fn), len(args))}
	}
	return fn.apply(target, args, ctx)
}

// Supports reports whether name is a known function. The compiled fast
// path uses it to validate its own curated subset against the dispatch
// table.
func Supports(name string) bool {
	_, ok := functions[name]
	return ok
}

func arityText(fn function) string {
	switch {
	case fn.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", fn.minArgs)
	case fn.minArgs == fn.maxArgs && fn.minArgs == 1:
		return "1 argument"
	case fn.minArgs == fn.maxArgs:
		return fmt.Sprintf("%d arguments", fn.minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", fn.minArgs, fn.maxArgs)
	}
}

// evalArg evaluates a non-iterating argument in the caller's scope.
func evalArg(arg parser.Node, ctx *Context) (types.Collection, error) {
	return eval(arg, ctx.this, ctx)
}

// strictEntry builds a table entry for a function whose arguments are
// plain expressions evaluated in the caller's scope. The pure application
// is shared with the compiled fast path via ApplyStrictFunction, so the
// two execution strategies agree by construction.
func strictEntry(name string, minArgs, maxArgs int) function {
	return function{minArgs, maxArgs, func(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
		evaluated := make([]types.Collection, len(args))
		for i, a := range args {
			v, err := evalArg(a, ctx)
			if err != nil {
				return nil, err
			}
			evaluated[i] = v
		}
		out, _ := ApplyStrictFunction(name, target, evaluated)
		return out, nil
	}}
}

// ApplyStrictFunction applies a function whose arguments are already
// evaluated. It covers the argument-strict part of the function library;
// the second return is false for names outside that set. Arity must have
// been validated by the caller.
func ApplyStrictFunction(name string, target types.Collection, args []types.Collection) (types.Collection, bool) {
	switch name {
	case "empty":
		return boolResult(len(target) == 0), true

	case "count":
		return types.Collection{types.Integer(len(target))}, true

	case "distinct":
		return target.Distinct(), true

	case "first":
		if len(target) == 0 {
			return nil, true
		}
		return target[:1], true

	case "last":
		if len(target) == 0 {
			return nil, true
		}
		return target[len(target)-1:], true

	case "skip":
		n, ok := args[0].SingletonInteger()
		if !ok {
			return nil, true
		}
		if int(n) <= 0 {
			return target, true
		}
		if int(n) >= len(target) {
			return nil, true
		}
		return target[n:], true

	case "take":
		n, ok := args[0].SingletonInteger()
		if !ok || int(n) <= 0 {
			return nil, true
		}
		if int(n) >= len(target) {
			return target, true
		}
		return target[:n], true

	case "combine":
		return target.Combine(args[0]), true

	case "not":
		b, ok := target.SingletonBoolean()
		if !ok {
			return nil, true
		}
		return boolResult(!bool(b)), true

	case "toString":
		e, ok := target.Singleton()
		if !ok {
			return nil, true
		}
		switch v := e.(type) {
		case types.String:
			return types.Collection{v}, true
		case types.Date:
			return types.Collection{types.String(v.Text)}, true
		case types.DateTime:
			return types.Collection{types.String(v.Text)}, true
		case types.Time:
			return types.Collection{types.String(v.Text)}, true
		case *types.Object:
			return nil, true
		default:
			return types.Collection{types.String(e.String())}, true
		}

	case "upper":
		s, ok := singleString(target)
		if !ok {
			return nil, true
		}
		return types.Collection{types.String(strings.ToUpper(s))}, true

	case "lower":
		s, ok := singleString(target)
		if !ok {
			return nil, true
		}
		return types.Collection{types.String(strings.ToLower(s))}, true

	case "length":
		s, ok := singleString(target)
		if !ok {
			return nil, true
		}
		return types.Collection{types.Integer(len(s))}, true

	case "startsWith", "endsWith", "contains":
		s, sok := singleString(target)
		a, aok := singleString(args[0])
		if !sok || !aok {
			return nil, true
		}
		switch name {
		case "startsWith":
			return boolResult(strings.HasPrefix(s, a)), true
		case "endsWith":
			return boolResult(strings.HasSuffix(s, a)), true
		default:
			return boolResult(strings.Contains(s, a)), true
		}

	case "substring":
		s, ok := singleString(target)
		if !ok {
			return nil, true
		}
		start, ok := args[0].SingletonInteger()
		if !ok || int(start) < 0 || int(start) >= len(s) {
			return nil, true
		}
		end := len(s)
		if len(args) == 2 {
			length, ok := args[1].SingletonInteger()
			if !ok {
				return nil, true
			}
			if e := int(start) + int(length); e < end {
				end = e
			}
			if end < int(start) {
				end = int(start)
			}
		}
		return types.Collection{types.String(s[start:end])}, true
	}
	return nil, false
}

// iterEval evaluates an iterating argument (predicate or projection) for
// one input element with $this/$index bound.
func iterEval(arg parser.Node, e types.Element, i int, ctx *Context) (types.Collection, error) {
	derived := ctx.withIteration(e, i)
	return eval(arg, derived.this, derived)
}

// typeSpecifier extracts a type specifier from an argument node, e.g.
// Patient or FHIR.Patient.
func typeSpecifier(arg parser.Node) (namespace, name string, ok bool) {
	switch n := arg.(type) {
	case *parser.Paren:
		return typeSpecifier(n.Expr)
	case *parser.Identifier:
		return "", n.Name, true
	case *parser.MemberAccess:
		if id, isIdent := n.Target.(*parser.Identifier); isIdent {
			return id.Name, n.Name, true
		}
	}
	return "", "", false
}

func singleString(c types.Collection) (string, bool) {
	s, ok := c.SingletonString()
	return string(s), ok
}

func singleNumber(c types.Collection) (decimal.Decimal, bool) {
	e, ok := c.Singleton()
	if !ok {
		return decimal.Decimal{}, false
	}
	switch v := e.(type) {
	case types.Integer:
		return decimal.NewFromInt(int64(v)), true
	case types.Decimal:
		return v.Value, true
	default:
		return decimal.Decimal{}, false
	}
}

func boolResult(b bool) types.Collection { return types.Collection{types.Boolean(b)} }

var functions map[string]function

// The table is populated in init so implementations may recursively call
// back into callFunction (e.g. descendants via repeat).
func init() {
	functions = map[string]function{
		// existence
		"empty":  strictEntry("empty", 0, 0),
		"exists": {0, 1, fnExists},
		"all":    {1, 1, fnAll},
		"allTrue": {0, 0, func(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
			return everyBool(target, true), nil
		}},
		"anyTrue": {0, 0, func(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
			return someBool(target, true), nil
		}},
		"allFalse": {0, 0, func(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
			return everyBool(target, false), nil
		}},
		"anyFalse": {0, 0, func(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
			return someBool(target, false), nil
		}},
		"count":    strictEntry("count", 0, 0),
		"distinct": strictEntry("distinct", 0, 0),
		"isDistinct": {0, 0, func(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
			if len(target) == 0 {
				return nil, nil
			}
			return boolResult(target.IsDistinct()), nil
		}},

		// filtering and projection
		"where":  {1, 1, fnWhere},
		"select": {1, 1, fnSelect},
		"repeat": {1, 1, fnRepeat},
		"ofType": {1, 1, fnOfType},

		// subsetting
		"single": {0, 0, func(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
			if len(target) == 1 {
				return target, nil
			}
			return nil, nil
		}},
		"first": strictEntry("first", 0, 0),
		"last":  strictEntry("last", 0, 0),
		"tail": {0, 0, func(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
			if len(target) <= 1 {
				return nil, nil
			}
			return target[1:], nil
		}},
		"skip":      strictEntry("skip", 1, 1),
		"take":      strictEntry("take", 1, 1),
		"intersect": {1, 1, fnIntersect},
		"exclude":   {1, 1, fnExclude},

		// combining
		"union":   {1, 1, fnUnion},
		"combine": strictEntry("combine", 1, 1),

		// sets
		"subsetOf":   {1, 1, fnSubsetOf},
		"supersetOf": {1, 1, fnSupersetOf},

		// conversion
		"iif":       {2, 3, fnIif},
		"toBoolean": {0, 0, fnToBoolean},
		"toInteger": {0, 0, fnToInteger},
		"toDecimal": {0, 0, fnToDecimal},
		"toString":  strictEntry("toString", 0, 0),

		// type introspection
		"is":  {1, 1, fnIs},
		"as":  {1, 1, fnAs},
		"not": strictEntry("not", 0, 0),

		// strings
		"indexOf":        {1, 1, fnIndexOf},
		"substring":      strictEntry("substring", 1, 2),
		"startsWith":     strictEntry("startsWith", 1, 1),
		"endsWith":       strictEntry("endsWith", 1, 1),
		"contains":       strictEntry("contains", 1, 1),
		"upper":          strictEntry("upper", 0, 0),
		"lower":          strictEntry("lower", 0, 0),
		"replace":        {2, 2, fnReplace},
		"matches":        {1, 1, fnMatches},
		"replaceMatches": {2, 2, fnReplaceMatches},
		"length":         strictEntry("length", 0, 0),
		"toChars":        {0, 0, fnToChars},
		"split":          {1, 1, fnSplit},
		"join":           {0, 1, fnJoin},
		"trim":           {0, 0, fnTrim},

		// math
		"abs":      {0, 0, fnAbs},
		"ceiling":  {0, 0, fnCeiling},
		"floor":    {0, 0, fnFloor},
		"round":    {0, 1, fnRound},
		"sqrt":     {0, 0, fnSqrt},
		"truncate": {0, 0, fnTruncate},
		"exp":      {0, 0, fnExp},
		"ln":       {0, 0, fnLn},
		"log":      {1, 1, fnLog},
		"power":    {1, 1, fnPower},

		// tree navigation
		"children":    {0, 0, fnChildren},
		"descendants": {0, 0, fnDescendants},

		// aggregates
		"aggregate": {1, 2, fnAggregate},

		// utility
		"trace":     {1, 2, fnTrace},
		"now":       {0, 0, fnNow},
		"today":     {0, 0, fnToday},
		"timeOfDay": {0, 0, fnTimeOfDay},

		// collaborator hooks
		"resolve":  {0, 0, fnResolve},
		"memberOf": {1, 1, fnMemberOf},
	}
}

func fnExists(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	if len(args) == 0 {
		return boolResult(len(target) > 0), nil
	}
	for i, e := range target {
		criteria, err := iterEval(args[0], e, i, ctx)
		if err != nil {
			return nil, err
		}
		if b, ok := criteria.SingletonBoolean(); ok && bool(b) {
			return boolResult(true), nil
		}
	}
	return boolResult(false), nil
}

func fnAll(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	// vacuously true on empty input
	for i, e := range target {
		criteria, err := iterEval(args[0], e, i, ctx)
		if err != nil {
			return nil, err
		}
		if b, ok := criteria.SingletonBoolean(); !ok || !bool(b) {
			return boolResult(false), nil
		}
	}
	return boolResult(true), nil
}

func everyBool(target types.Collection, want bool) types.Collection {
	for _, e := range target {
		b, ok := e.(types.Boolean)
		if !ok || bool(b) != want {
			return boolResult(false)
		}
	}
	return boolResult(true)
}

func someBool(target types.Collection, want bool) types.Collection {
	for _, e := range target {
		if b, ok := e.(types.Boolean); ok && bool(b) == want {
			return boolResult(true)
		}
	}
	return boolResult(false)
}

func fnWhere(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	var out types.Collection
	for i, e := range target {
		criteria, err := iterEval(args[0], e, i, ctx)
		if err != nil {
			return nil, err
		}
		if b, ok := criteria.SingletonBoolean(); ok && bool(b) {
			out = append(out, e)
		}
	}
	return out, nil
}

func fnSelect(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	var out types.Collection
	for i, e := range target {
		projected, err := iterEval(args[0], e, i, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, projected...)
	}
	return out, nil
}

// fnRepeat applies the projection transitively until no new elements
// appear. The seen set guards termination on cyclic or self-similar data.
func fnRepeat(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	var out types.Collection
	work := target
	for len(work) > 0 {
		var next types.Collection
		for i, e := range work {
			projected, err := iterEval(args[0], e, i, ctx)
			if err != nil {
				return nil, err
			}
			for _, p := range projected {
				if !out.Contains(p) {
					out = append(out, p)
					next = append(next, p)
				}
			}
		}
		work = next
	}
	return out, nil
}

func fnOfType(target types.Collection, args []parser.Node, _ *Context) (types.Collection, error) {
	ns, name, ok := typeSpecifier(args[0])
	if !ok {
		return nil, &EvalError{Node: args[0], Message: "ofType() requires a type specifier"}
	}
	var out types.Collection
	for _, e := range target {
		if MatchesType(e, ns, name) {
			out = append(out, e)
		}
	}
	return out, nil
}

func fnIntersect(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	other, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	var out types.Collection
	for _, e := range target {
		if other.Contains(e) && !out.Contains(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func fnExclude(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	other, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	var out types.Collection
	for _, e := range target {
		if !other.Contains(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func fnUnion(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	other, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	return target.Union(other), nil
}

func fnSubsetOf(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	other, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range target {
		if !other.Contains(e) {
			return boolResult(false), nil
		}
	}
	return boolResult(true), nil
}

func fnSupersetOf(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	other, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range other {
		if !target.Contains(e) {
			return boolResult(false), nil
		}
	}
	return boolResult(true), nil
}

func fnIif(_ types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	criterion, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	if b, ok := criterion.SingletonBoolean(); ok && bool(b) {
		return evalArg(args[1], ctx)
	}
	if len(args) == 3 {
		return evalArg(args[2], ctx)
	}
	return nil, nil
}

func fnToBoolean(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	e, ok := target.Singleton()
	if !ok {
		return nil, nil
	}
	switch v := e.(type) {
	case types.Boolean:
		return types.Collection{v}, nil
	case types.Integer:
		switch v {
		case 0:
			return boolResult(false), nil
		case 1:
			return boolResult(true), nil
		}
	case types.String:
		switch strings.ToLower(string(v)) {
		case "true", "t", "yes", "y", "1", "1.0":
			return boolResult(true), nil
		case "false", "f", "no", "n", "0", "0.0":
			return boolResult(false), nil
		}
	}
	return nil, nil
}

func fnToInteger(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	e, ok := target.Singleton()
	if !ok {
		return nil, nil
	}
	switch v := e.(type) {
	case types.Integer:
		return types.Collection{v}, nil
	case types.Boolean:
		if v {
			return types.Collection{types.Integer(1)}, nil
		}
		return types.Collection{types.Integer(0)}, nil
	case types.String:
		if i, err := strconv.ParseInt(string(v), 10, 32); err == nil {
			return types.Collection{types.Integer(i)}, nil
		}
	}
	return nil, nil
}

func fnToDecimal(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	e, ok := target.Singleton()
	if !ok {
		return nil, nil
	}
	switch v := e.(type) {
	case types.Decimal:
		return types.Collection{v}, nil
	case types.Integer:
		return types.Collection{types.NewDecimalInt(int64(v))}, nil
	case types.Boolean:
		if v {
			return types.Collection{types.NewDecimalInt(1)}, nil
		}
		return types.Collection{types.NewDecimalInt(0)}, nil
	case types.String:
		if d, err := types.ParseDecimal(string(v)); err == nil {
			return types.Collection{d}, nil
		}
	}
	return nil, nil
}

func fnIs(target types.Collection, args []parser.Node, _ *Context) (types.Collection, error) {
	ns, name, ok := typeSpecifier(args[0])
	if !ok {
		return nil, &EvalError{Node: args[0], Message: "is() requires a type specifier"}
	}
	return ApplyTypeOp(parser.OpIs, target, ns, name)
}

func fnAs(target types.Collection, args []parser.Node, _ *Context) (types.Collection, error) {
	ns, name, ok := typeSpecifier(args[0])
	if !ok {
		return nil, &EvalError{Node: args[0], Message: "as() requires a type specifier"}
	}
	return ApplyTypeOp(parser.OpAs, target, ns, name)
}

func fnIndexOf(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	s, ok := singleString(target)
	if !ok {
		return nil, nil
	}
	arg, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	sub, ok := singleString(arg)
	if !ok {
		return nil, nil
	}
	return types.Collection{types.Integer(strings.Index(s, sub))}, nil
}

func fnReplace(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	s, ok := singleString(target)
	if !ok {
		return nil, nil
	}
	patternC, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	substC, err := evalArg(args[1], ctx)
	if err != nil {
		return nil, err
	}
	pattern, pok := singleString(patternC)
	subst, sok := singleString(substC)
	if !pok || !sok {
		return nil, nil
	}
	return types.Collection{types.String(strings.ReplaceAll(s, pattern, subst))}, nil
}

func fnMatches(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	s, ok := singleString(target)
	if !ok {
		return nil, nil
	}
	patternC, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	pattern, ok := singleString(patternC)
	if !ok {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, nil
	}
	return boolResult(re.MatchString(s)), nil
}

func fnReplaceMatches(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	s, ok := singleString(target)
	if !ok {
		return nil, nil
	}
	patternC, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	substC, err := evalArg(args[1], ctx)
	if err != nil {
		return nil, err
	}
	pattern, pok := singleString(patternC)
	subst, sok := singleString(substC)
	if !pok || !sok {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, nil
	}
	return types.Collection{types.String(re.ReplaceAllString(s, subst))}, nil
}

func fnToChars(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	s, ok := singleString(target)
	if !ok {
		return nil, nil
	}
	out := make(types.Collection, 0, len(s))
	for _, r := range s {
		out = append(out, types.String(string(r)))
	}
	return out, nil
}

func fnSplit(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	s, ok := singleString(target)
	if !ok {
		return nil, nil
	}
	sepC, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	sep, ok := singleString(sepC)
	if !ok {
		return nil, nil
	}
	parts := strings.Split(s, sep)
	out := make(types.Collection, 0, len(parts))
	for _, p := range parts {
		out = append(out, types.String(p))
	}
	return out, nil
}

func fnJoin(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	sep := ""
	if len(args) == 1 {
		sepC, err := evalArg(args[0], ctx)
		if err != nil {
			return nil, err
		}
		s, ok := singleString(sepC)
		if !ok {
			return nil, nil
		}
		sep = s
	}
	parts := make([]string, 0, len(target))
	for _, e := range target {
		s, ok := e.(types.String)
		if !ok {
			return nil, nil
		}
		parts = append(parts, string(s))
	}
	return types.Collection{types.String(strings.Join(parts, sep))}, nil
}

func fnTrim(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	s, ok := singleString(target)
	if !ok {
		return nil, nil
	}
	return types.Collection{types.String(strings.TrimSpace(s))}, nil
}

func fnAbs(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	e, ok := target.Singleton()
	if !ok {
		return nil, nil
	}
	switch v := e.(type) {
	case types.Integer:
		if v < 0 {
			return types.Collection{-v}, nil
		}
		return types.Collection{v}, nil
	case types.Decimal:
		return types.Collection{types.Decimal{Value: v.Value.Abs()}}, nil
	case types.Quantity:
		return types.Collection{types.Quantity{Value: v.Value.Abs(), Unit: v.Unit}}, nil
	}
	return nil, nil
}

func fnCeiling(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	d, ok := singleNumber(target)
	if !ok {
		return nil, nil
	}
	return types.Collection{types.Integer(d.Ceil().IntPart())}, nil
}

func fnFloor(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	d, ok := singleNumber(target)
	if !ok {
		return nil, nil
	}
	return types.Collection{types.Integer(d.Floor().IntPart())}, nil
}

func fnRound(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	d, ok := singleNumber(target)
	if !ok {
		return nil, nil
	}
	precision := int32(0)
	if len(args) == 1 {
		precC, err := evalArg(args[0], ctx)
		if err != nil {
			return nil, err
		}
		p, ok := precC.SingletonInteger()
		if !ok || p < 0 {
			return nil, nil
		}
		precision = int32(p)
	}
	return types.Collection{types.Decimal{Value: d.Round(precision)}}, nil
}

func fnSqrt(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	d, ok := singleNumber(target)
	if !ok || d.IsNegative() {
		return nil, nil
	}
	f, _ := d.Float64()
	return types.Collection{types.NewDecimal(math.Sqrt(f))}, nil
}

func fnTruncate(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	d, ok := singleNumber(target)
	if !ok {
		return nil, nil
	}
	return types.Collection{types.Integer(d.Truncate(0).IntPart())}, nil
}

func fnExp(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	d, ok := singleNumber(target)
	if !ok {
		return nil, nil
	}
	f, _ := d.Float64()
	return types.Collection{types.NewDecimal(math.Exp(f))}, nil
}

func fnLn(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	d, ok := singleNumber(target)
	if !ok || !d.IsPositive() {
		return nil, nil
	}
	f, _ := d.Float64()
	return types.Collection{types.NewDecimal(math.Log(f))}, nil
}

func fnLog(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	d, ok := singleNumber(target)
	if !ok || !d.IsPositive() {
		return nil, nil
	}
	baseC, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	base, ok := singleNumber(baseC)
	if !ok || !base.IsPositive() {
		return nil, nil
	}
	f, _ := d.Float64()
	b, _ := base.Float64()
	return types.Collection{types.NewDecimal(math.Log(f) / math.Log(b))}, nil
}

func fnPower(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	e, ok := target.Singleton()
	if !ok {
		return nil, nil
	}
	expC, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	exp, ok := expC.Singleton()
	if !ok {
		return nil, nil
	}
	if base, bok := e.(types.Integer); bok {
		if n, nok := exp.(types.Integer); nok && n >= 0 {
			result := types.Integer(1)
			for i := types.Integer(0); i < n; i++ {
				result *= base
			}
			return types.Collection{result}, nil
		}
	}
	bd, bok := singleNumber(types.Collection{e})
	ed, eok := singleNumber(types.Collection{exp})
	if !bok || !eok {
		return nil, nil
	}
	bf, _ := bd.Float64()
	ef, _ := ed.Float64()
	p := math.Pow(bf, ef)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return nil, nil
	}
	return types.Collection{types.NewDecimal(p)}, nil
}

func fnChildren(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	var out types.Collection
	for _, e := range target {
		if obj, ok := e.(*types.Object); ok {
			out = append(out, obj.Children()...)
		}
	}
	return out, nil
}

// fnDescendants walks the tree breadth-first with a structural seen set so
// cyclic or self-similar data terminates.
func fnDescendants(target types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	var out types.Collection
	work := target
	for len(work) > 0 {
		var next types.Collection
		for _, e := range work {
			obj, ok := e.(*types.Object)
			if !ok {
				continue
			}
			for _, child := range obj.Children() {
				if !out.Contains(child) {
					out = append(out, child)
					next = append(next, child)
				}
			}
		}
		work = next
	}
	return out, nil
}

func fnAggregate(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	var total types.Collection
	if len(args) == 2 {
		init, err := evalArg(args[1], ctx)
		if err != nil {
			return nil, err
		}
		total = init
	}
	for i, e := range target {
		derived := ctx.withTotal(e, i, total)
		result, err := eval(args[0], derived.this, derived)
		if err != nil {
			return nil, err
		}
		total = result
	}
	return total, nil
}

func fnTrace(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	nameC, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	name, _ := singleString(nameC)
	logged := target
	if len(args) == 2 {
		projected, err := fnSelect(target, args[1:], ctx)
		if err != nil {
			return nil, err
		}
		logged = projected
	}
	if ctx.Tracer != nil {
		ctx.Tracer.Trace(name, logged)
	}
	return target, nil
}

func fnNow(_ types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	return types.Collection{types.DateTime{Text: time.Now().Format("2006-01-02T15:04:05.000-07:00")}}, nil
}

func fnToday(_ types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	return types.Collection{types.Date{Text: time.Now().Format("2006-01-02")}}, nil
}

func fnTimeOfDay(_ types.Collection, _ []parser.Node, _ *Context) (types.Collection, error) {
	return types.Collection{types.Time{Text: time.Now().Format("15:04:05.000")}}, nil
}

// fnResolve maps reference strings (or objects with a reference field)
// through the pluggable resolver. Without a resolver it yields empty.
func fnResolve(target types.Collection, _ []parser.Node, ctx *Context) (types.Collection, error) {
	if ctx.Resolver == nil {
		return nil, nil
	}
	var out types.Collection
	for _, e := range target {
		var ref string
		switch v := e.(type) {
		case types.String:
			ref = string(v)
		case *types.Object:
			if c, ok := v.Field("reference"); ok {
				if s, ok := c.SingletonString(); ok {
					ref = string(s)
				}
			}
		}
		if ref == "" {
			continue
		}
		out = append(out, ctx.Resolver(ref)...)
	}
	return out, nil
}

// fnMemberOf tests value-set membership through the pluggable terminology
// predicate. Without a predicate it yields empty.
func fnMemberOf(target types.Collection, args []parser.Node, ctx *Context) (types.Collection, error) {
	if ctx.MemberOf == nil {
		return nil, nil
	}
	urlC, err := evalArg(args[0], ctx)
	if err != nil {
		return nil, err
	}
	url, ok := singleString(urlC)
	if !ok {
		return nil, nil
	}
	e, ok := target.Singleton()
	if !ok {
		return nil, nil
	}
	var code string
	switch v := e.(type) {
	case types.String:
		code = string(v)
	case *types.Object:
		// Coding: prefer system|code form when a system is present
		if c, ok := v.Field("code"); ok {
			if s, sok := c.SingletonString(); sok {
				code = string(s)
			}
		}
		if sys, ok := v.Field("system"); ok && code != "" {
			if s, sok := sys.SingletonString(); sok {
				code = string(s) + "|" + code
			}
		}
	}
	if code == "" {
		return nil, nil
	}
	return boolResult(ctx.MemberOf(code, url)), nil
}
