package fhirpath

import (
	"time"

	"github.com/gofhir/fhirpath/compile"
	"github.com/gofhir/fhirpath/interp"
	"github.com/gofhir/fhirpath/parser"
	"github.com/gofhir/fhirpath/types"
)

// Collection aliases the runtime result type so callers that only
// evaluate expressions need not import the types package.
type Collection = types.Collection

// Expression is a parsed, optionally closure-compiled FHIRPath
// expression. It is immutable and safe for concurrent evaluation.
type Expression struct {
	source  string
	ast     parser.Node
	closure compile.Closure // nil: interpreter only
	engine  *Engine
}

// Source returns the original expression text.
func (x *Expression) Source() string { return x.source }

// String returns the canonical rendering of the parsed tree.
func (x *Expression) String() string { return x.ast.String() }

// FastPath reports whether evaluations use the compiled closure.
func (x *Expression) FastPath() bool { return x.closure != nil }

// Evaluate evaluates the expression against a JSON resource.
func (x *Expression) Evaluate(resource []byte) (types.Collection, error) {
	root, err := types.FromJSON(resource)
	if err != nil {
		return nil, err
	}
	return x.EvaluateCollection(root)
}

// EvaluateCollection evaluates the expression against an already
// converted input collection.
func (x *Expression) EvaluateCollection(input types.Collection) (types.Collection, error) {
	return x.evaluate(input, nil)
}

// EvaluateWithEnv evaluates with additional %name bindings layered over
// the engine-wide ones.
func (x *Expression) EvaluateWithEnv(input types.Collection, env map[string]types.Collection) (types.Collection, error) {
	return x.evaluate(input, env)
}

// EvaluateBoolean evaluates against a JSON resource and coerces the
// result: a singleton boolean yields its value, any other non-empty
// singleton yields true, and the empty collection yields false.
func (x *Expression) EvaluateBoolean(resource []byte) (bool, error) {
	out, err := x.Evaluate(resource)
	if err != nil {
		return false, err
	}
	b, ok := out.SingletonBoolean()
	return ok && bool(b), nil
}

func (x *Expression) evaluate(input types.Collection, env map[string]types.Collection) (types.Collection, error) {
	ctx := interp.NewContext(input)
	if x.engine != nil {
		opts := x.engine.opts
		ctx.Resolver = opts.Resolver
		ctx.MemberOf = opts.MemberOf
		ctx.Tracer = opts.Tracer
		for name, value := range opts.Env {
			ctx.WithEnv(name, value)
		}
	}
	for name, value := range env {
		ctx.WithEnv(name, value)
	}

	start := time.Now()
	var out types.Collection
	var err error
	if x.closure != nil {
		out, err = x.closure(input, ctx)
	} else {
		out, err = interp.Evaluate(x.ast, ctx)
	}
	if x.engine != nil {
		x.engine.metrics.RecordEvaluation(time.Since(start), x.closure != nil, err != nil)
	}
	return out, err
}
