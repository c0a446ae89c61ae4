// Package interp is the tree-walking FHIRPath interpreter. It is the
// semantic reference implementation: the compiled fast path in package
// compile must agree with it on every input.
package interp

import (
	"github.com/gofhir/fhirpath/parser"
	"github.com/gofhir/fhirpath/types"
)

// Resolver resolves a reference string (e.g. "Patient/123") to a resource
// collection. Returning an empty collection means "not found"; the
// resolve() function never errors on unresolved references.
type Resolver func(reference string) types.Collection

// MemberOfFunc reports whether a code is a member of the value set
// identified by url. It backs the memberOf() function.
type MemberOfFunc func(code, valueSetURL string) bool

// Tracer receives the output of trace() calls.
type Tracer interface {
	Trace(name string, value types.Collection)
}

// Context carries the expression-scoped bindings for one evaluation: the
// root resource, caller-supplied %name variables, the optional collaborator
// hooks, and the iteration-scoped $this/$index/$total bindings. Derived
// contexts are value copies, so bindings introduced inside an iterating
// function are never visible outside its dynamic extent.
type Context struct {
	Root     types.Collection
	Env      map[string]types.Collection
	Resolver Resolver
	MemberOf MemberOfFunc
	Tracer   Tracer

	this     types.Collection
	index    int
	hasIter  bool
	total    types.Collection
	hasTotal bool
}

// NewContext creates an evaluation context rooted at the given collection.
func NewContext(root types.Collection) *Context {
	return &Context{Root: root, this: root}
}

// WithEnv binds a %name environment variable. It must be called before
// evaluation starts; bindings are shared by all sub-evaluations.
func (c *Context) WithEnv(name string, value types.Collection) *Context {
	if c.Env == nil {
		c.Env = make(map[string]types.Collection)
	}
	c.Env[name] = value
	return c
}

// Focus returns the current $this binding: the root at the top level, the
// iteration element inside an iterating function.
func (c *Context) Focus() types.Collection { return c.this }

// IterationIndex returns the current $index binding, if any iterating
// function is in scope.
func (c *Context) IterationIndex() (int, bool) { return c.index, c.hasIter }

// EnvValue resolves a %name reference, including the built-in variables.
// An undefined name yields the empty collection, never an error.
func (c *Context) EnvValue(name string) types.Collection { return c.envValue(name) }

// WithIteration derives a context with $this/$index bound for one element
// of an iterating function. The receiver is copied, never mutated. It is
// exported for the compiled fast path, which drives its own iteration.
func (c *Context) WithIteration(e types.Element, i int) *Context {
	return c.withIteration(e, i)
}

// withIteration derives a context with $this/$index bound for one element
// of an iterating function. The receiver is copied, never mutated.
func (c *Context) withIteration(e types.Element, i int) *Context {
	derived := *c
	derived.this = types.Collection{e}
	derived.index = i
	derived.hasIter = true
	derived.hasTotal = false
	return &derived
}

// withTotal derives a context that additionally binds $total for
// aggregate().
func (c *Context) withTotal(e types.Element, i int, total types.Collection) *Context {
	derived := c.withIteration(e, i)
	derived.total = total
	derived.hasTotal = true
	return derived
}

// envValue resolves a %name reference, including the built-in variables.
// An undefined name yields the empty collection, never an error.
func (c *Context) envValue(name string) types.Collection {
	switch name {
	case "resource", "context":
		return c.Root
	case "ucum":
		return types.Collection{types.String("http://unitsofmeasure.org")}
	case "loinc":
		return types.Collection{types.String("http://loinc.org")}
	case "sct":
		return types.Collection{types.String("http://snomed.info/sct")}
	}
	if v, ok := c.Env[name]; ok {
		return v
	}
	return nil
}

// EvalError reports a structurally invalid expression discovered at
// evaluation time: an unknown function or operator, or a wrong static
// argument count. Data-shape mismatches are never errors; they propagate
// as the empty collection.
type EvalError struct {
	Node    parser.Node
	Message string
}

func (e *EvalError) Error() string {
	return "evaluation error in '" + e.Node.String() + "': " + e.Message
}
