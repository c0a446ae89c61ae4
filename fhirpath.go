package fhirpath

import (
	"sync"

	"github.com/gofhir/fhirpath/cache"
	"github.com/gofhir/fhirpath/compile"
	"github.com/gofhir/fhirpath/parser"
)

// Engine parses, compiles and evaluates FHIRPath expressions. It owns an
// LRU cache of parsed expressions and the collaborator hooks (resolver,
// terminology, tracer) shared by every evaluation. An Engine is safe for
// concurrent use.
type Engine struct {
	opts    *Options
	exprs   *cache.Cache[string, *Expression]
	metrics *Metrics
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Engine{
		opts:    o,
		exprs:   cache.New[string, *Expression](o.ExpressionCacheSize),
		metrics: NewMetrics(),
	}
}

// Parse returns the cached expression for source, parsing and compiling it
// on first use. The fast-path decision is made here, once, so a cached
// expression evaluates the same way for its whole lifetime.
func (e *Engine) Parse(source string) (*Expression, error) {
	return e.exprs.GetOrCompute(source, func() (*Expression, error) {
		expr, err := e.parse(source)
		e.metrics.RecordParse(err != nil)
		return expr, err
	})
}

func (e *Engine) parse(source string) (*Expression, error) {
	ast, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	expr := &Expression{source: source, ast: ast, engine: e}
	if e.opts.EnableFastPath {
		// compile failure is a fallback signal, never an error
		if closure, err := compile.Compile(ast); err == nil {
			expr.closure = closure
		}
	}
	return expr, nil
}

// MustParse is Parse, panicking on malformed input. Intended for
// expressions fixed at compile time.
func (e *Engine) MustParse(source string) *Expression {
	expr, err := e.Parse(source)
	if err != nil {
		panic("fhirpath: " + err.Error())
	}
	return expr
}

// Evaluate parses source (through the cache) and evaluates it against a
// JSON resource.
func (e *Engine) Evaluate(source string, resource []byte) (Collection, error) {
	expr, err := e.Parse(source)
	if err != nil {
		return nil, err
	}
	return expr.Evaluate(resource)
}

// Metrics returns the engine's metrics instance.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// CacheStats returns expression cache statistics.
func (e *Engine) CacheStats() cache.Stats { return e.exprs.Stats() }

// ClearCache empties the expression cache.
func (e *Engine) ClearCache() { e.exprs.Clear() }

// --- Default engine ---

var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Default returns the shared process-wide engine, creating it with default
// options on first use.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		defaultEngine = New()
	}
	return defaultEngine
}

// SetDefault replaces the shared engine, e.g. to install hooks process
// wide. Passing nil resets it to a fresh default-configured engine on next
// use.
func SetDefault(e *Engine) {
	defaultMu.Lock()
	defaultEngine = e
	defaultMu.Unlock()
}

// Compile parses and compiles source on the default engine.
func Compile(source string) (*Expression, error) {
	return Default().Parse(source)
}

// MustCompile is Compile, panicking on malformed input.
func MustCompile(source string) *Expression {
	return Default().MustParse(source)
}

// Evaluate evaluates source against a JSON resource on the default engine.
func Evaluate(source string, resource []byte) (Collection, error) {
	return Default().Evaluate(source, resource)
}
