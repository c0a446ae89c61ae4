package fhirpath

import (
	"github.com/gofhir/fhirpath/cache"
	"github.com/gofhir/fhirpath/interp"
	"github.com/gofhir/fhirpath/types"
)

// Option configures an Engine.
type Option func(*Options)

// Options holds all configuration for an Engine.
type Options struct {
	// ExpressionCacheSize bounds the parsed-expression LRU cache.
	ExpressionCacheSize int

	// EnableFastPath compiles supported expressions to closures.
	// Disabling it forces every evaluation through the interpreter;
	// results are identical either way.
	EnableFastPath bool

	// Resolver backs the resolve() function. Nil makes resolve() yield
	// the empty collection.
	Resolver interp.Resolver

	// MemberOf backs the memberOf() function. Nil makes memberOf() yield
	// the empty collection.
	MemberOf interp.MemberOfFunc

	// Tracer receives trace() output. Nil discards it.
	Tracer interp.Tracer

	// Env holds engine-wide %name variable bindings, merged under any
	// per-evaluation bindings.
	Env map[string]types.Collection
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		ExpressionCacheSize: cache.DefaultCapacity,
		EnableFastPath:      true,
	}
}

// WithExpressionCache sets the parsed-expression cache size.
func WithExpressionCache(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ExpressionCacheSize = size
		}
	}
}

// WithFastPath enables or disables closure compilation.
func WithFastPath(enable bool) Option {
	return func(o *Options) {
		o.EnableFastPath = enable
	}
}

// WithResolver installs the reference resolver used by resolve().
func WithResolver(r interp.Resolver) Option {
	return func(o *Options) {
		o.Resolver = r
	}
}

// WithMemberOf installs the value-set membership predicate used by
// memberOf().
func WithMemberOf(fn interp.MemberOfFunc) Option {
	return func(o *Options) {
		o.MemberOf = fn
	}
}

// WithTracer installs the sink for trace() output.
func WithTracer(t interp.Tracer) Option {
	return func(o *Options) {
		o.Tracer = t
	}
}

// WithEnv binds an engine-wide %name environment variable.
func WithEnv(name string, value types.Collection) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]types.Collection)
		}
		o.Env[name] = value
	}
}

// --- Presets ---

// InterpreterOptions returns options that force interpreted evaluation.
// Useful for differential testing against the fast path.
func InterpreterOptions() []Option {
	return []Option{
		WithFastPath(false),
	}
}

// ServerOptions returns options tuned for long-running services that
// evaluate many distinct expressions.
func ServerOptions() []Option {
	return []Option{
		WithExpressionCache(2048),
		WithFastPath(true),
	}
}
