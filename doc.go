// Package fhirpath evaluates FHIRPath expressions against FHIR resources.
//
// The engine is built around a hand-written lexer and recursive-descent
// parser, a tree-walking interpreter that defines the semantics, and a
// closure-compiled fast path that covers the common navigation and
// comparison subset. Parsed expressions are kept in a bounded LRU cache,
// so repeated evaluation of the same expression text pays the parse cost
// once.
//
// # Quick Start
//
//	expr, err := fhirpath.Compile("Patient.name.where(use = 'official').given")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := expr.Evaluate(resourceJSON)
//	for _, v := range result {
//	    fmt.Println(v)
//	}
//
// # Engines
//
// Package-level Compile and Evaluate use a shared default engine. Create
// your own Engine to isolate caches, install collaborator hooks, or tune
// behavior:
//
//	eng := fhirpath.New(
//	    fhirpath.WithExpressionCache(2048),
//	    fhirpath.WithResolver(myResolver),
//	    fhirpath.WithMemberOf(valueSets.Contains),
//	)
//
// # Semantics
//
// Every value is a collection. Data-shape mismatches (absent fields,
// wrong types, cardinality violations) never fail an evaluation: they
// propagate as the empty collection, and boolean operators follow
// three-valued logic treating empty as unknown. Errors are reserved for
// malformed expressions (lexer/parser) and structurally invalid ones
// (unknown functions, wrong argument counts).
//
// # Evaluation Strategies
//
// Compile decides statically, per expression, whether the compiled
// closure covers every AST node; otherwise the interpreter is used. The
// two strategies share one implementation of every operator and strict
// function, and must agree on all inputs — WithFastPath(false) exists
// for differential testing, not for correctness.
package fhirpath
