// Package types defines the FHIRPath runtime value model.
//
// Every value that flows through evaluation is a Collection: an ordered,
// possibly empty sequence of Elements. A scalar is a one-element collection
// and absence is the empty collection, never nil-as-error. The concrete
// element kinds (Boolean, Integer, Decimal, String, Date, Time, DateTime,
// Quantity, Object) implement structural equality, FHIRPath equivalence and
// ordering, and the arithmetic used by both the interpreter and the compiled
// fast path, so the two execution strategies share one set of semantics.
package types
