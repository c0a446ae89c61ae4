// Package parser builds the FHIRPath abstract syntax tree.
//
// The AST is a closed set of node variants produced once per distinct
// expression text. Nodes are immutable after construction and form a strict
// tree, so a parsed expression can be cached and evaluated concurrently
// from any number of read-only evaluations.
package parser

import (
	"strings"

	"github.com/gofhir/fhirpath/types"
)

// Node is a FHIRPath AST node. The set of implementations is closed;
// evaluators dispatch by type switch.
type Node interface {
	// String renders the node back to FHIRPath source form.
	String() string
	node()
}

// Op identifies a unary or binary operator.
type Op string

// Operator discriminants.
const (
	OpAdd      Op = "+"
	OpSub      Op = "-"
	OpMul      Op = "*"
	OpDiv      Op = "/"
	OpIntDiv   Op = "div"
	OpMod      Op = "mod"
	OpConcat   Op = "&"
	OpUnion    Op = "|"
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpEq       Op = "="
	OpNe       Op = "!="
	OpEquiv    Op = "~"
	OpNotEquiv Op = "!~"
	OpIn       Op = "in"
	OpContains Op = "contains"
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpXor      Op = "xor"
	OpImplies  Op = "implies"
	OpIs       Op = "is"
	OpAs       Op = "as"
)

// Literal is a constant value: boolean, number, string, temporal or quantity.
type Literal struct {
	Value types.Element
}

// EmptySet is the {} literal.
type EmptySet struct{}

// Identifier is a bare name resolved against the current focus.
type Identifier struct {
	Name string
}

// MemberAccess is target.name field navigation.
type MemberAccess struct {
	Target Node
	Name   string
}

// Indexer is target[index].
type Indexer struct {
	Target Node
	Index  Node
}

// FunctionCall is a call without an explicit receiver, e.g. exists(...).
type FunctionCall struct {
	Name string
	Args []Node
}

// MethodCall is a call on a receiver, e.g. name.where(...).
type MethodCall struct {
	Target Node
	Name   string
	Args   []Node
}

// BinaryOp applies Op to two operands.
type BinaryOp struct {
	Op    Op
	Left  Node
	Right Node
}

// UnaryOp applies + or - to a single operand.
type UnaryOp struct {
	Op      Op
	Operand Node
}

// TypeOp is the is/as type operator with its type specifier.
type TypeOp struct {
	Op        Op
	Expr      Node
	Namespace string // optional, e.g. "FHIR" or "System"
	Type      string
}

// This is the $this iteration variable.
type This struct{}

// IndexVar is the $index iteration variable.
type IndexVar struct{}

// TotalVar is the $total aggregate accumulator variable.
type TotalVar struct{}

// EnvVar is an external constant reference (%name).
type EnvVar struct {
	Name string
}

// Paren wraps a parenthesized sub-expression. It is preserved in the tree
// so tooling can reproduce source shape; evaluation treats it as
// transparent.
type Paren struct {
	Expr Node
}

func (*Literal) node()      {}
func (*EmptySet) node()     {}
func (*Identifier) node()   {}
func (*MemberAccess) node() {}
func (*Indexer) node()      {}
func (*FunctionCall) node() {}
func (*MethodCall) node()   {}
func (*BinaryOp) node()     {}
func (*UnaryOp) node()      {}
func (*TypeOp) node()       {}
func (*This) node()         {}
func (*IndexVar) node()     {}
func (*TotalVar) node()     {}
func (*EnvVar) node()       {}
func (*Paren) node()        {}

func (n *Literal) String() string {
	if s, ok := n.Value.(types.String); ok {
		return "'" + string(s) + "'"
	}
	return n.Value.String()
}

func (n *EmptySet) String() string   { return "{}" }
func (n *Identifier) String() string { return n.Name }

func (n *MemberAccess) String() string { return n.Target.String() + "." + n.Name }

func (n *Indexer) String() string {
	return n.Target.String() + "[" + n.Index.String() + "]"
}

func (n *FunctionCall) String() string {
	return n.Name + "(" + joinArgs(n.Args) + ")"
}

func (n *MethodCall) String() string {
	return n.Target.String() + "." + n.Name + "(" + joinArgs(n.Args) + ")"
}

func joinArgs(args []Node) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func (n *BinaryOp) String() string {
	return n.Left.String() + " " + string(n.Op) + " " + n.Right.String()
}

func (n *UnaryOp) String() string { return string(n.Op) + n.Operand.String() }

func (n *TypeOp) String() string {
	name := n.Type
	if n.Namespace != "" {
		name = n.Namespace + "." + name
	}
	return n.Expr.String() + " " + string(n.Op) + " " + name
}

func (n *This) String() string     { return "$this" }
func (n *IndexVar) String() string { return "$index" }
func (n *TotalVar) String() string { return "$total" }
func (n *EnvVar) String() string   { return "%" + n.Name }
func (n *Paren) String() string    { return "(" + n.Expr.String() + ")" }
