// Package lexer provides a hand-written lexer for FHIRPath expressions.
//
// Tokens carry byte offsets into the source string for error reporting.
// The lexer is side-effect free and deterministic: lexing the same input
// twice yields the same token sequence.
package lexer

import "fmt"

// Kind identifies a lexical token type.
type Kind int

const (
	// Invalid is the zero Kind; it never appears in a successful scan.
	Invalid Kind = iota
	// EOF marks the end of input.
	EOF
	// Ident is an identifier or contextual keyword (and, or, div, is, ...).
	Ident
	// Number is an integer or decimal literal.
	Number
	// String is a single-quoted string literal; Value holds the unescaped text.
	String
	// Date is a date literal (@2014-01-25); Value holds the text without @.
	Date
	// DateTime is a dateTime literal (@2014-01-25T14:30:00Z).
	DateTime
	// Time is a time literal (@T14:30:00); Value holds the text without @T.
	Time
	// EnvVar is an external constant reference (%name); Value holds the name.
	EnvVar
	// This is the $this special variable.
	This
	// IndexVar is the $index special variable.
	IndexVar
	// TotalVar is the $total special variable.
	TotalVar

	// Punctuation and operators.
	Dot      // .
	Comma    // ,
	LParen   // (
	RParen   // )
	LBracket // [
	RBracket // ]
	LBrace   // {
	RBrace   // }
	Plus     // +
	Minus    // -
	Star     // *
	Slash    // /
	Amp      // &
	Pipe     // |
	Lt       // <
	Le       // <=
	Gt       // >
	Ge       // >=
	Eq       // =
	Ne       // !=
	Equiv    // ~
	NotEquiv // !~
)

var kindNames = map[Kind]string{
	Invalid:  "invalid",
	EOF:      "end of expression",
	Ident:    "identifier",
	Number:   "number",
	String:   "string",
	Date:     "date",
	DateTime: "dateTime",
	Time:     "time",
	EnvVar:   "environment variable",
	This:     "$this",
	IndexVar: "$index",
	TotalVar: "$total",
	Dot:      ".",
	Comma:    ",",
	LParen:   "(",
	RParen:   ")",
	LBracket: "[",
	RBracket: "]",
	LBrace:   "{",
	RBrace:   "}",
	Plus:     "+",
	Minus:    "-",
	Star:     "*",
	Slash:    "/",
	Amp:      "&",
	Pipe:     "|",
	Lt:       "<",
	Le:       "<=",
	Gt:       ">",
	Ge:       ">=",
	Eq:       "=",
	Ne:       "!=",
	Equiv:    "~",
	NotEquiv: "!~",
}

// String returns a readable name for the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a single lexical token.
type Token struct {
	Kind  Kind
	Text  string // raw source text
	Value string // parsed value for String/EnvVar/date kinds; Text otherwise
	Start int    // byte offset of the first character
	End   int    // byte offset one past the last character
}

// Error is a lexing failure with the byte offset where it occurred.
type Error struct {
	Offset  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Message)
}
