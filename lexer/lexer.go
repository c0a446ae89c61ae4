package lexer

import (
	"regexp"
	"strings"
)

// Lexer scans a FHIRPath expression into tokens. Create one with New and
// call Next until it returns an EOF token. A Lexer is single-use; lexing
// the same text again requires a new instance.
type Lexer struct {
	input string
	pos   int
}

// New creates a lexer over the given expression text.
func New(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the whole input at once.
func Tokenize(input string) ([]Token, error) {
	lx := New(input)
	var tokens []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

var (
	dateRe     = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)
	timeRe     = regexp.MustCompile(`^\d{2}(:\d{2}(:\d{2}(\.\d+)?)?)?$`)
	dateTimeRe = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?T(\d{2}(:\d{2}(:\d{2}(\.\d+)?)?)?)?(Z|[+-]\d{2}:\d{2})?$`)
)

// Next returns the next token, or a *Error on malformed input.
func (lx *Lexer) Next() (Token, error) {
	lx.skipTrivia()
	start := lx.pos
	if lx.pos >= len(lx.input) {
		return Token{Kind: EOF, Start: start, End: start}, nil
	}

	c := lx.input[lx.pos]
	switch {
	case c == '\'':
		return lx.scanString()
	case c == '`':
		return lx.scanDelimitedIdent()
	case c == '@':
		return lx.scanTemporal()
	case c == '%':
		return lx.scanEnvVar()
	case c == '$':
		return lx.scanDollar()
	case isDigit(c):
		return lx.scanNumber()
	case isIdentStart(c):
		for lx.pos < len(lx.input) && isIdentPart(lx.input[lx.pos]) {
			lx.pos++
		}
		text := lx.input[start:lx.pos]
		return Token{Kind: Ident, Text: text, Value: text, Start: start, End: lx.pos}, nil
	}

	// operators and punctuation
	two := ""
	if lx.pos+1 < len(lx.input) {
		two = lx.input[lx.pos : lx.pos+2]
	}
	switch two {
	case "<=", ">=", "!=", "!~":
		lx.pos += 2
		kind := map[string]Kind{"<=": Le, ">=": Ge, "!=": Ne, "!~": NotEquiv}[two]
		return Token{Kind: kind, Text: two, Value: two, Start: start, End: lx.pos}, nil
	}

	singles := map[byte]Kind{
		'.': Dot, ',': Comma, '(': LParen, ')': RParen,
		'[': LBracket, ']': RBracket, '{': LBrace, '}': RBrace,
		'+': Plus, '-': Minus, '*': Star, '/': Slash, '&': Amp,
		'|': Pipe, '<': Lt, '>': Gt, '=': Eq, '~': Equiv,
	}
	if kind, ok := singles[c]; ok {
		lx.pos++
		text := lx.input[start:lx.pos]
		return Token{Kind: kind, Text: text, Value: text, Start: start, End: lx.pos}, nil
	}

	return Token{}, &Error{Offset: start, Message: "unrecognized character " + quoteByte(c)}
}

func quoteByte(c byte) string {
	return "'" + string(rune(c)) + "'"
}

// skipTrivia consumes whitespace and // or /* */ comments.
func (lx *Lexer) skipTrivia() {
	for lx.pos < len(lx.input) {
		c := lx.input[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			lx.pos++
		case c == '/' && lx.pos+1 < len(lx.input) && lx.input[lx.pos+1] == '/':
			if i := strings.IndexByte(lx.input[lx.pos:], '\n'); i >= 0 {
				lx.pos += i + 1
			} else {
				lx.pos = len(lx.input)
			}
		case c == '/' && lx.pos+1 < len(lx.input) && lx.input[lx.pos+1] == '*':
			if i := strings.Index(lx.input[lx.pos+2:], "*/"); i >= 0 {
				lx.pos += i + 4
			} else {
				lx.pos = len(lx.input)
			}
		default:
			return
		}
	}
}

func (lx *Lexer) scanString() (Token, error) {
	start := lx.pos
	lx.pos++ // opening quote
	value, err := lx.scanEscaped('\'')
	if err != nil {
		return Token{}, err
	}
	return Token{Kind: String, Text: lx.input[start:lx.pos], Value: value, Start: start, End: lx.pos}, nil
}

func (lx *Lexer) scanDelimitedIdent() (Token, error) {
	start := lx.pos
	lx.pos++ // opening backtick
	value, err := lx.scanEscaped('`')
	if err != nil {
		return Token{}, err
	}
	return Token{Kind: Ident, Text: lx.input[start:lx.pos], Value: value, Start: start, End: lx.pos}, nil
}

// scanEscaped consumes characters up to the closing delimiter, resolving
// escape sequences. The opening delimiter must already be consumed.
func (lx *Lexer) scanEscaped(delim byte) (string, error) {
	var sb strings.Builder
	for lx.pos < len(lx.input) {
		c := lx.input[lx.pos]
		if c == delim {
			lx.pos++
			return sb.String(), nil
		}
		if c != '\\' {
			sb.WriteByte(c)
			lx.pos++
			continue
		}
		if lx.pos+1 >= len(lx.input) {
			break
		}
		esc := lx.input[lx.pos+1]
		switch esc {
		case '\'', '"', '`', '\\', '/':
			sb.WriteByte(esc)
			lx.pos += 2
		case 'r':
			sb.WriteByte('\r')
			lx.pos += 2
		case 'n':
			sb.WriteByte('\n')
			lx.pos += 2
		case 't':
			sb.WriteByte('\t')
			lx.pos += 2
		case 'f':
			sb.WriteByte('\f')
			lx.pos += 2
		case 'u':
			if lx.pos+6 > len(lx.input) {
				return "", &Error{Offset: lx.pos, Message: "truncated unicode escape"}
			}
			hex := lx.input[lx.pos+2 : lx.pos+6]
			r, err := parseHexRune(hex)
			if err != nil {
				return "", &Error{Offset: lx.pos, Message: "invalid unicode escape \\u" + hex}
			}
			sb.WriteRune(r)
			lx.pos += 6
		default:
			return "", &Error{Offset: lx.pos, Message: "invalid escape sequence \\" + string(rune(esc))}
		}
	}
	return "", &Error{Offset: lx.pos, Message: "unterminated literal"}
}

func parseHexRune(s string) (rune, error) {
	var r rune
	for i := 0; i < len(s); i++ {
		c := s[i]
		var v rune
		switch {
		case c >= '0' && c <= '9':
			v = rune(c - '0')
		case c >= 'a' && c <= 'f':
			v = rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = rune(c-'A') + 10
		default:
			return 0, &Error{Message: "bad hex digit"}
		}
		r = r<<4 | v
	}
	return r, nil
}

func (lx *Lexer) scanTemporal() (Token, error) {
	start := lx.pos
	lx.pos++ // @
	if lx.pos < len(lx.input) && lx.input[lx.pos] == 'T' {
		lx.pos++
		timeStart := lx.pos
		for lx.pos < len(lx.input) && isTimeChar(lx.input[lx.pos]) {
			lx.pos++
		}
		text := lx.input[timeStart:lx.pos]
		if !timeRe.MatchString(text) {
			return Token{}, &Error{Offset: start, Message: "malformed time literal @T" + text}
		}
		return Token{Kind: Time, Text: lx.input[start:lx.pos], Value: text, Start: start, End: lx.pos}, nil
	}

	// date part: digits and dashes
	for lx.pos < len(lx.input) && (isDigit(lx.input[lx.pos]) || lx.input[lx.pos] == '-') {
		lx.pos++
	}
	kind := Date
	if lx.pos < len(lx.input) && lx.input[lx.pos] == 'T' {
		kind = DateTime
		lx.pos++
		for lx.pos < len(lx.input) && isTimeChar(lx.input[lx.pos]) {
			lx.pos++
		}
		// optional timezone
		if lx.pos < len(lx.input) && lx.input[lx.pos] == 'Z' {
			lx.pos++
		} else if lx.pos < len(lx.input) && (lx.input[lx.pos] == '+' || lx.input[lx.pos] == '-') {
			lx.pos++
			for lx.pos < len(lx.input) && (isDigit(lx.input[lx.pos]) || lx.input[lx.pos] == ':') {
				lx.pos++
			}
		}
	}
	text := lx.input[start+1 : lx.pos]
	if kind == Date && !dateRe.MatchString(text) {
		return Token{}, &Error{Offset: start, Message: "malformed date literal @" + text}
	}
	if kind == DateTime && !dateTimeRe.MatchString(text) {
		return Token{}, &Error{Offset: start, Message: "malformed dateTime literal @" + text}
	}
	return Token{Kind: kind, Text: lx.input[start:lx.pos], Value: text, Start: start, End: lx.pos}, nil
}

func (lx *Lexer) scanEnvVar() (Token, error) {
	start := lx.pos
	lx.pos++ // %
	if lx.pos >= len(lx.input) {
		return Token{}, &Error{Offset: start, Message: "dangling % at end of expression"}
	}
	switch {
	case lx.input[lx.pos] == '`':
		lx.pos++
		value, err := lx.scanEscaped('`')
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: EnvVar, Text: lx.input[start:lx.pos], Value: value, Start: start, End: lx.pos}, nil
	case lx.input[lx.pos] == '\'':
		lx.pos++
		value, err := lx.scanEscaped('\'')
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: EnvVar, Text: lx.input[start:lx.pos], Value: value, Start: start, End: lx.pos}, nil
	case isIdentStart(lx.input[lx.pos]):
		nameStart := lx.pos
		for lx.pos < len(lx.input) && isIdentPart(lx.input[lx.pos]) {
			lx.pos++
		}
		value := lx.input[nameStart:lx.pos]
		return Token{Kind: EnvVar, Text: lx.input[start:lx.pos], Value: value, Start: start, End: lx.pos}, nil
	default:
		return Token{}, &Error{Offset: start, Message: "malformed environment variable reference"}
	}
}

func (lx *Lexer) scanDollar() (Token, error) {
	start := lx.pos
	lx.pos++ // $
	nameStart := lx.pos
	for lx.pos < len(lx.input) && isIdentPart(lx.input[lx.pos]) {
		lx.pos++
	}
	name := lx.input[nameStart:lx.pos]
	var kind Kind
	switch name {
	case "this":
		kind = This
	case "index":
		kind = IndexVar
	case "total":
		kind = TotalVar
	default:
		return Token{}, &Error{Offset: start, Message: "unknown special variable $" + name}
	}
	text := lx.input[start:lx.pos]
	return Token{Kind: kind, Text: text, Value: text, Start: start, End: lx.pos}, nil
}

func (lx *Lexer) scanNumber() (Token, error) {
	start := lx.pos
	for lx.pos < len(lx.input) && isDigit(lx.input[lx.pos]) {
		lx.pos++
	}
	if lx.pos+1 < len(lx.input) && lx.input[lx.pos] == '.' && isDigit(lx.input[lx.pos+1]) {
		lx.pos++
		for lx.pos < len(lx.input) && isDigit(lx.input[lx.pos]) {
			lx.pos++
		}
	}
	text := lx.input[start:lx.pos]
	return Token{Kind: Number, Text: text, Value: text, Start: start, End: lx.pos}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isTimeChar(c byte) bool { return isDigit(c) || c == ':' || c == '.' }
