package types

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Element is a single item inside a Collection. Implementations are
// immutable after construction and safe for concurrent reads.
type Element interface {
	// TypeName returns the FHIRPath type name of the element, e.g.
	// "Boolean", "Integer", "Decimal", "String", "Date", "Time",
	// "DateTime", "Quantity", or the resource type for structured values.
	TypeName() string

	// Equal reports strict FHIRPath equality (=) against another element.
	Equal(other Element) bool

	// Equivalent reports FHIRPath equivalence (~), a looser comparison
	// that ignores string case/whitespace and decimal trailing precision.
	Equivalent(other Element) bool

	// String returns a human-readable rendering of the element.
	String() string
}

// Boolean is the FHIRPath boolean type.
type Boolean bool

// Bool returns the native bool value.
func (b Boolean) Bool() bool { return bool(b) }

// TypeName implements Element.
func (b Boolean) TypeName() string { return "Boolean" }

// Equal implements Element.
func (b Boolean) Equal(other Element) bool {
	o, ok := other.(Boolean)
	return ok && b == o
}

// Equivalent implements Element.
func (b Boolean) Equivalent(other Element) bool { return b.Equal(other) }

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer is the FHIRPath integer type (32-bit per the specification).
type Integer int32

// Int returns the native int value.
func (i Integer) Int() int { return int(i) }

// TypeName implements Element.
func (i Integer) TypeName() string { return "Integer" }

// Equal implements Element. Integers compare equal to decimals with the
// same numeric value.
func (i Integer) Equal(other Element) bool {
	switch o := other.(type) {
	case Integer:
		return i == o
	case Decimal:
		return decimal.NewFromInt(int64(i)).Equal(o.Value)
	default:
		return false
	}
}

// Equivalent implements Element.
func (i Integer) Equivalent(other Element) bool { return i.Equal(other) }

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// Decimal is the FHIRPath decimal type, backed by arbitrary-precision
// decimal arithmetic.
type Decimal struct {
	Value decimal.Decimal
}

// NewDecimal creates a Decimal from a native float.
func NewDecimal(f float64) Decimal { return Decimal{Value: decimal.NewFromFloat(f)} }

// NewDecimalInt creates a Decimal from a native int.
func NewDecimalInt(i int64) Decimal { return Decimal{Value: decimal.NewFromInt(i)} }

// ParseDecimal creates a Decimal from its literal text.
func ParseDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Value: d}, nil
}

// TypeName implements Element.
func (d Decimal) TypeName() string { return "Decimal" }

// Equal implements Element.
func (d Decimal) Equal(other Element) bool {
	switch o := other.(type) {
	case Decimal:
		return d.Value.Equal(o.Value)
	case Integer:
		return d.Value.Equal(decimal.NewFromInt(int64(o)))
	default:
		return false
	}
}

// Equivalent implements Element. Values are compared after rounding both
// operands to the precision of the least precise one.
func (d Decimal) Equivalent(other Element) bool {
	var o decimal.Decimal
	switch v := other.(type) {
	case Decimal:
		o = v.Value
	case Integer:
		o = decimal.NewFromInt(int64(v))
	default:
		return false
	}
	places := decimalPlaces(d.Value)
	if p := decimalPlaces(o); p < places {
		places = p
	}
	return d.Value.Round(places).Equal(o.Round(places))
}

func decimalPlaces(d decimal.Decimal) int32 {
	if e := d.Exponent(); e < 0 {
		return -e
	}
	return 0
}

func (d Decimal) String() string { return d.Value.String() }

// String is the FHIRPath string type.
type String string

// TypeName implements Element.
func (s String) TypeName() string { return "String" }

// Equal implements Element.
func (s String) Equal(other Element) bool {
	o, ok := other.(String)
	return ok && s == o
}

// Equivalent implements Element. String equivalence ignores case and
// collapses runs of whitespace.
func (s String) Equivalent(other Element) bool {
	o, ok := other.(String)
	if !ok {
		return false
	}
	return normalizeString(string(s)) == normalizeString(string(o))
}

func normalizeString(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (s String) String() string { return string(s) }

// Quantity is a decimal value with a unit, e.g. 4.5 'mg' or 6 days.
// Units are compared literally; no UCUM conversion is performed.
type Quantity struct {
	Value decimal.Decimal
	Unit  string
}

// TypeName implements Element.
func (q Quantity) TypeName() string { return "Quantity" }

// Equal implements Element.
func (q Quantity) Equal(other Element) bool {
	o, ok := other.(Quantity)
	return ok && q.Unit == o.Unit && q.Value.Equal(o.Value)
}

// Equivalent implements Element.
func (q Quantity) Equivalent(other Element) bool {
	o, ok := other.(Quantity)
	if !ok || q.Unit != o.Unit {
		return false
	}
	return Decimal{Value: q.Value}.Equivalent(Decimal{Value: o.Value})
}

func (q Quantity) String() string { return q.Value.String() + " '" + q.Unit + "'" }

// Date is a FHIRPath date literal (@2014-01-25). The text is stored in its
// canonical ISO form without the leading @; precision is implied by length.
type Date struct {
	Text string
}

// TypeName implements Element.
func (d Date) TypeName() string { return "Date" }

// Equal implements Element.
func (d Date) Equal(other Element) bool {
	o, ok := other.(Date)
	return ok && d.Text == o.Text
}

// Equivalent implements Element.
func (d Date) Equivalent(other Element) bool { return d.Equal(other) }

func (d Date) String() string { return "@" + d.Text }

// Time is a FHIRPath time literal (@T14:30:00).
type Time struct {
	Text string
}

// TypeName implements Element.
func (t Time) TypeName() string { return "Time" }

// Equal implements Element.
func (t Time) Equal(other Element) bool {
	o, ok := other.(Time)
	return ok && t.Text == o.Text
}

// Equivalent implements Element.
func (t Time) Equivalent(other Element) bool { return t.Equal(other) }

func (t Time) String() string { return "@T" + t.Text }

// DateTime is a FHIRPath dateTime literal (@2014-01-25T14:30:00+02:00).
type DateTime struct {
	Text string
}

// TypeName implements Element.
func (dt DateTime) TypeName() string { return "DateTime" }

// Equal implements Element.
func (dt DateTime) Equal(other Element) bool {
	o, ok := other.(DateTime)
	return ok && dt.Text == o.Text
}

// Equivalent implements Element.
func (dt DateTime) Equivalent(other Element) bool { return dt.Equal(other) }

func (dt DateTime) String() string { return "@" + dt.Text }

// Compare orders two elements. It returns the comparison result and true
// when the elements are comparable, or false when they are not (mixed
// incompatible types, or temporal values of differing precision). An
// incomparable pair is not an error: relational operators propagate it as
// the empty collection.
func Compare(a, b Element) (int, bool) {
	switch av := a.(type) {
	case Integer:
		switch bv := b.(type) {
		case Integer:
			return decimal.NewFromInt(int64(av)).Cmp(decimal.NewFromInt(int64(bv))), true
		case Decimal:
			return decimal.NewFromInt(int64(av)).Cmp(bv.Value), true
		}
	case Decimal:
		switch bv := b.(type) {
		case Integer:
			return av.Value.Cmp(decimal.NewFromInt(int64(bv))), true
		case Decimal:
			return av.Value.Cmp(bv.Value), true
		}
	case String:
		if bv, ok := b.(String); ok {
			return strings.Compare(string(av), string(bv)), true
		}
	case Quantity:
		if bv, ok := b.(Quantity); ok && av.Unit == bv.Unit {
			return av.Value.Cmp(bv.Value), true
		}
	case Date:
		if bv, ok := b.(Date); ok {
			return compareTemporal(av.Text, bv.Text)
		}
	case DateTime:
		if bv, ok := b.(DateTime); ok {
			return compareTemporal(av.Text, bv.Text)
		}
	case Time:
		if bv, ok := b.(Time); ok {
			return compareTemporal(av.Text, bv.Text)
		}
	}
	return 0, false
}

// compareTemporal compares two ISO temporal strings. Values of differing
// precision where one is a prefix of the other are incomparable.
func compareTemporal(a, b string) (int, bool) {
	if len(a) != len(b) {
		short, long := a, b
		if len(short) > len(long) {
			short, long = long, short
		}
		if strings.HasPrefix(long, short) {
			return 0, false
		}
	}
	return strings.Compare(a, b), true
}
