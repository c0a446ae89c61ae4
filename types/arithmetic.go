package types

import "github.com/shopspring/decimal"

// The arithmetic helpers below implement FHIRPath operator semantics over
// single elements. They return ok=false for operand type mismatches and for
// division by zero; callers propagate that as the empty collection rather
// than an error, per the language's fail-soft rule.

func asDecimal(e Element) (decimal.Decimal, bool) {
	switch v := e.(type) {
	case Integer:
		return decimal.NewFromInt(int64(v)), true
	case Decimal:
		return v.Value, true
	default:
		return decimal.Decimal{}, false
	}
}

func bothIntegers(a, b Element) (Integer, Integer, bool) {
	ai, aok := a.(Integer)
	bi, bok := b.(Integer)
	return ai, bi, aok && bok
}

// Add implements the + operator for numbers, quantities and strings.
func Add(a, b Element) (Element, bool) {
	if ai, bi, ok := bothIntegers(a, b); ok {
		return ai + bi, true
	}
	if aq, ok := a.(Quantity); ok {
		if bq, ok := b.(Quantity); ok && aq.Unit == bq.Unit {
			return Quantity{Value: aq.Value.Add(bq.Value), Unit: aq.Unit}, true
		}
		return nil, false
	}
	if as, ok := a.(String); ok {
		if bs, ok := b.(String); ok {
			return as + bs, true
		}
		return nil, false
	}
	ad, aok := asDecimal(a)
	bd, bok := asDecimal(b)
	if !aok || !bok {
		return nil, false
	}
	return Decimal{Value: ad.Add(bd)}, true
}

// Subtract implements the - operator.
func Subtract(a, b Element) (Element, bool) {
	if ai, bi, ok := bothIntegers(a, b); ok {
		return ai - bi, true
	}
	if aq, ok := a.(Quantity); ok {
		if bq, ok := b.(Quantity); ok && aq.Unit == bq.Unit {
			return Quantity{Value: aq.Value.Sub(bq.Value), Unit: aq.Unit}, true
		}
		return nil, false
	}
	ad, aok := asDecimal(a)
	bd, bok := asDecimal(b)
	if !aok || !bok {
		return nil, false
	}
	return Decimal{Value: ad.Sub(bd)}, true
}

// Multiply implements the * operator.
func Multiply(a, b Element) (Element, bool) {
	if ai, bi, ok := bothIntegers(a, b); ok {
		return ai * bi, true
	}
	if aq, ok := a.(Quantity); ok {
		if bd, ok := asDecimal(b); ok {
			return Quantity{Value: aq.Value.Mul(bd), Unit: aq.Unit}, true
		}
		return nil, false
	}
	ad, aok := asDecimal(a)
	bd, bok := asDecimal(b)
	if !aok || !bok {
		return nil, false
	}
	return Decimal{Value: ad.Mul(bd)}, true
}

// Divide implements the / operator. The result is always a decimal;
// division by zero yields empty.
func Divide(a, b Element) (Element, bool) {
	ad, aok := asDecimal(a)
	bd, bok := asDecimal(b)
	if !aok || !bok || bd.IsZero() {
		return nil, false
	}
	return Decimal{Value: ad.DivRound(bd, 28)}, true
}

// Div implements truncated integer division.
func Div(a, b Element) (Element, bool) {
	if ai, bi, ok := bothIntegers(a, b); ok {
		if bi == 0 {
			return nil, false
		}
		return ai / bi, true
	}
	ad, aok := asDecimal(a)
	bd, bok := asDecimal(b)
	if !aok || !bok || bd.IsZero() {
		return nil, false
	}
	q := ad.Div(bd).Truncate(0)
	return Integer(q.IntPart()), true
}

// Mod implements the mod operator.
func Mod(a, b Element) (Element, bool) {
	if ai, bi, ok := bothIntegers(a, b); ok {
		if bi == 0 {
			return nil, false
		}
		return ai % bi, true
	}
	ad, aok := asDecimal(a)
	bd, bok := asDecimal(b)
	if !aok || !bok || bd.IsZero() {
		return nil, false
	}
	return Decimal{Value: ad.Mod(bd)}, true
}

// Negate implements unary minus.
func Negate(e Element) (Element, bool) {
	switch v := e.(type) {
	case Integer:
		return -v, true
	case Decimal:
		return Decimal{Value: v.Value.Neg()}, true
	case Quantity:
		return Quantity{Value: v.Value.Neg(), Unit: v.Unit}, true
	default:
		return nil, false
	}
}
