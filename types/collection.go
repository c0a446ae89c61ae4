package types

import "strings"

// Collection is the universal FHIRPath value shape: an ordered, possibly
// empty sequence of elements. Absence is the empty collection and a scalar
// is a one-element collection.
type Collection []Element

// Empty reports whether the collection has no elements.
func (c Collection) Empty() bool { return len(c) == 0 }

// Singleton returns the sole element when the collection has exactly one,
// propagating false otherwise.
func (c Collection) Singleton() (Element, bool) {
	if len(c) != 1 {
		return nil, false
	}
	return c[0], true
}

// SingletonString returns the sole element as a String.
func (c Collection) SingletonString() (String, bool) {
	e, ok := c.Singleton()
	if !ok {
		return "", false
	}
	s, ok := e.(String)
	return s, ok
}

// SingletonInteger returns the sole element as an Integer.
func (c Collection) SingletonInteger() (Integer, bool) {
	e, ok := c.Singleton()
	if !ok {
		return 0, false
	}
	i, ok := e.(Integer)
	return i, ok
}

// SingletonBoolean applies FHIRPath singleton boolean conversion: an empty
// or multi-element collection is unknown (ok=false), a single boolean is
// itself, and any other single element converts to true.
func (c Collection) SingletonBoolean() (Boolean, bool) {
	e, ok := c.Singleton()
	if !ok {
		return false, false
	}
	if b, isBool := e.(Boolean); isBool {
		return b, true
	}
	return true, true
}

// Contains reports whether the collection holds an element equal to e.
func (c Collection) Contains(e Element) bool {
	for _, item := range c {
		if item.Equal(e) {
			return true
		}
	}
	return false
}

// Equal reports FHIRPath equality (=) between collections. The result is
// unknown (ok=false) when either side is empty. Collections of differing
// non-zero cardinality are unequal; otherwise elements compare pairwise.
func (c Collection) Equal(other Collection) (eq, ok bool) {
	if len(c) == 0 || len(other) == 0 {
		return false, false
	}
	if len(c) != len(other) {
		return false, true
	}
	for i := range c {
		if !c[i].Equal(other[i]) {
			return false, true
		}
	}
	return true, true
}

// Equivalent reports FHIRPath equivalence (~). Unlike Equal, two empty
// collections are equivalent and the result is never unknown.
func (c Collection) Equivalent(other Collection) bool {
	if len(c) != len(other) {
		return false
	}
	// Equivalence is order-insensitive: every element must have an
	// equivalent partner on the other side.
	used := make([]bool, len(other))
outer:
	for _, e := range c {
		for i, o := range other {
			if !used[i] && e.Equivalent(o) {
				used[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// Union concatenates both collections and removes structural duplicates,
// preserving first-seen order.
func (c Collection) Union(other Collection) Collection {
	out := make(Collection, 0, len(c)+len(other))
	for _, e := range c {
		if !out.Contains(e) {
			out = append(out, e)
		}
	}
	for _, e := range other {
		if !out.Contains(e) {
			out = append(out, e)
		}
	}
	return out
}

// Combine concatenates both collections without eliminating duplicates.
func (c Collection) Combine(other Collection) Collection {
	out := make(Collection, 0, len(c)+len(other))
	out = append(out, c...)
	out = append(out, other...)
	return out
}

// Distinct removes structural duplicates, preserving first-seen order.
func (c Collection) Distinct() Collection {
	out := make(Collection, 0, len(c))
	for _, e := range c {
		if !out.Contains(e) {
			out = append(out, e)
		}
	}
	return out
}

// IsDistinct reports whether the collection holds no duplicate elements.
func (c Collection) IsDistinct() bool {
	for i, e := range c {
		for _, o := range c[i+1:] {
			if e.Equal(o) {
				return false
			}
		}
	}
	return true
}

func (c Collection) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range c {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
