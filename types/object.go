package types

import "strings"

// Object is a structured element: a JSON object such as a FHIR resource or
// a complex datatype. Field values are collections; a scalar field is a
// one-element collection and an absent field is simply missing. Objects are
// built once (during JSON conversion or test setup) and must not be mutated
// afterwards.
type Object struct {
	fields map[string]Collection
	order  []string
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Collection)}
}

// ObjectOf creates an object from name/value pairs, preserving the given
// field order. It is primarily a test and CLI convenience.
func ObjectOf(pairs ...any) *Object {
	o := NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		name := pairs[i].(string)
		o.Set(name, toCollection(pairs[i+1]))
	}
	return o
}

func toCollection(v any) Collection {
	switch t := v.(type) {
	case Collection:
		return t
	case Element:
		return Collection{t}
	default:
		return Collection{FromValue(v)}
	}
}

// Set stores a field, keeping insertion order. It returns the object to
// allow chained construction.
func (o *Object) Set(name string, value Collection) *Object {
	if _, exists := o.fields[name]; !exists {
		o.order = append(o.order, name)
	}
	o.fields[name] = value
	return o
}

// Field returns the named field's collection and whether it is present.
func (o *Object) Field(name string) (Collection, bool) {
	c, ok := o.fields[name]
	return c, ok
}

// FieldNames returns the field names in insertion order.
func (o *Object) FieldNames() []string { return o.order }

// Children returns the concatenation of all field collections in field
// order, which is the FHIRPath children() of the object.
func (o *Object) Children() Collection {
	var out Collection
	for _, name := range o.order {
		out = append(out, o.fields[name]...)
	}
	return out
}

// ResourceType returns the value of the resourceType field, if the object
// carries one.
func (o *Object) ResourceType() (string, bool) {
	c, ok := o.fields["resourceType"]
	if !ok || len(c) != 1 {
		return "", false
	}
	s, ok := c[0].(String)
	return string(s), ok
}

// TypeName implements Element. Resources report their resourceType;
// anonymous complex values report "Object".
func (o *Object) TypeName() string {
	if rt, ok := o.ResourceType(); ok {
		return rt
	}
	return "Object"
}

// Equal implements Element: both objects have the same field names and
// every field compares pairwise equal.
func (o *Object) Equal(other Element) bool {
	p, ok := other.(*Object)
	if !ok || len(o.fields) != len(p.fields) {
		return false
	}
	for name, c := range o.fields {
		d, ok := p.fields[name]
		if !ok || len(c) != len(d) {
			return false
		}
		for i := range c {
			if !c[i].Equal(d[i]) {
				return false
			}
		}
	}
	return true
}

// Equivalent implements Element, comparing fields with Equivalent instead
// of Equal.
func (o *Object) Equivalent(other Element) bool {
	p, ok := other.(*Object)
	if !ok || len(o.fields) != len(p.fields) {
		return false
	}
	for name, c := range o.fields {
		d, ok := p.fields[name]
		if !ok || len(c) != len(d) {
			return false
		}
		for i := range c {
			if !c[i].Equivalent(d[i]) {
				return false
			}
		}
	}
	return true
}

func (o *Object) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range o.order {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		c := o.fields[name]
		if len(c) == 1 {
			sb.WriteString(c[0].String())
		} else {
			sb.WriteString(c.String())
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
