package types

import "testing"

func TestCollection_SingletonBoolean(t *testing.T) {
	tests := []struct {
		name string
		c    Collection
		want Boolean
		ok   bool
	}{
		{"empty", Collection{}, false, false},
		{"true", Collection{Boolean(true)}, true, true},
		{"false", Collection{Boolean(false)}, false, true},
		{"non-boolean coerces to true", Collection{String("hello")}, true, true},
		{"integer coerces to true", Collection{Integer(0)}, true, true},
		{"multiple is unknown", Collection{Boolean(true), Boolean(true)}, false, false},
	}
	for _, tt := range tests {
		got, ok := tt.c.SingletonBoolean()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: SingletonBoolean() = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCollection_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Collection
		eq   bool
		ok   bool
	}{
		{"both empty is unknown", nil, nil, false, false},
		{"left empty is unknown", nil, Collection{Integer(1)}, false, false},
		{"right empty is unknown", Collection{Integer(1)}, nil, false, false},
		{"equal singletons", Collection{Integer(1)}, Collection{Integer(1)}, true, true},
		{"unequal singletons", Collection{Integer(1)}, Collection{Integer(2)}, false, true},
		{"cardinality mismatch", Collection{Integer(1)}, Collection{Integer(1), Integer(2)}, false, true},
		{"pairwise in order", Collection{Integer(1), Integer(2)}, Collection{Integer(1), Integer(2)}, true, true},
		{"order matters", Collection{Integer(1), Integer(2)}, Collection{Integer(2), Integer(1)}, false, true},
		{"integer equals decimal", Collection{Integer(1)}, Collection{NewDecimalInt(1)}, true, true},
	}
	for _, tt := range tests {
		eq, ok := tt.a.Equal(tt.b)
		if eq != tt.eq || ok != tt.ok {
			t.Errorf("%s: Equal = %v, %v; want %v, %v", tt.name, eq, ok, tt.eq, tt.ok)
		}
	}
}

func TestCollection_Equivalent(t *testing.T) {
	tests := []struct {
		name string
		a, b Collection
		want bool
	}{
		{"both empty", nil, nil, true},
		{"one empty", nil, Collection{Integer(1)}, false},
		{"order insensitive", Collection{Integer(1), Integer(2)}, Collection{Integer(2), Integer(1)}, true},
		{"cardinality mismatch", Collection{Integer(1)}, Collection{Integer(1), Integer(1)}, false},
		{"string case folded", Collection{String("Peter")}, Collection{String("peter")}, true},
		{"duplicates must pair up", Collection{Integer(1), Integer(1)}, Collection{Integer(1), Integer(2)}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Equivalent(tt.b); got != tt.want {
			t.Errorf("%s: Equivalent = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestCollection_UnionAndCombine(t *testing.T) {
	a := Collection{Integer(1), Integer(2)}
	b := Collection{Integer(2), Integer(3)}

	u := a.Union(b)
	if len(u) != 3 {
		t.Fatalf("Union len = %d (%v); want 3", len(u), u)
	}
	for i, want := range []Integer{1, 2, 3} {
		if !u[i].Equal(want) {
			t.Errorf("Union[%d] = %v; want %v", i, u[i], want)
		}
	}

	c := a.Combine(b)
	if len(c) != 4 {
		t.Fatalf("Combine len = %d (%v); want 4", len(c), c)
	}
}

func TestCollection_Distinct(t *testing.T) {
	c := Collection{Integer(1), Integer(2), Integer(1), Integer(3), Integer(2)}
	d := c.Distinct()
	if len(d) != 3 {
		t.Fatalf("Distinct len = %d (%v); want 3", len(d), d)
	}
	// first-seen order preserved
	for i, want := range []Integer{1, 2, 3} {
		if !d[i].Equal(want) {
			t.Errorf("Distinct[%d] = %v; want %v", i, d[i], want)
		}
	}

	if c.IsDistinct() {
		t.Error("IsDistinct() = true for collection with duplicates")
	}
	if !d.IsDistinct() {
		t.Error("IsDistinct() = false for deduplicated collection")
	}
	if !Collection(nil).IsDistinct() {
		t.Error("IsDistinct() = false for empty collection")
	}
}

func TestCollection_Contains(t *testing.T) {
	c := Collection{Integer(1), String("a")}
	if !c.Contains(Integer(1)) {
		t.Error("Contains(1) = false")
	}
	if !c.Contains(NewDecimalInt(1)) {
		t.Error("Contains(1.0) = false; integers and decimals compare equal")
	}
	if c.Contains(String("b")) {
		t.Error("Contains('b') = true")
	}
}

func TestCollection_String(t *testing.T) {
	c := Collection{Integer(1), String("a")}
	if got := c.String(); got != "[1, a]" {
		t.Errorf("String() = %q; want [1, a]", got)
	}
	if got := Collection(nil).String(); got != "[]" {
		t.Errorf("empty String() = %q; want []", got)
	}
}
