package types

import "testing"

const patientJSON = `{
  "resourceType": "Patient",
  "id": "example",
  "active": true,
  "deceasedBoolean": null,
  "multipleBirthInteger": 3,
  "name": [
    {"use": "official", "family": "Chalmers", "given": ["Peter", "James"]},
    {"use": "usual", "given": ["Jim"]}
  ],
  "extension": [],
  "maritalStatus": {
    "coding": [{"system": "http://terminology.hl7.org/CodeSystem/v3-MaritalStatus", "code": "M"}]
  }
}`

func TestFromJSON_Resource(t *testing.T) {
	c, err := FromJSON([]byte(patientJSON))
	if err != nil {
		t.Fatalf("FromJSON error: %v", err)
	}
	if len(c) != 1 {
		t.Fatalf("FromJSON len = %d; want 1", len(c))
	}
	patient, ok := c[0].(*Object)
	if !ok {
		t.Fatalf("FromJSON element = %T; want *Object", c[0])
	}
	if got := patient.TypeName(); got != "Patient" {
		t.Errorf("TypeName() = %q; want Patient", got)
	}

	// null fields and empty arrays are absent
	if _, ok := patient.Field("deceasedBoolean"); ok {
		t.Error("null field should be absent")
	}
	if _, ok := patient.Field("extension"); ok {
		t.Error("empty array field should be absent")
	}

	// whole numbers without a fraction become integers
	mb, ok := patient.Field("multipleBirthInteger")
	if !ok || len(mb) != 1 {
		t.Fatalf("Field(multipleBirthInteger) = %v, %v", mb, ok)
	}
	if _, isInt := mb[0].(Integer); !isInt {
		t.Errorf("multipleBirthInteger = %T; want Integer", mb[0])
	}

	active, _ := patient.Field("active")
	if len(active) != 1 || !active[0].Equal(Boolean(true)) {
		t.Errorf("active = %v; want [true]", active)
	}

	names, ok := patient.Field("name")
	if !ok || len(names) != 2 {
		t.Fatalf("name = %v, %v; want two entries", names, ok)
	}
	first, ok := names[0].(*Object)
	if !ok {
		t.Fatalf("name[0] = %T; want *Object", names[0])
	}
	given, _ := first.Field("given")
	if len(given) != 2 || !given[0].Equal(String("Peter")) || !given[1].Equal(String("James")) {
		t.Errorf("name[0].given = %v; want [Peter, James]", given)
	}
}

func TestFromJSON_Scalars(t *testing.T) {
	tests := []struct {
		input string
		want  Element
	}{
		{`"hello"`, String("hello")},
		{`42`, Integer(42)},
		{`4.5`, dec("4.5")},
		{`1e2`, dec("100")},
		{`true`, Boolean(true)},
		{`false`, Boolean(false)},
	}
	for _, tt := range tests {
		c, err := FromJSON([]byte(tt.input))
		if err != nil {
			t.Errorf("FromJSON(%s) error: %v", tt.input, err)
			continue
		}
		if len(c) != 1 || !c[0].Equal(tt.want) {
			t.Errorf("FromJSON(%s) = %v; want [%v]", tt.input, c, tt.want)
		}
	}
}

func TestFromJSON_NullAndEmpty(t *testing.T) {
	for _, input := range []string{"null", "", "   "} {
		c, err := FromJSON([]byte(input))
		if err != nil {
			t.Errorf("FromJSON(%q) error: %v", input, err)
			continue
		}
		if len(c) != 0 {
			t.Errorf("FromJSON(%q) = %v; want empty", input, c)
		}
	}
}

func TestFromJSON_Array(t *testing.T) {
	c, err := FromJSON([]byte(`[1, "two", [3, 4]]`))
	if err != nil {
		t.Fatalf("FromJSON error: %v", err)
	}
	// nested arrays splice one level
	if len(c) != 4 {
		t.Fatalf("len = %d (%v); want 4", len(c), c)
	}
	if !c[0].Equal(Integer(1)) || !c[1].Equal(String("two")) || !c[2].Equal(Integer(3)) || !c[3].Equal(Integer(4)) {
		t.Errorf("FromJSON = %v; want [1, two, 3, 4]", c)
	}
}

func TestFromJSON_LargeNumber(t *testing.T) {
	// numbers outside int32 fall through to decimal
	c, err := FromJSON([]byte(`4294967296`))
	if err != nil {
		t.Fatalf("FromJSON error: %v", err)
	}
	if len(c) != 1 {
		t.Fatalf("len = %d; want 1", len(c))
	}
	if _, ok := c[0].(Decimal); !ok {
		t.Errorf("element = %T; want Decimal", c[0])
	}
}

func TestFromJSON_Invalid(t *testing.T) {
	for _, input := range []string{`{"a": }`, `[1,`, `{`} {
		if _, err := FromJSON([]byte(input)); err == nil {
			t.Errorf("FromJSON(%q) expected error", input)
		}
	}
}

func TestToNative_RoundTrip(t *testing.T) {
	c, err := FromJSON([]byte(patientJSON))
	if err != nil {
		t.Fatalf("FromJSON error: %v", err)
	}
	native := ToNative(c)
	if len(native) != 1 {
		t.Fatalf("ToNative len = %d; want 1", len(native))
	}
	m, ok := native[0].(map[string]any)
	if !ok {
		t.Fatalf("native[0] = %T; want map", native[0])
	}
	if m["id"] != "example" {
		t.Errorf("id = %v; want example", m["id"])
	}
	if m["active"] != true {
		t.Errorf("active = %v; want true", m["active"])
	}
}
