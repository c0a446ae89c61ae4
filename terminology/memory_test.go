package terminology

import (
	"sync"
	"testing"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/interp"
)

const genderVS = "http://hl7.org/fhir/ValueSet/administrative-gender"

func TestInMemoryProvider_Contains(t *testing.T) {
	p := NewInMemoryProvider()
	p.AddValueSet(genderVS, "http://hl7.org/fhir/administrative-gender", "male", "female", "other", "unknown")
	p.AddValueSet("http://example.org/vs/bare", "", "a", "b")

	tests := []struct {
		code string
		url  string
		want bool
	}{
		{"male", genderVS, true},
		{"http://hl7.org/fhir/administrative-gender|male", genderVS, true},
		{"http://wrong.system|male", genderVS, false},
		{"none", genderVS, false},
		{"male", "http://example.org/vs/unknown", false},
		{"a", "http://example.org/vs/bare", true},
		// codes loaded without a system match any qualified query
		{"http://any.system|a", "http://example.org/vs/bare", true},
		{"c", "http://example.org/vs/bare", false},
	}
	for _, tt := range tests {
		if got := p.Contains(tt.code, tt.url); got != tt.want {
			t.Errorf("Contains(%q, %q) = %v; want %v", tt.code, tt.url, got, tt.want)
		}
	}

	if p.ValueSetCount() != 2 {
		t.Errorf("ValueSetCount = %d; want 2", p.ValueSetCount())
	}
	if p.CodeCount(genderVS) != 4 {
		t.Errorf("CodeCount = %d; want 4", p.CodeCount(genderVS))
	}
	if p.CodeCount("http://example.org/vs/unknown") != 0 {
		t.Errorf("CodeCount of unknown value set should be 0")
	}
}

func TestInMemoryProvider_Concurrent(t *testing.T) {
	p := NewInMemoryProvider()
	p.AddValueSet(genderVS, "", "male")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.AddValueSet(genderVS, "", "female")
		}()
		go func() {
			defer wg.Done()
			p.Contains("male", genderVS)
		}()
	}
	wg.Wait()

	if !p.Contains("female", genderVS) {
		t.Error("Contains(female) = false after concurrent loads")
	}
}

// The provider satisfies the engine's memberOf hook directly.
var _ interp.MemberOfFunc = NewInMemoryProvider().Contains

func TestInMemoryProvider_WithEngine(t *testing.T) {
	p := NewInMemoryProvider()
	p.AddValueSet(genderVS, "http://hl7.org/fhir/administrative-gender", "male", "female")

	engine := fhirpath.New(fhirpath.WithMemberOf(p.Contains))
	resource := []byte(`{"resourceType": "Patient", "gender": "male"}`)

	out, err := engine.Evaluate("gender.memberOf('"+genderVS+"')", resource)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(out) != 1 || out[0].String() != "true" {
		t.Errorf("memberOf = %v; want [true]", out)
	}
}

func TestLoadValueSet_Expansion(t *testing.T) {
	data := []byte(`{
	  "resourceType": "ValueSet",
	  "url": "http://example.org/vs/colors",
	  "expansion": {
	    "contains": [
	      {"system": "http://example.org/cs", "code": "red"},
	      {"system": "http://example.org/cs", "code": "green"}
	    ]
	  }
	}`)
	p := NewInMemoryProvider()
	if err := p.LoadValueSet(data); err != nil {
		t.Fatalf("LoadValueSet: %v", err)
	}
	if !p.Contains("red", "http://example.org/vs/colors") {
		t.Error("expansion code not loaded")
	}
	if !p.Contains("http://example.org/cs|green", "http://example.org/vs/colors") {
		t.Error("system-qualified lookup failed")
	}
	if p.Contains("blue", "http://example.org/vs/colors") {
		t.Error("Contains(blue) = true; not in expansion")
	}
}

func TestLoadValueSet_Compose(t *testing.T) {
	data := []byte(`{
	  "resourceType": "ValueSet",
	  "url": "http://example.org/vs/compose",
	  "compose": {
	    "include": [
	      {"system": "http://example.org/cs", "concept": [
	        {"code": "x", "display": "Ex"},
	        {"code": "y"}
	      ]}
	    ]
	  }
	}`)
	p := NewInMemoryProvider()
	if err := p.LoadValueSet(data); err != nil {
		t.Fatalf("LoadValueSet: %v", err)
	}
	if p.CodeCount("http://example.org/vs/compose") != 2 {
		t.Errorf("CodeCount = %d; want 2", p.CodeCount("http://example.org/vs/compose"))
	}
	if !p.Contains("http://example.org/cs|x", "http://example.org/vs/compose") {
		t.Error("compose concept not loaded")
	}
}

func TestLoadValueSet_Errors(t *testing.T) {
	p := NewInMemoryProvider()
	cases := []struct {
		name string
		data string
	}{
		{"wrong resource type", `{"resourceType": "CodeSystem", "url": "http://x"}`},
		{"missing url", `{"resourceType": "ValueSet"}`},
		{"no codes", `{"resourceType": "ValueSet", "url": "http://x"}`},
	}
	for _, tt := range cases {
		if err := p.LoadValueSet([]byte(tt.data)); err == nil {
			t.Errorf("%s: LoadValueSet should fail", tt.name)
		}
	}
}
