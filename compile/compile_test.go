package compile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gofhir/fhirpath/interp"
	"github.com/gofhir/fhirpath/parser"
	"github.com/gofhir/fhirpath/types"
)

const patientJSON = `{
  "resourceType": "Patient",
  "id": "example",
  "active": true,
  "name": [
    {"use": "official", "family": "Chalmers", "given": ["Peter", "James"]},
    {"use": "usual", "given": ["Jim"]}
  ],
  "telecom": [
    {"system": "phone", "value": "(03) 5555 6473", "use": "work"},
    {"system": "phone", "value": "(03) 3410 5613", "use": "mobile"}
  ],
  "birthDate": "1974-12-25"
}`

func patient(t *testing.T) types.Collection {
	t.Helper()
	c, err := types.FromJSON([]byte(patientJSON))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	return c
}

// TestCompile_AgreesWithInterpreter runs every supported expression through
// both execution strategies and requires identical results.
func TestCompile_AgreesWithInterpreter(t *testing.T) {
	root := patient(t)
	sources := []string{
		"name.given",
		"name.family",
		"name[0].given[1]",
		"name.where(use = 'official').given.first()",
		"name.where(use = 'none')",
		"name.select(given.count())",
		"name.exists(use = 'official')",
		"name.exists(use = 'maiden')",
		"name.exists()",
		"name.suffix.exists()",
		"name.all(use.exists())",
		"name.given.count()",
		"name.given.distinct()",
		"name.given.skip(1).take(1)",
		"name.given.first() | name.given.last()",
		"(1 | 2).combine(2 | 3)",
		"telecom.where(use = 'mobile').value",
		"name.given.empty()",
		"active.not()",
		"1 + 2 * 3",
		"7 div 2",
		"7 mod 2",
		"1 / 0",
		"-5 + 3",
		"'ab' & {} & 'cd'",
		"1 < 2 and 2 <= 2",
		"true or {}",
		"true xor false",
		"false implies {}",
		"1 = 1.0",
		"'a' ~ 'A'",
		"(1 | 2) != (1 | 2)",
		"birthDate = '1974-12-25'",
		"birthDate is String",
		"1 as Integer",
		"$this is Patient",
		"%resource.id",
		"%ucum",
		"{}",
		"{} = 1",
		"iif(active, 'yes', 'no')",
		"iif({}, 'yes', 'no')",
		"iif(false, 'yes')",
		"'abcdef'.substring(1, 3)",
		"'abc'.upper() & 'def'.lower()",
		"id.length()",
		"id.startsWith('exa')",
		"id.endsWith('xyz')",
		"id.contains('amp')",
		"(42).toString()",
		"name.given.select($this.length())",
		"name.given.select($index)",
		"name.where($index > 0).given",
	}
	for _, source := range sources {
		node, err := parser.Parse(source)
		if err != nil {
			t.Fatalf("Parse(%q): %v", source, err)
		}

		closure, err := Compile(node)
		if err != nil {
			t.Errorf("Compile(%q): %v (expected supported)", source, err)
			continue
		}

		want, err := interp.Evaluate(node, interp.NewContext(root))
		if err != nil {
			t.Fatalf("interpret %q: %v", source, err)
		}
		got, err := closure(root, interp.NewContext(root))
		if err != nil {
			t.Fatalf("compiled %q: %v", source, err)
		}

		if len(got) == 0 && len(want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%q: compiled %v != interpreted %v", source, got, want)
		}
	}
}

// TestCompile_Unsupported lists constructs the compiler must reject
// statically so the engine can fall back to the interpreter once, at parse
// time.
func TestCompile_Unsupported(t *testing.T) {
	sources := []string{
		"1 in (1 | 2)",
		"(1 | 2) contains 1",
		"repeat(item)",
		"descendants()",
		"(1 | 2).aggregate($this + $total, 0)",
		"$total",
		"name.given.toChars()",
		"id.matches('ex.*')",
		"subject.resolve()",
		"code.memberOf('http://example.org/vs')",
		"name.trace('n')",
		"(1.5).round()",
		"name.given.single()",
		"name.ofType(HumanName)",
		// unsupported construct anywhere in the tree poisons the whole
		// expression
		"name.where(use.matches('off.*'))",
		"iif(active, name.trace('n'), {})",
	}
	for _, source := range sources {
		node, err := parser.Parse(source)
		if err != nil {
			t.Fatalf("Parse(%q): %v", source, err)
		}
		_, err = Compile(node)
		if err == nil {
			t.Errorf("Compile(%q) succeeded; want ErrUnsupported", source)
			continue
		}
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Compile(%q) error %v; want ErrUnsupported", source, err)
		}
		var cerr *Error
		if !errors.As(err, &cerr) || cerr.Construct == "" {
			t.Errorf("Compile(%q) error %v; want *Error naming the construct", source, err)
		}
	}
}

func TestCompile_ClosureReusable(t *testing.T) {
	node, err := parser.Parse("name.given.count()")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	closure, err := Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	root := patient(t)
	for i := 0; i < 3; i++ {
		out, err := closure(root, interp.NewContext(root))
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if len(out) != 1 || !out[0].Equal(types.Integer(3)) {
			t.Fatalf("run %d = %v; want [3]", i, out)
		}
	}
}

func TestCompile_EnvVars(t *testing.T) {
	node, err := parser.Parse("%threshold + 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	closure, err := Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ctx := interp.NewContext(nil).WithEnv("threshold", types.Collection{types.Integer(4)})
	out, err := closure(nil, ctx)
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	if len(out) != 1 || !out[0].Equal(types.Integer(5)) {
		t.Errorf("%%threshold + 1 = %v; want [5]", out)
	}
}
