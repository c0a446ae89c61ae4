package terminology

import (
	"fmt"

	"github.com/buger/jsonparser"
)

// LoadValueSet loads a FHIR ValueSet resource (JSON) into the provider.
// Codes are taken from expansion.contains when present, otherwise from
// compose.include concepts. Filters and nested value set references are
// not expanded.
func (p *InMemoryProvider) LoadValueSet(data []byte) error {
	rt, err := jsonparser.GetString(data, "resourceType")
	if err != nil || rt != "ValueSet" {
		return fmt.Errorf("not a ValueSet resource")
	}
	url, err := jsonparser.GetString(data, "url")
	if err != nil {
		return fmt.Errorf("ValueSet has no url")
	}

	loaded := 0
	// expansion is authoritative when present
	_, _ = jsonparser.ArrayEach(data, func(item []byte, _ jsonparser.ValueType, _ int, _ error) {
		code, codeErr := jsonparser.GetString(item, "code")
		if codeErr != nil {
			return
		}
		system, _ := jsonparser.GetString(item, "system")
		p.AddValueSet(url, system, code)
		loaded++
	}, "expansion", "contains")
	if loaded > 0 {
		return nil
	}

	_, _ = jsonparser.ArrayEach(data, func(include []byte, _ jsonparser.ValueType, _ int, _ error) {
		system, _ := jsonparser.GetString(include, "system")
		_, _ = jsonparser.ArrayEach(include, func(concept []byte, _ jsonparser.ValueType, _ int, _ error) {
			code, codeErr := jsonparser.GetString(concept, "code")
			if codeErr != nil {
				return
			}
			p.AddValueSet(url, system, code)
			loaded++
		}, "concept")
	}, "compose", "include")

	if loaded == 0 {
		return fmt.Errorf("ValueSet %s has no expansion or compose codes", url)
	}
	return nil
}
