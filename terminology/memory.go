package terminology

import (
	"strings"
	"sync"
)

// InMemoryProvider answers memberOf() queries from locally loaded value
// sets. It is safe for concurrent use: lookups take a read lock, loads a
// write lock.
type InMemoryProvider struct {
	mu        sync.RWMutex
	valueSets map[string]*valueSetData
}

// valueSetData holds the expanded codes of one value set for fast lookup.
type valueSetData struct {
	url   string
	codes map[string]map[string]struct{} // system -> code set
}

// anySystem keys codes registered without a system.
const anySystem = ""

// NewInMemoryProvider creates an empty provider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		valueSets: make(map[string]*valueSetData),
	}
}

// AddValueSet registers (or extends) a value set with codes from one
// system. Use an empty system for bare codes.
func (p *InMemoryProvider) AddValueSet(url, system string, codes ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vs, ok := p.valueSets[url]
	if !ok {
		vs = &valueSetData{url: url, codes: make(map[string]map[string]struct{})}
		p.valueSets[url] = vs
	}
	set, ok := vs.codes[system]
	if !ok {
		set = make(map[string]struct{})
		vs.codes[system] = set
	}
	for _, code := range codes {
		set[code] = struct{}{}
	}
}

// Contains reports whether a code is a member of the value set. The code
// may be bare ("male") or system-qualified ("http://...|male"); a bare
// code matches any system in the set. It satisfies interp.MemberOfFunc.
func (p *InMemoryProvider) Contains(code, valueSetURL string) bool {
	system := anySystem
	if i := strings.IndexByte(code, '|'); i >= 0 {
		system, code = code[:i], code[i+1:]
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vs, ok := p.valueSets[valueSetURL]
	if !ok {
		return false
	}
	if system != anySystem {
		if set, ok := vs.codes[system]; ok {
			if _, found := set[code]; found {
				return true
			}
		}
		// codes loaded without a system still match qualified queries
		if set, ok := vs.codes[anySystem]; ok {
			_, found := set[code]
			return found
		}
		return false
	}
	for _, set := range vs.codes {
		if _, found := set[code]; found {
			return true
		}
	}
	return false
}

// ValueSetCount returns the number of loaded value sets.
func (p *InMemoryProvider) ValueSetCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.valueSets)
}

// CodeCount returns the number of codes in one value set.
func (p *InMemoryProvider) CodeCount(url string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	vs, ok := p.valueSets[url]
	if !ok {
		return 0
	}
	n := 0
	for _, set := range vs.codes {
		n += len(set)
	}
	return n
}
