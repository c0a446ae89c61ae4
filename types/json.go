package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/buger/jsonparser"
)

// FromJSON converts resource JSON bytes into the value model without an
// intermediate map[string]any. The result is a collection: a JSON object or
// scalar becomes one element, a JSON array becomes one element per item,
// and JSON null becomes the empty collection.
func FromJSON(data []byte) (Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		obj, err := objectFromJSON(trimmed)
		if err != nil {
			return nil, err
		}
		return Collection{obj}, nil
	case '[':
		return arrayFromJSON(trimmed)
	default:
		value, dt, _, err := jsonparser.Get(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return scalarFromJSON(value, dt)
	}
}

func objectFromJSON(data []byte) (*Object, error) {
	obj := NewObject()
	err := jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		name := string(key)
		switch dt {
		case jsonparser.Array:
			c, err := arrayFromJSON(value)
			if err != nil {
				return err
			}
			if len(c) > 0 {
				obj.Set(name, c)
			}
		case jsonparser.Null:
			// absent, contributes nothing
		default:
			c, err := valueFromJSON(value, dt)
			if err != nil {
				return err
			}
			if len(c) > 0 {
				obj.Set(name, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return obj, nil
}

func arrayFromJSON(data []byte) (Collection, error) {
	var out Collection
	var convErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
		if convErr != nil {
			return
		}
		c, err := valueFromJSON(value, dt)
		if err != nil {
			convErr = err
			return
		}
		// nested arrays splice one level into the result
		out = append(out, c...)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	return out, convErr
}

func valueFromJSON(value []byte, dt jsonparser.ValueType) (Collection, error) {
	switch dt {
	case jsonparser.Object:
		obj, err := objectFromJSON(value)
		if err != nil {
			return nil, err
		}
		return Collection{obj}, nil
	case jsonparser.Array:
		return arrayFromJSON(value)
	default:
		return scalarFromJSON(value, dt)
	}
}

func scalarFromJSON(value []byte, dt jsonparser.ValueType) (Collection, error) {
	switch dt {
	case jsonparser.String:
		unescaped, err := jsonparser.Unescape(value, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON string: %w", err)
		}
		return Collection{String(unescaped)}, nil
	case jsonparser.Number:
		return Collection{numberFromText(string(value))}, nil
	case jsonparser.Boolean:
		return Collection{Boolean(string(value) == "true")}, nil
	case jsonparser.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value type %v", dt)
	}
}

func numberFromText(s string) Element {
	if !bytes.ContainsAny([]byte(s), ".eE") {
		if i, err := strconv.ParseInt(s, 10, 32); err == nil {
			return Integer(i)
		}
	}
	if d, err := ParseDecimal(s); err == nil {
		return d
	}
	return String(s)
}

// FromValue converts a native Go value (as produced by encoding/json
// unmarshalling into any) into an element. Nil input yields nil.
func FromValue(v any) Element {
	switch t := v.(type) {
	case nil:
		return nil
	case Element:
		return t
	case bool:
		return Boolean(t)
	case string:
		return String(t)
	case int:
		return Integer(int32(t))
	case int32:
		return Integer(t)
	case int64:
		return Integer(int32(t))
	case float64:
		if t == float64(int64(t)) && t >= -1<<31 && t < 1<<31 {
			return Integer(int32(t))
		}
		return NewDecimal(t)
	case json.Number:
		return numberFromText(string(t))
	case map[string]any:
		obj := NewObject()
		names := make([]string, 0, len(t))
		for name := range t {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if c := CollectionFromValue(t[name]); len(c) > 0 {
				obj.Set(name, c)
			}
		}
		return obj
	default:
		return String(fmt.Sprint(t))
	}
}

// CollectionFromValue converts a native Go value into a collection,
// flattening slices one level and dropping nils.
func CollectionFromValue(v any) Collection {
	switch t := v.(type) {
	case nil:
		return nil
	case Collection:
		return t
	case []any:
		var out Collection
		for _, item := range t {
			out = append(out, CollectionFromValue(item)...)
		}
		return out
	default:
		e := FromValue(v)
		if e == nil {
			return nil
		}
		return Collection{e}
	}
}

// ToNative converts a collection back into plain Go values suitable for
// encoding/json output.
func ToNative(c Collection) []any {
	out := make([]any, 0, len(c))
	for _, e := range c {
		out = append(out, elementToNative(e))
	}
	return out
}

func elementToNative(e Element) any {
	switch v := e.(type) {
	case Boolean:
		return bool(v)
	case Integer:
		return int64(v)
	case Decimal:
		return json.Number(v.Value.String())
	case String:
		return string(v)
	case Date, Time, DateTime:
		return e.String()
	case Quantity:
		return map[string]any{"value": json.Number(v.Value.String()), "unit": v.Unit}
	case *Object:
		m := make(map[string]any, len(v.FieldNames()))
		for _, name := range v.FieldNames() {
			c, _ := v.Field(name)
			if len(c) == 1 {
				m[name] = elementToNative(c[0])
			} else {
				m[name] = ToNative(c)
			}
		}
		return m
	default:
		return e.String()
	}
}
