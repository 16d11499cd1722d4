package nws

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// AlertCollection is the subset of the /alerts/active GeoJSON response this
// service reads. Features may be absent entirely.
type AlertCollection struct {
	Features []Feature `json:"features"`
}

type Feature struct {
	Properties Properties `json:"properties"`
}

// Properties keeps every property undecoded so absent keys can be told apart
// from present ones.
type Properties map[string]json.RawMessage

// Text returns the property rendered as text. It reports false when the key
// is absent or null. Arrays (NWS "parameters" values are arrays) are joined
// with "; ".
func (p Properties) Text(key string) (string, bool) {
	raw, ok := p[key]
	if !ok {
		return "", false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || v == nil {
		return "", false
	}

	if items, ok := v.([]any); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := scalarText(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; "), true
	}
	return scalarText(v)
}

// Object returns a nested object property, or nil when the key is absent,
// null, or not an object.
func (p Properties) Object(key string) Properties {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	var nested Properties
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
