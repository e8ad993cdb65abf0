// Package workflow holds the opaque workflow payload as seen by adapters and
// the generic structure checks every adapter reuses. Accessors never panic on
// unexpected shapes; they report absence instead, so validation stays total.
package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/seantiz/agentflow/internal/errors"
)

// Document is a decoded JSON object.
type Document map[string]any

// Parse decodes raw into a Document. Numbers are kept as json.Number.
func Parse(raw json.RawMessage) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidWorkflow, "workflow data is required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidWorkflow, "decode workflow: %v", err)
	}
	if v == nil {
		return nil, errors.Wrap(errors.ErrInvalidWorkflow, "workflow data is required")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidWorkflow, "workflow data must be an object")
	}
	return Document(obj), nil
}

// Has reports whether key is present, even with a null value.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Object returns the nested object under key.
func (d Document) Object(key string) (Document, bool) {
	v, ok := d[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return Document(v), true
}

// Array returns the array under key.
func (d Document) Array(key string) ([]any, bool) {
	v, ok := d[key].([]any)
	return v, ok
}

// Objects returns the array under key with every non-object element dropped.
func (d Document) Objects(key string) []Document {
	arr, _ := d.Array(key)
	out := make([]Document, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, Document(obj))
		}
	}
	return out
}

// Len returns the length of the array under key, or 0.
func (d Document) Len(key string) int {
	arr, _ := d.Array(key)
	return len(arr)
}

// String returns the string under key, or "".
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns the boolean under key and whether it was a boolean.
func (d Document) Bool(key string) (bool, bool) {
	b, ok := d[key].(bool)
	return b, ok
}

// Int returns the integer under key and whether it was a number.
func (d Document) Int(key string) (int64, bool) {
	switch n := d[key].(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

// Truthy reports whether the value under key is present and not a zero
// value (false, "", 0 or null). Objects and arrays are always truthy.
func (d Document) Truthy(key string) bool {
	switch v := d[key].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

// Label returns the first non-empty string among keys, or fallback.
func (d Document) Label(fallback string, keys ...string) string {
	for _, k := range keys {
		if s := d.String(k); s != "" {
			return s
		}
		if n, ok := d[k].(json.Number); ok {
			return n.String()
		}
	}
	return fallback
}

// ID returns the identifier under "id" rendered as a string, or "".
func (d Document) ID() string {
	switch v := d["id"].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
