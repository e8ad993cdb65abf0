package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MissingFields returns, in order, the fields whose values are not Truthy.
func MissingFields(d Document, fields ...string) []string {
	var missing []string
	for _, f := range fields {
		if !d.Truthy(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// CheckStructure decodes raw and reports the generic structural problems that
// precede any framework-specific check. A nil Document comes with at least
// one problem.
func CheckStructure(raw json.RawMessage) (Document, []string) {
	doc, err := Parse(raw)
	if err != nil {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil, []string{"Workflow data is required"}
		}
		return nil, []string{"Workflow data must be an object"}
	}
	return doc, nil
}

// Problems accumulates validation messages.
type Problems []string

// Addf appends a formatted problem.
func (p *Problems) Addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Add appends problems verbatim.
func (p *Problems) Add(problems ...string) {
	*p = append(*p, problems...)
}
