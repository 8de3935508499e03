// Package normalize turns a finished container's entities into one value per
// document type.
package normalize

import (
	"encoding/json"

	"github.com/joseph-ayodele/records-pipeline/internal/entity"
)

// Record is one structured entity with the display label stripped.
type Record = map[string]any

// Result maps a document type to a Record when it produced exactly one entity,
// or to a []Record when it produced several. Types with no entities are absent.
type Result map[string]any

// Records returns the value for docType as a slice regardless of arity.
func (r Result) Records(docType string) []Record {
	switch v := r[docType].(type) {
	case Record:
		return []Record{v}
	case []Record:
		return v
	}
	return nil
}

// JSON renders the result with stable key order.
func (r Result) JSON() ([]byte, error) {
	return json.MarshalIndent(map[string]any(r), "", "  ")
}

// Entities groups the container's extracted entities by document type,
// preserving document then entity order. The container is not modified.
func Entities(c *entity.Container) Result {
	out := Result{}
	if c == nil {
		return out
	}
	grouped := map[string][]Record{}
	var order []string
	for _, doc := range c.Documents {
		for _, e := range doc.Entities {
			if e.Structure == nil {
				continue
			}
			if _, ok := grouped[doc.Type]; !ok {
				order = append(order, doc.Type)
			}
			grouped[doc.Type] = append(grouped[doc.Type], clean(e.Structure))
		}
	}
	for _, t := range order {
		recs := grouped[t]
		switch len(recs) {
		case 0:
		case 1:
			out[t] = recs[0]
		default:
			out[t] = recs
		}
	}
	return out
}

// clean deep-copies m, dropping the top-level display label.
func clean(m map[string]any) Record {
	out := make(Record, len(m))
	for k, v := range m {
		if k == entity.LabelKey {
			continue
		}
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = deepCopy(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = deepCopy(vv)
		}
		return s
	}
	return v
}
