package entity

import "sort"

// Configuration is the tenant-side definition of which document types a
// container may hold. Only the parts the pipeline reads are modelled.
type Configuration struct {
	Name      string                      `json:"name,omitempty"`
	Title     string                      `json:"title,omitempty"`
	Documents map[string]DocumentTypeSpec `json:"documents"`
}

// DocumentTypeSpec describes one allowed document type.
type DocumentTypeSpec struct {
	Title    string `json:"title,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// DocumentTypes returns the configured type keys in sorted order.
func (c Configuration) DocumentTypes() []string {
	out := make([]string, 0, len(c.Documents))
	for k := range c.Documents {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
