package pipeline

import (
	"sort"
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/poll"
)

// Request describes one run.
type Request struct {
	ConfigName string
	// Documents maps a declared document type to a local PDF path.
	Documents map[string]string
	// AllowedTypes restricts the declared types. When nil the configuration
	// named ConfigName is fetched and its types are used.
	AllowedTypes []string

	// Wait blocks until the service finishes the job (or PollTimeout passes).
	Wait   bool
	Policy constants.ProcessPolicy
	// ProcessOnUpload sets process_document on every upload.
	ProcessOnUpload bool

	// Optional container metadata.
	WithEmail bool
	Email     string
	FlowName  string

	// Zero values take the orchestrator defaults; poll.NoTimeout waits forever.
	EmbeddingInterval time.Duration
	EmbeddingTimeout  time.Duration
	PollInterval      time.Duration
	PollTimeout       time.Duration

	Progress poll.ProgressReporter
}

// Defaults fills zero-valued wait settings of a Request.
type Defaults struct {
	EmbeddingInterval time.Duration
	EmbeddingTimeout  time.Duration
	PollInterval      time.Duration
	PollTimeout       time.Duration
}

// DefaultSettings mirror the service's observed pacing.
var DefaultSettings = Defaults{
	EmbeddingInterval: 5 * time.Second,
	EmbeddingTimeout:  180 * time.Second,
	PollInterval:      10 * time.Second,
	PollTimeout:       300 * time.Second,
}

func (r Request) withDefaults(d Defaults) Request {
	if r.EmbeddingInterval <= 0 {
		r.EmbeddingInterval = d.EmbeddingInterval
	}
	if r.EmbeddingTimeout == 0 {
		r.EmbeddingTimeout = d.EmbeddingTimeout
	}
	if r.PollInterval <= 0 {
		r.PollInterval = d.PollInterval
	}
	if r.PollTimeout == 0 {
		r.PollTimeout = d.PollTimeout
	}
	if r.Progress == nil {
		r.Progress = poll.NoProgress
	}
	return r
}

// types returns the requested document types in a stable order.
func (r Request) types() []string {
	out := make([]string, 0, len(r.Documents))
	for t := range r.Documents {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
