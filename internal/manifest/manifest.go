// Package manifest loads batch run definitions from YAML.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/records-pipeline/internal/poll"
)

// Manifest is a list of runs sharing optional defaults.
//
//	defaults:
//	  config: kyc
//	  wait: true
//	  poll_timeout: none
//	runs:
//	  - name: customer-42
//	    documents:
//	      ine: ./42/ine.pdf
type Manifest struct {
	Defaults RunSpec   `yaml:"defaults"`
	Runs     []RunSpec `yaml:"runs"`
}

// RunSpec is one entry. Unset fields inherit from Defaults.
type RunSpec struct {
	Name         string            `yaml:"name"`
	Config       string            `yaml:"config"`
	Documents    map[string]string `yaml:"documents"`
	AllowedTypes []string          `yaml:"allowed_types"`
	Wait         *bool             `yaml:"wait"`
	Process      string            `yaml:"process"`
	Email        string            `yaml:"email"`
	FlowName     string            `yaml:"flow_name"`

	EmbedInterval Duration `yaml:"embed_interval"`
	EmbedTimeout  Duration `yaml:"embed_timeout"`
	PollInterval  Duration `yaml:"poll_interval"`
	PollTimeout   Duration `yaml:"poll_timeout"`
}

// Duration accepts Go duration strings, plain seconds, or "none" for no timeout.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Value == "none" || n.Value == "never" {
		*d = Duration(poll.NoTimeout)
		return nil
	}
	if parsed, err := time.ParseDuration(n.Value); err == nil {
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := n.Decode(&secs); err != nil {
		return fmt.Errorf("line %d: invalid duration %q", n.Line, n.Value)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Load reads and resolves a manifest file. Relative document paths are taken
// from the manifest's directory.
func Load(path string) ([]Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m.Resolve(filepath.Dir(path))
}

// Entry is a resolved run ready for the orchestrator.
type Entry struct {
	Name    string
	Request pipeline.Request
}

// Resolve merges defaults into every run and builds requests.
func (m Manifest) Resolve(baseDir string) ([]Entry, error) {
	if len(m.Runs) == 0 {
		return nil, errors.New("manifest has no runs")
	}
	out := make([]Entry, 0, len(m.Runs))
	for i, r := range m.Runs {
		r = r.inherit(m.Defaults)
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("run-%d", i+1)
		}
		if r.Config == "" {
			return nil, fmt.Errorf("%s: config is required", name)
		}
		if len(r.Documents) == 0 {
			return nil, fmt.Errorf("%s: no documents", name)
		}
		policy, ok := constants.ParseProcessPolicy(r.Process)
		if !ok {
			return nil, fmt.Errorf("%s: unknown process policy %q", name, r.Process)
		}
		docs := make(map[string]string, len(r.Documents))
		for t, p := range r.Documents {
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			docs[t] = p
		}
		out = append(out, Entry{Name: name, Request: pipeline.Request{
			ConfigName:        r.Config,
			Documents:         docs,
			AllowedTypes:      r.AllowedTypes,
			Wait:              r.Wait != nil && *r.Wait,
			Policy:            policy,
			WithEmail:         r.Email != "",
			Email:             r.Email,
			FlowName:          r.FlowName,
			EmbeddingInterval: time.Duration(r.EmbedInterval),
			EmbeddingTimeout:  time.Duration(r.EmbedTimeout),
			PollInterval:      time.Duration(r.PollInterval),
			PollTimeout:       time.Duration(r.PollTimeout),
		}})
	}
	return out, nil
}

func (r RunSpec) inherit(d RunSpec) RunSpec {
	if r.Config == "" {
		r.Config = d.Config
	}
	if r.AllowedTypes == nil {
		r.AllowedTypes = d.AllowedTypes
	}
	if r.Wait == nil {
		r.Wait = d.Wait
	}
	if r.Process == "" {
		r.Process = d.Process
	}
	if r.Email == "" {
		r.Email = d.Email
	}
	if r.FlowName == "" {
		r.FlowName = d.FlowName
	}
	if r.EmbedInterval == 0 {
		r.EmbedInterval = d.EmbedInterval
	}
	if r.EmbedTimeout == 0 {
		r.EmbedTimeout = d.EmbedTimeout
	}
	if r.PollInterval == 0 {
		r.PollInterval = d.PollInterval
	}
	if r.PollTimeout == 0 {
		r.PollTimeout = d.PollTimeout
	}
	return r
}
