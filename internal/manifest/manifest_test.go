package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/poll"
)

const sample = `
defaults:
  config: kyc
  wait: true
  poll_interval: 2s
  poll_timeout: none
runs:
  - name: customer-42
    documents:
      ine: docs/ine.pdf
      statement: /abs/statement.pdf
  - config: loans
    wait: false
    process: always
    embed_timeout: 90
    documents:
      payslip: payslip.pdf
`

func TestLoadResolvesDefaultsAndPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	entries, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("%d entries", len(entries))
	}

	first := entries[0]
	if first.Name != "customer-42" || first.Request.ConfigName != "kyc" || !first.Request.Wait {
		t.Fatalf("first %+v", first)
	}
	if first.Request.Documents["ine"] != filepath.Join(dir, "docs/ine.pdf") || first.Request.Documents["statement"] != "/abs/statement.pdf" {
		t.Fatalf("paths %v", first.Request.Documents)
	}
	if first.Request.PollTimeout != poll.NoTimeout || first.Request.PollInterval != 2*time.Second {
		t.Fatalf("timing %+v", first.Request)
	}

	second := entries[1]
	if second.Name != "run-2" || second.Request.ConfigName != "loans" || second.Request.Wait {
		t.Fatalf("second %+v", second)
	}
	if second.Request.Policy != constants.ProcessAlways || second.Request.EmbeddingTimeout != 90*time.Second {
		t.Fatalf("second settings %+v", second.Request)
	}
}

func TestResolveErrors(t *testing.T) {
	cases := map[string]Manifest{
		"no runs":     {},
		"no config":   {Runs: []RunSpec{{Documents: map[string]string{"a": "a.pdf"}}}},
		"no docs":     {Runs: []RunSpec{{Config: "kyc"}}},
		"bad process": {Runs: []RunSpec{{Config: "kyc", Process: "sometimes", Documents: map[string]string{"a": "a.pdf"}}}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Resolve("."); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.yaml")
	_ = os.WriteFile(path, []byte("runs:\n  - config: a\n    poll_timeout: soon\n    documents: {a: a.pdf}\n"), 0o600)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("err = %v", err)
	}
}
