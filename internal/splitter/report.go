package splitter

import (
	"io"

	"gopkg.in/yaml.v3"

	"asmsplit/internal/verify"
)

// Report describes one run. It is returned alongside most errors so callers can show
// what was planned or written before the failure.
type Report struct {
	RunID      string        `yaml:"run_id"`
	Input      string        `yaml:"input"`
	Output     string        `yaml:"output"`
	DryRun     bool          `yaml:"dry_run"`
	Lines      int           `yaml:"lines"`
	Candidates int           `yaml:"candidates"`
	Units      []UnitReport  `yaml:"units"`
	Conflicts  []string      `yaml:"conflicts,omitempty"`
	Backup     string        `yaml:"backup,omitempty"`
	Written    bool          `yaml:"written"`
	Original   *VerifyReport `yaml:"original,omitempty"`
	Split      *VerifyReport `yaml:"split,omitempty"`
}

// UnitReport uses 1-based inclusive line numbers.
type UnitReport struct {
	Path      string `yaml:"path"`
	Include   string `yaml:"include"`
	StartLine int    `yaml:"start_line"`
	EndLine   int    `yaml:"end_line"`
	Lines     int    `yaml:"lines"`
	DataLines int    `yaml:"data_lines"`
	Digest    string `yaml:"digest"`
}

type VerifyReport struct {
	Assembled  bool   `yaml:"assembled"`
	SHA256     string `yaml:"sha256,omitempty"`
	Stderr     string `yaml:"stderr,omitempty"`
	DurationMS int64  `yaml:"duration_ms"`
}

func newVerifyReport(r verify.Result) *VerifyReport {
	return &VerifyReport{
		Assembled:  r.Assembled,
		SHA256:     r.OutputHash,
		Stderr:     r.Stderr,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// NothingToDo reports whether no block qualified for extraction.
func (r *Report) NothingToDo() bool {
	return len(r.Units) == 0
}

// Verified reports whether both assemblies ran and produced the same digest.
func (r *Report) Verified() bool {
	return r.Original != nil && r.Split != nil &&
		r.Original.Assembled && r.Split.Assembled &&
		r.Original.SHA256 == r.Split.SHA256
}

// WriteYAML writes the report as a YAML manifest.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
