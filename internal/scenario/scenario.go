// Package scenario holds replayable audit fixtures: a target, the evidence
// each inspector reports and the scores each judge gives. Scenarios drive
// the CLI, the MCP server and the end-to-end tests without touching a
// repository or a model.
package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tribunal/internal/detective"
	"tribunal/internal/evidence"
	"tribunal/internal/judge"
	"tribunal/internal/rubric"
)

//go:embed *.yaml
var scenarioFS embed.FS

// ErrNotFound is returned when no embedded scenario has the requested name.
var ErrNotFound = errors.New("scenario not found")

// Inspector is the recorded output of one evidence collaborator.
type Inspector struct {
	Category evidence.Category `yaml:"category" json:"category" validate:"required,oneof=REPOSITORY DOCUMENT VISUAL"`
	Source   string            `yaml:"source,omitempty" json:"source,omitempty"`
	Fail     string            `yaml:"fail,omitempty" json:"fail,omitempty"`
	Delay    time.Duration     `yaml:"delay,omitempty" json:"delay,omitempty"`
	Records  []evidence.Record `yaml:"records,omitempty" json:"records,omitempty"`
}

// Judge is the recorded behaviour of one panel seat.
type Judge struct {
	Role   evidence.JudgeRole `yaml:"role" json:"role" validate:"required,oneof=PROSECUTOR DEFENSE TECHLEAD"`
	Scores map[string]int     `yaml:"scores,omitempty" json:"scores,omitempty" validate:"dive,min=1,max=5"`
	Fail   string             `yaml:"fail,omitempty" json:"fail,omitempty"`
}

// Expect is the outcome a scenario is known to produce.
type Expect struct {
	OverallScore float64        `yaml:"overall_score" json:"overall_score"`
	Scores       map[string]int `yaml:"scores,omitempty" json:"scores,omitempty"`
}

// Scenario is one replayable audit.
type Scenario struct {
	Name        string      `yaml:"name" json:"name" validate:"nonblank"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Target      string      `yaml:"target" json:"target"`
	Criteria    []string    `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	Evidence    []Inspector `yaml:"evidence" json:"evidence" validate:"dive"`
	Judges      []Judge     `yaml:"judges" json:"judges" validate:"dive"`
	Expect      *Expect     `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Load reads a scenario by name from the embedded YAML files.
func Load(name string) (*Scenario, error) {
	data, err := scenarioFS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrNotFound, name, strings.Join(List(), ", "))
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %q: %w", name, err)
	}
	return s, nil
}

// LoadFromPath reads a scenario file.
func LoadFromPath(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return s, nil
}

// Resolve loads an embedded scenario by name, or a file when ref is a path.
func Resolve(ref string) (*Scenario, error) {
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") || strings.ContainsRune(ref, os.PathSeparator) {
		return LoadFromPath(ref)
	}
	return Load(ref)
}

// Parse decodes and validates a YAML (or JSON) scenario document. Unknown
// fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario structure and that no seat is given twice.
func (s *Scenario) Validate() error {
	if err := evidence.ValidateStruct("scenario", s); err != nil {
		return err
	}
	seats := make(map[evidence.JudgeRole]bool, len(s.Judges))
	for _, j := range s.Judges {
		if seats[j.Role] {
			return fmt.Errorf("scenario %s: judge %s given twice", s.Name, j.Role)
		}
		seats[j.Role] = true
	}
	return nil
}

// List returns the names of all embedded scenarios, sorted.
func List() []string {
	entries, _ := scenarioFS.ReadDir(".")
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names
}

// Rubric restricts base to the scenario criteria. No criteria means all.
func (s *Scenario) Rubric(base *rubric.Rubric) (*rubric.Rubric, error) {
	return base.Select(s.Criteria...)
}

// Inspectors returns one replaying inspector per recorded collaborator.
func (s *Scenario) Inspectors() []detective.Inspector {
	out := make([]detective.Inspector, 0, len(s.Evidence))
	for _, in := range s.Evidence {
		st := &detective.Static{Source: in.Source, Kind: in.Category, Records: in.Records, Delay: in.Delay}
		if in.Fail != "" {
			st.Fail = errors.New(in.Fail)
		}
		out = append(out, st)
	}
	return out
}

// Panel returns one replaying judge per recorded seat. Seats the scenario
// leaves out get no judge, so arbitration synthesizes them.
func (s *Scenario) Panel() []judge.Judge {
	out := make([]judge.Judge, 0, len(s.Judges))
	for _, j := range s.Judges {
		st := &judge.Static{Seat: j.Role, Scores: j.Scores}
		if j.Fail != "" {
			st.Fail = errors.New(j.Fail)
		}
		out = append(out, st)
	}
	return out
}
