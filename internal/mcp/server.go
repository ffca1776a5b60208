// Package mcp exposes the audit pipeline as MCP tools so an agent can run
// scenario audits, arbitrate a single criterion and read the rubric.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"tribunal/internal/arbitrate"
	"tribunal/internal/audit"
	"tribunal/internal/evidence"
	"tribunal/internal/logging"
	"tribunal/internal/metaaudit"
	"tribunal/internal/report"
	"tribunal/internal/rubric"
	"tribunal/internal/scenario"
	"tribunal/internal/store"
)

var (
	DefaultDetectiveDeadline = 30 * time.Second
	DefaultJudgeDeadline     = 30 * time.Second
)

// Server wraps the MCP SDK server. Completed audits are kept in Archive so
// meta_audit can consolidate them.
type Server struct {
	MCPServer *sdkmcp.Server
	Rubric    *rubric.Rubric
	Archive   store.Archive
}

// NewServer creates an MCP server scoring against r (the embedded rubric
// when nil) and archiving into archive (in memory when nil).
func NewServer(r *rubric.Rubric, archive store.Archive) *Server {
	if r == nil {
		r = rubric.Default()
	}
	if archive == nil {
		archive = store.NewMemArchive()
	}
	s := &Server{Rubric: r, Archive: archive}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "tribunal", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_audit",
		Description: "Run a full audit from a scenario (embedded name or inline YAML). Returns the overall score, per-criterion verdicts and the Markdown report.",
	}, s.handleRunAudit)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "arbitrate",
		Description: "Arbitrate one criterion from three judge scores and optional evidence. Returns the final score and the rule trace.",
	}, s.handleArbitrate)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_criteria",
		Description: "List the rubric criteria with their safety flag and TECHLEAD multiplier.",
	}, s.handleListCriteria)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_scenarios",
		Description: "List the embedded scenario names accepted by run_audit.",
	}, s.handleListScenarios)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "meta_audit",
		Description: "Consolidate the archived runs of a target: evidence stability, judge score jumps and consensus scores.",
	}, s.handleMetaAudit)
}

// --- Tool input/output types ---

type runAuditInput struct {
	Scenario     string `json:"scenario,omitempty" jsonschema:"embedded scenario name (see list_scenarios)"`
	ScenarioYAML string `json:"scenario_yaml,omitempty" jsonschema:"inline scenario document, used instead of scenario"`
}

type verdict struct {
	CriterionID   string                     `json:"criterion_id"`
	Name          string                     `json:"name"`
	JudgeScores   map[evidence.JudgeRole]int `json:"judge_scores"`
	FinalScore    int                        `json:"final_score"`
	Contradiction bool                       `json:"contradiction"`
	Remediation   string                     `json:"remediation"`
	RuleTrace     []string                   `json:"rule_trace"`
}

type runAuditOutput struct {
	RunID        string                    `json:"run_id"`
	Target       string                    `json:"target"`
	OverallScore float64                   `json:"overall_score"`
	Verdicts     []verdict                 `json:"verdicts"`
	Evidence     map[evidence.Category]int `json:"evidence_summary"`
	Report       string                    `json:"report"`
}

type arbitrateInput struct {
	CriterionID        string          `json:"criterion_id" jsonschema:"criterion id; rubric policies apply when it is known"`
	Prosecutor         int             `json:"prosecutor,omitempty" jsonschema:"PROSECUTOR score 1-5; omit for a missing seat"`
	Defense            int             `json:"defense,omitempty" jsonschema:"DEFENSE score 1-5; omit for a missing seat"`
	TechLead           int             `json:"techlead,omitempty" jsonschema:"TECHLEAD score 1-5; omit for a missing seat"`
	Evidence           []evidenceInput `json:"evidence,omitempty" jsonschema:"evidence considered for fact supremacy and contradictions"`
	StageConfidence    float64         `json:"stage_confidence,omitempty" jsonschema:"evidence stage confidence; defaults to the mean confidence of the given evidence"`
	SafetyCritical     bool            `json:"safety_critical,omitempty" jsonschema:"treat the criterion as safety-critical"`
	TechLeadMultiplier float64         `json:"techlead_multiplier,omitempty" jsonschema:"TECHLEAD weight; values above 1 enable functionality weighting"`
}

type evidenceInput struct {
	Category   evidence.Category `json:"category" jsonschema:"REPOSITORY, DOCUMENT or VISUAL"`
	Goal       string            `json:"goal" jsonschema:"what the evidence is about; must mention the criterion to count"`
	Found      bool              `json:"found" jsonschema:"whether the artifact exists"`
	Location   string            `json:"location,omitempty" jsonschema:"file, line or URL"`
	Content    string            `json:"content,omitempty"`
	Confidence float64           `json:"confidence" jsonschema:"confidence in [0,1]"`
}

type arbitrateOutput struct {
	Result arbitrate.CriterionResult `json:"result"`
}

type listCriteriaInput struct{}

type criterionInfo struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description,omitempty"`
	SafetyCritical     bool    `json:"safety_critical"`
	TechLeadMultiplier float64 `json:"techlead_multiplier,omitempty"`
	Goals              int     `json:"goals"`
}

type listCriteriaOutput struct {
	Rubric   string          `json:"rubric"`
	Criteria []criterionInfo `json:"criteria"`
}

type listScenariosInput struct{}

type listScenariosOutput struct {
	Scenarios []string `json:"scenarios"`
}

type metaAuditInput struct {
	Target string `json:"target,omitempty" jsonschema:"target whose runs to consolidate; empty means every archived run"`
}

type metaAuditOutput struct {
	Result *metaaudit.Result `json:"result"`
	Report string            `json:"report"`
}

// --- Tool handlers ---

func (s *Server) handleRunAudit(ctx context.Context, _ *sdkmcp.CallToolRequest, input runAuditInput) (*sdkmcp.CallToolResult, runAuditOutput, error) {
	logger := logging.New("mcp")
	var sc *scenario.Scenario
	var err error
	switch {
	case input.ScenarioYAML != "":
		sc, err = scenario.Parse([]byte(input.ScenarioYAML))
	case input.Scenario != "":
		sc, err = scenario.Load(input.Scenario)
	default:
		err = errors.New("scenario or scenario_yaml is required")
	}
	if err != nil {
		return nil, runAuditOutput{}, fmt.Errorf("run_audit: %w", err)
	}

	r, err := sc.Rubric(s.Rubric)
	if err != nil {
		return nil, runAuditOutput{}, fmt.Errorf("run_audit: %w", err)
	}
	a := audit.New(audit.Config{
		Rubric:            r,
		Judges:            sc.Panel(),
		Inspectors:        sc.Inspectors(),
		DetectiveDeadline: DefaultDetectiveDeadline,
		JudgeDeadline:     DefaultJudgeDeadline,
		Archive:           s.Archive,
	})
	rep, err := a.Run(ctx, sc.Target)
	if err != nil {
		return nil, runAuditOutput{}, fmt.Errorf("run_audit: %w", err)
	}
	logger.Info("audit served", "scenario", sc.Name, "run_id", rep.RunID, "overall_score", rep.OverallScore)

	out := runAuditOutput{
		RunID:        rep.RunID,
		Target:       rep.Target,
		OverallScore: rep.OverallScore,
		Evidence:     rep.EvidenceSummary,
		Report:       report.Markdown(rep),
	}
	for _, c := range rep.Criteria {
		out.Verdicts = append(out.Verdicts, verdict{
			CriterionID:   c.CriterionID,
			Name:          c.Name,
			JudgeScores:   c.JudgeScores,
			FinalScore:    c.FinalScore,
			Contradiction: c.ContradictionFlag,
			Remediation:   c.Remediation,
			RuleTrace:     c.RuleTrace,
		})
	}
	return nil, out, nil
}

func (s *Server) handleArbitrate(_ context.Context, _ *sdkmcp.CallToolRequest, input arbitrateInput) (*sdkmcp.CallToolResult, arbitrateOutput, error) {
	if input.CriterionID == "" {
		return nil, arbitrateOutput{}, errors.New("criterion_id is required")
	}
	sub := audit.Submission{
		CriterionID:     input.CriterionID,
		Scores:          make(map[evidence.JudgeRole]int),
		StageConfidence: input.StageConfidence,
	}
	// An omitted seat decodes as 0; leave it out so the panel rule
	// synthesizes it instead of rejecting the score.
	for role, score := range map[evidence.JudgeRole]int{
		evidence.Prosecutor: input.Prosecutor,
		evidence.Defense:    input.Defense,
		evidence.TechLead:   input.TechLead,
	} {
		if score != 0 {
			sub.Scores[role] = score
		}
	}
	for _, e := range input.Evidence {
		sub.Evidence = append(sub.Evidence, evidence.Record{
			Category:   e.Category,
			Goal:       e.Goal,
			Found:      e.Found,
			Location:   e.Location,
			Content:    e.Content,
			Confidence: e.Confidence,
			Source:     "mcp",
		})
	}
	if input.SafetyCritical || input.TechLeadMultiplier > 0 {
		p := s.Rubric.Config().PolicyFor(input.CriterionID)
		p.SafetyCritical = p.SafetyCritical || input.SafetyCritical
		if input.TechLeadMultiplier > 0 {
			p.TechLeadMultiplier = input.TechLeadMultiplier
		}
		sub.Policy = &p
	}

	res, err := audit.Arbitrate(s.Rubric, sub)
	if err != nil {
		return nil, arbitrateOutput{}, err
	}
	return nil, arbitrateOutput{Result: res}, nil
}

func (s *Server) handleListCriteria(_ context.Context, _ *sdkmcp.CallToolRequest, _ listCriteriaInput) (*sdkmcp.CallToolResult, listCriteriaOutput, error) {
	out := listCriteriaOutput{Rubric: s.Rubric.Name}
	for _, c := range s.Rubric.Criteria {
		out.Criteria = append(out.Criteria, criterionInfo{
			ID:                 c.ID,
			Name:               c.Name,
			Description:        c.Description,
			SafetyCritical:     c.SafetyCritical,
			TechLeadMultiplier: c.TechLeadMultiplier,
			Goals:              len(c.Goals),
		})
	}
	return nil, out, nil
}

func (s *Server) handleListScenarios(_ context.Context, _ *sdkmcp.CallToolRequest, _ listScenariosInput) (*sdkmcp.CallToolResult, listScenariosOutput, error) {
	return nil, listScenariosOutput{Scenarios: scenario.List()}, nil
}

func (s *Server) handleMetaAudit(_ context.Context, _ *sdkmcp.CallToolRequest, input metaAuditInput) (*sdkmcp.CallToolResult, metaAuditOutput, error) {
	runs, err := s.Archive.ListRuns(input.Target)
	if err != nil {
		return nil, metaAuditOutput{}, fmt.Errorf("meta_audit: %w", err)
	}
	res := metaaudit.Consolidate(runs)
	return nil, metaAuditOutput{Result: res, Report: metaaudit.Markdown(res, input.Target)}, nil
}

// Shutdown closes the archive.
func (s *Server) Shutdown() {
	if err := s.Archive.Close(); err != nil {
		logging.New("mcp").Warn("close archive", "error", err)
	}
}
