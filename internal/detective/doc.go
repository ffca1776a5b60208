package detective

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/rubric"
)

// Document inspects a text report (plain text, Markdown or HTML) for the
// concepts each goal names.
type Document struct {
	Path string
}

func (d *Document) Name() string                { return "doc_analyst" }
func (d *Document) Category() evidence.Category { return evidence.Document }

var htmlTag = regexp.MustCompile(`<[^>]+>`)

func (d *Document) Inspect(ctx context.Context, goals []rubric.CriterionGoal, emit fanout.Emit[evidence.Record]) error {
	text, readErr := d.load()
	for _, g := range goals {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if readErr != nil {
			err = emitGoalFailure(emit, d.Name(), d.Category(), g, d.Path, readErr)
		} else {
			err = d.inspectGoal(g, text, emit)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) load() (string, error) {
	if d.Path == "" {
		return "", fmt.Errorf("no document supplied")
	}
	if strings.EqualFold(filepath.Ext(d.Path), ".pdf") {
		return "", fmt.Errorf("%s: PDF text extraction is not supported, convert the report to text or markdown", d.Path)
	}
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	text := string(data)
	switch strings.ToLower(filepath.Ext(d.Path)) {
	case ".html", ".htm":
		text = htmlTag.ReplaceAllString(text, " ")
	}
	return strings.ToLower(text), nil
}

func (d *Document) inspectGoal(g rubric.CriterionGoal, text string, emit fanout.Emit[evidence.Record]) error {
	if len(g.Keywords) == 0 {
		return emitGoal(emit, d.Name(), d.Category(), g, false, "", d.Path, "goal defines no keywords", 0.1)
	}
	var found []string
	first := -1
	for _, kw := range g.Keywords {
		if i := strings.Index(text, strings.ToLower(kw)); i >= 0 {
			found = append(found, kw)
			if first < 0 || i < first {
				first = i
			}
		}
	}
	ok := len(found) >= requiredHits(g)
	var conf float64
	if ok {
		conf = min(0.9, 0.5+0.1*float64(len(found)))
	} else {
		conf = 0.6
	}
	location := d.Path
	if first >= 0 {
		location = fmt.Sprintf("%s:%d", d.Path, lineOf(text, first))
	}
	rationale := fmt.Sprintf("found %d of %d keywords (need %d)", len(found), len(g.Keywords), requiredHits(g))
	return emitGoal(emit, d.Name(), d.Category(), g, ok, strings.Join(found, ", "), location, rationale, conf)
}

func lineOf(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}
