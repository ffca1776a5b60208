package detective

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/rubric"
)

// richHistory is the commit count above which a history counts as
// iterative development rather than a single dump.
const richHistory = 3

// maxCommitLines caps the commit subjects quoted in a record.
const maxCommitLines = 5

// commitLog lists the repository's commits oldest first, one line each.
func (r *Repo) commitLog(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "--git-dir", filepath.Join(r.Root, ".git"),
		"log", "--oneline", "--reverse", "--no-color")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return strings.FieldsFunc(string(out), func(c rune) bool { return c == '\n' }), nil
}

// checkCommits emits a record for a goal that needs g.MinCommits commits. A
// directory git refuses to read (no .git, no commits yet) is a finding; a
// missing git binary is not.
func (r *Repo) checkCommits(ctx context.Context, g rubric.CriterionGoal, emit fanout.Emit[evidence.Record]) error {
	commits, err := r.commitLog(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			rationale := cmp.Or(strings.TrimSpace(string(exitErr.Stderr)), exitErr.Error())
			return emitGoal(emit, r.Name(), r.Category(), g, false, "", "git log", "no readable commit history: "+rationale, 0.5)
		}
		return emitGoalFailure(emit, r.Name(), r.Category(), g, "git log", err)
	}

	n := len(commits)
	conf := 0.5
	if n > richHistory {
		conf = 0.9
	}
	rationale := fmt.Sprintf("Found %d commits (need %d)", n, g.MinCommits)
	content := strings.Join(commits[:min(n, maxCommitLines)], "\n")
	return emitGoal(emit, r.Name(), r.Category(), g, n >= g.MinCommits, content, "git log", rationale, conf)
}
