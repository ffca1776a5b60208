package detective

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/logging"
	"tribunal/internal/rubric"
)

// maxScanBytes skips generated or vendored blobs.
const maxScanBytes = 1 << 20

var skipDirs = []string{".git", "node_modules", "vendor", ".venv", "__pycache__", ".tribunal"}

// Repo inspects a checked-out source tree. A goal with keywords is found
// when enough distinct keywords occur in files matching its paths; a goal
// with paths only is found when any path exists; a goal with min_commits
// is found when the git history is long enough.
type Repo struct {
	Root string
}

func (r *Repo) Name() string                { return "repo_investigator" }
func (r *Repo) Category() evidence.Category { return evidence.Repository }

func (r *Repo) Inspect(ctx context.Context, goals []rubric.CriterionGoal, emit fanout.Emit[evidence.Record]) error {
	logger := logging.New("detective").With("inspector", r.Name(), "root", r.Root)

	files, walkErr := r.walk(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Debug("tree walked", "files", len(files), "error", walkErr)

	cache := make(map[string]string)
	for _, g := range goals {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch {
		case walkErr != nil:
			err = emitGoalFailure(emit, r.Name(), r.Category(), g, r.Root, walkErr)
		case g.MinCommits > 0:
			err = r.checkCommits(ctx, g, emit)
		default:
			err = r.inspectGoal(g, files, cache, emit)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) walk(ctx context.Context) ([]string, error) {
	info, err := os.Stat(r.Root)
	if err != nil {
		return nil, fmt.Errorf("repository root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository root %s is not a directory", r.Root)
	}
	var files []string
	err = filepath.WalkDir(r.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != r.Root && slices.Contains(skipDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(r.Root, path)
		if relErr != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	slices.Sort(files)
	return files, err
}

func (r *Repo) inspectGoal(g rubric.CriterionGoal, files []string, cache map[string]string, emit fanout.Emit[evidence.Record]) error {
	if len(g.Keywords) == 0 {
		return r.checkPaths(g, files, emit)
	}

	candidates := files
	if len(g.Paths) > 0 {
		candidates = slices.DeleteFunc(slices.Clone(files), func(f string) bool { return !matchAny(f, g.Paths) })
	}
	hits := make(map[string][]string) // keyword -> files
	var readErrs []error
	for _, f := range candidates {
		text, err := r.read(f, cache)
		if err != nil {
			readErrs = append(readErrs, err)
			continue
		}
		for _, kw := range g.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				hits[kw] = append(hits[kw], f)
			}
		}
	}
	if len(candidates) > 0 && len(readErrs) == len(candidates) {
		return emitGoalFailure(emit, r.Name(), r.Category(), g, r.Root, errors.Join(readErrs...))
	}

	var found []string
	var locations []string
	for _, kw := range g.Keywords {
		if paths := hits[kw]; len(paths) > 0 {
			found = append(found, kw)
			for _, f := range paths {
				if !slices.Contains(locations, f) {
					locations = append(locations, f)
				}
			}
		}
	}
	slices.Sort(locations)
	if len(locations) > 3 {
		locations = locations[:3]
	}

	ok := len(found) >= requiredHits(g)
	conf := keywordConfidence(len(found), len(candidates), ok)
	rationale := fmt.Sprintf("%d of %d keywords found across %d scanned files (need %d)",
		len(found), len(g.Keywords), len(candidates), requiredHits(g))
	return emitGoal(emit, r.Name(), r.Category(), g, ok, strings.Join(found, ", "), strings.Join(locations, ", "), rationale, conf)
}

func (r *Repo) checkPaths(g rubric.CriterionGoal, files []string, emit fanout.Emit[evidence.Record]) error {
	var matched []string
	for _, p := range g.Paths {
		if m, _ := filepath.Glob(filepath.Join(r.Root, p)); len(m) > 0 {
			matched = append(matched, p)
			continue
		}
		for _, f := range files {
			if matchAny(f, []string{p}) {
				matched = append(matched, p)
				break
			}
		}
	}
	if len(g.Paths) == 0 {
		return emitGoal(emit, r.Name(), r.Category(), g, false, "", r.Root, "goal defines neither keywords nor paths", 0.1)
	}
	ok := len(matched) > 0
	rationale := fmt.Sprintf("%d of %d expected paths present", len(matched), len(g.Paths))
	conf := 0.9
	return emitGoal(emit, r.Name(), r.Category(), g, ok, strings.Join(matched, ", "), r.Root, rationale, conf)
}

func (r *Repo) read(rel string, cache map[string]string) (string, error) {
	if text, ok := cache[rel]; ok {
		return text, nil
	}
	path := filepath.Join(r.Root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxScanBytes {
		cache[rel] = ""
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.ToLower(string(data))
	cache[rel] = text
	return text, nil
}

// matchAny matches a slash-separated relative path against glob patterns,
// either as a whole or by base name.
func matchAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

// keywordConfidence grows with the number of distinct hits. A miss over a
// scanned corpus is a confident absence; a miss over nothing is not.
func keywordConfidence(hits, scanned int, found bool) float64 {
	if found {
		return min(0.95, 0.6+0.1*float64(hits))
	}
	if scanned == 0 {
		return 0.3
	}
	return 0.7
}
