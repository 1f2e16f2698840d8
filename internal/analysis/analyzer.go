package analysis

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-enry/go-enry/v2"
	gitignore "github.com/sabhiram/go-gitignore"
)

const (
	defaultMaxDepth = 3
	// sampleBytes is how much of each file go-enry gets to look at.
	sampleBytes     = 8 * 1024
	maxSampledFiles = 5000
	maxReadmeBytes  = 8 * 1024
)

// ignoredDirs are never listed nor scanned.
var ignoredDirs = []string{
	".git",
	"__pycache__",
	"venv",
	".venv",
	"node_modules",
	".idea",
	".vscode",
}

// Analyzer builds a Summary from a directory tree.
type Analyzer struct {
	maxDepth int
}

func NewAnalyzer(maxDepth int) *Analyzer {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Analyzer{maxDepth: maxDepth}
}

type scan struct {
	tree      []string
	langBytes map[string]int64
	sampled   int
}

// Analyze summarizes the repository checked out at root. Any error is terminal
// for the job that requested it.
func (a *Analyzer) Analyze(ctx context.Context, root string) (*Summary, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "analysis: stat workspace")
	}
	if !info.IsDir() {
		return nil, errors.Newf("analysis: %s is not a directory", root)
	}

	ignore := loadIgnore(root)
	s := &scan{langBytes: make(map[string]int64)}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if slices.Contains(ignoredDirs, d.Name()) || ignore.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
		} else if ignore.MatchesPath(rel) {
			return nil
		}

		// the listing is bounded; the language scan is not
		if strings.Count(rel, "/") <= a.maxDepth {
			s.tree = append(s.tree, rel)
		}
		if d.Type().IsRegular() {
			s.sample(p, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "analysis: walk workspace")
	}

	deps, manifestLangs, err := readManifests(root)
	if err != nil {
		return nil, err
	}
	infra, composeServices, err := detectInfrastructure(root)
	if err != nil {
		return nil, err
	}
	if len(composeServices) > 0 {
		deps["docker-compose"] = composeServices
	}

	summary := &Summary{
		ProjectName:    filepath.Base(root),
		Languages:      s.languages(manifestLangs),
		Dependencies:   deps,
		Infrastructure: infra,
		FileTree:       s.tree,
		Readme:         readReadme(root),
	}
	slices.Sort(summary.FileTree)
	return summary, nil
}

// sample feeds the head of one file to go-enry and accumulates its size per
// programming language. Unreadable files are skipped.
func (s *scan) sample(p, rel string) {
	if s.sampled >= maxSampledFiles {
		return
	}
	if enry.IsVendor(rel) || enry.IsDotFile(rel) || enry.IsDocumentation(rel) || enry.IsConfiguration(rel) {
		return
	}
	f, err := os.Open(p)
	if err != nil {
		return
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, sampleBytes))
	if err != nil || enry.IsBinary(head) {
		return
	}
	s.sampled++

	lang := enry.GetLanguage(path.Base(rel), head)
	if lang == "" || enry.GetLanguageType(lang) != enry.Programming {
		return
	}
	size := int64(len(head))
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	s.langBytes[lang] += size
}

// languages orders detected languages by size, largest first, then appends
// manifest-implied languages that content detection missed.
func (s *scan) languages(fromManifests []string) []string {
	out := make([]string, 0, len(s.langBytes)+len(fromManifests))
	for lang := range s.langBytes {
		out = append(out, lang)
	}
	slices.SortFunc(out, func(a, b string) int {
		if s.langBytes[a] != s.langBytes[b] {
			if s.langBytes[a] > s.langBytes[b] {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	for _, lang := range fromManifests {
		if !slices.Contains(out, lang) {
			out = append(out, lang)
		}
	}
	return out
}

func readManifests(root string) (map[string][]string, []string, error) {
	deps := make(map[string][]string)
	var langs []string
	for _, m := range manifests {
		data, err := os.ReadFile(filepath.Join(root, m.file))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "analysis: read %s", m.file)
		}
		list, err := m.parse(data)
		if err != nil {
			return nil, nil, errors.Wrap(err, "analysis")
		}
		deps[m.ecosystem] = append(deps[m.ecosystem], list...)
		if !slices.Contains(langs, m.language) {
			langs = append(langs, m.language)
		}
	}
	return deps, langs, nil
}

func detectInfrastructure(root string) (map[string]bool, []string, error) {
	infra := map[string]bool{
		"dockerfile":     exists(root, "Dockerfile"),
		"docker_compose": false,
		"github_actions": exists(root, ".github", "workflows"),
		"kubernetes":     exists(root, "k8s") || exists(root, "kubernetes") || exists(root, "helm"),
		"makefile":       exists(root, "Makefile"),
	}

	var services []string
	for _, name := range composeFiles {
		data, err := os.ReadFile(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "analysis: read %s", name)
		}
		infra["docker_compose"] = true
		services, err = parseComposeServices(data)
		if err != nil {
			return nil, nil, errors.Wrap(err, "analysis")
		}
		break
	}
	return infra, services, nil
}

func readReadme(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(strings.ToLower(e.Name()), "readme") {
			continue
		}
		f, err := os.Open(filepath.Join(root, e.Name()))
		if err != nil {
			return ""
		}
		data, err := io.ReadAll(io.LimitReader(f, maxReadmeBytes))
		f.Close()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
	return ""
}

func loadIgnore(root string) *gitignore.GitIgnore {
	lines := append([]string(nil), ignoredDirs...)
	if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
		}
	}
	return gitignore.CompileIgnoreLines(lines...)
}

func exists(root string, elem ...string) bool {
	_, err := os.Stat(filepath.Join(append([]string{root}, elem...)...))
	return err == nil
}
