package analysis

import (
	"bufio"
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"
)

// manifest describes one dependency file recognised at the repository root.
type manifest struct {
	file      string
	ecosystem string
	language  string
	parse     func(data []byte) ([]string, error)
}

var manifests = []manifest{
	{file: "requirements.txt", ecosystem: "python", language: "Python", parse: parseRequirements},
	{file: "pyproject.toml", ecosystem: "python", language: "Python", parse: parsePyProject},
	{file: "package.json", ecosystem: "node", language: "JavaScript", parse: parsePackageJSON},
	{file: "go.mod", ecosystem: "go", language: "Go", parse: parseGoMod},
	{file: "Cargo.toml", ecosystem: "rust", language: "Rust", parse: parseCargo},
	{file: "pubspec.yaml", ecosystem: "dart", language: "Dart", parse: parsePubspec},
}

var composeFiles = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"}

// parseRequirements keeps every requirement line verbatim, minus comments and pip options.
func parseRequirements(data []byte) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read requirements.txt")
	}
	return out, nil
}

func parsePackageJSON(data []byte) ([]string, error) {
	var pkg struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, errors.Wrap(err, "parse package.json")
	}
	return slices.Sorted(maps.Keys(pkg.Dependencies)), nil
}

func parseGoMod(data []byte) ([]string, error) {
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "parse go.mod")
	}
	var out []string
	for _, r := range f.Require {
		if r.Indirect {
			continue
		}
		out = append(out, r.Mod.Path)
	}
	return out, nil
}

func parseCargo(data []byte) ([]string, error) {
	var cargo struct {
		Dependencies map[string]any `toml:"dependencies"`
	}
	if err := toml.Unmarshal(data, &cargo); err != nil {
		return nil, errors.Wrap(err, "parse Cargo.toml")
	}
	return slices.Sorted(maps.Keys(cargo.Dependencies)), nil
}

func parsePyProject(data []byte) ([]string, error) {
	var py struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &py); err != nil {
		return nil, errors.Wrap(err, "parse pyproject.toml")
	}
	return py.Project.Dependencies, nil
}

func parsePubspec(data []byte) ([]string, error) {
	var spec struct {
		Dependencies map[string]any `yaml:"dependencies"`
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, "parse pubspec.yaml")
	}
	return slices.Sorted(maps.Keys(spec.Dependencies)), nil
}

// parseComposeServices lists the service names of a compose file.
func parseComposeServices(data []byte) ([]string, error) {
	var compose struct {
		Services map[string]any `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &compose); err != nil {
		return nil, errors.Wrap(err, "parse compose file")
	}
	return slices.Sorted(maps.Keys(compose.Services)), nil
}
