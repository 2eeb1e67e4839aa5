package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the project manifest recognized at a package root.
const ManifestFileName = "slate.yml"

// TargetType enumerates the artifact kinds a manifest may declare.
type TargetType string

const (
	TargetExecutable TargetType = "executable"
	TargetLibrary    TargetType = "library"
)

// IsValid reports whether the target type is one the tool understands.
func (t TargetType) IsValid() bool {
	switch t {
	case TargetExecutable, TargetLibrary:
		return true
	default:
		return false
	}
}

// RequiresMain reports whether the target type needs a main entry script.
func (t TargetType) RequiresMain() bool {
	return t == TargetExecutable
}

// Manifest is the parsed view of a slate.yml file.
type Manifest struct {
	Path    string
	Name    string
	Version string
	License string
	Authors []string

	Targets     map[string]*TargetSpec
	TargetOrder []string

	Dependencies    map[string]*DependencySpec
	DevDependencies map[string]*DependencySpec
}

// TargetSpec describes a single named target.
type TargetSpec struct {
	Name string
	Type TargetType
	Main string
	Srcs []string
}

// DependencySpec describes a single dependency requirement. Exactly one of
// Version, Git, or Path identifies the source.
type DependencySpec struct {
	Version string
	Git     string
	Rev     string
	Tag     string
	Branch  string
	Path    string
}

// IsGit reports whether the dependency is fetched from a git remote.
func (d *DependencySpec) IsGit() bool { return d != nil && d.Git != "" }

// IsPath reports whether the dependency points at a local directory.
func (d *DependencySpec) IsPath() bool { return d != nil && d.Path != "" }

// ValidationError aggregates every problem found while validating a manifest.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "manifest: invalid"
	}
	return fmt.Sprintf("manifest %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var raw manifestFile
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", abs, err)
	}

	manifest := raw.toManifest()
	manifest.Path = abs
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// FindManifest walks upward from dir looking for a slate.yml.
func FindManifest(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("manifest: resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, ManifestFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("manifest: no %s found above %s", ManifestFileName, dir)
		}
		abs = parent
	}
}

// Dir returns the directory containing the manifest file.
func (m *Manifest) Dir() string {
	if m == nil || m.Path == "" {
		return ""
	}
	return filepath.Dir(m.Path)
}

// DefaultExecutableTarget returns the first declared executable target, or
// nil when the manifest declares none.
func (m *Manifest) DefaultExecutableTarget() *TargetSpec {
	for _, name := range m.TargetOrder {
		target := m.Targets[name]
		if target != nil && target.Type == TargetExecutable {
			return target
		}
	}
	return nil
}

// FindTarget looks up a target by name.
func (m *Manifest) FindTarget(name string) *TargetSpec {
	if m == nil {
		return nil
	}
	return m.Targets[name]
}

var versionConstraintPattern = regexp.MustCompile(`^[\^~]?\d+(\.\d+){0,2}([-+][0-9A-Za-z.-]+)?$`)

func (m *Manifest) validate() error {
	problems := []string{}

	if strings.TrimSpace(m.Name) == "" {
		problems = append(problems, "missing package name")
	} else if sanitizeSegment(m.Name) != m.Name {
		problems = append(problems, fmt.Sprintf("package name %q contains unsafe characters", m.Name))
	}
	if strings.TrimSpace(m.Version) == "" {
		problems = append(problems, "missing package version")
	}

	for _, name := range m.TargetOrder {
		target := m.Targets[name]
		if target == nil {
			continue
		}
		if !target.Type.IsValid() {
			problems = append(problems, fmt.Sprintf("target %q has unknown type %q", name, target.Type))
			continue
		}
		if target.Type.RequiresMain() && strings.TrimSpace(target.Main) == "" {
			problems = append(problems, fmt.Sprintf("executable target %q is missing main", name))
		}
	}

	validateDeps := func(kind string, deps map[string]*DependencySpec) {
		for _, name := range sortedDepNames(deps) {
			dep := deps[name]
			if dep == nil {
				continue
			}
			sources := 0
			if dep.Version != "" {
				sources++
				if !versionConstraintPattern.MatchString(dep.Version) {
					problems = append(problems, fmt.Sprintf("%s %q has invalid version constraint %q", kind, name, dep.Version))
				}
			}
			if dep.Git != "" {
				sources++
			}
			if dep.Path != "" {
				sources++
			}
			if sources == 0 {
				problems = append(problems, fmt.Sprintf("%s %q declares no version, git, or path source", kind, name))
			}
			if sources > 1 {
				problems = append(problems, fmt.Sprintf("%s %q declares multiple sources", kind, name))
			}
			if dep.Git == "" && (dep.Rev != "" || dep.Tag != "" || dep.Branch != "") {
				problems = append(problems, fmt.Sprintf("%s %q sets a git revision without a git source", kind, name))
			}
			refs := 0
			for _, ref := range []string{dep.Rev, dep.Tag, dep.Branch} {
				if ref != "" {
					refs++
				}
			}
			if refs > 1 {
				problems = append(problems, fmt.Sprintf("%s %q sets more than one of rev, tag, branch", kind, name))
			}
		}
	}
	validateDeps("dependency", m.Dependencies)
	validateDeps("dev dependency", m.DevDependencies)

	if len(problems) > 0 {
		return &ValidationError{Path: m.Path, Problems: problems}
	}
	return nil
}

func sortedDepNames(deps map[string]*DependencySpec) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var unsafeSegmentPattern = regexp.MustCompile(`[^0-9A-Za-z._-]+`)

// sanitizeSegment reduces a name to characters safe to use as a directory
// component under the dependency cache.
func sanitizeSegment(name string) string {
	trimmed := strings.TrimSpace(name)
	trimmed = unsafeSegmentPattern.ReplaceAllString(trimmed, "-")
	return strings.Trim(trimmed, "-")
}

// manifestFile mirrors the on-disk YAML layout before normalization.
type manifestFile struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	License         string        `yaml:"license"`
	Authors         stringList    `yaml:"authors"`
	Targets         targetMap     `yaml:"targets"`
	Dependencies    dependencyMap `yaml:"dependencies"`
	DevDependencies dependencyMap `yaml:"dev_dependencies"`
}

func (f manifestFile) toManifest() *Manifest {
	manifest := &Manifest{
		Name:            strings.TrimSpace(f.Name),
		Version:         strings.TrimSpace(f.Version),
		License:         strings.TrimSpace(f.License),
		Authors:         []string(f.Authors),
		Targets:         map[string]*TargetSpec{},
		TargetOrder:     append([]string(nil), f.Targets.order...),
		Dependencies:    map[string]*DependencySpec{},
		DevDependencies: map[string]*DependencySpec{},
	}
	for name, target := range f.Targets.entries {
		spec := *target
		spec.Name = name
		manifest.Targets[name] = &spec
	}
	for name, dep := range f.Dependencies.entries {
		copied := *dep
		manifest.Dependencies[name] = &copied
	}
	for name, dep := range f.DevDependencies.entries {
		copied := *dep
		manifest.DevDependencies[name] = &copied
	}
	return manifest
}

// targetMap keeps YAML declaration order alongside the decoded entries.
type targetMap struct {
	order   []string
	entries map[string]*TargetSpec
}

func (t *targetMap) UnmarshalYAML(node *yaml.Node) error {
	t.order = nil
	t.entries = map[string]*TargetSpec{}
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("targets must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		var raw struct {
			Type TargetType `yaml:"type"`
			Main string     `yaml:"main"`
			Srcs stringList `yaml:"srcs"`
		}
		if err := value.Decode(&raw); err != nil {
			return fmt.Errorf("target %q: %w", key.Value, err)
		}
		spec := &TargetSpec{
			Type: raw.Type,
			Main: strings.TrimSpace(raw.Main),
			Srcs: []string(raw.Srcs),
		}
		if spec.Type == "" {
			spec.Type = TargetExecutable
		}
		name := strings.TrimSpace(key.Value)
		t.order = append(t.order, name)
		t.entries[name] = spec
	}
	return nil
}

// dependencyMap decodes both shorthand ("name: ^1.2.0") and expanded
// mapping forms for dependency entries.
type dependencyMap struct {
	entries map[string]*DependencySpec
}

func (d *dependencyMap) UnmarshalYAML(node *yaml.Node) error {
	d.entries = map[string]*DependencySpec{}
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("dependencies must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		name := strings.TrimSpace(key.Value)
		switch value.Kind {
		case yaml.ScalarNode:
			d.entries[name] = &DependencySpec{Version: strings.TrimSpace(value.Value)}
		case yaml.MappingNode:
			var raw struct {
				Version string `yaml:"version"`
				Git     string `yaml:"git"`
				Rev     string `yaml:"rev"`
				Tag     string `yaml:"tag"`
				Branch  string `yaml:"branch"`
				Path    string `yaml:"path"`
			}
			if err := value.Decode(&raw); err != nil {
				return fmt.Errorf("dependency %q: %w", name, err)
			}
			d.entries[name] = &DependencySpec{
				Version: strings.TrimSpace(raw.Version),
				Git:     strings.TrimSpace(raw.Git),
				Rev:     strings.TrimSpace(raw.Rev),
				Tag:     strings.TrimSpace(raw.Tag),
				Branch:  strings.TrimSpace(raw.Branch),
				Path:    strings.TrimSpace(raw.Path),
			}
		default:
			return fmt.Errorf("dependency %q must be a version string or a mapping", name)
		}
	}
	return nil
}

// stringList accepts either a single scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	*s = nil
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		if trimmed := strings.TrimSpace(node.Value); trimmed != "" {
			*s = append(*s, trimmed)
		}
		return nil
	case yaml.SequenceNode:
		for _, item := range node.Content {
			var value string
			if err := item.Decode(&value); err != nil {
				return err
			}
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				*s = append(*s, trimmed)
			}
		}
		return nil
	default:
		return fmt.Errorf("expected a string or list of strings")
	}
}
