package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifestFull(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: widget
version: 1.2.0
license: MIT
authors:
  - Ada Lovelace
targets:
  tool:
    type: executable
    main: src/main.slt
  lib:
    type: library
    srcs:
      - src/lib.slt
dependencies:
  util: ^1.0.0
  linked:
    path: ../linked
  remote:
    git: https://example.com/remote.git
    tag: v2.0.0
dev_dependencies:
  harness: ~0.3.0
`)

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if manifest.Name != "widget" || manifest.Version != "1.2.0" {
		t.Fatalf("name/version = %s/%s", manifest.Name, manifest.Version)
	}
	if manifest.License != "MIT" {
		t.Fatalf("license = %s", manifest.License)
	}
	if len(manifest.Authors) != 1 || manifest.Authors[0] != "Ada Lovelace" {
		t.Fatalf("authors = %v", manifest.Authors)
	}
	if manifest.Dir() != dir {
		t.Fatalf("Dir = %s, want %s", manifest.Dir(), dir)
	}

	if len(manifest.TargetOrder) != 2 || manifest.TargetOrder[0] != "tool" || manifest.TargetOrder[1] != "lib" {
		t.Fatalf("target order = %v", manifest.TargetOrder)
	}
	tool := manifest.FindTarget("tool")
	if tool == nil || tool.Type != TargetExecutable || tool.Main != "src/main.slt" {
		t.Fatalf("tool target = %+v", tool)
	}
	lib := manifest.FindTarget("lib")
	if lib == nil || lib.Type != TargetLibrary || len(lib.Srcs) != 1 {
		t.Fatalf("lib target = %+v", lib)
	}

	util := manifest.Dependencies["util"]
	if util == nil || util.Version != "^1.0.0" {
		t.Fatalf("shorthand dependency = %+v", util)
	}
	linked := manifest.Dependencies["linked"]
	if linked == nil || !linked.IsPath() || linked.Path != "../linked" {
		t.Fatalf("path dependency = %+v", linked)
	}
	remote := manifest.Dependencies["remote"]
	if remote == nil || !remote.IsGit() || remote.Tag != "v2.0.0" {
		t.Fatalf("git dependency = %+v", remote)
	}
	if dev := manifest.DevDependencies["harness"]; dev == nil || dev.Version != "~0.3.0" {
		t.Fatalf("dev dependency = %+v", dev)
	}
}

func TestLoadManifestDefaultsTargetType(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: app
version: 0.1.0
targets:
  app:
    main: main.slt
`)
	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	target := manifest.DefaultExecutableTarget()
	if target == nil || target.Name != "app" {
		t.Fatalf("default target = %+v", target)
	}
	if target.Type != TargetExecutable {
		t.Fatalf("type = %s, want executable default", target.Type)
	}
}

func TestDefaultExecutableTargetSkipsLibraries(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: app
version: 0.1.0
targets:
  core:
    type: library
  cli:
    type: executable
    main: main.slt
`)
	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	target := manifest.DefaultExecutableTarget()
	if target == nil || target.Name != "cli" {
		t.Fatalf("default target = %+v, want cli", target)
	}
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: app
version: 0.1.0
sponsered_by: nobody
`)
	if _, err := LoadManifest(path); err == nil {
		t.Fatalf("expected error for unknown top-level field")
	}
}

func TestManifestValidationProblems(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "version: 1.0.0",
			want:    "missing package name",
		},
		{
			name:    "missing version",
			content: "name: app",
			want:    "missing package version",
		},
		{
			name: "unsafe name",
			content: `
name: "bad name!"
version: 1.0.0`,
			want: "unsafe characters",
		},
		{
			name: "unknown target type",
			content: `
name: app
version: 1.0.0
targets:
  app:
    type: plugin`,
			want: "unknown type",
		},
		{
			name: "executable without main",
			content: `
name: app
version: 1.0.0
targets:
  app:
    type: executable`,
			want: "missing main",
		},
		{
			name: "dependency with no source",
			content: `
name: app
version: 1.0.0
dependencies:
  util: {}`,
			want: "declares no version, git, or path source",
		},
		{
			name: "dependency with multiple sources",
			content: `
name: app
version: 1.0.0
dependencies:
  util:
    version: 1.0.0
    path: ../util`,
			want: "multiple sources",
		},
		{
			name: "git ref without git source",
			content: `
name: app
version: 1.0.0
dependencies:
  util:
    version: 1.0.0
    tag: v1`,
			want: "without a git source",
		},
		{
			name: "conflicting git refs",
			content: `
name: app
version: 1.0.0
dependencies:
  util:
    git: https://example.com/util.git
    tag: v1
    branch: main`,
			want: "more than one of rev, tag, branch",
		},
		{
			name: "invalid version constraint",
			content: `
name: app
version: 1.0.0
dependencies:
  util: not-a-version`,
			want: "invalid version constraint",
		},
	}

	for _, tc := range cases {
		dir := t.TempDir()
		path := writeManifest(t, dir, tc.content)
		_, err := LoadManifest(path)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		verr, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("%s: error = %v, want *ValidationError", tc.name, err)
		}
		if !strings.Contains(verr.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, verr.Error(), tc.want)
		}
	}
}

func TestValidationAggregatesProblems(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
targets:
  app:
    type: executable
`)
	_, err := LoadManifest(path)
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	// Missing name, missing version, and the missing main all report at once.
	if len(verr.Problems) != 3 {
		t.Fatalf("problems = %v, want 3 entries", verr.Problems)
	}
}

func TestVersionConstraintPattern(t *testing.T) {
	valid := []string{"1", "1.2", "1.2.3", "^1.0.0", "~2.1", "1.0.0-beta.1", "0.4.0+build5"}
	for _, v := range valid {
		if !versionConstraintPattern.MatchString(v) {
			t.Fatalf("%q should be a valid constraint", v)
		}
	}
	invalid := []string{"", "v1.0.0", "latest", "1.2.3.4", ">=1.0.0"}
	for _, v := range invalid {
		if versionConstraintPattern.MatchString(v) {
			t.Fatalf("%q should be rejected", v)
		}
	}
}

func TestFindManifestWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
name: app
version: 1.0.0
`)
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, err := FindManifest(nested)
	if err != nil {
		t.Fatalf("FindManifest: %v", err)
	}
	if found != filepath.Join(root, ManifestFileName) {
		t.Fatalf("found = %s, want manifest at root", found)
	}
}

func TestFindManifestMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindManifest(dir); err == nil {
		t.Fatalf("expected error when no manifest exists")
	}
}

func TestSanitizeSegment(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"with space", "with-space"},
		{"weird/../chars", "weird-..-chars"},
		{"  trimmed  ", "trimmed"},
		{"dots.and_underscores-ok", "dots.and_underscores-ok"},
	}
	for _, tc := range cases {
		if got := sanitizeSegment(tc.in); got != tc.want {
			t.Fatalf("sanitizeSegment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
