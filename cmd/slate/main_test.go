package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"slate/interpreter-go/pkg/driver"
)

func TestResolveSlateHomeEnv(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "cache")
	t.Setenv("SLATE_HOME", target)

	got, err := resolveSlateHome()
	if err != nil {
		t.Fatalf("resolveSlateHome error: %v", err)
	}
	if got != target {
		t.Fatalf("resolveSlateHome = %q, want %q", got, target)
	}
}

func TestResolveSlateHomeDefault(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("SLATE_HOME", "")
	t.Setenv("HOME", tmp)

	got, err := resolveSlateHome()
	if err != nil {
		t.Fatalf("resolveSlateHome error: %v", err)
	}
	if want := filepath.Join(tmp, ".slate"); got != want {
		t.Fatalf("resolveSlateHome = %q, want %q", got, want)
	}
}

func TestLooksLikePathCandidate(t *testing.T) {
	cases := []struct {
		arg  string
		want bool
	}{
		{"main.slt", true},
		{"./scripts/tool", true},
		{"src/app.slt", true},
		{"app", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := looksLikePathCandidate(tc.arg); got != tc.want {
			t.Fatalf("looksLikePathCandidate(%q) = %v, want %v", tc.arg, got, tc.want)
		}
	}
}

func TestRunDirectFile(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "hello.slt")
	writeFile(t, script, `
println("hello");
`)

	code, stdout, stderr := captureCLI(t, []string{script})
	if code != driver.StatusOK {
		t.Fatalf("run returned exit code %d, stderr: %q", code, stderr)
	}
	if !strings.Contains(stdout, "hello") {
		t.Fatalf("expected stdout to contain hello, got %q", stdout)
	}
}

func TestRunMissingFile(t *testing.T) {
	dir := t.TempDir()
	code, _, stderr := captureCLI(t, []string{filepath.Join(dir, "nope.slt")})
	if code != driver.StatusNoInput {
		t.Fatalf("expected exit code %d, got %d (stderr: %q)", driver.StatusNoInput, code, stderr)
	}
	if !strings.Contains(stderr, "cannot open") {
		t.Fatalf("expected open error on stderr, got %q", stderr)
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()

	parseErr := filepath.Join(dir, "bad.slt")
	writeFile(t, parseErr, `
var x = ;
`)
	if code, _, _ := captureCLI(t, []string{parseErr}); code != driver.StatusCompileError {
		t.Fatalf("parse error exit = %d, want %d", code, driver.StatusCompileError)
	}

	runtimeErr := filepath.Join(dir, "boom.slt")
	writeFile(t, runtimeErr, `
var x = 1 / 0;
`)
	if code, _, _ := captureCLI(t, []string{runtimeErr}); code != driver.StatusRuntimeError {
		t.Fatalf("runtime error exit = %d, want %d", code, driver.StatusRuntimeError)
	}
}

func TestRunManifestTarget(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	writeFile(t, filepath.Join(dir, driver.ManifestFileName), `
name: demo
version: 0.1.0
targets:
  app:
    type: executable
    main: src/main.slt
`)
	writeFile(t, filepath.Join(dir, "src", "main.slt"), `
println("ran via manifest");
`)

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer func() {
		if chdirErr := os.Chdir(oldWD); chdirErr != nil {
			t.Fatalf("restore working directory: %v", chdirErr)
		}
	}()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	code, stdout, stderr := captureCLI(t, []string{"run"})
	if code != driver.StatusOK {
		t.Fatalf("slate run exited %d (stderr: %q)", code, stderr)
	}
	if !strings.Contains(stdout, "ran via manifest") {
		t.Fatalf("expected program output, got %q", stdout)
	}

	code, stdout, stderr = captureCLI(t, []string{"run", "app"})
	if code != driver.StatusOK {
		t.Fatalf("slate run app exited %d (stderr: %q)", code, stderr)
	}
	if !strings.Contains(stdout, "ran via manifest") {
		t.Fatalf("expected program output for named target, got %q", stdout)
	}
}

func TestUsageErrors(t *testing.T) {
	if code, _, _ := captureCLI(t, []string{"run", "a.slt", "b.slt"}); code != driver.StatusUsage {
		t.Fatalf("extra arguments exit = %d, want %d", code, driver.StatusUsage)
	}
	if code, _, _ := captureCLI(t, []string{"deps"}); code != driver.StatusUsage {
		t.Fatalf("bare deps exit = %d, want %d", code, driver.StatusUsage)
	}
	if code, _, _ := captureCLI(t, []string{"deps", "frobnicate"}); code != driver.StatusUsage {
		t.Fatalf("unknown deps subcommand exit = %d, want %d", code, driver.StatusUsage)
	}
}

func TestDependencyInstaller_PathDependency(t *testing.T) {
	root := t.TempDir()
	mainDir := filepath.Join(root, "app")
	depDir := filepath.Join(root, "dep")
	for _, dir := range []string{mainDir, depDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	writeFile(t, filepath.Join(mainDir, driver.ManifestFileName), `
name: app
version: 0.1.0
dependencies:
  dep:
    path: ../dep
`)
	writeFile(t, filepath.Join(depDir, driver.ManifestFileName), `
name: dep
version: 0.2.0
`)

	manifest, err := driver.LoadManifest(filepath.Join(mainDir, driver.ManifestFileName))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	lock := driver.NewLockfile(manifest.Name, cliToolVersion)
	installer := newDependencyInstaller(manifest, filepath.Join(root, ".slate"))

	changed, logs, err := installer.Install(lock)
	if err != nil {
		t.Fatalf("Install returned error: %v", err)
	}
	if !changed {
		t.Fatalf("expected lockfile to change for new dependency")
	}
	if len(logs) == 0 {
		t.Fatalf("expected logging output for dependency resolution")
	}
	if len(lock.Packages) != 1 {
		t.Fatalf("lock packages = %#v", lock.Packages)
	}
	pkg := lock.Packages[0]
	if pkg.Name != "dep" || pkg.Version != "0.2.0" {
		t.Fatalf("lock entry unexpected: %#v", pkg)
	}
	if !strings.HasPrefix(pkg.Source, "path:") {
		t.Fatalf("expected path source, got %q", pkg.Source)
	}
}

func TestDependencyInstaller_PathDependencyTransitive(t *testing.T) {
	root := t.TempDir()
	mainDir := filepath.Join(root, "app")
	depDir := filepath.Join(root, "dep")
	subDir := filepath.Join(root, "sub")
	for _, dir := range []string{mainDir, depDir, subDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	writeFile(t, filepath.Join(mainDir, driver.ManifestFileName), `
name: app
version: 0.1.0
dependencies:
  dep:
    path: ../dep
`)
	writeFile(t, filepath.Join(depDir, driver.ManifestFileName), `
name: dep
version: 1.0.0
dependencies:
  sub:
    path: ../sub
`)
	writeFile(t, filepath.Join(subDir, driver.ManifestFileName), `
name: sub
version: 2.0.0
`)

	manifest, err := driver.LoadManifest(filepath.Join(mainDir, driver.ManifestFileName))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	lock := driver.NewLockfile(manifest.Name, cliToolVersion)
	installer := newDependencyInstaller(manifest, filepath.Join(root, ".slate"))

	changed, _, err := installer.Install(lock)
	if err != nil {
		t.Fatalf("Install returned error: %v", err)
	}
	if !changed {
		t.Fatalf("expected lockfile to record new dependencies")
	}
	if len(lock.Packages) != 2 {
		t.Fatalf("expected two packages in lock, got %#v", lock.Packages)
	}
	if lock.Packages[0].Name != "dep" || lock.Packages[1].Name != "sub" {
		t.Fatalf("unexpected package ordering: %#v", lock.Packages)
	}
}

func TestDependencyInstaller_RegistryDependency(t *testing.T) {
	root := t.TempDir()
	registry := filepath.Join(root, "registry")
	utilRoot := filepath.Join(registry, "util", "1.0.0")
	if err := os.MkdirAll(filepath.Join(utilRoot, "src"), 0o755); err != nil {
		t.Fatalf("mkdir util src: %v", err)
	}
	writeFile(t, filepath.Join(utilRoot, driver.ManifestFileName), `
name: util
version: 1.0.0
`)
	writeFile(t, filepath.Join(utilRoot, "src", "core.slt"), `
fun value() { return "util"; }
`)

	t.Setenv("SLATE_REGISTRY", registry)

	mainDir := filepath.Join(root, "app")
	if err := os.MkdirAll(mainDir, 0o755); err != nil {
		t.Fatalf("mkdir app: %v", err)
	}
	writeFile(t, filepath.Join(mainDir, driver.ManifestFileName), `
name: app
version: 0.1.0
dependencies:
  util: "1.0.0"
`)

	manifest, err := driver.LoadManifest(filepath.Join(mainDir, driver.ManifestFileName))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	cacheDir := filepath.Join(root, "cache")
	installer := newDependencyInstaller(manifest, cacheDir)
	lock := driver.NewLockfile(manifest.Name, cliToolVersion)

	changed, logs, err := installer.Install(lock)
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if !changed {
		t.Fatalf("expected lockfile change for registry dependency")
	}
	if len(logs) == 0 {
		t.Fatalf("expected registry log entries")
	}
	if len(lock.Packages) != 1 {
		t.Fatalf("lock packages unexpected: %#v", lock.Packages)
	}
	pkg := lock.Packages[0]
	if pkg.Name != "util" || pkg.Version != "1.0.0" {
		t.Fatalf("lock entry unexpected: %#v", pkg)
	}
	if !strings.HasPrefix(pkg.Source, "registry:") {
		t.Fatalf("expected registry source, got %q", pkg.Source)
	}
	if pkg.Checksum == "" {
		t.Fatalf("expected checksum for registry package")
	}
	cached := filepath.Join(cacheDir, "pkg", "src", pkg.Name, sanitizePathSegment(pkg.Version))
	if _, err := os.Stat(cached); err != nil {
		t.Fatalf("expected cached package at %s: %v", cached, err)
	}
}

func TestDependencyInstaller_GitDependency(t *testing.T) {
	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	if err := os.MkdirAll(filepath.Join(repo, "src"), 0o755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}
	writeFile(t, filepath.Join(repo, driver.ManifestFileName), `
name: gitpkg
version: 0.2.0
`)
	writeFile(t, filepath.Join(repo, "src", "core.slt"), `
fun value() { return "git"; }
`)

	rev := initGitRepo(t, repo)

	mainDir := filepath.Join(root, "app")
	if err := os.MkdirAll(mainDir, 0o755); err != nil {
		t.Fatalf("mkdir app: %v", err)
	}
	writeFile(t, filepath.Join(mainDir, driver.ManifestFileName), `
name: app
version: 0.1.0
dependencies:
  gitpkg:
    git: `+repo+`
    rev: `+rev+`
`)

	manifest, err := driver.LoadManifest(filepath.Join(mainDir, driver.ManifestFileName))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	cacheDir := filepath.Join(root, "cache")
	installer := newDependencyInstaller(manifest, cacheDir)
	lock := driver.NewLockfile(manifest.Name, cliToolVersion)

	changed, _, err := installer.Install(lock)
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if !changed {
		t.Fatalf("expected lockfile change for git dependency")
	}
	if len(lock.Packages) != 1 {
		t.Fatalf("lock packages unexpected: %#v", lock.Packages)
	}
	pkg := lock.Packages[0]
	if expected := fmt.Sprintf("git+%s@%s", repo, rev); pkg.Source != expected {
		t.Fatalf("pkg.Source = %q, want %q", pkg.Source, expected)
	}
	if pkg.Name != "gitpkg" {
		t.Fatalf("pkg.Name = %q, want gitpkg", pkg.Name)
	}
	if pkg.Version != rev {
		t.Fatalf("pkg.Version = %q, want %q", pkg.Version, rev)
	}
	cached := filepath.Join(cacheDir, "pkg", "src", pkg.Name, sanitizePathSegment(pkg.Version))
	if _, err := os.Stat(cached); err != nil {
		t.Fatalf("expected cached git package at %s: %v", cached, err)
	}
}

func TestDependencyInstaller_GitDependencyBranch(t *testing.T) {
	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	if err := os.MkdirAll(filepath.Join(repo, "src"), 0o755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}
	writeFile(t, filepath.Join(repo, driver.ManifestFileName), `
name: gitpkg
version: 0.3.0
`)
	writeFile(t, filepath.Join(repo, "src", "core.slt"), `
fun value() { return "branch"; }
`)

	rev := initGitRepo(t, repo)

	mainDir := filepath.Join(root, "app")
	if err := os.MkdirAll(mainDir, 0o755); err != nil {
		t.Fatalf("mkdir app: %v", err)
	}
	writeFile(t, filepath.Join(mainDir, driver.ManifestFileName), `
name: app
version: 0.1.0
dependencies:
  gitpkg:
    git: `+repo+`
    branch: master
`)

	manifest, err := driver.LoadManifest(filepath.Join(mainDir, driver.ManifestFileName))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	cacheDir := filepath.Join(root, "cache")
	installer := newDependencyInstaller(manifest, cacheDir)
	lock := driver.NewLockfile(manifest.Name, cliToolVersion)

	if _, _, err := installer.Install(lock); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if len(lock.Packages) != 1 {
		t.Fatalf("lock packages unexpected: %#v", lock.Packages)
	}
	pkg := lock.Packages[0]
	if want := fmt.Sprintf("master@%s", rev); pkg.Version != want {
		t.Fatalf("pkg.Version = %q, want %q", pkg.Version, want)
	}
	if expected := fmt.Sprintf("git+%s@%s", repo, rev); pkg.Source != expected {
		t.Fatalf("pkg.Source = %q, want %q", pkg.Source, expected)
	}
}

func TestSlateDepsInstallWritesLockfile(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "app")
	depDir := filepath.Join(root, "dep")
	for _, dir := range []string{project, depDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	writeFile(t, filepath.Join(project, driver.ManifestFileName), `
name: app
version: 0.1.0
dependencies:
  dep:
    path: ../dep
`)
	writeFile(t, filepath.Join(depDir, driver.ManifestFileName), `
name: dep
version: 0.5.0
`)

	t.Setenv("SLATE_HOME", filepath.Join(root, "cache"))

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer func() { _ = os.Chdir(oldWD) }()
	if err := os.Chdir(project); err != nil {
		t.Fatalf("Chdir project: %v", err)
	}

	if code, _, stderr := captureCLI(t, []string{"deps", "install"}); code != driver.StatusOK {
		t.Fatalf("slate deps install exited %d (stderr: %q)", code, stderr)
	}

	lock, err := driver.LoadLockfile(filepath.Join(project, driver.LockfileName))
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	if lock.Root != "app" {
		t.Fatalf("lock root = %q, want app", lock.Root)
	}
	if len(lock.Packages) != 1 || lock.Packages[0].Name != "dep" {
		t.Fatalf("lock packages unexpected: %#v", lock.Packages)
	}

	// A second install with nothing changed leaves the lockfile alone.
	code, stdout, stderr := captureCLI(t, []string{"deps", "install"})
	if code != driver.StatusOK {
		t.Fatalf("second install exited %d (stderr: %q)", code, stderr)
	}
	if !strings.Contains(stdout, "already up to date") {
		t.Fatalf("expected up-to-date message, got %q", stdout)
	}
}

func TestSlateDepsUpdateSpecificDependency(t *testing.T) {
	root := t.TempDir()
	registry := filepath.Join(root, "registry")
	project := filepath.Join(root, "app")

	for _, dir := range []string{
		project,
		filepath.Join(registry, "util", "1.0.0", "src"),
		filepath.Join(registry, "util", "2.0.0", "src"),
		filepath.Join(registry, "helper", "1.0.0", "src"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	writeFile(t, filepath.Join(registry, "helper", "1.0.0", driver.ManifestFileName), `
name: helper
version: 1.0.0
`)
	writeFile(t, filepath.Join(registry, "helper", "1.0.0", "src", "core.slt"), `
fun helperValue() { return "helper v1.0"; }
`)
	writeFile(t, filepath.Join(registry, "util", "1.0.0", driver.ManifestFileName), `
name: util
version: 1.0.0
`)
	writeFile(t, filepath.Join(registry, "util", "1.0.0", "src", "core.slt"), `
fun value() { return "util v1.0"; }
`)
	writeFile(t, filepath.Join(registry, "util", "2.0.0", driver.ManifestFileName), `
name: util
version: 2.0.0
`)
	writeFile(t, filepath.Join(registry, "util", "2.0.0", "src", "core.slt"), `
fun value() { return "util v2.0"; }
`)

	writeFile(t, filepath.Join(project, driver.ManifestFileName), `
name: app
version: 0.1.0
dependencies:
  helper: "1.0.0"
  util: "1.0.0"
`)

	t.Setenv("SLATE_HOME", filepath.Join(root, "cache"))
	t.Setenv("SLATE_REGISTRY", registry)

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer func() { _ = os.Chdir(oldWD) }()
	if err := os.Chdir(project); err != nil {
		t.Fatalf("Chdir project: %v", err)
	}

	if code, _, stderr := captureCLI(t, []string{"deps", "install"}); code != driver.StatusOK {
		t.Fatalf("slate deps install exited %d (stderr: %q)", code, stderr)
	}

	writeFile(t, filepath.Join(project, driver.ManifestFileName), `
name: app
version: 0.1.0
dependencies:
  helper: "1.0.0"
  util: "2.0.0"
`)

	if code, _, stderr := captureCLI(t, []string{"deps", "update", "util"}); code != driver.StatusOK {
		t.Fatalf("slate deps update exited %d (stderr: %q)", code, stderr)
	}

	lock, err := driver.LoadLockfile(filepath.Join(project, driver.LockfileName))
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	versions := make(map[string]string, len(lock.Packages))
	for _, pkg := range lock.Packages {
		versions[pkg.Name] = pkg.Version
	}
	if versions["util"] != "2.0.0" {
		t.Fatalf("expected util@2.0.0, got %v", versions["util"])
	}
	if versions["helper"] != "1.0.0" {
		t.Fatalf("expected helper@1.0.0, got %v", versions["helper"])
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)+"\n"), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

func initGitRepo(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == filepath.Join(dir, ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if _, err := worktree.Add(rel); err != nil {
			return err
		}
		return nil
	}); err != nil {
		t.Fatalf("stage files: %v", err)
	}
	hash, err := worktree.Commit("init", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Slate CLI",
			Email: "slate@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

func captureCLI(t *testing.T, args []string) (int, string, string) {
	t.Helper()

	stdout := os.Stdout
	stderr := os.Stderr

	rOut, wOut, err := os.Pipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}
	rErr, wErr, err := os.Pipe()
	if err != nil {
		t.Fatalf("stderr pipe: %v", err)
	}

	os.Stdout = wOut
	os.Stderr = wErr

	code := run(args)

	if err := wOut.Close(); err != nil {
		t.Fatalf("stdout close: %v", err)
	}
	if err := wErr.Close(); err != nil {
		t.Fatalf("stderr close: %v", err)
	}

	os.Stdout = stdout
	os.Stderr = stderr

	outBytes, err := io.ReadAll(rOut)
	if err != nil {
		t.Fatalf("stdout read: %v", err)
	}
	errBytes, err := io.ReadAll(rErr)
	if err != nil {
		t.Fatalf("stderr read: %v", err)
	}

	if err := rOut.Close(); err != nil {
		t.Fatalf("stdout pipe close: %v", err)
	}
	if err := rErr.Close(); err != nil {
		t.Fatalf("stderr pipe close: %v", err)
	}

	return code, string(outBytes), string(errBytes)
}
