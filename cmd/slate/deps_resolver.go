package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"slate/interpreter-go/pkg/driver"
)

// dependencyInstaller resolves every declared dependency into the cache and
// produces the lockfile entries for them. Transitive dependencies found in a
// resolved package's own manifest are flattened into the same lockfile.
type dependencyInstaller struct {
	manifest     *driver.Manifest
	manifestRoot string
	cacheDir     string
	logs         []string
	registry     *registryFetcher
	git          *gitFetcher
	resolved     map[string]*driver.LockedPackage
	resolving    map[string]bool
}

type resolvedPackage struct {
	pkg      *driver.LockedPackage
	manifest *driver.Manifest
	root     string
}

func newDependencyInstaller(manifest *driver.Manifest, cacheDir string) *dependencyInstaller {
	var root string
	if manifest != nil {
		root = manifest.Dir()
	}
	return &dependencyInstaller{
		manifest:     manifest,
		manifestRoot: root,
		cacheDir:     cacheDir,
		logs:         []string{},
		registry:     newRegistryFetcher(cacheDir),
		git:          newGitFetcher(cacheDir),
		resolved:     make(map[string]*driver.LockedPackage),
		resolving:    make(map[string]bool),
	}
}

// Install resolves the manifest's dependency set and rewrites lock.Packages
// with the result. The returned flag reports whether the lockfile changed.
func (d *dependencyInstaller) Install(lock *driver.Lockfile) (bool, []string, error) {
	if d.manifest == nil {
		return false, d.logs, nil
	}

	d.resolved = make(map[string]*driver.LockedPackage)
	d.resolving = make(map[string]bool)

	names := make([]string, 0, len(d.manifest.Dependencies))
	for name := range d.manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := d.manifest.Dependencies[name]
		if spec == nil {
			return false, d.logs, fmt.Errorf("dependency %q has no descriptor", name)
		}
		copied := *spec
		if err := d.installDependency(name, &copied, d.manifestRoot); err != nil {
			return false, d.logs, err
		}
	}

	desired := make([]*driver.LockedPackage, 0, len(d.resolved))
	for _, pkg := range d.resolved {
		desired = append(desired, pkg)
	}
	sort.SliceStable(desired, func(i, j int) bool {
		return desired[i].Name < desired[j].Name
	})

	existing := make(map[string]*driver.LockedPackage, len(lock.Packages))
	for _, pkg := range lock.Packages {
		if pkg != nil {
			existing[pkg.Name] = pkg
		}
	}
	changed := len(desired) != len(existing)
	for _, pkg := range desired {
		current, ok := existing[pkg.Name]
		if !ok || *current != *pkg {
			changed = true
		}
	}

	lock.Packages = desired
	return changed, d.logs, nil
}

func (d *dependencyInstaller) installDependency(name string, spec *driver.DependencySpec, baseDir string) error {
	if spec == nil {
		return fmt.Errorf("dependency %q has no descriptor", name)
	}
	if d.resolving[name] {
		return fmt.Errorf("dependency cycle detected at %s", name)
	}
	if _, exists := d.resolved[name]; exists {
		return nil
	}
	d.resolving[name] = true
	defer delete(d.resolving, name)

	resolved, err := d.resolveDependency(name, spec, baseDir)
	if err != nil {
		return err
	}
	if resolved == nil || resolved.pkg == nil {
		return nil
	}
	d.resolved[resolved.pkg.Name] = resolved.pkg

	// Flatten the package's own dependencies into the lockfile.
	if resolved.manifest != nil {
		childNames := make([]string, 0, len(resolved.manifest.Dependencies))
		for childName := range resolved.manifest.Dependencies {
			childNames = append(childNames, childName)
		}
		sort.Strings(childNames)
		for _, childName := range childNames {
			childSpec := resolved.manifest.Dependencies[childName]
			if childSpec == nil {
				return fmt.Errorf("dependency %s lists %s without descriptor", resolved.pkg.Name, childName)
			}
			copied := *childSpec
			if err := d.installDependency(childName, &copied, resolved.root); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *dependencyInstaller) resolveDependency(name string, spec *driver.DependencySpec, baseDir string) (*resolvedPackage, error) {
	switch {
	case spec.IsPath():
		return d.resolvePathDependency(name, spec, baseDir)
	case spec.IsGit():
		return d.resolveGitDependency(name, spec)
	case spec.Version != "":
		return d.resolveRegistryDependency(name, spec)
	default:
		return nil, fmt.Errorf("dependency %q: unsupported descriptor", name)
	}
}

func (d *dependencyInstaller) resolvePathDependency(name string, spec *driver.DependencySpec, baseDir string) (*resolvedPackage, error) {
	pathSpec := spec.Path
	if !filepath.IsAbs(pathSpec) {
		pathSpec = filepath.Join(baseDir, filepath.FromSlash(pathSpec))
	}
	abs, err := filepath.Abs(pathSpec)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: resolve path %q: %w", name, spec.Path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: stat %s: %w", name, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dependency %q: expected directory at %s", name, abs)
	}

	manifestPath := filepath.Join(abs, driver.ManifestFileName)
	depManifest, err := driver.LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: load manifest %s: %w", name, manifestPath, err)
	}

	version := depManifest.Version
	if version == "" {
		version = "0.0.0-dev"
	}
	pkgName := depManifest.Name
	if pkgName == "" {
		pkgName = name
	}

	d.logs = append(d.logs, fmt.Sprintf("linked %s %s (%s)", pkgName, version, d.displayPath(abs)))

	return &resolvedPackage{
		pkg: &driver.LockedPackage{
			Name:    pkgName,
			Version: version,
			Source:  fmt.Sprintf("path:%s", abs),
		},
		manifest: depManifest,
		root:     abs,
	}, nil
}

func (d *dependencyInstaller) resolveGitDependency(name string, spec *driver.DependencySpec) (*resolvedPackage, error) {
	if d.git == nil {
		return nil, fmt.Errorf("dependency %q: git support unavailable", name)
	}
	pkg, checkoutDir, err := d.git.Fetch(name, spec)
	if err != nil {
		return nil, err
	}
	d.logs = append(d.logs, fmt.Sprintf("fetched git dependency %s (%s)", pkg.Name, pkg.Version))

	var manifest *driver.Manifest
	manifestPath := filepath.Join(checkoutDir, driver.ManifestFileName)
	if data, err := driver.LoadManifest(manifestPath); err == nil {
		manifest = data
		if manifest.Name != "" {
			pkg.Name = manifest.Name
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dependency %q: load manifest %s: %w", name, manifestPath, err)
	}

	return &resolvedPackage{
		pkg:      pkg,
		manifest: manifest,
		root:     checkoutDir,
	}, nil
}

func (d *dependencyInstaller) resolveRegistryDependency(name string, spec *driver.DependencySpec) (*resolvedPackage, error) {
	if d.registry == nil {
		return nil, fmt.Errorf("dependency %q: registry support unavailable", name)
	}
	pkg, packageDir, err := d.registry.Fetch(name, spec.Version)
	if err != nil {
		return nil, err
	}
	d.logs = append(d.logs, fmt.Sprintf("installed %s %s from registry", pkg.Name, pkg.Version))

	var manifest *driver.Manifest
	manifestPath := filepath.Join(packageDir, driver.ManifestFileName)
	if data, err := driver.LoadManifest(manifestPath); err == nil {
		manifest = data
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dependency %q: load manifest %s: %w", name, manifestPath, err)
	}

	return &resolvedPackage{
		pkg:      pkg,
		manifest: manifest,
		root:     packageDir,
	}, nil
}

func (d *dependencyInstaller) displayPath(path string) string {
	if d.manifestRoot != "" {
		if rel, err := filepath.Rel(d.manifestRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}

// registryFetcher copies packages out of a local directory registry laid out
// as <registry>/<name>/<version>/src. The registry location comes from
// SLATE_REGISTRY, defaulting to <cache>/registry.
type registryFetcher struct {
	base string
}

func newRegistryFetcher(cacheDir string) *registryFetcher {
	if cacheDir == "" {
		return nil
	}
	return &registryFetcher{base: cacheDir}
}

func (r *registryFetcher) Fetch(name, version string) (*driver.LockedPackage, string, error) {
	if r == nil {
		return nil, "", errors.New("registry fetcher not initialised")
	}
	registryDir := os.Getenv("SLATE_REGISTRY")
	if registryDir == "" {
		registryDir = filepath.Join(r.base, "registry")
	}
	version = strings.TrimLeft(strings.TrimSpace(version), "^~")
	packageDir := filepath.Join(registryDir, name, version)
	info, err := os.Stat(packageDir)
	if err != nil {
		return nil, "", fmt.Errorf("registry: package %s@%s not found in %s: %w", name, version, packageDir, err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("registry: expected directory at %s", packageDir)
	}

	srcDir := filepath.Join(packageDir, "src")
	if _, err := os.Stat(srcDir); err != nil {
		return nil, "", fmt.Errorf("registry: package %s@%s missing src directory: %w", name, version, err)
	}

	cacheSrc := filepath.Join(r.base, "pkg", "src", name, sanitizePathSegment(version))
	if err := copyOrSyncDir(srcDir, cacheSrc); err != nil {
		return nil, "", fmt.Errorf("registry: copy %s -> %s: %w", srcDir, cacheSrc, err)
	}

	checksum, err := dirChecksum(srcDir)
	if err != nil {
		return nil, "", fmt.Errorf("registry: checksum %s: %w", srcDir, err)
	}

	return &driver.LockedPackage{
		Name:     name,
		Version:  version,
		Source:   fmt.Sprintf("registry:%s/%s", name, version),
		Checksum: checksum,
	}, packageDir, nil
}

// gitFetcher clones git dependencies into the cache, one directory per
// pinned revision.
type gitFetcher struct {
	cacheDir string
}

func newGitFetcher(cacheDir string) *gitFetcher {
	if cacheDir == "" {
		return nil
	}
	return &gitFetcher{cacheDir: cacheDir}
}

func (g *gitFetcher) Fetch(name string, spec *driver.DependencySpec) (*driver.LockedPackage, string, error) {
	if g == nil {
		return nil, "", errors.New("git fetcher unavailable")
	}
	url := strings.TrimSpace(spec.Git)
	if url == "" {
		return nil, "", fmt.Errorf("dependency %q: git URL required", name)
	}

	baseDir := filepath.Join(g.cacheDir, "pkg", "src", name)
	version, commit, err := ensureGitCheckout(baseDir, url, spec)
	if err != nil {
		return nil, "", err
	}

	checkoutDir := filepath.Join(baseDir, sanitizePathSegment(version))
	checksum, err := dirChecksum(checkoutDir)
	if err != nil {
		return nil, "", err
	}

	return &driver.LockedPackage{
		Name:     name,
		Version:  version,
		Source:   fmt.Sprintf("git+%s@%s", url, commit),
		Checksum: checksum,
	}, checkoutDir, nil
}

func ensureGitCheckout(baseDir, url string, spec *driver.DependencySpec) (string, string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", "", err
	}

	revision, descriptor := gitRevisionFromSpec(spec)

	// A pinned commit that is already checked out needs no clone.
	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		existing := filepath.Join(baseDir, sanitizePathSegment(rev))
		if _, err := os.Stat(existing); err == nil {
			return rev, rev, nil
		}
	}

	tmpDir, err := os.MkdirTemp(baseDir, "git-fetch-*")
	if err != nil {
		return "", "", err
	}
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", "", err
	}

	repo, err := git.PlainClone(tmpDir, false, &git.CloneOptions{
		URL:               url,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("git clone %s: %w", url, err)
	}

	hash, err := repo.ResolveRevision(revision)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}

	version := gitPinnedVersion(descriptor, hash.String())
	targetDir := filepath.Join(baseDir, sanitizePathSegment(version))
	if _, err := os.Stat(targetDir); err == nil {
		_ = os.RemoveAll(tmpDir)
		return version, hash.String(), nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("git checkout %s: %w", revision, err)
	}

	if err := os.Rename(tmpDir, targetDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	return version, hash.String(), nil
}

func gitRevisionFromSpec(spec *driver.DependencySpec) (plumbing.Revision, string) {
	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		return plumbing.Revision(rev), rev
	}
	if tag := strings.TrimSpace(spec.Tag); tag != "" {
		return plumbing.Revision("refs/tags/" + tag), tag
	}
	if branch := strings.TrimSpace(spec.Branch); branch != "" {
		return plumbing.Revision("refs/heads/" + branch), branch
	}
	return plumbing.Revision("HEAD"), ""
}

func gitPinnedVersion(descriptor, commit string) string {
	commit = strings.TrimSpace(commit)
	descriptor = strings.TrimSpace(descriptor)
	if commit == "" {
		return descriptor
	}
	if descriptor == "" || descriptor == commit {
		return commit
	}
	return fmt.Sprintf("%s@%s", descriptor, commit)
}

func sanitizePathSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "head"
	}
	var b strings.Builder
	for _, r := range segment {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	result := b.String()
	if result == "" {
		return "head"
	}
	return result
}

func copyOrSyncDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	// Remove stale files from the destination.
	if dstEntries, err := os.ReadDir(dst); err == nil {
		for _, entry := range dstEntries {
			found := false
			for _, srcEntry := range entries {
				if srcEntry.Name() == entry.Name() {
					found = true
					break
				}
			}
			if !found {
				if err := os.RemoveAll(filepath.Join(dst, entry.Name())); err != nil {
					return err
				}
			}
		}
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyOrSyncDir(srcPath, dstPath); err != nil {
				return err
			}
		} else if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func dirChecksum(path string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.Base(p)))
		h.Write(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
