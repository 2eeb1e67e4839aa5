package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"slate/interpreter-go/pkg/driver"
)

const cliToolVersion = "slate 0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return runREPL(os.Stdin, os.Stdout, os.Stderr)
	}

	switch args[0] {
	case "--help", "-h", "help":
		printUsage(os.Stdout)
		return driver.StatusOK
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return driver.StatusOK
	case "repl":
		return runREPL(os.Stdin, os.Stdout, os.Stderr)
	case "run":
		return runEntry(args[1:])
	case "deps":
		return runDeps(args[1:])
	default:
		return runEntry(args)
	}
}

// runEntry executes a script. The argument may be a manifest target name, a
// source file path, or absent, in which case the nearest manifest's default
// executable target is used.
func runEntry(args []string) int {
	if len(args) > 1 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(args[1:], " "))
		printUsage(os.Stderr)
		return driver.StatusUsage
	}

	if len(args) == 0 {
		manifest, err := loadManifestNear(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "slate run: %v\n", err)
			return driver.StatusUsage
		}
		target := manifest.DefaultExecutableTarget()
		if target == nil {
			fmt.Fprintf(os.Stderr, "manifest %s declares no executable target\n", manifest.Path)
			return driver.StatusUsage
		}
		entry, err := resolveTargetMain(manifest, target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "slate run: %v\n", err)
			return driver.StatusUsage
		}
		return executeFile(entry)
	}

	candidate := args[0]

	// A bare name may refer to a manifest target.
	if !looksLikePathCandidate(candidate) {
		if manifest, err := loadManifestNear("."); err == nil {
			if target := manifest.FindTarget(candidate); target != nil {
				entry, err := resolveTargetMain(manifest, target)
				if err != nil {
					fmt.Fprintf(os.Stderr, "slate run: %v\n", err)
					return driver.StatusUsage
				}
				return executeFile(entry)
			}
		}
	}

	return executeFile(candidate)
}

func executeFile(path string) int {
	session := driver.NewSession(os.Stdout, os.Stderr)
	return session.RunFile(path)
}

// runREPL reads lines until EOF, echoing the value of each expression. A
// failed line reports its diagnostics and leaves the session intact.
func runREPL(stdin io.Reader, stdout, stderr io.Writer) int {
	session := driver.NewSession(stdout, stderr)
	fmt.Fprintf(stdout, "%s (ctrl-d to exit)\n", cliToolVersion)

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		echo, _ := session.EvalLine(line)
		if echo != "" {
			fmt.Fprintln(stdout, echo)
		}
	}
	fmt.Fprintln(stdout)
	return driver.StatusOK
}

func runDeps(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "slate deps requires a subcommand (install, update)")
		return driver.StatusUsage
	}
	switch args[0] {
	case "install":
		if len(args) > 1 {
			fmt.Fprintf(os.Stderr, "slate deps install does not take arguments (received %s)\n", strings.Join(args[1:], " "))
			return driver.StatusUsage
		}
		return runDepsInstall()
	case "update":
		return runDepsUpdate(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown deps subcommand %q\n", args[0])
		return driver.StatusUsage
	}
}

func runDepsInstall() int {
	manifest, err := loadManifestNear(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "slate deps install: %v\n", err)
		return driver.StatusUsage
	}
	cacheDir, err := resolveSlateHome()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve SLATE_HOME: %v\n", err)
		return driver.StatusUsage
	}

	fmt.Fprintf(os.Stdout, "Manifest: %s\n", manifest.Path)
	fmt.Fprintf(os.Stdout, "Root package: %s\n", manifest.Name)
	fmt.Fprintf(os.Stdout, "Dependencies: %d\n", len(manifest.Dependencies))
	fmt.Fprintf(os.Stdout, "Cache directory: %s\n", cacheDir)

	lock, lockPath, lockCreated, status := loadOrCreateLockfile(manifest)
	if status != driver.StatusOK {
		return status
	}

	installer := newDependencyInstaller(manifest, cacheDir)
	changed, logs, err := installer.Install(lock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve dependencies: %v\n", err)
		return driver.StatusUsage
	}
	for _, line := range logs {
		fmt.Fprintln(os.Stdout, line)
	}

	if changed || lockCreated {
		action := "Updated"
		if lockCreated {
			action = "Created"
		}
		if err := driver.WriteLockfile(lock, lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write lockfile: %v\n", err)
			return driver.StatusUsage
		}
		fmt.Fprintf(os.Stdout, "%s %s: %s\n", action, driver.LockfileName, lock.Path)
	} else {
		fmt.Fprintf(os.Stdout, "%s already up to date: %s\n", driver.LockfileName, lock.Path)
	}

	fmt.Fprintln(os.Stdout, "Dependencies installed.")
	return driver.StatusOK
}

func runDepsUpdate(targets []string) int {
	manifest, err := loadManifestNear(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "slate deps update: %v\n", err)
		return driver.StatusUsage
	}
	cacheDir, err := resolveSlateHome()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve SLATE_HOME: %v\n", err)
		return driver.StatusUsage
	}

	updateSet := make(map[string]struct{})
	for _, target := range targets {
		name := strings.TrimSpace(target)
		if _, ok := manifest.Dependencies[name]; !ok {
			fmt.Fprintf(os.Stderr, "dependency %q not declared in manifest\n", target)
			return driver.StatusUsage
		}
		updateSet[name] = struct{}{}
	}

	lock, lockPath, lockCreated, status := loadOrCreateLockfile(manifest)
	if status != driver.StatusOK {
		return status
	}

	// Drop the entries being refreshed so the installer re-resolves them.
	if len(updateSet) == 0 {
		lock.Packages = nil
	} else {
		filtered := lock.Packages[:0]
		for _, pkg := range lock.Packages {
			if pkg == nil {
				continue
			}
			if _, ok := updateSet[pkg.Name]; ok {
				continue
			}
			filtered = append(filtered, pkg)
		}
		lock.Packages = filtered
	}

	installer := newDependencyInstaller(manifest, cacheDir)
	changed, logs, err := installer.Install(lock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to update dependencies: %v\n", err)
		return driver.StatusUsage
	}
	for _, line := range logs {
		fmt.Fprintln(os.Stdout, line)
	}

	if changed || lockCreated {
		if err := driver.WriteLockfile(lock, lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write lockfile: %v\n", err)
			return driver.StatusUsage
		}
		fmt.Fprintf(os.Stdout, "Updated %s: %s\n", driver.LockfileName, lock.Path)
	} else {
		fmt.Fprintln(os.Stdout, "Dependencies already up to date.")
	}
	return driver.StatusOK
}

func loadOrCreateLockfile(manifest *driver.Manifest) (*driver.Lockfile, string, bool, int) {
	lockPath := filepath.Join(manifest.Dir(), driver.LockfileName)
	lock, err := driver.LoadLockfile(lockPath)
	created := false
	switch {
	case err == nil:
		if lock.Root != manifest.Name {
			fmt.Fprintf(os.Stderr, "lockfile root %q does not match manifest name %q\n", lock.Root, manifest.Name)
			return nil, "", false, driver.StatusUsage
		}
	case errors.Is(err, os.ErrNotExist):
		lock = driver.NewLockfile(manifest.Name, cliToolVersion)
		created = true
	default:
		fmt.Fprintf(os.Stderr, "failed to read lockfile: %v\n", err)
		return nil, "", false, driver.StatusUsage
	}
	lock.Path = lockPath
	lock.Tool = cliToolVersion
	return lock, lockPath, created, driver.StatusOK
}

func loadManifestNear(start string) (*driver.Manifest, error) {
	if start == "" || start == "." {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		start = cwd
	}
	manifestPath, err := driver.FindManifest(start)
	if err != nil {
		return nil, err
	}
	return driver.LoadManifest(manifestPath)
}

func resolveTargetMain(manifest *driver.Manifest, target *driver.TargetSpec) (string, error) {
	mainPath := strings.TrimSpace(target.Main)
	if mainPath == "" {
		return "", fmt.Errorf("target %q is missing a main entrypoint", target.Name)
	}
	if filepath.IsAbs(mainPath) {
		return filepath.Clean(mainPath), nil
	}
	return filepath.Join(manifest.Dir(), filepath.FromSlash(mainPath)), nil
}

func looksLikePathCandidate(arg string) bool {
	if arg == "" {
		return false
	}
	if strings.Contains(arg, "/") || strings.Contains(arg, "\\") {
		return true
	}
	if filepath.Ext(arg) == ".slt" {
		return true
	}
	return strings.HasPrefix(arg, ".")
}

func resolveSlateHome() (string, error) {
	if home := strings.TrimSpace(os.Getenv("SLATE_HOME")); home != "" {
		abs, err := filepath.Abs(home)
		if err != nil {
			return "", fmt.Errorf("resolve SLATE_HOME %q: %w", home, err)
		}
		return abs, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(userHome, ".slate"), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  slate                      start a REPL")
	fmt.Fprintln(w, "  slate run [target]         run a manifest target")
	fmt.Fprintln(w, "  slate run <file.slt>       run a script")
	fmt.Fprintln(w, "  slate <file.slt>           run a script")
	fmt.Fprintln(w, "  slate deps install         resolve and cache dependencies")
	fmt.Fprintln(w, "  slate deps update [name]   re-resolve dependencies")
}
