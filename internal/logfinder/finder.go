// Package logfinder locates the Star Citizen Game.log file.
package logfinder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// EnvLogFile is the environment variable name for specifying the log file.
const EnvLogFile = "SCLOG_LOGFILE"

// LogFileName is the name of the live log the game writes next to its install.
const LogFileName = "Game.log"

// gameProcessName is the executable name of the running game client,
// matched case-insensitively with any ".exe" suffix removed.
const gameProcessName = "starcitizen"

// Sentinel errors.
var (
	ErrLogFileNotFound   = errors.New("log file not found")
	ErrProcessNotRunning = errors.New("star citizen process not running")
)

// ProcessLister returns the executable paths of running game clients.
type ProcessLister func(ctx context.Context) ([]string, error)

// Finder resolves the Game.log path.
type Finder struct {
	// Lister finds running game executables. Defaults to a gopsutil scan.
	Lister ProcessLister
}

// New returns a Finder that discovers the game through the process table.
func New() *Finder {
	return &Finder{Lister: runningGameExecutables}
}

// FindLogFile returns the Game.log path using the default Finder.
func FindLogFile(ctx context.Context, explicit string) (string, error) {
	return New().Find(ctx, explicit)
}

// Find returns the Game.log path.
//
// Priority:
//  1. explicit (if non-empty)
//  2. SCLOG_LOGFILE environment variable
//  3. Game.log next to a running StarCitizen executable, or one directory up
//
// Returns an error wrapping ErrLogFileNotFound if no file is found, or
// ErrProcessNotRunning when auto-detection finds no game process.
func (f *Finder) Find(ctx context.Context, explicit string) (string, error) {
	// 1. Check explicit
	if explicit != "" {
		if resolved := resolveLogFile(explicit); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s", ErrLogFileNotFound, explicit)
	}

	// 2. Check environment variable
	if envFile := os.Getenv(EnvLogFile); envFile != "" {
		if resolved := resolveLogFile(envFile); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s environment variable points to %s", ErrLogFileNotFound, EnvLogFile, envFile)
	}

	// 3. Auto-detect from the running client
	lister := f.Lister
	if lister == nil {
		lister = runningGameExecutables
	}
	exes, err := lister(ctx)
	if err != nil {
		return "", fmt.Errorf("listing processes: %w", err)
	}
	if len(exes) == 0 {
		return "", ErrProcessNotRunning
	}

	for _, exe := range exes {
		for _, candidate := range CandidatePaths(exe) {
			if resolved := resolveLogFile(candidate); resolved != "" {
				return resolved, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no %s beside running client", ErrLogFileNotFound, LogFileName)
}

// CandidatePaths returns the Game.log locations for a client executable.
// The client lives in Bin64 below the install root where the log is written.
func CandidatePaths(exe string) []string {
	dir := filepath.Dir(exe)
	return []string{
		filepath.Join(dir, LogFileName),
		filepath.Join(filepath.Dir(dir), LogFileName),
	}
}

// IsGameProcess reports whether a process name belongs to the game client.
func IsGameProcess(name string) bool {
	return strings.TrimSuffix(strings.ToLower(name), ".exe") == gameProcessName
}

// runningGameExecutables scans the process table with gopsutil.
// Processes that vanish or deny access mid-scan are skipped.
func runningGameExecutables(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var exes []string
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !IsGameProcess(name) {
			continue
		}
		exe, err := p.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		exes = append(exes, exe)
	}
	return exes, nil
}

// resolveLogFile resolves symlinks and validates that path is a regular file.
// Returns the resolved path if valid, empty string otherwise.
func resolveLogFile(path string) string {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}

	// Resolve symlinks (works with Windows Junctions in Go 1.20+)
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	return resolved
}
