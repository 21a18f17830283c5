// Package paths decides where appctl keeps its files.
//
// Lookup order:
//  1. $APPCTL_HOME, if set, holds everything.
//  2. An existing ~/.appctl directory holds everything.
//  3. If XDG_CONFIG_HOME or XDG_STATE_HOME is set, appctl.yaml goes under the
//     config home and logs under the state home.
//  4. Otherwise ~/.appctl is used.
//
// The default control socket is not placed here: it lives in the platform
// temp directory so clients can find it without reading any config.
package paths

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	appName        = "appctl"
	homeEnv        = "APPCTL_HOME"
	configFileName = "appctl.yaml"
	socketFileName = "appctl.sock"
)

// Layout is the resolved set of directories.
type Layout struct {
	ConfigDir string
	StateDir  string
	// Single is true when config and state share one directory.
	Single bool
}

var (
	mu     sync.Mutex
	cached *Layout
)

// Resolve returns the layout for the current user, computing it once.
func Resolve() (Layout, error) {
	mu.Lock()
	defer mu.Unlock()

	if cached != nil {
		return *cached, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, err
	}
	l := resolveLayout(home, os.Getenv, isDir)
	cached = &l
	return l, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func resolveLayout(home string, getenv func(string) string, dirExists func(string) bool) Layout {
	if dir := getenv(homeEnv); dir != "" {
		return Layout{ConfigDir: dir, StateDir: dir, Single: true}
	}

	dotDir := filepath.Join(home, "."+appName)
	if dirExists(dotDir) {
		return Layout{ConfigDir: dotDir, StateDir: dotDir, Single: true}
	}

	cfgHome, stateHome := getenv("XDG_CONFIG_HOME"), getenv("XDG_STATE_HOME")
	if cfgHome == "" && stateHome == "" {
		return Layout{ConfigDir: dotDir, StateDir: dotDir, Single: true}
	}
	if cfgHome == "" {
		cfgHome = filepath.Join(home, ".config")
	}
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}
	return Layout{
		ConfigDir: filepath.Join(cfgHome, appName),
		StateDir:  filepath.Join(stateHome, appName),
	}
}

// ConfigFilePath returns the location of appctl.yaml.
func ConfigFilePath() (string, error) {
	l, err := Resolve()
	if err != nil {
		return "", err
	}
	return filepath.Join(l.ConfigDir, configFileName), nil
}

// LogsDir returns the directory for log files.
func LogsDir() (string, error) {
	l, err := Resolve()
	if err != nil {
		return "", err
	}
	return filepath.Join(l.StateDir, "logs"), nil
}

// DefaultSocketPath returns the well-known local socket location used when
// no path is configured.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), socketFileName)
}

// Reset drops the cached layout. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cached = nil
}
