// Package service installs "pinger serve" as a systemd service on Linux.
package service

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrUnsupported is returned on platforms without systemd support.
var ErrUnsupported = errors.New("service installation is only supported on Linux")

// ServiceConfig holds configuration for installing the service.
type ServiceConfig struct {
	// Name is the systemd unit name without the .service suffix.
	Name string

	// Description is the unit description.
	Description string

	// ConfigPath is the absolute path to the config file.
	ConfigPath string

	// WorkingDir is the working directory for the service.
	WorkingDir string

	// Targets are IPv4 addresses probed continuously by the service.
	Targets []string

	// User and Group run the service; empty means root. The group must be
	// inside net.ipv4.ping_group_range.
	User  string
	Group string
}

// DefaultConfig returns a default service configuration.
func DefaultConfig(configPath string) ServiceConfig {
	absPath, _ := filepath.Abs(configPath)

	return ServiceConfig{
		Name:        "pinger",
		Description: "pinger ICMP echo prober",
		ConfigPath:  absPath,
		WorkingDir:  filepath.Dir(absPath),
	}
}

// Validate checks the fields Install needs.
func (c ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.ConfigPath == "" || !filepath.IsAbs(c.ConfigPath) {
		return fmt.Errorf("config path must be absolute: %q", c.ConfigPath)
	}
	return nil
}

// IsRoot returns true if the current process runs as UID 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// IsSupported returns true if service installation is supported on this
// platform.
func IsSupported() bool {
	return runtime.GOOS == "linux"
}

// Install writes, enables and starts a systemd unit running the current
// executable.
func Install(cfg ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !IsRoot() {
		return fmt.Errorf("must run as root to install service")
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	return installImpl(cfg, execPath)
}

// Uninstall stops, disables and removes the unit.
func Uninstall(serviceName string) error {
	if !IsRoot() {
		return fmt.Errorf("must run as root to uninstall service")
	}
	return uninstallImpl(serviceName)
}

// Status returns the unit's active state, e.g. "active" or "inactive".
func Status(serviceName string) (string, error) {
	return statusImpl(serviceName)
}

// IsInstalled checks if the unit file exists.
func IsInstalled(serviceName string) bool {
	return isInstalledImpl(serviceName)
}

// runCommand executes a command and returns combined output.
var runCommand = func(name string, args ...string) (string, error) {
	output, err := exec.Command(name, args...).CombinedOutput()
	return string(output), err
}
