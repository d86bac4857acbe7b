//go:build linux

package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// unitDir is where unit files are written.
var unitDir = "/etc/systemd/system"

func unitPath(serviceName string) string {
	return filepath.Join(unitDir, serviceName+".service")
}

func installImpl(cfg ServiceConfig, execPath string) error {
	path := unitPath(cfg.Name)

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("service %s is already installed at %s", cfg.Name, path)
	}

	if err := os.WriteFile(path, []byte(generateSystemdUnit(cfg, execPath)), 0644); err != nil {
		return fmt.Errorf("failed to write systemd unit file: %w", err)
	}
	fmt.Printf("Created systemd unit: %s\n", path)

	if output, err := runCommand("systemctl", "daemon-reload"); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to reload systemd: %s: %w", strings.TrimSpace(output), err)
	}

	if output, err := runCommand("systemctl", "enable", "--now", cfg.Name); err != nil {
		return fmt.Errorf("failed to enable service: %s: %w", strings.TrimSpace(output), err)
	}
	fmt.Printf("Enabled and started service: %s\n", cfg.Name)

	return nil
}

func uninstallImpl(serviceName string) error {
	path := unitPath(serviceName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("service %s is not installed", serviceName)
	}

	// A unit that is not running cannot be stopped; that is fine.
	if output, err := runCommand("systemctl", "disable", "--now", serviceName); err != nil {
		if !strings.Contains(output, "not loaded") {
			fmt.Printf("Note: could not stop service: %s\n", strings.TrimSpace(output))
		}
	} else {
		fmt.Printf("Stopped and disabled service: %s\n", serviceName)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove systemd unit file: %w", err)
	}
	fmt.Printf("Removed systemd unit: %s\n", path)

	if _, err := runCommand("systemctl", "daemon-reload"); err != nil {
		fmt.Println("Note: failed to reload systemd daemon")
	}
	runCommand("systemctl", "reset-failed", serviceName)

	return nil
}

func statusImpl(serviceName string) (string, error) {
	output, err := runCommand("systemctl", "is-active", serviceName)
	status := strings.TrimSpace(output)

	if err != nil {
		// is-active exits non-zero for anything but active.
		if status == "inactive" || status == "failed" || status == "unknown" {
			return status, nil
		}
		return "", fmt.Errorf("failed to get service status: %w", err)
	}

	return status, nil
}

func isInstalledImpl(serviceName string) bool {
	_, err := os.Stat(unitPath(serviceName))
	return err == nil
}

func generateSystemdUnit(cfg ServiceConfig, execPath string) string {
	var user, group string
	if cfg.User != "" {
		user = fmt.Sprintf("User=%s\n", cfg.User)
	}
	if cfg.Group != "" {
		group = fmt.Sprintf("Group=%s\n", cfg.Group)
	}

	execStart := fmt.Sprintf("%s serve -c %s", execPath, cfg.ConfigPath)
	if len(cfg.Targets) > 0 {
		execStart += " " + strings.Join(cfg.Targets, " ")
	}

	return fmt.Sprintf(`[Unit]
Description=%s
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
WorkingDirectory=%s
%s%sRestart=on-failure
RestartSec=5
TimeoutStopSec=15

# Security hardening
NoNewPrivileges=true
ProtectSystem=strict
ProtectHome=read-only
PrivateTmp=true
RestrictAddressFamilies=AF_INET AF_UNIX

# Logging
StandardOutput=journal
StandardError=journal
SyslogIdentifier=%s

[Install]
WantedBy=multi-user.target
`, cfg.Description, execStart, cfg.WorkingDir, user, group, cfg.Name)
}
