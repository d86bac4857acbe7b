// Package wizard provides an interactive setup wizard that writes a pinger
// configuration file.
package wizard

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/postalsys/pinger/internal/config"
	"github.com/postalsys/pinger/internal/icmp"
	"github.com/postalsys/pinger/internal/report"
)

// Result contains the wizard output.
type Result struct {
	Config     *config.Config
	ConfigPath string
}

// Answers holds the raw form values. Numeric fields are kept as strings
// because that is what the form inputs edit.
type Answers struct {
	ConfigPath string

	Timeout string
	TTL     string
	Size    string
	Pattern string

	Interval string
	Count    string

	LogLevel  string
	LogFormat string

	HealthEnabled  bool
	HealthAddress  string
	MetricsEnabled bool
}

// DefaultAnswers returns answers pre-filled from config.Default.
func DefaultAnswers() Answers {
	cfg := config.Default()
	return Answers{
		ConfigPath:     "./pinger.yaml",
		Timeout:        cfg.Probe.Timeout.String(),
		TTL:            strconv.Itoa(cfg.Probe.TTL),
		Size:           strconv.Itoa(cfg.Probe.Size),
		Pattern:        cfg.Probe.Pattern,
		Interval:       cfg.Session.Interval.String(),
		Count:          strconv.Itoa(cfg.Session.Count),
		LogLevel:       cfg.Logging.Level,
		LogFormat:      cfg.Logging.Format,
		HealthEnabled:  cfg.Health.Enabled,
		HealthAddress:  cfg.Health.Address,
		MetricsEnabled: cfg.Metrics.Enabled,
	}
}

// Wizard manages the interactive setup process.
type Wizard struct {
	theme *huh.Theme
	out   io.Writer
}

// New creates a new setup wizard.
func New() *Wizard {
	return &Wizard{
		theme: huh.ThemeDracula(),
		out:   os.Stdout,
	}
}

// Run executes the interactive setup wizard.
func (w *Wizard) Run() (*Result, error) {
	w.printBanner()

	a := DefaultAnswers()

	if err := w.askOutput(&a); err != nil {
		return nil, err
	}
	if err := w.askProbe(&a); err != nil {
		return nil, err
	}
	if err := w.askSession(&a); err != nil {
		return nil, err
	}
	if err := w.askAdvancedOptions(&a); err != nil {
		return nil, err
	}

	cfg, err := BuildConfig(a)
	if err != nil {
		return nil, err
	}

	if err := WriteConfig(cfg, a.ConfigPath); err != nil {
		return nil, err
	}

	w.printSummary(a.ConfigPath, cfg)

	return &Result{
		Config:     cfg,
		ConfigPath: a.ConfigPath,
	}, nil
}

func (w *Wizard) printBanner() {
	banner := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")).
		Render(`
        _
  _ __ (_)_ __   __ _  ___ _ __
 | '_ \| | '_ \ / _' |/ _ \ '__|
 | |_) | | | | | (_| |  __/ |
 | .__/|_|_| |_|\__, |\___|_|
 |_|            |___/
`)

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("  ICMP Echo Prober - Setup Wizard\n")

	fmt.Fprintln(w.out, banner)
	fmt.Fprintln(w.out, subtitle)
}

func (w *Wizard) askOutput(a *Answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Basic Setup").
				Description("Choose where the configuration file is written."),

			huh.NewInput().
				Title("Config File Path").
				Description("Where to write the configuration file").
				Placeholder("./pinger.yaml").
				Value(&a.ConfigPath).
				Validate(validateConfigPath),
		),
	).WithTheme(w.theme)

	return form.Run()
}

func (w *Wizard) askProbe(a *Answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Probe").
				Description("Parameters applied to every echo request."),

			huh.NewInput().
				Title("Reply Timeout").
				Description("How long to wait for each reply (e.g. 1s, 500ms, 0 waits forever)").
				Value(&a.Timeout).
				Validate(validateTimeout),

			huh.NewInput().
				Title("TTL").
				Description("Time to live of outgoing packets (1-255)").
				Value(&a.TTL).
				Validate(validateTTL),

			huh.NewInput().
				Title("Payload Size").
				Description("Bytes after the 8-byte ICMP header (e.g. 32, 1KiB)").
				Value(&a.Size).
				Validate(validateSize),

			huh.NewInput().
				Title("Payload Pattern").
				Description("Hex bytes tiled over the payload, empty for zeros").
				Placeholder("ab cd ef").
				Value(&a.Pattern).
				Validate(validatePattern),
		),
	).WithTheme(w.theme)

	return form.Run()
}

func (w *Wizard) askSession(a *Answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Session").
				Description("How repeated probes are paced."),

			huh.NewInput().
				Title("Interval").
				Description("Time between probe starts").
				Value(&a.Interval).
				Validate(validateInterval),

			huh.NewInput().
				Title("Count").
				Description("Probes per session, 0 runs until stopped").
				Value(&a.Count).
				Validate(validateCount),
		),
	).WithTheme(w.theme)

	return form.Run()
}

func (w *Wizard) askAdvancedOptions(a *Answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Advanced Options").
				Description("Configure logging and monitoring."),

			huh.NewSelect[string]().
				Title("Log Level").
				Options(
					huh.NewOption("Debug (verbose)", "debug"),
					huh.NewOption("Info (recommended)", "info"),
					huh.NewOption("Warning", "warn"),
					huh.NewOption("Error (quiet)", "error"),
				).
				Value(&a.LogLevel),

			huh.NewSelect[string]().
				Title("Log Format").
				Options(
					huh.NewOption("Text", "text"),
					huh.NewOption("JSON", "json"),
				).
				Value(&a.LogFormat),

			huh.NewConfirm().
				Title("Enable health server?").
				Description("HTTP endpoints /health, /ready and the /ping WebSocket").
				Value(&a.HealthEnabled),

			huh.NewConfirm().
				Title("Enable Prometheus metrics?").
				Description("Served at /metrics on the health server").
				Value(&a.MetricsEnabled),
		),
	).WithTheme(w.theme)

	if err := form.Run(); err != nil {
		return err
	}

	if !a.HealthEnabled {
		return nil
	}

	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Health Server Address").
				Description("host:port to listen on").
				Placeholder("127.0.0.1:8080").
				Value(&a.HealthAddress).
				Validate(validateAddress),
		),
	).WithTheme(w.theme)

	return form.Run()
}

// BuildConfig converts form answers into a validated configuration.
func BuildConfig(a Answers) (*config.Config, error) {
	cfg := config.Default()

	var err error
	if cfg.Probe.Timeout, err = time.ParseDuration(strings.TrimSpace(a.Timeout)); err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	if cfg.Probe.TTL, err = strconv.Atoi(strings.TrimSpace(a.TTL)); err != nil {
		return nil, fmt.Errorf("invalid ttl: %w", err)
	}
	if cfg.Probe.Size, err = report.ParseSize(a.Size); err != nil {
		return nil, fmt.Errorf("invalid size: %w", err)
	}
	cfg.Probe.Pattern = strings.TrimSpace(a.Pattern)

	if cfg.Session.Interval, err = time.ParseDuration(strings.TrimSpace(a.Interval)); err != nil {
		return nil, fmt.Errorf("invalid interval: %w", err)
	}
	if cfg.Session.Count, err = strconv.Atoi(strings.TrimSpace(a.Count)); err != nil {
		return nil, fmt.Errorf("invalid count: %w", err)
	}

	if a.LogLevel != "" {
		cfg.Logging.Level = a.LogLevel
	}
	if a.LogFormat != "" {
		cfg.Logging.Format = a.LogFormat
	}

	cfg.Health.Enabled = a.HealthEnabled
	if a.HealthEnabled && a.HealthAddress != "" {
		cfg.Health.Address = a.HealthAddress
	}
	cfg.Metrics.Enabled = a.MetricsEnabled

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig writes cfg as YAML to path, creating parent directories.
func WriteConfig(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# pinger configuration
# Generated by setup wizard

`
	if err := os.WriteFile(path, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (w *Wizard) printSummary(configPath string, cfg *config.Config) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("─────────────────────────────────────────────────")

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, divider)
	fmt.Fprintln(w.out, style.Render("✓ Setup Complete!"))
	fmt.Fprintln(w.out, divider)
	fmt.Fprintln(w.out)

	fmt.Fprintf(w.out, "  Config file:  %s\n", configPath)
	fmt.Fprintf(w.out, "  Probe:        timeout=%s ttl=%d size=%s\n",
		cfg.Probe.Timeout, cfg.Probe.TTL, report.FormatSize(int64(cfg.Probe.Size)))
	if cfg.Session.Count > 0 {
		fmt.Fprintf(w.out, "  Session:      %d probes every %s\n", cfg.Session.Count, cfg.Session.Interval)
	} else {
		fmt.Fprintf(w.out, "  Session:      every %s until stopped\n", cfg.Session.Interval)
	}

	if cfg.Health.Enabled {
		fmt.Fprintf(w.out, "  Health:       http://%s/health\n", cfg.Health.Address)
		if cfg.Metrics.Enabled {
			fmt.Fprintf(w.out, "  Metrics:      http://%s/metrics\n", cfg.Health.Address)
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "  To probe a host:")
	fmt.Fprintf(w.out, "    pinger ping -c %s 192.0.2.1\n", configPath)
	if cfg.Health.Enabled {
		fmt.Fprintln(w.out, "  To start the health server:")
		fmt.Fprintf(w.out, "    pinger serve -c %s\n", configPath)
	}
	fmt.Fprintln(w.out)
}

func validateConfigPath(s string) error {
	if s == "" {
		return fmt.Errorf("config path is required")
	}
	if !strings.HasSuffix(s, ".yaml") && !strings.HasSuffix(s, ".yml") {
		return fmt.Errorf("config file should have .yaml or .yml extension")
	}
	return nil
}

func validateTimeout(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration")
	}
	if d < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if d%time.Millisecond != 0 {
		return fmt.Errorf("timeout must be a whole number of milliseconds")
	}
	return nil
}

func validateTTL(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("ttl must be a number")
	}
	if n < 1 || n > 255 {
		return fmt.Errorf("ttl must be between 1 and 255")
	}
	return nil
}

func validateSize(s string) error {
	n, err := report.ParseSize(s)
	if err != nil {
		return err
	}
	if n > icmp.MaxPayloadSize {
		return fmt.Errorf("size must be at most %d bytes", icmp.MaxPayloadSize)
	}
	return nil
}

func validatePattern(s string) error {
	_, err := icmp.ParsePattern(s)
	return err
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration")
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

func validateCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("count must be a number")
	}
	if n < 0 {
		return fmt.Errorf("count must not be negative")
	}
	return nil
}

func validateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("address is required")
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("invalid address format (use host:port)")
	}
	return nil
}
