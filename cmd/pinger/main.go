// Package main provides the CLI entry point for pinger.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/postalsys/pinger/internal/bridge"
	"github.com/postalsys/pinger/internal/config"
	"github.com/postalsys/pinger/internal/health"
	"github.com/postalsys/pinger/internal/icmp"
	"github.com/postalsys/pinger/internal/logging"
	"github.com/postalsys/pinger/internal/metrics"
	"github.com/postalsys/pinger/internal/report"
	"github.com/postalsys/pinger/internal/service"
	"github.com/postalsys/pinger/internal/session"
	"github.com/postalsys/pinger/internal/sysinfo"
	"github.com/postalsys/pinger/internal/wizard"
)

// errNoReplies makes ping exit non-zero without printing anything more.
var errNoReplies = errors.New("no replies received")

func main() {
	rootCmd := &cobra.Command{
		Use:   "pinger",
		Short: "pinger - ICMP echo prober",
		Long: `pinger sends ICMP echo requests over unprivileged datagram
sockets and reports round-trip times.

It needs no root privileges on Linux as long as the process group is
within net.ipv4.ping_group_range.`,
		Version:       sysinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serviceCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNoReplies) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// probeFlags are the ping(8)-style overrides shared by ping and probe.
type probeFlags struct {
	configPath string
	timeout    time.Duration
	ttl        int
	size       string
	pattern    string
}

func (f *probeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "W", 0, "Time to wait for each reply (0 waits forever)")
	cmd.Flags().IntVarP(&f.ttl, "ttl", "t", 0, "IP time to live")
	cmd.Flags().StringVarP(&f.size, "size", "s", "", "Payload size (e.g. 56, 1KiB)")
	cmd.Flags().StringVarP(&f.pattern, "pattern", "p", "", "Hex payload pattern (e.g. ff00)")
}

// apply loads the config file and overlays the flags the user set.
func (f *probeFlags) apply(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Probe.Timeout = f.timeout
	}
	if flags.Changed("ttl") {
		cfg.Probe.TTL = f.ttl
	}
	if flags.Changed("size") {
		size, err := report.ParseSize(f.size)
		if err != nil {
			return nil, err
		}
		cfg.Probe.Size = size
	}
	if flags.Changed("pattern") {
		cfg.Probe.Pattern = f.pattern
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pingCmd() *cobra.Command {
	var (
		f        probeFlags
		count    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping <ipv4-address>",
		Short: "Probe a host repeatedly",
		Long: `Send echo requests to a numeric IPv4 address and print one line per
probe, followed by statistics. Stops after --count probes or on Ctrl-C.
Exits non-zero when no reply was received.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.apply(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("count") {
				cfg.Session.Count = count
			}
			if cmd.Flags().Changed("interval") {
				cfg.Session.Interval = interval
			}

			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			mgr := icmp.NewManager(icmp.WithLogger(logger))
			defer mgr.CloseAll()

			var (
				mu      sync.Mutex
				started bool
				final   session.Summary
			)
			capture := session.ListenerFuncs{
				Start: func(session.Info) {
					mu.Lock()
					started = true
					mu.Unlock()
				},
				Stop: func(info session.Info) {
					mu.Lock()
					final = info.Stats
					mu.Unlock()
				},
			}

			pinger := session.New(mgr, session.Multi{report.NewPrinter(os.Stdout), capture}, logger)
			defer pinger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			id, err := pinger.Start(ctx, cfg.SessionOptions(args[0]))
			if err != nil {
				return err
			}
			if err := pinger.Wait(context.Background(), id); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if !started || final.Received == 0 {
				return errNoReplies
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many probes (0 runs until interrupted)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Time between probe starts")

	return cmd
}

func probeCmd() *cobra.Command {
	var (
		f   probeFlags
		seq uint16
	)

	cmd := &cobra.Command{
		Use:   "probe <ipv4-address>",
		Short: "Send a single probe and print its legacy result code",
		Long: `Open a socket, send one echo request and print a single integer:
the round-trip time in milliseconds, -1 on a socket or send error, or
-2 on timeout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.apply(cmd)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			bridge.SetDefault(icmp.NewManager(icmp.WithLogger(logger)))

			p := cfg.ProbeParams()
			code := bridge.SocketError
			if h := bridge.OpenSocket(args[0], p.TimeoutMs(), p.TTL); h != bridge.SocketError {
				code = bridge.Ping(h, seq, p.Size, p.Pattern)
				bridge.CloseSocket(h)
			}

			fmt.Println(code)
			if code < 0 {
				return errNoReplies
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().Uint16Var(&seq, "seq", 1, "Echo sequence number")

	return cmd
}

// serveState answers health checks for the serve command.
type serveState struct {
	mgr     *icmp.Manager
	pinger  *session.Pinger
	running atomic.Bool
}

func (s *serveState) IsRunning() bool {
	return s.running.Load()
}

func (s *serveState) Stats() health.Stats {
	return health.Stats{
		OpenSockets:    s.mgr.Stats().OpenSockets,
		ActiveSessions: s.pinger.Active(),
	}
}

func serveCmd() *cobra.Command {
	var (
		configPath string
		address    string
	)

	cmd := &cobra.Command{
		Use:   "serve [ipv4-address...]",
		Short: "Run the health and metrics server",
		Long: `Start the HTTP server with health checks, Prometheus metrics and the
/ping websocket endpoint. Any addresses given are probed continuously in
the background and show up in the metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("address") {
				cfg.Health.Address = address
			}

			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

			var mgrOpts []icmp.Option
			var srvOpts []health.Option
			var sessionOpts []session.Option
			mgrOpts = append(mgrOpts, icmp.WithLogger(logger))
			srvOpts = append(srvOpts, health.WithLogger(logger))
			if cfg.Metrics.Enabled {
				m := metrics.Default()
				mgrOpts = append(mgrOpts, icmp.WithObserver(m))
				srvOpts = append(srvOpts, health.WithMetrics(m))
				sessionOpts = append(sessionOpts, session.WithRecorder(m))
			}

			mgr := icmp.NewManager(mgrOpts...)
			defer mgr.CloseAll()

			pinger := session.New(mgr, report.NewLogListener(logger), logger, sessionOpts...)
			state := &serveState{mgr: mgr, pinger: pinger}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			for _, host := range args {
				opts := cfg.SessionOptions(host)
				opts.Count = 0
				if _, err := pinger.Start(ctx, opts); err != nil {
					pinger.Close()
					return err
				}
			}

			srvCfg := health.ServerConfig{
				Address:        cfg.Health.Address,
				ReadTimeout:    cfg.Health.ReadTimeout,
				WriteTimeout:   cfg.Health.WriteTimeout,
				MaxSessions:    cfg.Health.MaxSessions,
				MetricsEnabled: cfg.Metrics.Enabled,
				Defaults:       cfg.SessionOptions(""),
			}
			srv := health.NewServer(srvCfg, state, mgr, srvOpts...)
			if err := srv.Start(); err != nil {
				pinger.Close()
				return fmt.Errorf("failed to start health server: %w", err)
			}
			state.running.Store(true)

			fmt.Printf("pinger %s serving on http://%s\n", sysinfo.Version, srv.Address())
			if access := sysinfo.CheckICMP(); access.Supported && !access.Allowed {
				logger.Warn("process group outside net.ipv4.ping_group_range, probes will fail",
					"group_range", access.GroupRange)
			}

			<-ctx.Done()
			fmt.Println("\nShutting down...")

			state.running.Store(false)
			pinger.Close()
			if err := srv.Stop(); err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}

			fmt.Println("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (overrides health.address)")

	return cmd
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the systemd service running pinger serve",
	}

	var (
		configPath string
		name       string
		user       string
		group      string
	)
	install := &cobra.Command{
		Use:   "install [ipv4-address...]",
		Short: "Install and start the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !service.IsSupported() {
				return service.ErrUnsupported
			}
			if _, err := loadConfig(configPath); err != nil {
				return err
			}
			for _, host := range args {
				if _, err := icmp.ParseIPv4(host); err != nil {
					return err
				}
			}

			cfg := service.DefaultConfig(configPath)
			cfg.Name = name
			cfg.User = user
			cfg.Group = group
			cfg.Targets = args
			return service.Install(cfg)
		},
	}
	install.Flags().StringVarP(&configPath, "config", "c", "/etc/pinger/pinger.yaml", "Path to configuration file")
	install.Flags().StringVar(&name, "name", "pinger", "Service name")
	install.Flags().StringVar(&user, "user", "", "User to run as (default root)")
	install.Flags().StringVar(&group, "group", "", "Group to run as; must be inside ping_group_range")

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.Uninstall(name)
		},
	}
	uninstall.Flags().StringVar(&name, "name", "pinger", "Service name")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the service state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !service.IsInstalled(name) {
				fmt.Printf("%s: not installed\n", name)
				return nil
			}
			state, err := service.Status(name)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", name, state)
			return nil
		},
	}
	status.Flags().StringVar(&name, "name", "pinger", "Service name")

	cmd.AddCommand(install, uninstall, status)
	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := wizard.New().Run()
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and ICMP socket availability",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := sysinfo.Collect()

			fmt.Printf("pinger %s\n", info.Version)
			fmt.Printf("  Go:        %s %s/%s\n", info.GoVersion, info.OS, info.Arch)
			fmt.Printf("  Hostname:  %s\n", info.Hostname)

			switch {
			case !info.ICMP.Supported:
				fmt.Println("  ICMP:      unknown (try a probe)")
			case info.ICMP.Allowed:
				fmt.Printf("  ICMP:      allowed (ping_group_range %s)\n", info.ICMP.GroupRange)
			default:
				fmt.Printf("  ICMP:      denied (ping_group_range %s)\n", info.ICMP.GroupRange)
				fmt.Println(`             sysctl -w net.ipv4.ping_group_range="0 2147483647"`)
			}
		},
	}
}
