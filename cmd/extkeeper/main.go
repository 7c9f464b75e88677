// Package main runs extkeeper: a headless Chromium with the extension loaded,
// logged in with the configured token and checked every hour, next to a
// liveness endpoint for the container runtime.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/extkeeper/pkg/activation"
	"github.com/entrhq/extkeeper/pkg/browser"
	"github.com/entrhq/extkeeper/pkg/config"
	"github.com/entrhq/extkeeper/pkg/credential"
	"github.com/entrhq/extkeeper/pkg/liveness"
	"github.com/entrhq/extkeeper/pkg/logging"
	"github.com/entrhq/extkeeper/pkg/metrics"
	"github.com/entrhq/extkeeper/pkg/supervisor"
	"github.com/entrhq/extkeeper/pkg/waiter"
)

const version = "0.1.0"

// Optional environment overrides for the flags below.
const (
	envConfig      = "EXTKEEPER_CONFIG"
	envLogLevel    = "LOG_LEVEL"
	envLogFormat   = "LOG_FORMAT"
	envMetricsAddr = "METRICS_ADDR"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile      string
	EnvFile         string
	LogLevel        string
	LogFormat       string
	LogFile         string
	InstallBrowsers bool
	ShowVersion     bool
}

func main() {
	cli, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if cli.ShowVersion {
		fmt.Printf("extkeeper v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if err := run(ctx, cli); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "extkeeper failed: %v\n", err)
		os.Exit(1)
	}
	stop()
}

// parseFlags parses command line flags
func parseFlags(args []string) (*CLIConfig, error) {
	cli := &CLIConfig{}

	fs := pflag.NewFlagSet("extkeeper", pflag.ContinueOnError)
	fs.StringVar(&cli.ConfigFile, "config", "", "Path to tuning file (YAML), or $"+envConfig)
	fs.StringVar(&cli.EnvFile, "env-file", "", "Path to a .env file (default: ./.env if present)")
	fs.StringVar(&cli.LogLevel, "log-level", "", "Log level: debug, info, warn or error, or $"+envLogLevel)
	fs.StringVar(&cli.LogFormat, "log-format", "", "Log format: console or json, or $"+envLogFormat)
	fs.StringVar(&cli.LogFile, "log-file", "", "Also append logs to this file")
	fs.BoolVar(&cli.InstallBrowsers, "install-browsers", false, "Download the Playwright driver and Chromium before starting")
	fs.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "extkeeper - keeps a browser extension logged in and connected\n\n")
		fmt.Fprintf(os.Stderr, "Usage: extkeeper [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  %s (required), %s (required), %s (required)\n", config.EnvToken, config.EnvExtensionID, config.EnvExtensionURL)
		fmt.Fprintf(os.Stderr, "  %s, %s, %s, %s, %s, %s\n", config.EnvProxyHost, config.EnvProxyPort, config.EnvProxyUsername, config.EnvProxyPassword, config.EnvPort, envMetricsAddr)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cli, nil
}

// loadEnv loads the .env file. An explicit file must exist; the default one
// is optional.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// resolve fills unset flags from the environment.
func (c *CLIConfig) resolve(getenv func(string) string) {
	if c.ConfigFile == "" {
		c.ConfigFile = getenv(envConfig)
	}
	if c.LogLevel == "" {
		c.LogLevel = getenv(envLogLevel)
	}
	if c.LogFormat == "" {
		c.LogFormat = getenv(envLogFormat)
	}
}

func run(ctx context.Context, cli *CLIConfig) error {
	if err := loadEnv(cli.EnvFile); err != nil {
		return err
	}
	cli.resolve(os.Getenv)

	syncLogs, err := logging.Init(logging.Options{
		Level:  cli.LogLevel,
		Format: cli.LogFormat,
		File:   cli.LogFile,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = syncLogs() }()
	logger := logging.NewLogger("main")

	tuning, err := config.LoadTuning(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	port, err := config.ListenPort(os.Getenv)
	if err != nil {
		logger.Warnf("%v", err)
	}

	a, err := newApp(tuning, cli.InstallBrowsers)
	if err != nil {
		return err
	}
	return a.run(ctx, net.JoinHostPort("", strconv.Itoa(port)), os.Getenv(envMetricsAddr))
}

// app owns everything the process runs. Nothing lives in package globals.
type app struct {
	tuning     *config.Tuning
	launcher   *browser.Launcher
	supervisor *supervisor.Supervisor
	logger     *logging.Logger
}

func newApp(tuning *config.Tuning, install bool) (*app, error) {
	mode, err := credential.ParseMode(tuning.CredentialCheck)
	if err != nil {
		return nil, err
	}

	w := waiter.New(waiter.RealClock(),
		waiter.WithInterval(tuning.PollInterval),
		waiter.WithTimeout(tuning.PollTimeout),
		waiter.WithLogger(logging.NewLogger("waiter")))

	flow := activation.NewFlow(w,
		credential.NewInjector(logging.NewLogger("credential"), mode),
		activation.NewMonitor(w, logging.NewLogger("monitor")),
		tuning,
		logging.NewLogger("activation"))

	launcher := browser.NewLauncher(tuning, logging.NewLogger("browser"), browser.WithInstall(install))
	factory := supervisor.FactoryFunc(func(ctx context.Context, cfg *config.Config) (supervisor.Session, error) {
		session, err := launcher.Build(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return session, nil
	})

	sup, err := supervisor.New(factory, flow, tuning, logging.NewLogger("supervisor"),
		supervisor.WithClock(w.Clock()),
		supervisor.WithVersion(version))
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}

	return &app{
		tuning:     tuning,
		launcher:   launcher,
		supervisor: sup,
		logger:     logging.NewLogger("main"),
	}, nil
}

// run serves liveness (and metrics when metricsAddr is set) next to the
// supervisor. The listeners never stop the supervisor: a listener that fails
// is logged and left down. A supervisor that stops cleanly leaves the
// listeners up until ctx is cancelled; a terminal supervisor error stops
// everything.
func (a *app) run(ctx context.Context, livenessAddr, metricsAddr string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.serve(gctx, "liveness", livenessAddr, liveness.Router())
		return nil
	})

	if metricsAddr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", metrics.Handler())
		g.Go(func() error {
			a.serve(gctx, "metrics", metricsAddr, r)
			return nil
		})
	}

	g.Go(func() error {
		return a.supervisor.Run(gctx)
	})

	err := g.Wait()
	if shutdownErr := a.launcher.Shutdown(); shutdownErr != nil {
		a.logger.Warnf("Failed to stop playwright: %v", shutdownErr)
	}
	return err
}

// serve runs one listener until ctx is done, logging why it stopped early.
func (a *app) serve(ctx context.Context, name, addr string, handler http.Handler) {
	if err := liveness.NewServer(addr, handler, logging.NewLogger(name)).Run(ctx); err != nil {
		a.logger.Errorf("The %s listener stopped: %v", name, err)
	}
}
