package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/teemow/drivetransfer/internal/config"
	"github.com/teemow/drivetransfer/internal/drive"
	"github.com/teemow/drivetransfer/internal/instrumentation"
	"github.com/teemow/drivetransfer/internal/logging"
	"github.com/teemow/drivetransfer/internal/server"
	"github.com/teemow/drivetransfer/internal/session"
)

// serveFlags holds the raw flag values. Only flags the user set override the
// file and environment.
type serveFlags struct {
	configPath     string
	addr           string
	baseURL        string
	credentials    string
	token          string
	publicDir      string
	logFormat      string
	debug          bool
	openBrowser    bool
	metricsEnabled bool
	metricsAddr    string
}

// serveDeps are the process-level collaborators of runServe.
type serveDeps struct {
	stderr      io.Writer
	openBrowser func(url string) error

	// driveOptions are passed to every Drive client.
	driveOptions []option.ClientOption

	// listening, when set, is called with the bound application address.
	listening func(net.Addr)
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web application",
		Long: `Start the drivetransfer web application.

The server loads the OAuth client from the credentials file (a Google
"installed" or "web" client secret) and restores the saved token, if any.
Sign in from the browser; Google redirects back to <base-url>/oauth, so that
URI must be registered for the client.

Configuration precedence (highest first):
  flags > DRIVETRANSFER_* environment > drivetransfer.toml > defaults
A .env file in the working directory seeds the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, &flags, os.LookupEnv)
			if err != nil {
				return err
			}

			// Setup graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg, serveDeps{
				stderr:      cmd.ErrOrStderr(),
				openBrowser: openBrowser,
			})
		},
	}

	bindServeFlags(cmd, &flags)

	return cmd
}

func bindServeFlags(cmd *cobra.Command, flags *serveFlags) {
	defaults := config.Default()

	cmd.Flags().StringVar(&flags.configPath, "config", config.DefaultConfigPath, "Path to the TOML config file")
	cmd.Flags().StringVar(&flags.addr, "addr", defaults.Addr, "Listen address")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", defaults.BaseURL, "URL the browser uses to reach the server")
	cmd.Flags().StringVar(&flags.credentials, "credentials", defaults.CredentialsPath, "Path to the Google OAuth client secret JSON")
	cmd.Flags().StringVar(&flags.token, "token", defaults.TokenPath, "Path of the saved OAuth token")
	cmd.Flags().StringVar(&flags.publicDir, "public-dir", defaults.PublicDir, "Directory with the front-end files")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", defaults.LogFormat, "Log format: text or json")
	cmd.Flags().BoolVar(&flags.debug, "debug", defaults.Debug, "Enable debug logging")
	cmd.Flags().BoolVar(&flags.openBrowser, "open-browser", defaults.OpenBrowser, "Open the application in the default browser on start")
	cmd.Flags().BoolVar(&flags.metricsEnabled, "metrics-enabled", defaults.Metrics.Enabled, "Serve Prometheus metrics on --metrics-addr")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", defaults.Metrics.Addr, "Metrics server address")
}

// resolveConfig layers the config file, the environment and the flags the
// user set.
func resolveConfig(cmd *cobra.Command, flags *serveFlags, lookup config.LookupFunc) (*config.Config, error) {
	if err := config.LoadDotEnv(config.DefaultDotEnvPath); err != nil {
		return nil, err
	}

	// An explicitly named config file must exist.
	load := config.LoadOrDefault
	path := config.DefaultConfigPath
	if p := config.EnvConfigPath(lookup); p != "" {
		path, load = p, config.Load
	}
	if cmd.Flags().Changed("config") {
		path, load = flags.configPath, config.Load
	}

	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("addr") {
		cfg.Addr = flags.addr
	}
	if set("base-url") {
		cfg.BaseURL = flags.baseURL
	}
	if set("credentials") {
		cfg.CredentialsPath = flags.credentials
	}
	if set("token") {
		cfg.TokenPath = flags.token
	}
	if set("public-dir") {
		cfg.PublicDir = flags.publicDir
	}
	if set("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if set("debug") {
		cfg.Debug = flags.debug
	}
	if set("open-browser") {
		cfg.OpenBrowser = flags.openBrowser
	}
	if set("metrics-enabled") {
		cfg.Metrics.Enabled = flags.metricsEnabled
	}
	if set("metrics-addr") {
		cfg.Metrics.Addr = flags.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config, deps serveDeps) error {
	logger := logging.New(deps.stderr, logging.Options{
		Debug: cfg.Debug,
		JSON:  cfg.LogFormat == config.LogFormatJSON,
	})

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Logger = logger
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	sess := session.New(session.Config{
		CredentialsPath: cfg.CredentialsPath,
		TokenPath:       cfg.TokenPath,
		RedirectURL:     cfg.RedirectURL(),
		DriveOptions:    deps.driveOptions,
		Logger:          logger,
		Metrics:         metrics,
	})
	if err := sess.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}

	gateway := drive.NewGateway(sess,
		drive.WithLogger(logger),
		drive.WithMetrics(metrics),
		drive.WithAudit(provider.Audit(logger)),
	)

	if _, err := os.Stat(cfg.PublicDir); err != nil {
		logger.Warn("public directory is not readable, the front-end will not be served",
			slog.String("path", cfg.PublicDir), logging.Err(err))
	}

	health := server.NewHealthChecker(sess)
	app := server.NewApp(server.AppConfig{
		Auth:      sess,
		Documents: gateway,
		PublicDir: cfg.PublicDir,
		Health:    health,
		Logger:    logger,
		Metrics:   metrics,
	})

	httpServer := server.NewHTTPServer(cfg.Addr, app.Handler(), logger)
	listener, err := httpServer.Listen()
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	var (
		metricsServer   *server.MetricsServer
		metricsListener net.Listener
	)
	if cfg.Metrics.Enabled {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err == nil {
			metricsListener, err = metricsServer.Listen()
		}
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Serve(listener)
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Serve(metricsListener); err != nil {
				return fmt.Errorf("metrics server stopped with error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		health.BeginShutdown()
		logger.Info("shutdown signal received, stopping servers")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), server.DefaultShutdownTimeout)
		defer cancel()

		var errs []error
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
			}
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
		}
		return errors.Join(errs...)
	})

	health.MarkReady()
	logger.Info("drivetransfer is running",
		slog.String("url", cfg.BaseURL),
		slog.String("addr", listener.Addr().String()),
		slog.Bool("authenticated", sess.CurrentUser().Authenticated))
	if deps.listening != nil {
		deps.listening(listener.Addr())
	}

	if cfg.OpenBrowser && deps.openBrowser != nil {
		if err := deps.openBrowser(cfg.BaseURL); err != nil {
			logger.Info("please open the application in your browser", slog.String("url", cfg.BaseURL))
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("servers stopped")
	return nil
}
