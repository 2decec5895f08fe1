package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"armoree/backend/internal/api"
	"armoree/backend/internal/app"
	"armoree/backend/internal/auth"
	"armoree/backend/internal/config"
	"armoree/backend/internal/logging"
	"armoree/backend/internal/mcp"
	"armoree/backend/internal/metrics"
	"armoree/backend/internal/telemetry"
	"armoree/backend/internal/tls"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "armoree-server",
		Short:         "Armoree tenant provisioning and resolution service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(envFile)
			if err != nil {
				return fmt.Errorf("configuration loading failed: %w", err)
			}

			logger := logging.NewLogger(cfg.Log.Level, cfg.Environment)
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Path to .env file")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"issuer", cfg.Auth.Issuer,
		"client_id", cfg.Auth.ClientID,
		"swagger_client_id", cfg.Auth.SwaggerClientID,
		"config_file", cfg.ConfigFile,
	)

	// Providers go in first so the registrar's instruments bind to them.
	httpMetrics := metrics.NewHTTPMetrics()
	shutdownTelemetry, err := telemetry.Setup(ctx, "armoree", cfg.Telemetry.OTLPEndpoint, httpMetrics.Registerer())
	if err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Error("Telemetry shutdown error", "error", err)
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	authz, err := auth.New(ctx, cfg, a.Resolver, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	e := api.NewEcho(logger, httpMetrics)

	api.RegisterHandlers(e, api.NewHandler(a.Registrar, a.Store, a.TablesReady, logger), echo.WrapMiddleware(authz.ResolveTenant))
	api.RegisterDocs(e, cfg.Auth.Issuer, cfg.Auth.SwaggerClientID)
	e.GET("/metrics", echo.WrapHandler(httpMetrics.Handler()))

	mcpServer := mcp.NewServer(a.Registrar, a.Resolver)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("HTTP handlers mounted")

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.TLS.Enable {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return errors.New("tls.enable requires tls.cert_file and tls.key_file")
		}
		if len(cfg.TLS.Hostnames) > 0 {
			created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
			if err != nil {
				return fmt.Errorf("failed to prepare self-signed certificate: %w", err)
			}
			if created {
				logger.Warn("generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
			}
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
		return err
	}

	logger.Info("Server stopped gracefully", "mapping_cache_hit_ratio", a.Cache.HitRatio())
	return nil
}
