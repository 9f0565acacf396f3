package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oxyledger/oxyregistry/internal/config"
	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
	"github.com/oxyledger/oxyregistry/internal/mcp"
	"github.com/oxyledger/oxyregistry/internal/rpc"
	"github.com/oxyledger/oxyregistry/internal/sqlite"
	"github.com/oxyledger/oxyregistry/internal/tracing"
	"github.com/oxyledger/oxyregistry/internal/transport"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := run(cfg, logger, os.Args[1:]); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("preparing database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	apiKeys := sqlite.NewAPIKeyRepository(db)
	if len(args) > 0 {
		return runCommand(ctx, apiKeys, args)
	}

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

	ledger := sqlite.NewActivityRepository(db)
	reg := registry.New(registry.WithMintPolicy(registry.MintPolicy(cfg.Registry.MintPolicy)))
	registrySvc := registry.NewService(reg, ledger, logger)
	if err := registrySvc.Load(ctx); err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}
	defer func() {
		if err := registrySvc.Sync(context.Background()); err != nil {
			logger.Error("final journal sync failed", "error", err)
		}
	}()
	activitySvc := activity.NewService(ledger, logger)

	resolver := transport.NewCachedResolver(apiKeys)
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Registry: registrySvc,
			Activity: activitySvc,
		},
		Resolver:      resolver,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Version:       version,
		Logger:        logger,
	})

	logger.Info("registry ready",
		"mint_policy", reg.Policy(),
		"auth", cfg.Auth.Enabled,
		"tracing", tp.Enabled(),
	)

	if cfg.Transport.Mode == "stdio" {
		return runStdioMode(ctx, logger, mcpServer)
	}

	authMiddleware := transport.NoAuthMiddleware("local")
	if cfg.Auth.Enabled {
		authMiddleware = transport.AuthMiddleware(resolver)
	}
	router := transport.NewServer(rpc.NewHandler(registrySvc, activitySvc, logger), transport.Routes{
		Auth: authMiddleware,
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
		),
		Logger: logger,
	})
	return runHTTPMode(ctx, logger, router, cfg.Server.Host, cfg.Server.Port)
}

// runCommand handles the maintenance subcommands that share the server's
// database.
func runCommand(ctx context.Context, apiKeys *sqlite.APIKeyRepository, args []string) error {
	switch args[0] {
	case "add-key":
		if len(args) < 3 {
			return errors.New("usage: server add-key <caller> <token> [description]")
		}
		description := ""
		if len(args) > 3 {
			description = args[3]
		}
		if err := apiKeys.Add(ctx, args[2], args[1], description); err != nil {
			return fmt.Errorf("adding api key: %w", err)
		}
		fmt.Fprintf(os.Stderr, "api key added for %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or the context is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, handler http.Handler, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
