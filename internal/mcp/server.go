package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
	"github.com/oxyledger/oxyregistry/internal/transport"
)

// RegistryService defines registry operations needed by MCP.
type RegistryService interface {
	CreateProject(ctx context.Context) (uint64, error)
	CreateNewTokenBatch(ctx context.Context, projectID uint64) (uint64, error)
	Mint(ctx context.Context, req registry.MintRequest) error
	Snapshot(ctx context.Context) registry.Snapshot
	Batch(ctx context.Context, batchID uint64) (registry.Batch, error)
	BatchesOf(ctx context.Context, projectID uint64) ([]registry.Batch, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Registry RegistryService
	Activity ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      transport.CallerResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "oxyregistry",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is local only and never authenticates.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(defaultCaller))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services, cfg.Logger)

	return server
}
