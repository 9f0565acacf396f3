// Package testserver runs the full HTTP stack against an in-memory database.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
	"github.com/oxyledger/oxyregistry/internal/mcp"
	"github.com/oxyledger/oxyregistry/internal/rpc"
	"github.com/oxyledger/oxyregistry/internal/sqlite"
	"github.com/oxyledger/oxyregistry/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Token    string
	Caller   string
	Registry *registry.Service
}

// Option tweaks the registry under test.
type Option = registry.Option

func New(t *testing.T, token, caller string, opts ...Option) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	ledger := sqlite.NewActivityRepository(db)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	registrySvc := registry.NewService(registry.New(opts...), ledger, nil)
	require.NoError(t, registrySvc.Load(context.Background()))
	activitySvc := activity.NewService(ledger, nil)

	resolver := transport.NewCachedResolver(apiKeys)
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Registry: registrySvc,
			Activity: activitySvc,
		},
		Resolver:      resolver,
		AuthEnabled:   true,
		TransportMode: "http",
	})

	router := transport.NewServer(rpc.NewHandler(registrySvc, activitySvc, nil), transport.Routes{
		Auth: transport.AuthMiddleware(resolver),
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			nil,
		),
	})
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Token:    token,
		Caller:   caller,
		Registry: registrySvc,
	}
	require.NoError(t, apiKeys.Add(context.Background(), token, caller, "test"))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

// Reload builds a fresh registry service from the journal, as a restarted
// server would.
func (ts *TestServer) Reload(t *testing.T, opts ...Option) *registry.Service {
	t.Helper()
	svc := registry.NewService(registry.New(opts...), sqlite.NewActivityRepository(ts.DB), nil)
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

// AuthTransport adds the bearer token to every request.
type AuthTransport struct {
	Token string
	Base  http.RoundTripper
}

func (a *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := a.Base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return base.RoundTrip(req)
}

// MCPClient connects an MCP client session to the /mcp endpoint.
func (ts *TestServer) MCPClient(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "functional-test", Version: "1.0.0"}, nil)
	cs, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: &AuthTransport{Token: token}},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}
