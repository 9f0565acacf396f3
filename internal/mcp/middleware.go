package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oxyledger/oxyregistry/internal/transport"
)

const defaultCaller = "local"

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver transport.CallerResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Protocol handshake runs before the client has a reason to authenticate.
			if method == "initialize" || method == "ping" || method == "notifications/initialized" {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", transport.ErrUnauthorized)
			}

			token := transport.BearerToken(extra.Header.Get("Authorization"))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", transport.ErrUnauthorized)
			}

			caller, err := resolver.ResolveCaller(ctx, token)
			switch {
			case err != nil && !transport.IsRejection(err):
				return nil, err
			case err != nil || caller == "":
				return nil, fmt.Errorf("%w: invalid bearer token", transport.ErrUnauthorized)
			}

			return next(transport.WithCaller(ctx, caller), method, req)
		}
	}
}

// noAuthMiddleware injects a default caller when auth is disabled.
func noAuthMiddleware(caller string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(transport.WithCaller(ctx, caller), method, req)
		}
	}
}

func callerOf(ctx context.Context) string {
	caller, _ := transport.CallerFromContext(ctx)
	return caller
}
