package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler dispatches JSON-RPC methods.
type Handler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Server wires HTTP handlers.
type Server struct {
	handler Handler
	logger  *slog.Logger
}

// Routes holds the optional pieces mounted by NewServer.
type Routes struct {
	// Auth wraps /rpc. Nil leaves it open.
	Auth func(http.Handler) http.Handler
	// MCP is mounted at /mcp when non-nil. It authenticates on its own so
	// that initialize and ping stay reachable.
	MCP    http.Handler
	Logger *slog.Logger
}

// NewServer creates an HTTP router serving /rpc, /health and optionally /mcp.
func NewServer(handler Handler, routes Routes) *chi.Mux {
	logger := routes.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{handler: handler, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	if routes.MCP != nil {
		r.Handle("/mcp", routes.MCP)
		r.Handle("/mcp/*", routes.MCP)
	}

	r.Group(func(r chi.Router) {
		if routes.Auth != nil {
			r.Use(routes.Auth)
		}
		r.Post("/rpc", srv.handleRPC)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			WriteError(w, req.ID, ErrInvalidReq, "invalid request", nil)
			return
		}
		WriteError(w, nil, ErrParseCode, "parse error", nil)
		return
	}

	result, err := s.handler.Handle(r.Context(), req.Method, req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			WriteError(w, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		s.logger.Error("rpc handler failed",
			"method", req.Method,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		WriteError(w, req.ID, ErrInternal, "internal error", nil)
		return
	}

	WriteResult(w, req.ID, result)
}
