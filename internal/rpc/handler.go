package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
	"github.com/oxyledger/oxyregistry/internal/transport"
)

// RegistryService defines the registry operations exposed over JSON-RPC.
type RegistryService interface {
	CreateProject(ctx context.Context) (uint64, error)
	CreateNewTokenBatch(ctx context.Context, projectID uint64) (uint64, error)
	Mint(ctx context.Context, req registry.MintRequest) error
	ProjectsCreated(ctx context.Context) uint64
	ProjectExists(ctx context.Context, projectID uint64) bool
	TokenIDs(ctx context.Context) uint64
	TokenIDsToAmounts(ctx context.Context, batchID uint64) (uint64, error)
	TokenToSerialNumber(ctx context.Context, batchID uint64) (string, error)
	Batch(ctx context.Context, batchID uint64) (registry.Batch, error)
	BatchesOf(ctx context.Context, projectID uint64) ([]registry.Batch, error)
}

// ActivityService defines ledger history queries.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

// Handler dispatches JSON-RPC methods named after the registry contract.
type Handler struct {
	registry RegistryService
	activity ActivityService
	logger   *slog.Logger
}

// NewHandler creates a new JSON-RPC handler.
func NewHandler(reg RegistryService, activitySvc ActivityService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		registry: reg,
		activity: activitySvc,
		logger:   logger,
	}
}

// Handle implements transport.Handler.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	result, err := h.dispatch(ctx, method, params)
	if err != nil {
		caller, _ := transport.CallerFromContext(ctx)
		if mapped := MapError(err); mapped != nil {
			h.logger.Debug("rpc call rejected", "method", method, "caller", caller, "code", mapped.Code, "error", err)
			return nil, mapped
		}
		return nil, err
	}
	return result, nil
}

func (h *Handler) dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "createProject":
		id, err := h.registry.CreateProject(ctx)
		if err != nil {
			return nil, err
		}
		h.audit(ctx, method, "project_id", id)
		return ProjectCreated{ProjectID: id}, nil
	case "createNewTokenBatch":
		var req CreateNewTokenBatchParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ProjectID == nil {
			return nil, invalidParams("projectId is required")
		}
		id, err := h.registry.CreateNewTokenBatch(ctx, *req.ProjectID)
		if err != nil {
			return nil, err
		}
		h.audit(ctx, method, "project_id", *req.ProjectID, "token_id", id)
		return BatchCreated{ProjectID: *req.ProjectID, TokenID: id}, nil
	case "mint":
		var req MintParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.TokenID == nil || req.Amount == nil {
			return nil, invalidParams("tokenId and amount are required")
		}
		err := h.registry.Mint(ctx, registry.MintRequest{
			BatchID:      *req.TokenID,
			Amount:       *req.Amount,
			SerialNumber: req.SerialNumber,
		})
		if err != nil {
			return nil, err
		}
		h.audit(ctx, method, "token_id", *req.TokenID, "amount", *req.Amount)
		return Minted{TokenID: *req.TokenID, Amount: *req.Amount, SerialNumber: req.SerialNumber}, nil
	case "projectsCreated":
		return h.registry.ProjectsCreated(ctx), nil
	case "projectExists":
		var req ProjectParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ProjectID == nil {
			return nil, invalidParams("projectId is required")
		}
		return h.registry.ProjectExists(ctx, *req.ProjectID), nil
	case "tokenIds":
		return h.registry.TokenIDs(ctx), nil
	case "tokenIdsToAmounts":
		id, err := tokenID(params)
		if err != nil {
			return nil, err
		}
		return h.registry.TokenIDsToAmounts(ctx, id)
	case "tokenToSerialNumber":
		id, err := tokenID(params)
		if err != nil {
			return nil, err
		}
		return h.registry.TokenToSerialNumber(ctx, id)
	case "getBatch":
		id, err := tokenID(params)
		if err != nil {
			return nil, err
		}
		return h.registry.Batch(ctx, id)
	case "getProjectBatches":
		var req ProjectParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ProjectID == nil {
			return nil, invalidParams("projectId is required")
		}
		return h.registry.BatchesOf(ctx, *req.ProjectID)
	case "getRecentActivity":
		var req ActivityParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.activity.GetRecentActivity(ctx, activity.ListOptions{
			ProjectID: req.ProjectID,
			BatchID:   req.TokenID,
			Type:      req.Type,
			AfterSeq:  req.AfterSeq,
			Ascending: req.AfterSeq > 0,
			Limit:     req.Limit,
		})
	default:
		return nil, &transport.Error{Code: transport.ErrMethodNotFound, Message: "method not found: " + method}
	}
}

func (h *Handler) audit(ctx context.Context, method string, attrs ...any) {
	caller, _ := transport.CallerFromContext(ctx)
	h.logger.Info("registry write", append([]any{"method", method, "caller", caller}, attrs...)...)
}

func tokenID(params json.RawMessage) (uint64, error) {
	var req TokenParams
	if err := decodeParams(params, &req); err != nil {
		return 0, err
	}
	if req.TokenID == nil {
		return 0, invalidParams("tokenId is required")
	}
	return *req.TokenID, nil
}

func decodeParams(params json.RawMessage, target any) error {
	params = bytes.TrimSpace(params)
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return invalidParams("invalid params: " + err.Error())
	}
	return nil
}
