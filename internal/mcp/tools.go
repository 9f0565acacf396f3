package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
)

type emptyInput struct{}

type createBatchInput struct {
	ProjectID uint64 `json:"project_id" jsonschema:"project that will own the batch"`
}

type mintInput struct {
	TokenID      uint64 `json:"token_id" jsonschema:"batch to mint"`
	Amount       string `json:"amount" jsonschema:"token amount as a base-10 string of an unsigned 64-bit integer, zero is allowed"`
	SerialNumber string `json:"serial_number" jsonschema:"off-chain serial number, must not be blank"`
}

type batchInput struct {
	TokenID uint64 `json:"token_id" jsonschema:"batch id"`
}

type projectInput struct {
	ProjectID uint64 `json:"project_id" jsonschema:"project id"`
}

type activityInput struct {
	ProjectID uint64 `json:"project_id,omitempty" jsonschema:"only entries for this project"`
	TokenID   uint64 `json:"token_id,omitempty" jsonschema:"only entries for this batch"`
	Type      string `json:"type,omitempty" jsonschema:"project_created, batch_created or batch_minted"`
	AfterSeq  uint64 `json:"after_seq,omitempty" jsonschema:"only entries after this sequence number, oldest first"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum entries, default 50"`
}

type projectCreated struct {
	ProjectID uint64 `json:"project_id"`
}

type batchCreated struct {
	ProjectID uint64 `json:"project_id"`
	TokenID   uint64 `json:"token_id"`
}

type projectBatches struct {
	ProjectID uint64           `json:"project_id"`
	Batches   []registry.Batch `json:"batches"`
}

type activityList struct {
	Entries []activity.Entry `json:"entries"`
}

// parseAmount reads a mint amount. Amounts travel as strings because JSON
// numbers are decoded through float64 and lose precision above 2^53.
func parseAmount(s string) (uint64, error) {
	amount, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &APIError{
			Code:         "INVALID_INPUT",
			Message:      fmt.Sprintf("amount %q is not an unsigned 64-bit integer", s),
			RecoveryHint: `Pass amount as a decimal string, e.g. "1000"`,
		}
	}
	return amount, nil
}

func registerTools(server *sdkmcp.Server, svc Services, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Register a new project and return its id",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, any, error) {
		id, err := svc.Registry.CreateProject(ctx)
		if err != nil {
			return nil, nil, toolError(err)
		}
		logger.Info("registry write", "tool", "create_project", "caller", callerOf(ctx), "project_id", id)
		return jsonResult(projectCreated{ProjectID: id})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_token_batch",
		Description: "Create a token batch under an existing project. Batch ids are global across projects",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in createBatchInput) (*sdkmcp.CallToolResult, any, error) {
		id, err := svc.Registry.CreateNewTokenBatch(ctx, in.ProjectID)
		if err != nil {
			return nil, nil, toolError(err)
		}
		logger.Info("registry write", "tool", "create_token_batch", "caller", callerOf(ctx), "project_id", in.ProjectID, "token_id", id)
		return jsonResult(batchCreated{ProjectID: in.ProjectID, TokenID: id})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "mint",
		Description: "Attach an amount and serial number to an existing batch",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in mintInput) (*sdkmcp.CallToolResult, any, error) {
		amount, err := parseAmount(in.Amount)
		if err != nil {
			return nil, nil, err
		}
		err = svc.Registry.Mint(ctx, registry.MintRequest{
			BatchID:      in.TokenID,
			Amount:       amount,
			SerialNumber: in.SerialNumber,
		})
		if err != nil {
			return nil, nil, toolError(err)
		}
		logger.Info("registry write", "tool", "mint", "caller", callerOf(ctx), "token_id", in.TokenID, "amount", amount)
		b, err := svc.Registry.Batch(ctx, in.TokenID)
		if err != nil {
			return nil, nil, toolError(err)
		}
		return jsonResult(b)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_counters",
		Description: "Return projects_created, token_ids and the last ledger sequence number",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, any, error) {
		return jsonResult(svc.Registry.Snapshot(ctx))
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_batch",
		Description: "Return a batch with its owning project and mint record",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in batchInput) (*sdkmcp.CallToolResult, any, error) {
		b, err := svc.Registry.Batch(ctx, in.TokenID)
		if err != nil {
			return nil, nil, toolError(err)
		}
		return jsonResult(b)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_project_batches",
		Description: "List the batches of a project in creation order",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in projectInput) (*sdkmcp.CallToolResult, any, error) {
		batches, err := svc.Registry.BatchesOf(ctx, in.ProjectID)
		if err != nil {
			return nil, nil, toolError(err)
		}
		return jsonResult(projectBatches{ProjectID: in.ProjectID, Batches: batches})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_recent_activity",
		Description: "List ledger entries, newest first unless after_seq is given",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in activityInput) (*sdkmcp.CallToolResult, any, error) {
		opts := activity.ListOptions{
			ProjectID: in.ProjectID,
			BatchID:   in.TokenID,
			AfterSeq:  in.AfterSeq,
			Ascending: in.AfterSeq > 0,
			Limit:     in.Limit,
		}
		if in.Type != "" {
			t := activity.Type(in.Type)
			opts.Type = &t
		}
		entries, err := svc.Activity.GetRecentActivity(ctx, opts)
		if err != nil {
			return nil, nil, toolError(err)
		}
		if entries == nil {
			entries = []activity.Entry{}
		}
		return jsonResult(activityList{Entries: entries})
	})
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
