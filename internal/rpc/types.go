package rpc

import "github.com/oxyledger/oxyregistry/internal/domain/activity"

// CreateNewTokenBatchParams defines createNewTokenBatch params.
type CreateNewTokenBatchParams struct {
	ProjectID *uint64 `json:"projectId"`
}

// MintParams defines mint params.
type MintParams struct {
	TokenID      *uint64 `json:"tokenId"`
	Amount       *uint64 `json:"amount"`
	SerialNumber string  `json:"serialNumber"`
}

// TokenParams is shared by the per-batch views.
type TokenParams struct {
	TokenID *uint64 `json:"tokenId"`
}

// ProjectParams defines projectExists and getProjectBatches params.
type ProjectParams struct {
	ProjectID *uint64 `json:"projectId"`
}

// ActivityParams defines getRecentActivity params.
type ActivityParams struct {
	ProjectID uint64         `json:"projectId,omitempty"`
	TokenID   uint64         `json:"tokenId,omitempty"`
	Type      *activity.Type `json:"type,omitempty"`
	AfterSeq  uint64         `json:"afterSeq,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

// ProjectCreated is the createProject result.
type ProjectCreated struct {
	ProjectID uint64 `json:"projectId"`
}

// BatchCreated is the createNewTokenBatch result.
type BatchCreated struct {
	ProjectID uint64 `json:"projectId"`
	TokenID   uint64 `json:"tokenId"`
}

// Minted is the mint result.
type Minted struct {
	TokenID      uint64 `json:"tokenId"`
	Amount       uint64 `json:"amount"`
	SerialNumber string `json:"serialNumber"`
}
