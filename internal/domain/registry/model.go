package registry

// MintPolicy decides what happens when a batch is minted more than once.
type MintPolicy string

const (
	// MintOverwrite replaces the amount and serial number of a minted batch.
	MintOverwrite MintPolicy = "overwrite"
	// MintOnce rejects a second mint of the same batch with ErrAlreadyMinted.
	MintOnce MintPolicy = "once"
)

// Valid reports whether p is a known policy.
func (p MintPolicy) Valid() bool {
	return p == MintOverwrite || p == MintOnce
}

// Batch is a read-only view of a token batch and its mint record.
type Batch struct {
	ID           uint64 `json:"token_id"`
	ProjectID    uint64 `json:"project_id"`
	Amount       uint64 `json:"amount"`
	SerialNumber string `json:"serial_number,omitempty"`
	Minted       bool   `json:"minted"`
}

// Snapshot captures both counters and the ledger position at one instant.
type Snapshot struct {
	ProjectsCreated uint64 `json:"projects_created"`
	TokenIDs        uint64 `json:"token_ids"`
	LastSeq         uint64 `json:"last_seq"`
}
