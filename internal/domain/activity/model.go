package activity

import "time"

// Type identifies the registry transition recorded by a ledger entry
type Type string

const (
	TypeProjectCreated Type = "project_created"
	TypeBatchCreated   Type = "batch_created"
	TypeBatchMinted    Type = "batch_minted"
)

// Valid reports whether t is a known entry type.
func (t Type) Valid() bool {
	switch t {
	case TypeProjectCreated, TypeBatchCreated, TypeBatchMinted:
		return true
	}
	return false
}

// Entry is one event in the registry ledger. Seq is gap-free and starts at 1.
type Entry struct {
	Seq          uint64    `json:"seq"`
	Type         Type      `json:"type"`
	ProjectID    uint64    `json:"project_id"`
	BatchID      uint64    `json:"batch_id,omitempty"`
	Amount       uint64    `json:"amount,omitempty"`
	SerialNumber string    `json:"serial_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
