package activity

// ListOptions provides filtering options for listing ledger entries.
// Entries come back newest first unless Ascending is set.
type ListOptions struct {
	ProjectID uint64
	BatchID   uint64
	Type      *Type
	AfterSeq  uint64
	Ascending bool
	Limit     int
}
