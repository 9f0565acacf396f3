package registry

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
)

// Registry owns the project and batch counters, the batch mappings and the
// ledger of transitions. All writes are serialized by a single mutex; nothing
// inside the critical section performs I/O.
type Registry struct {
	mu     sync.RWMutex
	policy MintPolicy
	now    func() time.Time
	st     *state
}

type state struct {
	projectCounter uint64
	batchCounter   uint64
	// projects maps a project id to the ids of its batches, in creation order.
	projects       map[uint64][]uint64
	batchToProject map[uint64]uint64
	batchAmount    map[uint64]uint64
	batchSerial    map[uint64]string
	// events holds ledger entries not yet compacted away; compacted counts
	// the entries dropped before events[0].
	events    []activity.Entry
	compacted uint64
}

func newState() *state {
	return &state{
		projects:       make(map[uint64][]uint64),
		batchToProject: make(map[uint64]uint64),
		batchAmount:    make(map[uint64]uint64),
		batchSerial:    make(map[uint64]string),
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithMintPolicy sets the re-mint policy. The default is MintOverwrite.
func WithMintPolicy(p MintPolicy) Option {
	return func(r *Registry) {
		if p.Valid() {
			r.policy = p
		}
	}
}

// WithClock overrides the time source used to stamp ledger entries.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		policy: MintOverwrite,
		now:    time.Now,
		st:     newState(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured re-mint policy.
func (r *Registry) Policy() MintPolicy {
	return r.policy
}

// CreateProject assigns the next project id.
func (r *Registry) CreateProject() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.st
	if st.projectCounter == math.MaxUint64 {
		return 0, fmt.Errorf("creating project: %w", ErrExhausted)
	}
	id := st.projectCounter + 1
	if _, exists := st.projects[id]; exists {
		return 0, fmt.Errorf("creating project %d: %w", id, ErrInvariantViolation)
	}

	st.projectCounter = id
	st.projects[id] = nil
	st.record(activity.Entry{
		Type:      activity.TypeProjectCreated,
		ProjectID: id,
		CreatedAt: r.now(),
	})
	return id, nil
}

// CreateNewTokenBatch assigns the next batch id from the global counter and
// binds it to projectID.
func (r *Registry) CreateNewTokenBatch(projectID uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.st
	if _, ok := st.projects[projectID]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownProject, projectID)
	}
	if st.batchCounter == math.MaxUint64 {
		return 0, fmt.Errorf("creating batch: %w", ErrExhausted)
	}
	id := st.batchCounter + 1
	if _, exists := st.batchToProject[id]; exists {
		return 0, fmt.Errorf("creating batch %d: %w", id, ErrInvariantViolation)
	}

	st.batchCounter = id
	st.batchToProject[id] = projectID
	st.projects[projectID] = append(st.projects[projectID], id)
	st.record(activity.Entry{
		Type:      activity.TypeBatchCreated,
		ProjectID: projectID,
		BatchID:   id,
		CreatedAt: r.now(),
	})
	return id, nil
}

// Mint writes amount and serialNumber into an existing batch.
func (r *Registry) Mint(batchID, amount uint64, serialNumber string) error {
	if strings.TrimSpace(serialNumber) == "" {
		return fmt.Errorf("%w: serial number is required", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.st
	projectID, ok := st.batchToProject[batchID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBatch, batchID)
	}
	if r.policy == MintOnce {
		if _, minted := st.batchSerial[batchID]; minted {
			return fmt.Errorf("minting batch %d: %w", batchID, ErrAlreadyMinted)
		}
	}

	st.batchAmount[batchID] = amount
	st.batchSerial[batchID] = serialNumber
	st.record(activity.Entry{
		Type:         activity.TypeBatchMinted,
		ProjectID:    projectID,
		BatchID:      batchID,
		Amount:       amount,
		SerialNumber: serialNumber,
		CreatedAt:    r.now(),
	})
	return nil
}

// ProjectsCreated returns the project counter.
func (r *Registry) ProjectsCreated() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.projectCounter
}

// TokenIDs returns the global batch counter.
func (r *Registry) TokenIDs() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.batchCounter
}

// TokenIDsToAmounts returns the minted amount of a batch, zero if never minted.
func (r *Registry) TokenIDsToAmounts(batchID uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.st.batchToProject[batchID]; !ok {
		return 0, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	return r.st.batchAmount[batchID], nil
}

// TokenToSerialNumber returns the serial number of a batch, empty if never minted.
func (r *Registry) TokenToSerialNumber(batchID uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.st.batchToProject[batchID]; !ok {
		return "", fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	return r.st.batchSerial[batchID], nil
}

// ProjectExists reports whether projectID was assigned by CreateProject.
func (r *Registry) ProjectExists(projectID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.st.projects[projectID]
	return ok
}

// Batch returns a view of one batch.
func (r *Registry) Batch(batchID uint64) (Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.st.batch(batchID)
	if !ok {
		return Batch{}, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	return b, nil
}

// BatchesOf returns the batches of a project in id order.
func (r *Registry) BatchesOf(projectID uint64) ([]Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.st.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProject, projectID)
	}
	batches := make([]Batch, 0, len(ids))
	for _, id := range ids {
		b, _ := r.st.batch(id)
		batches = append(batches, b)
	}
	return batches, nil
}

// Snapshot returns both counters as of the last completed write.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		ProjectsCreated: r.st.projectCounter,
		TokenIDs:        r.st.batchCounter,
		LastSeq:         r.st.lastSeq(),
	}
}

// Events returns a copy of the retained ledger entries with Seq greater than
// afterSeq. Entries dropped by Compact are not returned.
func (r *Registry) Events(afterSeq uint64) []activity.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := r.st
	if afterSeq >= st.lastSeq() {
		return nil
	}
	start := 0
	if afterSeq > st.compacted {
		start = int(afterSeq - st.compacted)
	}
	out := make([]activity.Entry, len(st.events)-start)
	copy(out, st.events[start:])
	return out
}

// Compact drops retained ledger entries with Seq up to throughSeq. Callers
// compact only what a journal already holds.
func (r *Registry) Compact(throughSeq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.st
	if throughSeq > st.lastSeq() {
		throughSeq = st.lastSeq()
	}
	if throughSeq <= st.compacted {
		return
	}
	drop := int(throughSeq - st.compacted)
	st.events = append([]activity.Entry(nil), st.events[drop:]...)
	st.compacted = throughSeq
}

// Restore replays a ledger into an empty registry. Entries must be in Seq
// order starting at 1 and describe a valid history; otherwise nothing is
// applied and ErrInvariantViolation is returned.
func (r *Registry) Restore(entries []activity.Entry) error {
	next := newState()
	for _, e := range entries {
		if err := next.replay(e); err != nil {
			return fmt.Errorf("restoring seq %d: %w", e.Seq, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.lastSeq() > 0 || r.st.projectCounter > 0 || r.st.batchCounter > 0 {
		return fmt.Errorf("restoring into non-empty registry: %w", ErrInvariantViolation)
	}
	r.st = next
	return nil
}

func (st *state) lastSeq() uint64 {
	return st.compacted + uint64(len(st.events))
}

func (st *state) record(e activity.Entry) {
	e.Seq = st.lastSeq() + 1
	st.events = append(st.events, e)
}

func (st *state) batch(id uint64) (Batch, bool) {
	projectID, ok := st.batchToProject[id]
	if !ok {
		return Batch{}, false
	}
	serial, minted := st.batchSerial[id]
	return Batch{
		ID:           id,
		ProjectID:    projectID,
		Amount:       st.batchAmount[id],
		SerialNumber: serial,
		Minted:       minted,
	}, true
}

// replay applies a recorded entry. Replay ignores the mint policy: the ledger
// is history, not a request.
func (st *state) replay(e activity.Entry) error {
	if e.Seq != st.lastSeq()+1 {
		return fmt.Errorf("expected seq %d: %w", st.lastSeq()+1, ErrInvariantViolation)
	}

	switch e.Type {
	case activity.TypeProjectCreated:
		if e.ProjectID != st.projectCounter+1 {
			return fmt.Errorf("project %d out of order: %w", e.ProjectID, ErrInvariantViolation)
		}
		st.projectCounter = e.ProjectID
		st.projects[e.ProjectID] = nil
	case activity.TypeBatchCreated:
		if e.BatchID != st.batchCounter+1 {
			return fmt.Errorf("batch %d out of order: %w", e.BatchID, ErrInvariantViolation)
		}
		if _, ok := st.projects[e.ProjectID]; !ok {
			return fmt.Errorf("batch %d references project %d: %w", e.BatchID, e.ProjectID, ErrInvariantViolation)
		}
		st.batchCounter = e.BatchID
		st.batchToProject[e.BatchID] = e.ProjectID
		st.projects[e.ProjectID] = append(st.projects[e.ProjectID], e.BatchID)
	case activity.TypeBatchMinted:
		owner, ok := st.batchToProject[e.BatchID]
		if !ok || owner != e.ProjectID {
			return fmt.Errorf("mint of batch %d: %w", e.BatchID, ErrInvariantViolation)
		}
		if strings.TrimSpace(e.SerialNumber) == "" {
			return fmt.Errorf("mint of batch %d without serial: %w", e.BatchID, ErrInvariantViolation)
		}
		st.batchAmount[e.BatchID] = e.Amount
		st.batchSerial[e.BatchID] = e.SerialNumber
	default:
		return fmt.Errorf("unknown entry type %q: %w", e.Type, ErrInvariantViolation)
	}

	st.events = append(st.events, e)
	return nil
}
