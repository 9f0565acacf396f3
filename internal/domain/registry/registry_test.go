package registry

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateProjectMintScenario(t *testing.T) {
	reg := New()
	require.False(t, reg.ProjectExists(0))
	require.False(t, reg.ProjectExists(1))

	projectID, err := reg.CreateProject()
	require.NoError(t, err)
	require.Equal(t, uint64(1), projectID)
	require.Equal(t, uint64(1), reg.ProjectsCreated())
	require.True(t, reg.ProjectExists(projectID))

	tokenID, err := reg.CreateNewTokenBatch(projectID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), tokenID)
	require.Equal(t, uint64(1), reg.TokenIDs())

	require.NoError(t, reg.Mint(tokenID, 1000, "ABCD1000"))

	amount, err := reg.TokenIDsToAmounts(tokenID)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), amount)

	serial, err := reg.TokenToSerialNumber(tokenID)
	require.NoError(t, err)
	require.Equal(t, "ABCD1000", serial)
}

func TestRegistry_BatchIDsAreGlobal(t *testing.T) {
	reg := New()

	p1, err := reg.CreateProject()
	require.NoError(t, err)
	p2, err := reg.CreateProject()
	require.NoError(t, err)
	require.Equal(t, uint64(1), p1)
	require.Equal(t, uint64(2), p2)

	b1, err := reg.CreateNewTokenBatch(p1)
	require.NoError(t, err)
	b2, err := reg.CreateNewTokenBatch(p2)
	require.NoError(t, err)
	b3, err := reg.CreateNewTokenBatch(p1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, []uint64{b1, b2, b3})

	batches, err := reg.BatchesOf(p1)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, uint64(1), batches[0].ID)
	require.Equal(t, uint64(3), batches[1].ID)

	b, err := reg.Batch(b2)
	require.NoError(t, err)
	require.Equal(t, p2, b.ProjectID)
}

func TestRegistry_UnknownProject(t *testing.T) {
	reg := New()

	_, err := reg.CreateNewTokenBatch(999)
	require.ErrorIs(t, err, ErrReference)
	require.ErrorIs(t, err, ErrUnknownProject)
	require.Zero(t, reg.TokenIDs())
	require.Empty(t, reg.Events(0))

	_, err = reg.CreateNewTokenBatch(0)
	require.ErrorIs(t, err, ErrUnknownProject)

	_, err = reg.BatchesOf(999)
	require.ErrorIs(t, err, ErrUnknownProject)
}

func TestRegistry_MintUnknownBatch(t *testing.T) {
	reg := New()
	_, err := reg.CreateProject()
	require.NoError(t, err)

	err = reg.Mint(1, 10, "S-1")
	require.ErrorIs(t, err, ErrReference)
	require.ErrorIs(t, err, ErrUnknownBatch)
	require.Len(t, reg.Events(0), 1)
}

func TestRegistry_MintValidation(t *testing.T) {
	reg := New()
	p, _ := reg.CreateProject()
	b, _ := reg.CreateNewTokenBatch(p)

	require.ErrorIs(t, reg.Mint(b, 10, ""), ErrInvalidInput)
	require.ErrorIs(t, reg.Mint(b, 10, "   "), ErrInvalidInput)

	got, err := reg.Batch(b)
	require.NoError(t, err)
	require.False(t, got.Minted)

	// Zero amounts are allowed
	require.NoError(t, reg.Mint(b, 0, "ZERO"))
	got, err = reg.Batch(b)
	require.NoError(t, err)
	require.True(t, got.Minted)
	require.Zero(t, got.Amount)
}

func TestRegistry_UnmintedBatchReadsZeroValues(t *testing.T) {
	reg := New()
	p, _ := reg.CreateProject()
	b, _ := reg.CreateNewTokenBatch(p)

	amount, err := reg.TokenIDsToAmounts(b)
	require.NoError(t, err)
	require.Zero(t, amount)

	serial, err := reg.TokenToSerialNumber(b)
	require.NoError(t, err)
	require.Empty(t, serial)
}

func TestRegistry_AccessorsUnknownBatch(t *testing.T) {
	reg := New()

	_, err := reg.TokenIDsToAmounts(7)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = reg.TokenToSerialNumber(7)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = reg.Batch(7)
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, errors.Is(err, ErrReference))
}

func TestRegistry_RemintOverwrites(t *testing.T) {
	reg := New()
	p, _ := reg.CreateProject()
	b, _ := reg.CreateNewTokenBatch(p)

	require.NoError(t, reg.Mint(b, 1000, "ABCD1000"))
	require.NoError(t, reg.Mint(b, 5, "EFGH5"))

	amount, _ := reg.TokenIDsToAmounts(b)
	serial, _ := reg.TokenToSerialNumber(b)
	require.Equal(t, uint64(5), amount)
	require.Equal(t, "EFGH5", serial)
}

func TestRegistry_MintOnceRejectsSecondMint(t *testing.T) {
	reg := New(WithMintPolicy(MintOnce))
	require.Equal(t, MintOnce, reg.Policy())
	p, _ := reg.CreateProject()
	b, _ := reg.CreateNewTokenBatch(p)

	require.NoError(t, reg.Mint(b, 1000, "ABCD1000"))
	err := reg.Mint(b, 5, "EFGH5")
	require.ErrorIs(t, err, ErrAlreadyMinted)

	amount, _ := reg.TokenIDsToAmounts(b)
	serial, _ := reg.TokenToSerialNumber(b)
	require.Equal(t, uint64(1000), amount)
	require.Equal(t, "ABCD1000", serial)
	require.Len(t, reg.Events(0), 3)
}

func TestRegistry_InvalidPolicyKeepsDefault(t *testing.T) {
	reg := New(WithMintPolicy("sometimes"))
	require.Equal(t, MintOverwrite, reg.Policy())
}

func TestRegistry_ProjectExhaustion(t *testing.T) {
	reg := New()
	reg.st.projectCounter = math.MaxUint64

	_, err := reg.CreateProject()
	require.ErrorIs(t, err, ErrExhausted)
	require.True(t, IsFatal(err))
	require.Equal(t, uint64(math.MaxUint64), reg.ProjectsCreated())
	require.Empty(t, reg.Events(0))
}

func TestRegistry_BatchExhaustion(t *testing.T) {
	reg := New()
	p, _ := reg.CreateProject()
	reg.st.batchCounter = math.MaxUint64

	_, err := reg.CreateNewTokenBatch(p)
	require.ErrorIs(t, err, ErrExhausted)
	require.Len(t, reg.Events(0), 1)
}

func TestRegistry_DesyncIsInvariantViolation(t *testing.T) {
	reg := New()
	p, _ := reg.CreateProject()
	reg.st.batchToProject[1] = p

	_, err := reg.CreateNewTokenBatch(p)
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.True(t, IsFatal(err))
	require.Zero(t, reg.TokenIDs())

	reg.st.projects[2] = nil
	_, err = reg.CreateProject()
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.Equal(t, uint64(1), reg.ProjectsCreated())
}

func TestRegistry_EventsAreSequenced(t *testing.T) {
	at := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := New(WithClock(func() time.Time { return at }))

	p, _ := reg.CreateProject()
	b, _ := reg.CreateNewTokenBatch(p)
	require.NoError(t, reg.Mint(b, 1000, "ABCD1000"))

	events := reg.Events(0)
	require.Len(t, events, 3)
	require.Equal(t, activity.Entry{Seq: 1, Type: activity.TypeProjectCreated, ProjectID: 1, CreatedAt: at}, events[0])
	require.Equal(t, activity.Entry{Seq: 2, Type: activity.TypeBatchCreated, ProjectID: 1, BatchID: 1, CreatedAt: at}, events[1])
	require.Equal(t, activity.Entry{Seq: 3, Type: activity.TypeBatchMinted, ProjectID: 1, BatchID: 1, Amount: 1000, SerialNumber: "ABCD1000", CreatedAt: at}, events[2])

	require.Len(t, reg.Events(2), 1)
	require.Nil(t, reg.Events(3))
	require.Nil(t, reg.Events(100))

	// Callers get a copy
	events[0].ProjectID = 42
	require.Equal(t, uint64(1), reg.Events(0)[0].ProjectID)

	require.Equal(t, Snapshot{ProjectsCreated: 1, TokenIDs: 1, LastSeq: 3}, reg.Snapshot())
}

func TestRegistry_Compact(t *testing.T) {
	reg := New()
	p, _ := reg.CreateProject()
	b, _ := reg.CreateNewTokenBatch(p)
	require.NoError(t, reg.Mint(b, 5, "S-5"))

	reg.Compact(2)
	events := reg.Events(0)
	require.Len(t, events, 1)
	require.Equal(t, uint64(3), events[0].Seq)
	require.Equal(t, events, reg.Events(1))
	require.Nil(t, reg.Events(3))
	require.Equal(t, uint64(3), reg.Snapshot().LastSeq)

	// Compacting backwards or past the end is harmless
	reg.Compact(1)
	require.Len(t, reg.Events(0), 1)
	reg.Compact(100)
	require.Empty(t, reg.Events(0))
	require.Equal(t, uint64(3), reg.Snapshot().LastSeq)

	p2, err := reg.CreateProject()
	require.NoError(t, err)
	require.Equal(t, uint64(2), p2)
	events = reg.Events(0)
	require.Len(t, events, 1)
	require.Equal(t, uint64(4), events[0].Seq)

	// A compacted registry is not empty and refuses a restore
	require.ErrorIs(t, reg.Restore(nil), ErrInvariantViolation)
}

func TestRegistry_RestoreRoundTrip(t *testing.T) {
	src := New()
	p1, _ := src.CreateProject()
	p2, _ := src.CreateProject()
	b1, _ := src.CreateNewTokenBatch(p2)
	b2, _ := src.CreateNewTokenBatch(p1)
	require.NoError(t, src.Mint(b1, 7, "S-7"))
	require.NoError(t, src.Mint(b1, 8, "S-8"))

	dst := New(WithMintPolicy(MintOnce))
	require.NoError(t, dst.Restore(src.Events(0)))

	require.Equal(t, src.Snapshot(), dst.Snapshot())
	got, err := dst.Batch(b1)
	require.NoError(t, err)
	require.Equal(t, Batch{ID: b1, ProjectID: p2, Amount: 8, SerialNumber: "S-8", Minted: true}, got)
	got, err = dst.Batch(b2)
	require.NoError(t, err)
	require.False(t, got.Minted)

	// The restored registry keeps counting from where the ledger ended
	p3, err := dst.CreateProject()
	require.NoError(t, err)
	require.Equal(t, uint64(3), p3)
	require.Equal(t, uint64(7), dst.Snapshot().LastSeq)
}

func TestRegistry_RestoreRejectsBadLedgers(t *testing.T) {
	cases := map[string][]activity.Entry{
		"gap in seq": {
			{Seq: 1, Type: activity.TypeProjectCreated, ProjectID: 1},
			{Seq: 3, Type: activity.TypeProjectCreated, ProjectID: 2},
		},
		"project out of order": {
			{Seq: 1, Type: activity.TypeProjectCreated, ProjectID: 2},
		},
		"batch under unknown project": {
			{Seq: 1, Type: activity.TypeProjectCreated, ProjectID: 1},
			{Seq: 2, Type: activity.TypeBatchCreated, ProjectID: 9, BatchID: 1},
		},
		"mint of unknown batch": {
			{Seq: 1, Type: activity.TypeProjectCreated, ProjectID: 1},
			{Seq: 2, Type: activity.TypeBatchMinted, ProjectID: 1, BatchID: 1, SerialNumber: "X"},
		},
		"mint with wrong owner": {
			{Seq: 1, Type: activity.TypeProjectCreated, ProjectID: 1},
			{Seq: 2, Type: activity.TypeProjectCreated, ProjectID: 2},
			{Seq: 3, Type: activity.TypeBatchCreated, ProjectID: 1, BatchID: 1},
			{Seq: 4, Type: activity.TypeBatchMinted, ProjectID: 2, BatchID: 1, SerialNumber: "X"},
		},
		"unknown type": {
			{Seq: 1, Type: "token_burned", ProjectID: 1},
		},
	}

	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			reg := New()
			err := reg.Restore(entries)
			require.ErrorIs(t, err, ErrInvariantViolation)
			require.Equal(t, Snapshot{}, reg.Snapshot())
		})
	}
}

func TestRegistry_RestoreIntoNonEmpty(t *testing.T) {
	reg := New()
	_, _ = reg.CreateProject()

	err := reg.Restore(nil)
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.Equal(t, uint64(1), reg.ProjectsCreated())
}

func TestRegistry_ConcurrentCreatesAreGapFree(t *testing.T) {
	reg := New()
	const workers = 16
	const perWorker = 50

	root, err := reg.CreateProject()
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	projectIDs := map[uint64]bool{}
	batchIDs := map[uint64]bool{}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				p, err := reg.CreateProject()
				if err != nil {
					t.Error(err)
					return
				}
				b, err := reg.CreateNewTokenBatch(root)
				if err != nil {
					t.Error(err)
					return
				}
				if err := reg.Mint(b, uint64(i), "SERIAL"); err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				projectIDs[p] = true
				batchIDs[b] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	total := uint64(workers * perWorker)
	require.Equal(t, total+1, reg.ProjectsCreated())
	require.Equal(t, total, reg.TokenIDs())
	for id := uint64(2); id <= total+1; id++ {
		require.True(t, projectIDs[id], "missing project %d", id)
	}
	for id := uint64(1); id <= total; id++ {
		require.True(t, batchIDs[id], "missing batch %d", id)
	}

	// The ledger replays cleanly, so it was written in a consistent order
	require.NoError(t, New().Restore(reg.Events(0)))
}
