package ledger_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketledger/clock"
	"ticketledger/entity"
	"ticketledger/ledger"
)

func newRecord(holder string) entity.TicketRecord {
	id := uuid.NewString()
	return entity.TicketRecord{
		PublicToken:  entity.PublicToken(id),
		UniqueID:     id,
		EventType:    "Independencia",
		EventDate:    "2024-09-16",
		Adults:       2,
		Children:     1,
		CreatedAt:    time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC),
		ArtifactPath: "tickets/Independencia/ticket.html",
		HolderName:   holder,
	}
}

func newStore(t *testing.T) *ledger.FileStore {
	return ledger.NewFileStore(filepath.Join(t.TempDir(), "tickets.csv"))
}

func TestFileStore_Append_creates_ledger_with_header(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	record := newRecord("")

	require.NoError(t, store.Append(ctx, record))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "hashed_token;token_id;event_type;date;adults;children;generated_at;ticket_filename;nombre", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], record.PublicToken+";"+record.UniqueID+";"))
}

func TestFileStore_round_trip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	records := []entity.TicketRecord{newRecord("Ana"), newRecord(""), newRecord("José; \"Pepe\"")}

	for _, r := range records {
		require.NoError(t, store.Append(ctx, r))
	}

	// a fresh store reads from disk only
	loaded, err := ledger.NewFileStore(store.Path()).LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	for _, r := range records {
		found, ok, err := store.FindByPublicToken(ctx, r.PublicToken)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, r, found)

		exists, err := store.Exists(ctx, r.UniqueID)
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestFileStore_empty(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, found, err := store.FindByPublicToken(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, found)

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.IsEmpty())
}

func TestFileStore_Append_rejects_bad_records(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	record := newRecord("")
	require.NoError(t, store.Append(ctx, record))

	err := store.Append(ctx, record)
	assert.ErrorIs(t, err, entity.ErrDuplicateTicket)

	mismatched := newRecord("")
	mismatched.PublicToken = entity.PublicToken("something else")
	err = store.Append(ctx, mismatched)
	assert.ErrorIs(t, err, entity.ErrTokenMismatch)

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFileStore_reloads_after_external_change(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	first := newRecord("")
	require.NoError(t, store.Append(ctx, first))

	_, found, err := store.FindByPublicToken(ctx, first.PublicToken)
	require.NoError(t, err)
	require.True(t, found)

	// another process appends, without a trailing newline
	second := newRecord("Luis")
	f, err := os.OpenFile(store.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(strings.Join(second.Row(entity.LedgerHeader), ";"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, found, err := store.FindByPublicToken(ctx, second.PublicToken)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Luis", got.HolderName)

	third := newRecord("")
	require.NoError(t, store.Append(ctx, third))

	records, err := ledger.NewFileStore(store.Path()).LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{first.UniqueID, second.UniqueID, third.UniqueID},
		lo.Map(records, func(r entity.TicketRecord, _ int) string { return r.UniqueID }),
	)
}

func TestFileStore_keeps_unknown_columns(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	header := append(append([]string(nil), entity.LedgerHeader...), "notes")
	require.NoError(t, os.WriteFile(store.Path(), []byte(strings.Join(header, ";")+"\n"), 0o644))

	require.NoError(t, store.Append(ctx, newRecord("")))

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, header, snapshot.Header)
	require.Len(t, snapshot.Rows, 1)
	assert.Len(t, snapshot.Rows[0], len(header))
}

func TestFileStore_Update_concurrent_writers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tickets.csv")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		// separate stores behave like separate processes sharing the flock
		store := ledger.NewFileStore(path)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, store.Append(ctx, newRecord("")))
			}
		}()
	}
	wg.Wait()

	snapshot, err := ledger.NewFileStore(path).Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Rows, 80)

	violations, err := ledger.Verify(snapshot)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

type failingBackup struct{}

func (failingBackup) Backup(ctx context.Context, ledgerPath string) (string, error) {
	return "", errors.New("backup disk full")
}

func TestFileStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	original := newRecord("")
	replacement := newRecord("Nueva")

	newSnapshot := entity.Snapshot{
		Header: entity.LedgerHeader,
		Rows:   [][]string{replacement.Row(entity.LedgerHeader)},
	}

	t.Run("backs up then replaces", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, original))
		before, err := os.ReadFile(store.Path())
		require.NoError(t, err)

		backupDir := filepath.Join(t.TempDir(), "backups")
		backupPath, err := store.ReplaceAll(ctx, newSnapshot, ledger.NewDirBackup(backupDir, clock.NewSystem()))
		require.NoError(t, err)

		backedUp, err := os.ReadFile(backupPath)
		require.NoError(t, err)
		assert.Equal(t, before, backedUp)

		records, err := store.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []entity.TicketRecord{replacement}, records)
	})

	t.Run("requires a backup step", func(t *testing.T) {
		store := newStore(t)
		_, err := store.ReplaceAll(ctx, newSnapshot, nil)
		assert.ErrorIs(t, err, entity.ErrBackupRequired)
	})

	t.Run("failed backup leaves the ledger alone", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, original))

		_, err := store.ReplaceAll(ctx, newSnapshot, failingBackup{})
		assert.ErrorContains(t, err, "backup disk full")

		records, err := store.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []entity.TicketRecord{original}, records)
	})

	t.Run("refuses a table without key column", func(t *testing.T) {
		store := newStore(t)
		_, err := store.ReplaceAll(ctx, entity.Snapshot{Header: []string{"event_type"}}, failingBackup{})

		var schemaErr *entity.SchemaError
		assert.ErrorAs(t, err, &schemaErr)
	})
}

func TestFileStore_Append_requires_key_columns(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name   string
		header string
	}{
		{name: "no public token", header: "token_id;event_type;date"},
		{name: "no unique id", header: "hashed_token;event_type;date"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, os.WriteFile(store.Path(), []byte(tc.header+"\n"), 0o644))

			err := store.Append(ctx, newRecord(""))
			var schemaErr *entity.SchemaError
			require.ErrorAs(t, err, &schemaErr)

			data, err := os.ReadFile(store.Path())
			require.NoError(t, err)
			assert.Equal(t, tc.header+"\n", string(data))
		})
	}
}

func TestFileStore_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the ledger with the derived snapshot", func(t *testing.T) {
		store := newStore(t)
		first, second := newRecord("Ana"), newRecord("Luis")
		require.NoError(t, store.Append(ctx, first))

		err := store.Reconcile(ctx, func(local entity.Snapshot) (entity.Snapshot, error) {
			require.Len(t, local.Rows, 1)
			local.Rows = append(local.Rows, second.Row(local.Header))
			return local, nil
		})
		require.NoError(t, err)

		records, err := store.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []entity.TicketRecord{first, second}, records)
	})

	t.Run("failure leaves the ledger untouched", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, newRecord("")))
		before, err := os.ReadFile(store.Path())
		require.NoError(t, err)

		mergeErr := errors.New("merge failed")
		err = store.Reconcile(ctx, func(local entity.Snapshot) (entity.Snapshot, error) {
			return entity.Snapshot{}, mergeErr
		})
		assert.ErrorIs(t, err, mergeErr)

		after, err := os.ReadFile(store.Path())
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("appends wait for the write", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, newRecord("")))

		concurrent := newRecord("concurrent")
		appended := make(chan error, 1)
		err := store.Reconcile(ctx, func(local entity.Snapshot) (entity.Snapshot, error) {
			go func() { appended <- store.Append(ctx, concurrent) }()
			// give the append a chance to run if the lock were not held
			time.Sleep(50 * time.Millisecond)
			return local, nil
		})
		require.NoError(t, err)
		require.NoError(t, <-appended)

		_, found, err := store.FindByPublicToken(ctx, concurrent.PublicToken)
		require.NoError(t, err)
		assert.True(t, found)
	})
}
