package reconcile_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketledger/entity"
	"ticketledger/gateway"
	"ticketledger/ledger"
	"ticketledger/reconcile"
)

const remoteID = "tickets.csv"

type fakeLocker struct {
	mu     sync.Mutex
	held   bool
	locks  int
	frees  int
	refuse bool
}

func (l *fakeLocker) Lock(ctx context.Context) (func(ctx context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refuse || l.held {
		return nil, entity.ErrSyncInProgress
	}
	l.held = true
	l.locks++

	return func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.frees++
		return nil
	}, nil
}

// slowRemote blocks Get until the context is done.
type slowRemote struct{}

func (slowRemote) Get(ctx context.Context, id string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func (slowRemote) Put(ctx context.Context, id string, data []byte) error {
	return nil
}

func record(id string) entity.TicketRecord {
	return entity.TicketRecord{
		PublicToken: entity.PublicToken(id),
		UniqueID:    id,
		EventType:   "Independencia",
		EventDate:   "2024-09-16",
		Adults:      1,
	}
}

func snapshotOf(records ...entity.TicketRecord) entity.Snapshot {
	s := entity.Snapshot{Header: entity.LedgerHeader}
	for _, r := range records {
		s.Rows = append(s.Rows, r.Row(entity.LedgerHeader))
	}
	return s
}

func putRemote(t *testing.T, remote *gateway.RemoteStoreMock, snapshot entity.Snapshot) {
	data, err := ledger.EncodeSnapshot(snapshot)
	require.NoError(t, err)
	require.NoError(t, remote.Put(context.Background(), remoteID, data))
}

func remoteSnapshot(t *testing.T, remote *gateway.RemoteStoreMock) entity.Snapshot {
	data, found, err := remote.Get(context.Background(), remoteID)
	require.NoError(t, err)
	require.True(t, found)

	snapshot, err := ledger.DecodeSnapshot(data)
	require.NoError(t, err)
	return snapshot
}

func newSyncer(t *testing.T, remote reconcile.RemoteStore, locker reconcile.Locker) (*reconcile.Syncer, *ledger.FileStore) {
	store := ledger.NewFileStore(filepath.Join(t.TempDir(), "tickets.csv"))
	return reconcile.NewSyncer(store, remote, locker, reconcile.Config{RemoteID: remoteID, Timeout: time.Second}), store
}

func TestSyncer_Pull(t *testing.T) {
	ctx := context.Background()
	a, b, c := record("a"), record("b"), record("c")

	remote := &gateway.RemoteStoreMock{}
	putRemote(t, remote, snapshotOf(b, c))
	locker := &fakeLocker{}
	syncer, store := newSyncer(t, remote, locker)

	require.NoError(t, store.Append(ctx, a))
	require.NoError(t, store.Append(ctx, b))

	result, err := syncer.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Result{LocalRows: 2, RemoteRows: 2, MergedRows: 3, RemoteSeen: true}, result)
	assert.Equal(t, 1, remote.Puts)
	assert.Equal(t, 1, locker.frees)

	for _, r := range []entity.TicketRecord{a, b, c} {
		_, found, err := store.FindByPublicToken(ctx, r.PublicToken)
		require.NoError(t, err)
		assert.True(t, found)
	}

	// the ledger stays appendable after a merge
	require.NoError(t, store.Append(ctx, record("d")))
}

// issuingLedger starts an issuance while the merge is in progress.
type issuingLedger struct {
	*ledger.FileStore
	issued chan error
}

func (l issuingLedger) Reconcile(ctx context.Context, fn func(local entity.Snapshot) (entity.Snapshot, error)) error {
	return l.FileStore.Reconcile(ctx, func(local entity.Snapshot) (entity.Snapshot, error) {
		go func() {
			l.issued <- l.FileStore.Append(ctx, record("issued-during-pull"))
		}()
		return fn(local)
	})
}

func TestSyncer_Pull_keeps_tickets_issued_during_merge(t *testing.T) {
	ctx := context.Background()

	remote := &gateway.RemoteStoreMock{}
	putRemote(t, remote, snapshotOf(record("remote")))

	store := ledger.NewFileStore(filepath.Join(t.TempDir(), "tickets.csv"))
	require.NoError(t, store.Append(ctx, record("local")))

	local := issuingLedger{FileStore: store, issued: make(chan error, 1)}
	syncer := reconcile.NewSyncer(local, remote, &fakeLocker{}, reconcile.Config{RemoteID: remoteID, Timeout: time.Second})

	_, err := syncer.Pull(ctx)
	require.NoError(t, err)

	select {
	case err := <-local.issued:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("issuance never finished")
	}

	for _, id := range []string{"local", "remote", "issued-during-pull"} {
		_, found, err := store.FindByPublicToken(ctx, entity.PublicToken(id))
		require.NoError(t, err)
		assert.True(t, found, "ticket %s lost", id)
	}
}

func TestSyncer_Push(t *testing.T) {
	ctx := context.Background()
	remote := &gateway.RemoteStoreMock{}
	syncer, store := newSyncer(t, remote, &fakeLocker{})

	require.NoError(t, store.Append(ctx, record("a")))

	t.Run("absent remote is created", func(t *testing.T) {
		result, err := syncer.Push(ctx)
		require.NoError(t, err)
		assert.False(t, result.RemoteSeen)
		assert.True(t, result.Uploaded)

		assert.Len(t, remoteSnapshot(t, remote).Rows, 1)
	})

	t.Run("push again is a no-op", func(t *testing.T) {
		before, err := store.Snapshot(ctx)
		require.NoError(t, err)

		result, err := syncer.Push(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.MergedRows)

		after, err := store.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Equal(t, before, remoteSnapshot(t, remote))
	})
}

func TestSyncer_both_empty(t *testing.T) {
	syncer, _ := newSyncer(t, &gateway.RemoteStoreMock{}, &fakeLocker{})

	_, err := syncer.Pull(context.Background())

	var schemaErr *entity.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestSyncer_transport_errors(t *testing.T) {
	ctx := context.Background()

	t.Run("get failure leaves the local ledger untouched", func(t *testing.T) {
		remote := &gateway.RemoteStoreMock{GetErr: errors.New("connection refused")}
		syncer, store := newSyncer(t, remote, &fakeLocker{})
		require.NoError(t, store.Append(ctx, record("a")))
		before, err := store.Snapshot(ctx)
		require.NoError(t, err)

		_, err = syncer.Pull(ctx)

		var transportErr *entity.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, "get", transportErr.Op)

		after, err := store.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("put failure", func(t *testing.T) {
		remote := &gateway.RemoteStoreMock{PutErr: errors.New("read only")}
		syncer, store := newSyncer(t, remote, &fakeLocker{})
		require.NoError(t, store.Append(ctx, record("a")))

		_, err := syncer.Push(ctx)

		var transportErr *entity.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, "put", transportErr.Op)
	})

	t.Run("timeout", func(t *testing.T) {
		store := ledger.NewFileStore(filepath.Join(t.TempDir(), "tickets.csv"))
		syncer := reconcile.NewSyncer(store, slowRemote{}, &fakeLocker{}, reconcile.Config{
			RemoteID: remoteID,
			Timeout:  50 * time.Millisecond,
		})

		_, err := syncer.Pull(ctx)

		var transportErr *entity.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSyncer_remote_schema_error(t *testing.T) {
	ctx := context.Background()
	remote := &gateway.RemoteStoreMock{}
	putRemote(t, remote, entity.Snapshot{Header: []string{"event_type"}, Rows: [][]string{{"Independencia"}}})

	syncer, store := newSyncer(t, remote, &fakeLocker{})
	require.NoError(t, store.Append(ctx, record("a")))

	_, err := syncer.Pull(ctx)

	var schemaErr *entity.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestSyncer_locked(t *testing.T) {
	syncer, _ := newSyncer(t, &gateway.RemoteStoreMock{}, &fakeLocker{refuse: true})

	_, err := syncer.Pull(context.Background())
	assert.ErrorIs(t, err, entity.ErrSyncInProgress)
}
