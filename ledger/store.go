package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	"ticketledger/entity"
)

// FileStore is the append-only ticket ledger kept in a single delimited file.
//
// Every operation holds a process mutex and an exclusive flock on a sidecar
// "<path>.lock" file, so several issuer processes on the same host can share
// one ledger. Lookups go through an in-memory index that is rebuilt whenever
// the file size or modification time changes under us.
type FileStore struct {
	path string

	mu    sync.Mutex
	index *index
}

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func (s fileStamp) equal(other fileStamp) bool {
	return s.exists == other.exists && s.size == other.size && s.modTime.Equal(other.modTime)
}

type index struct {
	stamp    fileStamp
	snapshot entity.Snapshot
	byToken  map[string]int
	ids      map[string]struct{}

	endsWithNewline bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Tx is a view of the ledger valid while the store lock is held.
type Tx struct {
	store *FileStore
	index *index
}

func (tx *Tx) Exists(ctx context.Context, uniqueID string) (bool, error) {
	_, ok := tx.index.ids[uniqueID]
	return ok, nil
}

func (tx *Tx) Append(ctx context.Context, record entity.TicketRecord) error {
	return tx.store.appendLocked(ctx, tx.index, record)
}

// Update runs fn with the ledger locked, so a uniqueness check and the append
// that follows it cannot interleave with another writer.
func (s *FileStore) Update(ctx context.Context, fn func(tx *Tx) error) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	idx, err := s.load()
	if err != nil {
		return err
	}

	return fn(&Tx{store: s, index: idx})
}

func (s *FileStore) Append(ctx context.Context, record entity.TicketRecord) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Append(ctx, record)
	})
}

func (s *FileStore) Exists(ctx context.Context, uniqueID string) (bool, error) {
	var exists bool
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		exists, err = tx.Exists(ctx, uniqueID)
		return err
	})
	return exists, err
}

func (s *FileStore) FindByPublicToken(ctx context.Context, publicToken string) (entity.TicketRecord, bool, error) {
	unlock, err := s.lock()
	if err != nil {
		return entity.TicketRecord{}, false, err
	}
	defer unlock()

	idx, err := s.load()
	if err != nil {
		return entity.TicketRecord{}, false, err
	}

	rowIdx, ok := idx.byToken[publicToken]
	if !ok {
		return entity.TicketRecord{}, false, nil
	}

	record, err := entity.TicketRecordFromRow(idx.snapshot.Header, idx.snapshot.Rows[rowIdx])
	if err != nil {
		return entity.TicketRecord{}, false, &entity.SchemaError{Reason: fmt.Sprintf("row %d: %s", rowIdx+1, err)}
	}

	return record, true, nil
}

// LoadAll returns the records in insertion order.
func (s *FileStore) LoadAll(ctx context.Context) ([]entity.TicketRecord, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Records()
}

func (s *FileStore) Snapshot(ctx context.Context) (entity.Snapshot, error) {
	unlock, err := s.lock()
	if err != nil {
		return entity.Snapshot{}, err
	}
	defer unlock()

	idx, err := s.load()
	if err != nil {
		return entity.Snapshot{}, err
	}

	return copySnapshot(idx.snapshot), nil
}

// WriteSnapshot swaps the whole ledger for snapshot through a temporary file,
// so a failed write leaves the previous ledger untouched.
func (s *FileStore) WriteSnapshot(ctx context.Context, snapshot entity.Snapshot) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	return s.writeLocked(snapshot)
}

// Reconcile reads the ledger, lets fn derive its replacement and writes it
// back without releasing the store lock, so no append can land between the
// read and the write. When fn fails the ledger is left as it was.
func (s *FileStore) Reconcile(ctx context.Context, fn func(local entity.Snapshot) (entity.Snapshot, error)) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	idx, err := s.load()
	if err != nil {
		return err
	}

	replacement, err := fn(copySnapshot(idx.snapshot))
	if err != nil {
		return err
	}

	return s.writeLocked(replacement)
}

// ReplaceAll is the administrative overwrite. The backup has to succeed before
// anything is written.
func (s *FileStore) ReplaceAll(ctx context.Context, snapshot entity.Snapshot, backup Backuper) (string, error) {
	if backup == nil {
		return "", entity.ErrBackupRequired
	}
	if snapshot.ColumnIndex(entity.ColumnPublicToken) < 0 {
		return "", &entity.SchemaError{Reason: fmt.Sprintf("replacement ledger has no %s column", entity.ColumnPublicToken)}
	}

	unlock, err := s.lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	backupPath, err := backup.Backup(ctx, s.path)
	if err != nil {
		return "", fmt.Errorf("could not back up ledger, not replacing it: %w", err)
	}

	if err := s.writeLocked(snapshot); err != nil {
		return backupPath, err
	}

	log.FromContext(ctx).
		WithField("rows", len(snapshot.Rows)).
		WithField("backup_path", backupPath).
		Info("Ledger replaced")

	return backupPath, nil
}

func (s *FileStore) writeLocked(snapshot entity.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return &entity.IOError{Op: "encode", Path: s.path, Err: err}
	}

	s.index = nil
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return &entity.IOError{Op: "write", Path: s.path, Err: err}
	}

	return nil
}

func (s *FileStore) appendLocked(ctx context.Context, idx *index, record entity.TicketRecord) error {
	if !record.HasConsistentToken() {
		return entity.ErrTokenMismatch
	}
	if _, ok := idx.ids[record.UniqueID]; ok {
		return entity.ErrDuplicateTicket
	}

	header := idx.snapshot.Header
	newLedger := len(header) == 0
	if newLedger {
		header = entity.LedgerHeader
	} else {
		for _, column := range []string{entity.ColumnPublicToken, entity.ColumnUniqueID} {
			if idx.snapshot.ColumnIndex(column) < 0 {
				return &entity.SchemaError{Reason: fmt.Sprintf("ledger has no %s column", column)}
			}
		}
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return &entity.IOError{Op: "append", Path: s.path, Err: err}
	}

	var buf bytes.Buffer
	if !newLedger && !idx.endsWithNewline {
		buf.WriteByte('\n')
	}
	writer := csv.NewWriter(&buf)
	writer.Comma = Separator
	if newLedger {
		_ = writer.Write(header)
	}
	row := record.Row(header)
	_ = writer.Write(row)
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return &entity.IOError{Op: "append", Path: s.path, Err: err}
	}

	// whatever happens below, the cached view can no longer be trusted
	s.index = nil

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return &entity.IOError{Op: "append", Path: s.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &entity.IOError{Op: "sync", Path: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &entity.IOError{Op: "append", Path: s.path, Err: err}
	}

	stamp, err := s.stat()
	if err != nil {
		return err
	}

	idx.snapshot.Header = header
	idx.snapshot.Rows = append(idx.snapshot.Rows, row)
	idx.add(len(idx.snapshot.Rows) - 1)
	idx.stamp = stamp
	idx.endsWithNewline = true
	s.index = idx

	log.FromContext(ctx).WithField("event_type", record.EventType).Debug("Ticket appended to ledger")

	return nil
}

func (s *FileStore) lock() (func(), error) {
	s.mu.Lock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return nil, &entity.IOError{Op: "lock", Path: s.path, Err: err}
	}

	lockFile, err := os.OpenFile(s.path+".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		s.mu.Unlock()
		return nil, &entity.IOError{Op: "lock", Path: s.path, Err: err}
	}

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		lockFile.Close()
		s.mu.Unlock()
		return nil, &entity.IOError{Op: "lock", Path: s.path, Err: err}
	}

	return func() {
		_ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
		lockFile.Close()
		s.mu.Unlock()
	}, nil
}

func (s *FileStore) stat() (fileStamp, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileStamp{}, nil
	}
	if err != nil {
		return fileStamp{}, &entity.IOError{Op: "stat", Path: s.path, Err: err}
	}

	return fileStamp{exists: true, size: info.Size(), modTime: info.ModTime()}, nil
}

// load returns the cached index, re-reading the file if it changed since.
func (s *FileStore) load() (*index, error) {
	stamp, err := s.stat()
	if err != nil {
		return nil, err
	}

	if s.index != nil && s.index.stamp.equal(stamp) {
		return s.index, nil
	}

	idx := &index{stamp: stamp, endsWithNewline: true}

	if stamp.exists {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return nil, &entity.IOError{Op: "read", Path: s.path, Err: err}
		}

		idx.snapshot, err = ReadSnapshot(bytes.NewReader(data))
		if err != nil {
			return nil, &entity.IOError{Op: "read", Path: s.path, Err: err}
		}
		idx.endsWithNewline = len(data) == 0 || data[len(data)-1] == '\n'
	}

	idx.byToken = make(map[string]int, len(idx.snapshot.Rows))
	idx.ids = make(map[string]struct{}, len(idx.snapshot.Rows))
	for i := range idx.snapshot.Rows {
		idx.add(i)
	}

	s.index = idx

	return idx, nil
}

func (idx *index) add(rowIdx int) {
	row := idx.snapshot.Rows[rowIdx]

	if tokenIdx := idx.snapshot.ColumnIndex(entity.ColumnPublicToken); tokenIdx >= 0 && tokenIdx < len(row) && row[tokenIdx] != "" {
		if _, ok := idx.byToken[row[tokenIdx]]; !ok {
			idx.byToken[row[tokenIdx]] = rowIdx
		}
	}
	if idIdx := idx.snapshot.ColumnIndex(entity.ColumnUniqueID); idIdx >= 0 && idIdx < len(row) {
		idx.ids[row[idIdx]] = struct{}{}
	}
}

func copySnapshot(snapshot entity.Snapshot) entity.Snapshot {
	out := entity.Snapshot{
		Header: append([]string(nil), snapshot.Header...),
		Rows:   make([][]string, len(snapshot.Rows)),
	}
	for i, row := range snapshot.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}
