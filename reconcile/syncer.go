package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ticketledger/entity"
	"ticketledger/ledger"
	"ticketledger/metrics"
)

// RemoteStore is an opaque blob store holding the remote copy of the ledger.
// A missing blob is reported with found=false, not with an error.
type RemoteStore interface {
	Get(ctx context.Context, id string) (data []byte, found bool, err error)
	Put(ctx context.Context, id string, data []byte) error
}

// LocalLedger hands fn the current ledger and stores what fn returns as one
// unit, blocking other writers in between.
type LocalLedger interface {
	Reconcile(ctx context.Context, fn func(local entity.Snapshot) (entity.Snapshot, error)) error
}

// Locker serializes reconciliations across processes. Lock returns
// entity.ErrSyncInProgress when somebody else holds it.
type Locker interface {
	Lock(ctx context.Context) (unlock func(ctx context.Context) error, err error)
}

type Config struct {
	RemoteID string
	// Timeout bounds every single remote call.
	Timeout time.Duration
}

type Result struct {
	LocalRows  int  `json:"local_rows"`
	RemoteRows int  `json:"remote_rows"`
	MergedRows int  `json:"merged_rows"`
	RemoteSeen bool `json:"remote_seen"`
	Uploaded   bool `json:"uploaded"`
}

type Syncer struct {
	local  LocalLedger
	remote RemoteStore
	locker Locker
	config Config

	mu sync.Mutex
}

func NewSyncer(local LocalLedger, remote RemoteStore, locker Locker, config Config) *Syncer {
	if local == nil {
		panic("missing local")
	}
	if remote == nil {
		panic("missing remote")
	}
	if locker == nil {
		panic("missing locker")
	}
	if config.RemoteID == "" {
		panic("missing remote id")
	}

	return &Syncer{
		local:  local,
		remote: remote,
		locker: locker,
		config: config,
	}
}

// Pull merges the remote ledger into the local one.
func (s *Syncer) Pull(ctx context.Context) (Result, error) {
	return s.run(ctx, entity.SyncDirectionPull)
}

// Push merges like Pull and then uploads the merged ledger.
func (s *Syncer) Push(ctx context.Context) (Result, error) {
	return s.run(ctx, entity.SyncDirectionPush)
}

func (s *Syncer) run(ctx context.Context, direction string) (result Result, err error) {
	if !s.mu.TryLock() {
		return Result{}, entity.ErrSyncInProgress
	}
	defer s.mu.Unlock()

	ctx, span := otel.Tracer("reconcile").Start(ctx, "ledger "+direction)
	span.SetAttributes(attribute.String("remote_id", s.config.RemoteID))
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.Reconciliations.WithLabelValues(direction, outcome).Inc()
		metrics.ReconciliationDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
	}()

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if unlockErr := unlock(context.WithoutCancel(ctx)); unlockErr != nil {
			log.FromContext(ctx).WithError(unlockErr).Warn("Could not release reconciliation lock")
		}
	}()

	remote, found, err := s.fetchRemote(ctx)
	if err != nil {
		return Result{}, err
	}

	var merged entity.Snapshot
	err = s.local.Reconcile(ctx, func(local entity.Snapshot) (entity.Snapshot, error) {
		var err error
		merged, err = Merge(local, remote)
		if err != nil {
			return entity.Snapshot{}, err
		}
		if merged.IsEmpty() {
			return entity.Snapshot{}, &entity.SchemaError{Reason: "no header found in either local or remote ledger"}
		}

		result = Result{
			LocalRows:  len(local.Rows),
			RemoteRows: len(remote.Rows),
			MergedRows: len(merged.Rows),
			RemoteSeen: found,
		}
		return merged, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("could not reconcile local ledger: %w", err)
	}

	if direction == entity.SyncDirectionPush {
		if err := s.putRemote(ctx, merged); err != nil {
			return result, err
		}
		result.Uploaded = true
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"direction":   direction,
		"local_rows":  result.LocalRows,
		"remote_rows": result.RemoteRows,
		"merged_rows": result.MergedRows,
		"remote_seen": result.RemoteSeen,
	}).Info("Ledger reconciled")

	return result, nil
}

// fetchRemote treats a remote that does not exist yet as an empty ledger.
func (s *Syncer) fetchRemote(ctx context.Context) (entity.Snapshot, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, found, err := s.remote.Get(ctx, s.config.RemoteID)
	if err != nil {
		return entity.Snapshot{}, false, &entity.TransportError{Op: "get", ID: s.config.RemoteID, Err: err}
	}
	if !found {
		log.FromContext(ctx).WithField("remote_id", s.config.RemoteID).Info("Remote ledger does not exist yet")
		return entity.Snapshot{}, false, nil
	}

	snapshot, err := ledger.DecodeSnapshot(data)
	if err != nil {
		return entity.Snapshot{}, true, &entity.SchemaError{Reason: "remote ledger is not a valid table: " + err.Error()}
	}

	return snapshot, true, nil
}

func (s *Syncer) putRemote(ctx context.Context, snapshot entity.Snapshot) error {
	data, err := ledger.EncodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("could not encode merged ledger: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.remote.Put(ctx, s.config.RemoteID, data); err != nil {
		return &entity.TransportError{Op: "put", ID: s.config.RemoteID, Err: err}
	}

	return nil
}

func (s *Syncer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}
