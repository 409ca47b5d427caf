package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ticketledger/entity"
	"ticketledger/pubsub/command"
	"ticketledger/reconcile"
)

type syncerStub struct {
	err    error
	pulls  int
	pushes int
}

func (s *syncerStub) Pull(ctx context.Context) (reconcile.Result, error) {
	s.pulls++
	return reconcile.Result{}, s.err
}

func (s *syncerStub) Push(ctx context.Context) (reconcile.Result, error) {
	s.pushes++
	return reconcile.Result{Uploaded: s.err == nil}, s.err
}

func TestSyncLedgerHandler(t *testing.T) {
	testCases := []struct {
		name       string
		direction  string
		syncErr    error
		wantErr    bool
		wantPulls  int
		wantPushes int
	}{
		{name: "pull", direction: entity.SyncDirectionPull, wantPulls: 1},
		{name: "push", direction: entity.SyncDirectionPush, wantPushes: 1},
		{name: "unknown direction is dropped", direction: "sideways"},
		{name: "sync in progress is not retried", direction: entity.SyncDirectionPush, syncErr: entity.ErrSyncInProgress, wantPushes: 1},
		{name: "schema error is not retried", direction: entity.SyncDirectionPull, syncErr: &entity.SchemaError{Reason: "no key"}, wantPulls: 1},
		{
			name:      "transport error is retried",
			direction: entity.SyncDirectionPull,
			syncErr:   &entity.TransportError{Op: "get", ID: "ledger", Err: errors.New("timeout")},
			wantErr:   true,
			wantPulls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			syncer := &syncerStub{err: tc.syncErr}
			h := command.NewHandler(syncer)

			err := h.SyncLedgerHandler().Handle(context.Background(), &entity.SyncLedger{
				Header:    entity.NewEventHeader(),
				Direction: tc.direction,
			})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantPulls, syncer.pulls)
			assert.Equal(t, tc.wantPushes, syncer.pushes)
		})
	}
}
