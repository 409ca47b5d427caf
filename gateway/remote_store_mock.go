package gateway

import (
	"context"
	"sync"
)

// RemoteStoreMock is an in-memory blob store. Setting GetErr or PutErr makes
// the matching call fail.
type RemoteStoreMock struct {
	lock  sync.Mutex
	blobs map[string][]byte

	GetErr error
	PutErr error
	Puts   int
}

func (m *RemoteStoreMock) Get(ctx context.Context, id string) ([]byte, bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.GetErr != nil {
		return nil, false, m.GetErr
	}

	data, ok := m.blobs[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *RemoteStoreMock) Put(ctx context.Context, id string, data []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.PutErr != nil {
		return m.PutErr
	}

	if m.blobs == nil {
		m.blobs = make(map[string][]byte)
	}
	m.blobs[id] = append([]byte(nil), data...)
	m.Puts++

	return nil
}
