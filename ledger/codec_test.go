package ledger_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketledger/entity"
	"ticketledger/ledger"
)

func TestReadSnapshot(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		snapshot, err := ledger.ReadSnapshot(strings.NewReader(""))
		require.NoError(t, err)
		assert.True(t, snapshot.IsEmpty())
	})

	t.Run("header only", func(t *testing.T) {
		snapshot, err := ledger.ReadSnapshot(strings.NewReader("hashed_token;token_id\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"hashed_token", "token_id"}, snapshot.Header)
		assert.Empty(t, snapshot.Rows)
	})

	t.Run("byte order mark and ragged rows", func(t *testing.T) {
		snapshot, err := ledger.ReadSnapshot(strings.NewReader("\ufeffhashed_token;token_id\na;1\nb\n"))
		require.NoError(t, err)
		assert.Equal(t, entity.ColumnPublicToken, snapshot.Header[0])
		assert.Equal(t, [][]string{{"a", "1"}, {"b"}}, snapshot.Rows)
	})
}

func TestEncodeSnapshot(t *testing.T) {
	data, err := ledger.EncodeSnapshot(entity.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, data)

	snapshot := entity.Snapshot{
		Header: []string{"hashed_token", "nombre"},
		Rows:   [][]string{{"a", "Ana; María"}, {"b", ""}},
	}
	data, err = ledger.EncodeSnapshot(snapshot)
	require.NoError(t, err)
	assert.Equal(t, "hashed_token;nombre\na;\"Ana; María\"\nb;\n", string(data))

	decoded, err := ledger.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snapshot, decoded)
}
