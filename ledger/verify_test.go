package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketledger/entity"
	"ticketledger/ledger"
)

func TestVerify(t *testing.T) {
	good := newRecord("")
	header := entity.LedgerHeader

	snapshot := entity.Snapshot{
		Header: header,
		Rows: [][]string{
			good.Row(header),
			{"0000", "other-id", "Independencia"},
			good.Row(header),
			{"short"},
		},
	}

	violations, err := ledger.Verify(snapshot)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Violation{
		{Row: 2, Reason: entity.ErrTokenMismatch.Error()},
		{Row: 3, Reason: "unique id repeats row 1"},
		{Row: 4, Reason: "row is missing key columns"},
	}, violations)
}

func TestVerify_schema(t *testing.T) {
	_, err := ledger.Verify(entity.Snapshot{Header: []string{entity.ColumnPublicToken}})

	var schemaErr *entity.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}
