package entity

import (
	"fmt"
	"slices"
)

// Snapshot is a full raw read of a ledger. Rows keep every column, including
// ones this service does not know about.
type Snapshot struct {
	Header []string
	Rows   [][]string
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Header) == 0
}

// ColumnIndex returns -1 when the column is missing.
func (s Snapshot) ColumnIndex(name string) int {
	return slices.Index(s.Header, name)
}

func (s Snapshot) Records() ([]TicketRecord, error) {
	records := make([]TicketRecord, 0, len(s.Rows))
	for i, row := range s.Rows {
		record, err := TicketRecordFromRow(s.Header, row)
		if err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("row %d: %s", i+1, err)}
		}
		records = append(records, record)
	}
	return records, nil
}
