package ledger

import (
	"fmt"

	"ticketledger/entity"
)

type Violation struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Verify reports rows breaking the ledger invariants: the public token must be
// the digest of the unique id, and unique ids must not repeat.
func Verify(snapshot entity.Snapshot) ([]Violation, error) {
	tokenIdx := snapshot.ColumnIndex(entity.ColumnPublicToken)
	idIdx := snapshot.ColumnIndex(entity.ColumnUniqueID)
	if tokenIdx < 0 || idIdx < 0 {
		return nil, &entity.SchemaError{Reason: fmt.Sprintf(
			"ledger needs both %s and %s columns", entity.ColumnPublicToken, entity.ColumnUniqueID,
		)}
	}

	var violations []Violation
	seen := make(map[string]int, len(snapshot.Rows))

	for i, row := range snapshot.Rows {
		rowNumber := i + 1
		if len(row) <= tokenIdx || len(row) <= idIdx {
			violations = append(violations, Violation{Row: rowNumber, Reason: "row is missing key columns"})
			continue
		}

		uniqueID := row[idIdx]
		if entity.PublicToken(uniqueID) != row[tokenIdx] {
			violations = append(violations, Violation{Row: rowNumber, Reason: entity.ErrTokenMismatch.Error()})
		}
		if first, ok := seen[uniqueID]; ok {
			violations = append(violations, Violation{
				Row:    rowNumber,
				Reason: fmt.Sprintf("unique id repeats row %d", first),
			})
			continue
		}
		seen[uniqueID] = rowNumber
	}

	return violations, nil
}
