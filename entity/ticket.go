package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	ColumnPublicToken = "hashed_token"
	ColumnUniqueID    = "token_id"
	ColumnEventType   = "event_type"
	ColumnEventDate   = "date"
	ColumnAdults      = "adults"
	ColumnChildren    = "children"
	ColumnCreatedAt   = "generated_at"
	ColumnArtifact    = "ticket_filename"
	ColumnHolderName  = "nombre"

	DateLayout = "2006-01-02"
)

// LedgerHeader is the column layout of a freshly created ledger.
var LedgerHeader = []string{
	ColumnPublicToken,
	ColumnUniqueID,
	ColumnEventType,
	ColumnEventDate,
	ColumnAdults,
	ColumnChildren,
	ColumnCreatedAt,
	ColumnArtifact,
	ColumnHolderName,
}

var DefaultEventTypes = []string{"Independencia", "Dia de Muertos"}

type TicketRecord struct {
	PublicToken  string    `json:"public_token"`
	UniqueID     string    `json:"unique_id"`
	EventType    string    `json:"event_type"`
	EventDate    string    `json:"event_date"`
	Adults       int       `json:"adults"`
	Children     int       `json:"children"`
	CreatedAt    time.Time `json:"created_at"`
	ArtifactPath string    `json:"artifact_path"`
	HolderName   string    `json:"holder_name"`
}

// PublicToken derives the printable token from a unique id.
func PublicToken(uniqueID string) string {
	sum := sha256.Sum256([]byte(uniqueID))
	return hex.EncodeToString(sum[:])
}

func (r TicketRecord) HasConsistentToken() bool {
	return r.PublicToken == PublicToken(r.UniqueID)
}

// Row lays the record out in the column order of header. Unknown columns are left empty.
func (r TicketRecord) Row(header []string) []string {
	row := make([]string, len(header))
	for i, column := range header {
		switch column {
		case ColumnPublicToken:
			row[i] = r.PublicToken
		case ColumnUniqueID:
			row[i] = r.UniqueID
		case ColumnEventType:
			row[i] = r.EventType
		case ColumnEventDate:
			row[i] = r.EventDate
		case ColumnAdults:
			row[i] = strconv.Itoa(r.Adults)
		case ColumnChildren:
			row[i] = strconv.Itoa(r.Children)
		case ColumnCreatedAt:
			if !r.CreatedAt.IsZero() {
				row[i] = r.CreatedAt.Format(time.RFC3339Nano)
			}
		case ColumnArtifact:
			row[i] = r.ArtifactPath
		case ColumnHolderName:
			row[i] = r.HolderName
		}
	}
	return row
}

// TicketRecordFromRow reads a record from a raw ledger row described by header.
func TicketRecordFromRow(header, row []string) (TicketRecord, error) {
	var (
		r   TicketRecord
		err error
	)

	for i, column := range header {
		if i >= len(row) {
			break
		}
		value := row[i]

		switch column {
		case ColumnPublicToken:
			r.PublicToken = value
		case ColumnUniqueID:
			r.UniqueID = value
		case ColumnEventType:
			r.EventType = value
		case ColumnEventDate:
			r.EventDate = value
		case ColumnAdults:
			r.Adults, err = parseCount(column, value)
		case ColumnChildren:
			r.Children, err = parseCount(column, value)
		case ColumnCreatedAt:
			r.CreatedAt, err = parseCreatedAt(value)
		case ColumnArtifact:
			r.ArtifactPath = value
		case ColumnHolderName:
			r.HolderName = value
		}
		if err != nil {
			return TicketRecord{}, err
		}
	}

	return r, nil
}

func parseCount(column, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not an integer", column, value)
	}
	return n, nil
}

// parseCreatedAt also accepts the zone-less timestamps of older ledgers.
func parseCreatedAt(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("column %s: %q is not a timestamp", ColumnCreatedAt, value)
}

// PublicTicket is what an anonymous scanner may see.
type PublicTicket struct {
	EventType string `json:"event_type"`
	EventDate string `json:"event_date"`
	Adults    int    `json:"adults"`
	Children  int    `json:"children"`
}

func (r TicketRecord) Public() PublicTicket {
	return PublicTicket{
		EventType: r.EventType,
		EventDate: r.EventDate,
		Adults:    r.Adults,
		Children:  r.Children,
	}
}
