package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"published_at"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

// TicketIssued is published once the record is durable in the ledger.
type TicketIssued struct {
	Header       EventHeader `json:"header"`
	PublicToken  string      `json:"public_token"`
	EventType    string      `json:"event_type"`
	EventDate    string      `json:"event_date"`
	Adults       int         `json:"adults"`
	Children     int         `json:"children"`
	HolderName   string      `json:"holder_name"`
	ArtifactPath string      `json:"artifact_path"`
	IssuedAt     time.Time   `json:"issued_at"`
}

type TicketPrinted struct {
	Header       EventHeader `json:"header"`
	PublicToken  string      `json:"public_token"`
	ArtifactPath string      `json:"artifact_path"`
}

type TicketScanned struct {
	Header      EventHeader `json:"header"`
	ScanID      string      `json:"scan_id"`
	PublicToken string      `json:"public_token"`
	Found       bool        `json:"found"`
	ScannedAt   time.Time   `json:"scanned_at"`
}

// SyncLedger asks the reconciliation worker to merge the ledger with its remote copy.
type SyncLedger struct {
	Header    EventHeader `json:"header"`
	Direction string      `json:"direction"`
}

const (
	SyncDirectionPull = "pull"
	SyncDirectionPush = "push"
)

// StoredEvent is an event as kept in the event log, payload untouched.
type StoredEvent struct {
	ID          string    `db:"event_id"`
	PublishedAt time.Time `db:"published_at"`
	Name        string    `db:"event_name"`
	Payload     []byte    `db:"event_payload"`
}
