package entity

import "time"

type Scan struct {
	ScanID      string    `db:"scan_id"`
	PublicToken string    `db:"public_token"`
	Found       bool      `db:"found"`
	ScannedAt   time.Time `db:"scanned_at"`
}
