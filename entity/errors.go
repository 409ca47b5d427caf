package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateTicket = errors.New("unique id already present in ledger")
	ErrTokenMismatch   = errors.New("public token does not match unique id")
	ErrSyncInProgress  = errors.New("ledger reconciliation already in progress")
	ErrBackupRequired  = errors.New("backup step is required before replacing the ledger")
)

// ValidationError carries every problem found in a request, not just the first one.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid ticket request: " + strings.Join(e.Problems, " ")
}

type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "ledger schema: " + e.Reason
}

type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("ledger %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// TransportError is returned for remote store failures, timeouts included.
// Callers decide whether to retry.
type TransportError struct {
	Op  string
	ID  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s %s: %s", e.Op, e.ID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
