package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketledger/clock"
	"ticketledger/entity"
)

// Backuper saves the current ledger file before it gets replaced.
// It returns where the copy went, or "" when there was nothing to save.
type Backuper interface {
	Backup(ctx context.Context, ledgerPath string) (string, error)
}

type DirBackup struct {
	Dir   string
	Clock clock.Clock
}

func NewDirBackup(dir string, clk clock.Clock) DirBackup {
	return DirBackup{Dir: dir, Clock: clk}
}

func (b DirBackup) Backup(ctx context.Context, ledgerPath string) (string, error) {
	src, err := os.Open(ledgerPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &entity.IOError{Op: "backup", Path: ledgerPath, Err: err}
	}
	defer src.Close()

	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", &entity.IOError{Op: "backup", Path: b.Dir, Err: err}
	}

	dst, backupPath, err := b.create()
	if err != nil {
		return "", &entity.IOError{Op: "backup", Path: b.Dir, Err: err}
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", &entity.IOError{Op: "backup", Path: backupPath, Err: err}
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return "", &entity.IOError{Op: "backup", Path: backupPath, Err: err}
	}
	if err := dst.Close(); err != nil {
		return "", &entity.IOError{Op: "backup", Path: backupPath, Err: err}
	}

	log.FromContext(ctx).WithField("backup_path", backupPath).Info("Ledger backed up")

	return backupPath, nil
}

// create never overwrites an earlier backup taken within the same second.
func (b DirBackup) create() (*os.File, string, error) {
	stamp := b.Clock.Now().Format("20060102_150405")

	for attempt := 0; ; attempt++ {
		name := fmt.Sprintf("tickets_backup_%s.csv", stamp)
		if attempt > 0 {
			name = fmt.Sprintf("tickets_backup_%s_%d.csv", stamp, attempt)
		}
		backupPath := filepath.Join(b.Dir, name)

		f, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return f, backupPath, err
	}
}
