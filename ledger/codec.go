package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"ticketledger/entity"
)

const Separator = ';'

// ReadSnapshot parses a ledger table. An empty input yields an empty snapshot.
func ReadSnapshot(r io.Reader) (entity.Snapshot, error) {
	reader := csv.NewReader(r)
	reader.Comma = Separator
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return entity.Snapshot{}, nil
	}
	if err != nil {
		return entity.Snapshot{}, err
	}
	header[0] = trimBOM(header[0])

	rows, err := reader.ReadAll()
	if err != nil {
		return entity.Snapshot{}, err
	}

	return entity.Snapshot{Header: header, Rows: rows}, nil
}

func WriteSnapshot(w io.Writer, snapshot entity.Snapshot) error {
	if snapshot.IsEmpty() {
		return nil
	}

	writer := csv.NewWriter(w)
	writer.Comma = Separator

	if err := writer.Write(snapshot.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(snapshot.Rows); err != nil {
		return err
	}

	return writer.Error()
}

func EncodeSnapshot(snapshot entity.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeSnapshot(data []byte) (entity.Snapshot, error) {
	return ReadSnapshot(bytes.NewReader(data))
}

// spreadsheet exports of the ledger tend to start with a UTF-8 BOM
func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
