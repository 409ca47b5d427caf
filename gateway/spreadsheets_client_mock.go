package gateway

import (
	"context"
	"sync"
)

type SpreadsheetsMock struct {
	lock sync.Mutex
	rows map[string][][]string
}

func (s *SpreadsheetsMock) AppendRow(ctx context.Context, sheetName string, row []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.rows == nil {
		s.rows = make(map[string][][]string)
	}
	s.rows[sheetName] = append(s.rows[sheetName], row)

	return nil
}

func (s *SpreadsheetsMock) Rows(sheetName string) [][]string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([][]string(nil), s.rows[sheetName]...)
}
