package reconcile

import (
	"fmt"
	"slices"
	"sort"

	"ticketledger/entity"
)

// Merge combines the local and remote ledgers into one snapshot keyed by
// public token.
//
// The local header wins when present. Every remote row is taken first and then
// overwritten by the local row with the same key, so on a collision the local
// copy is kept even if the remote one was edited later. Rows are returned
// sorted by key. Only two-way merges are defined.
func Merge(local, remote entity.Snapshot) (entity.Snapshot, error) {
	header := local.Header
	if len(header) == 0 {
		header = remote.Header
	}
	if len(header) == 0 {
		return entity.Snapshot{}, nil
	}

	keyIdx := slices.Index(header, entity.ColumnPublicToken)
	if keyIdx < 0 {
		return entity.Snapshot{}, &entity.SchemaError{
			Reason: fmt.Sprintf("ledger must have a %q column in the header", entity.ColumnPublicToken),
		}
	}

	merged := make(map[string][]string, len(local.Rows)+len(remote.Rows))

	if !remote.IsEmpty() {
		remoteKeyIdx := remote.ColumnIndex(entity.ColumnPublicToken)
		if remoteKeyIdx < 0 {
			return entity.Snapshot{}, &entity.SchemaError{
				Reason: fmt.Sprintf("remote ledger must have a %q column in the header", entity.ColumnPublicToken),
			}
		}

		project := projection(remote.Header, header)
		for _, row := range remote.Rows {
			if len(row) <= remoteKeyIdx {
				continue
			}
			merged[row[remoteKeyIdx]] = project(row)
		}
	}

	for _, row := range local.Rows {
		if len(row) <= keyIdx {
			continue
		}
		merged[row[keyIdx]] = append([]string(nil), row...)
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, merged[key])
	}

	return entity.Snapshot{
		Header: append([]string(nil), header...),
		Rows:   rows,
	}, nil
}

// projection maps rows laid out by from onto the columns of to, by column name.
func projection(from, to []string) func(row []string) []string {
	if slices.Equal(from, to) {
		return func(row []string) []string {
			return append([]string(nil), row...)
		}
	}

	sourceIdx := make([]int, len(to))
	for i, column := range to {
		sourceIdx[i] = slices.Index(from, column)
	}

	return func(row []string) []string {
		out := make([]string, len(to))
		for i, src := range sourceIdx {
			if src >= 0 && src < len(row) {
				out[i] = row[src]
			}
		}
		return out
	}
}
