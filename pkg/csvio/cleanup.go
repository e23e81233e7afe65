package csvio

import (
	"errors"
	"fmt"

	"github.com/menta2k/annotation-review/pkg/types"
)

// RequiredColumns can never be removed during cleanup
var RequiredColumns = []string{"image", "selectionsData"}

// ErrRequiredColumn is returned when cleanup tries to drop a required column
var ErrRequiredColumn = errors.New("column is required")

// DeleteColumns returns a copy of t without the named columns
func DeleteColumns(t types.Table, names []string) (types.Table, error) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		for _, req := range RequiredColumns {
			if n == req {
				return t, fmt.Errorf("cannot delete %q: %w", n, ErrRequiredColumn)
			}
		}
		drop[n] = struct{}{}
	}

	out := types.Table{Columns: make([]string, 0, len(t.Columns)), Rows: make([]types.Row, len(t.Rows))}
	for _, c := range t.Columns {
		if _, ok := drop[c]; !ok {
			out.Columns = append(out.Columns, c)
		}
	}
	for i, row := range t.Rows {
		nr := make(types.Row, len(row))
		for k, v := range row {
			if _, ok := drop[k]; !ok {
				nr[k] = v
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// DeleteRows returns a copy of t without the rows at the given indices.
// Out of range indices are ignored.
func DeleteRows(t types.Table, indices []int) types.Table {
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		drop[i] = struct{}{}
	}

	out := types.Table{Columns: append([]string(nil), t.Columns...), Rows: make([]types.Row, 0, len(t.Rows))}
	for i, row := range t.Rows {
		if _, ok := drop[i]; ok {
			continue
		}
		nr := make(types.Row, len(row))
		for k, v := range row {
			nr[k] = v
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}
