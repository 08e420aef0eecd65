package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// MaxHeaderSearchRows bounds how far into a CSV the header row may start.
// Exports often carry a title block above the table.
var MaxHeaderSearchRows = 20

// headerAnchor must appear in the header row.
const headerAnchor = "customer_code"

// ErrHeaderNotFound is returned when no header row is found.
var ErrHeaderNotFound = errors.New("header row with customer_code not found")

// ErrMalformedCSV wraps parse errors from the CSV reader.
var ErrMalformedCSV = errors.New("malformed csv")

// headerIndex maps a column position to its record field name.
type headerIndex map[int]string

func decodeCSV(ctx context.Context, r io.Reader) ([]core.OutletRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		header  headerIndex
		records []core.OutletRecord
		line    int
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(ErrMalformedCSV, err)
		}
		line++

		if line%core.ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if header == nil {
			if idx, ok := matchHeader(row); ok {
				header = idx
				continue
			}
			if line >= MaxHeaderSearchRows {
				return nil, ErrHeaderNotFound
			}
			continue
		}

		if isEmptyRow(row) {
			continue
		}
		records = append(records, header.record(row))
	}

	if header == nil {
		return nil, ErrHeaderNotFound
	}
	return records, nil
}

// matchHeader reports whether row is the header row and indexes its
// known columns.
func matchHeader(row []string) (headerIndex, bool) {
	idx := make(headerIndex, len(row))
	anchored := false
	for i, cell := range row {
		name := CleanHeader(cell)
		if _, known := recordFields[name]; !known {
			continue
		}
		idx[i] = name
		if name == headerAnchor {
			anchored = true
		}
	}
	return idx, anchored
}

func (h headerIndex) record(row []string) core.OutletRecord {
	var rec core.OutletRecord
	for i, cell := range row {
		if name, ok := h[i]; ok {
			setField(&rec, name, CleanCell(cell))
		}
	}
	return rec
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
