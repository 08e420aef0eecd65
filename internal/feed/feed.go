// Package feed decodes outlet master feeds into records.
//
// Feeds arrive as a JSON array of objects or as a CSV export. Both are read
// through the same cleaning layer: a leading UTF-8 byte order mark is
// dropped, ill-formed UTF-8 becomes U+FFFD, and cell text is NFC-normalized.
package feed

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// Format identifies a feed encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnknownFormat is returned when a feed is neither JSON nor CSV.
var ErrUnknownFormat = errors.New("unknown feed format")

// ErrEmptyFeed is returned for a feed with no records.
var ErrEmptyFeed = errors.New("feed contains no records")

// ParseFormat maps a format name or media type to a Format.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		s = mt
	}
	switch s {
	case "json", "application/json", "text/json":
		return FormatJSON, nil
	case "csv", "text/csv", "application/csv", "application/vnd.ms-excel":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Decode reads every record from r. An empty format sniffs the first
// non-blank byte: '[' or '{' is JSON, anything else CSV.
func Decode(ctx context.Context, r io.Reader, format Format) ([]core.OutletRecord, error) {
	br := bufio.NewReader(newCleanReader(r))

	if format == "" {
		sniffed, err := sniff(br)
		if err != nil {
			return nil, err
		}
		format = sniffed
	}

	var (
		records []core.OutletRecord
		err     error
	)
	switch format {
	case FormatJSON:
		records, err = decodeJSON(ctx, br)
	case FormatCSV:
		records, err = decodeCSV(ctx, br)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyFeed
	}
	return records, nil
}

// readError tags syntax errors with malformed and passes reader failures
// (size limits, cancellation) through unchanged.
func readError(malformed, err error) error {
	var (
		parseErr  *csv.ParseError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &parseErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", malformed, err)
	}
	return fmt.Errorf("read feed: %w", err)
}

// newCleanReader strips a leading BOM and replaces ill-formed UTF-8.
func newCleanReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
}

// sniff consumes leading whitespace and inspects the first byte.
func sniff(br *bufio.Reader) (Format, error) {
	for {
		c, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrEmptyFeed
			}
			return "", fmt.Errorf("read feed: %w", err)
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return "", err
		}
		if c == '[' || c == '{' {
			return FormatJSON, nil
		}
		return FormatCSV, nil
	}
}
