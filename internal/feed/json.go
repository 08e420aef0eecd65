package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// envelopeKey names the array inside an object-wrapped feed:
// {"outlets": [...]}.
const envelopeKey = "outlets"

// ErrMalformedJSON is returned for JSON that is neither an array of outlet
// objects nor an envelope around one.
var ErrMalformedJSON = errors.New("malformed outlet feed")

func decodeJSON(ctx context.Context, r io.Reader) ([]core.OutletRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, readError(ErrMalformedJSON, err)
	}

	switch tok {
	case json.Delim('['):
	case json.Delim('{'):
		if err := seekEnvelope(dec); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: expected array, got %v", ErrMalformedJSON, tok)
	}

	var records []core.OutletRecord
	for dec.More() {
		if len(records)%core.ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var rec core.OutletRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records)+1, readError(ErrMalformedJSON, err))
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, readError(ErrMalformedJSON, err)
	}
	return records, nil
}

// seekEnvelope advances dec to the opening bracket of the outlets array,
// skipping other members.
func seekEnvelope(dec *json.Decoder) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return readError(ErrMalformedJSON, err)
		}
		if key, _ := tok.(string); key == envelopeKey {
			open, err := dec.Token()
			if err != nil {
				return readError(ErrMalformedJSON, err)
			}
			if open != json.Delim('[') {
				return fmt.Errorf("%w: %q must be an array", ErrMalformedJSON, envelopeKey)
			}
			return nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return readError(ErrMalformedJSON, err)
		}
	}
	return fmt.Errorf("%w: missing %q array", ErrMalformedJSON, envelopeKey)
}
