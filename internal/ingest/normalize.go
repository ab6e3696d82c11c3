package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Normalize parses raw as JSON and returns one record per object.
//
// A single object and a one-element array holding the same object produce
// identical output. Array elements that are not objects are skipped with a
// warning. On any failure the returned slice is empty, a warning is logged
// and the error is one of ErrMalformedJSON, ErrUnsupportedShape or ErrNoRecords.
func Normalize(ctx context.Context, raw []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		slog.WarnContext(ctx, "malformed json payload", "error", err, "size", len(raw))
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if dec.More() {
		slog.WarnContext(ctx, "malformed json payload", "error", "trailing data after top-level value", "size", len(raw))
		return nil, fmt.Errorf("%w: trailing data after top-level value", ErrMalformedJSON)
	}

	switch data := payload.(type) {
	case map[string]any:
		return []Record{toRecord(data)}, nil

	case []any:
		if len(data) == 0 {
			slog.WarnContext(ctx, "no records in payload")
			return nil, ErrNoRecords
		}

		records := make([]Record, 0, len(data))
		for i, elem := range data {
			obj, ok := elem.(map[string]any)
			if !ok {
				slog.WarnContext(ctx, "skipped non-object element", "index", i, "type", jsonType(elem))
				continue
			}
			records = append(records, toRecord(obj))
		}

		if len(records) == 0 {
			slog.WarnContext(ctx, "unsupported payload shape", "shape", "array without objects", "elements", len(data))
			return nil, fmt.Errorf("%w: array of %d non-object elements", ErrUnsupportedShape, len(data))
		}
		return records, nil

	default:
		slog.WarnContext(ctx, "unsupported payload shape", "shape", jsonType(payload))
		return nil, fmt.Errorf("%w: top-level %s", ErrUnsupportedShape, jsonType(payload))
	}
}

func toRecord(obj map[string]any) Record {
	rec := make(Record, len(obj))
	for k, v := range obj {
		rec[k] = fromJSON(v)
	}
	return rec
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
