package ingest

import "errors"

var (
	// ErrMalformedJSON is returned when the message is not valid JSON.
	ErrMalformedJSON = errors.New("malformed json payload")

	// ErrUnsupportedShape is returned when the payload is neither an object nor an array containing objects.
	ErrUnsupportedShape = errors.New("unsupported payload shape")

	// ErrNoRecords is returned for an empty array.
	ErrNoRecords = errors.New("no records in payload")
)
