// Package ingest turns raw datasource messages into canonical records.
//
// A message is UTF-8 JSON holding either a single object or an array of
// objects. Each object becomes one [Record]; its keys are kept as-is and its
// values are mapped onto the four [Kind] variants. Anything else is reported
// through the sentinel errors in this package and never panics.
package ingest
