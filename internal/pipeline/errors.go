package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies why a batch failed.
type Kind int

const (
	KindNone Kind = iota
	NormalizeFailure
	TenantFailure
	EmbeddingFailure
	UpsertFailure
)

func (k Kind) String() string {
	switch k {
	case NormalizeFailure:
		return "normalize"
	case TenantFailure:
		return "tenant"
	case EmbeddingFailure:
		return "embedding"
	case UpsertFailure:
		return "upsert"
	default:
		return "none"
	}
}

// Error is the failure result of processing one batch.
type Error struct {
	Kind         Kind
	DatasourceID string
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure for datasource %s: %v", e.Kind, e.DatasourceID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or KindNone.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNone
}
