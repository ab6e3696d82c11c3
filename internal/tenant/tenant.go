// Package tenant resolves the team that owns a datasource. The team id is the
// tenant partition every vector written for that datasource lands in.
package tenant

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("datasource not found")
	ErrMissingTeam = errors.New("datasource has no team")
	ErrEmptyID     = errors.New("datasource id is empty")
)

// Context is the resolved ownership of a datasource.
type Context struct {
	TeamID       string
	DatasourceID string
}

// Lookup reads the owning team id of a datasource from the metadata store.
type Lookup interface {
	TeamID(ctx context.Context, datasourceID string) (string, error)
}
