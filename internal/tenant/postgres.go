package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresLookup struct {
	db *sql.DB
}

func NewPostgresLookup(db *sql.DB) *PostgresLookup {
	return &PostgresLookup{db: db}
}

func (l *PostgresLookup) TeamID(ctx context.Context, datasourceID string) (string, error) {
	var teamID sql.NullString
	query := `SELECT team_id FROM datasources WHERE id = $1`
	err := l.db.QueryRowContext(ctx, query, datasourceID).Scan(&teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query datasource %s: %w", datasourceID, err)
	}
	if !teamID.Valid || teamID.String == "" {
		return "", ErrMissingTeam
	}
	return teamID.String, nil
}
