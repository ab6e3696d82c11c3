package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("failed task not found")

type Repository interface {
	Save(ctx context.Context, t *FailedTask) error
	List(ctx context.Context) ([]FailedTask, error)
	Get(ctx context.Context, id string) (*FailedTask, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, t *FailedTask) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	query := `INSERT INTO failed_tasks (id, task_id, datasource_id, table_name, failure_kind, error, payload, retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`
	return r.db.QueryRowContext(ctx, query,
		t.ID, t.TaskID, t.DatasourceID, t.TableName, t.FailureKind, t.Error, []byte(t.Payload), t.Retries,
	).Scan(&t.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context) ([]FailedTask, error) {
	query := `SELECT id, task_id, datasource_id, table_name, failure_kind, error, payload, retries, created_at
		FROM failed_tasks ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []FailedTask
	for rows.Next() {
		var t FailedTask
		var payload []byte
		if err := rows.Scan(&t.ID, &t.TaskID, &t.DatasourceID, &t.TableName, &t.FailureKind, &t.Error, &payload, &t.Retries, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Payload = json.RawMessage(payload)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*FailedTask, error) {
	t := &FailedTask{}
	var payload []byte
	query := `SELECT id, task_id, datasource_id, table_name, failure_kind, error, payload, retries, created_at
		FROM failed_tasks WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.TaskID, &t.DatasourceID, &t.TableName, &t.FailureKind, &t.Error, &payload, &t.Retries, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Payload = json.RawMessage(payload)
	return t, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_tasks WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_tasks`).Scan(&count)
	return count, err
}
