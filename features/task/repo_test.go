package task_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorproxy/features/task"
)

var failedColumns = []string{"id", "task_id", "datasource_id", "table_name", "failure_kind", "error", "payload", "retries", "created_at"}

func newMockRepo(t *testing.T) (*task.PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return task.NewPostgresRepo(db), mock
}

func TestPostgresRepo_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO failed_tasks").
		WithArgs(sqlmock.AnyArg(), "task-1", "ds1", "docs", "embedding", "boom", sqlmock.AnyArg(), 0).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	ft := &task.FailedTask{
		TaskID:       "task-1",
		DatasourceID: "ds1",
		TableName:    "docs",
		FailureKind:  "embedding",
		Error:        "boom",
		Payload:      json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Save(context.Background(), ft))
	assert.NotEmpty(t, ft.ID)
	assert.Equal(t, created, ft.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM failed_tasks ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(failedColumns).
			AddRow("f2", "task-2", "ds1", "", "upsert", "down", []byte(`{"b":1}`), 0, now).
			AddRow("f1", "task-1", "ds2", "docs", "tenant", "missing", []byte(`{"a":1}`), 1, now.Add(-time.Minute)))

	tasks, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "f2", tasks[0].ID)
	assert.Equal(t, "upsert", tasks[0].FailureKind)
	assert.JSONEq(t, `{"a":1}`, string(tasks[1].Payload))
	assert.Equal(t, 1, tasks[1].Retries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM failed_tasks WHERE id").
			WithArgs("f1").
			WillReturnRows(sqlmock.NewRows(failedColumns).
				AddRow("f1", "task-1", "ds1", "", "normalize", "bad", []byte(`{}`), 0, time.Now()))

		ft, err := repo.Get(context.Background(), "f1")
		require.NoError(t, err)
		assert.Equal(t, "task-1", ft.TaskID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM failed_tasks WHERE id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, task.ErrNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM failed_tasks WHERE id").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Get(context.Background(), "f1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, task.ErrNotFound)
	})
}

func TestPostgresRepo_DeleteAndCount(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM failed_tasks WHERE id").
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM failed_tasks`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	require.NoError(t, repo.Delete(context.Background(), "f1"))
	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
