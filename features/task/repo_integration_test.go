package task_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorproxy/features/task"
	"vectorproxy/internal/testutils"
)

func TestFailedTaskRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	repo := task.NewPostgresRepo(s.DB)
	ctx := context.Background()

	f1 := &task.FailedTask{TaskID: "t1", DatasourceID: "ds1", FailureKind: "embedding", Error: "e1", Payload: json.RawMessage(`{"n":1}`)}
	require.NoError(t, repo.Save(ctx, f1))
	time.Sleep(50 * time.Millisecond)
	f2 := &task.FailedTask{TaskID: "t2", DatasourceID: "ds2", FailureKind: "upsert", Error: "e2", Payload: json.RawMessage(`{"n":2}`)}
	require.NoError(t, repo.Save(ctx, f2))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, f2.ID, list[0].ID)

	got, err := repo.Get(ctx, f1.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got.Payload))

	require.NoError(t, repo.Delete(ctx, f1.ID))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.Get(ctx, f1.ID)
	assert.ErrorIs(t, err, task.ErrNotFound)
}
