package task_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vectorproxy/features/task"
	"vectorproxy/internal/queue"
)

func newMux(h *task.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", h.List)
	mux.HandleFunc("GET /tasks/failed", h.ListFailed)
	mux.HandleFunc("GET /tasks/{id}", h.Get)
	mux.HandleFunc("POST /tasks/failed/{id}/retry", h.Retry)
	return mux
}

func TestHandler_Tasks(t *testing.T) {
	tracker := &fakeTracker{tasks: []queue.Task{{ID: "a", DatasourceID: "ds1", Status: queue.StatusRunning}}}
	mux := newMux(task.NewHandler(task.NewService(new(MockRepo), nil, tracker, nil)))

	t.Run("List", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/tasks", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []queue.Task   `json:"data"`
			Meta map[string]int `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Meta["count"])
		assert.Equal(t, queue.StatusRunning, resp.Data[0].Status)
	})

	t.Run("Get", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/tasks/a", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"datasource_id":"ds1"`)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/tasks/missing", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "NOT_FOUND")
	})
}

func TestHandler_ListFailed(t *testing.T) {
	t.Run("EmptyList", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("List", mock.Anything).Return(nil, nil)
		mux := newMux(task.NewHandler(task.NewService(repo, nil, &fakeTracker{}, nil)))

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/tasks/failed", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})

	t.Run("RepoError", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("List", mock.Anything).Return(nil, errors.New("database error"))
		mux := newMux(task.NewHandler(task.NewService(repo, nil, &fakeTracker{}, nil)))

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/tasks/failed", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		repo.AssertExpectations(t)
	})
}

func TestHandler_Retry(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)
		repo.On("Get", mock.Anything, "f1").Return(&task.FailedTask{ID: "f1", Payload: []byte(`{}`)}, nil)
		repo.On("Delete", mock.Anything, "f1").Return(nil)
		pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
		mux := newMux(task.NewHandler(task.NewService(repo, pub, &fakeTracker{}, nil)))

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("POST", "/tasks/failed/f1/retry", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("NoPublisher", func(t *testing.T) {
		mux := newMux(task.NewHandler(task.NewService(new(MockRepo), nil, &fakeTracker{}, nil)))

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("POST", "/tasks/failed/f1/retry", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "PUBLISHER_UNAVAILABLE")
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("Get", mock.Anything, "99").Return(nil, task.ErrNotFound)
		mux := newMux(task.NewHandler(task.NewService(repo, new(MockPublisher), &fakeTracker{}, nil)))

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("POST", "/tasks/failed/99/retry", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
