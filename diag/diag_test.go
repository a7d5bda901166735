package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/memory"
	"github.com/cschleiden/go-orchestrations/core"
)

func seed(t *testing.T, b backend.Backend) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	require.NoError(t, b.AppendEvents(ctx, "parent", 0, []*history.Event{
		history.NewHistoryEvent(now, history.EventType_ExecutionStarted, &history.ExecutionStartedAttributes{Name: "Parent"}),
		history.NewHistoryEvent(now, history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{}),
		history.NewHistoryEvent(now, history.EventType_SubOrchestrationScheduled, &history.SubOrchestrationScheduledAttributes{
			Name:       "Child",
			InstanceID: "child",
		}, history.CorrelationID(0)),
		history.NewHistoryEvent(now, history.EventType_SubOrchestrationScheduled, &history.SubOrchestrationScheduledAttributes{
			Name:       "Child",
			InstanceID: "not-started",
		}, history.CorrelationID(1)),
	}))

	require.NoError(t, b.AppendEvents(ctx, "child", 0, []*history.Event{
		history.NewHistoryEvent(now, history.EventType_ExecutionStarted, &history.ExecutionStartedAttributes{
			Name:             "Child",
			ParentInstanceID: "parent",
			ParentSequenceID: 3,
		}),
	}))
}

func get(t *testing.T, mux *http.ServeMux, url string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	return rec
}

func Test_Diag_ListInstances(t *testing.T) {
	b := memory.NewMemoryBackend()
	seed(t, b)
	mux := NewServeMux(b)

	rec := get(t, mux, "/api/")
	require.Equal(t, http.StatusOK, rec.Code)

	var instances []*core.InstanceState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &instances))
	require.Len(t, instances, 2)

	rec = get(t, mux, "/api/?name=Child")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &instances))
	require.Len(t, instances, 1)
	require.Equal(t, "child", instances[0].InstanceID)

	rec = get(t, mux, "/api/?count=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, mux, "/api/?status=bogus")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Diag_Instance(t *testing.T) {
	b := memory.NewMemoryBackend()
	seed(t, b)
	mux := NewServeMux(b)

	rec := get(t, mux, "/api/parent")
	require.Equal(t, http.StatusOK, rec.Code)

	var info struct {
		InstanceID string   `json:"instance_id"`
		History    []*Event `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "parent", info.InstanceID)
	require.Len(t, info.History, 4)
	require.Equal(t, "ExecutionStarted", info.History[0].Type)
	require.Equal(t, int64(1), info.History[0].SequenceID)

	rec = get(t, mux, "/api/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_Diag_Tree(t *testing.T) {
	b := memory.NewMemoryBackend()
	seed(t, b)
	mux := NewServeMux(b)

	// Starting from the child returns the tree from the root
	rec := get(t, mux, "/api/child/tree")
	require.Equal(t, http.StatusOK, rec.Code)

	var tree struct {
		InstanceID string `json:"instance_id"`
		Children   []struct {
			InstanceID string `json:"instance_id"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	require.Equal(t, "parent", tree.InstanceID)
	require.Len(t, tree.Children, 1)
	require.Equal(t, "child", tree.Children[0].InstanceID)
}

func Test_Diag_Stats(t *testing.T) {
	b := memory.NewMemoryBackend()
	seed(t, b)
	mux := NewServeMux(b)

	rec := get(t, mux, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats backend.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, int64(2), stats.ActiveInstances)
}

func Test_Diag_MethodNotAllowed(t *testing.T) {
	mux := NewServeMux(memory.NewMemoryBackend())

	req := httptest.NewRequest(http.MethodPost, "/api/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
