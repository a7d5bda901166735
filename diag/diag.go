package diag

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/core"
)

// NewServeMux returns an *http.ServeMux that serves the read-only diagnostics API at /api:
//
//	GET /api/                     instances, filtered by ?status=&name=&count=
//	GET /api/stats                queue depths and active instances
//	GET /api/{instanceID}         instance state and history
//	GET /api/{instanceID}/tree    sub-orchestration tree the instance belongs to
func NewServeMux(b backend.Backend) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		// Only support GET requests
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		relativeURL := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/"), "/")

		// /api/
		if relativeURL == "" {
			filter, err := filterFromQuery(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			instances, err := b.ListInstances(r.Context(), filter)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			writeJSON(w, instances)
			return
		}

		// /api/stats
		if relativeURL == "stats" {
			stats, err := b.GetStats(r.Context())
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			writeJSON(w, stats)
			return
		}

		segments := strings.Split(relativeURL, "/")
		instanceID := segments[0]

		switch {
		// /api/{instanceID}
		case len(segments) == 1:
			instance, err := b.GetInstance(r.Context(), instanceID)
			if err != nil {
				writeInstanceError(w, err)
				return
			}

			h, err := b.ReadHistory(r.Context(), instanceID)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			newHistory := make([]*Event, 0, len(h))
			for _, event := range h {
				newHistory = append(newHistory, &Event{
					ID:            event.ID,
					SequenceID:    event.SequenceID,
					Type:          event.Type.String(),
					Timestamp:     event.Timestamp,
					CorrelationID: event.CorrelationID,
					Attributes:    event.Attributes,
				})
			}

			writeJSON(w, &InstanceInfo{
				InstanceState: instance,
				History:       newHistory,
			})

		// /api/{instanceID}/tree
		case len(segments) == 2 && segments[1] == "tree":
			tree, err := NewInstanceTreeBuilder(b).BuildInstanceTree(r.Context(), instanceID)
			if err != nil {
				writeInstanceError(w, err)
				return
			}

			writeJSON(w, tree)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	return mux
}

func filterFromQuery(r *http.Request) (*core.InstanceFilter, error) {
	query := r.URL.Query()

	filter := &core.InstanceFilter{
		Name:  query.Get("name"),
		Limit: 25,
	}

	if countStr := query.Get("count"); countStr != "" {
		count, err := strconv.Atoi(countStr)
		if err != nil || count < 0 {
			return nil, errors.New("invalid count")
		}

		filter.Limit = count
	}

	for _, s := range query["status"] {
		status, err := core.ParseRuntimeStatus(s)
		if err != nil {
			return nil, err
		}

		filter.Statuses = append(filter.Statuses, status)
	}

	if after := query.Get("created_after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			return nil, errors.New("invalid created_after")
		}

		filter.CreatedAfter = &t
	}

	return filter, nil
}

func writeInstanceError(w http.ResponseWriter, err error) {
	if errors.Is(err, backend.ErrInstanceNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
