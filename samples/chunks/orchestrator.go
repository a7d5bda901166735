// Package chunks processes a time window in parallel chunks. It fans out one activity per chunk and joins
// the results in chunk order.
package chunks

import (
	"encoding/json"
	"time"

	"github.com/cschleiden/go-orchestrations/log"
	"github.com/cschleiden/go-orchestrations/orchestration"
)

const (
	OrchestratorName = "ChunkOrchestrator"
	ActivityName     = "ProcessChunk"

	DefaultTotalChunks = 3
	MaxTotalChunks     = 5
)

type Input struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	TotalChunks int    `json:"total_chunks"`
	Time        string `json:"time"`

	// empty is set when the input was decoded from an object without fields
	empty bool
}

// UnmarshalJSON decodes input leniently. Missing window fields become "unknown", a missing total_chunks
// becomes DefaultTotalChunks and a total_chunks that is not an integer becomes 0, which is later replaced
// by the default.
func (in *Input) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*in = Input{
		Start:       stringField(fields, "start"),
		End:         stringField(fields, "end"),
		TotalChunks: DefaultTotalChunks,
		Time:        stringField(fields, "time"),
		empty:       len(fields) == 0,
	}

	if raw, ok := fields["total_chunks"]; ok {
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			n = 0
		}

		in.TotalChunks = n
	}

	return nil
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return "unknown"
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}

	return s
}

type Chunk struct {
	ChunkID     int    `json:"chunk_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	TotalChunks int    `json:"total_chunks"`
	Time        string `json:"time"`
}

type ChunkResult struct {
	ChunkID               int     `json:"chunk_id"`
	Status                string  `json:"status"`
	RecordsProcessed      int     `json:"records_processed"`
	DataType              string  `json:"data_type,omitempty"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds,omitempty"`
	StartTime             string  `json:"start_time,omitempty"`
	EndTime               string  `json:"end_time,omitempty"`
	Error                 string  `json:"error,omitempty"`
}

type Result struct {
	Status      string        `json:"status"`
	TotalChunks int           `json:"total_chunks"`
	Results     []ChunkResult `json:"results"`
}

// Progress is published as custom status while chunks are processed.
type Progress struct {
	Phase       string `json:"phase"`
	TotalChunks int    `json:"total_chunks"`
}

// DefaultInput is used when the orchestration is started without input.
func DefaultInput(now time.Time) *Input {
	return &Input{
		Start:       "2024-01-01T00:00:00Z",
		End:         "2024-01-31T00:00:00Z",
		TotalChunks: DefaultTotalChunks,
		Time:        now.UTC().Format(time.RFC3339Nano),
	}
}

func clampChunks(n int) int {
	if n <= 0 {
		return DefaultTotalChunks
	}

	if n > MaxTotalChunks {
		return MaxTotalChunks
	}

	return n
}

// ChunkOrchestrator schedules ProcessChunk for every chunk and waits for all of them. Chunk IDs start at 0.
func ChunkOrchestrator(ctx orchestration.Context, input *Input) (*Result, error) {
	logger := orchestration.Logger(ctx)

	if input == nil || input.empty {
		input = DefaultInput(orchestration.Now(ctx))
	}

	totalChunks := clampChunks(input.TotalChunks)
	if totalChunks != input.TotalChunks {
		logger.Warn("Adjusted number of chunks", log.TotalChunksKey, totalChunks, "requested", input.TotalChunks)
	}

	if err := orchestration.SetCustomStatus(ctx, &Progress{Phase: "processing", TotalChunks: totalChunks}); err != nil {
		return nil, err
	}

	futures := make([]orchestration.Future[ChunkResult], 0, totalChunks)
	for chunkID := 0; chunkID < totalChunks; chunkID++ {
		futures = append(futures, orchestration.CallActivity[ChunkResult](ctx, orchestration.DefaultActivityOptions, ActivityName, &Chunk{
			ChunkID:     chunkID,
			Start:       input.Start,
			End:         input.End,
			TotalChunks: totalChunks,
			Time:        input.Time,
		}))
	}

	logger.Info("Scheduled chunks", log.TotalChunksKey, totalChunks)

	results, err := orchestration.WhenAll(futures...).Get(ctx)
	if err != nil {
		logger.Error("Processing chunks failed", "error", err)

		results = []ChunkResult{{Status: "failed", Error: err.Error()}}
	}

	if err := orchestration.SetCustomStatus(ctx, &Progress{Phase: "completed", TotalChunks: totalChunks}); err != nil {
		return nil, err
	}

	return &Result{
		Status:      "completed",
		TotalChunks: totalChunks,
		Results:     results,
	}, nil
}
