package chunks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cschleiden/go-orchestrations/activity"
	"github.com/cschleiden/go-orchestrations/log"
)

var dataTypes = []string{"sensor_data", "log_entries", "user_events", "system_metrics"}

// Processor simulates processing a chunk of data. Every call sleeps for a random duration between
// MinDuration and MaxDuration.
type Processor struct {
	MinDuration time.Duration
	MaxDuration time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewProcessor() *Processor {
	return &Processor{
		MinDuration: 500 * time.Millisecond,
		MaxDuration: 2 * time.Second,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ProcessChunk processes a single chunk. Failures are reported in the result instead of failing the
// activity, so a single bad chunk does not fail the orchestration.
func (p *Processor) ProcessChunk(ctx context.Context, chunk *Chunk) (*ChunkResult, error) {
	logger := activity.Logger(ctx)

	if chunk == nil {
		return &ChunkResult{Status: "error", Error: "missing chunk"}, nil
	}

	r, err := p.process(ctx, chunk)
	if err != nil {
		logger.Error("Processing chunk failed", log.ChunkIDKey, chunk.ChunkID, "error", err)

		return &ChunkResult{
			ChunkID: chunk.ChunkID,
			Status:  "error",
			Error:   err.Error(),
		}, nil
	}

	logger.Info("Processed chunk",
		log.ChunkIDKey, chunk.ChunkID,
		log.TotalChunksKey, chunk.TotalChunks,
		"records", r.RecordsProcessed,
		"data_type", r.DataType,
	)

	return r, nil
}

func (p *Processor) process(ctx context.Context, chunk *Chunk) (*ChunkResult, error) {
	if chunk.ChunkID < 0 {
		return nil, fmt.Errorf("invalid chunk id %d", chunk.ChunkID)
	}

	if chunk.Start == "" || chunk.End == "" {
		return nil, errors.New("chunk window not set")
	}

	p.mu.Lock()
	d := p.MinDuration
	if p.MaxDuration > p.MinDuration {
		d += time.Duration(p.rnd.Int63n(int64(p.MaxDuration - p.MinDuration)))
	}
	dataType := dataTypes[p.rnd.Intn(len(dataTypes))]
	records := 30 + p.rnd.Intn(21)
	p.mu.Unlock()

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &ChunkResult{
		ChunkID:               chunk.ChunkID,
		Status:                "success",
		RecordsProcessed:      records,
		DataType:              dataType,
		ProcessingTimeSeconds: math.Round(d.Seconds()*100) / 100,
		StartTime:             chunk.Start,
		EndTime:               chunk.End,
	}, nil
}

// ActivityTestResult is the outcome of running ProcessChunk outside of an orchestration.
type ActivityTestResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Input   *Chunk       `json:"input"`
	Result  *ChunkResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// TestActivity runs ProcessChunk directly with a fixed sample chunk.
func TestActivity(ctx context.Context, p *Processor) *ActivityTestResult {
	input := &Chunk{
		ChunkID:     0,
		Start:       "2024-01-01T15:00:00Z",
		End:         "2024-01-01T15:10:00Z",
		Time:        "2024-01-01T15:00:00Z",
		TotalChunks: MaxTotalChunks,
	}

	r, err := p.ProcessChunk(ctx, input)
	if err == nil && r.Status != "success" {
		err = errors.New(r.Error)
	}

	if err != nil {
		return &ActivityTestResult{
			Success: false,
			Message: "Activity test failed",
			Input:   input,
			Result:  r,
			Error:   err.Error(),
		}
	}

	return &ActivityTestResult{
		Success: true,
		Message: "Activity test completed successfully",
		Input:   input,
		Result:  r,
	}
}
