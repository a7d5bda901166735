package chunks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/activitytester"
	"github.com/cschleiden/go-orchestrations/backend/memory"
	"github.com/cschleiden/go-orchestrations/client"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/worker"
)

func fastProcessor() *Processor {
	p := NewProcessor()
	p.MinDuration = time.Millisecond
	p.MaxDuration = 5 * time.Millisecond

	return p
}

func startHost(t *testing.T) (*worker.Host, context.Context) {
	t.Helper()

	o := worker.DefaultOptions
	o.OrchestrationPollingInterval = 5 * time.Millisecond
	o.ActivityPollingInterval = 5 * time.Millisecond

	h := worker.NewHost(memory.NewMemoryBackend(), &o)
	require.NoError(t, Register(h, fastProcessor()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Start(ctx))

	t.Cleanup(func() {
		cancel()
		require.NoError(t, h.WaitForCompletion())
	})

	return h, ctx
}

func Test_ClampChunks(t *testing.T) {
	tests := []struct {
		in, out int
	}{
		{-1, 3},
		{0, 3},
		{1, 1},
		{5, 5},
		{6, 5},
		{100, 5},
	}

	for _, tt := range tests {
		require.Equal(t, tt.out, clampChunks(tt.in), "input %d", tt.in)
	}
}

func Test_ChunkOrchestrator(t *testing.T) {
	h, ctx := startHost(t)

	id, err := h.Client.CreateOrchestrationInstance(ctx, client.InstanceOptions{}, OrchestratorName, &Input{
		Start:       "2024-01-01T00:00:00Z",
		End:         "2024-01-01T00:10:00Z",
		TotalChunks: 4,
		Time:        "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	r, err := client.GetOrchestrationResult[*Result](ctx, h.Client, id, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, "completed", r.Status)
	require.Equal(t, 4, r.TotalChunks)
	require.Len(t, r.Results, 4)

	for i, cr := range r.Results {
		require.Equal(t, i, cr.ChunkID)
		require.Equal(t, "success", cr.Status)
		require.GreaterOrEqual(t, cr.RecordsProcessed, 30)
		require.LessOrEqual(t, cr.RecordsProcessed, 50)
		require.Contains(t, dataTypes, cr.DataType)
		require.Equal(t, "2024-01-01T00:00:00Z", cr.StartTime)
	}

	s, err := h.Client.GetOrchestrationState(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, s.Status)
	require.JSONEq(t, `{"phase":"completed","total_chunks":4}`, string(s.CustomStatus))
}

func Test_ChunkOrchestrator_DefaultInput(t *testing.T) {
	h, ctx := startHost(t)

	id, err := h.Client.CreateOrchestrationInstance(ctx, client.InstanceOptions{}, OrchestratorName, nil)
	require.NoError(t, err)

	r, err := client.GetOrchestrationResult[*Result](ctx, h.Client, id, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, DefaultTotalChunks, r.TotalChunks)
	require.Len(t, r.Results, DefaultTotalChunks)
}

func Test_ChunkOrchestrator_LimitsChunks(t *testing.T) {
	h, ctx := startHost(t)

	id, err := h.Client.CreateOrchestrationInstance(ctx, client.InstanceOptions{}, OrchestratorName, &Input{
		Start:       "a",
		End:         "b",
		TotalChunks: 50,
	})
	require.NoError(t, err)

	r, err := client.GetOrchestrationResult[*Result](ctx, h.Client, id, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, MaxTotalChunks, r.TotalChunks)
	require.Len(t, r.Results, MaxTotalChunks)
}

func Test_ChunkOrchestrator_EmptyInputUsesDefaults(t *testing.T) {
	h, ctx := startHost(t)

	id, err := h.Client.CreateOrchestrationInstance(ctx, client.InstanceOptions{}, OrchestratorName, json.RawMessage(`{}`))
	require.NoError(t, err)

	r, err := client.GetOrchestrationResult[*Result](ctx, h.Client, id, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, DefaultTotalChunks, r.TotalChunks)
	require.Len(t, r.Results, DefaultTotalChunks)

	for _, cr := range r.Results {
		require.Equal(t, "success", cr.Status)
		require.Equal(t, "2024-01-01T00:00:00Z", cr.StartTime)
	}
}

func Test_ChunkOrchestrator_NonIntegerTotalChunks(t *testing.T) {
	h, ctx := startHost(t)

	id, err := h.Client.CreateOrchestrationInstance(ctx, client.InstanceOptions{}, OrchestratorName, json.RawMessage(`{"total_chunks":"7"}`))
	require.NoError(t, err)

	r, err := client.GetOrchestrationResult[*Result](ctx, h.Client, id, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, "completed", r.Status)
	require.Equal(t, DefaultTotalChunks, r.TotalChunks)
	require.Len(t, r.Results, DefaultTotalChunks)

	for i, cr := range r.Results {
		require.Equal(t, i, cr.ChunkID)
		require.Equal(t, "success", cr.Status)
		require.Equal(t, "unknown", cr.StartTime)
	}
}

func Test_Input_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		want  Input
		empty bool
	}{
		{
			name:  "empty object",
			data:  `{}`,
			want:  Input{Start: "unknown", End: "unknown", TotalChunks: DefaultTotalChunks, Time: "unknown", empty: true},
			empty: true,
		},
		{
			name: "complete",
			data: `{"start":"a","end":"b","total_chunks":4,"time":"t"}`,
			want: Input{Start: "a", End: "b", TotalChunks: 4, Time: "t"},
		},
		{
			name: "string total_chunks",
			data: `{"total_chunks":"7"}`,
			want: Input{Start: "unknown", End: "unknown", TotalChunks: 0, Time: "unknown"},
		},
		{
			name: "fractional total_chunks",
			data: `{"start":"a","total_chunks":2.5}`,
			want: Input{Start: "a", End: "unknown", TotalChunks: 0, Time: "unknown"},
		},
		{
			name: "non-string window",
			data: `{"start":20240101,"end":"b"}`,
			want: Input{Start: "20240101", End: "b", TotalChunks: DefaultTotalChunks, Time: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in Input
			require.NoError(t, json.Unmarshal([]byte(tt.data), &in))
			require.Equal(t, tt.want, in)
			require.Equal(t, tt.empty, in.empty)
		})
	}

	var in *Input
	require.NoError(t, json.Unmarshal([]byte(`null`), &in))
	require.Nil(t, in)

	require.Error(t, json.Unmarshal([]byte(`[1]`), &Input{}))
}

func Test_ProcessChunk_FirstChunk(t *testing.T) {
	r, err := fastProcessor().ProcessChunk(context.Background(), &Chunk{ChunkID: 0, Start: "a", End: "b"})
	require.NoError(t, err)
	require.Equal(t, 0, r.ChunkID)
	require.Equal(t, "success", r.Status)

	r, err = fastProcessor().ProcessChunk(context.Background(), &Chunk{ChunkID: -1, Start: "a", End: "b"})
	require.NoError(t, err)
	require.Equal(t, "error", r.Status)
	require.Equal(t, "invalid chunk id -1", r.Error)
}

func Test_ProcessChunk_ReportsErrors(t *testing.T) {
	p := fastProcessor()

	r, err := p.ProcessChunk(activitytester.WithActivityTestState(context.Background(), ActivityName, "instance", nil), &Chunk{ChunkID: 2})
	require.NoError(t, err)
	require.Equal(t, 2, r.ChunkID)
	require.Equal(t, "error", r.Status)
	require.Equal(t, "chunk window not set", r.Error)
	require.Zero(t, r.RecordsProcessed)
}

func Test_ProcessChunk_Canceled(t *testing.T) {
	p := NewProcessor()
	p.MinDuration = time.Hour
	p.MaxDuration = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := p.ProcessChunk(ctx, &Chunk{ChunkID: 1, Start: "a", End: "b"})
	require.NoError(t, err)
	require.Equal(t, "error", r.Status)
	require.Equal(t, context.Canceled.Error(), r.Error)
}

func Test_TestActivity(t *testing.T) {
	r := TestActivity(context.Background(), fastProcessor())
	require.True(t, r.Success)
	require.Equal(t, 0, r.Result.ChunkID)
	require.Equal(t, "success", r.Result.Status)
}

func Test_WindowInput(t *testing.T) {
	now := time.Date(2024, 6, 16, 15, 3, 0, 0, time.UTC)

	in := WindowInput(now)
	require.Equal(t, "2024-06-16T14:53:00Z", in.Start)
	require.Equal(t, "2024-06-16T15:03:00Z", in.End)
	require.Equal(t, in.Start, in.Time)
	require.Equal(t, 5, in.TotalChunks)
}

func Test_NewStarter_InvalidSchedule(t *testing.T) {
	c := client.New(memory.NewMemoryBackend())

	_, err := NewStarter(c, "not a schedule", nil)
	require.Error(t, err)
}
