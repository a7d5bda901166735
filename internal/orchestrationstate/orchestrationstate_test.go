package orchestrationstate

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/command"
	"github.com/cschleiden/go-orchestrations/internal/sync"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newState() *OrchState {
	return NewOrchestrationState(
		&Instance{InstanceID: "instance", Name: "orchestrator"},
		slog.Default(),
		noop.NewTracerProvider().Tracer("test"),
	)
}

func Test_CorrelationIDs_StartAtZero(t *testing.T) {
	s := newState()

	require.Equal(t, int64(0), s.NextCorrelationID())
	require.Equal(t, int64(1), s.NextCorrelationID())
	require.Equal(t, int64(2), s.NextCorrelationID())
}

func Test_PendingFutures(t *testing.T) {
	s := newState()

	require.False(t, s.HasPendingFutures())

	f := sync.NewFuture[int]()
	s.TrackFuture(1, "activity", AsDecodingSettable(converter.DefaultConverter, f))

	require.True(t, s.HasPendingFutures())
	require.Equal(t, map[int64]string{1: "activity"}, s.PendingFutureNames())

	fs, ok := s.FutureByCorrelationID(1)
	require.True(t, ok)
	require.NoError(t, fs(payload.Payload(`42`), nil))

	s.RemoveFuture(1)
	require.False(t, s.HasPendingFutures())

	require.True(t, f.Ready())
}

func Test_Commands(t *testing.T) {
	s := newState()

	cmd := command.NewScheduleTimerCommand(s.NextCorrelationID(), time.Now())
	s.AddCommand(cmd)

	require.Len(t, s.Commands(), 1)
	require.Same(t, cmd, s.CommandByCorrelationID(0))
	require.Nil(t, s.CommandByCorrelationID(1))
}

func Test_ExternalEvents_BufferedBeforeWait(t *testing.T) {
	s := newState()

	require.NoError(t, s.ReceiveEvent("approval", payload.Payload(`"first"`)))
	require.NoError(t, s.ReceiveEvent("approval", payload.Payload(`"second"`)))

	f1 := sync.NewFuture[string]()
	require.NoError(t, s.WaitForEvent("approval", s.NextCorrelationID(), AsDecodingSettable(converter.DefaultConverter, f1)))
	f2 := sync.NewFuture[string]()
	require.NoError(t, s.WaitForEvent("approval", s.NextCorrelationID(), AsDecodingSettable(converter.DefaultConverter, f2)))

	require.True(t, f1.Ready())
	require.True(t, f2.Ready())
	require.False(t, s.HasPendingFutures())
}

func Test_ExternalEvents_WaitersServedInOrder(t *testing.T) {
	s := newState()
	cv := converter.DefaultConverter

	var got []string
	for i := 0; i < 2; i++ {
		require.NoError(t, s.WaitForEvent("approval", s.NextCorrelationID(), func(v payload.Payload, err error) error {
			var r string
			require.NoError(t, cv.From(v, &r))
			got = append(got, r)
			return nil
		}))
	}

	require.NoError(t, s.ReceiveEvent("approval", payload.Payload(`"a"`)))
	require.NoError(t, s.ReceiveEvent("approval", payload.Payload(`"b"`)))
	require.NoError(t, s.ReceiveEvent("other", payload.Payload(`"c"`)))

	require.Equal(t, []string{"a", "b"}, got)
	require.False(t, s.HasPendingFutures())
}

func Test_CustomStatus(t *testing.T) {
	s := newState()
	require.False(t, s.CustomStatusChanged())

	s.SetCustomStatus(payload.Payload(`"50%"`))
	require.True(t, s.CustomStatusChanged())

	s.RecordCustomStatus(payload.Payload(`"50%"`))
	require.False(t, s.CustomStatusChanged())
}

func Test_NewGUID_Deterministic(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := newState()
	a.SetTime(now)
	b := newState()
	b.SetTime(now)

	require.Equal(t, a.NewGUID(), b.NewGUID())
	require.Equal(t, a.NewGUID(), b.NewGUID())

	c := newState()
	c.SetTime(now)
	first := c.NewGUID()
	require.NotEqual(t, first, c.NewGUID())
}

func Test_ReplayLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := NewOrchestrationState(&Instance{InstanceID: "instance"}, logger, noop.NewTracerProvider().Tracer("test"))

	s.SetReplaying(true)
	s.Logger().Info("during replay")
	require.Empty(t, buf.String())

	s.SetReplaying(false)
	s.Logger().With("key", "value").WithGroup("group").Info("after replay")
	require.Contains(t, buf.String(), "after replay")
	require.IsType(t, &replayHandler{}, s.Logger().With("k", "v").Handler())
}

func Test_OrchestrationState_FromContext(t *testing.T) {
	s := newState()
	ctx := WithOrchestrationState(sync.Background(), s)

	require.Same(t, s, OrchestrationState(ctx))
	require.Panics(t, func() { OrchestrationState(sync.Background()) })
}
