package orchestrationstate

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/command"
	"github.com/cschleiden/go-orchestrations/internal/sync"
)

type key int

var stateCtxKey key

// Instance identifies the running orchestration instance.
type Instance struct {
	InstanceID string

	// Name is the registered name of the orchestrator
	Name string

	// ParentInstanceID is set for sub-orchestrations
	ParentInstanceID string
}

// DecodingSettable resolves a tracked future from a history payload.
type DecodingSettable func(v payload.Payload, err error) error

func AsDecodingSettable[T any](cv converter.Converter, f sync.SettableFuture[T]) DecodingSettable {
	return func(v payload.Payload, err error) error {
		var t T

		if err == nil {
			if cerr := cv.From(v, &t); cerr != nil {
				return f.Set(t, fmt.Errorf("converting result: %w", cerr))
			}
		}

		return f.Set(t, err)
	}
}

type pendingFuture struct {
	name string
	f    DecodingSettable
}

// guidNamespace seeds deterministic GUIDs generated by orchestration code.
var guidNamespace = uuid.MustParse("9e952958-5e33-4daf-827f-2fa12937b875")

// OrchState is the replay state of one orchestration execution: the correlation ID counter, the decisions
// made so far, and the futures and external event waits still open.
type OrchState struct {
	instance          *Instance
	nextCorrelationID int64
	commands          []command.Command
	pendingFutures    map[int64]pendingFuture

	// eventWaiters holds the correlation IDs of open external event waits, per event name, in the order
	// the waits were issued
	eventWaiters   map[string][]int64
	bufferedEvents map[string][]payload.Payload

	customStatus         payload.Payload
	recordedCustomStatus payload.Payload

	replaying bool
	time      time.Time

	guidCounter int

	logger *slog.Logger
	tracer trace.Tracer
}

func NewOrchestrationState(instance *Instance, logger *slog.Logger, tracer trace.Tracer) *OrchState {
	s := &OrchState{
		instance:       instance,
		commands:       []command.Command{},
		pendingFutures: map[int64]pendingFuture{},
		eventWaiters:   map[string][]int64{},
		bufferedEvents: map[string][]payload.Payload{},
		tracer:         tracer,
	}

	s.logger = NewReplayLogger(s, logger)

	return s
}

func OrchestrationState(ctx sync.Context) *OrchState {
	s, ok := ctx.Value(stateCtxKey).(*OrchState)
	if !ok {
		panic("orchestration state not found, not an orchestration context")
	}

	return s
}

func WithOrchestrationState(ctx sync.Context, s *OrchState) sync.Context {
	return sync.WithValue(ctx, stateCtxKey, s)
}

// NextCorrelationID returns the correlation ID for the next scheduling call. IDs start at 0 and are
// assigned in program order.
func (s *OrchState) NextCorrelationID() int64 {
	id := s.nextCorrelationID
	s.nextCorrelationID++
	return id
}

func (s *OrchState) TrackFuture(correlationID int64, name string, f DecodingSettable) {
	s.pendingFutures[correlationID] = pendingFuture{name: name, f: f}
}

func (s *OrchState) FutureByCorrelationID(correlationID int64) (DecodingSettable, bool) {
	pf, ok := s.pendingFutures[correlationID]
	return pf.f, ok
}

func (s *OrchState) RemoveFuture(correlationID int64) {
	delete(s.pendingFutures, correlationID)
}

func (s *OrchState) HasPendingFutures() bool {
	return len(s.pendingFutures) > 0
}

func (s *OrchState) PendingFutureNames() map[int64]string {
	names := make(map[int64]string, len(s.pendingFutures))
	for id, pf := range s.pendingFutures {
		names[id] = pf.name
	}

	return names
}

func (s *OrchState) AddCommand(cmd command.Command) {
	s.commands = append(s.commands, cmd)
}

func (s *OrchState) Commands() []command.Command {
	return s.commands
}

func (s *OrchState) CommandByCorrelationID(correlationID int64) command.Command {
	for _, c := range s.commands {
		if c.ID() == correlationID {
			return c
		}
	}

	return nil
}

// WaitForEvent registers a wait for the next external event with the given name. Events received before
// any wait are buffered and handed out first, waits are served in the order they were issued.
func (s *OrchState) WaitForEvent(name string, correlationID int64, f DecodingSettable) error {
	if buffered := s.bufferedEvents[name]; len(buffered) > 0 {
		arg := buffered[0]
		s.bufferedEvents[name] = buffered[1:]

		return f(arg, nil)
	}

	s.TrackFuture(correlationID, "event:"+name, f)
	s.eventWaiters[name] = append(s.eventWaiters[name], correlationID)

	return nil
}

// ReceiveEvent delivers an external event to the oldest open wait for it, or buffers it.
func (s *OrchState) ReceiveEvent(name string, arg payload.Payload) error {
	for len(s.eventWaiters[name]) > 0 {
		correlationID := s.eventWaiters[name][0]
		s.eventWaiters[name] = s.eventWaiters[name][1:]

		f, ok := s.FutureByCorrelationID(correlationID)
		if !ok {
			continue
		}

		s.RemoveFuture(correlationID)

		return f(arg, nil)
	}

	s.bufferedEvents[name] = append(s.bufferedEvents[name], arg)

	return nil
}

func (s *OrchState) SetCustomStatus(status payload.Payload) {
	s.customStatus = status
}

func (s *OrchState) CustomStatus() payload.Payload {
	return s.customStatus
}

// RecordCustomStatus notes a custom status already written to history.
func (s *OrchState) RecordCustomStatus(status payload.Payload) {
	s.recordedCustomStatus = status
}

// CustomStatusChanged returns true if orchestration code set a custom status which is not recorded yet.
func (s *OrchState) CustomStatusChanged() bool {
	return s.customStatus != nil && !bytes.Equal(s.customStatus, s.recordedCustomStatus)
}

func (s *OrchState) SetReplaying(replaying bool) {
	s.replaying = replaying
}

func (s *OrchState) Replaying() bool {
	return s.replaying
}

func (s *OrchState) SetTime(t time.Time) {
	s.time = t
}

func (s *OrchState) Time() time.Time {
	return s.time
}

// NewGUID returns a GUID derived from the instance, the current orchestration time and the number of GUIDs
// generated so far. Replays generate the same sequence.
func (s *OrchState) NewGUID() uuid.UUID {
	s.guidCounter++

	name := s.instance.InstanceID + "/" + s.time.UTC().Format(time.RFC3339Nano) + "/" + strconv.Itoa(s.guidCounter)

	return uuid.NewSHA1(guidNamespace, []byte(name))
}

func (s *OrchState) Instance() *Instance {
	return s.instance
}

func (s *OrchState) Logger() *slog.Logger {
	return s.logger
}

func (s *OrchState) Tracer() trace.Tracer {
	return s.tracer
}
