package test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/client"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/orchestration"
	"github.com/cschleiden/go-orchestrations/registry"
	"github.com/cschleiden/go-orchestrations/worker"
)

const resultTimeout = 20 * time.Second

type e2eTest struct {
	name string
	f    func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker)
}

type chunkResult struct {
	ChunkID int    `json:"chunk_id"`
	Status  string `json:"status"`
}

// EndToEndBackendTest runs orchestrations through a worker and a client on top of the given backend.
func EndToEndBackendTest(t *testing.T, setup Setup, teardown func(b backend.Backend)) {
	tests := []e2eTest{
		{
			name: "SimpleOrchestration",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Greeter": func(ctx orchestration.Context, name string) (string, error) {
						return orchestration.CallActivity[string](ctx, orchestration.DefaultActivityOptions, "Greet", name).Get(ctx)
					},
				}, map[string]any{
					"Greet": func(_ context.Context, name string) (string, error) {
						return "hello " + name, nil
					},
				})

				r, err := runOrchestrationWithResult[string](t, ctx, c, "Greeter", "gopher")
				require.NoError(t, err)
				require.Equal(t, "hello gopher", r)
			},
		},
		{
			name: "FanOut_ResultsInSchedulingOrder",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Chunks": func(ctx orchestration.Context, total int) ([]chunkResult, error) {
						futures := make([]orchestration.Future[chunkResult], 0, total)
						for i := 1; i <= total; i++ {
							futures = append(futures, orchestration.CallActivity[chunkResult](ctx, orchestration.DefaultActivityOptions, "ProcessChunk", i))
						}

						return orchestration.WhenAll(futures...).Get(ctx)
					},
				}, map[string]any{
					"ProcessChunk": func(_ context.Context, chunkID int) (chunkResult, error) {
						if chunkID == 1 {
							// The first chunk finishes last
							time.Sleep(200 * time.Millisecond)
						}

						return chunkResult{ChunkID: chunkID, Status: "success"}, nil
					},
				})

				r, err := runOrchestrationWithResult[[]chunkResult](t, ctx, c, "Chunks", 3)
				require.NoError(t, err)
				require.Equal(t, []chunkResult{
					{ChunkID: 1, Status: "success"},
					{ChunkID: 2, Status: "success"},
					{ChunkID: 3, Status: "success"},
				}, r)
			},
		},
		{
			name: "FanOut_NoTasks",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Empty": func(ctx orchestration.Context) (int, error) {
						r, err := orchestration.WhenAll[int]().Get(ctx)
						return len(r), err
					},
				}, nil)

				r, err := runOrchestrationWithResult[int](t, ctx, c, "Empty")
				require.NoError(t, err)
				require.Equal(t, 0, r)
			},
		},
		{
			name: "ActivityFailure",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Failing": func(ctx orchestration.Context) (int, error) {
						return orchestration.CallActivity[int](ctx, orchestration.DefaultActivityOptions, "Boom").Get(ctx)
					},
				}, map[string]any{
					"Boom": func(context.Context) (int, error) {
						return 0, errTest
					},
				})

				id := runOrchestration(t, ctx, c, "Failing")

				_, err := client.GetOrchestrationResult[int](ctx, c, id, resultTimeout)
				require.ErrorContains(t, err, errTest.Error())

				s, err := c.GetOrchestrationState(ctx, id)
				require.NoError(t, err)
				require.Equal(t, core.StatusFailed, s.Status)
				require.NotNil(t, s.Error)
			},
		},
		{
			name: "ActivityRetries",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				var calls int32

				register(t, ctx, w, map[string]any{
					"Retrying": func(ctx orchestration.Context) (int32, error) {
						return orchestration.CallActivity[int32](ctx, orchestration.ActivityOptions{
							RetryPolicy: &orchestration.RetryPolicy{
								MaxAttempts:        3,
								FirstRetryInterval: 10 * time.Millisecond,
								BackoffCoefficient: 2,
							},
						}, "Flaky").Get(ctx)
					},
				}, map[string]any{
					"Flaky": func(context.Context) (int32, error) {
						n := atomic.AddInt32(&calls, 1)
						if n < 3 {
							return 0, errors.New("transient")
						}

						return n, nil
					},
				})

				r, err := runOrchestrationWithResult[int32](t, ctx, c, "Retrying")
				require.NoError(t, err)
				require.Equal(t, int32(3), r)
			},
		},
		{
			name: "ActivityPermanentErrorIsNotRetried",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				var calls int32

				register(t, ctx, w, map[string]any{
					"Permanent": func(ctx orchestration.Context) (int, error) {
						return orchestration.CallActivity[int](ctx, orchestration.ActivityOptions{
							RetryPolicy: &orchestration.RetryPolicy{
								MaxAttempts:        5,
								FirstRetryInterval: 10 * time.Millisecond,
							},
						}, "Fatal").Get(ctx)
					},
				}, map[string]any{
					"Fatal": func(context.Context) (int, error) {
						atomic.AddInt32(&calls, 1)
						return 0, orchestration.NewPermanentError(errors.New("fatal"))
					},
				})

				_, err := runOrchestrationWithResult[int](t, ctx, c, "Permanent")
				require.ErrorContains(t, err, "fatal")
				require.Equal(t, int32(1), atomic.LoadInt32(&calls))
			},
		},
		{
			name: "UnregisteredOrchestratorFailsInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, nil, nil)

				id := runOrchestration(t, ctx, c, "Missing")

				s, err := c.WaitForOrchestrationInstance(ctx, id, resultTimeout)
				require.NoError(t, err)
				require.Equal(t, core.StatusFailed, s.Status)
			},
		},
		{
			name: "UnregisteredActivity",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"CallsMissing": func(ctx orchestration.Context) (int, error) {
						return orchestration.CallActivity[int](ctx, orchestration.DefaultActivityOptions, "Missing").Get(ctx)
					},
				}, nil)

				_, err := runOrchestrationWithResult[int](t, ctx, c, "CallsMissing")
				require.ErrorContains(t, err, "activity not found")
			},
		},
		{
			name: "Timer",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Sleeper": func(ctx orchestration.Context) (time.Duration, error) {
						start := orchestration.Now(ctx)

						if err := orchestration.Sleep(ctx, 100*time.Millisecond); err != nil {
							return 0, err
						}

						return orchestration.Now(ctx).Sub(start), nil
					},
				}, nil)

				r, err := runOrchestrationWithResult[time.Duration](t, ctx, c, "Sleeper")
				require.NoError(t, err)
				require.GreaterOrEqual(t, r, 100*time.Millisecond)
			},
		},
		{
			name: "WhenAny_TimerWins",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Race": func(ctx orchestration.Context) (int, error) {
						timeout := orchestration.ScheduleTimer(ctx, 50*time.Millisecond)
						approval := orchestration.WaitForExternalEvent[bool](ctx, "never")

						return orchestration.WhenAny(ctx, timeout, approval)
					},
				}, nil)

				r, err := runOrchestrationWithResult[int](t, ctx, c, "Race")
				require.NoError(t, err)
				require.Equal(t, 0, r)
			},
		},
		{
			name: "ExternalEvents_FIFO",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				gate := make(chan struct{})

				register(t, ctx, w, map[string]any{
					"Approvals": func(ctx orchestration.Context) ([]string, error) {
						if _, err := orchestration.CallActivity[bool](ctx, orchestration.DefaultActivityOptions, "Gate").Get(ctx); err != nil {
							return nil, err
						}

						first, err := orchestration.WaitForExternalEvent[string](ctx, "Approved").Get(ctx)
						if err != nil {
							return nil, err
						}

						second, err := orchestration.WaitForExternalEvent[string](ctx, "Approved").Get(ctx)
						if err != nil {
							return nil, err
						}

						return []string{first, second}, nil
					},
				}, map[string]any{
					"Gate": func(ctx context.Context) (bool, error) {
						select {
						case <-gate:
						case <-ctx.Done():
						}

						return true, nil
					},
				})

				id := runOrchestration(t, ctx, c, "Approvals")

				require.NoError(t, c.RaiseEvent(ctx, id, "Approved", "first"))
				require.NoError(t, c.RaiseEvent(ctx, id, "Approved", "second"))
				close(gate)

				r, err := client.GetOrchestrationResult[[]string](ctx, c, id, resultTimeout)
				require.NoError(t, err)
				require.Equal(t, []string{"first", "second"}, r)
			},
		},
		{
			name: "CustomStatus",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Status": func(ctx orchestration.Context) (string, error) {
						if err := orchestration.SetCustomStatus(ctx, "waiting"); err != nil {
							return "", err
						}

						return orchestration.WaitForExternalEvent[string](ctx, "continue").Get(ctx)
					},
				}, nil)

				id := runOrchestration(t, ctx, c, "Status")

				require.Eventually(t, func() bool {
					s, err := c.GetOrchestrationState(ctx, id)
					return err == nil && string(s.CustomStatus) == `"waiting"`
				}, resultTimeout, 10*time.Millisecond)

				require.NoError(t, c.RaiseEvent(ctx, id, "continue", "done"))

				r, err := client.GetOrchestrationResult[string](ctx, c, id, resultTimeout)
				require.NoError(t, err)
				require.Equal(t, "done", r)
			},
		},
		{
			name: "SubOrchestration",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Parent": func(ctx orchestration.Context, n int) (int, error) {
						r, err := orchestration.CallSubOrchestration[int](ctx, orchestration.DefaultSubOrchestrationOptions, "Child", n).Get(ctx)
						return r + 1, err
					},
					"Child": func(ctx orchestration.Context, n int) (int, error) {
						return n * 2, nil
					},
				}, nil)

				id := runOrchestration(t, ctx, c, "Parent", 20)

				r, err := client.GetOrchestrationResult[int](ctx, c, id, resultTimeout)
				require.NoError(t, err)
				require.Equal(t, 41, r)

				children, err := c.ListOrchestrationInstances(ctx, &core.InstanceFilter{ParentInstanceID: id})
				require.NoError(t, err)
				require.Len(t, children, 1)
				require.Equal(t, "Child", children[0].Name)
				require.Equal(t, core.StatusCompleted, children[0].Status)
			},
		},
		{
			name: "SubOrchestrationFailure",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Parent": func(ctx orchestration.Context) (int, error) {
						return orchestration.CallSubOrchestration[int](ctx, orchestration.DefaultSubOrchestrationOptions, "Child").Get(ctx)
					},
					"Child": func(ctx orchestration.Context) (int, error) {
						return 0, errTest
					},
				}, nil)

				_, err := runOrchestrationWithResult[int](t, ctx, c, "Parent")
				require.ErrorContains(t, err, errTest.Error())
			},
		},
		{
			name: "Terminate_StopsProcessing",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				started := make(chan struct{})
				release := make(chan struct{})

				register(t, ctx, w, map[string]any{
					"LongRunning": func(ctx orchestration.Context) (bool, error) {
						return orchestration.CallActivity[bool](ctx, orchestration.DefaultActivityOptions, "Block").Get(ctx)
					},
				}, map[string]any{
					"Block": func(ctx context.Context) (bool, error) {
						close(started)

						select {
						case <-release:
						case <-ctx.Done():
						}

						return true, nil
					},
				})

				id := runOrchestration(t, ctx, c, "LongRunning")

				select {
				case <-started:
				case <-time.After(resultTimeout):
					t.Fatal("activity not started")
				}

				require.NoError(t, c.TerminateOrchestrationInstance(ctx, id, "user cancel"))

				s, err := c.GetOrchestrationState(ctx, id)
				require.NoError(t, err)
				require.Equal(t, core.StatusTerminated, s.Status)
				require.Equal(t, "user cancel", s.TerminationReason)

				close(release)

				// The activity result is dropped
				time.Sleep(500 * time.Millisecond)

				h, err := b.ReadHistory(ctx, id)
				require.NoError(t, err)
				require.Equal(t, history.EventType_ExecutionTerminated, h[len(h)-1].Type)

				_, err = client.GetOrchestrationResult[bool](ctx, c, id, resultTimeout)
				require.ErrorIs(t, err, client.ErrOrchestrationTerminated)
			},
		},
		{
			name: "Terminate_SubOrchestrations",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Parent": func(ctx orchestration.Context) (int, error) {
						return orchestration.CallSubOrchestration[int](ctx, orchestration.DefaultSubOrchestrationOptions, "Child").Get(ctx)
					},
					"Child": func(ctx orchestration.Context) (int, error) {
						return orchestration.WaitForExternalEvent[int](ctx, "never").Get(ctx)
					},
				}, nil)

				id := runOrchestration(t, ctx, c, "Parent")

				var childID string
				require.Eventually(t, func() bool {
					children, err := c.ListOrchestrationInstances(ctx, &core.InstanceFilter{ParentInstanceID: id})
					if err != nil || len(children) != 1 {
						return false
					}

					childID = children[0].InstanceID
					return true
				}, resultTimeout, 10*time.Millisecond)

				require.NoError(t, c.TerminateOrchestrationInstance(ctx, id, "cleanup"))

				s, err := c.GetOrchestrationState(ctx, childID)
				require.NoError(t, err)
				require.Equal(t, core.StatusTerminated, s.Status)
			},
		},
		{
			name: "RestartAfterCompletion",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Echo": func(ctx orchestration.Context, s string) (string, error) {
						return s, nil
					},
				}, nil)

				id := uuid.NewString()

				for _, input := range []string{"first", "second"} {
					_, err := c.CreateOrchestrationInstance(ctx, client.InstanceOptions{InstanceID: id}, "Echo", input)
					require.NoError(t, err)

					r, err := client.GetOrchestrationResult[string](ctx, c, id, resultTimeout)
					require.NoError(t, err)
					require.Equal(t, input, r)
				}

				_, err := c.CreateOrchestrationInstance(ctx, client.InstanceOptions{InstanceID: id, RestartPolicy: client.RestartNever}, "Echo", "third")
				require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
			},
		},
		{
			name: "PurgeCompletedInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *client.Client, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"Noop": func(ctx orchestration.Context) error {
						return nil
					},
				}, nil)

				id := runOrchestration(t, ctx, c, "Noop")

				_, err := c.WaitForOrchestrationInstance(ctx, id, resultTimeout)
				require.NoError(t, err)

				require.NoError(t, c.PurgeOrchestrationInstance(ctx, id))

				_, err = c.GetOrchestrationState(ctx, id)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)

				h, err := b.ReadHistory(ctx, id)
				require.NoError(t, err)
				require.Empty(t, h)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			ctx, cancel := context.WithCancel(context.Background())

			c := client.New(b)
			w := worker.New(b, workerOptions())

			tt.f(t, ctx, b, c, w)

			cancel()
			require.NoError(t, w.WaitForCompletion(), "worker did not stop")

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

func workerOptions() *worker.Options {
	o := worker.DefaultOptions
	o.OrchestrationPollingInterval = 5 * time.Millisecond
	o.ActivityPollingInterval = 5 * time.Millisecond
	o.TimerPollingInterval = 5 * time.Millisecond

	return &o
}

func register(t *testing.T, ctx context.Context, w *worker.Worker, orchestrators map[string]any, activities map[string]any) {
	t.Helper()

	for name, o := range orchestrators {
		require.NoError(t, w.RegisterOrchestrator(o, registry.WithName(name)))
	}

	for name, a := range activities {
		require.NoError(t, w.RegisterActivity(a, registry.WithName(name)))
	}

	require.NoError(t, w.Start(ctx))
}

func runOrchestration(t *testing.T, ctx context.Context, c *client.Client, name string, inputs ...any) string {
	t.Helper()

	id, err := c.CreateOrchestrationInstance(ctx, client.InstanceOptions{
		InstanceID: uuid.NewString(),
	}, name, inputs...)
	require.NoError(t, err, fmt.Sprintf("creating %s", name))

	return id
}

func runOrchestrationWithResult[T any](t *testing.T, ctx context.Context, c *client.Client, name string, inputs ...any) (T, error) {
	id := runOrchestration(t, ctx, c, name, inputs...)
	return client.GetOrchestrationResult[T](ctx, c, id, resultTimeout)
}
