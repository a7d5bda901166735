package internal

import (
	"context"
	"math/rand"

	"github.com/cschleiden/go-orchestrations/orchestration"
)

type MidInput struct {
	FanOut     int
	LeafFanOut int
	Depth      int

	Activities       int
	PayloadSizeBytes int
}

func Root(ctx orchestration.Context, input *MidInput) (int, error) {
	f := make([]orchestration.Future[int], 0, input.FanOut)

	for i := 0; i < input.FanOut; i++ {
		f = append(f, orchestration.CallSubOrchestration[int](ctx, orchestration.DefaultSubOrchestrationOptions, Mid, &MidInput{
			FanOut: input.FanOut,
			Depth:  input.Depth - 1,

			LeafFanOut: input.LeafFanOut,

			Activities:       input.Activities,
			PayloadSizeBytes: input.PayloadSizeBytes,
		}))
	}

	return sum(ctx, f)
}

func Mid(ctx orchestration.Context, input *MidInput) (int, error) {
	f := make([]orchestration.Future[int], 0)

	if input.Depth <= 0 {
		for i := 0; i < input.LeafFanOut; i++ {
			f = append(f, orchestration.CallSubOrchestration[int](ctx, orchestration.DefaultSubOrchestrationOptions, Leaf, &LeafInput{
				Activities:       input.Activities,
				PayloadSizeBytes: input.PayloadSizeBytes,
			}))
		}
	} else {
		for i := 0; i < input.FanOut; i++ {
			f = append(f, orchestration.CallSubOrchestration[int](ctx, orchestration.DefaultSubOrchestrationOptions, Mid, &MidInput{
				FanOut: input.FanOut,
				Depth:  input.Depth - 1,

				LeafFanOut: input.LeafFanOut,

				Activities:       input.Activities,
				PayloadSizeBytes: input.PayloadSizeBytes,
			}))
		}
	}

	return sum(ctx, f)
}

type LeafInput struct {
	Activities       int
	PayloadSizeBytes int
}

// Leaf returns the number of activities it executed.
func Leaf(ctx orchestration.Context, input *LeafInput) (int, error) {
	f := make([]orchestration.Future[string], 0, input.Activities)

	for i := 0; i < input.Activities; i++ {
		f = append(f, orchestration.CallActivity[string](ctx, orchestration.DefaultActivityOptions, Activity, &ActivityInput{
			PayloadSizeBytes: input.PayloadSizeBytes,
		}))
	}

	r, err := orchestration.WhenAll(f...).Get(ctx)
	return len(r), err
}

func sum(ctx orchestration.Context, f []orchestration.Future[int]) (int, error) {
	r, err := orchestration.WhenAll(f...).Get(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, v := range r {
		total += v
	}

	return total, nil
}

type ActivityInput struct {
	PayloadSizeBytes int
}

func Activity(ctx context.Context, input *ActivityInput) (string, error) {
	return randSeq(input.PayloadSizeBytes), nil
}

var alphabet = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

func randSeq(n int) string {
	r := rand.New(rand.NewSource(42))

	b := make([]rune, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}

	return string(b)
}

// ExpectedActivities returns the number of activities a root orchestration with the given input executes.
func ExpectedActivities(input *MidInput) int {
	mids := input.FanOut
	for d := input.Depth - 1; d > 0; d-- {
		mids *= input.FanOut
	}

	return mids * input.LeafFanOut * input.Activities
}
