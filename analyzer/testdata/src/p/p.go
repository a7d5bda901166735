package p

// The analyzer looks for `orchestration.Context`, the import is aliased to not depend on the module
import (
	orchestration "context"
	"fmt"
	"math/rand"
	"time"
)

func orch(ctx orchestration.Context) error {
	return nil
}

func orchWithResult(ctx orchestration.Context) (string, error) {
	return "", nil
}

func orchWithTooManyResults(ctx orchestration.Context) (int, string, error) { // want "orchestrator \"orchWithTooManyResults\" returns more than two values"
	return 42, "", nil
}

func orchWrongOrder(ctx orchestration.Context) (error, string) { // want "orchestrator \"orchWrongOrder\" doesn't return `error` as last return value"
	return nil, ""
}

func orchWithoutReturn(ctx orchestration.Context) { // want "orchestrator \"orchWithoutReturn\" doesn't return anything. needs to return at least `error`"
}

func orchIteratingOverMap(ctx orchestration.Context) error {
	x := make(map[string]string)

	fmt.Println("log")

	for _, v := range x { // want "iterating over a map is not deterministic and not allowed in orchestrators"
		if v == "a" {
			return nil
		}
	}

	return nil
}

func orchIteratingOverSlice(ctx orchestration.Context) error {
	for _, v := range []string{"a"} {
		fmt.Println(v)
	}

	return nil
}

func orchUsingGoRoutine(ctx orchestration.Context) error {
	go func() { // want "use orchestration.Go instead of `go` in orchestrators"
		fmt.Println("hello")
	}()

	return nil
}

func orchUsingSelect(ctx orchestration.Context, c chan int) error {
	select { // want "use orchestration.WhenAny instead of `select` in orchestrators"
	case <-c:
	}

	return nil
}

func orchUsingTime(ctx orchestration.Context) (time.Duration, error) {
	start := time.Now() // want "use orchestration.Now instead of time.Now in orchestrators"

	time.Sleep(time.Second) // want "use orchestration.Sleep instead of time.Sleep in orchestrators"

	if true {
		<-time.After(time.Second) // want "use orchestration.ScheduleTimer instead of time.After in orchestrators"
	}

	return start.Sub(start), nil
}

func orchUsingRand(ctx orchestration.Context) (int, error) {
	return rand.Intn(10), nil // want "use orchestration.SideEffect instead of rand.Intn in orchestrators"
}

func notAnOrchestrator(ctx int) {
	go func() {}()
	_ = time.Now()
}
