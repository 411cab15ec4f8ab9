package pipeline

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// StepError records one failed fan-out step. Step errors are reported, never
// escalated: a run with step errors is still a successful run.
type StepError struct {
	Step string
	Err  error
}

func (s StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", s.Step, s.Err)
}

// stepRunner runs fan-out steps concurrently and collects their failures.
// Every step is attempted regardless of how the others fare.
type stepRunner struct {
	group  errgroup.Group
	mu     sync.Mutex
	errors []StepError
}

// run schedules one named step. The step's error is recorded, not returned,
// so the errgroup never short-circuits its siblings.
func (r *stepRunner) run(name string, fn func() error) {
	r.group.Go(func() error {
		if err := fn(); err != nil {
			r.mu.Lock()
			r.errors = append(r.errors, StepError{Step: name, Err: err})
			r.mu.Unlock()
		}
		return nil
	})
}

// wait blocks until all steps finish and returns their failures
func (r *stepRunner) wait() []StepError {
	_ = r.group.Wait()
	return r.errors
}
