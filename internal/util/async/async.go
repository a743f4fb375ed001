package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes all tasks concurrently and waits for every one of
// them. Failures are joined, each prefixed with its task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "teardown 17", Func: teardown("17")},
//	    {Name: "teardown 42", Func: teardown("42")},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	return RunLimited(ctx, len(tasks), tasks)
}

// RunLimited is RunParallel with at most limit tasks in flight. A limit
// below one means no limit.
func RunLimited(ctx context.Context, limit int, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, task := range tasks {
		g.Go(func() error {
			if err := task.Func(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
				mu.Unlock()
			}
			// Failures are collected, never short-circuit siblings.
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
