// Package async runs a fixed set of named tasks on a bounded worker pool.
package async

import (
	"context"
	"fmt"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

type Result struct {
	Name string
	Data any
	Err  error
}

type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs every task and returns the results keyed by task name. If ctx
// ends first, tasks that did not finish are reported with ctx.Err().
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	queue := make(chan Task)
	results := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				data, err := task.Execute(ctx)
				results <- Result{Name: task.Name, Data: data, Err: err}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, task := range tasks {
			select {
			case queue <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]Result, len(tasks))
	for result := range results {
		out[result.Name] = result
	}
	for _, task := range tasks {
		if _, ok := out[task.Name]; !ok {
			out[task.Name] = Result{Name: task.Name, Err: ctx.Err()}
		}
	}
	return out
}

// Run is Execute for callers that need every task to succeed. It returns the
// data by name, or the error of the first failed task in tasks order.
func (p *Pool) Run(ctx context.Context, tasks []Task) (map[string]any, error) {
	results := p.Execute(ctx, tasks)
	data := make(map[string]any, len(results))
	for _, task := range tasks {
		r := results[task.Name]
		if r.Err != nil {
			return nil, fmt.Errorf("%s: %w", task.Name, r.Err)
		}
		data[task.Name] = r.Data
	}
	return data, nil
}
