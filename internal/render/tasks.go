package render

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/livedocs/internal/dom"
)

// ScriptRunner executes an inline page script. Scripts cannot run in-process;
// embedders plug in a runtime (a headless browser, a JS engine) here.
type ScriptRunner interface {
	Run(ctx context.Context, script dom.Script) error
}

// ViewFramework is a client-side view layer remounted after each render.
type ViewFramework interface {
	Destroy(ctx context.Context)
	Mount(ctx context.Context, selector string) error
}

// ScriptRunnerFunc adapts a function to ScriptRunner.
type ScriptRunnerFunc func(ctx context.Context, script dom.Script) error

// Run calls f.
func (f ScriptRunnerFunc) Run(ctx context.Context, script dom.Script) error { return f(ctx, script) }

// TaskQueue holds work deferred until the current render has finished.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []func(context.Context)
}

// Defer schedules fn for the next Drain.
func (q *TaskQueue) Defer(fn func(context.Context)) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

// Len reports how many tasks are waiting to run.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs queued tasks in order, including tasks queued while draining,
// and returns how many ran.
func (q *TaskQueue) Drain(ctx context.Context) int {
	ran := 0
	for {
		q.mu.Lock()
		tasks := q.tasks
		q.tasks = nil
		q.mu.Unlock()
		if len(tasks) == 0 {
			return ran
		}
		for _, fn := range tasks {
			fn(ctx)
			ran++
		}
	}
}
