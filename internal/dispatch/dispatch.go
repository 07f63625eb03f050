// Package dispatch runs independent work items on a bounded worker pool and
// returns exactly one result per item, in submission order.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Result is the outcome of one item. Index is the item's submission position.
type Result[R any] struct {
	Index    int
	Value    R
	Err      error
	Elapsed  time.Duration
	Launched bool
}

// Func processes one item.
type Func[T, R any] func(ctx context.Context, index int, item T) (R, error)

// Progress is called from the collector goroutine after each item settles.
type Progress func(done, total, index int, err error)

type options struct {
	progress Progress
}

// Option customizes Run.
type Option func(*options)

// WithProgress registers a completion callback.
func WithProgress(fn Progress) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// Run processes items with at most maxWorkers calls to fn in flight. Items
// are handed out in submission order; completion order is unconstrained. A
// failing item never stops its siblings. Once ctx is cancelled no new item is
// started and every unstarted item reports the cancellation cause; calls
// already in flight finish on their own.
func Run[T, R any](ctx context.Context, items []T, maxWorkers int, fn Func[T, R], opts ...Option) []Result[R] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	total := len(items)
	results := make([]Result[R], total)
	if total == 0 {
		return results
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > total {
		maxWorkers = total
	}

	jobs := make(chan int)
	settled := make(chan Result[R])

	go func() {
		defer close(jobs)
		for i := range items {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	var wg sync.WaitGroup
	for range maxWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					settled <- Result[R]{Index: i, Err: notStarted(ctx, i)}
					continue
				}
				settled <- invoke(ctx, i, items[i], fn)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(settled)
	}()

	seen := make([]bool, total)
	done := 0
	for res := range settled {
		results[res.Index] = res
		seen[res.Index] = true
		done++
		if o.progress != nil {
			o.progress(done, total, res.Index, res.Err)
		}
	}
	for i := range results {
		if !seen[i] {
			results[i] = Result[R]{Index: i, Err: notStarted(ctx, i)}
		}
	}
	return results
}

func invoke[T, R any](ctx context.Context, index int, item T, fn Func[T, R]) (res Result[R]) {
	res = Result[R]{Index: index, Launched: true}
	started := time.Now()
	defer func() {
		res.Elapsed = time.Since(started)
		if r := recover(); r != nil {
			res.Err = services.Wrap(services.ErrChunkAnalysisFailed, "dispatch", fmt.Sprintf("item %d", index),
				fmt.Sprintf("panic: %v\n%s", r, debug.Stack()), nil)
		}
	}()
	res.Value, res.Err = fn(ctx, index, item)
	return res
}

func notStarted(ctx context.Context, index int) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("item %d not started: %w", index, cause)
}
