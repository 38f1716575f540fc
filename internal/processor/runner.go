package processor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// ImageReducer is the per-file step the Runner drives.
type ImageReducer interface {
	Reduce(ctx context.Context, task ImageTask) (Result, error)
}

// Runner executes reductions over a batch of files, one at a time or on a
// worker pool. A failing file is recorded and never stops the others.
type Runner struct {
	Reducer ImageReducer
	Workers int // parallel pool size; 0 means runtime.NumCPU()
	Log     zerolog.Logger
}

// RunPath collects the images under root, stamps each with the settings in
// tmpl and runs them. Finding nothing is fatal and reported as ErrNoFilesFound.
func (r *Runner) RunPath(ctx context.Context, root string, recursive bool, tmpl ImageTask, updates chan<- ProgressUpdate) (Summary, error) {
	files, err := Collect(root, recursive)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("%w in %s", ErrNoFilesFound, root)
	}

	tasks := make([]ImageTask, len(files))
	for i, f := range files {
		t := tmpl
		t.Path = f
		tasks[i] = t
	}
	return r.Run(ctx, tasks, tmpl.Parallel, updates)
}

// Run reduces every task and returns the aggregate. Outcomes are streamed to
// updates, when non-nil, in completion order. Cancelling ctx stops new files
// from starting; files already in progress finish and are counted.
func (r *Runner) Run(ctx context.Context, tasks []ImageTask, parallel bool, updates chan<- ProgressUpdate) (Summary, error) {
	summary := Summary{Total: len(tasks)}
	if len(tasks) == 0 {
		return summary, ErrNoFilesFound
	}

	if updates != nil {
		updates <- ProgressUpdate{TotalDelta: len(tasks)}
	}

	if !parallel {
		for _, task := range tasks {
			if ctx.Err() != nil {
				break
			}
			o := r.process(ctx, task)
			summary.add(o)
			emit(updates, o)
		}
		summary.Skipped = summary.Total - summary.Processed - summary.Failed
		return summary, nil
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	jobs := make(chan ImageTask)
	results := make(chan outcome)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- r.process(ctx, task)
			}
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for o := range results {
			summary.add(o)
			emit(updates, o)
		}
	}()

	go func() {
		defer close(jobs)
		for _, task := range tasks {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	summary.Skipped = summary.Total - summary.Processed - summary.Failed
	if summary.Skipped > 0 {
		r.Log.Warn().Int("skipped", summary.Skipped).Msg("batch interrupted")
	}
	return summary, nil
}

// process runs one file and turns every failure, panics included, into a
// ReductionError for that file.
func (r *Runner) process(ctx context.Context, task ImageTask) (o outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			o = outcome{err: &ReductionError{
				Path: task.Path,
				Kind: KindIOFailure,
				Err:  fmt.Errorf("%w: panic: %v", ErrIOFailure, rec),
			}}
		}
	}()

	res, err := r.Reducer.Reduce(ctx, task)
	if err != nil {
		re := newReductionError(task.Path, err)
		r.Log.Debug().Str("path", task.Path).Str("kind", string(re.Kind)).Err(re.Err).Msg("reduce failed")
		return outcome{err: re}
	}
	r.Log.Debug().Str("path", res.Output).Int64("bytes", res.Bytes).Int("quality", res.Quality).Msg("reduced")
	return outcome{res: res}
}

func emit(updates chan<- ProgressUpdate, o outcome) {
	if updates == nil {
		return
	}
	if o.err != nil {
		updates <- ProgressUpdate{ProcessedDelta: 1, ErrorDelta: 1, Err: o.err}
		return
	}
	res := o.res
	updates <- ProgressUpdate{
		ProcessedDelta:  1,
		BytesSavedDelta: res.OriginalBytes - res.Bytes,
		Result:          &res,
	}
}
