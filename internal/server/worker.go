package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwbudde/thinfilm/internal/design"
	"github.com/cwbudde/thinfilm/internal/film"
	"github.com/cwbudde/thinfilm/internal/optim"
	"github.com/cwbudde/thinfilm/internal/store"
)

// progressInterval throttles SSE progress events.
var progressInterval = 500 * time.Millisecond

func loadDocument(cfg JobConfig) (*design.Document, error) {
	var (
		doc *design.Document
		err error
	)
	switch {
	case cfg.Document != "":
		doc, err = design.Decode(strings.NewReader(cfg.Document), cfg.BaseDir)
	case cfg.Path != "":
		doc, err = design.Load(cfg.Path)
	default:
		return nil, errors.New("job has neither document nor path")
	}
	if err != nil {
		return nil, err
	}
	if cfg.Method != "" {
		doc.Optimization.Method = cfg.Method
	}
	return doc, nil
}

func layerCount(f *film.Filter) int {
	return len(f.Layers(film.Front)) + len(f.Layers(film.Back))
}

// runJob optimises the design of a job. With a non-nil store the trace,
// the resulting snapshot and a spectrum are saved under the job ID.
func runJob(ctx context.Context, jm *JobManager, st *store.FSStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	doc, err := loadDocument(job.Config)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load design: %w", err))
		return err
	}
	f, targets, err := doc.Build()
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to build design: %w", err))
		return err
	}

	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.Design = doc.DisplayName()
		j.Method = doc.Optimization.Method
		j.Layers = layerCount(f)
		j.Progress = optim.Indeterminate
		j.filter = f
	})
	if err != nil {
		return err
	}
	slog.Info("Starting job", "job_id", jobID, "design", doc.DisplayName(), "method", doc.Optimization.Method)

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	var trace *store.TraceWriter
	if st != nil {
		trace, err = store.NewTraceWriter(st.BaseDir(), jobID, false)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		defer trace.Close()
	}

	hooks := design.Hooks{
		Progress: func(fraction float64) {
			jm.UpdateJob(jobID, func(j *Job) { j.Progress = fraction })
		},
		OnIteration: func(it optim.Iteration) {
			jm.UpdateJob(jobID, func(j *Job) {
				j.Iterations = it.N
				j.Chi2 = it.Chi2
			})
			if trace != nil {
				if err := trace.Write(store.TraceEntry{Iteration: it.N, Chi2: it.Chi2, Lambda: it.Lambda, Params: it.X}); err != nil {
					slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
				}
			}
		},
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	start := time.Now()
	out, err := doc.Run(ctx, f, targets, hooks)
	close(progressDone)
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		return ctx.Err()
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	if st != nil {
		if err := trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "job_id", jobID, "error", err)
		}
		if _, err := doc.Archive(st, jobID, f.Clone(), targets, out); err != nil {
			markJobFailed(jm, jobID, fmt.Errorf("failed to save design: %w", err))
			return err
		}
	}

	endTime := time.Now()
	var final *Job
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Method = out.Method
		j.Status = out.Status
		j.Chi2 = out.Chi2
		j.InitialChi2 = out.InitialChi2
		j.Iterations = out.Iterations
		j.Inserted = out.Inserted
		j.Layers = layerCount(f)
		j.Progress = 1
		j.EndTime = &endTime
		final = j.copy()
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"status", out.Status,
		"initial_chi2", out.InitialChi2,
		"chi2", out.Chi2,
		"layers", final.Layers,
	)
	jm.broadcaster.Broadcast(eventOf(final))
	return nil
}

// monitorProgress broadcasts the job state every progressInterval until
// done is closed.
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(eventOf(job))
		}
	}
}

func finish(jm *JobManager, jobID string, fn func(*Job)) {
	endTime := time.Now()
	var final *Job
	jm.UpdateJob(jobID, func(j *Job) {
		fn(j)
		j.EndTime = &endTime
		final = j.copy()
	})
	if final != nil {
		jm.broadcaster.Broadcast(eventOf(final))
	}
}

// markJobFailed records err on the job.
func markJobFailed(jm *JobManager, jobID string, err error) {
	finish(jm, jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

func markJobCancelled(jm *JobManager, jobID string) {
	finish(jm, jobID, func(j *Job) { j.State = StateCancelled })
	slog.Info("Job cancelled", "job_id", jobID)
}
