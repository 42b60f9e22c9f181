// Package scan runs queued uploads through the two-stage diagnosis provider,
// one job at a time.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/vulnhunter/internal/cache"
	"github.com/kiranshivaraju/vulnhunter/internal/lifecycle"
	"github.com/kiranshivaraju/vulnhunter/internal/planner"
	"github.com/kiranshivaraju/vulnhunter/internal/queue"
	"github.com/kiranshivaraju/vulnhunter/internal/staging"
	"github.com/kiranshivaraju/vulnhunter/internal/store"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

const maxErrorBytes = 2000

// Options tunes the runner. Zero values fall back to the defaults.
type Options struct {
	BatchSize        int
	RateLimitPause   time.Duration
	InferenceTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize < 1 {
		o.BatchSize = planner.DefaultBatchSize
	}
	if o.RateLimitPause <= 0 {
		o.RateLimitPause = 60 * time.Second
	}
	if o.InferenceTimeout <= 0 {
		o.InferenceTimeout = 120 * time.Second
	}
	return o
}

// Runner owns the job queue and a single worker goroutine that is spawned on
// demand and exits when the queue drains.
type Runner struct {
	store    store.Store
	staging  *staging.Store
	provider models.DiagnosisProvider
	cache    cache.Cache
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sleep waits out a rate-limit pause; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	queue   *queue.JobQueue
	running bool
	done    chan struct{}
}

// NewRunner creates an idle runner. Call Close to stop the worker.
func NewRunner(st store.Store, files *staging.Store, provider models.DiagnosisProvider, ca cache.Cache, opts Options) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Runner{
		store:    st,
		staging:  files,
		provider: provider,
		cache:    ca,
		opts:     opts.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		sleep:    sleepContext,
		queue:    queue.New(),
		done:     idle,
	}
}

// Enqueue appends id to the queue, starts the worker if it is idle, and
// returns the 0-based queue position.
func (r *Runner) Enqueue(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.queue.AddJob(id)
	if !r.running && r.ctx.Err() == nil {
		r.running = true
		r.done = make(chan struct{})
		r.wg.Add(1)
		go r.work(r.done)
	}
	return pos
}

// Cancel removes id from the queue. A job that is already being processed
// finishes, and its result is discarded if the upload is no longer queued.
func (r *Runner) Cancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue.RemoveJob(id)
}

// Position returns the 0-based queue position of id, or -1.
func (r *Runner) Position(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.FindJob(id)
}

// Len returns the number of queued jobs, including the one being processed.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Len()
}

// Paused reports whether the queue is waiting out a rate-limit pause, and for how long.
func (r *Runner) Paused() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Paused(), r.queue.PauseDelay()
}

// Done returns a channel closed when the current worker exits. When no worker
// is running the channel is already closed.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Close cancels in-flight work and waits for the worker to exit. Queued jobs
// are not persisted.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) work(done chan struct{}) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		if r.ctx.Err() != nil {
			r.stopLocked(done)
			r.mu.Unlock()
			return
		}

		if r.queue.Paused() {
			delay := r.queue.PauseDelay()
			r.mu.Unlock()

			slog.Warn("scan queue paused", "delay", delay.String())
			if err := r.sleep(r.ctx, delay); err != nil {
				continue
			}

			r.mu.Lock()
			r.queue.Resume()
			r.mu.Unlock()
			slog.Info("scan queue resumed")
			continue
		}

		id, ok := r.queue.Front()
		if !ok {
			r.stopLocked(done)
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		r.processJob(r.ctx, id)
	}
}

func (r *Runner) stopLocked(done chan struct{}) {
	r.running = false
	close(done)
}

// processJob scans one upload. It returns after the job completes, fails, or
// is pushed back to the front of the queue by a provider error.
func (r *Runner) processJob(ctx context.Context, id string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in processJob", "error", rec, "upload_id", id)
			r.fail(ctx, id, fmt.Errorf("internal error: %v", rec))
		}
	}()

	files, _ := r.staging.Files(id)
	batches, err := planner.Plan(files, r.opts.BatchSize)
	if err != nil {
		r.fail(ctx, id, err)
		return
	}

	slog.Info("scan started", "upload_id", id, "files", len(files), "batches", len(batches))

	diags := []models.Diagnostic{}
	for i, batch := range batches {
		slog.Debug("scanning batch", "upload_id", id, "batch", i, "paths", batch.Paths())
		found, err := r.analyzeBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("scan interrupted", "upload_id", id, "batch", i)
				return
			}
			slog.Warn("provider call failed, pausing queue",
				"upload_id", id, "batch", i, "provider", r.provider.Name(), "error", err)
			r.backoff(id)
			return
		}
		diags = append(diags, found...)
	}

	r.complete(ctx, id, diags)
}

// analyzeBatch runs both provider stages for one batch. The second stage sees
// the batch input followed by the first stage's raw answer.
func (r *Runner) analyzeBatch(ctx context.Context, batch planner.Batch) ([]models.Diagnostic, error) {
	input := batch.Input()

	diagCtx, cancel := context.WithTimeout(ctx, r.opts.InferenceTimeout)
	raw, err := r.provider.Diagnose(diagCtx, input)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("diagnose: %w", err)
	}

	input += "\n" + raw

	analyzeCtx, cancel := context.WithTimeout(ctx, r.opts.InferenceTimeout)
	defer cancel()
	diags, err := r.provider.Analyze(analyzeCtx, input)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return diags, nil
}

// backoff moves id to the front of the queue and pauses the whole queue. A job
// cancelled while it was running is dropped instead, and the queue keeps going.
func (r *Runner) backoff(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queue.FindJob(id) < 0 {
		slog.Info("provider failed for a cancelled upload, not pausing", "upload_id", id)
		r.staging.Discard(id)
		return
	}
	r.queue.RemoveJob(id)
	r.queue.PushFront(id)
	r.queue.Pause(r.opts.RateLimitPause)
}

func (r *Runner) complete(ctx context.Context, id string, diags []models.Diagnostic) {
	saved := r.finalize(ctx, id, lifecycle.EventScanCompleted, func(u *models.Upload) {
		u.Diagnostics = diags
	})
	if saved {
		slog.Info("scan completed", "upload_id", id, "diagnostics", len(diags))
	}
}

func (r *Runner) fail(ctx context.Context, id string, cause error) {
	msg := truncateString(cause.Error(), maxErrorBytes)
	saved := r.finalize(ctx, id, lifecycle.EventScanFailed, func(u *models.Upload) {
		u.UploadError = msg
	})
	if saved {
		slog.Warn("scan failed", "upload_id", id, "error", msg)
	}
}

// finalize applies the terminal transition to the stored record, then drops
// the job from the queue and its staged files. A record that is missing or no
// longer queued is left untouched. It reports whether the result was saved.
func (r *Runner) finalize(ctx context.Context, id string, ev lifecycle.Event, mutate func(*models.Upload)) bool {
	defer r.finish(id)

	u, err := r.store.GetUpload(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("upload record missing, discarding scan result", "upload_id", id)
		} else {
			slog.Error("loading upload failed, discarding scan result", "upload_id", id, "error", err)
		}
		return false
	}

	if err := lifecycle.Apply(u, ev); err != nil {
		slog.Info("upload no longer queued, discarding scan result", "upload_id", id, "status", u.Status)
		return false
	}
	mutate(u)

	if err := r.store.SaveUpload(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			slog.Info("upload changed during scan, discarding scan result", "upload_id", id)
		} else {
			slog.Error("saving scan result failed", "upload_id", id, "error", err)
		}
		return false
	}
	if err := cache.PutUpload(ctx, r.cache, u); err != nil {
		slog.Warn("caching upload failed", "upload_id", id, "error", err)
	}
	return true
}

func (r *Runner) finish(id string) {
	r.mu.Lock()
	r.queue.RemoveJob(id)
	r.mu.Unlock()
	r.staging.Discard(id)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
