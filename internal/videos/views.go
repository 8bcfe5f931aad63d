// Package videos runs background work triggered by video playback.
package videos

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/metrics"
)

// ViewStore persists a single view of a video.
type ViewStore interface {
	RecordView(ctx context.Context, videoID, viewerID string, at time.Time) error
}

// ViewRecorderConfig controls the concurrency characteristics of the recorder.
type ViewRecorderConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// View is one playback to be counted.
type View struct {
	VideoID  string
	ViewerID string
	At       time.Time
}

// ViewRecorder counts views and updates watch history off the request path.
// Recording is best-effort: a full queue drops the view.
type ViewRecorder struct {
	store   ViewStore
	logger  *slog.Logger
	timeout time.Duration

	jobs   chan View
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

var errRecorderClosed = errors.New("view recorder closed")

// NewViewRecorder starts the worker pool.
func NewViewRecorder(store ViewStore, cfg ViewRecorderConfig, logger *slog.Logger) *ViewRecorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	rec := &ViewRecorder{
		store:   store,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan View, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	rec.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go rec.worker()
	}

	return rec
}

// Enqueue schedules a view without blocking. It reports whether the view was
// accepted.
func (r *ViewRecorder) Enqueue(view View) bool {
	if view.At.IsZero() {
		view.At = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(view, errRecorderClosed)
		return false
	}

	select {
	case r.jobs <- view:
		return true
	default:
		r.drop(view, errors.New("queue full"))
		return false
	}
}

// Shutdown stops accepting views and waits for queued ones to be written.
// Views still queued when ctx expires are abandoned.
func (r *ViewRecorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	case <-done:
		r.cancel()
		return nil
	}
}

func (r *ViewRecorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case view, ok := <-r.jobs:
			if !ok {
				return
			}
			r.record(view)
		}
	}
}

func (r *ViewRecorder) record(view View) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	if err := r.store.RecordView(ctx, view.VideoID, view.ViewerID, view.At); err != nil {
		r.logger.Error("record view failed", "videoId", view.VideoID, "viewerId", view.ViewerID, "error", err)
	}
}

func (r *ViewRecorder) drop(view View, reason error) {
	metrics.ViewDropped()
	r.logger.Warn("view dropped", "videoId", view.VideoID, "reason", reason.Error())
}
