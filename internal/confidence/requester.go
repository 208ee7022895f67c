package confidence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type RequesterConfig struct {
	Client   Assessor
	Debounce time.Duration
	OnResult func(*Result)
	Logger   *slog.Logger
}

// Requester debounces assessment triggers and keeps only the newest one
// alive. Every trigger gets a sequence number; a response publishes through
// OnResult only while its sequence is still the latest, so stale replies
// from slow requests are dropped. Failures publish nil and are logged at
// debug, never surfaced to the user.
type Requester struct {
	client   Assessor
	debounce time.Duration
	onResult func(*Result)
	logger   *slog.Logger

	mu      sync.Mutex
	seq     uint64
	timer   *time.Timer
	stopped bool
}

func NewRequester(cfg RequesterConfig) *Requester {
	if cfg.Debounce == 0 {
		cfg.Debounce = 400 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Requester{
		client:   cfg.Client,
		debounce: cfg.Debounce,
		onResult: cfg.OnResult,
		logger:   cfg.Logger.With("component", "confidence-requester"),
	}
}

// Request schedules an assessment after the debounce window. A newer call
// resets the window and supersedes anything already in flight.
func (r *Requester) Request(a Assessment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	r.seq++
	seq := r.seq
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		r.issue(seq, a)
	})
}

// Clear cancels any pending assessment and invalidates in-flight ones. The
// owner is expected to reset its own confidence state; Clear never invokes
// the callback.
func (r *Requester) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.seq++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Stop clears and prevents any further scheduling or publishing.
func (r *Requester) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	r.seq++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Requester) issue(seq uint64, a Assessment) {
	if !r.current(seq) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := r.client.Assess(ctx, a)
	if err != nil {
		r.logger.Debug("confidence assessment failed", "error", err)
		r.publish(seq, nil)
		return
	}
	r.publish(seq, result)
}

func (r *Requester) publish(seq uint64, result *Result) {
	if !r.current(seq) {
		return
	}
	if r.onResult != nil {
		r.onResult(result)
	}
}

func (r *Requester) current(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.stopped && seq == r.seq
}
