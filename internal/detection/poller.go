package detection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glassgauge/gauge-backend/internal/camera"
)

// FrameSource yields the most recent camera frame, or nil when the device
// has not produced one yet.
type FrameSource interface {
	Capture(ctx context.Context) (*camera.Frame, error)
}

type PollerConfig struct {
	Interval time.Duration
	Detector Detector
	Source   FrameSource
	Filter   *Filter
	// OnPoll receives the outcome of every completed poll: the new object
	// list, wholesale, and a non-nil error when the tick failed. A failed
	// tick always carries an empty list; the loop keeps going either way.
	OnPoll func([]Object, error)
	Logger *slog.Logger
}

// Poller drives the detection loop: one frame per tick, one detector call
// at a time. Polls run inline on the loop goroutine, so a slow detector
// call delays the next poll instead of overlapping it; ticks that fire
// while a call is in flight are dropped.
type Poller struct {
	interval time.Duration
	detector Detector
	source   FrameSource
	filter   *Filter
	onPoll   func([]Object, error)
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.Filter == nil {
		cfg.Filter = NewFilter(nil, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Poller{
		interval: cfg.Interval,
		detector: cfg.Detector,
		source:   cfg.Source,
		filter:   cfg.Filter,
		onPoll:   cfg.OnPoll,
		logger:   cfg.Logger.With("component", "detection-poller"),
	}
}

// Start launches the polling loop. Calling Start on a running poller is a
// no-op; there is never more than one loop per poller.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels the loop and waits for it to exit. Any in-flight detector
// call is abandoned; nothing is published after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	frame, err := p.source.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.emit(nil, fmt.Errorf("capture frame: %w", err))
		return
	}
	if frame == nil {
		p.emit(nil, nil)
		return
	}

	raw, err := p.detector.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.emit(nil, fmt.Errorf("detect objects: %w", err))
		return
	}

	p.emit(p.filter.Apply(raw, frame.Width, frame.Height), nil)
}

func (p *Poller) emit(objects []Object, err error) {
	if err != nil {
		p.logger.Warn("poll failed", "error", err)
	}
	if p.onPoll != nil {
		p.onPoll(objects, err)
	}
}
