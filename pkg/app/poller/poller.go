package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/app/moderation"
	domain "github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/platform"
)

// State of a poller's run loop.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Options tune one poller instance.
type Options struct {
	// Interval between fetch cycles.
	Interval time.Duration
	// BatchLimit caps items requested per cycle.
	BatchLimit int
	// SeenCapacity bounds the deduplication window.
	SeenCapacity int
}

// Poller drives one platform source: fetch, dedupe, moderate, repeat.
type Poller struct {
	source platform.Source
	engine *moderation.Engine
	opts   Options
	seen   *SeenSet
	logger *logrus.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func New(source platform.Source, engine *moderation.Engine, opts Options, logger *logrus.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Minute
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 50
	}
	if opts.SeenCapacity <= 0 {
		opts.SeenCapacity = 10000
	}
	return &Poller{
		source: source,
		engine: engine,
		opts:   opts,
		seen:   NewSeenSet(opts.SeenCapacity),
		logger: logger,
		state:  StateStopped,
	}
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start launches the run loop. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRunning {
		p.logger.WithField("platform", p.source.Platform()).Warn("Poller already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state = StateRunning

	p.logger.WithFields(logrus.Fields{
		"platform": p.source.Platform(),
		"interval": p.opts.Interval.String(),
	}).Info("Poller started")

	go p.run(runCtx, p.done)
}

// Stop cancels the run loop and waits for the in-flight cycle to finish.
// Stopping a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()

	p.logger.WithField("platform", p.source.Platform()).Info("Poller stopped")
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle fetches one batch and moderates every unseen item. A panic in a
// cycle is contained so a bad payload cannot kill the loop.
func (p *Poller) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"platform": p.source.Platform(),
				"panic":    r,
			}).Error("Poll cycle panicked")
		}
	}()

	items, err := p.source.ListNew(ctx, p.opts.BatchLimit)
	if err != nil {
		if errors.Is(err, platform.ErrRateLimited) {
			p.logger.WithField("platform", p.source.Platform()).
				Warn("Platform rate limited, deferring cycle")
		} else if !errors.Is(err, context.Canceled) {
			p.logger.WithError(err).WithField("platform", p.source.Platform()).
				Error("Failed to fetch new content")
		}
		if len(items) == 0 {
			return
		}
	}

	fresh := 0
	for _, item := range items {
		if p.seen.Seen(item.ID) {
			continue
		}
		fresh++
		p.moderate(ctx, item)
	}

	if fresh > 0 {
		p.logger.WithFields(logrus.Fields{
			"platform": p.source.Platform(),
			"fetched":  len(items),
			"fresh":    fresh,
		}).Debug("Poll cycle completed")
	}
}

// moderate processes one item on a context detached from the run loop:
// stopping the poller never aborts an item already being moderated.
func (p *Poller) moderate(ctx context.Context, item domain.ContentItem) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	p.engine.Process(mctx, item, p.source)
}
