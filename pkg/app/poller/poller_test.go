package poller

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/cyberguard/guardian/pkg/app/metrics"
	appmod "github.com/cyberguard/guardian/pkg/app/moderation"
	"github.com/cyberguard/guardian/pkg/domain/moderation"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type safeEnsemble struct{}

func (safeEnsemble) Decide(ctx context.Context, text string) moderation.EnsembleVerdict {
	return moderation.EnsembleVerdict{
		Label:      moderation.LabelSafe,
		Confidence: 0.9,
		Source:     moderation.SourceLocalEnsemble,
	}
}

type fixedDetector struct{}

func (fixedDetector) Detect(text string) string { return "en" }

type countingPublisher struct {
	mu    sync.Mutex
	count int
	ids   map[string]int
}

func (p *countingPublisher) Publish(event moderation.ModerationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if p.ids == nil {
		p.ids = make(map[string]int)
	}
	p.ids[event.ItemID]++
}

func (p *countingPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *countingPublisher) timesFor(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ids[id]
}

// scriptedSource serves one batch per ListNew call, repeating the last
// batch once the script runs out.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]moderation.ContentItem
	calls   int
	panics  int
}

func (s *scriptedSource) Platform() string { return "scripted" }

func (s *scriptedSource) ListNew(ctx context.Context, limit int) ([]moderation.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics > 0 {
		s.panics--
		panic("malformed payload")
	}
	i := s.calls
	s.calls++
	if i >= len(s.batches) {
		if len(s.batches) == 0 {
			return nil, nil
		}
		i = len(s.batches) - 1
	}
	return s.batches[i], nil
}

func (s *scriptedSource) Remove(ctx context.Context, id string) (bool, error) { return true, nil }

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func item(id string) moderation.ContentItem {
	return moderation.ContentItem{ID: id, Text: "hello there", Platform: "scripted", Language: "en"}
}

func newTestPoller(src *scriptedSource, pub *countingPublisher, interval time.Duration) *Poller {
	engine := appmod.NewEngine(safeEnsemble{}, fixedDetector{},
		metrics.NewTracker(testLogger()), pub, nil, 0.8, testLogger())
	return New(src, engine, Options{
		Interval:     interval,
		BatchLimit:   10,
		SeenCapacity: 100,
	}, testLogger())
}

func TestPoller_DeduplicatesAcrossCycles(t *testing.T) {
	src := &scriptedSource{batches: [][]moderation.ContentItem{
		{item("a"), item("b")},
		{item("b"), item("c")}, // "b" overlaps the first batch
	}}
	pub := &countingPublisher{}
	p := newTestPoller(src, pub, 10*time.Millisecond)

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return pub.published() >= 3 },
		time.Second, 5*time.Millisecond)
	p.Stop()

	assert.Equal(t, 1, pub.timesFor("a"))
	assert.Equal(t, 1, pub.timesFor("b"))
	assert.Equal(t, 1, pub.timesFor("c"))
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	src := &scriptedSource{}
	p := newTestPoller(src, &countingPublisher{}, time.Hour)

	p.Start(context.Background())
	p.Start(context.Background())
	assert.Equal(t, StateRunning, p.State())

	// only the first Start launched a loop; one immediate cycle ran
	assert.Eventually(t, func() bool { return src.callCount() == 1 },
		time.Second, 5*time.Millisecond)
	p.Stop()
	assert.Equal(t, StateStopped, p.State())
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p := newTestPoller(&scriptedSource{}, &countingPublisher{}, time.Hour)
	p.Stop() // never started
	assert.Equal(t, StateStopped, p.State())

	p.Start(context.Background())
	p.Stop()
	p.Stop()
	assert.Equal(t, StateStopped, p.State())
}

func TestPoller_StopWaitsForCycle(t *testing.T) {
	release := make(chan struct{})
	src := &blockingSource{release: release}
	p := newTestPoller2(src, &countingPublisher{}, time.Hour)

	p.Start(context.Background())
	<-src.entered

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSource) Platform() string { return "blocking" }

func (s *blockingSource) ListNew(ctx context.Context, limit int) ([]moderation.ContentItem, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil, nil
}

func (s *blockingSource) Remove(ctx context.Context, id string) (bool, error) { return true, nil }

func newTestPoller2(src *blockingSource, pub *countingPublisher, interval time.Duration) *Poller {
	if src.entered == nil {
		src.entered = make(chan struct{})
	}
	engine := appmod.NewEngine(safeEnsemble{}, fixedDetector{},
		metrics.NewTracker(testLogger()), pub, nil, 0.8, testLogger())
	return New(src, engine, Options{Interval: interval, BatchLimit: 10, SeenCapacity: 100}, testLogger())
}

func TestPoller_SurvivesPanickingCycle(t *testing.T) {
	src := &scriptedSource{
		panics:  1,
		batches: [][]moderation.ContentItem{{item("x")}},
	}
	pub := &countingPublisher{}
	p := newTestPoller(src, pub, 10*time.Millisecond)

	p.Start(context.Background())
	// first cycle panics, a later cycle still delivers the item
	assert.Eventually(t, func() bool { return pub.timesFor("x") == 1 },
		time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestPoller_DefaultsApplied(t *testing.T) {
	p := newTestPoller(&scriptedSource{}, &countingPublisher{}, 0)
	assert.Equal(t, 2*time.Minute, p.opts.Interval)
	assert.Equal(t, StateStopped, p.State())
}
