package moderation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/cyberguard/guardian/pkg/app/metrics"
	"github.com/cyberguard/guardian/pkg/domain/moderation"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type stubEnsemble struct {
	verdict moderation.EnsembleVerdict
}

func (s *stubEnsemble) Decide(ctx context.Context, text string) moderation.EnsembleVerdict {
	return s.verdict
}

type stubDetector struct{ lang string }

func (s *stubDetector) Detect(text string) string { return s.lang }

type capturingPublisher struct {
	mu     sync.Mutex
	events []moderation.ModerationEvent
}

func (p *capturingPublisher) Publish(event moderation.ModerationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type stubSource struct {
	removed    bool
	removeErr  error
	reported   bool
	reportErr  error
	removeCall int
	reportCall int
}

func (s *stubSource) Platform() string { return "stub" }

func (s *stubSource) ListNew(ctx context.Context, limit int) ([]moderation.ContentItem, error) {
	return nil, nil
}

func (s *stubSource) Remove(ctx context.Context, id string) (bool, error) {
	s.removeCall++
	return s.removed, s.removeErr
}

func (s *stubSource) Report(ctx context.Context, id string, reason string) (bool, error) {
	s.reportCall++
	return s.reported, s.reportErr
}

type capturingExporter struct {
	mu     sync.Mutex
	events []moderation.ModerationEvent
	err    error
}

func (e *capturingExporter) Export(event moderation.ModerationEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *capturingExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

func bullyingVerdict(confidence float64) moderation.EnsembleVerdict {
	return moderation.EnsembleVerdict{
		Label:               moderation.LabelBullying,
		Confidence:          confidence,
		PositiveProbability: 0.9,
		Agreement:           true,
		Source:              moderation.SourceLocalEnsemble,
		Primary:             moderation.ClassifierVerdict{Label: moderation.LabelBullying},
		Secondary:           moderation.ClassifierVerdict{Label: moderation.LabelBullying},
	}
}

func newTestEngine(verdict moderation.EnsembleVerdict) (*Engine, *metrics.Tracker, *capturingPublisher) {
	tracker := metrics.NewTracker(testLogger())
	publisher := &capturingPublisher{}
	engine := NewEngine(&stubEnsemble{verdict: verdict}, &stubDetector{lang: "en"},
		tracker, publisher, nil, 0.8, testLogger())
	return engine, tracker, publisher
}

func TestProcess_SafeContentIgnored(t *testing.T) {
	verdict := moderation.EnsembleVerdict{
		Label:      moderation.LabelSafe,
		Confidence: 0.95,
		Source:     moderation.SourceLocalEnsemble,
	}
	engine, tracker, publisher := newTestEngine(verdict)
	src := &stubSource{}

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "c1", Text: "have a nice day", Platform: "discord",
	}, src)

	assert.Equal(t, moderation.ActionIgnore, event.Action)
	assert.False(t, event.Deleted)
	assert.Equal(t, "SAFE", event.LabelName)
	assert.Zero(t, src.removeCall)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.PerLanguage["en"].Scanned)
	assert.Equal(t, int64(0), snap.PerLanguage["en"].Flagged)
	assert.Len(t, publisher.events, 1)
}

func TestProcess_ConfidentBullyingDeleted(t *testing.T) {
	engine, tracker, _ := newTestEngine(bullyingVerdict(0.92))
	src := &stubSource{removed: true}

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "c2", Text: "you are worthless", Platform: "twitter", Language: "en",
	}, src)

	assert.Equal(t, moderation.ActionDelete, event.Action)
	assert.True(t, event.Deleted)
	assert.Equal(t, 1, src.removeCall)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.PerLanguage["en"].Deleted)
}

func TestProcess_LowConfidenceBullyingFlagged(t *testing.T) {
	engine, tracker, _ := newTestEngine(bullyingVerdict(0.6))
	src := &stubSource{}

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "c3", Text: "shut up", Platform: "reddit", Language: "en",
	}, src)

	assert.Equal(t, moderation.ActionFlag, event.Action)
	assert.False(t, event.Deleted)
	assert.Zero(t, src.removeCall)
	assert.Equal(t, int64(1), tracker.Snapshot().PerLanguage["en"].Flagged)
}

func TestProcess_FailedDeleteFallsBackToReport(t *testing.T) {
	engine, tracker, _ := newTestEngine(bullyingVerdict(0.92))
	src := &stubSource{removed: false, reported: true}

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "t1_x", Text: "awful", Platform: "reddit", Language: "en",
	}, src)

	assert.Equal(t, moderation.ActionReported, event.Action)
	assert.False(t, event.Deleted)
	assert.Equal(t, 1, src.reportCall)
	assert.Equal(t, int64(0), tracker.Snapshot().TotalFlagged)
}

func TestProcess_FailedDeleteWithoutReporter(t *testing.T) {
	engine, tracker, _ := newTestEngine(bullyingVerdict(0.92))
	src := &stubSource{removeErr: errors.New("forbidden")}

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "m1", Text: "awful", Platform: "discord", Language: "en",
	}, sourceOnly{src})

	assert.Equal(t, moderation.ActionDeleteFailed, event.Action)
	assert.False(t, event.Deleted)

	// A failed removal is not a flag: only the below-threshold flag action
	// moves the flagged counter.
	snap := tracker.Snapshot()
	assert.Equal(t, int64(0), snap.TotalFlagged)
	assert.Equal(t, int64(0), snap.PerLanguage["en"].Flagged)
	assert.Equal(t, int64(0), snap.PerLanguage["en"].Deleted)
}

// sourceOnly hides the wrapped source's Report method so the engine sees a
// source without report capability.
type sourceOnly struct{ s *stubSource }

func (w sourceOnly) Platform() string { return w.s.Platform() }
func (w sourceOnly) ListNew(ctx context.Context, limit int) ([]moderation.ContentItem, error) {
	return w.s.ListNew(ctx, limit)
}
func (w sourceOnly) Remove(ctx context.Context, id string) (bool, error) {
	return w.s.Remove(ctx, id)
}

func TestProcess_DetectsLanguageWhenMissing(t *testing.T) {
	tracker := metrics.NewTracker(testLogger())
	publisher := &capturingPublisher{}
	engine := NewEngine(&stubEnsemble{verdict: moderation.EnsembleVerdict{
		Label: moderation.LabelSafe, Confidence: 0.9, Source: moderation.SourceLocalEnsemble,
	}}, &stubDetector{lang: "hi"}, tracker, publisher, nil, 0.8, testLogger())

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "c4", Text: "कैसे हो", Platform: "twitter",
	}, &stubSource{})

	assert.Equal(t, "hi", event.Language)
	assert.Equal(t, int64(1), tracker.Snapshot().PerLanguage["hi"].Scanned)
}

func TestProcess_PreservesProvidedLanguage(t *testing.T) {
	engine, tracker, _ := newTestEngine(moderation.EnsembleVerdict{
		Label: moderation.LabelSafe, Confidence: 0.9, Source: moderation.SourceLocalEnsemble,
	})

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "c5", Text: "hello", Platform: "twitter", Language: "de",
	}, &stubSource{})

	assert.Equal(t, "de", event.Language)
	assert.Equal(t, int64(1), tracker.Snapshot().PerLanguage["de"].Scanned)
}

func TestProcess_ExportsEventToAuditSink(t *testing.T) {
	tracker := metrics.NewTracker(testLogger())
	exporter := &capturingExporter{}
	engine := NewEngine(&stubEnsemble{verdict: bullyingVerdict(0.6)}, &stubDetector{lang: "en"},
		tracker, &capturingPublisher{}, exporter, 0.8, testLogger())

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "c6", Text: "shut up", Platform: "reddit",
	}, &stubSource{})
	assert.NotEmpty(t, event.EventID)

	// export is asynchronous
	assert.Eventually(t, func() bool { return exporter.count() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestProcess_EventCarriesVerdictDetail(t *testing.T) {
	verdict := moderation.EnsembleVerdict{
		Label:               moderation.LabelBullying,
		Confidence:          0.9,
		PositiveProbability: 0.85,
		Source:              moderation.SourceGeminiTiebreaker,
		Primary:             moderation.ClassifierVerdict{Label: moderation.LabelBullying},
		Secondary:           moderation.ClassifierVerdict{Label: moderation.LabelSafe},
	}
	engine, _, publisher := newTestEngine(verdict)

	event := engine.Process(context.Background(), moderation.ContentItem{
		ID: "c7", Text: "terrible", Platform: "twitter", Language: "en",
		Metadata: map[string]string{"channel_id": "c9"},
	}, &stubSource{removed: true})

	assert.Equal(t, moderation.SourceGeminiTiebreaker, event.Source)
	assert.Equal(t, moderation.LabelBullying, event.PrimaryLabel)
	assert.Equal(t, moderation.LabelSafe, event.SecondaryLabel)
	assert.Equal(t, 4, event.Severity) // 1 + round(0.85*4)
	assert.Equal(t, "c9", event.Metadata["channel_id"])
	assert.False(t, event.Timestamp.IsZero())
	assert.Len(t, publisher.events, 1)
	assert.Equal(t, event.EventID, publisher.events[0].EventID)
}
