package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/app/ensemble"
	"github.com/cyberguard/guardian/pkg/app/metrics"
	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/broadcast"
	"github.com/cyberguard/guardian/pkg/infra/langdetect"
	"github.com/cyberguard/guardian/pkg/infra/platform"
)

// reportReason accompanies the platform report filed when a removal is
// rejected by the platform.
const reportReason = "Automated harassment detection"

// Exporter receives terminal moderation events for audit. The kafka
// implementation lives in pkg/infra/audit.
type Exporter interface {
	Export(event moderation.ModerationEvent) error
}

// Engine turns a classified verdict into a platform action and emits the
// resulting event to every sink.
type Engine struct {
	ensemble        ensemble.Engine
	detector        langdetect.Detector
	tracker         *metrics.Tracker
	publisher       broadcast.Publisher
	exporter        Exporter
	deleteThreshold float64
	logger          *logrus.Logger
}

func NewEngine(
	ens ensemble.Engine,
	detector langdetect.Detector,
	tracker *metrics.Tracker,
	publisher broadcast.Publisher,
	exporter Exporter,
	deleteThreshold float64,
	logger *logrus.Logger,
) *Engine {
	return &Engine{
		ensemble:        ens,
		detector:        detector,
		tracker:         tracker,
		publisher:       publisher,
		exporter:        exporter,
		deleteThreshold: deleteThreshold,
		logger:          logger,
	}
}

// Process moderates one item end to end. It always produces an event:
// classification failures degrade to a SAFE verdict upstream, and removal
// failures are recorded in the event rather than returned.
func (e *Engine) Process(ctx context.Context, item moderation.ContentItem, source platform.Source) moderation.ModerationEvent {
	language := item.Language
	if language == "" || language == langdetect.Unknown {
		language = e.detector.Detect(item.Text)
	}

	verdict := e.ensemble.Decide(ctx, item.Text)
	e.tracker.IncrementScanned(language)

	event := moderation.ModerationEvent{
		EventID:             uuid.NewString(),
		ItemID:              item.ID,
		Platform:            item.Platform,
		Text:                item.Text,
		Language:            language,
		Label:               verdict.Label,
		LabelName:           verdict.Label.String(),
		Confidence:          verdict.Confidence,
		PositiveProbability: verdict.PositiveProbability,
		Action:              moderation.ActionIgnore,
		Severity:            moderation.Severity(verdict.PositiveProbability),
		Source:              verdict.Source,
		PrimaryLabel:        verdict.Primary.Label,
		SecondaryLabel:      verdict.Secondary.Label,
		Metadata:            item.Metadata,
		Timestamp:           time.Now().UTC(),
	}

	if verdict.Label == moderation.LabelBullying {
		if verdict.Confidence >= e.deleteThreshold {
			event.Action, event.Deleted = e.remove(ctx, item, language, source)
		} else {
			event.Action = moderation.ActionFlag
			e.tracker.IncrementFlagged(language)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"item_id":    item.ID,
		"platform":   item.Platform,
		"language":   language,
		"label":      event.LabelName,
		"confidence": event.Confidence,
		"action":     event.Action,
		"source":     event.Source,
	}).Info("Item moderated")

	e.publisher.Publish(event)
	e.export(event)
	return event
}

// remove deletes the item at the platform, falling back to the platform's
// report flow when removal is rejected and the source supports reporting.
func (e *Engine) remove(ctx context.Context, item moderation.ContentItem, language string, source platform.Source) (moderation.Action, bool) {
	removed, err := source.Remove(ctx, item.ID)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"item_id":  item.ID,
			"platform": item.Platform,
		}).Error("Failed to remove item")
	}
	if removed {
		e.tracker.IncrementDeleted(language)
		return moderation.ActionDelete, true
	}

	if reporter, ok := source.(platform.Reporter); ok {
		reported, rerr := reporter.Report(ctx, item.ID, reportReason)
		if rerr != nil {
			e.logger.WithError(rerr).WithField("item_id", item.ID).Error("Failed to report item")
		}
		if reported {
			return moderation.ActionReported, false
		}
	}
	return moderation.ActionDeleteFailed, false
}

// export ships the event to the audit sink off the hot path; a slow or
// unreachable broker never delays moderation.
func (e *Engine) export(event moderation.ModerationEvent) {
	if e.exporter == nil {
		return
	}
	go func() {
		if err := e.exporter.Export(event); err != nil {
			e.logger.WithError(err).WithField("event_id", event.EventID).
				Warn("Failed to export moderation event")
		}
	}()
}
