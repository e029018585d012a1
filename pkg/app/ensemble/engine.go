package ensemble

import (
	"context"
	"math"

	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/gemini"
	"github.com/cyberguard/guardian/pkg/infra/prometheus"
	"github.com/cyberguard/guardian/pkg/infra/scorer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Engine combines two independently trained classifiers into one verdict
// and escalates uncertain cases to the Gemini oracle.
type Engine interface {
	Decide(ctx context.Context, text string) moderation.EnsembleVerdict
}

type engine struct {
	primary    scorer.Scorer
	secondary  scorer.Scorer
	oracle     gemini.Assessor
	thresholds Thresholds
	logger     *logrus.Logger
}

func NewEngine(
	primary scorer.Scorer,
	secondary scorer.Scorer,
	oracle gemini.Assessor,
	thresholds Thresholds,
	logger *logrus.Logger,
) Engine {
	return &engine{
		primary:    primary,
		secondary:  secondary,
		oracle:     oracle,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Decide never fails: scorers fail open to SAFE defaults and an
// unavailable oracle simply leaves the local verdict standing.
func (e *engine) Decide(ctx context.Context, text string) moderation.EnsembleVerdict {
	var primary, secondary moderation.ClassifierVerdict

	// Both inferences run concurrently with join semantics: the engine
	// proceeds only once both verdicts are in.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primary = e.primary.Infer(gctx, text)
		return nil
	})
	g.Go(func() error {
		secondary = e.secondary.Infer(gctx, text)
		return nil
	})
	_ = g.Wait()

	verdict := e.combine(primary, secondary)

	if e.shouldEscalate(verdict) && e.oracle.Available() {
		verdict = e.escalate(ctx, text, verdict)
		prometheus.EscalationsTotal.WithLabelValues(string(verdict.Source)).Inc()
	}

	e.logger.WithFields(logrus.Fields{
		"label":      verdict.Label.String(),
		"confidence": verdict.Confidence,
		"agreement":  verdict.Agreement,
		"gap":        verdict.ConfidenceGap,
		"source":     verdict.Source,
	}).Debug("ensemble decision")

	return verdict
}

func (e *engine) combine(a, b moderation.ClassifierVerdict) moderation.EnsembleVerdict {
	verdict := moderation.EnsembleVerdict{
		Agreement:     a.Label == b.Label,
		ConfidenceGap: math.Abs(a.PositiveProbability - b.PositiveProbability),
		Primary:       a,
		Secondary:     b,
	}

	if verdict.Agreement {
		chosen := a
		if b.Confidence > a.Confidence {
			chosen = b
		}
		verdict.Label = chosen.Label
		verdict.Confidence = chosen.Confidence
		verdict.PositiveProbability = chosen.PositiveProbability
		verdict.Source = moderation.SourceLocalEnsemble
		return verdict
	}

	// Disagreement. When one model is decisively more confident, trust
	// it outright; otherwise blend the positive probabilities with
	// confidence-and-probability weights.
	ratio := math.Max(a.Confidence, b.Confidence) / (math.Min(a.Confidence, b.Confidence) + 0.01)
	if ratio > e.thresholds.ConfidenceRatio {
		chosen := a
		if b.Confidence > a.Confidence {
			chosen = b
		}
		verdict.Label = chosen.Label
		verdict.Confidence = chosen.Confidence
		verdict.PositiveProbability = chosen.PositiveProbability
		verdict.Source = moderation.SourceLocalEnsembleWeighted
		return verdict
	}

	wa := a.Confidence * (1 + a.PositiveProbability)
	wb := b.Confidence * (1 + b.PositiveProbability)
	weighted := (a.PositiveProbability*wa + b.PositiveProbability*wb) / (wa + wb)

	verdict.PositiveProbability = weighted
	verdict.Confidence = (a.Confidence + b.Confidence) / 2
	verdict.Label = moderation.LabelSafe
	if weighted >= e.thresholds.DecisionThreshold {
		verdict.Label = moderation.LabelBullying
	}
	verdict.Source = moderation.SourceLocalEnsembleWeighted
	return verdict
}

// shouldEscalate fires on any signal of uncertainty, independent of which
// combination path produced the verdict.
func (e *engine) shouldEscalate(v moderation.EnsembleVerdict) bool {
	if !v.Agreement {
		return true
	}
	if v.Confidence < e.thresholds.MinConfidence {
		return true
	}
	if v.ConfidenceGap > e.thresholds.MaxGap {
		return true
	}
	if e.borderline(v.Primary.PositiveProbability) || e.borderline(v.Secondary.PositiveProbability) {
		return true
	}
	return false
}

func (e *engine) borderline(p float64) bool {
	return math.Abs(p-e.thresholds.DecisionThreshold) <= e.thresholds.BorderlineMargin
}

func (e *engine) escalate(
	ctx context.Context,
	text string,
	verdict moderation.EnsembleVerdict,
) moderation.EnsembleVerdict {
	assessment, ok := e.oracle.Assess(ctx, text)
	if !ok {
		return verdict
	}

	// A hesitant oracle is ignored entirely; the local verdict stands.
	if assessment.Confidence <= e.thresholds.AcceptConfidence {
		e.logger.WithFields(logrus.Fields{
			"oracle_level":      assessment.Level,
			"oracle_confidence": assessment.Confidence,
		}).Debug("oracle opinion below acceptance confidence, ignored")
		return verdict
	}

	oracleLabel := moderation.LabelSafe
	if assessment.Positive() {
		oracleLabel = moderation.LabelBullying
	}

	switch {
	case !verdict.Agreement:
		// Tiebreaker: the oracle settles the disagreement outright.
		verdict.Label = oracleLabel
		verdict.Confidence = assessment.Confidence
		if oracleLabel == moderation.LabelBullying {
			verdict.PositiveProbability = assessment.Confidence
		} else {
			verdict.PositiveProbability = 1 - assessment.Confidence
		}
		verdict.Source = moderation.SourceGeminiTiebreaker

	case verdict.Confidence < e.thresholds.MinConfidence && oracleLabel == verdict.Label:
		// Agreeing but unsure: a concurring oracle lifts confidence.
		verdict.Confidence = (verdict.Confidence + assessment.Confidence) / 2
		verdict.Source = moderation.SourceGeminiBoosted

	default:
		// The oracle disagrees with an already-confident consensus;
		// the ensemble stands.
	}

	return verdict
}
