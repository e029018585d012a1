package ensemble_test

import (
	"context"
	"testing"

	"github.com/cyberguard/guardian/pkg/app/ensemble"
	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/gemini"
	geminimocks "github.com/cyberguard/guardian/pkg/infra/gemini/mocks"
	scorermocks "github.com/cyberguard/guardian/pkg/infra/scorer/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func verdict(label moderation.Label, conf, prob float64) moderation.ClassifierVerdict {
	return moderation.ClassifierVerdict{Label: label, Confidence: conf, PositiveProbability: prob}
}

func newEngine(
	a, b moderation.ClassifierVerdict,
	oracle gemini.Assessor,
) ensemble.Engine {
	primary := new(scorermocks.Scorer)
	primary.On("Infer", mock.Anything, mock.Anything).Return(a)
	secondary := new(scorermocks.Scorer)
	secondary.On("Infer", mock.Anything, mock.Anything).Return(b)
	return ensemble.NewEngine(primary, secondary, oracle, ensemble.DefaultThresholds(), logrus.New())
}

func unavailableOracle() *geminimocks.Assessor {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(false)
	return oracle
}

func TestDecide_ConfidentAgreementSkipsOracle(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	// Available/Assess must never be consulted; no expectations set.

	e := newEngine(
		verdict(moderation.LabelBullying, 0.95, 0.95),
		verdict(moderation.LabelBullying, 0.92, 0.90),
		oracle,
	)

	v := e.Decide(context.Background(), "some text")

	assert.Equal(t, moderation.LabelBullying, v.Label)
	assert.InDelta(t, 0.95, v.Confidence, 1e-9)
	assert.True(t, v.Agreement)
	assert.InDelta(t, 0.05, v.ConfidenceGap, 1e-9)
	assert.Equal(t, moderation.SourceLocalEnsemble, v.Source)
	oracle.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything)
}

func TestDecide_ConfidentSafeAgreementSkipsOracle(t *testing.T) {
	oracle := new(geminimocks.Assessor)

	e := newEngine(
		verdict(moderation.LabelSafe, 0.90, 0.10),
		verdict(moderation.LabelSafe, 0.85, 0.12),
		oracle,
	)

	v := e.Decide(context.Background(), "friendly text")

	assert.Equal(t, moderation.LabelSafe, v.Label)
	assert.Equal(t, moderation.SourceLocalEnsemble, v.Source)
	oracle.AssertNotCalled(t, "Available")
	oracle.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything)
}

func TestDecide_WeightedDisagreementWithTiebreaker(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(true)
	oracle.On("Assess", mock.Anything, mock.Anything).
		Return(gemini.Assessment{Level: 2, Confidence: 0.9}, true)

	e := newEngine(
		verdict(moderation.LabelSafe, 0.55, 0.45),
		verdict(moderation.LabelBullying, 0.60, 0.60),
		oracle,
	)

	v := e.Decide(context.Background(), "ambiguous text")

	// Disagreement, ratio 0.60/(0.55+0.01) ~ 1.07 <= 1.5, so the oracle
	// becomes the tiebreaker and its level 2 maps to safe.
	assert.Equal(t, moderation.LabelSafe, v.Label)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
	assert.InDelta(t, 0.1, v.PositiveProbability, 1e-9)
	assert.Equal(t, moderation.SourceGeminiTiebreaker, v.Source)
	assert.False(t, v.Agreement)
}

func TestDecide_WeightedPathWithoutOracle(t *testing.T) {
	e := newEngine(
		verdict(moderation.LabelSafe, 0.55, 0.45),
		verdict(moderation.LabelBullying, 0.60, 0.60),
		unavailableOracle(),
	)

	v := e.Decide(context.Background(), "ambiguous text")

	// Weights: 0.55*1.45=0.7975 and 0.60*1.60=0.96; the weighted
	// probability lands just above the 0.5 threshold.
	assert.Equal(t, moderation.LabelBullying, v.Label)
	assert.InDelta(t, 0.575, v.Confidence, 1e-9)
	assert.InDelta(t, 0.532, v.PositiveProbability, 0.005)
	assert.Equal(t, moderation.SourceLocalEnsembleWeighted, v.Source)
}

func TestDecide_ConfidenceRatioFastPath(t *testing.T) {
	e := newEngine(
		verdict(moderation.LabelBullying, 0.95, 0.95),
		verdict(moderation.LabelSafe, 0.52, 0.48),
		unavailableOracle(),
	)

	v := e.Decide(context.Background(), "text")

	// 0.95/(0.52+0.01) > 1.5: the confident provider wins outright.
	assert.Equal(t, moderation.LabelBullying, v.Label)
	assert.InDelta(t, 0.95, v.Confidence, 1e-9)
	assert.Equal(t, moderation.SourceLocalEnsembleWeighted, v.Source)
}

func TestDecide_TiebreakerOverridesBothProviders(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(true)
	oracle.On("Assess", mock.Anything, mock.Anything).
		Return(gemini.Assessment{Level: 5, Confidence: 0.95}, true)

	e := newEngine(
		verdict(moderation.LabelSafe, 0.60, 0.40),
		verdict(moderation.LabelBullying, 0.58, 0.55),
		oracle,
	)

	v := e.Decide(context.Background(), "text")

	assert.Equal(t, moderation.LabelBullying, v.Label)
	assert.InDelta(t, 0.95, v.Confidence, 1e-9)
	assert.InDelta(t, 0.95, v.PositiveProbability, 1e-9)
	assert.Equal(t, moderation.SourceGeminiTiebreaker, v.Source)
}

func TestDecide_HesitantOracleIsIgnored(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(true)
	oracle.On("Assess", mock.Anything, mock.Anything).
		Return(gemini.Assessment{Level: 5, Confidence: 0.6}, true)

	e := newEngine(
		verdict(moderation.LabelSafe, 0.55, 0.45),
		verdict(moderation.LabelBullying, 0.60, 0.60),
		oracle,
	)

	v := e.Decide(context.Background(), "text")

	assert.Equal(t, moderation.SourceLocalEnsembleWeighted, v.Source)
}

func TestDecide_BoostedWhenAgreeingButUnsure(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(true)
	oracle.On("Assess", mock.Anything, mock.Anything).
		Return(gemini.Assessment{Level: 4, Confidence: 0.9}, true)

	e := newEngine(
		verdict(moderation.LabelBullying, 0.65, 0.81),
		verdict(moderation.LabelBullying, 0.60, 0.82),
		oracle,
	)

	v := e.Decide(context.Background(), "text")

	assert.Equal(t, moderation.LabelBullying, v.Label)
	assert.InDelta(t, (0.65+0.9)/2, v.Confidence, 1e-9)
	assert.Equal(t, moderation.SourceGeminiBoosted, v.Source)
}

func TestDecide_OracleDissentDoesNotOverrideConfidentConsensus(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(true)
	oracle.On("Assess", mock.Anything, mock.Anything).
		Return(gemini.Assessment{Level: 1, Confidence: 0.99}, true)

	// Agreement with high confidence but a borderline probability keeps
	// the escalation trigger on; the dissenting oracle must not win.
	e := newEngine(
		verdict(moderation.LabelBullying, 0.90, 0.62),
		verdict(moderation.LabelBullying, 0.88, 0.60),
		oracle,
	)

	v := e.Decide(context.Background(), "text")

	assert.Equal(t, moderation.LabelBullying, v.Label)
	assert.InDelta(t, 0.90, v.Confidence, 1e-9)
	assert.Equal(t, moderation.SourceLocalEnsemble, v.Source)
}

func TestDecide_UnavailableOracleNeverEscalates(t *testing.T) {
	e := newEngine(
		verdict(moderation.LabelSafe, 0.4, 0.45),
		verdict(moderation.LabelBullying, 0.42, 0.60),
		unavailableOracle(),
	)

	v := e.Decide(context.Background(), "text")

	assert.Contains(t, []moderation.Source{
		moderation.SourceLocalEnsemble,
		moderation.SourceLocalEnsembleWeighted,
	}, v.Source)
}

func TestDecide_FailedOracleCallLeavesLocalVerdict(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(true)
	oracle.On("Assess", mock.Anything, mock.Anything).Return(gemini.Assessment{}, false)

	e := newEngine(
		verdict(moderation.LabelSafe, 0.55, 0.45),
		verdict(moderation.LabelBullying, 0.60, 0.60),
		oracle,
	)

	v := e.Decide(context.Background(), "text")

	assert.Equal(t, moderation.SourceLocalEnsembleWeighted, v.Source)
}

func TestDecide_EscalatesOnLowConfidenceAgreement(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(true)
	oracle.On("Assess", mock.Anything, mock.Anything).Return(gemini.Assessment{}, false)

	e := newEngine(
		verdict(moderation.LabelSafe, 0.50, 0.20),
		verdict(moderation.LabelSafe, 0.45, 0.25),
		oracle,
	)

	_ = e.Decide(context.Background(), "text")

	oracle.AssertCalled(t, "Assess", mock.Anything, "text")
}

func TestDecide_EscalatesOnWideGap(t *testing.T) {
	oracle := new(geminimocks.Assessor)
	oracle.On("Available").Return(true)
	oracle.On("Assess", mock.Anything, mock.Anything).Return(gemini.Assessment{}, false)

	e := newEngine(
		verdict(moderation.LabelBullying, 0.99, 0.99),
		verdict(moderation.LabelBullying, 0.75, 0.67),
		oracle,
	)

	_ = e.Decide(context.Background(), "text")

	oracle.AssertCalled(t, "Assess", mock.Anything, "text")
}

func TestDecide_DegradedProvidersStillYieldVerdict(t *testing.T) {
	// Both scorers failing open produces an agreement at zero confidence
	// and must still return a bounded verdict.
	e := newEngine(moderation.SafeDefault(), moderation.SafeDefault(), unavailableOracle())

	v := e.Decide(context.Background(), "text")

	assert.Equal(t, moderation.LabelSafe, v.Label)
	assert.GreaterOrEqual(t, v.Confidence, 0.0)
	assert.LessOrEqual(t, v.Confidence, 1.0)
}

func TestDecide_Deterministic(t *testing.T) {
	first := newEngine(
		verdict(moderation.LabelSafe, 0.55, 0.45),
		verdict(moderation.LabelBullying, 0.60, 0.60),
		unavailableOracle(),
	).Decide(context.Background(), "same text")

	second := newEngine(
		verdict(moderation.LabelSafe, 0.55, 0.45),
		verdict(moderation.LabelBullying, 0.60, 0.60),
		unavailableOracle(),
	).Decide(context.Background(), "same text")

	assert.Equal(t, first, second)
}
