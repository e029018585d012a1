package ensemble

import "github.com/cyberguard/guardian/pkg/config"

// Thresholds collects every tunable of the decision and escalation policy.
// Defaults mirror the configuration defaults; the trigger thresholds and
// the acceptance confidence are deliberately independent values.
type Thresholds struct {
	// DecisionThreshold is the positive-probability cutoff for the
	// bullying label.
	DecisionThreshold float64

	// MinConfidence triggers escalation when the ensemble confidence
	// falls below it, and gates the boosted merge path.
	MinConfidence float64

	// MaxGap triggers escalation when the inter-provider positive
	// probability gap exceeds it.
	MaxGap float64

	// BorderlineMargin triggers escalation when either provider's
	// positive probability lies within this distance of the decision
	// threshold.
	BorderlineMargin float64

	// AcceptConfidence is the minimum oracle confidence required before
	// its opinion is merged into the verdict.
	AcceptConfidence float64

	// ConfidenceRatio is the disagreement fast path: when one provider
	// is this many times more confident than the other, it wins outright.
	ConfidenceRatio float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DecisionThreshold: 0.5,
		MinConfidence:     0.7,
		MaxGap:            0.3,
		BorderlineMargin:  0.15,
		AcceptConfidence:  0.75,
		ConfidenceRatio:   1.5,
	}
}

// ThresholdsFromConfig maps the configuration surface onto the engine
// policy.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	t := DefaultThresholds()
	t.DecisionThreshold = cfg.Detection.DecisionThreshold
	t.MinConfidence = cfg.Gemini.MinConfidence
	t.MaxGap = cfg.Gemini.MaxGap
	t.BorderlineMargin = cfg.Gemini.BorderlineMargin
	t.AcceptConfidence = cfg.Gemini.AcceptConfidence
	return t
}
