package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberguard/guardian/pkg/config"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const assessPrompt = `Analyze the toxicity of the following text on a scale of 1 to 5.

1: Safe, non-toxic, friendly, or neutral.
2: Low risk, mild criticism, sarcasm without malice.
3: Flagged, potentially offensive, rude, heated argument.
4: High risk, hate speech, severe insults, harassment.
5: Severe, dangerous content, explicit threats, extreme hate speech.

Text: %q

Return ONLY a JSON object with two fields: "level" (integer 1-5) and "confidence" (float 0.0-1.0).`

// Assessment is the oracle's coarse opinion of one text.
type Assessment struct {
	Level      int
	Confidence float64
}

// Positive maps the 5-level scale onto the engine's binary space.
func (a Assessment) Positive() bool {
	return a.Level >= 3
}

//go:generate mockery --name=Assessor --dir=. --output=./mocks --filename=assessor_mock.go --case=underscore --with-expecter

// Assessor is the escalation oracle boundary. Assess reports ok=false for
// every failure mode (not configured, upstream error, unparseable output);
// a failed attempt is never retried.
type Assessor interface {
	Available() bool
	Assess(ctx context.Context, text string) (Assessment, bool)
}

type assessor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewAssessor initializes the Gemini-backed oracle. A missing API key is
// not an error: the returned assessor simply reports itself unavailable
// and the ensemble never escalates.
func NewAssessor(cfg config.GeminiConfig, logger *logrus.Logger) Assessor {
	if cfg.APIKey == "" {
		logger.Warn("gemini api key not configured, oracle escalation disabled")
		return &assessor{model: cfg.Model, timeout: cfg.Timeout, logger: logger}
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logger.WithError(err).Error("failed to initialize gemini client, oracle escalation disabled")
		return &assessor{model: cfg.Model, timeout: cfg.Timeout, logger: logger}
	}

	logger.WithField("model", cfg.Model).Info("gemini oracle initialized")
	return &assessor{client: client, model: cfg.Model, timeout: cfg.Timeout, logger: logger}
}

func (a *assessor) Available() bool {
	return a.client != nil
}

func (a *assessor) Assess(ctx context.Context, text string) (Assessment, bool) {
	if a.client == nil {
		return Assessment{}, false
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(assessPrompt, text)
	result, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), nil)
	if err != nil {
		a.logger.WithError(err).Error("gemini assessment failed")
		return Assessment{}, false
	}

	assessment, ok := ParseAssessment(result.Text())
	if !ok {
		a.logger.WithField("response", result.Text()).Warn("could not parse gemini response")
		return Assessment{}, false
	}
	return assessment, true
}
