package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cyberguard/guardian/pkg/config"
	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/httpx"
	"github.com/sirupsen/logrus"
)

//go:generate mockery --name=Scorer --dir=. --output=./mocks --filename=scorer_mock.go --case=underscore --with-expecter

// Scorer wraps one classifier behind the score(text) boundary. Infer never
// fails: when the backing endpoint is unreachable it returns the fail-open
// SAFE verdict so the pipeline keeps running in degraded form.
type Scorer interface {
	Name() string
	Infer(ctx context.Context, text string) moderation.ClassifierVerdict
}

type inferenceRequest struct {
	Text string `json:"text"`
}

type inferenceResponse struct {
	Safe     float64 `json:"safe"`
	Bullying float64 `json:"bullying"`
}

type Provider struct {
	name      string
	endpoint  string
	apiKey    string
	threshold float64
	maxRunes  int
	timeout   time.Duration
	client    httpx.Client
	logger    *logrus.Logger
}

func NewProvider(
	cfg config.ScorerConfig,
	decisionThreshold float64,
	maxInputRunes int,
	client httpx.Client,
	logger *logrus.Logger,
) *Provider {
	if client == nil {
		client = httpx.NewDefaultClient()
	}
	return &Provider{
		name:      cfg.Name,
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		threshold: decisionThreshold,
		maxRunes:  maxInputRunes,
		timeout:   cfg.Timeout,
		client:    client,
		logger:    logger,
	}
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Infer(ctx context.Context, text string) moderation.ClassifierVerdict {
	verdict, err := p.infer(ctx, truncateRunes(text, p.maxRunes))
	if err != nil {
		// Fail open: an unreachable scorer must never take the
		// pipeline down, so the item is judged SAFE with zero
		// confidence and the ensemble copes with the degradation.
		p.logger.WithError(err).WithField("scorer", p.name).Error("inference failed, substituting safe default")
		return moderation.SafeDefault()
	}
	return verdict
}

func (p *Provider) infer(ctx context.Context, text string) (moderation.ClassifierVerdict, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	body, err := json.Marshal(inferenceRequest{Text: text})
	if err != nil {
		return moderation.ClassifierVerdict{}, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return moderation.ClassifierVerdict{}, fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return moderation.ClassifierVerdict{}, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return moderation.ClassifierVerdict{}, fmt.Errorf("failed to read inference response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return moderation.ClassifierVerdict{}, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, string(raw))
	}

	var infResp inferenceResponse
	if err := json.Unmarshal(raw, &infResp); err != nil {
		return moderation.ClassifierVerdict{}, fmt.Errorf("failed to unmarshal inference response: %w", err)
	}

	return p.calibrate(infResp), nil
}

// calibrate applies the decision threshold to the raw class probabilities.
// The label may differ from naive argmax when the threshold is not 0.5;
// confidence is always the probability of the predicted class.
func (p *Provider) calibrate(resp inferenceResponse) moderation.ClassifierVerdict {
	label := moderation.LabelSafe
	confidence := resp.Safe
	if resp.Bullying >= p.threshold {
		label = moderation.LabelBullying
		confidence = resp.Bullying
	}
	return moderation.ClassifierVerdict{
		Label:               label,
		Confidence:          confidence,
		PositiveProbability: resp.Bullying,
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
