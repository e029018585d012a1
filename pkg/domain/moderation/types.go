package moderation

import "time"

// Label is the binary classification outcome shared by every scorer.
type Label int

const (
	LabelSafe     Label = 0
	LabelBullying Label = 1
)

func (l Label) String() string {
	if l == LabelBullying {
		return "BULLYING"
	}
	return "SAFE"
}

// Source identifies which stage of the ensemble produced the final verdict.
type Source string

const (
	SourceLocalEnsemble         Source = "local_ensemble"
	SourceLocalEnsembleWeighted Source = "local_ensemble_weighted"
	SourceGeminiTiebreaker      Source = "gemini_tiebreaker"
	SourceGeminiBoosted         Source = "gemini_boosted"
)

// Action is the moderation decision applied to a content item.
type Action string

const (
	ActionIgnore       Action = "ignore"
	ActionFlag         Action = "flag"
	ActionDelete       Action = "delete"
	ActionDeleteFailed Action = "delete_failed"
	ActionReported     Action = "reported"
)

// ContentItem is a single piece of platform content awaiting moderation.
// It is immutable once fetched; IDs are unique within a platform only.
type ContentItem struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Author   string            `json:"author,omitempty"`
	Platform string            `json:"platform"`
	Language string            `json:"language,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ClassifierVerdict is the calibrated output of one scorer call.
// Confidence is the probability of the predicted class; PositiveProbability
// is the raw bullying probability regardless of the predicted label.
type ClassifierVerdict struct {
	Label               Label   `json:"label"`
	Confidence          float64 `json:"confidence"`
	PositiveProbability float64 `json:"positive_probability"`
}

// SafeDefault is the fail-open verdict substituted when a scorer cannot
// produce a result. Callers must tolerate zero confidence.
func SafeDefault() ClassifierVerdict {
	return ClassifierVerdict{Label: LabelSafe, Confidence: 0, PositiveProbability: 0}
}

// EnsembleVerdict is the combined decision over both scorers, optionally
// merged with the escalation oracle's opinion.
type EnsembleVerdict struct {
	Label               Label   `json:"label"`
	Confidence          float64 `json:"confidence"`
	PositiveProbability float64 `json:"positive_probability"`
	Agreement           bool    `json:"agreement"`
	ConfidenceGap       float64 `json:"confidence_gap"`
	Source              Source  `json:"source"`

	Primary   ClassifierVerdict `json:"primary"`
	Secondary ClassifierVerdict `json:"secondary"`
}

// ModerationEvent is the terminal record of one processed item. It is
// broadcast once and not retained.
type ModerationEvent struct {
	EventID             string            `json:"event_id"`
	ItemID              string            `json:"item_id"`
	Platform            string            `json:"platform"`
	Text                string            `json:"text"`
	Language            string            `json:"language"`
	Label               Label             `json:"label"`
	LabelName           string            `json:"label_name"`
	Confidence          float64           `json:"confidence"`
	PositiveProbability float64           `json:"positive_probability"`
	Action              Action            `json:"action"`
	Deleted             bool              `json:"deleted"`
	Severity            int               `json:"severity"`
	Source              Source            `json:"source"`
	PrimaryLabel        Label             `json:"primary_label"`
	SecondaryLabel      Label             `json:"secondary_label"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Timestamp           time.Time         `json:"timestamp"`
}

// Severity maps a positive-class probability onto the 1..5 display scale
// used by dashboards. It has no effect on moderation decisions.
func Severity(positiveProbability float64) int {
	s := 1 + int(positiveProbability*4+0.5)
	if s < 1 {
		return 1
	}
	if s > 5 {
		return 5
	}
	return s
}
