package langdetect

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

const Unknown = "unknown"

// Detector reports the ISO 639-1 code of a text, or "unknown".
type Detector interface {
	Detect(text string) string
}

type linguaDetector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector over all supported languages. Construction
// is expensive; build once at composition time and share.
func NewDetector() Detector {
	return &linguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
	}
}

func (d *linguaDetector) Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return Unknown
	}
	language, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return Unknown
	}
	return strings.ToLower(language.IsoCode639_1().String())
}
