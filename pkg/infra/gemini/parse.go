package gemini

import (
	"strings"

	"github.com/valyala/fastjson"
)

// ParseAssessment extracts the first brace-delimited JSON object from
// free-form model output. LLMs wrap answers in prose or code fences, so
// parsing is tolerant of surrounding text but strict about the object
// itself: both level and confidence must be present and the level must be
// on the 1-5 scale.
func ParseAssessment(raw string) (Assessment, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return Assessment{}, false
	}

	var parser fastjson.Parser
	v, err := parser.Parse(raw[start : end+1])
	if err != nil {
		return Assessment{}, false
	}

	level := v.Get("level")
	confidence := v.Get("confidence")
	if level == nil || confidence == nil {
		return Assessment{}, false
	}

	a := Assessment{
		Level:      level.GetInt(),
		Confidence: confidence.GetFloat64(),
	}
	if a.Level < 1 || a.Level > 5 {
		return Assessment{}, false
	}
	return a, true
}
