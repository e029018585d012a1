package metrics

import (
	"sync"

	"github.com/cyberguard/guardian/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
)

// LanguageStats are the per-language counters.
type LanguageStats struct {
	Scanned int64 `json:"scanned"`
	Flagged int64 `json:"flagged"`
	Deleted int64 `json:"deleted"`
}

// Snapshot is a read-only copy of the tracker state.
type Snapshot struct {
	TotalScanned int64                    `json:"total_scanned"`
	TotalFlagged int64                    `json:"total_flagged"`
	TotalDeleted int64                    `json:"total_deleted"`
	PerLanguage  map[string]LanguageStats `json:"per_language"`
}

// Tracker is the process-wide moderation counter set. All counters are
// in-memory and reset on restart; increments are mirrored into prometheus
// for scraping.
type Tracker struct {
	mu           sync.Mutex
	totalScanned int64
	totalFlagged int64
	totalDeleted int64
	perLanguage  map[string]*LanguageStats
	logger       *logrus.Logger
}

func NewTracker(logger *logrus.Logger) *Tracker {
	return &Tracker{
		perLanguage: make(map[string]*LanguageStats),
		logger:      logger,
	}
}

func (t *Tracker) IncrementScanned(language string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalScanned++
	t.languageStats(language).Scanned++
	prometheus.ScannedTotal.WithLabelValues(language).Inc()
}

func (t *Tracker) IncrementFlagged(language string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFlagged++
	t.languageStats(language).Flagged++
	prometheus.FlaggedTotal.WithLabelValues(language).Inc()
}

func (t *Tracker) IncrementDeleted(language string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalDeleted++
	t.languageStats(language).Deleted++
	prometheus.DeletedTotal.WithLabelValues(language).Inc()
}

// languageStats must be called with the mutex held.
func (t *Tracker) languageStats(language string) *LanguageStats {
	if language == "" {
		language = "unknown"
	}
	stats, ok := t.perLanguage[language]
	if !ok {
		stats = &LanguageStats{}
		t.perLanguage[language] = stats
	}
	return stats
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	perLanguage := make(map[string]LanguageStats, len(t.perLanguage))
	for language, stats := range t.perLanguage {
		perLanguage[language] = *stats
	}

	return Snapshot{
		TotalScanned: t.totalScanned,
		TotalFlagged: t.totalFlagged,
		TotalDeleted: t.totalDeleted,
		PerLanguage:  perLanguage,
	}
}

// Reset zeroes every counter. Operator action only.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalScanned = 0
	t.totalFlagged = 0
	t.totalDeleted = 0
	t.perLanguage = make(map[string]*LanguageStats)
	t.logger.Warn("all metrics have been reset to zero")
}
