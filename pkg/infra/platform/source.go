package platform

import (
	"context"
	"errors"

	"github.com/cyberguard/guardian/pkg/domain/moderation"
)

// Platform names accepted by the manager and the poller factory.
const (
	Twitter = "twitter"
	Discord = "discord"
	Reddit  = "reddit"
)

// ErrRateLimited marks a transient 429 from a platform API. Pollers defer
// the cycle instead of treating it as a fault.
var ErrRateLimited = errors.New("platform rate limited")

// Source is the per-platform content boundary the pipeline consumes.
type Source interface {
	Platform() string
	ListNew(ctx context.Context, limit int) ([]moderation.ContentItem, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// Reporter is implemented by sources that can escalate to the platform's
// own report flow when removal is not permitted.
type Reporter interface {
	Report(ctx context.Context, id string, reason string) (bool, error)
}
