package platform

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/cache"
	"github.com/cyberguard/guardian/pkg/config"
	"github.com/cyberguard/guardian/pkg/infra/httpx"
	infra "github.com/cyberguard/guardian/pkg/infra/platform"
)

// Factory builds platform sources from untyped credential maps. Credential
// validation happens inside each source constructor so a bad connect
// request fails before any poller starts.
type Factory struct {
	client httpx.Client
	cache  cache.Client
	logger *logrus.Logger
}

func NewFactory(client httpx.Client, c cache.Client, logger *logrus.Logger) *Factory {
	return &Factory{client: client, cache: c, logger: logger}
}

func (f *Factory) Build(name string, credentials map[string]interface{}) (infra.Source, error) {
	switch name {
	case infra.Twitter:
		return infra.NewTwitterSource(credentials, f.client, f.cache, f.logger)
	case infra.Discord:
		return infra.NewDiscordSource(credentials, f.client, f.logger)
	case infra.Reddit:
		return infra.NewRedditSource(credentials, f.client, f.logger)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", name)
	}
}

// Options returns the poller tuning for a platform from configuration.
func Options(cfg *config.Config, name string) (config.PollerConfig, error) {
	switch name {
	case infra.Twitter:
		return cfg.Platforms.Twitter, nil
	case infra.Discord:
		return cfg.Platforms.Discord, nil
	case infra.Reddit:
		return cfg.Platforms.Reddit, nil
	default:
		return config.PollerConfig{}, fmt.Errorf("unsupported platform: %s", name)
	}
}
