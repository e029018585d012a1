package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/httpx"
)

const discordAPIBase = "https://discord.com/api/v10"

// DiscordCredentials configures the Discord bot client. When ChannelIDs is
// empty the client enumerates text channels of every guild the bot joined.
type DiscordCredentials struct {
	BotToken   string   `mapstructure:"bot_token"`
	ChannelIDs []string `mapstructure:"channel_ids"`
}

type discordSource struct {
	creds  DiscordCredentials
	client httpx.Client
	logger *logrus.Logger

	mu       sync.Mutex
	channels []string
	// message id -> channel id, needed because the delete endpoint is
	// channel-scoped while the pipeline only carries the message id.
	origin map[string]string
}

// originCap bounds the message->channel index; old entries are recycled
// wholesale once the cap is hit, matching the seen-set horizon.
const originCap = 10000

func NewDiscordSource(raw map[string]interface{}, client httpx.Client, logger *logrus.Logger) (Source, error) {
	var creds DiscordCredentials
	if err := mapstructure.Decode(raw, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode discord credentials: %w", err)
	}
	if creds.BotToken == "" {
		return nil, fmt.Errorf("discord bot_token is required")
	}
	return &discordSource{
		creds:    creds,
		client:   client,
		logger:   logger,
		channels: creds.ChannelIDs,
		origin:   make(map[string]string),
	}, nil
}

func (s *discordSource) Platform() string { return Discord }

func (s *discordSource) ListNew(ctx context.Context, limit int) ([]moderation.ContentItem, error) {
	channels, err := s.ensureChannels(ctx)
	if err != nil {
		return nil, err
	}

	var items []moderation.ContentItem
	for _, ch := range channels {
		msgs, err := s.listMessages(ctx, ch, limit)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				return items, err
			}
			s.logger.WithError(err).WithField("channel_id", ch).
				Warn("Failed to list discord channel messages")
			continue
		}
		items = append(items, msgs...)
	}
	return items, nil
}

func (s *discordSource) listMessages(ctx context.Context, channelID string, limit int) ([]moderation.ContentItem, error) {
	body, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/channels/%s/messages?limit=%d", discordAPIBase, channelID, limit))
	if err != nil {
		return nil, err
	}

	var msgs []struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Author  struct {
			Username string `json:"username"`
			Bot      bool   `json:"bot"`
		} `json:"author"`
	}
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode channel messages: %w", err)
	}

	items := make([]moderation.ContentItem, 0, len(msgs))
	for _, m := range msgs {
		if m.Author.Bot || m.Content == "" {
			continue
		}
		s.recordOrigin(m.ID, channelID)
		items = append(items, moderation.ContentItem{
			ID:       m.ID,
			Text:     m.Content,
			Author:   m.Author.Username,
			Platform: Discord,
			Metadata: map[string]string{"channel_id": channelID},
		})
	}
	return items, nil
}

func (s *discordSource) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	channelID, ok := s.origin[id]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("unknown origin channel for message %s", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/channels/%s/messages/%s", discordAPIBase, channelID, id), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bot "+s.creds.BotToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return true, nil
	case http.StatusTooManyRequests:
		return false, ErrRateLimited
	default:
		return false, fmt.Errorf("discord delete returned status %d", resp.StatusCode)
	}
}

// ensureChannels discovers text channels once when no explicit channel list
// was configured.
func (s *discordSource) ensureChannels(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.channels) > 0 {
		return s.channels, nil
	}

	body, err := s.do(ctx, http.MethodGet, discordAPIBase+"/users/@me/guilds")
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	var guilds []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &guilds); err != nil {
		return nil, fmt.Errorf("failed to decode guild list: %w", err)
	}

	for _, g := range guilds {
		body, err := s.do(ctx, http.MethodGet, fmt.Sprintf("%s/guilds/%s/channels", discordAPIBase, g.ID))
		if err != nil {
			s.logger.WithError(err).WithField("guild_id", g.ID).Warn("Failed to list guild channels")
			continue
		}
		var chans []struct {
			ID   string `json:"id"`
			Type int    `json:"type"`
		}
		if err := json.Unmarshal(body, &chans); err != nil {
			continue
		}
		for _, c := range chans {
			if c.Type == 0 { // guild text channel
				s.channels = append(s.channels, c.ID)
			}
		}
	}
	if len(s.channels) == 0 {
		return nil, fmt.Errorf("no readable text channels found")
	}
	return s.channels, nil
}

func (s *discordSource) recordOrigin(messageID, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.origin) >= originCap {
		s.origin = make(map[string]string, originCap)
	}
	s.origin[messageID] = channelID
}

func (s *discordSource) do(ctx context.Context, method, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bot "+s.creds.BotToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
