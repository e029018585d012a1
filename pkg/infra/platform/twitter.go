package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/cache"
	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/httpx"
)

const twitterAPIBase = "https://api.twitter.com/2"

// TwitterCredentials configures the Twitter v2 client. BearerToken is
// required; Username widens polling to recent search for @-mentions that
// the mentions timeline misses.
type TwitterCredentials struct {
	BearerToken string `mapstructure:"bearer_token"`
	Username    string `mapstructure:"username"`
}

type twitterSource struct {
	creds  TwitterCredentials
	client httpx.Client
	cache  cache.Client
	logger *logrus.Logger
	userID string
}

// NewTwitterSource builds a Twitter source from untyped credentials.
// The since-id watermark persists in redis so restarts do not replay
// already-moderated mentions.
func NewTwitterSource(raw map[string]interface{}, client httpx.Client, c cache.Client, logger *logrus.Logger) (Source, error) {
	var creds TwitterCredentials
	if err := mapstructure.Decode(raw, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode twitter credentials: %w", err)
	}
	if creds.BearerToken == "" {
		return nil, fmt.Errorf("twitter bearer_token is required")
	}
	return &twitterSource{
		creds:  creds,
		client: client,
		cache:  c,
		logger: logger,
	}, nil
}

func (s *twitterSource) Platform() string { return Twitter }

func (s *twitterSource) ListNew(ctx context.Context, limit int) ([]moderation.ContentItem, error) {
	if err := s.ensureUserID(ctx); err != nil {
		return nil, err
	}
	if limit < 5 {
		limit = 5 // v2 minimum page size
	}

	q := url.Values{}
	q.Set("max_results", fmt.Sprintf("%d", limit))
	q.Set("tweet.fields", "author_id,lang,created_at")
	if since, err := s.cache.Get(ctx, cache.TwitterSinceIDKey); err == nil && since != "" {
		q.Set("since_id", since)
	}

	endpoint := fmt.Sprintf("%s/users/%s/mentions?%s", twitterAPIBase, s.userID, q.Encode())
	body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var page struct {
		Data []struct {
			ID       string `json:"id"`
			Text     string `json:"text"`
			AuthorID string `json:"author_id"`
			Lang     string `json:"lang"`
		} `json:"data"`
		Meta struct {
			NewestID string `json:"newest_id"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode mentions response: %w", err)
	}

	items := make([]moderation.ContentItem, 0, len(page.Data))
	for _, t := range page.Data {
		lang := t.Lang
		if lang == "und" {
			lang = ""
		}
		items = append(items, moderation.ContentItem{
			ID:       t.ID,
			Text:     t.Text,
			Author:   t.AuthorID,
			Platform: Twitter,
			Language: lang,
		})
	}

	if page.Meta.NewestID != "" {
		if err := s.cache.Set(ctx, cache.TwitterSinceIDKey, page.Meta.NewestID, 0); err != nil {
			s.logger.WithError(err).Warn("Failed to persist twitter since-id watermark")
		}
	}
	return items, nil
}

func (s *twitterSource) Remove(ctx context.Context, id string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/tweets/%s", twitterAPIBase, id), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+s.creds.BearerToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return false, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("twitter delete returned status %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			Deleted bool `json:"deleted"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode delete response: %w", err)
	}
	return out.Data.Deleted, nil
}

// ensureUserID resolves the authenticated account once; mentions timelines
// are keyed by numeric user id, not handle.
func (s *twitterSource) ensureUserID(ctx context.Context) error {
	if s.userID != "" {
		return nil
	}
	endpoint := twitterAPIBase + "/users/me"
	if s.creds.Username != "" {
		endpoint = fmt.Sprintf("%s/users/by/username/%s", twitterAPIBase, strings.TrimPrefix(s.creds.Username, "@"))
	}
	body, err := s.get(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("failed to resolve twitter user: %w", err)
	}
	var out struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("failed to decode user lookup: %w", err)
	}
	if out.Data.ID == "" {
		return fmt.Errorf("twitter user lookup returned no id")
	}
	s.userID = out.Data.ID
	if err := s.cache.Set(ctx, cache.SessionUserKey, out.Data.Username, 24*time.Hour); err != nil {
		s.logger.WithError(err).Warn("Failed to cache twitter session user")
	}
	return nil
}

func (s *twitterSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.creds.BearerToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter API returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
