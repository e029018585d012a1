package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/cyberguard/guardian/pkg/infra/httpx"
)

const (
	redditAuthURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIBase = "https://oauth.reddit.com"
)

// RedditCredentials configures a script-app Reddit client (password grant).
// The account must moderate the listed subreddits for removals to succeed;
// otherwise removals fall back to the report flow.
type RedditCredentials struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	UserAgent    string   `mapstructure:"user_agent"`
	Subreddits   []string `mapstructure:"subreddits"`
}

type redditSource struct {
	creds  RedditCredentials
	client httpx.Client
	logger *logrus.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewRedditSource(raw map[string]interface{}, client httpx.Client, logger *logrus.Logger) (Source, error) {
	var creds RedditCredentials
	if err := mapstructure.Decode(raw, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode reddit credentials: %w", err)
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("reddit client_id, client_secret, username and password are required")
	}
	if len(creds.Subreddits) == 0 {
		return nil, fmt.Errorf("reddit subreddits list is required")
	}
	if creds.UserAgent == "" {
		creds.UserAgent = "guardian/1.0 (moderation bot)"
	}
	return &redditSource{creds: creds, client: client, logger: logger}, nil
}

func (s *redditSource) Platform() string { return Reddit }

func (s *redditSource) ListNew(ctx context.Context, limit int) ([]moderation.ContentItem, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/r/%s/comments?limit=%d",
		redditAPIBase, strings.Join(s.creds.Subreddits, "+"), limit)
	body, err := s.get(ctx, endpoint, token)
	if err != nil {
		return nil, err
	}

	var listing struct {
		Data struct {
			Children []struct {
				Data struct {
					Name      string `json:"name"` // fullname, t1_xxx
					Body      string `json:"body"`
					Author    string `json:"author"`
					Subreddit string `json:"subreddit"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode comment listing: %w", err)
	}

	items := make([]moderation.ContentItem, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		d := c.Data
		if d.Body == "" || d.Body == "[deleted]" || d.Body == "[removed]" {
			continue
		}
		items = append(items, moderation.ContentItem{
			ID:       d.Name,
			Text:     d.Body,
			Author:   d.Author,
			Platform: Reddit,
			Metadata: map[string]string{"subreddit": d.Subreddit},
		})
	}
	return items, nil
}

func (s *redditSource) Remove(ctx context.Context, id string) (bool, error) {
	form := url.Values{"id": {id}, "spam": {"false"}}
	return s.postAction(ctx, "/api/remove", form)
}

// Report escalates to subreddit moderators when the account lacks removal
// rights on the comment.
func (s *redditSource) Report(ctx context.Context, id string, reason string) (bool, error) {
	form := url.Values{"thing_id": {id}, "reason": {reason}}
	return s.postAction(ctx, "/api/report", form)
}

func (s *redditSource) postAction(ctx context.Context, path string, form url.Values) (bool, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		redditAPIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.creds.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, ErrRateLimited
	case resp.StatusCode == http.StatusForbidden:
		// not a moderator of the subreddit
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("reddit %s returned status %d", path, resp.StatusCode)
	}
	return true, nil
}

// ensureToken refreshes the OAuth token a minute before expiry.
func (s *redditSource) ensureToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Now().Before(s.expires.Add(-time.Minute)) {
		return s.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {s.creds.Username},
		"password":   {s.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		redditAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.creds.ClientID, s.creds.ClientSecret)
	req.Header.Set("User-Agent", s.creds.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reddit token request returned status %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("reddit token response was empty")
	}
	s.token = out.AccessToken
	s.expires = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return s.token, nil
}

func (s *redditSource) get(ctx context.Context, endpoint, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.creds.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
