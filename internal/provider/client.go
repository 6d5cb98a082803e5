// Package provider is the conferencing-provider capability interface:
// OAuth token acquisition with lazy refresh, and paginated recording
// enumeration. Treated as an external collaborator per the core's scope;
// only the shapes the Coordinator and Wakeup Job consume are modeled.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds the OAuth and API endpoints.
type Config struct {
	TokenURL     string
	APIBaseURL   string
	AccountID    string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// RecordingFile is one entry in a meeting's recording_files list.
type RecordingFile struct {
	ID           string `json:"id"`
	FileType     string `json:"file_type"`
	RecordingType string `json:"recording_type"`
	Status       string `json:"status"`
	DownloadURL  string `json:"download_url"`
	FileSize     int64  `json:"file_size"`
}

// Meeting is the provider's representation of a recorded meeting.
type Meeting struct {
	ID             string          `json:"id"`
	Topic          string          `json:"topic"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

// Client talks to the conferencing provider's OAuth and recordings APIs.
type Client struct {
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a provider Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, logger: logger}
}

// BearerToken implements downloader.TokenRefresher: returns the cached
// token, refreshing if within 60s of expiry (§5).
func (c *Client) BearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Until(c.tokenExpiry) > 60*time.Second {
		return c.token, nil
	}
	return c.refreshLocked(ctx)
}

// ForceRefresh implements downloader.TokenRefresher: unconditionally
// refreshes the cached token, used after a 401/403.
func (c *Client) ForceRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.cfg.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider: token status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	c.token = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	c.logger.Info("provider:token-refreshed", zap.Time("expiry", c.tokenExpiry))
	return c.token, nil
}

// GetMeetingRecordings fetches the recording files for one meeting id.
func (c *Client) GetMeetingRecordings(ctx context.Context, externalMeetingID string) (*Meeting, error) {
	token, err := c.BearerToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/meetings/%s/recordings", c.cfg.APIBaseURL, url.PathEscape(externalMeetingID)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider: get recordings status %d", resp.StatusCode)
	}
	var m Meeting
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Page is one page of the paginated recordings-listing interface used by
// the historical-backfill sync endpoint.
type Page struct {
	Meetings      []Meeting
	NextPageToken string
}

// ListRecordings enumerates recordings in [from,to] (sent as YYYY-MM-DD
// dates), paginating via the provider's page-token cursor.
func (c *Client) ListRecordings(ctx context.Context, from, to time.Time, pageToken string) (*Page, error) {
	token, err := c.BearerToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/recordings", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("account_id", c.cfg.AccountID)
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	q.Set("page_size", "300")
	if pageToken != "" {
		q.Set("next_page_token", pageToken)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider: list recordings status %d", resp.StatusCode)
	}
	var payload struct {
		Meetings      []Meeting `json:"meetings"`
		NextPageToken string    `json:"next_page_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &Page{Meetings: payload.Meetings, NextPageToken: payload.NextPageToken}, nil
}

// mp4SelectionOrder is the recording-type tiebreak order of §4.7.
var mp4SelectionOrder = []string{"shared_screen_with_speaker_view", "active_speaker", "speaker_view", "gallery_view"}

// SelectMP4 picks the best recording file per §4.7's MP4 selection rule:
// completed MP4 entries with a download URL, preferred by recording type
// order, ties broken by larger reported size.
func SelectMP4(files []RecordingFile) (RecordingFile, bool) {
	var candidates []RecordingFile
	for _, f := range files {
		if strings.EqualFold(f.FileType, "MP4") && f.DownloadURL != "" && f.Status == "completed" {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return RecordingFile{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	rank := func(f RecordingFile) int {
		for i, t := range mp4SelectionOrder {
			if f.RecordingType == t {
				return i
			}
		}
		return len(mp4SelectionOrder)
	}

	best := candidates[0]
	for _, f := range candidates[1:] {
		br, fr := rank(best), rank(f)
		if fr < br || (fr == br && f.FileSize > best.FileSize) {
			best = f
		}
	}
	return best, true
}

// FileIDFromURL extracts an object-store file id from a /file/d/<id> or
// ?id=<id> shaped preview URL, for the Wakeup Job (§4.9).
func FileIDFromURL(rawURL string) (string, bool) {
	if idx := strings.Index(rawURL, "/file/d/"); idx >= 0 {
		rest := rawURL[idx+len("/file/d/"):]
		for i, r := range rest {
			if r == '/' || r == '?' {
				rest = rest[:i]
				break
			}
		}
		if rest != "" {
			return rest, true
		}
	}
	u, err := url.Parse(rawURL)
	if err == nil {
		if id := u.Query().Get("id"); id != "" {
			return id, true
		}
	}
	return "", false
}
