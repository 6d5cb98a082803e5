// Package downloader implements the Resumable Downloader (C1): range-resume
// HTTP fetch with bearer/query-token auth, HEAD warmup, and post-body
// integrity validation. One Download call is one retry-policy attempt;
// the caller (the Pipeline Coordinator) wraps it in retry.Policy.Do.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenRefresher supplies the provider's OAuth-style bearer token, caching
// and refreshing it lazily (§5). ForceRefresh is invoked once after a
// 401/403 is observed.
type TokenRefresher interface {
	BearerToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// Result is the Download contract's return value.
type Result struct {
	ContentType   string
	ContentLength int64
}

// Config holds the tunables enumerated in §6's CLI/env surface that apply
// to the downloader.
type Config struct {
	Timeout           time.Duration // 0 = unbounded
	MinExpectedBytes  int64         // default 1 MiB
	WarmupWait        time.Duration // default 30s
	HTTPClient        *http.Client  // keep-alive pooled; shared across calls
}

// DefaultConfig returns §4.1's defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          0,
		MinExpectedBytes: 1 << 20,
		WarmupWait:       30 * time.Second,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Downloader fetches a remote video artifact with range-resume.
type Downloader struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Downloader.
func New(cfg Config, logger *zap.Logger) *Downloader {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = DefaultConfig().HTTPClient
	}
	if cfg.MinExpectedBytes <= 0 {
		cfg.MinExpectedBytes = 1 << 20
	}
	if cfg.WarmupWait <= 0 {
		cfg.WarmupWait = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{cfg: cfg, logger: logger}
}

// Download fetches remoteURL into destPath, resuming any partial file
// already on disk. singleUseToken, when non-empty, is preferred as a
// query-string credential on the first call; refresher supplies the
// fallback bearer token for subsequent calls and after a 401/403.
func (d *Downloader) Download(ctx context.Context, remoteURL, destPath, singleUseToken string, refresher TokenRefresher, expectedBytes int64) (*Result, error) {
	if err := d.warmup(ctx, remoteURL, singleUseToken, refresher); err != nil {
		return nil, err
	}

	resp, usedForceRefresh, err := d.requestBody(ctx, remoteURL, destPath, singleUseToken, refresher, false)
	if err != nil {
		return nil, err
	}
	if resp == nil && usedForceRefresh {
		// First attempt hit 401/403; retried once after forced refresh.
		resp, _, err = d.requestBody(ctx, remoteURL, destPath, singleUseToken, refresher, true)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	rangeRequested := resp.Request != nil && resp.Request.Header.Get("Range") != ""

	switch resp.StatusCode {
	case http.StatusOK:
		if rangeRequested {
			// Range ignored by the server: truncate and restart from 0.
			d.logger.Warn("download:range-ignored, restarting from 0", zap.String("url", remoteURL))
			if err := truncate(destPath); err != nil {
				return nil, wrapErr(KindTransport, err)
			}
		}
		return d.stream(resp, destPath, false, expectedBytes)
	case http.StatusPartialContent:
		return d.stream(resp, destPath, true, expectedBytes)
	case http.StatusRequestedRangeNotSatisfiable:
		size, statErr := fileSize(destPath)
		if statErr == nil && expectedBytes > 0 && size >= expectedBytes {
			return &Result{ContentType: resp.Header.Get("Content-Type"), ContentLength: size}, nil
		}
		_ = os.Remove(destPath)
		return nil, newErr(KindTransport, "download: 416 with incomplete local file")
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, newErr(KindAuth, fmt.Sprintf("download: auth error after refresh, status %d", resp.StatusCode))
	case http.StatusNotFound, http.StatusConflict, http.StatusTooEarly:
		return nil, newErr(KindNotReady, fmt.Sprintf("download: not-ready status %d", resp.StatusCode))
	default:
		return nil, newErr(KindTransport, fmt.Sprintf("download: unexpected status %d", resp.StatusCode))
	}
}

// requestBody issues the GET (with Range if a partial file exists) and
// returns nil, true, nil if a 401/403 was seen and a forced refresh should
// be retried by the caller.
func (d *Downloader) requestBody(ctx context.Context, remoteURL, destPath, singleUseToken string, refresher TokenRefresher, forcedRefresh bool) (*http.Response, bool, error) {
	req, err := d.buildRequest(ctx, remoteURL, destPath, singleUseToken, refresher, forcedRefresh)
	if err != nil {
		return nil, false, wrapErr(KindTransport, err)
	}
	resp, err := d.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, false, wrapErr(KindTransport, err)
	}
	if !forcedRefresh && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		resp.Body.Close()
		if refresher != nil {
			if _, err := refresher.ForceRefresh(ctx); err != nil {
				return nil, false, wrapErr(KindAuth, err)
			}
		}
		return nil, true, nil
	}
	return resp, false, nil
}

func (d *Downloader) buildRequest(ctx context.Context, remoteURL, destPath, singleUseToken string, refresher TokenRefresher, forcedRefresh bool) (*http.Request, error) {
	reqURL := remoteURL
	useQueryToken := singleUseToken != "" && !forcedRefresh
	if useQueryToken {
		u, err := url.Parse(remoteURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("access_token", singleUseToken)
		u.RawQuery = q.Encode()
		reqURL = u.String()
	}

	reqCtx := ctx
	cancel := func() {}
	if d.cfg.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
	}
	_ = cancel // request context cancellation is tied to ctx lifetime by http.Client

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if !useQueryToken && refresher != nil {
		token, err := refresher.BearerToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if size, err := fileSize(destPath); err == nil && size > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", size))
	}
	return req, nil
}

func (d *Downloader) stream(resp *http.Response, destPath string, appendMode bool, expectedBytes int64) (*Result, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(destPath, flags, 0o640)
	if err != nil {
		return nil, wrapErr(KindTransport, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return nil, wrapErr(KindTransport, err)
	}

	result := &Result{ContentType: resp.Header.Get("Content-Type"), ContentLength: resp.ContentLength}
	if err := d.validate(destPath, result.ContentType, expectedBytes); err != nil {
		return nil, err
	}
	return result, nil
}

// validate enforces §4.1's post-body checks. Size mismatch against
// expectedBytes is a warning only, never a failure (the provider revises
// sizes during its own processing).
func (d *Downloader) validate(destPath, contentType string, expectedBytes int64) error {
	size, err := fileSize(destPath)
	if err != nil || size <= 0 {
		_ = os.Remove(destPath)
		return newErr(KindInvalidArtifact, "download: empty or missing file after transfer")
	}
	if size < d.cfg.MinExpectedBytes {
		_ = os.Remove(destPath)
		return newErr(KindInvalidArtifact, fmt.Sprintf("download: file size %d below floor %d", size, d.cfg.MinExpectedBytes))
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		_ = os.Remove(destPath)
		return newErr(KindInvalidArtifact, "download: content-type indicates an error page")
	}
	if !strings.HasSuffix(strings.ToLower(destPath), ".mp4") {
		_ = os.Remove(destPath)
		return newErr(KindInvalidArtifact, "download: destination path is not .mp4")
	}
	if expectedBytes > 0 {
		diff := size - expectedBytes
		if diff < 0 {
			diff = -diff
		}
		if diff > 0 {
			d.logger.Warn("download:size-mismatch (warn only)",
				zap.Int64("expected", expectedBytes), zap.Int64("actual", size))
		}
	}
	return nil
}

// warmup HEADs the URL before each attempt; a transient {404,409,425}
// gets one 30s-delayed retry, and a suspiciously small reported size is
// treated as "not ready" (the provider sometimes serves a placeholder).
func (d *Downloader) warmup(ctx context.Context, remoteURL, singleUseToken string, refresher TokenRefresher) error {
	status, contentLength, err := d.head(ctx, remoteURL, singleUseToken, refresher)
	if err != nil {
		return wrapErr(KindTransport, err)
	}
	if isWarmupRetryable(status) {
		select {
		case <-time.After(d.cfg.WarmupWait):
		case <-ctx.Done():
			return ctx.Err()
		}
		status, contentLength, err = d.head(ctx, remoteURL, singleUseToken, refresher)
		if err != nil {
			return wrapErr(KindTransport, err)
		}
		if isWarmupRetryable(status) {
			return newErr(KindNotReady, fmt.Sprintf("download: HEAD still %d after warmup wait", status))
		}
	}
	if contentLength > 0 && contentLength < d.cfg.MinExpectedBytes {
		return newErr(KindNotReady, fmt.Sprintf("download: HEAD content-length %d below floor %d (placeholder)", contentLength, d.cfg.MinExpectedBytes))
	}
	return nil
}

func isWarmupRetryable(status int) bool {
	return status == http.StatusNotFound || status == http.StatusConflict || status == http.StatusTooEarly
}

func (d *Downloader) head(ctx context.Context, remoteURL, singleUseToken string, refresher TokenRefresher) (status int, contentLength int64, err error) {
	req, err := d.buildRequest(ctx, remoteURL, "", singleUseToken, refresher, false)
	if err != nil {
		return 0, 0, err
	}
	req.Method = http.MethodHead
	req.Header.Del("Range")
	resp, err := d.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.ContentLength, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func truncate(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	return f.Close()
}
