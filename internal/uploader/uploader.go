// Package uploader implements the Resumable Uploader (C2): a chunked
// object-store upload session with 308-driven offset tracking, post-upload
// MD5/size verification, and a separate permission-grant retry.
package uploader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Kind is the failure taxonomy for upload attempts.
type Kind int

const (
	// KindTransient covers 429/5xx, retried with the normal backoff curve.
	KindTransient Kind = iota
	// KindFatal covers other 4xx and the stuck-308 condition; never retried.
	KindFatal
)

// Error wraps an upload failure with its taxonomy kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// ErrStuck308 is the fatal error raised after five consecutive 308
// responses without a Range header (§8's "stuck-308" scenario).
var ErrStuck308 = fmt.Errorf("uploader: stuck-308, no Range progress after 5 attempts")

// Classifier adapts the upload taxonomy to retry.Classifier.
type Classifier struct{}

// Retryable implements retry.Classifier.
func (Classifier) Retryable(err error) (ok bool, longWait bool) {
	if err == nil {
		return false, false
	}
	var ue *Error
	if e, isErr := err.(*Error); isErr {
		ue = e
	}
	if ue == nil {
		return true, false
	}
	return ue.Kind == KindTransient, false
}

// Metadata is the tag set attached to every uploaded artifact, and doubles
// as the idempotency probe key set (§4.2's findByExternalRecordingId).
type Metadata struct {
	MeetingID           string
	CourseID            string
	ExternalRecordingID string
}

// Result is the upload contract's return value.
type Result struct {
	FileID    string
	ViewURL   string
	RemoteMD5 string
	RemoteSize int64
}

// Config holds §6's object-store tunables.
type Config struct {
	BaseURL     string // resumable-upload initiate endpoint
	FolderID    string
	ChunkSize   int64 // default 32 MiB
	AuthToken   string
	HTTPClient  *http.Client
}

// DefaultChunkSize is §4.2's default PUT chunk size.
const DefaultChunkSize = 32 << 20

// Uploader streams a local file to the object store via a resumable session.
type Uploader struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an Uploader.
func New(cfg Config, logger *zap.Logger) *Uploader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
			},
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{cfg: cfg, logger: logger}
}

// FindByExternalRecordingID implements §4.2's idempotency short-circuit.
// A nil, nil result means no existing artifact was found.
func (u *Uploader) FindByExternalRecordingID(ctx context.Context, externalRecordingID string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.cfg.BaseURL+"/search", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("tag.externalRecordingId", externalRecordingID)
	req.URL.RawQuery = q.Encode()
	u.authorize(req)

	resp, err := u.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uploader: search status %d", resp.StatusCode)
	}
	var found struct {
		FileID  string `json:"fileId"`
		ViewURL string `json:"viewUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return nil, err
	}
	if found.FileID == "" {
		return nil, nil
	}
	return &Result{FileID: found.FileID, ViewURL: found.ViewURL}, nil
}

// Upload is one retry-policy attempt of §4.2's session protocol: initiate,
// stream chunks to completion, and verify. It does not grant read
// permission; callers do that separately with GrantReaderPermission.
func (u *Uploader) Upload(ctx context.Context, localPath, name string, meta Metadata) (*Result, error) {
	localSize, localMD5, err := hashAndSize(localPath)
	if err != nil {
		return nil, &Error{Kind: KindFatal, Err: err}
	}

	sessionURL, err := u.initiate(ctx, name, localSize, meta)
	if err != nil {
		return nil, err
	}

	result, err := u.streamChunks(ctx, sessionURL, localPath, localSize)
	if err != nil {
		return nil, err
	}

	if err := u.verify(result, localMD5, localSize); err != nil {
		return nil, &Error{Kind: KindFatal, Err: err}
	}

	return result, nil
}

func (u *Uploader) initiate(ctx context.Context, name string, size int64, meta Metadata) (string, error) {
	body := map[string]interface{}{
		"name":   name,
		"parent": u.cfg.FolderID,
		"tags": map[string]string{
			"meetingId":           meta.MeetingID,
			"courseId":            meta.CourseID,
			"externalRecordingId": meta.ExternalRecordingID,
		},
		"viewersCanCopyContent": false,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Kind: KindFatal, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.BaseURL+"/resumable/initiate", strings.NewReader(string(raw)))
	if err != nil {
		return "", &Error{Kind: KindFatal, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	u.authorize(req)

	resp, err := u.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", &Error{Kind: KindTransient, Err: fmt.Errorf("uploader: initiate status %d", resp.StatusCode)}
	}
	location := resp.Header.Get("Location")
	if resp.StatusCode >= 400 || location == "" {
		return "", &Error{Kind: KindFatal, Err: fmt.Errorf("uploader: initiate status %d, no Location", resp.StatusCode)}
	}
	return location, nil
}

// streamChunks drives the PUT-chunk loop to completion, tracking a
// consecutive-stuck-308 counter that aborts after 5.
func (u *Uploader) streamChunks(ctx context.Context, sessionURL, localPath string, total int64) (*Result, error) {
	var offset int64
	stuck308 := 0

	for {
		last := offset+u.cfg.ChunkSize >= total
		end := offset + u.cfg.ChunkSize
		if end > total {
			end = total
		}

		// Fresh reader per attempt: §9's invariant against silent data loss
		// from a consumed stream being retried.
		chunk, err := newChunkReader(localPath, offset, end)
		if err != nil {
			return nil, &Error{Kind: KindFatal, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, chunk)
		if err != nil {
			chunk.Close()
			return nil, &Error{Kind: KindFatal, Err: err}
		}
		req.ContentLength = end - offset
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end-1, total))

		resp, err := u.cfg.HTTPClient.Do(req)
		chunk.Close()
		if err != nil {
			return nil, &Error{Kind: KindTransient, Err: err}
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			result, err := parseCompletion(resp)
			resp.Body.Close()
			if err != nil {
				return nil, &Error{Kind: KindFatal, Err: err}
			}
			return result, nil
		case resp.StatusCode == 308:
			resp.Body.Close()
			rangeHdr := resp.Header.Get("Range")
			if rangeHdr == "" {
				stuck308++
				u.logger.Warn("uploader:308-no-range", zap.Int("consecutive", stuck308))
				if stuck308 >= 5 {
					return nil, &Error{Kind: KindFatal, Err: ErrStuck308}
				}
				continue // retry the same chunk
			}
			stuck308 = 0
			k, err := parseRangeEnd(rangeHdr)
			if err != nil {
				return nil, &Error{Kind: KindFatal, Err: err}
			}
			offset = k + 1
			if last && offset >= total {
				// Server reported progress through EOF but never returned
				// a completion status; treat the next loop's empty PUT as
				// the finalizing request.
				continue
			}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			return nil, &Error{Kind: KindTransient, Err: fmt.Errorf("uploader: chunk status %d", resp.StatusCode)}
		default:
			resp.Body.Close()
			return nil, &Error{Kind: KindFatal, Err: fmt.Errorf("uploader: chunk status %d", resp.StatusCode)}
		}
	}
}

func (u *Uploader) verify(result *Result, localMD5 string, localSize int64) error {
	if result.RemoteMD5 == "" {
		return fmt.Errorf("uploader: missing remoteMd5, probable incomplete upload")
	}
	if !strings.EqualFold(result.RemoteMD5, localMD5) {
		return fmt.Errorf("uploader: md5 mismatch, remote=%s local=%s", result.RemoteMD5, localMD5)
	}
	diff := result.RemoteSize - localSize
	if diff < 0 {
		diff = -diff
	}
	if diff > 1024 {
		return fmt.Errorf("uploader: size mismatch, remote=%d local=%d", result.RemoteSize, localSize)
	}
	return nil
}

// ProbeMetadata is the object-store probe result used by the pipeline's
// wait-for-preview step and the Preview Wakeup Job's re-probe (§4.9).
type ProbeMetadata struct {
	HasThumbnail     bool
	ProcessingStatus string
	PreviewURL       string
}

// GetMetadata fetches the current processing state of an uploaded file.
func (u *Uploader) GetMetadata(ctx context.Context, fileID string) (*ProbeMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/files/%s", u.cfg.BaseURL, fileID), nil)
	if err != nil {
		return nil, err
	}
	u.authorize(req)
	resp, err := u.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uploader: metadata status %d", resp.StatusCode)
	}
	var payload struct {
		ThumbnailLink    string `json:"thumbnailLink"`
		ProcessingStatus string `json:"videoMediaMetadata.processingStatus"`
		WebViewLink      string `json:"webViewLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &ProbeMetadata{
		HasThumbnail:     payload.ThumbnailLink != "",
		ProcessingStatus: payload.ProcessingStatus,
		PreviewURL:       payload.WebViewLink,
	}, nil
}

// ProbePreview issues a passive HEAD against the preview endpoint, used
// by the Wakeup Job to nudge the object store into regenerating a stalled
// preview without re-reading metadata first.
func (u *Uploader) ProbePreview(ctx context.Context, previewURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, previewURL, nil)
	if err != nil {
		return err
	}
	u.authorize(req)
	resp, err := u.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// GrantReaderPermission makes one permission-grant request for §4.2's
// "anyone with link — reader" access. It does not retry; callers wrap it
// in a retry.Policy (up to 5 attempts, exponential to a 30s cap) and treat
// a final failure as non-fatal.
func (u *Uploader) GrantReaderPermission(ctx context.Context, fileID string) error {
	body := map[string]interface{}{
		"role":                  "reader",
		"type":                  "anyone",
		"allowFileDiscovery":    false,
		"copyRequiresWriterRole": true,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/files/%s/permissions", u.cfg.BaseURL, fileID), strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	u.authorize(req)

	resp, err := u.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("uploader: permission grant status %d", resp.StatusCode)
	}
	return nil
}

func (u *Uploader) authorize(req *http.Request) {
	if u.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+u.cfg.AuthToken)
	}
}

func parseCompletion(resp *http.Response) (*Result, error) {
	var payload struct {
		ID       string `json:"id"`
		ViewURL  string `json:"webViewLink"`
		MD5      string `json:"md5Checksum"`
		SizeText string `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	size, _ := strconv.ParseInt(payload.SizeText, 10, 64)
	return &Result{FileID: payload.ID, ViewURL: payload.ViewURL, RemoteMD5: payload.MD5, RemoteSize: size}, nil
}

func parseRangeEnd(rangeHdr string) (int64, error) {
	// Expected shape: "bytes=0-K"
	parts := strings.SplitN(rangeHdr, "-", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("uploader: malformed Range header %q", rangeHdr)
	}
	return strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
}

func hashAndSize(path string) (size int64, md5Hex string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, "", err
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, "", err
	}
	return info.Size(), hex.EncodeToString(h.Sum(nil)), nil
}

// chunkReader is a fresh, bounded view of a byte range of a local file,
// reopened on every call so a retried PUT never reuses a consumed stream.
type chunkReader struct {
	f   *os.File
	lr  io.Reader
}

func newChunkReader(path string, start, end int64) (*chunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &chunkReader{f: f, lr: io.LimitReader(f, end-start)}, nil
}

func (c *chunkReader) Read(p []byte) (int, error) { return c.lr.Read(p) }
func (c *chunkReader) Close() error                { return c.f.Close() }
