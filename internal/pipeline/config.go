package pipeline

import "time"

// Config holds the Coordinator's own tunables (§6's CLI/env surface,
// minus the parts already owned by the downloader/uploader/retry configs).
type Config struct {
	DownloadsDir       string
	PrepublishDelay    time.Duration
	PreviewPollTimeout time.Duration
	PreviewPollInterval time.Duration
}

// DefaultConfig matches §4.7/§4.9's stated defaults.
func DefaultConfig() Config {
	return Config{
		DownloadsDir:        "downloads",
		PrepublishDelay:     30 * time.Second,
		PreviewPollTimeout:  120 * time.Second,
		PreviewPollInterval: 10 * time.Second,
	}
}
