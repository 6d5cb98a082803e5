// Package webhook implements Webhook Admission (C6): signature
// verification, the URL-validation handshake, and event routing, per
// §4.6. The HTTP response code is always 200; logical status rides in
// the JSON body so the provider never auto-disables the subscription.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"
)

// Config holds the admission-control tunables of §6.
type Config struct {
	Secret           string
	DisableSignature bool
}

// Admitter verifies inbound webhook requests and routes recognized events.
type Admitter struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an Admitter.
func New(cfg Config, logger *zap.Logger) *Admitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Admitter{cfg: cfg, logger: logger}
}

// Envelope is the minimal shape every inbound event shares.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RecordingCompletedPayload is the event payload dispatched to the
// Pipeline Coordinator.
type RecordingCompletedPayload struct {
	Object struct {
		ID             string                 `json:"id"`
		Topic          string                 `json:"topic"`
		RecordingFiles []RecordingFileEnvelope `json:"recording_files"`
	} `json:"object"`
	DownloadToken string `json:"download_token"`
}

// RecordingFileEnvelope mirrors provider.RecordingFile on the wire; kept
// local to avoid this package importing provider just for JSON shape.
type RecordingFileEnvelope struct {
	ID            string `json:"id"`
	FileType      string `json:"file_type"`
	RecordingType string `json:"recording_type"`
	Status        string `json:"status"`
	DownloadURL   string `json:"download_url"`
	FileSize      int64  `json:"file_size"`
}

// URLValidationPayload carries the provider's handshake token.
type URLValidationPayload struct {
	PlainToken string `json:"plainToken"`
}

// Result is the outcome handed back to the HTTP layer. Status is always
// serialized with HTTP 200.
type Result struct {
	Status         string `json:"status"`
	PlainToken     string `json:"plainToken,omitempty"`
	EncryptedToken string `json:"encryptedToken,omitempty"`
}

const (
	StatusIgnored         = "ignored"
	StatusInvalidSignature = "invalid-signature"
)

// Admit verifies rawBody against timestamp/signature and returns either a
// handshake Result, a signature-failure Result, an ignored Result, or a
// parsed RecordingCompletedPayload for the caller to hand to the
// Coordinator (ok=true, payload non-nil).
func (a *Admitter) Admit(rawBody []byte, timestamp, signature string) (result *Result, payload *RecordingCompletedPayload, ok bool) {
	a.logger.Info("webhook:admission", zap.Bool("signature_bypass", a.cfg.DisableSignature))

	if a.cfg.Secret == "" {
		a.logger.Warn("webhook:no-secret-configured, ignoring request")
		return &Result{Status: StatusIgnored}, nil, false
	}

	var env Envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return &Result{Status: StatusIgnored}, nil, false
	}

	if env.Event == "endpoint.url_validation" {
		var v URLValidationPayload
		_ = json.Unmarshal(env.Payload, &v)
		return &Result{
			Status:         "ok",
			PlainToken:     v.PlainToken,
			EncryptedToken: a.sign(v.PlainToken),
		}, nil, false
	}

	if !a.cfg.DisableSignature {
		if !a.verifySignature(rawBody, timestamp, signature) {
			return &Result{Status: StatusInvalidSignature}, nil, false
		}
	}

	if env.Event != "recording.completed" {
		return &Result{Status: StatusIgnored}, nil, false
	}

	var p RecordingCompletedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &Result{Status: StatusIgnored}, nil, false
	}
	return nil, &p, true
}

func (a *Admitter) sign(s string) string {
	mac := hmac.New(sha256.New, []byte(a.cfg.Secret))
	mac.Write([]byte(s))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature checks expected = "v0=" + hex(HMAC-SHA256(secret,
// "v0:"+timestamp+":"+body)) against signature using a constant-time,
// length-equal comparison (a short-circuit == is a timing oracle).
func (a *Admitter) verifySignature(rawBody []byte, timestamp, signature string) bool {
	mac := hmac.New(sha256.New, []byte(a.cfg.Secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(rawBody)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
