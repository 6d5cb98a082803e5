package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestAdmit_NoSecretConfigured_Ignored(t *testing.T) {
	a := New(Config{}, nil)
	result, payload, ok := a.Admit([]byte(`{"event":"recording.completed"}`), "", "")
	assert.False(t, ok)
	assert.Nil(t, payload)
	require.NotNil(t, result)
	assert.Equal(t, StatusIgnored, result.Status)
}

func TestAdmit_URLValidationHandshake(t *testing.T) {
	a := New(Config{Secret: "shh"}, nil)
	body := []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"tok123"}}`)
	result, _, ok := a.Admit(body, "", "")
	assert.False(t, ok)
	require.NotNil(t, result)
	assert.Equal(t, "tok123", result.PlainToken)
	assert.NotEmpty(t, result.EncryptedToken)

	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write([]byte("tok123"))
	want := hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, result.EncryptedToken)
}

func TestAdmit_InvalidSignature(t *testing.T) {
	a := New(Config{Secret: "shh"}, nil)
	body := []byte(`{"event":"recording.completed","payload":{}}`)
	result, payload, ok := a.Admit(body, "1700000000", "v0=bogus")
	assert.False(t, ok)
	assert.Nil(t, payload)
	require.NotNil(t, result)
	assert.Equal(t, StatusInvalidSignature, result.Status)
}

func TestAdmit_ValidSignature_RecordingCompleted(t *testing.T) {
	secret := "shh"
	a := New(Config{Secret: secret}, nil)

	payloadBody := RecordingCompletedPayload{}
	payloadBody.Object.ID = "ext-meeting-1"
	payloadBody.Object.Topic = "Algebra I"
	raw, err := json.Marshal(payloadBody)
	require.NoError(t, err)

	env := Envelope{Event: "recording.completed", Payload: raw}
	body, err := json.Marshal(env)
	require.NoError(t, err)

	timestamp := "1700000000"
	sig := sign(secret, timestamp, body)

	result, payload, ok := a.Admit(body, timestamp, sig)
	assert.True(t, ok)
	assert.Nil(t, result)
	require.NotNil(t, payload)
	assert.Equal(t, "ext-meeting-1", payload.Object.ID)
	assert.Equal(t, "Algebra I", payload.Object.Topic)
}

func TestAdmit_DisableSignatureBypassesVerification(t *testing.T) {
	a := New(Config{Secret: "shh", DisableSignature: true}, nil)
	payloadBody := RecordingCompletedPayload{}
	payloadBody.Object.ID = "ext-meeting-2"
	raw, _ := json.Marshal(payloadBody)
	env := Envelope{Event: "recording.completed", Payload: raw}
	body, _ := json.Marshal(env)

	_, payload, ok := a.Admit(body, "", "wrong-signature")
	assert.True(t, ok)
	require.NotNil(t, payload)
	assert.Equal(t, "ext-meeting-2", payload.Object.ID)
}

func TestAdmit_UnrecognizedEvent_Ignored(t *testing.T) {
	a := New(Config{Secret: "shh", DisableSignature: true}, nil)
	body := []byte(`{"event":"meeting.started","payload":{}}`)
	result, payload, ok := a.Admit(body, "", "")
	assert.False(t, ok)
	assert.Nil(t, payload)
	require.NotNil(t, result)
	assert.Equal(t, StatusIgnored, result.Status)
}
