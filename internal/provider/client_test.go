package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectMP4_NoCandidates(t *testing.T) {
	_, ok := SelectMP4([]RecordingFile{
		{FileType: "MP4", Status: "processing", DownloadURL: "http://x"},
		{FileType: "M4A", Status: "completed", DownloadURL: "http://x"},
	})
	assert.False(t, ok)
}

func TestSelectMP4_SingleCandidate(t *testing.T) {
	files := []RecordingFile{
		{FileType: "MP4", Status: "completed", DownloadURL: "http://x", RecordingType: "gallery_view"},
	}
	f, ok := SelectMP4(files)
	require := assert.New(t)
	require.True(ok)
	require.Equal("http://x", f.DownloadURL)
}

func TestSelectMP4_PrefersRecordingTypeOrder(t *testing.T) {
	files := []RecordingFile{
		{ID: "gallery", FileType: "MP4", Status: "completed", DownloadURL: "http://g", RecordingType: "gallery_view", FileSize: 999},
		{ID: "shared", FileType: "MP4", Status: "completed", DownloadURL: "http://s", RecordingType: "shared_screen_with_speaker_view", FileSize: 1},
	}
	f, ok := SelectMP4(files)
	assert.True(t, ok)
	assert.Equal(t, "shared", f.ID)
}

func TestSelectMP4_TiebreaksByLargerSize(t *testing.T) {
	files := []RecordingFile{
		{ID: "a", FileType: "MP4", Status: "completed", DownloadURL: "http://a", RecordingType: "active_speaker", FileSize: 100},
		{ID: "b", FileType: "MP4", Status: "completed", DownloadURL: "http://b", RecordingType: "active_speaker", FileSize: 200},
	}
	f, ok := SelectMP4(files)
	assert.True(t, ok)
	assert.Equal(t, "b", f.ID)
}

func TestFileIDFromURL_FileDPath(t *testing.T) {
	id, ok := FileIDFromURL("https://store.example.com/file/d/abc123/view?usp=sharing")
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)
}

func TestFileIDFromURL_QueryParam(t *testing.T) {
	id, ok := FileIDFromURL("https://store.example.com/open?id=xyz789")
	assert.True(t, ok)
	assert.Equal(t, "xyz789", id)
}

func TestFileIDFromURL_NoMatch(t *testing.T) {
	_, ok := FileIDFromURL("https://store.example.com/nothing-here")
	assert.False(t, ok)
}
