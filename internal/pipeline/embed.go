package pipeline

import (
	"fmt"
	"strings"
)

// previewURL derives the preview embed URL from a stored view URL by
// replacing the trailing /view with /preview (§6).
func previewURL(viewURL string) string {
	if strings.HasSuffix(viewURL, "/view") {
		return strings.TrimSuffix(viewURL, "/view") + "/preview"
	}
	return viewURL + "/preview"
}

// embedHTML renders the fixed iframe snippet of §6: a 56.25% aspect-ratio
// box with a transparent overlay over the pop-out control region.
func embedHTML(viewURL string) string {
	p := previewURL(viewURL)
	return fmt.Sprintf(`<div style="position:relative;padding-top:56.25%%;">`+
		`<iframe src="%s" style="position:absolute;top:0;left:0;width:100%%;height:100%%;border:0;" allow="autoplay"></iframe>`+
		`<div style="position:absolute;top:0;right:0;width:60px;height:40px;background:transparent;"></div>`+
		`</div>`, p)
}

// discussionSubject formats §4.7/§4.8's discussion subject:
// "<topic> | <yyyy-MM-dd> [<recordingId>]".
func discussionSubject(topic, dateISO, recordingID string) string {
	return fmt.Sprintf("%s | %s [%s]", topic, dateISO, recordingID)
}
