package transcript

import (
	"fmt"
	"strings"
)

// Flatten renders the transcript as "speaker: text" lines, the form the
// LLM endpoints expect.
func Flatten(res *Results) string {
	if res == nil {
		return ""
	}

	var b strings.Builder
	for _, s := range res.Segments {
		speaker := s.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTimestamp renders seconds as mm:ss.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// ExportText renders the transcript with timestamp ranges, matching the
// backend's own .txt export.
func ExportText(res *Results) string {
	if res == nil {
		return ""
	}

	var b strings.Builder
	for _, s := range res.Segments {
		fmt.Fprintf(&b, "[%s - %s] %s: %s\n",
			FormatTimestamp(s.Start), FormatTimestamp(s.End), s.Speaker, s.Text)
	}
	return b.String()
}
