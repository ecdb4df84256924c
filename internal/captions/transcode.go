// Package captions turns raw WebVTT subtitle tracks into segments and
// compact transcripts suitable for prompting a language model.
package captions

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	timecodeSeparator = "-->"
	transcriptTitle   = "Video Transcript"
	transcriptHeader  = "Start Time, End Time, Caption Text"
	emptyTimestamp    = "00:00:00.000"
)

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// Segment is one cue. Start and End are kept exactly as they appear in the
// source track.
type Segment struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

type Transcript struct {
	Segments  []Segment `json:"segments"`
	PlainText string    `json:"plainText"`
	CSV       string    `json:"csvTranscript"`
}

// Transcode parses raw and renders it. Malformed input never fails; blocks
// without a timecode line are dropped.
func Transcode(raw string) Transcript {
	segments := Parse(raw)
	return Transcript{
		Segments:  segments,
		PlainText: RenderText(segments),
		CSV:       RenderCSV(segments),
	}
}

func Parse(raw string) []Segment {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimPrefix(normalized, "\ufeff")

	blocks := blankLine.Split(strings.TrimSpace(normalized), -1)
	segments := make([]Segment, 0, len(blocks))

	for i, block := range blocks {
		if i == 0 && strings.HasPrefix(strings.TrimSpace(block), "WEBVTT") {
			continue
		}
		if seg, ok := parseBlock(block); ok {
			segments = append(segments, seg)
		}
	}
	return segments
}

func parseBlock(block string) (Segment, bool) {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		idx := strings.Index(line, timecodeSeparator)
		if idx < 0 {
			continue
		}

		start := strings.TrimSpace(line[:idx])
		endFields := strings.Fields(line[idx+len(timecodeSeparator):])
		if start == "" || len(endFields) == 0 {
			return Segment{}, false
		}

		text := make([]string, 0, len(lines)-i-1)
		for _, l := range lines[i+1:] {
			if l = strings.TrimSpace(l); l != "" {
				text = append(text, l)
			}
		}

		return Segment{
			Start: start,
			End:   endFields[0],
			Text:  strings.Join(text, " "),
		}, true
	}
	return Segment{}, false
}

// RenderText produces the human-readable rendering, one cue per line.
func RenderText(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&b, "[%s - %s] %s\n", s.Start, s.End, s.Text)
	}
	return b.String()
}

// RenderCSV produces the delimited transcript fed to the model: a title
// line, a header row, one row per cue and a summary line.
func RenderCSV(segments []Segment) string {
	lines := make([]string, 0, len(segments)+3)
	lines = append(lines, transcriptTitle, transcriptHeader)

	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("%s,%s,%s", s.Start, s.End, quoteField(s.Text)))
	}

	final := emptyTimestamp
	if len(segments) > 0 {
		final = segments[len(segments)-1].End
	}
	lines = append(lines, fmt.Sprintf("Total segments: %d, Final timestamp: %s", len(segments), final))

	return strings.Join(lines, "\n") + "\n"
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
