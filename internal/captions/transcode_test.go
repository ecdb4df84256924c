package captions

import (
	"strings"
	"testing"
)

const threeCues = `WEBVTT
Kind: captions
Language: en

1
00:00:00.000 --> 00:00:02.500
Hello and welcome

2
00:00:02.500 --> 00:00:05.000 align:start position:10%
to the show,
everyone

00:00:05.000 --> 00:00:07.250
Goodbye
`

func TestTranscode_ThreeCues(t *testing.T) {
	tr := Transcode(threeCues)

	if len(tr.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(tr.Segments))
	}

	want := []Segment{
		{Start: "00:00:00.000", End: "00:00:02.500", Text: "Hello and welcome"},
		{Start: "00:00:02.500", End: "00:00:05.000", Text: "to the show, everyone"},
		{Start: "00:00:05.000", End: "00:00:07.250", Text: "Goodbye"},
	}
	for i, w := range want {
		if tr.Segments[i] != w {
			t.Errorf("segment[%d] = %+v, want %+v", i, tr.Segments[i], w)
		}
	}

	lines := strings.Split(strings.TrimRight(tr.CSV, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("csv lines = %d, want 6 (title, header, 3 rows, summary): %q", len(lines), tr.CSV)
	}
	if lines[0] != "Video Transcript" {
		t.Errorf("title line = %q", lines[0])
	}
	if lines[1] != "Start Time, End Time, Caption Text" {
		t.Errorf("header line = %q", lines[1])
	}
	if lines[3] != `00:00:02.500,00:00:05.000,"to the show, everyone"` {
		t.Errorf("row = %q", lines[3])
	}
	if lines[5] != "Total segments: 3, Final timestamp: 00:00:07.250" {
		t.Errorf("summary line = %q", lines[5])
	}

	if !strings.Contains(tr.PlainText, "[00:00:05.000 - 00:00:07.250] Goodbye") {
		t.Errorf("plain text missing last cue: %q", tr.PlainText)
	}
}

func TestTranscode_QuoteEscaping(t *testing.T) {
	raw := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nShe said \"hi\" to me\n"
	tr := Transcode(raw)

	if len(tr.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(tr.Segments))
	}
	want := `00:00:01.000,00:00:02.000,"She said ""hi"" to me"`
	if !strings.Contains(tr.CSV, want+"\n") {
		t.Fatalf("csv = %q, want row %q", tr.CSV, want)
	}
}

func TestTranscode_SkipsMalformedBlocks(t *testing.T) {
	raw := strings.Join([]string{
		"WEBVTT",
		"",
		"NOTE this is a comment",
		"",
		"STYLE",
		"::cue { color: red }",
		"",
		"00:00:01.000 --> 00:00:02.000",
		"kept",
		"",
		"just some stray text",
		"",
		" --> 00:00:03.000",
		"missing start",
	}, "\n")

	tr := Transcode(raw)
	if len(tr.Segments) != 1 || tr.Segments[0].Text != "kept" {
		t.Fatalf("segments = %+v, want single kept cue", tr.Segments)
	}
}

func TestTranscode_CRLF(t *testing.T) {
	raw := "WEBVTT\r\n\r\n00:00:01.000 --> 00:00:02.000\r\nline one\r\nline two\r\n"
	tr := Transcode(raw)
	if len(tr.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(tr.Segments))
	}
	if tr.Segments[0].Text != "line one line two" {
		t.Errorf("text = %q", tr.Segments[0].Text)
	}
}

func TestTranscode_Empty(t *testing.T) {
	tr := Transcode("")
	if len(tr.Segments) != 0 {
		t.Fatalf("segments = %d, want 0", len(tr.Segments))
	}
	if !strings.HasSuffix(tr.CSV, "Total segments: 0, Final timestamp: 00:00:00.000\n") {
		t.Errorf("csv = %q", tr.CSV)
	}
	if tr.PlainText != "" {
		t.Errorf("plain text = %q, want empty", tr.PlainText)
	}
}

func TestTranscode_HeaderOnly(t *testing.T) {
	tr := Transcode("WEBVTT\n\n")
	if len(tr.Segments) != 0 {
		t.Fatalf("segments = %d, want 0", len(tr.Segments))
	}
}
