package analysis

import (
	"fmt"
	"strconv"
	"strings"
)

func systemPrompt() string {
	return fmt.Sprintf(`You are a video cataloguing assistant. You receive still frames sampled across a video and, when available, a transcript of its captions.
Describe the video and answer with a single JSON object and nothing else, using exactly these fields:
{
  "title": string, at most %d characters, no quotes or emoji,
  "description": string, two to four sentences of plain prose,
  "category": one of [%s],
  "tags": array of exactly %d short lowercase keywords,
  "contentRating": one of [%s],
  "language": ISO 639-1 code of the spoken language, or of the on-screen text if there is no speech,
  "mood": one of [%s],
  "confidence": number between 0 and 1 describing how sure you are of the description
}
Base the answer only on what is visible in the frames and stated in the transcript.`,
		MaxTitleRunes,
		quoteList(Categories),
		TagCount,
		quoteList(ContentRatings),
		quoteList(Moods),
	)
}

func userPrompt(duration float64, hasDuration bool, transcript string, frames []float64) string {
	var b strings.Builder

	if hasDuration {
		fmt.Fprintf(&b, "Video duration: %s seconds.\n", strconv.FormatFloat(duration, 'f', -1, 64))
	} else {
		b.WriteString("Video duration: unknown.\n")
	}

	stamps := make([]string, len(frames))
	for i, ts := range frames {
		stamps[i] = strconv.FormatFloat(ts, 'f', -1, 64) + "s"
	}
	fmt.Fprintf(&b, "Attached are %d frames taken at: %s.\n\n", len(frames), strings.Join(stamps, ", "))

	if transcript == "" {
		b.WriteString("No transcript is available for this video.\n")
	} else {
		b.WriteString("Caption transcript (CSV):\n")
		b.WriteString(transcript)
	}
	return b.String()
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ", ")
}
