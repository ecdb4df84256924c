package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

const (
	MaxTitleRunes = 60
	TagCount      = 5
)

var Categories = []string{
	"education", "entertainment", "music", "sports", "gaming", "news",
	"technology", "travel", "food", "lifestyle", "business", "other",
}

var ContentRatings = []string{"safe", "sensitive", "explicit"}

var Moods = []string{
	"upbeat", "calm", "serious", "humorous", "dramatic", "inspirational", "informative", "neutral",
}

type Result struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	ContentRating string   `json:"contentRating"`
	Language      string   `json:"language"`
	Mood          string   `json:"mood"`
	Confidence    float64  `json:"confidence"`
}

// rawResult mirrors Result with pointers so absent fields can be told
// apart from zero values.
type rawResult struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	Category      *string  `json:"category"`
	Tags          []string `json:"tags"`
	ContentRating *string  `json:"contentRating"`
	Language      *string  `json:"language"`
	Mood          *string  `json:"mood"`
	Confidence    *float64 `json:"confidence"`
}

// ParseResult decodes and validates a model answer. Any deviation from the
// schema is an error; nothing is guessed or filled in.
func ParseResult(content string) (*Result, error) {
	body := stripCodeFence(content)
	if body == "" {
		return nil, errors.New("empty response")
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	var missing []string
	for name, present := range map[string]bool{
		"title":         raw.Title != nil,
		"description":   raw.Description != nil,
		"category":      raw.Category != nil,
		"tags":          raw.Tags != nil,
		"contentRating": raw.ContentRating != nil,
		"language":      raw.Language != nil,
		"mood":          raw.Mood != nil,
		"confidence":    raw.Confidence != nil,
	} {
		if !present {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	res := &Result{
		Title:         SanitizeTitle(*raw.Title, MaxTitleRunes),
		Description:   strings.TrimSpace(*raw.Description),
		Category:      strings.ToLower(strings.TrimSpace(*raw.Category)),
		ContentRating: strings.ToLower(strings.TrimSpace(*raw.ContentRating)),
		Language:      strings.ToLower(strings.TrimSpace(*raw.Language)),
		Mood:          strings.ToLower(strings.TrimSpace(*raw.Mood)),
		Confidence:    *raw.Confidence,
	}

	if res.Title == "" {
		return nil, errors.New("title is empty")
	}
	if res.Description == "" {
		return nil, errors.New("description is empty")
	}
	if !slices.Contains(Categories, res.Category) {
		return nil, fmt.Errorf("category %q is not allowed", res.Category)
	}
	if !slices.Contains(ContentRatings, res.ContentRating) {
		return nil, fmt.Errorf("contentRating %q is not allowed", res.ContentRating)
	}
	if !slices.Contains(Moods, res.Mood) {
		return nil, fmt.Errorf("mood %q is not allowed", res.Mood)
	}
	if !isLanguageCode(res.Language) {
		return nil, fmt.Errorf("language %q is not an ISO 639-1 code", res.Language)
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v is outside [0, 1]", res.Confidence)
	}

	tags := make([]string, 0, len(raw.Tags))
	for _, tag := range raw.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) != TagCount {
		return nil, fmt.Errorf("got %d tags, want exactly %d", len(tags), TagCount)
	}
	res.Tags = tags

	return res, nil
}

// SanitizeTitle drops control characters, collapses whitespace and
// truncates to maxLen runes.
func SanitizeTitle(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			if unicode.IsSpace(r) {
				b.WriteRune(' ')
			}
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an info string such as "json" on the opening fence line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isLanguageCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
