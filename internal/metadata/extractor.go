// Package metadata derives structured attributes and search keywords from a
// file name and caption. Everything here is a pure function of its input.
package metadata

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// MaxKeywords caps the keyword set stored with each item.
const MaxKeywords = 80

// Each pattern captures the token in group 1; group 2, when present, holds
// the number. The surrounding non-capturing groups keep matches on token
// boundaries.
var (
	separatorRe = regexp.MustCompile(`[._\-()\[\]]+`)
	spaceRe     = regexp.MustCompile(`\s+`)

	yearRe     = regexp.MustCompile(`(?:^|[^0-9])((19|20)\d{2})(?:[^0-9]|$)`)
	seasonRe   = regexp.MustCompile(`(?i)(?:^|[^a-z])(s(?:eason)?\s?(\d{1,2}))(?:[^0-9]|$)`)
	episodeRe  = regexp.MustCompile(`(?i)(?:^|[^a-z])(e(?:pisode)?\s?(\d{1,3}))(?:[^0-9]|$)`)
	qualityRe  = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(2160p|1440p|1080p|720p|480p|4k|hdrip|web\s?dl|webrip|bluray)(?:[^a-z0-9]|$)`)
	languageRe = regexp.MustCompile(`(?i)(?:^|[^a-z])(hindi|english|tamil|telugu|malayalam|japanese|korean)(?:[^a-z]|$)`)

	seriesRe = regexp.MustCompile(`s\d{1,2}e\d{1,3}|season|episode`)
	movieRe  = regexp.MustCompile(`movie|film|bluray|webrip|web\s?dl|hdrip`)
)

var mediaExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".webm": {}, ".m4v": {}, ".wmv": {}, ".flv": {}, ".ts": {},
	".mp3": {}, ".m4a": {}, ".flac": {}, ".wav": {}, ".ogg": {}, ".opus": {}, ".aac": {},
	".pdf": {}, ".epub": {}, ".zip": {}, ".rar": {}, ".7z": {}, ".srt": {}, ".txt": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".doc": {}, ".docx": {}, ".apk": {}, ".iso": {},
}

// Normalize collapses separator punctuation and whitespace into single spaces.
func Normalize(text string) string {
	text = separatorRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Extract parses name and caption into Metadata and a keyword list. The
// keyword list is deduplicated, keeps first-seen order and holds at most
// MaxKeywords entries.
func Extract(name, caption string) (model.Metadata, []string) {
	merged := Normalize(stripExtension(name) + " " + caption)
	removed := make([]bool, len(merged))

	md := model.Metadata{Type: inferType(merged)}

	if tok, _, ok := find(yearRe, merged, removed); ok {
		md.Year = atoi(tok)
	}
	if _, num, ok := find(seasonRe, merged, removed); ok {
		md.Season = atoi(num)
	}
	if _, num, ok := find(episodeRe, merged, removed); ok {
		md.Episode = atoi(num)
	}
	if tok, _, ok := find(qualityRe, merged, removed); ok {
		q := strings.ToLower(spaceRe.ReplaceAllString(tok, "-"))
		md.Quality = &q
		if strings.Contains(q, "p") {
			r := q
			md.Resolution = &r
		}
	}
	if tok, _, ok := find(languageRe, merged, removed); ok {
		l := strings.ToLower(tok)
		md.Language = &l
	}

	var rest strings.Builder
	for i := 0; i < len(merged); i++ {
		if removed[i] {
			rest.WriteByte(' ')
			continue
		}
		rest.WriteByte(merged[i])
	}
	title := Normalize(rest.String())
	if title == "" {
		title = strings.TrimSpace(name)
	}
	if title != "" {
		md.Title = &title
	}

	return md, keywords(name, caption, title)
}

// find returns the first match of re in text together with its numeric
// group, and marks the matched token as removed.
func find(re *regexp.Regexp, text string, removed []bool) (token, number string, ok bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil || loc[2] < 0 {
		return "", "", false
	}
	start, end := loc[2], loc[3]
	for i := start; i < end; i++ {
		removed[i] = true
	}
	token = text[start:end]
	if len(loc) >= 6 && loc[4] >= 0 {
		number = text[loc[4]:loc[5]]
	}
	return token, number, true
}

func inferType(text string) model.Category {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "anime"):
		return model.CategoryAnime
	case seriesRe.MatchString(lower):
		return model.CategorySeries
	case movieRe.MatchString(lower):
		return model.CategoryMovie
	default:
		return model.CategoryOther
	}
}

func keywords(name, caption, title string) []string {
	tokens := strings.Split(strings.ToLower(Normalize(name+" "+caption+" "+title)), " ")
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, min(len(tokens), MaxKeywords))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= 1 {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

func stripExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := mediaExtensions[ext]; ok {
		return name[:len(name)-len(ext)]
	}
	return name
}

func atoi(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
