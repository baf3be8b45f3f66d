package shared

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	bracketRe       = regexp.MustCompile(`\s*[(\[]([^)\]]*)[)\]]\s*$`)
	dashSuffixRe    = regexp.MustCompile(`\s+-\s+([^-]*(?i:live|remix|remaster|mono|stereo|version|edit|mix)[^-]*)$`)
)

// Normalize folds a string for comparison: lowercase, diacritics stripped,
// whitespace collapsed.
func Normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	return whitespaceRe.ReplaceAllString(folded, " ")
}

// StripVersionSuffix removes trailing bracketed or dashed qualifiers from a
// track or album title ("One More Time (Remastered 2011)", "Song - Live")
// and returns the bare title together with the extracted qualifier text.
// Multiple trailing brackets are all stripped; their contents are joined
// with a single space.
func StripVersionSuffix(title string) (clean string, hint string) {
	clean = strings.TrimSpace(title)
	var hints []string

	for {
		m := bracketRe.FindStringSubmatch(clean)
		if m == nil {
			break
		}
		if h := strings.TrimSpace(m[1]); h != "" {
			hints = append([]string{h}, hints...)
		}
		clean = strings.TrimSpace(clean[:len(clean)-len(m[0])])
	}

	if m := dashSuffixRe.FindStringSubmatch(clean); m != nil {
		if h := strings.TrimSpace(m[1]); h != "" {
			hints = append(hints, h)
		}
		clean = strings.TrimSpace(clean[:len(clean)-len(m[0])])
	}

	return clean, strings.Join(hints, " ")
}

// NormalizeTrackKey builds a normalized lookup key from a track title and
// artist, ignoring version qualifiers.
func NormalizeTrackKey(title, artist string) string {
	bare, _ := StripVersionSuffix(title)
	return Normalize(bare) + "|" + Normalize(artist)
}
