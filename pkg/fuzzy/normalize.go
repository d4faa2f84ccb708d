// Package fuzzy scores how well a media search result matches the
// catalog track it is supposed to be. Titles are folded to bare ASCII-ish
// lowercase before comparison so that "Beyoncé — Halo (Official Video)"
// and "beyonce halo" land close together.
package fuzzy

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex    = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	noiseRegex   = regexp.MustCompile(`(?i)\s*[\(\[]\s*(official|lyric|audio|video|visuali[sz]er|hd|4k|mv)[^\)\]]*[\)\]]\s*`)
	versionRegex = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(remaster(ed)?|deluxe|extended|radio edit|clean|explicit)[^\)\]]*[\)\]]?\s*`)
	punctRegex   = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// Candidate is one side of a match: a catalog track or a search result.
type Candidate struct {
	Title    string
	Artist   string
	Duration time.Duration
}

// Matcher normalizes and scores candidates. The zero value is usable.
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// NormalizeTitle strips featured-artist tags, upload noise
// ("(Official Video)") and edition suffixes, then case-folds.
func (m *Matcher) NormalizeTitle(title string) string {
	// Bracketed tags must go before fold() strips the brackets.
	title = featRegex.ReplaceAllString(title, " ")
	title = noiseRegex.ReplaceAllString(title, " ")
	title = versionRegex.ReplaceAllString(title, " ")
	return fold(title)
}

// NormalizeArtist case-folds and canonicalizes joiner words so that
// "A and B" and "A & B" compare equal.
func (m *Matcher) NormalizeArtist(artist string) string {
	artist = fold(artist)
	artist = strings.ReplaceAll(artist, " and ", " & ")
	artist = strings.ReplaceAll(artist, " feat ", " feat. ")
	artist = strings.ReplaceAll(artist, " ft ", " feat. ")
	return artist
}

// fold applies NFKD, drops combining marks, replaces punctuation with
// spaces and lowercases.
func fold(text string) string {
	text = norm.NFKD.String(text)

	var b strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	text = punctRegex.ReplaceAllString(b.String(), " ")
	text = spaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(strings.ToLower(text))
}

// Score rates how likely got is a playable rendition of want, in [0, 1].
// Title similarity dominates; duration agreement breaks ties between
// results with near-identical titles (album cut vs. 10-minute loop).
func (m *Matcher) Score(want, got Candidate) float64 {
	title := m.Similarity(m.NormalizeTitle(want.Title), m.NormalizeTitle(got.Title))
	artist := m.Similarity(m.NormalizeArtist(want.Artist), m.NormalizeArtist(got.Artist))

	score := 0.6*title + 0.2*artist
	if want.Duration > 0 && got.Duration > 0 {
		score += 0.2 * m.durationAgreement(want.Duration, got.Duration)
	} else {
		// No duration on one side: renormalize over what we can see.
		score /= 0.8
	}
	return score
}

// Similarity is the longest-common-subsequence ratio of the two strings.
func (m *Matcher) Similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}
	return float64(lcs(s1, s2)) / float64(max(len(s1), len(s2)))
}

func lcs(s1, s2 string) int {
	m, n := len(s1), len(s2)
	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if s1[i-1] == s2[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[n]
}

// durationAgreement is 1 inside a 15s window, falling linearly to 0 at
// two minutes of disagreement.
func (m *Matcher) durationAgreement(d1, d2 time.Duration) float64 {
	diff := d1 - d2
	if diff < 0 {
		diff = -diff
	}
	const tolerance = 15 * time.Second
	const maxDiff = 2 * time.Minute
	if diff <= tolerance {
		return 1.0
	}
	if diff >= maxDiff {
		return 0.0
	}
	return 1.0 - float64(diff-tolerance)/float64(maxDiff-tolerance)
}
