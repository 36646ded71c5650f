package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	maxDescriptionLength = 500
	maxCategoryLength    = 50
	maxTitleLogLength    = 100
)

// stripHTML removes markup, decodes entities and collapses whitespace.
// Script and style bodies are dropped.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseWhitespace(s)
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipping := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.TextToken:
			if !skipping {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipping = true
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipping = false
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes caps s at max runes without splitting a multi-byte character.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// hashString returns a short stable hex digest of s.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(collapseWhitespace(s))))
	return hex.EncodeToString(sum[:8])
}

var dmyDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

// findDMYDate returns the first valid DD/MM/YYYY date embedded in s.
func findDMYDate(s string) (time.Time, bool) {
	for _, m := range dmyDate.FindAllStringSubmatch(s, -1) {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func buildDate(day, month, year string) (time.Time, bool) {
	d, m, y := atoi(day), atoi(month), atoi(year)
	if d < 1 || d > 31 || m < 1 || m > 12 || y < 1900 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject those.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// lastPathSegment returns the final non-empty path segment of a URL.
func lastPathSegment(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			if unescaped, err := url.PathUnescape(seg); err == nil {
				return unescaped
			}
			return seg
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// parsePubDate accepts the RSS and Atom date layouts seen in tender feeds.
func parsePubDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		time.RFC822Z,
		time.RFC822,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseISODate reads the date portion of an ISO-8601 timestamp.
func parseISODate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 10 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw[:10])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var nigerianStates = []string{
	"Akwa Ibom", "Cross River", "Abia", "Adamawa", "Anambra", "Bauchi", "Bayelsa",
	"Benue", "Borno", "Delta", "Ebonyi", "Edo", "Ekiti", "Enugu", "Gombe", "Imo",
	"Jigawa", "Kaduna", "Kano", "Katsina", "Kebbi", "Kogi", "Kwara", "Lagos",
	"Nasarawa", "Niger", "Ogun", "Ondo", "Osun", "Oyo", "Plateau", "Rivers",
	"Sokoto", "Taraba", "Yobe", "Zamfara",
}

var (
	statePattern = regexp.MustCompile(`\b(` + strings.Join(nigerianStates, "|") + `)\s+State\b`)
	fctPattern   = regexp.MustCompile(`\b(Abuja|FCT|Federal Capital Territory)\b`)
)

const defaultLocation = "Nigeria"

// detectLocation finds a state reference in tender text.
func detectLocation(texts ...string) string {
	for _, text := range texts {
		if m := statePattern.FindStringSubmatch(text); m != nil {
			return m[1] + " State"
		}
	}
	for _, text := range texts {
		if fctPattern.MatchString(text) {
			return "Abuja, FCT"
		}
	}
	return defaultLocation
}
