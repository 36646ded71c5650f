package ingestion

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/bidpilot/tenderfeed/internal/models"
)

const defaultOrganization = "Government Agency"

// rssItem covers RSS 2.0 and RDF items. Namespaced fields match on local
// name so undeclared prefixes still decode.
type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Date        string   `xml:"date"`
	Categories  []string `xml:"category"`
	Description string   `xml:"description"`
	Content     string   `xml:"encoded"`
}

var (
	guidPostID      = regexp.MustCompile(`[?&]p=(\d+)`)
	titleSeparators = regexp.MustCompile(`\s+-\s+|\s*[–—|:]\s*`)
	xmlEncoding     = regexp.MustCompile(`^\s*(?:\x{FEFF})?<\?xml[^>]*encoding\s*=\s*["']([A-Za-z0-9._-]+)["']`)
	feedRoots       = map[string]bool{"rss": true, "rdf": true, "RDF": true, "channel": true, "feed": true, "item": true}
)

// RSSParser extracts tenders from RSS/XML listing feeds.
type RSSParser struct {
	Source string
	// DeadlineFromText makes the parser look for a DD/MM/YYYY closing date
	// in the title and description when the category tags carry none.
	DeadlineFromText bool
}

// Parse decodes every <item> element in the document, in document order.
// Each item is decoded on its own, so a malformed item is dropped without
// losing the items after it.
func (p *RSSParser) Parse(body []byte, now time.Time) (ParseResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return ParseResult{}, errors.New("rss: empty document")
	}
	if err := checkFeedRoot(body); err != nil {
		return ParseResult{}, err
	}

	text, err := toUTF8(body)
	if err != nil {
		return ParseResult{}, err
	}

	spans := itemSpans(text)
	if len(spans) == 0 {
		if err := readAll(newFeedDecoder(body)); err != nil {
			return ParseResult{}, fmt.Errorf("rss: read document: %w", err)
		}
		return ParseResult{}, nil
	}

	var result ParseResult
	for _, span := range spans {
		var item rssItem
		if err := newFeedDecoder(span).Decode(&item); err != nil {
			result.Dropped++
			continue
		}

		tender, ok := p.buildTender(item, now)
		if !ok {
			result.Dropped++
			continue
		}
		result.Tenders = append(result.Tenders, tender)
	}
	return result, nil
}

func newFeedDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// checkFeedRoot rejects documents whose first element is not a feed.
func checkFeedRoot(body []byte) error {
	dec := newFeedDecoder(body)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return errors.New("rss: document has no elements")
		}
		if err != nil {
			return fmt.Errorf("rss: read document: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			if !feedRoots[start.Name.Local] {
				return fmt.Errorf("rss: unexpected root element <%s>", start.Name.Local)
			}
			return nil
		}
	}
}

func readAll(dec *xml.Decoder) error {
	for {
		if _, err := dec.Token(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// toUTF8 transcodes a document that declares a non-UTF-8 encoding, since
// item spans are decoded without the XML declaration.
func toUTF8(body []byte) ([]byte, error) {
	m := xmlEncoding.FindSubmatch(body)
	if m == nil {
		return body, nil
	}
	label := strings.ToLower(string(m[1]))
	if label == "utf-8" || label == "utf8" {
		return body, nil
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rss: encoding %q: %w", label, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rss: transcode %q: %w", label, err)
	}
	return out, nil
}

// itemSpans returns the raw bytes of each <item> element, skipping markup
// inside CDATA sections and comments. An unterminated item runs to the end
// of the document.
func itemSpans(doc []byte) [][]byte {
	var spans [][]byte
	for i := 0; i < len(doc); {
		lt := bytes.IndexByte(doc[i:], '<')
		if lt < 0 {
			break
		}
		i += lt
		if skip := skipOpaque(doc[i:]); skip > 0 {
			i += skip
			continue
		}
		if !isTagNamed(doc[i+1:], "item") {
			i++
			continue
		}

		tagEnd := bytes.IndexByte(doc[i:], '>')
		if tagEnd < 0 {
			spans = append(spans, doc[i:])
			break
		}
		if doc[i+tagEnd-1] == '/' {
			spans = append(spans, doc[i:i+tagEnd+1])
			i += tagEnd + 1
			continue
		}

		end := closingItem(doc, i+tagEnd+1)
		spans = append(spans, doc[i:end])
		i = end
	}
	return spans
}

// closingItem returns the offset just past the </item> that closes an item
// whose content starts at from.
func closingItem(doc []byte, from int) int {
	for j := from; j < len(doc); {
		lt := bytes.IndexByte(doc[j:], '<')
		if lt < 0 {
			break
		}
		j += lt
		if skip := skipOpaque(doc[j:]); skip > 0 {
			j += skip
			continue
		}
		if j+1 < len(doc) && doc[j+1] == '/' && isTagNamed(doc[j+2:], "item") {
			if gt := bytes.IndexByte(doc[j:], '>'); gt >= 0 {
				return j + gt + 1
			}
			break
		}
		j++
	}
	return len(doc)
}

// skipOpaque returns the length of a CDATA section or comment at the start
// of b, or 0.
func skipOpaque(b []byte) int {
	for _, delim := range [][2]string{{"<![CDATA[", "]]>"}, {"<!--", "-->"}} {
		if !bytes.HasPrefix(b, []byte(delim[0])) {
			continue
		}
		if end := bytes.Index(b[len(delim[0]):], []byte(delim[1])); end >= 0 {
			return len(delim[0]) + end + len(delim[1])
		}
		return len(b)
	}
	return 0
}

// isTagNamed reports whether b starts with name, optionally prefixed, and
// followed by the end of the tag name.
func isTagNamed(b []byte, name string) bool {
	if colon := bytes.IndexByte(b, ':'); colon > 0 && colon < 32 && !bytes.ContainsAny(b[:colon], " \t\r\n<>/") {
		b = b[colon+1:]
	}
	if !bytes.HasPrefix(b, []byte(name)) {
		return false
	}
	if len(b) == len(name) {
		return true
	}
	switch b[len(name)] {
	case '>', '/', ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

func (p *RSSParser) buildTender(item rssItem, now time.Time) (models.Tender, bool) {
	title := stripHTML(item.Title)
	if title == "" {
		return models.Tender{}, false
	}

	link := strings.TrimSpace(item.Link)
	guid := strings.TrimSpace(item.GUID)
	if link == "" && isHTTPURL(guid) {
		link = guid
	}

	body := item.Content
	if strings.TrimSpace(stripHTML(body)) == "" {
		body = item.Description
	}
	text := stripHTML(body)

	t := newCandidate(p.Source, now)
	t.SourceID = deriveSourceID(guid, link, title)
	t.Title = title
	t.SourceURL = link
	t.Organization = organizationFromTitle(title)

	categories := normalizeCategories(item.Categories)
	if len(categories) > 0 {
		t.Category = categories[0]
	} else {
		t.Category = CategoryGeneral
	}
	t.Categories = categories

	t.Deadline = p.deadline(item, title, text, now)

	if published, ok := parsePubDate(item.PubDate); ok {
		t.PublishedAt = published
	} else if published, ok := parsePubDate(item.Date); ok {
		t.PublishedAt = published
	} else {
		t.PublishedAt = now
	}

	if text != "" {
		t.Description = truncateRunes(text, maxDescriptionLength)
	} else {
		t.Description = synthesizeDescription(t.Organization, categories)
	}
	t.Location = detectLocation(title, text)

	return t, true
}

func (p *RSSParser) deadline(item rssItem, title, text string, now time.Time) time.Time {
	for _, label := range item.Categories {
		if d, ok := findDMYDate(label); ok {
			return d
		}
	}
	if p.DeadlineFromText {
		if d, ok := findDMYDate(title + " " + text); ok {
			return d
		}
	}
	return defaultDeadline(now)
}

// deriveSourceID prefers a WordPress-style ?p=NNN id from the guid, then
// the last path segment of the link, then a digest of the title.
func deriveSourceID(guid, link, title string) string {
	if m := guidPostID.FindStringSubmatch(guid); m != nil {
		return "post-" + m[1]
	}
	if seg := lastPathSegment(link); seg != "" {
		return seg
	}
	return "title-" + hashString(title)
}

// organizationFromTitle takes the first plausible segment of a
// "Organization - Subject" style title.
func organizationFromTitle(title string) string {
	for _, segment := range titleSeparators.Split(title, -1) {
		segment = strings.TrimSpace(segment)
		if n := len([]rune(segment)); n > 3 && n < 150 {
			return segment
		}
	}
	return defaultOrganization
}

func synthesizeDescription(org string, categories []string) string {
	scope := "general procurement"
	if len(categories) > 0 {
		scope = strings.Join(categories, ", ")
	}
	return fmt.Sprintf("%s has published a tender notice covering %s. See the original listing for eligibility requirements and submission instructions.", org, scope)
}
