package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bidpilot/tenderfeed/internal/models"
)

// OCDS release package shapes. Every node is optional.
type ocdsPackage struct {
	Releases []json.RawMessage `json:"releases"`
	Records  []struct {
		CompiledRelease json.RawMessage `json:"compiledRelease"`
	} `json:"records"`
}

type ocdsRelease struct {
	OCID     string        `json:"ocid"`
	ID       string        `json:"id"`
	Date     string        `json:"date"`
	Buyer    *ocdsOrgRef   `json:"buyer"`
	Parties  []ocdsParty   `json:"parties"`
	Planning *ocdsPlanning `json:"planning"`
	Tender   *ocdsTender   `json:"tender"`
}

type ocdsOrgRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ocdsParty struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Roles   []string     `json:"roles"`
	Address *ocdsAddress `json:"address"`
}

type ocdsAddress struct {
	Locality string `json:"locality"`
	Region   string `json:"region"`
}

type ocdsPlanning struct {
	Budget *struct {
		Amount *ocdsValue `json:"amount"`
	} `json:"budget"`
}

type ocdsTender struct {
	ID                       string         `json:"id"`
	Title                    string         `json:"title"`
	Description              string         `json:"description"`
	ProcurementMethodDetails string         `json:"procurementMethodDetails"`
	MainProcurementCategory  string         `json:"mainProcurementCategory"`
	Value                    *ocdsValue     `json:"value"`
	TenderPeriod             *ocdsPeriod    `json:"tenderPeriod"`
	Items                    []ocdsItem     `json:"items"`
	Documents                []ocdsDocument `json:"documents"`
	ProcuringEntity          *ocdsOrgRef    `json:"procuringEntity"`
}

type ocdsValue struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

type ocdsPeriod struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ocdsItem struct {
	Description    string `json:"description"`
	Classification *struct {
		Scheme      string `json:"scheme"`
		ID          string `json:"id"`
		Description string `json:"description"`
	} `json:"classification"`
}

type ocdsDocument struct {
	URL string `json:"url"`
}

// OCDSParser extracts tenders from an Open Contracting Data Standard
// release package (or record package with compiled releases).
type OCDSParser struct {
	Source string
	// ListingBaseURL, when set, is joined with the ocid to build the
	// public link of a release.
	ListingBaseURL string
}

// Parse decodes the package and converts each release independently.
func (p *OCDSParser) Parse(body []byte, now time.Time) (ParseResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ParseResult{}, errors.New("ocds: empty document")
	}

	var pkg ocdsPackage
	if err := json.Unmarshal(trimmed, &pkg); err != nil {
		return ParseResult{}, fmt.Errorf("ocds: decode package: %w", err)
	}

	raw := pkg.Releases
	for _, rec := range pkg.Records {
		if len(rec.CompiledRelease) > 0 {
			raw = append(raw, rec.CompiledRelease)
		}
	}

	var result ParseResult
	for i, msg := range raw {
		var rel ocdsRelease
		if err := json.Unmarshal(msg, &rel); err != nil {
			result.Dropped++
			continue
		}
		tender, ok := p.buildTender(rel, i, now)
		if !ok {
			result.Dropped++
			continue
		}
		result.Tenders = append(result.Tenders, tender)
	}
	return result, nil
}

func (p *OCDSParser) buildTender(rel ocdsRelease, index int, now time.Time) (models.Tender, bool) {
	tn := rel.Tender
	if tn == nil {
		return models.Tender{}, false
	}
	title := stripHTML(tn.Title)
	description := stripHTML(tn.Description)
	if title == "" {
		title = truncateRunes(description, 200)
	}
	if title == "" {
		return models.Tender{}, false
	}

	t := newCandidate(p.Source, now)
	t.SourceID = ocdsSourceID(rel, index, now)
	t.Title = title
	t.Organization = ocdsOrganization(rel)
	t.Budget = ocdsBudget(rel)

	categories := ocdsCategories(tn)
	t.Category = categories[0]
	t.Categories = categories

	if tn.TenderPeriod != nil {
		if d, ok := parseISODate(tn.TenderPeriod.EndDate); ok {
			t.Deadline = d
		}
	}
	if t.Deadline.IsZero() {
		t.Deadline = defaultDeadline(now)
	}

	if d, ok := parseISODate(rel.Date); ok {
		t.PublishedAt = d
	} else if tn.TenderPeriod != nil {
		if d, ok := parseISODate(tn.TenderPeriod.StartDate); ok {
			t.PublishedAt = d
		}
	}
	if t.PublishedAt.IsZero() {
		t.PublishedAt = now
	}

	if description != "" {
		t.Description = truncateRunes(description, maxDescriptionLength)
	} else {
		t.Description = synthesizeDescription(t.Organization, categories)
	}
	t.Location = ocdsLocation(rel)
	t.SourceURL = p.listingURL(rel, tn)

	return t, true
}

func ocdsSourceID(rel ocdsRelease, index int, now time.Time) string {
	if id := strings.TrimSpace(rel.OCID); id != "" {
		return id
	}
	if id := strings.TrimSpace(rel.ID); id != "" {
		return id
	}
	return "ocds-" + strconv.FormatInt(now.UnixNano(), 36) + "-" + strconv.Itoa(index)
}

func ocdsOrganization(rel ocdsRelease) string {
	if rel.Buyer != nil && strings.TrimSpace(rel.Buyer.Name) != "" {
		return strings.TrimSpace(rel.Buyer.Name)
	}
	if party := partyWithRole(rel.Parties, "buyer"); party != nil {
		return strings.TrimSpace(party.Name)
	}
	if rel.Tender != nil && rel.Tender.ProcuringEntity != nil && strings.TrimSpace(rel.Tender.ProcuringEntity.Name) != "" {
		return strings.TrimSpace(rel.Tender.ProcuringEntity.Name)
	}
	if party := partyWithRole(rel.Parties, "procuringEntity"); party != nil {
		return strings.TrimSpace(party.Name)
	}
	return defaultOrganization
}

func partyWithRole(parties []ocdsParty, role string) *ocdsParty {
	for i := range parties {
		if strings.TrimSpace(parties[i].Name) == "" {
			continue
		}
		for _, r := range parties[i].Roles {
			if strings.EqualFold(r, role) {
				return &parties[i]
			}
		}
	}
	return nil
}

func ocdsBudget(rel ocdsRelease) int64 {
	if rel.Tender != nil {
		if amount, ok := valueAmount(rel.Tender.Value); ok {
			return amount
		}
	}
	if rel.Planning != nil && rel.Planning.Budget != nil {
		if amount, ok := valueAmount(rel.Planning.Budget.Amount); ok {
			return amount
		}
	}
	return 0
}

func valueAmount(v *ocdsValue) (int64, bool) {
	if v == nil || v.Amount == "" {
		return 0, false
	}
	f, err := v.Amount.Float64()
	if err != nil || f <= 0 || f >= math.MaxInt64 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int64(math.Round(f)), true
}

// ocdsCategories infers the primary category from the first item's
// classification, then the procurement method details, then the main
// procurement category. The result is never empty.
func ocdsCategories(tn *ocdsTender) []string {
	var candidates []string
	if len(tn.Items) > 0 && tn.Items[0].Classification != nil {
		candidates = append(candidates, tn.Items[0].Classification.Description)
	}
	candidates = append(candidates, tn.ProcurementMethodDetails)

	primary := CategoryGeneral
	for _, text := range candidates {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if c := InferCategory(text); c != CategoryGeneral {
			primary = c
			break
		}
	}
	if primary == CategoryGeneral && tn.MainProcurementCategory != "" {
		if c := NormalizeCategory(tn.MainProcurementCategory); c != "" {
			primary = c
		}
	}

	categories := []string{primary}
	for _, item := range tn.Items[min(1, len(tn.Items)):] {
		if len(categories) == maxCategories {
			break
		}
		if item.Classification == nil {
			continue
		}
		c := InferCategory(item.Classification.Description)
		if c == CategoryGeneral || containsFold(categories, c) {
			continue
		}
		categories = append(categories, c)
	}
	return categories
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func ocdsLocation(rel ocdsRelease) string {
	var party *ocdsParty
	if rel.Buyer != nil && rel.Buyer.ID != "" {
		for i := range rel.Parties {
			if rel.Parties[i].ID == rel.Buyer.ID {
				party = &rel.Parties[i]
				break
			}
		}
	}
	if party == nil {
		party = partyWithRole(rel.Parties, "buyer")
	}
	if party != nil && party.Address != nil {
		if region := strings.TrimSpace(party.Address.Region); region != "" {
			return region
		}
		if locality := strings.TrimSpace(party.Address.Locality); locality != "" {
			return locality
		}
	}
	if rel.Tender != nil {
		return detectLocation(rel.Tender.Title, rel.Tender.Description)
	}
	return defaultLocation
}

func (p *OCDSParser) listingURL(rel ocdsRelease, tn *ocdsTender) string {
	if p.ListingBaseURL != "" && rel.OCID != "" {
		return strings.TrimRight(p.ListingBaseURL, "/") + "/" + url.PathEscape(rel.OCID)
	}
	for _, doc := range tn.Documents {
		if isHTTPURL(doc.URL) {
			return doc.URL
		}
	}
	return ""
}
