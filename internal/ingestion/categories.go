package ingestion

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Canonical tender categories.
const (
	CategoryConstruction = "Construction"
	CategoryICT          = "ICT"
	CategoryConsultancy  = "Consultancy"
	CategorySupplies     = "Supplies"
	CategoryHealthcare   = "Healthcare"
	CategorySolar        = "Solar & Renewable"
	CategoryServices     = "Services"
	CategoryAgriculture  = "Agriculture"
	CategoryEducation    = "Education"
	CategoryOilGas       = "Oil & Gas"
	CategoryWater        = "Water & Sanitation"
	CategorySecurity     = "Security"
	CategoryTransport    = "Transport & Logistics"
	CategoryGeneral      = "General"
)

const maxCategories = 3

// categoryAliases maps lower-cased feed labels onto the canonical vocabulary.
var categoryAliases = map[string]string{
	"construction":                 CategoryConstruction,
	"construction & engineering":   CategoryConstruction,
	"construction and engineering": CategoryConstruction,
	"building & construction":      CategoryConstruction,
	"building and construction":    CategoryConstruction,
	"civil works":                  CategoryConstruction,
	"civil engineering":            CategoryConstruction,
	"engineering":                  CategoryConstruction,
	"works":                        CategoryConstruction,
	"roads":                        CategoryConstruction,
	"real estate":                  CategoryConstruction,
	"ict":                          CategoryICT,
	"it":                           CategoryICT,
	"information technology":       CategoryICT,
	"ict & telecommunications":     CategoryICT,
	"it & telecoms":                CategoryICT,
	"telecommunications":           CategoryICT,
	"computer":                     CategoryICT,
	"computers & software":         CategoryICT,
	"software":                     CategoryICT,
	"consultancy":                  CategoryConsultancy,
	"consulting":                   CategoryConsultancy,
	"consultancy services":         CategoryConsultancy,
	"consultancy & advisory":       CategoryConsultancy,
	"expression of interest":       CategoryConsultancy,
	"eoi":                          CategoryConsultancy,
	"supplies":                     CategorySupplies,
	"supply":                       CategorySupplies,
	"goods":                        CategorySupplies,
	"goods & supplies":             CategorySupplies,
	"procurement of goods":         CategorySupplies,
	"equipment":                    CategorySupplies,
	"furniture":                    CategorySupplies,
	"health":                       CategoryHealthcare,
	"healthcare":                   CategoryHealthcare,
	"health care":                  CategoryHealthcare,
	"medical":                      CategoryHealthcare,
	"medical & pharmaceutical":     CategoryHealthcare,
	"pharmaceutical":               CategoryHealthcare,
	"pharmaceuticals":              CategoryHealthcare,
	"solar":                        CategorySolar,
	"solar energy":                 CategorySolar,
	"renewable energy":             CategorySolar,
	"energy":                       CategorySolar,
	"power":                        CategorySolar,
	"energy & power":               CategorySolar,
	"services":                     CategoryServices,
	"service":                      CategoryServices,
	"general services":             CategoryServices,
	"cleaning":                     CategoryServices,
	"catering":                     CategoryServices,
	"maintenance":                  CategoryServices,
	"agriculture":                  CategoryAgriculture,
	"agric":                        CategoryAgriculture,
	"agro-allied":                  CategoryAgriculture,
	"education":                    CategoryEducation,
	"training":                     CategoryEducation,
	"oil & gas":                    CategoryOilGas,
	"oil and gas":                  CategoryOilGas,
	"petroleum":                    CategoryOilGas,
	"water":                        CategoryWater,
	"water & sanitation":           CategoryWater,
	"wash":                         CategoryWater,
	"security":                     CategorySecurity,
	"transport":                    CategoryTransport,
	"logistics":                    CategoryTransport,
	"transport & logistics":        CategoryTransport,
	"vehicles":                     CategoryTransport,
	"general":                      CategoryGeneral,
	"uncategorized":                CategoryGeneral,
	"uncategorised":                CategoryGeneral,
	"tenders":                      CategoryGeneral,
	"invitation to tender":         CategoryGeneral,
	"public procurement":           CategoryGeneral,
}

var dateLabel = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

// NormalizeCategory maps a raw feed label onto the canonical vocabulary,
// case-insensitively. Unknown labels pass through, capped in length.
func NormalizeCategory(raw string) string {
	label := collapseWhitespace(html.UnescapeString(raw))
	if label == "" {
		return ""
	}
	if canonical, ok := categoryAliases[strings.ToLower(label)]; ok {
		return canonical
	}
	return truncateRunes(label, maxCategoryLength)
}

// isExcludedLabel reports labels that carry no category information:
// bare dates (they are deadlines) and "N/A".
func isExcludedLabel(raw string) bool {
	label := strings.TrimSpace(raw)
	return label == "" || strings.EqualFold(label, "n/a") || dateLabel.MatchString(label)
}

// normalizeCategories normalizes, deduplicates and caps a label list,
// keeping feed order.
func normalizeCategories(raw []string) []string {
	out := make([]string, 0, maxCategories)
	seen := make(map[string]bool, len(raw))

	for _, label := range raw {
		if isExcludedLabel(label) {
			continue
		}
		category := NormalizeCategory(label)
		key := strings.ToLower(category)
		if category == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, category)
		if len(out) == maxCategories {
			break
		}
	}
	return out
}

type categoryRule struct {
	pattern  *regexp.Regexp
	category string
}

// inferenceRules are checked in order; the first match wins.
var inferenceRules = []categoryRule{
	{regexp.MustCompile(`construct`), CategoryConstruction},
	{regexp.MustCompile(`\bict\b|software`), CategoryICT},
	{regexp.MustCompile(`consult`), CategoryConsultancy},
	{regexp.MustCompile(`health|medical`), CategoryHealthcare},
	{regexp.MustCompile(`supply|supplies|goods`), CategorySupplies},
	{regexp.MustCompile(`service`), CategoryServices},
}

// InferCategory derives a canonical category from free text such as an OCDS
// item classification. It returns General when nothing matches.
func InferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range inferenceRules {
		if rule.pattern.MatchString(lower) {
			return rule.category
		}
	}
	return CategoryGeneral
}
