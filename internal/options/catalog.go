// Package options resolves the company and product choices offered to a
// user from the loaded claims plus a curated manufacturer catalog.
package options

import (
	"sort"
	"strings"

	"github.com/joelkehle/hcp-insights/internal/claims"
)

// curatedCatalog lists well-known oncology manufacturers and their brands.
// It is never mutated; BuildCompanyProductMap copies it into fresh sets.
var curatedCatalog = []struct {
	company  string
	products []string
}{
	{"Merck", []string{"Keytruda"}},
	{"Bristol Myers Squibb", []string{"Opdivo", "Opdualag", "Yervoy", "Abraxane"}},
	{"Roche", []string{"Tecentriq", "Avastin"}},
	{"AstraZeneca", []string{"Imfinzi", "Tagrisso", "Enhertu"}},
	{"Novartis", []string{"Tafinlar", "Mekinist", "Kisqali"}},
	{"Pfizer", []string{"Ibrance", "Lorbrena"}},
	{"Eli Lilly", []string{"Verzenio", "Retevmo"}},
	{"Amgen", []string{"Lumakras"}},
	{"Bayer", []string{"Vitrakvi"}},
	{"Takeda", []string{"Alunbrig"}},
	{"Jansen", []string{"Rybrevant"}},
	{"GSK", []string{"Jemperli"}},
	{"AbbVie", nil},
}

// CompanyProductMap maps a company name to the set of its product names.
type CompanyProductMap map[string]map[string]struct{}

// Products returns the sorted products known for company.
func (m CompanyProductMap) Products(company string) []string {
	return sortedKeys(m[company])
}

// Companies returns every company in the map, sorted.
func (m CompanyProductMap) Companies() []string {
	out := make([]string, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (m CompanyProductMap) add(company, product string) {
	set, ok := m[company]
	if !ok {
		set = map[string]struct{}{}
		m[company] = set
	}
	if product != "" {
		set[product] = struct{}{}
	}
}

// BuildCompanyProductMap merges the curated catalog with company/product
// pairs observed in rows. product falls back to drug_name. Blank names are
// never stored.
func BuildCompanyProductMap(rows []claims.Row) CompanyProductMap {
	m := CompanyProductMap{}
	for _, entry := range curatedCatalog {
		m.add(entry.company, "")
		for _, p := range entry.products {
			m.add(entry.company, p)
		}
	}
	for _, r := range rows {
		company := r.Trimmed(claims.FieldCompany)
		product := rowProduct(r)
		if company == "" {
			continue
		}
		m.add(company, product)
	}
	return m
}

// ProductOptions lists the products selectable for company. A blank company
// yields every known product: the catalog, row companies and every product or
// drug_name seen in rows. An unknown company yields an empty list.
func ProductOptions(rows []claims.Row, company string) []string {
	m := BuildCompanyProductMap(rows)
	company = strings.TrimSpace(company)
	if company != "" {
		return m.Products(company)
	}
	all := map[string]struct{}{}
	for _, set := range m {
		for p := range set {
			all[p] = struct{}{}
		}
	}
	for _, r := range rows {
		if p := rowProduct(r); p != "" {
			all[p] = struct{}{}
		}
	}
	return sortedKeys(all)
}

// SanitizeProductSelection returns product when it is one of the options for
// company and "" otherwise.
func SanitizeProductSelection(rows []claims.Row, company, product string) string {
	if product == "" {
		return ""
	}
	for _, p := range ProductOptions(rows, company) {
		if p == product {
			return product
		}
	}
	return ""
}

// Companies lists observed and curated company names, sorted.
func Companies(rows []claims.Row) []string {
	return BuildCompanyProductMap(rows).Companies()
}

// TherapeuticAreas lists the distinct non-blank ta values, sorted.
func TherapeuticAreas(rows []claims.Row) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		if ta := r.Trimmed(claims.FieldTA); ta != "" {
			seen[ta] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func rowProduct(r claims.Row) string {
	if p := r.Trimmed(claims.FieldProduct); p != "" {
		return p
	}
	return r.Trimmed(claims.FieldDrugName)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
