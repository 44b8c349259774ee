// Package recommend produces next-best-action talking points for a provider,
// either from a text-generation backend or from a deterministic rule set.
package recommend

import (
	"fmt"
	"strings"

	"github.com/joelkehle/hcp-insights/internal/insights"
)

const (
	defaultBrand   = "our product"
	defaultCompany = "our company"

	classImmunotherapy = "Immunotherapy"
	classChemotherapy  = "Chemotherapy"

	newPatientShareThreshold = 0.3
)

func brandOrDefault(product string) string {
	if p := strings.TrimSpace(product); p != "" {
		return p
	}
	return defaultBrand
}

func companyOrDefault(company string) string {
	if c := strings.TrimSpace(company); c != "" {
		return c
	}
	return defaultCompany
}

// Fallback builds the rule-based talking points for s. The result is never
// empty and depends only on its arguments.
func Fallback(s insights.ProviderSummary, company, product string) []string {
	brand := brandOrDefault(product)
	co := companyOrDefault(company)
	hasIO := s.DrugClassMix[classImmunotherapy] > 0
	hasChemo := s.DrugClassMix[classChemotherapy] > 0

	tips := []string{}
	if s.NewPatientShare >= newPatientShareThreshold {
		tips = append(tips, fmt.Sprintf("Highlight %s first-line evidence for newly diagnosed patients; consider starter kits and quick-start forms.", brand))
	}
	switch {
	case hasIO && hasChemo:
		tips = append(tips, fmt.Sprintf("Position %s combination data and safety profile vs monotherapy in ≥1L settings.", brand))
	case hasIO:
		tips = append(tips, fmt.Sprintf("Reinforce %s persistence + real-world outcomes for their patient mix.", brand))
	case hasChemo:
		tips = append(tips, fmt.Sprintf("Introduce latest data on moving chemo-reliant patients to targeted/IO regimens with %s where appropriate.", brand))
	}
	if s.TopDrugByCount != nil && s.TopDrugByCount.DrugName != "" {
		tips = append(tips, fmt.Sprintf("Acknowledge recent use of %s; contrast %s label/indications in eligible subgroups.", s.TopDrugByCount.DrugName, brand))
	}
	if s.UpcomingPatients > 0 {
		tips = append(tips, "Schedule a 10-minute touchpoint 24–72h before the next visit window with a concise, two-slide leave-behind.")
	}
	tips = append(tips, fmt.Sprintf("Close with a clear ask: 2 trial patients on %s this month — %s can support access & prior-auth.", brand, co))
	return tips
}
