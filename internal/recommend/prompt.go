package recommend

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/joelkehle/hcp-insights/internal/insights"
)

const talkingPointsSystemPrompt = "You are a medical sales enablement assistant. Generate 5-8 concise, compliant, and professional talking points for a pharmaceutical sales rep. Do not include any introductory phrases like 'Here are...' or use markdown formatting like asterisks."

var bulletSplitRe = regexp.MustCompile(`\n+|•|\d+\.|- `)

// FormatForPrompt renders s as the single-line context given to a
// text-generation backend.
func FormatForPrompt(s insights.ProviderSummary) string {
	topDrug := "—"
	if s.TopDrugByCount != nil && s.TopDrugByCount.DrugName != "" {
		topDrug = s.TopDrugByCount.DrugName
	}
	classes := make([]string, 0, len(s.DrugClassMix))
	for k := range s.DrugClassMix {
		classes = append(classes, k)
	}
	sort.Strings(classes)
	mix := make([]string, 0, len(classes))
	for _, k := range classes {
		mix = append(mix, fmt.Sprintf("%s:%d", k, s.DrugClassMix[k]))
	}
	return fmt.Sprintf("HCP %s | Specialty: %s | Site: %s | TA: %s | Patients: %d (recent %d, upcoming %d) | New share: %d%% | Top drug: %s | Mix: %s",
		s.HCPID, s.Specialty, s.SiteOfCare, s.TA,
		s.Patients, s.RecentPatients, s.UpcomingPatients,
		int(math.Round(s.NewPatientShare*100)), topDrug, strings.Join(mix, ", "))
}

func buildTalkingPointsPrompt(s insights.ProviderSummary, company, product string) string {
	brand := brandOrDefault(product)
	return fmt.Sprintf("Context: %s\nCompany: %s\nProduct: %s\nTask: Write hyper-personalised pre-call talking points to detail %s to this HCP before the next patient visit. Include line-of-therapy considerations and access reminders.",
		FormatForPrompt(s), companyOrDefault(company), brand, brand)
}

// SplitTalkingPoints breaks generated text into bullet items. Items are split
// on line breaks, "•", numbered markers and "- ", trimmed and stripped of
// bold markers. Text that yields no items is returned whole.
func SplitTalkingPoints(text string) []string {
	out := []string{}
	for _, part := range bulletSplitRe.Split(text, -1) {
		part = strings.ReplaceAll(strings.TrimSpace(part), "**", "")
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 && strings.TrimSpace(text) != "" {
		return []string{text}
	}
	return out
}
