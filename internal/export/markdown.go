package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joelkehle/hcp-insights/internal/insights"
)

// ReportInput is everything the Markdown report needs.
type ReportInput struct {
	Title       string
	GeneratedAt time.Time
	Params      insights.Params
	KPIs        insights.KPIs
	Summaries   []insights.ProviderSummary
	// Tips holds talking points keyed by hcp_id. Providers without tips
	// get no talking-point section.
	Tips map[string][]string
	// MaxProviders caps the detail sections; 0 means all.
	MaxProviders int
}

func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// BuildMarkdown renders a targeting report: parameters, KPIs, the ranked
// provider table and per-provider detail.
func BuildMarkdown(in ReportInput) string {
	title := in.Title
	if strings.TrimSpace(title) == "" {
		title = "HCP Targeting Report"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if !in.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated %s\n\n", in.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	}

	b.WriteString("## Parameters\n\n")
	ta := in.Params.TAFilter
	if ta == "" {
		ta = "all"
	}
	fmt.Fprintf(&b, "- Therapeutic area filter: %s\n", ta)
	fmt.Fprintf(&b, "- As of: %s\n", in.Params.Today.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Recent window: %d days\n", in.Params.LookbackDays)
	fmt.Fprintf(&b, "- Upcoming window: %d days\n\n", in.Params.HorizonDays)

	b.WriteString("## Summary\n\n")
	b.WriteString("| HCPs | Patients | Flagged HCPs | Avg new-patient share |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %.0f%% |\n\n", in.KPIs.TotalHCPs, in.KPIs.TotalPatients, in.KPIs.FlaggedHCPs, in.KPIs.AvgNewPatientShare*100)

	if len(in.Summaries) == 0 {
		b.WriteString("_No providers match the current filter._\n")
		return b.String()
	}

	b.WriteString("## Ranked Providers\n\n")
	b.WriteString("| # | HCP | Specialty | Site | Patients | Recent | Upcoming | New share | Top drug | Last seen | Next appt | Paid |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|---|\n")
	for i, s := range in.Summaries {
		top := MissingDate
		if s.TopDrugByCount != nil {
			top = s.TopDrugByCount.DrugName
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %d | %d | %d | %.0f%% | %s | %s | %s | %.2f |\n",
			i+1, mdCell(s.HCPID), mdCell(s.Specialty), mdCell(s.SiteOfCare),
			s.Patients, s.RecentPatients, s.UpcomingPatients, s.NewPatientShare*100,
			mdCell(top), FormatDate(s.LastSeenMax), FormatDate(s.NextApptMin), s.PaidAmountSum)
	}
	b.WriteString("\n")

	detail := in.Summaries
	if in.MaxProviders > 0 && len(detail) > in.MaxProviders {
		detail = detail[:in.MaxProviders]
	}
	for _, s := range detail {
		fmt.Fprintf(&b, "## %s\n\n", mdCell(s.HCPID))
		fmt.Fprintf(&b, "%s at %s, %s.\n\n", orDash(s.Specialty), orDash(s.SiteOfCare), orDash(s.TA))
		if len(s.DrugClassMix) > 0 {
			b.WriteString("**Drug class mix:** ")
			b.WriteString(strings.Join(sortedMix(s.DrugClassMix), ", "))
			b.WriteString("\n\n")
		}
		if tips := in.Tips[s.HCPID]; len(tips) > 0 {
			b.WriteString("**Talking points**\n\n")
			for _, tip := range tips {
				fmt.Fprintf(&b, "- %s\n", tip)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return MissingDate
	}
	return s
}

func sortedMix(mix map[string]int) []string {
	keys := make([]string, 0, len(mix))
	for k := range mix {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s %d", k, mix[k]))
	}
	return out
}
