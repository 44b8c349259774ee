package insights

import (
	"sort"
	"strings"
	"time"

	"github.com/joelkehle/hcp-insights/internal/claims"
)

type summaryBuilder struct {
	summary  ProviderSummary
	newCount int
	topName  string
	topCount int
}

func newSummaryBuilder(id string, r claims.Row) *summaryBuilder {
	return &summaryBuilder{summary: ProviderSummary{
		HCPID:        id,
		Specialty:    r.Get(claims.FieldSpecialty),
		SiteOfCare:   r.Get(claims.FieldSiteOfCare),
		TA:           r.Get(claims.FieldTA),
		DrugCounts:   map[string]int{},
		DrugClassMix: map[string]int{},
	}}
}

func (b *summaryBuilder) add(r claims.Row, today time.Time, lookbackDays, horizonDays int) {
	s := &b.summary
	s.Patients++

	lastSeenRaw := r.Get(claims.FieldLastSeenDate)
	if strings.TrimSpace(lastSeenRaw) == "" {
		lastSeenRaw = r.Get(claims.FieldClaimDate)
	}
	lastSeen, lastSeenOK := claims.ParseDate(lastSeenRaw)
	if lastSeenOK {
		if d := claims.DaysBetween(today, lastSeen); d >= 0 && d <= lookbackDays {
			s.RecentPatients++
		}
		if s.LastSeenMax == nil || lastSeen.After(*s.LastSeenMax) {
			v := lastSeen
			s.LastSeenMax = &v
		}
	}

	nextAppt, nextApptOK := claims.ParseDate(r.Get(claims.FieldNextApptDate))
	if claims.WithinDays(nextAppt, nextApptOK, today, horizonDays) {
		s.UpcomingPatients++
	}
	if nextApptOK && (s.NextApptMin == nil || nextAppt.Before(*s.NextApptMin)) {
		v := nextAppt
		s.NextApptMin = &v
	}

	s.PaidAmountSum += claims.ToNumber(r.Get(claims.FieldPaidAmount))
	if strings.EqualFold(strings.TrimSpace(r.Get(claims.FieldNewPatientFlag)), "Y") {
		b.newCount++
	}

	drug := r.OrUnknown(claims.FieldDrugName)
	s.DrugCounts[drug]++
	if n := s.DrugCounts[drug]; n > b.topCount {
		b.topName, b.topCount = drug, n
	}
	s.DrugClassMix[r.OrUnknown(claims.FieldDrugClass)]++
}

func (b *summaryBuilder) finalize() ProviderSummary {
	s := b.summary
	if s.Patients > 0 {
		s.NewPatientShare = float64(b.newCount) / float64(s.Patients)
	}
	if b.topCount > 0 {
		s.TopDrugByCount = &DrugCount{DrugName: b.topName, Count: b.topCount}
	}
	return s
}

// Aggregate filters rows by p.TAFilter and folds them into one summary per
// provider, ordered by upcoming then recent patients, both descending.
// Providers that tie on both keep the order in which they were first seen.
func Aggregate(rows []claims.Row, p Params) []ProviderSummary {
	return AggregateFiltered(FilterByTA(rows, p.TAFilter), p.Today, p.LookbackDays, p.HorizonDays)
}

// AggregateFiltered runs the aggregation over rows that are already filtered.
func AggregateFiltered(rows []claims.Row, today time.Time, lookbackDays, horizonDays int) []ProviderSummary {
	today = claims.Day(today)
	builders := map[string]*summaryBuilder{}
	order := []string{}
	for _, r := range rows {
		id := r.OrUnknown(claims.FieldHCPID)
		b, ok := builders[id]
		if !ok {
			b = newSummaryBuilder(id, r)
			builders[id] = b
			order = append(order, id)
		}
		b.add(r, today, lookbackDays, horizonDays)
	}

	out := make([]ProviderSummary, 0, len(order))
	for _, id := range order {
		out = append(out, builders[id].finalize())
	}
	SortSummaries(out)
	return out
}

// SortSummaries orders summaries in place by upcoming then recent patients,
// descending, keeping the existing order among full ties.
func SortSummaries(summaries []ProviderSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.UpcomingPatients != b.UpcomingPatients {
			return a.UpcomingPatients > b.UpcomingPatients
		}
		return a.RecentPatients > b.RecentPatients
	})
}

// Find returns the summary for hcpID.
func Find(summaries []ProviderSummary, hcpID string) (ProviderSummary, bool) {
	for _, s := range summaries {
		if s.HCPID == hcpID {
			return s, true
		}
	}
	return ProviderSummary{}, false
}
