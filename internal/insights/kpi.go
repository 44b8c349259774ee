package insights

// KPIs are dashboard-level totals over a set of provider summaries.
type KPIs struct {
	TotalHCPs          int     `json:"totalHcps"`
	TotalPatients      int     `json:"totalPatients"`
	FlaggedHCPs        int     `json:"flaggedHcps"`
	AvgNewPatientShare float64 `json:"newShare"`
}

func ComputeKPIs(summaries []ProviderSummary) KPIs {
	k := KPIs{TotalHCPs: len(summaries)}
	shareSum := 0.0
	for _, s := range summaries {
		k.TotalPatients += s.Patients
		if s.Flagged() {
			k.FlaggedHCPs++
		}
		shareSum += s.NewPatientShare
	}
	if len(summaries) > 0 {
		k.AvgNewPatientShare = shareSum / float64(len(summaries))
	}
	return k
}
