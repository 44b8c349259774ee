package insights

import "time"

// DrugCount is a drug name with the number of claims it appeared on.
type DrugCount struct {
	DrugName string `json:"drug_name"`
	Count    int    `json:"count"`
}

// ProviderSummary is the derived engagement record for one provider.
type ProviderSummary struct {
	HCPID            string         `json:"hcp_id"`
	Specialty        string         `json:"hcp_specialty"`
	SiteOfCare       string         `json:"site_of_care"`
	TA               string         `json:"ta"`
	Patients         int            `json:"patients"`
	RecentPatients   int            `json:"recentPatients"`
	UpcomingPatients int            `json:"upcomingPatients"`
	NewPatientShare  float64        `json:"newPatientShare"`
	DrugCounts       map[string]int `json:"drugCounts"`
	DrugClassMix     map[string]int `json:"drugClassMix"`
	TopDrugByCount   *DrugCount     `json:"topDrugByCount"`
	LastSeenMax      *time.Time     `json:"lastSeenMax"`
	NextApptMin      *time.Time     `json:"nextApptMin"`
	PaidAmountSum    float64        `json:"paidAmountSum"`
}

// Flagged reports whether the provider has any recent or upcoming activity.
func (s ProviderSummary) Flagged() bool {
	return s.UpcomingPatients > 0 || s.RecentPatients > 0
}

// Params controls a single aggregation run.
type Params struct {
	TAFilter     string    `json:"ta_filter"`
	Today        time.Time `json:"today"`
	LookbackDays int       `json:"lookback_days"`
	HorizonDays  int       `json:"horizon_days"`
}

const (
	DefaultLookbackDays = 30
	DefaultHorizonDays  = 21
)

// DefaultParams returns the dashboard defaults anchored at today.
func DefaultParams(today time.Time) Params {
	return Params{
		Today:        today,
		LookbackDays: DefaultLookbackDays,
		HorizonDays:  DefaultHorizonDays,
	}
}
