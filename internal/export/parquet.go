package export

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/joelkehle/hcp-insights/internal/insights"
)

// SummaryParquet is the columnar form of a provider summary. Missing dates
// are stored as empty strings.
type SummaryParquet struct {
	HCPID            string   `parquet:"hcp_id"`
	Specialty        string   `parquet:"hcp_specialty"`
	SiteOfCare       string   `parquet:"site_of_care"`
	TA               string   `parquet:"ta"`
	Patients         int32    `parquet:"patients"`
	RecentPatients   int32    `parquet:"recent_patients"`
	UpcomingPatients int32    `parquet:"upcoming_patients"`
	NewPatientShare  float64  `parquet:"new_patient_share"`
	TopDrug          string   `parquet:"top_drug"`
	TopDrugCount     int32    `parquet:"top_drug_count"`
	DrugClasses      []string `parquet:"drug_classes,list"`
	LastSeenMax      string   `parquet:"last_seen_max"`
	NextApptMin      string   `parquet:"next_appt_min"`
	PaidAmountSum    float64  `parquet:"paid_amount_sum"`
}

func toParquet(s insights.ProviderSummary) SummaryParquet {
	rec := SummaryParquet{
		HCPID:            s.HCPID,
		Specialty:        s.Specialty,
		SiteOfCare:       s.SiteOfCare,
		TA:               s.TA,
		Patients:         int32(s.Patients),
		RecentPatients:   int32(s.RecentPatients),
		UpcomingPatients: int32(s.UpcomingPatients),
		NewPatientShare:  s.NewPatientShare,
		PaidAmountSum:    s.PaidAmountSum,
	}
	if s.TopDrugByCount != nil {
		rec.TopDrug = s.TopDrugByCount.DrugName
		rec.TopDrugCount = int32(s.TopDrugByCount.Count)
	}
	if s.LastSeenMax != nil {
		rec.LastSeenMax = FormatDate(s.LastSeenMax)
	}
	if s.NextApptMin != nil {
		rec.NextApptMin = FormatDate(s.NextApptMin)
	}
	for class := range s.DrugClassMix {
		rec.DrugClasses = append(rec.DrugClasses, class)
	}
	sort.Strings(rec.DrugClasses)
	return rec
}

// WriteParquet writes summaries as a snappy-compressed Parquet file.
func WriteParquet(w io.Writer, summaries []insights.ProviderSummary) error {
	pw := parquet.NewGenericWriter[SummaryParquet](w,
		parquet.Compression(&parquet.Snappy),
	)
	records := make([]SummaryParquet, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, toParquet(s))
	}
	if _, err := pw.Write(records); err != nil {
		_ = pw.Close()
		return fmt.Errorf("write parquet records: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// WriteParquetFile creates path and writes summaries to it.
func WriteParquetFile(path string, summaries []insights.ProviderSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	if err := WriteParquet(f, summaries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
