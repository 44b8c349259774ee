// Package export renders provider summaries for download and reporting.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/joelkehle/hcp-insights/internal/insights"
)

// Columns is the header row of the delimited export.
var Columns = []string{
	"hcp_id", "hcp_specialty", "site_of_care", "ta",
	"patients", "recentPatients", "upcomingPatients", "newPatientShare",
	"topDrug", "lastSeenMax", "nextApptMin", "paidAmountSum",
}

// MissingDate stands in for an absent date.
const MissingDate = "—"

var fieldReplacer = strings.NewReplacer(",", ";", "\r\n", " ", "\n", " ", "\r", " ")

// CleanField makes free text safe for the comma-delimited export.
func CleanField(s string) string {
	return fieldReplacer.Replace(s)
}

// FormatDate returns YYYY-MM-DD, or MissingDate when d is nil.
func FormatDate(d *time.Time) string {
	if d == nil {
		return MissingDate
	}
	return d.UTC().Format("2006-01-02")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Record flattens s into one export row in Columns order.
func Record(s insights.ProviderSummary) []string {
	topDrug := ""
	if s.TopDrugByCount != nil {
		topDrug = s.TopDrugByCount.DrugName
	}
	return []string{
		CleanField(s.HCPID),
		CleanField(s.Specialty),
		CleanField(s.SiteOfCare),
		CleanField(s.TA),
		strconv.Itoa(s.Patients),
		strconv.Itoa(s.RecentPatients),
		strconv.Itoa(s.UpcomingPatients),
		strconv.FormatFloat(s.NewPatientShare, 'f', 2, 64),
		CleanField(topDrug),
		FormatDate(s.LastSeenMax),
		FormatDate(s.NextApptMin),
		formatAmount(s.PaidAmountSum),
	}
}

// WriteCSV writes the header and one line per summary, in the given order.
// Fields are joined with bare commas; free text is cleaned with CleanField.
func WriteCSV(w io.Writer, summaries []insights.ProviderSummary) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Columns, ",")); err != nil {
		return err
	}
	for _, s := range summaries {
		if _, err := bw.WriteString("\n" + strings.Join(Record(s), ",")); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// FileName returns the download name for an export produced at now.
func FileName(now time.Time, ext string) string {
	return fmt.Sprintf("hcp_insights_%d.%s", now.UnixMilli(), ext)
}
