package claims

import (
	"strings"
	"testing"
)

func TestParseCSVNormalizesHeaders(t *testing.T) {
	in := "HCP ID, Drug  Name ,TA\nH1,Pembrolizumab,Oncology:NSCLC\n\nH2,Trastuzumab\n"
	rows, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Get(FieldHCPID) != "H1" || rows[0].Get(FieldDrugName) != "Pembrolizumab" {
		t.Fatalf("unexpected first row: %#v", rows[0])
	}
	if got := rows[1].Get(FieldTA); got != "" {
		t.Fatalf("short record should pad with blanks, got %q", got)
	}
}

func TestParseCSVEmptyInput(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestNormalizeHeader(t *testing.T) {
	if got := NormalizeHeader("\ufeffNew Patient\tFlag "); got != "new_patient_flag" {
		t.Fatalf("got %q", got)
	}
}

func TestRowOrUnknown(t *testing.T) {
	r := Row{FieldDrugName: "  "}
	if got := r.OrUnknown(FieldDrugName); got != Unknown {
		t.Fatalf("got %q", got)
	}
	if got := r.OrUnknown(FieldHCPID); got != Unknown {
		t.Fatalf("got %q", got)
	}
}
