package claims

import "strings"

// Field names consumed from normalised claim rows.
const (
	FieldHCPID          = "hcp_id"
	FieldSpecialty      = "hcp_specialty"
	FieldSiteOfCare     = "site_of_care"
	FieldTA             = "ta"
	FieldClaimDate      = "claim_date"
	FieldLastSeenDate   = "last_seen_date"
	FieldNextApptDate   = "next_appt_date"
	FieldDrugName       = "drug_name"
	FieldDrugClass      = "drug_class"
	FieldPaidAmount     = "paid_amount"
	FieldNewPatientFlag = "new_patient_flag"
	FieldCompany        = "company"
	FieldProduct        = "product"
)

// Unknown is substituted for a blank provider id, drug name or drug class.
const Unknown = "Unknown"

// Row is one raw claim record keyed by lower_snake_case field name.
// Rows are treated as read-only by every consumer in this module.
type Row map[string]string

// Get returns the value for key, or "" when the field is absent.
func (r Row) Get(key string) string {
	return r[key]
}

// Trimmed returns the whitespace-trimmed value for key.
func (r Row) Trimmed(key string) string {
	return strings.TrimSpace(r[key])
}

// OrUnknown returns the trimmed value for key, or Unknown when blank.
func (r Row) OrUnknown(key string) string {
	if v := r.Trimmed(key); v != "" {
		return v
	}
	return Unknown
}
