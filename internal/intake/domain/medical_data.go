package domain

// MedicalData is the structured medical record accumulated over the
// conversation. Every field is optional; the merge rule is that new
// non-null values override and nulls never erase previously-known
// values.
type MedicalData struct {
	ChiefComplaint          *string `json:"chief_complaint,omitempty"`
	HistoryOfPresentIllness *string `json:"history_of_present_illness,omitempty"`
	Medications             *string `json:"medications,omitempty"`
	Allergies               *string `json:"allergies,omitempty"`
	PastMedicalHistory      *string `json:"past_medical_history,omitempty"`
	FamilySocialHistory     *string `json:"family_social_history,omitempty"`
	ReviewOfSystems         *string `json:"review_of_systems,omitempty"`
	RecordsChecked          bool    `json:"records_checked"`
	HistoryChecked          bool    `json:"history_checked"`
}

// textFields enumerates the free-text fields for merging and scoring.
func (md *MedicalData) textFields() []**string {
	return []**string{
		&md.ChiefComplaint,
		&md.HistoryOfPresentIllness,
		&md.Medications,
		&md.Allergies,
		&md.PastMedicalHistory,
		&md.FamilySocialHistory,
		&md.ReviewOfSystems,
	}
}

// Merge folds newly-extracted fields into the record. Non-null, non-empty
// values override; nulls and empty strings never erase known data; the
// checked flags only ever move forward.
func (md *MedicalData) Merge(update MedicalData) {
	dst := md.textFields()
	src := update.textFields()
	for i := range dst {
		if v := *src[i]; v != nil && *v != "" {
			*dst[i] = v
		}
	}

	if update.RecordsChecked {
		md.RecordsChecked = true
	}
	if update.HistoryChecked {
		md.HistoryChecked = true
	}
}

// Per-field completeness weights. Seven text fields at 12 points plus two
// checked flags at 8 sum to exactly 100.
const (
	textFieldWeight = 12
	flagWeight      = 8
)

// Completeness scores the record 0-100 from populated-field count. The
// score is a monotone function of the merge rule: fields are never
// unset, so it never decreases in normal flow.
func (md *MedicalData) Completeness() int {
	score := 0
	for _, f := range md.textFields() {
		if *f != nil && **f != "" {
			score += textFieldWeight
		}
	}
	if md.RecordsChecked {
		score += flagWeight
	}
	if md.HistoryChecked {
		score += flagWeight
	}
	if score > 100 {
		score = 100
	}
	return score
}

// ClinicalHandover is the SBAR summary produced by the handover
// specialist once the record is complete.
type ClinicalHandover struct {
	Situation      string `json:"situation"`
	Background     string `json:"background"`
	Assessment     string `json:"assessment"`
	Recommendation string `json:"recommendation"`
}

// Differential is one candidate diagnosis in the investigator's
// scratchpad.
type Differential struct {
	Condition  string `json:"condition"`
	Likelihood string `json:"likelihood"` // high, medium, low
	Rationale  string `json:"rationale,omitempty"`
}

// DoctorThought is the differential-diagnosis scratchpad populated by the
// clinical investigator. Cleared on reset.
type DoctorThought struct {
	Differentials []Differential `json:"differentials,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}
