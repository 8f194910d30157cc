// Package triage scores the complexity of a patient presentation from
// vitals and free text, and routes it to a care pathway. Evaluation and
// routing are pure functions: identical input always yields identical
// output, so results are safe to cache and trivially testable.
package triage

// TemperatureUnit is the unit a temperature reading was taken in.
type TemperatureUnit string

const (
	UnitCelsius    TemperatureUnit = "C"
	UnitFahrenheit TemperatureUnit = "F"
)

// Temperature is a single reading with its unit.
type Temperature struct {
	Value float64         `json:"value"`
	Unit  TemperatureUnit `json:"unit"`
}

// Celsius normalizes the reading to degrees Celsius.
func (t Temperature) Celsius() float64 {
	if t.Unit == UnitFahrenheit {
		return (t.Value - 32) * 5 / 9
	}
	return t.Value
}

// Plausible reports whether the normalized reading falls in a range a
// live patient could present with.
func (t Temperature) Plausible() bool {
	c := t.Celsius()
	return c >= MinPlausibleTempC && c <= MaxPlausibleTempC
}

// BloodPressure is a reading where each side is independently optional.
// A reading with exactly one side present is treated as not collected,
// never as a half-reading.
type BloodPressure struct {
	Systolic  *int `json:"systolic,omitempty"`
	Diastolic *int `json:"diastolic,omitempty"`
}

// Complete reports whether both sides are present and physiological.
func (bp *BloodPressure) Complete() bool {
	if bp == nil || bp.Systolic == nil || bp.Diastolic == nil {
		return false
	}
	// Non-physiological values count as missing rather than guessing
	// clinical intent.
	return *bp.Systolic > 0 && *bp.Systolic <= MaxPlausibleSystolic &&
		*bp.Diastolic > 0 && *bp.Diastolic <= MaxPlausibleDiastolic
}

// VitalsInput is the raw vitals record consumed by Evaluate and Decide.
// Every field except Age and Gender is optional; a completely empty
// record still evaluates without error.
type VitalsInput struct {
	Age               *int           `json:"age,omitempty"`
	Gender            string         `json:"gender,omitempty"`
	Temperature       *Temperature   `json:"temperature,omitempty"`
	WeightKg          *float64       `json:"weight_kg,omitempty"`
	BloodPressure     *BloodPressure `json:"blood_pressure,omitempty"`
	StatusDescription string         `json:"status_description,omitempty"`
}

// Clinical thresholds. Complexity thresholds belong to the evaluator;
// emergency thresholds belong to the router and always win.
const (
	FeverThresholdC     = 38.0
	EmergencyTempC      = 40.0
	HighSystolic        = 140
	HighDiastolic       = 90
	EmergencySystolic   = 180
	EmergencyDiastolic  = 120
	LongDescriptionLen  = 100
	MultiSymptomCount   = 3
	PediatricAgeBelow   = 12
	GeriatricAgeAbove   = 65
)

// Plausibility bounds. Readings outside these ranges are treated as not
// collected and never compared against the thresholds above.
const (
	MaxPlausibleSystolic  = 300
	MaxPlausibleDiastolic = 200
	MinPlausibleTempC     = 25.0
	MaxPlausibleTempC     = 45.0
)
