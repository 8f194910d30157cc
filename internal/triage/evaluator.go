package triage

import (
	"fmt"
	"strings"
)

// Evaluation is the complexity score for a vitals record.
type Evaluation struct {
	IsComplex            bool     `json:"is_complex"`
	NeedsAgentAssistance bool     `json:"needs_agent_assistance"`
	Factors              []string `json:"factors"`
}

// chronicKeywords flag a presentation as complex when they appear in the
// free-text status description.
var chronicKeywords = []string{
	"diabetes",
	"hypertension",
	"asthma",
	"copd",
	"heart disease",
	"heart failure",
	"kidney disease",
	"liver disease",
	"cancer",
	"epilepsy",
	"immunocompromised",
}

// Evaluate scores how complex a patient presentation is. All rules are
// additive; any true complexity factor sets IsComplex. Absent vitals are
// recorded as "not collected" factors and excluded from numeric
// comparisons, so a fully empty record returns a valid, non-complex
// result rather than an error.
func Evaluate(in VitalsInput) Evaluation {
	var (
		factors    []string
		complex    bool
		ageExtreme bool
		missing    int
	)

	// Free-text symptom description.
	desc := strings.TrimSpace(in.StatusDescription)
	if desc == "" {
		factors = append(factors, "status description not collected")
		missing++
	} else if len(desc) > LongDescriptionLen || symptomPhraseCount(desc) >= MultiSymptomCount {
		factors = append(factors, "multiple or long symptom description")
		complex = true
	}

	// Temperature. The emergency ceiling is the router's concern; the
	// evaluator only flags fever-range complexity.
	if in.Temperature == nil {
		factors = append(factors, "temperature not collected")
		missing++
	} else if !in.Temperature.Plausible() {
		factors = append(factors, fmt.Sprintf("implausible temperature reading (%.1fC) discarded", in.Temperature.Celsius()))
		missing++
	} else if c := in.Temperature.Celsius(); c >= FeverThresholdC {
		factors = append(factors, fmt.Sprintf("fever (%.1fC)", c))
		complex = true
	}

	// Blood pressure. A partial reading is treated as missing, not
	// assumed, symmetric in which side is absent.
	switch {
	case in.BloodPressure == nil || (in.BloodPressure.Systolic == nil && in.BloodPressure.Diastolic == nil):
		factors = append(factors, "blood pressure not collected")
		missing++
	case !in.BloodPressure.Complete():
		factors = append(factors, "blood pressure not fully collected")
		missing++
	case *in.BloodPressure.Systolic >= HighSystolic || *in.BloodPressure.Diastolic >= HighDiastolic:
		factors = append(factors, fmt.Sprintf("elevated blood pressure (%d/%d)",
			*in.BloodPressure.Systolic, *in.BloodPressure.Diastolic))
		complex = true
	}

	if in.WeightKg == nil {
		factors = append(factors, "weight not collected")
		missing++
	}

	// Chronic condition keywords.
	lower := strings.ToLower(desc)
	for _, kw := range chronicKeywords {
		if strings.Contains(lower, kw) {
			factors = append(factors, "chronic condition mentioned: "+kw)
			complex = true
		}
	}

	// Age extremes are supporting context, never a sole trigger.
	if in.Age == nil {
		factors = append(factors, "age not collected")
		missing++
	} else if *in.Age < PediatricAgeBelow {
		factors = append(factors, fmt.Sprintf("pediatric age (%d)", *in.Age))
		ageExtreme = true
	} else if *in.Age > GeriatricAgeAbove {
		factors = append(factors, fmt.Sprintf("geriatric age (%d)", *in.Age))
		ageExtreme = true
	}

	// An age-extreme patient with gaps in their vitals needs a guided
	// collection pass even when nothing scored complex on its own.
	needsAgent := complex || (ageExtreme && missing > 0)

	return Evaluation{
		IsComplex:            complex,
		NeedsAgentAssistance: needsAgent,
		Factors:              factors,
	}
}

// symptomPhraseCount counts comma/conjunction-separated symptom phrases.
func symptomPhraseCount(desc string) int {
	normalized := strings.ToLower(desc)
	normalized = strings.ReplaceAll(normalized, " and ", ",")
	normalized = strings.ReplaceAll(normalized, ";", ",")

	count := 0
	for _, part := range strings.Split(normalized, ",") {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}
