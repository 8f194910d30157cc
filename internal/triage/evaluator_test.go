package triage

import (
	"reflect"
	"strings"
	"testing"
)

func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64   { return &v }
func tempC(v float64) *Temperature  { return &Temperature{Value: v, Unit: UnitCelsius} }
func tempF(v float64) *Temperature  { return &Temperature{Value: v, Unit: UnitFahrenheit} }

// TestEvaluateEmptyVitals verifies that a completely empty record still
// evaluates without panicking and reports what was not collected.
func TestEvaluateEmptyVitals(t *testing.T) {
	eval := Evaluate(VitalsInput{})

	if eval.IsComplex {
		t.Error("Empty vitals should not be complex")
	}
	if eval.NeedsAgentAssistance {
		t.Error("Empty vitals should not need agent assistance")
	}

	foundNotCollected := false
	for _, f := range eval.Factors {
		if strings.Contains(f, "not collected") {
			foundNotCollected = true
			break
		}
	}
	if !foundNotCollected {
		t.Errorf("Expected at least one 'not collected' factor, got %v", eval.Factors)
	}
}

// TestEvaluateDeterministic verifies referential transparency.
func TestEvaluateDeterministic(t *testing.T) {
	in := VitalsInput{
		Age:               intPtr(70),
		Temperature:       tempC(38.4),
		BloodPressure:     &BloodPressure{Systolic: intPtr(150), Diastolic: intPtr(95)},
		StatusDescription: "headache, nausea and dizziness with diabetes",
	}

	first := Evaluate(in)
	second := Evaluate(in)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Evaluate is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestEvaluateComplexityFactors(t *testing.T) {
	tests := []struct {
		name          string
		input         VitalsInput
		wantComplex   bool
		wantFactorSub string
	}{
		{
			name:          "long symptom description",
			input:         VitalsInput{StatusDescription: strings.Repeat("severe abdominal discomfort ", 5)},
			wantComplex:   true,
			wantFactorSub: "symptom description",
		},
		{
			name:          "multiple symptom phrases",
			input:         VitalsInput{StatusDescription: "headache, fever and sore throat"},
			wantComplex:   true,
			wantFactorSub: "symptom description",
		},
		{
			name:          "fever in celsius",
			input:         VitalsInput{Temperature: tempC(38.5)},
			wantComplex:   true,
			wantFactorSub: "fever",
		},
		{
			name:          "fever in fahrenheit",
			input:         VitalsInput{Temperature: tempF(101.5)},
			wantComplex:   true,
			wantFactorSub: "fever",
		},
		{
			name:          "normal temperature",
			input:         VitalsInput{Temperature: tempC(36.8)},
			wantComplex:   false,
			wantFactorSub: "",
		},
		{
			name: "elevated systolic",
			input: VitalsInput{
				BloodPressure: &BloodPressure{Systolic: intPtr(150), Diastolic: intPtr(80)},
			},
			wantComplex:   true,
			wantFactorSub: "elevated blood pressure",
		},
		{
			name: "elevated diastolic",
			input: VitalsInput{
				BloodPressure: &BloodPressure{Systolic: intPtr(120), Diastolic: intPtr(95)},
			},
			wantComplex:   true,
			wantFactorSub: "elevated blood pressure",
		},
		{
			name:          "chronic condition keyword",
			input:         VitalsInput{StatusDescription: "mild cough, history of asthma"},
			wantComplex:   true,
			wantFactorSub: "chronic condition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := Evaluate(tt.input)

			if eval.IsComplex != tt.wantComplex {
				t.Errorf("IsComplex = %v, want %v (factors: %v)", eval.IsComplex, tt.wantComplex, eval.Factors)
			}

			if tt.wantFactorSub != "" {
				found := false
				for _, f := range eval.Factors {
					if strings.Contains(f, tt.wantFactorSub) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Expected factor containing %q, got %v", tt.wantFactorSub, eval.Factors)
				}
			}
		})
	}
}

// TestPartialBloodPressureSymmetric verifies that a one-sided reading is
// always "not fully collected", regardless of which side is missing.
func TestPartialBloodPressureSymmetric(t *testing.T) {
	tests := []struct {
		name string
		bp   *BloodPressure
	}{
		{"missing diastolic", &BloodPressure{Systolic: intPtr(190)}},
		{"missing systolic", &BloodPressure{Diastolic: intPtr(130)}},
		{"zero systolic", &BloodPressure{Systolic: intPtr(0), Diastolic: intPtr(80)}},
		{"negative diastolic", &BloodPressure{Systolic: intPtr(120), Diastolic: intPtr(-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := Evaluate(VitalsInput{BloodPressure: tt.bp})

			found := false
			for _, f := range eval.Factors {
				if strings.Contains(f, "blood pressure not fully collected") {
					found = true
				}
				if strings.Contains(f, "elevated blood pressure") {
					t.Errorf("Partial reading must not be compared numerically, got factor %q", f)
				}
			}
			if !found {
				t.Errorf("Expected 'not fully collected' factor, got %v", eval.Factors)
			}
			if eval.IsComplex {
				t.Error("Partial reading alone should not set IsComplex")
			}
		})
	}
}

// TestImplausibleReadingsTreatedAsMissing verifies readings outside
// physiological ranges are recorded as gaps, never scored as fever or
// elevated pressure.
func TestImplausibleReadingsTreatedAsMissing(t *testing.T) {
	t.Run("temperature", func(t *testing.T) {
		eval := Evaluate(VitalsInput{Temperature: tempC(120)})

		if eval.IsComplex {
			t.Error("Implausible temperature must not score as fever")
		}
		found := false
		for _, f := range eval.Factors {
			if strings.Contains(f, "implausible temperature") {
				found = true
			}
			if strings.Contains(f, "fever") {
				t.Errorf("Implausible reading compared numerically, got factor %q", f)
			}
		}
		if !found {
			t.Errorf("Expected an implausible-temperature factor, got %v", eval.Factors)
		}
	})

	t.Run("blood pressure", func(t *testing.T) {
		eval := Evaluate(VitalsInput{
			BloodPressure: &BloodPressure{Systolic: intPtr(1200), Diastolic: intPtr(80)},
		})

		if eval.IsComplex {
			t.Error("Implausible pressure must not score as elevated")
		}
		for _, f := range eval.Factors {
			if strings.Contains(f, "elevated blood pressure") {
				t.Errorf("Implausible reading compared numerically, got factor %q", f)
			}
		}
	})
}

// TestAgeExtremesAreSupporting verifies age extremes are recorded but
// never the sole complexity trigger.
func TestAgeExtremesAreSupporting(t *testing.T) {
	tests := []struct {
		name      string
		age       int
		factorSub string
	}{
		{"pediatric", 5, "pediatric age"},
		{"geriatric", 80, "geriatric age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Full vitals, normal values: age extreme alone.
			eval := Evaluate(VitalsInput{
				Age:               intPtr(tt.age),
				Temperature:       tempC(36.9),
				WeightKg:          floatPtr(60),
				BloodPressure:     &BloodPressure{Systolic: intPtr(115), Diastolic: intPtr(75)},
				StatusDescription: "mild cough",
			})

			if eval.IsComplex {
				t.Error("Age extreme alone should not set IsComplex")
			}
			if eval.NeedsAgentAssistance {
				t.Error("Age extreme with complete vitals should not need assistance")
			}

			found := false
			for _, f := range eval.Factors {
				if strings.Contains(f, tt.factorSub) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Expected factor containing %q, got %v", tt.factorSub, eval.Factors)
			}
		})
	}
}

// TestAgeExtremeWithMissingVitalsNeedsAgent covers the guided-collection
// path: an age-extreme patient with vitals gaps gets agent assistance.
func TestAgeExtremeWithMissingVitalsNeedsAgent(t *testing.T) {
	eval := Evaluate(VitalsInput{
		Age:               intPtr(3),
		StatusDescription: "mild cough",
	})

	if eval.IsComplex {
		t.Error("Missing vitals should not set IsComplex")
	}
	if !eval.NeedsAgentAssistance {
		t.Error("Pediatric patient with missing vitals should need agent assistance")
	}
}
