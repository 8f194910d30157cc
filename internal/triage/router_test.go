package triage

import (
	"strings"
	"testing"
)

// TestEmergencyPrecedence verifies that any emergency threshold breach
// yields emergency with confidence 1.0, regardless of which other vitals
// are present or absent.
func TestEmergencyPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		input VitalsInput
	}{
		{
			name:  "critical temperature only",
			input: VitalsInput{Temperature: tempC(40.2)},
		},
		{
			name:  "critical fahrenheit temperature",
			input: VitalsInput{Temperature: tempF(104.5)},
		},
		{
			name: "critical systolic with everything else missing",
			input: VitalsInput{
				BloodPressure: &BloodPressure{Systolic: intPtr(185), Diastolic: intPtr(80)},
			},
		},
		{
			name: "critical diastolic with everything else missing",
			input: VitalsInput{
				BloodPressure: &BloodPressure{Systolic: intPtr(120), Diastolic: intPtr(125)},
			},
		},
		{
			name:  "emergency keyword",
			input: VitalsInput{StatusDescription: "patient is unconscious"},
		},
		{
			name:  "chest pain with breathing difficulty",
			input: VitalsInput{StatusDescription: "chest pain and difficulty breathing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.input, Evaluate(tt.input))

			if d.Route != RouteEmergency {
				t.Errorf("Route = %s, want %s (reason: %s)", d.Route, RouteEmergency, d.Reason)
			}
			if d.Confidence != 1.0 {
				t.Errorf("Confidence = %v, want 1.0", d.Confidence)
			}
			if len(d.Factors) == 0 {
				t.Error("Emergency decision must carry triggering factors")
			}
			if d.Reason == "" {
				t.Error("Decision must carry a human-readable reason")
			}
		})
	}
}

// TestEmergencyIndependentOfComplexity verifies the emergency check does
// not depend on the evaluator's output.
func TestEmergencyIndependentOfComplexity(t *testing.T) {
	in := VitalsInput{Temperature: tempC(41.0)}

	// Feed a deliberately contradictory evaluation.
	d := Decide(in, Evaluation{IsComplex: false, NeedsAgentAssistance: false})

	if d.Route != RouteEmergency {
		t.Errorf("Route = %s, want %s", d.Route, RouteEmergency)
	}
	if d.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", d.Confidence)
	}
}

func TestNonEmergencyRouting(t *testing.T) {
	tests := []struct {
		name      string
		input     VitalsInput
		wantRoute Route
	}{
		{
			name: "complex presentation routes to agent",
			input: VitalsInput{
				Temperature:       tempC(38.6),
				StatusDescription: "fever with history of diabetes",
			},
			wantRoute: RouteAgentAssisted,
		},
		{
			name: "simple presentation routes direct",
			input: VitalsInput{
				Age:               intPtr(30),
				Temperature:       tempC(36.7),
				WeightKg:          floatPtr(72),
				BloodPressure:     &BloodPressure{Systolic: intPtr(118), Diastolic: intPtr(76)},
				StatusDescription: "mild sore throat",
			},
			wantRoute: RouteDirectToDiagnosis,
		},
		{
			name:      "empty vitals route direct",
			input:     VitalsInput{},
			wantRoute: RouteDirectToDiagnosis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.input, Evaluate(tt.input))

			if d.Route != tt.wantRoute {
				t.Errorf("Route = %s, want %s (factors: %v)", d.Route, tt.wantRoute, d.Factors)
			}
			if d.Route == RouteEmergency {
				t.Error("Unexpected emergency route")
			}
		})
	}
}

// TestEmptyVitalsRoutingHasNotCollectedFactor verifies routing an empty
// record completes and surfaces the collection gaps.
func TestEmptyVitalsRoutingHasNotCollectedFactor(t *testing.T) {
	d := Decide(VitalsInput{}, Evaluate(VitalsInput{}))

	found := false
	for _, f := range d.Factors {
		if strings.Contains(f, "not collected") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Expected a 'not collected' factor, got %v", d.Factors)
	}
}

// TestImplausibleVitalsDoNotRouteEmergency verifies readings outside
// physiological ranges are treated as not collected rather than
// compared against the emergency thresholds.
func TestImplausibleVitalsDoNotRouteEmergency(t *testing.T) {
	tests := []struct {
		name  string
		input VitalsInput
	}{
		{
			name: "impossible systolic",
			input: VitalsInput{
				BloodPressure: &BloodPressure{Systolic: intPtr(1200), Diastolic: intPtr(80)},
			},
		},
		{
			name: "impossible diastolic",
			input: VitalsInput{
				BloodPressure: &BloodPressure{Systolic: intPtr(120), Diastolic: intPtr(950)},
			},
		},
		{
			name:  "impossible temperature",
			input: VitalsInput{Temperature: tempC(120)},
		},
		{
			name:  "impossible fahrenheit temperature",
			input: VitalsInput{Temperature: tempF(500)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.input, Evaluate(tt.input))

			if d.Route == RouteEmergency {
				t.Errorf("Implausible reading routed emergency (factors: %v)", d.Factors)
			}
		})
	}
}

// TestFeverBelowEmergencyIsNotEmergency pins the boundary between the
// evaluator's fever band and the router's emergency band.
func TestFeverBelowEmergencyIsNotEmergency(t *testing.T) {
	in := VitalsInput{Temperature: tempC(39.5)}
	d := Decide(in, Evaluate(in))

	if d.Route == RouteEmergency {
		t.Errorf("39.5C should not be an emergency, got %s", d.Route)
	}
	if d.Route != RouteAgentAssisted {
		t.Errorf("Fever-range temperature should route to agent, got %s", d.Route)
	}
}
