package triage

import (
	"fmt"
	"strings"
)

// Route is the terminal care pathway for a presentation.
type Route string

const (
	RouteEmergency         Route = "emergency"
	RouteAgentAssisted     Route = "agent-assisted"
	RouteDirectToDiagnosis Route = "direct-to-diagnosis"
)

// Decision is the routing outcome, with the triggering factors and a
// human-readable reason kept for audit.
type Decision struct {
	Route      Route    `json:"decision"`
	Factors    []string `json:"factors"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
}

// emergencyKeywords unconditionally route to emergency on their own.
var emergencyKeywords = []string{
	"unconscious",
	"not breathing",
	"severe bleeding",
	"stroke",
	"seizure",
	"anaphylaxis",
	"overdose",
}

// emergencyCombos route to emergency when both sides co-occur, e.g.
// chest pain together with breathing difficulty.
var emergencyCombos = [][2][]string{
	{{"chest pain", "chest tightness"}, {"breath", "breathing"}},
	{{"faint", "collapsed"}, {"chest pain", "palpitation"}},
}

// Decide routes a presentation. The emergency check runs first and is
// independent of the evaluator's complexity score: any single threshold
// breach or keyword hit yields emergency with confidence 1.0, no matter
// how many other vitals are missing.
func Decide(in VitalsInput, eval Evaluation) Decision {
	if factors := emergencyFactors(in); len(factors) > 0 {
		return Decision{
			Route:      RouteEmergency,
			Factors:    factors,
			Reason:     "emergency indicators present: " + strings.Join(factors, "; "),
			Confidence: 1.0,
		}
	}

	if eval.NeedsAgentAssistance {
		return Decision{
			Route:      RouteAgentAssisted,
			Factors:    eval.Factors,
			Reason:     "presentation is complex or incomplete and needs guided collection",
			Confidence: 0.8,
		}
	}

	return Decision{
		Route:      RouteDirectToDiagnosis,
		Factors:    eval.Factors,
		Reason:     "no complexity or emergency indicators found",
		Confidence: 0.7,
	}
}

// emergencyFactors collects the emergency indicators in a vitals record.
// Missing or implausible vitals are skipped, never treated as
// emergencies.
func emergencyFactors(in VitalsInput) []string {
	var factors []string

	if in.Temperature != nil && in.Temperature.Plausible() {
		if c := in.Temperature.Celsius(); c >= EmergencyTempC {
			factors = append(factors, fmt.Sprintf("critical temperature (%.1fC)", c))
		}
	}

	if bp := in.BloodPressure; bp != nil {
		if s := bp.Systolic; s != nil && *s >= EmergencySystolic && *s <= MaxPlausibleSystolic {
			factors = append(factors, fmt.Sprintf("critical systolic pressure (%d)", *s))
		}
		if d := bp.Diastolic; d != nil && *d >= EmergencyDiastolic && *d <= MaxPlausibleDiastolic {
			factors = append(factors, fmt.Sprintf("critical diastolic pressure (%d)", *d))
		}
	}

	desc := strings.ToLower(in.StatusDescription)
	if desc != "" {
		for _, kw := range emergencyKeywords {
			if strings.Contains(desc, kw) {
				factors = append(factors, "emergency keyword: "+kw)
			}
		}
		for _, combo := range emergencyCombos {
			if containsAny(desc, combo[0]) && containsAny(desc, combo[1]) {
				factors = append(factors, fmt.Sprintf("emergency combination: %s with %s",
					combo[0][0], combo[1][0]))
			}
		}
	}

	return factors
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
