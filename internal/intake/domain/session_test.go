package domain

import (
	"testing"

	"github.com/carelink/platform/internal/shared/types"
)

func strPtr(s string) *string { return &s }

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(types.NewID(), "Jane Doe")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestNewSessionDefaults(t *testing.T) {
	s := newTestSession(t)

	if s.Status != StatusNotStarted {
		t.Errorf("Status = %s, want %s", s.Status, StatusNotStarted)
	}
	if s.ActiveAgentRole != RoleTriage {
		t.Errorf("ActiveAgentRole = %s, want %s", s.ActiveAgentRole, RoleTriage)
	}
	if s.Completeness != 0 {
		t.Errorf("Completeness = %d, want 0", s.Completeness)
	}
}

func TestNewSessionRequiresConnection(t *testing.T) {
	if _, err := NewSession("", "x"); err == nil {
		t.Error("Expected error for empty connection")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s := newTestSession(t)

	s.Start()
	if s.Status != StatusInProgress {
		t.Fatalf("Status = %s, want %s", s.Status, StatusInProgress)
	}
	first := *s.StartedAt

	s.Start()
	if !s.StartedAt.Equal(first) {
		t.Error("Second Start must not restamp StartedAt")
	}
}

func TestStatusProgression(t *testing.T) {
	s := newTestSession(t)
	doctor := types.NewID()

	// Cannot complete or review before starting.
	if err := s.MarkReady(); err == nil {
		t.Error("MarkReady on not_started should fail")
	}
	if err := s.MarkReviewed(doctor); err == nil {
		t.Error("MarkReviewed on not_started should fail")
	}

	s.Start()
	if err := s.MarkReviewed(doctor); err == nil {
		t.Error("MarkReviewed on in_progress should fail")
	}
	if err := s.MarkReady(); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if s.CompletedAt == nil {
		t.Error("MarkReady must stamp CompletedAt")
	}

	if err := s.MarkReady(); err == nil {
		t.Error("MarkReady must not apply twice")
	}

	if err := s.MarkReviewed(doctor); err != nil {
		t.Fatalf("MarkReviewed: %v", err)
	}
	if s.ReviewedBy == nil || *s.ReviewedBy != doctor {
		t.Error("MarkReviewed must record the reviewing doctor")
	}
	if err := s.MarkReviewed(doctor); err == nil {
		t.Error("MarkReviewed must not apply twice")
	}
}

func TestApplyExtractionAdvancesRole(t *testing.T) {
	s := newTestSession(t)
	s.Start()

	s.ApplyExtraction(MedicalData{ChiefComplaint: strPtr("persistent cough")}, nil, nil)
	if s.ActiveAgentRole != RoleClinicalInvestigator {
		t.Errorf("ActiveAgentRole = %s, want %s", s.ActiveAgentRole, RoleClinicalInvestigator)
	}
	if s.Completeness != 12 {
		t.Errorf("Completeness = %d, want 12", s.Completeness)
	}

	// Null fields in a later update never erase known data.
	before := s.Completeness
	s.ApplyExtraction(MedicalData{}, nil, nil)
	if s.MedicalData.ChiefComplaint == nil {
		t.Error("Empty update erased the chief complaint")
	}
	if s.Completeness < before {
		t.Errorf("Completeness regressed from %d to %d", before, s.Completeness)
	}
}

func TestApplyExtractionFullRecordRoutesToHandover(t *testing.T) {
	s := newTestSession(t)
	s.Start()

	s.ApplyExtraction(MedicalData{
		ChiefComplaint:          strPtr("cough"),
		HistoryOfPresentIllness: strPtr("three days of dry cough"),
		Medications:             strPtr("none"),
		Allergies:               strPtr("penicillin"),
		PastMedicalHistory:      strPtr("asthma as a child"),
		FamilySocialHistory:     strPtr("non-smoker"),
		ReviewOfSystems:         strPtr("no fever"),
		RecordsChecked:          true,
		HistoryChecked:          true,
	}, nil, nil)

	if s.ActiveAgentRole != RoleHandoverSpecialist {
		t.Errorf("ActiveAgentRole = %s, want %s", s.ActiveAgentRole, RoleHandoverSpecialist)
	}
	if s.Completeness != 100 {
		t.Errorf("Completeness = %d, want 100", s.Completeness)
	}
}

func TestFollowUpBudget(t *testing.T) {
	s := newTestSession(t)
	const max = 2

	if !s.AllowFollowUp("onset", max) {
		t.Error("First follow-up should be allowed")
	}
	if !s.AllowFollowUp("onset", max) {
		t.Error("Second follow-up should be allowed")
	}
	if s.AllowFollowUp("onset", max) {
		t.Error("Third follow-up should be refused")
	}

	// Other topics are budgeted independently.
	if !s.AllowFollowUp("severity", max) {
		t.Error("Fresh topic should be allowed")
	}
}

func TestAnsweredTopicsNeverReAsked(t *testing.T) {
	s := newTestSession(t)

	s.MarkTopicAnswered("onset")
	if s.AllowFollowUp("onset", 2) {
		t.Error("Answered topic must not permit follow-ups")
	}
	if !s.IsTopicAnswered("onset") {
		t.Error("Topic should be recorded as answered")
	}

	s.MarkTopicAnswered("onset")
	if len(s.AnsweredTopics) != 1 {
		t.Errorf("Duplicate mark produced %d entries", len(s.AnsweredTopics))
	}
}

func TestAIFailureStreak(t *testing.T) {
	s := newTestSession(t)
	const threshold = 3

	s.RecordAIFailure()
	s.RecordAIFailure()
	if s.AIDegraded(threshold) {
		t.Error("Two failures should not trip the threshold")
	}

	s.RecordAISuccess()
	if s.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d after success, want 0", s.ConsecutiveErrors)
	}

	s.RecordAIFailure()
	s.RecordAIFailure()
	s.RecordAIFailure()
	if !s.AIDegraded(threshold) {
		t.Error("Three consecutive failures should trip the threshold")
	}
}

func TestConclusionNudge(t *testing.T) {
	s := newTestSession(t)
	s.Start()
	const nudgeAfter = 25

	for i := 0; i < nudgeAfter; i++ {
		s.CountAIMessage(nudgeAfter)
	}
	if s.HasOfferedConclusion {
		t.Error("Nudge offered before crossing the threshold")
	}

	s.CountAIMessage(nudgeAfter)
	if !s.HasOfferedConclusion {
		t.Error("Nudge not offered after crossing the threshold")
	}
}

func TestResettableGate(t *testing.T) {
	s := newTestSession(t)

	if !s.Resettable() {
		t.Error("not_started session should be resettable")
	}
	s.Start()
	if !s.Resettable() {
		t.Error("in_progress session should be resettable")
	}
	if err := s.MarkReady(); err != nil {
		t.Fatal(err)
	}
	if s.Resettable() {
		t.Error("ready session must not be resettable")
	}
	if err := s.MarkReviewed(types.NewID()); err != nil {
		t.Fatal(err)
	}
	if s.Resettable() {
		t.Error("reviewed session must not be resettable")
	}
}

func TestResetToInitialPreservesIdentity(t *testing.T) {
	s := newTestSession(t)
	id, connID, name, created := s.ID, s.ConnectionID, s.DisplayName, s.CreatedAt

	s.Start()
	s.ApplyExtraction(MedicalData{ChiefComplaint: strPtr("cough")}, &ClinicalHandover{Situation: "x"}, &DoctorThought{Notes: "y"})
	s.RecordAIFailure()
	s.CountAIMessage(1)
	s.MarkTopicAnswered("onset")
	s.AllowFollowUp("severity", 2)

	s.ResetToInitial()

	if s.ID != id || s.ConnectionID != connID || s.DisplayName != name || !s.CreatedAt.Equal(created) {
		t.Error("Reset must preserve identity fields")
	}
	if s.Status != StatusNotStarted {
		t.Errorf("Status = %s, want %s", s.Status, StatusNotStarted)
	}
	if s.MedicalData.ChiefComplaint != nil {
		t.Error("Medical data not cleared")
	}
	if s.Completeness != 0 || s.ActiveAgentRole != RoleTriage {
		t.Error("Derived fields not rewound")
	}
	if len(s.FollowUpCounts) != 0 || len(s.AnsweredTopics) != 0 {
		t.Error("Anti-loop counters not cleared")
	}
	if s.ConsecutiveErrors != 0 || s.AIMessageCount != 0 || s.HasOfferedConclusion {
		t.Error("AI counters not cleared")
	}
	if s.ClinicalHandover != nil || len(s.DoctorThought.Differentials) != 0 || s.DoctorThought.Notes != "" {
		t.Error("Clinical artifacts not cleared")
	}
	if s.StartedAt != nil || s.CompletedAt != nil || s.ReviewedAt != nil || s.ReviewedBy != nil {
		t.Error("Timestamps not cleared")
	}
}

func TestMergeNeverUnsetsFlags(t *testing.T) {
	md := MedicalData{RecordsChecked: true}
	md.Merge(MedicalData{RecordsChecked: false, HistoryChecked: true})

	if !md.RecordsChecked || !md.HistoryChecked {
		t.Errorf("Flags must only move forward, got %+v", md)
	}
}

func TestRoleForPriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		md   MedicalData
		want AgentRole
	}{
		{"empty record", MedicalData{}, RoleTriage},
		{
			"complaint known",
			MedicalData{ChiefComplaint: strPtr("cough")},
			RoleClinicalInvestigator,
		},
		{
			"investigation done",
			MedicalData{
				ChiefComplaint:          strPtr("cough"),
				HistoryOfPresentIllness: strPtr("hpi"),
				ReviewOfSystems:         strPtr("ros"),
			},
			RoleRecordsClerk,
		},
		{
			"records done",
			MedicalData{
				ChiefComplaint:          strPtr("cough"),
				HistoryOfPresentIllness: strPtr("hpi"),
				ReviewOfSystems:         strPtr("ros"),
				Medications:             strPtr("none"),
				Allergies:               strPtr("none"),
				RecordsChecked:          true,
			},
			RoleHistorySpecialist,
		},
		{
			"everything collected",
			MedicalData{
				ChiefComplaint:          strPtr("cough"),
				HistoryOfPresentIllness: strPtr("hpi"),
				ReviewOfSystems:         strPtr("ros"),
				Medications:             strPtr("none"),
				Allergies:               strPtr("none"),
				PastMedicalHistory:      strPtr("pmh"),
				FamilySocialHistory:     strPtr("fsh"),
				RecordsChecked:          true,
				HistoryChecked:          true,
			},
			RoleHandoverSpecialist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleFor(tt.md); got != tt.want {
				t.Errorf("RoleFor = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHashContentScopedToSession(t *testing.T) {
	a, b := types.NewID(), types.NewID()

	if HashContent(a, "hello") == HashContent(b, "hello") {
		t.Error("Identical text in different sessions must hash differently")
	}
	if HashContent(a, "hello") != HashContent(a, "hello") {
		t.Error("Hash must be deterministic")
	}
	if HashContent(a, "hello") == HashContent(a, "hello ") {
		t.Error("Whitespace variation must change the hash")
	}
}
