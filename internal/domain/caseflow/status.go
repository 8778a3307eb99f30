// Package caseflow implements the referral case workflow engine: the status
// state machine, per-transition blockers, sub-record coupling, and the
// append-only case timeline.
package caseflow

// Status represents a case's pipeline stage
type Status string

const (
	StatusReferralReceived           Status = "REFERRAL_RECEIVED"
	StatusClinicalCompletenessCheck  Status = "CLINICAL_COMPLETENESS_CHECK"
	StatusBenefitsInvestigation      Status = "BENEFITS_INVESTIGATION"
	StatusPriorAuthSubmitted         Status = "PRIOR_AUTH_SUBMITTED"
	StatusPriorAuthApproved          Status = "PRIOR_AUTH_APPROVED"
	StatusFinancialCounselingPending Status = "FINANCIAL_COUNSELING_PENDING"
	StatusFinancialCleared           Status = "FINANCIAL_CLEARED"
	StatusWelcomeCallPending         Status = "WELCOME_CALL_PENDING"
	StatusWelcomeCallCompleted       Status = "WELCOME_CALL_COMPLETED"
	StatusSchedulingReady            Status = "SCHEDULING_READY"
	StatusScheduled                  Status = "SCHEDULED"
	StatusPharmacyPushPending        Status = "PHARMACY_PUSH_PENDING"
	StatusPharmacyPushed             Status = "PHARMACY_PUSHED"
	StatusDrugFulfillmentInProgress  Status = "DRUG_FULFILLMENT_IN_PROGRESS"
	StatusDrugReady                  Status = "DRUG_READY"
	StatusInfusionCompleted          Status = "INFUSION_COMPLETED"
	StatusOnTherapy                  Status = "ON_THERAPY"
	StatusDiscontinued               Status = "DISCONTINUED"
)

// pipeline is the strict linear ordering of operational stages. DISCONTINUED
// sits outside the chain and is reachable from every other status.
var pipeline = []Status{
	StatusReferralReceived,
	StatusClinicalCompletenessCheck,
	StatusBenefitsInvestigation,
	StatusPriorAuthSubmitted,
	StatusPriorAuthApproved,
	StatusFinancialCounselingPending,
	StatusFinancialCleared,
	StatusWelcomeCallPending,
	StatusWelcomeCallCompleted,
	StatusSchedulingReady,
	StatusScheduled,
	StatusPharmacyPushPending,
	StatusPharmacyPushed,
	StatusDrugFulfillmentInProgress,
	StatusDrugReady,
	StatusInfusionCompleted,
	StatusOnTherapy,
}

// stageIndex maps each pipeline status to its position in the chain.
var stageIndex = func() map[Status]int {
	m := make(map[Status]int, len(pipeline))
	for i, s := range pipeline {
		m[s] = i
	}
	return m
}()

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusDiscontinued {
		return true
	}
	_, ok := stageIndex[s]
	return ok
}

// Successor returns the single designated next stage, or "" if s is terminal
// (ON_THERAPY, DISCONTINUED) or unknown.
func (s Status) Successor() Status {
	i, ok := stageIndex[s]
	if !ok || i == len(pipeline)-1 {
		return ""
	}
	return pipeline[i+1]
}

// Terminal reports whether the status has no outgoing edges in the chain.
// ON_THERAPY can still be discontinued; DISCONTINUED cannot move at all.
func (s Status) Terminal() bool {
	return s == StatusOnTherapy || s == StatusDiscontinued
}

// After reports whether s comes after other in the pipeline ordering.
// DISCONTINUED is not ordered relative to the chain and always returns false.
func (s Status) After(other Status) bool {
	si, ok1 := stageIndex[s]
	oi, ok2 := stageIndex[other]
	return ok1 && ok2 && si > oi
}

// CanTransition reports whether from → to is a legal edge: either to is the
// single designated successor of from, or to is DISCONTINUED and from is not.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == StatusDiscontinued {
		return from != StatusDiscontinued
	}
	return from.Successor() == to
}

// Statuses returns every status in pipeline order, DISCONTINUED last.
func Statuses() []Status {
	out := make([]Status, 0, len(pipeline)+1)
	out = append(out, pipeline...)
	return append(out, StatusDiscontinued)
}
