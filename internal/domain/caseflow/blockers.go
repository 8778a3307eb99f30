package caseflow

import "strings"

// BlockerType classifies an unmet precondition.
type BlockerType string

const (
	BlockerFinancialNotCleared    BlockerType = "FINANCIAL_NOT_CLEARED"
	BlockerCostNotAcknowledged    BlockerType = "COST_NOT_ACKNOWLEDGED"
	BlockerWelcomeCallNotComplete BlockerType = "WELCOME_CALL_NOT_COMPLETE"
	BlockerScheduleNotSet         BlockerType = "SCHEDULE_NOT_SET"
	BlockerPharmacyNotPushed      BlockerType = "PHARMACY_NOT_PUSHED"
	BlockerFulfillmentNotReady    BlockerType = "FULFILLMENT_NOT_READY"
	BlockerCaseUnclaimed          BlockerType = "CASE_UNCLAIMED"

	// Advisory-only types: surfaced by GetBlockers for the workup panel but
	// never gate a transition.
	BlockerMissingPrescription BlockerType = "MISSING_PRESCRIPTION"
	BlockerMissingRxFields     BlockerType = "MISSING_RX_FIELDS"
	BlockerMissingInsurance    BlockerType = "MISSING_INSURANCE"
)

// Blocker is a named unmet precondition preventing advancement out of the
// case's current status.
type Blocker struct {
	Type    BlockerType `json:"type"`
	Message string      `json:"message"`
	Fields  []string    `json:"fields,omitempty"`
}

// EvaluateBlockers computes the gating blockers for advancing past the
// snapshot's current status. It is pure and read-only: all rules are evaluated
// independently and returned together, never short-circuited.
func EvaluateBlockers(s *Snapshot) []Blocker {
	var blockers []Blocker

	switch s.Case.Status {
	case StatusFinancialCounselingPending:
		switch {
		case !s.Financial.Cleared():
			blockers = append(blockers, Blocker{
				Type:    BlockerFinancialNotCleared,
				Message: "Financial clearance not completed",
			})
		case !s.Financial.PatientAcknowledgedCost:
			// Unreachable if the clearance invariant holds; kept as a check
			// against data written outside the engine.
			blockers = append(blockers, Blocker{
				Type:    BlockerCostNotAcknowledged,
				Message: "Patient has not acknowledged cost",
			})
		}

	case StatusWelcomeCallPending:
		if wc := s.WelcomeCallTask(); wc == nil || wc.Status != TaskDone {
			blockers = append(blockers, Blocker{
				Type:    BlockerWelcomeCallNotComplete,
				Message: "Welcome call not completed",
			})
		}

	case StatusSchedulingReady:
		if s.Schedule == nil {
			blockers = append(blockers, Blocker{
				Type:    BlockerScheduleNotSet,
				Message: "Appointment not scheduled",
			})
		}

	case StatusPharmacyPushPending:
		if s.Pharmacy == nil || s.Pharmacy.PushedAt == nil {
			blockers = append(blockers, Blocker{
				Type:    BlockerPharmacyNotPushed,
				Message: "Drug not pushed to pharmacy",
			})
		}

	case StatusDrugFulfillmentInProgress:
		if s.Pharmacy == nil || !s.Pharmacy.FulfillmentStatus.AtLeast(FulfillmentReady) {
			blockers = append(blockers, Blocker{
				Type:    BlockerFulfillmentNotReady,
				Message: "Drug fulfillment not ready",
			})
		}
	}

	if s.Case.InfusionOrgID == nil && s.Case.Status.After(StatusReferralReceived) {
		blockers = append(blockers, Blocker{
			Type:    BlockerCaseUnclaimed,
			Message: "Case unclaimed by an infusion organization",
		})
	}

	return blockers
}

// AdvisoryBlockers reports data-completeness gaps that do not gate any
// transition: missing prescription fields and missing insurance.
func AdvisoryBlockers(s *Snapshot) []Blocker {
	var blockers []Blocker

	if s.Prescription == nil {
		blockers = append(blockers, Blocker{
			Type:    BlockerMissingPrescription,
			Message: "No prescription attached to case",
		})
	} else {
		var missing []string
		if s.Prescription.DrugName == "" {
			missing = append(missing, "drug_name")
		}
		if s.Prescription.Dose == "" {
			missing = append(missing, "dose")
		}
		if s.Prescription.Frequency == "" {
			missing = append(missing, "frequency")
		}
		if len(missing) > 0 {
			blockers = append(blockers, Blocker{
				Type:    BlockerMissingRxFields,
				Message: "Prescription missing: " + strings.Join(missing, ", "),
				Fields:  missing,
			})
		}
	}

	if s.Insurance == nil {
		blockers = append(blockers, Blocker{
			Type:    BlockerMissingInsurance,
			Message: "No insurance information attached to case",
		})
	}

	return blockers
}
