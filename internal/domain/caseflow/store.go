package caseflow

import (
	"context"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time view of a case and its sub-records. Inside a
// unit of work it reflects uncommitted writes; outside it is a detached copy.
type Snapshot struct {
	Case         Case
	Patient      *Patient
	Prescription *Prescription
	Insurance    *Insurance
	Financial    *FinancialClearance
	Schedule     *Schedule
	Pharmacy     *PharmacyOrder
	Tasks        []Task
	Documents    []Document
}

// WelcomeCallTask returns the authoritative WELCOME_CALL task: the most
// recently updated one, or nil if none exists.
func (s *Snapshot) WelcomeCallTask() *Task {
	var latest *Task
	for i := range s.Tasks {
		t := &s.Tasks[i]
		if t.Type != TaskWelcomeCall {
			continue
		}
		if latest == nil || t.UpdatedAt.After(latest.UpdatedAt) {
			latest = t
		}
	}
	return latest
}

// Txn is a unit of work over a single case, held under that case's lock.
// Writes accumulate and commit together with the appended timeline events, or
// not at all.
type Txn interface {
	// Snapshot returns the case state including uncommitted writes.
	Snapshot() *Snapshot

	SetStatus(Status)
	SetInfusionOrg(uuid.UUID)
	AttachPatient(Patient)
	PutPrescription(Prescription)
	PutInsurance(Insurance)
	PutFinancial(FinancialClearance)
	PutSchedule(Schedule)
	PutPharmacyOrder(PharmacyOrder)
	PutTask(Task)
	AddDocument(Document)

	// AppendEvent stages a timeline event for the same commit as the writes
	// above.
	AppendEvent(TimelineEvent)
}

// ListFilter narrows ListCases results.
type ListFilter struct {
	Status *Status
	// ProviderOrgID limits to cases created by the org.
	ProviderOrgID *uuid.UUID
	// InfusionOrgID limits to cases claimed by the org, plus unclaimed ones
	// when IncludeUnclaimed is set.
	InfusionOrgID    *uuid.UUID
	IncludeUnclaimed bool
}

// Store is the persistence boundary of the engine. Operations on the same
// case are serialized by Update's per-case lock; operations on different
// cases are independent.
type Store interface {
	// CreateCase persists a new case and its creation event atomically.
	CreateCase(ctx context.Context, c Case, patient *Patient, ev TimelineEvent) error

	// Update runs fn inside a unit of work holding the case's lock. If fn
	// returns an error, nothing is persisted. Returns ErrCaseNotFound for an
	// unknown id.
	Update(ctx context.Context, caseID uuid.UUID, fn func(Txn) error) error

	// View returns a detached snapshot of the case.
	View(ctx context.Context, caseID uuid.UUID) (*Snapshot, error)

	// Timeline returns the case's events ordered by creation time.
	Timeline(ctx context.Context, caseID uuid.UUID) ([]TimelineEvent, error)

	ListCases(ctx context.Context, f ListFilter) ([]Case, error)
}
