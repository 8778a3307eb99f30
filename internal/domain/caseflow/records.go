package caseflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Case is the aggregate root of a referral. Its status moves only through the
// transition table; infusion_org_id is set at most once by claiming.
type Case struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	ProviderOrgID   uuid.UUID  `json:"provider_org_id"`
	InfusionOrgID   *uuid.UUID `json:"infusion_org_id,omitempty"`
	Status          Status     `json:"status"`
	CreatedByUserID uuid.UUID  `json:"created_by_user_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Patient holds referral demographics. No lifecycle beyond attach.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	DOB       *time.Time `json:"dob,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Email     string     `json:"email,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Prescription carries free-form clinical identifiers, upsert only.
type Prescription struct {
	ID             uuid.UUID `json:"id"`
	CaseID         uuid.UUID `json:"case_id"`
	DrugName       string    `json:"drug_name,omitempty"`
	Dose           string    `json:"dose,omitempty"`
	Frequency      string    `json:"frequency,omitempty"`
	Route          string    `json:"route,omitempty"`
	DiagnosisICD10 string    `json:"diagnosis_icd10,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Insurance carries free-form payer identifiers, upsert only.
type Insurance struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	PayerName string    `json:"payer_name,omitempty"`
	MemberID  string    `json:"member_id,omitempty"`
	GroupID   string    `json:"group_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinancialClearance gates the exit from FINANCIAL_COUNSELING_PENDING.
// Invariant: ClearedAt non-nil implies PatientAcknowledgedCost.
type FinancialClearance struct {
	ID                      uuid.UUID  `json:"id"`
	CaseID                  uuid.UUID  `json:"case_id"`
	BenefitsVerifiedAt      *time.Time `json:"benefits_verified_at,omitempty"`
	CostEstimateAmount      *float64   `json:"cost_estimate_amount,omitempty"`
	PatientAcknowledgedCost bool       `json:"patient_acknowledged_cost"`
	AssistanceProgram       string     `json:"assistance_program,omitempty"`
	ClearedAt               *time.Time `json:"cleared_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// Cleared reports whether the clearance is complete.
func (f *FinancialClearance) Cleared() bool {
	return f != nil && f.ClearedAt != nil
}

// TaskType identifies what a task is for.
type TaskType string

const (
	TaskWelcomeCall   TaskType = "WELCOME_CALL"
	TaskBenefitsCheck TaskType = "BENEFITS_CHECK"
	TaskFollowUp      TaskType = "FOLLOW_UP"
)

// TaskStatus is the task sub-state machine: PENDING → IN_PROGRESS → DONE, with
// CANCELLED reachable from either pending state.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// CanMove reports whether a task may move from s to next. DONE may be reached
// directly from PENDING; DONE and CANCELLED are terminal.
func (s TaskStatus) CanMove(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskInProgress || next == TaskDone || next == TaskCancelled
	case TaskInProgress:
		return next == TaskDone || next == TaskCancelled
	default:
		return false
	}
}

// Task is a generic per-case work item. The WELCOME_CALL task carries a
// WelcomeCallPayload in PayloadJSON and gates WELCOME_CALL_PENDING.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	CaseID      uuid.UUID       `json:"case_id"`
	Type        TaskType        `json:"type"`
	Status      TaskStatus      `json:"status"`
	OwnerUserID *uuid.UUID      `json:"owner_user_id,omitempty"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
	PayloadJSON json.RawMessage `json:"payload_json,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// WelcomeCallPayload is the structured payload of a WELCOME_CALL task.
type WelcomeCallPayload struct {
	Reached          bool   `json:"reached"`
	Outcome          string `json:"outcome,omitempty"`
	PatientQuestions string `json:"patient_questions,omitempty"`
	NextSteps        string `json:"next_steps,omitempty"`
}

// Welcome call outcomes.
const (
	OutcomeCompleted         = "COMPLETED"
	OutcomeVoicemail         = "VOICEMAIL"
	OutcomeNoAnswer          = "NO_ANSWER"
	OutcomeCallbackRequested = "CALLBACK_REQUESTED"
)

// Schedule is the single active appointment for a case; later writes replace
// the prior value.
type Schedule struct {
	ID              uuid.UUID `json:"id"`
	CaseID          uuid.UUID `json:"case_id"`
	DateTime        time.Time `json:"date_time"`
	Location        string    `json:"location,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FulfillmentStatus is the pharmacy order sub-state machine.
type FulfillmentStatus string

const (
	FulfillmentNotStarted FulfillmentStatus = "NOT_STARTED"
	FulfillmentInProgress FulfillmentStatus = "IN_PROGRESS"
	FulfillmentReady      FulfillmentStatus = "READY"
	FulfillmentShipped    FulfillmentStatus = "SHIPPED"
	FulfillmentReceived   FulfillmentStatus = "RECEIVED"
)

var fulfillmentRank = map[FulfillmentStatus]int{
	FulfillmentNotStarted: 0,
	FulfillmentInProgress: 1,
	FulfillmentReady:      2,
	FulfillmentShipped:    3,
	FulfillmentReceived:   4,
}

// Valid reports whether f is a known fulfillment status.
func (f FulfillmentStatus) Valid() bool {
	_, ok := fulfillmentRank[f]
	return ok
}

// AtLeast reports whether f has reached min in the fulfillment ordering.
func (f FulfillmentStatus) AtLeast(min FulfillmentStatus) bool {
	return fulfillmentRank[f] >= fulfillmentRank[min]
}

// CanAdvance reports whether f → next is a single forward step. Jumps and
// backward moves are rejected.
func (f FulfillmentStatus) CanAdvance(next FulfillmentStatus) bool {
	fr, ok1 := fulfillmentRank[f]
	nr, ok2 := fulfillmentRank[next]
	return ok1 && ok2 && nr == fr+1
}

// PharmacyOrder exists only after push; PushedAt is stamped once and every
// fulfillment update requires it.
type PharmacyOrder struct {
	ID                   uuid.UUID         `json:"id"`
	CaseID               uuid.UUID         `json:"case_id"`
	PushedAt             *time.Time        `json:"pushed_at,omitempty"`
	ShipTo               string            `json:"ship_to,omitempty"`
	RequestedArrivalDate *time.Time        `json:"requested_arrival_date,omitempty"`
	FulfillmentStatus    FulfillmentStatus `json:"fulfillment_status"`
	PharmacyNotes        string            `json:"pharmacy_notes,omitempty"`
	NDC                  string            `json:"ndc,omitempty"`
	Lot                  string            `json:"lot,omitempty"`
	ExpirationDate       *time.Time        `json:"expiration_date,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Document is metadata only, immutable once created.
type Document struct {
	ID               uuid.UUID `json:"id"`
	CaseID           uuid.UUID `json:"case_id"`
	FileName         string    `json:"file_name"`
	FileType         string    `json:"file_type,omitempty"`
	StorageURL       string    `json:"storage_url,omitempty"`
	UploadedByUserID uuid.UUID `json:"uploaded_by_user_id"`
	CreatedAt        time.Time `json:"created_at"`
}
