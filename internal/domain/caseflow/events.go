package caseflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a timeline event.
type EventType string

const (
	EventCaseCreated          EventType = "CASE_CREATED"
	EventStatusChanged        EventType = "STATUS_CHANGED"
	EventCaseClaimed          EventType = "CASE_CLAIMED"
	EventPatientAttached      EventType = "PATIENT_ATTACHED"
	EventPrescriptionUpdated  EventType = "PRESCRIPTION_UPDATED"
	EventInsuranceUpdated     EventType = "INSURANCE_UPDATED"
	EventFinancialUpdated     EventType = "FINANCIAL_UPDATED"
	EventWelcomeCallUpdated   EventType = "WELCOME_CALL_UPDATED"
	EventScheduleSet          EventType = "SCHEDULE_SET"
	EventPharmacyPushed       EventType = "PHARMACY_PUSHED"
	EventPharmacyOrderUpdated EventType = "PHARMACY_ORDER_UPDATED"
	EventTaskCreated          EventType = "TASK_CREATED"
	EventTaskUpdated          EventType = "TASK_UPDATED"
	EventDocumentUploaded     EventType = "DOCUMENT_UPLOADED"
)

// TimelineEvent is an immutable, append-only audit record. Every mutating
// engine operation emits exactly one, in the same unit of work as the
// mutation it describes.
type TimelineEvent struct {
	ID          uuid.UUID       `json:"id"`
	CaseID      uuid.UUID       `json:"case_id"`
	EventType   EventType       `json:"event_type"`
	ActorUserID *uuid.UUID      `json:"actor_user_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata_json,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// newEvent builds a timeline event, marshaling metadata to JSON. A nil
// metadata value produces an empty payload.
func newEvent(caseID uuid.UUID, et EventType, actor uuid.UUID, at time.Time, metadata any) TimelineEvent {
	ev := TimelineEvent{
		ID:        uuid.New(),
		CaseID:    caseID,
		EventType: et,
		CreatedAt: at,
	}
	if actor != uuid.Nil {
		a := actor
		ev.ActorUserID = &a
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			ev.Metadata = raw
		}
	}
	return ev
}

// statusChangedMeta is the {from, to} payload of a STATUS_CHANGED event.
type statusChangedMeta struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}
