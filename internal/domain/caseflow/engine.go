package caseflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine coordinates all case mutations. Every operation runs as a single
// bounded unit of work: the store serializes concurrent requests per case and
// commits the mutation together with its timeline event, or not at all.
type Engine struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a workflow engine over the given store.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PatientInput holds demographics for a patient created with or attached to a
// case.
type PatientInput struct {
	FirstName string
	LastName  string
	DOB       *time.Time
	Phone     string
	Email     string
}

// CreateCaseInput describes a new referral.
type CreateCaseInput struct {
	ProviderOrgID   uuid.UUID
	CreatedByUserID uuid.UUID
	Patient         *PatientInput
}

// CreateCase opens a referral at REFERRAL_RECEIVED owned by the provider org.
func (e *Engine) CreateCase(ctx context.Context, in CreateCaseInput) (*Case, error) {
	if in.ProviderOrgID == uuid.Nil {
		return nil, &ValidationError{Field: "provider_org_id", Reason: "required"}
	}
	now := e.now()

	c := Case{
		ID:              uuid.New(),
		ProviderOrgID:   in.ProviderOrgID,
		Status:          StatusReferralReceived,
		CreatedByUserID: in.CreatedByUserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var patient *Patient
	if in.Patient != nil {
		patient = &Patient{
			ID:        uuid.New(),
			FirstName: in.Patient.FirstName,
			LastName:  in.Patient.LastName,
			DOB:       in.Patient.DOB,
			Phone:     in.Patient.Phone,
			Email:     in.Patient.Email,
			CreatedAt: now,
		}
		pid := patient.ID
		c.PatientID = &pid
	}

	ev := newEvent(c.ID, EventCaseCreated, in.CreatedByUserID, now, map[string]string{
		"status": string(StatusReferralReceived),
	})
	if err := e.store.CreateCase(ctx, c, patient, ev); err != nil {
		return nil, err
	}

	e.logger.Info("case created",
		zap.String("case_id", c.ID.String()),
		zap.String("provider_org_id", in.ProviderOrgID.String()),
	)
	return &c, nil
}

// AdvanceStatus moves a case to target. The edge must exist in the transition
// table, and unless target is DISCONTINUED the current stage's blockers must
// all be clear.
func (e *Engine) AdvanceStatus(ctx context.Context, caseID uuid.UUID, target Status, actor uuid.UUID) (*Case, error) {
	if !target.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(target)}
	}

	var out Case
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		snap := txn.Snapshot()
		from := snap.Case.Status

		if !CanTransition(from, target) {
			return &InvalidTransitionError{From: from, To: target}
		}
		if target != StatusDiscontinued {
			if blockers := EvaluateBlockers(snap); len(blockers) > 0 {
				return &BlockersError{Blockers: blockers}
			}
		}

		txn.SetStatus(target)
		txn.AppendEvent(newEvent(caseID, EventStatusChanged, actor, e.now(), statusChangedMeta{
			From: from,
			To:   target,
		}))
		out = txn.Snapshot().Case
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("case status changed",
		zap.String("case_id", caseID.String()),
		zap.String("status", string(target)),
	)
	return &out, nil
}

// ClaimCase assigns the infusion org processing the case. First committer
// wins; a second claim fails with ErrAlreadyClaimed regardless of org.
func (e *Engine) ClaimCase(ctx context.Context, caseID, orgID, actor uuid.UUID) (*Case, error) {
	if orgID == uuid.Nil {
		return nil, &ValidationError{Field: "infusion_org_id", Reason: "required"}
	}

	var out Case
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		snap := txn.Snapshot()
		if snap.Case.InfusionOrgID != nil {
			return ErrAlreadyClaimed
		}
		txn.SetInfusionOrg(orgID)
		txn.AppendEvent(newEvent(caseID, EventCaseClaimed, actor, e.now(), map[string]string{
			"infusion_org_id": orgID.String(),
		}))
		out = txn.Snapshot().Case
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("case claimed",
		zap.String("case_id", caseID.String()),
		zap.String("infusion_org_id", orgID.String()),
	)
	return &out, nil
}

// FinancialUpdate is a partial update of a case's financial clearance.
type FinancialUpdate struct {
	CostEstimateAmount      *float64
	PatientAcknowledgedCost *bool
	AssistanceProgram       *string
	// MarkCleared stamps cleared_at. PatientAcknowledgedCost must be true
	// (supplied here or already recorded) or the update is rejected.
	MarkCleared bool
}

// UpsertFinancial creates or updates the financial clearance record. The
// first write stamps benefits_verified_at; cleared_at is immutable once set.
func (e *Engine) UpsertFinancial(ctx context.Context, caseID uuid.UUID, in FinancialUpdate, actor uuid.UUID) (*FinancialClearance, error) {
	var out FinancialClearance
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		snap := txn.Snapshot()

		fc := snap.Financial
		if fc == nil {
			fc = &FinancialClearance{
				ID:        uuid.New(),
				CaseID:    caseID,
				CreatedAt: now,
			}
		}
		next := *fc
		if next.BenefitsVerifiedAt == nil {
			t := now
			next.BenefitsVerifiedAt = &t
		}
		if in.CostEstimateAmount != nil {
			next.CostEstimateAmount = in.CostEstimateAmount
		}
		if in.AssistanceProgram != nil {
			next.AssistanceProgram = *in.AssistanceProgram
		}
		if in.PatientAcknowledgedCost != nil {
			if next.Cleared() && !*in.PatientAcknowledgedCost {
				return &ValidationError{
					Field:  "patient_acknowledged_cost",
					Reason: "cannot be revoked after clearance",
				}
			}
			next.PatientAcknowledgedCost = *in.PatientAcknowledgedCost
		}
		if in.MarkCleared && next.ClearedAt == nil {
			if !next.PatientAcknowledgedCost {
				return ErrClearanceRequiresAcknowledgement
			}
			t := now
			next.ClearedAt = &t
		}
		next.UpdatedAt = now

		txn.PutFinancial(next)
		txn.AppendEvent(newEvent(caseID, EventFinancialUpdated, actor, now, map[string]any{
			"cleared":                   next.Cleared(),
			"patient_acknowledged_cost": next.PatientAcknowledgedCost,
		}))
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertWelcomeCall records the welcome call attempt, creating the
// WELCOME_CALL task on first save. markDone completes the task, which
// requires payload.Reached.
func (e *Engine) UpsertWelcomeCall(ctx context.Context, caseID uuid.UUID, payload WelcomeCallPayload, markDone bool, actor uuid.UUID) (*Task, error) {
	if markDone && !payload.Reached {
		return nil, ErrWelcomeCallNotReached
	}

	var out Task
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		snap := txn.Snapshot()

		var task Task
		if existing := snap.WelcomeCallTask(); existing != nil {
			task = *existing
			if task.Status == TaskDone && !payload.Reached {
				return &ValidationError{Field: "reached", Reason: "cannot be revoked after the call is completed"}
			}
		} else {
			task = Task{
				ID:        uuid.New(),
				CaseID:    caseID,
				Type:      TaskWelcomeCall,
				Status:    TaskPending,
				CreatedAt: now,
			}
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		task.PayloadJSON = raw
		if markDone && task.Status != TaskDone {
			task.Status = TaskDone
		}
		task.UpdatedAt = now

		txn.PutTask(task)
		txn.AppendEvent(newEvent(caseID, EventWelcomeCallUpdated, actor, now, map[string]any{
			"reached": payload.Reached,
			"outcome": payload.Outcome,
			"done":    task.Status == TaskDone,
		}))
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ScheduleInput describes the single active appointment for a case.
type ScheduleInput struct {
	DateTime        time.Time
	Location        string
	DurationMinutes int
}

// SetSchedule creates or replaces the case's appointment.
func (e *Engine) SetSchedule(ctx context.Context, caseID uuid.UUID, in ScheduleInput, actor uuid.UUID) (*Schedule, error) {
	if in.DateTime.IsZero() {
		return nil, &ValidationError{Field: "date_time", Reason: "required"}
	}

	var out Schedule
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		snap := txn.Snapshot()

		sched := Schedule{
			ID:              uuid.New(),
			CaseID:          caseID,
			DateTime:        in.DateTime,
			Location:        in.Location,
			DurationMinutes: in.DurationMinutes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if snap.Schedule != nil {
			sched.ID = snap.Schedule.ID
			sched.CreatedAt = snap.Schedule.CreatedAt
		}

		txn.PutSchedule(sched)
		txn.AppendEvent(newEvent(caseID, EventScheduleSet, actor, now, map[string]any{
			"date_time": in.DateTime,
			"location":  in.Location,
		}))
		out = sched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PharmacyPushInput describes the one-time push of the drug order.
type PharmacyPushInput struct {
	ShipTo               string
	RequestedArrivalDate *time.Time
	PharmacyNotes        string
}

// PushPharmacy creates the pharmacy order and stamps pushed_at. Exactly once
// per case; repeating fails with ErrAlreadyPushed.
func (e *Engine) PushPharmacy(ctx context.Context, caseID uuid.UUID, in PharmacyPushInput, actor uuid.UUID) (*PharmacyOrder, error) {
	var out PharmacyOrder
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		snap := txn.Snapshot()
		if snap.Pharmacy != nil {
			return ErrAlreadyPushed
		}

		pushedAt := now
		order := PharmacyOrder{
			ID:                   uuid.New(),
			CaseID:               caseID,
			PushedAt:             &pushedAt,
			ShipTo:               in.ShipTo,
			RequestedArrivalDate: in.RequestedArrivalDate,
			FulfillmentStatus:    FulfillmentNotStarted,
			PharmacyNotes:        in.PharmacyNotes,
			CreatedAt:            now,
			UpdatedAt:            now,
		}

		txn.PutPharmacyOrder(order)
		txn.AppendEvent(newEvent(caseID, EventPharmacyPushed, actor, now, map[string]string{
			"ship_to": in.ShipTo,
		}))
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("pharmacy order pushed", zap.String("case_id", caseID.String()))
	return &out, nil
}

// PharmacyOrderUpdate is a partial update of fulfillment details.
type PharmacyOrderUpdate struct {
	FulfillmentStatus *FulfillmentStatus
	NDC               *string
	Lot               *string
	ExpirationDate    *time.Time
	PharmacyNotes     *string
}

// UpdateFulfillment records fulfillment progress. Requires a pushed order;
// fulfillment status moves strictly one step forward.
func (e *Engine) UpdateFulfillment(ctx context.Context, caseID uuid.UUID, in PharmacyOrderUpdate, actor uuid.UUID) (*PharmacyOrder, error) {
	var out PharmacyOrder
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		snap := txn.Snapshot()
		if snap.Pharmacy == nil || snap.Pharmacy.PushedAt == nil {
			return ErrNotYetPushed
		}

		order := *snap.Pharmacy
		if in.FulfillmentStatus != nil && *in.FulfillmentStatus != order.FulfillmentStatus {
			if !order.FulfillmentStatus.CanAdvance(*in.FulfillmentStatus) {
				return &InvalidFulfillmentError{
					From: order.FulfillmentStatus,
					To:   *in.FulfillmentStatus,
				}
			}
			order.FulfillmentStatus = *in.FulfillmentStatus
		}
		if in.NDC != nil {
			order.NDC = *in.NDC
		}
		if in.Lot != nil {
			order.Lot = *in.Lot
		}
		if in.ExpirationDate != nil {
			order.ExpirationDate = in.ExpirationDate
		}
		if in.PharmacyNotes != nil {
			order.PharmacyNotes = *in.PharmacyNotes
		}
		order.UpdatedAt = now

		txn.PutPharmacyOrder(order)
		txn.AppendEvent(newEvent(caseID, EventPharmacyOrderUpdated, actor, now, map[string]string{
			"fulfillment_status": string(order.FulfillmentStatus),
		}))
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PrescriptionUpdate is a partial prescription upsert.
type PrescriptionUpdate struct {
	DrugName       *string
	Dose           *string
	Frequency      *string
	Route          *string
	DiagnosisICD10 *string
}

// UpsertPrescription creates or updates the case's prescription.
func (e *Engine) UpsertPrescription(ctx context.Context, caseID uuid.UUID, in PrescriptionUpdate, actor uuid.UUID) (*Prescription, error) {
	var out Prescription
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		snap := txn.Snapshot()

		rx := Prescription{ID: uuid.New(), CaseID: caseID, CreatedAt: now}
		if snap.Prescription != nil {
			rx = *snap.Prescription
		}
		if in.DrugName != nil {
			rx.DrugName = *in.DrugName
		}
		if in.Dose != nil {
			rx.Dose = *in.Dose
		}
		if in.Frequency != nil {
			rx.Frequency = *in.Frequency
		}
		if in.Route != nil {
			rx.Route = *in.Route
		}
		if in.DiagnosisICD10 != nil {
			rx.DiagnosisICD10 = *in.DiagnosisICD10
		}
		rx.UpdatedAt = now

		txn.PutPrescription(rx)
		txn.AppendEvent(newEvent(caseID, EventPrescriptionUpdated, actor, now, nil))
		out = rx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InsuranceUpdate is a partial insurance upsert.
type InsuranceUpdate struct {
	PayerName *string
	MemberID  *string
	GroupID   *string
}

// UpsertInsurance creates or updates the case's insurance record.
func (e *Engine) UpsertInsurance(ctx context.Context, caseID uuid.UUID, in InsuranceUpdate, actor uuid.UUID) (*Insurance, error) {
	var out Insurance
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		snap := txn.Snapshot()

		ins := Insurance{ID: uuid.New(), CaseID: caseID, CreatedAt: now}
		if snap.Insurance != nil {
			ins = *snap.Insurance
		}
		if in.PayerName != nil {
			ins.PayerName = *in.PayerName
		}
		if in.MemberID != nil {
			ins.MemberID = *in.MemberID
		}
		if in.GroupID != nil {
			ins.GroupID = *in.GroupID
		}
		ins.UpdatedAt = now

		txn.PutInsurance(ins)
		txn.AppendEvent(newEvent(caseID, EventInsuranceUpdated, actor, now, nil))
		out = ins
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AttachPatient creates a patient record and links it to the case.
func (e *Engine) AttachPatient(ctx context.Context, caseID uuid.UUID, in PatientInput, actor uuid.UUID) (*Patient, error) {
	if in.FirstName == "" || in.LastName == "" {
		return nil, &ValidationError{Field: "patient", Reason: "first and last name required"}
	}

	var out Patient
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		p := Patient{
			ID:        uuid.New(),
			FirstName: in.FirstName,
			LastName:  in.LastName,
			DOB:       in.DOB,
			Phone:     in.Phone,
			Email:     in.Email,
			CreatedAt: now,
		}
		txn.AttachPatient(p)
		txn.AppendEvent(newEvent(caseID, EventPatientAttached, actor, now, nil))
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddDocument records document metadata for the case.
func (e *Engine) AddDocument(ctx context.Context, caseID uuid.UUID, fileName, fileType string, actor uuid.UUID) (*Document, error) {
	if fileName == "" {
		return nil, &ValidationError{Field: "file_name", Reason: "required"}
	}

	var out Document
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		doc := Document{
			ID:               uuid.New(),
			CaseID:           caseID,
			FileName:         fileName,
			FileType:         fileType,
			StorageURL:       "/uploads/" + caseID.String() + "/" + fileName,
			UploadedByUserID: actor,
			CreatedAt:        now,
		}
		txn.AddDocument(doc)
		txn.AppendEvent(newEvent(caseID, EventDocumentUploaded, actor, now, map[string]string{
			"file_name": fileName,
		}))
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskInput describes a new generic task.
type TaskInput struct {
	Type        TaskType
	OwnerUserID *uuid.UUID
	DueAt       *time.Time
	PayloadJSON json.RawMessage
}

// CreateTask adds a generic task to the case.
func (e *Engine) CreateTask(ctx context.Context, caseID uuid.UUID, in TaskInput, actor uuid.UUID) (*Task, error) {
	if in.Type == "" {
		return nil, &ValidationError{Field: "type", Reason: "required"}
	}

	var out Task
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		task := Task{
			ID:          uuid.New(),
			CaseID:      caseID,
			Type:        in.Type,
			Status:      TaskPending,
			OwnerUserID: in.OwnerUserID,
			DueAt:       in.DueAt,
			PayloadJSON: in.PayloadJSON,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		txn.PutTask(task)
		txn.AppendEvent(newEvent(caseID, EventTaskCreated, actor, now, map[string]string{
			"task_type": string(in.Type),
		}))
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskUpdate is a partial task update.
type TaskUpdate struct {
	Status      *TaskStatus
	OwnerUserID *uuid.UUID
	DueAt       *time.Time
	PayloadJSON json.RawMessage
}

// UpdateTask applies a partial update. Status moves follow the task machine;
// a WELCOME_CALL task may only reach DONE when its payload records the
// patient as reached.
func (e *Engine) UpdateTask(ctx context.Context, caseID, taskID uuid.UUID, in TaskUpdate, actor uuid.UUID) (*Task, error) {
	var out Task
	err := e.store.Update(ctx, caseID, func(txn Txn) error {
		now := e.now()
		snap := txn.Snapshot()

		var task *Task
		for i := range snap.Tasks {
			if snap.Tasks[i].ID == taskID {
				t := snap.Tasks[i]
				task = &t
				break
			}
		}
		if task == nil {
			return ErrTaskNotFound
		}

		if in.PayloadJSON != nil {
			if task.Type == TaskWelcomeCall && task.Status == TaskDone {
				var payload WelcomeCallPayload
				if err := json.Unmarshal(in.PayloadJSON, &payload); err != nil {
					return &ValidationError{Field: "payload", Reason: "invalid welcome call payload"}
				}
				if !payload.Reached {
					return &ValidationError{Field: "reached", Reason: "cannot be revoked after the call is completed"}
				}
			}
			task.PayloadJSON = in.PayloadJSON
		}
		if in.Status != nil && *in.Status != task.Status {
			if !task.Status.CanMove(*in.Status) {
				return &ValidationError{
					Field:  "status",
					Reason: "cannot move task from " + string(task.Status) + " to " + string(*in.Status),
				}
			}
			if task.Type == TaskWelcomeCall && *in.Status == TaskDone {
				var payload WelcomeCallPayload
				if len(task.PayloadJSON) > 0 {
					_ = json.Unmarshal(task.PayloadJSON, &payload)
				}
				if !payload.Reached {
					return ErrWelcomeCallNotReached
				}
			}
			task.Status = *in.Status
		}
		if in.OwnerUserID != nil {
			task.OwnerUserID = in.OwnerUserID
		}
		if in.DueAt != nil {
			task.DueAt = in.DueAt
		}
		task.UpdatedAt = now

		txn.PutTask(*task)
		txn.AppendEvent(newEvent(caseID, EventTaskUpdated, actor, now, map[string]string{
			"task_id": taskID.String(),
			"status":  string(task.Status),
		}))
		out = *task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Blockers returns the advisory panel for a case: the gating blockers for its
// current stage plus data-completeness advisories. Read-only, no side effects.
func (e *Engine) Blockers(ctx context.Context, caseID uuid.UUID) ([]Blocker, error) {
	snap, err := e.store.View(ctx, caseID)
	if err != nil {
		return nil, err
	}
	blockers := EvaluateBlockers(snap)
	return append(blockers, AdvisoryBlockers(snap)...), nil
}

// Timeline returns the case's events ordered by creation time.
func (e *Engine) Timeline(ctx context.Context, caseID uuid.UUID) ([]TimelineEvent, error) {
	return e.store.Timeline(ctx, caseID)
}

// GetCase returns a detached snapshot of the case and its sub-records.
func (e *Engine) GetCase(ctx context.Context, caseID uuid.UUID) (*Snapshot, error) {
	return e.store.View(ctx, caseID)
}

// ListCases returns cases matching the filter.
func (e *Engine) ListCases(ctx context.Context, f ListFilter) ([]Case, error) {
	return e.store.ListCases(ctx, f)
}
