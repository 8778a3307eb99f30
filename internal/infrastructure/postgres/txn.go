package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tjcobb-blip/Infusion/internal/domain/caseflow"
)

// txn stages mutations against a locked snapshot and flushes them as SQL
// writes once the caller's function returns without error.
type txn struct {
	snap *caseflow.Snapshot

	caseDirty    bool
	patient      *caseflow.Patient
	prescription *caseflow.Prescription
	insurance    *caseflow.Insurance
	financial    *caseflow.FinancialClearance
	schedule     *caseflow.Schedule
	pharmacy     *caseflow.PharmacyOrder
	taskPuts     []caseflow.Task
	newDocs      []caseflow.Document
	events       []caseflow.TimelineEvent
}

var _ caseflow.Txn = (*txn)(nil)

func (t *txn) Snapshot() *caseflow.Snapshot { return t.snap }

func (t *txn) SetStatus(s caseflow.Status) {
	t.snap.Case.Status = s
	t.snap.Case.UpdatedAt = time.Now().UTC()
	t.caseDirty = true
}

func (t *txn) SetInfusionOrg(orgID uuid.UUID) {
	t.snap.Case.InfusionOrgID = &orgID
	t.snap.Case.UpdatedAt = time.Now().UTC()
	t.caseDirty = true
}

func (t *txn) AttachPatient(p caseflow.Patient) {
	t.snap.Patient = &p
	t.snap.Case.PatientID = &p.ID
	t.snap.Case.UpdatedAt = time.Now().UTC()
	t.patient = &p
	t.caseDirty = true
}

func (t *txn) PutPrescription(rx caseflow.Prescription) {
	t.snap.Prescription = &rx
	t.prescription = &rx
}

func (t *txn) PutInsurance(ins caseflow.Insurance) {
	t.snap.Insurance = &ins
	t.insurance = &ins
}

func (t *txn) PutFinancial(fc caseflow.FinancialClearance) {
	t.snap.Financial = &fc
	t.financial = &fc
}

func (t *txn) PutSchedule(sc caseflow.Schedule) {
	t.snap.Schedule = &sc
	t.schedule = &sc
}

func (t *txn) PutPharmacyOrder(po caseflow.PharmacyOrder) {
	t.snap.Pharmacy = &po
	t.pharmacy = &po
}

func (t *txn) PutTask(task caseflow.Task) {
	replaced := false
	for i := range t.snap.Tasks {
		if t.snap.Tasks[i].ID == task.ID {
			t.snap.Tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		t.snap.Tasks = append(t.snap.Tasks, task)
	}
	t.taskPuts = append(t.taskPuts, task)
}

func (t *txn) AddDocument(doc caseflow.Document) {
	t.snap.Documents = append(t.snap.Documents, doc)
	t.newDocs = append(t.newDocs, doc)
}

func (t *txn) AppendEvent(ev caseflow.TimelineEvent) {
	t.events = append(t.events, ev)
}

func (t *txn) flush(ctx context.Context, tx pgx.Tx) error {
	if t.patient != nil {
		p := t.patient
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, first_name, last_name, dob, phone, email, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				dob = EXCLUDED.dob,
				phone = EXCLUDED.phone,
				email = EXCLUDED.email
		`, p.ID, p.FirstName, p.LastName, p.DOB, p.Phone, p.Email, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert patient: %w", err)
		}
	}

	if t.caseDirty {
		c := t.snap.Case
		_, err := tx.Exec(ctx, `
			UPDATE cases
			SET patient_id = $2, infusion_org_id = $3, status = $4, updated_at = $5
			WHERE id = $1
		`, c.ID, c.PatientID, c.InfusionOrgID, c.Status, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update case: %w", err)
		}
	}

	if t.prescription != nil {
		rx := t.prescription
		_, err := tx.Exec(ctx, `
			INSERT INTO prescriptions (id, case_id, drug_name, dose, frequency, route, diagnosis_icd10, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (case_id) DO UPDATE SET
				drug_name = EXCLUDED.drug_name,
				dose = EXCLUDED.dose,
				frequency = EXCLUDED.frequency,
				route = EXCLUDED.route,
				diagnosis_icd10 = EXCLUDED.diagnosis_icd10,
				updated_at = EXCLUDED.updated_at
		`, rx.ID, rx.CaseID, rx.DrugName, rx.Dose, rx.Frequency, rx.Route, rx.DiagnosisICD10, rx.CreatedAt, rx.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert prescription: %w", err)
		}
	}

	if t.insurance != nil {
		ins := t.insurance
		_, err := tx.Exec(ctx, `
			INSERT INTO insurance (id, case_id, payer_name, member_id, group_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (case_id) DO UPDATE SET
				payer_name = EXCLUDED.payer_name,
				member_id = EXCLUDED.member_id,
				group_id = EXCLUDED.group_id,
				updated_at = EXCLUDED.updated_at
		`, ins.ID, ins.CaseID, ins.PayerName, ins.MemberID, ins.GroupID, ins.CreatedAt, ins.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert insurance: %w", err)
		}
	}

	if t.financial != nil {
		fc := t.financial
		_, err := tx.Exec(ctx, `
			INSERT INTO financial_clearances (id, case_id, benefits_verified_at, cost_estimate_amount, patient_acknowledged_cost, assistance_program, cleared_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (case_id) DO UPDATE SET
				benefits_verified_at = EXCLUDED.benefits_verified_at,
				cost_estimate_amount = EXCLUDED.cost_estimate_amount,
				patient_acknowledged_cost = EXCLUDED.patient_acknowledged_cost,
				assistance_program = EXCLUDED.assistance_program,
				cleared_at = EXCLUDED.cleared_at,
				updated_at = EXCLUDED.updated_at
		`, fc.ID, fc.CaseID, fc.BenefitsVerifiedAt, fc.CostEstimateAmount, fc.PatientAcknowledgedCost, fc.AssistanceProgram, fc.ClearedAt, fc.CreatedAt, fc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert financial clearance: %w", err)
		}
	}

	if t.schedule != nil {
		sc := t.schedule
		_, err := tx.Exec(ctx, `
			INSERT INTO schedules (id, case_id, date_time, location, duration_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (case_id) DO UPDATE SET
				date_time = EXCLUDED.date_time,
				location = EXCLUDED.location,
				duration_minutes = EXCLUDED.duration_minutes,
				updated_at = EXCLUDED.updated_at
		`, sc.ID, sc.CaseID, sc.DateTime, sc.Location, sc.DurationMinutes, sc.CreatedAt, sc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert schedule: %w", err)
		}
	}

	if t.pharmacy != nil {
		po := t.pharmacy
		_, err := tx.Exec(ctx, `
			INSERT INTO pharmacy_orders (id, case_id, pushed_at, ship_to, requested_arrival_date, fulfillment_status, pharmacy_notes, ndc, lot, expiration_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (case_id) DO UPDATE SET
				pushed_at = EXCLUDED.pushed_at,
				ship_to = EXCLUDED.ship_to,
				requested_arrival_date = EXCLUDED.requested_arrival_date,
				fulfillment_status = EXCLUDED.fulfillment_status,
				pharmacy_notes = EXCLUDED.pharmacy_notes,
				ndc = EXCLUDED.ndc,
				lot = EXCLUDED.lot,
				expiration_date = EXCLUDED.expiration_date,
				updated_at = EXCLUDED.updated_at
		`, po.ID, po.CaseID, po.PushedAt, po.ShipTo, po.RequestedArrivalDate, po.FulfillmentStatus, po.PharmacyNotes, po.NDC, po.Lot, po.ExpirationDate, po.CreatedAt, po.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert pharmacy order: %w", err)
		}
	}

	for _, task := range t.taskPuts {
		_, err := tx.Exec(ctx, `
			INSERT INTO tasks (id, case_id, type, status, owner_user_id, due_at, payload_json, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				owner_user_id = EXCLUDED.owner_user_id,
				due_at = EXCLUDED.due_at,
				payload_json = EXCLUDED.payload_json,
				updated_at = EXCLUDED.updated_at
		`, task.ID, task.CaseID, task.Type, task.Status, task.OwnerUserID, task.DueAt, task.PayloadJSON, task.CreatedAt, task.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert task: %w", err)
		}
	}

	for _, doc := range t.newDocs {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (id, case_id, file_name, file_type, storage_url, uploaded_by_user_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, doc.ID, doc.CaseID, doc.FileName, doc.FileType, doc.StorageURL, doc.UploadedByUserID, doc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}

	for _, ev := range t.events {
		if err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}
	return nil
}
