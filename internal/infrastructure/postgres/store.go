// Package postgres provides PostgreSQL infrastructure components.
// The case store serializes writers per case with a row lock and commits the
// mutation, its timeline event, and the outbox entry in one transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tjcobb-blip/Infusion/internal/domain/caseflow"
)

// TopicCaseEvents is the outbox destination for case timeline events.
const TopicCaseEvents = "referral.case.events"

// Store is the pgx-backed caseflow.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ caseflow.Store = (*Store)(nil)

// NewStore creates a new case store.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// CreateCase inserts the case, its optional patient, and the creation event
// atomically.
func (s *Store) CreateCase(ctx context.Context, c caseflow.Case, patient *caseflow.Patient, ev caseflow.TimelineEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if patient != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO patients (id, first_name, last_name, dob, phone, email, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, patient.ID, patient.FirstName, patient.LastName, patient.DOB, patient.Phone, patient.Email, patient.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert patient: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cases (id, patient_id, provider_org_id, infusion_org_id, status, created_by_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.PatientID, c.ProviderOrgID, c.InfusionOrgID, c.Status, c.CreatedByUserID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}

	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Update locks the case row, loads the snapshot, runs fn, and flushes staged
// writes plus events in the same transaction.
func (s *Store) Update(ctx context.Context, caseID uuid.UUID, fn func(caseflow.Txn) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	snap, err := loadSnapshot(ctx, tx, caseID, true)
	if err != nil {
		return err
	}

	t := &txn{snap: snap}
	if err := fn(t); err != nil {
		return err
	}
	if err := t.flush(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View returns a detached snapshot without locking.
func (s *Store) View(ctx context.Context, caseID uuid.UUID) (*caseflow.Snapshot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	snap, err := loadSnapshot(ctx, tx, caseID, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

// Timeline returns the case's events ordered by creation time.
func (s *Store) Timeline(ctx context.Context, caseID uuid.UUID) ([]caseflow.TimelineEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, case_id, event_type, actor_user_id, metadata_json, created_at
		FROM timeline_events
		WHERE case_id = $1
		ORDER BY created_at ASC
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []caseflow.TimelineEvent
	for rows.Next() {
		var ev caseflow.TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.CaseID, &ev.EventType, &ev.ActorUserID, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListCases returns cases matching the filter, newest first.
func (s *Store) ListCases(ctx context.Context, f caseflow.ListFilter) ([]caseflow.Case, error) {
	query := `
		SELECT id, patient_id, provider_org_id, infusion_org_id, status, created_by_user_id, created_at, updated_at
		FROM cases
		WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != nil {
		query += " AND status = " + arg(*f.Status)
	}
	if f.ProviderOrgID != nil {
		query += " AND provider_org_id = " + arg(*f.ProviderOrgID)
	}
	if f.InfusionOrgID != nil {
		if f.IncludeUnclaimed {
			query += " AND (infusion_org_id = " + arg(*f.InfusionOrgID) + " OR infusion_org_id IS NULL)"
		} else {
			query += " AND infusion_org_id = " + arg(*f.InfusionOrgID)
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []caseflow.Case
	for rows.Next() {
		var c caseflow.Case
		if err := rows.Scan(&c.ID, &c.PatientID, &c.ProviderOrgID, &c.InfusionOrgID, &c.Status, &c.CreatedByUserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func loadSnapshot(ctx context.Context, tx pgx.Tx, caseID uuid.UUID, forUpdate bool) (*caseflow.Snapshot, error) {
	caseQuery := `
		SELECT id, patient_id, provider_org_id, infusion_org_id, status, created_by_user_id, created_at, updated_at
		FROM cases
		WHERE id = $1`
	if forUpdate {
		caseQuery += " FOR UPDATE"
	}

	snap := &caseflow.Snapshot{}
	err := tx.QueryRow(ctx, caseQuery, caseID).Scan(
		&snap.Case.ID, &snap.Case.PatientID, &snap.Case.ProviderOrgID, &snap.Case.InfusionOrgID,
		&snap.Case.Status, &snap.Case.CreatedByUserID, &snap.Case.CreatedAt, &snap.Case.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caseflow.ErrCaseNotFound
		}
		return nil, fmt.Errorf("load case: %w", err)
	}

	if snap.Case.PatientID != nil {
		var p caseflow.Patient
		err = tx.QueryRow(ctx, `
			SELECT id, first_name, last_name, dob, phone, email, created_at
			FROM patients WHERE id = $1
		`, *snap.Case.PatientID).Scan(&p.ID, &p.FirstName, &p.LastName, &p.DOB, &p.Phone, &p.Email, &p.CreatedAt)
		if err == nil {
			snap.Patient = &p
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load patient: %w", err)
		}
	}

	var rx caseflow.Prescription
	err = tx.QueryRow(ctx, `
		SELECT id, case_id, drug_name, dose, frequency, route, diagnosis_icd10, created_at, updated_at
		FROM prescriptions WHERE case_id = $1
	`, caseID).Scan(&rx.ID, &rx.CaseID, &rx.DrugName, &rx.Dose, &rx.Frequency, &rx.Route, &rx.DiagnosisICD10, &rx.CreatedAt, &rx.UpdatedAt)
	if err == nil {
		snap.Prescription = &rx
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load prescription: %w", err)
	}

	var ins caseflow.Insurance
	err = tx.QueryRow(ctx, `
		SELECT id, case_id, payer_name, member_id, group_id, created_at, updated_at
		FROM insurance WHERE case_id = $1
	`, caseID).Scan(&ins.ID, &ins.CaseID, &ins.PayerName, &ins.MemberID, &ins.GroupID, &ins.CreatedAt, &ins.UpdatedAt)
	if err == nil {
		snap.Insurance = &ins
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load insurance: %w", err)
	}

	var fc caseflow.FinancialClearance
	err = tx.QueryRow(ctx, `
		SELECT id, case_id, benefits_verified_at, cost_estimate_amount, patient_acknowledged_cost, assistance_program, cleared_at, created_at, updated_at
		FROM financial_clearances WHERE case_id = $1
	`, caseID).Scan(&fc.ID, &fc.CaseID, &fc.BenefitsVerifiedAt, &fc.CostEstimateAmount, &fc.PatientAcknowledgedCost, &fc.AssistanceProgram, &fc.ClearedAt, &fc.CreatedAt, &fc.UpdatedAt)
	if err == nil {
		snap.Financial = &fc
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load financial clearance: %w", err)
	}

	var sc caseflow.Schedule
	err = tx.QueryRow(ctx, `
		SELECT id, case_id, date_time, location, duration_minutes, created_at, updated_at
		FROM schedules WHERE case_id = $1
	`, caseID).Scan(&sc.ID, &sc.CaseID, &sc.DateTime, &sc.Location, &sc.DurationMinutes, &sc.CreatedAt, &sc.UpdatedAt)
	if err == nil {
		snap.Schedule = &sc
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	var po caseflow.PharmacyOrder
	err = tx.QueryRow(ctx, `
		SELECT id, case_id, pushed_at, ship_to, requested_arrival_date, fulfillment_status, pharmacy_notes, ndc, lot, expiration_date, created_at, updated_at
		FROM pharmacy_orders WHERE case_id = $1
	`, caseID).Scan(&po.ID, &po.CaseID, &po.PushedAt, &po.ShipTo, &po.RequestedArrivalDate, &po.FulfillmentStatus, &po.PharmacyNotes, &po.NDC, &po.Lot, &po.ExpirationDate, &po.CreatedAt, &po.UpdatedAt)
	if err == nil {
		snap.Pharmacy = &po
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load pharmacy order: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, case_id, type, status, owner_user_id, due_at, payload_json, created_at, updated_at
		FROM tasks WHERE case_id = $1
		ORDER BY created_at ASC
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t caseflow.Task
		if err := rows.Scan(&t.ID, &t.CaseID, &t.Type, &t.Status, &t.OwnerUserID, &t.DueAt, &t.PayloadJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		snap.Tasks = append(snap.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	docRows, err := tx.Query(ctx, `
		SELECT id, case_id, file_name, file_type, storage_url, uploaded_by_user_id, created_at
		FROM documents WHERE case_id = $1
		ORDER BY created_at ASC
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer docRows.Close()
	for docRows.Next() {
		var d caseflow.Document
		if err := docRows.Scan(&d.ID, &d.CaseID, &d.FileName, &d.FileType, &d.StorageURL, &d.UploadedByUserID, &d.CreatedAt); err != nil {
			return nil, err
		}
		snap.Documents = append(snap.Documents, d)
	}
	return snap, docRows.Err()
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev caseflow.TimelineEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO timeline_events (id, case_id, event_type, actor_user_id, metadata_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.ID, ev.CaseID, ev.EventType, ev.ActorUserID, ev.Metadata, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return WriteEntry(ctx, tx, &OutboxEntry{
		AggregateID:   ev.CaseID.String(),
		AggregateType: "Case",
		EventType:     string(ev.EventType),
		Payload:       payload,
		KafkaTopic:    TopicCaseEvents,
		KafkaKey:      ev.CaseID.String(),
	})
}
