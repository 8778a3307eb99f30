// Package handlers provides HTTP handlers for the referral API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tjcobb-blip/Infusion/internal/api/middleware"
	"github.com/tjcobb-blip/Infusion/internal/domain/caseflow"
	"github.com/tjcobb-blip/Infusion/internal/observability/metrics"
	"github.com/tjcobb-blip/Infusion/pkg/idempotency"
)

// CaseHandler handles referral case endpoints
type CaseHandler struct {
	engine  *caseflow.Engine
	inbox   *idempotency.Inbox
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCaseHandler creates a new handler. inbox and m may be nil; creation
// idempotency and counters are skipped when they are.
func NewCaseHandler(engine *caseflow.Engine, inbox *idempotency.Inbox, m *metrics.Metrics, logger *zap.Logger) *CaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseHandler{
		engine:  engine,
		inbox:   inbox,
		metrics: m,
		logger:  logger,
	}
}

// Routes returns the handler routes
func (h *CaseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/timeline", h.Timeline)
	r.Get("/{id}/blockers", h.Blockers)
	r.Post("/{id}/status", h.Advance)
	r.Post("/{id}/claim", h.Claim)
	r.Put("/{id}/financial", h.Financial)
	r.Put("/{id}/welcome-call", h.WelcomeCall)
	r.Put("/{id}/schedule", h.Schedule)
	r.Post("/{id}/pharmacy/push", h.PushPharmacy)
	r.Put("/{id}/pharmacy", h.Fulfillment)
	r.Put("/{id}/prescription", h.Prescription)
	r.Put("/{id}/insurance", h.Insurance)
	r.Post("/{id}/patient", h.AttachPatient)
	r.Post("/{id}/documents", h.AddDocument)
	r.Post("/{id}/tasks", h.CreateTask)
	r.Patch("/{id}/tasks/{taskID}", h.UpdateTask)
	return r
}

// PatientRequest carries patient demographics
type PatientRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

func (p *PatientRequest) toInput() (*caseflow.PatientInput, error) {
	in := &caseflow.PatientInput{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Email:     p.Email,
	}
	if p.DOB != "" {
		dob, err := time.Parse("2006-01-02", p.DOB)
		if err != nil {
			return nil, &caseflow.ValidationError{Field: "dob", Reason: "expected YYYY-MM-DD"}
		}
		in.DOB = &dob
	}
	return in, nil
}

// CreateCaseRequest is the request body for opening a referral
type CreateCaseRequest struct {
	ProviderOrgID uuid.UUID       `json:"provider_org_id"`
	Patient       *PatientRequest `json:"patient,omitempty"`
}

// Create handles POST /cases
func (h *CaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("case-handler")
	ctx, span := tracer.Start(ctx, "create_case")
	defer span.End()

	var req CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProviderOrgID == uuid.Nil {
		h.jsonError(w, "provider_org_id is required", http.StatusBadRequest)
		return
	}

	in := caseflow.CreateCaseInput{
		ProviderOrgID:   req.ProviderOrgID,
		CreatedByUserID: middleware.GetActorID(ctx),
	}
	if req.Patient != nil {
		patient, err := req.Patient.toInput()
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		in.Patient = patient
	}

	create := func() (*caseflow.Case, error) {
		c, err := h.engine.CreateCase(ctx, in)
		if err == nil && h.metrics != nil {
			h.metrics.CasesCreated.Inc()
		}
		return c, err
	}

	// Replaying a creation with the same Idempotency-Key returns the
	// original case instead of opening a duplicate. Without the header, a
	// key derived from the provider org and patient catches accidental
	// double submissions.
	key := r.Header.Get("Idempotency-Key")
	if key == "" && req.Patient != nil {
		patientRef := req.Patient.FirstName + " " + req.Patient.LastName + "|" + req.Patient.DOB
		key = idempotency.GenerateKey(req.ProviderOrgID.String(), patientRef, time.Now())
	}
	if key != "" && h.inbox != nil {
		body, _ := json.Marshal(req)
		result, err := h.inbox.Process(ctx, key, "create_case", body,
			func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
				c, err := create()
				if err != nil {
					return nil, err
				}
				return json.Marshal(c)
			})
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		span.SetAttributes(attribute.Bool("idempotent_replay", !result.IsNew))
		status := http.StatusCreated
		if !result.IsNew {
			status = http.StatusOK
		}
		h.writeJSON(w, status, json.RawMessage(result.Result))
		return
	}

	c, err := create()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	span.SetAttributes(attribute.String("case_id", c.ID.String()))
	h.logger.Info("case created",
		zap.String("case_id", c.ID.String()),
		zap.String("request_id", middleware.GetRequestID(ctx)))
	h.writeJSON(w, http.StatusCreated, c)
}

// List handles GET /cases
func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var f caseflow.ListFilter

	if v := r.URL.Query().Get("status"); v != "" {
		st := caseflow.Status(v)
		if !st.Valid() {
			h.jsonError(w, "unknown status", http.StatusBadRequest)
			return
		}
		f.Status = &st
	}
	if v := r.URL.Query().Get("provider_org_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.jsonError(w, "invalid provider_org_id", http.StatusBadRequest)
			return
		}
		f.ProviderOrgID = &id
	}
	if v := r.URL.Query().Get("infusion_org_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.jsonError(w, "invalid infusion_org_id", http.StatusBadRequest)
			return
		}
		f.InfusionOrgID = &id
		f.IncludeUnclaimed = r.URL.Query().Get("include_unclaimed") == "true"
	}

	cases, err := h.engine.ListCases(ctx, f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if cases == nil {
		cases = []caseflow.Case{}
	}
	h.writeJSON(w, http.StatusOK, cases)
}

// Get handles GET /cases/{id}
func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	snap, err := h.engine.GetCase(r.Context(), caseID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// Timeline handles GET /cases/{id}/timeline
func (h *CaseHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	events, err := h.engine.Timeline(r.Context(), caseID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []caseflow.TimelineEvent{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

// Blockers handles GET /cases/{id}/blockers
func (h *CaseHandler) Blockers(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	blockers, err := h.engine.Blockers(r.Context(), caseID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if blockers == nil {
		blockers = []caseflow.Blocker{}
	}
	h.writeJSON(w, http.StatusOK, blockers)
}

// AdvanceRequest names the target status
type AdvanceRequest struct {
	Status caseflow.Status `json:"status"`
}

// Advance handles POST /cases/{id}/status
func (h *CaseHandler) Advance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Status.Valid() {
		h.jsonError(w, "unknown status", http.StatusBadRequest)
		return
	}

	c, err := h.engine.AdvanceStatus(ctx, caseID, req.Status, middleware.GetActorID(ctx))
	if err != nil {
		var blocked *caseflow.BlockersError
		if errors.As(err, &blocked) && h.metrics != nil {
			for _, b := range blocked.Blockers {
				h.metrics.BlockedTransitions.WithLabelValues(string(b.Type)).Inc()
			}
		}
		h.writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.StatusTransitions.WithLabelValues(string(c.Status)).Inc()
	}
	h.logger.Info("case advanced",
		zap.String("case_id", caseID.String()),
		zap.String("status", string(c.Status)))
	h.writeJSON(w, http.StatusOK, c)
}

// ClaimRequest names the claiming infusion organization
type ClaimRequest struct {
	InfusionOrgID uuid.UUID `json:"infusion_org_id"`
}

// Claim handles POST /cases/{id}/claim
func (h *CaseHandler) Claim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	orgID := req.InfusionOrgID
	if orgID == uuid.Nil {
		orgID = middleware.GetOrgID(ctx)
	}
	if orgID == uuid.Nil {
		h.jsonError(w, "infusion_org_id is required", http.StatusBadRequest)
		return
	}

	c, err := h.engine.ClaimCase(ctx, caseID, orgID, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CasesClaimed.Inc()
	}
	h.writeJSON(w, http.StatusOK, c)
}

// FinancialRequest is the request body for financial clearance updates
type FinancialRequest struct {
	CostEstimateAmount      *float64 `json:"cost_estimate_amount,omitempty"`
	PatientAcknowledgedCost *bool    `json:"patient_acknowledged_cost,omitempty"`
	AssistanceProgram       *string  `json:"assistance_program,omitempty"`
	MarkCleared             bool     `json:"mark_cleared,omitempty"`
}

// Financial handles PUT /cases/{id}/financial
func (h *CaseHandler) Financial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req FinancialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	fc, err := h.engine.UpsertFinancial(ctx, caseID, caseflow.FinancialUpdate{
		CostEstimateAmount:      req.CostEstimateAmount,
		PatientAcknowledgedCost: req.PatientAcknowledgedCost,
		AssistanceProgram:       req.AssistanceProgram,
		MarkCleared:             req.MarkCleared,
	}, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, fc)
}

// WelcomeCallRequest is the request body for welcome call updates
type WelcomeCallRequest struct {
	Reached          bool   `json:"reached"`
	Outcome          string `json:"outcome,omitempty"`
	PatientQuestions string `json:"patient_questions,omitempty"`
	NextSteps        string `json:"next_steps,omitempty"`
	MarkDone         bool   `json:"mark_done,omitempty"`
}

// WelcomeCall handles PUT /cases/{id}/welcome-call
func (h *CaseHandler) WelcomeCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req WelcomeCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	task, err := h.engine.UpsertWelcomeCall(ctx, caseID, caseflow.WelcomeCallPayload{
		Reached:          req.Reached,
		Outcome:          req.Outcome,
		PatientQuestions: req.PatientQuestions,
		NextSteps:        req.NextSteps,
	}, req.MarkDone, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// ScheduleRequest is the request body for setting the appointment
type ScheduleRequest struct {
	DateTime        time.Time `json:"date_time"`
	Location        string    `json:"location,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
}

// Schedule handles PUT /cases/{id}/schedule
func (h *CaseHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sc, err := h.engine.SetSchedule(ctx, caseID, caseflow.ScheduleInput{
		DateTime:        req.DateTime,
		Location:        req.Location,
		DurationMinutes: req.DurationMinutes,
	}, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sc)
}

// PharmacyPushRequest is the request body for pushing the order
type PharmacyPushRequest struct {
	ShipTo               string     `json:"ship_to,omitempty"`
	RequestedArrivalDate *time.Time `json:"requested_arrival_date,omitempty"`
	PharmacyNotes        string     `json:"pharmacy_notes,omitempty"`
}

// PushPharmacy handles POST /cases/{id}/pharmacy/push
func (h *CaseHandler) PushPharmacy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req PharmacyPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	po, err := h.engine.PushPharmacy(ctx, caseID, caseflow.PharmacyPushInput{
		ShipTo:               req.ShipTo,
		RequestedArrivalDate: req.RequestedArrivalDate,
		PharmacyNotes:        req.PharmacyNotes,
	}, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PharmacyPushes.Inc()
	}
	h.writeJSON(w, http.StatusCreated, po)
}

// FulfillmentRequest is the request body for fulfillment progress
type FulfillmentRequest struct {
	FulfillmentStatus *caseflow.FulfillmentStatus `json:"fulfillment_status,omitempty"`
	NDC               *string                     `json:"ndc,omitempty"`
	Lot               *string                     `json:"lot,omitempty"`
	ExpirationDate    *time.Time                  `json:"expiration_date,omitempty"`
	PharmacyNotes     *string                     `json:"pharmacy_notes,omitempty"`
}

// Fulfillment handles PUT /cases/{id}/pharmacy
func (h *CaseHandler) Fulfillment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req FulfillmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	po, err := h.engine.UpdateFulfillment(ctx, caseID, caseflow.PharmacyOrderUpdate{
		FulfillmentStatus: req.FulfillmentStatus,
		NDC:               req.NDC,
		Lot:               req.Lot,
		ExpirationDate:    req.ExpirationDate,
		PharmacyNotes:     req.PharmacyNotes,
	}, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, po)
}

// PrescriptionRequest is the request body for prescription updates
type PrescriptionRequest struct {
	DrugName       *string `json:"drug_name,omitempty"`
	Dose           *string `json:"dose,omitempty"`
	Frequency      *string `json:"frequency,omitempty"`
	Route          *string `json:"route,omitempty"`
	DiagnosisICD10 *string `json:"diagnosis_icd10,omitempty"`
}

// Prescription handles PUT /cases/{id}/prescription
func (h *CaseHandler) Prescription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req PrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rx, err := h.engine.UpsertPrescription(ctx, caseID, caseflow.PrescriptionUpdate{
		DrugName:       req.DrugName,
		Dose:           req.Dose,
		Frequency:      req.Frequency,
		Route:          req.Route,
		DiagnosisICD10: req.DiagnosisICD10,
	}, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rx)
}

// InsuranceRequest is the request body for insurance updates
type InsuranceRequest struct {
	PayerName *string `json:"payer_name,omitempty"`
	MemberID  *string `json:"member_id,omitempty"`
	GroupID   *string `json:"group_id,omitempty"`
}

// Insurance handles PUT /cases/{id}/insurance
func (h *CaseHandler) Insurance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req InsuranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ins, err := h.engine.UpsertInsurance(ctx, caseID, caseflow.InsuranceUpdate{
		PayerName: req.PayerName,
		MemberID:  req.MemberID,
		GroupID:   req.GroupID,
	}, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ins)
}

// AttachPatient handles POST /cases/{id}/patient
func (h *CaseHandler) AttachPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req PatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.engine.AttachPatient(ctx, caseID, *in, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// DocumentRequest is the request body for recording an upload
type DocumentRequest struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type,omitempty"`
}

// AddDocument handles POST /cases/{id}/documents
func (h *CaseHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		h.jsonError(w, "file_name is required", http.StatusBadRequest)
		return
	}

	doc, err := h.engine.AddDocument(ctx, caseID, req.FileName, req.FileType, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, doc)
}

// TaskRequest is the request body for creating a task
type TaskRequest struct {
	Type        caseflow.TaskType `json:"type"`
	OwnerUserID *uuid.UUID        `json:"owner_user_id,omitempty"`
	DueAt       *time.Time        `json:"due_at,omitempty"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
}

// CreateTask handles POST /cases/{id}/tasks
func (h *CaseHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	task, err := h.engine.CreateTask(ctx, caseID, caseflow.TaskInput{
		Type:        req.Type,
		OwnerUserID: req.OwnerUserID,
		DueAt:       req.DueAt,
		PayloadJSON: req.Payload,
	}, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, task)
}

// TaskUpdateRequest is the request body for updating a task
type TaskUpdateRequest struct {
	Status      *caseflow.TaskStatus `json:"status,omitempty"`
	OwnerUserID *uuid.UUID           `json:"owner_user_id,omitempty"`
	DueAt       *time.Time           `json:"due_at,omitempty"`
	Payload     json.RawMessage      `json:"payload,omitempty"`
}

// UpdateTask handles PATCH /cases/{id}/tasks/{taskID}
func (h *CaseHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		h.jsonError(w, "invalid task id", http.StatusBadRequest)
		return
	}

	var req TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	task, err := h.engine.UpdateTask(ctx, caseID, taskID, caseflow.TaskUpdate{
		Status:      req.Status,
		OwnerUserID: req.OwnerUserID,
		DueAt:       req.DueAt,
		PayloadJSON: req.Payload,
	}, middleware.GetActorID(ctx))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

func (h *CaseHandler) caseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "invalid case id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *CaseHandler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		validation  *caseflow.ValidationError
		transition  *caseflow.InvalidTransitionError
		fulfillment *caseflow.InvalidFulfillmentError
		blocked     *caseflow.BlockersError
	)

	switch {
	case errors.Is(err, caseflow.ErrCaseNotFound), errors.Is(err, caseflow.ErrTaskNotFound):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &validation):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &blocked):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "transition blocked",
			"blockers": blocked.Blockers,
		})
	case errors.As(err, &transition), errors.As(err, &fulfillment),
		errors.Is(err, caseflow.ErrAlreadyClaimed),
		errors.Is(err, caseflow.ErrAlreadyPushed),
		errors.Is(err, caseflow.ErrNotYetPushed),
		errors.Is(err, caseflow.ErrClearanceRequiresAcknowledgement),
		errors.Is(err, caseflow.ErrWelcomeCallNotReached):
		h.jsonError(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *CaseHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *CaseHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
