package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjcobb-blip/Infusion/internal/domain/caseflow"
	"github.com/tjcobb-blip/Infusion/internal/infrastructure/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := caseflow.NewEngine(memory.NewStore(), nil)
	h := NewCaseHandler(engine, nil, nil, nil)

	r := chi.NewRouter()
	r.Mount("/cases", h.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createCase(t *testing.T, srv *httptest.Server) caseflow.Case {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/cases", CreateCaseRequest{
		ProviderOrgID: uuid.New(),
		Patient:       &PatientRequest{FirstName: "John", LastName: "Doe", DOB: "1968-03-14"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create case status = %d", resp.StatusCode)
	}
	return decode[caseflow.Case](t, resp)
}

func TestCreateCaseEndpoint(t *testing.T) {
	srv := newTestServer(t)

	c := createCase(t, srv)
	if c.Status != caseflow.StatusReferralReceived {
		t.Fatalf("status = %s", c.Status)
	}
	if c.PatientID == nil {
		t.Fatal("patient should be linked")
	}
}

func TestCreateCaseRejectsMissingProvider(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/cases", CreateCaseRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateCaseRejectsBadDOB(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/cases", CreateCaseRequest{
		ProviderOrgID: uuid.New(),
		Patient:       &PatientRequest{FirstName: "John", LastName: "Doe", DOB: "03/14/1968"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGetCaseNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/cases/%s", srv.URL, uuid.New()), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/cases/not-a-uuid", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdvanceEndpoint(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	statusURL := fmt.Sprintf("%s/cases/%s/status", srv.URL, c.ID)

	// Skipping a stage is a conflict.
	resp := doJSON(t, http.MethodPost, statusURL, AdvanceRequest{Status: caseflow.StatusBenefitsInvestigation})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("skip status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	// An unknown status never reaches the engine.
	resp = doJSON(t, http.MethodPost, statusURL, map[string]string{"status": "LIMBO"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, statusURL, AdvanceRequest{Status: caseflow.StatusClinicalCompletenessCheck})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance status = %d, want 200", resp.StatusCode)
	}
	updated := decode[caseflow.Case](t, resp)
	if updated.Status != caseflow.StatusClinicalCompletenessCheck {
		t.Fatalf("status = %s", updated.Status)
	}
}

func TestAdvanceBlockedReturnsBlockerList(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	statusURL := fmt.Sprintf("%s/cases/%s/status", srv.URL, c.ID)

	resp := doJSON(t, http.MethodPost, statusURL, AdvanceRequest{Status: caseflow.StatusClinicalCompletenessCheck})
	resp.Body.Close()

	// Unclaimed past intake: 422 with the named blocker.
	resp = doJSON(t, http.MethodPost, statusURL, AdvanceRequest{Status: caseflow.StatusBenefitsInvestigation})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	body := decode[struct {
		Error    string             `json:"error"`
		Blockers []caseflow.Blocker `json:"blockers"`
	}](t, resp)
	if len(body.Blockers) != 1 || body.Blockers[0].Type != caseflow.BlockerCaseUnclaimed {
		t.Fatalf("blockers = %v", body.Blockers)
	}
}

func TestClaimEndpoint(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	claimURL := fmt.Sprintf("%s/cases/%s/claim", srv.URL, c.ID)

	resp := doJSON(t, http.MethodPost, claimURL, ClaimRequest{InfusionOrgID: uuid.New()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, claimURL, ClaimRequest{InfusionOrgID: uuid.New()})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second claim status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	// No org in body and none on the request context.
	resp = doJSON(t, http.MethodPost, claimURL, ClaimRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing org status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestFinancialEndpointConflicts(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	finURL := fmt.Sprintf("%s/cases/%s/financial", srv.URL, c.ID)

	resp := doJSON(t, http.MethodPut, finURL, FinancialRequest{MarkCleared: true})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("clear without ack status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	ack := true
	resp = doJSON(t, http.MethodPut, finURL, FinancialRequest{
		PatientAcknowledgedCost: &ack,
		MarkCleared:             true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d, want 200", resp.StatusCode)
	}
	fc := decode[caseflow.FinancialClearance](t, resp)
	if fc.ClearedAt == nil {
		t.Fatal("cleared_at should be set")
	}
}

func TestPharmacyEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	base := fmt.Sprintf("%s/cases/%s", srv.URL, c.ID)

	// Fulfillment before push is a conflict.
	fs := caseflow.FulfillmentInProgress
	resp := doJSON(t, http.MethodPut, base+"/pharmacy", FulfillmentRequest{FulfillmentStatus: &fs})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pre-push fulfillment status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base+"/pharmacy/push", PharmacyPushRequest{ShipTo: "Site A"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("push status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base+"/pharmacy/push", PharmacyPushRequest{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second push status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, base+"/pharmacy", FulfillmentRequest{FulfillmentStatus: &fs})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fulfillment status = %d, want 200", resp.StatusCode)
	}
	po := decode[caseflow.PharmacyOrder](t, resp)
	if po.FulfillmentStatus != caseflow.FulfillmentInProgress {
		t.Fatalf("fulfillment = %s", po.FulfillmentStatus)
	}
}

func TestTimelineAndBlockersEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	base := fmt.Sprintf("%s/cases/%s", srv.URL, c.ID)

	resp := doJSON(t, http.MethodGet, base+"/timeline", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("timeline status = %d", resp.StatusCode)
	}
	events := decode[[]caseflow.TimelineEvent](t, resp)
	if len(events) != 1 || events[0].EventType != caseflow.EventCaseCreated {
		t.Fatalf("timeline = %v", events)
	}

	// A fresh case has no gating blockers, only workup advisories.
	resp = doJSON(t, http.MethodGet, base+"/blockers", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("blockers status = %d", resp.StatusCode)
	}
	blockers := decode[[]caseflow.Blocker](t, resp)
	for _, b := range blockers {
		if b.Type != caseflow.BlockerMissingPrescription && b.Type != caseflow.BlockerMissingInsurance {
			t.Fatalf("unexpected blocker %v", b)
		}
	}
}

func TestListEndpointFilters(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/cases?provider_org_id="+c.ProviderOrgID.String(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	cases := decode[[]caseflow.Case](t, resp)
	if len(cases) != 1 || cases[0].ID != c.ID {
		t.Fatalf("list = %v", cases)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/cases?status=LIMBO", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown status filter = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/cases?provider_org_id="+uuid.NewString(), nil)
	cases = decode[[]caseflow.Case](t, resp)
	if len(cases) != 0 {
		t.Fatalf("expected empty list, got %v", cases)
	}
}

func TestTaskEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	base := fmt.Sprintf("%s/cases/%s/tasks", srv.URL, c.ID)

	resp := doJSON(t, http.MethodPost, base, TaskRequest{Type: caseflow.TaskFollowUp})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task status = %d", resp.StatusCode)
	}
	task := decode[caseflow.Task](t, resp)

	done := caseflow.TaskDone
	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/%s", base, task.ID), TaskUpdateRequest{Status: &done})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update task status = %d", resp.StatusCode)
	}
	updated := decode[caseflow.Task](t, resp)
	if updated.Status != caseflow.TaskDone {
		t.Fatalf("task status = %s", updated.Status)
	}

	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/%s", base, uuid.New()), TaskUpdateRequest{Status: &done})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown task status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWelcomeCallEndpoint(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	wcURL := fmt.Sprintf("%s/cases/%s/welcome-call", srv.URL, c.ID)

	resp := doJSON(t, http.MethodPut, wcURL, WelcomeCallRequest{
		Reached:  false,
		Outcome:  caseflow.OutcomeVoicemail,
		MarkDone: true,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unreached completion status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, wcURL, WelcomeCallRequest{
		Reached:  true,
		Outcome:  caseflow.OutcomeCompleted,
		MarkDone: true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("completion status = %d, want 200", resp.StatusCode)
	}
	task := decode[caseflow.Task](t, resp)
	if task.Status != caseflow.TaskDone {
		t.Fatalf("task status = %s", task.Status)
	}
}
