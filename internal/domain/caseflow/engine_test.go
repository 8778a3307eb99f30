package caseflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tjcobb-blip/Infusion/internal/domain/caseflow"
	"github.com/tjcobb-blip/Infusion/internal/infrastructure/memory"
)

func newTestEngine(t *testing.T) (*caseflow.Engine, *caseflow.Case) {
	t.Helper()
	engine := caseflow.NewEngine(memory.NewStore(), nil)

	c, err := engine.CreateCase(context.Background(), caseflow.CreateCaseInput{
		ProviderOrgID:   uuid.New(),
		CreatedByUserID: uuid.New(),
		Patient: &caseflow.PatientInput{
			FirstName: "John",
			LastName:  "Doe",
		},
	})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	return engine, c
}

func TestCreateCase(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	if c.Status != caseflow.StatusReferralReceived {
		t.Fatalf("new case status = %s, want REFERRAL_RECEIVED", c.Status)
	}
	if c.PatientID == nil {
		t.Fatal("patient should be linked")
	}

	events, err := engine.Timeline(ctx, c.ID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(events) != 1 || events[0].EventType != caseflow.EventCaseCreated {
		t.Fatalf("expected single CASE_CREATED event, got %v", events)
	}
}

func TestCreateCaseRequiresProviderOrg(t *testing.T) {
	engine := caseflow.NewEngine(memory.NewStore(), nil)
	_, err := engine.CreateCase(context.Background(), caseflow.CreateCaseInput{})
	var ve *caseflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAdvanceRejectsSkip(t *testing.T) {
	engine, c := newTestEngine(t)

	_, err := engine.AdvanceStatus(context.Background(), c.ID, caseflow.StatusBenefitsInvestigation, uuid.Nil)
	var ite *caseflow.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != caseflow.StatusReferralReceived || ite.To != caseflow.StatusBenefitsInvestigation {
		t.Fatalf("unexpected edge in error: %v", ite)
	}

	// Rejected transition must record nothing.
	events, _ := engine.Timeline(context.Background(), c.ID)
	if len(events) != 1 {
		t.Fatalf("failed advance must not append events, got %d", len(events))
	}
}

func TestAdvanceRefreshesUpdatedAt(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	time.Sleep(5 * time.Millisecond)
	updated, err := engine.AdvanceStatus(ctx, c.ID, caseflow.StatusClinicalCompletenessCheck, uuid.Nil)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !updated.UpdatedAt.After(c.UpdatedAt) {
		t.Fatalf("updated_at not refreshed: created %v, after advance %v", c.UpdatedAt, updated.UpdatedAt)
	}

	got, err := engine.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if !got.Case.UpdatedAt.Equal(updated.UpdatedAt) {
		t.Fatalf("stored updated_at %v disagrees with the returned case %v", got.Case.UpdatedAt, updated.UpdatedAt)
	}
}

func TestAdvanceBlockedByUnclaimed(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	// First hop is allowed unclaimed; the next one is not.
	if _, err := engine.AdvanceStatus(ctx, c.ID, caseflow.StatusClinicalCompletenessCheck, uuid.Nil); err != nil {
		t.Fatalf("advance to CLINICAL_COMPLETENESS_CHECK: %v", err)
	}

	_, err := engine.AdvanceStatus(ctx, c.ID, caseflow.StatusBenefitsInvestigation, uuid.Nil)
	var be *caseflow.BlockersError
	if !errors.As(err, &be) {
		t.Fatalf("expected BlockersError, got %v", err)
	}
	if len(be.Blockers) != 1 || be.Blockers[0].Type != caseflow.BlockerCaseUnclaimed {
		t.Fatalf("expected CASE_UNCLAIMED blocker, got %v", be.Blockers)
	}

	if _, err := engine.ClaimCase(ctx, c.ID, uuid.New(), uuid.Nil); err != nil {
		t.Fatalf("ClaimCase: %v", err)
	}
	if _, err := engine.AdvanceStatus(ctx, c.ID, caseflow.StatusBenefitsInvestigation, uuid.Nil); err != nil {
		t.Fatalf("advance after claim: %v", err)
	}
}

func TestDiscontinueSkipsBlockers(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	// Unclaimed and mid-pipeline: normal advancement is blocked, but the
	// discontinuation escape edge is not.
	if _, err := engine.AdvanceStatus(ctx, c.ID, caseflow.StatusClinicalCompletenessCheck, uuid.Nil); err != nil {
		t.Fatalf("advance: %v", err)
	}

	updated, err := engine.AdvanceStatus(ctx, c.ID, caseflow.StatusDiscontinued, uuid.Nil)
	if err != nil {
		t.Fatalf("discontinue: %v", err)
	}
	if updated.Status != caseflow.StatusDiscontinued {
		t.Fatalf("status = %s, want DISCONTINUED", updated.Status)
	}

	// No way out of DISCONTINUED.
	_, err = engine.AdvanceStatus(ctx, c.ID, caseflow.StatusBenefitsInvestigation, uuid.Nil)
	var ite *caseflow.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError out of DISCONTINUED, got %v", err)
	}
	_, err = engine.AdvanceStatus(ctx, c.ID, caseflow.StatusDiscontinued, uuid.Nil)
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError re-discontinuing, got %v", err)
	}
}

func TestClaimOnce(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	orgA := uuid.New()
	orgB := uuid.New()

	if _, err := engine.ClaimCase(ctx, c.ID, orgA, uuid.Nil); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := engine.ClaimCase(ctx, c.ID, orgB, uuid.Nil); !errors.Is(err, caseflow.ErrAlreadyClaimed) {
		t.Fatalf("second claim should fail with ErrAlreadyClaimed, got %v", err)
	}
	// Re-claiming by the same org is also rejected.
	if _, err := engine.ClaimCase(ctx, c.ID, orgA, uuid.Nil); !errors.Is(err, caseflow.ErrAlreadyClaimed) {
		t.Fatalf("repeat claim should fail with ErrAlreadyClaimed, got %v", err)
	}

	snap, err := engine.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if snap.Case.InfusionOrgID == nil || *snap.Case.InfusionOrgID != orgA {
		t.Fatal("winner's org should be recorded")
	}
}

func TestConcurrentClaimExactlyOneWinner(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	const claimers = 16
	var wg sync.WaitGroup
	errs := make([]error, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.ClaimCase(ctx, c.ID, uuid.New(), uuid.Nil)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, caseflow.ErrAlreadyClaimed) {
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one claim must win, got %d", wins)
	}

	events, _ := engine.Timeline(ctx, c.ID)
	var claimed int
	for _, ev := range events {
		if ev.EventType == caseflow.EventCaseClaimed {
			claimed++
		}
	}
	if claimed != 1 {
		t.Fatalf("exactly one CASE_CLAIMED event, got %d", claimed)
	}
}

func TestFinancialClearanceRules(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	amount := 1250.0
	fc, err := engine.UpsertFinancial(ctx, c.ID, caseflow.FinancialUpdate{
		CostEstimateAmount: &amount,
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("UpsertFinancial: %v", err)
	}
	if fc.BenefitsVerifiedAt == nil {
		t.Fatal("first write should stamp benefits_verified_at")
	}
	verifiedAt := *fc.BenefitsVerifiedAt

	// Clearing without acknowledgement is rejected.
	_, err = engine.UpsertFinancial(ctx, c.ID, caseflow.FinancialUpdate{MarkCleared: true}, uuid.Nil)
	if !errors.Is(err, caseflow.ErrClearanceRequiresAcknowledgement) {
		t.Fatalf("expected ErrClearanceRequiresAcknowledgement, got %v", err)
	}

	// Acknowledgement and clearing in one update is allowed.
	ack := true
	fc, err = engine.UpsertFinancial(ctx, c.ID, caseflow.FinancialUpdate{
		PatientAcknowledgedCost: &ack,
		MarkCleared:             true,
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("clear with ack: %v", err)
	}
	if !fc.Cleared() {
		t.Fatal("clearance should be recorded")
	}
	if !fc.BenefitsVerifiedAt.Equal(verifiedAt) {
		t.Fatal("benefits_verified_at must not change on later writes")
	}
	clearedAt := *fc.ClearedAt

	// Revoking acknowledgement after clearance is rejected.
	no := false
	_, err = engine.UpsertFinancial(ctx, c.ID, caseflow.FinancialUpdate{PatientAcknowledgedCost: &no}, uuid.Nil)
	var ve *caseflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError revoking ack, got %v", err)
	}

	// cleared_at is immutable on repeat clears.
	fc, err = engine.UpsertFinancial(ctx, c.ID, caseflow.FinancialUpdate{MarkCleared: true}, uuid.Nil)
	if err != nil {
		t.Fatalf("repeat clear: %v", err)
	}
	if !fc.ClearedAt.Equal(clearedAt) {
		t.Fatal("cleared_at must not change once set")
	}
}

func TestWelcomeCallRequiresReached(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.UpsertWelcomeCall(ctx, c.ID, caseflow.WelcomeCallPayload{
		Reached: false,
		Outcome: caseflow.OutcomeVoicemail,
	}, true, uuid.Nil)
	if !errors.Is(err, caseflow.ErrWelcomeCallNotReached) {
		t.Fatalf("expected ErrWelcomeCallNotReached, got %v", err)
	}

	// Recording an unsuccessful attempt without completing is fine.
	task, err := engine.UpsertWelcomeCall(ctx, c.ID, caseflow.WelcomeCallPayload{
		Reached: false,
		Outcome: caseflow.OutcomeNoAnswer,
	}, false, uuid.Nil)
	if err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if task.Status != caseflow.TaskPending {
		t.Fatalf("task status = %s, want PENDING", task.Status)
	}

	// A successful attempt completes the same task.
	done, err := engine.UpsertWelcomeCall(ctx, c.ID, caseflow.WelcomeCallPayload{
		Reached: true,
		Outcome: caseflow.OutcomeCompleted,
	}, true, uuid.Nil)
	if err != nil {
		t.Fatalf("complete call: %v", err)
	}
	if done.ID != task.ID {
		t.Fatal("attempts should update the same task")
	}
	if done.Status != caseflow.TaskDone {
		t.Fatalf("task status = %s, want DONE", done.Status)
	}
}

func TestWelcomeCallPayloadLockedAfterDone(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	done, err := engine.UpsertWelcomeCall(ctx, c.ID, caseflow.WelcomeCallPayload{
		Reached: true,
		Outcome: caseflow.OutcomeCompleted,
	}, true, uuid.Nil)
	if err != nil {
		t.Fatalf("complete call: %v", err)
	}

	// A completed call cannot be rewritten as unreached.
	_, err = engine.UpsertWelcomeCall(ctx, c.ID, caseflow.WelcomeCallPayload{
		Reached: false,
		Outcome: caseflow.OutcomeNoAnswer,
	}, false, uuid.Nil)
	var verr *caseflow.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("overwriting a completed call should fail validation, got %v", err)
	}

	raw, err := json.Marshal(caseflow.WelcomeCallPayload{
		Reached: false,
		Outcome: caseflow.OutcomeNoAnswer,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	_, err = engine.UpdateTask(ctx, c.ID, done.ID, caseflow.TaskUpdate{PayloadJSON: raw}, uuid.Nil)
	if !errors.As(err, &verr) {
		t.Fatalf("patching a completed call payload should fail validation, got %v", err)
	}

	snap, err := engine.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	task := snap.WelcomeCallTask()
	if task == nil || task.Status != caseflow.TaskDone {
		t.Fatal("completed welcome call task should remain DONE")
	}
	var payload caseflow.WelcomeCallPayload
	if err := json.Unmarshal(task.PayloadJSON, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !payload.Reached {
		t.Fatal("completed welcome call should still record the patient as reached")
	}
}

func TestSetScheduleReplacesInPlace(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.SetSchedule(ctx, c.ID, caseflow.ScheduleInput{}, uuid.Nil)
	var ve *caseflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("zero date_time should fail validation, got %v", err)
	}

	first, err := engine.SetSchedule(ctx, c.ID, caseflow.ScheduleInput{
		DateTime: time.Now().Add(72 * time.Hour),
		Location: "Riverside Infusion Center",
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}

	second, err := engine.SetSchedule(ctx, c.ID, caseflow.ScheduleInput{
		DateTime: time.Now().Add(96 * time.Hour),
		Location: "Downtown Clinic",
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("rescheduling must replace the single appointment, not add one")
	}
	if second.Location != "Downtown Clinic" {
		t.Fatalf("location = %q", second.Location)
	}
}

func TestPushPharmacyOnce(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	order, err := engine.PushPharmacy(ctx, c.ID, caseflow.PharmacyPushInput{ShipTo: "Site A"}, uuid.Nil)
	if err != nil {
		t.Fatalf("PushPharmacy: %v", err)
	}
	if order.PushedAt == nil {
		t.Fatal("pushed_at should be stamped")
	}
	if order.FulfillmentStatus != caseflow.FulfillmentNotStarted {
		t.Fatalf("fulfillment = %s, want NOT_STARTED", order.FulfillmentStatus)
	}

	if _, err := engine.PushPharmacy(ctx, c.ID, caseflow.PharmacyPushInput{}, uuid.Nil); !errors.Is(err, caseflow.ErrAlreadyPushed) {
		t.Fatalf("second push should fail with ErrAlreadyPushed, got %v", err)
	}
}

func TestFulfillmentProgression(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	// Updates before the push are rejected.
	ready := caseflow.FulfillmentReady
	_, err := engine.UpdateFulfillment(ctx, c.ID, caseflow.PharmacyOrderUpdate{FulfillmentStatus: &ready}, uuid.Nil)
	if !errors.Is(err, caseflow.ErrNotYetPushed) {
		t.Fatalf("expected ErrNotYetPushed, got %v", err)
	}

	if _, err := engine.PushPharmacy(ctx, c.ID, caseflow.PharmacyPushInput{}, uuid.Nil); err != nil {
		t.Fatalf("PushPharmacy: %v", err)
	}

	// Skipping IN_PROGRESS is rejected.
	_, err = engine.UpdateFulfillment(ctx, c.ID, caseflow.PharmacyOrderUpdate{FulfillmentStatus: &ready}, uuid.Nil)
	var fe *caseflow.InvalidFulfillmentError
	if !errors.As(err, &fe) {
		t.Fatalf("expected InvalidFulfillmentError, got %v", err)
	}

	inProgress := caseflow.FulfillmentInProgress
	ndc := "00074-4339-02"
	order, err := engine.UpdateFulfillment(ctx, c.ID, caseflow.PharmacyOrderUpdate{
		FulfillmentStatus: &inProgress,
		NDC:               &ndc,
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("advance fulfillment: %v", err)
	}
	if order.FulfillmentStatus != caseflow.FulfillmentInProgress || order.NDC != ndc {
		t.Fatalf("unexpected order %+v", order)
	}

	// Same-status update is a no-op on the sub-state, not an error.
	lot := "LOT-2291"
	if _, err := engine.UpdateFulfillment(ctx, c.ID, caseflow.PharmacyOrderUpdate{
		FulfillmentStatus: &inProgress,
		Lot:               &lot,
	}, uuid.Nil); err != nil {
		t.Fatalf("same-status update: %v", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	task, err := engine.CreateTask(ctx, c.ID, caseflow.TaskInput{Type: caseflow.TaskFollowUp}, uuid.Nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != caseflow.TaskPending {
		t.Fatalf("new task status = %s", task.Status)
	}

	done := caseflow.TaskDone
	task, err = engine.UpdateTask(ctx, c.ID, task.ID, caseflow.TaskUpdate{Status: &done}, uuid.Nil)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if task.Status != caseflow.TaskDone {
		t.Fatalf("task status = %s, want DONE", task.Status)
	}

	// Terminal tasks reject further moves.
	pending := caseflow.TaskPending
	_, err = engine.UpdateTask(ctx, c.ID, task.ID, caseflow.TaskUpdate{Status: &pending}, uuid.Nil)
	var ve *caseflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError reopening DONE task, got %v", err)
	}

	_, err = engine.UpdateTask(ctx, c.ID, uuid.New(), caseflow.TaskUpdate{Status: &done}, uuid.Nil)
	if !errors.Is(err, caseflow.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestWelcomeCallTaskDoneViaUpdateTask(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()

	task, err := engine.UpsertWelcomeCall(ctx, c.ID, caseflow.WelcomeCallPayload{
		Reached: false,
		Outcome: caseflow.OutcomeVoicemail,
	}, false, uuid.Nil)
	if err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	done := caseflow.TaskDone
	_, err = engine.UpdateTask(ctx, c.ID, task.ID, caseflow.TaskUpdate{Status: &done}, uuid.Nil)
	if !errors.Is(err, caseflow.ErrWelcomeCallNotReached) {
		t.Fatalf("completing an unreached welcome call should fail, got %v", err)
	}
}

func TestCaseNotFound(t *testing.T) {
	engine := caseflow.NewEngine(memory.NewStore(), nil)
	_, err := engine.AdvanceStatus(context.Background(), uuid.New(), caseflow.StatusClinicalCompletenessCheck, uuid.Nil)
	if !errors.Is(err, caseflow.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestEveryMutationAppendsExactlyOneEvent(t *testing.T) {
	engine, c := newTestEngine(t)
	ctx := context.Background()
	actor := uuid.New()

	mutations := []func() error{
		func() error {
			_, err := engine.ClaimCase(ctx, c.ID, uuid.New(), actor)
			return err
		},
		func() error {
			drug := "Ocrelizumab"
			_, err := engine.UpsertPrescription(ctx, c.ID, caseflow.PrescriptionUpdate{DrugName: &drug}, actor)
			return err
		},
		func() error {
			payer := "Acme Health"
			_, err := engine.UpsertInsurance(ctx, c.ID, caseflow.InsuranceUpdate{PayerName: &payer}, actor)
			return err
		},
		func() error {
			_, err := engine.AddDocument(ctx, c.ID, "referral.pdf", "application/pdf", actor)
			return err
		},
		func() error {
			_, err := engine.AdvanceStatus(ctx, c.ID, caseflow.StatusClinicalCompletenessCheck, actor)
			return err
		},
	}

	for i, fn := range mutations {
		before, _ := engine.Timeline(ctx, c.ID)
		if err := fn(); err != nil {
			t.Fatalf("mutation %d: %v", i, err)
		}
		after, _ := engine.Timeline(ctx, c.ID)
		if len(after) != len(before)+1 {
			t.Fatalf("mutation %d appended %d events, want 1", i, len(after)-len(before))
		}
	}

	// Events carry the actor and arrive in order.
	events, _ := engine.Timeline(ctx, c.ID)
	for i := 1; i < len(events); i++ {
		if events[i].CreatedAt.Before(events[i-1].CreatedAt) {
			t.Fatal("timeline out of order")
		}
	}
	last := events[len(events)-1]
	if last.ActorUserID == nil || *last.ActorUserID != actor {
		t.Fatal("event should carry the acting user")
	}
}

func TestListCasesFilters(t *testing.T) {
	engine := caseflow.NewEngine(memory.NewStore(), nil)
	ctx := context.Background()

	providerA := uuid.New()
	providerB := uuid.New()
	org := uuid.New()

	a, err := engine.CreateCase(ctx, caseflow.CreateCaseInput{ProviderOrgID: providerA})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if _, err := engine.CreateCase(ctx, caseflow.CreateCaseInput{ProviderOrgID: providerB}); err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if _, err := engine.ClaimCase(ctx, a.ID, org, uuid.Nil); err != nil {
		t.Fatalf("ClaimCase: %v", err)
	}

	got, err := engine.ListCases(ctx, caseflow.ListFilter{ProviderOrgID: &providerA})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("provider filter returned %v", got)
	}

	got, err = engine.ListCases(ctx, caseflow.ListFilter{InfusionOrgID: &org})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("infusion org filter returned %v", got)
	}

	got, err = engine.ListCases(ctx, caseflow.ListFilter{InfusionOrgID: &org, IncludeUnclaimed: true})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("include_unclaimed should return both cases, got %d", len(got))
	}

	st := caseflow.StatusReferralReceived
	got, err = engine.ListCases(ctx, caseflow.ListFilter{Status: &st})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("status filter returned %d cases, want 2", len(got))
	}
}
