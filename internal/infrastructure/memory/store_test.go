package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tjcobb-blip/Infusion/internal/domain/caseflow"
)

func seedCase(t *testing.T, s *Store) caseflow.Case {
	t.Helper()
	now := time.Now().UTC()
	c := caseflow.Case{
		ID:            uuid.New(),
		ProviderOrgID: uuid.New(),
		Status:        caseflow.StatusReferralReceived,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ev := caseflow.TimelineEvent{
		ID:        uuid.New(),
		CaseID:    c.ID,
		EventType: caseflow.EventCaseCreated,
		CreatedAt: now,
	}
	if err := s.CreateCase(context.Background(), c, nil, ev); err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	return c
}

func TestUpdateUnknownCase(t *testing.T) {
	s := NewStore()
	err := s.Update(context.Background(), uuid.New(), func(caseflow.Txn) error { return nil })
	if !errors.Is(err, caseflow.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestFailedUpdateDiscardsWrites(t *testing.T) {
	s := NewStore()
	c := seedCase(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Update(ctx, c.ID, func(txn caseflow.Txn) error {
		txn.SetStatus(caseflow.StatusClinicalCompletenessCheck)
		txn.PutPrescription(caseflow.Prescription{ID: uuid.New(), CaseID: c.ID, DrugName: "Infliximab"})
		txn.AppendEvent(caseflow.TimelineEvent{ID: uuid.New(), CaseID: c.ID, EventType: caseflow.EventStatusChanged})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update should propagate fn error, got %v", err)
	}

	snap, err := s.View(ctx, c.ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if snap.Case.Status != caseflow.StatusReferralReceived {
		t.Fatalf("status changed despite failed update: %s", snap.Case.Status)
	}
	if snap.Prescription != nil {
		t.Fatal("prescription persisted despite failed update")
	}

	events, _ := s.Timeline(ctx, c.ID)
	if len(events) != 1 {
		t.Fatalf("event persisted despite failed update, got %d events", len(events))
	}
}

func TestTxnSnapshotSeesStagedWrites(t *testing.T) {
	s := NewStore()
	c := seedCase(t, s)

	err := s.Update(context.Background(), c.ID, func(txn caseflow.Txn) error {
		txn.SetStatus(caseflow.StatusClinicalCompletenessCheck)
		if got := txn.Snapshot().Case.Status; got != caseflow.StatusClinicalCompletenessCheck {
			t.Fatalf("staged status not visible, got %s", got)
		}
		txn.AppendEvent(caseflow.TimelineEvent{ID: uuid.New(), CaseID: c.ID, EventType: caseflow.EventStatusChanged})
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestViewReturnsDetachedCopy(t *testing.T) {
	s := NewStore()
	c := seedCase(t, s)
	ctx := context.Background()

	err := s.Update(ctx, c.ID, func(txn caseflow.Txn) error {
		txn.PutPrescription(caseflow.Prescription{ID: uuid.New(), CaseID: c.ID, DrugName: "Infliximab"})
		txn.PutTask(caseflow.Task{ID: uuid.New(), CaseID: c.ID, Type: caseflow.TaskFollowUp, Status: caseflow.TaskPending})
		txn.AppendEvent(caseflow.TimelineEvent{ID: uuid.New(), CaseID: c.ID, EventType: caseflow.EventPrescriptionUpdated})
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap, _ := s.View(ctx, c.ID)
	snap.Case.Status = caseflow.StatusDiscontinued
	snap.Prescription.DrugName = "tampered"
	snap.Tasks[0].Status = caseflow.TaskCancelled

	fresh, _ := s.View(ctx, c.ID)
	if fresh.Case.Status != caseflow.StatusReferralReceived {
		t.Fatal("mutating a snapshot leaked into the store")
	}
	if fresh.Prescription.DrugName != "Infliximab" {
		t.Fatal("mutating a snapshot's prescription leaked into the store")
	}
	if fresh.Tasks[0].Status != caseflow.TaskPending {
		t.Fatal("mutating a snapshot's tasks leaked into the store")
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	s := NewStore()
	c := seedCase(t, s)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, c.ID, func(txn caseflow.Txn) error {
				txn.AppendEvent(caseflow.TimelineEvent{
					ID:        uuid.New(),
					CaseID:    c.ID,
					EventType: caseflow.EventTaskCreated,
					CreatedAt: time.Now().UTC(),
				})
				return nil
			})
		}()
	}
	wg.Wait()

	events, err := s.Timeline(ctx, c.ID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(events) != writers+1 {
		t.Fatalf("got %d events, want %d", len(events), writers+1)
	}
}

func TestListCasesNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	base := time.Now().UTC()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		c := caseflow.Case{
			ID:            uuid.New(),
			ProviderOrgID: uuid.New(),
			Status:        caseflow.StatusReferralReceived,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateCase(ctx, c, nil, caseflow.TimelineEvent{ID: uuid.New(), CaseID: c.ID}); err != nil {
			t.Fatalf("CreateCase: %v", err)
		}
		ids = append(ids, c.ID)
	}

	got, err := s.ListCases(ctx, caseflow.ListFilter{})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d cases", len(got))
	}
	for i := range got {
		if got[i].ID != ids[len(ids)-1-i] {
			t.Fatalf("cases not ordered newest first: %v", got)
		}
	}
}
