// Package memory provides an in-memory caseflow.Store for tests and local
// development. Each case carries its own mutex, so operations on different
// cases never contend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjcobb-blip/Infusion/internal/domain/caseflow"
)

type caseState struct {
	mu sync.Mutex

	c            caseflow.Case
	patient      *caseflow.Patient
	prescription *caseflow.Prescription
	insurance    *caseflow.Insurance
	financial    *caseflow.FinancialClearance
	schedule     *caseflow.Schedule
	pharmacy     *caseflow.PharmacyOrder
	tasks        []caseflow.Task
	documents    []caseflow.Document
	events       []caseflow.TimelineEvent
}

// Store holds all cases in process memory.
type Store struct {
	mu    sync.RWMutex
	cases map[uuid.UUID]*caseState
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{cases: make(map[uuid.UUID]*caseState)}
}

// CreateCase persists a new case and its creation event.
func (s *Store) CreateCase(_ context.Context, c caseflow.Case, patient *caseflow.Patient, ev caseflow.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &caseState{c: c}
	if patient != nil {
		p := *patient
		st.patient = &p
	}
	st.events = append(st.events, ev)
	s.cases[c.ID] = st
	return nil
}

func (s *Store) get(caseID uuid.UUID) (*caseState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.cases[caseID]
	if !ok {
		return nil, caseflow.ErrCaseNotFound
	}
	return st, nil
}

// Update runs fn under the case's lock. Writes are staged on a working copy
// and applied only when fn returns nil.
func (s *Store) Update(_ context.Context, caseID uuid.UUID, fn func(caseflow.Txn) error) error {
	st, err := s.get(caseID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	txn := newTxn(st)
	if err := fn(txn); err != nil {
		return err
	}
	txn.commit(st)
	return nil
}

// View returns a detached snapshot of the case.
func (s *Store) View(_ context.Context, caseID uuid.UUID) (*caseflow.Snapshot, error) {
	st, err := s.get(caseID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot(), nil
}

// Timeline returns the case's events ordered by creation time.
func (s *Store) Timeline(_ context.Context, caseID uuid.UUID) ([]caseflow.TimelineEvent, error) {
	st, err := s.get(caseID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]caseflow.TimelineEvent, len(st.events))
	copy(out, st.events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListCases returns cases matching the filter, newest first.
func (s *Store) ListCases(_ context.Context, f caseflow.ListFilter) ([]caseflow.Case, error) {
	s.mu.RLock()
	states := make([]*caseState, 0, len(s.cases))
	for _, st := range s.cases {
		states = append(states, st)
	}
	s.mu.RUnlock()

	var out []caseflow.Case
	for _, st := range states {
		st.mu.Lock()
		c := st.c
		st.mu.Unlock()

		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.ProviderOrgID != nil && c.ProviderOrgID != *f.ProviderOrgID {
			continue
		}
		if f.InfusionOrgID != nil {
			claimed := c.InfusionOrgID != nil && *c.InfusionOrgID == *f.InfusionOrgID
			unclaimed := c.InfusionOrgID == nil && f.IncludeUnclaimed
			if !claimed && !unclaimed {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (st *caseState) snapshot() *caseflow.Snapshot {
	snap := &caseflow.Snapshot{Case: st.c}
	if st.patient != nil {
		p := *st.patient
		snap.Patient = &p
	}
	if st.prescription != nil {
		rx := *st.prescription
		snap.Prescription = &rx
	}
	if st.insurance != nil {
		ins := *st.insurance
		snap.Insurance = &ins
	}
	if st.financial != nil {
		fc := *st.financial
		snap.Financial = &fc
	}
	if st.schedule != nil {
		sc := *st.schedule
		snap.Schedule = &sc
	}
	if st.pharmacy != nil {
		po := *st.pharmacy
		snap.Pharmacy = &po
	}
	snap.Tasks = append([]caseflow.Task(nil), st.tasks...)
	snap.Documents = append([]caseflow.Document(nil), st.documents...)
	return snap
}

// txn stages writes against a copy of the case state.
type txn struct {
	work   *caseState
	events []caseflow.TimelineEvent
}

func newTxn(st *caseState) *txn {
	work := &caseState{
		c:            st.c,
		patient:      st.patient,
		prescription: st.prescription,
		insurance:    st.insurance,
		financial:    st.financial,
		schedule:     st.schedule,
		pharmacy:     st.pharmacy,
	}
	work.tasks = append([]caseflow.Task(nil), st.tasks...)
	work.documents = append([]caseflow.Document(nil), st.documents...)
	return &txn{work: work}
}

func (t *txn) commit(st *caseState) {
	st.c = t.work.c
	st.patient = t.work.patient
	st.prescription = t.work.prescription
	st.insurance = t.work.insurance
	st.financial = t.work.financial
	st.schedule = t.work.schedule
	st.pharmacy = t.work.pharmacy
	st.tasks = t.work.tasks
	st.documents = t.work.documents
	st.events = append(st.events, t.events...)
}

func (t *txn) Snapshot() *caseflow.Snapshot { return t.work.snapshot() }

func (t *txn) SetStatus(status caseflow.Status) {
	t.work.c.Status = status
	t.work.c.UpdatedAt = time.Now().UTC()
}

func (t *txn) SetInfusionOrg(orgID uuid.UUID) {
	id := orgID
	t.work.c.InfusionOrgID = &id
	t.work.c.UpdatedAt = time.Now().UTC()
}

func (t *txn) AttachPatient(p caseflow.Patient) {
	cp := p
	t.work.patient = &cp
	pid := p.ID
	t.work.c.PatientID = &pid
	t.work.c.UpdatedAt = time.Now().UTC()
}

func (t *txn) PutPrescription(rx caseflow.Prescription) {
	cp := rx
	t.work.prescription = &cp
}

func (t *txn) PutInsurance(ins caseflow.Insurance) {
	cp := ins
	t.work.insurance = &cp
}

func (t *txn) PutFinancial(fc caseflow.FinancialClearance) {
	cp := fc
	t.work.financial = &cp
}

func (t *txn) PutSchedule(sc caseflow.Schedule) {
	cp := sc
	t.work.schedule = &cp
}

func (t *txn) PutPharmacyOrder(po caseflow.PharmacyOrder) {
	cp := po
	t.work.pharmacy = &cp
}

func (t *txn) PutTask(task caseflow.Task) {
	for i := range t.work.tasks {
		if t.work.tasks[i].ID == task.ID {
			t.work.tasks[i] = task
			return
		}
	}
	t.work.tasks = append(t.work.tasks, task)
}

func (t *txn) AddDocument(doc caseflow.Document) {
	t.work.documents = append(t.work.documents, doc)
}

func (t *txn) AppendEvent(ev caseflow.TimelineEvent) {
	t.events = append(t.events, ev)
}
