package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/opsmind/ticket-service/internal/broker"
	"github.com/opsmind/ticket-service/internal/domain"
	"github.com/opsmind/ticket-service/internal/events"
	"github.com/opsmind/ticket-service/internal/repository"
	apperrors "github.com/opsmind/ticket-service/pkg/util"
)

// memStore implements TicketRepository and EscalationRepository in memory,
// mirroring the conditional-write semantics of the SQL implementation.
type memStore struct {
	mu          sync.Mutex
	tickets     map[string]*domain.Ticket
	escalations map[string][]domain.TicketEscalation
	nextID      int
	afterGet    func() // invoked after GetByID, to simulate races
}

func newMemStore() *memStore {
	return &memStore{
		tickets:     map[string]*domain.Ticket{},
		escalations: map[string][]domain.TicketEscalation{},
	}
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	dup := *t
	return &dup
}

func (s *memStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ticket.ID = fmt.Sprintf("tck-%04d", s.nextID)
	s.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	stored, ok := s.tickets[id]
	var result *domain.Ticket
	if ok && !stored.IsDeleted {
		result = copyTicket(stored)
	}
	s.mu.Unlock()
	if s.afterGet != nil {
		s.afterGet()
	}
	if result == nil {
		return nil, pgx.ErrNoRows
	}
	return result, nil
}

func (s *memStore) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, t := range s.tickets {
		if t.IsDeleted {
			continue
		}
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		result = append(result, *t)
	}
	return result, nil
}

func (s *memStore) UpdateFields(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[ticket.ID]
	if !ok || stored.IsDeleted || stored.Status != expectedStatus {
		return repository.ErrStaleUpdate
	}
	s.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (s *memStore) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[id]
	if !ok || stored.IsDeleted {
		return pgx.ErrNoRows
	}
	stored.IsDeleted = true
	return nil
}

func (s *memStore) Escalate(ctx context.Context, id string, escalation *domain.TicketEscalation) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[id]
	if !ok || stored.IsDeleted || stored.Status == domain.TicketStatusClosed {
		return nil, pgx.ErrNoRows
	}
	stored.EscalationCount++
	stored.AssignedLevel = escalation.ToLevel
	escalation.ID = fmt.Sprintf("esc-%04d", len(s.escalations[id])+1)
	escalation.TicketID = id
	s.escalations[id] = append(s.escalations[id], *escalation)
	return copyTicket(stored), nil
}

func (s *memStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEscalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TicketEscalation{}, s.escalations[ticketID]...), nil
}

type publishedEvent struct {
	eventType events.EventType
	ticketID  string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, eventType events.EventType, ticket *domain.Ticket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{eventType: eventType, ticketID: ticket.ID})
	return nil
}

func (p *fakePublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent{}, p.events...)
}

func newTestService(store *memStore, publisher *fakePublisher) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:     store,
		EscalationRepo: store,
		Publisher:      publisher,
	})
}

func mustCreate(t *testing.T, svc *TicketService) *domain.Ticket {
	t.Helper()
	ticket, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "A/C broken",
		Description: "No cooling in room 204",
		RequestType: domain.RequestTypeMaintenance,
		Building:    "Hall 3",
		Room:        "204",
		RequesterID: "u-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return ticket
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return de.Code
}

func TestCreateAppliesStaticPolicy(t *testing.T) {
	store := newMemStore()
	publisher := &fakePublisher{}
	svc := newTestService(store, publisher)

	ticket := mustCreate(t, svc)

	if ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %s, want OPEN", ticket.Status)
	}
	if ticket.EscalationCount != 0 {
		t.Fatalf("escalation_count = %d, want 0", ticket.EscalationCount)
	}
	if ticket.AssignedLevel != domain.SupportLevelL1 {
		t.Fatalf("assigned level = %s, want L1", ticket.AssignedLevel)
	}
	if ticket.Priority != domain.TicketPriorityLow {
		t.Fatalf("priority = %s, want LOW for MAINTENANCE", ticket.Priority)
	}

	got := publisher.published()
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	if got[0].eventType != events.EventTicketCreated || got[0].ticketID != ticket.ID {
		t.Fatalf("unexpected event %+v", got[0])
	}
}

func TestCreateIncidentGetsHighPriority(t *testing.T) {
	svc := newTestService(newMemStore(), &fakePublisher{})
	ticket, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "Server room on fire",
		Description: "Smoke everywhere",
		RequestType: domain.RequestTypeIncident,
		Building:    "Hall 1",
		Room:        "B2",
		RequesterID: "u-2",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.Priority != domain.TicketPriorityHigh {
		t.Fatalf("priority = %s, want HIGH for INCIDENT", ticket.Priority)
	}
}

func TestCreateSucceedsWhenBrokerDown(t *testing.T) {
	store := newMemStore()
	publisher := &fakePublisher{err: broker.ErrChannelUnavailable}
	svc := newTestService(store, publisher)

	ticket := mustCreate(t, svc)

	// the mutation is committed even though the event was lost
	if _, err := svc.Get(context.Background(), ticket.ID); err != nil {
		t.Fatalf("get after create: %v", err)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc := newTestService(newMemStore(), &fakePublisher{})
	_, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "",
		Description: "No cooling",
		RequestType: domain.RequestTypeIncident,
		Building:    "Hall 3",
		Room:        "204",
		RequesterID: "u-1",
	})
	if code := domainCode(t, err); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED", code)
	}
}

func TestUpdateAdvancesStatusLinearly(t *testing.T) {
	store := newMemStore()
	publisher := &fakePublisher{}
	svc := newTestService(store, publisher)
	ticket := mustCreate(t, svc)

	status := domain.TicketStatusInProgress
	updated, err := svc.UpdateFields(context.Background(), ticket.ID, TicketUpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.TicketStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", updated.Status)
	}

	got := publisher.published()
	if len(got) != 2 || got[1].eventType != events.EventTicketUpdated {
		t.Fatalf("expected ticket.updated after create, got %+v", got)
	}
}

func TestUpdateRejectsStatusJumpEntirely(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakePublisher{})
	ticket := mustCreate(t, svc)

	title := "New title"
	status := domain.TicketStatusResolved
	_, err := svc.UpdateFields(context.Background(), ticket.ID, TicketUpdateInput{
		Title:  &title,
		Status: &status,
	})
	if code := domainCode(t, err); code != "INVALID_TRANSITION" {
		t.Fatalf("code = %s, want INVALID_TRANSITION", code)
	}
	var de *apperrors.DomainError
	errors.As(err, &de)
	if de.Details["current_status"] != "OPEN" || de.Details["attempted_status"] != "RESOLVED" {
		t.Fatalf("details = %v", de.Details)
	}

	// rejection leaves every field untouched
	stored, err := svc.Get(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.TicketStatusOpen || stored.Title != "A/C broken" {
		t.Fatalf("ticket mutated on rejected transition: %+v", stored)
	}
}

func TestCloseStampsClosedAtAndIsTerminal(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakePublisher{})
	ticket := mustCreate(t, svc)

	for _, status := range []domain.TicketStatus{
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		s := status
		if _, err := svc.UpdateFields(context.Background(), ticket.ID, TicketUpdateInput{Status: &s}); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	closed, err := svc.Get(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if closed.ClosedAt == nil {
		t.Fatal("closed_at not stamped on CLOSED")
	}

	reopen := domain.TicketStatusOpen
	_, err = svc.UpdateFields(context.Background(), ticket.ID, TicketUpdateInput{Status: &reopen})
	if code := domainCode(t, err); code != "INVALID_TRANSITION" {
		t.Fatalf("code = %s, want INVALID_TRANSITION for terminal status", code)
	}
}

func TestUpdateMissingTicketNotFound(t *testing.T) {
	svc := newTestService(newMemStore(), &fakePublisher{})
	status := domain.TicketStatusInProgress
	_, err := svc.UpdateFields(context.Background(), "tck-absent", TicketUpdateInput{Status: &status})
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("code = %s, want NOT_FOUND", code)
	}
}

func TestUpdateLostRaceIsConflict(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakePublisher{})
	ticket := mustCreate(t, svc)

	// a concurrent updater wins between our read and our write
	raced := false
	store.afterGet = func() {
		if raced {
			return
		}
		raced = true
		store.mu.Lock()
		store.tickets[ticket.ID].Status = domain.TicketStatusInProgress
		store.mu.Unlock()
	}

	status := domain.TicketStatusInProgress
	_, err := svc.UpdateFields(context.Background(), ticket.ID, TicketUpdateInput{Status: &status})
	if code := domainCode(t, err); code != "CONFLICT" {
		t.Fatalf("code = %s, want CONFLICT", code)
	}
}

func TestEscalateIncrementsAndReassigns(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakePublisher{})
	ticket := mustCreate(t, svc)

	escalated, err := svc.Escalate(context.Background(), ticket.ID, domain.SupportLevelL1, domain.SupportLevelL2, "needs networking expertise")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if escalated.EscalationCount != 1 {
		t.Fatalf("escalation_count = %d, want 1", escalated.EscalationCount)
	}
	if escalated.AssignedLevel != domain.SupportLevelL2 {
		t.Fatalf("assigned level = %s, want L2", escalated.AssignedLevel)
	}

	history, err := svc.ListEscalations(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("list escalations: %v", err)
	}
	if len(history) != 1 || history[0].Reason != "needs networking expertise" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestEscalateConcurrentNoLostUpdates(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakePublisher{})
	ticket := mustCreate(t, svc)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Escalate(context.Background(), ticket.ID, domain.SupportLevelL1, domain.SupportLevelL2, "load test")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("escalate: %v", err)
		}
	}

	final, err := svc.Get(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.EscalationCount != n {
		t.Fatalf("escalation_count = %d, want %d", final.EscalationCount, n)
	}
}

func TestEscalateClosedTicketConflicts(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakePublisher{})
	ticket := mustCreate(t, svc)
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		s := status
		if _, err := svc.UpdateFields(context.Background(), ticket.ID, TicketUpdateInput{Status: &s}); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	_, err := svc.Escalate(context.Background(), ticket.ID, domain.SupportLevelL1, domain.SupportLevelL2, "too late")
	if code := domainCode(t, err); code != "CONFLICT" {
		t.Fatalf("code = %s, want CONFLICT", code)
	}
}

func TestEscalateMissingTicketNotFound(t *testing.T) {
	svc := newTestService(newMemStore(), &fakePublisher{})
	_, err := svc.Escalate(context.Background(), "tck-absent", domain.SupportLevelL1, domain.SupportLevelL2, "reason")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("code = %s, want NOT_FOUND", code)
	}
}

func TestEscalateRejectsEmptyReason(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakePublisher{})
	ticket := mustCreate(t, svc)

	_, err := svc.Escalate(context.Background(), ticket.ID, domain.SupportLevelL1, domain.SupportLevelL2, "   ")
	if code := domainCode(t, err); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED", code)
	}
}

func TestSoftDeleteHidesTicketButKeepsHistory(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakePublisher{})
	ticket := mustCreate(t, svc)
	if _, err := svc.Escalate(context.Background(), ticket.ID, domain.SupportLevelL1, domain.SupportLevelL2, "tricky"); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	if err := svc.SoftDelete(context.Background(), ticket.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	_, err := svc.Get(context.Background(), ticket.ID)
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("code = %s, want NOT_FOUND after delete", code)
	}

	// record and audit trail survive for audit
	store.mu.Lock()
	stored := store.tickets[ticket.ID]
	history := store.escalations[ticket.ID]
	store.mu.Unlock()
	if stored == nil || !stored.IsDeleted {
		t.Fatal("expected soft-deleted record to remain")
	}
	if len(history) != 1 {
		t.Fatalf("escalation history dropped, have %d rows", len(history))
	}

	// deleting twice is NOT_FOUND, as is mutating a deleted ticket
	if code := domainCode(t, svc.SoftDelete(context.Background(), ticket.ID)); code != "NOT_FOUND" {
		t.Fatalf("second delete code = %s, want NOT_FOUND", code)
	}
	status := domain.TicketStatusInProgress
	_, err = svc.UpdateFields(context.Background(), ticket.ID, TicketUpdateInput{Status: &status})
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("update deleted code = %s, want NOT_FOUND", code)
	}
}
