package finance

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// memStore is an in-memory database for the reconciliation repositories.
// Execute holds the store mutex for the whole unit of work, so transactions
// are serialised and rolled back by restoring a snapshot.
type memStore struct {
	mu          sync.Mutex
	obligations map[uuid.UUID]finance.ObligationState
	events      map[uuid.UUID][]*finance.PaymentEvent
	sums        map[uuid.UUID]valueobject.Money
	byKey       map[string]*finance.PaymentEvent

	// saveConflicts makes the next n SaveWithLock calls fail with a conflict
	saveConflicts int
	executions    int
}

func newMemStore() *memStore {
	return &memStore{
		obligations: make(map[uuid.UUID]finance.ObligationState),
		events:      make(map[uuid.UUID][]*finance.PaymentEvent),
		sums:        make(map[uuid.UUID]valueobject.Money),
		byKey:       make(map[string]*finance.PaymentEvent),
	}
}

type memSnapshot struct {
	obligations map[uuid.UUID]finance.ObligationState
	events      map[uuid.UUID][]*finance.PaymentEvent
	sums        map[uuid.UUID]valueobject.Money
	byKey       map[string]*finance.PaymentEvent
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		obligations: make(map[uuid.UUID]finance.ObligationState, len(s.obligations)),
		events:      make(map[uuid.UUID][]*finance.PaymentEvent, len(s.events)),
		sums:        make(map[uuid.UUID]valueobject.Money, len(s.sums)),
		byKey:       make(map[string]*finance.PaymentEvent, len(s.byKey)),
	}
	for k, v := range s.obligations {
		snap.obligations[k] = v
	}
	for k, v := range s.events {
		snap.events[k] = append([]*finance.PaymentEvent(nil), v...)
	}
	for k, v := range s.sums {
		snap.sums[k] = v
	}
	for k, v := range s.byKey {
		snap.byKey[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.obligations = snap.obligations
	s.events = snap.events
	s.sums = snap.sums
	s.byKey = snap.byKey
}

// tamperPaid overwrites the stored paid amount without touching the ledger
func (s *memStore) tamperPaid(id uuid.UUID, paid valueobject.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.obligations[id]
	st.PaidAmount = paid
	s.obligations[id] = st
}

func (s *memStore) eventCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[id])
}

// Execute implements TransactionScope
func (s *memStore) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions++

	snap := s.snapshot()
	if err := fn(memTxRepos{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) obligationRepo() *memObligationRepo {
	return &memObligationRepo{store: s, locking: true}
}

func (s *memStore) eventRepo() *memEventRepo {
	return &memEventRepo{store: s, locking: true}
}

type memTxRepos struct {
	store *memStore
}

func (r memTxRepos) ObligationRepo() finance.ObligationRepository {
	return &memObligationRepo{store: r.store}
}

func (r memTxRepos) PaymentEventRepo() finance.PaymentEventRepository {
	return &memEventRepo{store: r.store}
}

// memObligationRepo takes the store mutex only when used outside Execute
type memObligationRepo struct {
	store   *memStore
	locking bool
}

func (r *memObligationRepo) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memObligationRepo) FindByID(_ context.Context, id uuid.UUID) (*finance.Obligation, error) {
	defer r.lock()()
	st, ok := r.store.obligations[id]
	if !ok {
		return nil, finance.NewObligationNotFoundError(id)
	}
	return finance.RehydrateObligation(st), nil
}

func (r *memObligationRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Obligation, error) {
	return r.FindByID(ctx, id)
}

func (r *memObligationRepo) FindByExternalID(_ context.Context, kind finance.ObligationKind, externalID string) (*finance.Obligation, error) {
	defer r.lock()()
	for _, st := range r.store.obligations {
		if st.Kind == kind && st.ExternalID == externalID {
			return finance.RehydrateObligation(st), nil
		}
	}
	return nil, finance.ErrObligationNotFound
}

func (r *memObligationRepo) FindAll(_ context.Context, filter finance.ObligationFilter) ([]*finance.Obligation, error) {
	defer r.lock()()
	matched := r.filtered(filter)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*finance.Obligation{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *memObligationRepo) Count(_ context.Context, filter finance.ObligationFilter) (int64, error) {
	defer r.lock()()
	return int64(len(r.filtered(filter))), nil
}

func (r *memObligationRepo) filtered(filter finance.ObligationFilter) []*finance.Obligation {
	result := make([]*finance.Obligation, 0)
	search := strings.ToLower(filter.Search)
	for _, st := range r.store.obligations {
		o := finance.RehydrateObligation(st)
		if filter.Kind != nil && o.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && o.Status() != *filter.Status {
			continue
		}
		if filter.From != nil && o.OccurredOn.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !o.OccurredOn.Before(*filter.To) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(o.CounterpartyLabel+" "+o.Reference+" "+o.ExternalID), search) {
			continue
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredOn.Equal(result[j].OccurredOn) {
			return result[i].OccurredOn.Before(result[j].OccurredOn)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result
}

func (r *memObligationRepo) Create(_ context.Context, o *finance.Obligation) error {
	defer r.lock()()
	if _, ok := r.store.obligations[o.ID]; ok {
		return shared.ErrAlreadyExists
	}
	for _, st := range r.store.obligations {
		if st.Kind == o.Kind && st.ExternalID == o.ExternalID {
			return shared.NewDomainError(shared.ErrAlreadyExists.Code, "Obligation already exists for this record")
		}
	}
	r.store.obligations[o.ID] = o.State()
	return nil
}

func (r *memObligationRepo) SaveWithLock(_ context.Context, o *finance.Obligation) error {
	defer r.lock()()
	if r.store.saveConflicts > 0 {
		r.store.saveConflicts--
		return shared.ErrConcurrencyConflict
	}
	st, ok := r.store.obligations[o.ID]
	if !ok {
		return finance.NewObligationNotFoundError(o.ID)
	}
	if st.Version != o.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	st.PaidAmount = o.PaidAmount()
	st.Version = o.Version
	st.UpdatedAt = o.UpdatedAt
	r.store.obligations[o.ID] = st
	return nil
}

type memEventRepo struct {
	store   *memStore
	locking bool
}

func (r *memEventRepo) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memEventRepo) Append(_ context.Context, event *finance.PaymentEvent) error {
	defer r.lock()()
	for _, e := range r.store.events[event.ObligationID] {
		if e.Sequence == event.Sequence {
			return shared.ErrConcurrencyConflict
		}
	}
	if event.IdempotencyKey != "" {
		if _, ok := r.store.byKey[event.IdempotencyKey]; ok {
			return shared.ErrConcurrencyConflict
		}
		r.store.byKey[event.IdempotencyKey] = event
	}
	r.store.events[event.ObligationID] = append(r.store.events[event.ObligationID], event)
	sum, ok := r.store.sums[event.ObligationID]
	if !ok {
		sum = valueobject.Zero()
	}
	r.store.sums[event.ObligationID] = sum.Add(event.Amount)
	return nil
}

func (r *memEventRepo) NextSequence(_ context.Context, obligationID uuid.UUID) (int, error) {
	defer r.lock()()
	return len(r.store.events[obligationID]) + 1, nil
}

// AmountsFor returns the running total as a single amount so long ledgers stay cheap to verify
func (r *memEventRepo) AmountsFor(_ context.Context, obligationID uuid.UUID) ([]valueobject.Money, error) {
	defer r.lock()()
	sum, ok := r.store.sums[obligationID]
	if !ok {
		return []valueobject.Money{}, nil
	}
	return []valueobject.Money{sum}, nil
}

func (r *memEventRepo) FindByObligation(_ context.Context, obligationID uuid.UUID) ([]*finance.PaymentEvent, error) {
	defer r.lock()()
	return append([]*finance.PaymentEvent(nil), r.store.events[obligationID]...), nil
}

func (r *memEventRepo) FindByIdempotencyKey(_ context.Context, key string) (*finance.PaymentEvent, error) {
	defer r.lock()()
	e, ok := r.store.byKey[key]
	if !ok {
		return nil, finance.ErrPaymentNotFound
	}
	return e, nil
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
