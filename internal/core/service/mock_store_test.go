package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/port"
)

// Mock Store: everything lives in maps; a transaction snapshots them and
// restores the snapshot when fn fails.
type mockStore struct {
	mu      sync.Mutex
	orders  map[int64]domain.Order
	lines   map[int64]domain.RequirementLine
	stocks  map[int64]domain.StockRecord
	history []domain.HistoryEntry
	nextID  int64

	// beforeUpdate runs inside UpdateStock before the version check
	beforeUpdate func(s *mockStore, stockID int64) error
	txCount      int
}

func newMockStore() *mockStore {
	return &mockStore{
		orders: make(map[int64]domain.Order),
		lines:  make(map[int64]domain.RequirementLine),
		stocks: make(map[int64]domain.StockRecord),
		nextID: 100,
	}
}

func (s *mockStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *mockStore) addOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *mockStore) addLine(l domain.RequirementLine) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.id()
	}
	if l.Status == "" {
		l.Status = domain.LineStatusPending
	}
	s.lines[l.ID] = l
	return l.ID
}

func (s *mockStore) addStock(r domain.StockRecord) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.id()
	}
	s.stocks[r.ID] = r
	return r.ID
}

func (s *mockStore) stock(id int64) domain.StockRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stocks[id]
}

func (s *mockStore) deleteStock(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stocks, id)
}

func (s *mockStore) line(id int64) domain.RequirementLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines[id]
}

func (s *mockStore) setDemand(id int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lines[id]
	l.QuantityDemanded = qty
	s.lines[id] = l
}

func (s *mockStore) historyEntries() []domain.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.HistoryEntry(nil), s.history...)
}

func (s *mockStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *mockStore) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	lines := make(map[int64]domain.RequirementLine, len(s.lines))
	for k, v := range s.lines {
		lines[k] = v
	}
	stocks := make(map[int64]domain.StockRecord, len(s.stocks))
	for k, v := range s.stocks {
		stocks[k] = v
	}
	history := append([]domain.HistoryEntry(nil), s.history...)

	if err := fn(&mockTx{s: s}); err != nil {
		s.lines = lines
		s.stocks = stocks
		s.history = history
		return err
	}
	return nil
}

type mockTx struct {
	s *mockStore
}

func (t *mockTx) listByStatus(orderID int64, material domain.Material, match func(domain.LineStatus) bool) []domain.RequirementLine {
	var out []domain.RequirementLine
	for _, l := range t.s.lines {
		if l.OrderID == orderID && l.Material == material && match(l.Status) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *mockTx) ListOutstanding(ctx context.Context, orderID int64, material domain.Material) ([]domain.RequirementLine, error) {
	return t.listByStatus(orderID, material, func(st domain.LineStatus) bool { return st != domain.LineStatusCompleted }), nil
}

func (t *mockTx) ListCompleted(ctx context.Context, orderID int64, material domain.Material) ([]domain.RequirementLine, error) {
	return t.listByStatus(orderID, material, func(st domain.LineStatus) bool { return st == domain.LineStatusCompleted }), nil
}

func (t *mockTx) SetLineStatus(ctx context.Context, lineID int64, status domain.LineStatus) error {
	l, ok := t.s.lines[lineID]
	if !ok {
		return errors.New("line not found")
	}
	l.Status = status
	t.s.lines[lineID] = l
	return nil
}

func (t *mockTx) FindStock(ctx context.Context, scope domain.ScopeKey) (*domain.StockRecord, error) {
	ids := make([]int64, 0, len(t.s.stocks))
	for id := range t.s.stocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		r := t.s.stocks[id]
		if r.Scope == scope {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *mockTx) UpdateStock(ctx context.Context, stockID int64, quantity, expectedVersion int, actorID *int64) error {
	if t.s.beforeUpdate != nil {
		if err := t.s.beforeUpdate(t.s, stockID); err != nil {
			return err
		}
	}
	r, ok := t.s.stocks[stockID]
	if !ok || r.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	r.CurrentQuantity = quantity
	r.Version++
	r.UpdatedByID = actorID
	t.s.stocks[stockID] = r
	return nil
}

func (t *mockTx) AppendHistory(ctx context.Context, entry domain.HistoryEntry) (int64, error) {
	entry.ID = t.s.id()
	t.s.history = append(t.s.history, entry)
	return entry.ID, nil
}

func (t *mockTx) LastIssue(ctx context.Context, orderID, lineID int64) (*domain.HistoryEntry, error) {
	for i := len(t.s.history) - 1; i >= 0; i-- {
		h := t.s.history[i]
		if h.RequirementLineID == nil || *h.RequirementLineID != lineID {
			continue
		}
		switch h.EventKind {
		case domain.EventReturn:
			return nil, nil
		case domain.EventIssue:
			if h.Reference != domain.OrderReference(orderID) {
				return nil, nil
			}
			return &h, nil
		}
	}
	return nil, nil
}

// Mock Notifier
type mockNotifier struct {
	mu     sync.Mutex
	events []domain.StockChangedEvent
	err    error
}

func (n *mockNotifier) StockChanged(ctx context.Context, event domain.StockChangedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.idempotencySet, key)
	return nil
}

// Mock Locker
type mockLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	obtained []string
	released []string
	err      error
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (l *mockLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, errors.New("lock held")
	}
	l.held[key] = true
	l.obtained = append(l.obtained, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released = append(l.released, key)
		return nil
	}, nil
}

// Mock Recorder
type mockRecorder struct {
	mu        sync.Mutex
	summaries []domain.Summary
	failures  int
	retries   int
}

func (r *mockRecorder) ObserveSummary(s domain.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
}

func (r *mockRecorder) ObserveFailure(domain.Material, domain.Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *mockRecorder) ObserveConflictRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }
