package app

import (
	"context"
	"sync"
	"time"

	"github.com/bingwasokoni/bundles/internal/bundles/domain"
)

// memStore is a mutex-serialized in-memory TransactionRepository used for
// the lifecycle and concurrency tests, where testify mocks cannot express
// the stateful check-then-insert semantics.
type memStore struct {
	mu   sync.Mutex
	rows map[string]*domain.Transaction
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*domain.Transaction)}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (s *memStore) CreateWithDailyLimit(_ context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.PayerPhone == txn.PayerPhone && row.Status == domain.StatusCompleted && sameDay(row.CreatedAt, time.Now()) {
			return domain.ErrDailyLimitReached
		}
	}
	if _, exists := s.rows[txn.ID]; exists {
		return domain.ErrDuplicateTransactionID
	}
	cp := *txn
	s.rows[txn.ID] = &cp
	return nil
}

func (s *memStore) SetProviderReference(_ context.Context, txID, providerRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[txID]
	if !ok || row.Status != domain.StatusPending {
		return domain.ErrTransactionNotFound
	}
	for _, other := range s.rows {
		if other.ProviderReference != nil && *other.ProviderReference == providerRef && other.ID != txID {
			return domain.ErrDuplicateProviderReference
		}
	}
	row.ProviderReference = &providerRef
	row.Status = domain.StatusAwaitingConfirmation
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) MarkSubmissionFailed(_ context.Context, txID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[txID]
	if !ok || row.Status.IsTerminal() {
		return domain.ErrTransactionNotFound
	}
	row.Status = domain.StatusFailed
	row.StatusDetail = reason
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) findLocked(byID bool, key string) *domain.Transaction {
	if byID {
		return s.rows[key]
	}
	for _, row := range s.rows {
		if row.ProviderReference != nil && *row.ProviderReference == key {
			return row
		}
	}
	return nil
}

func (s *memStore) terminal(byID bool, key string, to domain.TransactionStatus, receipt *string, detail string) (*domain.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.findLocked(byID, key)
	if row == nil {
		return nil, false, domain.ErrTransactionNotFound
	}
	if row.Status.IsTerminal() {
		cp := *row
		return &cp, false, nil
	}
	row.Status = to
	row.StatusDetail = detail
	row.UpdatedAt = time.Now().UTC()
	if to == domain.StatusCompleted {
		if receipt != nil {
			row.ReceiptReference = receipt
		}
		now := time.Now().UTC()
		row.CompletedAt = &now
	}
	cp := *row
	return &cp, true, nil
}

func (s *memStore) CompleteByProviderReference(_ context.Context, ref, receipt, detail string) (*domain.Transaction, bool, error) {
	return s.terminal(false, ref, domain.StatusCompleted, &receipt, detail)
}

func (s *memStore) FailByProviderReference(_ context.Context, ref, detail string) (*domain.Transaction, bool, error) {
	return s.terminal(false, ref, domain.StatusFailed, nil, detail)
}

func (s *memStore) CompleteByID(_ context.Context, id, receipt, detail string) (*domain.Transaction, bool, error) {
	return s.terminal(true, id, domain.StatusCompleted, &receipt, detail)
}

func (s *memStore) FailByID(_ context.Context, id, detail string) (*domain.Transaction, bool, error) {
	return s.terminal(true, id, domain.StatusFailed, nil, detail)
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (s *memStore) GetByProviderReference(_ context.Context, ref string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.findLocked(false, ref); row != nil {
		cp := *row
		return &cp, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (s *memStore) Stats(_ context.Context) (*domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.Stats{}
	for _, row := range s.rows {
		stats.TotalTransactions++
		if sameDay(row.CreatedAt, time.Now()) {
			stats.TodayTransactions++
		}
		switch row.Status {
		case domain.StatusCompleted:
			stats.CompletedTransactions++
			stats.TotalRevenue = stats.TotalRevenue.Add(row.Amount)
		case domain.StatusPending:
			stats.PendingTransactions++
		}
	}
	return stats, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStore) completedCount(payer string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.PayerPhone == payer && row.Status == domain.StatusCompleted {
			n++
		}
	}
	return n
}

// memBundles is a fixed in-memory catalog whose prices can be changed
// mid-test to prove the copied-amount invariant.
type memBundles struct {
	mu      sync.Mutex
	bundles map[int]domain.Bundle
}

func newMemBundles(bundles ...domain.Bundle) *memBundles {
	m := &memBundles{bundles: make(map[int]domain.Bundle)}
	for _, b := range bundles {
		b.IsActive = true
		m.bundles[b.ID] = b
	}
	return m
}

func (m *memBundles) ListActive(_ context.Context) ([]domain.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Bundle
	for _, b := range m.bundles {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBundles) GetByID(_ context.Context, id int) (*domain.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bundles[id]; ok {
		return &b, nil
	}
	return nil, domain.ErrBundleNotFound
}

func (m *memBundles) set(b domain.Bundle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[b.ID] = b
}

// memAudit collects audit entries so tests can assert on exactly how many
// were written.
type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *memAudit) Append(_ context.Context, entry *domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *memAudit) byAction(action string) []domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
