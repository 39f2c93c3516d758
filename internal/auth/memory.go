package auth

import (
	"context"
	"sort"
	"sync"
)

// In-memory store implementations backing tests and DSN-less development
// runs. Postgres replaces all three in production wiring.

// MemRoleStore keeps role assignments in a mutex-guarded map.
type MemRoleStore struct {
	mu   sync.RWMutex
	rows map[string]RoleAssignment
}

func NewMemRoleStore() *MemRoleStore {
	return &MemRoleStore{rows: make(map[string]RoleAssignment)}
}

func (s *MemRoleStore) Get(ctx context.Context, accountID string) (RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[accountID]
	if !ok {
		return RoleAssignment{}, ErrNotFound
	}
	return row, nil
}

func (s *MemRoleStore) Upsert(ctx context.Context, assignment RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[assignment.AccountID]; ok {
		assignment.CreatedAt = existing.CreatedAt
	}
	s.rows[assignment.AccountID] = assignment
	return nil
}

func (s *MemRoleStore) List(ctx context.Context) ([]RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoleAssignment, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

// MemFactorStore keeps factor records in a mutex-guarded map. Put replaces
// the whole record, matching the replace-on-re-enrollment rule.
type MemFactorStore struct {
	mu   sync.RWMutex
	rows map[string]FactorRecord
}

func NewMemFactorStore() *MemFactorStore {
	return &MemFactorStore{rows: make(map[string]FactorRecord)}
}

func (s *MemFactorStore) Get(ctx context.Context, accountID string) (FactorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[accountID]
	if !ok {
		return FactorRecord{}, ErrNotFound
	}
	row.BiometricTemplate = append([]byte(nil), row.BiometricTemplate...)
	return row, nil
}

func (s *MemFactorStore) Put(ctx context.Context, record FactorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.BiometricTemplate = append([]byte(nil), record.BiometricTemplate...)
	s.rows[record.AccountID] = record
	return nil
}

// MemAuditSink appends entries to a slice in creation order.
type MemAuditSink struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

func NewMemAuditSink() *MemAuditSink {
	return &MemAuditSink{}
}

func (s *MemAuditSink) Append(ctx context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Recent returns the newest entries first.
func (s *MemAuditSink) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]AuditEntry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Entries returns a copy of everything appended, oldest first.
func (s *MemAuditSink) Entries() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
