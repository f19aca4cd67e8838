package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"roster/internal/membership/models"
	id "roster/pkg/domain"
	"roster/pkg/platform/sentinel"
	"roster/pkg/requestcontext"
)

// InMemory is a process-local membership store guarded by a RWMutex.
// Values are cloned on the way in and out so callers cannot mutate stored rows.
type InMemory struct {
	mu   sync.RWMutex
	rows map[id.MembershipID]*models.Membership
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[id.MembershipID]*models.Membership)}
}

func (s *InMemory) Insert(_ context.Context, m *models.Membership) error {
	if m == nil {
		return fmt.Errorf("membership is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[m.ID]; exists {
		return fmt.Errorf("membership %s: %w", m.ID, sentinel.ErrConflict)
	}
	for _, row := range s.rows {
		if row.TenantID != m.TenantID {
			continue
		}
		if m.HasIdentity() && row.IdentityAccountID == m.IdentityAccountID {
			return fmt.Errorf("identity %s already a member of tenant %s: %w", m.IdentityAccountID, m.TenantID, sentinel.ErrConflict)
		}
		if models.NormalizeEmail(row.Email) == models.NormalizeEmail(m.Email) {
			return fmt.Errorf("email already a member of tenant %s: %w", m.TenantID, sentinel.ErrConflict)
		}
	}
	s.rows[m.ID] = m.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[membershipID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return row.Clone(), nil
}

func (s *InMemory) FindByIdentityAccountID(_ context.Context, tenantID id.TenantID, accountID id.AccountID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.TenantID == tenantID && row.IdentityAccountID == accountID {
			return row.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindTenantForAccount returns the tenant of the account's oldest non-removed membership.
func (s *InMemory) FindTenantForAccount(_ context.Context, accountID id.AccountID) (id.TenantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Membership
	for _, row := range s.rows {
		if row.IdentityAccountID != accountID || row.Status == models.StatusRemoved {
			continue
		}
		if found == nil || row.CreatedAt.Before(found.CreatedAt) {
			found = row
		}
	}
	if found == nil {
		return "", sentinel.ErrNotFound
	}
	return found.TenantID, nil
}

func (s *InMemory) UpdateStatus(ctx context.Context, membershipID id.MembershipID, from []models.Status, to models.Status, meta models.Metadata) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[membershipID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !slices.Contains(from, row.Status) {
		return nil, fmt.Errorf("membership %s is %s: %w", membershipID, row.Status, sentinel.ErrInvalidState)
	}
	row.Status = to
	row.Metadata = row.Metadata.Merge(meta)
	row.UpdatedAt = requestcontext.Now(ctx)
	return row.Clone(), nil
}

func (s *InMemory) UpdateMetadata(ctx context.Context, membershipID id.MembershipID, patch models.Metadata) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[membershipID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	row.Metadata = row.Metadata.Merge(patch)
	row.UpdatedAt = requestcontext.Now(ctx)
	return row.Clone(), nil
}

// ListByStatus returns memberships in any of statuses. A zero tenantID lists all tenants.
func (s *InMemory) ListByStatus(_ context.Context, tenantID id.TenantID, statuses ...models.Status) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Membership, 0)
	for _, row := range s.rows {
		if !tenantID.IsZero() && row.TenantID != tenantID {
			continue
		}
		if slices.Contains(statuses, row.Status) {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Count returns the number of stored memberships.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
