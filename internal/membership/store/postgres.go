package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"roster/internal/membership/models"
	id "roster/pkg/domain"
	"roster/pkg/platform/sentinel"
	"roster/pkg/requestcontext"
)

const (
	pqUniqueViolation = "23505"
	pqQueryCanceled   = "57014"
)

const membershipColumns = `id, tenant_id, identity_account_id, display_name, email, role, status, metadata, created_at, updated_at`

// PostgresStore persists memberships in a PostgreSQL table whose name comes from
// configuration. Every call runs under its own statement deadline.
type PostgresStore struct {
	db      *sql.DB
	table   string
	timeout time.Duration
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithQueryTimeout bounds each statement.
func WithQueryTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewPostgres constructs a PostgreSQL-backed membership store on table, which may be
// schema-qualified ("crm.team_members").
func NewPostgres(db *sql.DB, table string, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:      db,
		table:   QuoteTable(table),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QuoteTable quotes each dot-separated part of a table name.
func QuoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// Schema returns the DDL for table. Uniqueness is per tenant on the identity account and
// on the lowercased email.
func Schema(table string) string {
	quoted := QuoteTable(table)
	parts := strings.Split(table, ".")
	base := strings.TrimSpace(parts[len(parts)-1])
	idx := func(suffix string) string { return pq.QuoteIdentifier(base + "_" + suffix) }
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id                  TEXT PRIMARY KEY,
	tenant_id           TEXT NOT NULL,
	identity_account_id TEXT NULL,
	display_name        TEXT NOT NULL,
	email               TEXT NOT NULL,
	role                TEXT NOT NULL,
	status              TEXT NOT NULL CHECK (status IN ('active', 'blacklisted', 'removed')),
	metadata            JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS %[2]s ON %[1]s (tenant_id, identity_account_id) WHERE identity_account_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS %[3]s ON %[1]s (tenant_id, lower(email));
CREATE INDEX IF NOT EXISTS %[4]s ON %[1]s (status, tenant_id);
CREATE INDEX IF NOT EXISTS %[5]s ON %[1]s (identity_account_id);
`, quoted, idx("tenant_identity_uq"), idx("tenant_email_uq"), idx("status_idx"), idx("identity_idx"))
}

// Migrate applies Schema on the store's table.
func (s *PostgresStore) Migrate(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, Schema(table)); err != nil {
		return fmt.Errorf("migrate membership table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, m *models.Membership) error {
	if m == nil {
		return fmt.Errorf("membership is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, s.table, membershipColumns)
	_, err = s.db.ExecContext(ctx, query,
		m.ID.String(),
		m.TenantID.String(),
		nullAccount(m.IdentityAccountID),
		m.DisplayName,
		m.Email,
		string(m.Role),
		string(m.Status),
		meta,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return translate(err, "insert membership")
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, membershipColumns, s.table)
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, membershipID.String()))
	if err != nil {
		return nil, translate(err, "find membership")
	}
	return m, nil
}

func (s *PostgresStore) FindByIdentityAccountID(ctx context.Context, tenantID id.TenantID, accountID id.AccountID) (*models.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 AND identity_account_id = $2`, membershipColumns, s.table)
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, tenantID.String(), accountID.String()))
	if err != nil {
		return nil, translate(err, "find membership by identity")
	}
	return m, nil
}

func (s *PostgresStore) FindTenantForAccount(ctx context.Context, accountID id.AccountID) (id.TenantID, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	query := fmt.Sprintf(`
		SELECT tenant_id FROM %s
		WHERE identity_account_id = $1 AND status <> 'removed'
		ORDER BY created_at ASC
		LIMIT 1`, s.table)
	var tenant string
	if err := s.db.QueryRowContext(ctx, query, accountID.String()).Scan(&tenant); err != nil {
		return "", translate(err, "resolve tenant")
	}
	return id.TenantID(tenant), nil
}

// UpdateStatus moves a membership to status to when its current status is in from.
// The check and the write happen in one statement.
func (s *PostgresStore) UpdateStatus(ctx context.Context, membershipID id.MembershipID, from []models.Status, to models.Status, meta models.Metadata) (*models.Membership, error) {
	now := requestcontext.Now(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	patch, err := encodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	sources := make([]string, len(from))
	for i, st := range from {
		sources[i] = string(st)
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, metadata = metadata || $3::jsonb, updated_at = $4
		WHERE id = $1 AND status = ANY($5)
		RETURNING %s`, s.table, membershipColumns)
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, membershipID.String(), string(to), patch, now, pq.Array(sources)))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translate(err, "update membership status")
	}

	// Nothing matched: tell a missing row apart from a disallowed source status.
	var current string
	probe := fmt.Sprintf(`SELECT status FROM %s WHERE id = $1`, s.table)
	if err := s.db.QueryRowContext(ctx, probe, membershipID.String()).Scan(&current); err != nil {
		return nil, translate(err, "update membership status")
	}
	return nil, fmt.Errorf("membership %s is %s: %w", membershipID, current, sentinel.ErrInvalidState)
}

func (s *PostgresStore) UpdateMetadata(ctx context.Context, membershipID id.MembershipID, patch models.Metadata) (*models.Membership, error) {
	now := requestcontext.Now(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	encoded, err := encodeMetadata(patch)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET metadata = metadata || $2::jsonb, updated_at = $3
		WHERE id = $1
		RETURNING %s`, s.table, membershipColumns)
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, membershipID.String(), encoded, now))
	if err != nil {
		return nil, translate(err, "update membership metadata")
	}
	return m, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, tenantID id.TenantID, statuses ...models.Status) ([]*models.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE status = ANY($1) AND ($2::text = '' OR tenant_id = $2::text)
		ORDER BY created_at, id`, membershipColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query, pq.Array(values), tenantID.String())
	if err != nil {
		return nil, translate(err, "list memberships")
	}
	defer rows.Close()

	out := make([]*models.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, translate(err, "scan membership")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list memberships")
	}
	return out, nil
}

// Health pings the database.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMembership(row rowScanner) (*models.Membership, error) {
	var (
		m         models.Membership
		membID    string
		tenant    string
		account   sql.NullString
		role      string
		status    string
		metaBytes []byte
	)
	if err := row.Scan(&membID, &tenant, &account, &m.DisplayName, &m.Email, &role, &status, &metaBytes, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.ID = id.MembershipID(membID)
	m.TenantID = id.TenantID(tenant)
	if account.Valid {
		m.IdentityAccountID = id.AccountID(account.String)
	}
	m.Role = models.Role(role)
	m.Status = models.Status(status)
	if len(metaBytes) > 0 {
		if err := json.Unmarshal(metaBytes, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode membership metadata: %w", err)
		}
	}
	return &m, nil
}

func encodeMetadata(meta models.Metadata) ([]byte, error) {
	if meta == nil {
		meta = models.Metadata{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode membership metadata: %w", err)
	}
	return b, nil
}

func nullAccount(a id.AccountID) sql.NullString {
	if a.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: a.String(), Valid: true}
}

// translate maps driver errors onto sentinel errors.
func translate(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, sentinel.ErrTimeout, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, sentinel.ErrConflict, pqErr.Constraint)
		case pqQueryCanceled:
			return fmt.Errorf("%s: %w: %v", op, sentinel.ErrTimeout, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
