// Package storage persists tenant records in sqlite. A tenant is one
// external account entitled to a messaging session; its externalID doubles
// as the session ID.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantExists    = errors.New("tenant already exists")
	ErrInvalidTenantID = errors.New("invalid tenant id")
)

// Tenant status values mirrored from the live session state.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

var tenantIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validateTenantID(id string) error {
	if !tenantIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, id)
	}
	return nil
}

type Tenant struct {
	ExternalID      string    `json:"externalId"`
	Name            string    `json:"name"`
	ReceiveMessages bool      `json:"receiveMessages"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// TenantRepository stores tenants in a single sqlite table.
type TenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(path string) (*TenantRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant database: %w", err)
	}
	// sqlite allows a single writer; more connections just queue on locks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize tenant schema: %w", err)
	}
	return &TenantRepository{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	external_id      TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	receive_messages INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'disconnected',
	created_at       TIMESTAMP NOT NULL
);
`

func (r *TenantRepository) Close() error {
	return r.db.Close()
}

func (r *TenantRepository) FindByExternalID(ctx context.Context, externalID string) (*Tenant, error) {
	if err := validateTenantID(externalID); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT external_id, name, receive_messages, status, created_at
		 FROM tenants WHERE external_id = ?`, externalID)

	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return t, nil
}

func (r *TenantRepository) FindAll(ctx context.Context) ([]Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT external_id, name, receive_messages, status, created_at
		 FROM tenants ORDER BY external_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) Create(ctx context.Context, t Tenant) (*Tenant, error) {
	if err := validateTenantID(t.ExternalID); err != nil {
		return nil, err
	}
	if t.Status == "" {
		t.Status = StatusDisconnected
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (external_id, name, receive_messages, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ExternalID, t.Name, boolToInt(t.ReceiveMessages), t.Status, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrTenantExists, t.ExternalID)
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return &t, nil
}

func (r *TenantRepository) Update(ctx context.Context, t Tenant) (*Tenant, error) {
	if err := validateTenantID(t.ExternalID); err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET name = ?, receive_messages = ?, status = ?
		 WHERE external_id = ?`,
		t.Name, boolToInt(t.ReceiveMessages), t.Status, t.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, t.ExternalID)
	}
	return r.FindByExternalID(ctx, t.ExternalID)
}

func (r *TenantRepository) UpdateStatus(ctx context.Context, externalID, status string) error {
	if err := validateTenantID(externalID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET status = ? WHERE external_id = ?`, status, externalID)
	if err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, externalID)
	}
	return nil
}

func (r *TenantRepository) Delete(ctx context.Context, externalID string) error {
	if err := validateTenantID(externalID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tenants WHERE external_id = ?`, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, externalID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var t Tenant
	var receive int
	if err := row.Scan(&t.ExternalID, &t.Name, &receive, &t.Status, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ReceiveMessages = receive != 0
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	// modernc sqlite surfaces constraint failures as plain errors; the
	// message is the only stable signal.
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
