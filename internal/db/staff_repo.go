package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"agentdesk/internal/types"
)

// StaffRepository provides data access for staff accounts and their
// permission grants. The grant is stored as a jsonb column on the staff row,
// so deleting the account removes the grant with it.
type StaffRepository struct {
	db DBTX
}

// NewStaffRepository creates a new StaffRepository backed by the given
// database connection (pool or transaction).
func NewStaffRepository(db DBTX) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `s.id, s.tenant_id, s.name, s.email, s.permissions,
	s.created_at, s.updated_at`

// scanStaff scans a single staff row. The permissions column is decoded
// explicitly from jsonb; a NULL grant stays nil, which the resolver treats as
// "denied every mapped permission".
func scanStaff(row pgx.Row) (*types.StaffAccount, error) {
	var staff types.StaffAccount
	var rawGrant []byte

	err := row.Scan(
		&staff.ID,
		&staff.TenantID,
		&staff.Name,
		&staff.Email,
		&rawGrant,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rawGrant) > 0 {
		if err := json.Unmarshal(rawGrant, &staff.Grant); err != nil {
			return nil, err
		}
	}
	return &staff, nil
}

// GetByID retrieves a staff account scoped to its agency. Returns
// not_found_staff if the account does not exist within the tenant.
func (r *StaffRepository) GetByID(ctx context.Context, tenantID, staffID string) (*types.StaffAccount, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+staffColumns+`
		 FROM staff_accounts s
		 WHERE s.id = $1 AND s.tenant_id = $2`,
		staffID, tenantID,
	)

	staff, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundStaff, "staff account not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve staff account", err)
	}
	return staff, nil
}

// ListByTenant returns every staff account for the agency, ordered by
// creation time for stable presentation.
func (r *StaffRepository) ListByTenant(ctx context.Context, tenantID string) ([]*types.StaffAccount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+staffColumns+`
		 FROM staff_accounts s
		 WHERE s.tenant_id = $1
		 ORDER BY s.created_at`,
		tenantID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list staff accounts", err)
	}
	defer rows.Close()

	var accounts []*types.StaffAccount
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan staff account", err)
		}
		accounts = append(accounts, staff)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read staff accounts", err)
	}
	return accounts, nil
}

// Create inserts a new staff account with its initial permission grant.
// The caller sets the ID (prefixed UUID, e.g. "stf_...").
func (r *StaffRepository) Create(ctx context.Context, staff *types.StaffAccount) error {
	rawGrant, err := json.Marshal(staff.Grant)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode permission grant", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO staff_accounts (id, tenant_id, name, email, permissions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
		staff.ID,
		staff.TenantID,
		staff.Name,
		staff.Email,
		rawGrant,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create staff account", err)
	}
	return nil
}

// UpdateGrant replaces the staff member's permission set in one
// last-writer-wins write keyed by the staff row.
func (r *StaffRepository) UpdateGrant(ctx context.Context, tenantID, staffID string, grant types.PermissionGrant) error {
	rawGrant, err := json.Marshal(grant)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode permission grant", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE staff_accounts
		 SET permissions = $1,
		     updated_at = NOW()
		 WHERE id = $2 AND tenant_id = $3`,
		rawGrant,
		staffID,
		tenantID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update permission grant", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundStaff, "staff account not found", nil)
	}
	return nil
}

// Delete removes the staff account. The permission grant lives on the same
// row, so it is removed with the account.
func (r *StaffRepository) Delete(ctx context.Context, tenantID, staffID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM staff_accounts
		 WHERE id = $1 AND tenant_id = $2`,
		staffID, tenantID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete staff account", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundStaff, "staff account not found", nil)
	}
	return nil
}
