package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserDirectory serves identity and role facts. Consumed read-only; the
// underlying tables are owned by the main backend.
type UserDirectory interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	ListActive(ctx context.Context) ([]models.User, error)
	ListActiveByRole(ctx context.Context, roles ...string) ([]models.User, error)
	BulkUsers(ctx context.Context, ids []int) ([]models.User, error)
}

// AssignmentDirectory serves project-assignment facts linking project
// managers and contractors.
type AssignmentDirectory interface {
	ContractorsManagedBy(ctx context.Context, managerID int) ([]int, error)
	ManagersForContractor(ctx context.Context, contractorID int) ([]int, error)
}

// Directory is the sqlx adapter for both directory interfaces.
type Directory struct {
	db *sqlx.DB
}

// NewDirectory constructs the adapter.
func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

// GetUser fetches a single identity record.
func (d *Directory) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := d.db.GetContext(ctx, &user,
		`SELECT id, username, role, is_active FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListActive returns every active identity regardless of role.
func (d *Directory) ListActive(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.db.SelectContext(ctx, &users,
		`SELECT id, username, role, is_active FROM users WHERE is_active = TRUE ORDER BY id`)
	return users, err
}

// ListActiveByRole returns every active user holding one of the roles.
func (d *Directory) ListActiveByRole(ctx context.Context, roles ...string) ([]models.User, error) {
	var users []models.User
	err := d.db.SelectContext(ctx, &users,
		`SELECT id, username, role, is_active FROM users
         WHERE is_active = TRUE AND role = ANY($1)
         ORDER BY id`, pq.Array(roles))
	return users, err
}

// BulkUsers fetches multiple users in one query for display data.
func (d *Directory) BulkUsers(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	id64s := make([]int64, 0, len(ids))
	for _, id := range ids {
		id64s = append(id64s, int64(id))
	}
	var users []models.User
	err := d.db.SelectContext(ctx, &users,
		`SELECT id, username, role, is_active FROM users WHERE id = ANY($1) ORDER BY id`, pq.Array(id64s))
	return users, err
}

// ContractorsManagedBy returns contractor ids assigned to projects the
// manager runs.
func (d *Directory) ContractorsManagedBy(ctx context.Context, managerID int) ([]int, error) {
	var ids []int
	err := d.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT contractor_id FROM projects
         WHERE project_manager_id = $1 AND contractor_id IS NOT NULL
         ORDER BY contractor_id`, managerID)
	return ids, err
}

// ManagersForContractor returns project-manager ids of projects the
// contractor is assigned to.
func (d *Directory) ManagersForContractor(ctx context.Context, contractorID int) ([]int, error) {
	var ids []int
	err := d.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT project_manager_id FROM projects
         WHERE contractor_id = $1 AND project_manager_id IS NOT NULL
         ORDER BY project_manager_id`, contractorID)
	return ids, err
}

var _ UserDirectory = (*Directory)(nil)
var _ AssignmentDirectory = (*Directory)(nil)
