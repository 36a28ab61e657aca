package users

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sma-almacen/sma/internal/platform/db"
	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUser = `SELECT u.id, u.username, u.first_name, u.last_name, u.email, u.password_hash,
       u.is_active, COALESCE(p.access_level, 0), COALESCE(p.employee_number, ''),
       p.user_id IS NOT NULL, u.created_at, u.updated_at
FROM users u
LEFT JOIN user_profiles p ON p.user_id = u.id`

func scanUser(row pgx.Row) (User, error) {
	var (
		u     User
		level int16
	)
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.IsActive, &level, &u.EmployeeNumber, &u.HasProfile, &u.CreatedAt, &u.UpdatedAt)
	u.Level = rbac.Level(level)
	return u, err
}

// List returns all users ordered by username.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectUser+` ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get fetches a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
	return u, shared.MapStoreError(err)
}

// Create inserts the account and its profile in one transaction.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO users (username, first_name, last_name, email, password_hash, is_active)
VALUES ($1, $2, $3, $4, $5, TRUE)
RETURNING id, created_at, updated_at`, u.Username, u.FirstName, u.LastName, u.Email, u.PasswordHash)
		if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return shared.MapStoreError(err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO user_profiles (user_id, access_level, employee_number) VALUES ($1, $2, $3)`,
			u.ID, int16(u.Level), u.EmployeeNumber)
		return shared.MapStoreError(err)
	})
	if err != nil {
		return User{}, err
	}
	u.IsActive = true
	u.HasProfile = true
	return u, nil
}

// Update writes account fields and upserts the profile. An empty
// passwordHash leaves the stored hash untouched.
func (r *Repository) Update(ctx context.Context, u User, passwordHash string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users
SET first_name = $2, last_name = $3, email = $4, is_active = $5,
    password_hash = COALESCE(NULLIF($6, ''), password_hash), updated_at = NOW()
WHERE id = $1`, u.ID, u.FirstName, u.LastName, u.Email, u.IsActive, passwordHash)
		if err != nil {
			return shared.MapStoreError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		_, err = tx.Exec(ctx, `INSERT INTO user_profiles (user_id, access_level, employee_number) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET access_level = EXCLUDED.access_level, employee_number = EXCLUDED.employee_number`,
			u.ID, int16(u.Level), u.EmployeeNumber)
		return shared.MapStoreError(err)
	})
}

// Delete removes the account; the profile cascades.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return shared.MapStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// EnsureProfile inserts a profile with level when none exists. It reports
// whether a row was created.
func (r *Repository) EnsureProfile(ctx context.Context, userID int64, level rbac.Level) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO user_profiles (user_id, access_level) VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING`, userID, int16(level))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ RepositoryPort = (*Repository)(nil)
