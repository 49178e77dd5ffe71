package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/visicontrol/visit-scheduler/internal/model"
	"github.com/visicontrol/visit-scheduler/internal/utils"
)

// UserRepo persists accounts in the `users` table.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a user with a bcrypt-hashed password and returns its ID.
// Duplicate emails map to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, name, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, name, password_hash, role) VALUES (?,?,?,?)",
		email, strings.TrimSpace(name), hash, role)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userColumns = `id, email, name, password_hash, role, notify_email, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.NotifyEmail, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email))
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
}

// SetNotifyEmail toggles the email opt-in flag.
func (r *UserRepo) SetNotifyEmail(ctx context.Context, id uint64, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET notify_email = ? WHERE id = ?", enabled, id)
	return err
}
