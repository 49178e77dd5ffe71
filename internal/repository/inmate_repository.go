package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/visicontrol/visit-scheduler/internal/model"
)

// InmateRepo provides the minimal inmate persistence the scheduler needs:
// creating records, listing them for the admin panel and resolving display
// names when a visit only carries an inmate id.
type InmateRepo struct {
	db *sql.DB
}

// NewInmateRepo returns an InmateRepo bound to the database.
func NewInmateRepo(db *sql.DB) *InmateRepo { return &InmateRepo{db: db} }

// Create inserts an inmate and populates the generated ID.
func (r *InmateRepo) Create(ctx context.Context, in *model.Inmate) error {
	if in.Status == "" {
		in.Status = "ENABLED"
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO inmates (first_name, last_name, status) VALUES (?,?,?)",
		strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), in.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	in.ID = uint64(id)
	return nil
}

// GetByID loads an inmate record. ErrNotFound is returned when missing.
func (r *InmateRepo) GetByID(ctx context.Context, id uint64) (model.Inmate, error) {
	var in model.Inmate
	err := r.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, status, created_at, updated_at FROM inmates WHERE id = ?",
		id).Scan(&in.ID, &in.FirstName, &in.LastName, &in.Status, &in.CreatedAt, &in.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Inmate{}, ErrNotFound
	}
	return in, err
}

// DisplayName resolves the inmate's display name by id. ErrNotFound is
// returned when the inmate does not exist.
func (r *InmateRepo) DisplayName(ctx context.Context, id uint64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		"SELECT TRIM(CONCAT(COALESCE(first_name,''), ' ', COALESCE(last_name,''))) FROM inmates WHERE id = ? LIMIT 1",
		id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return name, err
}

// List returns enabled inmates, optionally filtered by a case-insensitive
// name match.
func (r *InmateRepo) List(ctx context.Context, search string) ([]model.Inmate, error) {
	q := `SELECT id, first_name, last_name, status, created_at, updated_at
	    FROM inmates WHERE status = 'ENABLED'`
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		q += " AND LOWER(CONCAT(first_name, ' ', last_name)) LIKE ?"
		args = append(args, "%"+strings.ToLower(s)+"%")
	}
	q += " ORDER BY first_name, last_name LIMIT 200"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Inmate, 0)
	for rows.Next() {
		var in model.Inmate
		if err := rows.Scan(&in.ID, &in.FirstName, &in.LastName, &in.Status, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
