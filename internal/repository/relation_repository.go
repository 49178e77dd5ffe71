package repository

import (
	"context"
	"database/sql"

	"github.com/visicontrol/visit-scheduler/internal/model"
)

// RelationRepo manages the `user_inmates` authorization table. A row means
// the user may book visits with the inmate; the rel column tags why.
type RelationRepo struct {
	db *sql.DB
}

// NewRelationRepo returns a RelationRepo bound to the database.
func NewRelationRepo(db *sql.DB) *RelationRepo { return &RelationRepo{db: db} }

// Exists reports whether an authorization relation links the user to the
// inmate.
func (r *RelationRepo) Exists(ctx context.Context, userID, inmateID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM user_inmates WHERE user_id = ? AND inmate_id = ? LIMIT 1",
		userID, inmateID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Upsert authorizes a user for an inmate, updating the relation tag when
// the pair already exists.
func (r *RelationRepo) Upsert(ctx context.Context, userID, inmateID uint64, rel model.Relation) error {
	const q = `INSERT INTO user_inmates (user_id, inmate_id, rel) VALUES (?,?,?)
	    ON DUPLICATE KEY UPDATE rel = VALUES(rel)`
	_, err := r.db.ExecContext(ctx, q, userID, inmateID, string(rel))
	return err
}

// Delete removes the authorization for (userID, inmateID). Removing a
// missing pair is not an error.
func (r *RelationRepo) Delete(ctx context.Context, userID, inmateID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM user_inmates WHERE user_id = ? AND inmate_id = ?", userID, inmateID)
	return err
}

// AuthorizedInmate is an inmate visible to a visitor, with the relation tag.
type AuthorizedInmate struct {
	InmateID  uint64         `json:"inmate_id"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Relation  model.Relation `json:"relation"`
}

// ListForUser returns the enabled inmates the user is authorized to visit.
func (r *RelationRepo) ListForUser(ctx context.Context, userID uint64) ([]AuthorizedInmate, error) {
	const q = `SELECT i.id, i.first_name, i.last_name, ui.rel
	    FROM user_inmates ui
	    JOIN inmates i ON i.id = ui.inmate_id
	    WHERE ui.user_id = ? AND i.status = 'ENABLED'
	    ORDER BY i.first_name, i.last_name
	    LIMIT 200`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AuthorizedInmate, 0)
	for rows.Next() {
		var a AuthorizedInmate
		var rel string
		if err := rows.Scan(&a.InmateID, &a.FirstName, &a.LastName, &rel); err != nil {
			return nil, err
		}
		a.Relation = model.Relation(rel)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AuthorizedUser is a visitor account authorized for an inmate, as listed
// on the admin side.
type AuthorizedUser struct {
	UserID   uint64         `json:"user_id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Relation model.Relation `json:"relation"`
}

// ListForInmate returns the accounts authorized to visit an inmate.
func (r *RelationRepo) ListForInmate(ctx context.Context, inmateID uint64) ([]AuthorizedUser, error) {
	const q = `SELECT ui.user_id, u.name, u.email, ui.rel
	    FROM user_inmates ui
	    JOIN users u ON u.id = ui.user_id
	    WHERE ui.inmate_id = ?
	    ORDER BY u.name`
	rows, err := r.db.QueryContext(ctx, q, inmateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AuthorizedUser, 0)
	for rows.Next() {
		var a AuthorizedUser
		var rel string
		if err := rows.Scan(&a.UserID, &a.Name, &a.Email, &rel); err != nil {
			return nil, err
		}
		a.Relation = model.Relation(rel)
		out = append(out, a)
	}
	return out, rows.Err()
}
