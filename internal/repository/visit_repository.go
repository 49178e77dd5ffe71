package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/visicontrol/visit-scheduler/internal/model"
)

// VisitRepo provides CRUD operations for visits. Dates are stored in a DATE
// column and exchanged as "YYYY-MM-DD" strings; hours in a TIME column as
// "HH:mm:ss". All timestamps are UTC (the connection is opened with
// loc=UTC).
type VisitRepo struct {
	db *sql.DB
}

// NewVisitRepo returns a VisitRepo bound to the given database.
func NewVisitRepo(db *sql.DB) *VisitRepo { return &VisitRepo{db: db} }

// DB exposes the underlying handle for callers that need transactions.
func (r *VisitRepo) DB() *sql.DB { return r.db }

const visitColumns = `id, visitor_name, inmate_id, inmate_name, visit_date,
	visit_hour, duration_minutes, status, notes, created_by, created_at, updated_at`

func scanVisit(row interface{ Scan(...any) error }) (model.Visit, error) {
	var (
		v        model.Visit
		inmateID sql.NullInt64
		date     time.Time // DATE columns arrive as time.Time with parseTime=true
		duration sql.NullInt64
		status   string
		notes    sql.NullString
		owner    sql.NullInt64
	)
	err := row.Scan(&v.ID, &v.VisitorName, &inmateID, &v.InmateName, &date,
		&v.VisitHour, &duration, &status, &notes, &owner, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return model.Visit{}, err
	}
	v.VisitDate = date.Format("2006-01-02")
	if inmateID.Valid {
		id := uint64(inmateID.Int64)
		v.InmateID = &id
	}
	v.DurationMinutes = 60
	if duration.Valid && duration.Int64 > 0 {
		v.DurationMinutes = int(duration.Int64)
	}
	if st, ok := model.ParseStatus(status); ok {
		v.Status = st
	} else {
		v.Status = model.StatusPending
	}
	if notes.Valid {
		n := notes.String
		v.Notes = &n
	}
	if owner.Valid {
		o := uint64(owner.Int64)
		v.CreatedBy = &o
	}
	return v, nil
}

// GetByID loads a single visit. ErrNotFound is returned when the row does
// not exist.
func (r *VisitRepo) GetByID(ctx context.Context, id uint64) (model.Visit, error) {
	q := `SELECT ` + visitColumns + ` FROM visits WHERE id = ?`
	v, err := scanVisit(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Visit{}, ErrNotFound
	}
	return v, err
}

// Filter restricts List. Zero values mean "no restriction".
type Filter struct {
	Date      string
	Status    model.Status
	CreatedBy *uint64
	InmateID  *uint64
	FromDate  string
	ToDate    string
	Limit     int
}

// List returns visits matching the filter, newest first. At most 200 rows
// are returned unless the filter narrows the limit further.
func (r *VisitRepo) List(ctx context.Context, f Filter) ([]model.Visit, error) {
	wh := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if f.Date != "" {
		wh = append(wh, "visit_date = ?")
		args = append(args, f.Date)
	}
	if f.Status != "" {
		wh = append(wh, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CreatedBy != nil {
		wh = append(wh, "created_by = ?")
		args = append(args, *f.CreatedBy)
	}
	if f.InmateID != nil {
		wh = append(wh, "inmate_id = ?")
		args = append(args, *f.InmateID)
	}
	if f.FromDate != "" {
		wh = append(wh, "visit_date >= ?")
		args = append(args, f.FromDate)
	}
	if f.ToDate != "" {
		wh = append(wh, "visit_date <= ?")
		args = append(args, f.ToDate)
	}
	where := ""
	if len(wh) > 0 {
		where = "WHERE " + strings.Join(wh, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	q := fmt.Sprintf("SELECT %s FROM visits %s ORDER BY visit_date DESC, visit_hour DESC LIMIT %d",
		visitColumns, where, limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListForConflict returns the still-relevant visits that could block a
// candidate slot for (inmateID, date): status PENDING or APPROVED, date not
// in the past, excluding the visit being edited when excludeID is non-zero.
func (r *VisitRepo) ListForConflict(ctx context.Context, inmateID uint64, date string, excludeID uint64) ([]model.Visit, error) {
	q := `SELECT ` + visitColumns + ` FROM visits
	      WHERE inmate_id = ? AND visit_date = ?
	        AND status IN ('PENDING','APPROVED')
	        AND visit_date >= CURDATE()
	        AND id <> ?`
	rows, err := r.db.QueryContext(ctx, q, inmateID, date, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// WithSlotLock runs fn while holding a MySQL advisory lock keyed by
// (inmateID, date). The lock serializes the conflict-check-then-insert
// sequence for one inmate and day, so two concurrent bookings cannot both
// observe a conflict-free snapshot. The lock is session-scoped, so the work
// is pinned to a single connection.
func (r *VisitRepo) WithSlotLock(ctx context.Context, inmateID uint64, date string, fn func(ctx context.Context) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	key := fmt.Sprintf("visit_slot:%d:%s", inmateID, date)
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 10)", key).Scan(&got); err != nil {
		return err
	}
	if !got.Valid || got.Int64 != 1 {
		return ErrConflict
	}
	defer func() {
		var released sql.NullInt64
		_ = conn.QueryRowContext(context.WithoutCancel(ctx), "SELECT RELEASE_LOCK(?)", key).Scan(&released)
	}()
	return fn(ctx)
}

// Create inserts a new visit and populates its ID and timestamps.
func (r *VisitRepo) Create(ctx context.Context, v *model.Visit) error {
	const q = `INSERT INTO visits
	    (visitor_name, inmate_id, inmate_name, visit_date, visit_hour, duration_minutes, status, notes, created_by)
	    VALUES (?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		v.VisitorName, nullableID(v.InmateID), v.InmateName, v.VisitDate, v.VisitHour,
		v.DurationMinutes, string(v.Status), nullableStr(v.Notes), nullableID(v.CreatedBy))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	stored, err := r.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = stored
	return nil
}

// Update overwrites the mutable columns of a visit. ErrNotFound is returned
// when the row disappeared between load and write.
func (r *VisitRepo) Update(ctx context.Context, v *model.Visit) error {
	const q = `UPDATE visits SET
	    visitor_name=?, inmate_id=?, inmate_name=?, visit_date=?, visit_hour=?,
	    duration_minutes=?, status=?, notes=?
	    WHERE id=?`
	res, err := r.db.ExecContext(ctx, q,
		v.VisitorName, nullableID(v.InmateID), v.InmateName, v.VisitDate, v.VisitHour,
		v.DurationMinutes, string(v.Status), nullableStr(v.Notes), v.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows for identical values too, so
		// confirm the row really is gone before reporting ErrNotFound.
		if _, err := r.GetByID(ctx, v.ID); err != nil {
			return err
		}
	}
	stored, err := r.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = stored
	return nil
}

// CancelOwned performs the owner cancellation as one conditional UPDATE:
// the visit must exist, belong to ownerID, still be PENDING or APPROVED and
// be dated today or later. It reports false when no row qualified, without
// distinguishing why.
func (r *VisitRepo) CancelOwned(ctx context.Context, ownerID, visitID uint64) (model.Visit, bool, error) {
	const q = `UPDATE visits SET status='CANCELLED'
	    WHERE id = ? AND created_by = ?
	      AND status IN ('PENDING','APPROVED')
	      AND visit_date >= CURDATE()`
	res, err := r.db.ExecContext(ctx, q, visitID, ownerID)
	if err != nil {
		return model.Visit{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Visit{}, false, err
	}
	if n == 0 {
		return model.Visit{}, false, nil
	}
	v, err := r.GetByID(ctx, visitID)
	if err != nil {
		return model.Visit{}, false, err
	}
	return v, true, nil
}

// Delete removes a visit permanently. Used only by privileged actors.
func (r *VisitRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReminderCandidate is one row of the reminder sweep query: a visit dated
// tomorrow whose owner has opted into email reminders.
type ReminderCandidate struct {
	VisitID    uint64
	UserID     uint64
	UserEmail  string
	UserName   string
	InmateName string
	VisitDate  string
	VisitHour  string
}

// ListTomorrowForReminder returns PENDING/APPROVED visits dated exactly
// tomorrow whose owners opted into email notifications. Deduplication
// against already-sent reminders happens at insert time, not here.
func (r *VisitRepo) ListTomorrowForReminder(ctx context.Context, tomorrow string) ([]ReminderCandidate, error) {
	const q = `SELECT v.id, v.created_by, u.email, u.name, v.inmate_name, v.visit_date, v.visit_hour
	    FROM visits v
	    JOIN users u ON u.id = v.created_by
	    WHERE v.created_by IS NOT NULL
	      AND u.notify_email = 1
	      AND v.status IN ('PENDING','APPROVED')
	      AND v.visit_date = ?`
	rows, err := r.db.QueryContext(ctx, q, tomorrow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ReminderCandidate, 0)
	for rows.Next() {
		var (
			c    ReminderCandidate
			date time.Time
		)
		if err := rows.Scan(&c.VisitID, &c.UserID, &c.UserEmail, &c.UserName,
			&c.InmateName, &date, &c.VisitHour); err != nil {
			return nil, err
		}
		c.VisitDate = date.Format("2006-01-02")
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullableID(p *uint64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
