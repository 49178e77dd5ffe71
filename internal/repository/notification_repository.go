package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/visicontrol/visit-scheduler/internal/model"
)

// NotificationRepo persists notification rows. Rows are write-once except
// for the read flag; the core never deletes them. The meta column holds the
// JSON snapshot of the visit at event time.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a NotificationRepo bound to the database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notificationColumns = `id, user_id, visit_id, kind, title, body, meta, is_read, read_at, created_at`

func scanNotification(row interface{ Scan(...any) error }) (model.Notification, error) {
	var (
		n       model.Notification
		visitID sql.NullInt64
		kind    string
		meta    sql.NullString
		readAt  sql.NullTime
	)
	err := row.Scan(&n.ID, &n.UserID, &visitID, &kind, &n.Title, &n.Body,
		&meta, &n.IsRead, &readAt, &n.CreatedAt)
	if err != nil {
		return model.Notification{}, err
	}
	if visitID.Valid {
		id := uint64(visitID.Int64)
		n.VisitID = &id
	}
	n.Kind = model.Kind(kind)
	if meta.Valid && meta.String != "" {
		_ = json.Unmarshal([]byte(meta.String), &n.Meta)
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}

// Insert stores a notification and populates its generated fields.
func (r *NotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
	metaJSON, err := marshalMeta(n.Meta)
	if err != nil {
		return err
	}
	const q = `INSERT INTO notifications (user_id, visit_id, kind, title, body, meta) VALUES (?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, n.UserID, nullableID(n.VisitID), string(n.Kind), n.Title, n.Body, metaJSON)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	stored, err := r.GetByID(ctx, n.ID)
	if err != nil {
		return err
	}
	*n = stored
	return nil
}

// InsertReminderOnce inserts a VISIT_REMINDER for (userID, visitID) only if
// none exists yet. Existence check and insert run as a single statement so
// two overlapping sweeps cannot both insert. It reports whether a row was
// actually created.
func (r *NotificationRepo) InsertReminderOnce(ctx context.Context, n *model.Notification) (bool, error) {
	if n.VisitID == nil {
		return false, fmt.Errorf("reminder requires a visit id")
	}
	metaJSON, err := marshalMeta(n.Meta)
	if err != nil {
		return false, err
	}
	const q = `INSERT INTO notifications (user_id, visit_id, kind, title, body, meta)
	    SELECT ?,?,?,?,?,?
	    FROM DUAL
	    WHERE NOT EXISTS (
	        SELECT 1 FROM notifications
	        WHERE user_id = ? AND visit_id = ? AND kind = ?
	    )`
	kind := string(model.KindVisitReminder)
	res, err := r.db.ExecContext(ctx, q,
		n.UserID, *n.VisitID, kind, n.Title, n.Body, metaJSON,
		n.UserID, *n.VisitID, kind)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	n.ID = uint64(id)
	if stored, err := r.GetByID(ctx, n.ID); err == nil {
		*n = stored
	}
	return true, nil
}

// GetByID loads one notification.
func (r *NotificationRepo) GetByID(ctx context.Context, id uint64) (model.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`
	n, err := scanNotification(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.Notification{}, ErrNotFound
	}
	return n, err
}

// ListByUser returns a user's notifications, newest first. When onlyUnread
// is set, read rows are skipped. limit is clamped to [1, 200] with a
// default of 50.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64, onlyUnread bool, limit int) ([]model.Notification, error) {
	wh := []string{"user_id = ?"}
	if onlyUnread {
		wh = append(wh, "is_read = 0")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	q := fmt.Sprintf("SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d",
		notificationColumns, strings.Join(wh, " AND "), limit)
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags the given notifications as read, scoped to the owning
// user. It returns how many rows changed.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	q := fmt.Sprintf("UPDATE notifications SET is_read = 1, read_at = NOW() WHERE user_id = ? AND is_read = 0 AND id IN (%s)", placeholders)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnread returns the number of unread notifications for a user.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", userID).Scan(&n)
	return n, err
}

func marshalMeta(m model.Meta) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
