package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gatehouse-hq/apiserver/types"
	"github.com/google/uuid"
)

// AttendanceRepository handles persistence for the append-only attendance
// log. Records are never mutated; an actor's clock state is derived from
// its latest record.
type AttendanceRepository struct {
	db *sql.DB
}

func NewAttendanceRepository(db *sql.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, actor_type, actor_id, action, visit_type, host_employee_id, recorded_at`

func scanAttendanceRows(rows *sql.Rows) ([]types.AttendanceRecord, error) {
	var records []types.AttendanceRecord
	for rows.Next() {
		var record types.AttendanceRecord
		var host sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.ActorType,
			&record.ActorID,
			&record.Action,
			&record.VisitType,
			&host,
			&record.RecordedAt,
		); err != nil {
			return nil, err
		}
		record.HostEmployeeID = host.String
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListRecent returns the most recent records for an actor, newest first,
// scoped by visit type.
func (r *AttendanceRepository) ListRecent(ctx context.Context, actorType types.ActorType, actorID string, visitType types.VisitType, limit int) ([]types.AttendanceRecord, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	const query = `
		SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE actor_type = $1 AND actor_id = $2 AND visit_type = $3
		ORDER BY recorded_at DESC
		LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, actorType, actorID, visitType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttendanceRows(rows)
}

// AppendDecided serializes the read-then-write clock sequence for one
// actor. It locks the actor's row in attendance_locks, reads the latest
// record within the same transaction, asks decide for the final action and
// appends the record. Two concurrent clocks for the same
// (actor, visit type) therefore cannot both observe the same latest
// record.
func (r *AttendanceRepository) AppendDecided(
	ctx context.Context,
	record types.AttendanceRecord,
	decide func(last *types.AttendanceRecord) (types.ClockAction, error),
) (types.AttendanceRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.AttendanceRecord{}, err
	}
	defer tx.Rollback()

	const lockQuery = `
		INSERT INTO attendance_locks (actor_type, actor_id, visit_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (actor_type, actor_id, visit_type) DO UPDATE
		SET actor_id = EXCLUDED.actor_id`
	if _, err := tx.ExecContext(ctx, lockQuery, record.ActorType, record.ActorID, record.VisitType); err != nil {
		return types.AttendanceRecord{}, err
	}
	const forUpdate = `
		SELECT actor_id FROM attendance_locks
		WHERE actor_type = $1 AND actor_id = $2 AND visit_type = $3
		FOR UPDATE`
	var locked string
	if err := tx.QueryRowContext(ctx, forUpdate, record.ActorType, record.ActorID, record.VisitType).Scan(&locked); err != nil {
		return types.AttendanceRecord{}, err
	}

	const latestQuery = `
		SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE actor_type = $1 AND actor_id = $2 AND visit_type = $3
		ORDER BY recorded_at DESC
		LIMIT 1`
	var last *types.AttendanceRecord
	var latest types.AttendanceRecord
	var host sql.NullString
	err = tx.QueryRowContext(ctx, latestQuery, record.ActorType, record.ActorID, record.VisitType).Scan(
		&latest.ID,
		&latest.ActorType,
		&latest.ActorID,
		&latest.Action,
		&latest.VisitType,
		&host,
		&latest.RecordedAt,
	)
	switch {
	case err == nil:
		latest.HostEmployeeID = host.String
		last = &latest
	case errors.Is(err, sql.ErrNoRows):
		last = nil
	default:
		return types.AttendanceRecord{}, err
	}

	finalAction, err := decide(last)
	if err != nil {
		return types.AttendanceRecord{}, err
	}

	record.ID = uuid.NewString()
	record.Action = finalAction
	record.RecordedAt = time.Now()

	var hostID any
	if record.HostEmployeeID != "" {
		hostID = record.HostEmployeeID
	}
	const insertQuery = `
		INSERT INTO attendance_records (id, actor_type, actor_id, action, visit_type, host_employee_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(
		ctx,
		insertQuery,
		record.ID,
		record.ActorType,
		record.ActorID,
		record.Action,
		record.VisitType,
		hostID,
		record.RecordedAt,
	); err != nil {
		return types.AttendanceRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.AttendanceRecord{}, err
	}
	return record, nil
}

// List returns filtered records for the admin views, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter types.AttendanceFilter) ([]types.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.ActorType != "" {
		query += ` AND actor_type = ` + arg(filter.ActorType)
	}
	if filter.ActorID != "" {
		query += ` AND actor_id = ` + arg(filter.ActorID)
	}
	if !filter.From.IsZero() {
		query += ` AND recorded_at >= ` + arg(filter.From)
	}
	if !filter.To.IsZero() {
		query += ` AND recorded_at <= ` + arg(filter.To)
	}
	query += ` ORDER BY recorded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttendanceRows(rows)
}

// DailySummary groups one day's records by (actor type, action).
func (r *AttendanceRepository) DailySummary(ctx context.Context, day time.Time) ([]types.DailySummaryRow, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	const query = `
		SELECT actor_type, action, COUNT(*)
		FROM attendance_records
		WHERE recorded_at >= $1 AND recorded_at < $2
		GROUP BY actor_type, action`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summary []types.DailySummaryRow
	for rows.Next() {
		var row types.DailySummaryRow
		if err := rows.Scan(&row.ActorType, &row.Action, &row.Count); err != nil {
			return nil, err
		}
		summary = append(summary, row)
	}
	return summary, rows.Err()
}

// TotalsForActor counts IN/OUT events for one actor over a range.
func (r *AttendanceRepository) TotalsForActor(ctx context.Context, actorType types.ActorType, actorID string, from, to time.Time) (types.ActionTotals, error) {
	query := `
		SELECT action, COUNT(*)
		FROM attendance_records
		WHERE actor_type = $1 AND actor_id = $2`
	args := []any{actorType, actorID}
	if !from.IsZero() {
		args = append(args, from)
		query += ` AND recorded_at >= ` + placeholder(len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += ` AND recorded_at <= ` + placeholder(len(args))
	}
	query += ` GROUP BY action`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.ActionTotals{}, err
	}
	defer rows.Close()

	var totals types.ActionTotals
	for rows.Next() {
		var action types.ClockAction
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return types.ActionTotals{}, err
		}
		switch action {
		case types.ActionIn:
			totals.In = count
		case types.ActionOut:
			totals.Out = count
		}
	}
	return totals, rows.Err()
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
