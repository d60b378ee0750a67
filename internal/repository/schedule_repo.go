package repository

import (
	"context"
	"database/sql"
	"fmt"

	"radiator_control/internal/schedule"
)

type ScheduleSQLite struct {
	db *sql.DB
}

func NewScheduleSQLite(db *sql.DB) *ScheduleSQLite {
	return &ScheduleSQLite{db: db}
}

var _ ScheduleRepo = (*ScheduleSQLite)(nil)

const (
	selectScheduleSQL = `SELECT weekday, start_minute, end_minute FROM schedule_entries ORDER BY weekday, start_minute`
	clearScheduleSQL  = `DELETE FROM schedule_entries`
	insertEntrySQL    = `INSERT INTO schedule_entries (weekday, start_minute, end_minute) VALUES (?, ?, ?)`
)

// Load reads the stored schedule. Rows that no longer form a valid schedule
// yield an error wrapping schedule.ErrInvalid.
func (r *ScheduleSQLite) Load(ctx context.Context) (schedule.Weekly, error) {
	rows, err := r.db.QueryContext(ctx, selectScheduleSQL)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	defer rows.Close()

	w := schedule.Empty()
	for rows.Next() {
		var (
			day        string
			start, end int
		)
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		w[day] = append(w[day], schedule.Entry{Start: schedule.TimeOfDay(start), End: schedule.TimeOfDay(end)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return schedule.Normalize(w)
}

// Save replaces the stored schedule with w in one transaction.
func (r *ScheduleSQLite) Save(ctx context.Context, w schedule.Weekly) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save schedule: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, clearScheduleSQL); err != nil {
		return fmt.Errorf("clear schedule: %w", err)
	}
	for _, day := range schedule.Weekdays {
		for _, e := range w[day] {
			if _, err := tx.ExecContext(ctx, insertEntrySQL, day, int(e.Start), int(e.End)); err != nil {
				return fmt.Errorf("insert %s entry %s-%s: %w", day, e.Start, e.End, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule: %w", err)
	}
	return nil
}
