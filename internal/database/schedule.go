package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"igrovik/internal/models"
	"igrovik/internal/timerange"
)

const dateLayout = "2006-01-02"

// LoadSchedule reads the full weekly rule set. An empty table yields a
// schedule with no rules, which the resolver treats as closed everywhere.
func (db *DB) LoadSchedule(ctx context.Context) (models.Schedule, error) {
	s := models.Schedule{Rules: make(map[time.Weekday]models.WeeklyRule)}

	rows, err := db.QueryContext(ctx, `
		SELECT id, day_of_week, enabled, always_open, active_from, active_to
		FROM weekly_rules ORDER BY day_of_week`)
	if err != nil {
		return s, fmt.Errorf("query weekly rules: %w", err)
	}
	defer rows.Close()

	ruleIDs := make(map[int64]time.Weekday)
	for rows.Next() {
		var (
			id         int64
			day        int
			enabled    bool
			alwaysOpen bool
			from, to   sql.NullString
		)
		if err := rows.Scan(&id, &day, &enabled, &alwaysOpen, &from, &to); err != nil {
			return s, fmt.Errorf("scan weekly rule: %w", err)
		}

		s.Rules[time.Weekday(day)] = models.WeeklyRule{
			DayOfWeek: time.Weekday(day),
			Enabled:   enabled,
		}
		ruleIDs[id] = time.Weekday(day)

		// Schedule-wide columns, identical on every row.
		s.AlwaysOpen = alwaysOpen
		if from.Valid {
			if t, err := time.Parse(dateLayout, from.String); err == nil {
				s.ActiveFrom = &t
			}
		}
		if to.Valid {
			if t, err := time.Parse(dateLayout, to.String); err == nil {
				s.ActiveTo = &t
			}
		}
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	for id, day := range ruleIDs {
		ranges, err := db.ruleRanges(ctx, id)
		if err != nil {
			return s, err
		}
		rule := s.Rules[day]
		rule.HourRanges = ranges
		s.Rules[day] = rule
	}
	return s, nil
}

func (db *DB) ruleRanges(ctx context.Context, ruleID int64) ([]timerange.Range, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT start_minute, end_minute FROM weekly_rule_ranges
		WHERE rule_id = ? ORDER BY start_minute`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("query rule ranges: %w", err)
	}
	defer rows.Close()

	var ranges []timerange.Range
	for rows.Next() {
		var r timerange.Range
		if err := rows.Scan(&r.Start, &r.End); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}

// OverridesForDate returns all overrides stored for one calendar date.
func (db *DB) OverridesForDate(ctx context.Context, date time.Time) ([]models.DateOverride, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date, start_minute, end_minute, is_exception
		FROM date_overrides WHERE date = ? ORDER BY start_minute`,
		date.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query date overrides: %w", err)
	}
	defer rows.Close()

	return scanOverrides(rows)
}

func scanOverrides(rows *sql.Rows) ([]models.DateOverride, error) {
	var overrides []models.DateOverride
	for rows.Next() {
		var (
			o       models.DateOverride
			dateStr string
		)
		if err := rows.Scan(&dateStr, &o.Range.Start, &o.Range.End, &o.IsException); err != nil {
			return nil, err
		}
		d, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse override date %q: %w", dateStr, err)
		}
		o.Date = d
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// ReplaceSchedule swaps the entire weekly rule set and override list in
// one transaction. The admin editor always saves the whole schedule as a
// unit; a failure rolls everything back so a partial schedule is never
// visible.
func (db *DB) ReplaceSchedule(ctx context.Context, s models.Schedule, overrides []models.DateOverride) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule replace: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM weekly_rule_ranges",
		"DELETE FROM weekly_rules",
		"DELETE FROM date_overrides",
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear schedule: %w", err)
		}
	}

	var from, to interface{}
	if s.ActiveFrom != nil {
		from = s.ActiveFrom.Format(dateLayout)
	}
	if s.ActiveTo != nil {
		to = s.ActiveTo.Format(dateLayout)
	}

	for _, rule := range s.Rules {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO weekly_rules (day_of_week, enabled, always_open, active_from, active_to)
			VALUES (?, ?, ?, ?, ?)`,
			int(rule.DayOfWeek), rule.Enabled, s.AlwaysOpen, from, to)
		if err != nil {
			return fmt.Errorf("insert weekly rule for day %d: %w", rule.DayOfWeek, err)
		}
		ruleID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, r := range rule.HourRanges {
			if !r.Valid() {
				return fmt.Errorf("invalid hour range %d-%d for day %d", r.Start, r.End, rule.DayOfWeek)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO weekly_rule_ranges (rule_id, start_minute, end_minute)
				VALUES (?, ?, ?)`, ruleID, r.Start, r.End); err != nil {
				return fmt.Errorf("insert hour range: %w", err)
			}
		}
	}

	for _, o := range overrides {
		if !o.Range.Valid() {
			return fmt.Errorf("invalid override range %d-%d on %s",
				o.Range.Start, o.Range.End, o.Date.Format(dateLayout))
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO date_overrides (date, start_minute, end_minute, is_exception)
			VALUES (?, ?, ?, ?)`,
			o.Date.Format(dateLayout), o.Range.Start, o.Range.End, o.IsException); err != nil {
			return fmt.Errorf("insert override: %w", err)
		}
	}

	return tx.Commit()
}
