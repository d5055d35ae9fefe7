package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"igrovik/internal/models"
)

// ReservationsForDate returns the active (non-canceled) reservations for
// one calendar date with their game and accessory sets loaded.
func (db *DB) ReservationsForDate(ctx context.Context, date time.Time) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, date, start_minute, console_id, status, accessory_ids, created_at, updated_at
		FROM reservations
		WHERE date = ? AND status != 'canceled'
		ORDER BY start_minute`,
		date.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	reservations, err := db.scanReservations(ctx, rows)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// ReservationsBetween returns active reservations in [from, to] inclusive,
// ordered by date and start time. Used by the admin export.
func (db *DB) ReservationsBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, date, start_minute, console_id, status, accessory_ids, created_at, updated_at
		FROM reservations
		WHERE date >= ? AND date <= ? AND status != 'canceled'
		ORDER BY date, start_minute`,
		from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	return db.scanReservations(ctx, rows)
}

func (db *DB) scanReservations(ctx context.Context, rows *sql.Rows) ([]models.Reservation, error) {
	var reservations []models.Reservation
	for rows.Next() {
		var (
			r         models.Reservation
			dateStr   string
			legacyAcc sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &dateStr, &r.StartMinute, &r.ConsoleID,
			&r.Status, &legacyAcc, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		d, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse reservation date %q: %w", dateStr, err)
		}
		r.Date = d

		if r.GameIDs, err = db.linkedIDs(ctx, "reservation_games", "game_id", r.ID); err != nil {
			return nil, err
		}
		if r.AccessoryIDs, err = db.linkedIDs(ctx, "reservation_accessories", "accessory_id", r.ID); err != nil {
			return nil, err
		}
		if len(r.AccessoryIDs) == 0 && legacyAcc.Valid && legacyAcc.String != "" {
			r.AccessoryIDs = parseLegacyAccessoryIDs(db, r.ID, legacyAcc.String)
		}

		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func (db *DB) linkedIDs(ctx context.Context, table, column string, reservationID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE reservation_id = ? ORDER BY %s", column, table, column),
		reservationID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// parseLegacyAccessoryIDs reads the pre-join-table JSON column. A corrupt
// blob must not block availability for the whole day, so bad JSON
// degrades to "no accessories on that reservation".
func parseLegacyAccessoryIDs(db *DB, reservationID int64, raw string) []int64 {
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		db.logger.Warn().Int64("reservation_id", reservationID).
			Msg("malformed legacy accessory_ids, treating as empty")
		return nil
	}
	return ids
}

// CreateReservation commits a booking with its game and accessory links
// in one transaction. A duplicate (date, start_minute, console_id) hits
// the unique index and surfaces as ErrSlotTaken; an engine "available"
// answer is only an optimistic hint.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if r.Status == "" {
		r.Status = models.StatusConfirmed
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reservation: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (user_id, date, start_minute, console_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Date.Format(dateLayout), r.StartMinute, r.ConsoleID, r.Status, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	r.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	for _, gameID := range r.GameIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO reservation_games (reservation_id, game_id) VALUES (?, ?)",
			r.ID, gameID); err != nil {
			return fmt.Errorf("link game %d: %w", gameID, err)
		}
	}
	for _, accID := range r.AccessoryIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO reservation_accessories (reservation_id, accessory_id) VALUES (?, ?)",
			r.ID, accID); err != nil {
			return fmt.Errorf("link accessory %d: %w", accID, err)
		}
	}

	return tx.Commit()
}

// GetReservation returns one reservation by id, including canceled ones.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	var (
		r       models.Reservation
		dateStr string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, date, start_minute, console_id, status, created_at, updated_at
		FROM reservations WHERE id = ?`, id).
		Scan(&r.ID, &r.UserID, &dateStr, &r.StartMinute, &r.ConsoleID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query reservation: %w", err)
	}
	d, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse reservation date %q: %w", dateStr, err)
	}
	r.Date = d
	return &r, nil
}

// CancelReservation marks a reservation canceled. Canceled rows drop out
// of every read path, so the engine never has to interpret the status.
func (db *DB) CancelReservation(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations SET status = 'canceled', updated_at = ?
		WHERE id = ? AND status != 'canceled'`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConsoles returns active consoles ordered by name.
func (db *DB) ListConsoles(ctx context.Context) ([]models.Console, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, category, is_active FROM consoles WHERE is_active = 1 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query consoles: %w", err)
	}
	defer rows.Close()

	var consoles []models.Console
	for rows.Next() {
		var c models.Console
		if err := rows.Scan(&c.ID, &c.Name, &c.Category, &c.IsActive); err != nil {
			return nil, err
		}
		consoles = append(consoles, c)
	}
	return consoles, rows.Err()
}

// AddConsole inserts a console. Used by seeding and admin tooling.
func (db *DB) AddConsole(ctx context.Context, c *models.Console) error {
	res, err := db.ExecContext(ctx,
		"INSERT INTO consoles (name, category, is_active) VALUES (?, ?, 1)",
		c.Name, c.Category)
	if err != nil {
		return fmt.Errorf("insert console: %w", err)
	}
	c.ID, err = res.LastInsertId()
	c.IsActive = true
	return err
}
