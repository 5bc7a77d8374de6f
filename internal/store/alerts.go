package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Alert is one scheduled memories reminder.
type Alert struct {
	ID        int64
	FireAt    time.Time
	Month     int
	Day       int
	Count     int
	Title     string
	Body      string
	Sound     string
	Delivered time.Time // zero until delivered
}

// ReplaceAlerts removes every scheduled alert and inserts alerts in a
// single transaction. A new alert for the same day and fire time as one
// already delivered keeps its delivery mark, so rescheduling never sends
// a reminder twice.
func (s *Store) ReplaceAlerts(alerts []Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	delivered, err := deliveredAlerts(tx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM alerts`); err != nil {
		return fmt.Errorf("clear alerts: %w", err)
	}

	if len(alerts) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO alerts (fire_at, month, day, count, title, body, sound, delivered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range alerts {
			var deliveredAt sql.NullInt64
			if at, ok := delivered[alertSlot{unix(a.FireAt), a.Month, a.Day}]; ok {
				deliveredAt = sql.NullInt64{Int64: at, Valid: true}
			}
			if _, err := stmt.Exec(unix(a.FireAt), a.Month, a.Day, a.Count, a.Title, a.Body, a.Sound, deliveredAt); err != nil {
				return fmt.Errorf("insert alert: %w", err)
			}
		}
	}

	return tx.Commit()
}

// alertSlot identifies a reminder independently of its row id.
type alertSlot struct {
	fireAt int64
	month  int
	day    int
}

func deliveredAlerts(tx *sql.Tx) (map[alertSlot]int64, error) {
	rows, err := tx.Query(`SELECT fire_at, month, day, delivered_at FROM alerts WHERE delivered_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query delivered alerts: %w", err)
	}
	defer rows.Close()

	delivered := make(map[alertSlot]int64)
	for rows.Next() {
		var slot alertSlot
		var at int64
		if err := rows.Scan(&slot.fireAt, &slot.month, &slot.day, &at); err != nil {
			return nil, err
		}
		delivered[slot] = at
	}
	return delivered, rows.Err()
}

func (s *Store) ClearAlerts() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM alerts`); err != nil {
		return fmt.Errorf("clear alerts: %w", err)
	}
	return nil
}

// Alerts returns every scheduled alert ordered by fire time.
func (s *Store) Alerts() ([]Alert, error) {
	return s.queryAlerts(`
		SELECT id, fire_at, month, day, count, title, body, sound, delivered_at
		FROM alerts
		ORDER BY fire_at, id
	`)
}

// DueAlerts returns the undelivered alerts whose fire time is at or before now.
func (s *Store) DueAlerts(now time.Time) ([]Alert, error) {
	return s.queryAlerts(`
		SELECT id, fire_at, month, day, count, title, body, sound, delivered_at
		FROM alerts
		WHERE delivered_at IS NULL AND fire_at <= ?
		ORDER BY fire_at, id
	`, unix(now))
}

func (s *Store) queryAlerts(query string, args ...any) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var fireAt int64
		var delivered sql.NullInt64
		if err := rows.Scan(&a.ID, &fireAt, &a.Month, &a.Day, &a.Count, &a.Title, &a.Body, &a.Sound, &delivered); err != nil {
			return nil, err
		}
		a.FireAt = time.Unix(fireAt, 0)
		if delivered.Valid {
			a.Delivered = time.Unix(delivered.Int64, 0)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkDelivered records that the alert fired at.
func (s *Store) MarkDelivered(id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE alerts SET delivered_at = ? WHERE id = ?`, unix(at), id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: alert %d", ErrNotFound, id)
	}
	return nil
}
