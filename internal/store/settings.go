package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	keyEnabled      = "notifications_enabled"
	keyPrompted     = "notifications_prompted"
	keyTime         = "notification_time"
	keyLaunchDate   = "launch_date"
	keyHQViews      = "high_quality_views"
	keyUnlocked     = "unlocked"
	defaultTimeCode = 1000 // 10:00
)

// Snapshot is the notification settings as one consistent read.
type Snapshot struct {
	Enabled  bool
	Prompted bool
	Hour     int
	Minute   int
}

// Snapshot reads the notification settings, filling in defaults for
// anything never written.
func (s *Store) Snapshot() (Snapshot, error) {
	enabled, err := s.getBool(keyEnabled)
	if err != nil {
		return Snapshot{}, err
	}
	prompted, err := s.getBool(keyPrompted)
	if err != nil {
		return Snapshot{}, err
	}
	code, err := s.getInt(keyTime, defaultTimeCode)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Enabled:  enabled,
		Prompted: prompted,
		Hour:     code / 100,
		Minute:   code % 100,
	}, nil
}

func (s *Store) SetEnabled(enabled bool) error {
	return s.setBool(keyEnabled, enabled)
}

// SetPrompted records that the user has been asked about notifications.
func (s *Store) SetPrompted(prompted bool) error {
	return s.setBool(keyPrompted, prompted)
}

// SetNotificationTime stores the preferred time of day as hour*100+minute.
func (s *Store) SetNotificationTime(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid notification time %02d:%02d", hour, minute)
	}
	return s.Set(keyTime, strconv.Itoa(hour*100+minute))
}

// SetLaunchDate remembers the day a delivered alert refers to, so the next
// launch opens on it.
func (s *Store) SetLaunchDate(day time.Time) error {
	return s.Set(keyLaunchDate, day.Format(time.DateOnly))
}

// TakeLaunchDate returns and clears the pending launch date. ok is false
// when none is set.
func (s *Store) TakeLaunchDate(loc *time.Location) (day time.Time, ok bool, err error) {
	v, err := s.Get(keyLaunchDate)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if err := s.Delete(keyLaunchDate); err != nil {
		return time.Time{}, false, err
	}

	day, err = time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid launch date %q: %w", v, err)
	}
	return day, true, nil
}

func (s *Store) HighQualityViews() (int, error) {
	return s.getInt(keyHQViews, 0)
}

func (s *Store) IncrementHighQualityViews() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(`
		INSERT INTO settings (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1
		RETURNING CAST(value AS INTEGER)
	`, keyHQViews).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return n, nil
}

func (s *Store) Unlocked() (bool, error) {
	return s.getBool(keyUnlocked)
}

func (s *Store) SetUnlocked(unlocked bool) error {
	return s.setBool(keyUnlocked, unlocked)
}
