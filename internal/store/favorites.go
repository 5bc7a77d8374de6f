package store

import (
	"fmt"
	"time"
)

func (s *Store) IsFavorite(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM favorites WHERE item_id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("query favorite: %w", err)
	}
	return n > 0, nil
}

func (s *Store) SetFavorite(id string, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if favorite {
		_, err = s.db.Exec(`INSERT OR IGNORE INTO favorites (item_id, added_at) VALUES (?, ?)`, id, unix(time.Now()))
	} else {
		_, err = s.db.Exec(`DELETE FROM favorites WHERE item_id = ?`, id)
	}
	if err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	return nil
}

// Favorites returns the set of favorite item IDs.
func (s *Store) Favorites() (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT item_id FROM favorites`)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	favs := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		favs[id] = true
	}
	return favs, rows.Err()
}
