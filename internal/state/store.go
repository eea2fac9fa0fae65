package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Store persists the daily state as a JSON file.
type Store struct {
	path string
}

// NewStore creates a store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted state. State from a previous day is discarded
// and a fresh state for today is returned. A missing or unreadable file
// also yields a fresh state; only the unreadable case returns an error
// alongside it.
func (s *Store) Load(now time.Time) (DailyState, error) {
	fresh := Fresh(now)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fresh, nil
		}
		return fresh, fmt.Errorf("read state file: %w", err)
	}

	var st DailyState
	if err := json.Unmarshal(data, &st); err != nil {
		return fresh, fmt.Errorf("parse state file: %w", err)
	}

	if st.Date != now.Format(DateFormat) {
		log.Printf("state file is from %s, starting a new trading day", st.Date)
		return fresh, nil
	}
	log.Printf("loaded today's state: %d trades, $%.2f PnL", st.TradeCount, st.RealizedPnL)
	return st, nil
}

// Save writes the state to disk, creating the parent directory if needed.
// The write goes through a temp file and rename so a crash mid-write
// cannot truncate the previous state.
func (s *Store) Save(st DailyState) error {
	data, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
