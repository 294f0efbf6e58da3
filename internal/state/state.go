package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"rangeswap/internal/sched"
)

const saveDelay = time.Second

// Snapshot is the single serialized blob persisted between sessions.
type Snapshot struct {
	Address    string `json:"address,omitempty"`
	ChainID    uint64 `json:"chain_id,omitempty"`
	SellSymbol string `json:"sell_symbol,omitempty"`
	BuySymbol  string `json:"buy_symbol,omitempty"`
	PayAmount  string `json:"pay_amount,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// Store persists the snapshot to a fixed path, coalescing rapid updates
// into one debounced write.
type Store struct {
	path     string
	logger   *zap.Logger
	debounce *sched.Debouncer

	mu      sync.Mutex
	pending Snapshot
	dirty   bool
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:     path,
		logger:   logger,
		debounce: sched.NewDebouncer(saveDelay),
	}
}

// Load reads the snapshot from disk. A missing file is not an error.
func (s *Store) Load() (Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("read state: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("parse state: %w", err)
	}
	return snap, true, nil
}

// Save schedules a debounced write of the snapshot. Consecutive calls
// within the save window collapse into one write of the latest value.
func (s *Store) Save(snap Snapshot) {
	s.mu.Lock()
	s.pending = snap
	s.dirty = true
	s.mu.Unlock()

	s.debounce.Schedule(s.flush)
}

// Flush writes any pending snapshot immediately. Used on shutdown. With no
// unsaved snapshot it does nothing, so a session that never changed state
// cannot clobber the previous session's blob.
func (s *Store) Flush() {
	s.debounce.Stop()
	s.flush()
}

func (s *Store) flush() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	snap := s.pending
	s.dirty = false
	s.mu.Unlock()

	if err := s.write(snap); err != nil {
		s.logger.Warn("state save failed", zap.Error(err))
	}
}

func (s *Store) write(snap Snapshot) error {
	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
