// Package trainstore persists training-run statistics in BadgerDB:
// games played, per-policy win/loss/draw counts, and total episodes,
// keyed by run id.
package trainstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const appName = "goweiqi"

// GetDataDir returns the platform data directory for the application,
// creating it if needed. An environment override (APPDATA on Windows,
// XDG_DATA_HOME on other non-macOS systems) wins over the home-relative
// default; macOS has no override.
func GetDataDir() (string, error) {
	base := platformEnvBase()
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		switch runtime.GOOS {
		case "darwin":
			base = filepath.Join(home, "Library", "Application Support")
		case "windows":
			base = filepath.Join(home, "AppData", "Roaming")
		default:
			base = filepath.Join(home, ".local", "share")
		}
	}
	dataDir := filepath.Join(base, appName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	return dataDir, nil
}

func platformEnvBase() string {
	switch runtime.GOOS {
	case "darwin":
		return ""
	case "windows":
		return os.Getenv("APPDATA")
	default:
		return os.Getenv("XDG_DATA_HOME")
	}
}

// GetDatabaseDir returns the directory for storing the BadgerDB
// database.
func GetDatabaseDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	dbDir := filepath.Join(dataDir, "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}
	return dbDir, nil
}

// RunStats accumulates one training run's outcome counts, broken down
// per policy kind.
type RunStats struct {
	RunID         string         `json:"run_id"`
	GamesPlayed   int            `json:"games_played"`
	TotalEpisodes int            `json:"total_episodes"`
	WinsByPolicy  map[string]int `json:"wins_by_policy"`
	LossByPolicy  map[string]int `json:"losses_by_policy"`
	DrawByPolicy  map[string]int `json:"draws_by_policy"`
	TotalPlayTime time.Duration  `json:"total_play_time"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// NewRunStats returns empty stats for a freshly started run.
func NewRunStats(runID string) *RunStats {
	return &RunStats{
		RunID:        runID,
		WinsByPolicy: make(map[string]int),
		LossByPolicy: make(map[string]int),
		DrawByPolicy: make(map[string]int),
	}
}

// WinRate returns the fraction of games won (0..1).
func (s *RunStats) WinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	var wins int
	for _, n := range s.WinsByPolicy {
		wins += n
	}
	return float64(wins) / float64(s.GamesPlayed)
}

// GameOutcome is one completed game's result, attributed to the policy
// that made the final move decision.
type GameOutcome struct {
	Policy   string
	Won      bool
	Draw     bool
	Episodes int
	Duration time.Duration
}

// Store wraps a BadgerDB handle for run-stats persistence.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the training-stats database under dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func key(runID string) []byte { return []byte("run:" + runID) }

// Load returns the stats for runID, or a fresh zero record if none
// exist yet.
func (s *Store) Load(runID string) (*RunStats, error) {
	stats := NewRunStats(runID)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(runID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, stats)
		})
	})
	return stats, err
}

// Save persists stats.
func (s *Store) Save(stats *RunStats) error {
	stats.LastUpdated = time.Now()
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(stats.RunID), data)
	})
}

// RecordGame loads runID's stats, folds in outcome, and saves the
// result.
func (s *Store) RecordGame(runID string, outcome GameOutcome) error {
	stats, err := s.Load(runID)
	if err != nil {
		return err
	}
	stats.GamesPlayed++
	stats.TotalEpisodes += outcome.Episodes
	stats.TotalPlayTime += outcome.Duration
	switch {
	case outcome.Draw:
		stats.DrawByPolicy[outcome.Policy]++
	case outcome.Won:
		stats.WinsByPolicy[outcome.Policy]++
	default:
		stats.LossByPolicy[outcome.Policy]++
	}
	return s.Save(stats)
}

// ListRuns scans every "run:"-prefixed key and returns the run ids
// present in the store.
func (s *Store) ListRuns() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("run:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("trainstore: list runs: %w", err)
	}
	return ids, nil
}
