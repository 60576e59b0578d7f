// Package persist snapshots engine and app state to a local embedded
// key-value store, implementing the non-prescriptive persistence format
// named in spec §6.
package persist

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/tidwall/sjson"
	bolt "go.etcd.io/bbolt"
)

var bucketEngine = []byte("engine")
var bucketApps = []byte("apps")

// BoltStore snapshots one Environment's state into a single bbolt file:
// an "engine" bucket keyed by run ID holding the engine-level snapshot
// (start_time, duration, current_time, event_log, event_queue), and an
// "apps" bucket keyed by "<run_id>/<app_name>" holding each app's own
// get_state() output, so event IDs referenced by either stay exactly as
// produced (spec §6: "Implementations should preserve event IDs across
// save/load").
type BoltStore struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt file named "aresim.db"
// under dataDir.
func Open(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "aresim.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening persistence store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketEngine, bucketApps} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveEngineState records the engine-level snapshot (as returned by
// engine.Environment.GetState) under runID. The snapshot's "apps" key,
// if present, is stripped from the stored document: apps are saved
// separately via SaveAppState, and storing both would duplicate every
// app's state inside the engine record.
func (s *BoltStore) SaveEngineState(runID string, state map[string]any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling engine state: %w", err)
	}
	if data, err = sjson.DeleteBytes(data, "apps"); err != nil {
		return fmt.Errorf("stripping apps from engine state: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEngine).Put([]byte(runID), data)
	})
}

// LoadEngineState retrieves a previously saved engine-level snapshot.
func (s *BoltStore) LoadEngineState(runID string) (map[string]any, error) {
	var state map[string]any
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEngine).Get([]byte(runID))
		if data == nil {
			return fmt.Errorf("no engine state recorded for run %q", runID)
		}
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SaveAppState records one app's get_state() output under runID/appName.
func (s *BoltStore) SaveAppState(runID, appName string, state map[string]any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling app %q state: %w", appName, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketApps).Put(appKey(runID, appName), data)
	})
}

// LoadAppState retrieves a previously saved app state.
func (s *BoltStore) LoadAppState(runID, appName string) (map[string]any, error) {
	var state map[string]any
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketApps).Get(appKey(runID, appName))
		if data == nil {
			return fmt.Errorf("no state recorded for app %q in run %q", appName, runID)
		}
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func appKey(runID, appName string) []byte {
	return []byte(runID + "/" + appName)
}
