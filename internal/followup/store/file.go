package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/platform/apperr"
)

// FileName is the snapshot file inside the data directory.
const FileName = "follow-ups.json"

// snapshot is an immutable view of the collection. Writers build a new one
// and swap it in, so readers never wait on disk I/O.
type snapshot struct {
	records       []followup.Record
	byID          map[string]int
	pendingByDeal map[string]string
}

// FileStore keeps the whole collection in one JSON file, rewritten on every
// mutation. Writes are serialized; reads load the current snapshot lock-free.
type FileStore struct {
	path    string
	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// OpenFileStore loads dir/follow-ups.json, creating dir if needed. A missing
// file is an empty collection.
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStore{path: filepath.Join(dir, FileName)}

	records, err := readSnapshot(s.path)
	if err != nil {
		return nil, err
	}
	snap, err := buildSnapshot(records)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return s, nil
}

func readSnapshot(path string) ([]followup.Record, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var records []followup.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

func buildSnapshot(records []followup.Record) (*snapshot, error) {
	snap := &snapshot{
		records:       records,
		byID:          make(map[string]int, len(records)),
		pendingByDeal: make(map[string]string),
	}
	for i, r := range records {
		if _, dup := snap.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate record id %q in snapshot", r.ID)
		}
		snap.byID[r.ID] = i
		if r.Status == followup.StatusPending {
			if other, dup := snap.pendingByDeal[r.DealID]; dup {
				return nil, fmt.Errorf("deal %q has two pending records (%s, %s)", r.DealID, other, r.ID)
			}
			snap.pendingByDeal[r.DealID] = r.ID
		}
	}
	return snap, nil
}

func (s *FileStore) GetAll(_ context.Context) ([]followup.Record, error) {
	snap := s.current.Load()
	out := make([]followup.Record, len(snap.records))
	copy(out, snap.records)
	return out, nil
}

func (s *FileStore) GetByID(_ context.Context, id string) (followup.Record, error) {
	snap := s.current.Load()
	i, ok := snap.byID[id]
	if !ok {
		return followup.Record{}, followup.ErrNotFound
	}
	return snap.records[i], nil
}

func (s *FileStore) GetPendingByDeal(_ context.Context, dealID string) (followup.Record, error) {
	snap := s.current.Load()
	id, ok := snap.pendingByDeal[dealID]
	if !ok {
		return followup.Record{}, followup.ErrNotFound
	}
	return snap.records[snap.byID[id]], nil
}

func (s *FileStore) Create(_ context.Context, record followup.Record) error {
	if err := record.ValidateNew(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap := s.current.Load()
	if _, exists := snap.byID[record.ID]; exists {
		return apperr.Conflict("follow-up id already exists")
	}
	if _, exists := snap.pendingByDeal[record.DealID]; exists {
		return followup.ErrDuplicatePending
	}

	records := make([]followup.Record, len(snap.records), len(snap.records)+1)
	copy(records, snap.records)
	records = append(records, record)

	return s.commit(records)
}

func (s *FileStore) Update(_ context.Context, id string, patch followup.Patch) (followup.Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap := s.current.Load()
	i, ok := snap.byID[id]
	if !ok {
		return followup.Record{}, followup.ErrNotFound
	}

	next, err := snap.records[i].Apply(patch)
	if err != nil {
		return followup.Record{}, err
	}

	records := make([]followup.Record, len(snap.records))
	copy(records, snap.records)
	records[i] = next

	if err := s.commit(records); err != nil {
		return followup.Record{}, err
	}
	return next, nil
}

// Ping checks that the data directory is still there.
func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// commit persists records and then publishes them. Callers hold writeMu.
func (s *FileStore) commit(records []followup.Record) error {
	snap, err := buildSnapshot(records)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "follow-up store is inconsistent", err)
	}
	if err := writeSnapshot(s.path, records); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to persist follow-ups", err)
	}
	s.current.Store(snap)
	return nil
}

// writeSnapshot replaces path atomically via a temp file and rename.
func writeSnapshot(path string, records []followup.Record) error {
	if records == nil {
		records = []followup.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".follow-ups-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

var _ Store = (*FileStore)(nil)
