package grablib

import (
	"encoding/gob"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	stateExt = ".state"
	// SidecarExt is the extension of the metadata file written next to
	// each data file. Sidecars let a restarted daemon find downloads whose
	// process died mid-transfer.
	SidecarExt = ".grabmeta"
)

// Snapshot is the durable record of one download.
type Snapshot struct {
	ID               string
	URL              string
	FilePath         string
	TotalBytes       int64
	BytesTransferred int64
	Chunks           []*Chunk
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *Snapshot) clone() *Snapshot {
	cc := *s
	cc.Chunks = cloneChunks(s.Chunks)
	return &cc
}

// sidecar is the small record written next to the data file, enough to
// locate the snapshot after a crash.
type sidecar struct {
	ID       string
	URL      string
	FilePath string
}

// StateStore persists one gob-encoded snapshot per download under a state
// directory and keeps a write-through in-memory cache. A record that fails
// to decode is treated as absent: it is logged and skipped, never fatal.
type StateStore struct {
	mu    sync.RWMutex
	dir   string
	cache map[string]*Snapshot
	l     *log.Logger
}

// NewStateStore opens the store rooted at dir, loading every readable
// snapshot into the cache. An empty dir falls back to StateDir.
func NewStateStore(dir string, l *log.Logger) (*StateStore, error) {
	if dir == "" {
		dir = StateDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s := &StateStore{
		dir:   dir,
		cache: make(map[string]*Snapshot),
		l:     l,
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), stateExt) {
			continue
		}
		snap, err := readSnapshot(filepath.Join(dir, e.Name()))
		if err != nil {
			s.log("skipping unreadable state record %s: %v", e.Name(), err)
			continue
		}
		s.cache[snap.ID] = snap
	}
	return s, nil
}

func readSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *StateStore) path(id string) string {
	return filepath.Join(s.dir, id+stateExt)
}

// Save persists the snapshot, stamping UpdatedAt. The record is written to
// a temporary file and renamed so a crash never leaves a half-written
// state file in place of a good one.
func (s *StateStore) Save(snap *Snapshot) error {
	cc := snap.clone()
	cc.UpdatedAt = time.Now()

	tmp := s.path(cc.ID) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &IOError{Path: tmp, Err: err}
	}
	if err = gob.NewEncoder(f).Encode(cc); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Path: tmp, Err: err}
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return &IOError{Path: tmp, Err: err}
	}
	if err = os.Rename(tmp, s.path(cc.ID)); err != nil {
		os.Remove(tmp)
		return &IOError{Path: s.path(cc.ID), Err: err}
	}
	s.mu.Lock()
	s.cache[cc.ID] = cc
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the snapshot for id, or false when absent.
func (s *StateStore) Get(id string) (*Snapshot, bool) {
	s.mu.RLock()
	snap, ok := s.cache[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return snap.clone(), true
}

// UpdateProgress persists new transfer counters and chunk positions for an
// existing record. Unknown ids are ignored.
func (s *StateStore) UpdateProgress(id string, transferred int64, chunks []*Chunk) error {
	s.mu.RLock()
	snap, ok := s.cache[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	cc := snap.clone()
	cc.BytesTransferred = transferred
	cc.Chunks = cloneChunks(chunks)
	return s.Save(cc)
}

// UpdateStatus persists a status change for an existing record. Unknown
// ids are ignored.
func (s *StateStore) UpdateStatus(id string, st Status) error {
	s.mu.RLock()
	snap, ok := s.cache[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	cc := snap.clone()
	cc.Status = st
	return s.Save(cc)
}

// Remove deletes the record from cache and disk.
func (s *StateStore) Remove(id string) error {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return &IOError{Path: s.path(id), Err: err}
	}
	return nil
}

// ListAll returns copies of every known snapshot, oldest first.
func (s *StateStore) ListAll() []*Snapshot {
	s.mu.RLock()
	out := make([]*Snapshot, 0, len(s.cache))
	for _, snap := range s.cache {
		out = append(out, snap.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ListByStatus returns copies of every snapshot in the given status,
// oldest first.
func (s *StateStore) ListByStatus(st Status) []*Snapshot {
	all := s.ListAll()
	out := all[:0]
	for _, snap := range all {
		if snap.Status == st {
			out = append(out, snap)
		}
	}
	return out
}

// WriteSidecar drops the crash-recovery metadata file next to the data
// file.
func WriteSidecar(snap *Snapshot) error {
	path := snap.FilePath + SidecarExt
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &IOError{Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	defer f.Close()
	sc := sidecar{ID: snap.ID, URL: snap.URL, FilePath: snap.FilePath}
	if err := gob.NewEncoder(f).Encode(&sc); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}

// RemoveSidecar deletes the recovery metadata for a finished download.
func RemoveSidecar(filePath string) {
	os.Remove(filePath + SidecarExt)
}

// RecoverInterrupted scans dir for sidecar files and reconciles them with
// the store: a record still marked Downloading belonged to a dead process
// and is flipped to Interrupted, a completed or cancelled record has its
// stale sidecar removed, and a sidecar with no record at all (the state
// file was lost or failed to decode) is rebuilt as a minimal Interrupted
// snapshot so a later Start can re-probe and re-plan. It returns the
// Interrupted snapshots.
func (s *StateStore) RecoverInterrupted(dir string) []*Snapshot {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log("recovery scan %s: %v", dir, err)
		return nil
	}
	var recovered []*Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SidecarExt) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		var sc sidecar
		err = gob.NewDecoder(f).Decode(&sc)
		f.Close()
		if err != nil {
			s.log("skipping unreadable sidecar %s: %v", e.Name(), err)
			continue
		}
		snap, ok := s.Get(sc.ID)
		if !ok {
			// Only the sidecar and the partial file survive. Whatever is
			// on disk counts as transferred; size and chunks are recomputed
			// on the next Start.
			var transferred int64
			if fi, err := os.Stat(sc.FilePath); err == nil {
				transferred = fi.Size()
			}
			snap = &Snapshot{
				ID:               sc.ID,
				URL:              sc.URL,
				FilePath:         sc.FilePath,
				TotalBytes:       -1,
				BytesTransferred: transferred,
				Status:           StatusInterrupted,
				CreatedAt:        time.Now(),
			}
			if err := s.Save(snap); err != nil {
				s.log("rebuilding record for orphan sidecar %s: %v", e.Name(), err)
				continue
			}
			s.log("rebuilt record for orphan sidecar %s", e.Name())
			recovered = append(recovered, snap)
			continue
		}
		switch snap.Status {
		case StatusDownloading:
			snap.Status = StatusInterrupted
			if err := s.Save(snap); err != nil {
				s.log("marking %s interrupted: %v", sc.ID, err)
				continue
			}
			recovered = append(recovered, snap)
		case StatusCompleted, StatusCancelled:
			os.Remove(path)
		}
	}
	return recovered
}

func (s *StateStore) log(format string, args ...any) {
	if s.l != nil {
		s.l.Printf(format, args...)
	}
}
