package grablib

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testSnapshot(id string, st Status) *Snapshot {
	return &Snapshot{
		ID:               id,
		URL:              "https://example.com/" + id + ".bin",
		FilePath:         filepath.Join(os.TempDir(), id+".bin"),
		TotalBytes:       4 * MB,
		BytesTransferred: 1 * MB,
		Chunks: []*Chunk{
			{Start: 0, End: 2*MB - 1, Current: 1 * MB},
			{Start: 2 * MB, End: 4*MB - 1, Current: 2 * MB},
		},
		Status:    st,
		CreatedAt: time.Now(),
	}
}

func TestStoreRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStateStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	snap := testSnapshot("dl-1", StatusPaused)
	if err := s.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The same dir reopened must yield the same record.
	s2, err := NewStateStore(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := s2.Get("dl-1")
	if !ok {
		t.Fatal("snapshot missing after reopen")
	}
	if got.URL != snap.URL || got.TotalBytes != snap.TotalBytes || got.Status != StatusPaused {
		t.Errorf("reloaded snapshot differs: %+v", got)
	}
	if len(got.Chunks) != 2 || got.Chunks[0].Current != 1*MB {
		t.Errorf("chunks not preserved: %+v", got.Chunks)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped by Save")
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s, err := NewStateStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	if err := s.Save(testSnapshot("dl-1", StatusQueued)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	a, _ := s.Get("dl-1")
	a.Chunks[0].Current = 999
	b, _ := s.Get("dl-1")
	if b.Chunks[0].Current == 999 {
		t.Error("Get exposed shared chunk state")
	}
}

func TestStoreCorruptRecordSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.state"), []byte("not gob"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := NewStateStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStateStore failed on corrupt record: %v", err)
	}
	if _, ok := s.Get("bad"); ok {
		t.Error("corrupt record surfaced as present")
	}
}

func TestStoreUpdateAndRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStateStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	if err := s.Save(testSnapshot("dl-1", StatusDownloading)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	chunks := []*Chunk{{Start: 0, End: 4*MB - 1, Current: 3 * MB}}
	if err := s.UpdateProgress("dl-1", 3*MB, chunks); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := s.UpdateStatus("dl-1", StatusPaused); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := s.Get("dl-1")
	if got.BytesTransferred != 3*MB || got.Status != StatusPaused {
		t.Errorf("updates not applied: %+v", got)
	}

	// Updates on unknown ids are silently ignored.
	if err := s.UpdateStatus("ghost", StatusError); err != nil {
		t.Fatalf("UpdateStatus(ghost): %v", err)
	}

	if err := s.Remove("dl-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := s.Get("dl-1"); ok {
		t.Error("record present after Remove")
	}
	if _, err := os.Stat(filepath.Join(dir, "dl-1"+stateExt)); !os.IsNotExist(err) {
		t.Error("state file present after Remove")
	}
}

func TestStoreListByStatus(t *testing.T) {
	s, err := NewStateStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	for i, st := range []Status{StatusQueued, StatusPaused, StatusPaused, StatusCompleted} {
		snap := testSnapshot(string(rune('a'+i)), st)
		snap.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := s.Save(snap); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if got := len(s.ListAll()); got != 4 {
		t.Errorf("ListAll returned %d records, want 4", got)
	}
	paused := s.ListByStatus(StatusPaused)
	if len(paused) != 2 {
		t.Fatalf("ListByStatus(paused) returned %d records, want 2", len(paused))
	}
	if paused[0].ID != "b" || paused[1].ID != "c" {
		t.Errorf("ListByStatus order = [%s %s], want [b c]", paused[0].ID, paused[1].ID)
	}
}

func TestRecoverInterrupted(t *testing.T) {
	stateDir := t.TempDir()
	dataDir := t.TempDir()
	s, err := NewStateStore(stateDir, nil)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}

	running := testSnapshot("running", StatusDownloading)
	running.FilePath = filepath.Join(dataDir, "running.bin")
	done := testSnapshot("done", StatusCompleted)
	done.FilePath = filepath.Join(dataDir, "done.bin")
	for _, snap := range []*Snapshot{running, done} {
		if err := s.Save(snap); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := WriteSidecar(snap); err != nil {
			t.Fatalf("WriteSidecar: %v", err)
		}
	}
	orphan := testSnapshot("ghost", StatusDownloading)
	orphan.FilePath = filepath.Join(dataDir, "orphan.bin")
	if err := os.WriteFile(orphan.FilePath, make([]byte, 1234), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteSidecar(orphan); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}

	recovered := s.RecoverInterrupted(dataDir)
	if len(recovered) != 2 {
		t.Fatalf("recovered %d downloads, want 2: %+v", len(recovered), recovered)
	}
	got, _ := s.Get("running")
	if got.Status != StatusInterrupted {
		t.Errorf("running download status = %s, want %s", got.Status, StatusInterrupted)
	}
	if _, err := os.Stat(done.FilePath + SidecarExt); !os.IsNotExist(err) {
		t.Error("completed download's sidecar not removed")
	}

	// A sidecar whose state record is gone is rebuilt from the sidecar and
	// the partial file, not discarded.
	ghost, ok := s.Get("ghost")
	if !ok {
		t.Fatal("no record rebuilt for orphan sidecar")
	}
	if ghost.Status != StatusInterrupted || ghost.TotalBytes != -1 || len(ghost.Chunks) != 0 {
		t.Errorf("rebuilt record = %+v, want Interrupted with unknown size and no chunks", ghost)
	}
	if ghost.BytesTransferred != 1234 {
		t.Errorf("rebuilt BytesTransferred = %d, want on-disk size 1234", ghost.BytesTransferred)
	}
	if ghost.URL != orphan.URL {
		t.Errorf("rebuilt URL = %s, want %s", ghost.URL, orphan.URL)
	}
	if _, err := os.Stat(orphan.FilePath + SidecarExt); err != nil {
		t.Errorf("orphan sidecar removed during recovery: %v", err)
	}
}
