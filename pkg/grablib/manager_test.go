package grablib

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T, maxConcurrent int) *Manager {
	t.Helper()
	m, err := NewManager(&ManagerOpts{
		StateDir:      t.TempDir(),
		DownloadDir:   t.TempDir(),
		MaxConcurrent: maxConcurrent,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	m.retry = RetryPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
	return m
}

func waitManagerStatus(t *testing.T, m *Manager, id string, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s, err := m.Status(id)
		if err != nil {
			t.Fatalf("Status(%s): %v", id, err)
		}
		if s.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	s, _ := m.Status(id)
	t.Fatalf("download %s stuck in %s, want %s", id, s.Status, want)
}

func TestManagerAddValidation(t *testing.T) {
	m := newTestManager(t, 1)
	for _, raw := range []string{
		"not a url",
		"ftp://example.com/file.bin",
		"https://",
		"//missing-scheme.com/x",
	} {
		if _, err := m.Add(raw, nil); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Add(%q) = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestManagerUnknownID(t *testing.T) {
	m := newTestManager(t, 1)
	for name, op := range map[string]func(string) error{
		"Start":  m.Start,
		"Pause":  m.Pause,
		"Resume": m.Resume,
		"Cancel": m.Cancel,
	} {
		if err := op("no-such-id"); !errors.Is(err, ErrDownloadNotFound) {
			t.Errorf("%s(no-such-id) = %v, want ErrDownloadNotFound", name, err)
		}
	}
	if _, err := m.Status("no-such-id"); !errors.Is(err, ErrDownloadNotFound) {
		t.Errorf("Status(no-such-id) = %v, want ErrDownloadNotFound", err)
	}
}

func TestManagerLifecycle(t *testing.T) {
	data := randomBytes(t, 200*int(KB))
	srv := rangeServer(data)
	defer srv.Close()

	m := newTestManager(t, 2)
	d, err := m.Add(srv.URL+"/file.bin", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := d.Status().Status; got != StatusQueued {
		t.Fatalf("status after Add = %s, want %s", got, StatusQueued)
	}
	if _, err := os.Stat(d.FilePath() + SidecarExt); err != nil {
		t.Errorf("sidecar missing after Add: %v", err)
	}

	if err := m.Start(d.ID()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitManagerStatus(t, m, d.ID(), StatusCompleted, 10*time.Second)
	assertFileEquals(t, d.FilePath(), data)

	if _, err := os.Stat(d.FilePath() + SidecarExt); !os.IsNotExist(err) {
		t.Error("sidecar not removed after completion")
	}

	// The persisted record reflects the terminal state.
	snap, ok := m.store.Get(d.ID())
	if !ok || snap.Status != StatusCompleted {
		t.Errorf("persisted snapshot = %+v, want completed", snap)
	}
}

func TestManagerQueueLimit(t *testing.T) {
	data := randomBytes(t, 64*int(KB))
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Method == http.MethodHead {
			return
		}
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
		w.Write(data)
	}))
	defer srv.Close()
	defer close(gate)

	m := newTestManager(t, 1)
	first, err := m.Add(srv.URL+"/a.bin", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := m.Add(srv.URL+"/b.bin", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Start(first.ID()); err != nil {
		t.Fatalf("Start first: %v", err)
	}
	if err := m.Start(second.ID()); err != nil {
		t.Fatalf("Start second: %v", err)
	}

	waitManagerStatus(t, m, first.ID(), StatusDownloading, 5*time.Second)
	if got, _ := m.Status(second.ID()); got.Status != StatusQueued {
		t.Fatalf("second download status = %s, want %s while slot is held", got.Status, StatusQueued)
	}
	if pending, active := m.Counts(); pending != 1 || active != 1 {
		t.Fatalf("counts = (%d, %d), want (1, 1)", pending, active)
	}

	// Cancelling the active download frees its slot for the next one.
	if err := m.Cancel(first.ID()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitManagerStatus(t, m, second.ID(), StatusDownloading, 5*time.Second)
}

func TestManagerSetMaxConcurrent(t *testing.T) {
	m := newTestManager(t, 2)
	if err := m.SetMaxConcurrent(0); !errors.Is(err, ErrInvalidConcurrency) {
		t.Fatalf("SetMaxConcurrent(0) = %v, want ErrInvalidConcurrency", err)
	}
	if err := m.SetMaxConcurrent(5); err != nil {
		t.Fatalf("SetMaxConcurrent(5): %v", err)
	}
	if got := m.MaxConcurrent(); got != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", got)
	}
}

func TestManagerListFilter(t *testing.T) {
	data := randomBytes(t, 32*int(KB))
	srv := rangeServer(data)
	defer srv.Close()

	m := newTestManager(t, 3)
	a, err := m.Add(srv.URL+"/a.bin", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := m.Add(srv.URL+"/b.bin", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := m.Start(a.ID()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitManagerStatus(t, m, a.ID(), StatusCompleted, 10*time.Second)

	if got := len(m.List("")); got != 2 {
		t.Errorf("List(all) = %d entries, want 2", got)
	}
	queued := m.List(StatusQueued)
	if len(queued) != 1 || queued[0].Status != StatusQueued {
		t.Errorf("List(queued) = %+v, want one queued entry", queued)
	}
	if got := len(m.List(StatusCompleted)); got != 1 {
		t.Errorf("List(completed) = %d entries, want 1", got)
	}
}

func TestManagerDistinctFileNames(t *testing.T) {
	data := randomBytes(t, 16*int(KB))
	srv := rangeServer(data)
	defer srv.Close()

	m := newTestManager(t, 1)
	a, err := m.Add(srv.URL+"/same.bin", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Start(a.ID()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitManagerStatus(t, m, a.ID(), StatusCompleted, 10*time.Second)

	b, err := m.Add(srv.URL+"/same.bin", nil)
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if a.FilePath() == b.FilePath() {
		t.Errorf("second download reuses path %s", a.FilePath())
	}
}

func TestManagerSessionRestore(t *testing.T) {
	data := randomBytes(t, 32*int(KB))
	srv := rangeServer(data)
	defer srv.Close()

	stateDir := t.TempDir()
	dataDir := t.TempDir()

	m1, err := NewManager(&ManagerOpts{StateDir: stateDir, DownloadDir: dataDir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := m1.Add(srv.URL+"/file.bin", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := NewManager(&ManagerOpts{StateDir: stateDir, DownloadDir: dataDir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()

	s, err := m2.Status(d.ID())
	if err != nil {
		t.Fatalf("Status after restore: %v", err)
	}
	if s.Status != StatusQueued || s.URL != d.URL() {
		t.Errorf("restored snapshot = %+v", s)
	}

	// The restored download is fully operational.
	if err := m2.Start(d.ID()); err != nil {
		t.Fatalf("Start after restore: %v", err)
	}
	waitManagerStatus(t, m2, d.ID(), StatusCompleted, 10*time.Second)
	assertFileEquals(t, s.FilePath, data)
}

func TestManagerRecoverInterrupted(t *testing.T) {
	stateDir := t.TempDir()
	dataDir := t.TempDir()

	store, err := NewStateStore(stateDir, nil)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	snap := testSnapshot("crashed", StatusDownloading)
	snap.FilePath = dataDir + "/crashed.bin"
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := WriteSidecar(snap); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}

	m, err := NewManager(&ManagerOpts{StateDir: stateDir, DownloadDir: dataDir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	s, err := m.Status("crashed")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if s.Status != StatusInterrupted {
		t.Errorf("recovered status = %s, want %s", s.Status, StatusInterrupted)
	}
	if s.BytesTransferred != snap.BytesTransferred {
		t.Errorf("recovered progress = %d, want %d", s.BytesTransferred, snap.BytesTransferred)
	}
}

func TestManagerRecoverOrphanSidecar(t *testing.T) {
	data := randomBytes(t, 48*int(KB))
	srv := rangeServer(data)
	defer srv.Close()

	stateDir := t.TempDir()
	dataDir := t.TempDir()

	// A corrupt state record reads as absent, leaving only the sidecar and
	// the partial file behind.
	snap := testSnapshot("orphan", StatusDownloading)
	snap.URL = srv.URL + "/orphan.bin"
	snap.FilePath = filepath.Join(dataDir, "orphan.bin")
	if err := os.WriteFile(snap.FilePath, make([]byte, 2*int(KB)), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteSidecar(snap); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "orphan"+stateExt), []byte("not gob"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := NewManager(&ManagerOpts{StateDir: stateDir, DownloadDir: dataDir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	s, err := m.Status("orphan")
	if err != nil {
		t.Fatalf("Status after recovery: %v", err)
	}
	if s.Status != StatusInterrupted || s.TotalBytes != -1 {
		t.Errorf("rebuilt download = %+v, want Interrupted with unknown size", s)
	}
	if s.BytesTransferred != 2*KB {
		t.Errorf("rebuilt progress = %d, want on-disk size %d", s.BytesTransferred, 2*KB)
	}

	// The rebuilt download re-probes and re-plans on Start.
	if err := m.Start("orphan"); err != nil {
		t.Fatalf("Start after recovery: %v", err)
	}
	waitManagerStatus(t, m, "orphan", StatusCompleted, 10*time.Second)
	assertFileEquals(t, s.FilePath, data)
}

func TestManagerProgressHandlerConcurrent(t *testing.T) {
	m := newTestManager(t, 1)
	d, err := m.Add("https://example.com/race.bin", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	h := m.handlersFor(d.ID())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				h.ProgressHandler(1)
			}
		}()
	}
	wg.Wait()
}
