package grablib

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// saveInterval bounds how often per-download progress is flushed to the
// state store. State transitions are always persisted immediately.
const saveInterval = time.Second

// ManagerHandlers are manager-wide event callbacks, fired for every
// download. Used by the daemon to broadcast notifications; nil handlers
// are skipped.
type ManagerHandlers struct {
	ProgressHandler func(id string, n int64)
	StateHandler    func(id string, old, new Status)
}

// ManagerOpts configures NewManager.
type ManagerOpts struct {
	// StateDir overrides the snapshot directory. Empty uses StateDir.
	StateDir string
	// DownloadDir overrides where data files land. Empty uses DownloadsDir.
	DownloadDir string
	// MaxConcurrent bounds simultaneously active downloads. Below 1 uses
	// DefMaxConcurrent.
	MaxConcurrent int
	// ProxyURL routes all transfers through a proxy.
	ProxyURL string
	// UserAgent overrides the HTTP User-Agent.
	UserAgent string
	Handlers  *ManagerHandlers
	Logger    *log.Logger
}

// AddOpts tweaks a single Add call.
type AddOpts struct {
	// FileName overrides the name derived from the URL.
	FileName string
	// DownloadDir overrides the manager's download directory.
	DownloadDir string
}

// Manager owns every download in the system. It validates and registers
// new downloads, routes lifecycle calls to their controllers, funnels
// admission through the queue, and keeps the state store current so a
// later session can pick up where this one stopped.
type Manager struct {
	store  *StateStore
	queue  *Queue
	client *RangeClient
	writer *SegmentedFileWriter
	retry  RetryPolicy

	downloads *VMap[string, *Downloader]
	lastSave  *VMap[string, *atomic.Int64]

	downloadDir string
	handlers    *ManagerHandlers
	l           *log.Logger

	closeOnce sync.Once
}

// NewManager builds the download system: HTTP client, segmented writer,
// state store, admission queue. Snapshots from earlier sessions are
// loaded back as controllers, and records left in Downloading by a dead
// process are flipped to Interrupted.
func NewManager(opts *ManagerOpts) (*Manager, error) {
	if opts == nil {
		opts = &ManagerOpts{}
	}
	dir := opts.DownloadDir
	if dir == "" {
		dir = DownloadsDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	client, err := NewRangeClient(&RangeClientOpts{
		ProxyURL:  opts.ProxyURL,
		UserAgent: opts.UserAgent,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	store, err := NewStateStore(opts.StateDir, opts.Logger)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		store:       store,
		client:      client,
		writer:      NewSegmentedFileWriter(DefWriteBufferSize, opts.Logger),
		retry:       DefaultRetryPolicy(),
		downloads:   NewVMap[string, *Downloader](),
		lastSave:    NewVMap[string, *atomic.Int64](),
		downloadDir: dir,
		handlers:    opts.Handlers,
		l:           opts.Logger,
	}
	m.queue = NewQueue(opts.MaxConcurrent, m.admit, opts.Logger)

	store.RecoverInterrupted(dir)
	for _, snap := range store.ListAll() {
		if snap.Status.Terminal() {
			continue
		}
		m.register(RestoreDownloader(snap, m.downloaderOpts(snap.ID)))
	}
	return m, nil
}

func (m *Manager) downloaderOpts(id string) *DownloaderOpts {
	return &DownloaderOpts{
		Client:   m.client,
		Writer:   m.writer,
		Retry:    m.retry,
		Logger:   m.l,
		Handlers: m.handlersFor(id),
	}
}

// handlersFor bridges one download's events into persistence and the
// manager-wide callbacks. Progress saves are throttled; transitions are
// saved immediately, and terminal ones free the download's queue slot.
func (m *Manager) handlersFor(id string) *Handlers {
	return &Handlers{
		ProgressHandler: func(n int64) {
			if m.handlers != nil && m.handlers.ProgressHandler != nil {
				m.handlers.ProgressHandler(id, n)
			}
			m.maybeSave(id)
		},
		StateHandler: func(old, new Status) {
			if d, ok := m.downloads.GetOk(id); ok {
				if err := m.store.Save(d.Snapshot()); err != nil {
					m.log("persist %s: %v", id, err)
				}
				if new.Terminal() {
					if err := m.writer.FlushPath(d.FilePath()); err != nil {
						m.log("flush %s: %v", d.FilePath(), err)
					}
				}
				if new == StatusCompleted {
					RemoveSidecar(d.FilePath())
				}
			}
			if new.Terminal() {
				m.queue.Done(id)
			}
			if m.handlers != nil && m.handlers.StateHandler != nil {
				m.handlers.StateHandler(id, old, new)
			}
		},
	}
}

func (m *Manager) maybeSave(id string) {
	last, ok := m.lastSave.GetOk(id)
	if !ok {
		return
	}
	now := time.Now().UnixNano()
	prev := last.Load()
	if now-prev < int64(saveInterval) {
		return
	}
	// Exactly one worker wins the save window.
	if !last.CompareAndSwap(prev, now) {
		return
	}
	d, ok := m.downloads.GetOk(id)
	if !ok {
		return
	}
	if err := m.store.UpdateProgress(id, d.Status().BytesTransferred, d.Chunks()); err != nil {
		m.log("persist progress %s: %v", id, err)
	}
}

func (m *Manager) register(d *Downloader) {
	m.downloads.Set(d.ID(), d)
	m.lastSave.Set(d.ID(), new(atomic.Int64))
}

// Add validates and registers a new download in the Queued state. The
// transfer does not begin until Start admits it through the queue.
func (m *Manager) Add(rawURL string, opts *AddOpts) (*Downloader, error) {
	if opts == nil {
		opts = &AddOpts{}
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	dir := opts.DownloadDir
	if dir == "" {
		dir = m.downloadDir
	}
	name := opts.FileName
	if name == "" {
		name = FileNameFromHeaders(rawURL, "")
	}
	path := uniquePath(GetPath(dir, SanitizeFilename(name)))

	id := uuid.NewString()
	d := NewDownloader(id, rawURL, path, m.downloaderOpts(id))
	m.register(d)

	snap := d.Snapshot()
	if err := m.store.Save(snap); err != nil {
		return nil, err
	}
	if err := WriteSidecar(snap); err != nil {
		m.log("write sidecar for %s: %v", d.ID(), err)
	}
	m.log("added download %s: %s -> %s", d.ID(), rawURL, path)
	return d, nil
}

// uniquePath appends a numeric suffix until the path names no existing
// file.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		p := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
	}
}

// Get returns the controller for id.
func (m *Manager) Get(id string) (*Downloader, error) {
	d, ok := m.downloads.GetOk(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDownloadNotFound, id)
	}
	return d, nil
}

// Start submits the download to the admission queue. Queued and
// Interrupted downloads wait for a free slot; a Paused download kept its
// slot and resumes immediately.
func (m *Manager) Start(id string) error {
	d, err := m.Get(id)
	if err != nil {
		return err
	}
	if d.Status().Status == StatusPaused {
		return d.Resume()
	}
	m.queue.Enqueue(id)
	return nil
}

// admit is the queue's dispatch hook.
func (m *Manager) admit(id string) {
	d, ok := m.downloads.GetOk(id)
	if !ok {
		m.queue.Done(id)
		return
	}
	if err := d.Start(); err != nil {
		m.log("start %s: %v", id, err)
	}
}

// Pause requests a cooperative pause. The download keeps its queue slot;
// only completion, failure or cancellation free one.
func (m *Manager) Pause(id string) error {
	d, err := m.Get(id)
	if err != nil {
		return err
	}
	d.Pause()
	return nil
}

// Resume continues a paused download. Downloads interrupted by a previous
// process exit go back through the queue instead.
func (m *Manager) Resume(id string) error {
	d, err := m.Get(id)
	if err != nil {
		return err
	}
	if d.Status().Status == StatusInterrupted {
		m.queue.Enqueue(id)
		return nil
	}
	return d.Resume()
}

// Cancel terminates the download and withdraws it from the queue.
func (m *Manager) Cancel(id string) error {
	d, err := m.Get(id)
	if err != nil {
		return err
	}
	d.Cancel()
	m.queue.Remove(id)
	return nil
}

// Remove cancels the download if needed and deletes it from the manager,
// the queue and the state store. The data file is left on disk.
func (m *Manager) Remove(id string) error {
	d, err := m.Get(id)
	if err != nil {
		return err
	}
	d.Cancel()
	m.queue.Remove(id)
	m.downloads.Delete(id)
	m.lastSave.Delete(id)
	RemoveSidecar(d.FilePath())
	return m.store.Remove(id)
}

// Status returns the download's progress snapshot.
func (m *Manager) Status(id string) (StatusSnapshot, error) {
	d, err := m.Get(id)
	if err != nil {
		return StatusSnapshot{}, err
	}
	return d.Status(), nil
}

// List returns snapshots of every registered download, oldest first. A
// non-empty filter restricts the result to that status.
func (m *Manager) List(filter Status) []StatusSnapshot {
	type row struct {
		snap StatusSnapshot
		at   time.Time
	}
	var rows []row
	m.downloads.Range(func(_ string, d *Downloader) bool {
		s := d.Status()
		if filter == "" || s.Status == filter {
			rows = append(rows, row{snap: s, at: d.createdAt})
		}
		return true
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })
	out := make([]StatusSnapshot, len(rows))
	for i, r := range rows {
		out[i] = r.snap
	}
	return out
}

// SetMaxConcurrent changes the admission bound.
func (m *Manager) SetMaxConcurrent(n int) error {
	return m.queue.SetMaxConcurrent(n)
}

// MaxConcurrent returns the admission bound.
func (m *Manager) MaxConcurrent() int {
	return m.queue.MaxConcurrent()
}

// Counts reports the queue's pending and active sizes.
func (m *Manager) Counts() (pending, active int) {
	return m.queue.Counts()
}

// Close pauses every running download, persists final snapshots, and
// releases the writer and queue. Safe to call more than once.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.queue.Close()
		m.downloads.Range(func(id string, d *Downloader) bool {
			if d.Status().Status == StatusDownloading {
				d.Pause()
			}
			if e := m.store.Save(d.Snapshot()); e != nil {
				m.log("persist %s on close: %v", id, e)
			}
			return true
		})
		err = m.writer.CloseAll()
	})
	return err
}

func (m *Manager) log(format string, args ...any) {
	if m.l != nil {
		m.l.Printf(format, args...)
	}
}
