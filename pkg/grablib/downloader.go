package grablib

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Handlers are callbacks fired on download events. They are invoked from
// worker and monitor goroutines; implementations must be safe for
// concurrent use. Nil handlers are skipped.
type Handlers struct {
	// ProgressHandler receives the byte delta of each fetch increment.
	ProgressHandler func(n int64)
	// StateHandler is fired on every status transition.
	StateHandler func(old, new Status)
}

func (h *Handlers) progress(n int64) {
	if h != nil && h.ProgressHandler != nil {
		h.ProgressHandler(n)
	}
}

func (h *Handlers) state(old, new Status) {
	if h != nil && h.StateHandler != nil {
		h.StateHandler(old, new)
	}
}

// DownloaderOpts are the collaborators and optional settings for a
// Downloader.
type DownloaderOpts struct {
	Client   *RangeClient
	Writer   *SegmentedFileWriter
	Retry    RetryPolicy
	Handlers *Handlers
	Logger   *log.Logger
}

// Downloader drives one download through its lifecycle:
// Queued -> Downloading -> {Paused, Completed, Error, Cancelled}, with
// Paused -> Downloading on resume and any non-terminal state -> Cancelled.
// It owns the chunk list, spawns one worker per incomplete chunk and one
// monitor awaiting them, and aggregates transferred bytes.
type Downloader struct {
	id       string
	url      string
	filePath string

	mu            sync.RWMutex
	totalSize     int64
	status        Status
	chunks        []*Chunk
	acceptsRanges bool

	transferred atomic.Int64
	paused      atomic.Bool
	workers     atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	client   *RangeClient
	writer   *SegmentedFileWriter
	retry    RetryPolicy
	handlers *Handlers
	l        *log.Logger

	createdAt time.Time
}

// NewDownloader creates a download in the Queued state with an unknown
// total size.
func NewDownloader(id, url, filePath string, opts *DownloaderOpts) *Downloader {
	d := newDownloader(id, url, filePath, opts)
	d.status = StatusQueued
	d.totalSize = -1
	return d
}

// RestoreDownloader rebuilds a download from a durable snapshot, reusing
// its chunk list so completed chunks are never re-fetched. A snapshot
// persisted mid-transfer (status Downloading) is restored as Interrupted.
func RestoreDownloader(snap *Snapshot, opts *DownloaderOpts) *Downloader {
	d := newDownloader(snap.ID, snap.URL, snap.FilePath, opts)
	d.totalSize = snap.TotalBytes
	d.chunks = cloneChunks(snap.Chunks)
	d.transferred.Store(snap.BytesTransferred)
	d.acceptsRanges = len(snap.Chunks) > 1 || snap.TotalBytes > 0
	d.createdAt = snap.CreatedAt
	st := snap.Status
	if st == StatusDownloading {
		st = StatusInterrupted
	}
	d.status = st
	return d
}

func newDownloader(id, url, filePath string, opts *DownloaderOpts) *Downloader {
	if opts == nil {
		opts = &DownloaderOpts{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Downloader{
		id:        id,
		url:       url,
		filePath:  filePath,
		ctx:       ctx,
		cancel:    cancel,
		client:    opts.Client,
		writer:    opts.Writer,
		retry:     opts.Retry,
		handlers:  opts.Handlers,
		l:         opts.Logger,
		createdAt: time.Now(),
	}
}

// ID returns the download's opaque identifier.
func (d *Downloader) ID() string { return d.id }

// URL returns the source URL.
func (d *Downloader) URL() string { return d.url }

// FilePath returns the local data file path.
func (d *Downloader) FilePath() string { return d.filePath }

// TotalSize returns the probed resource size, -1 when unknown.
func (d *Downloader) TotalSize() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.totalSize
}

// Start begins or continues the transfer. It is a no-op unless the
// download is Queued, Paused or Interrupted. An unknown size is probed
// first; probe failure after the retry budget surfaces as StatusError and
// a returned error. Chunks are planned once and reused on resume.
func (d *Downloader) Start() error {
	d.mu.Lock()
	if !d.status.Startable() {
		d.mu.Unlock()
		return nil
	}
	prev := d.status
	d.status = StatusDownloading
	d.mu.Unlock()
	d.paused.Store(false)
	d.handlers.state(prev, StatusDownloading)

	if d.TotalSize() <= 0 {
		var info *FileInfo
		err := d.retry.Run(d.ctx, func() error {
			i, err := d.client.Probe(d.ctx, d.url)
			if err == nil {
				info = i
			}
			return err
		})
		if err != nil {
			d.setStatus(StatusError)
			return fmt.Errorf("probe %s: %w", d.url, err)
		}
		d.mu.Lock()
		d.totalSize = info.Size
		d.acceptsRanges = info.AcceptsRanges
		d.mu.Unlock()
		d.log("probed %s: size=%d ranges=%v", d.url, info.Size, info.AcceptsRanges)
	}

	// Workers blocked on a live pause keep running; clearing the flag
	// above resumes them without respawning.
	if d.workers.Load() > 0 {
		return nil
	}

	d.mu.Lock()
	// An unknown total size leaves nothing to split into bounded ranges,
	// so it streams even when the server honors them; the end of the
	// resource is found at EOF.
	streaming := !d.acceptsRanges || d.totalSize <= 0
	n := workerCountFor(d.totalSize)
	if streaming {
		n = 1
	}
	if len(d.chunks) == 0 {
		d.chunks = PlanChunks(d.totalSize, n)
		d.transferred.Store(0)
	}
	var pending []*Chunk
	for _, c := range d.chunks {
		if !c.Completed {
			pending = append(pending, c)
		}
	}
	d.mu.Unlock()

	wg := &sync.WaitGroup{}
	for _, c := range pending {
		c := c
		wg.Add(1)
		d.workers.Add(1)
		safeGo(d.l, wg, fmt.Sprintf("worker %s %s", d.id, c), func() {
			defer d.workers.Add(-1)
			newChunkWorker(d, c, streaming).run(d.ctx)
		})
	}
	safeGo(d.l, nil, "monitor "+d.id, func() {
		d.monitor(wg)
	})
	return nil
}

// monitor awaits every spawned worker, then computes the terminal status.
// A download whose workers all stopped early without a cancel or pause has
// stalled chunks (exhausted retries or write failures) and escalates to
// StatusError rather than sitting in Downloading forever.
func (d *Downloader) monitor(wg *sync.WaitGroup) {
	wg.Wait()
	if d.ctx.Err() != nil {
		return
	}
	if d.paused.Load() {
		return
	}
	d.mu.RLock()
	total := d.totalSize
	unfinished := 0
	for _, c := range d.chunks {
		if !c.Completed {
			unfinished++
		}
	}
	d.mu.RUnlock()

	done := unfinished == 0 && (total <= 0 || d.transferred.Load() >= total)
	if done {
		if total <= 0 {
			d.mu.Lock()
			d.totalSize = d.transferred.Load()
			d.mu.Unlock()
		}
		if err := d.writer.FlushPath(d.filePath); err != nil {
			d.log("flush %s: %v", d.filePath, err)
		}
		d.setStatus(StatusCompleted)
		if !d.writer.CheckIntegrity(d.filePath) {
			d.log("integrity check failed: %s", d.filePath)
		}
		d.log("download complete: %s", d.url)
		return
	}
	d.log("download stalled: %d unfinished chunks for %s", unfinished, d.url)
	d.setStatus(StatusError)
}

// Pause requests a cooperative pause. Effective only while Downloading;
// workers observe the flag between fetch increments and block without
// losing position.
func (d *Downloader) Pause() {
	d.mu.Lock()
	if d.status != StatusDownloading {
		d.mu.Unlock()
		return
	}
	d.status = StatusPaused
	d.mu.Unlock()
	d.paused.Store(true)
	d.handlers.state(StatusDownloading, StatusPaused)
	d.log("download paused: %s", d.url)
}

// Resume continues a paused download from each chunk's last recorded
// position. Effective only while Paused.
func (d *Downloader) Resume() error {
	d.mu.RLock()
	st := d.status
	d.mu.RUnlock()
	if st != StatusPaused {
		return nil
	}
	return d.Start()
}

// Cancel sets the cooperative cancel flag, releases paused workers so they
// can observe it, and marks the download Cancelled. Workers exit within
// one fetch-increment boundary; there is no hard preemption of an
// in-flight request.
func (d *Downloader) Cancel() {
	d.mu.Lock()
	if d.status.Terminal() {
		d.mu.Unlock()
		return
	}
	prev := d.status
	d.status = StatusCancelled
	d.mu.Unlock()
	d.paused.Store(false)
	d.cancel()
	d.handlers.state(prev, StatusCancelled)
	d.log("download cancelled: %s", d.url)
}

// StatusSnapshot is an immutable view of a download's progress.
type StatusSnapshot struct {
	ID               string
	URL              string
	FilePath         string
	BytesTransferred int64
	TotalBytes       int64
	Status           Status
	Progress         float64
}

// Status returns an immutable snapshot of progress. Progress is 0 when
// the total size is unknown.
func (d *Downloader) Status() StatusSnapshot {
	d.mu.RLock()
	total := d.totalSize
	st := d.status
	d.mu.RUnlock()
	read := d.transferred.Load()
	var progress float64
	if total > 0 {
		progress = float64(read) / float64(total)
	}
	return StatusSnapshot{
		ID:               d.id,
		URL:              d.url,
		FilePath:         d.filePath,
		BytesTransferred: read,
		TotalBytes:       total,
		Status:           st,
		Progress:         progress,
	}
}

// Snapshot returns a durable copy of the download suitable for the state
// store.
func (d *Downloader) Snapshot() *Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &Snapshot{
		ID:               d.id,
		URL:              d.url,
		FilePath:         d.filePath,
		TotalBytes:       d.totalSize,
		BytesTransferred: d.transferred.Load(),
		Chunks:           cloneChunks(d.chunks),
		Status:           d.status,
		CreatedAt:        d.createdAt,
		UpdatedAt:        time.Now(),
	}
}

// Chunks returns a copy of the chunk list.
func (d *Downloader) Chunks() []*Chunk {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneChunks(d.chunks)
}

func (d *Downloader) setStatus(st Status) {
	d.mu.Lock()
	if d.status == st || d.status.Terminal() {
		d.mu.Unlock()
		return
	}
	prev := d.status
	d.status = st
	d.mu.Unlock()
	d.handlers.state(prev, st)
}

func (d *Downloader) addProgress(n int64) {
	d.transferred.Add(n)
	d.handlers.progress(n)
}

func (d *Downloader) isPaused() bool { return d.paused.Load() }

func (d *Downloader) log(format string, args ...any) {
	if d.l != nil {
		d.l.Printf(format, args...)
	}
}
