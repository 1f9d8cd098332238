package grablib

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// DefWriteBufferSize is the pending-buffer capacity per file.
const DefWriteBufferSize = int(1 * MB)

// flushThreshold is the buffer fill fraction that forces a flush.
const flushThreshold = 0.9

// SegmentedFileWriter serializes concurrent offset writes from chunk
// workers into byte-correct files. For each path it keeps one open handle
// and one pending contiguous run of bytes; a write that does not continue
// the run flushes it first. All operations on a given path share one
// critical section, so writers interleave at flush boundaries, never
// mid-buffer.
//
// The pending buffer is a batching heuristic, not a correctness
// requirement: workers on disjoint, non-adjacent ranges break contiguity
// on nearly every interleaved call and effectively degrade to direct
// locked writes, which is still correct. The buffer pays off for the
// single sequential writer case.
type SegmentedFileWriter struct {
	mu     sync.Mutex
	files  map[string]*fileBuffer
	bufCap int
	l      *log.Logger
}

type fileBuffer struct {
	mu    sync.Mutex
	f     *os.File
	buf   []byte
	start int64 // absolute offset of buf[0]
}

// NewSegmentedFileWriter creates a writer with the given per-file buffer
// capacity. A non-positive capacity selects DefWriteBufferSize.
func NewSegmentedFileWriter(bufCap int, l *log.Logger) *SegmentedFileWriter {
	if bufCap <= 0 {
		bufCap = DefWriteBufferSize
	}
	return &SegmentedFileWriter{
		files:  make(map[string]*fileBuffer),
		bufCap: bufCap,
		l:      l,
	}
}

// Write stores data at the absolute offset in the file at path. It is safe
// for concurrent use across and within paths.
func (w *SegmentedFileWriter) Write(path string, offset int64, data []byte) error {
	fb, err := w.fileFor(path)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()

	// A non-contiguous offset ends the pending run.
	if len(fb.buf) > 0 && fb.start+int64(len(fb.buf)) != offset {
		if err := w.flushLocked(path, fb); err != nil {
			return err
		}
	}
	if len(fb.buf) == 0 {
		fb.start = offset
	}
	fb.buf = append(fb.buf, data...)

	if float64(len(fb.buf)) >= float64(w.bufCap)*flushThreshold {
		return w.flushLocked(path, fb)
	}
	return nil
}

func (w *SegmentedFileWriter) fileFor(path string) (*fileBuffer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if fb, ok := w.files[path]; ok {
		return fb, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	fb := &fileBuffer{f: f, buf: make([]byte, 0, w.bufCap)}
	w.files[path] = fb
	return fb, nil
}

// flushLocked writes the pending run under an exclusive byte-range lock
// covering exactly the flushed span. Caller holds fb.mu.
func (w *SegmentedFileWriter) flushLocked(path string, fb *fileBuffer) error {
	if len(fb.buf) == 0 {
		return nil
	}
	n := int64(len(fb.buf))
	if err := lockRange(fb.f, fb.start, n); err != nil {
		return &IOError{Path: path, Err: err}
	}
	_, werr := fb.f.WriteAt(fb.buf, fb.start)
	if uerr := unlockRange(fb.f, fb.start, n); uerr != nil && w.l != nil {
		w.l.Printf("release range lock %s [%d,+%d): %v", path, fb.start, n, uerr)
	}
	if werr != nil {
		return &IOError{Path: path, Err: werr}
	}
	fb.buf = fb.buf[:0]
	fb.start += n
	return nil
}

// Flush drains the pending buffer of every open file.
func (w *SegmentedFileWriter) Flush() error {
	var errs []error
	for path, fb := range w.snapshot() {
		fb.mu.Lock()
		if err := w.flushLocked(path, fb); err != nil {
			errs = append(errs, err)
		}
		fb.mu.Unlock()
	}
	return errors.Join(errs...)
}

// FlushPath drains the pending buffer of a single file, if open.
func (w *SegmentedFileWriter) FlushPath(path string) error {
	w.mu.Lock()
	fb, ok := w.files[path]
	w.mu.Unlock()
	if !ok {
		return nil
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return w.flushLocked(path, fb)
}

// CloseAll flushes every pending buffer and releases all file handles.
func (w *SegmentedFileWriter) CloseAll() error {
	var errs []error
	w.mu.Lock()
	files := w.files
	w.files = make(map[string]*fileBuffer)
	w.mu.Unlock()
	for path, fb := range files {
		fb.mu.Lock()
		if err := w.flushLocked(path, fb); err != nil {
			errs = append(errs, err)
		}
		if err := fb.f.Close(); err != nil {
			errs = append(errs, &IOError{Path: path, Err: err})
		}
		fb.mu.Unlock()
	}
	return errors.Join(errs...)
}

// CheckIntegrity reports whether the file exists and is non-empty. It is
// an existence check, not a content verification.
func (w *SegmentedFileWriter) CheckIntegrity(path string) bool {
	if err := w.FlushPath(path); err != nil && w.l != nil {
		w.l.Printf("flush before integrity check %s: %v", path, err)
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func (w *SegmentedFileWriter) snapshot() map[string]*fileBuffer {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]*fileBuffer, len(w.files))
	for p, fb := range w.files {
		out[p] = fb
	}
	return out
}
