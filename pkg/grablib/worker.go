package grablib

import (
	"context"
	"errors"
	"io"
	"time"
)

const (
	// FetchIncrement is the request size of one worker iteration. Small
	// enough that pause and cancel are observed promptly, large enough to
	// amortize request overhead.
	FetchIncrement = 1 * MB

	// PausePollInterval is how often a paused worker rechecks its flags.
	PausePollInterval = 500 * time.Millisecond
)

// chunkWorker transfers one chunk in FetchIncrement slices, advancing
// Current after each write so a resume never refetches acknowledged
// bytes. In streaming mode (server without range support) it consumes a
// single full-body response instead of issuing range requests.
type chunkWorker struct {
	d         *Downloader
	chunk     *Chunk
	streaming bool
}

func newChunkWorker(d *Downloader, chunk *Chunk, streaming bool) *chunkWorker {
	return &chunkWorker{d: d, chunk: chunk, streaming: streaming}
}

func (w *chunkWorker) run(ctx context.Context) {
	if w.streaming {
		w.runStreaming(ctx)
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if w.d.isPaused() {
			if !w.waitPaused(ctx) {
				return
			}
			continue
		}
		cur, end := w.bounds()
		if cur > end {
			w.markCompleted()
			return
		}
		size := int64(FetchIncrement)
		// rem overflows negative when End is open-ended; keep the full
		// increment then.
		if rem := end - cur + 1; rem > 0 && rem < size {
			size = rem
		}
		var data []byte
		err := w.d.retry.Run(ctx, func() error {
			b, err := w.d.client.FetchRange(ctx, w.d.url, cur, cur+size-1)
			if err == nil {
				data = b
			}
			return err
		})
		if err != nil {
			if ctx.Err() == nil {
				w.d.log("worker %s %s: fetch [%d-%d] failed: %v", w.d.id, w.chunk, cur, cur+size-1, err)
			}
			return
		}
		if !w.commit(cur, data) {
			return
		}
	}
}

// runStreaming handles servers that ignore Range headers: one response,
// consumed in FetchIncrement slices so pause, cancel and progress keep
// their usual granularity. A mid-stream failure leaves Current where it
// is; the next Start reissues the request and discards already-written
// bytes before resuming.
func (w *chunkWorker) runStreaming(ctx context.Context) {
	body, err := w.d.client.Fetch(ctx, w.d.url)
	if err != nil {
		if ctx.Err() == nil {
			w.d.log("worker %s: open stream: %v", w.d.id, err)
		}
		return
	}
	defer body.Close()

	cur, _ := w.bounds()
	if cur > w.chunk.Start {
		if _, err := io.CopyN(io.Discard, body, cur-w.chunk.Start); err != nil {
			w.d.log("worker %s: reposition stream to %d: %v", w.d.id, cur, err)
			return
		}
	}
	buf := make([]byte, FetchIncrement)
	for {
		if ctx.Err() != nil {
			return
		}
		if w.d.isPaused() {
			if !w.waitPaused(ctx) {
				return
			}
			continue
		}
		n, err := io.ReadFull(body, buf)
		if n > 0 {
			if !w.commit(cur, buf[:n]) {
				return
			}
			cur += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				w.clampEnd(cur)
				w.markCompleted()
				return
			}
			if ctx.Err() == nil {
				w.d.log("worker %s: read stream at %d: %v", w.d.id, cur, err)
			}
			return
		}
	}
}

// commit writes one increment and advances the chunk. Returns false when
// the worker should stop.
func (w *chunkWorker) commit(offset int64, data []byte) bool {
	if err := w.d.writer.Write(w.d.filePath, offset, data); err != nil {
		w.d.log("worker %s: write %s at %d: %v", w.d.id, w.d.filePath, offset, err)
		return false
	}
	w.d.mu.Lock()
	w.chunk.Current = offset + int64(len(data))
	w.d.mu.Unlock()
	w.d.addProgress(int64(len(data)))
	return true
}

// waitPaused blocks until the pause flag clears or the context is done.
// Returns false on cancellation.
func (w *chunkWorker) waitPaused(ctx context.Context) bool {
	for w.d.isPaused() {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(PausePollInterval):
		}
	}
	return true
}

func (w *chunkWorker) bounds() (cur, end int64) {
	w.d.mu.RLock()
	defer w.d.mu.RUnlock()
	return w.chunk.Current, w.chunk.End
}

// clampEnd pins an open-ended chunk to the actual stream length.
func (w *chunkWorker) clampEnd(cur int64) {
	w.d.mu.Lock()
	if w.chunk.End > cur-1 {
		w.chunk.End = cur - 1
	}
	w.d.mu.Unlock()
}

func (w *chunkWorker) markCompleted() {
	w.d.mu.Lock()
	w.chunk.Completed = true
	w.d.mu.Unlock()
}
