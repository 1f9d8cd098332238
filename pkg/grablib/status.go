package grablib

// Status represents the lifecycle state of a download.
type Status string

const (
	// StatusQueued means the download has been submitted but not yet admitted.
	StatusQueued Status = "queued"
	// StatusDownloading means chunk workers are actively transferring bytes.
	StatusDownloading Status = "downloading"
	// StatusPaused means workers are blocked on the cooperative pause flag.
	StatusPaused Status = "paused"
	// StatusCompleted means every byte of the resource has been written.
	StatusCompleted Status = "completed"
	// StatusCancelled means the download was cancelled by the caller.
	StatusCancelled Status = "cancelled"
	// StatusError means the download failed and holds no running workers.
	StatusError Status = "error"
	// StatusInterrupted marks a download that was active when the previous
	// process exited. A subsequent Start spawns fresh workers from the
	// persisted chunk positions.
	StatusInterrupted Status = "interrupted"
)

// Terminal reports whether the status is an end state: a terminal download
// keeps its snapshot (except cancellation, which removes it) but holds no
// running workers.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusError:
		return true
	}
	return false
}

// Startable reports whether Start has any effect in this state.
func (s Status) Startable() bool {
	switch s {
	case StatusQueued, StatusPaused, StatusInterrupted:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }
