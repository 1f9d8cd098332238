package common

// JSON-RPC method names exposed by the daemon.
const (
	MethodVersion          = "system.getVersion"
	MethodAdd              = "download.add"
	MethodStart            = "download.start"
	MethodPause            = "download.pause"
	MethodResume           = "download.resume"
	MethodCancel           = "download.cancel"
	MethodRemove           = "download.remove"
	MethodStatus           = "download.status"
	MethodList             = "download.list"
	MethodQueueStatus      = "queue.status"
	MethodSetMaxConcurrent = "queue.setMaxConcurrent"
)

// Notification method names pushed by the daemon.
const (
	NotifyProgress     = "download.progress"
	NotifyStateChanged = "download.stateChanged"
)

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// AddParams is the input for download.add.
type AddParams struct {
	URL      string `json:"url"`
	FileName string `json:"fileName,omitempty"`
	Dir      string `json:"dir,omitempty"`
	// Start submits the download to the queue right after registration.
	Start bool `json:"start,omitempty"`
}

// AddResult is the response for download.add.
type AddResult struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	SavePath string `json:"savePath"`
}

// IDParam is the common input for methods addressing one download.
type IDParam struct {
	ID string `json:"id"`
}

// StatusResult is the response for download.status and one entry of
// download.list.
type StatusResult struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	FileName        string  `json:"fileName"`
	SavePath        string  `json:"savePath"`
	Status          string  `json:"status"`
	TotalLength     int64   `json:"totalLength"`
	CompletedLength int64   `json:"completedLength"`
	Progress        float64 `json:"progress"`
}

// ListParams is the input for download.list. An empty Status selects
// every download.
type ListParams struct {
	Status string `json:"status,omitempty"`
}

// ListResult is the response for download.list.
type ListResult struct {
	Downloads []*StatusResult `json:"downloads"`
}

// QueueStatusResult is the response for queue.status.
type QueueStatusResult struct {
	Pending       int `json:"pending"`
	Active        int `json:"active"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// SetMaxConcurrentParams is the input for queue.setMaxConcurrent.
type SetMaxConcurrentParams struct {
	Max int `json:"max"`
}

// EmptyResult is the response of methods that return no data.
type EmptyResult struct{}

// ProgressNotification is pushed for every transfer increment.
type ProgressNotification struct {
	ID              string `json:"id"`
	CompletedLength int64  `json:"completedLength"`
	TotalLength     int64  `json:"totalLength"`
}

// StateNotification is pushed on every status transition.
type StateNotification struct {
	ID        string `json:"id"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
	// Error carries the failure detail for transitions into the error
	// state, when available.
	Error string `json:"error,omitempty"`
}
