package cmd

const (
	DEF_MAX_CONCURRENT = 3
	DEF_WS_PORT        = 0
)

const DESCRIPTION = `
Grab is a fast and resilient cross-platform download manager.
It splits files into chunks downloaded in parallel, survives
restarts by persisting progress, and exposes a daemon that can
be driven from the command line or over websockets.
`

const (
	DownloadDescription = `The download command registers a URL with the grab daemon,
starts it right away and follows its progress until the
download finishes.

Example:
        grab https://domain.com/file.zip
					OR
        grab download https://domain.com/file.zip

`
	AddDescription = `The add command registers a URL with the grab daemon without
starting it. The returned download id can later be passed to
"grab start".

Example:
        grab add https://domain.com/file.zip

`
	StartDescription = `The start command submits a registered download to the queue.
It starts as soon as a concurrency slot is available.

Example:
        grab start <download id>

`
	AttachDescription = `The attach command follows the progress of an active download
in the current terminal.

Example:
        grab attach <download id>

`
	ListDescription = `The list command displays all known downloads along with their
ids, state and progress. The ids can be used with the other
commands.

Example:
        grab list
        grab list -s paused

`
	StatusDescription = `The status command shows the details of a single download.

Example:
        grab status <download id>

`
	PauseDescription = `The pause command suspends an active download. Its progress is
kept and it can be continued later with "grab resume".

Example:
        grab pause <download id>

`
	ResumeDescription = `The resume command continues a paused or interrupted download
from where it left off.

Example:
        grab resume <download id>

`
	CancelDescription = `The cancel command aborts a download. Cancelled downloads keep
their record but cannot be restarted.

Example:
        grab cancel <download id>

`
	RemoveDescription = `The remove command cancels a download and deletes its record
from the daemon.

Example:
        grab remove <download id>

`
	QueueDescription = `The queue command shows the scheduler's occupancy: how many
downloads are active, how many are waiting and the concurrency
limit. Use the --max flag to change the limit.

Example:
        grab queue
        grab queue --max 5

`
	DaemonDescription = `The daemon command runs the grab daemon in the foreground. All
other commands talk to it over a local socket.

Example:
        grab daemon

`
)
