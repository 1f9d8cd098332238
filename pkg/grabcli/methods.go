package grabcli

import (
	"context"

	"github.com/grabdl/grab/common"
)

func invoke[T any](ctx context.Context, c *Client, method string, params any) (*T, error) {
	var out T
	if err := c.rpc.CallResult(ctx, method, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version reports the daemon's build metadata.
func (c *Client) Version(ctx context.Context) (*common.VersionResult, error) {
	return invoke[common.VersionResult](ctx, c, common.MethodVersion, nil)
}

// AddOpts carries optional parameters for Add.
type AddOpts struct {
	// FileName overrides the save name derived from the URL.
	FileName string
	// Dir overrides the daemon's download directory.
	Dir string
	// Start submits the download to the queue immediately.
	Start bool
}

// Add registers a URL with the daemon.
func (c *Client) Add(ctx context.Context, url string, opts *AddOpts) (*common.AddResult, error) {
	if opts == nil {
		opts = &AddOpts{}
	}
	return invoke[common.AddResult](ctx, c, common.MethodAdd, &common.AddParams{
		URL:      url,
		FileName: opts.FileName,
		Dir:      opts.Dir,
		Start:    opts.Start,
	})
}

// Start submits a download to the queue.
func (c *Client) Start(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodStart, &common.IDParam{ID: id})
	return err
}

// Pause suspends an active download.
func (c *Client) Pause(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodPause, &common.IDParam{ID: id})
	return err
}

// Resume continues a paused download.
func (c *Client) Resume(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodResume, &common.IDParam{ID: id})
	return err
}

// Cancel aborts a download.
func (c *Client) Cancel(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodCancel, &common.IDParam{ID: id})
	return err
}

// Remove cancels a download and deletes its record from the daemon.
func (c *Client) Remove(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodRemove, &common.IDParam{ID: id})
	return err
}

// Status reports a single download.
func (c *Client) Status(ctx context.Context, id string) (*common.StatusResult, error) {
	return invoke[common.StatusResult](ctx, c, common.MethodStatus, &common.IDParam{ID: id})
}

// List reports all downloads, optionally filtered by status.
func (c *Client) List(ctx context.Context, status string) (*common.ListResult, error) {
	return invoke[common.ListResult](ctx, c, common.MethodList, &common.ListParams{Status: status})
}

// QueueStatus reports the scheduler's occupancy.
func (c *Client) QueueStatus(ctx context.Context) (*common.QueueStatusResult, error) {
	return invoke[common.QueueStatusResult](ctx, c, common.MethodQueueStatus, nil)
}

// SetMaxConcurrent adjusts the number of simultaneously active downloads.
func (c *Client) SetMaxConcurrent(ctx context.Context, max int) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodSetMaxConcurrent, &common.SetMaxConcurrentParams{Max: max})
	return err
}
