package server

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/grabdl/grab/common"
	"github.com/grabdl/grab/pkg/grablib"
)

// Custom JSON-RPC error codes for download operations.
const (
	codeDownloadNotFound   = jrpc2.Code(-32001)
	codeInvalidParams      = jrpc2.Code(-32602)
	codeInvalidURL         = jrpc2.Code(-32010)
	codeInvalidConcurrency = jrpc2.Code(-32011)
)

// RPCConfig holds build metadata reported by system.getVersion.
type RPCConfig struct {
	Version   string
	Commit    string
	BuildType string
}

// RPCServer implements the daemon's JSON-RPC 2.0 method set on top of the
// download manager.
type RPCServer struct {
	cfg     RPCConfig
	manager *grablib.Manager
}

// NewRPCServer creates the method set for the given manager.
func NewRPCServer(cfg RPCConfig, m *grablib.Manager) *RPCServer {
	return &RPCServer{cfg: cfg, manager: m}
}

// Methods returns the handler map served to every connection.
func (rs *RPCServer) Methods() handler.Map {
	return handler.Map{
		common.MethodVersion:          handler.New(rs.systemGetVersion),
		common.MethodAdd:              handler.New(rs.downloadAdd),
		common.MethodStart:            handler.New(rs.downloadStart),
		common.MethodPause:            handler.New(rs.downloadPause),
		common.MethodResume:           handler.New(rs.downloadResume),
		common.MethodCancel:           handler.New(rs.downloadCancel),
		common.MethodRemove:           handler.New(rs.downloadRemove),
		common.MethodStatus:           handler.New(rs.downloadStatus),
		common.MethodList:             handler.New(rs.downloadList),
		common.MethodQueueStatus:      handler.New(rs.queueStatus),
		common.MethodSetMaxConcurrent: handler.New(rs.queueSetMaxConcurrent),
	}
}

// rpcError maps manager errors onto the daemon's JSON-RPC error codes.
func rpcError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, grablib.ErrDownloadNotFound):
		return &jrpc2.Error{Code: codeDownloadNotFound, Message: err.Error()}
	case errors.Is(err, grablib.ErrInvalidURL):
		return &jrpc2.Error{Code: codeInvalidURL, Message: err.Error()}
	case errors.Is(err, grablib.ErrInvalidConcurrency):
		return &jrpc2.Error{Code: codeInvalidConcurrency, Message: err.Error()}
	default:
		return err
	}
}

func statusResult(s grablib.StatusSnapshot) *common.StatusResult {
	return &common.StatusResult{
		ID:              s.ID,
		URL:             s.URL,
		FileName:        filepath.Base(s.FilePath),
		SavePath:        s.FilePath,
		Status:          string(s.Status),
		TotalLength:     s.TotalBytes,
		CompletedLength: s.BytesTransferred,
		Progress:        s.Progress,
	}
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	return &common.VersionResult{
		Version:   rs.cfg.Version,
		Commit:    rs.cfg.Commit,
		BuildType: rs.cfg.BuildType,
	}, nil
}

// downloadAdd registers a new download, optionally submitting it to the
// queue right away.
func (rs *RPCServer) downloadAdd(_ context.Context, p *common.AddParams) (*common.AddResult, error) {
	if p.URL == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: url"}
	}
	d, err := rs.manager.Add(p.URL, &grablib.AddOpts{
		FileName:    p.FileName,
		DownloadDir: p.Dir,
	})
	if err != nil {
		return nil, rpcError(err)
	}
	if p.Start {
		if err := rs.manager.Start(d.ID()); err != nil {
			return nil, rpcError(err)
		}
	}
	return &common.AddResult{
		ID:       d.ID(),
		FileName: filepath.Base(d.FilePath()),
		SavePath: d.FilePath(),
	}, nil
}

func (rs *RPCServer) downloadStart(_ context.Context, p *common.IDParam) (*common.EmptyResult, error) {
	if err := rs.manager.Start(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) downloadPause(_ context.Context, p *common.IDParam) (*common.EmptyResult, error) {
	if err := rs.manager.Pause(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) downloadResume(_ context.Context, p *common.IDParam) (*common.EmptyResult, error) {
	if err := rs.manager.Resume(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) downloadCancel(_ context.Context, p *common.IDParam) (*common.EmptyResult, error) {
	if err := rs.manager.Cancel(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) downloadRemove(_ context.Context, p *common.IDParam) (*common.EmptyResult, error) {
	if err := rs.manager.Remove(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) downloadStatus(_ context.Context, p *common.IDParam) (*common.StatusResult, error) {
	s, err := rs.manager.Status(p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	return statusResult(s), nil
}

func (rs *RPCServer) downloadList(_ context.Context, p *common.ListParams) (*common.ListResult, error) {
	filter := grablib.Status(p.Status)
	switch filter {
	case "", grablib.StatusQueued, grablib.StatusDownloading, grablib.StatusPaused,
		grablib.StatusCompleted, grablib.StatusCancelled, grablib.StatusError,
		grablib.StatusInterrupted:
	default:
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "unknown status filter: " + p.Status}
	}
	snaps := rs.manager.List(filter)
	downloads := make([]*common.StatusResult, 0, len(snaps))
	for _, s := range snaps {
		downloads = append(downloads, statusResult(s))
	}
	return &common.ListResult{Downloads: downloads}, nil
}

func (rs *RPCServer) queueStatus(_ context.Context) (*common.QueueStatusResult, error) {
	pending, active := rs.manager.Counts()
	return &common.QueueStatusResult{
		Pending:       pending,
		Active:        active,
		MaxConcurrent: rs.manager.MaxConcurrent(),
	}, nil
}

func (rs *RPCServer) queueSetMaxConcurrent(_ context.Context, p *common.SetMaxConcurrentParams) (*common.EmptyResult, error) {
	if err := rs.manager.SetMaxConcurrent(p.Max); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}
