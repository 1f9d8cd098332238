package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/grabdl/grab/cmd/common"
	daemonpkg "github.com/grabdl/grab/internal/daemon"
	"github.com/grabdl/grab/pkg/logger"
	"github.com/urfave/cli"
)

var (
	daemonConfigDir   string
	daemonDownloadDir string
	daemonMaxConc     int
	daemonWSPort      int
	daemonProxy       string
	daemonUserAgent   string

	daemonFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "config-dir",
			Usage:       "override the configuration directory",
			EnvVar:      "GRAB_CONFIG_DIR",
			Destination: &daemonConfigDir,
		},
		cli.StringFlag{
			Name:        "download-path, l",
			Usage:       "set the directory where downloaded files are saved",
			Destination: &daemonDownloadDir,
		},
		cli.IntFlag{
			Name:        "max-concurrent, n",
			Usage:       "maximum number of simultaneously active downloads",
			EnvVar:      "GRAB_MAX_CONCURRENT",
			Value:       DEF_MAX_CONCURRENT,
			Destination: &daemonMaxConc,
		},
		cli.IntFlag{
			Name:        "ws-port",
			Usage:       "loopback port for the websocket bridge (0 disables it)",
			EnvVar:      "GRAB_WS_PORT",
			Value:       DEF_WS_PORT,
			Destination: &daemonWSPort,
		},
		cli.StringFlag{
			Name:        "proxy",
			Usage:       "route downloads through an http or socks5 proxy",
			EnvVar:      "GRAB_PROXY",
			Destination: &daemonProxy,
		},
		cli.StringFlag{
			Name:        "user-agent, u",
			Usage:       "user agent sent with every download request",
			EnvVar:      "GRAB_USER_AGENT",
			Destination: &daemonUserAgent,
		},
	}
)

func daemon(ctx *cli.Context) error {
	l := logger.NewStandardLogger(log.Default())
	r := daemonpkg.New(&daemonpkg.Config{
		ConfigDir:     daemonConfigDir,
		DownloadDir:   daemonDownloadDir,
		MaxConcurrent: daemonMaxConc,
		WSPort:        daemonWSPort,
		ProxyURL:      daemonProxy,
		UserAgent:     daemonUserAgent,
		Version:       currentBuildArgs.Version,
		Commit:        currentBuildArgs.Commit,
		BuildType:     currentBuildArgs.BuildType,
	}, l)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		if err := r.Shutdown(); err != nil {
			l.Error("shutdown: %v", err)
		}
	}()

	err := r.Start(context.Background())
	if err != nil && !errors.Is(err, context.Canceled) {
		common.PrintRuntimeErr(ctx, "daemon", "start", err)
		return err
	}
	return nil
}
