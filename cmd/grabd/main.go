package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/grabdl/grab/internal/daemon"
	"github.com/grabdl/grab/pkg/logger"
)

var (
	version   string
	commit    string
	buildType string = "unclassified"
)

func main() {
	l := logger.NewStandardLogger(log.Default())
	r := daemon.New(&daemon.Config{
		Version:   version,
		Commit:    commit,
		BuildType: buildType,
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
		fmt.Println("grabd:", err.Error())
		os.Exit(1)
	}
}
