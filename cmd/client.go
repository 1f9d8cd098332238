package cmd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cmdCommon "github.com/grabdl/grab/cmd/common"
	"github.com/grabdl/grab/common"
	"github.com/grabdl/grab/pkg/grabcli"
	"github.com/grabdl/grab/pkg/grablib"
	"github.com/vbauerster/mpb/v8"
)

// watchDownload renders a progress bar for the download and blocks until it
// reaches a terminal state. The completed argument seeds the bar for
// downloads that already have progress.
func watchDownload(client *grabcli.Client, id string, total, completed int64) error {
	rr := time.Millisecond * 30
	sc := NewSpeedCounter(rr)
	p := mpb.New(mpb.WithWidth(64), mpb.WithRefreshRate(rr))

	barTotal := total
	if barTotal < 0 {
		barTotal = 0
	}
	bar := cmdCommon.InitBar(p, "", barTotal)
	if completed > 0 {
		bar.SetCurrent(completed)
	}
	sc.SetBar(bar)
	sc.Start()

	var last atomic.Int64
	last.Store(completed)
	done := make(chan string, 1)

	client.OnProgress(func(pr *common.ProgressNotification) {
		if pr.ID != id {
			return
		}
		if pr.TotalLength > 0 && pr.TotalLength != barTotal {
			barTotal = pr.TotalLength
			bar.SetTotal(barTotal, false)
		}
		prev := last.Swap(pr.CompletedLength)
		if delta := pr.CompletedLength - prev; delta > 0 {
			sc.IncrBy(int(delta))
		}
	})
	client.OnStateChange(func(st *common.StateNotification) {
		if st.ID != id {
			return
		}
		if grablib.Status(st.NewStatus).Terminal() || st.NewStatus == string(grablib.StatusPaused) {
			select {
			case done <- st.NewStatus:
			default:
			}
		}
	})

	// Backstop for downloads that settle before the callbacks were
	// registered, or whose final notification was lost.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			st, err := client.Status(context.Background(), id)
			if err != nil {
				continue
			}
			if grablib.Status(st.Status).Terminal() || st.Status == string(grablib.StatusPaused) {
				select {
				case done <- st.Status:
				default:
				}
				return
			}
		}
	}()

	final := <-done
	sc.Stop()
	switch final {
	case string(grablib.StatusCompleted):
		bar.SetTotal(barTotal, true)
		p.Wait()
		fmt.Println("\nDownload complete.")
	case string(grablib.StatusPaused):
		bar.Abort(true)
		fmt.Println("\nDownload paused, resume it with: grab resume", id)
	default:
		bar.Abort(true)
		fmt.Printf("\nDownload %s.\n", final)
	}
	return nil
}

func printDownloadInfo(res *common.AddResult, total int64) {
	size := "unknown"
	if total > 0 {
		size = formatBytes(total)
	}
	fmt.Printf(`
Download Info
Id`+"\t\t"+`: %s
Name`+"\t\t"+`: %s
Size`+"\t\t"+`: %s
Save Location`+"\t"+`: %s
`,
		res.ID,
		res.FileName,
		size,
		res.SavePath,
	)
}

func formatBytes(n int64) string {
	switch {
	case n >= grablib.GB:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(grablib.GB))
	case n >= grablib.MB:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(grablib.MB))
	case n >= grablib.KB:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(grablib.KB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
