package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/grabdl/grab/cmd/common"
	"github.com/grabdl/grab/pkg/grabcli"
	"github.com/urfave/cli"
)

var (
	lsStatus string

	lsFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "status, s",
			Usage:       "only list downloads in the given state (queued, downloading, paused, completed, cancelled, error, interrupted)",
			Destination: &lsStatus,
		},
	}
)

func list(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := grabcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "new_client", err)
		return nil
	}
	defer client.Close()

	l, err := client.List(context.Background(), lsStatus)
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "get_list", err)
		return nil
	}
	if len(l.Downloads) == 0 {
		fmt.Println("No downloads found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPROGRESS\tSIZE")
	for _, d := range l.Downloads {
		size := "unknown"
		if d.TotalLength > 0 {
			size = formatBytes(d.TotalLength)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n",
			d.ID, d.FileName, d.Status, d.Progress, size)
	}
	return w.Flush()
}
