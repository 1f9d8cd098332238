package cmd

import (
	"context"
	"fmt"

	"github.com/grabdl/grab/cmd/common"
	"github.com/grabdl/grab/pkg/grabcli"
	"github.com/urfave/cli"
)

var (
	queueMax int

	queueFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "max, m",
			Usage:       "set the maximum number of simultaneously active downloads",
			Destination: &queueMax,
		},
	}
)

func queue(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := grabcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "queue", "new_client", err)
		return nil
	}
	defer client.Close()

	cctx := context.Background()
	if queueMax > 0 {
		if err := client.SetMaxConcurrent(cctx, queueMax); err != nil {
			common.PrintRuntimeErr(ctx, "queue", "set_max_concurrent", err)
			return nil
		}
		fmt.Println("Concurrency limit set to", queueMax)
	}
	qs, err := client.QueueStatus(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "queue", "queue_status", err)
		return nil
	}
	fmt.Printf(`
Queue Status
Active`+"\t\t"+`: %d
Pending`+"\t\t"+`: %d
Max Concurrent`+"\t"+`: %d
`,
		qs.Active,
		qs.Pending,
		qs.MaxConcurrent,
	)
	return nil
}
