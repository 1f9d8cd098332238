package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/grabdl/grab/cmd/common"
	"github.com/grabdl/grab/pkg/grabcli"
	"github.com/urfave/cli"
)

func start(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no download id provided"),
		)
	} else if id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := grabcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "start", "new_client", err)
		return nil
	}
	defer client.Close()

	if err := client.Start(context.Background(), id); err != nil {
		common.PrintRuntimeErr(ctx, "start", "start", err)
		return nil
	}
	fmt.Println("Download queued, follow it with: grab attach", id)
	return nil
}
