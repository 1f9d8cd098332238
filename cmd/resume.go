package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/grabdl/grab/cmd/common"
	"github.com/grabdl/grab/pkg/grabcli"
	"github.com/urfave/cli"
)

func resume(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		if ctx.Command.Name == "" {
			return common.Help(ctx)
		}
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no download id provided"),
		)
	} else if id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := grabcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "resume", "new_client", err)
		return nil
	}
	defer client.Close()

	cctx := context.Background()
	if err := client.Resume(cctx, id); err != nil {
		common.PrintRuntimeErr(ctx, "resume", "resume", err)
		return nil
	}
	st, err := client.Status(cctx, id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "resume", "status", err)
		return nil
	}
	fmt.Printf("Resuming %s (%s)\n", st.ID, st.FileName)
	return watchDownload(client, st.ID, st.TotalLength, st.CompletedLength)
}
