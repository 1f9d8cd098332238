package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/grabdl/grab/cmd/common"
	"github.com/grabdl/grab/pkg/grabcli"
	"github.com/grabdl/grab/pkg/grablib"
	"github.com/urfave/cli"
)

func attach(ctx *cli.Context) error {
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
		common.PrintRuntimeErr(ctx, "attach", "new_client", err)
		return nil
	}
	defer client.Close()

	st, err := client.Status(context.Background(), id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "attach", "status", err)
		return nil
	}
	if grablib.Status(st.Status).Terminal() {
		fmt.Printf("Download %s is already %s.\n", id, st.Status)
		return nil
	}
	fmt.Printf("Attached to %s (%s)\n", st.ID, st.FileName)
	return watchDownload(client, st.ID, st.TotalLength, st.CompletedLength)
}
