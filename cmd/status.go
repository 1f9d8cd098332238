package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/grabdl/grab/cmd/common"
	"github.com/grabdl/grab/pkg/grabcli"
	"github.com/urfave/cli"
)

func status(ctx *cli.Context) error {
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
		common.PrintRuntimeErr(ctx, "status", "new_client", err)
		return nil
	}
	defer client.Close()

	st, err := client.Status(context.Background(), id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "status", err)
		return nil
	}
	size := "unknown"
	if st.TotalLength > 0 {
		size = formatBytes(st.TotalLength)
	}
	fmt.Printf(`
Download Status
Id`+"\t\t"+`: %s
Name`+"\t\t"+`: %s
Url`+"\t\t"+`: %s
Save Location`+"\t"+`: %s
State`+"\t\t"+`: %s
Size`+"\t\t"+`: %s
Downloaded`+"\t"+`: %s (%.1f%%)
`,
		st.ID,
		st.FileName,
		st.URL,
		st.SavePath,
		st.Status,
		size,
		formatBytes(st.CompletedLength),
		st.Progress,
	)
	return nil
}
