package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/grabdl/grab/cmd/common"
	"github.com/grabdl/grab/pkg/grabcli"
	"github.com/urfave/cli"
)

var (
	dlPath   string
	fileName string

	dlFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "file-name, o",
			Usage:       "explicitly set the name of file (determined automatically if not specified)",
			Destination: &fileName,
		},
		cli.StringFlag{
			Name:        "download-path, l",
			Usage:       "set the path where downloaded file should be saved",
			Value:       "",
			Destination: &dlPath,
		},
	}
)

func download(ctx *cli.Context) (err error) {
	url := ctx.Args().First()
	if url == "" {
		if ctx.Command.Name == "" {
			return common.Help(ctx)
		}
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no url provided"),
		)
	} else if url == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := grabcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "download", "new_client", err)
		return nil
	}
	defer client.Close()
	fmt.Println(">> Initiating a grab download <<")
	url = strings.TrimSpace(url)

	cctx := context.Background()
	res, err := client.Add(cctx, url, &grabcli.AddOpts{
		FileName: fileName,
		Dir:      dlPath,
		Start:    true,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "download", "add", err)
		return nil
	}

	st, err := client.Status(cctx, res.ID)
	if err != nil {
		common.PrintRuntimeErr(ctx, "download", "status", err)
		return nil
	}
	printDownloadInfo(res, st.TotalLength)
	return watchDownload(client, res.ID, st.TotalLength, st.CompletedLength)
}
