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
	addPath     string
	addFileName string
	addStart    bool

	addFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "file-name, o",
			Usage:       "explicitly set the name of file (determined automatically if not specified)",
			Destination: &addFileName,
		},
		cli.StringFlag{
			Name:        "download-path, l",
			Usage:       "set the path where downloaded file should be saved",
			Destination: &addPath,
		},
		cli.BoolFlag{
			Name:        "start, s",
			Usage:       "submit the download to the queue right away",
			Destination: &addStart,
		},
	}
)

func add(ctx *cli.Context) error {
	url := ctx.Args().First()
	if url == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no url provided"),
		)
	} else if url == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := grabcli.NewClient()
	if err != nil {
		common.PrintRuntimeErr(ctx, "add", "new_client", err)
		return nil
	}
	defer client.Close()

	res, err := client.Add(context.Background(), strings.TrimSpace(url), &grabcli.AddOpts{
		FileName: addFileName,
		Dir:      addPath,
		Start:    addStart,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "add", "add", err)
		return nil
	}
	fmt.Printf("Added download %s (%s)\n", res.ID, res.FileName)
	if addStart {
		fmt.Println("Download queued, follow it with: grab attach", res.ID)
	} else {
		fmt.Println("Start it with: grab start", res.ID)
	}
	return nil
}
