// Package cmd implements the grab command line interface.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/grabdl/grab/cmd/common"
	"github.com/urfave/cli"
)

// BuildArgs carries build-time metadata injected through ldflags.
type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

// Execute runs the CLI with the given arguments.
func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	common.VersionCmdStr = fmt.Sprintf(
		"grab %s-%s (%s_%s)\nBuild: %s=%s",
		bArgs.Version, bArgs.BuildType,
		runtime.GOOS, runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	app := cli.App{
		Name:                  "Grab",
		HelpName:              "grab",
		Usage:                 "A fast and resilient download manager.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "grab <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "daemon",
				Usage:              "run the grab daemon in the foreground",
				Description:        DaemonDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             daemon,
				Flags:              daemonFlags,
			},
			{
				Name:                   "download",
				Aliases:                []string{"d"},
				Usage:                  "download a file and follow its progress",
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 download,
				Flags:                  dlFlags,
				UseShortOptionHandling: true,
				Description:            DownloadDescription,
			},
			{
				Name:                   "add",
				Aliases:                []string{"a"},
				Usage:                  "register a download without starting it",
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 add,
				Flags:                  addFlags,
				UseShortOptionHandling: true,
				Description:            AddDescription,
			},
			{
				Name:               "start",
				Usage:              "submit a registered download to the queue",
				Description:        StartDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             start,
			},
			{
				Name:               "attach",
				Usage:              "follow the progress of an active download",
				Description:        AttachDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             attach,
			},
			{
				Name:                   "list",
				Aliases:                []string{"l"},
				Usage:                  "display all downloads",
				Action:                 list,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            ListDescription,
				UseShortOptionHandling: true,
				Flags:                  lsFlags,
			},
			{
				Name:               "status",
				Aliases:            []string{"s"},
				Usage:              "show the details of a download",
				Action:             status,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StatusDescription,
			},
			{
				Name:               "pause",
				Aliases:            []string{"p"},
				Usage:              "suspend an active download",
				Description:        PauseDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             pause,
			},
			{
				Name:               "resume",
				Aliases:            []string{"r"},
				Usage:              "continue a paused download",
				Description:        ResumeDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             resume,
			},
			{
				Name:               "cancel",
				Usage:              "abort a download",
				Description:        CancelDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             cancel,
			},
			{
				Name:               "remove",
				Usage:              "cancel a download and delete its record",
				Description:        RemoveDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             remove,
			},
			{
				Name:                   "queue",
				Aliases:                []string{"q"},
				Usage:                  "show or adjust the download queue",
				Description:            QueueDescription,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Action:                 queue,
				UseShortOptionHandling: true,
				Flags:                  queueFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of grab",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:                 download,
		Flags:                  dlFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	return app.Run(args)
}
