// Package cli contains the openarm-display command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	configFlag  = "config"
	debugFlag   = "debug"
	prefixFlag  = "prefix"
	packageFlag = "package"
	engineFlag  = "engine"
	setFlag     = "set"

	// Command flags.
	summaryFlag     = "summary"
	collapseFlag    = "collapse-fixed-joints"
	outputFlag      = "output"
	formatFlag      = "format"
	runDirFlag      = "run-dir"
	stopTimeoutFlag = "stop-timeout"

	formatJSON  = "json"
	formatTable = "table"
)

const launchArgsUsage = "[name:=value...]"

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "openarm-display",
		Usage:           "resolve and visualize OpenArm robot descriptions",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringSliceFlag{
				Name:  prefixFlag,
				Usage: "search the install `PREFIX` for packages before AMENT_PREFIX_PATH",
			},
			&cli.StringSliceFlag{
				Name:  packageFlag,
				Usage: "use `NAME=PATH` as the share directory of a package",
			},
			&cli.StringFlag{
				Name:  engineFlag,
				Usage: "template engine to use, native or command",
			},
			&cli.StringSliceFlag{
				Name:  setFlag,
				Usage: "set a launch argument default as `NAME=VALUE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "args",
				Usage:  "list the launch arguments and the available arm types",
				Action: ArgsAction,
			},
			{
				Name:      "describe",
				Usage:     "print the robot description for the given launch arguments",
				ArgsUsage: launchArgsUsage,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  summaryFlag,
						Usage: "print a table of the description's joints instead of the XML",
					},
					&cli.BoolFlag{
						Name:  collapseFlag,
						Usage: "remove fixed joints whose child link is a leaf",
					},
					&cli.StringFlag{
						Name:    outputFlag,
						Aliases: []string{"o"},
						Usage:   "write the description to `FILE`",
					},
				},
				Action: DescribeAction,
			},
			{
				Name:      "viz-config",
				Usage:     "print the RViz configuration selected by the launch arguments",
				ArgsUsage: launchArgsUsage,
				Action:    VizConfigAction,
			},
			{
				Name:      "emit",
				Usage:     "print the processes the launch would start",
				ArgsUsage: launchArgsUsage,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  formatFlag,
						Value: formatJSON,
						Usage: "output format, json or table",
					},
				},
				Action: EmitAction,
			},
			{
				Name:      "launch",
				Usage:     "start the visualization processes and supervise them until interrupted",
				ArgsUsage: launchArgsUsage,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  runDirFlag,
						Usage: "create the per-launch parameter directory under `DIR`",
					},
					&cli.DurationFlag{
						Name:  stopTimeoutFlag,
						Usage: "how long processes get to exit after an interrupt before being killed",
					},
				},
				Action: LaunchAction,
			},
		},
	}
}
