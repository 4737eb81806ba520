package commands

import (
	"github.com/urfave/cli/v2"
)

// NewApp builds the reviewterms command line.
func NewApp() *cli.App {
	runID := &cli.StringFlag{
		Name:  "run-id",
		Usage: "identifier attached to logs, stored rows and events (default: random UUID)",
	}
	return &cli.App{
		Name:     "reviewterms",
		Usage:    "rank the terms that characterize each product category and sentiment",
		Metadata: map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"RT_CONFIG"},
			},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Before: loadConfig,
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "collect reviews for one or more categories into review page files",
				Action: FetchAction,
				Flags: []cli.Flag{
					runID,
					&cli.StringSliceFlag{Name: "category", Usage: "category ID to collect (repeatable)"},
					&cli.StringFlag{Name: "output-dir", Usage: "directory for review page files"},
					&cli.IntFlag{Name: "reviews-goal", Usage: "stop a category after this many reviews"},
					&cli.IntFlag{Name: "max-reviews-per-item", Usage: "cap on reviews taken from one item"},
					&cli.BoolFlag{Name: "refresh", Usage: "drop cached API pages before fetching"},
				},
			},
			{
				Name:      "map",
				Usage:     "write the unsorted observation stream for review files to stdout",
				ArgsUsage: "[file, directory or glob ...]",
				Action:    MapAction,
				Flags:     []cli.Flag{runID},
			},
			{
				Name:   "reduce",
				Usage:  "reduce a sorted observation stream and write the ranked tables",
				Action: ReduceAction,
				Flags: []cli.Flag{
					runID,
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "sorted stream file (default: stdin)"},
				},
			},
			{
				Name:      "run",
				Usage:     "map, reduce, score and write tables in one process",
				ArgsUsage: "[file, directory or glob ...]",
				Action:    RunAction,
				Flags:     []cli.Flag{runID},
			},
			{
				Name:   "check",
				Usage:  "probe the configured dependencies",
				Action: CheckAction,
			},
			{
				Name:   "top",
				Usage:  "print the stored top terms of a run",
				Action: TopAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "run-id", Required: true},
					&cli.StringFlag{Name: "category", Required: true},
					&cli.StringFlag{Name: "bucket", Required: true},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
			},
		},
	}
}
