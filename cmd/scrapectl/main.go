package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/joseph-ayodele/scrape-jobs/cmd/scrapectl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	globalFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "config file path (default ~/.config/scrape-jobs/config.toml)",
		},
		&cli.StringFlag{
			Name:    "url",
			Usage:   "gateway base URL, overrides the config file",
			Sources: cli.EnvVars("SCRAPE_JOBS_URL"),
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log requests and state transitions to stderr",
		},
	}

	app := &cli.Command{
		Name:  "scrapectl",
		Usage: "submit and follow scraping jobs",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "submit a scraping job and follow it to completion",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "what to scrape",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "max-results",
						Aliases: []string{"n"},
						Usage:   "maximum items to extract (default from config)",
					},
					&cli.BoolFlag{
						Name:  "detach",
						Usage: "print the job id and exit without following",
					},
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "print progress lines instead of the interactive view",
					},
				},
				Action: commands.SubmitAction,
			},
			{
				Name:      "watch",
				Usage:     "follow an existing job to completion",
				ArgsUsage: "<job-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "print progress lines instead of the interactive view",
					},
				},
				Action: commands.WatchAction,
			},
			{
				Name:      "get",
				Usage:     "show a job and its items",
				ArgsUsage: "<job-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the raw job document",
					},
				},
				Action: commands.GetAction,
			},
			{
				Name:  "list",
				Usage: "list jobs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "only jobs in this status (pending, running, completed, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of jobs",
					},
				},
				Action: commands.ListAction,
			},
			{
				Name:      "export",
				Usage:     "download a job's items",
				ArgsUsage: "<job-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "csv or excel",
						Value: "csv",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "output path (default: server-suggested filename in the current directory)",
					},
				},
				Action: commands.ExportAction,
			},
			{
				Name:  "config",
				Usage: "manage the config file",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "print the effective configuration",
						Action: commands.ConfigShowAction,
					},
					{
						Name:      "set",
						Usage:     "set a config value",
						ArgsUsage: "<key> <value>",
						Action:    commands.ConfigSetAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, commands.RenderError(err))
		os.Exit(commands.ExitCode(err))
	}
}
