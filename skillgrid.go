package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/skillgrid/cmd"
	"github.com/skillgrid/internal/config"
	"github.com/skillgrid/internal/logging"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "skillgrid",
		Usage:   "Run AI skills across the rows of a table",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./skillgrid.toml, then $HOME/.skillgrid.toml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override [general] log_level",
			},
		},
		Before: func(c *cli.Context) error {
			level, pretty := "info", true
			if cfg, err := config.LoadConfig(c.String("config")); err == nil {
				level, pretty = cfg.General.LogLevel, cfg.General.PrettyLogs
			}
			if l := c.String("log-level"); l != "" {
				level = l
			}
			logging.Setup(level, pretty)
			return nil
		},
		Commands: []*cli.Command{
			cmd.ValidateCommand(),
			cmd.SkillsCommand(),
			cmd.RunCommand(),
			cmd.CellCommand(),
			cmd.ViewCommand(),
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
