package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/skillgrid/internal/config"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Create, inspect and check the skillgrid configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample skillgrid.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the sample file",
						Value:   "skillgrid.toml",
					},
				},
				Action: writeSampleConfig,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration (defaults, file and SKILLGRID_ env merged)",
				Action: showConfig,
			},
			{
				Name:   "validate",
				Usage:  "Check the effective configuration",
				Action: checkConfig,
			},
		},
	}
}

func writeSampleConfig(c *cli.Context) error {
	path := c.String("output")
	if err := config.InitConfig(path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote sample configuration to %s\n", path)
	return nil
}

func showConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg.Redacted())
}

func checkConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}
	fmt.Fprintf(c.App.Writer, "configuration ok (provider %s, store %s)\n", cfg.Inference.Provider, cfg.Store.Driver)
	return nil
}
