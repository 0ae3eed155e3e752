package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"github.com/skillgrid/internal/skills"
)

// SkillsCommand returns the skill catalog commands.
func SkillsCommand() *cli.Command {
	return &cli.Command{
		Name:  "skills",
		Usage: "Browse the skill template catalog",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List every template",
				Action: runSkillsList,
			},
			{
				Name:      "show",
				Usage:     "Show one template, including its prompt body",
				ArgsUsage: "ID",
				Action:    runSkillsShow,
			},
		},
	}
}

func runSkillsList(c *cli.Context) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "Name", "Category", "Output", "Params")
	for _, tpl := range skills.Builtin().List() {
		keys := make([]string, len(tpl.Params))
		for i, p := range tpl.Params {
			keys[i] = p.Key
		}
		t.Row(tpl.ID, tpl.Name, tpl.Category, string(tpl.OutputKind), strings.Join(keys, ", "))
	}
	fmt.Fprintln(c.App.Writer, t.String())
	return nil
}

func runSkillsShow(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: ID")
	}
	tpl, ok := skills.Builtin().Get(c.Args().First())
	if !ok {
		return fmt.Errorf("%w: %s", skills.ErrUnknownSkill, c.Args().First())
	}
	out, err := json.MarshalIndent(struct {
		*skills.Template
		Variables []string `json:"variables"`
	}{tpl, tpl.Variables()}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
