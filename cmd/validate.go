package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/skillgrid/internal/validator"
)

// ValidateCommand returns the command that checks one raw answer.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a raw \"<value> - <reason>\" answer against an output kind",
		ArgsUsage: "RAW",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "kind",
				Aliases:  []string{"k"},
				Usage:    "Output kind (" + strings.Join(kindNames(), ", ") + ")",
				Required: true,
			},
			&cli.StringSliceFlag{Name: "allow", Usage: "Allowed badge values or enum options"},
			&cli.StringSliceFlag{Name: "unit", Usage: "Allowed quantity units"},
			&cli.StringSliceFlag{Name: "currency", Usage: "Allowed currency codes"},
			&cli.StringSliceFlag{Name: "period", Usage: "Allowed periods"},
			&cli.StringFlag{Name: "default-unit", Usage: "Unit assumed when none is given"},
			&cli.StringFlag{Name: "default-period", Usage: "Period assumed when none is given"},
		},
		Action: runValidate,
	}
}

func kindNames() []string {
	out := make([]string, len(validator.Kinds))
	for i, k := range validator.Kinds {
		out[i] = string(k)
	}
	return out
}

func runValidate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: RAW")
	}
	kind, err := validator.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	allow := c.StringSlice("allow")
	cons := validator.Constraints{
		AllowedUnits:      c.StringSlice("unit"),
		AllowedCurrencies: c.StringSlice("currency"),
		AllowedPeriods:    c.StringSlice("period"),
		DefaultUnit:       c.String("default-unit"),
		DefaultPeriod:     c.String("default-period"),
	}
	if kind == validator.KindEnum {
		cons.AllowedEnums = allow
	} else {
		cons.AllowedValues = allow
	}

	res := validator.Validate(strings.Join(c.Args().Slice(), " "), kind, cons)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	if !res.OK {
		return cli.Exit("", 2)
	}
	return nil
}
