package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/skillgrid/internal/batch"
	"github.com/skillgrid/internal/config"
	"github.com/skillgrid/internal/grid"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/pipeline"
	"github.com/skillgrid/internal/workspace"
)

var matrixFlag = &cli.StringFlag{
	Name:     "matrix",
	Aliases:  []string{"m"},
	Usage:    "Matrix JSON `FILE`",
	Required: true,
}

// RunCommand batch-runs one skill column of a matrix file.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a skill column over a matrix file",
		Flags: []cli.Flag{
			matrixFlag,
			&cli.StringFlag{Name: "column", Aliases: []string{"col"}, Usage: "Skill column id", Required: true},
			&cli.StringFlag{Name: "mode", Usage: "all, fill_empty or retry_failed", Value: string(batch.ModeFillEmpty)},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm overwriting existing values in mode all"},
		},
		Action: runColumn,
	}
}

// CellCommand runs a single cell of a matrix file.
func CellCommand() *cli.Command {
	return &cli.Command{
		Name:  "cell",
		Usage: "Run one cell of a matrix file",
		Flags: []cli.Flag{
			matrixFlag,
			&cli.StringFlag{Name: "row", Usage: "Row id", Required: true},
			&cli.StringFlag{Name: "column", Aliases: []string{"col"}, Usage: "Skill column id", Required: true},
		},
		Action: runCell,
	}
}

// ViewCommand renders the visible window of a matrix file.
func ViewCommand() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "Render the rows visible in a viewport",
		Flags: []cli.Flag{
			matrixFlag,
			&cli.Float64Flag{Name: "height", Usage: "Viewport height in pixels (default from [grid])"},
			&cli.Float64Flag{Name: "scroll", Usage: "Vertical scroll offset in pixels"},
			&cli.Float64Flag{Name: "width", Usage: "Viewport width in pixels; 0 shows every column"},
			&cli.Float64Flag{Name: "scroll-left", Usage: "Horizontal scroll offset in pixels"},
		},
		Action: runView,
	}
}

// fileSession loads path into an in-memory workspace. save writes the
// current snapshot back to path.
type fileSession struct {
	path string
	id   string
	ws   *workspace.Workspace
}

func openFileSession(ctx context.Context, c *cli.Context, cfg *config.Config, needRunner bool) (*fileSession, error) {
	path := c.String("matrix")
	m, err := matrix.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}
	if m.ID == "" {
		m.ID = "matrix"
	}
	fs := &fileSession{path: path, id: m.ID}
	if !needRunner {
		fs.ws = newWorkspace(ctx, cfg, matrix.NewInMemoryStore(m), nil)
		return fs, nil
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	runner, err := newRunner(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference runner: %w", err)
	}
	fs.ws = newWorkspace(ctx, cfg, matrix.NewInMemoryStore(m), runner)
	return fs, nil
}

func (fs *fileSession) save() error {
	m, err := fs.ws.Matrix(context.Background(), fs.id)
	if err != nil {
		return err
	}
	return matrix.WriteFile(fs.path, m)
}

func runColumn(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	mode, err := batch.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	if mode.Destructive() && !c.Bool("yes") {
		return fmt.Errorf("%w (pass --yes)", batch.ErrConfirmationRequired)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	fs, err := openFileSession(ctx, c, cfg, true)
	if err != nil {
		return err
	}
	defer fs.ws.Close()

	w := c.App.Writer
	sum, runErr := fs.ws.RunColumn(ctx, fs.id, c.String("column"), mode, batch.RunOptions{
		Confirmed: c.Bool("yes"),
		OnProgress: func(p batch.Progress) {
			fmt.Fprintf(w, "[%d/%d] succeeded %d, failed %d\n", p.Current, p.Total, p.Succeeded, p.Failed)
		},
	})
	// whatever completed is kept, even when the run stopped early
	if err := fs.save(); err != nil {
		return fmt.Errorf("failed to write matrix: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	state := "completed"
	if sum.Cancelled {
		state = "cancelled"
	}
	fmt.Fprintf(w, "Run %s %s: %d/%d rows processed, %d succeeded, %d failed, %d discarded in %s\n",
		sum.RunID, state, sum.Processed, sum.Total, sum.Succeeded, sum.Failed, sum.Discarded, sum.Duration.Round(time.Millisecond))
	if sum.LogPath != "" {
		fmt.Fprintf(w, "Run log: %s\n", sum.LogPath)
	}
	return nil
}

func runCell(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	fs, err := openFileSession(ctx, c, cfg, true)
	if err != nil {
		return err
	}
	defer fs.ws.Close()

	out, err := fs.ws.RunCell(ctx, fs.id, c.String("row"), c.String("column"))
	if err != nil {
		return err
	}
	if err := fs.save(); err != nil {
		return fmt.Errorf("failed to write matrix: %w", err)
	}
	m, err := fs.ws.Matrix(ctx, fs.id)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(struct {
		Outcome pipeline.Outcome `json:"outcome"`
		Cell    matrix.Cell      `json:"cell"`
	}{out, m.Cell(out.RowID, out.ColumnID)}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(body))
	return nil
}

func runView(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	fs, err := openFileSession(c.Context, c, cfg, false)
	if err != nil {
		return err
	}
	defer fs.ws.Close()

	vp := cfg.Viewport()
	if c.IsSet("height") {
		vp.ContainerHeight = c.Float64("height")
	}
	vp.ScrollTop = c.Float64("scroll")
	vp.ContainerWidth = c.Float64("width")
	vp.ScrollLeft = c.Float64("scroll-left")

	f, err := fs.ws.Viewport(c.Context, fs.id, vp)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, grid.RenderTable(f))
	return nil
}
