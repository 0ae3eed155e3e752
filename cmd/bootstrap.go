package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/skillgrid/internal/config"
	"github.com/skillgrid/internal/files"
	"github.com/skillgrid/internal/inference"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/workspace"
)

// loadConfig reads the file named by the global --config flag. An empty
// flag searches the default locations.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newRunner builds the model-backed inference runner from [inference].
func newRunner(ctx context.Context, cfg *config.Config) (inference.Runner, error) {
	mo, err := cfg.ModelOptions()
	if err != nil {
		return nil, err
	}
	model, err := inference.NewModel(ctx, mo)
	if err != nil {
		return nil, err
	}
	opts := cfg.RunnerOptions()
	log.Debug().Str("provider", string(mo.Provider)).Str("model", opts.ModelName).Msg("Inference runner ready")
	return inference.NewLLMRunner(model, opts), nil
}

// openStore returns the configured matrix store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config) (matrix.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return matrix.NewInMemoryStore(), func() {}, nil
	case config.StoreFile:
		s, err := matrix.NewFileStore(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.StorePostgres:
		db, err := matrix.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		s := matrix.NewPostgresStore(db)
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
}

func fileResolver(cfg *config.Config) files.Resolver {
	if cfg.Files.Dir == "" {
		return nil
	}
	return files.DirResolver{Root: cfg.Files.Dir}
}

// newWorkspace assembles a workspace over store.
func newWorkspace(ctx context.Context, cfg *config.Config, store matrix.Store, runner inference.Runner) *workspace.Workspace {
	return workspace.New(ctx, workspace.Options{
		Store:          store,
		Runner:         runner,
		Resolver:       fileResolver(cfg),
		FileLimits:     cfg.FileLimits(),
		ProjectContext: cfg.Project.Context,
		Batch:          cfg.BatchConfig(),
	})
}
