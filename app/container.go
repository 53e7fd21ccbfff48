package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/soocke/subtractor-go/config"
	"github.com/soocke/subtractor-go/domain/batch"
	"github.com/soocke/subtractor-go/domain/output"
	"github.com/soocke/subtractor-go/domain/roi"
	"github.com/soocke/subtractor-go/domain/stack"
	"github.com/soocke/subtractor-go/domain/subtract"
	"github.com/soocke/subtractor-go/ui/model"
	"github.com/soocke/subtractor-go/ui/presenter"
)

// previewFrames bounds the decoded frames kept for the interactive preview.
const previewFrames = 4

// AppContainer assembles models, services, presenters and the view for one
// frame directory.
type AppContainer struct {
	Config *config.Config
	Logger *slog.Logger
	Dir    string

	Frames   *stack.Stack
	Grid     *roi.Grid
	Loader   *subtract.CachedLoader
	Pipeline *batch.Pipeline

	Settings   *model.PreviewSettings
	Cache      *model.PreviewCache
	BatchModel *model.BatchModel
	View       *LogView

	// Presenters
	Preview *presenter.PreviewPresenter
	Batch   *presenter.BatchPresenter
	Loop    *presenter.Loop
}

// BuildContainer opens dir and constructs all components. Side effects are
// limited to reading the frame list and the grid config, and writing the
// regenerated grid config back.
func BuildContainer(cfg *config.Config, logger *slog.Logger, dir string) (*AppContainer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &AppContainer{Config: cfg, Logger: logger, Dir: dir}

	frames, err := stack.Discover(dir, cfg.Patterns)
	if err != nil {
		return nil, err
	}
	c.Frames = frames
	logger.Info("frames discovered", "dir", frames.Dir(), "frames", frames.Len())

	c.Grid = c.openGrid()

	loader, err := subtract.NewCachedLoader(subtract.FileLoader{}, previewFrames)
	if err != nil {
		return nil, fmt.Errorf("app: frame cache: %w", err)
	}
	c.Loader = loader

	workers := cfg.Workers
	if workers < 1 {
		workers = batch.DefaultWorkers(cfg.ReservedCores)
	}
	// Batch workers decode each frame from disk; the preview cache is for
	// the interactive side only.
	c.Pipeline = batch.New(subtract.NewDifferencer(subtract.FileLoader{}), logger, batch.WithWorkers(workers))
	logger.Debug("batch pipeline ready", "workers", c.Pipeline.Workers())

	c.Settings = model.NewPreviewSettings(cfg.Threshold, cfg.Step)
	c.Cache = model.NewPreviewCache()
	c.BatchModel = model.NewBatchModel()
	c.View = NewLogView(logger)

	c.Preview = presenter.NewPreviewPresenter(c.Frames, c.Grid, c.Settings, c.Cache, subtract.NewDifferencer(loader), loader, c.View, logger)
	c.Batch = presenter.NewBatchPresenter(c.BatchModel, c.Pipeline, c.Preview, c.openSinks, c.View, logger)
	c.Loop = presenter.NewLoop(c.Preview, c.Batch, nil)
	return c, nil
}

// resolve makes name relative to the frame directory unless it is absolute.
func (c *AppContainer) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Dir, name)
}

// openGrid loads the grid config next to the frames, falling back to the
// default layout, regenerates it and saves it back.
func (c *AppContainer) openGrid() *roi.Grid {
	path := c.resolve(c.Config.RoiFile)
	grid, err := roi.LoadOrDefault(path)
	if err != nil {
		c.Logger.Warn("grid config unreadable, using default layout", "path", path, "error", err)
	}
	grid.Regenerate()
	if err := grid.Save(path); err != nil {
		c.Logger.Warn("grid config not saved", "path", path, "error", err)
	}
	c.Logger.Info("grid ready", "rows", grid.Rows, "cols", grid.Cols, "regions", grid.RegionCount(), "rotation", grid.Rotation)
	return grid
}

// openSinks creates the outputs of one run: the CSV table, plus the SQLite
// database when configured.
func (c *AppContainer) openSinks() (output.Sink, error) {
	table, err := output.CreateCSV(c.resolve(c.Config.OutputFile))
	if err != nil {
		return nil, err
	}
	if c.Config.SQLiteFile == "" {
		return table, nil
	}
	runID := uuid.NewString()
	db, err := output.OpenSQLite(c.resolve(c.Config.SQLiteFile), runID)
	if err != nil {
		table.Close()
		return nil, err
	}
	c.Logger.Info("recording run in sqlite", "path", c.Config.SQLiteFile, "run", runID)
	return output.Multi{table, db}, nil
}
