package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/subtractor-go/app"
	"github.com/soocke/subtractor-go/config"
	"github.com/soocke/subtractor-go/debug"
	"github.com/soocke/subtractor-go/domain/batch"
)

func main() {
	var (
		dir         = flag.String("dir", ".", "directory holding the frame stack")
		cfgPath     = flag.String("config", "subtractor.json", "config file (.json, .yaml or .yml)")
		start       = flag.Int("start", 1, "first frame index of the batch range")
		end         = flag.Int("end", -1, "last frame index of the batch range (-1 = last frame)")
		step        = flag.Int("step", 0, "frame step between the two frames of a pair")
		threshold   = flag.Float64("threshold", 0, "binarization threshold in multiples of std")
		workers     = flag.Int("workers", 0, "batch worker count (0 = CPUs minus reserved)")
		sqliteFile  = flag.String("sqlite", "", "also record measurements in this SQLite database")
		preview     = flag.String("preview", "", "write the preview overlay of -pos to this PNG")
		pos         = flag.Int("pos", 0, "frame position rendered by -preview")
		previewMax  = flag.Int("preview-max", 0, "scale the preview to fit this many pixels per side (0 = frame size)")
		previewOnly = flag.Bool("preview-only", false, "stop after writing the preview")
		debugMode   = flag.Bool("debug", false, "enable debug logging and runtime loggers")
		saveCfg     = flag.Bool("save-config", false, "write the effective config back to -config")
	)
	flag.Parse()

	// Base config from file or defaults; explicit flags win.
	cfg, err := config.Load(*cfgPath)
	logger := NewLogger(slog.LevelInfo)
	if err != nil {
		logger.Warn("config unreadable, using defaults", "path", *cfgPath, "error", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "step":
			cfg.Step = *step
		case "threshold":
			cfg.Threshold = *threshold
		case "workers":
			cfg.Workers = *workers
		case "sqlite":
			cfg.SQLiteFile = *sqliteFile
		case "debug":
			cfg.Debug = *debugMode
		}
	})
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger = NewLogger(ParseLevel(cfg.LogLevel))

	if *saveCfg {
		if err := cfg.Save(*cfgPath); err != nil {
			logger.Error("save config", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Debug {
		debug.StartGoroutineLogger(ctx, time.Second, logger)
		debug.StartMemLogger(ctx, 2*time.Second, logger)
	}

	c, err := app.BuildContainer(cfg, logger, *dir)
	if err != nil {
		logger.Error("open frame directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	last := *end
	if last < 0 {
		last = c.Frames.MaxIndex()
	}
	err = c.Run(ctx, app.Options{
		PreviewPath: *preview,
		PreviewPos:  *pos,
		PreviewMax:  *previewMax,
		SkipBatch:   *previewOnly,
		Params: batch.Params{
			Start:     *start,
			End:       last,
			Step:      cfg.Step,
			Threshold: cfg.Threshold,
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run cancelled")
			os.Exit(130)
		}
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}
