package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/menta2k/leafcrop"
	"github.com/menta2k/leafcrop/internal/config"
	"github.com/menta2k/leafcrop/internal/logger"
	"github.com/menta2k/leafcrop/internal/utils"
	"github.com/menta2k/leafcrop/pkg/client"
	"github.com/menta2k/leafcrop/pkg/llamacpp"
	"github.com/menta2k/leafcrop/pkg/ollama"
	"github.com/menta2k/leafcrop/pkg/review"
	"github.com/menta2k/leafcrop/pkg/transform"
	"github.com/menta2k/leafcrop/pkg/types"
)

type options struct {
	configFile string
	outDir     string
	debug      bool
	reviewOn   bool
	backend    string
	url        string
	model      string
	ext        string
	quality    int
	lossless   bool
	dbgext     string
	reduction  int
	workers    int
	refineMode string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "leafcrop [flags] <image|url|dir> <direction>",
		Short: "Find the page, skew and crop of photographed book leaves",
		Long: `leafcrop turns a sideways photograph of a book leaf upright, finds the page
boundary from the binding shadow and the page edges, estimates the skew and
writes the deskewed crop.

direction is the quarter turn that brings the leaf upright:
  1, cw   clockwise (binding ends up on the left)
 -1, ccw  counter-clockwise (binding ends up on the right)`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0], args[1])
		},
	}
	// a negative direction must not be read as a flag
	cmd.Flags().SetInterspersed(false)

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (.json, .yaml or .yml)")
	f.StringVarP(&opts.outDir, "out", "o", "", "output directory")
	f.BoolVar(&opts.debug, "debug", false, "write the red box overlay")
	f.BoolVar(&opts.reviewOn, "review", false, "ask a vision model to check every overlay")
	f.StringVar(&opts.backend, "backend", "", "review backend: ollama or llamacpp")
	f.StringVar(&opts.url, "url", "", "review server URL")
	f.StringVar(&opts.model, "model", "", "review model name")
	f.StringVar(&opts.ext, "ext", "", "crop format: jpg|png|webp")
	f.IntVar(&opts.quality, "quality", 0, "JPEG/WebP quality (1-100)")
	f.BoolVar(&opts.lossless, "lossless", false, "lossless WebP output")
	f.StringVar(&opts.dbgext, "dbgext", "", "overlay format: jpg|png|webp")
	f.IntVar(&opts.reduction, "reduction", 0, "reduction factor of the detection buffer")
	f.IntVar(&opts.workers, "workers", 0, "rotations evaluated in parallel")
	f.StringVar(&opts.refineMode, "refine", "", "refinement mode: variance or block")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: console|json")

	cmd.AddCommand(newConfigCommand(), newVersionCommand())
	return cmd
}

// loadConfig reads the config file, if any, and applies the flags the user set
func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(opts.configFile); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("out", func() { cfg.Output.Dir = opts.outDir })
	set("debug", func() { cfg.Output.Debug = opts.debug })
	set("ext", func() { cfg.Output.Format = opts.ext })
	set("quality", func() { cfg.Output.Quality = opts.quality })
	set("lossless", func() { cfg.Output.Lossless = opts.lossless })
	set("dbgext", func() { cfg.Output.DebugFormat = opts.dbgext })
	set("review", func() { cfg.Review.Enabled = opts.reviewOn })
	set("backend", func() { cfg.Review.Backend = opts.backend })
	set("url", func() { cfg.Review.URL = opts.url })
	set("model", func() { cfg.Review.Model = opts.model })
	set("reduction", func() { cfg.Pipeline.Reduction = opts.reduction })
	set("workers", func() { cfg.Pipeline.Workers = opts.workers })
	set("refine", func() { cfg.Refine.Mode = opts.refineMode })
	set("log-level", func() { cfg.Log.Level = opts.logLevel })
	set("log-format", func() { cfg.Log.Format = opts.logFormat })

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newVisionClient(cfg config.ReviewConfig) (client.VisionClient, error) {
	switch cfg.Backend {
	case "ollama":
		return ollama.NewClient(cfg.URL)
	case "llamacpp":
		return llamacpp.NewClient(cfg.URL)
	}
	return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", cfg.Backend)
}

func run(cmd *cobra.Command, opts options, input, direction string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	dir, err := types.ParseRotationDirection(direction)
	if err != nil {
		return err
	}
	if dir == types.RotateNone {
		return types.UnsupportedError("cli", "direction 0 leaves the binding undefined; use 1 (cw) or -1 (ccw)")
	}

	var sources []string
	switch {
	case utils.IsURL(input), utils.FileExists(input):
		sources = []string{input}
	case utils.DirExists(input):
		if sources, err = utils.ListImageFiles(input); err != nil {
			return err
		}
		if len(sources) == 0 {
			return fmt.Errorf("no images in %s", input)
		}
	default:
		return fmt.Errorf("%s: no such file or directory", input)
	}

	cropper, err := leafcrop.NewWithConfig(cfg.Cropper(), transform.DefaultRotator())
	if err != nil {
		return err
	}
	cropper.SetLogger(log)

	if cfg.Review.Enabled {
		vc, err := newVisionClient(cfg.Review)
		if err != nil {
			return err
		}
		reviewer := review.NewReviewer(vc, cfg.Review.Model)
		reviewer.SetPrompt(cfg.Review.Prompt)
		cropper.SetReviewer(reviewer, cfg.Review.MaxDim)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var failed int
	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rep, err := cropper.ProcessFile(ctx, src, dir, cfg.Output)
		if err != nil {
			if errors.Is(err, types.ErrUnsupported) {
				return err
			}
			failed++
			log.Error("cli", err, map[string]interface{}{"source": src})
			continue
		}
		fields := map[string]interface{}{
			"source":    src,
			"crop":      rep.CropPath,
			"angle":     rep.Result.Angle,
			"skew_mode": string(rep.Result.SkewMode),
			"box":       rep.Result.Box.String(),
		}
		if rep.OverlayPath != "" {
			fields["overlay"] = rep.OverlayPath
		}
		log.Info("cli", "wrote crop", fields)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d leaves failed", failed, len(sources))
	}
	return nil
}
