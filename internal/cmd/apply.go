package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/rasterfilter/internal/cache"
	"github.com/MeKo-Tech/rasterfilter/internal/engine"
	"github.com/MeKo-Tech/rasterfilter/internal/filter"
	"github.com/MeKo-Tech/rasterfilter/internal/geom"
	"github.com/MeKo-Tech/rasterfilter/internal/raster"
	"github.com/MeKo-Tech/rasterfilter/internal/selection"
	"github.com/MeKo-Tech/rasterfilter/internal/store"
	"github.com/MeKo-Tech/rasterfilter/internal/worker"
)

var applyCmd = &cobra.Command{
	Use:   "apply [files...]",
	Short: "Apply a filter to one or more PNG images",
	Long: `Apply a pixel filter to PNG images, optionally constrained by a
grayscale selection mask. Multiple files are processed in parallel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringP("filter", "f", "", "Filter kind (see 'rasterfilter filters')")
	applyCmd.Flags().Float64("adjustment", 0, "Adjustment for brightness/contrast/saturation (-100..100)")
	applyCmd.Flags().Float64("rotation", 0, "Hue rotation in degrees (-360..360)")
	applyCmd.Flags().Float64("intensity", 100, "Sepia intensity (0..100)")
	applyCmd.Flags().Float64("temperature", 0, "Color temperature shift (-100..100)")
	applyCmd.Flags().Float64("radius", 0, "Blur radius (0..100)")
	applyCmd.Flags().Float64("strength", 0, "Sharpen strength (0..100)")

	applyCmd.Flags().String("mask", "", "Grayscale PNG used as selection mask (white = selected)")
	applyCmd.Flags().String("mask-poly", "", "Polygon selection as \"x1,y1 x2,y2 x3,y3 ...\" in pixel coordinates")
	applyCmd.Flags().Float32("feather", 0, "Gaussian sigma for softening the mask edge")
	applyCmd.Flags().Float64("roughen-scale", 0, "Perlin noise scale for roughening the mask edge (0 disables)")
	applyCmd.Flags().Float64("roughen-strength", 0.5, "Perlin roughening strength (0..1)")
	applyCmd.Flags().Int64("seed", 1337, "Deterministic seed for mask roughening")

	applyCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	applyCmd.Flags().Bool("progress", true, "Show progress bar")
	applyCmd.Flags().Bool("force", false, "Overwrite existing output files")
	applyCmd.Flags().String("suffix", "", "Suffix appended to output file names (before the extension)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"apply.filter", "filter"},
		{"apply.adjustment", "adjustment"},
		{"apply.rotation", "rotation"},
		{"apply.intensity", "intensity"},
		{"apply.temperature", "temperature"},
		{"apply.radius", "radius"},
		{"apply.strength", "strength"},
		{"apply.mask", "mask"},
		{"apply.mask_poly", "mask-poly"},
		{"apply.feather", "feather"},
		{"apply.roughen_scale", "roughen-scale"},
		{"apply.roughen_strength", "roughen-strength"},
		{"apply.seed", "seed"},
		{"apply.workers", "workers"},
		{"apply.progress", "progress"},
		{"apply.force", "force"},
		{"apply.suffix", "suffix"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, applyCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// buildSpec assembles the filter spec from the apply.* config values.
func buildSpec() (filter.Spec, error) {
	name := viper.GetString("apply.filter")
	if name == "" {
		return filter.Spec{}, fmt.Errorf("--filter is required (see 'rasterfilter filters')")
	}
	kind, err := filter.ParseKind(name)
	if err != nil {
		return filter.Spec{}, err
	}

	spec := filter.Spec{
		Kind: kind,
		Params: filter.Params{
			Adjustment:  viper.GetFloat64("apply.adjustment"),
			Rotation:    viper.GetFloat64("apply.rotation"),
			Intensity:   viper.GetFloat64("apply.intensity"),
			Temperature: viper.GetFloat64("apply.temperature"),
			Radius:      viper.GetFloat64("apply.radius"),
			Strength:    viper.GetFloat64("apply.strength"),
		},
	}
	if err := spec.Validate(); err != nil {
		return filter.Spec{}, err
	}
	return spec, nil
}

// outputPath derives where a filtered file goes: <output-dir>/<name><suffix>.<ext>
func outputPath(outputDir, inputPath, suffix string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, name+suffix+ext)
}

// fileProcessor filters one PNG file per task through a shared dispatcher.
type fileProcessor struct {
	dispatcher *engine.Dispatcher
	spec       filter.Spec
	maskImg    image.Image
	maskPoly   orb.Polygon
	feather    float32
	roughScale float64
	roughStr   float64
	seed       int64
	outputDir  string
	suffix     string
}

func (p *fileProcessor) Process(ctx context.Context, task worker.Task) (string, error) {
	if !task.Force {
		if _, err := os.Stat(task.OutputPath); err == nil {
			logger.Info("Output already exists; skipping", "path", task.OutputPath)
			return task.OutputPath, nil
		}
	}

	img, err := readPNG(task.InputPath)
	if err != nil {
		return "", err
	}

	target, err := raster.FromImage(task.InputPath, img, geom.Identity())
	if err != nil {
		return "", err
	}

	mask, err := p.maskFor(target.Width(), target.Height())
	if err != nil {
		return "", err
	}

	outcomes, err := p.dispatcher.Apply(ctx, []*raster.Target{target}, p.spec, mask)
	if err != nil {
		return "", err
	}
	if outcomes[0].Err != nil {
		return "", outcomes[0].Err
	}

	if err := writePNG(task.OutputPath, target.Image()); err != nil {
		return "", err
	}
	return task.OutputPath, nil
}

// maskFor resizes the selection mask onto an image of the given size and
// applies the configured edge treatments.
func (p *fileProcessor) maskFor(width, height int) (*selection.Mask, error) {
	var (
		m   *selection.Mask
		err error
	)
	switch {
	case p.maskImg != nil:
		m, err = selection.FromImage(p.maskImg, image.Rect(0, 0, width, height))
	case p.maskPoly != nil:
		m, err = selection.FromPolygon(p.maskPoly, image.Rect(0, 0, width, height))
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build selection mask: %w", err)
	}
	if p.roughScale > 0 {
		m = selection.Roughen(m, p.roughScale, p.roughStr, p.seed)
	}
	if p.feather > 0 {
		m = selection.Feather(m, p.feather)
	}
	return m, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	spec, err := buildSpec()
	if err != nil {
		return err
	}

	outputDir := viper.GetString("output-dir")
	suffix := viper.GetString("apply.suffix")
	force := viper.GetBool("apply.force")
	showProgress := viper.GetBool("apply.progress")
	workers := viper.GetInt("apply.workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	resultCache, err := cache.New(viper.GetInt("cache-size"))
	if err != nil {
		return err
	}

	cfg := engine.Config{Cache: resultCache, Logger: logger}
	if dbPath := viper.GetString("result-db"); dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
		defer st.Close() // nolint:errcheck
		cfg.Store = st
	}

	dispatcher, err := engine.New(cfg)
	if err != nil {
		return err
	}

	proc := &fileProcessor{
		dispatcher: dispatcher,
		spec:       spec,
		feather:    float32(viper.GetFloat64("apply.feather")),
		roughScale: viper.GetFloat64("apply.roughen_scale"),
		roughStr:   viper.GetFloat64("apply.roughen_strength"),
		seed:       viper.GetInt64("apply.seed"),
		outputDir:  outputDir,
		suffix:     suffix,
	}

	maskPath := viper.GetString("apply.mask")
	maskPoly := viper.GetString("apply.mask_poly")
	if maskPath != "" && maskPoly != "" {
		return fmt.Errorf("--mask and --mask-poly are mutually exclusive")
	}
	if maskPath != "" {
		img, err := readPNG(maskPath)
		if err != nil {
			return fmt.Errorf("failed to read mask: %w", err)
		}
		proc.maskImg = img
	}
	if maskPoly != "" {
		poly, err := parsePolygon(maskPoly)
		if err != nil {
			return fmt.Errorf("invalid mask polygon: %w", err)
		}
		proc.maskPoly = poly
	}

	tasks := make([]worker.Task, 0, len(args))
	for _, input := range args {
		tasks = append(tasks, worker.Task{
			InputPath:  input,
			OutputPath: outputPath(outputDir, input, suffix),
			Force:      force,
		})
	}

	logger.Info("Starting batch filtering",
		"filter", spec.Kind.String(),
		"files", len(tasks),
		"workers", workers,
		"output_dir", outputDir,
		"masked", proc.maskImg != nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received interrupt signal, cancelling...")
		cancel()
	}()

	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Processor:  proc,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Filtering failed", "input", r.Task.InputPath, "error", r.Err)
		}
	}

	logger.Info(progress.Summary())

	if failedCount > 0 {
		return fmt.Errorf("%d files failed to filter", failedCount)
	}
	return nil
}

// parsePolygon parses "x1,y1 x2,y2 x3,y3 ..." into a single-ring polygon.
// The ring is closed automatically.
func parsePolygon(s string) (orb.Polygon, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return nil, fmt.Errorf("need at least 3 points, got %d", len(fields))
	}

	ring := make(orb.Ring, 0, len(fields)+1)
	for i, field := range fields {
		parts := strings.Split(field, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("point %d: expected x,y, got %q", i, field)
		}
		x, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid x: %w", i, err)
		}
		y, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid y: %w", i, err)
		}
		ring = append(ring, orb.Point{x, y})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}

// readPNG decodes a PNG file.
func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint:errcheck

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// writePNG encodes an image to a PNG file.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := png.Encode(f, img); err != nil {
		f.Close() // nolint:errcheck
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
