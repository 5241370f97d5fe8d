package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sievekit/sieve/internal/config"
	"github.com/sievekit/sieve/internal/logging"
	"github.com/sievekit/sieve/pkg/engine"
	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
	"github.com/sievekit/sieve/pkg/scanners"
)

type scanFlags struct {
	configPath    string
	outDir        string
	backend       string
	hash          string
	stoplist      string
	carve         string
	enable        []string
	disable       []string
	options       []string
	pageSize      int
	margin        int
	workers       int
	maxDepth      int
	contextWindow int
	pedantic      bool
	logLevel      string
	printSteps    bool
	noDedup       bool
	noScanners    bool
}

func newScanCmd() *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan IMAGE",
		Short: "Scan an image for features",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "config file (default ~/.sieve/config.yaml)")
	fl.StringVarP(&f.outDir, "output", "o", "", "output directory")
	fl.StringVar(&f.backend, "backend", "", "output backend: files or duckdb")
	fl.StringVar(&f.hash, "hash", "", "digest algorithm: md5, sha1, sha256, blake3")
	fl.StringVar(&f.stoplist, "stoplist", "", "stoplist file")
	fl.StringVar(&f.carve, "carve", "", "carve mode for decoded streams: none, encoded, all")
	fl.StringSliceVarP(&f.enable, "enable", "e", nil, "enable scanner by name (repeatable, 'all' allowed)")
	fl.StringSliceVarP(&f.disable, "disable", "x", nil, "disable scanner by name (repeatable, 'all' allowed)")
	fl.StringSliceVarP(&f.options, "set", "S", nil, "scanner option as scanner.option=value (repeatable)")
	fl.IntVar(&f.pageSize, "page-size", 0, "page size in bytes")
	fl.IntVar(&f.margin, "margin", 0, "page margin in bytes")
	fl.IntVarP(&f.workers, "workers", "j", 0, "concurrent page workers (default GOMAXPROCS)")
	fl.IntVar(&f.maxDepth, "max-depth", 0, "maximum recursive decoding depth")
	fl.IntVar(&f.contextWindow, "context-window", 0, "context bytes on each side of a feature")
	fl.BoolVar(&f.pedantic, "pedantic", false, "treat malformed features as hard errors")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	fl.BoolVar(&f.printSteps, "debug-print-steps", false, "log every scanner invocation")
	fl.BoolVar(&f.noDedup, "debug-no-dedup", false, "disable duplicate-content suppression")
	fl.BoolVar(&f.noScanners, "debug-no-scanners", false, "dispatch no scanners")
	return cmd
}

func runScan(cmd *cobra.Command, image string, f *scanFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyScanFlags(cmd.Flags(), cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	}
	logger := logging.New(logCfg)
	cliLog := logging.NewWithComponent(logCfg, "cli")

	carve, err := carveMode(cfg.Scanners.Carve)
	if err != nil {
		return err
	}
	opts, err := scannerOptions(cfg.Scanners.Options, f.options)
	if err != nil {
		return err
	}

	rs, err := recorder.NewSet(recorder.Options{
		OutDir:        cfg.Output.Dir,
		InputPath:     image,
		Hash:          cfg.Output.Hash,
		Backend:       recorder.Backend(cfg.Output.Backend),
		Pedantic:      cfg.Output.Pedantic,
		ContextWindow: cfg.Output.ContextWindow,
		StoplistPath:  cfg.Output.Stoplist,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	set := scanner.NewSet(scanner.Config{
		MaxDepth: cfg.Scan.MaxDepth,
		Options:  opts,
		Debug: scanner.DebugFlags{
			PrintSteps: cfg.Debug.PrintSteps,
			NoDedup:    cfg.Debug.NoDedup,
			NoScanners: cfg.Debug.NoScanners,
			AlertOnDup: cfg.Debug.AlertOnDup,
		},
	}, rs, logger)
	for _, sc := range scanners.Builtin(carve) {
		if err := set.Register(sc); err != nil {
			return err
		}
	}
	if err := set.ApplyCommands(scannerCommands(cfg.Scanners.Enable, cfg.Scanners.Disable)); err != nil {
		return err
	}
	if err := set.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(set, engine.Options{
		PageSize: cfg.Scan.PageSize,
		Margin:   cfg.Scan.Margin,
		Workers:  cfg.Scan.Workers,
	}, logger)

	scanErr := eng.ScanFile(ctx, image)

	if err := set.Shutdown(); err != nil {
		cliLog.Error().Err(err).Msg("shutdown failed")
		if scanErr == nil {
			scanErr = err
		}
	}
	if err := set.WriteReport(image); err != nil {
		cliLog.Error().Err(err).Msg("report failed")
	}
	if scanErr != nil {
		return scanErr
	}

	for _, nc := range rs.FeatureCounts() {
		cmd.Printf("%-24s %d\n", nc.Name, nc.Count)
	}
	cmd.Printf("output written to %s\n", cfg.Output.Dir)
	return nil
}

// applyScanFlags overlays explicitly set flags onto the loaded config.
func applyScanFlags(fl *pflag.FlagSet, cfg *config.Config, f *scanFlags) {
	if fl.Changed("output") {
		cfg.Output.Dir = f.outDir
	}
	if fl.Changed("backend") {
		cfg.Output.Backend = f.backend
	}
	if fl.Changed("hash") {
		cfg.Output.Hash = f.hash
	}
	if fl.Changed("stoplist") {
		cfg.Output.Stoplist = f.stoplist
	}
	if fl.Changed("carve") {
		cfg.Scanners.Carve = f.carve
	}
	if fl.Changed("page-size") {
		cfg.Scan.PageSize = f.pageSize
	}
	if fl.Changed("margin") {
		cfg.Scan.Margin = f.margin
	}
	if fl.Changed("workers") {
		cfg.Scan.Workers = f.workers
	}
	if fl.Changed("max-depth") {
		cfg.Scan.MaxDepth = f.maxDepth
	}
	if fl.Changed("context-window") {
		cfg.Output.ContextWindow = f.contextWindow
	}
	if fl.Changed("pedantic") {
		cfg.Output.Pedantic = f.pedantic
	}
	if fl.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fl.Changed("debug-print-steps") {
		cfg.Debug.PrintSteps = f.printSteps
	}
	if fl.Changed("debug-no-dedup") {
		cfg.Debug.NoDedup = f.noDedup
	}
	if fl.Changed("debug-no-scanners") {
		cfg.Debug.NoScanners = f.noScanners
	}
	cfg.Scanners.Enable = append(cfg.Scanners.Enable, f.enable...)
	cfg.Scanners.Disable = append(cfg.Scanners.Disable, f.disable...)
}

func carveMode(name string) (recorder.CarveMode, error) {
	switch name {
	case "none":
		return recorder.CarveNone, nil
	case "encoded":
		return recorder.CarveEncoded, nil
	case "all":
		return recorder.CarveAll, nil
	}
	return recorder.CarveNone, fmt.Errorf("unknown carve mode %q", name)
}

// scannerCommands turns the config lists into ordered commands:
// disables first, then enables, so "-x all -e gzip" works as expected.
func scannerCommands(enable, disable []string) []scanner.Command {
	var cmds []scanner.Command
	for _, name := range disable {
		cmds = append(cmds, scanner.Command{Action: scanner.Disable, Name: name})
	}
	for _, name := range enable {
		cmds = append(cmds, scanner.Command{Action: scanner.Enable, Name: name})
	}
	return cmds
}

// scannerOptions merges -S key=value pairs over the config options.
func scannerOptions(base map[string]string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(pairs))
	for k, v := range base {
		out[k] = v
	}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad scanner option %q, want scanner.option=value", pair)
		}
		out[k] = v
	}
	return out, nil
}
