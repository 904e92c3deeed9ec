package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/pyro"
)

type discoverFlags struct {
	configPath  string
	maxError    float64
	deviation   float64
	threads     int
	sampleSize  int
	seed        uint64
	order       string
	maxLHS      int
	fds         bool
	keys        bool
	noFDs       bool
	noKeys      bool
	memoryLimit int64
	eviction    string
	header      bool
	separator   string
	null        string
	format      string
	logLevel    string
	logFormat   string
	spill       string
	metricsAddr string
}

func newDiscoverCmd() *cobra.Command {
	f := &discoverFlags{}
	cmd := &cobra.Command{
		Use:   "discover [csv file]",
		Short: "Discover the minimal approximate FDs and UCCs of a CSV file",
		Example: `  pyro discover --max-error 0.01 people.csv
  pyro discover --keys=false --format json --threads 8 orders.csv
  pyro discover --memory-limit 268435456 --spill s3://my-bucket/pyro orders.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, f, args[0])
		},
	}

	// Defaults mirror pyro.DefaultConfig. Only flags set on the command line
	// override a configuration file.
	def := pyro.DefaultConfig()
	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fl.Float64VarP(&f.maxError, "max-error", "e", def.MaxError, "maximum g1' error of a dependency")
	fl.Float64Var(&f.deviation, "error-deviation", def.ErrorDeviation, "tolerance around the maximum error")
	fl.IntVarP(&f.threads, "threads", "t", def.Parallelism, "number of concurrently processed search spaces")
	fl.IntVar(&f.sampleSize, "sample-size", def.SampleSize, "tuple pairs per agree-set sample, 0 disables sampling")
	fl.Uint64Var(&f.seed, "seed", def.Seed, "random seed")
	fl.StringVar(&f.order, "order", def.LaunchPadOrder, "launch pad order: arity or error")
	fl.IntVar(&f.maxLHS, "max-lhs", def.MaxLHS, "maximum arity of a dependency, 0 for unbounded")
	fl.BoolVar(&f.fds, "fds", def.FindFDs, "discover functional dependencies")
	fl.BoolVar(&f.keys, "keys", def.FindKeys, "discover unique column combinations")
	fl.BoolVar(&f.noFDs, "no-fds", false, "skip functional dependencies")
	fl.BoolVar(&f.noKeys, "no-keys", false, "skip unique column combinations")
	fl.Int64Var(&f.memoryLimit, "memory-limit", def.MemoryLimit, "bytes of cached PLIs, 0 for unlimited")
	fl.StringVar(&f.eviction, "eviction", "least-used", "eviction method when the memory limit is reached")
	fl.BoolVar(&f.header, "header", true, "the first CSV record names the columns")
	fl.StringVar(&f.separator, "separator", ",", `CSV field separator, \t for tab`)
	fl.StringVar(&f.null, "null", "", "CSV value that represents null")
	fl.StringVarP(&f.format, "format", "o", "text", "output format: text or json")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	fl.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fl.StringVar(&f.spill, "spill", "", "spill evicted PLIs to a directory, s3://bucket/prefix or minio://host/bucket/prefix")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	return cmd
}

// config merges the configuration file with the flags set on the command line.
func (f *discoverFlags) config(cmd *cobra.Command) (pyro.Config, error) {
	cfg := pyro.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = pyro.LoadConfig(f.configPath); err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("max-error") {
		cfg.MaxError = f.maxError
	}
	if changed("error-deviation") {
		cfg.ErrorDeviation = f.deviation
	}
	if changed("threads") {
		cfg.Parallelism = f.threads
	}
	if changed("sample-size") {
		cfg.SampleSize = f.sampleSize
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("order") {
		cfg.LaunchPadOrder = f.order
	}
	if changed("max-lhs") {
		cfg.MaxLHS = f.maxLHS
	}
	if changed("fds") {
		cfg.FindFDs = f.fds
	}
	if changed("keys") {
		cfg.FindKeys = f.keys
	}
	if f.noFDs {
		cfg.FindFDs = false
	}
	if f.noKeys {
		cfg.FindKeys = false
	}
	if changed("memory-limit") {
		cfg.MemoryLimit = f.memoryLimit
		cfg.EvictionMethod = f.eviction
	} else if changed("eviction") {
		cfg.EvictionMethod = f.eviction
	}
	return cfg, cfg.Validate()
}

func (f *discoverFlags) logger(w io.Writer) (*pyro.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(f.logFormat) {
	case "text":
		return pyro.NewLogger(slog.NewTextHandler(w, opts)), nil
	case "json":
		return pyro.NewLogger(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", f.logFormat)
	}
}

func runDiscover(cmd *cobra.Command, f *discoverFlags, path string) error {
	ctx := cmd.Context()
	if f.format != "text" && f.format != "json" {
		return fmt.Errorf("unknown output format %q", f.format)
	}

	cfg, err := f.config(cmd)
	if err != nil {
		return err
	}
	logger, err := f.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	rel, err := loadCSV(path, csvOptions{
		separator:      f.separator,
		header:         f.header,
		null:           f.null,
		nullEqualsNull: cfg.NullEqualsNull,
	})
	if err != nil {
		return err
	}

	opts := []pyro.Option{pyro.WithConfig(cfg), pyro.WithLogger(logger)}
	if f.spill != "" {
		store, err := openSpillStore(ctx, f.spill)
		if err != nil {
			return err
		}
		opts = append(opts, pyro.WithSpillStore(store, "pyro"))
	}
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, pyro.WithMetricsCollector(pyro.NewPrometheusCollector(reg)))
		shutdown, err := serveMetrics(f.metricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	m, err := pyro.New(rel, opts...)
	if err != nil {
		return err
	}
	res, err := m.Discover(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if werr := writeResult(cmd.OutOrStdout(), f.format, res); werr != nil {
		return werr
	}
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *pyro.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func writeResult(w io.Writer, format string, res *pyro.Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "FDs (%d):\n", len(res.FDs))
	for _, fd := range res.FDs {
		fmt.Fprintf(w, "  %s (error %.5f)\n", fd, fd.Error)
	}
	fmt.Fprintf(w, "UCCs (%d):\n", len(res.UCCs))
	for _, ucc := range res.UCCs {
		fmt.Fprintf(w, "  %s (error %.5f)\n", ucc, ucc.Error)
	}
	_, err := fmt.Fprintf(w, "%d search spaces, %d samples, %d cached PLIs in %s\n",
		res.SearchSpaces, res.Samples, res.CachedPLIs, res.Duration.Round(time.Millisecond))
	return err
}
