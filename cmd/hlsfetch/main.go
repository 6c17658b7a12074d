// The hlsfetch command resolves an HLS manifest and retrieves the segments of
// one rendition, optionally archiving them locally or to object storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agleyzer/hlsfetch/internal/config"
	"github.com/agleyzer/hlsfetch/internal/server"
	"github.com/agleyzer/hlsfetch/internal/tracing"
	"github.com/agleyzer/hlsfetch/pkg/httpclient"
	"github.com/agleyzer/hlsfetch/pkg/logging"
	"github.com/agleyzer/hlsfetch/pkg/pipeline"
	"github.com/agleyzer/hlsfetch/pkg/session"
	"github.com/agleyzer/hlsfetch/pkg/sink"
	"github.com/hashicorp/go-hclog"
)

const (
	version = "1.0.0"
)

// headerFlags collects repeated -header "Name: value" flags.
type headerFlags []string

func (h *headerFlags) String() string {
	return strings.Join(*h, ", ")
}

func (h *headerFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header must look like 'Name: value', got %q", value)
	}
	*h = append(*h, strings.TrimSpace(name)+": "+strings.TrimSpace(val))
	return nil
}

// options holds flag values that override the configuration.
type options struct {
	timeoutMS   int
	retries     int
	headers     headerFlags
	outDir      string
	bucket      string
	maxDuration string
	metricsPort int
	verbose     bool
}

func main() {
	var (
		opts        options
		configPath  = flag.String("config", "", "Path to a YAML configuration file")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)

	flag.IntVar(&opts.timeoutMS, "timeout", 0, "Per-request timeout in milliseconds (default 10000)")
	flag.IntVar(&opts.retries, "retries", 0, "Attempts per fetch including the first (default 3)")
	flag.Var(&opts.headers, "header", "Request header 'Name: value', may be repeated")
	flag.StringVar(&opts.outDir, "out", "", "Write segments and a local playlist into this directory")
	flag.StringVar(&opts.bucket, "bucket", "", "Upload segments to this bucket (storage.* config required)")
	flag.StringVar(&opts.maxDuration, "max-duration", "", "Fetch only this much content (e.g. '30s', '2m')")
	flag.IntVar(&opts.metricsPort, "metrics-port", 0, "Serve /metrics and /health on this port while running")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "hlsfetch - HLS manifest and segment fetcher v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <playlist-url>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Arguments:\n")
		fmt.Fprintf(os.Stderr, "  <playlist-url>    URL of an HLS playlist (media or master)\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s https://example.com/master.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out ./vod -max-duration 30s https://example.com/master.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -header 'Authorization: Bearer abc' -retries 5 https://example.com/index.m3u8\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("hlsfetch v%s\n", version)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: playlist URL is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	playlistURL := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := applyOptions(cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(logging.Options{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.Format == "json",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("hlsfetch starting", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal", "signal", sig)
		cancel()
	}()

	stats, err := run(ctx, playlistURL, cfg, nil, logger)
	printSummary(os.Stdout, stats)
	if err != nil {
		class := session.Classify(err)
		logger.Error("fetch failed", "class", class.String(), "error", err)
		os.Exit(exitCode(class))
	}
}

// applyOptions overlays flags that were set onto cfg.
func applyOptions(cfg *config.Config, opts options) error {
	if opts.timeoutMS > 0 {
		cfg.TimeoutMS = opts.timeoutMS
	}
	if opts.retries > 0 {
		cfg.Retry.MaxAttempts = opts.retries
	}
	for _, h := range opts.headers {
		name, val, _ := strings.Cut(h, ":")
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		cfg.Headers[strings.TrimSpace(name)] = strings.TrimSpace(val)
	}
	if opts.outDir != "" {
		cfg.Output.Dir = opts.outDir
	}
	if opts.bucket != "" {
		cfg.Storage.Bucket = opts.bucket
	}
	if opts.maxDuration != "" {
		d, err := time.ParseDuration(opts.maxDuration)
		if err != nil {
			return fmt.Errorf("invalid -max-duration %q: %w", opts.maxDuration, err)
		}
		if d <= 0 {
			return fmt.Errorf("-max-duration must be positive, got: %s", opts.maxDuration)
		}
		cfg.MaxDuration = d
	}
	if opts.metricsPort > 0 {
		cfg.Metrics.Port = opts.metricsPort
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	return nil
}

// run fetches playlistURL into the configured sinks. fetcher may be nil.
func run(ctx context.Context, playlistURL string, cfg *config.Config, fetcher httpclient.Fetcher, logger hclog.Logger) (session.Stats, error) {
	if cfg.Tracing.Endpoint != "" {
		closer, err := tracing.InitTracer("hlsfetch", cfg.Tracing.Endpoint)
		if err != nil {
			return session.Stats{}, err
		}
		defer closer.Close()
	}

	out, closers, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return session.Stats{}, err
	}

	sess := session.New(playlistURL,
		session.WithFetcher(fetcher),
		session.WithTimeout(cfg.Timeout()),
		session.WithRetry(cfg.RetryPolicy()),
		session.WithHeaders(cfg.HTTPHeader()),
		session.WithMaxDuration(cfg.MaxDuration),
		session.WithLogger(logger),
	)

	if cfg.Metrics.Port > 0 {
		srvCtx, stopServer := context.WithCancel(context.Background())
		defer stopServer()

		srv := server.New(sess, cfg.Metrics.Port, logger)
		go srv.Start(srvCtx)

		logger.Info("metrics available",
			"metrics", fmt.Sprintf("http://localhost:%d/metrics", cfg.Metrics.Port),
			"health", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
		)
	}

	runErr := sess.Run(ctx, out)

	// Partial output still gets a playlist
	var closeErr error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}

	if runErr != nil {
		return sess.Stats(), runErr
	}
	return sess.Stats(), closeErr
}

// buildSink returns the sink for the configured outputs. With no output
// configured, delivered bytes are counted and dropped.
func buildSink(ctx context.Context, cfg *config.Config, logger hclog.Logger) (pipeline.ByteSink, []io.Closer, error) {
	var (
		sinks   []pipeline.ByteSink
		closers []io.Closer
	)

	if cfg.Output.Dir != "" {
		archive, err := sink.NewArchive(cfg.Output.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, archive)
		closers = append(closers, archive)
	}

	if objCfg, ok := cfg.ObjectConfig(); ok {
		client, err := sink.NewMinioClient(ctx, objCfg)
		if err != nil {
			return nil, nil, err
		}
		obj := sink.NewObject(ctx, client, objCfg.Bucket, objCfg.Prefix, logger)
		sinks = append(sinks, obj)
		closers = append(closers, obj)
	} else if cfg.Storage.Bucket != "" {
		return nil, nil, fmt.Errorf("bucket %q requires storage.endpoint", cfg.Storage.Bucket)
	}

	switch len(sinks) {
	case 0:
		return pipeline.SinkFunc(func([]byte) error { return nil }), nil, nil
	case 1:
		return sinks[0], closers, nil
	default:
		return sink.NewTee(sinks...), closers, nil
	}
}

// exitCode maps an error class to the process exit status.
func exitCode(class session.Class) int {
	switch class {
	case session.ClassServer:
		return 3
	case session.ClassNetwork:
		return 4
	case session.ClassManifest:
		return 5
	case session.ClassSink:
		return 6
	case session.ClassCanceled:
		return 130
	default:
		return 1
	}
}

func printSummary(w io.Writer, st session.Stats) {
	if st.ID == "" {
		return
	}
	fmt.Fprintf(w, "session:   %s\n", st.ID)
	fmt.Fprintf(w, "state:     %s\n", st.State)
	fmt.Fprintf(w, "manifest:  %s\n", st.ManifestURL)
	if st.MediaURL != "" {
		fmt.Fprintf(w, "media:     %s\n", st.MediaURL)
	}
	if st.Variant != nil {
		fmt.Fprintf(w, "variant:   bandwidth=%d resolution=%s codecs=%q\n",
			st.Variant.Bandwidth, st.Variant.Resolution, st.Variant.Codecs)
	}
	fmt.Fprintf(w, "segments:  %d/%d (init: %t)\n", st.SegmentsDelivered, st.SegmentsTotal, st.InitDelivered)
	fmt.Fprintf(w, "bytes:     %d\n", st.BytesDelivered)
	fmt.Fprintf(w, "retries:   %d\n", st.Retries)
	if st.Err != "" {
		fmt.Fprintf(w, "error:     %s\n", st.Err)
	}
}
