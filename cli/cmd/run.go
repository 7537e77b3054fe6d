package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/sflowg/blockrunner/cli/internal/config"
	"github.com/sflowg/blockrunner/cli/internal/telemetry"
	transport "github.com/sflowg/blockrunner/plugins/http"
	"github.com/sflowg/blockrunner/plugins/sqlstore"
	"github.com/sflowg/blockrunner/runner"
	"github.com/sflowg/blockrunner/runtime"
	"github.com/sflowg/blockrunner/runtime/engine/yaml"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	wordlistPath string
	proxiesPath  string
	proxyType    string
	listenAddr   string
	otlpEndpoint string
	progressRate time.Duration
	overrides    config.Overrides
)

var runCmd = &cobra.Command{
	Use:   "run [pipeline.yaml]",
	Short: "Run a pipeline over a word-list",
	Long: `Run executes the pipeline once per word-list record. Settings come from a
run config (--config, a file or a directory holding blockrunner.yaml) and flags
override them.

Example:
  blockrunner run login.yaml --wordlist combo.txt --proxies proxies.txt --threads 50
  blockrunner run --config ./project --listen :8080
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Run config file or directory")
	f.StringVarP(&wordlistPath, "wordlist", "w", "", "Word-list file, one record per line")
	f.StringVarP(&proxiesPath, "proxies", "p", "", "Proxy list file (replaces the pipeline's proxy sources)")
	f.StringVar(&proxyType, "proxy-type", "http", "Type for proxy lines without a scheme")
	f.StringVar(&listenAddr, "listen", "", "Serve the control API on this address, e.g. :8080")
	f.StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/gRPC endpoint for traces, metrics and logs")
	f.DurationVar(&progressRate, "progress", 5*time.Second, "Progress line interval, 0 disables")
	f.IntVarP(&overrides.Threads, "threads", "t", 0, "Worker count")
	f.IntVar(&overrides.Skip, "skip", 0, "Records to skip")
	f.IntVar(&overrides.Take, "take", 0, "Records to process after skipping, 0 for all")
	f.StringVar((*string)(&overrides.ProxyMode), "proxy-mode", "", "Proxy mode: None, Rotate or Sticky")
	f.StringVarP(&overrides.OutputDir, "output", "o", "", "Results directory")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := runConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console, err := newHandler(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	l := slog.New(console)

	if cfg.Telemetry.Enabled() {
		tel, err := telemetry.Setup(ctx, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to set up telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				l.Warn("Telemetry shutdown failed", "error", err)
			}
		}()
		l = slog.New(telemetry.Fanout{console, tel.LogHandler()})
	}

	p, err := yaml.NewPipelineLoader().Load(cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}
	cfg.Overrides.Apply(p)
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := loadWordlist(cfg.Wordlist, p.Data.SkipEmpty)
	if err != nil {
		return err
	}

	proxies, err := loadProxyPool(cfg.Proxies, p)
	if err != nil {
		return err
	}

	opts := []runner.Option{runner.WithLogger(l)}
	if p.Output.SaveToDatabase {
		store, err := openStore(ctx, p.Output)
		if err != nil {
			return err
		}
		opts = append(opts, runner.WithHitSink(store))
	}

	t := runtime.NewTransport(cfg.Transport.Workers)
	serveCtx, stopServe := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServe()
	go transport.NewServer(cfg.Transport, l).Serve(serveCtx, t)

	r := runner.New(p, t, data, proxies, opts...)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pipeline: %s\n", p.Name)
	fmt.Fprintf(out, "Records: %s, threads: %d, proxies: %d (%s)\n\n",
		humanize.Comma(int64(data.Total())), p.Runner.Threads, proxies.Total(), p.Proxy.Mode)

	if cfg.Listen != "" {
		srv := serveAPI(cfg.Listen, r, l)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	hitsDone := make(chan struct{})
	go func() {
		defer close(hitsDone)
		for hit := range r.Hits() {
			fmt.Fprintf(out, "HIT %s | %s\n", hit.Data, formatCaptures(hit.Captures))
		}
	}()

	if progressRate > 0 {
		go reportProgress(ctx, cmd.ErrOrStderr(), r, progressRate)
	}

	start := time.Now()
	err = r.Start(ctx)
	<-hitsDone
	stopServe()

	s := r.Stats()
	fmt.Fprintf(out, "\n✓ Run finished in %s\n", time.Since(start).Round(time.Second))
	fmt.Fprintf(out, "  Processed: %s/%s\n", humanize.Comma(s.Processed), humanize.Comma(s.Total))
	fmt.Fprintf(out, "  Hits: %s, fails: %s, customs: %s\n", humanize.Comma(s.Hits), humanize.Comma(s.Fails), humanize.Comma(s.Customs))
	fmt.Fprintf(out, "  Retries: %s, bans: %s, errors: %s\n", humanize.Comma(s.Retries), humanize.Comma(s.Bans), humanize.Comma(s.Errors))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runConfig loads the run config and lays command-line values over it.
func runConfig(cmd *cobra.Command, args []string) (*config.RunConfig, error) {
	var (
		cfg *config.RunConfig
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if len(args) > 0 {
		cfg.Pipeline = args[0]
	}
	if wordlistPath != "" {
		cfg.Wordlist = wordlistPath
	}
	if proxiesPath != "" {
		cfg.Proxies = []runtime.ProxySource{{Type: "file", Value: proxiesPath, DefaultType: proxyType}}
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if otlpEndpoint != "" {
		cfg.Telemetry.Endpoint = otlpEndpoint
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("threads") {
		cfg.Overrides.Threads = overrides.Threads
	}
	if flags.Changed("skip") {
		cfg.Overrides.Skip = overrides.Skip
	}
	if flags.Changed("take") {
		cfg.Overrides.Take = overrides.Take
	}
	if flags.Changed("proxy-mode") {
		cfg.Overrides.ProxyMode = overrides.ProxyMode
	}
	if flags.Changed("output") {
		cfg.Overrides.OutputDir = overrides.OutputDir
	}

	if cfg.Pipeline == "" {
		return nil, errors.New("no pipeline given: pass a pipeline file or --config")
	}
	if cfg.Wordlist == "" {
		return nil, errors.New("no word-list given: pass --wordlist or set wordlist in the run config")
	}
	if err := runtime.PrepareConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadWordlist(path string, skipEmpty bool) (*runner.DataPool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word-list: %w", err)
	}
	defer f.Close()

	data, err := runner.LoadDataPool(f, skipEmpty)
	if err != nil {
		return nil, fmt.Errorf("failed to read word-list %q: %w", path, err)
	}
	return data, nil
}

// loadProxyPool reads the run config's proxy sources, falling back to the pipeline's own.
func loadProxyPool(sources []runtime.ProxySource, p *runtime.Pipeline) (*runner.ProxyPool, error) {
	if len(sources) == 0 {
		sources = p.Proxy.Sources
	}

	entries, err := runner.LoadProxySources(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to load proxies: %w", err)
	}
	if p.Proxy.Mode != runtime.ProxyModeNone && len(entries) == 0 {
		return nil, fmt.Errorf("proxy mode %s needs at least one proxy", p.Proxy.Mode)
	}

	return runner.NewProxyPool(entries, p.Proxy.BanDuration), nil
}

func openStore(ctx context.Context, out runtime.OutputSettings) (*sqlstore.Store, error) {
	var cfg sqlstore.Config
	err := runtime.DecodeSettings(&cfg, map[string]any{
		"driver":            out.DatabaseDriver,
		"connection_string": out.DatabaseDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid database settings: %w", err)
	}

	store, err := sqlstore.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open hit store: %w", err)
	}
	return store, nil
}

func serveAPI(addr string, r *runner.Runner, l *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	runner.NewAPI(r, l, g)

	srv := &http.Server{Addr: addr, Handler: g}
	go func() {
		l.Info("Control API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Control API failed", "error", err)
		}
	}()
	return srv
}

func reportProgress(ctx context.Context, w io.Writer, r *runner.Runner, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.IsRunning() {
				return
			}
			fmt.Fprintln(w, progressLine(r.Stats(), r.IsPaused()))
		}
	}
}

func progressLine(s runner.RunnerStats, paused bool) string {
	state := ""
	if paused {
		state = " [paused]"
	}
	return fmt.Sprintf("%s/%s | hits %s | fails %s | retries %s | bans %s | errors %s | %.0f CPM | %d workers%s",
		humanize.Comma(s.Processed), humanize.Comma(s.Total),
		humanize.Comma(s.Hits), humanize.Comma(s.Fails), humanize.Comma(s.Retries),
		humanize.Comma(s.Bans), humanize.Comma(s.Errors), s.CPM, s.ActiveWorkers, state)
}

func formatCaptures(captures map[string]string) string {
	keys := make([]string, 0, len(captures))
	for k := range captures {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " = " + captures[k]
	}
	return strings.Join(parts, ", ")
}
