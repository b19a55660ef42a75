package main

import (
	"context"
	"flag"
	"fmt"

	"gobengali/internal/analysis"
	"gobengali/internal/config"
	"gobengali/internal/controller"
	"gobengali/internal/logging"
	"gobengali/internal/metrics"
	"gobengali/internal/quota"
	"gobengali/internal/service"
	"gobengali/internal/store"
	"gobengali/internal/text"
	"gobengali/internal/translit"
	"gobengali/internal/view"
)

// globalFlags are accepted by every subcommand.
type globalFlags struct {
	config  string
	verbose bool
	offline bool
}

func addGlobalFlags(fs *flag.FlagSet) *globalFlags {
	g := &globalFlags{}
	fs.StringVar(&g.config, "config", "", "Config file (default: "+config.ConfigPath()+")")
	fs.BoolVar(&g.verbose, "v", false, "Verbose (debug) logging")
	fs.BoolVar(&g.offline, "offline", false, "Use local transliteration only")
	return g
}

// app holds the wired components of one invocation.
type app struct {
	cfgPath string
	cfg     *config.Config
	log     *logging.Logger
	store   store.Backend
	tracker *quota.Tracker
	client  *service.Client
	svc     controller.Collaborator
	metrics *metrics.Metrics
}

func newApp(ctx context.Context, g *globalFlags) (*app, error) {
	path := g.config
	if path == "" {
		if found := config.FindConfigFile(); found != "" {
			path = found
		} else {
			path = config.ConfigPath()
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.offline {
		cfg.Transliteration.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	log, err := newLogger(&cfg.Logging, g.verbose)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(log)

	a := &app{cfgPath: path, cfg: cfg, log: log, metrics: metrics.New()}

	a.store, err = store.Open(cfg.Storage.Type, cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	tier, err := quota.ParseTier(cfg.Quota.Tier)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker, err = quota.NewTracker(ctx, a.store, quota.Options{
		User:        cfg.Quota.User,
		Tier:        tier,
		Limits:      quota.Limits{DailyWords: cfg.Quota.DailyWords, DailyAccepts: cfg.Quota.DailyAccepts},
		WarnPercent: cfg.Quota.WarnPercent,
		Logger:      log.Slog(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.metrics.WatchQuota(nil, a.tracker)

	a.client, err = service.New(service.Options{
		BaseURL:  cfg.Service.BaseURL,
		Timeout:  cfg.Service.Timeout(),
		MaxConns: cfg.Service.MaxConns,
		Logger:   log.Slog(),
		Observer: a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create service client: %w", err)
	}
	a.svc = a.client

	log.Debug("configuration loaded", "path", path, "service", cfg.Service.BaseURL, "storage", cfg.Storage.Type)
	return a, nil
}

func newLogger(lc *config.LoggingConfig, verbose bool) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = logging.LevelDebug
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     lc.Output,
		FilePath:   lc.FilePath,
		MaxSize:    int64(lc.MaxSizeMB),
		MaxAge:     lc.MaxAgeDays,
		MaxBackups: lc.MaxBackups,
		Compress:   lc.Compress,
		LogContent: lc.LogContent,
		Component:  "gobengali",
	})
}

// Close releases the store and log files.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("close storage", "error", err)
		}
	}
	a.log.Close()
}

func (a *app) analysisOptions() analysis.Options {
	ac := a.cfg.Analysis
	opts := analysis.Options{
		Debounce:      ac.Debounce(),
		MinLength:     ac.MinLength,
		Lang:          ac.LanguageHint,
		CheckGrammar:  ac.CheckGrammar,
		CheckSpelling: ac.CheckSpelling,
		Logger:        a.log.Slog(),
	}
	if sc, ok := text.LookupScript(ac.Script); ok {
		opts.Script = sc
	}
	return opts
}

func (a *app) translitOptions() translit.Options {
	return translit.Options{
		MaxSuggestions: a.cfg.Transliteration.MaxSuggestions,
		Offline:        a.cfg.Transliteration.Offline,
		Logger:         a.log.Slog(),
	}
}

// controllerOptions wires the configured behavior. Callers add the
// event hooks they need.
func (a *app) controllerOptions() controller.Options {
	cfg := a.cfg
	return controller.Options{
		Analysis:               a.analysisOptions(),
		Cooldown:               cfg.Sync.Cooldown(),
		Reoffset:               cfg.Sync.ReoffsetAnchors,
		ReanalyzeAfterCooldown: cfg.Sync.ReanalyzeAfterCooldown,
		DetectLanguage:         cfg.Analysis.DetectLanguage,
		DetectDebounce:         cfg.Analysis.DetectDebounce(),
		DetectMinLength:        cfg.Analysis.DetectMinLength,
		Transliterate:          cfg.Transliteration.Enabled,
		Lookback:               cfg.Transliteration.Lookback,
		Translit:               a.translitOptions(),
		Quota:                  a.tracker,
		Logger:                 a.log.Slog(),
		Recorder:               a.metrics,
	}
}

// analyzeOnce runs one immediate analysis of s through a controller over
// an in-memory view and returns the controller holding the result.
func (a *app) analyzeOnce(s string) (*controller.Controller, error) {
	ed := view.NewMemory(s)
	opts := a.controllerOptions()
	opts.DetectLanguage = false
	opts.Transliterate = false

	var failure error
	opts.OnEvent = func(ev controller.Event) {
		if ev.Kind == controller.EventAnalysisFailed {
			failure = ev.Err
		}
	}

	ctl := controller.New(ed, a.svc, opts)
	if reason := ctl.AnalyzeNow(); reason != analysis.SkipNone {
		ctl.Close()
		return nil, fmt.Errorf("nothing to analyze: %s", reason)
	}
	ctl.Wait()
	if failure != nil {
		ctl.Close()
		return nil, failure
	}
	a.tracker.RecordWords(context.Background(), text.Measure(s).Words)
	return ctl, nil
}

// lookup returns a transliteration lookup; offline mode never touches
// the network.
func (a *app) lookup() *translit.Lookup {
	if a.cfg.Transliteration.Offline {
		return translit.NewLookup(nil, a.translitOptions())
	}
	return translit.NewLookup(a.svc, a.translitOptions())
}
