package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"airguard/internal/alerts"
	"airguard/internal/api"
	"airguard/internal/config"
	"airguard/internal/contacts"
	"airguard/internal/dot11"
	"airguard/internal/engine"
	"airguard/internal/ingest"
	"airguard/internal/logging"
	"airguard/internal/metrics"
	"airguard/internal/storage"
	"airguard/internal/tracks"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML or JSON config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfgManager, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfgManager, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Manager, error) {
	if path == "" {
		return config.NewStaticManager(config.DefaultConfig()), nil
	}
	return config.NewManager(config.ResolvePath(path))
}

func run(cfgManager *config.Manager, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cfgManager.Get()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("storage init: %w", err)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	var anon dot11.Anonymizer
	if cfg.Decoder.Anonymize {
		key, err := cfg.AnonymizationKey()
		if err != nil {
			return fmt.Errorf("anonymization key: %w", err)
		}
		keyed, err := dot11.NewKeyedAnonymizer(key)
		if err != nil {
			return fmt.Errorf("anonymizer: %w", err)
		}
		anon = keyed
		logger.Info("frame anonymization enabled")
	}

	metricsStore := metrics.NewStore(cfg.Metrics.StoreLimit)
	alertsStore := alerts.NewStore(cfg.Alerts.StoreLimit)

	sinks := []contacts.Sink{metricsStore}
	var rowSink tracks.RowSink
	if store != nil {
		sinks = append(sinks, store)
		rowSink = store
	}
	recorder := contacts.NewRecorder(cfg.Recorder.FlushInterval, logger, sinks...)
	recorder.OnFlush = func(s contacts.FlushStats) {
		metrics.ContactRecordsFlushed.Add(float64(s.Records))
		metrics.ContactRecordErrors.Add(float64(s.Failed))
	}
	waterfall := tracks.NewCollector(cfg.Waterfall.Bucket, rowSink, logger)
	waterfall.OnFlush = func(written, failed int) {
		metrics.HistogramRowsFlushed.WithLabelValues("written").Add(float64(written))
		metrics.HistogramRowsFlushed.WithLabelValues("failed").Add(float64(failed))
	}

	eng := engine.NewEngine(cfg, logger, engine.Components{
		Decoder:    dot11.NewDecoder(anon),
		Anonymizer: anon,
		Alerts:     alertsStore,
		Store:      store,
		Recorder:   recorder,
		Waterfall:  waterfall,
	})
	if err := eng.ReloadCatalog(ctx); err != nil {
		return fmt.Errorf("bandit catalog: %w", err)
	}

	sup := suture.New("airguard", suture.Spec{
		EventHook: (&sutureslog.Handler{Logger: logger}).MustHook(),
		Timeout:   15 * time.Second,
	})
	sup.Add(recorder)
	sup.Add(waterfall)
	if cfgManager.Path() != "" {
		sup.Add(&config.Watcher{
			Manager: cfgManager,
			OnReload: func(next *config.Config) {
				eng.UpdateConfig(next)
				if err := eng.ReloadCatalog(ctx); err != nil {
					logger.Error("catalog reload failed", "error", err)
				}
				logger.Info("config reloaded", "path", cfgManager.Path())
			},
			OnError: func(err error) {
				logger.Error("config reload failed", "error", err)
			},
		})
	}
	supErr := sup.ServeBackground(ctx)

	captures := make(chan dot11.Capture, cfg.Ingest.ChannelBuffer)
	eng.Start(ctx, captures)

	ingest.StartREST(ctx, cfgManager, captures, logger)
	ingest.StartKafka(ctx, cfgManager, captures, logger)
	ingest.StartPcap(ctx, cfgManager, captures, logger)
	ingest.StartTCPStream(ctx, cfgManager, captures, logger)

	var histograms api.HistogramSource
	if store != nil {
		histograms = store
	}
	api.Start(ctx, api.NewServer(cfgManager, metricsStore, alertsStore, eng, histograms, logger, version))

	logger.Info("airguard started", "version", version, "workers", cfg.Ingest.Workers)
	<-ctx.Done()
	logger.Info("shutting down")
	eng.Wait()
	if err := <-supErr; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
