package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"parkvision-service/internal/config"
	"parkvision-service/internal/db"
	"parkvision-service/internal/detect"
	apphttp "parkvision-service/internal/http"
	"parkvision-service/internal/mjpeg"
	"parkvision-service/internal/notify"
	"parkvision-service/internal/observability"
	"parkvision-service/internal/pipeline"
	"parkvision-service/internal/repository"
	"parkvision-service/internal/service"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the occupancy pipeline and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	repo := repository.NewOccupancyRepository(gdb)

	zones := cfg.ZoneList()
	zoneIDs := make([]string, 0, len(zones))
	for _, z := range zones {
		zoneIDs = append(zoneIDs, z.ID)
	}
	if err := repo.EnsureZones(ctx, zoneIDs); err != nil {
		return fmt.Errorf("initialize zones: %w", err)
	}
	log.Info().Int("zones", len(zones)).Msg("zones initialized")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	sink := pipeline.MultiSink{repo}
	if cfg.MQTT.Enabled {
		notifier := notify.NewMQTTNotifier(notify.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      cfg.MQTT.QoS,
		}, log.With().Str("component", "mqtt").Logger())
		defer notifier.Close()
		sink = append(sink, notifier)
	}

	pl := pipeline.New(pipeline.Options{
		Zones:               zones,
		Source:              mjpeg.NewHTTPSource(cfg.Source.URL, cfg.Source.ConnectTimeout),
		Detector:            detect.NewHTTPDetector(cfg.Detector.Endpoint, cfg.Detector.Timeout),
		Sink:                sink,
		ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
		ProcessEveryN:       cfg.Detector.ProcessEveryN,
		VehicleClasses:      cfg.VehicleClassSet(),
		ReconnectBackoff:    cfg.Source.ReconnectBackoff,
		Metrics:             metrics,
		Log:                 log.With().Str("component", "pipeline").Logger(),
	})

	occupancySvc := service.NewOccupancyService(repo, pl.Publisher(), log.With().Str("component", "service").Logger())
	handler := apphttp.NewHandler(occupancySvc, cfg.Server.StreamInterval, metrics, registry,
		log.With().Str("component", "http").Logger())

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: apphttp.NewRouter(handler, cfg.Server.AllowedOrigins),
	}

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		pl.Run(ctx)
	}()

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown")
	}
	<-pipelineDone
	return nil
}
