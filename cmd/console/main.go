package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/adapters/directory"
	router "github.com/dkeye/CamView/internal/adapters/http"
	"github.com/dkeye/CamView/internal/adapters/mqtt"
	"github.com/dkeye/CamView/internal/adapters/rtc"
	"github.com/dkeye/CamView/internal/adapters/sink"
	"github.com/dkeye/CamView/internal/app/console"
	"github.com/dkeye/CamView/internal/app/session"
	"github.com/dkeye/CamView/internal/config"
	"github.com/dkeye/CamView/internal/core"
	"github.com/dkeye/CamView/internal/domain"
	"github.com/dkeye/CamView/internal/metric"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := metric.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	factory, err := newMediaFactory(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init webrtc")
	}

	thumbnail, err := sink.LoadThumbnail(cfg.Media.ThumbnailPath)
	if err != nil {
		log.Warn().Err(err).Msg("thumbnail unavailable, using a blank one")
		if thumbnail, err = sink.DefaultThumbnail(); err != nil {
			log.Fatal().Err(err).Msg("failed to render thumbnail")
		}
	}

	dir, err := newDirectory(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init camera directory")
	}

	build := func(cam domain.Camera, obs session.Observer) (*console.Device, error) {
		transport := mqtt.NewTransport(cam.DeviceID, cfg.MQTT)
		frames := sink.NewFrameStore(thumbnail)
		recorder := sink.NewRecorder(cam.DeviceID, cfg.Media.RecordDir, metrics)
		ctrl := session.NewController(session.Config{
			Camera:    cam,
			Signaling: transport,
			Media:     factory,
			Sinks:     core.Sinks{Video: recorder, Audio: recorder, Image: frames},
			Observer:  obs,
			Metrics:   metrics,
			AutoStart: cfg.Session.AutoStart,
		})
		return &console.Device{Controller: ctrl, Transport: transport, Frames: frames}, nil
	}

	con := console.New(dir, build, metrics)
	if err := con.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("initial camera refresh")
	}

	r := router.SetupRouter(cfg, con, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("CamView console started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	con.Close()
	log.Info().Msg("Server exited gracefully")
}

func newMediaFactory(cfg *config.Config) (*rtc.Factory, error) {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	opts := rtc.Options{
		ICEServers: cfg.WebRTC.ICEServers,
		Logger:     rtc.LoggerFactory{Level: lvl},
	}
	if path := cfg.Media.TalkbackFile; path != "" {
		opts.Capture = func() (rtc.AudioSource, error) { return sink.OpenOgg(path) }
	}
	return rtc.NewFactory(opts)
}

func newDirectory(cfg *config.Config) (core.Directory, error) {
	if cfg.Directory.URL != "" {
		log.Info().Str("url", cfg.Directory.URL).Msg("camera directory: http")
		return directory.NewHTTP(cfg.Directory), nil
	}
	log.Info().Int("cameras", len(cfg.Cameras)).Msg("camera directory: static")
	static, err := directory.NewStatic(cfg.Cameras)
	if err != nil {
		return nil, err
	}
	return static, nil
}
