package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/johbar/ocr-language-service/internal/cache"
	"github.com/johbar/ocr-language-service/internal/cache/nats"
	"github.com/johbar/ocr-language-service/internal/config"
	"github.com/johbar/ocr-language-service/internal/feedback"
	"github.com/johbar/ocr-language-service/internal/geoip"
	"github.com/johbar/ocr-language-service/internal/metrics"
	"github.com/johbar/ocr-language-service/internal/server"
	"github.com/johbar/ocr-language-service/internal/txt2img"
	"github.com/johbar/ocr-language-service/pkg/tesswrap"
	"github.com/nats-io/nats.go/micro"
)

func main() {
	conf, err := config.NewConfigFromEnv()
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	logOut := os.Stdout
	oneShot := len(os.Args) > 1
	if oneShot {
		// keep Stdout clean for the text
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: conf.LogLevel, AddSource: conf.LogLevel == slog.LevelDebug}))
	slog.SetDefault(logger)

	// one shot mode: don't start a server, just process a single image provided on the command line
	if oneShot {
		selector := ""
		if len(os.Args) > 2 {
			selector = os.Args[2]
		}
		os.Exit(PrintTextToStdout(conf, logger, os.Args[1], selector))
	}

	if os.Getenv("GOMEMLIMIT") != "" {
		logger.Info("GOMEMLIMIT", "Bytes", debug.SetMemoryLimit(-1), "MBytes", debug.SetMemoryLimit(-1)/1024/1024)
	}
	buildinfo, _ := debug.ReadBuildInfo()
	logger.Debug("Info", "buildinfo", buildinfo)
	logTesseractStatus(conf, logger)

	var ocrCache cache.Cache = &cache.NopCache{}
	nc, err := nats.Connect(*conf, logger)
	switch {
	case errors.Is(err, nats.ErrNotConfigured):
		logger.Info("NATS not configured. Cache disabled.")
	case err != nil:
		logger.Error("Could not connect to NATS", "err", err)
		if conf.FailWithoutJetstream {
			os.Exit(1)
		}
	default:
		store, err := cache.New(*conf, logger, nc)
		if err != nil {
			logger.Error("Cache disabled", "err", err)
			if conf.FailWithoutJetstream {
				os.Exit(1)
			}
		} else {
			ocrCache = store
		}
	}

	recognizer := NewRecognizer(conf, logger, ocrCache)
	p, err := NewPipeline(conf, logger, recognizer)
	if err != nil {
		logger.Error("Invalid language configuration", "err", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: conf.HttpClientTimeout}
	srvOpts := server.Options{
		Tokens:        tokens(conf),
		Geo:           geoip.New(conf.GeoIpUrl, httpClient, time.Hour, logger),
		Relay:         feedback.NewRelay(conf.FeedbackWebhookUrl, httpClient, logger),
		Images:        txt2img.New(conf.Txt2ImgUrl, httpClient),
		Metrics:       metrics.New(),
		MaxUploadSize: int64(conf.MaxUploadSizeBytes),
	}
	if conf.FeedbackWebhookUrl == "" {
		logger.Warn("No feedback webhook configured. Feedback will be rejected.")
	}
	s := server.New(p, srvOpts, logger)
	var svc micro.Service
	if nc != nil {
		if svc, err = s.RegisterNatsService(nc); err != nil {
			logger.Error("Could not register NATS micro service", "err", err)
		}
	}

	srv := http.Server{Addr: conf.SrvAddr, Handler: s.Router()}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("Received signal. Terminating gracefully...")
		// an auto-detect request runs up to two OCR passes
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*conf.OcrTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "err", err)
		}
	}()

	logger.Info("Service started", "address", srv.Addr, "languages", conf.Languages, "tesseract", tesswrap.Version)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		// Error starting or closing listener:
		logger.Error("Webserver failed", "err", err)
		stop()
	}
	// Shutdown returns once in-flight requests are done
	<-shutdownDone
	logger.Info("HTTP Server stopped.")
	if svc != nil {
		if err := svc.Stop(); err != nil {
			logger.Error("Stopping NATS micro service failed", "err", err)
		}
	}
	recognizer.Close()
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logger.Error("Draining NATS connection failed", "err", err)
		}
	}
}

func logTesseractStatus(conf *config.Config, logger *slog.Logger) {
	if !tesswrap.Initialized {
		logger.Error("Tesseract is not installed. OCR requests will fail.")
		return
	}
	if ok, whyNot := tesswrap.CheckLanguages(conf.LanguageCodes()); !ok {
		logger.Warn("Language config is invalid. Recognition with missing languages will fail.", "reason", whyNot)
	}
}
