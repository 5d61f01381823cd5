package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/khaledhikmat/fs-go/mode"
	"github.com/khaledhikmat/fs-go/pipeline"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/data"
	"github.com/khaledhikmat/fs-go/service/lgr"
	"github.com/khaledhikmat/fs-go/service/metrics"
	"github.com/khaledhikmat/fs-go/service/shutdown"
	"github.com/khaledhikmat/fs-go/service/storage"
	"github.com/khaledhikmat/fs-go/service/stream"
)

var modeProcessors = map[string]mode.Processor{
	"responder": mode.Responder,
	"simulator": mode.Simulator,
	"episodes":  mode.Episodes,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Warn("no .env file loaded", slog.Any("error", xerrors.New(err)))
		}
	}

	modeType := "responder"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Config service
	cfgSvc, err := config.NewEnv(os.Getenv("FS_CONFIG_FILE"))
	if err != nil {
		lgr.Logger.Error("invalid configuration", slog.Any("error", err))
		panic("invalid configuration")
	}

	logParams := cfgSvc.GetLogParameters()
	lgr.Init(lgr.Parameters{
		Level:      logParams.Level,
		Format:     logParams.Format,
		File:       logParams.File,
		MaxSizeMB:  logParams.MaxSizeMB,
		MaxBackups: logParams.MaxBackups,
		MaxAgeDays: logParams.MaxAgeDays,
	})

	// Create the services shared by all mode processors
	// Modes add the actuator, detector and notifier they need
	// Data service
	dataSvc := data.NewFilesDB(cfgSvc)
	// Storage service
	storageSvc, err := newStorage(canxCtx, cfgSvc)
	if err != nil {
		lgr.Logger.Error("storage unavailable", slog.Any("error", err))
		panic("storage unavailable")
	}
	// Metrics service
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsSvc := metrics.NewProm(registry)
	// Annotated frame fan-out
	broadcaster := stream.NewBroadcaster(metricsSvc)

	svcs := pipeline.ServicesFactory{
		CfgSvc:      cfgSvc,
		DataSvc:     dataSvc,
		StorageSvc:  storageSvc,
		MetricsSvc:  metricsSvc,
		Broadcaster: broadcaster,
	}

	// Operational surface: /video, /snapshot, /healthz and /metrics
	serverErrors := make(chan interface{}, 1)
	var server *stream.Server
	if modeType != "episodes" {
		server = stream.NewServer(cfgSvc.GetStreamParameters().Addr, stream.NewRouter(broadcaster, registry))
		server.Start(serverErrors)
	}

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	// Wait for cancellation, mode proc or a server failure
	modeDone := false
	for !modeDone {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"fire suppression context cancelled",
			)
			modeDone = true

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Error(
					"mode processor exited",
					slog.String("mode", modeType),
					slog.Any("error", xerrors.New(err)),
				)
			}
			modeDone = true
			// The processor already returned, nothing more to wait for
			modeProcResult = nil

		case e := <-serverErrors:
			lgr.Logger.Error("stream server failed", slog.Any("error", e))
			modeDone = true
		}
	}

	// Cancel the context if not already cancelled
	if canxCtx.Err() == nil {
		// Force cancel the context
		canxFn()
	}

	lgr.Logger.Info(
		"fire suppression is waiting for the mode processor to exit",
	)

	// Bound the wait so a stuck stage cannot keep the process alive
	// WARNING: this has to be bigger than the mode processor shutdown budget
	waitOnShutdown := shutdown.Budget(cfgSvc.GetModeMaxShutdownTime()) + shutdown.Grace
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	if modeProcResult != nil {
		select {
		case <-timer.C:
			lgr.Logger.Warn(
				"shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Error(
					"mode processor exited",
					slog.Any("error", xerrors.New(err)),
				)
			}
		}
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(rootCtx, time.Duration(cfgSvc.GetModeMaxShutdownTime())*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Logger.Warn("stream server shutdown", slog.Any("error", err))
		}
	}

	lgr.Logger.Info("fire suppression exited")
}

func newStorage(ctx context.Context, cfgSvc config.IService) (storage.IService, error) {
	if cfgSvc.GetStorageParameters().Type == config.MinioStorageName {
		return storage.NewMinio(ctx, cfgSvc)
	}
	return storage.NewLocal(cfgSvc), nil
}
