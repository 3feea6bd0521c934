// Package app wires the clinic server together: configuration, the
// logging router, the hub and its tick loop, the background reporter, and
// the HTTP surface.
package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	server "klinik-hewan/server"
	"klinik-hewan/server/internal/config"
	servernet "klinik-hewan/server/internal/net"
	"klinik-hewan/server/internal/observability"
	"klinik-hewan/server/internal/scheduler"
	"klinik-hewan/server/logging"
	loggingclinic "klinik-hewan/server/logging/clinic"
	loggingsinks "klinik-hewan/server/logging/sinks"
)

func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = cfg.LogSinks

	namedSinks := make([]logging.NamedSink, 0, len(cfg.LogSinks))
	var logFile *os.File
	for _, name := range cfg.LogSinks {
		switch name {
		case "console":
			namedSinks = append(namedSinks, logging.NamedSink{
				Name: "console",
				Sink: loggingsinks.NewConsoleSink(os.Stdout, logConfig.Console),
			})
		case "json":
			logFile, err = os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			namedSinks = append(namedSinks, logging.NamedSink{
				Name: "json",
				Sink: loggingsinks.NewJSONSink(logFile, logConfig.JSON.FlushInterval),
			})
		}
	}
	namedSinks = append(namedSinks, logging.NamedSink{
		Name: "metrics",
		Sink: observability.NewMetricsSink(),
	})
	logConfig.EnabledSinks = append(logConfig.EnabledSinks, "metrics")

	router, err := logging.NewRouter(logging.ClockFunc(time.Now), logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			log.Printf("failed to close logging router: %v", cerr)
		}
		if logFile != nil {
			logFile.Close()
		}
	}()

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	hub := server.NewHub(server.ClinicConfig{
		SpawnDelayMin: cfg.SpawnDelayMin,
		SpawnDelayMax: cfg.SpawnDelayMax,
	}, router, rng)

	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	jobs := scheduler.New()
	if err := jobs.Every(cfg.ReportInterval, func() {
		snapshot := hub.ClinicSnapshot()
		telemetry := hub.Telemetry()
		loggingclinic.Report(context.Background(), router, snapshot.Tick, loggingclinic.ClinicReportPayload{
			PatientsAdmitted: telemetry.PatientsAdmitted,
			PatientsTreated:  telemetry.PatientsTreated,
			ExamsResolved:    telemetry.ExamsResolved,
			Waiting:          len(snapshot.WaitingIDs),
			Open:             snapshot.IsOpen,
		})
	}); err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop()

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Logger:            log.Default(),
		JoinRatePerSecond: cfg.JoinRatePerSecond,
		JoinBurst:         cfg.JoinBurst,
		Observability:     observability.Config{EnablePprof: cfg.EnableDebugEndpoint},
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	log.Printf("clinic server listening on %s (env=%s)", cfg.Addr, cfg.Env)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
