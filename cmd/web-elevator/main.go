package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"go-sweep-elevator/pkg/config"
	"go-sweep-elevator/pkg/elevator"
	"go-sweep-elevator/pkg/scheduler"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env", ".env", "Path to .env file (ignored if missing)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatal(err)
	}
	level, _ := cfg.Level()
	initLogger(os.Stdout, level)

	if err := run(cfg); err != nil {
		slog.Error("Elevator service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	car, err := elevator.New(cfg.ElevatorConfig())
	if err != nil {
		return err
	}
	sched, err := scheduler.New(car, cfg.TickInterval)
	if err != nil {
		return err
	}

	h := newHub()
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newServer(car, h).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		return h.run(ctx, car.Events())
	})
	g.Go(func() error {
		slog.Info("Starting elevator web server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		slog.Info("Elevator service stopped", "floor", car.CurrentFloor(), "dropped_events", car.DroppedEventCount())
		return nil
	}
	return err
}
