package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/danielhkuo/gamenight/auth"
	"github.com/danielhkuo/gamenight/cliparse"
	"github.com/danielhkuo/gamenight/clock"
	"github.com/danielhkuo/gamenight/db"
	"github.com/danielhkuo/gamenight/lifecycle"
	"github.com/danielhkuo/gamenight/middleware"
	"github.com/danielhkuo/gamenight/nomination"
	"github.com/danielhkuo/gamenight/notify"
	"github.com/danielhkuo/gamenight/router"
	"github.com/danielhkuo/gamenight/runoff"
	"github.com/danielhkuo/gamenight/scheduler"
	"github.com/danielhkuo/gamenight/store"
)

func main() {
	slog.SetDefault(newLogger())

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "adminkey" {
		os.Exit(printAdminKey(args[1:]))
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// newLogger uses the text handler on a terminal and JSON otherwise.
func newLogger() *slog.Logger {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

// printAdminKey prints the admin key for a participant:
//
//	gamenight adminkey <participant-id>
func printAdminKey(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gamenight adminkey <participant-id> [flags]")
		return 2
	}
	cfg, err := cliparse.ParseFlags(args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		return 1
	}
	id, err := auth.NormalizeParticipantID(args[0])
	if err != nil {
		slog.Error("invalid participant id", "error", err)
		return 1
	}
	fmt.Println(auth.GenerateAdminKey(id, cfg.AdminKeySalt))
	return 0
}

func run(cfg cliparse.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	conn, dialect, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.CreateSchema(ctx, conn, dialect); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	slog.Info("Database schema ready", "type", dialect.Name)

	// Validated by ParseFlags.
	schedule, _ := cfg.SchedulerConfig()
	policy, _ := cfg.DeadlinePolicy()

	var sink notify.Sink = notify.LogSink{Logger: logger}
	if cfg.WebhookURL != "" {
		webhook := notify.WebhookSink{URL: cfg.WebhookURL, Client: &http.Client{Timeout: 10 * time.Second}}
		sink = notify.Fanout{webhook, sink}
	}

	clk := clock.Real()
	st := store.New(conn, dialect, logger)
	events := notify.NewDispatcher(sink, logger)
	pool := nomination.New(st, clk, cfg.Limits.NominationsPerParticipant, logger)
	coord := runoff.New(st, events, policy, clk, logger)
	mgr := lifecycle.New(st, pool, coord, events, clk, cfg.LifecycleConfig(), logger)

	sched := scheduler.New(st, mgr, coord, clk, schedule, logger)
	coord.SetScheduler(sched)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}
	defer sched.Stop()

	server := http.Server{
		Handler: middleware.CORS(router.NewRouter(mgr, cfg)),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	go func() {
		// Wait for Ctrl-C signal
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	slog.Info("Server closed", "notification_failures", events.Failures())
	return nil
}
