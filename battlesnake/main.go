// Command battlesnake serves the engine over the Battlesnake webhook API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/minisnek/logging"
	"github.com/brensch/minisnek/search"
	"github.com/brensch/minisnek/store"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", getEnvOrDefault("LISTEN", ":8080"), "HTTP listen address")
	searchConfig := fs.String("search-config", getEnvOrDefault("SEARCH_CONFIG", ""), "YAML file with search settings")
	depth := fs.Int("depth", 0, "Override search depth")
	parallel := fs.Bool("parallel", false, "Search root moves in parallel")
	moveTimeout := fs.Duration("move-timeout", getEnvDurationOrDefault("MOVE_TIMEOUT", 500*time.Millisecond), "Move timeout when the request carries none")
	latency := fs.Duration("latency-reserve", getEnvDurationOrDefault("LATENCY_RESERVE", 200*time.Millisecond), "Time kept back from each move for network and encoding")
	recordDir := fs.String("record-dir", getEnvOrDefault("RECORD_DIR", ""), "If set, write every decision to parquet batches here")
	logFormat := fs.String("log-format", getEnvOrDefault("LOG_FORMAT", "text"), "Log format: text, json or pretty")
	logLevel := fs.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	log, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := search.LoadConfig(*searchConfig)
	if err != nil {
		log.Error("load search config", "err", err)
		os.Exit(1)
	}
	if *depth > 0 {
		cfg.Depth = *depth
	}
	// Flags only ever switch parallel search on.
	cfg.Parallel = cfg.Parallel || *parallel

	var rec *store.Recorder
	if *recordDir != "" {
		rec = store.NewRecorder(*recordDir, 1000, time.Minute, log)
		defer rec.Close()
	}

	server := NewServer(cfg, *moveTimeout, *latency, log, rec)
	srv := &http.Server{
		Addr:              *listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("battlesnake server listening",
		"addr", *listen,
		"depth", cfg.Depth,
		"parallel", cfg.Parallel,
		"recording", *recordDir != "",
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "err", err)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
