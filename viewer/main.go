// Command viewer summarises recorded engine decisions: how often the engine
// fell back, how deep it searched, and how often replayed decisions agreed
// with the move that was actually played.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/brensch/minisnek/logging"
)

func main() {
	dataDirs := flag.String("data-dirs", getEnvOrDefault("DATA_DIRS", strings.Join(defaultDataDirs(), ",")), "Comma-separated directories of decision parquet batches")
	listen := flag.String("listen", getEnvOrDefault("LISTEN", ""), "Serve the report as JSON on this address instead of printing it")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	logFormat := flag.String("log-format", getEnvOrDefault("LOG_FORMAT", "text"), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	log, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	roots := parseDataRoots(*dataDirs)

	if *listen != "" {
		if err := serve(*listen, roots, log); err != nil {
			log.Error("viewer stopped", "err", err)
			os.Exit(1)
		}
		return
	}

	rep, err := loadReport(context.Background(), roots)
	if err != nil {
		log.Error("build report", "roots", roots, "err", err)
		os.Exit(1)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
		return
	}
	printReport(os.Stdout, rep)
}

func loadReport(ctx context.Context, roots []string) (Report, error) {
	db, err := openDuckDB(roots)
	if err != nil {
		return Report{}, err
	}
	defer db.Close()
	return buildReport(ctx, db)
}

func serve(addr string, roots []string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/report", func(w http.ResponseWriter, r *http.Request) {
		withCORS(w, r)
		start := time.Now()
		rep, err := loadReport(r.Context(), roots)
		if err != nil {
			log.Error("build report", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Debug("report served", "elapsed", time.Since(start))
		writeJSON(w, rep)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
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

	log.Info("viewer listening", "addr", addr, "roots", roots)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func printReport(w io.Writer, rep Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tGAMES\tDECISIONS\tRANDOM\tDEFAULT\tWINS\tLOSSES\tAVG DEPTH\tAVG NODES\tP95 US\tAGREEMENT")
	for _, s := range rep.Sources {
		agreement := "-"
		if s.Compared > 0 {
			agreement = fmt.Sprintf("%.1f%% of %d", 100*s.Agreement(), s.Compared)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.0f\t%.0f\t%s\n",
			s.Source, s.Games, s.Decisions, s.Random, s.Default, s.Wins, s.Losses,
			s.AvgDepth, s.AvgNodes, s.P95Elapsed, agreement)
	}
	_ = tw.Flush()

	if len(rep.Snakes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(tw, "SNAKE\tCOMPARED\tAGREED")
		for _, s := range rep.Snakes {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", s.SnakeID, s.Compared, s.Agreed)
		}
		_ = tw.Flush()
	}

	if len(rep.Depths) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(tw, "DEPTH\tDECISIONS\tAVG NODES")
		for _, d := range rep.Depths {
			fmt.Fprintf(tw, "%d\t%d\t%.0f\n", d.Depth, d.Decisions, d.AvgNodes)
		}
		_ = tw.Flush()
	}
}

func defaultDataDirs() []string {
	preferred := []string{
		filepath.Join("data", "selfplay"),
		filepath.Join("data", "replay"),
		filepath.Join("data", "server"),
	}
	out := make([]string, 0, len(preferred))
	for _, p := range preferred {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func parseDataRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func withCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
