package store

import (
	"log/slog"
	"sync"
	"time"
)

// Recorder buffers decision rows from many goroutines and flushes them to
// parquet batches from a single writer goroutine.
type Recorder struct {
	outDir     string
	flushRows  int
	flushEvery time.Duration
	log        *slog.Logger

	in   chan []DecisionRow
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	written []string
}

func NewRecorder(outDir string, flushRows int, flushEvery time.Duration, log *slog.Logger) *Recorder {
	if flushRows <= 0 {
		flushRows = 1000
	}
	if flushEvery <= 0 {
		flushEvery = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		outDir:     outDir,
		flushRows:  flushRows,
		flushEvery: flushEvery,
		log:        log,
		in:         make(chan []DecisionRow, 256),
		done:       make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record queues rows. It blocks if the writer has fallen far behind and must
// not be called after Close.
func (r *Recorder) Record(rows ...DecisionRow) {
	if len(rows) == 0 {
		return
	}
	r.in <- rows
}

// Close flushes everything queued and waits for the writer to finish.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.in) })
	<-r.done
}

// Files lists the batches written so far.
func (r *Recorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.written...)
}

func (r *Recorder) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	pending := make([]DecisionRow, 0, r.flushRows)
	flush := func(reason string) {
		if len(pending) == 0 {
			return
		}
		path, err := WriteBatchParquetAtomic(r.outDir, pending)
		if err != nil {
			r.log.Error("parquet flush failed", "reason", reason, "rows", len(pending), "err", err)
			return
		}
		r.log.Info("parquet flush ok", "reason", reason, "rows", len(pending), "path", path)
		r.mu.Lock()
		r.written = append(r.written, path)
		r.mu.Unlock()
		pending = pending[:0]
	}

	for {
		select {
		case rows, ok := <-r.in:
			if !ok {
				flush("final")
				return
			}
			pending = append(pending, rows...)
			if len(pending) >= r.flushRows {
				flush("count")
			}
		case <-ticker.C:
			flush("ticker")
		}
	}
}
