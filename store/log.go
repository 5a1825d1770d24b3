package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// WrittenLog is an append-only list of game IDs whose rows are already on
// disk, one ID per line. It is loaded into memory on open and fsynced on every
// append. A torn final line from a crash is just an unknown ID and is ignored.
type WrittenLog struct {
	mu   sync.RWMutex
	file *os.File
	ids  map[string]struct{}
}

func OpenWrittenLog(path string) (*WrittenLog, error) {
	if path == "" {
		return nil, errors.New("log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	ids := make(map[string]struct{})
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return &WrittenLog{file: file, ids: ids}, nil
}

func (l *WrittenLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *WrittenLog) Has(gameID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[gameID]
	return ok
}

func (l *WrittenLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// Snapshot returns a copy of the known IDs.
func (l *WrittenLog) Snapshot() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m := make(map[string]bool, len(l.ids))
	for id := range l.ids {
		m[id] = true
	}
	return m
}

// AddMany appends the IDs not yet present and syncs once. Empty IDs are
// skipped.
func (l *WrittenLog) AddMany(gameIDs ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("log file is closed")
	}

	var sb strings.Builder
	fresh := make([]string, 0, len(gameIDs))
	for _, id := range gameIDs {
		if id == "" {
			continue
		}
		if _, ok := l.ids[id]; ok {
			continue
		}
		sb.WriteString(id)
		sb.WriteByte('\n')
		fresh = append(fresh, id)
		l.ids[id] = struct{}{}
	}
	if len(fresh) == 0 {
		return nil
	}

	if _, err := l.file.WriteString(sb.String()); err != nil {
		for _, id := range fresh {
			delete(l.ids, id)
		}
		return fmt.Errorf("append log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}
