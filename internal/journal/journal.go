// Package journal appends scan results to a zstd-compressed history file,
// one compressed JSON frame per scan. Frames are independent, so a tail of
// the file is always readable and a crash loses at most one scan.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/contactkeval/roll-monitor/internal/cache"
	"github.com/contactkeval/roll-monitor/internal/roll"
)

// Entry is one journaled scan.
type Entry struct {
	ScanID     string        `json:"scan_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Reports    []roll.Report `json:"reports"`
	CacheStats cache.Stats   `json:"cache_stats"`
}

// Writer appends entries to a journal file.
type Writer struct {
	path string
}

// NewWriter creates the journal directory if needed.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Writer{path: path}, nil
}

// Append records one scan and returns its generated scan ID.
func (w *Writer) Append(reports []roll.Report, stats cache.Stats) (string, error) {
	e := Entry{
		ScanID:     uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Reports:    reports,
		CacheStats: stats,
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	var frame bytes.Buffer
	enc, err := zstd.NewWriter(&frame)
	if err != nil {
		return "", fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return "", fmt.Errorf("compress entry: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("flush frame: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(frame.Bytes()); err != nil {
		return "", fmt.Errorf("append journal: %w", err)
	}
	return e.ScanID, nil
}

// Read decodes every entry in a journal file. zstd frames are
// self-delimiting, so the whole file decodes as one stream of
// concatenated JSON documents.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var out []Entry
	jd := json.NewDecoder(dec)
	for {
		var e Entry
		if err := jd.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
