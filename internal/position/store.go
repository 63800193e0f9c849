// Package position persists positions as a JSON state file, letting the
// monitor run against a hand-maintained book when no portfolio access is
// available (or when replaying a past session).
package position

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/contactkeval/roll-monitor/internal/data"
)

// File is the on-disk shape of a positions file.
type File struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Positions []data.Position `json:"positions"`
}

// Load reads a positions file. A missing file is not an error; it yields
// an empty book.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("read positions: %w", err)
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}

	for i, p := range f.Positions {
		if p.Symbol == "" || p.Strike <= 0 || p.Expiry == "" {
			return nil, fmt.Errorf("positions[%d]: symbol, strike and expiry are required", i)
		}
		if p.Contracts <= 0 {
			f.Positions[i].Contracts = 1
		}
	}
	return &f, nil
}

// Save writes the book back, creating parent directories as needed.
func Save(path string, f *File) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create positions dir: %w", err)
	}

	f.UpdatedAt = time.Now().UTC()

	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

// FileProvider adapts a positions file plus a live market-data provider
// into a data.Provider: the book comes from disk while quotes, chains and
// spot come from the wrapped provider.
type FileProvider struct {
	data.Provider
	Path string
}

// Positions loads the book from disk, refreshing marks and deltas from
// the wrapped provider when they are missing.
func (fp *FileProvider) Positions() ([]data.Position, error) {
	f, err := Load(fp.Path)
	if err != nil {
		return nil, err
	}

	for i := range f.Positions {
		p := &f.Positions[i]
		if p.CurrentMark != nil && p.CurrentDelta != nil {
			continue
		}
		snap, err := fp.Provider.OptionQuote(p.Symbol, p.Expiry, p.Strike, data.RightCall)
		if err != nil {
			continue
		}
		if p.CurrentMark == nil && snap.Mark > 0 {
			mark := snap.Mark
			p.CurrentMark = &mark
		}
		if p.CurrentDelta == nil {
			p.CurrentDelta = snap.Delta
		}
	}
	return f.Positions, nil
}
