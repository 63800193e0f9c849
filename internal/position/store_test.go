package position

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/contactkeval/roll-monitor/internal/data"
)

func fp(v float64) *float64 { return &v }

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "positions.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadMissingFileYieldsEmptyBook(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(f.Positions) != 0 {
		t.Fatalf("expected empty book, got %d positions", len(f.Positions))
	}
}

func TestLoadValidatesRequiredFields(t *testing.T) {
	path := writeFile(t, `{"positions":[{"symbol":"","strike":450,"expiry":"20260918"}]}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("empty symbol should be rejected")
	}

	path = writeFile(t, `{"positions":[{"symbol":"SPY","strike":0,"expiry":"20260918"}]}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("zero strike should be rejected")
	}
}

func TestLoadDefaultsContracts(t *testing.T) {
	path := writeFile(t, `{"positions":[{"symbol":"SPY","strike":450,"expiry":"20260918"}]}`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if f.Positions[0].Contracts != 1 {
		t.Fatalf("contracts should default to 1, got %d", f.Positions[0].Contracts)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeFile(t, `{"positions": [`)
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed JSON should be rejected")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book", "positions.json")
	book := &File{Positions: []data.Position{
		{Symbol: "SPY", Strike: 450, Expiry: "20260918", Contracts: 2, EntryCredit: 2.10},
	}}

	if err := Save(path, book); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if book.UpdatedAt.IsZero() {
		t.Fatalf("save should stamp UpdatedAt")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(got.Positions) != 1 || got.Positions[0].Strike != 450 {
		t.Fatalf("round trip lost the position: %+v", got.Positions)
	}
}

// quoteOnlyProvider serves quotes and fails everything else.
type quoteOnlyProvider struct {
	snap data.QuoteSnapshot
	err  error
}

func (p *quoteOnlyProvider) SpotPrice(string) (float64, error)      { return 0, errors.New("unused") }
func (p *quoteOnlyProvider) Expiries(string) ([]string, error)      { return nil, errors.New("unused") }
func (p *quoteOnlyProvider) Strikes(string, string) ([]float64, error) {
	return nil, errors.New("unused")
}
func (p *quoteOnlyProvider) Positions() ([]data.Position, error) { return nil, errors.New("unused") }
func (p *quoteOnlyProvider) OptionQuote(string, string, float64, data.Right) (data.QuoteSnapshot, error) {
	return p.snap, p.err
}

func TestFileProviderRefreshesMissingMarks(t *testing.T) {
	path := writeFile(t, `{"positions":[{"symbol":"SPY","strike":450,"expiry":"20260918"}]}`)
	prov := &FileProvider{
		Provider: &quoteOnlyProvider{snap: data.QuoteSnapshot{Mark: 1.25, Delta: fp(0.09)}},
		Path:     path,
	}

	positions, err := prov.Positions()
	if err != nil {
		t.Fatalf("positions failed: %v", err)
	}
	pos := positions[0]
	if pos.CurrentMark == nil || *pos.CurrentMark != 1.25 {
		t.Fatalf("mark should be refreshed from quotes: %v", pos.CurrentMark)
	}
	if pos.CurrentDelta == nil || *pos.CurrentDelta != 0.09 {
		t.Fatalf("delta should be refreshed from quotes: %v", pos.CurrentDelta)
	}
}

func TestFileProviderKeepsExplicitMarks(t *testing.T) {
	path := writeFile(t, `{"positions":[
		{"symbol":"SPY","strike":450,"expiry":"20260918","current_mark":0.80,"current_delta":-0.03}
	]}`)
	prov := &FileProvider{
		Provider: &quoteOnlyProvider{snap: data.QuoteSnapshot{Mark: 9.99, Delta: fp(0.50)}},
		Path:     path,
	}

	positions, err := prov.Positions()
	if err != nil {
		t.Fatalf("positions failed: %v", err)
	}
	if *positions[0].CurrentMark != 0.80 {
		t.Fatalf("book values must win over live quotes: %v", *positions[0].CurrentMark)
	}
}

func TestFileProviderSurvivesQuoteFailure(t *testing.T) {
	path := writeFile(t, `{"positions":[{"symbol":"SPY","strike":450,"expiry":"20260918"}]}`)
	prov := &FileProvider{
		Provider: &quoteOnlyProvider{err: errors.New("gateway down")},
		Path:     path,
	}

	positions, err := prov.Positions()
	if err != nil {
		t.Fatalf("quote failure must not fail the load: %v", err)
	}
	if positions[0].CurrentMark != nil {
		t.Fatalf("mark should stay missing when the refresh fails")
	}
}
