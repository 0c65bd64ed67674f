package currency

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadFallbackRates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := []byte("EUR:\n  USD: 1.10\n  GBP: 0.85\nUSD:\n  EUR: 0.91\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	rates, err := LoadFallbackRates(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rates["EUR"]["USD"].Equal(decimal.RequireFromString("1.1")) {
		t.Fatalf("unexpected EUR/USD rate: %s", rates["EUR"]["USD"])
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 bases, got %d", len(rates))
	}
}

func TestLoadFallbackRates_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte(""), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFallbackRates(path); err == nil {
		t.Fatal("expected error for empty rates file")
	}
}

func TestLoadFallbackRates_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadFallbackRates(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
