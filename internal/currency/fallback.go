package currency

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultFallbackRates returns the built-in approximate rate table used when
// the live provider is unreachable. Values are deliberately coarse; they
// only keep currency display working during provider outages.
func DefaultFallbackRates() map[string]map[string]decimal.Decimal {
	return parseRateTable(map[string]map[string]float64{
		"EUR": {
			"USD": 1.08, "GBP": 0.86, "CHF": 0.94, "JPY": 163.0,
			"SEK": 11.3, "NOK": 11.6, "DKK": 7.46, "CAD": 1.47, "AUD": 1.64,
		},
		"USD": {
			"EUR": 0.93, "GBP": 0.79, "CHF": 0.87, "JPY": 151.0,
			"CAD": 1.36, "AUD": 1.52,
		},
		"GBP": {
			"EUR": 1.17, "USD": 1.27,
		},
	})
}

// LoadFallbackRates reads a YAML rate table, e.g.:
//
//	EUR:
//	  USD: 1.08
//	  GBP: 0.86
func LoadFallbackRates(path string) (map[string]map[string]decimal.Decimal, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback rates file: %w", err)
	}

	var table map[string]map[string]float64
	if err := yaml.Unmarshal(content, &table); err != nil {
		return nil, fmt.Errorf("failed to parse fallback rates file: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("fallback rates file %s is empty", path)
	}

	return parseRateTable(table), nil
}

func parseRateTable(table map[string]map[string]float64) map[string]map[string]decimal.Decimal {
	parsed := make(map[string]map[string]decimal.Decimal, len(table))
	for base, rates := range table {
		converted := make(map[string]decimal.Decimal, len(rates))
		for code, rate := range rates {
			converted[code] = decimal.NewFromFloat(rate)
		}
		parsed[base] = converted
	}
	return parsed
}
