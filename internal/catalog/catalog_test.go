package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const validCatalogYAML = `
products:
  - id: "61c2b8a0-9d1e-4a7b-8f3c-2e5d6a7b8c9d"
    name: "Widget"
    price: "12.50"
  - id: "72d3c9b1-ae2f-4b8c-9a4d-3f6e7b8c9d0e"
    name: "Gadget"
    price: "0.99"
    active: false
`

func TestParseAndResolve(t *testing.T) {
	t.Parallel()

	catalog, err := NewParser().Parse([]byte(validCatalogYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	products, err := catalog.Resolve()
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}

	if products[0].Name != "Widget" {
		t.Errorf("expected Widget, got %q", products[0].Name)
	}
	if !products[0].Price.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("expected price 12.50, got %s", products[0].Price)
	}
	if !products[0].Active {
		t.Error("expected active to default to true")
	}
	if products[1].Active {
		t.Error("expected explicit active: false to be honored")
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty catalog",
			yaml:    `products: []`,
			wantErr: "at least one product",
		},
		{
			name: "invalid product ID",
			yaml: `
products:
  - id: "not-a-uuid"
    name: "Widget"
    price: "1.00"
`,
			wantErr: "invalid product ID",
		},
		{
			name: "missing name",
			yaml: `
products:
  - id: "61c2b8a0-9d1e-4a7b-8f3c-2e5d6a7b8c9d"
    price: "1.00"
`,
			wantErr: "name is required",
		},
		{
			name: "unparseable price",
			yaml: `
products:
  - id: "61c2b8a0-9d1e-4a7b-8f3c-2e5d6a7b8c9d"
    name: "Widget"
    price: "free"
`,
			wantErr: "invalid price",
		},
		{
			name: "negative price",
			yaml: `
products:
  - id: "61c2b8a0-9d1e-4a7b-8f3c-2e5d6a7b8c9d"
    name: "Widget"
    price: "-1.00"
`,
			wantErr: "zero or positive",
		},
		{
			name: "duplicate IDs",
			yaml: `
products:
  - id: "61c2b8a0-9d1e-4a7b-8f3c-2e5d6a7b8c9d"
    name: "Widget"
    price: "1.00"
  - id: "61c2b8a0-9d1e-4a7b-8f3c-2e5d6a7b8c9d"
    name: "Widget Again"
    price: "2.00"
`,
			wantErr: "duplicate ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			catalog, err := NewParser().Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}

			_, err = catalog.Resolve()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	t.Parallel()

	if _, err := NewParser().Parse([]byte("products: [id: ")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(validCatalogYAML), 0o600); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}

	products, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
