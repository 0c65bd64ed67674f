// Package catalog loads the product seed file applied at startup.
package catalog

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/paycartapp/paycart/internal/models"
)

// Catalog is the on-disk product seed format. Product IDs are fixed in the
// file so reseeding is an upsert, never a duplicate insert.
type Catalog struct {
	Products []ProductEntry `yaml:"products"`
}

type ProductEntry struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Price  string `yaml:"price"`
	Active *bool  `yaml:"active"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &catalog, nil
}

// Resolve validates the catalog and converts it into product rows.
func (c *Catalog) Resolve() ([]models.Product, error) {
	if len(c.Products) == 0 {
		return nil, fmt.Errorf("at least one product is required")
	}

	seen := make(map[uuid.UUID]bool, len(c.Products))
	products := make([]models.Product, 0, len(c.Products))
	for i, entry := range c.Products {
		product, err := entry.toProduct()
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		if seen[product.ID] {
			return nil, fmt.Errorf("product %d: duplicate ID %s", i, product.ID)
		}
		seen[product.ID] = true
		products = append(products, product)
	}
	return products, nil
}

func (e ProductEntry) toProduct() (models.Product, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid product ID %q: %w", e.ID, err)
	}
	if e.Name == "" {
		return models.Product{}, fmt.Errorf("product name is required")
	}

	price, err := decimal.NewFromString(e.Price)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid price %q: %w", e.Price, err)
	}
	if price.IsNegative() {
		return models.Product{}, fmt.Errorf("price must be zero or positive")
	}

	active := true
	if e.Active != nil {
		active = *e.Active
	}

	return models.Product{
		ID:     id,
		Name:   e.Name,
		Price:  price,
		Active: active,
	}, nil
}

// Load reads, parses and validates a seed catalog file.
func Load(path string) ([]models.Product, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	catalog, err := NewParser().Parse(content)
	if err != nil {
		return nil, err
	}
	return catalog.Resolve()
}
