package offer

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Query selects offers for a race attempt.
type Query struct {
	// Locations restricts offers to these location tags. Empty means any.
	Locations []string
	// Tier is the performance tier. Empty means any.
	Tier string
}

// Catalog supplies ranked offers. Implementations are queried once per race
// attempt; results are not cached by callers.
type Catalog interface {
	Offers(ctx context.Context, q Query) ([]Offer, error)
}

// CatalogFunc adapts a function to the Catalog interface.
type CatalogFunc func(ctx context.Context, q Query) ([]Offer, error)

// Offers implements Catalog.
func (f CatalogFunc) Offers(ctx context.Context, q Query) ([]Offer, error) {
	return f(ctx, q)
}

// catalogEntry is one offer in a static catalog file, tagged with its tier.
type catalogEntry struct {
	Offer `yaml:",inline"`
	Tier  string `yaml:"tier"`
}

type catalogFile struct {
	Offers []catalogEntry `yaml:"offers"`
}

// StaticCatalog serves offers from an in-memory list, typically loaded from YAML.
type StaticCatalog struct {
	entries []catalogEntry
}

// NewStaticCatalog builds a catalog where every offer belongs to tier.
func NewStaticCatalog(tier string, offers ...Offer) *StaticCatalog {
	c := &StaticCatalog{}
	for _, o := range offers {
		c.entries = append(c.entries, catalogEntry{Offer: o, Tier: tier})
	}
	return c
}

// LoadStaticCatalog reads a YAML catalog file.
//
//	offers:
//	  - id: "1"
//	    gpu_name: RTX4090
//	    num_gpus: 1
//	    hourly_price: 0.35
//	    verified: true
//	    reliability: 98.5
//	    location: us-east
//	    tier: performance
func LoadStaticCatalog(path string) (*StaticCatalog, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read offer catalog: %w", err)
	}
	return ParseStaticCatalog(data)
}

// ParseStaticCatalog parses YAML catalog data.
func ParseStaticCatalog(data []byte) (*StaticCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse offer catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.Offers))
	for i, e := range f.Offers {
		if e.ID == "" {
			return nil, fmt.Errorf("offer %d: id is required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("offer %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
	}
	return &StaticCatalog{entries: f.Offers}, nil
}

// Offers implements Catalog. Order follows the file.
func (c *StaticCatalog) Offers(ctx context.Context, q Query) ([]Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Offer
	for _, e := range c.entries {
		if q.Tier != "" && e.Tier != q.Tier {
			continue
		}
		if len(q.Locations) > 0 && !slices.Contains(q.Locations, e.Location) {
			continue
		}
		out = append(out, e.Offer)
	}
	return out, nil
}

// Len returns the number of offers in the catalog, across all tiers.
func (c *StaticCatalog) Len() int {
	return len(c.entries)
}
