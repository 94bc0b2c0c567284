// Package catalog loads the local asset catalog used to pick sample tokens.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

// ErrEmpty reports a catalog without any entry carrying an asset id.
var ErrEmpty = errors.New("catalog has no entries with an asset id")

// Entry is one catalog row. AssetID is nil for tokens that never resolved.
type Entry struct {
	ContractAddress string  `json:"contractAddress"`
	TokenID         string  `json:"tokenId"`
	AssetID         *string `json:"assetId"`
}

// Catalog holds the entries that can be offered to callers.
type Catalog struct {
	entries []Entry
	usable  []Entry
}

// Load reads a JSON array of entries from path.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog JSON.
func Parse(data []byte) (*Catalog, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(entries), nil
}

// New builds a catalog from entries.
func New(entries []Entry) *Catalog {
	c := &Catalog{entries: entries}
	for _, entry := range entries {
		if entry.AssetID == nil {
			continue
		}
		if strings.TrimSpace(entry.ContractAddress) == "" || strings.TrimSpace(entry.TokenID) == "" {
			continue
		}
		c.usable = append(c.usable, entry)
	}
	return c
}

// Len reports the total and usable entry counts.
func (c *Catalog) Len() (total, usable int) {
	return len(c.entries), len(c.usable)
}

// Random picks uniformly among entries with a non-null asset id. A nil rng
// uses the global source.
func (c *Catalog) Random(rng *rand.Rand) (Entry, error) {
	if len(c.usable) == 0 {
		return Entry{}, ErrEmpty
	}
	var idx int
	if rng != nil {
		idx = rng.IntN(len(c.usable))
	} else {
		idx = rand.IntN(len(c.usable))
	}
	return c.usable[idx], nil
}
