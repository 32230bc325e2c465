package personality

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog exposes profile lookup to the bot engine.
type Catalog interface {
	List() []Profile
	Find(mode Mode) (Profile, bool)
}

// MemoryCatalog implements Catalog with an in-memory slice.
type MemoryCatalog struct {
	items []Profile
}

// NewMemoryCatalog returns a MemoryCatalog preloaded with the supplied profiles.
func NewMemoryCatalog(items []Profile) *MemoryCatalog {
	return &MemoryCatalog{items: append([]Profile(nil), items...)}
}

// List returns the profiles in display order.
func (c *MemoryCatalog) List() []Profile {
	return append([]Profile(nil), c.items...)
}

// Find looks up a profile by mode.
func (c *MemoryCatalog) Find(mode Mode) (Profile, bool) {
	for _, item := range c.items {
		if item.Mode == mode {
			return item, true
		}
	}
	return Profile{}, false
}

// Names joins the known mode names for help and error text.
func Names(c Catalog) string {
	profiles := c.List()
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, string(p.Mode))
	}
	return strings.Join(names, ", ")
}

// ApplyOverrides patches profiles from a YAML document keyed by mode name:
//
//	funny:
//	  temperature: 1.0
//	  maxTokens: 150
//
// Unknown modes are rejected. Zero values keep the built-in setting.
func ApplyOverrides(items []Profile, doc []byte) ([]Profile, error) {
	var overrides map[string]Profile
	if err := yaml.Unmarshal(doc, &overrides); err != nil {
		return nil, fmt.Errorf("parse personality overrides: %w", err)
	}

	out := append([]Profile(nil), items...)
	for name, override := range overrides {
		mode, ok := ParseMode(name)
		if !ok {
			return nil, fmt.Errorf("unknown personality %q in overrides", name)
		}
		if override.Temperature < 0 || override.Temperature > 2 {
			return nil, fmt.Errorf("personality %s: temperature %.2f out of range", name, override.Temperature)
		}
		if override.MaxTokens < 0 {
			return nil, fmt.Errorf("personality %s: maxTokens must not be negative", name)
		}

		for i := range out {
			if out[i].Mode != mode {
				continue
			}
			if p := strings.TrimSpace(override.Prompt); p != "" {
				out[i].Prompt = p
			}
			if override.Temperature > 0 {
				out[i].Temperature = override.Temperature
			}
			if override.MaxTokens > 0 {
				out[i].MaxTokens = override.MaxTokens
			}
			if override.Emoji != "" {
				out[i].Emoji = override.Emoji
			}
		}
	}
	return out, nil
}

// LoadCatalog builds the catalog from the seed, applying the override file when path is set.
func LoadCatalog(path string) (*MemoryCatalog, error) {
	items := Seed()
	if path == "" {
		return NewMemoryCatalog(items), nil
	}

	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personality file: %w", err)
	}

	items, err = ApplyOverrides(items, doc)
	if err != nil {
		return nil, err
	}
	return NewMemoryCatalog(items), nil
}
