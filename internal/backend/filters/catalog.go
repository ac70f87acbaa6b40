package filters

import "fmt"

// intensity is the base strength the default catalog derives its values from.
const intensity = 0.7

// Config is the yaml shape of one catalog entry.
type Config struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:",inline"`
}

// Catalog is the fixed, ordered list of filters. The position of a
// definition is its identity; other components key on it.
type Catalog struct {
	definitions []Definition
}

// NewCatalog creates a catalog from already built definitions.
func NewCatalog(definitions []Definition) (*Catalog, error) {
	seen := make(map[string]bool, len(definitions))
	defs := make([]Definition, 0, len(definitions))
	for i, d := range definitions {
		if d.Name == "" {
			return nil, fmt.Errorf("filter at index %d has empty name", i)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate filter name: %s", d.Name)
		}
		seen[d.Name] = true
		defs = append(defs, d.clone())
	}
	return &Catalog{definitions: defs}, nil
}

// BuildCatalog creates definitions for configs through the registry, in order.
func BuildCatalog(registry *Registry, configs []Config) (*Catalog, error) {
	defs := make([]Definition, 0, len(configs))
	for i, cfg := range configs {
		def, err := registry.Create(cfg.Name, cfg.Kind, cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("filter at index %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	return NewCatalog(defs)
}

// DefaultConfigs lists the standard filters in their documented order:
// blur, instant, noir, transfer, unsharpen, monochrome, color controls,
// sepia, color clamp, composite and vignette.
func DefaultConfigs() []Config {
	return []Config{
		{Name: "blur", Kind: KindGaussianBlur},
		{Name: "instant", Kind: KindPhotoInstant},
		{Name: "noir", Kind: KindPhotoNoir},
		{Name: "transfer", Kind: KindPhotoTransfer},
		{Name: "unsharpen", Kind: KindUnsharpMask},
		{Name: "monochrome", Kind: KindMonochrome},
		{Name: "colorControls", Kind: KindColorControls, Params: map[string]any{"saturation": 0.5}},
		{Name: "sepia", Kind: KindSepia, Params: map[string]any{"intensity": intensity}},
		{Name: "colorClamp", Kind: KindColorClamp, Params: map[string]any{
			"minRed": 0.2, "minGreen": 0.2, "minBlue": 0.2,
			"maxRed": 0.9, "maxGreen": 0.9, "maxBlue": 0.9,
		}},
		{Name: "composite", Kind: KindHardLight, Params: map[string]any{"intensity": intensity}},
		{Name: "vignette", Kind: KindVignette, Params: map[string]any{
			"intensity": intensity * 2,
			"radius":    intensity * 30,
		}},
	}
}

// DefaultCatalog builds the standard eleven-filter catalog.
func DefaultCatalog() *Catalog {
	c, err := BuildCatalog(DefaultRegistry, DefaultConfigs())
	if err != nil {
		panic(fmt.Sprintf("default filter catalog is invalid: %v", err))
	}
	return c
}

// Count returns the number of filters.
func (c *Catalog) Count() int {
	return len(c.definitions)
}

// DefinitionAt returns the definition at index.
func (c *Catalog) DefinitionAt(index int) (Definition, error) {
	if index < 0 || index >= len(c.definitions) {
		return Definition{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, index, len(c.definitions))
	}
	return c.definitions[index].clone(), nil
}

// Definitions returns a copy of all definitions in catalog order.
func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, len(c.definitions))
	for i, d := range c.definitions {
		defs[i] = d.clone()
	}
	return defs
}
