package filters

import (
	"fmt"
	"sort"
)

// Factory builds a Definition of one kind from configuration parameters.
type Factory func(name string, params map[string]any) (Definition, error)

// Registry maps filter kinds to the factories that build their definitions.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for the given kind.
func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("filter kind cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("filter factory cannot be nil")
	}
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("filter kind %s is already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Create builds a definition of the given kind.
func (r *Registry) Create(name, kind string, params map[string]any) (Definition, error) {
	factory, exists := r.factories[kind]
	if !exists {
		return Definition{}, fmt.Errorf("unknown filter kind: %s", kind)
	}

	def, err := factory(name, params)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to create filter %s (%s): %w", name, kind, err)
	}
	return def, nil
}

// IsRegistered reports whether a factory exists for kind.
func (r *Registry) IsRegistered(kind string) bool {
	_, exists := r.factories[kind]
	return exists
}

// RegisteredKinds returns all registered kinds in sorted order.
func (r *Registry) RegisteredKinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultRegistry knows every kind the imaging engine implements.
var DefaultRegistry = newDefaultRegistry()

// specFactory returns a factory that resolves params against specs.
func specFactory(kind string, specs []paramSpec, check func([]Param) error) Factory {
	return func(name string, params map[string]any) (Definition, error) {
		resolved, err := resolveParams(kind, params, specs)
		if err != nil {
			return Definition{}, err
		}
		if check != nil {
			if err := check(resolved); err != nil {
				return Definition{}, err
			}
		}
		return Definition{Name: name, Kind: kind, Params: resolved}, nil
	}
}

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	unit := func(name string, fallback float64) paramSpec {
		return paramSpec{name: name, fallback: fallback, min: 0, max: 1}
	}

	kinds := []struct {
		kind  string
		specs []paramSpec
		check func([]Param) error
	}{
		{KindGaussianBlur, []paramSpec{{name: "radius", fallback: 10, min: 0, max: 100}}, nil},
		{KindPhotoInstant, nil, nil},
		{KindPhotoNoir, nil, nil},
		{KindPhotoTransfer, nil, nil},
		{KindUnsharpMask, []paramSpec{
			{name: "radius", fallback: 2.5, min: 0, max: 100},
			{name: "intensity", fallback: 0.5, min: 0, max: 10},
		}, nil},
		{KindMonochrome, []paramSpec{
			unit("red", 0.6), unit("green", 0.45), unit("blue", 0.3), unit("intensity", 1),
		}, nil},
		{KindColorControls, []paramSpec{
			{name: "saturation", fallback: 1, min: 0, max: 2},
			{name: "brightness", fallback: 0, min: -1, max: 1},
			{name: "contrast", fallback: 1, min: 0.25, max: 4},
		}, nil},
		{KindSepia, []paramSpec{unit("intensity", 1)}, nil},
		{KindColorClamp, []paramSpec{
			unit("minRed", 0), unit("minGreen", 0), unit("minBlue", 0),
			unit("maxRed", 1), unit("maxGreen", 1), unit("maxBlue", 1),
		}, checkClampBounds},
		{KindHardLight, []paramSpec{unit("intensity", 1)}, nil},
		{KindVignette, []paramSpec{
			{name: "intensity", fallback: 0, min: 0, max: 4},
			{name: "radius", fallback: 1, min: 0, max: 100},
		}, nil},
	}

	for _, k := range kinds {
		if err := r.Register(k.kind, specFactory(k.kind, k.specs, k.check)); err != nil {
			panic(fmt.Sprintf("failed to register filter kind %s: %v", k.kind, err))
		}
	}
	return r
}

func checkClampBounds(params []Param) error {
	values := make(map[string]float64, len(params))
	for _, p := range params {
		values[p.Name] = p.Value
	}
	for _, channel := range []string{"Red", "Green", "Blue"} {
		if values["min"+channel] > values["max"+channel] {
			return fmt.Errorf("min%s %g exceeds max%s %g", channel, values["min"+channel], channel, values["max"+channel])
		}
	}
	return nil
}
