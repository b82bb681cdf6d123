package assets

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Car is one entry of the viewer's model menu.
type Car struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Model     string            `json:"model" yaml:"model"`
	Scale     float64           `json:"scale" yaml:"scale"`
	Materials map[string]string `json:"materials,omitempty" yaml:"materials,omitempty"`
}

// Catalog lists the cars the page can show and which one it starts with.
type Catalog struct {
	Default string `json:"default" yaml:"default"`
	Cars    []Car  `json:"cars" yaml:"cars"`
}

// LoadCatalog decodes and validates a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i := range c.Cars {
		if c.Cars[i].Scale == 0 {
			c.Cars[i].Scale = 1
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func LoadCatalogFile(name string) (*Catalog, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadCatalog(f)
}

// Validate checks ids are unique and non-empty, every car has a model and a
// positive scale, material colors are #rrggbb and the default car exists.
func (c *Catalog) Validate() error {
	if len(c.Cars) == 0 {
		return fmt.Errorf("%w: no cars", ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(c.Cars))
	for _, car := range c.Cars {
		if car.ID == "" {
			return fmt.Errorf("%w: car without id", ErrInvalidCatalog)
		}
		if _, dup := seen[car.ID]; dup {
			return fmt.Errorf("%w: duplicate car id %q", ErrInvalidCatalog, car.ID)
		}
		seen[car.ID] = struct{}{}
		if car.Model == "" {
			return fmt.Errorf("%w: car %q has no model", ErrInvalidCatalog, car.ID)
		}
		if _, err := cleanRef(car.Model); err != nil {
			return fmt.Errorf("%w: car %q: %v", ErrInvalidCatalog, car.ID, err)
		}
		if !(car.Scale > 0) {
			return fmt.Errorf("%w: car %q has scale %v", ErrInvalidCatalog, car.ID, car.Scale)
		}
		for part, color := range car.Materials {
			if !colorPattern.MatchString(color) {
				return fmt.Errorf("%w: car %q material %q color %q", ErrInvalidCatalog, car.ID, part, color)
			}
		}
	}
	if _, ok := seen[c.Default]; !ok {
		return fmt.Errorf("%w: default car %q not listed", ErrInvalidCatalog, c.Default)
	}
	return nil
}

// Car looks a car up by id. An empty id selects the default car.
func (c *Catalog) Car(id string) (Car, error) {
	if id == "" {
		id = c.Default
	}
	for _, car := range c.Cars {
		if car.ID == id {
			return car, nil
		}
	}
	return Car{}, fmt.Errorf("%w: %q", ErrUnknownCar, id)
}

// Models returns the model reference of every car, in catalog order.
func (c *Catalog) Models() []string {
	refs := make([]string, len(c.Cars))
	for i, car := range c.Cars {
		refs[i] = car.Model
	}
	return refs
}
