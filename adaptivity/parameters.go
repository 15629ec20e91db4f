// Package adaptivity drives goal oriented adaptive refinement: solve,
// evaluate the goal functional, estimate the error, then stop or refine the
// mesh and repeat.
package adaptivity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Marking strategies
const (
	Dorfler          = "dorfler"
	Maximum          = "maximum"
	Equidistribution = "equidistribution"
)

// Parameters configure the adaptive loop
type Parameters struct {
	MaxIterations   int     `yaml:"max_iterations"`
	MaxDimension    int     `yaml:"max_dimension"` // 0 means unbounded
	PlotMesh        bool    `yaml:"plot_mesh"`
	Reference       float64 `yaml:"reference"` // exact goal value, 0 when unknown
	MarkingStrategy string  `yaml:"marking_strategy"`
	MarkingFraction float64 `yaml:"marking_fraction"`
}

// DefaultParameters returns the default configuration
func DefaultParameters() Parameters {
	return Parameters{
		MaxIterations:   20,
		MaxDimension:    0,
		PlotMesh:        false,
		Reference:       0.0,
		MarkingStrategy: Dorfler,
		MarkingFraction: 0.5,
	}
}

// Validate checks ranges and the marking strategy name
func (p Parameters) Validate() error {
	if p.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", p.MaxIterations)
	}
	if p.MaxDimension < 0 {
		return fmt.Errorf("max_dimension must not be negative, got %d", p.MaxDimension)
	}
	if p.MarkingFraction < 0 || p.MarkingFraction > 1 {
		return fmt.Errorf("marking_fraction must lie in [0, 1], got %g", p.MarkingFraction)
	}
	switch p.MarkingStrategy {
	case Dorfler, Maximum, Equidistribution:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, p.MarkingStrategy)
	}
	return nil
}

// ParseParameters reads YAML on top of the defaults. Keys missing from the
// document keep their default values.
func ParseParameters(data []byte) (Parameters, error) {
	p := DefaultParameters()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Parameters{}, fmt.Errorf("parse adaptive parameters: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// LoadParameters reads a YAML parameter file
func LoadParameters(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("read adaptive parameters: %w", err)
	}
	return ParseParameters(data)
}
