package scenario

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
)

// adjustmentFile is the YAML shape consumed by the CLI clone command.
// Factors are strings so values like "1.10" keep their exact scale.
type adjustmentFile struct {
	Adjustments []adjustmentSpec `yaml:"adjustments"`
}

type adjustmentSpec struct {
	Account    string `yaml:"account"`
	Department string `yaml:"department"`
	Factor     string `yaml:"factor"`
}

// LoadAdjustments reads an adjustment set from a YAML file.
func LoadAdjustments(path string) ([]domain.Adjustment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read adjustments file: %w", err)
	}
	return ParseAdjustments(data)
}

// ParseAdjustments decodes and validates YAML adjustment data.
func ParseAdjustments(data []byte) ([]domain.Adjustment, error) {
	var file adjustmentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse adjustments yaml: %w", err)
	}

	out := make([]domain.Adjustment, 0, len(file.Adjustments))
	for i, spec := range file.Adjustments {
		if spec.Account == "" && spec.Department == "" {
			return nil, fmt.Errorf("adjustment %d: needs an account or department filter", i+1)
		}
		if spec.Factor == "" {
			return nil, fmt.Errorf("adjustment %d: factor is required", i+1)
		}
		factor, err := decimal.NewFromString(spec.Factor)
		if err != nil {
			return nil, fmt.Errorf("adjustment %d: invalid factor %q: %w", i+1, spec.Factor, err)
		}
		out = append(out, domain.Adjustment{
			Account:    spec.Account,
			Department: spec.Department,
			Factor:     factor,
		})
	}
	return out, nil
}
