package shipping

// Package shipping defines the shipping method table: costs and delivery
// windows per method, overridable from a YAML file.

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/exstoreapp/exstore/internal/models"
)

type Method struct {
	Name         string
	DisplayName  string
	Cost         decimal.Decimal
	DeliveryDays int
}

type Methods struct {
	byName map[models.ShippingMethod]Method
}

type rawMethod struct {
	Name         string `yaml:"name"`
	DisplayName  string `yaml:"display_name"`
	Cost         string `yaml:"cost"`
	DeliveryDays int    `yaml:"delivery_days"`
}

type methodsFile struct {
	Methods []rawMethod `yaml:"methods"`
}

// Defaults returns the compiled-in method table: standard delivers in 7
// days, express in 2.
func Defaults() *Methods {
	return &Methods{
		byName: map[models.ShippingMethod]Method{
			models.ShippingStandard: {
				Name:         string(models.ShippingStandard),
				DisplayName:  "Standard Shipping",
				Cost:         decimal.NewFromFloat(5.99),
				DeliveryDays: 7,
			},
			models.ShippingExpress: {
				Name:         string(models.ShippingExpress),
				DisplayName:  "Express Shipping",
				Cost:         decimal.NewFromFloat(14.99),
				DeliveryDays: 2,
			},
		},
	}
}

// Load reads a method table from a YAML file. An empty path returns the
// defaults.
func Load(path string) (*Methods, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shipping config: %w", err)
	}
	return Parse(content)
}

func Parse(content []byte) (*Methods, error) {
	var file methodsFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse shipping config: %w", err)
	}

	if len(file.Methods) == 0 {
		return nil, fmt.Errorf("shipping config defines no methods")
	}

	byName := make(map[models.ShippingMethod]Method, len(file.Methods))
	for i, raw := range file.Methods {
		method, err := buildMethod(raw)
		if err != nil {
			return nil, fmt.Errorf("shipping method %d: %w", i, err)
		}
		name := models.ShippingMethod(method.Name)
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate shipping method: %s", method.Name)
		}
		byName[name] = method
	}

	for _, required := range []models.ShippingMethod{models.ShippingStandard, models.ShippingExpress} {
		if _, ok := byName[required]; !ok {
			return nil, fmt.Errorf("shipping config is missing the %q method", required)
		}
	}

	return &Methods{byName: byName}, nil
}

func buildMethod(raw rawMethod) (Method, error) {
	name := models.ShippingMethod(strings.TrimSpace(raw.Name))
	if !name.Valid() {
		return Method{}, fmt.Errorf("unknown shipping method name %q", raw.Name)
	}

	cost, err := decimal.NewFromString(strings.TrimSpace(raw.Cost))
	if err != nil {
		return Method{}, fmt.Errorf("bad cost %q: %w", raw.Cost, err)
	}
	if cost.IsNegative() {
		return Method{}, fmt.Errorf("cost must be zero or positive")
	}

	if raw.DeliveryDays <= 0 {
		return Method{}, fmt.Errorf("delivery days must be positive")
	}

	displayName := strings.TrimSpace(raw.DisplayName)
	if displayName == "" {
		displayName = string(name)
	}

	return Method{
		Name:         string(name),
		DisplayName:  displayName,
		Cost:         cost,
		DeliveryDays: raw.DeliveryDays,
	}, nil
}

// Get returns the method definition, falling back to standard for unknown
// names.
func (m *Methods) Get(name models.ShippingMethod) Method {
	if method, ok := m.byName[name]; ok {
		return method
	}
	return m.byName[models.ShippingStandard]
}

// EstimatedDelivery computes the delivery estimate for a method from the
// moment payment settles.
func (m *Methods) EstimatedDelivery(name models.ShippingMethod, from time.Time) time.Time {
	return from.AddDate(0, 0, m.Get(name).DeliveryDays)
}
