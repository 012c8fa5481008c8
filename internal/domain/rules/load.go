package rules

import (
	"bytes"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

// File is the YAML layout of a rule file.
type File struct {
	CustomerTypes map[string]fileCustomerType `yaml:"customerTypes"`
	Tiers         []fileTier                  `yaml:"tiers"`
	Periods       []filePeriod                `yaml:"periods"`
	Categories    []fileCategory              `yaml:"categories"`
	Policy        *filePolicy                 `yaml:"policy"`
	PromoCodes    []filePromoCode             `yaml:"promoCodes"`
}

type fileCustomerType struct {
	BaseDiscount       yamlDecimal  `yaml:"baseDiscount"`
	MaxTotalDiscount   *yamlDecimal `yaml:"maxTotalDiscount"`
	MinimumOrderAmount *yamlDecimal `yaml:"minimumOrderAmount"`
}

type fileTier struct {
	MinAmount yamlDecimal  `yaml:"minAmount"`
	MaxAmount *yamlDecimal `yaml:"maxAmount"`
	Bonus     yamlDecimal  `yaml:"bonus"`
}

type filePeriod struct {
	Name       string      `yaml:"name"`
	Start      yamlDate    `yaml:"start"`
	End        yamlDate    `yaml:"end"`
	Multiplier yamlDecimal `yaml:"multiplier"`
	Enabled    *bool       `yaml:"enabled"`
}

type fileCategory struct {
	Category   string      `yaml:"category"`
	Percentage yamlDecimal `yaml:"percentage"`
	Active     *bool       `yaml:"active"`
}

type filePolicy struct {
	DowngradeType       string       `yaml:"downgradeType"`
	PromotionalMinimum  *yamlDecimal `yaml:"promotionalMinimum"`
	LargeOrderThreshold *yamlDecimal `yaml:"largeOrderThreshold"`
}

type filePromoCode struct {
	Code                         string       `yaml:"code"`
	Description                  string       `yaml:"description"`
	DiscountType                 string       `yaml:"discountType"`
	Value                        yamlDecimal  `yaml:"value"`
	MinOrderAmount               *yamlDecimal `yaml:"minOrderAmount"`
	MaxDiscountAmount            *yamlDecimal `yaml:"maxDiscountAmount"`
	ValidFrom                    yamlTime     `yaml:"validFrom"`
	ValidUntil                   yamlUntil    `yaml:"validUntil"`
	UsageLimit                   int          `yaml:"usageLimit"`
	AllowedCustomerTypes         []string     `yaml:"allowedCustomerTypes"`
	DisablesTierBonuses          bool         `yaml:"disablesTierBonuses"`
	StacksWithSeasonalMultiplier *bool        `yaml:"stacksWithSeasonalMultiplier"`
	Active                       *bool        `yaml:"active"`
}

// Load reads and validates a rule file. It returns the rule table and the
// promo code definitions used to seed the promo code store.
func Load(path string) (*Table, []promo.Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read rule file")
	}
	return Parse(data)
}

// Parse decodes a rule file from data. Unknown fields are rejected.
func Parse(data []byte) (*Table, []promo.Code, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, nil, errors.Wrap(err, "decode rule file")
	}

	cfg, err := f.config()
	if err != nil {
		return nil, nil, err
	}
	table, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}

	codes, err := f.promoCodes()
	if err != nil {
		return nil, nil, err
	}
	return table, codes, nil
}

func (f *File) config() (Config, error) {
	cfg := Config{
		CustomerTypes: make(map[customer.Type]CustomerTypeRule, len(f.CustomerTypes)),
		Policy:        DefaultPolicy(),
	}

	for name, ct := range f.CustomerTypes {
		typ, err := customer.ParseType(name)
		if err != nil {
			return Config{}, errors.Wrap(err, "customerTypes")
		}
		cfg.CustomerTypes[typ] = CustomerTypeRule{
			BaseDiscount:       ct.BaseDiscount.Decimal(),
			MaxTotalDiscount:   ct.MaxTotalDiscount.ptr(),
			MinimumOrderAmount: ct.MinimumOrderAmount.ptr(),
		}
	}

	for _, t := range f.Tiers {
		cfg.Tiers = append(cfg.Tiers, TierBand{
			MinAmount: t.MinAmount.Decimal(),
			MaxAmount: t.MaxAmount.ptr(),
			Bonus:     t.Bonus.Decimal(),
		})
	}

	for _, p := range f.Periods {
		cfg.Periods = append(cfg.Periods, PromotionalPeriod{
			Name:       p.Name,
			Start:      time.Time(p.Start),
			End:        time.Time(p.End),
			Multiplier: p.Multiplier.Decimal(),
			Enabled:    boolOr(p.Enabled, true),
		})
	}

	for _, c := range f.Categories {
		cfg.Categories = append(cfg.Categories, CategoryDiscount{
			Category:   c.Category,
			Percentage: c.Percentage.Decimal(),
			Active:     boolOr(c.Active, true),
		})
	}

	if p := f.Policy; p != nil {
		if p.DowngradeType != "" {
			typ, err := customer.ParseType(p.DowngradeType)
			if err != nil {
				return Config{}, errors.Wrap(err, "policy.downgradeType")
			}
			cfg.Policy.DowngradeType = typ
		}
		if p.PromotionalMinimum != nil {
			cfg.Policy.PromotionalMinimum = p.PromotionalMinimum.Decimal()
		}
		if p.LargeOrderThreshold != nil {
			cfg.Policy.LargeOrderThreshold = p.LargeOrderThreshold.Decimal()
		}
	}

	return cfg, nil
}

func (f *File) promoCodes() ([]promo.Code, error) {
	codes := make([]promo.Code, 0, len(f.PromoCodes))
	seen := make(map[string]bool, len(f.PromoCodes))
	for _, p := range f.PromoCodes {
		code := promo.Normalize(p.Code)
		if code == "" {
			return nil, errors.New("promo code without a code")
		}
		if seen[code] {
			return nil, errors.Errorf("promo code %s defined twice", code)
		}
		seen[code] = true

		dt, err := promo.ParseDiscountType(p.DiscountType)
		if err != nil {
			return nil, errors.Wrapf(err, "promo code %s", code)
		}

		allowed := make([]customer.Type, 0, len(p.AllowedCustomerTypes))
		for _, name := range p.AllowedCustomerTypes {
			typ, err := customer.ParseType(name)
			if err != nil {
				return nil, errors.Wrapf(err, "promo code %s", code)
			}
			allowed = append(allowed, typ)
		}

		c := promo.Code{
			Code:                         code,
			Description:                  p.Description,
			DiscountType:                 dt,
			Value:                        p.Value.Decimal(),
			MinOrderAmount:               p.MinOrderAmount.ptr(),
			MaxDiscountAmount:            p.MaxDiscountAmount.ptr(),
			ValidFrom:                    time.Time(p.ValidFrom),
			ValidUntil:                   time.Time(p.ValidUntil),
			UsageLimit:                   p.UsageLimit,
			AllowedCustomerTypes:         allowed,
			DisablesTierBonuses:          p.DisablesTierBonuses,
			StacksWithSeasonalMultiplier: boolOr(p.StacksWithSeasonalMultiplier, true),
			Active:                       boolOr(p.Active, true),
		}
		if err := c.Validate(); err != nil {
			return nil, errors.Wrapf(err, "promo code %s", code)
		}
		codes = append(codes, c)
	}
	return codes, nil
}

// yamlDecimal decodes a YAML scalar into an exact decimal.
type yamlDecimal decimal.Decimal

func (d *yamlDecimal) UnmarshalYAML(node *yaml.Node) error {
	v, err := decimal.NewFromString(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d: parse decimal %q", node.Line, node.Value)
	}
	*d = yamlDecimal(v)
	return nil
}

func (d yamlDecimal) Decimal() decimal.Decimal {
	return decimal.Decimal(d)
}

func (d *yamlDecimal) ptr() *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := decimal.Decimal(*d)
	return &v
}

// yamlDate decodes a YYYY-MM-DD scalar.
type yamlDate time.Time

func (d *yamlDate) UnmarshalYAML(node *yaml.Node) error {
	t, err := time.Parse(time.DateOnly, node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d: parse date %q", node.Line, node.Value)
	}
	*d = yamlDate(t)
	return nil
}

// yamlTime decodes either a YYYY-MM-DD date or an RFC 3339 timestamp.
type yamlTime time.Time

func (t *yamlTime) UnmarshalYAML(node *yaml.Node) error {
	if v, err := time.Parse(time.RFC3339, node.Value); err == nil {
		*t = yamlTime(v)
		return nil
	}
	v, err := time.Parse(time.DateOnly, node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d: parse time %q", node.Line, node.Value)
	}
	*t = yamlTime(v)
	return nil
}

// yamlUntil is like yamlTime but a bare date covers the whole day.
type yamlUntil time.Time

func (t *yamlUntil) UnmarshalYAML(node *yaml.Node) error {
	if v, err := time.Parse(time.RFC3339, node.Value); err == nil {
		*t = yamlUntil(v)
		return nil
	}
	v, err := time.Parse(time.DateOnly, node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d: parse time %q", node.Line, node.Value)
	}
	*t = yamlUntil(v.Add(24*time.Hour - time.Nanosecond))
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
