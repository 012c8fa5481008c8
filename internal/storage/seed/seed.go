// Package seed loads the product catalog file and writes bootstrap data
// into any set of repositories.
package seed

import (
	"context"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/auth"
	"github.com/xenking/kart-discounts/internal/domain/product"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

// DefaultKeyID is the ID of the API key created from a raw seed key.
const DefaultKeyID = "default"

// Target is the set of repositories seeded by Apply.
type Target struct {
	Products product.Repository
	Promos   promo.Repository
	APIKeys  auth.Repository
}

// Data is the bootstrap content written by Apply. A zero APIKey skips key
// seeding.
type Data struct {
	Products []product.Product
	Promos   []promo.Code
	APIKey   string
	Pepper   []byte
}

// Stats reports how many records Apply wrote.
type Stats struct {
	Products int
	Promos   int
	APIKeys  int
}

// Apply upserts data into target. Repositories keep the usage counters of
// promo codes already present.
func Apply(ctx context.Context, target Target, data Data) (Stats, error) {
	var stats Stats
	for i := range data.Products {
		p := data.Products[i]
		if err := target.Products.Upsert(ctx, &p); err != nil {
			return stats, errors.Wrapf(err, "upsert product %s", p.ID)
		}
		stats.Products++
	}

	for i := range data.Promos {
		c := data.Promos[i]
		if err := target.Promos.Upsert(ctx, &c); err != nil {
			return stats, errors.Wrapf(err, "upsert promo code %s", c.Code)
		}
		stats.Promos++
	}

	if data.APIKey != "" {
		if err := target.APIKeys.Upsert(ctx, &auth.APIKeyInfo{
			ID:      DefaultKeyID,
			KeyHash: auth.HashKey(data.Pepper, data.APIKey),
			Name:    "Default key",
			Scopes:  []string{"create_order"},
		}); err != nil {
			return stats, errors.Wrap(err, "upsert default API key")
		}
		stats.APIKeys++
	}

	return stats, nil
}

// LoadProducts reads a JSON array of products from path.
func LoadProducts(path string) ([]product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}
	products, err := ParseProducts(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return products, nil
}

// ParseProducts decodes a JSON array of products. Prices may be numbers or
// numeric strings.
func ParseProducts(data []byte) ([]product.Product, error) {
	var products []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product %d", len(products))
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if p.ID == "" {
			return nil, errors.Errorf("product %q: id is required", p.Name)
		}
		if _, ok := seen[p.ID]; ok {
			return nil, errors.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Price.IsNegative() {
			return nil, errors.Errorf("product %s: price must not be negative", p.ID)
		}
	}
	return products, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			p.Price, err = decodePrice(d)
		case "image":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "thumbnail":
					p.Image.Thumbnail, err = d.Str()
				case "mobile":
					p.Image.Mobile, err = d.Str()
				case "tablet":
					p.Image.Tablet, err = d.Str()
				case "desktop":
					p.Image.Desktop, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return p, err
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = strings.TrimSpace(s)
	default:
		return decimal.Decimal{}, errors.New("must be a number")
	}
	return decimal.NewFromString(raw)
}
