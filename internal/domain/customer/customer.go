package customer

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Type is the closed set of customer tiers that drive base discounts.
type Type string

const (
	Regular    Type = "REGULAR"
	Loyalty    Type = "LOYALTY"
	VIP        Type = "VIP"
	Enterprise Type = "ENTERPRISE"
)

// Types lists every known customer type in ascending base discount order.
var Types = []Type{Regular, Loyalty, VIP, Enterprise}

var (
	// ErrUnknownType is returned when a string does not name a customer type.
	ErrUnknownType = errors.New("unknown customer type")
	// ErrNotFound is returned when a customer record does not exist.
	ErrNotFound = errors.New("customer not found")
)

// ParseType converts user input into a Type. Matching is case-insensitive
// and ignores surrounding whitespace.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", errors.Wrapf(ErrUnknownType, "%q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known customer types.
func (t Type) Valid() bool {
	switch t {
	case Regular, Loyalty, VIP, Enterprise:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	return string(t)
}

// Customer is a stored customer record.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Type      Type
	CreatedAt time.Time
}

// Repository defines persistence operations for customers.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
}
