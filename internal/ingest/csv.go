package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

// Column names recognised in the CSV header. Only code, discount_type and
// value are required.
const (
	colCode                = "code"
	colDescription         = "description"
	colDiscountType        = "discount_type"
	colValue               = "value"
	colMinOrderAmount      = "min_order_amount"
	colMaxDiscountAmount   = "max_discount_amount"
	colValidFrom           = "valid_from"
	colValidUntil          = "valid_until"
	colUsageLimit          = "usage_limit"
	colAllowedTypes        = "allowed_customer_types"
	colDisablesTierBonuses = "disables_tier_bonuses"
	colStacksWithSeasonal  = "stacks_with_seasonal"
	colActive              = "active"
)

var requiredColumns = []string{colCode, colDiscountType, colValue}

// Record is a parsed row together with its position.
type Record struct {
	Code promo.Code
	Line int
}

// RowError reports a row that could not be turned into a promo code.
type RowError struct {
	File string
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return e.File + ":" + strconv.Itoa(e.Line) + ": " + e.Err.Error()
}

func (e *RowError) Unwrap() error { return e.Err }

// ReadFile parses a promo code CSV file. Files ending in .gz are
// decompressed with pgzip. Malformed rows are returned as RowErrors and
// skipped; only I/O and header problems fail the whole file.
func ReadFile(ctx context.Context, path string) ([]Record, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	return Read(ctx, path, r)
}

// Read parses CSV rows from r. name is only used in RowErrors.
func Read(ctx context.Context, name string, r io.Reader) ([]Record, []RowError, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read header of %s", name)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, nil, errors.Errorf("%s: missing column %q", name, c)
		}
	}
	// Field counts may vary between rows; short rows read as empty values.
	cr.FieldsPerRecord = -1

	var (
		records []Record
		rowErrs []RowError
		seen    = make(map[string]int)
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rowErrs = append(rowErrs, RowError{File: name, Line: perr.Line, Err: perr.Err})
				continue
			}
			return nil, nil, errors.Wrapf(err, "read %s", name)
		}
		line, _ := cr.FieldPos(0)

		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		code, err := parseRow(get)
		if err != nil {
			rowErrs = append(rowErrs, RowError{File: name, Line: line, Err: err})
			continue
		}
		if first, ok := seen[code.Code]; ok {
			rowErrs = append(rowErrs, RowError{
				File: name,
				Line: line,
				Err:  errors.Errorf("code %s already defined on line %d", code.Code, first),
			})
			continue
		}
		seen[code.Code] = line
		records = append(records, Record{Code: code, Line: line})
	}
	return records, rowErrs, nil
}

func parseRow(get func(col string) string) (promo.Code, error) {
	c := promo.Code{
		Code:        promo.Normalize(get(colCode)),
		Description: get(colDescription),
	}
	if c.Code == "" {
		return c, errors.New("code is empty")
	}

	var err error
	if c.DiscountType, err = promo.ParseDiscountType(get(colDiscountType)); err != nil {
		return c, err
	}
	if c.Value, err = decimal.NewFromString(get(colValue)); err != nil {
		return c, errors.Wrap(err, colValue)
	}
	if c.MinOrderAmount, err = optionalDecimal(get(colMinOrderAmount)); err != nil {
		return c, errors.Wrap(err, colMinOrderAmount)
	}
	if c.MaxDiscountAmount, err = optionalDecimal(get(colMaxDiscountAmount)); err != nil {
		return c, errors.Wrap(err, colMaxDiscountAmount)
	}
	if c.ValidFrom, err = parseTime(get(colValidFrom), false); err != nil {
		return c, errors.Wrap(err, colValidFrom)
	}
	if c.ValidUntil, err = parseTime(get(colValidUntil), true); err != nil {
		return c, errors.Wrap(err, colValidUntil)
	}
	if v := get(colUsageLimit); v != "" {
		if c.UsageLimit, err = strconv.Atoi(v); err != nil || c.UsageLimit < 0 {
			return c, errors.Errorf("%s: %q is not a non-negative integer", colUsageLimit, v)
		}
	}
	if v := get(colAllowedTypes); v != "" {
		for _, name := range strings.Split(v, "|") {
			typ, err := customer.ParseType(name)
			if err != nil {
				return c, errors.Wrap(err, colAllowedTypes)
			}
			c.AllowedCustomerTypes = append(c.AllowedCustomerTypes, typ)
		}
	}
	if c.DisablesTierBonuses, err = parseBool(get(colDisablesTierBonuses), false); err != nil {
		return c, errors.Wrap(err, colDisablesTierBonuses)
	}
	if c.StacksWithSeasonalMultiplier, err = parseBool(get(colStacksWithSeasonal), true); err != nil {
		return c, errors.Wrap(err, colStacksWithSeasonal)
	}
	if c.Active, err = parseBool(get(colActive), true); err != nil {
		return c, errors.Wrap(err, colActive)
	}
	return c, c.Validate()
}

func optionalDecimal(v string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseTime accepts a YYYY-MM-DD date or an RFC 3339 timestamp. A bare
// end date covers the whole day.
func parseTime(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, errors.Errorf("%q is not a date", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parseBool(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}
