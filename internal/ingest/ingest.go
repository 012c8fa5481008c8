// Package ingest loads promo codes from CSV exports. Codes defined in more
// than one input file are ambiguous and rejected; cross-file detection uses
// one bloom filter per file so that only likely duplicates are compared
// exactly.
package ingest

import (
	"context"
	"log/slog"
	"math/bits"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-discounts/internal/domain/promo"
)

// MaxFiles is the number of input files a single run accepts. Each file
// owns one bit of the duplicate mask.
const MaxFiles = bits.UintSize

// Options tunes a run. Zero values select the defaults.
type Options struct {
	// ExpectedCodes sizes each bloom filter.
	ExpectedCodes uint
	// FalsePositiveRate of each bloom filter.
	FalsePositiveRate float64
	Logger            *slog.Logger
}

func (o *Options) setDefaults() {
	if o.ExpectedCodes == 0 {
		o.ExpectedCodes = 1_000_000
	}
	if o.FalsePositiveRate <= 0 || o.FalsePositiveRate >= 1 {
		o.FalsePositiveRate = 0.001
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Duplicate is a code defined in more than one file.
type Duplicate struct {
	Code  string
	Files []string
}

// Result is the outcome of a run.
type Result struct {
	// Codes are accepted, in file order then line order.
	Codes      []promo.Code
	Duplicates []Duplicate
	Rejected   []RowError
}

type fileData struct {
	path    string
	records []Record
	rowErrs []RowError
	filter  *bloom.BloomFilter
}

// Run reads every file concurrently and splits the codes into accepted
// ones and cross-file duplicates.
func Run(ctx context.Context, paths []string, opts Options) (*Result, error) {
	opts.setDefaults()
	if len(paths) > MaxFiles {
		return nil, errors.Errorf("too many files: %d (max %d)", len(paths), MaxFiles)
	}

	files := make([]fileData, len(paths))

	// Pass 1: parse and build one bloom filter per file.
	g, gCtx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			records, rowErrs, err := ReadFile(gCtx, path)
			if err != nil {
				return err
			}
			filter := bloom.NewWithEstimates(opts.ExpectedCodes, opts.FalsePositiveRate)
			for _, r := range records {
				filter.AddString(r.Code.Code)
			}
			files[i] = fileData{path: path, records: records, rowErrs: rowErrs, filter: filter}

			opts.Logger.Info("file parsed",
				slog.String("file", path),
				slog.Int("codes", len(records)),
				slog.Int("rejected", len(rowErrs)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "read files")
	}

	// Pass 2: flag codes that another file's filter claims to contain.
	masks := make([]map[string]uint, len(files))
	g, gCtx = errgroup.WithContext(ctx)
	for i := range files {
		g.Go(func() error {
			masks[i] = candidates(gCtx, i, files)
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "find duplicates")
	}

	// A code is duplicated only when at least two files flagged it, which
	// rules out bloom false positives.
	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}

	res := &Result{}
	dupes := make(map[string]uint)
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			dupes[code] = mask
		}
	}
	for _, f := range files {
		res.Rejected = append(res.Rejected, f.rowErrs...)
		for _, r := range f.records {
			if _, dup := dupes[r.Code.Code]; dup {
				continue
			}
			res.Codes = append(res.Codes, r.Code)
		}
	}
	for code, mask := range dupes {
		d := Duplicate{Code: code}
		for i, f := range files {
			if mask&(1<<uint(i)) != 0 {
				d.Files = append(d.Files, f.path)
			}
		}
		res.Duplicates = append(res.Duplicates, d)
	}
	sort.Slice(res.Duplicates, func(i, j int) bool {
		return res.Duplicates[i].Code < res.Duplicates[j].Code
	})

	opts.Logger.Info("ingest analysed",
		slog.Int("accepted", len(res.Codes)),
		slog.Int("duplicates", len(res.Duplicates)),
		slog.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// candidates returns the codes of file idx that probably appear in another
// file, each mapped to the bit of idx.
func candidates(ctx context.Context, idx int, files []fileData) map[string]uint {
	out := make(map[string]uint)
	bit := uint(1) << uint(idx)
	for n, r := range files[idx].records {
		if n%10_000 == 0 && ctx.Err() != nil {
			return out
		}
		for j, other := range files {
			if j == idx {
				continue
			}
			if other.filter.TestString(r.Code.Code) {
				out[r.Code.Code] |= bit
				break
			}
		}
	}
	return out
}

// Write upserts codes into repo. Usage counters of existing codes are kept
// by the repository.
func Write(ctx context.Context, repo promo.Repository, codes []promo.Code, lg *slog.Logger) error {
	if lg == nil {
		lg = slog.Default()
	}
	for i := range codes {
		if err := repo.Upsert(ctx, &codes[i]); err != nil {
			return errors.Wrapf(err, "upsert promo code %s", codes[i].Code)
		}
		if (i+1)%100 == 0 || i+1 == len(codes) {
			lg.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	return nil
}
