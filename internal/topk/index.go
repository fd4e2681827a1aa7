// Package topk ranks instruments per date and caches the Top-K pools.
package topk

import (
	"context"
	"runtime"
	"sort"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/scoretable"
)

// Index holds the per-date ranked pools
// ⭐ SSOT: 빌드 후 불변 (락 없이 동시 조회 가능)
type Index struct {
	k       Size
	dates   []civil.Date
	pools   map[civil.Date][]string
	members map[civil.Date]map[string]struct{}
	scores  map[string]map[civil.Date]float64 // bounded: 풀 멤버만 보관
}

// datePool is the ranking result for a single date group
type datePool struct {
	date   civil.Date
	codes  []string
	scores []float64
}

// Build ranks every date of the table sequentially
func Build(table *scoretable.Table, k Size) (*Index, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	dates := table.Dates()
	results := make([]datePool, len(dates))
	for i, d := range dates {
		results[i] = rankDate(d, table.Rows(d), k)
	}
	return assemble(k, results), nil
}

// BuildParallel ranks date groups concurrently; the result equals Build.
// workers <= 0 uses GOMAXPROCS.
func BuildParallel(ctx context.Context, table *scoretable.Table, k Size, workers int) (*Index, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	dates := table.Dates()
	results := make([]datePool, len(dates))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range dates {
		i, d := i, d
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = rankDate(d, table.Rows(d), k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(k, results), nil
}

// rankDate sorts one date group by score desc, code asc, then truncates to K
func rankDate(date civil.Date, rows []contracts.Forecast, k Size) datePool {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Code < rows[j].Code
	})

	n := len(rows)
	if k.Bounded() && k.N() < n {
		n = k.N()
	}

	p := datePool{
		date:   date,
		codes:  make([]string, n),
		scores: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		p.codes[i] = rows[i].Code
		p.scores[i] = rows[i].Score
	}
	return p
}

func assemble(k Size, results []datePool) *Index {
	idx := &Index{
		k:       k,
		dates:   make([]civil.Date, 0, len(results)),
		pools:   make(map[civil.Date][]string, len(results)),
		members: make(map[civil.Date]map[string]struct{}, len(results)),
		scores:  make(map[string]map[civil.Date]float64),
	}

	for _, r := range results {
		idx.dates = append(idx.dates, r.date)
		idx.pools[r.date] = r.codes

		set := make(map[string]struct{}, len(r.codes))
		for i, code := range r.codes {
			set[code] = struct{}{}
			byDate, ok := idx.scores[code]
			if !ok {
				byDate = make(map[civil.Date]float64)
				idx.scores[code] = byDate
			}
			byDate[r.date] = r.scores[i]
		}
		idx.members[r.date] = set
	}

	return idx
}

// K returns the configured pool size
func (idx *Index) K() Size { return idx.k }

// Dates returns every indexed date, ascending
func (idx *Index) Dates() []civil.Date {
	out := make([]civil.Date, len(idx.dates))
	copy(out, idx.dates)
	return out
}

// PoolFor returns the ranked pool for a date; empty if the date is unknown
func (idx *Index) PoolFor(date civil.Date) []string {
	pool := idx.pools[date]
	out := make([]string, len(pool))
	copy(out, pool)
	return out
}

// IsInPool reports Top-K membership for (date, code)
func (idx *Index) IsInPool(date civil.Date, code string) bool {
	set, ok := idx.members[date]
	if !ok {
		return false
	}
	_, in := set[contracts.NormalizeCode(code)]
	return in
}

// ScoreOf returns the indexed score. Bounded indexes only keep pool members,
// so a miss means "not in the pool or no forecast", never a zero score.
func (idx *Index) ScoreOf(code string, date civil.Date) (float64, bool) {
	byDate, ok := idx.scores[contracts.NormalizeCode(code)]
	if !ok {
		return 0, false
	}
	s, ok := byDate[date]
	return s, ok
}

// HasDate reports whether the date was present in the source table
func (idx *Index) HasDate(date civil.Date) bool {
	_, ok := idx.pools[date]
	return ok
}

// Snapshot returns a copy of every pool keyed by date
func (idx *Index) Snapshot() map[civil.Date][]string {
	out := make(map[civil.Date][]string, len(idx.pools))
	for d, pool := range idx.pools {
		cp := make([]string, len(pool))
		copy(cp, pool)
		out[d] = cp
	}
	return out
}

// Equal compares two indexes element by element
func (idx *Index) Equal(other *Index) bool {
	if other == nil || idx.k != other.k || len(idx.dates) != len(other.dates) {
		return false
	}
	for i, d := range idx.dates {
		if other.dates[i] != d {
			return false
		}
		a, b := idx.pools[d], other.pools[d]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	if len(idx.scores) != len(other.scores) {
		return false
	}
	for code, byDate := range idx.scores {
		ob, ok := other.scores[code]
		if !ok || len(ob) != len(byDate) {
			return false
		}
		for d, s := range byDate {
			if v, ok := ob[d]; !ok || v != s {
				return false
			}
		}
	}
	return true
}
