package merge

import (
	"fmt"

	"github.com/colega/zeropool"

	"github.com/grafana/profdiff/pkg/profile"
)

var intSlicePool zeropool.Pool[[]int]

// rewriter holds the index maps of a single source thread, built level by
// level as the merge progresses.
type rewriter struct {
	strings       IndexMap
	libs          IndexMap
	categories    *CategoryMap
	resources     IndexMap
	nativeSymbols IndexMap
	funcs         IndexMap
}

type table[R any] interface {
	Len() int
	Row(int) R
	AppendRow(R)
}

type tableHelper[R any, K comparable] interface {
	// rewrite translates the references of a source row into the index
	// space of the merged tables.
	rewrite(*rewriter, R) (R, error)
	key(R) K
}

// deduplicatingTable appends rows of source tables to a merged table,
// mapping rows with equal keys to the same merged row. Rows are only ever
// appended, so indices handed out earlier stay valid.
type deduplicatingTable[R any, K comparable, T table[R], H tableHelper[R, K]] struct {
	table  T
	lookup map[K]profile.Index
	helper H

	appended     int
	deduplicated int
}

func newDeduplicatingTable[R any, K comparable, T table[R], H tableHelper[R, K]](t T, h H) *deduplicatingTable[R, K, T, H] {
	return &deduplicatingTable[R, K, T, H]{
		table:  t,
		lookup: make(map[K]profile.Index),
		helper: h,
	}
}

// ingest merges src into the table and returns the map from src rows to
// merged rows.
func (s *deduplicatingTable[R, K, T, H]) ingest(src T, r *rewriter) (IndexMap, error) {
	var (
		n       = src.Len()
		m       = make(IndexMap, n)
		rows    = make([]R, n)
		missing = intSlicePool.Get()[:0]
	)
	defer func() {
		intSlicePool.Put(missing)
	}()

	for pos := 0; pos < n; pos++ {
		row, err := s.helper.rewrite(r, src.Row(pos))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", pos, err)
		}
		rows[pos] = row
		if idx, exists := s.lookup[s.helper.key(row)]; exists {
			m[pos] = idx
			s.deduplicated++
		} else {
			missing = append(missing, pos)
		}
	}

	next := profile.Index(s.table.Len())
	for _, pos := range missing {
		// Equal rows may repeat within the batch.
		k := s.helper.key(rows[pos])
		if idx, exists := s.lookup[k]; exists {
			m[pos] = idx
			s.deduplicated++
			continue
		}
		s.table.AppendRow(rows[pos])
		s.lookup[k] = next
		m[pos] = next
		next++
		s.appended++
	}
	return m, nil
}
