package merge

import (
	"fmt"

	"github.com/grafana/profdiff/pkg/profile"
)

// IndexMap translates row indices of a source table into row indices of the
// merged table. It always has the length of the source table.
type IndexMap []profile.Index

// identityMap returns a map that leaves n indices unchanged.
func identityMap(n int) IndexMap {
	return profile.Indexes(0, n)
}

// Rewrite translates i. None is kept as is; an index outside the source
// table yields ErrMalformedInput.
func (m IndexMap) Rewrite(i profile.Index) (profile.Index, error) {
	if i.IsNone() {
		return profile.None, nil
	}
	if !i.Valid(len(m)) {
		return profile.None, fmt.Errorf("%w: index %d out of range [0, %d)", ErrMalformedInput, i, len(m))
	}
	return m[i], nil
}

func (m IndexMap) IsIdentity() bool {
	for i, v := range m {
		if v != profile.Index(i) {
			return false
		}
	}
	return true
}

// MergeStringTables interns the strings of every table into a new table.
// Strings keep their first-seen order.
func MergeStringTables(tables []*profile.StringTable) (*profile.StringTable, []IndexMap) {
	var (
		merged = profile.NewStringTable()
		maps   = make([]IndexMap, len(tables))
	)
	for i, t := range tables {
		m := make(IndexMap, t.Len())
		for j := range m {
			m[j] = merged.IndexForString(t.GetString(profile.Index(j)))
		}
		maps[i] = m
	}
	return merged, maps
}
