package merge

import (
	"fmt"

	"github.com/grafana/profdiff/pkg/profile"
)

// CategoryMap translates category and subcategory indices of one source
// profile into the merged category list.
type CategoryMap struct {
	Categories IndexMap
	// Subcategories is indexed by source category, then by source
	// subcategory.
	Subcategories []IndexMap
}

func identityCategoryMap(categories []profile.Category) *CategoryMap {
	m := &CategoryMap{
		Categories:    identityMap(len(categories)),
		Subcategories: make([]IndexMap, len(categories)),
	}
	for i, c := range categories {
		m.Subcategories[i] = identityMap(len(c.Subcategories))
	}
	return m
}

func (m *CategoryMap) IsIdentity() bool {
	if !m.Categories.IsIdentity() {
		return false
	}
	for _, s := range m.Subcategories {
		if !s.IsIdentity() {
			return false
		}
	}
	return true
}

// Rewrite translates a category and its subcategory. A None category keeps
// the subcategory untouched.
func (m *CategoryMap) Rewrite(category, subcategory profile.Index) (profile.Index, profile.Index, error) {
	c, err := m.Categories.Rewrite(category)
	if err != nil {
		return profile.None, profile.None, fmt.Errorf("category: %w", err)
	}
	if category.IsNone() {
		return c, subcategory, nil
	}
	s, err := m.Subcategories[category].Rewrite(subcategory)
	if err != nil {
		return profile.None, profile.None, fmt.Errorf("subcategory: %w", err)
	}
	return c, s, nil
}

// MergeCategories merges category lists by name. The subcategories of
// categories sharing a name are unioned, keeping first-seen order.
func MergeCategories(lists ...[]profile.Category) ([]profile.Category, []*CategoryMap) {
	var (
		merged []profile.Category
		byName = make(map[string]profile.Index)
		subs   []map[string]profile.Index
		maps   = make([]*CategoryMap, len(lists))
	)
	for i, list := range lists {
		m := &CategoryMap{
			Categories:    make(IndexMap, len(list)),
			Subcategories: make([]IndexMap, len(list)),
		}
		for j, c := range list {
			idx, ok := byName[c.Name]
			if !ok {
				idx = profile.Index(len(merged))
				merged = append(merged, profile.Category{Name: c.Name, Color: c.Color})
				subs = append(subs, make(map[string]profile.Index))
				byName[c.Name] = idx
			}
			m.Categories[j] = idx
			sm := make(IndexMap, len(c.Subcategories))
			for k, name := range c.Subcategories {
				s, ok := subs[idx][name]
				if !ok {
					s = profile.Index(len(merged[idx].Subcategories))
					merged[idx].Subcategories = append(merged[idx].Subcategories, name)
					subs[idx][name] = s
				}
				sm[k] = s
			}
			m.Subcategories[j] = sm
		}
		maps[i] = m
	}
	return merged, maps
}
