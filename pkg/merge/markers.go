package merge

import (
	"fmt"

	"github.com/grafana/profdiff/pkg/profile"
)

type markerSource struct {
	markers     *profile.MarkerTable
	strings     IndexMap
	categories  *CategoryMap
	stackOffset profile.Index
	stacks      int
}

type markerStats struct {
	rewritten int
	// untyped counts payloads passed through without a type tag.
	untyped int
}

// mergeMarkers concatenates the marker tables in source order. The merged
// table records the position of the originating source in ThreadID.
// Markers are neither deduplicated nor sorted.
func mergeMarkers(sources []markerSource, rewriters payloadRewriters, opts payloadOptions) (*profile.MarkerTable, markerStats, error) {
	var (
		merged = &profile.MarkerTable{ThreadID: []profile.Index{}}
		stats  markerStats
	)
	for s, src := range sources {
		ctx := &PayloadContext{
			strings:     src.strings,
			stackOffset: src.stackOffset,
			stacks:      src.stacks,
		}
		for i := 0; i < src.markers.Len(); i++ {
			row := src.markers.Row(i)
			var err error
			if row.Name, err = src.strings.Rewrite(row.Name); err != nil {
				return nil, stats, fmt.Errorf("thread %d: markers.name[%d]: %w", s, i, err)
			}
			if row.Category, err = src.categories.Categories.Rewrite(row.Category); err != nil {
				return nil, stats, fmt.Errorf("thread %d: markers.category[%d]: %w", s, i, err)
			}
			data, rewritten, err := rewriters.rewritePayload(ctx, row.Data, opts)
			if err != nil {
				return nil, stats, fmt.Errorf("thread %d: markers.data[%d]: %w", s, i, err)
			}
			if rewritten {
				stats.rewritten++
			} else if data != nil && data.Type() == "" && len(data) > 0 {
				stats.untyped++
			}
			row.Data = data
			merged.AppendRow(row)
			merged.ThreadID = append(merged.ThreadID, profile.Index(s))
		}
	}
	return merged, stats, nil
}
