package merge

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/profdiff/pkg/profile"
	"github.com/grafana/profdiff/pkg/util"
)

// ThreadSelector picks the thread of a profile taking part in a comparison.
type ThreadSelector interface {
	SelectThread(*profile.Profile) (int, error)
}

// ThreadIndex selects a thread by its position.
type ThreadIndex int

func (i ThreadIndex) SelectThread(p *profile.Profile) (int, error) {
	if int(i) < 0 || int(i) >= len(p.Threads) {
		return 0, fmt.Errorf("thread %d out of range [0, %d)", i, len(p.Threads))
	}
	return int(i), nil
}

type DiffResult struct {
	// Profile holds the selected threads, in input order, followed by the
	// thread merging them.
	Profile *profile.Profile
	Merged  *MergedThread
	// Threads holds the index of the selected thread of each input profile.
	Threads []int
}

// MergeForDiffing assembles a profile comparing one thread of each of the
// given profiles. Inputs are not modified.
func (m *Merger) MergeForDiffing(profiles []*profile.Profile, selectors []ThreadSelector) (_ *DiffResult, err error) {
	defer m.observe(operationDiff, time.Now(), &err)

	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles to compare", ErrInvalidArgument)
	}
	if len(profiles) != len(selectors) {
		return nil, fmt.Errorf("%w: %d profiles and %d thread selectors", ErrInvalidArgument, len(profiles), len(selectors))
	}

	var (
		selected = make([]int, len(profiles))
		sources  = make([]ThreadSource, len(profiles))
		threads  = make([]*profile.Thread, len(profiles))
	)
	for i, p := range profiles {
		if p == nil {
			return nil, fmt.Errorf("%w: profile %d is nil", ErrInvalidArgument, i)
		}
		if selectors[i] == nil {
			return nil, fmt.Errorf("%w: thread selector %d is nil", ErrInvalidArgument, i)
		}
		if selected[i], err = selectors[i].SelectThread(p); err != nil {
			return nil, fmt.Errorf("%w: profile %d: %w", ErrInvalidArgument, i, err)
		}
		if selected[i] < 0 || selected[i] >= len(p.Threads) {
			return nil, fmt.Errorf("%w: profile %d: thread %d out of range [0, %d)", ErrInvalidArgument, i, selected[i], len(p.Threads))
		}
		threads[i] = p.Threads[selected[i]]
		sources[i] = ThreadSource{
			Thread:       threads[i],
			Libs:         p.Libs,
			Categories:   p.Meta.Categories,
			MarkerSchema: p.Meta.MarkerSchema,
			Profile:      p,
		}
	}

	merged, err := m.mergeThreadSources(sources)
	if err != nil {
		return nil, err
	}
	if merged.Thread.Samples, err = mergeDiffSamples(threads, merged.StackOffsets); err != nil {
		return nil, err
	}
	merged.Thread.Name = diffThreadName(len(profiles))
	merged.Thread.ProcessName = merged.Thread.Name
	merged.Thread.IsMainThread = true

	retained := make([]*profile.Thread, len(threads))
	g := new(errgroup.Group)
	g.SetLimit(m.cfg.concurrency())
	for i, t := range threads {
		g.Go(util.RecoverPanic(func() error {
			r, err := retainThread(t, i, merged.LibMaps[i], merged.CategoryMaps[i])
			if err != nil {
				return fmt.Errorf("thread %d: %w", i, err)
			}
			retained[i] = r
			return nil
		}))
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	meta := profiles[0].Meta
	meta.Interval = lo.Min(lo.Map(profiles, func(p *profile.Profile, _ int) float64 { return p.Meta.Interval }))
	meta.StartTime = lo.Min(lo.Map(profiles, func(p *profile.Profile, _ int) float64 { return p.Meta.StartTime }))
	meta.Symbolicated = mergeSymbolicated(profiles)
	meta.Categories = merged.Categories
	meta.MarkerSchema = merged.MarkerSchema

	m.debug("msg", "diff profile assembled",
		"profiles", len(profiles),
		"samples", merged.Thread.Samples.Len(),
		"interval", meta.Interval,
	)

	return &DiffResult{
		Profile: &profile.Profile{
			Meta:    meta,
			Libs:    merged.Libs,
			Threads: append(retained, merged.Thread),
		},
		Merged:  merged,
		Threads: selected,
	}, nil
}

// retainThread copies a compared thread into the diff profile, rewriting
// its references to the profile-global tables.
func retainThread(t *profile.Thread, i int, libs IndexMap, categories *CategoryMap) (*profile.Thread, error) {
	c := t.Clone()
	name := t.ProcessName
	if name == "" {
		name = t.Name
	}
	c.ProcessName = fmt.Sprintf("Profile %d: %s", i+1, name)

	var err error
	for j := range c.ResourceTable.Lib {
		if c.ResourceTable.Lib[j], err = libs.Rewrite(c.ResourceTable.Lib[j]); err != nil {
			return nil, fmt.Errorf("resourceTable.lib[%d]: %w", j, err)
		}
	}
	for j := range c.NativeSymbols.LibIndex {
		if c.NativeSymbols.LibIndex[j], err = libs.Rewrite(c.NativeSymbols.LibIndex[j]); err != nil {
			return nil, fmt.Errorf("nativeSymbols.libIndex[%d]: %w", j, err)
		}
	}
	if categories.IsIdentity() {
		return c, nil
	}
	frames := c.FrameTable
	for j := range frames.Category {
		if frames.Category[j], frames.Subcategory[j], err = categories.Rewrite(frames.Category[j], frames.Subcategory[j]); err != nil {
			return nil, fmt.Errorf("frameTable[%d]: %w", j, err)
		}
	}
	stacks := c.StackTable
	for j := range stacks.Category {
		if stacks.Category[j], stacks.Subcategory[j], err = categories.Rewrite(stacks.Category[j], stacks.Subcategory[j]); err != nil {
			return nil, fmt.Errorf("stackTable[%d]: %w", j, err)
		}
	}
	for j := range c.Markers.Category {
		if c.Markers.Category[j], err = categories.Categories.Rewrite(c.Markers.Category[j]); err != nil {
			return nil, fmt.Errorf("markers.category[%d]: %w", j, err)
		}
	}
	return c, nil
}

// mergeSymbolicated reports the merged profile as symbolicated only if all
// inputs are, and as unknown only if no input reports it.
func mergeSymbolicated(profiles []*profile.Profile) *bool {
	var known, symbolicated int
	for _, p := range profiles {
		if s := p.Meta.Symbolicated; s != nil {
			known++
			if *s {
				symbolicated++
			}
		}
	}
	switch {
	case known == 0:
		return nil
	case symbolicated == len(profiles):
		return lo.ToPtr(true)
	default:
		return lo.ToPtr(false)
	}
}

func diffThreadName(n int) string {
	ids := lo.Map(lo.RangeFrom(1, n), func(i, _ int) string { return strconv.Itoa(i) })
	if n == 1 {
		return "Diff of " + ids[0]
	}
	return "Diff between " + strings.Join(ids[:n-1], ", ") + " and " + ids[n-1]
}
