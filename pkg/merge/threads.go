package merge

import (
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/profdiff/pkg/profile"
	"github.com/grafana/profdiff/pkg/util"
)

const mergedThreadName = "Merged thread"

// ThreadSource is a thread together with the profile-global tables its
// references resolve against.
type ThreadSource struct {
	Thread       *profile.Thread
	Libs         profile.LibraryTable
	Categories   []profile.Category
	MarkerSchema []profile.MarkerSchema
	// Profile is the profile the thread belongs to. Sources of the same
	// profile share its library and category tables; the tables of sources
	// without a profile are always merged.
	Profile *profile.Profile
}

// SourcesFromProfile returns the given threads of p as merge sources. All
// threads are returned if none is specified.
func SourcesFromProfile(p *profile.Profile, threads ...int) ([]ThreadSource, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", ErrInvalidArgument)
	}
	if len(threads) == 0 {
		threads = lo.Range(len(p.Threads))
	}
	sources := make([]ThreadSource, len(threads))
	for i, t := range threads {
		if t < 0 || t >= len(p.Threads) {
			return nil, fmt.Errorf("%w: thread %d out of range [0, %d)", ErrInvalidArgument, t, len(p.Threads))
		}
		sources[i] = ThreadSource{
			Thread:       p.Threads[t],
			Libs:         p.Libs,
			Categories:   p.Meta.Categories,
			MarkerSchema: p.Meta.MarkerSchema,
			Profile:      p,
		}
	}
	return sources, nil
}

// MergedThread is the result of merging several threads into one.
type MergedThread struct {
	Thread       *profile.Thread
	Libs         profile.LibraryTable
	Categories   []profile.Category
	MarkerSchema []profile.MarkerSchema

	// The fields below are indexed by source.
	LibMaps      []IndexMap
	CategoryMaps []*CategoryMap
	// StackOffsets holds the number of merged stacks preceding the stacks
	// of each source: source stack k is merged stack k+StackOffsets[i].
	StackOffsets []profile.Index
	FrameOffsets []profile.Index
}

type owners struct {
	libs       profile.LibraryTable
	categories []profile.Category
	schema     []profile.MarkerSchema
	libMaps    []IndexMap
	catMaps    []*CategoryMap
}

// mergeOwners merges the profile-global tables of the distinct owners of
// the sources, and returns the resulting maps per source.
func mergeOwners(sources []ThreadSource) owners {
	var (
		// order holds the first source of every owner.
		order    []int
		byOwner  = make([]int, len(sources))
		profiles = make(map[*profile.Profile]int)
	)
	for i, s := range sources {
		if s.Profile != nil {
			if o, ok := profiles[s.Profile]; ok {
				byOwner[i] = o
				continue
			}
			profiles[s.Profile] = len(order)
		}
		byOwner[i] = len(order)
		order = append(order, i)
	}

	var o owners
	var (
		libMaps []IndexMap
		catMaps []*CategoryMap
	)
	if len(order) == 1 {
		s := sources[0]
		o.libs = append(profile.LibraryTable{}, s.Libs...)
		o.categories = lo.Map(s.Categories, func(c profile.Category, _ int) profile.Category {
			c.Subcategories = append([]string(nil), c.Subcategories...)
			return c
		})
		libMaps = []IndexMap{identityMap(len(s.Libs))}
		catMaps = []*CategoryMap{identityCategoryMap(s.Categories)}
		o.schema = lo.UniqBy(s.MarkerSchema, func(m profile.MarkerSchema) string { return m.Name })
	} else {
		libs := make([]profile.LibraryTable, len(order))
		categories := make([][]profile.Category, len(order))
		var schema []profile.MarkerSchema
		for i, first := range order {
			s := sources[first]
			libs[i] = s.Libs
			categories[i] = s.Categories
			schema = append(schema, s.MarkerSchema...)
		}
		o.libs, libMaps = MergeLibraries(libs...)
		o.categories, catMaps = MergeCategories(categories...)
		o.schema = lo.UniqBy(schema, func(m profile.MarkerSchema) string { return m.Name })
	}

	o.libMaps = make([]IndexMap, len(sources))
	o.catMaps = make([]*CategoryMap, len(sources))
	for i := range sources {
		o.libMaps[i] = libMaps[byOwner[i]]
		o.catMaps[i] = catMaps[byOwner[i]]
	}
	return o
}

// sameSlice reports whether a and b are the same slice.
func sameSlice[T any](a, b []T) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

func (m *Merger) checkSources(sources []ThreadSource) error {
	if len(sources) == 0 {
		return fmt.Errorf("%w: no threads to merge", ErrInvalidArgument)
	}
	firstOf := make(map[*profile.Profile]ThreadSource)
	for i, s := range sources {
		if s.Thread == nil {
			return fmt.Errorf("%w: thread %d is nil", ErrInvalidArgument, i)
		}
		if s.Profile != nil {
			if f, ok := firstOf[s.Profile]; !ok {
				firstOf[s.Profile] = s
			} else if !sameSlice(f.Libs, s.Libs) || !sameSlice(f.Categories, s.Categories) {
				return fmt.Errorf("%w: thread %d does not share the library and category tables of its profile", ErrInvalidArgument, i)
			}
		}
		if missing := s.Thread.MissingTables(); len(missing) > 0 {
			return fmt.Errorf("thread %d (%s): %w: %v", i, s.Thread.Name, ErrMissingTable, missing)
		}
	}
	if m.cfg.SkipValidation {
		return nil
	}
	g := new(errgroup.Group)
	g.SetLimit(m.cfg.concurrency())
	for i, s := range sources {
		g.Go(util.RecoverPanic(func() error {
			if err := profile.ValidateThread(s.Thread, len(s.Libs), s.Categories); err != nil {
				return malformed(fmt.Errorf("thread %d (%s): %w", i, s.Thread.Name, err))
			}
			return nil
		}))
	}
	return g.Wait()
}

func (m *Merger) mergeThreadSources(sources []ThreadSource) (*MergedThread, error) {
	if err := m.checkSources(sources); err != nil {
		return nil, err
	}

	o := mergeOwners(sources)
	strings, stringMaps := MergeStringTables(lo.Map(sources, func(s ThreadSource, _ int) *profile.StringTable {
		return s.Thread.StringTable
	}))

	var (
		resources     = newResourceTable()
		nativeSymbols = newNativeSymbolTable()
		funcs         = newFuncTable()
		rewriters     = make([]*rewriter, len(sources))
		err           error
	)
	for i, s := range sources {
		r := &rewriter{
			strings:    stringMaps[i],
			libs:       o.libMaps[i],
			categories: o.catMaps[i],
		}
		if r.resources, err = resources.ingest(s.Thread.ResourceTable, r); err != nil {
			return nil, fmt.Errorf("thread %d: resourceTable: %w", i, err)
		}
		if r.nativeSymbols, err = nativeSymbols.ingest(s.Thread.NativeSymbols, r); err != nil {
			return nil, fmt.Errorf("thread %d: nativeSymbols: %w", i, err)
		}
		if r.funcs, err = funcs.ingest(s.Thread.FuncTable, r); err != nil {
			return nil, fmt.Errorf("thread %d: funcTable: %w", i, err)
		}
		rewriters[i] = r
	}

	var (
		frames       = &profile.FrameTable{}
		stacks       = &profile.StackTable{}
		frameOffsets = make([]profile.Index, len(sources))
		stackOffsets = make([]profile.Index, len(sources))
	)
	for i, s := range sources {
		if frameOffsets[i], err = concatenateFrames(frames, s.Thread.FrameTable, rewriters[i]); err != nil {
			return nil, fmt.Errorf("thread %d: %w", i, err)
		}
		if stackOffsets[i], err = concatenateStacks(stacks, s.Thread.StackTable, frameOffsets[i], s.Thread.FrameTable.Len(), rewriters[i]); err != nil {
			return nil, fmt.Errorf("thread %d: %w", i, err)
		}
	}

	markerSources := make([]markerSource, len(sources))
	for i, s := range sources {
		markerSources[i] = markerSource{
			markers:     s.Thread.Markers,
			strings:     stringMaps[i],
			categories:  o.catMaps[i],
			stackOffset: stackOffsets[i],
			stacks:      s.Thread.StackTable.Len(),
		}
	}
	markers, stats, err := mergeMarkers(markerSources, m.rewriters.withSchema(o.schema), payloadOptions{strict: m.cfg.StrictPayloads})
	if err != nil {
		return nil, err
	}

	t := &profile.Thread{
		Name:               mergedThreadName,
		ProcessName:        mergedThreadName,
		ProcessType:        "default",
		PID:                "0",
		TID:                "0",
		ProcessStartupTime: lo.Min(lo.Map(sources, func(s ThreadSource, _ int) float64 { return s.Thread.ProcessStartupTime })),
		RegisterTime:       lo.Min(lo.Map(sources, func(s ThreadSource, _ int) float64 { return s.Thread.RegisterTime })),
		Samples:            &profile.SamplesTable{WeightType: weightType(sources[0].Thread.Samples)},
		Markers:            markers,
		StackTable:         stacks,
		FrameTable:         frames,
		FuncTable:          funcs.table,
		ResourceTable:      resources.table,
		NativeSymbols:      nativeSymbols.table,
		StringTable:        strings,
	}

	m.observeRows("resourceTable", resources.appended, resources.deduplicated)
	m.observeRows("nativeSymbols", nativeSymbols.appended, nativeSymbols.deduplicated)
	m.observeRows("funcTable", funcs.appended, funcs.deduplicated)
	m.observeRows("frameTable", frames.Len(), 0)
	m.observeRows("stackTable", stacks.Len(), 0)
	m.observeRows("markers", markers.Len(), 0)
	if stats.untyped > 0 {
		m.warn("msg", "marker payloads without a type tag were passed through", "count", stats.untyped)
	}
	m.debug("msg", "threads merged",
		"threads", len(sources),
		"libs", len(o.libs),
		"strings", strings.Len(),
		"funcs", funcs.table.Len(),
		"stacks", stacks.Len(),
		"markers", markers.Len(),
		"payloads_rewritten", stats.rewritten,
	)

	return &MergedThread{
		Thread:       t,
		Libs:         o.libs,
		Categories:   o.categories,
		MarkerSchema: o.schema,
		LibMaps:      o.libMaps,
		CategoryMaps: o.catMaps,
		StackOffsets: stackOffsets,
		FrameOffsets: frameOffsets,
	}, nil
}
