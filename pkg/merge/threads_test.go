package merge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/profdiff/pkg/profile"
	"github.com/grafana/profdiff/pkg/profile/testhelper"
)

// funcResources describes every function of the thread as "name [resource]".
func funcResources(t *profile.Thread) []string {
	s := make([]string, t.FuncTable.Len())
	for i := range s {
		var resource string
		if r := t.FuncTable.Resource[i]; !r.IsNone() {
			resource = t.StringTable.GetString(t.ResourceTable.Name[r])
		}
		s[i] = fmt.Sprintf("%s [%s]", t.StringTable.GetString(t.FuncTable.Name[i]), resource)
	}
	return s
}

func fingerprints(t *testing.T, profiles ...*profile.Profile) []uint64 {
	t.Helper()
	f := make([]uint64, len(profiles))
	for i, p := range profiles {
		var err error
		f[i], err = profile.Fingerprint(p)
		require.NoError(t, err)
	}
	return f
}

func requireValidThread(t *testing.T, m *MergedThread) {
	t.Helper()
	require.NoError(t, profile.ValidateThread(m.Thread, len(m.Libs), m.Categories))
}

func Test_MergeThreads_TwoThreads(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(
		`A[lib:libA]  B[lib:libA]`,
		`A[lib:libA]  A[lib:libB]  C[lib:libC]`,
	)
	before := fingerprints(t, p)

	merged, err := MergeThreads(p)
	require.NoError(t, err)
	requireValidThread(t, merged)

	assert.Len(t, p.Libs, 3)
	assert.Equal(t, p.Libs, merged.Libs)
	assert.Equal(t, 3, merged.Thread.ResourceTable.Len())
	assert.Equal(t, 4, merged.Thread.FuncTable.Len())
	assert.Equal(t, []string{
		"A [libA]",
		"B [libA]",
		"A [libB]",
		"C [libC]",
	}, funcResources(merged.Thread))

	assert.Equal(t, mergedThreadName, merged.Thread.Name)
	assert.Equal(t, 0, merged.Thread.Samples.Len())
	assert.Equal(t, before, fingerprints(t, p))
}

func Test_MergeThreads_ThreeThreads(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(
		`A[lib:libA]  B[lib:libA]`,
		`A[lib:libA]  A[lib:libB]  C[lib:libC]`,
		`A[lib:libA]  A[lib:libB]  D[lib:libD]`,
	)

	merged, err := MergeThreads(p)
	require.NoError(t, err)
	requireValidThread(t, merged)

	assert.Len(t, p.Libs, 4)
	assert.Equal(t, 4, merged.Thread.ResourceTable.Len())
	assert.Equal(t, 5, merged.Thread.FuncTable.Len())
	assert.Equal(t, []string{
		"A [libA]",
		"B [libA]",
		"A [libB]",
		"C [libC]",
		"D [libD]",
	}, funcResources(merged.Thread))
}

func Test_MergeThreads_SelectedThreads(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(`A  B`, `C`, `D  E`)

	merged, err := MergeThreads(p, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"D []", "E []", "A []", "B []"}, funcResources(merged.Thread))

	_, err = MergeThreads(p, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func Test_MergeThreads_StackOffsets(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(`
		A  A  A
		B  B  C
		D  E  F
	`, `
		A  X
		C  Y
	`, `
		Z
	`)

	merged, err := MergeThreads(p)
	require.NoError(t, err)
	requireValidThread(t, merged)

	mt := merged.Thread
	var stacks, frames profile.Index
	for i, src := range p.Threads {
		require.Equal(t, stacks, merged.StackOffsets[i])
		require.Equal(t, frames, merged.FrameOffsets[i])
		for k := 0; k < src.StackTable.Len(); k++ {
			s := profile.Index(k) + merged.StackOffsets[i]
			assert.Equal(t, src.StackTable.Frame[k]+merged.FrameOffsets[i], mt.StackTable.Frame[s])
			if prefix := src.StackTable.Prefix[k]; prefix.IsNone() {
				assert.Equal(t, profile.None, mt.StackTable.Prefix[s])
			} else {
				assert.Equal(t, prefix+merged.StackOffsets[i], mt.StackTable.Prefix[s])
			}
			// The merged stack resolves to the same function name.
			srcFunc := src.FrameTable.Func[src.StackTable.Frame[k]]
			mergedFunc := mt.FrameTable.Func[mt.StackTable.Frame[s]]
			assert.Equal(t,
				src.StringTable.GetString(src.FuncTable.Name[srcFunc]),
				mt.StringTable.GetString(mt.FuncTable.Name[mergedFunc]),
			)
		}
		stacks += profile.Index(src.StackTable.Len())
		frames += profile.Index(src.FrameTable.Len())
	}
	assert.Equal(t, int(stacks), mt.StackTable.Len())
	assert.Equal(t, int(frames), mt.FrameTable.Len())
}

func Test_MergeThreads_Markers(t *testing.T) {
	p := testhelper.ProfileWithMarkers(
		[]testhelper.TestMarker{
			testhelper.Instant("Thread1 Marker1", 2),
			testhelper.Interval("Thread1 Marker2", 3, 5),
			testhelper.Interval("Thread1 Marker3", 6, 7).WithData(profile.MarkerPayload{
				"type": "Log", "name": "test name 1", "module": "test module 1",
			}),
		},
		[]testhelper.TestMarker{
			testhelper.Instant("Thread2 Marker1", 1),
			testhelper.Interval("Thread2 Marker2", 3, 4),
			testhelper.Interval("Thread2 Marker3", 8, 9).WithData(profile.MarkerPayload{
				"type": "Log", "name": "test name 2", "module": "test module 2",
			}),
		},
	)
	before := fingerprints(t, p)

	merged, err := MergeThreads(p)
	require.NoError(t, err)
	requireValidThread(t, merged)

	markers := merged.Thread.Markers
	require.Equal(t, 6, markers.Len())
	assert.Equal(t, 6, merged.Thread.StringTable.Len())

	names := make([]string, markers.Len())
	for i := range names {
		names[i] = merged.Thread.StringTable.GetString(markers.Name[i])
	}
	assert.Equal(t, []string{
		"Thread1 Marker1",
		"Thread1 Marker2",
		"Thread1 Marker3",
		"Thread2 Marker1",
		"Thread2 Marker2",
		"Thread2 Marker3",
	}, names)
	assert.Equal(t, []float64{2, 3, 6, 1, 3, 8}, markers.StartTime)
	assert.Equal(t, []*float64{nil, ptr(5), ptr(7), nil, ptr(4), ptr(9)}, markers.EndTime)
	assert.Equal(t, []profile.Index{0, 0, 0, 1, 1, 1}, markers.ThreadID)
	assert.Equal(t, "test name 2", markers.Data[5]["name"])
	assert.Equal(t, before, fingerprints(t, p))
}

func ptr(f float64) *float64 { return &f }

func Test_MergeThreads_MarkerCauseStacks(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(`
		A  A
		B  B
		C  D
	`, `
		A  A
		B  B
		E  C
	`)
	p.Meta.MarkerSchema = testhelper.TestMarkerSchema

	stacksBefore := make([]profile.Index, len(p.Threads))
	for i, thread := range p.Threads {
		stacksBefore[i] = testhelper.LeafStack(thread, "C")
		testhelper.AddMarkers(thread, testhelper.Interval("Paint", 2, 3).WithData(profile.MarkerPayload{
			"type":     "tracing",
			"category": "Paint",
			"cause":    map[string]any{"time": float64(2), "stack": float64(stacksBefore[i])},
		}))
	}
	before := fingerprints(t, p)

	merged, err := MergeThreads(p)
	require.NoError(t, err)
	requireValidThread(t, merged)

	markers := merged.Thread.Markers
	require.Equal(t, 2, markers.Len())
	stacksAfter := make([]profile.Index, markers.Len())
	for i, data := range markers.Data {
		var ok bool
		stacksAfter[i], ok = data.CauseStack()
		require.True(t, ok)
	}
	// The first thread is not shifted, the second one is shifted by the
	// stacks of the first one.
	assert.Equal(t, stacksBefore[0], stacksAfter[0])
	assert.Equal(t, stacksBefore[1]+profile.Index(p.Threads[0].StackTable.Len()), stacksAfter[1])
	assert.Equal(t, "C", leafFuncName(merged.Thread, stacksAfter[1]))

	// Untouched fields are kept and sources are not modified.
	cause, _ := markers.Data[1].Cause()
	assert.Equal(t, float64(2), cause["time"])
	assert.Equal(t, before, fingerprints(t, p))
	stack, _ := p.Threads[1].Markers.Data[0].CauseStack()
	assert.Equal(t, stacksBefore[1], stack)
}

func leafFuncName(t *profile.Thread, stack profile.Index) string {
	f := t.FrameTable.Func[t.StackTable.Frame[stack]]
	return t.StringTable.GetString(t.FuncTable.Name[f])
}

func Test_MergeThreads_CompositorScreenshotURLs(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(`A`, `B`)
	urls := []string{"Url1", "Url2"}
	for i, thread := range p.Threads {
		testhelper.AddMarkers(thread, testhelper.Interval("CompositorScreenshot", float64(i+1), float64(i+2)).
			WithData(profile.MarkerPayload{
				"type":         PayloadTypeCompositorScreenshot,
				"url":          thread.StringTable.IndexForString(urls[i]),
				"windowID":     fmt.Sprintf("window-%d", i),
				"windowWidth":  float64(300),
				"windowHeight": float64(600),
			}))
	}

	merged, err := MergeThreads(p)
	require.NoError(t, err)
	requireValidThread(t, merged)

	markers := merged.Thread.Markers
	require.Equal(t, 2, markers.Len())
	for i, data := range markers.Data {
		idx, ok := profile.IndexValue(data["url"])
		require.True(t, ok)
		assert.Equal(t, urls[i], merged.Thread.StringTable.GetString(idx))
		assert.Equal(t, fmt.Sprintf("window-%d", i), data["windowID"])
	}
}

func Test_MergeThreads_SchemaStringFields(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(`A`, `B`)
	p.Meta.MarkerSchema = testhelper.TestMarkerSchema
	details := []string{"first", "second"}
	for i, thread := range p.Threads {
		testhelper.AddMarkers(thread, testhelper.Instant("Text", 1).WithData(profile.MarkerPayload{
			"type": "Text",
			"name": thread.StringTable.IndexForString(details[i]),
		}))
	}

	merged, err := MergeThreads(p)
	require.NoError(t, err)
	for i, data := range merged.Thread.Markers.Data {
		idx, ok := profile.IndexValue(data["name"])
		require.True(t, ok)
		assert.Equal(t, details[i], merged.Thread.StringTable.GetString(idx))
	}
}

func Test_MergeThreads_PayloadRewriter(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(`A`, `B`)
	for _, thread := range p.Threads {
		testhelper.AddMarkers(thread, testhelper.Instant("Load", 1).WithData(profile.MarkerPayload{
			"type": "Network",
			"uri":  thread.StringTable.IndexForString("https://" + thread.Name),
		}))
	}

	m := New(Config{}, nil, nil)
	m.RegisterPayloadRewriter("Network", StringFieldsRewriter("uri"))
	merged, err := m.MergeThreads(p)
	require.NoError(t, err)
	for i, data := range merged.Thread.Markers.Data {
		idx, _ := profile.IndexValue(data["uri"])
		assert.Equal(t, "https://"+p.Threads[i].Name, merged.Thread.StringTable.GetString(idx))
	}
}

func Test_MergeThreads_UntypedPayloads(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(`A`, `B`)
	untyped := profile.MarkerPayload{"foo": "bar"}
	testhelper.AddMarkers(p.Threads[1], testhelper.Instant("Custom", 1).WithData(untyped))

	merged, err := MergeThreads(p)
	require.NoError(t, err)
	assert.Equal(t, untyped, merged.Thread.Markers.Data[0])

	_, err = New(Config{StrictPayloads: true}, nil, nil).MergeThreads(p)
	assert.ErrorIs(t, err, ErrUnsupportedPayload)
	assert.Contains(t, err.Error(), "thread 1: markers.data[0]")
}

func Test_MergeThreads_UnsupportedPayloads(t *testing.T) {
	for _, tc := range []struct {
		name string
		data profile.MarkerPayload
	}{
		{"cause is not an object", profile.MarkerPayload{"type": "tracing", "cause": "oops"}},
		{"cause stack is not an index", profile.MarkerPayload{"type": "tracing", "cause": map[string]any{"stack": "top"}}},
		{"screenshot url is not an index", profile.MarkerPayload{"type": PayloadTypeCompositorScreenshot, "url": "http://"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := testhelper.ProfileFromTextSamples(`A`)
			testhelper.AddMarkers(p.Threads[0], testhelper.Instant("M", 0).WithData(tc.data))
			_, err := New(Config{SkipValidation: true}, nil, nil).MergeThreads(p)
			assert.ErrorIs(t, err, ErrUnsupportedPayload)
		})
	}
}

func Test_MergeThreads_MissingTable(t *testing.T) {
	p, _ := testhelper.ProfileFromTextSamples(`A`, `B`)
	p.Threads[1].FuncTable = nil

	_, err := MergeThreads(p)
	require.ErrorIs(t, err, ErrMissingTable)
	assert.ErrorIs(t, err, profile.ErrMissingTable)
	assert.Contains(t, err.Error(), "funcTable")
}

func Test_MergeThreads_MalformedInput(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		p, _ := testhelper.ProfileFromTextSamples(`A`, `B`)
		p.Threads[1].StackTable.Frame[0] = 42

		_, err := MergeThreads(p)
		require.ErrorIs(t, err, ErrMalformedInput)
		assert.ErrorIs(t, err, profile.ErrInvalidReference)
		assert.Contains(t, err.Error(), "thread 1")
	})

	for _, tc := range []struct {
		name   string
		modify func(*profile.Thread)
	}{
		{"func", func(t *profile.Thread) { t.FrameTable.Func[0] = 42 }},
		{"resource", func(t *profile.Thread) { t.FuncTable.Resource[0] = 42 }},
		{"string", func(t *profile.Thread) { t.FuncTable.Name[0] = 42 }},
		{"prefix", func(t *profile.Thread) { t.StackTable.Prefix[0] = 0 }},
		{"category", func(t *profile.Thread) { t.FrameTable.Category[0] = 42 }},
		{"marker cause", func(t *profile.Thread) {
			testhelper.AddMarkers(t, testhelper.Instant("M", 0).WithData(profile.MarkerPayload{
				"type": "tracing", "cause": map[string]any{"stack": float64(42)},
			}))
		}},
	} {
		t.Run("unvalidated "+tc.name, func(t *testing.T) {
			p, _ := testhelper.ProfileFromTextSamples(`A[lib:libA]`, `B[lib:libB]`)
			tc.modify(p.Threads[1])

			_, err := New(Config{SkipValidation: true}, nil, nil).MergeThreads(p)
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func Test_MergeThreadSources_DistinctOwners(t *testing.T) {
	a, _ := testhelper.ProfileFromTextSamples(`X[lib:libA]`)
	b, _ := testhelper.ProfileFromTextSamples(`Y[lib:libB]  X[lib:libA]`)
	b.Meta.Categories = []profile.Category{b.Meta.Categories[1], b.Meta.Categories[0]}

	merged, err := New(Config{}, nil, nil).MergeThreadSources([]ThreadSource{
		{Thread: a.Threads[0], Libs: a.Libs, Categories: a.Meta.Categories, Profile: a},
		{Thread: b.Threads[0], Libs: b.Libs, Categories: b.Meta.Categories, Profile: b},
	})
	require.NoError(t, err)
	requireValidThread(t, merged)

	assert.Equal(t, []string{"libA", "libB"}, libNames(merged.Libs))
	assert.Equal(t, []IndexMap{{0}, {1, 0}}, merged.LibMaps)
	assert.True(t, merged.CategoryMaps[0].IsIdentity())
	assert.Equal(t, IndexMap{1, 0}, merged.CategoryMaps[1].Categories)
	// Frames of b used category 0 (JavaScript in b), which is 1 in the merged list.
	assert.Equal(t, []profile.Index{0, 1, 1}, merged.Thread.FrameTable.Category)
	assert.Equal(t, []string{"X [libA]", "Y [libB]"}, funcResources(merged.Thread))
}

func Test_MergeThreadSources_SourcesOfSeveralProfiles(t *testing.T) {
	a, _ := testhelper.ProfileFromTextSamples(`A[lib:libA]`)
	b, _ := testhelper.ProfileFromTextSamples(`A[lib:libB]`)

	as, err := SourcesFromProfile(a)
	require.NoError(t, err)
	bs, err := SourcesFromProfile(b)
	require.NoError(t, err)

	merged, err := New(Config{}, nil, nil).MergeThreadSources(append(as, bs...))
	require.NoError(t, err)
	requireValidThread(t, merged)

	assert.Equal(t, []string{"libA", "libB"}, libNames(merged.Libs))
	assert.Equal(t, []IndexMap{{0}, {1}}, merged.LibMaps)
	assert.Equal(t, []string{"A [libA]", "A [libB]"}, funcResources(merged.Thread))
	assert.Equal(t, []profile.Index{0, 1}, merged.Thread.ResourceTable.Lib)

	// Without a profile, every source is merged as its own owner.
	for i := range as {
		as[i].Profile = nil
	}
	for i := range bs {
		bs[i].Profile = nil
	}
	merged, err = New(Config{}, nil, nil).MergeThreadSources(append(as, bs...))
	require.NoError(t, err)
	assert.Equal(t, []string{"libA", "libB"}, libNames(merged.Libs))
	assert.Equal(t, []profile.Index{0, 1}, merged.Thread.ResourceTable.Lib)
}

func Test_MergeThreadSources_ProfileTablesMismatch(t *testing.T) {
	a, _ := testhelper.ProfileFromTextSamples(`A[lib:libA]`, `B[lib:libA]`)
	b, _ := testhelper.ProfileFromTextSamples(`A[lib:libB]`)

	sources, err := SourcesFromProfile(a)
	require.NoError(t, err)
	sources[1].Libs = b.Libs

	_, err = New(Config{}, nil, nil).MergeThreadSources(sources)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "thread 1")
}

func libNames(libs profile.LibraryTable) []string {
	names := make([]string, len(libs))
	for i, l := range libs {
		names[i] = l.Name
	}
	return names
}

func Test_MergeThreadSources_InvalidArguments(t *testing.T) {
	m := New(Config{}, nil, nil)
	_, err := m.MergeThreadSources(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = m.MergeThreadSources([]ThreadSource{{}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
