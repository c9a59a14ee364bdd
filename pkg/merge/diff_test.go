package merge

import (
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/profdiff/pkg/profile"
	"github.com/grafana/profdiff/pkg/profile/testhelper"
)

func textProfile(text string) *profile.Profile {
	p, _ := testhelper.ProfileFromTextSamples(text)
	return p
}

func firstThreads(n int) []ThreadSelector {
	s := make([]ThreadSelector, n)
	for i := range s {
		s[i] = ThreadIndex(0)
	}
	return s
}

func Test_MergeForDiffing(t *testing.T) {
	a := textProfile(`A[lib:libA]  B[lib:libA]`)
	b := textProfile(`A[lib:libA]  A[lib:libB]  C[lib:libC]`)
	before := fingerprints(t, a, b)

	res, err := MergeForDiffing([]*profile.Profile{a, b}, firstThreads(2))
	require.NoError(t, err)
	require.NoError(t, profile.Validate(res.Profile))

	diff := res.Profile
	require.Len(t, diff.Threads, 3)
	assert.Len(t, diff.Libs, 3)
	assert.Equal(t, []int{0, 0}, res.Threads)

	merged := diff.Threads[2]
	assert.Same(t, res.Merged.Thread, merged)
	assert.Equal(t, "Diff between 1 and 2", merged.Name)
	assert.Equal(t, 3, merged.ResourceTable.Len())
	assert.Equal(t, 4, merged.FuncTable.Len())

	// Both A functions are kept, each linked to its own library.
	var libsForA []string
	for i := 0; i < merged.FuncTable.Len(); i++ {
		r := merged.FuncTable.Resource[i]
		lib := diff.Libs[merged.ResourceTable.Lib[r]].Name
		resource := merged.StringTable.GetString(merged.ResourceTable.Name[r])
		switch merged.StringTable.GetString(merged.FuncTable.Name[i]) {
		case "A":
			libsForA = append(libsForA, lib)
			assert.Equal(t, lib, resource)
		case "B":
			assert.Equal(t, "libA", lib)
		case "C":
			assert.Equal(t, "libC", lib)
		}
	}
	assert.Equal(t, []string{"libA", "libB"}, libsForA)

	assert.Equal(t, "Profile 1: Process", diff.Threads[0].ProcessName)
	assert.Equal(t, "Profile 2: Process", diff.Threads[1].ProcessName)
	assert.Equal(t, before, fingerprints(t, a, b))
}

func Test_MergeForDiffing_Interval(t *testing.T) {
	a, b := textProfile(`A`), textProfile(`B`)
	a.Meta.Interval = 10
	b.Meta.Interval = 20

	res, err := MergeForDiffing([]*profile.Profile{a, b}, firstThreads(2))
	require.NoError(t, err)
	assert.Equal(t, float64(10), res.Profile.Meta.Interval)

	res, err = MergeForDiffing([]*profile.Profile{b, a}, firstThreads(2))
	require.NoError(t, err)
	assert.Equal(t, float64(10), res.Profile.Meta.Interval)
}

func Test_MergeForDiffing_Symbolicated(t *testing.T) {
	withSymbolicated := func(s *bool) *profile.Profile {
		p := textProfile(`A`)
		p.Meta.Symbolicated = s
		return p
	}
	var (
		symbolicated   = lo.ToPtr(true)
		unsymbolicated = lo.ToPtr(false)
	)
	for _, tc := range []struct {
		name     string
		a, b     *bool
		expected *bool
	}{
		{"all symbolicated", symbolicated, symbolicated, lo.ToPtr(true)},
		{"none symbolicated", unsymbolicated, unsymbolicated, lo.ToPtr(false)},
		{"some symbolicated", symbolicated, unsymbolicated, lo.ToPtr(false)},
		{"all unknown", nil, nil, nil},
		{"symbolicated and unknown", symbolicated, nil, lo.ToPtr(false)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res, err := MergeForDiffing(
				[]*profile.Profile{withSymbolicated(tc.a), withSymbolicated(tc.b)},
				firstThreads(2),
			)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res.Profile.Meta.Symbolicated)
		})
	}
}

func Test_MergeForDiffing_NativeSymbols(t *testing.T) {
	a := textProfile(`X[lib:libA]  Y[lib:libA]`)
	b := textProfile(`Z[lib:libB]  W[lib:libB]`)
	for p, names := range map[*profile.Profile][]string{a: {"X", "Y"}, b: {"Z", "W"}} {
		thread := p.Threads[0]
		for i, name := range names {
			thread.NativeSymbols.AppendRow(profile.NativeSymbolRow{
				LibIndex:     0,
				Address:      uint64(0x20 + 0x30*i),
				Name:         thread.StringTable.IndexForString(name),
				FunctionSize: -1,
			})
		}
	}

	res, err := MergeForDiffing([]*profile.Profile{a, b}, firstThreads(2))
	require.NoError(t, err)
	require.NoError(t, profile.Validate(res.Profile))

	threads := res.Profile.Threads
	assert.Equal(t, []profile.Index{0, 0}, threads[0].NativeSymbols.LibIndex)
	assert.Equal(t, []profile.Index{1, 1}, threads[1].NativeSymbols.LibIndex)
	assert.Equal(t, []profile.Index{0, 0, 1, 1}, threads[2].NativeSymbols.LibIndex)
	// Sources keep their own library indices.
	assert.Equal(t, []profile.Index{0, 0}, b.Threads[0].NativeSymbols.LibIndex)
	assert.Equal(t, []profile.Index{0}, b.Threads[0].ResourceTable.Lib)
	assert.Equal(t, []profile.Index{1}, threads[1].ResourceTable.Lib)
}

func Test_MergeForDiffing_Samples(t *testing.T) {
	a := textProfile(`A[lib:libA]  B[lib:libA]`)
	b := textProfile(`A[lib:libA]  A[lib:libB]  C[lib:libC]`)

	res, err := MergeForDiffing([]*profile.Profile{a, b}, firstThreads(2))
	require.NoError(t, err)

	samples := res.Profile.Threads[2].Samples
	assert.Equal(t, []profile.Index{0, 2, 1, 3, 4}, samples.Stack)
	assert.Equal(t, []float64{0, 0, 1, 1, 2}, samples.Time)
	assert.Equal(t, []float64{-1, 1, -1, 1, 1}, samples.Weight)
	assert.Equal(t, profile.WeightTypeSamples, samples.WeightType)
	assert.Equal(t, []profile.Index{0, 2}, res.Merged.StackOffsets)

	// Retained threads keep their own samples.
	assert.Equal(t, a.Threads[0].Samples, res.Profile.Threads[0].Samples)
	assert.Nil(t, res.Profile.Threads[1].Samples.Weight)
}

func Test_MergeForDiffing_WeightedSamples(t *testing.T) {
	a, b := textProfile(`A  B`), textProfile(`A`)
	a.Threads[0].Samples.Weight = []float64{3, 4}
	a.Threads[0].Samples.Time = []float64{5, 1}
	b.Threads[0].Samples.Weight = []float64{7}
	b.Threads[0].Samples.Time = []float64{1}

	res, err := MergeForDiffing([]*profile.Profile{a, b}, firstThreads(2))
	require.NoError(t, err)
	samples := res.Profile.Threads[2].Samples
	assert.Equal(t, []float64{1, 1, 5}, samples.Time)
	assert.Equal(t, []float64{-4, 7, -3}, samples.Weight)
}

func Test_MergeForDiffing_IncompatibleWeights(t *testing.T) {
	a, b := textProfile(`A`), textProfile(`B`)
	b.Threads[0].Samples.WeightType = profile.WeightTypeBytes

	_, err := MergeForDiffing([]*profile.Profile{a, b}, firstThreads(2))
	assert.ErrorIs(t, err, ErrIncompatibleProfiles)
}

func Test_MergeForDiffing_MalformedSampleStack(t *testing.T) {
	for _, skip := range []bool{false, true} {
		a, b := textProfile(`A  B`), textProfile(`C`)
		require.Equal(t, 2, a.Threads[0].StackTable.Len())
		a.Threads[0].Samples.Stack[1] = 5

		_, err := New(Config{SkipValidation: skip}, nil, nil).MergeForDiffing([]*profile.Profile{a, b}, firstThreads(2))
		require.ErrorIs(t, err, ErrMalformedInput, "skip validation: %v", skip)
		assert.Contains(t, err.Error(), "samples.stack[1] = 5")
	}
}

func Test_MergeForDiffing_Categories(t *testing.T) {
	a, b := textProfile(`A`), textProfile(`B  C`)
	b.Meta.Categories = []profile.Category{b.Meta.Categories[1], b.Meta.Categories[0]}
	testhelper.AddMarkers(b.Threads[0], testhelper.Instant("M", 0))

	res, err := MergeForDiffing([]*profile.Profile{a, b}, firstThreads(2))
	require.NoError(t, err)
	require.NoError(t, profile.Validate(res.Profile))

	assert.Equal(t, []string{"Other", "JavaScript"}, lo.Map(res.Profile.Meta.Categories, func(c profile.Category, _ int) string {
		return c.Name
	}))
	retained := res.Profile.Threads[1]
	assert.Equal(t, []profile.Index{1, 1}, retained.FrameTable.Category)
	assert.Equal(t, []profile.Index{1, 1}, retained.StackTable.Category)
	assert.Equal(t, []profile.Index{1}, retained.Markers.Category)
	// The first profile owns the merged category list and is left as is.
	assert.Equal(t, []profile.Index{0}, res.Profile.Threads[0].FrameTable.Category)
	assert.Equal(t, []profile.Index{0, 0}, b.Threads[0].FrameTable.Category)
}

func Test_MergeForDiffing_ThreeProfiles(t *testing.T) {
	profiles := []*profile.Profile{
		textProfile(`A[lib:libA]  B[lib:libA]`),
		textProfile(`A[lib:libA]  A[lib:libB]  C[lib:libC]`),
		textProfile(`A[lib:libA]  A[lib:libB]  D[lib:libD]`),
	}
	res, err := MergeForDiffing(profiles, firstThreads(3))
	require.NoError(t, err)
	require.NoError(t, profile.Validate(res.Profile))

	require.Len(t, res.Profile.Threads, 4)
	assert.Len(t, res.Profile.Libs, 4)
	assert.Equal(t, "Diff between 1, 2 and 3", res.Profile.Threads[3].Name)
	assert.Equal(t, 5, res.Profile.Threads[3].FuncTable.Len())
}

type threadByName string

func (n threadByName) SelectThread(p *profile.Profile) (int, error) {
	for i, t := range p.Threads {
		if t.Name == string(n) {
			return i, nil
		}
	}
	return 0, errors.New("thread not found")
}

func Test_MergeForDiffing_Selectors(t *testing.T) {
	a, _ := testhelper.ProfileFromTextSamples(`A`, `B`)
	b := textProfile(`C`)

	res, err := MergeForDiffing([]*profile.Profile{a, b}, []ThreadSelector{threadByName("Thread 1"), ThreadIndex(0)})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, res.Threads)
	assert.Equal(t, []string{"B []", "C []"}, funcResources(res.Profile.Threads[2]))

	_, err = MergeForDiffing([]*profile.Profile{a, b}, []ThreadSelector{threadByName("Thread 7"), ThreadIndex(0)})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "thread not found")
}

func Test_MergeForDiffing_InvalidArguments(t *testing.T) {
	a, b := textProfile(`A`), textProfile(`B`)
	for _, tc := range []struct {
		name      string
		profiles  []*profile.Profile
		selectors []ThreadSelector
	}{
		{"no profiles", nil, nil},
		{"selector count", []*profile.Profile{a, b}, firstThreads(1)},
		{"thread out of range", []*profile.Profile{a, b}, []ThreadSelector{ThreadIndex(0), ThreadIndex(1)}},
		{"negative thread", []*profile.Profile{a, b}, []ThreadSelector{ThreadIndex(-1), ThreadIndex(0)}},
		{"nil profile", []*profile.Profile{a, nil}, firstThreads(2)},
		{"nil selector", []*profile.Profile{a, b}, []ThreadSelector{ThreadIndex(0), nil}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MergeForDiffing(tc.profiles, tc.selectors)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func Test_diffThreadName(t *testing.T) {
	assert.Equal(t, "Diff of 1", diffThreadName(1))
	assert.Equal(t, "Diff between 1 and 2", diffThreadName(2))
	assert.Equal(t, "Diff between 1, 2, 3 and 4", diffThreadName(4))
}
