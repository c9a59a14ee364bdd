package merge

import (
	"fmt"
	"sort"

	"github.com/grafana/profdiff/pkg/profile"
)

func weightType(s *profile.SamplesTable) string {
	if s == nil || s.WeightType == "" {
		return profile.WeightTypeSamples
	}
	return s.WeightType
}

type diffSample struct {
	source int
	stack  profile.Index
	time   float64
	weight float64
}

type diffSamples []diffSample

func (s diffSamples) Len() int           { return len(s) }
func (s diffSamples) Less(i, j int) bool { return s[i].time < s[j].time }
func (s diffSamples) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// mergeDiffSamples combines the samples of the compared threads into the
// samples of the merged thread. The first thread is the baseline: its
// weights are negated, so that the weight of a call node is the change
// between the baseline and the other threads. Samples are ordered by time;
// samples with equal times keep the order of their threads.
func mergeDiffSamples(threads []*profile.Thread, stackOffsets []profile.Index) (*profile.SamplesTable, error) {
	wt := weightType(threads[0].Samples)
	var n int
	for i, t := range threads {
		if w := weightType(t.Samples); w != wt {
			return nil, fmt.Errorf("%w: thread %d has weight type %q, thread 0 has %q", ErrIncompatibleProfiles, i, w, wt)
		}
		n += t.Samples.Len()
	}

	samples := make(diffSamples, 0, n)
	for i, t := range threads {
		sign := 1.0
		if i == 0 {
			sign = -1
		}
		stacks := t.StackTable.Len()
		for j := 0; j < t.Samples.Len(); j++ {
			stack := t.Samples.Stack[j]
			if !stack.IsNone() {
				if !stack.Valid(stacks) {
					return nil, malformed(fmt.Errorf("thread %d: samples.stack[%d] = %d out of range [0, %d)", i, j, stack, stacks))
				}
				stack += stackOffsets[i]
			}
			samples = append(samples, diffSample{
				source: i,
				stack:  stack,
				time:   t.Samples.Time[j],
				weight: sign * t.Samples.WeightAt(j),
			})
		}
	}
	sort.Stable(samples)

	out := &profile.SamplesTable{
		Stack:      make([]profile.Index, len(samples)),
		Time:       make([]float64, len(samples)),
		Weight:     make([]float64, len(samples)),
		WeightType: wt,
	}
	for i, s := range samples {
		out.Stack[i] = s.stack
		out.Time[i] = s.time
		out.Weight[i] = s.weight
	}
	return out, nil
}
