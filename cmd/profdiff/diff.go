package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/profdiff/pkg/merge"
	"github.com/grafana/profdiff/pkg/profile"
	"github.com/grafana/profdiff/pkg/util"
)

// threadSelector selects a thread by index, or by name if the value is not
// a number.
type threadSelector string

func (s threadSelector) SelectThread(p *profile.Profile) (int, error) {
	if i, err := strconv.Atoi(string(s)); err == nil {
		return merge.ThreadIndex(i).SelectThread(p)
	}
	_, i, ok := lo.FindIndexOf(p.Threads, func(t *profile.Thread) bool { return t.Name == string(s) })
	if !ok {
		return 0, fmt.Errorf("no thread named %q", string(s))
	}
	return i, nil
}

type diffParams struct {
	files   []string
	threads []string
	output  string
}

func addDiffParams(cmd *kingpin.CmdClause) *diffParams {
	params := new(diffParams)
	cmd.Arg("file", "profile file path").Required().ExistingFilesVar(&params.files)
	cmd.Flag("thread", "Thread to compare, by index or name. Given once per profile, or once for all. Defaults to the first thread.").StringsVar(&params.threads)
	cmd.Flag("output", "Path of the diff profile. A .gz extension compresses it.").Short('o').Default("diff.json").StringVar(&params.output)
	return params
}

func (p *diffParams) selectors() ([]merge.ThreadSelector, error) {
	switch len(p.threads) {
	case 0:
		return lo.Map(p.files, func(string, int) merge.ThreadSelector { return merge.ThreadIndex(0) }), nil
	case 1:
		return lo.Map(p.files, func(string, int) merge.ThreadSelector { return threadSelector(p.threads[0]) }), nil
	case len(p.files):
		return lo.Map(p.threads, func(t string, _ int) merge.ThreadSelector { return threadSelector(t) }), nil
	default:
		return nil, fmt.Errorf("%d threads given for %d profiles", len(p.threads), len(p.files))
	}
}

func openProfiles(ctx context.Context, files []string) ([]*profile.Profile, error) {
	profiles := make([]*profile.Profile, len(files))
	for i, path := range files {
		p, err := profile.OpenFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading profile %s", path)
		}
		level.Debug(util.LoggerWithProfile(path, util.LoggerFromContext(ctx))).Log(
			"msg", "profile loaded",
			"threads", len(p.Threads),
			"libs", len(p.Libs),
		)
		profiles[i] = p
	}
	return profiles, nil
}

func diff(ctx context.Context, params *diffParams) error {
	selectors, err := params.selectors()
	if err != nil {
		return err
	}
	profiles, err := openProfiles(ctx, params.files)
	if err != nil {
		return err
	}
	result, err := newMerger(ctx).MergeForDiffing(profiles, selectors)
	if err != nil {
		return errors.Wrap(err, "comparing profiles")
	}
	if err = profile.WriteFile(params.output, result.Profile); err != nil {
		return errors.Wrapf(err, "writing %s", params.output)
	}
	level.Info(util.LoggerFromContext(ctx)).Log(
		"msg", "diff profile written",
		"path", params.output,
		"threads", fmt.Sprint(result.Threads),
		"samples", result.Merged.Thread.Samples.Len(),
	)
	return nil
}

type mergeThreadsParams struct {
	file    string
	threads []int
	output  string
}

func addMergeThreadsParams(cmd *kingpin.CmdClause) *mergeThreadsParams {
	params := new(mergeThreadsParams)
	cmd.Arg("file", "profile file path").Required().ExistingFileVar(&params.file)
	cmd.Flag("thread", "Index of a thread to merge. All threads are merged if none is given.").IntsVar(&params.threads)
	cmd.Flag("output", "Path of the merged profile. A .gz extension compresses it.").Short('o').Default("merged.json").StringVar(&params.output)
	return params
}

func mergeThreads(ctx context.Context, params *mergeThreadsParams) error {
	profiles, err := openProfiles(ctx, []string{params.file})
	if err != nil {
		return err
	}
	p := profiles[0]
	merged, err := newMerger(ctx).MergeThreads(p, params.threads...)
	if err != nil {
		return errors.Wrap(err, "merging threads")
	}

	meta := p.Meta
	meta.Categories = merged.Categories
	meta.MarkerSchema = merged.MarkerSchema
	out := &profile.Profile{
		Meta:    meta,
		Libs:    merged.Libs,
		Threads: []*profile.Thread{merged.Thread},
	}
	if err = profile.WriteFile(params.output, out); err != nil {
		return errors.Wrapf(err, "writing %s", params.output)
	}
	level.Info(util.LoggerFromContext(ctx)).Log(
		"msg", "merged profile written",
		"path", params.output,
		"stacks", merged.Thread.StackTable.Len(),
		"markers", merged.Thread.Markers.Len(),
	)
	return nil
}
