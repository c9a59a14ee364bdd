package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/grafana/profdiff/pkg/profile"
)

func inspect(ctx context.Context, files ...string) error {
	out := output(ctx)
	for _, path := range files {
		stats, err := os.Stat(path)
		if err != nil {
			return err
		}
		p, err := profile.OpenFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading profile %s", path)
		}
		fmt.Fprintln(out, "Profile:", path)
		fmt.Fprintln(out, "\t Size:", humanize.Bytes(uint64(stats.Size())))
		fmt.Fprintln(out, "\t Product:", p.Meta.Product)
		fmt.Fprintln(out, "\t Interval:", p.Meta.Interval)
		fmt.Fprintln(out, "\t Libs:", len(p.Libs))
		fmt.Fprintln(out, "\t Categories:", len(p.Meta.Categories))
		if fp, err := profile.Fingerprint(p); err != nil {
			fmt.Fprintln(out, "\t Fingerprint: -", err)
		} else {
			fmt.Fprintf(out, "\t Fingerprint: %016x\n", fp)
		}
		fmt.Fprintln(out, "\t Threads:")

		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{
			"#", "Name", "Process", "Samples", "Markers", "Stacks", "Frames", "Funcs", "Resources", "Strings",
		})
		for i, t := range p.Threads {
			table.Append([]string{
				strconv.Itoa(i),
				t.Name,
				t.ProcessName,
				rowCount(t.Samples),
				rowCount(t.Markers),
				rowCount(t.StackTable),
				rowCount(t.FrameTable),
				rowCount(t.FuncTable),
				rowCount(t.ResourceTable),
				rowCount(t.StringTable),
			})
		}
		table.Render()
	}
	return nil
}

type table interface {
	comparable
	Len() int
}

func rowCount[T table](t T) string {
	var zero T
	if t == zero {
		return "-"
	}
	return humanize.Comma(int64(t.Len()))
}

func validate(ctx context.Context, files ...string) error {
	out := output(ctx)
	var result *multierror.Error
	for _, path := range files {
		p, err := profile.OpenFile(path)
		if err == nil {
			err = profile.Validate(p)
		}
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", color.RedString("FAIL"), path, err)
			result = multierror.Append(result, errors.Wrap(err, path))
			continue
		}
		fmt.Fprintf(out, "%s %s\n", color.GreenString("OK"), path)
	}
	return result.ErrorOrNil()
}
