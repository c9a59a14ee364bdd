package testhelper

import (
	"fmt"
	"strings"

	"github.com/grafana/regexp"
	"github.com/samber/lo"

	"github.com/grafana/profdiff/pkg/profile"
)

// DefaultCategories are the categories every built profile carries.
var DefaultCategories = []profile.Category{
	{Name: "Other", Color: "grey", Subcategories: []string{"Other"}},
	{Name: "JavaScript", Color: "yellow", Subcategories: []string{"Other", "Interpreter"}},
}

// FuncNames maps function names of a thread to their FuncTable index.
type FuncNames map[string]profile.Index

// ProfileBuilder builds profiles for tests out of a compact text notation.
type ProfileBuilder struct {
	*profile.Profile
	libs map[string]profile.Index
}

func NewProfileBuilder() *ProfileBuilder {
	return &ProfileBuilder{
		Profile: &profile.Profile{
			Meta: profile.Meta{
				Interval:     1,
				Version:      24,
				Product:      "Firefox",
				Symbolicated: lo.ToPtr(true),
				Categories:   cloneCategories(DefaultCategories),
			},
		},
		libs: make(map[string]profile.Index),
	}
}

// ProfileFromTextSamples builds a profile with one thread per text block.
//
// Each block is a grid: every column is a sample, every line one level of
// the call stack, root first. A frame may name its library:
//
//	A[lib:libA]  A[lib:libA]
//	B[lib:libA]  C[lib:libB]
func ProfileFromTextSamples(blocks ...string) (*profile.Profile, []FuncNames) {
	b := NewProfileBuilder()
	names := make([]FuncNames, len(blocks))
	for i, block := range blocks {
		_, names[i] = b.AddThreadFromTextSamples(block)
	}
	return b.Profile, names
}

var frameRe = regexp.MustCompile(`^([^\[]+)(?:\[lib:([^\]]+)\])?$`)

func parseGrid(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		rows = append(rows, fields)
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) != len(rows[0]) {
			panic(fmt.Sprintf("line %d has %d columns, expected %d", i, len(rows[i]), len(rows[0])))
		}
	}
	return rows
}

func (b *ProfileBuilder) lib(name string) profile.Index {
	if i, ok := b.libs[name]; ok {
		return i
	}
	i := profile.Index(len(b.Libs))
	b.Libs = append(b.Libs, profile.Lib{
		Arch:       "x86_64",
		Name:       name,
		Path:       "/path/to/" + name,
		DebugName:  name,
		DebugPath:  "/path/to/" + name,
		BreakpadID: "BREAKPAD_ID_" + strings.ToUpper(name),
	})
	b.libs[name] = i
	return i
}

// AddThreadFromTextSamples appends a thread built from a text grid.
func (b *ProfileBuilder) AddThreadFromTextSamples(text string) (*profile.Thread, FuncNames) {
	n := len(b.Threads)
	t := profile.NewThread(fmt.Sprintf("Thread %d", n))
	t.ProcessName = "Process"
	t.PID = fmt.Sprint(1000 + n)
	t.TID = fmt.Sprint(2000 + n)
	t.IsMainThread = n == 0

	type funcKey struct{ name, lib string }
	var (
		funcs     = make(map[funcKey]profile.Index)
		resources = make(map[string]profile.Index)
		stacks    = make(map[profile.StackRow]profile.Index)
		names     = make(FuncNames)
	)

	funcFor := func(frame string) profile.Index {
		m := frameRe.FindStringSubmatch(frame)
		if m == nil {
			panic(fmt.Sprintf("invalid frame %q", frame))
		}
		key := funcKey{name: m[1], lib: m[2]}
		if f, ok := funcs[key]; ok {
			return f
		}
		resource := profile.None
		if key.lib != "" {
			r, ok := resources[key.lib]
			if !ok {
				r = profile.Index(t.ResourceTable.Len())
				t.ResourceTable.AppendRow(profile.ResourceRow{
					Lib:  b.lib(key.lib),
					Name: t.StringTable.IndexForString(key.lib),
					Host: profile.None,
					Type: profile.ResourceTypeLibrary,
				})
				resources[key.lib] = r
			}
			resource = r
		}
		f := profile.Index(t.FuncTable.Len())
		t.FuncTable.AppendRow(profile.FuncRow{
			Name:     t.StringTable.IndexForString(key.name),
			Resource: resource,
			FileName: profile.None,
		})
		// One frame per function keeps frame and function indices equal.
		t.FrameTable.AppendRow(profile.FrameRow{
			Address:      -1,
			Category:     0,
			Subcategory:  0,
			Func:         f,
			NativeSymbol: profile.None,
		})
		funcs[key] = f
		if _, ok := names[key.name]; !ok {
			names[key.name] = f
		}
		return f
	}

	rows := parseGrid(text)
	if len(rows) > 0 {
		for col := range rows[0] {
			stack := profile.None
			for _, row := range rows {
				frame := funcFor(row[col])
				key := profile.StackRow{Frame: frame, Prefix: stack, Category: 0, Subcategory: 0}
				s, ok := stacks[key]
				if !ok {
					s = profile.Index(t.StackTable.Len())
					t.StackTable.AppendRow(key)
					stacks[key] = s
				}
				stack = s
			}
			t.Samples.Stack = append(t.Samples.Stack, stack)
			t.Samples.Time = append(t.Samples.Time, float64(col))
		}
	}

	b.Threads = append(b.Threads, t)
	return t, names
}

// LeafStack returns the first stack whose leaf frame belongs to the named
// function.
func LeafStack(t *profile.Thread, funcName string) profile.Index {
	for i := 0; i < t.StackTable.Len(); i++ {
		f := t.FrameTable.Func[t.StackTable.Frame[i]]
		if t.StringTable.GetString(t.FuncTable.Name[f]) == funcName {
			return profile.Index(i)
		}
	}
	return profile.None
}

func cloneCategories(c []profile.Category) []profile.Category {
	return lo.Map(c, func(x profile.Category, _ int) profile.Category {
		x.Subcategories = append([]string(nil), x.Subcategories...)
		return x
	})
}
