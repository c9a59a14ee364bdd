package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrColumnLength     = errors.New("column length mismatch")
	ErrMissingTable     = errors.New("missing table")
)

// Validate checks that every table of every thread is well-formed and that
// each stored reference addresses a row of the table it refers to.
func Validate(p *Profile) error {
	var err error
	for i, t := range p.Threads {
		if terr := ValidateThread(t, len(p.Libs), p.Meta.Categories); terr != nil {
			err = multierror.Append(err, fmt.Errorf("thread %d (%s): %w", i, t.Name, terr))
		}
	}
	return err
}

// ValidateThread validates a single thread against the profile-global
// library and category tables it refers to.
func ValidateThread(t *Thread, libs int, categories []Category) error {
	if missing := t.MissingTables(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingTable, strings.Join(missing, ", "))
	}
	var err error
	for _, c := range []interface{ checkColumns() error }{
		t.Samples, t.Markers, t.StackTable, t.FrameTable,
		t.FuncTable, t.ResourceTable, t.NativeSymbols,
	} {
		if cerr := c.checkColumns(); cerr != nil {
			err = multierror.Append(err, cerr)
		}
	}
	if err != nil {
		// Reference checks index every column by row.
		return err
	}
	v := validator{
		strings:    t.StringTable.Len(),
		libs:       libs,
		categories: categories,
	}
	v.thread(t)
	return v.err
}

type validator struct {
	err        error
	strings    int
	libs       int
	categories []Category
}

func (v *validator) fail(table, column string, row int, ref Index) {
	v.err = multierror.Append(v.err,
		fmt.Errorf("%w: %s.%s[%d] = %d", ErrInvalidReference, table, column, row, ref))
}

func (v *validator) required(table, column string, row int, ref Index, n int) {
	if !ref.Valid(n) {
		v.fail(table, column, row, ref)
	}
}

func (v *validator) optional(table, column string, row int, ref Index, n int) {
	if !ref.IsNone() && !ref.Valid(n) {
		v.fail(table, column, row, ref)
	}
}

func (v *validator) category(table string, row int, category, subcategory Index) {
	v.optional(table, "category", row, category, len(v.categories))
	if category.Valid(len(v.categories)) {
		v.optional(table, "subcategory", row, subcategory, len(v.categories[category].Subcategories))
	}
}

func (v *validator) thread(t *Thread) {
	resources := t.ResourceTable
	for i := 0; i < resources.Len(); i++ {
		v.optional("resourceTable", "lib", i, resources.Lib[i], v.libs)
		v.required("resourceTable", "name", i, resources.Name[i], v.strings)
		v.optional("resourceTable", "host", i, resources.Host[i], v.strings)
	}

	symbols := t.NativeSymbols
	for i := 0; i < symbols.Len(); i++ {
		v.required("nativeSymbols", "libIndex", i, symbols.LibIndex[i], v.libs)
		v.required("nativeSymbols", "name", i, symbols.Name[i], v.strings)
	}

	funcs := t.FuncTable
	for i := 0; i < funcs.Len(); i++ {
		v.required("funcTable", "name", i, funcs.Name[i], v.strings)
		v.optional("funcTable", "resource", i, funcs.Resource[i], resources.Len())
		v.optional("funcTable", "fileName", i, funcs.FileName[i], v.strings)
	}

	frames := t.FrameTable
	for i := 0; i < frames.Len(); i++ {
		v.required("frameTable", "func", i, frames.Func[i], funcs.Len())
		v.optional("frameTable", "nativeSymbol", i, frames.NativeSymbol[i], symbols.Len())
		v.category("frameTable", i, frames.Category[i], frames.Subcategory[i])
	}

	stacks := t.StackTable
	for i := 0; i < stacks.Len(); i++ {
		v.required("stackTable", "frame", i, stacks.Frame[i], frames.Len())
		// The prefix must precede the stack, which also rules out cycles.
		v.optional("stackTable", "prefix", i, stacks.Prefix[i], i)
		v.category("stackTable", i, stacks.Category[i], stacks.Subcategory[i])
	}

	samples := t.Samples
	for i := 0; i < samples.Len(); i++ {
		v.optional("samples", "stack", i, samples.Stack[i], stacks.Len())
	}

	markers := t.Markers
	for i := 0; i < markers.Len(); i++ {
		v.required("markers", "name", i, markers.Name[i], v.strings)
		v.optional("markers", "category", i, markers.Category[i], len(v.categories))
		if _, ok := markers.Data[i].Cause(); ok {
			stack, ok := markers.Data[i].CauseStack()
			if !ok {
				v.err = multierror.Append(v.err,
					fmt.Errorf("%w: markers.data[%d].cause.stack is not an index", ErrInvalidReference, i))
				continue
			}
			v.optional("markers", "data.cause.stack", i, stack, stacks.Len())
		}
	}
}
