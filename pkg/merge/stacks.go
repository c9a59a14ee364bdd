package merge

import (
	"fmt"

	"github.com/grafana/profdiff/pkg/profile"
)

// concatenateFrames appends the frames of src to dst and returns the number
// of frames dst held before.
func concatenateFrames(dst, src *profile.FrameTable, r *rewriter) (profile.Index, error) {
	offset := profile.Index(dst.Len())
	for i := 0; i < src.Len(); i++ {
		row := src.Row(i)
		var err error
		if row.Func.IsNone() {
			return offset, fmt.Errorf("%w: frameTable.func[%d] is null", ErrMalformedInput, i)
		}
		if row.Func, err = r.funcs.Rewrite(row.Func); err != nil {
			return offset, fmt.Errorf("frameTable.func[%d]: %w", i, err)
		}
		if row.NativeSymbol, err = r.nativeSymbols.Rewrite(row.NativeSymbol); err != nil {
			return offset, fmt.Errorf("frameTable.nativeSymbol[%d]: %w", i, err)
		}
		if row.Category, row.Subcategory, err = r.categories.Rewrite(row.Category, row.Subcategory); err != nil {
			return offset, fmt.Errorf("frameTable[%d]: %w", i, err)
		}
		dst.AppendRow(row)
	}
	return offset, nil
}

// concatenateStacks appends the stacks of src to dst, shifting frame and
// prefix references by the given offsets. Stacks are not deduplicated, so
// the stacks of src keep their relative order and prefixes stay valid.
func concatenateStacks(dst, src *profile.StackTable, frameOffset profile.Index, frames int, r *rewriter) (profile.Index, error) {
	offset := profile.Index(dst.Len())
	for i := 0; i < src.Len(); i++ {
		row := src.Row(i)
		if !row.Frame.Valid(frames) {
			return offset, fmt.Errorf("%w: stackTable.frame[%d] = %d", ErrMalformedInput, i, row.Frame)
		}
		row.Frame += frameOffset
		if !row.Prefix.IsNone() {
			if !row.Prefix.Valid(i) {
				return offset, fmt.Errorf("%w: stackTable.prefix[%d] = %d", ErrMalformedInput, i, row.Prefix)
			}
			row.Prefix += offset
		}
		var err error
		if row.Category, row.Subcategory, err = r.categories.Rewrite(row.Category, row.Subcategory); err != nil {
			return offset, fmt.Errorf("stackTable[%d]: %w", i, err)
		}
		dst.AppendRow(row)
	}
	return offset, nil
}
