package profile

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	c := make([]T, len(s))
	copy(c, s)
	return c
}

func (t *ResourceTable) Clone() *ResourceTable {
	return &ResourceTable{
		Lib:  cloneSlice(t.Lib),
		Name: cloneSlice(t.Name),
		Host: cloneSlice(t.Host),
		Type: cloneSlice(t.Type),
	}
}

func (t *NativeSymbolTable) Clone() *NativeSymbolTable {
	return &NativeSymbolTable{
		LibIndex:     cloneSlice(t.LibIndex),
		Address:      cloneSlice(t.Address),
		Name:         cloneSlice(t.Name),
		FunctionSize: cloneSlice(t.FunctionSize),
	}
}

func (t *FuncTable) Clone() *FuncTable {
	return &FuncTable{
		Name:          cloneSlice(t.Name),
		IsJS:          cloneSlice(t.IsJS),
		RelevantForJS: cloneSlice(t.RelevantForJS),
		Resource:      cloneSlice(t.Resource),
		FileName:      cloneSlice(t.FileName),
	}
}

func (t *FrameTable) Clone() *FrameTable {
	return &FrameTable{
		Address:      cloneSlice(t.Address),
		InlineDepth:  cloneSlice(t.InlineDepth),
		Category:     cloneSlice(t.Category),
		Subcategory:  cloneSlice(t.Subcategory),
		Func:         cloneSlice(t.Func),
		NativeSymbol: cloneSlice(t.NativeSymbol),
	}
}

func (t *StackTable) Clone() *StackTable {
	return &StackTable{
		Frame:       cloneSlice(t.Frame),
		Prefix:      cloneSlice(t.Prefix),
		Category:    cloneSlice(t.Category),
		Subcategory: cloneSlice(t.Subcategory),
	}
}

func (t *SamplesTable) Clone() *SamplesTable {
	return &SamplesTable{
		Stack:      cloneSlice(t.Stack),
		Time:       cloneSlice(t.Time),
		Weight:     cloneSlice(t.Weight),
		WeightType: t.WeightType,
	}
}

// Clone copies the marker columns. Payloads are shared: they are never
// modified in place.
func (t *MarkerTable) Clone() *MarkerTable {
	return &MarkerTable{
		Name:      cloneSlice(t.Name),
		StartTime: cloneSlice(t.StartTime),
		EndTime:   cloneSlice(t.EndTime),
		Phase:     cloneSlice(t.Phase),
		Category:  cloneSlice(t.Category),
		Data:      cloneSlice(t.Data),
		ThreadID:  cloneSlice(t.ThreadID),
	}
}

func (t *StringTable) Clone() *StringTable {
	c := NewStringTable(t.strings...)
	if len(c.strings) != len(t.strings) {
		c.strings = cloneSlice(t.strings)
	}
	return c
}

// Clone returns a deep copy of the thread, except for marker payloads.
// The thread must not miss any table.
func (t *Thread) Clone() *Thread {
	c := *t
	c.Samples = t.Samples.Clone()
	c.Markers = t.Markers.Clone()
	c.StackTable = t.StackTable.Clone()
	c.FrameTable = t.FrameTable.Clone()
	c.FuncTable = t.FuncTable.Clone()
	c.ResourceTable = t.ResourceTable.Clone()
	c.NativeSymbols = t.NativeSymbols.Clone()
	c.StringTable = t.StringTable.Clone()
	return &c
}
