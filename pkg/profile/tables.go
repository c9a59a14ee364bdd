package profile

import "fmt"

// Lib describes a loaded binary. The library table is shared by all threads
// of a profile.
type Lib struct {
	Arch       string `json:"arch,omitempty"`
	Name       string `json:"name"`
	Path       string `json:"path,omitempty"`
	DebugName  string `json:"debugName"`
	DebugPath  string `json:"debugPath,omitempty"`
	BreakpadID string `json:"breakpadId"`
	CodeID     string `json:"codeId,omitempty"`
	Start      uint64 `json:"start,omitempty"`
	End        uint64 `json:"end,omitempty"`
}

type LibraryTable []Lib

func (t LibraryTable) Len() int      { return len(t) }
func (t LibraryTable) Row(i int) Lib { return t[i] }

func (t *LibraryTable) AppendRow(l Lib) { *t = append(*t, l) }

type ResourceType int32

const (
	ResourceTypeUnknown ResourceType = iota
	ResourceTypeLibrary
	ResourceTypeAddon
	ResourceTypeWebhost
	ResourceTypeOtherhost
	ResourceTypeURL
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeLibrary:
		return "library"
	case ResourceTypeAddon:
		return "addon"
	case ResourceTypeWebhost:
		return "webhost"
	case ResourceTypeOtherhost:
		return "otherhost"
	case ResourceTypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// ResourceTable describes where code comes from.
type ResourceTable struct {
	Lib  []Index        `json:"lib"`  // LibraryTable
	Name []Index        `json:"name"` // StringTable
	Host []Index        `json:"host"` // StringTable
	Type []ResourceType `json:"type"`
}

type ResourceRow struct {
	Lib  Index
	Name Index
	Host Index
	Type ResourceType
}

func (t *ResourceTable) Len() int { return len(t.Name) }

func (t *ResourceTable) Row(i int) ResourceRow {
	return ResourceRow{Lib: t.Lib[i], Name: t.Name[i], Host: t.Host[i], Type: t.Type[i]}
}

func (t *ResourceTable) AppendRow(r ResourceRow) {
	t.Lib = append(t.Lib, r.Lib)
	t.Name = append(t.Name, r.Name)
	t.Host = append(t.Host, r.Host)
	t.Type = append(t.Type, r.Type)
}

func (t *ResourceTable) checkColumns() error {
	return checkLengths("resourceTable", t.Len(), len(t.Lib), len(t.Host), len(t.Type))
}

// NativeSymbolTable holds symbols resolved for native frames.
type NativeSymbolTable struct {
	LibIndex     []Index  `json:"libIndex"` // LibraryTable
	Address      []uint64 `json:"address"`
	Name         []Index  `json:"name"`         // StringTable
	FunctionSize []int64  `json:"functionSize"` // -1 if unknown
}

type NativeSymbolRow struct {
	LibIndex     Index
	Address      uint64
	Name         Index
	FunctionSize int64
}

func (t *NativeSymbolTable) Len() int { return len(t.Address) }

func (t *NativeSymbolTable) Row(i int) NativeSymbolRow {
	return NativeSymbolRow{
		LibIndex:     t.LibIndex[i],
		Address:      t.Address[i],
		Name:         t.Name[i],
		FunctionSize: t.FunctionSize[i],
	}
}

func (t *NativeSymbolTable) AppendRow(r NativeSymbolRow) {
	t.LibIndex = append(t.LibIndex, r.LibIndex)
	t.Address = append(t.Address, r.Address)
	t.Name = append(t.Name, r.Name)
	t.FunctionSize = append(t.FunctionSize, r.FunctionSize)
}

func (t *NativeSymbolTable) checkColumns() error {
	return checkLengths("nativeSymbols", t.Len(), len(t.LibIndex), len(t.Name), len(t.FunctionSize))
}

type FuncTable struct {
	Name          []Index `json:"name"` // StringTable
	IsJS          []bool  `json:"isJS"`
	RelevantForJS []bool  `json:"relevantForJS"`
	Resource      []Index `json:"resource"` // ResourceTable
	FileName      []Index `json:"fileName"` // StringTable
}

type FuncRow struct {
	Name          Index
	IsJS          bool
	RelevantForJS bool
	Resource      Index
	FileName      Index
}

func (t *FuncTable) Len() int { return len(t.Name) }

func (t *FuncTable) Row(i int) FuncRow {
	return FuncRow{
		Name:          t.Name[i],
		IsJS:          t.IsJS[i],
		RelevantForJS: t.RelevantForJS[i],
		Resource:      t.Resource[i],
		FileName:      t.FileName[i],
	}
}

func (t *FuncTable) AppendRow(r FuncRow) {
	t.Name = append(t.Name, r.Name)
	t.IsJS = append(t.IsJS, r.IsJS)
	t.RelevantForJS = append(t.RelevantForJS, r.RelevantForJS)
	t.Resource = append(t.Resource, r.Resource)
	t.FileName = append(t.FileName, r.FileName)
}

func (t *FuncTable) checkColumns() error {
	return checkLengths("funcTable", t.Len(), len(t.IsJS), len(t.RelevantForJS), len(t.Resource), len(t.FileName))
}

type FrameTable struct {
	Address      []int64 `json:"address"` // -1 if unknown
	InlineDepth  []int32 `json:"inlineDepth"`
	Category     []Index `json:"category"`    // Meta.Categories
	Subcategory  []Index `json:"subcategory"` // Category.Subcategories
	Func         []Index `json:"func"`         // FuncTable
	NativeSymbol []Index `json:"nativeSymbol"` // NativeSymbolTable
}

type FrameRow struct {
	Address      int64
	InlineDepth  int32
	Category     Index
	Subcategory  Index
	Func         Index
	NativeSymbol Index
}

func (t *FrameTable) Len() int { return len(t.Func) }

func (t *FrameTable) Row(i int) FrameRow {
	return FrameRow{
		Address:      t.Address[i],
		InlineDepth:  t.InlineDepth[i],
		Category:     t.Category[i],
		Subcategory:  t.Subcategory[i],
		Func:         t.Func[i],
		NativeSymbol: t.NativeSymbol[i],
	}
}

func (t *FrameTable) AppendRow(r FrameRow) {
	t.Address = append(t.Address, r.Address)
	t.InlineDepth = append(t.InlineDepth, r.InlineDepth)
	t.Category = append(t.Category, r.Category)
	t.Subcategory = append(t.Subcategory, r.Subcategory)
	t.Func = append(t.Func, r.Func)
	t.NativeSymbol = append(t.NativeSymbol, r.NativeSymbol)
}

func (t *FrameTable) checkColumns() error {
	return checkLengths("frameTable", t.Len(), len(t.Address), len(t.InlineDepth), len(t.Category), len(t.Subcategory), len(t.NativeSymbol))
}

// StackTable is a prefix tree: the ancestry of a stack is reconstructed by
// following Prefix until None. A prefix always precedes the stack.
type StackTable struct {
	Frame       []Index `json:"frame"`  // FrameTable
	Prefix      []Index `json:"prefix"` // StackTable
	Category    []Index `json:"category"`
	Subcategory []Index `json:"subcategory"`
}

type StackRow struct {
	Frame       Index
	Prefix      Index
	Category    Index
	Subcategory Index
}

func (t *StackTable) Len() int { return len(t.Frame) }

func (t *StackTable) Row(i int) StackRow {
	return StackRow{Frame: t.Frame[i], Prefix: t.Prefix[i], Category: t.Category[i], Subcategory: t.Subcategory[i]}
}

func (t *StackTable) AppendRow(r StackRow) {
	t.Frame = append(t.Frame, r.Frame)
	t.Prefix = append(t.Prefix, r.Prefix)
	t.Category = append(t.Category, r.Category)
	t.Subcategory = append(t.Subcategory, r.Subcategory)
}

func (t *StackTable) checkColumns() error {
	return checkLengths("stackTable", t.Len(), len(t.Prefix), len(t.Category), len(t.Subcategory))
}

const (
	WeightTypeSamples   = "samples"
	WeightTypeTracingMs = "tracing-ms"
	WeightTypeBytes     = "bytes"
)

type SamplesTable struct {
	Stack []Index   `json:"stack"` // StackTable
	Time  []float64 `json:"time"`
	// Weight is nil when every sample has weight 1.
	Weight     []float64 `json:"weight"`
	WeightType string    `json:"weightType"`
}

func (t *SamplesTable) Len() int { return len(t.Stack) }

// WeightAt returns the weight of sample i.
func (t *SamplesTable) WeightAt(i int) float64 {
	if t.Weight == nil {
		return 1
	}
	return t.Weight[i]
}

func (t *SamplesTable) checkColumns() error {
	if t.Weight != nil {
		if err := checkLengths("samples", t.Len(), len(t.Weight)); err != nil {
			return err
		}
	}
	return checkLengths("samples", t.Len(), len(t.Time))
}

type MarkerPhase int32

const (
	MarkerPhaseInstant MarkerPhase = iota
	MarkerPhaseInterval
	MarkerPhaseIntervalStart
	MarkerPhaseIntervalEnd
)

type MarkerTable struct {
	Name      []Index         `json:"name"` // StringTable
	StartTime []float64       `json:"startTime"`
	EndTime   []*float64      `json:"endTime"` // nil for instant markers
	Phase     []MarkerPhase   `json:"phase"`
	Category  []Index         `json:"category"`
	Data      []MarkerPayload `json:"data"`
	// ThreadID is only present in merged tables and holds the position of
	// the originating thread in the merge input.
	ThreadID []Index `json:"threadId,omitempty"`
}

type MarkerRow struct {
	Name      Index
	StartTime float64
	EndTime   *float64
	Phase     MarkerPhase
	Category  Index
	Data      MarkerPayload
}

func (t *MarkerTable) Len() int { return len(t.Name) }

func (t *MarkerTable) Row(i int) MarkerRow {
	return MarkerRow{
		Name:      t.Name[i],
		StartTime: t.StartTime[i],
		EndTime:   t.EndTime[i],
		Phase:     t.Phase[i],
		Category:  t.Category[i],
		Data:      t.Data[i],
	}
}

func (t *MarkerTable) AppendRow(r MarkerRow) {
	t.Name = append(t.Name, r.Name)
	t.StartTime = append(t.StartTime, r.StartTime)
	t.EndTime = append(t.EndTime, r.EndTime)
	t.Phase = append(t.Phase, r.Phase)
	t.Category = append(t.Category, r.Category)
	t.Data = append(t.Data, r.Data)
}

func (t *MarkerTable) checkColumns() error {
	if t.ThreadID != nil {
		if err := checkLengths("markers", t.Len(), len(t.ThreadID)); err != nil {
			return err
		}
	}
	return checkLengths("markers", t.Len(), len(t.StartTime), len(t.EndTime), len(t.Phase), len(t.Category), len(t.Data))
}

func checkLengths(table string, n int, columns ...int) error {
	for _, c := range columns {
		if c != n {
			return fmt.Errorf("%w: %s has columns of length %d and %d", ErrColumnLength, table, n, c)
		}
	}
	return nil
}
