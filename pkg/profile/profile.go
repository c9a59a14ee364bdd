package profile

// Category groups frames and stacks for presentation. Subcategory indices
// are relative to the owning category.
type Category struct {
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	Subcategories []string `json:"subcategories"`
}

// MarkerFormatUniqueString marks a payload field that holds a string table
// index rather than a literal value.
const MarkerFormatUniqueString = "unique-string"

type MarkerSchemaField struct {
	Key    string `json:"key"`
	Label  string `json:"label,omitempty"`
	Format string `json:"format"`
}

type MarkerSchema struct {
	Name   string              `json:"name"`
	Fields []MarkerSchemaField `json:"fields"`
}

// StringFields returns the keys of fields that reference the string table.
func (s MarkerSchema) StringFields() []string {
	var keys []string
	for _, f := range s.Fields {
		if f.Format == MarkerFormatUniqueString {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

type Meta struct {
	// Interval is the sampling interval in milliseconds.
	Interval  float64 `json:"interval"`
	StartTime float64 `json:"startTime"`
	// Symbolicated is nil when the producer did not report it.
	Symbolicated *bool          `json:"symbolicated,omitempty"`
	Version      int            `json:"version"`
	Product      string         `json:"product,omitempty"`
	Categories   []Category     `json:"categories"`
	MarkerSchema []MarkerSchema `json:"markerSchema"`
}

type Thread struct {
	Name               string  `json:"name"`
	ProcessName        string  `json:"processName,omitempty"`
	ProcessType        string  `json:"processType,omitempty"`
	PID                string  `json:"pid"`
	TID                string  `json:"tid"`
	IsMainThread       bool    `json:"isMainThread"`
	ProcessStartupTime float64 `json:"processStartupTime"`
	RegisterTime       float64 `json:"registerTime"`

	Samples       *SamplesTable      `json:"samples"`
	Markers       *MarkerTable       `json:"markers"`
	StackTable    *StackTable        `json:"stackTable"`
	FrameTable    *FrameTable        `json:"frameTable"`
	FuncTable     *FuncTable         `json:"funcTable"`
	ResourceTable *ResourceTable     `json:"resourceTable"`
	NativeSymbols *NativeSymbolTable `json:"nativeSymbols"`
	StringTable   *StringTable       `json:"stringArray"`
}

// MissingTables returns the names of the tables the thread lacks.
func (t *Thread) MissingTables() []string {
	var missing []string
	check := func(name string, absent bool) {
		if absent {
			missing = append(missing, name)
		}
	}
	check("samples", t.Samples == nil)
	check("markers", t.Markers == nil)
	check("stackTable", t.StackTable == nil)
	check("frameTable", t.FrameTable == nil)
	check("funcTable", t.FuncTable == nil)
	check("resourceTable", t.ResourceTable == nil)
	check("nativeSymbols", t.NativeSymbols == nil)
	check("stringArray", t.StringTable == nil)
	return missing
}

// NewThread returns a thread with empty tables.
func NewThread(name string) *Thread {
	return &Thread{
		Name:          name,
		Samples:       &SamplesTable{WeightType: WeightTypeSamples},
		Markers:       &MarkerTable{},
		StackTable:    &StackTable{},
		FrameTable:    &FrameTable{},
		FuncTable:     &FuncTable{},
		ResourceTable: &ResourceTable{},
		NativeSymbols: &NativeSymbolTable{},
		StringTable:   NewStringTable(),
	}
}

type Profile struct {
	Meta    Meta         `json:"meta"`
	Libs    LibraryTable `json:"libs"`
	Threads []*Thread    `json:"threads"`
}
