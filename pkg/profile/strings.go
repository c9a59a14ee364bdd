package profile

import (
	"github.com/dolthub/swiss"
)

// StringTable is an append-only table of unique strings. Indices handed out
// by IndexForString stay valid for the lifetime of the table.
//
// The lookup map is populated eagerly, so a table that is only read is safe
// for concurrent use. IndexForString must not be called concurrently.
type StringTable struct {
	strings []string
	lookup  *swiss.Map[string, Index]
}

func NewStringTable(strings ...string) *StringTable {
	t := &StringTable{
		strings: make([]string, 0, len(strings)),
		lookup:  swiss.NewMap[string, Index](uint32(len(strings))),
	}
	for _, s := range strings {
		t.IndexForString(s)
	}
	return t
}

// IndexForString returns the index of s, adding it if absent.
func (t *StringTable) IndexForString(s string) Index {
	if t.lookup == nil {
		t.lookup = swiss.NewMap[string, Index](16)
	}
	if i, ok := t.lookup.Get(s); ok {
		return i
	}
	i := Index(len(t.strings))
	t.strings = append(t.strings, s)
	t.lookup.Put(s, i)
	return i
}

// GetString returns the string at index i, or an empty string if i is not
// a valid index.
func (t *StringTable) GetString(i Index) string {
	if !i.Valid(len(t.strings)) {
		return ""
	}
	return t.strings[i]
}

func (t *StringTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.strings)
}

// Strings returns a copy of the table contents in index order.
func (t *StringTable) Strings() []string {
	s := make([]string, len(t.strings))
	copy(s, t.strings)
	return s
}

func (t *StringTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.strings)
}

func (t *StringTable) UnmarshalJSON(b []byte) error {
	var strings []string
	if err := json.Unmarshal(b, &strings); err != nil {
		return err
	}
	*t = *NewStringTable(strings...)
	// Duplicates in the serialized form keep their positions: every index
	// read from a producer must remain addressable.
	if len(t.strings) != len(strings) {
		t.strings = strings
	}
	return nil
}
