package profile

import (
	"fmt"
	"strconv"
)

// Index addresses a row of a column table. Tables reference each other
// exclusively by Index; None marks an absent reference.
type Index int32

// None is the sentinel for "no row".
const None Index = -1

// Valid reports whether i addresses a row of a table with n rows.
func (i Index) Valid(n int) bool { return i >= 0 && int(i) < n }

// IsNone reports whether i is the None sentinel. Any negative value is
// treated as None.
func (i Index) IsNone() bool { return i < 0 }

func (i Index) MarshalJSON() ([]byte, error) {
	if i < 0 {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, int64(i), 10), nil
}

func (i *Index) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*i = None
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", b, err)
	}
	if v < 0 {
		v = int64(None)
	}
	*i = Index(v)
	return nil
}

// Indexes returns a column of n indices starting at from.
func Indexes(from Index, n int) []Index {
	s := make([]Index, n)
	for i := range s {
		s[i] = from + Index(i)
	}
	return s
}
