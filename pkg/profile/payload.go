package profile

import (
	stdjson "encoding/json"
	"math"
)

// MarkerPayload is the schema-typed data attached to a marker. The "type"
// field selects the schema; some schemas embed references to other tables,
// such as a stack index under "cause" or a string index.
type MarkerPayload map[string]any

const (
	PayloadTypeKey  = "type"
	PayloadCauseKey = "cause"
	CauseStackKey   = "stack"
)

func (p MarkerPayload) Type() string {
	s, _ := p[PayloadTypeKey].(string)
	return s
}

// Cause returns the backtrace object captured with the marker, if any.
func (p MarkerPayload) Cause() (map[string]any, bool) {
	c, ok := p[PayloadCauseKey].(map[string]any)
	if !ok || c == nil {
		return nil, false
	}
	return c, true
}

// CauseStack returns the stack index embedded in the marker cause. The
// second result is false if the payload has no cause or the stack field is
// not an index.
func (p MarkerPayload) CauseStack() (Index, bool) {
	c, ok := p.Cause()
	if !ok {
		return None, false
	}
	return IndexValue(c[CauseStackKey])
}

// Clone returns a deep copy of the payload.
func (p MarkerPayload) Clone() MarkerPayload {
	if p == nil {
		return nil
	}
	return deepCopy(map[string]any(p)).(map[string]any)
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(x))
		for k, e := range x {
			c[k] = deepCopy(e)
		}
		return c
	case MarkerPayload:
		return MarkerPayload(deepCopy(map[string]any(x)).(map[string]any))
	case []any:
		c := make([]any, len(x))
		for i, e := range x {
			c[i] = deepCopy(e)
		}
		return c
	default:
		return v
	}
}

// IndexValue interprets a decoded payload value as a table index. A nil
// value is None. Numbers must be integral and fit an Index; negative
// numbers are None.
func IndexValue(v any) (Index, bool) {
	switch x := v.(type) {
	case nil:
		return None, true
	case Index:
		return x, true
	case int:
		return indexFromInt64(int64(x))
	case int32:
		return indexFromInt64(int64(x))
	case int64:
		return indexFromInt64(x)
	case float64:
		if x != math.Trunc(x) || x < math.MinInt32 || x > math.MaxInt32 {
			return None, false
		}
		return indexFromInt64(int64(x))
	case stdjson.Number:
		n, err := x.Int64()
		if err != nil {
			return None, false
		}
		return indexFromInt64(n)
	default:
		return None, false
	}
}

func indexFromInt64(n int64) (Index, bool) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return None, false
	}
	if n < 0 {
		return None, true
	}
	return Index(n), true
}
