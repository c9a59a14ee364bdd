package util

import (
	"runtime"
	"strconv"

	_ "go.uber.org/automaxprocs"
)

// ConcurrencyLimit bounds the number of goroutines a task may use. The zero
// value means GOMAXPROCS.
type ConcurrencyLimit int

// Int returns the limit, resolving the zero value to GOMAXPROCS.
func (c ConcurrencyLimit) Int() int {
	if c < 1 {
		return runtime.GOMAXPROCS(-1)
	}
	return int(c)
}

func (c *ConcurrencyLimit) String() string {
	if *c == 0 {
		return "auto"
	}
	return strconv.Itoa(int(*c))
}

func (c *ConcurrencyLimit) Set(v string) (err error) {
	var p int
	if v == "" || v == "auto" {
		*c = 0
		return nil
	}
	if p, err = strconv.Atoi(v); err != nil {
		return err
	}
	if p < 1 {
		*c = 1
		return nil
	}
	*c = ConcurrencyLimit(p)
	return nil
}

func (c *ConcurrencyLimit) UnmarshalText(text []byte) error {
	return c.Set(string(text))
}

func (c ConcurrencyLimit) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
