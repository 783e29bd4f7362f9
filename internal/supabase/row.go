package supabase

import (
	"fmt"

	"github.com/iancoleman/orderedmap"
)

// Row is one remote record with its columns in the order the server sent them.
// Numbers decode as json.Number so large serials and ids render unchanged.
type Row struct {
	m *orderedmap.OrderedMap
}

func newColumns() *orderedmap.OrderedMap {
	m := orderedmap.New()
	m.SetUseNumber(true)
	return m
}

// NewRow builds a row from alternating key/value pairs.
func NewRow(pairs ...interface{}) Row {
	r := Row{m: newColumns()}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(fmt.Sprint(pairs[i]), pairs[i+1])
	}
	return r
}

// Keys lists the columns in order.
func (r Row) Keys() []string {
	if r.m == nil {
		return nil
	}
	return r.m.Keys()
}

// Get returns the value of a column, nil if absent.
func (r Row) Get(key string) interface{} {
	if r.m == nil {
		return nil
	}
	v, _ := r.m.Get(key)
	return v
}

// Set adds or replaces a column, keeping first-seen order.
func (r *Row) Set(key string, value interface{}) {
	if r.m == nil {
		r.m = newColumns()
	}
	r.m.Set(key, value)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	r.m = newColumns()
	return r.m.UnmarshalJSON(data)
}

func (r Row) MarshalJSON() ([]byte, error) {
	if r.m == nil {
		return []byte("{}"), nil
	}
	return r.m.MarshalJSON()
}
