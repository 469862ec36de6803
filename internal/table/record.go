// Package table is the tabular container for extracted rows: ordered records
// with late-bound column sets, assembled into named tables.
package table

// Record is an ordered mapping from column name to value.
//
// Values are string, int64 or nil (absent). Column order is first-insertion
// order, which becomes the discovery order of a Table built from records.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record with room for n columns.
func NewRecord(n int) *Record {
	return &Record{keys: make([]string, 0, n), values: make(map[string]any, n)}
}

// Set stores v under key. Re-setting a key keeps its original position.
func (r *Record) Set(key string, v any) *Record {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value under key and whether the column exists on this record.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the columns of r in insertion order.
func (r *Record) Keys() []string { return r.keys }

// Len is the number of columns set on r.
func (r *Record) Len() int { return len(r.keys) }

// Clone returns a copy of r that can be extended independently.
func (r *Record) Clone() *Record {
	out := NewRecord(len(r.keys))
	for _, k := range r.keys {
		out.Set(k, r.values[k])
	}
	return out
}

// Subset copies the listed columns of r, in the given order. Columns missing
// on r are set to nil.
func (r *Record) Subset(keys []string) *Record {
	out := NewRecord(len(keys))
	for _, k := range keys {
		out.Set(k, r.values[k])
	}
	return out
}

// Map returns the record as a plain map.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// String returns an optional string as a record value: the string itself, or
// nil when absent.
func String(s string, ok bool) any {
	if !ok {
		return nil
	}
	return s
}

// StringPtr converts an optional *string into a record value.
func StringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
