package model

import (
	"fmt"
	"strings"
)

// Row is a generic field map. It carries extracted order/return payloads on
// their way to the store and candidate rows read back from it. Values are
// plain JSON / database scalars; a nil value means "absent".
type Row map[string]any

// String returns the value for key rendered as a string, or "" when the key
// is absent or nil. Non-string scalars are formatted with fmt.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Has reports whether key holds a non-empty value: present, non-nil, and not
// an empty or blank string.
func (r Row) Has(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a new row with all of r's fields and every field of over laid
// on top. Neither input is modified.
func (r Row) Merge(over Row) Row {
	out := r.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Project returns a row containing exactly the given fields. Fields missing
// from r come through as explicit nils, so downstream cleaning treats them as
// absent values rather than silently dropping the column. Unknown keys in r
// are discarded; this is the schema gate that keeps stray model output from
// ever reaching a store write.
func (r Row) Project(fields []string) Row {
	out := make(Row, len(fields))
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		} else {
			out[f] = nil
		}
	}
	return out
}
