// Package record holds the opaque entities that move between the dashboard,
// the backend and the mirror store.
package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Field names the data-access layer reads or sets. Everything else is opaque.
const (
	FieldID      = "id"
	FieldOffline = "_offline"
	FieldSynced  = "_synced"
)

// Record is one student, attendance entry, activity or syllabus topic.
type Record map[string]any

// Collection is an ordered list of records from one logical endpoint.
type Collection []Record

// Clone returns a shallow copy so callers can tag it without touching the input.
func (r Record) Clone() Record {
	out := make(Record, len(r)+3)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the record identifier and whether one is set.
func (r Record) ID() (any, bool) {
	id, ok := r[FieldID]
	if !ok || id == nil {
		return nil, false
	}
	if s, isStr := id.(string); isStr && s == "" {
		return nil, false
	}
	return id, true
}

// IDKey normalizes an identifier so that 7, 7.0 and "7" compare equal after a
// JSON round trip.
func IDKey(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Offline reports whether the record was created or mirrored locally.
func (r Record) Offline() bool {
	b, _ := r[FieldOffline].(bool)
	return b
}

// Synced reports whether the record is known to be stored on the backend.
func (r Record) Synced() bool {
	b, _ := r[FieldSynced].(bool)
	return b
}

// TagOffline returns a copy carrying the offline-origin and not-yet-synced
// markers. When id is nil the input id is kept, or one is derived from now.
func TagOffline(r Record, id any, now time.Time) Record {
	out := r.Clone()
	switch {
	case id != nil:
		out[FieldID] = id
	default:
		if _, ok := out.ID(); !ok {
			out[FieldID] = now.UnixMilli()
		}
	}
	out[FieldOffline] = true
	out[FieldSynced] = false
	return out
}

// String returns a string field or "".
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Bool returns a boolean field or false.
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// Time parses a timestamp field. Accepts RFC3339 with or without zone and
// plain dates.
func (r Record) Time(field string) (time.Time, bool) {
	switch v := r[field].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Decode parses a JSON array into a collection. A JSON null decodes to an
// empty collection.
func Decode(data []byte) (Collection, error) {
	var out Collection
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Collection{}
	}
	return out, nil
}

// Encode serializes a collection as a JSON array; nil encodes as [].
func Encode(c Collection) ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	return json.Marshal(c)
}
