package reconcile

import "reflect"

type undefined struct{}

// Undefined marks a field that is not part of an update. A key missing from a
// record is treated the same way. nil is JSON null and is a real value.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// Clone returns a deep copy of a JSON-like value. Records and sequences are
// copied recursively, scalars are returned as-is.
func Clone(v any) any {
	if record, ok := asRecord(v); ok {
		return CloneRecord(record)
	}
	if seq, ok := asSequence(v); ok {
		out := make([]any, len(seq))
		for i, item := range seq {
			out[i] = Clone(item)
		}
		return out
	}
	return v
}

// CloneRecord deep copies a record. A nil record stays nil.
func CloneRecord(record map[string]any) map[string]any {
	if record == nil {
		return nil
	}
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = Clone(value)
	}
	return out
}

// asRecord exposes v as a string-keyed record. Typed maps decoded by callers
// (map[string]string and friends) are converted through reflection.
func asRecord(v any) (map[string]any, bool) {
	switch typed := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return typed, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	if rv.IsNil() {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asSequence exposes v as an ordered sequence.
func asSequence(v any) ([]any, bool) {
	switch typed := v.(type) {
	case nil:
		return nil, false
	case []any:
		return typed, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func isEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s == ""
}
