package reconcile

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Equal compares two JSON-like values for the purpose of dirty tracking.
//
// nil, Undefined and the empty string share one "empty" representation so
// serialization drift between client and server does not flag a draft as
// dirty. An empty record or sequence is a real value. Records must have the
// same key set and pairwise equal values; a key holding an empty value is
// still a key. Sequences compare pairwise and every other value by its
// string form.
func Equal(a, b any) bool {
	if sameReference(a, b) {
		return true
	}

	aEmpty, bEmpty := isEmpty(a), isEmpty(b)
	if aEmpty || bEmpty {
		return aEmpty && bEmpty
	}

	aSeq, aIsSeq := asSequence(a)
	bSeq, bIsSeq := asSequence(b)
	if aIsSeq || bIsSeq {
		if !aIsSeq || !bIsSeq || len(aSeq) != len(bSeq) {
			return false
		}
		for i := range aSeq {
			if !Equal(aSeq[i], bSeq[i]) {
				return false
			}
		}
		return true
	}

	aRec, aIsRec := asRecord(a)
	bRec, bIsRec := asRecord(b)
	if aIsRec || bIsRec {
		if !aIsRec || !bIsRec {
			return false
		}
		return equalRecords(aRec, bRec)
	}

	return stringForm(a) == stringForm(b)
}

// IsDirty reports whether a draft differs from both reference points. A draft
// matching either the last saved content or the server content is clean.
func IsDirty(draft, lastSaved, server any) bool {
	return !Equal(draft, lastSaved) && !Equal(draft, server)
}

func equalRecords(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for key, av := range a {
		bv, ok := b[key]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

func isEmpty(v any) bool {
	return v == nil || IsUndefined(v) || isEmptyString(v)
}

func sameReference(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() != rb.Kind() || ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map:
		return ra.Len() == rb.Len() && ra.UnsafePointer() == rb.UnsafePointer()
	case reflect.Slice:
		return ra.Len() == rb.Len() && ra.Len() > 0 && ra.UnsafePointer() == rb.UnsafePointer()
	default:
		return false
	}
}

func stringForm(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case json.Number:
		if f, err := typed.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", typed)
	case fmt.Stringer:
		return typed.String()
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(encoded)
}
