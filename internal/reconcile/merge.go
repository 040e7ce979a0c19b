package reconcile

// Merge combines a baseline value with a partial update and returns a new
// value. Neither input is modified.
//
//   - an Undefined update returns a copy of the baseline
//   - a nil update returns nil
//   - when either side is not a record the update wins outright
//
// Record updates are applied key by key using the field policy; see Policy for
// the override sets. Keys outside the policy skip nil, Undefined and empty
// string values, merge nested records recursively and overwrite everything else.
func Merge(baseline, update any, policy Policy) any {
	if IsUndefined(update) {
		return Clone(baseline)
	}
	if update == nil {
		return nil
	}
	base, ok := asRecord(baseline)
	if !ok {
		return Clone(update)
	}
	patch, ok := asRecord(update)
	if !ok {
		return Clone(update)
	}
	return mergeRecords(base, patch, policy)
}

// MergeRecord is Merge specialised to records, the shape of block content.
// A nil update behaves like an empty one so callers can pass optional partials.
func MergeRecord(baseline, update map[string]any, policy Policy) map[string]any {
	if update == nil {
		return CloneRecord(baseline)
	}
	if baseline == nil {
		baseline = map[string]any{}
	}
	return mergeRecords(baseline, update, policy)
}

func mergeRecords(base, patch map[string]any, policy Policy) map[string]any {
	out := CloneRecord(base)
	if out == nil {
		out = make(map[string]any, len(patch))
	}

	for key, value := range patch {
		if IsUndefined(value) {
			continue
		}

		if policy.assignsArray(key) {
			if _, isSeq := asSequence(value); isSeq {
				out[key] = Clone(value)
				continue
			}
		}

		if policy.assigns(key) {
			out[key] = Clone(value)
			continue
		}

		if value == nil || isEmptyString(value) {
			continue
		}

		nested, nestedOK := asRecord(value)
		current, currentOK := asRecord(out[key])
		if nestedOK && currentOK {
			if policy.replacesObject(key) {
				out[key] = unionRecords(current, nested, policy)
			} else {
				out[key] = mergeRecords(current, nested, policy)
			}
			continue
		}

		out[key] = Clone(value)
	}

	return out
}

// unionRecords overlays every defined child of patch onto base. Children that
// are records on both sides are merged instead of replaced so a partial nested
// update keeps untouched grandchildren.
func unionRecords(base, patch map[string]any, policy Policy) map[string]any {
	out := CloneRecord(base)
	for key, value := range patch {
		if IsUndefined(value) {
			continue
		}
		nested, nestedOK := asRecord(value)
		current, currentOK := asRecord(out[key])
		if nestedOK && currentOK {
			out[key] = mergeRecords(current, nested, policy)
			continue
		}
		out[key] = Clone(value)
	}
	return out
}
