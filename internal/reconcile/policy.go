package reconcile

import "strings"

// Policy names the fields whose merge behaviour overrides the default rules.
// Keys are matched by name at every nesting depth.
type Policy struct {
	// Assign lists scalar fields overwritten by the update even when the new
	// value is an empty string or null. An Undefined value is still skipped.
	Assign map[string]struct{}
	// ReplaceObject lists record fields whose children are shallow-unioned with
	// the update, recursing one more level into record-typed children.
	ReplaceObject map[string]struct{}
	// AssignArray lists sequence fields replaced wholesale, including with an
	// empty sequence.
	AssignArray map[string]struct{}
}

var (
	defaultAssignFields = []string{
		"title", "subtitle", "heading", "subheading", "description", "text", "body",
		"label", "caption", "alt", "url", "href", "link", "placeholder",
	}
	defaultReplaceObjectFields = []string{
		"appearance", "layout", "typography", "style", "background", "image", "settings", "spacing",
	}
	defaultAssignArrayFields = []string{
		"buttons", "items", "images", "links", "columns", "slides", "features", "tags", "cards",
	}
)

// DefaultPolicy returns the field policy shipped with the engine.
func DefaultPolicy() Policy {
	return NewPolicy(defaultAssignFields, defaultReplaceObjectFields, defaultAssignArrayFields)
}

// NewPolicy builds a Policy from plain key lists. Blank keys are ignored.
func NewPolicy(assign, replaceObject, assignArray []string) Policy {
	return Policy{
		Assign:        toSet(assign),
		ReplaceObject: toSet(replaceObject),
		AssignArray:   toSet(assignArray),
	}
}

// IsZero reports whether the policy declares no override at all.
func (p Policy) IsZero() bool {
	return len(p.Assign) == 0 && len(p.ReplaceObject) == 0 && len(p.AssignArray) == 0
}

func (p Policy) assigns(key string) bool {
	_, ok := p.Assign[key]
	return ok
}

func (p Policy) replacesObject(key string) bool {
	_, ok := p.ReplaceObject[key]
	return ok
}

func (p Policy) assignsArray(key string) bool {
	_, ok := p.AssignArray[key]
	return ok
}

func toSet(keys []string) map[string]struct{} {
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			out[trimmed] = struct{}{}
		}
	}
	return out
}
