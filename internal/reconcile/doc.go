// Package reconcile holds the pure functions used to keep a block draft
// consistent with its baselines: the policy-driven structural merge applied on
// every edit and the deep equality used to classify a draft as dirty.
//
// Values are JSON-like: records (map[string]any), sequences ([]any), strings,
// numbers (float64 or json.Number), booleans and nil.
package reconcile
