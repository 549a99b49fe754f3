package service

import (
	"encoding/json"
	"reflect"
	"sort"

	"tokolaris/backend/internal/domain"
)

// DiffFields compares two values of the same shape field by field, using
// their JSON form so the field names in the audit trail match the wire
// names. The comparison is shallow: a changed nested value is reported as
// one full before/after replacement under its top-level field.
func DiffFields(before any, after any) []domain.FieldChange {
	beforeMap := toFieldMap(before)
	afterMap := toFieldMap(after)

	names := make(map[string]struct{}, len(beforeMap)+len(afterMap))
	for name := range beforeMap {
		names[name] = struct{}{}
	}
	for name := range afterMap {
		names[name] = struct{}{}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	changes := make([]domain.FieldChange, 0, 4)
	for _, name := range sorted {
		oldVal, newVal := beforeMap[name], afterMap[name]
		if reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		changes = append(changes, domain.FieldChange{Field: name, Before: oldVal, After: newVal})
	}
	return changes
}

func toFieldMap(value any) map[string]any {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil
	}
	return fields
}

func encodeFieldChanges(changes []domain.FieldChange) string {
	if len(changes) == 0 {
		return "no_changes"
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return "diff_unavailable"
	}
	return string(payload)
}
