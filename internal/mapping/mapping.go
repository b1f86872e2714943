// Package mapping provides small helpers for combining and restricting
// string-keyed option maps.
package mapping

// Merge combines two maps into a fresh result covering the union of their
// keys. Values from primary take precedence unless the primary value is nil,
// in which case the secondary value is used. Neither input is mutated and nil
// maps behave as empty maps.
func Merge(primary map[string]any, secondary map[string]any) map[string]any {
	merged := make(map[string]any, len(primary)+len(secondary))
	for key, secondaryValue := range secondary {
		merged[key] = secondaryValue
	}
	for key, primaryValue := range primary {
		if primaryValue == nil {
			if _, alreadyPresent := merged[key]; !alreadyPresent {
				merged[key] = nil
			}
			continue
		}
		merged[key] = primaryValue
	}
	return merged
}

// FilterKeys restricts source to the requested keys. Requested keys missing
// from source receive an empty map placeholder so callers can rely on every
// requested key being present. An empty or nil key list selects everything,
// returning a shallow copy of source.
func FilterKeys(source map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		copied := make(map[string]any, len(source))
		for key, value := range source {
			copied[key] = value
		}
		return copied
	}

	filtered := make(map[string]any, len(keys))
	for _, requestedKey := range keys {
		filtered[requestedKey] = map[string]any{}
	}
	for key, value := range source {
		if _, requested := filtered[key]; requested {
			filtered[key] = value
		}
	}
	return filtered
}
