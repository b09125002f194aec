package service

// diffValues reduces full before/after snapshots to only the fields that
// changed, so audit entries record exact deltas instead of whole rows.
func diffValues(before, after map[string]interface{}) (oldValues, newValues map[string]interface{}) {
	oldValues = map[string]interface{}{}
	newValues = map[string]interface{}{}

	for field, afterValue := range after {
		beforeValue, existed := before[field]
		if !existed || beforeValue != afterValue {
			if existed {
				oldValues[field] = beforeValue
			}
			newValues[field] = afterValue
		}
	}
	return oldValues, newValues
}
