package application

type HistoryQueryFilter struct {
	ProjectID int64
	Limit     int
}

const maxHistoryLimit = 1000

// NormalizeHistoryLimit maps zero or out of range limits to the maximum page.
func NormalizeHistoryLimit(limit int) int {
	if limit <= 0 || limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
