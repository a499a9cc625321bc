package domain

// EstimateTokens approximates token cost as ceil(bytes/4). Deliberately
// crude; every component budgets with this same estimate so allocations stay
// consistent end to end.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// EstimateRecordTokens estimates a record's context cost from its content.
func EstimateRecordTokens(m *MemoryRecord) int {
	return EstimateTokens(m.Content)
}
