package status

// QuorumReached reports whether enough regions agree on a status to justify a
// monitor-level transition: a simple majority of the configured region set,
// where exactly half counts as reached, and a lone region is trivially the
// majority. Integer arithmetic keeps odd region counts exact (1 of 3 is not
// a majority even though 3/2 truncates to 1).
func QuorumReached(affected, totalRegions int) bool {
	if totalRegions <= 0 {
		return false
	}

	return totalRegions == 1 || 2*affected >= totalRegions
}
