package rules

// MaxTeamSize is the maximum number of direct members per role under a leader
const MaxTeamSize = 60

// CanAddAssociate reports whether a leader with currentCount members of a role
// may take one more.
func CanAddAssociate(currentCount int) bool {
	return currentCount < MaxTeamSize
}

// RemainingCapacity returns how many more members fit, never negative
func RemainingCapacity(currentCount int) int {
	if currentCount >= MaxTeamSize {
		return 0
	}
	return MaxTeamSize - currentCount
}
