package store

// Plan limits are compile-time constants keyed by plan tier, mirroring the
// original's plan_max_members/plan_max_channels lookup functions rather than
// a configurable table — plans here are a small closed set.
var planMaxMembers = map[string]int{
	"free": 3,
	"pro":  20,
	"team": 100,
}

var planMaxChannels = map[string]int{
	"free": 1,
	"pro":  5,
	"team": 20,
}

const defaultPlanMaxMembers = 3
const defaultPlanMaxChannels = 1

func PlanMaxMembers(plan string) int {
	if n, ok := planMaxMembers[plan]; ok {
		return n
	}
	return defaultPlanMaxMembers
}

func PlanMaxChannels(plan string) int {
	if n, ok := planMaxChannels[plan]; ok {
		return n
	}
	return defaultPlanMaxChannels
}
