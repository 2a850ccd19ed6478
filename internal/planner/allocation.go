package planner

// MaxPillars caps the pillar count for very large sites.
const MaxPillars = 10

// FixedOverheadUnits is added to the progress total on top of one unit per article
// and per pillar. It covers the topic request and site assembly.
const FixedOverheadUnits = 5

// PillarCount returns how many pillars a site of n articles gets:
// up to 30 → 2, up to 50 → 3, up to 75 → 5, up to 100 → 6, otherwise ceil(n/15)
// capped at MaxPillars.
func PillarCount(n int) int {
	switch {
	case n <= 30:
		return 2
	case n <= 50:
		return 3
	case n <= 75:
		return 5
	case n <= 100:
		return 6
	}
	c := (n + 14) / 15
	if c > MaxPillars {
		return MaxPillars
	}
	return c
}

// ArticlesPerPillar is floor(n / PillarCount(n)). The remainder is dropped.
func ArticlesPerPillar(n int) int {
	return n / PillarCount(n)
}

// Allocation describes how a requested article count is split across pillars.
type Allocation struct {
	Target     int `json:"target"`
	Pillars    int `json:"pillars"`
	PerPillar  int `json:"per_pillar"`
	Planned    int `json:"planned"`
	Dropped    int `json:"dropped"`
	TotalUnits int `json:"total_units"`
}

// Allocate computes the allocation for a target article count.
func Allocate(n int) Allocation {
	p := PillarCount(n)
	per := n / p
	return Allocation{
		Target:     n,
		Pillars:    p,
		PerPillar:  per,
		Planned:    p * per,
		Dropped:    n - p*per,
		TotalUnits: n + p + FixedOverheadUnits,
	}
}
