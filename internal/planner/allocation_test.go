package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPillarCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 2}, {10, 2}, {30, 2}, {31, 3}, {50, 3}, {51, 5}, {75, 5},
		{76, 6}, {100, 6}, {101, 7}, {150, 10}, {200, 10}, {1000, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PillarCount(tt.n), "PillarCount(%d)", tt.n)
	}
}

func TestArticlesPerPillar(t *testing.T) {
	assert.Equal(t, 5, ArticlesPerPillar(10))
	assert.Equal(t, 15, ArticlesPerPillar(30))
	assert.Equal(t, 10, ArticlesPerPillar(31))
	assert.Equal(t, 16, ArticlesPerPillar(100))
	assert.Equal(t, 14, ArticlesPerPillar(101))
	assert.Equal(t, 20, ArticlesPerPillar(200))
}

func TestAllocate(t *testing.T) {
	a := Allocate(31)
	assert.Equal(t, Allocation{Target: 31, Pillars: 3, PerPillar: 10, Planned: 30, Dropped: 1, TotalUnits: 39}, a)

	a = Allocate(30)
	assert.Zero(t, a.Dropped)
	assert.Equal(t, 37, a.TotalUnits)
}
