package status

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuorumReachedBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		affected int
		total    int
		want     bool
	}{
		{"exactly half of four counts as reached", 2, 4, true},
		{"below half of four", 1, 4, false},
		{"one of three is not a majority", 1, 3, false},
		{"two of three", 2, 3, true},
		{"single region is trivially the majority", 1, 1, true},
		{"all regions agree", 5, 5, true},
		{"exactly half of six", 3, 6, true},
		{"just below half of six", 2, 6, false},
		{"empty region set never reaches quorum", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuorumReached(tt.affected, tt.total))
		})
	}
}

func TestQuorumReachedMatchesMajorityRule(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		total := 1 + rng.Intn(20)
		affected := rng.Intn(total + 1)

		want := total == 1 || float64(affected) >= float64(total)/2

		assert.Equal(t, want, QuorumReached(affected, total),
			"affected=%d total=%d", affected, total)
	}
}
