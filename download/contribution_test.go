package download

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContributionCapTable(t *testing.T) {
	cases := map[int]int{
		0: 1, 1: 1, 2: 1,
		3: 2, 4: 2, 5: 2,
		6: 3, 7: 3,
		8: 4, 9: 4, 100: 4,
	}
	for localChunks, want := range cases {
		require.Equal(t, want, ContributionCap(localChunks), "localChunks=%d", localChunks)
	}
}

func TestCheckParallelismAcceptsWithinCap(t *testing.T) {
	require.NoError(t, CheckParallelism(1, 0))
	require.NoError(t, CheckParallelism(2, 3))
	require.NoError(t, CheckParallelism(4, 8))
}

func TestCheckParallelismRejectsAboveCap(t *testing.T) {
	err := CheckParallelism(4, 3) // cap is 2 at 3 local chunks
	require.Error(t, err)
}

func TestCheckParallelismRejectsZeroOrNegative(t *testing.T) {
	require.Error(t, CheckParallelism(0, 8))
	require.Error(t, CheckParallelism(-1, 8))
}
