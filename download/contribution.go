package download

import "github.com/pkg/errors"

// ContributionCap implements spec.md §4.7's tit-for-tat table: the more
// chunks a peer already contributes, the wider parallelism it's allowed to
// request.
func ContributionCap(localChunks int) int {
	switch {
	case localChunks >= 8:
		return 4
	case localChunks >= 6:
		return 3
	case localChunks >= 3:
		return 2
	default:
		return 1
	}
}

// CheckParallelism validates a requested N_parallel against the cap derived
// from localChunks, per spec.md §4.7.
func CheckParallelism(nParallel, localChunks int) error {
	cap := ContributionCap(localChunks)
	if nParallel < 1 || nParallel > cap {
		return errors.Errorf("requested parallelism %d out of bounds: must be 1..%d for %d local chunk(s)", nParallel, cap, localChunks)
	}
	return nil
}
