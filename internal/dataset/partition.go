package dataset

import (
	"strconv"
	"strings"

	"promptduel/internal/fault"
)

// Split is a deterministic train/holdout partition.
type Split struct {
	Train   []Case
	Holdout []Case
}

// PartitionKey is the integer a case is bucketed by: its id when the id
// parses as an integer, otherwise its 1-based position.
func PartitionKey(c Case, position int) int64 {
	if n, err := strconv.ParseInt(strings.TrimSpace(c.ID.String()), 10, 64); err == nil {
		return n
	}
	return int64(position)
}

// Partition sends every case whose key mod m equals r to holdout and the
// rest to train, preserving input order within each side.
func Partition(cases []Case, m, r int) (Split, error) {
	if m <= 1 {
		return Split{}, fault.Configurationf("holdout_mod must be > 1 (got %d)", m)
	}
	if r < 0 || r >= m {
		return Split{}, fault.Configurationf("holdout_remainder must be in [0, %d) (got %d)", m, r)
	}

	var split Split
	for i, c := range cases {
		key := PartitionKey(c, i+1) % int64(m)
		if key < 0 {
			key += int64(m)
		}
		if key == int64(r) {
			split.Holdout = append(split.Holdout, c)
		} else {
			split.Train = append(split.Train, c)
		}
	}

	if len(split.Train) == 0 || len(split.Holdout) == 0 {
		return Split{}, fault.Configurationf(
			"invalid train/holdout split (train=%d, holdout=%d); adjust holdout_mod and holdout_remainder",
			len(split.Train), len(split.Holdout))
	}
	return split, nil
}
