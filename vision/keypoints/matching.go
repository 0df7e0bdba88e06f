package keypoints

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/lar/logging"
)

// MatchingConfig contains the parameters for matching descriptors.
type MatchingConfig struct {
	DoCrossCheck bool `json:"do_cross_check"`
	MaxDist      int  `json:"max_dist"`
}

// DescriptorMatch contains the index of a match in the first and second set of descriptors.
type DescriptorMatch struct {
	Idx1     int
	Idx2     int
	Distance int
}

// argMinPerRow returns, for each row, the column holding the smallest value. Ties go to the
// lowest column.
func argMinPerRow(distances [][]int) []int {
	out := make([]int, len(distances))
	for i, row := range distances {
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] < row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// argMinPerColumn is argMinPerRow on the transposed matrix.
func argMinPerColumn(distances [][]int, nCols int) []int {
	out := make([]int, nCols)
	for j := 0; j < nCols; j++ {
		best := 0
		for i := 1; i < len(distances); i++ {
			if distances[i][j] < distances[best][j] {
				best = i
			}
		}
		out[j] = best
	}
	return out
}

// MatchDescriptors takes 2 sets of descriptors and performs brute force matching. Every
// descriptor of desc1 is paired with its nearest neighbour in desc2; the cross check keeps the
// pair only if it is also the nearest the other way round, and MaxDist drops pairs at or above
// that distance. The result is sorted by increasing distance.
func MatchDescriptors(desc1, desc2 Descriptors, cfg *MatchingConfig, logger logging.Logger) ([]DescriptorMatch, error) {
	if len(desc1) == 0 || len(desc2) == 0 {
		return nil, nil
	}
	if cfg == nil {
		cfg = &MatchingConfig{}
	}
	distances, err := DescriptorsHammingDistance(desc1, desc2)
	if err != nil {
		return nil, errors.Wrap(err, "cannot match descriptors")
	}
	indices2 := argMinPerRow(distances)
	var backMatches []int
	if cfg.DoCrossCheck {
		backMatches = argMinPerColumn(distances, len(desc2))
	}

	matches := make([]DescriptorMatch, 0, len(desc1))
	for i, j := range indices2 {
		if cfg.DoCrossCheck && backMatches[j] != i {
			continue
		}
		if cfg.MaxDist > 0 && distances[i][j] >= cfg.MaxDist {
			continue
		}
		matches = append(matches, DescriptorMatch{Idx1: i, Idx2: j, Distance: distances[i][j]})
	}

	// sort keys are unique: the fractional part encodes the query index, breaking distance ties
	dists := make([]float64, len(matches))
	for i, m := range matches {
		dists[i] = float64(m.Distance) + float64(i)/float64(len(matches)+1)
	}
	order := make([]int, len(matches))
	floats.Argsort(dists, order)
	sorted := make([]DescriptorMatch, len(matches))
	for i, idx := range order {
		sorted[i] = matches[idx]
	}
	if logger != nil {
		logger.Debugf("matched %d of %d descriptors against %d", len(sorted), len(desc1), len(desc2))
	}
	return sorted, nil
}
