package keypoints

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Descriptor is a binary feature descriptor such as ORB or BRIEF, packed 8 bits per byte.
type Descriptor []byte

// Descriptors is a set of descriptors; row i describes keypoint i.
type Descriptors []Descriptor

// HammingDistance counts the differing bits between two descriptors of equal length.
func HammingDistance(d1, d2 Descriptor) (int, error) {
	if len(d1) != len(d2) {
		return 0, errors.Errorf("descriptors must have same length, got %d and %d", len(d1), len(d2))
	}
	dist := 0
	for i := range d1 {
		dist += bits.OnesCount8(d1[i] ^ d2[i])
	}
	return dist, nil
}

// DescriptorsHammingDistance computes the pairwise distance matrix between two descriptor sets.
func DescriptorsHammingDistance(descs1, descs2 Descriptors) ([][]int, error) {
	distances := make([][]int, len(descs1))
	for i, d1 := range descs1 {
		distances[i] = make([]int, len(descs2))
		for j, d2 := range descs2 {
			d, err := HammingDistance(d1, d2)
			if err != nil {
				return nil, errors.Wrapf(err, "descriptor %d vs %d", i, j)
			}
			distances[i][j] = d
		}
	}
	return distances, nil
}
