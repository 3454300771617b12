package index

import (
	"maps"
	"math"
	"slices"
)

// ComputeDocLengths returns sqrt(sum of squared weights) for each of the
// numDocs documents. It must be given the full index: a champion index drops
// low-weight postings and would understate lengths. Documents with no
// postings get length 0.
//
// Terms are summed in sorted order so identical indexes give bit-identical
// lengths.
func ComputeDocLengths(idx Index, numDocs int) DocLengths {
	lengths := make(DocLengths, numDocs)
	for _, term := range slices.Sorted(maps.Keys(idx)) {
		for _, p := range idx[term] {
			if p.DocID < 0 {
				continue
			}
			if p.DocID >= len(lengths) {
				grown := make(DocLengths, p.DocID+1)
				copy(grown, lengths)
				lengths = grown
			}
			lengths[p.DocID] += p.Weight * p.Weight
		}
	}
	for id, sum := range lengths {
		lengths[id] = math.Sqrt(sum)
	}
	return lengths
}
