package index

import (
	"fmt"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/errors"
)

// DefaultChampionThreshold is the champion list size used when none is
// configured.
const DefaultChampionThreshold = 10

// ErrInvalidChampionThreshold is returned for a threshold below 1.
var ErrInvalidChampionThreshold = fmt.Errorf("%w: champion threshold must be positive", apperrors.ErrInvalidConfig)

// BuildChampions keeps, for every term, the k postings with the highest
// weight, in descending weight order. Equal weights keep their order from
// the full index.
func BuildChampions(idx Index, k int) (Index, error) {
	if k <= 0 {
		return nil, fmt.Errorf("building champion index with k=%d: %w", k, ErrInvalidChampionThreshold)
	}
	champions := make(Index, len(idx))
	for term, postings := range idx {
		sorted := slices.Clone(postings)
		slices.SortStableFunc(sorted, func(a, b Posting) int {
			switch {
			case a.Weight > b.Weight:
				return -1
			case a.Weight < b.Weight:
				return 1
			default:
				return 0
			}
		})
		if len(sorted) > k {
			sorted = slices.Clip(sorted[:k])
		}
		champions[term] = sorted
	}
	return champions, nil
}
