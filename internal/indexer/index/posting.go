// Package index holds the inverted-index data structures and the pure
// functions that build them: document frequencies, tf-idf postings,
// document lengths and champion lists.
package index

// Posting records the weight of a term in one document.
type Posting struct {
	DocID  int     `json:"doc_id"`
	Weight float64 `json:"weight"`
}

// PostingList is the postings of a single term. In a full index it is in
// ascending DocID order; in a champion index it is in descending Weight
// order.
type PostingList []Posting

// Index maps a term to its postings. A term is present only if at least one
// document contains it.
type Index map[string]PostingList

// DocFreqs maps a term to the number of distinct documents containing it.
type DocFreqs map[string]int

// DocLengths holds the L2 norm of each document's tf-idf vector, indexed by
// document id.
type DocLengths []float64

// Len returns the length of document id, or 0 for an unknown id.
func (l DocLengths) Len(id int) float64 {
	if id < 0 || id >= len(l) {
		return 0
	}
	return l[id]
}

// Postings returns the postings for term, or nil when the term is not
// indexed.
func (idx Index) Postings(term string) PostingList {
	return idx[term]
}

// Contains reports whether term is indexed.
func (idx Index) Contains(term string) bool {
	_, ok := idx[term]
	return ok
}

// MaxPostings returns the length of the longest postings list.
func (idx Index) MaxPostings() int {
	longest := 0
	for _, postings := range idx {
		if len(postings) > longest {
			longest = len(postings)
		}
	}
	return longest
}

// TotalPostings returns the number of postings across all terms.
func (idx Index) TotalPostings() int {
	total := 0
	for _, postings := range idx {
		total += len(postings)
	}
	return total
}
