package index

import "math"

// BuildTFIDF builds the full index. For document d and each distinct term t
// in it, the posting weight is (1 + log10(tf)) * log10(N / df(t)), with N the
// number of documents. Terms that occur in every document get weight 0 and
// are still indexed. Documents with no tokens contribute no postings.
func BuildTFIDF(docs [][]string, dfs DocFreqs) Index {
	idx := make(Index, len(dfs))
	n := float64(len(docs))
	for docID, tokens := range docs {
		if len(tokens) == 0 {
			continue
		}
		termCounts := make(map[string]int, len(tokens))
		// first-seen order keeps the build reproducible
		order := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if termCounts[tok] == 0 {
				order = append(order, tok)
			}
			termCounts[tok]++
		}
		for _, term := range order {
			df, ok := dfs[term]
			if !ok || df <= 0 {
				continue
			}
			idx[term] = append(idx[term], Posting{
				DocID:  docID,
				Weight: Weight(termCounts[term], df, n),
			})
		}
	}
	return idx
}

// Weight computes the tf-idf weight of a term seen tf times in one document,
// given its document frequency and the corpus size.
func Weight(tf int, df int, numDocs float64) float64 {
	return (1 + math.Log10(float64(tf))) * IDF(df, numDocs)
}

// IDF is log10(N / df). It is 0 for terms present in every document.
func IDF(df int, numDocs float64) float64 {
	return math.Log10(numDocs / float64(df))
}
