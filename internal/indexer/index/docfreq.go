package index

// CountDocFrequencies counts, for every term, the number of documents in
// which it appears at least once.
func CountDocFrequencies(docs [][]string) DocFreqs {
	dfs := make(DocFreqs)
	seen := make(map[string]struct{})
	for _, tokens := range docs {
		clear(seen)
		for _, tok := range tokens {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			dfs[tok]++
		}
	}
	return dfs
}
