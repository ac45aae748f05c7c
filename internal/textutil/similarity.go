package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// It returns 0 when either is nil or empty.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	if len(b.tokens) < len(a.tokens) {
		a, b = b, a
	}
	var dot float64
	for token, weight := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += weight * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}
