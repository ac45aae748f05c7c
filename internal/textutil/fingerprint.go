package textutil

import (
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTokenRunes = 2

// Fingerprint is a term-frequency vector for one piece of text.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from text. It returns nil when the text
// yields no tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return newFingerprint(counts)
}

func newFingerprint(weights map[string]float64) *Fingerprint {
	var norm float64
	for _, w := range weights {
		norm += w * w
	}
	return &Fingerprint{tokens: weights, norm: math.Sqrt(norm)}
}

// Tokenize splits text into lowercase words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, field := range fields {
		if utf8.RuneCountInString(field) < minTokenRunes {
			continue
		}
		terms = append(terms, field)
	}
	return terms
}

// TokenCount returns the number of distinct tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// Has reports whether token occurs in the fingerprint.
func (f *Fingerprint) Has(token string) bool {
	if f == nil {
		return false
	}
	_, ok := f.tokens[token]
	return ok
}

// WithIDF returns a copy weighted by idf. Terms absent from idf keep their
// raw count; terms weighted to zero are dropped.
func (f *Fingerprint) WithIDF(idf map[string]float64) *Fingerprint {
	if f == nil || len(idf) == 0 {
		return f
	}
	weighted := make(map[string]float64, len(f.tokens))
	for token, count := range f.tokens {
		w := count
		if v, ok := idf[token]; ok {
			w *= v
		}
		if w == 0 {
			continue
		}
		weighted[token] = w
	}
	if len(weighted) == 0 {
		return nil
	}
	return newFingerprint(weighted)
}

// Corpus collects document frequencies over a set of fingerprints.
type Corpus struct {
	docCount int
	docFreq  map[string]int
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{docFreq: make(map[string]int)}
}

// Add registers the distinct terms of fp.
func (c *Corpus) Add(fp *Fingerprint) {
	if c == nil || fp == nil {
		return
	}
	c.docCount++
	for token := range fp.tokens {
		c.docFreq[token]++
	}
}

// Len returns the number of documents added.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return c.docCount
}

// IDF computes smoothed inverse document frequencies, log((N+1)/(1+df)) + 1,
// so a term present in every document still carries some weight.
func (c *Corpus) IDF() map[string]float64 {
	if c == nil || c.docCount == 0 {
		return nil
	}
	idf := make(map[string]float64, len(c.docFreq))
	n := float64(c.docCount)
	for term, df := range c.docFreq {
		idf[term] = math.Log((n+1)/(1+float64(df))) + 1
	}
	return idf
}

// TermsContaining returns the corpus terms that contain fragment, sorted.
func (c *Corpus) TermsContaining(fragment string) []string {
	if c == nil || fragment == "" {
		return nil
	}
	fragment = strings.ToLower(fragment)
	var out []string
	for term := range c.docFreq {
		if strings.Contains(term, fragment) {
			out = append(out, term)
		}
	}
	slices.Sort(out)
	return out
}
