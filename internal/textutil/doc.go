// Package textutil builds term-frequency fingerprints of transcript text and
// compares them by cosine similarity.
//
// Tokenization lowercases text, splits on anything that is not a letter or
// digit in any script, and drops tokens shorter than two runes. A Corpus
// collects document frequencies so fingerprints can be reweighted by TF-IDF,
// which keeps filler words from dominating transcript ranking.
package textutil
