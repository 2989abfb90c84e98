// Package simhash fingerprints rendered text and page layout so a refresh can
// tell whether an entity's content actually changed.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes a 64-bit SimHash of the given text.
// Uses FNV-64a hash on lowercased word tokens with bit vector accumulation.
func Fingerprint(text string) uint64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		hash := sum64(word)
		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

func sum64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Signature identifies one version of an entity's text: Hash for fuzzy
// comparison and Sum for exact comparison.
type Signature struct {
	Hash uint64
	Sum  uint64
}

// Sign computes the signature of text. Empty text signs to the zero value.
func Sign(text string) Signature {
	if text == "" {
		return Signature{}
	}
	return Signature{Hash: Fingerprint(text), Sum: sum64(text)}
}

// IsZero reports whether s was never computed or came from empty text.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// Changed reports whether next differs from prev. Any byte change counts when
// threshold is zero or less; otherwise the SimHash distance must exceed
// threshold. A zero prev (first fetch) is never a change.
func Changed(prev, next Signature, threshold int) bool {
	if prev.IsZero() || prev.Sum == next.Sum {
		return false
	}
	if threshold <= 0 {
		return true
	}
	return Distance(prev.Hash, next.Hash) > threshold
}
