package index

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// FingerprintDim is the fixed width of rule fingerprints.
const FingerprintDim = 100

// Fingerprint computes a bag-of-hashed-words vector for text: lowercase word
// tokens longer than 2 characters are hashed into one of FingerprintDim
// buckets, each occurrence contributes 1/sqrt(tokenCount), and the result is
// L2-normalized. Empty or token-free text yields an all-zero vector, which is
// a valid low-similarity fingerprint rather than an error.
func Fingerprint(text string) []float32 {
	vec := make([]float32, FingerprintDim)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	weight := float32(1 / math.Sqrt(float64(len(tokens))))
	for _, tok := range tokens {
		vec[bucket(tok)] += weight
	}

	n := norm(vec)
	if n == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func bucket(token string) int {
	h := fnv.New32a()
	h.Write([]byte(token))
	return int(h.Sum32() % FingerprintDim)
}

func norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// Cosine returns the cosine similarity of two vectors. If either vector has
// zero norm the similarity is defined as 0 to keep search total.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (float64(na) * float64(nb)))
}
