package index

import (
	"sort"
	"sync"
)

// SimilarityIndex holds rules and their fingerprints in memory and answers
// nearest-neighbor queries by brute-force cosine similarity. The corpus is
// small (human-curated rules), so a linear scan is deliberate; see the
// storage package for the persistence collaborator that rebuilds the index
// at startup.
//
// All methods are safe for concurrent use; mutation is serialized behind a
// single mutex because operations are cheap and human-paced.
type SimilarityIndex struct {
	mu    sync.RWMutex
	rules []Rule
	byID  map[string]int // rule id -> position in rules
}

// NewSimilarityIndex returns an empty index.
func NewSimilarityIndex() *SimilarityIndex {
	return &SimilarityIndex{byID: make(map[string]int)}
}

// AddRules indexes the given rules, computing a fingerprint for any rule that
// does not carry one yet. Re-adding a rule with an id already present updates
// that entry in place (content, metadata and fingerprint are replaced); the
// index never holds two entries for one id.
func (s *SimilarityIndex) AddRules(rules []Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rules {
		if len(r.Fingerprint) == 0 {
			r.Fingerprint = Fingerprint(r.Content)
		}
		if pos, ok := s.byID[r.ID]; ok {
			s.rules[pos] = r
			continue
		}
		s.byID[r.ID] = len(s.rules)
		s.rules = append(s.rules, r)
	}
}

// Search fingerprints the query, scores every indexed rule by cosine
// similarity and returns the limit highest-scoring results sorted descending.
// Ties keep insertion order (stable sort). An empty index yields an empty
// result, never an error.
func (s *SimilarityIndex) Search(query string, limit int) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rules) == 0 || limit <= 0 {
		return nil
	}

	qv := Fingerprint(query)
	results := make([]SearchResult, 0, len(s.rules))
	for _, r := range s.rules {
		results = append(results, SearchResult{Rule: r, Score: Cosine(qv, r.Fingerprint)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// GetAllRules returns a copy of the indexed rules in insertion order.
func (s *SimilarityIndex) GetAllRules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Count returns the number of indexed rules.
func (s *SimilarityIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// Clear removes all rules and fingerprints. Subsequent searches return empty.
func (s *SimilarityIndex) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
	s.byID = make(map[string]int)
}
