package index

// Rule is a single natural-language guideline extracted from an uploaded
// document. Re-adding a rule with an existing ID replaces it wholesale; there
// are no partial updates.
type Rule struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	Priority    int       `json:"priority"` // 1-10, higher is more important
	Category    string    `json:"category,omitempty"`
	Fingerprint []float32 `json:"-"`
}

// SearchResult pairs a rule with its cosine similarity to a query.
type SearchResult struct {
	Rule  Rule
	Score float32
}
