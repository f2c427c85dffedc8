package types

// ResearchKey addresses one cacheable research signal. Values are built by
// fingerprint.Normalize and are treated as immutable.
type ResearchKey struct {
	Keyword  string   `json:"keyword"`
	Country  string   `json:"country"`
	Language string   `json:"language"`
	Category Category `json:"category,omitempty"`
}

// WithCategory returns a copy of the key bound to another category.
func (k ResearchKey) WithCategory(c Category) ResearchKey {
	k.Category = c
	return k
}
