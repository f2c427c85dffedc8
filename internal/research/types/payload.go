package types

import (
	"encoding/json"
	"fmt"
)

// Payload is what a source adapter returns. Exactly one body field is set
// and it must match Category.
type Payload struct {
	Category  Category       `json:"category"`
	Keyword   *KeywordRecord `json:"keyword,omitempty"`
	Serp      *SerpResult    `json:"serp,omitempty"`
	Embedding *Embedding     `json:"embedding,omitempty"`
	Page      *PageSignals   `json:"page,omitempty"`
}

// Validate checks that the body matches the category.
func (p *Payload) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil payload", ErrPermanentSource)
	}
	var ok bool
	switch p.Category {
	case CategoryKeywordMetrics:
		ok = p.Keyword != nil
	case CategorySerp:
		ok = p.Serp != nil
	case CategoryEmbedding:
		ok = p.Embedding != nil && len(p.Embedding.Vector) > 0
	case CategoryPageScore:
		ok = p.Page != nil
	default:
		return fmt.Errorf("%w: payload has unsupported category %q", ErrPermanentSource, p.Category)
	}
	if !ok {
		return fmt.Errorf("%w: empty %s payload", ErrPermanentSource, p.Category)
	}
	return nil
}

// DecodePayload parses a cached payload body.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
