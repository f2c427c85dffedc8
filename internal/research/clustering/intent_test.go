package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		keyword string
		want    types.Intent
	}{
		{"buy running shoes", types.IntentTransactional},
		{"best running shoes to buy", types.IntentTransactional},
		{"best running shoes", types.IntentCommercial},
		{"nike vs adidas", types.IntentCommercial},
		{"nike login", types.IntentNavigational},
		{"amazon.com", types.IntentNavigational},
		{"running shoes near me", types.IntentNavigational},
		{"how to tie running shoes", types.IntentInformational},
		{"running shoes", types.IntentInformational},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.keyword))
		})
	}
}

func TestMajorityIntent(t *testing.T) {
	intent, share := majorityIntent([]string{"buy shoes", "shoe reviews", "how to clean shoes", "what are shoes"})
	assert.Equal(t, types.IntentInformational, intent)
	assert.Equal(t, 0.5, share)

	intent, share = majorityIntent([]string{"buy shoes", "best shoes"})
	assert.Equal(t, types.IntentTransactional, intent, "ties go to the higher priority intent")
	assert.Equal(t, 0.5, share)
}
