package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"drops stop words and punctuation", "What is the chunk overlap?", []string{"chunk", "overlap"}},
		{"lowercases and dedupes", "Badger badger BADGER store", []string{"badger", "store"}},
		{"only stop words", "is it the", []string{}},
		{"empty", "   ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Terms(tt.query))
		})
	}
}

func TestMatchedTerms(t *testing.T) {
	terms := Terms("how are vectors normalized before scoring")
	matched := MatchedTerms("Vectors are normalized, then stored.", terms)
	assert.Equal(t, []string{"vectors", "normalized"}, matched)

	assert.Nil(t, MatchedTerms("anything", nil))
}
