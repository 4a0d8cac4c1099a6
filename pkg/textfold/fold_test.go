package textfold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Basegun":     "basegun",
		"básegun":     "basegun",
		"Référentiel": "referentiel",
		"ÀÉÎÕÜ":       "aeiou",
		"ça":          "ca",
		"plain":       "plain",
		"":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Fold(in), "input %q", in)
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Basegun", "básegun"))
	assert.True(t, Contains("Mon Référentiel", "referent"))
	assert.True(t, Contains("anything", ""))
	assert.False(t, Contains("Basegun", "basegone"))
}
