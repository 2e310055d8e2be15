package negation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleNegator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		language string
		want     string
	}{
		{"english pronoun", "I feel happy", "en", "I don't feel happy"},
		{"english contraction removed", "I don't feel happy", "en", "I feel happy"},
		{"english auxiliary", "I am often anxious.", "en", "I am not often anxious."},
		{"english not removed", "I am not anxious.", "en", "I am anxious."},
		{"english do not", "I do not sleep well", "en", "I sleep well"},
		{"english contraction kept verb", "Isn't it hard", "en", "Is it hard"},
		{"english fragment", "Feeling nervous", "en", "Not feeling nervous"},
		{"unknown language uses english", "I feel happy", "xx", "I don't feel happy"},
		{"portuguese", "Eu me sinto feliz", "pt", "Eu não me sinto feliz"},
		{"portuguese removed", "Eu não me sinto feliz", "pt", "Eu me sinto feliz"},
		{"spanish", "Me siento feliz", "es", "No me siento feliz"},
		{"french", "Je mange bien", "fr", "Je ne mange pas bien"},
		{"french vowel", "Elle est heureuse", "fr", "Elle n'est pas heureuse"},
		{"french removed", "Je n'aime pas", "fr", "Je aime"},
		{"german", "Ich fühle mich glücklich", "de", "Ich fühle mich nicht glücklich"},
		{"german removed", "Ich bin nicht müde", "de", "Ich bin müde"},
		{"language case", "I feel happy", "EN", "I don't feel happy"},
	}

	n := NewRuleNegator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Negate(tt.text, tt.language)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleNegatorEmpty(t *testing.T) {
	got, err := NewRuleNegator().Negate("   ", "en")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRuleNegatorDeterministic(t *testing.T) {
	n := NewRuleNegator()
	a, _ := n.Negate("Little interest or pleasure in doing things", "en")
	b, _ := n.Negate("Little interest or pleasure in doing things", "en")
	assert.Equal(t, a, b)
	assert.NotEqual(t, "Little interest or pleasure in doing things", a)
}
