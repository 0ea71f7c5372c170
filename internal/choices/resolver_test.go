package choices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formscout/formscout/api/schemas"
)

func opts(texts ...string) []schemas.SelectOption {
	out := make([]schemas.SelectOption, len(texts))
	for i, t := range texts {
		out[i] = schemas.SelectOption{Value: t, Text: t}
	}
	return out
}

func TestBestMatchExact(t *testing.T) {
	options := opts("AI Tools", "Business", "Design")

	got := BestMatch("Business", options)
	require.NotNil(t, got)
	assert.Equal(t, "Business", got.Text)

	// Case-insensitive exact still counts as exact.
	got = BestMatch("business", options)
	require.NotNil(t, got)
	assert.Equal(t, "Business", got.Text)
}

func TestBestMatchExactAgainstValue(t *testing.T) {
	options := []schemas.SelectOption{
		{Value: "ai-tools", Text: "AI Tools"},
		{Value: "biz", Text: "Business"},
	}
	got := BestMatch("ai-tools", options)
	require.NotNil(t, got)
	assert.Equal(t, "AI Tools", got.Text)
}

// Tier precedence: an exact match must win even when a looser tier would
// also hit, and regardless of option order.
func TestBestMatchExactBeatsLooserTiers(t *testing.T) {
	options := opts("AI Tools and More", "AI Tools")
	got := BestMatch("AI Tools", options)
	require.NotNil(t, got)
	assert.Equal(t, "AI Tools", got.Text)
}

func TestBestMatchSubstringBothDirections(t *testing.T) {
	got := BestMatch("Design", opts("Graphic Design Tools", "Video"))
	require.NotNil(t, got)
	assert.Equal(t, "Graphic Design Tools", got.Text)

	got = BestMatch("Productivity Software", opts("Productivity", "Video"))
	require.NotNil(t, got)
	assert.Equal(t, "Productivity", got.Text)
}

func TestBestMatchSynonymChinese(t *testing.T) {
	got := BestMatch("人工智能", opts("AI Tools", "Business"))
	require.NotNil(t, got)
	assert.Equal(t, "AI Tools", got.Text)
}

func TestBestMatchSynonymReverseDirection(t *testing.T) {
	// Option side carries the foreign term.
	got := BestMatch("AI Tools", opts("人工智能", "商业"))
	require.NotNil(t, got)
	assert.Equal(t, "人工智能", got.Text)
}

func TestBestMatchSynonymEnglishVariants(t *testing.T) {
	got := BestMatch("Machine Learning", opts("AI", "Finance"))
	require.NotNil(t, got)
	assert.Equal(t, "AI", got.Text)

	got = BestMatch("SEO", opts("Marketing", "Design"))
	require.NotNil(t, got)
	assert.Equal(t, "Marketing", got.Text)
}

func TestBestMatchFuzzyWordBoundary(t *testing.T) {
	got := BestMatch("developer-utilities", opts("Developer Tools", "Health"))
	require.NotNil(t, got)
	assert.Equal(t, "Developer Tools", got.Text)
}

func TestBestMatchNoHit(t *testing.T) {
	assert.Nil(t, BestMatch("Quantum Farming", opts("AI Tools", "Business")))
	assert.Nil(t, BestMatch("", opts("AI Tools")))
	assert.Nil(t, BestMatch("anything", nil))
}

func TestBestMatchAnyTriesCandidatesInOrder(t *testing.T) {
	options := opts("Productivity", "Design")
	got := BestMatchAny([]string{"nonexistent", "design"}, options)
	require.NotNil(t, got)
	assert.Equal(t, "Design", got.Text)

	assert.Nil(t, BestMatchAny([]string{"a", "b"}, opts("Unrelated")))
}

func TestSplitValues(t *testing.T) {
	assert.Equal(t, []string{"ai", "seo", "写作"}, SplitValues(" ai, seo ，写作 "))
	assert.Equal(t, []string{"one"}, SplitValues("one"))
	assert.Nil(t, SplitValues(" , "))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ai tools", normalize("  AI-Tools "))
	assert.Equal(t, "dev tools", normalize("dev__tools"))
	assert.Equal(t, "人工智能", normalize("人工智能"))
}
