package courses

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedVariants_TrimsBracketedSuffix(t *testing.T) {
	variants := normalizedVariants("Intro to Biology (Section A)")
	assert.Contains(t, variants, "Intro to Biology")
}

func TestNormalizedVariants_SplitsOnDelimiter(t *testing.T) {
	variants := normalizedVariants("Biology 101 - Lecture 3")
	assert.Contains(t, variants, "Biology 101")
}

func TestNormalizedVariants_TrimsTrailingUppercaseCode(t *testing.T) {
	variants := normalizedVariants("Organic Chemistry ABC")
	assert.Contains(t, variants, "Organic Chemistry")
}

func TestProgressiveTruncations_DropsWordsKeepingAtLeastTwo(t *testing.T) {
	out := progressiveTruncations("Advanced Calculus Recitation Group Four")
	assert.Equal(t, []string{
		"Advanced Calculus Recitation Group",
		"Advanced Calculus Recitation",
		"Advanced Calculus",
	}, out)
}

func TestProgressiveTruncations_StopsAtTwoWordFloor(t *testing.T) {
	out := progressiveTruncations("Biology Lab")
	assert.Empty(t, out)
}

func TestNormalizedVariants_ChainsDelimiterThenBracket(t *testing.T) {
	// §8: "Matemáticas Básicas (EP) - Lunes" must expose "Matemáticas
	// Básicas (EP)" then "Matemáticas Básicas" in that order; the
	// trailing "(EP)" is only a trailing bracket once the "- Lunes"
	// suffix has already been split off.
	variants := normalizedVariants("Matemáticas Básicas (EP) - Lunes")
	assert.Equal(t, []string{"Matemáticas Básicas (EP)", "Matemáticas Básicas"}, variants)
}
