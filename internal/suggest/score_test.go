package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreNonSubsequence(t *testing.T) {
	assert.Equal(t, scoreNoMatch, Score("xyz", "git status"))
	assert.Equal(t, scoreNoMatch, Score("gits", "git"))
}

func TestScoreEmptyPatternIsNeutral(t *testing.T) {
	assert.Equal(t, 0, Score("", "anything"))
}

func TestScorePrefersPrefixMatch(t *testing.T) {
	prefix := Score("git", "git status")
	buried := Score("git", "legit stuff")
	assert.Greater(t, prefix, buried)
}

func TestScorePrefersWordBoundaries(t *testing.T) {
	boundary := Score("ch", "git checkout")
	midWord := Score("ch", "aches")
	assert.Greater(t, boundary, midWord)
}

func TestScorePrefersConsecutiveRuns(t *testing.T) {
	run := Score("stat", "git status")
	scattered := Score("stat", "s t a t spread")
	assert.Greater(t, run, scattered)
}

func TestScoreCaseInsensitive(t *testing.T) {
	assert.Equal(t, Score("GIT", "git status"), Score("git", "git status"))
}

func TestIsSubsequence(t *testing.T) {
	assert.True(t, isSubsequence("gc", "git checkout"))
	assert.True(t, isSubsequence("", "anything"))
	assert.False(t, isSubsequence("gcx", "git checkout"))
}
