package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"Birthday", " anniversary ", "birthday", ""})
	require.NoError(t, err)

	assert.True(t, m.Match("Ada's BIRTHDAY party"))
	assert.True(t, m.Match("Wedding anniversary"))
	assert.False(t, m.Match("Team standup"))
	assert.False(t, m.Match(""))
	assert.Equal(t, []string{"birthday"}, m.Find("birthday birthday"))
}

func TestEmptyMatcherMatchesNothing(t *testing.T) {
	m, err := NewMatcher(nil)
	require.NoError(t, err)
	assert.False(t, m.Match("anything"))

	var nilMatcher *Matcher
	assert.False(t, nilMatcher.Match("anything"))
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"machine", "learning", "course"}, Keywords("The Machine-Learning course of AI"))
	assert.Empty(t, Keywords("a an of to"))
}
